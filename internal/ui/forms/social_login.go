package forms

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Its-donkey/compass-auth/internal/ui/model"
)

// ErrBlankProvider is returned when a social login names no provider.
var ErrBlankProvider = errors.New("social login provider is required")

// SocialLogin announces the hand-off and sends the browser to the backend's
// OAuth entry point for provider. The form state is not consulted.
func (c *AuthController) SocialLogin(provider string) error {
	provider = strings.TrimSpace(provider)
	if provider == "" {
		return ErrBlankProvider
	}
	c.notifier.Notify(fmt.Sprintf("Preparing %s login…", providerLabel(provider)), model.NotifyInfo)
	target := c.client.OAuthURL(provider)
	c.logger.Info("auth", "redirecting to social login", map[string]any{"provider": strings.ToLower(provider)})
	c.navigator.Navigate(target)
	return nil
}

func providerLabel(provider string) string {
	for _, p := range model.SocialProviders {
		if strings.EqualFold(p.ID, provider) || strings.EqualFold(p.Label, provider) {
			return p.Label
		}
	}
	return provider
}

//go:build js && wasm

package wasm

import (
	"context"
	"strings"
	"syscall/js"

	"github.com/Its-donkey/compass-auth/internal/ui/forms"
	"github.com/Its-donkey/compass-auth/internal/ui/state"
	"github.com/Its-donkey/compass-auth/logging"
)

// RunApp bootstraps the Compass auth UI and blocks forever.
func RunApp() {
	done := make(chan struct{})
	doc := js.Global().Get("document")

	logger := logging.New("auth-ui", logging.INFO, consoleWriter{})
	ctrl := forms.NewAuthController(forms.Options{
		Store:     state.AuthForm,
		Client:    forms.NewAuthClient(apiBase(doc), nil, logger),
		Storage:   newLocalStorageTokens(),
		Notifier:  domNotifier{doc: doc},
		Navigator: locationNavigator{},
		Logger:    logger,
	})

	if root := doc.Call("getElementById", "auth-root"); root.Truthy() {
		bindAuthCard(doc, root, ctrl)
	}
	if logout := doc.Call("getElementById", "logout-button"); logout.Truthy() {
		logout.Call("addEventListener", "click", js.FuncOf(func(this js.Value, _ []js.Value) any {
			this.Set("disabled", true)
			go func() {
				if err := ctrl.Logout(context.Background()); err != nil {
					logger.Warn("auth", "logout completed with errors", map[string]any{"error": err.Error()})
				}
			}()
			return nil
		}))
	}
	<-done
}

// apiBase reads <meta name="compass-api-base">. An empty value keeps
// requests on the page origin.
func apiBase(doc js.Value) string {
	meta := doc.Call("querySelector", `meta[name="compass-api-base"]`)
	if !meta.Truthy() {
		return ""
	}
	content := meta.Call("getAttribute", "content")
	if content.Type() != js.TypeString {
		return ""
	}
	return strings.TrimSpace(content.String())
}

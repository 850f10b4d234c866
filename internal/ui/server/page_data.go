package server

import (
	"net/http"

	"github.com/Its-donkey/compass-auth/internal/ui/model"
)

type basePageData struct {
	PageTitle      string
	StylesheetPath string
	APIBase        string
	BodyClass      string
	CurrentYear    int
	LoadWasm       bool
}

type authPageData struct {
	basePageData
	Mode      string
	Providers []model.SocialProvider
}

type mainPageData struct {
	basePageData
}

func (s *server) basePage(title, bodyClass string) basePageData {
	return basePageData{
		PageTitle:      title,
		StylesheetPath: s.stylesPath,
		APIBase:        s.browserAPIBase,
		BodyClass:      bodyClass,
		CurrentYear:    s.currentYear,
		LoadWasm:       true,
	}
}

func (s *server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

// handleLogin renders the auth card. ?mode=signup opens the signup tab.
func (s *server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	mode, _ := model.ParseAuthMode(r.URL.Query().Get("mode"))
	title := "Log in · Compass"
	if mode == model.ModeSignup {
		title = "Sign up · Compass"
	}
	data := authPageData{
		basePageData: s.basePage(title, "auth-page"),
		Mode:         mode.String(),
		Providers:    model.SocialProviders,
	}
	s.render(w, "auth", data)
}

func (s *server) handleMain(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.render(w, "main", mainPageData{basePageData: s.basePage("Your trips · Compass", "main-page")})
}

func (s *server) render(w http.ResponseWriter, name string, data any) {
	tmpl, ok := s.templates[name]
	if !ok {
		s.logger.Error("http", "template missing", nil, map[string]any{"template": name})
		http.Error(w, "template error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := tmpl.ExecuteTemplate(w, "base", data); err != nil {
		s.logger.Error("http", "render page failed", err, map[string]any{"template": name})
		http.Error(w, "template error", http.StatusInternalServerError)
	}
}

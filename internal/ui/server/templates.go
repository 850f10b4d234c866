package server

import (
	"fmt"
	"html/template"
	"path/filepath"
	"strings"
)

// loadTemplates loads and wires all HTML templates used by the UI server.
// It returns a map keyed by logical template name ("auth", "main").
func loadTemplates(dir string) (map[string]*template.Template, error) {
	funcs := template.FuncMap{
		"lower": strings.ToLower,
	}

	base := filepath.Join(dir, "base.tmpl")
	auth := filepath.Join(dir, "auth.tmpl")
	mainView := filepath.Join(dir, "main.tmpl")

	authTmpl, err := template.New("auth").Funcs(funcs).ParseFiles(base, auth)
	if err != nil {
		return nil, fmt.Errorf("parse auth templates: %w", err)
	}

	mainTmpl, err := template.New("main").Funcs(funcs).ParseFiles(base, mainView)
	if err != nil {
		return nil, fmt.Errorf("parse main templates: %w", err)
	}

	return map[string]*template.Template{
		"auth": authTmpl,
		"main": mainTmpl,
	}, nil
}

package server

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"mime"
	"net/http"
	"net/http/httputil"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/Its-donkey/compass-auth/internal/config"
	"github.com/Its-donkey/compass-auth/logging"
)

// Options configures the UI HTTP server.
type Options struct {
	Listen string
	// APIBaseURL is the auth backend that /api/ and /oauth2/ are proxied to.
	APIBaseURL string
	// BrowserAPIBase is written into the page for the WASM client. Empty
	// keeps browser requests on this origin and therefore on the proxy.
	BrowserAPIBase string
	TemplatesDir   string
	AssetsDir      string
	Logger         *logging.Logger
	Templates      map[string]*template.Template
}

type server struct {
	assetsDir      string
	stylesPath     string
	browserAPIBase string
	templates      map[string]*template.Template
	currentYear    int
	logger         *logging.Logger
}

// NewHandler builds the UI routes wrapped in request logging.
func NewHandler(opts Options) (http.Handler, error) {
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	if err := config.ValidateBaseURL(opts.APIBaseURL); err != nil {
		return nil, err
	}
	apiURL, err := url.Parse(strings.TrimRight(strings.TrimSpace(opts.APIBaseURL), "/"))
	if err != nil {
		return nil, fmt.Errorf("parse api url: %w", err)
	}

	tmpl := opts.Templates
	if tmpl == nil {
		templateRoot, err := filepath.Abs(opts.TemplatesDir)
		if err != nil {
			return nil, fmt.Errorf("resolve templates dir: %w", err)
		}
		if tmpl, err = loadTemplates(templateRoot); err != nil {
			return nil, fmt.Errorf("load templates: %w", err)
		}
	}

	assetsPath, err := filepath.Abs(opts.AssetsDir)
	if err != nil {
		return nil, fmt.Errorf("resolve assets dir: %w", err)
	}

	srv := &server{
		assetsDir:      assetsPath,
		stylesPath:     "/styles.css",
		browserAPIBase: strings.TrimRight(strings.TrimSpace(opts.BrowserAPIBase), "/"),
		templates:      tmpl,
		currentYear:    time.Now().Year(),
		logger:         opts.Logger,
	}

	_ = mime.AddExtensionType(".wasm", "application/wasm")

	mux := http.NewServeMux()
	mux.HandleFunc("/", srv.handleRoot)
	mux.HandleFunc("/login", srv.handleLogin)
	mux.HandleFunc("/main", srv.handleMain)
	mux.Handle("/styles.css", srv.assetHandler("styles.css", "text/css; charset=utf-8"))
	mux.Handle("/wasm_exec.js", srv.assetHandler("wasm_exec.js", "application/javascript"))
	mux.Handle("/main.wasm", srv.assetHandler("main.wasm", "application/wasm"))
	mux.HandleFunc("/favicon.ico", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	proxy := apiProxyHandler(apiURL, opts.Logger)
	mux.Handle("/api/", proxy)
	mux.Handle("/oauth2/", proxy)

	return logging.NewHTTPLogger(opts.Logger, 0).Middleware(mux), nil
}

// Run serves the UI until ctx is cancelled.
func Run(ctx context.Context, opts Options) error {
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	handler, err := NewHandler(opts)
	if err != nil {
		return err
	}
	httpServer := &http.Server{
		Addr:              opts.Listen,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		opts.Logger.Info("http", "serving Compass UI", map[string]any{
			"listen": opts.Listen,
			"api":    opts.APIBaseURL,
		})
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

func (s *server) assetHandler(name, contentType string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := filepath.Join(s.assetsDir, name)
		if contentType != "" {
			w.Header().Set("Content-Type", contentType)
		}
		http.ServeFile(w, r, path)
	})
}

func apiProxyHandler(target *url.URL, logger *logging.Logger) http.Handler {
	proxy := httputil.NewSingleHostReverseProxy(target)
	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		logger.WithRequestID(r.Header.Get(logging.RequestIDHeader)).
			WithCategory("http").
			WithField("path", r.URL.Path).
			Error("auth backend proxy failed", err)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`{"message":"auth service unavailable"}`))
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Host = target.Host
		proxy.ServeHTTP(w, r)
	})
}

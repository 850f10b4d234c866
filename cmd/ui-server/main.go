package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"

	"github.com/Its-donkey/compass-auth/internal/config"
	"github.com/Its-donkey/compass-auth/internal/ui/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	listen := flag.String("listen", cfg.UIListen, "address to serve the Compass UI")
	apiBase := flag.String("api", cfg.APIBaseURL, "base URL of the auth backend")
	browserAPI := flag.String("browser-api", "", "API base written into pages; empty keeps requests on the UI proxy")
	templatesDir := flag.String("templates", cfg.TemplatesDir, "path to the html/template files")
	assetsDir := flag.String("assets", cfg.AssetsDir, "path holding styles.css, wasm_exec.js and main.wasm")
	flag.Parse()

	if err := config.ValidateBaseURL(*apiBase); err != nil {
		log.Fatalf("invalid api url %q: %v", *apiBase, err)
	}

	logger, closeLog, err := cfg.OpenLogger("ui-server")
	if err != nil {
		log.Fatalf("open logger: %v", err)
	}
	defer closeLog()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := server.Run(ctx, server.Options{
		Listen:         *listen,
		APIBaseURL:     *apiBase,
		BrowserAPIBase: *browserAPI,
		TemplatesDir:   *templatesDir,
		AssetsDir:      *assetsDir,
		Logger:         logger,
	}); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

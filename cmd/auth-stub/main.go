package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/Its-donkey/compass-auth/internal/config"
	"github.com/Its-donkey/compass-auth/internal/stub"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	listen := flag.String("listen", cfg.Stub.Listen, "address for the development auth backend")
	flag.Parse()

	logger, closeLog, err := cfg.OpenLogger("auth-stub")
	if err != nil {
		log.Fatalf("open logger: %v", err)
	}
	defer closeLog()
	srv := stub.New(cfg.Stub, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("stub", "starting auth stub", map[string]any{"listen": *listen})
		errCh <- srv.App().Listen(*listen)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			log.Fatalf("auth stub listen error: %v", err)
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.App().ShutdownWithContext(shutdownCtx); err != nil {
		log.Fatalf("auth stub shutdown failed: %v", err)
	}
	logger.Info("stub", "auth stub stopped", nil)
}

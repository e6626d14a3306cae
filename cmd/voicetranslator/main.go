package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/yogami/AIVoiceTranslator-sub012/internal/app"
	"github.com/yogami/AIVoiceTranslator-sub012/internal/config"
)

func main() {
	configPath := flag.String("config", os.Getenv("TRANSLATOR_CONFIG_FILE"), "path to a JSON config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		log.Fatalf("Fatal: %v", err)
	}
}

func run(configPath string) error {
	cfg := config.Load(configPath)
	if err := cfg.Validate(); err != nil {
		return err
	}

	application, err := app.NewApplication(cfg)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := application.Start(ctx); err != nil {
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Printf("Received signal %s, shutting down", sig)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	return application.Stop(shutdownCtx)
}

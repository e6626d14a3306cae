package app

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/yogami/AIVoiceTranslator-sub012/internal/config"
)

func TestNewApplicationWiresComponents(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Database.Path = filepath.Join(t.TempDir(), "app.db")
	cfg.HTTP.Port = 18080

	application, err := NewApplication(cfg)
	if err != nil {
		t.Fatalf("NewApplication failed: %v", err)
	}
	if application.Addr() != "0.0.0.0:18080" {
		t.Errorf("addr = %q", application.Addr())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := application.Stop(ctx); err != nil {
		t.Errorf("Stop failed: %v", err)
	}
}

func TestNewApplicationRejectsInvalidConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.HTTP.Port = -1

	if _, err := NewApplication(cfg); err == nil {
		t.Error("invalid config should be rejected")
	}
}

func TestStopIsSafeBeforeStart(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Database.Path = filepath.Join(t.TempDir(), "idle.db")

	application, err := NewApplication(cfg)
	if err != nil {
		t.Fatalf("NewApplication failed: %v", err)
	}
	if err := application.Stop(context.Background()); err != nil {
		t.Errorf("Stop before Start failed: %v", err)
	}
}

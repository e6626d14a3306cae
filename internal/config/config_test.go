package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfigIsValid(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestValidateRejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero port", func(c *Config) { c.HTTP.Port = 0 }},
		{"port too high", func(c *Config) { c.HTTP.Port = 70000 }},
		{"empty host", func(c *Config) { c.HTTP.Host = "" }},
		{"read timeout under ping", func(c *Config) { c.WebSocket.ReadTimeout = c.WebSocket.PingInterval }},
		{"zero ping interval", func(c *Config) { c.WebSocket.PingInterval = 0 }},
		{"zero write buffer", func(c *Config) { c.WebSocket.WriteBuffer = 0 }},
		{"empty database path", func(c *Config) { c.Database.Path = "" }},
		{"zero sweep interval", func(c *Config) { c.Session.SweepInterval = 0 }},
		{"zero provider timeout", func(c *Config) { c.Providers.RequestTimeout = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected a validation error")
			}
		})
	}
}

func TestLoadFromEnvOverrides(t *testing.T) {
	t.Setenv("TRANSLATOR_HTTP_PORT", "9090")
	t.Setenv("TRANSLATOR_DATABASE_PATH", "/tmp/test.db")
	t.Setenv("TRANSLATOR_SESSION_INACTIVITY_TIMEOUT", "20m")
	t.Setenv("TRANSLATOR_WEBSOCKET_WRITE_BUFFER", "250")
	t.Setenv("OPENAI_API_KEY", "sk-env")

	cfg := LoadFromEnv()
	if cfg.HTTP.Port != 9090 {
		t.Errorf("port = %d, want 9090", cfg.HTTP.Port)
	}
	if cfg.Database.Path != "/tmp/test.db" {
		t.Errorf("database path = %q", cfg.Database.Path)
	}
	if cfg.Session.InactivityTimeout != 20*time.Minute {
		t.Errorf("inactivity timeout = %s, want 20m", cfg.Session.InactivityTimeout)
	}
	if cfg.WebSocket.WriteBuffer != 250 {
		t.Errorf("write buffer = %d, want 250", cfg.WebSocket.WriteBuffer)
	}
	if cfg.Providers.OpenAIAPIKey != "sk-env" {
		t.Errorf("openai key = %q", cfg.Providers.OpenAIAPIKey)
	}
}

func TestLoadFromEnvIgnoresMalformedValues(t *testing.T) {
	t.Setenv("TRANSLATOR_HTTP_PORT", "not-a-port")
	t.Setenv("TRANSLATOR_SESSION_SWEEP_INTERVAL", "soon")

	cfg := LoadFromEnv()
	defaults := DefaultConfig()
	if cfg.HTTP.Port != defaults.HTTP.Port {
		t.Errorf("malformed port should keep the default, got %d", cfg.HTTP.Port)
	}
	if cfg.Session.SweepInterval != defaults.Session.SweepInterval {
		t.Errorf("malformed interval should keep the default, got %s", cfg.Session.SweepInterval)
	}
}

func TestLoadFromFilePrecedence(t *testing.T) {
	t.Setenv("TRANSLATOR_HTTP_PORT", "9090") // file should win over env
	t.Setenv("TRANSLATOR_DATABASE_PATH", "/tmp/env.db")

	path := filepath.Join(t.TempDir(), "config.json")
	content := `{
		"http": {"port": 7070},
		"session": {"inactivity_timeout": "30m"}
	}`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}
	if cfg.HTTP.Port != 7070 {
		t.Errorf("port = %d, want the file value 7070", cfg.HTTP.Port)
	}
	if cfg.Session.InactivityTimeout != 30*time.Minute {
		t.Errorf("inactivity timeout = %s, want 30m", cfg.Session.InactivityTimeout)
	}
	// Env survives where the file is silent.
	if cfg.Database.Path != "/tmp/env.db" {
		t.Errorf("database path = %q, want the env value", cfg.Database.Path)
	}
}

func TestLoadFromFileErrors(t *testing.T) {
	if _, err := LoadFromFile("/nonexistent/config.json"); err == nil {
		t.Error("missing file should be an error")
	}

	path := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFromFile(path); err == nil {
		t.Error("malformed JSON should be an error")
	}

	path = filepath.Join(t.TempDir(), "invalid.json")
	if err := os.WriteFile(path, []byte(`{"http": {"port": 70000}}`), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFromFile(path); err == nil {
		t.Error("out-of-range file value should fail validation")
	}
}

func TestLoadFallsBackSilently(t *testing.T) {
	cfg := Load("/nonexistent/config.json")
	if cfg == nil {
		t.Fatal("Load should always return a config")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("fallback config invalid: %v", err)
	}
}

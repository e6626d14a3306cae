// Package config loads runtime settings with the precedence
// file > environment > defaults. Environment variables use the
// TRANSLATOR_ prefix.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config is the full runtime configuration.
type Config struct {
	HTTP      *HTTPConfig      `json:"http"`
	WebSocket *WebSocketConfig `json:"websocket"`
	Database  *DatabaseConfig  `json:"database"`
	Session   *SessionConfig   `json:"session"`
	Providers *ProviderConfig  `json:"providers"`
}

// HTTPConfig covers the combined REST/WebSocket listener.
type HTTPConfig struct {
	Host         string        `json:"host"`
	Port         int           `json:"port"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
}

// WebSocketConfig tunes per-connection transport behavior and the
// heartbeat monitor.
type WebSocketConfig struct {
	PingInterval time.Duration `json:"ping_interval"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
	WriteBuffer  int           `json:"write_buffer"`
}

// DatabaseConfig locates the SQLite session store.
type DatabaseConfig struct {
	Path    string        `json:"path"`
	Timeout time.Duration `json:"timeout"`
}

// SessionConfig drives the lifecycle sweeper and the count cache.
type SessionConfig struct {
	InactivityTimeout time.Duration `json:"inactivity_timeout"`
	SweepInterval     time.Duration `json:"sweep_interval"`
	CountRefresh      time.Duration `json:"count_refresh"`
}

// ProviderConfig carries external capability credentials. Empty values
// disable the corresponding provider; that is never an error.
type ProviderConfig struct {
	OpenAIAPIKey     string        `json:"openai_api_key"`
	DeepSeekAPIKey   string        `json:"deepseek_api_key"`
	ElevenLabsAPIKey string        `json:"elevenlabs_api_key"`
	ElevenLabsVoice  string        `json:"elevenlabs_voice"`
	WhisperURL       string        `json:"whisper_url"`
	RequestTimeout   time.Duration `json:"request_timeout"`
}

// DefaultConfig returns production defaults: one classroom-scale process,
// 30s heartbeat, 10 minute inactivity cutoff.
func DefaultConfig() *Config {
	return &Config{
		HTTP: &HTTPConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		WebSocket: &WebSocketConfig{
			PingInterval: 30 * time.Second,
			ReadTimeout:  90 * time.Second,
			WriteTimeout: 5 * time.Second,
			WriteBuffer:  100,
		},
		Database: &DatabaseConfig{
			Path:    "./voicetranslator.db",
			Timeout: 30 * time.Second,
		},
		Session: &SessionConfig{
			InactivityTimeout: 10 * time.Minute,
			SweepInterval:     2 * time.Minute,
			CountRefresh:      30 * time.Second,
		},
		Providers: &ProviderConfig{
			RequestTimeout: 15 * time.Second,
		},
	}
}

// Validate rejects configurations that would fail at runtime.
func (c *Config) Validate() error {
	if c.HTTP == nil {
		return fmt.Errorf("http configuration is required")
	}
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http port must be between 1 and 65535")
	}
	if c.HTTP.Host == "" {
		return fmt.Errorf("http host cannot be empty")
	}
	if c.HTTP.ReadTimeout <= 0 || c.HTTP.WriteTimeout <= 0 {
		return fmt.Errorf("http timeouts must be positive")
	}
	if c.WebSocket == nil {
		return fmt.Errorf("websocket configuration is required")
	}
	if c.WebSocket.PingInterval <= 0 {
		return fmt.Errorf("websocket ping interval must be positive")
	}
	if c.WebSocket.ReadTimeout <= c.WebSocket.PingInterval {
		return fmt.Errorf("websocket read timeout must exceed the ping interval")
	}
	if c.WebSocket.WriteTimeout <= 0 {
		return fmt.Errorf("websocket write timeout must be positive")
	}
	if c.WebSocket.WriteBuffer <= 0 {
		return fmt.Errorf("websocket write buffer must be positive")
	}
	if c.Database == nil || c.Database.Path == "" {
		return fmt.Errorf("database path cannot be empty")
	}
	if c.Database.Timeout <= 0 {
		return fmt.Errorf("database timeout must be positive")
	}
	if c.Session == nil {
		return fmt.Errorf("session configuration is required")
	}
	if c.Session.InactivityTimeout <= 0 || c.Session.SweepInterval <= 0 || c.Session.CountRefresh <= 0 {
		return fmt.Errorf("session intervals must be positive")
	}
	if c.Providers == nil {
		return fmt.Errorf("provider configuration is required")
	}
	if c.Providers.RequestTimeout <= 0 {
		return fmt.Errorf("provider request timeout must be positive")
	}
	return nil
}

// LoadFromEnv layers environment variables over the defaults.
func LoadFromEnv() *Config {
	cfg := DefaultConfig()

	if host := os.Getenv("TRANSLATOR_HTTP_HOST"); host != "" {
		cfg.HTTP.Host = host
	}
	if port := os.Getenv("TRANSLATOR_HTTP_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.HTTP.Port = p
		}
	}
	if path := os.Getenv("TRANSLATOR_DATABASE_PATH"); path != "" {
		cfg.Database.Path = path
	}

	setDuration := func(env string, dst *time.Duration) {
		if v := os.Getenv(env); v != "" {
			if d, err := time.ParseDuration(v); err == nil {
				*dst = d
			}
		}
	}
	setDuration("TRANSLATOR_HTTP_READ_TIMEOUT", &cfg.HTTP.ReadTimeout)
	setDuration("TRANSLATOR_HTTP_WRITE_TIMEOUT", &cfg.HTTP.WriteTimeout)
	setDuration("TRANSLATOR_WEBSOCKET_PING_INTERVAL", &cfg.WebSocket.PingInterval)
	setDuration("TRANSLATOR_WEBSOCKET_READ_TIMEOUT", &cfg.WebSocket.ReadTimeout)
	setDuration("TRANSLATOR_WEBSOCKET_WRITE_TIMEOUT", &cfg.WebSocket.WriteTimeout)
	setDuration("TRANSLATOR_DATABASE_TIMEOUT", &cfg.Database.Timeout)
	setDuration("TRANSLATOR_SESSION_INACTIVITY_TIMEOUT", &cfg.Session.InactivityTimeout)
	setDuration("TRANSLATOR_SESSION_SWEEP_INTERVAL", &cfg.Session.SweepInterval)
	setDuration("TRANSLATOR_SESSION_COUNT_REFRESH", &cfg.Session.CountRefresh)
	setDuration("TRANSLATOR_PROVIDER_TIMEOUT", &cfg.Providers.RequestTimeout)

	if buf := os.Getenv("TRANSLATOR_WEBSOCKET_WRITE_BUFFER"); buf != "" {
		if n, err := strconv.Atoi(buf); err == nil {
			cfg.WebSocket.WriteBuffer = n
		}
	}

	cfg.Providers.OpenAIAPIKey = os.Getenv("OPENAI_API_KEY")
	cfg.Providers.DeepSeekAPIKey = os.Getenv("DEEPSEEK_API_KEY")
	cfg.Providers.ElevenLabsAPIKey = os.Getenv("ELEVENLABS_API_KEY")
	cfg.Providers.ElevenLabsVoice = os.Getenv("ELEVENLABS_VOICE_ID")
	cfg.Providers.WhisperURL = os.Getenv("TRANSLATOR_WHISPER_URL")

	return cfg
}

// configFile mirrors Config with string durations for JSON parsing.
type configFile struct {
	HTTP *struct {
		Host         string `json:"host"`
		Port         int    `json:"port"`
		ReadTimeout  string `json:"read_timeout"`
		WriteTimeout string `json:"write_timeout"`
	} `json:"http"`
	WebSocket *struct {
		PingInterval string `json:"ping_interval"`
		ReadTimeout  string `json:"read_timeout"`
		WriteTimeout string `json:"write_timeout"`
		WriteBuffer  int    `json:"write_buffer"`
	} `json:"websocket"`
	Database *struct {
		Path    string `json:"path"`
		Timeout string `json:"timeout"`
	} `json:"database"`
	Session *struct {
		InactivityTimeout string `json:"inactivity_timeout"`
		SweepInterval     string `json:"sweep_interval"`
		CountRefresh      string `json:"count_refresh"`
	} `json:"session"`
	Providers *struct {
		OpenAIAPIKey     string `json:"openai_api_key"`
		DeepSeekAPIKey   string `json:"deepseek_api_key"`
		ElevenLabsAPIKey string `json:"elevenlabs_api_key"`
		ElevenLabsVoice  string `json:"elevenlabs_voice"`
		WhisperURL       string `json:"whisper_url"`
		RequestTimeout   string `json:"request_timeout"`
	} `json:"providers"`
}

func parseDuration(s string, dst *time.Duration) {
	if s == "" {
		return
	}
	if d, err := time.ParseDuration(s); err == nil {
		*dst = d
	}
}

// LoadFromFile layers a JSON config file over the environment layer.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var file configFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	cfg := LoadFromEnv()
	if file.HTTP != nil {
		if file.HTTP.Host != "" {
			cfg.HTTP.Host = file.HTTP.Host
		}
		if file.HTTP.Port > 0 {
			cfg.HTTP.Port = file.HTTP.Port
		}
		parseDuration(file.HTTP.ReadTimeout, &cfg.HTTP.ReadTimeout)
		parseDuration(file.HTTP.WriteTimeout, &cfg.HTTP.WriteTimeout)
	}
	if file.WebSocket != nil {
		parseDuration(file.WebSocket.PingInterval, &cfg.WebSocket.PingInterval)
		parseDuration(file.WebSocket.ReadTimeout, &cfg.WebSocket.ReadTimeout)
		parseDuration(file.WebSocket.WriteTimeout, &cfg.WebSocket.WriteTimeout)
		if file.WebSocket.WriteBuffer > 0 {
			cfg.WebSocket.WriteBuffer = file.WebSocket.WriteBuffer
		}
	}
	if file.Database != nil {
		if file.Database.Path != "" {
			cfg.Database.Path = file.Database.Path
		}
		parseDuration(file.Database.Timeout, &cfg.Database.Timeout)
	}
	if file.Session != nil {
		parseDuration(file.Session.InactivityTimeout, &cfg.Session.InactivityTimeout)
		parseDuration(file.Session.SweepInterval, &cfg.Session.SweepInterval)
		parseDuration(file.Session.CountRefresh, &cfg.Session.CountRefresh)
	}
	if file.Providers != nil {
		if file.Providers.OpenAIAPIKey != "" {
			cfg.Providers.OpenAIAPIKey = file.Providers.OpenAIAPIKey
		}
		if file.Providers.DeepSeekAPIKey != "" {
			cfg.Providers.DeepSeekAPIKey = file.Providers.DeepSeekAPIKey
		}
		if file.Providers.ElevenLabsAPIKey != "" {
			cfg.Providers.ElevenLabsAPIKey = file.Providers.ElevenLabsAPIKey
		}
		if file.Providers.ElevenLabsVoice != "" {
			cfg.Providers.ElevenLabsVoice = file.Providers.ElevenLabsVoice
		}
		if file.Providers.WhisperURL != "" {
			cfg.Providers.WhisperURL = file.Providers.WhisperURL
		}
		parseDuration(file.Providers.RequestTimeout, &cfg.Providers.RequestTimeout)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration in %s: %w", path, err)
	}
	return cfg, nil
}

// Load applies the full precedence chain. A missing or unreadable file
// falls back to the environment layer silently.
func Load(path string) *Config {
	cfg := LoadFromEnv()
	if path != "" {
		if fileCfg, err := LoadFromFile(path); err == nil {
			cfg = fileCfg
		}
	}
	return cfg
}

// Package app wires every component together and owns their lifecycles.
package app

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/yogami/AIVoiceTranslator-sub012/internal/api"
	"github.com/yogami/AIVoiceTranslator-sub012/internal/config"
	"github.com/yogami/AIVoiceTranslator-sub012/internal/heartbeat"
	"github.com/yogami/AIVoiceTranslator-sub012/internal/lifecycle"
	"github.com/yogami/AIVoiceTranslator-sub012/internal/providers"
	"github.com/yogami/AIVoiceTranslator-sub012/internal/registry"
	"github.com/yogami/AIVoiceTranslator-sub012/internal/router"
	"github.com/yogami/AIVoiceTranslator-sub012/internal/storage"
)

// Application coordinates all system components. Initialization follows
// dependency order: Storage → Lifecycle → Registry → Providers → Router →
// Heartbeat → API → HTTP.
type Application struct {
	config     *config.Config
	store      *storage.Store
	registry   *registry.Registry
	countCache *lifecycle.SessionCountCache
	sweeper    *lifecycle.Sweeper
	monitor    *heartbeat.Monitor
	httpServer *http.Server

	cancelBackground context.CancelFunc
}

// NewApplication builds the component graph from the configuration.
func NewApplication(cfg *config.Config) (*Application, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	store, err := storage.NewStore(cfg.Database.Path, cfg.Database.Timeout)
	if err != nil {
		return nil, fmt.Errorf("failed to open session store: %w", err)
	}

	countCache := lifecycle.NewSessionCountCache(store, cfg.Session.CountRefresh)
	sweeper := lifecycle.NewSweeper(store)

	reg := registry.NewRegistry()

	providerCfg := providers.Config{
		OpenAIAPIKey:     cfg.Providers.OpenAIAPIKey,
		DeepSeekAPIKey:   cfg.Providers.DeepSeekAPIKey,
		ElevenLabsAPIKey: cfg.Providers.ElevenLabsAPIKey,
		ElevenLabsVoice:  cfg.Providers.ElevenLabsVoice,
		WhisperURL:       cfg.Providers.WhisperURL,
		RequestTimeout:   cfg.Providers.RequestTimeout,
	}
	translator := providers.NewTranslationChain(providerCfg)
	transcriber := providers.NewTranscriptionChain(providerCfg)
	synthesis := providers.NewSynthesisChains(providerCfg)

	msgRouter := router.NewRouter(reg, store, translator, transcriber, synthesis, countCache)

	// Evicted sessions are left to the inactivity sweeper; a teacher may
	// reconnect into the same session in the meantime.
	monitor := heartbeat.NewMonitor(reg, cfg.WebSocket.PingInterval, func(conn *registry.Connection) {
		log.Printf("Connection terminated by heartbeat: role=%s session=%s", conn.Role(), conn.SessionID())
	})

	wsHandler := router.NewHandler(reg, msgRouter, router.HandlerConfig{
		WriteBuffer:  cfg.WebSocket.WriteBuffer,
		WriteTimeout: cfg.WebSocket.WriteTimeout,
		ReadTimeout:  cfg.WebSocket.ReadTimeout,
	})

	apiServer := api.NewServer(store, reg, countCache)

	mux := http.NewServeMux()
	mux.Handle("/api/", apiServer)
	mux.Handle("/health", apiServer)
	mux.HandleFunc("/ws", wsHandler.HandleWebSocket)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler:      mux,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	return &Application{
		config:     cfg,
		store:      store,
		registry:   reg,
		countCache: countCache,
		sweeper:    sweeper,
		monitor:    monitor,
		httpServer: httpServer,
	}, nil
}

// Start launches the background loops and the HTTP listener. It returns
// once the listener is accepting connections or has failed to bind.
func (app *Application) Start(ctx context.Context) error {
	log.Printf("Starting voice translator on %s", app.httpServer.Addr)

	bgCtx, cancel := context.WithCancel(context.Background())
	app.cancelBackground = cancel

	go app.countCache.Start(bgCtx)
	go app.sweeper.Start(bgCtx, app.config.Session.SweepInterval, app.config.Session.InactivityTimeout)
	go app.monitor.Start(bgCtx)

	serverErrCh := make(chan error, 1)
	go func() {
		if err := app.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrCh <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	select {
	case err := <-serverErrCh:
		cancel()
		return err
	case <-time.After(100 * time.Millisecond):
		log.Printf("Voice translator started")
		return nil
	case <-ctx.Done():
		cancel()
		return ctx.Err()
	}
}

// Stop shuts components down in reverse dependency order: HTTP listener,
// background loops, then the store.
func (app *Application) Stop(ctx context.Context) error {
	log.Printf("Shutting down voice translator")

	if err := app.httpServer.Shutdown(ctx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}

	if app.cancelBackground != nil {
		app.cancelBackground()
	}

	if err := app.store.Close(); err != nil {
		log.Printf("Session store shutdown error: %v", err)
	}

	log.Printf("Voice translator shutdown complete")
	return nil
}

// Addr returns the listener address.
func (app *Application) Addr() string {
	return app.httpServer.Addr
}

// cmd/penchant-web serves the web chat: a websocket endpoint that runs one
// elicitation session per connection, plus a small REST API over the stored
// preferences.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/scrypster/penchant/internal/config"
	"github.com/scrypster/penchant/internal/extract"
	"github.com/scrypster/penchant/internal/llm"
	"github.com/scrypster/penchant/internal/session"
	"github.com/scrypster/penchant/internal/store"
	"github.com/scrypster/penchant/internal/store/postgres"
	"github.com/scrypster/penchant/web/handlers"
)

func main() {
	log.SetOutput(os.Stderr)
	log.SetPrefix("penchant-web: ")
	log.SetFlags(log.LstdFlags)

	configPath := flag.String("config", "", "optional YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	prefs, err := openStore(cfg)
	if err != nil {
		log.Fatalf("failed to open preference store: %v", err)
	}
	defer prefs.Close()

	gen, err := llm.NewTextGenerator(factoryConfig(cfg))
	if err != nil {
		log.Fatalf("failed to create generation gateway: %v", err)
	}

	var sessionLog *session.Log
	if cfg.Storage.SessionLogPath != "" {
		sessionLog, err = session.OpenLog(cfg.Storage.SessionLogPath)
		if err != nil {
			log.Printf("warning: session logging disabled: %v", err)
		} else {
			defer sessionLog.Close()
		}
	}

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)

	chat := &handlers.ChatHandler{
		NewSession: func() *session.Controller {
			return session.NewController(extract.New(gen), prefs, session.Config{
				WindowSize: cfg.Session.WindowSize,
				MaxTurns:   cfg.Session.MaxTurns,
			})
		},
		Log:            sessionLog,
		OriginPatterns: []string{addr, fmt.Sprintf("localhost:%d", cfg.Server.Port)},
	}

	mux := http.NewServeMux()
	mux.Handle("/ws/chat", chat)
	handlers.NewAPIHandlers(prefs).RegisterRoutes(mux)

	burst := int(cfg.Server.RateLimit) * 2
	if burst < 1 {
		burst = 1
	}
	limiter := handlers.NewRateLimiter(cfg.Server.RateLimit, burst)
	srv := &http.Server{
		Addr:              addr,
		Handler:           handlers.RateLimitMiddleware(mux, limiter),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown on SIGINT / SIGTERM.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("received shutdown signal")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			log.Printf("shutdown error: %v", err)
		}
	}()

	log.Printf("ready — chat on ws://%s/ws/chat, API on http://%s/api/preferences", addr, addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("server failed: %v", err)
	}
}

// openStore builds the configured preference store backend.
func openStore(cfg *config.Config) (store.PreferenceStore, error) {
	embedder, err := llm.NewEmbeddingGenerator(factoryConfig(cfg))
	if err != nil {
		return nil, err
	}

	switch cfg.Storage.Engine {
	case "postgres":
		return postgres.New(cfg.Storage.PostgresDSN, embedder,
			postgres.WithMergeThreshold(cfg.Storage.MergeThreshold))
	case "jsonfile", "":
		if dir := filepath.Dir(cfg.Storage.PreferencesPath); dir != "" {
			if err := os.MkdirAll(dir, 0o700); err != nil {
				return nil, fmt.Errorf("creating data directory %q: %w", dir, err)
			}
		}
		return store.NewFileStore(cfg.Storage.PreferencesPath, embedder,
			store.WithMergeThreshold(cfg.Storage.MergeThreshold))
	default:
		return nil, fmt.Errorf("unsupported storage engine: %q", cfg.Storage.Engine)
	}
}

// factoryConfig maps the loaded configuration onto the gateway factory.
func factoryConfig(cfg *config.Config) llm.FactoryConfig {
	fc := llm.FactoryConfig{
		Provider: cfg.LLM.Provider,
		Timeout:  cfg.LLM.Timeout,
	}
	switch cfg.LLM.Provider {
	case "openai":
		fc.APIKey = cfg.LLM.OpenAIAPIKey
		fc.Model = cfg.LLM.OpenAIModel
		fc.EmbeddingModel = cfg.LLM.OpenAIEmbeddingModel
	default:
		fc.BaseURL = cfg.LLM.OllamaURL
		fc.Model = cfg.LLM.OllamaModel
		fc.EmbeddingModel = cfg.LLM.OllamaEmbeddingModel
	}
	return fc
}

// cmd/penchant is the interactive terminal client for preference elicitation.
// It runs one session: the controller greets the user, reads turns from
// stdin, and writes replies to stdout until the session closes.
//
// All logging goes to stderr so the conversation on stdout stays clean.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/scrypster/penchant/internal/config"
	"github.com/scrypster/penchant/internal/extract"
	"github.com/scrypster/penchant/internal/llm"
	"github.com/scrypster/penchant/internal/session"
	"github.com/scrypster/penchant/internal/store"
	"github.com/scrypster/penchant/internal/store/postgres"
	"github.com/scrypster/penchant/pkg/types"
)

func main() {
	log.SetOutput(os.Stderr)
	log.SetPrefix("penchant: ")
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

	ctrl := session.NewController(extract.New(gen), prefs, session.Config{
		WindowSize: cfg.Session.WindowSize,
		MaxTurns:   cfg.Session.MaxTurns,
	})

	ctx := context.Background()
	runSession(ctx, ctrl, prefs)

	if sessionLog != nil {
		if err := sessionLog.Save(ctx, ctrl.State(), ctrl.Phase()); err != nil {
			log.Printf("failed to save session transcript: %v", err)
		}
	}
}

// runSession drives the stdin/stdout chat loop until the session closes or
// stdin ends.
func runSession(ctx context.Context, ctrl *session.Controller, prefs store.PreferenceStore) {
	out := bufio.NewWriter(os.Stdout)
	say := func(text string) {
		fmt.Fprintf(out, "penchant> %s\n", text)
		_ = out.Flush()
	}

	say(ctrl.Greeting())

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Fprint(out, "you> ")
		_ = out.Flush()
		if !scanner.Scan() {
			return
		}
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}

		if text == "/list" {
			records, err := prefs.ListAll(ctx)
			if err != nil {
				say("I couldn't read the stored preferences just now.")
				log.Printf("list failed: %v", err)
				continue
			}
			say("Here's everything I know so far:\n" + session.FormatForPrompt(records))
			continue
		}

		reply, err := ctrl.HandleTurn(ctx, text)
		if err != nil {
			log.Fatalf("session failed: %v", err)
		}
		say(reply)

		if ctrl.Phase() == types.PhaseClosing {
			return
		}
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

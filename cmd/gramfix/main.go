package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/mlorentedev/gramfix/internal/adapter"
	"github.com/mlorentedev/gramfix/internal/bundle"
	"github.com/mlorentedev/gramfix/internal/config"
	"github.com/mlorentedev/gramfix/internal/corrector"
	"github.com/mlorentedev/gramfix/internal/server"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	configPath := flag.String("config", "", "path to config.yaml")
	envFile := flag.String("env-file", ".env", "dotenv file loaded before the environment is read")
	useMock := flag.Bool("mock", false, "serve only the mock adapter, without model artifacts")
	port := flag.Int("port", 0, "override listen port")
	modelDir := flag.String("model-dir", "", "override the model bundle directory")
	preload := flag.Bool("preload", true, "load the model bundle before accepting requests")
	flag.Parse()

	if err := config.LoadDotEnv(*envFile); err != nil {
		log.Fatalf("env: %v", err)
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if *port > 0 {
		cfg.Port = *port
	}
	if *modelDir != "" {
		cfg.ModelDir = *modelDir
	}
	if flag.CommandLine.Changed("preload") {
		cfg.Preload = *preload
	}

	logger, err := config.NewLogger(os.Stderr, cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	slog.SetDefault(logger)

	adapters, models, loader := buildAdapters(cfg, *useMock)

	if loader != nil && cfg.Preload {
		start := time.Now()
		if _, err := loader.Load(); err != nil {
			log.Fatalf("model: %v", err)
		}
		log.Printf("model: bundle ready from %s in %s", cfg.ModelDir, time.Since(start).Round(time.Millisecond))
	}

	handler := server.SetupMux(adapters, models, cfg.APIKey, cfg.RateLimit, version)

	if cfg.APIKey != "" {
		log.Println("auth: API key required (X-API-Key header)")
	} else {
		log.Println("auth: disabled (no api_key configured)")
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("gramfix %s listening on %s", version, addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server: %v", err)
		}
	}()

	<-done
	log.Println("shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("shutdown: %v", err)
	}
	log.Println("server stopped")
}

// buildAdapters registers the local T5 corrector and, when configured, an
// Ollama model for comparison. The returned loader is nil in mock mode.
func buildAdapters(cfg config.Config, useMock bool) (map[string]adapter.Adapter, []adapter.ModelInfo, *bundle.Loader) {
	adapters := make(map[string]adapter.Adapter)
	var models []adapter.ModelInfo

	if useMock {
		adapters["mock"] = &adapter.MockAdapter{Delay: 500 * time.Millisecond}
		models = append(models, adapter.ModelInfo{ID: "mock", Name: "Mock (dev)", Provider: "mock"})
		log.Println("mode: mock adapter enabled")
		return adapters, models, nil
	}

	loader := bundle.NewLoader(cfg.ModelDir)
	local := &adapter.LocalAdapter{
		Loader:    loader,
		Corrector: corrector.New(corrector.Options{TaskPrefix: cfg.TaskPrefix, MaxLength: cfg.MaxLength}),
	}
	adapters["t5-local"] = local
	models = append(models, adapter.ModelInfo{ID: "t5-local", Name: local.Name(), Provider: "local"})
	log.Printf("mode: local t5 from %s (max_length %d)", cfg.ModelDir, cfg.MaxLength)

	if cfg.OllamaURL != "" {
		ollama := &adapter.OllamaAdapter{
			BaseURL: cfg.OllamaURL,
			Model:   cfg.OllamaModel,
			Client:  &http.Client{Timeout: 60 * time.Second},
		}
		adapters[cfg.OllamaModel] = ollama
		models = append(models, adapter.ModelInfo{ID: cfg.OllamaModel, Name: ollama.Name(), Provider: "ollama"})
		log.Printf("mode: ollama at %s (model: %s)", cfg.OllamaURL, cfg.OllamaModel)
	}

	return adapters, models, loader
}

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lysyi3m/rss-digest/app/api"
	"github.com/lysyi3m/rss-digest/app/cfg"
	"github.com/lysyi3m/rss-digest/app/feed"
	"github.com/lysyi3m/rss-digest/app/publish"
	"github.com/lysyi3m/rss-digest/app/tasks"
)

func main() {
	appCfg, err := cfg.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	if appCfg == nil {
		// Help was shown
		return
	}

	setupLogger(appCfg.Debug)

	slog.Info("Starting RSS Digest",
		"version", appCfg.Version,
		"sources", appCfg.SourcesFile,
		"output_dir", appCfg.OutputDir,
		"workers", appCfg.WorkerCount,
		"timezone", appCfg.Timezone)

	registry := feed.NewRegistryCache(appCfg.SourcesFile, appCfg.Timeout)

	// Per-source timeouts are applied by the fetcher
	fetcher := feed.NewFetcher(&http.Client{}, feed.NewParser(), appCfg.UserAgent)
	runner := tasks.NewRunner(fetcher, feed.NewFilterer(), appCfg.WorkerCount)

	generator := publish.NewGenerator(appCfg.Version)
	site := publish.NewJekyll(appCfg.OutputDir, registry, generator, appCfg.BaseUrl, appCfg.PostLimit, appCfg.IndexLimit)

	pipeline := tasks.NewPipeline(registry, runner, site)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	corpus, err := pipeline.Refresh(ctx)
	if err != nil {
		slog.Error("Run failed", "error", err)
		if !appCfg.Serve {
			os.Exit(1)
		}
	} else {
		logReport(corpus)
	}

	if !appCfg.Serve {
		return
	}

	if err := serve(ctx, appCfg, api.NewHandler(pipeline, registry, generator, appCfg.BaseUrl, appCfg.PostLimit)); err != nil {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}
}

func setupLogger(debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}

	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler))
}

func logReport(corpus *feed.Corpus) {
	slog.Info("Run summary",
		"run_id", corpus.RunID,
		"posts", len(corpus.Posts),
		"sources", len(corpus.Sources()),
		"categories", len(corpus.Categories()),
		"errors", len(corpus.Errors))

	for _, sourceErr := range corpus.Errors {
		slog.Warn("Source error", "source", sourceErr.Source, "kind", sourceErr.Kind(), "error", sourceErr.Err)
	}
}

func serve(ctx context.Context, appCfg *cfg.Cfg, handler *api.Handler) error {
	httpServer := &http.Server{
		Addr:         ":" + appCfg.Port,
		Handler:      api.NewServer(handler, appCfg.APIAccessKey),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		slog.Info("Starting HTTP server", "port", appCfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		slog.Info("Shutdown signal received")
	case err := <-serverErrChan:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("HTTP server shutdown error: %w", err)
	}

	slog.Info("HTTP server stopped")
	return nil
}

// Package main provides the HTTP server and diary autowriter for diarist.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/raphaelgruber/diarist/internal/config"
	"github.com/raphaelgruber/diarist/internal/db"
	"github.com/raphaelgruber/diarist/internal/llm"
	"github.com/raphaelgruber/diarist/internal/metrics"
	"github.com/raphaelgruber/diarist/internal/rag"
	"github.com/raphaelgruber/diarist/internal/server"
	"github.com/raphaelgruber/diarist/internal/service"
)

func main() {
	// Parse flags
	wipeDB := flag.Bool("wipe", false, "wipe all data from database on startup (testing only)")
	noSweep := flag.Bool("no-sweep", false, "disable the diary autowriter")
	flag.Parse()

	// Load configuration
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logging
	logger, closeLog := config.SetupLogger(cfg.LogFile, cfg.LogLevel)
	defer func() { _ = closeLog() }()
	slog.SetDefault(logger)

	slog.Info("starting diarist-server", "port", cfg.ServerPort, "timezone", cfg.Timezone)

	if err := run(cfg, logger, *wipeDB || os.Getenv("DIARIST_WIPE_DB") == "true", !*noSweep); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}

func run(cfg config.Config, logger *slog.Logger, wipe, sweep bool) error {
	mc := metrics.NewCollector()
	loc := cfg.Location()

	// Connect to database
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	dbClient, err := db.NewClient(ctx, db.Config{
		URL:       cfg.SurrealDBURL,
		Namespace: cfg.SurrealDBNamespace,
		Database:  cfg.SurrealDBDatabase,
		Username:  cfg.SurrealDBUser,
		Password:  cfg.SurrealDBPass,
		AuthLevel: cfg.SurrealDBAuthLevel,
	}, logger, mc)
	if err != nil {
		cancel()
		return fmt.Errorf("connect to database: %w", err)
	}
	defer func() {
		if err := dbClient.Close(context.Background()); err != nil {
			slog.Error("failed to close database", "error", err)
		}
	}()

	// Wipe database if requested (via flag or env var)
	if wipe {
		if err := dbClient.WipeData(ctx); err != nil {
			cancel()
			return fmt.Errorf("wipe database: %w", err)
		}
	}
	if err := dbClient.InitSchema(ctx); err != nil {
		cancel()
		return fmt.Errorf("initialize schema: %w", err)
	}
	cancel()

	// LLM models: one for chat, one for diary summaries and classification
	chatModel, err := llm.NewModel(cfg, cfg.LLMModel, mc)
	if err != nil {
		return fmt.Errorf("init chat model: %w", err)
	}
	summaryModel := chatModel
	if cfg.SummaryModel != cfg.LLMModel {
		if summaryModel, err = llm.NewModel(cfg, cfg.SummaryModel, mc); err != nil {
			return fmt.Errorf("init summary model: %w", err)
		}
	}

	diaries := service.NewDiaryService(service.DiaryDeps{
		Store:      dbClient,
		Summarizer: summaryModel,
		Classifier: summaryModel,
		Location:   loc,
		Logger:     logger,
		Metrics:    mc,
	})

	chatDeps := service.ChatDeps{
		Store:         dbClient,
		Model:         chatModel,
		Diaries:       diaries,
		ContextWindow: cfg.ContextWindow,
		Location:      loc,
		Logger:        logger,
		Metrics:       mc,
	}
	if cfg.RAGURL != "" {
		chatDeps.Retriever = rag.NewClient(cfg.RAGURL, cfg.RAGTimeout, mc)
	}
	chat := service.NewChatService(chatDeps)
	jobs := service.NewJobManager(diaries, logger)

	srv := server.New(server.Deps{
		Diaries: diaries,
		Chat:    chat,
		Jobs:    jobs,
		Health:  dbClient,
		Metrics: mc,
		Logger:  logger,
	})
	defer srv.Close()

	runCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if sweep {
		aw := service.NewAutowriter(dbClient, diaries, service.AutowriterConfig{
			Interval:    cfg.SweepInterval,
			Tolerance:   cfg.SweepTolerance,
			Concurrency: cfg.SweepConcurrency,
		}, loc, logger, mc)
		go func() {
			if err := aw.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("autowriter stopped", "error", err)
			}
		}()
	}

	// Create HTTP server
	httpServer := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      srv.Handler(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 60 * time.Second, // Long for LLM responses
		IdleTimeout:  120 * time.Second,
	}

	// Start server in goroutine
	errCh := make(chan error, 1)
	go func() {
		slog.Info("API available", "url", fmt.Sprintf("http://localhost:%s/", cfg.ServerPort))
		slog.Info("diary events available", "url", fmt.Sprintf("ws://localhost:%s/ws/diary", cfg.ServerPort))

		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Wait for interrupt signal or a listener failure
	select {
	case <-runCtx.Done():
	case err := <-errCh:
		return err
	}

	slog.Info("shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	return nil
}

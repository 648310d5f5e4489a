package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/josinaldojr/pdf-chat-rag/internal/config"
	"github.com/josinaldojr/pdf-chat-rag/internal/db"
	apphttp "github.com/josinaldojr/pdf-chat-rag/internal/http"
	"github.com/josinaldojr/pdf-chat-rag/internal/llm"
	"github.com/josinaldojr/pdf-chat-rag/internal/logging"
	"github.com/josinaldojr/pdf-chat-rag/internal/rag"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	log := logging.New(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var repo rag.Repository
	if cfg.DatabaseURL != "" {
		pool, err := db.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer pool.Close()

		if err := db.Migrate(cfg.DatabaseURL, log); err != nil {
			log.Error("failed to run migrations", "error", err)
			os.Exit(1)
		}
		repo = rag.NewPgRepository(pool)
	} else {
		log.Warn("DATABASE_URL not set, using in-memory storage")
		repo = rag.NewMemoryRepository()
	}

	geminiClient, err := llm.NewGeminiClient(ctx, cfg.GeminiAPIKey)
	if err != nil {
		log.Error("failed to init Gemini client", "error", err)
		os.Exit(1)
	}

	ragService := rag.NewService(repo, geminiClient, geminiClient, rag.Options{
		ChunkSize: cfg.ChunkSize,
		TopK:      cfg.TopK,
	})

	h := apphttp.NewHandler(ragService, log, apphttp.Options{
		MaxUploadBytes: cfg.MaxUploadBytes(),
		RequestTimeout: cfg.RequestTimeout,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           apphttp.NewRouter(h, log, cfg.AllowedOrigins),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("shutdown failed", "error", err)
		}
	}()

	log.Info("API listening", "addr", srv.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("server stopped", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped gracefully")
}

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/josinaldojr/pdf-chat-rag/internal/config"
	"github.com/josinaldojr/pdf-chat-rag/internal/db"
	"github.com/josinaldojr/pdf-chat-rag/internal/llm"
	"github.com/josinaldojr/pdf-chat-rag/internal/logging"
	"github.com/josinaldojr/pdf-chat-rag/internal/rag"
)

func main() {
	pathFlag := flag.String("path", "", "file or directory to import (.pdf/.html/.htm/.md/.txt)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	// stdout carries the pdf_id listing
	log := logging.New(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat, Output: os.Stderr})

	if *pathFlag == "" {
		log.Error("required: --path")
		os.Exit(2)
	}
	if cfg.DatabaseURL == "" {
		log.Error("DATABASE_URL is required for imports")
		os.Exit(2)
	}

	ctx := context.Background()

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

	geminiClient, err := llm.NewGeminiClient(ctx, cfg.GeminiAPIKey)
	if err != nil {
		log.Error("failed to init Gemini client", "error", err)
		os.Exit(1)
	}

	svc := rag.NewService(rag.NewPgRepository(pool), geminiClient, geminiClient, rag.Options{
		ChunkSize: cfg.ChunkSize,
		TopK:      cfg.TopK,
	})

	n, err := importPath(ctx, svc, log, os.Stdout, *pathFlag)
	if err != nil {
		log.Error("import failed", "error", err)
		os.Exit(1)
	}
	log.Info("import finished", "documents", n)
}

// importPath ingests every supported file under root, writes one
// "pdf_id<TAB>path" line per stored document to out and returns how many
// were stored. Files without text are skipped.
func importPath(ctx context.Context, svc *rag.Service, log *slog.Logger, out io.Writer, root string) (int, error) {
	imported := 0

	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !isSupportedFile(path) {
			return nil
		}

		text, err := extractText(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}

		res, err := svc.IngestText(ctx, filepath.Base(path), text)
		if errors.Is(err, rag.ErrEmptyDocument) {
			log.Warn("skipping file without text", "path", path)
			return nil
		}
		if err != nil {
			return fmt.Errorf("ingest %s: %w", path, err)
		}

		imported++
		log.Info("document imported", "path", path, "pdf_id", res.PDFID, "chunks", res.NumberOfChunks)
		fmt.Fprintf(out, "%s\t%s\n", res.PDFID, path)
		return nil
	})

	return imported, err
}

func isSupportedFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf", ".html", ".htm", ".md", ".txt":
		return true
	}
	return false
}

func extractText(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return rag.ExtractPDFText(data)
	case ".html", ".htm":
		return rag.ExtractHTMLText(string(data)), nil
	default:
		return rag.SanitizeUTF8(string(data)), nil
	}
}

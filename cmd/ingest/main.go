package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"

	"github.com/proplens/go-crm-agent/internal/adapter/ai"
	"github.com/proplens/go-crm-agent/internal/adapter/extract"
	"github.com/proplens/go-crm-agent/internal/adapter/ocr"
	"github.com/proplens/go-crm-agent/internal/adapter/store"
	"github.com/proplens/go-crm-agent/internal/service"
	"github.com/proplens/go-crm-agent/pkg/config"

	_ "github.com/lib/pq"
)

// Offline ingestion tool: loads brochures from a directory, seeds the
// NL->SQL training corpus and imports leads from CSV without going through
// the HTTP surface.
func main() {
	var (
		dir       = flag.String("dir", "", "directory of brochure PDFs to ingest (defaults to BROCHURES_DIR)")
		project   = flag.String("project", "", "project name for ingested brochures (defaults to each PDF's title)")
		leadsCSV  = flag.String("leads", "", "path to a leads CSV to import")
		seedTrain = flag.Bool("seed-training", false, "seed the SQL training corpus")
	)
	flag.Parse()

	_ = godotenv.Load()
	cfg := config.Load()
	ctx := context.Background()

	pgStore, err := store.NewPostgresStore(cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pgStore.Close()

	if err := pgStore.Migrate(ctx); err != nil {
		slog.Error("failed to migrate schema", "error", err)
		os.Exit(1)
	}

	ollamaAI := ai.NewOllamaProvider(
		ai.OllamaEndpointConfig{
			BaseURL: cfg.OllamaEmbedURL,
			Model:   cfg.OllamaEmbedModel,
			Token:   cfg.OllamaEmbedToken,
		},
		ai.OllamaEndpointConfig{
			BaseURL: cfg.OllamaChatURL,
			Model:   cfg.OllamaChatModel,
			Token:   cfg.OllamaChatToken,
		},
	)

	brochureIndex := store.NewVectorIndex(pgStore, ollamaAI, cfg.BrochureTable, cfg.EmbeddingDimension)
	trainingIndex := store.NewVectorIndex(pgStore, ollamaAI, cfg.TrainingTable, cfg.EmbeddingDimension)
	for _, index := range []*store.VectorIndex{brochureIndex, trainingIndex} {
		if err := index.EnsureSchema(ctx); err != nil {
			slog.Error("failed to ensure vector schema", "error", err)
			os.Exit(1)
		}
	}

	if *seedTrain {
		querygen := service.NewQueryGenService(trainingIndex, ollamaAI)
		written, err := querygen.Seed(ctx)
		if err != nil {
			slog.Error("failed to seed training corpus", "error", err)
			os.Exit(1)
		}
		slog.Info("seeded training corpus", "items", written)
	}

	if *leadsCSV != "" {
		f, err := os.Open(*leadsCSV)
		if err != nil {
			slog.Error("failed to open leads CSV", "path", *leadsCSV, "error", err)
			os.Exit(1)
		}
		inserted, err := pgStore.ImportLeadsCSV(ctx, f)
		f.Close()
		if err != nil {
			slog.Error("failed to import leads", "path", *leadsCSV, "error", err)
			os.Exit(1)
		}
		slog.Info("imported leads", "path", *leadsCSV, "inserted", inserted)
	}

	brochuresDir := *dir
	if brochuresDir == "" && !*seedTrain && *leadsCSV == "" {
		brochuresDir = cfg.BrochuresDir
	}
	if brochuresDir == "" {
		return
	}

	tesseract := ocr.NewTesseractProvider(cfg.OCRLanguage)
	extractor := extract.NewPDFExtractor(tesseract, cfg.OCRTextFloor, cfg.PageMinChars)
	chunker, err := service.NewTokenChunker(cfg.TokenEncoding, cfg.ChunkTokens, cfg.ChunkOverlap)
	if err != nil {
		slog.Error("failed to init tokenizer", "error", err)
		os.Exit(1)
	}
	ingest := service.NewIngestService(extractor, chunker, ollamaAI, brochureIndex, cfg.BrochuresDir)

	entries, err := os.ReadDir(brochuresDir)
	if err != nil {
		slog.Error("failed to read brochures directory", "dir", brochuresDir, "error", err)
		os.Exit(1)
	}

	ingested, failed := 0, 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(strings.ToLower(entry.Name()), ".pdf") {
			continue
		}
		path := filepath.Join(brochuresDir, entry.Name())

		name := *project
		if name == "" {
			name = extract.ReadTitle(path)
		}
		if name == "" {
			slog.Warn("skipping PDF without project name or title", "path", path)
			failed++
			continue
		}

		report, err := ingest.IngestPDF(ctx, path, name)
		if err != nil {
			slog.Error("failed to ingest brochure", "path", path, "error", err)
			failed++
			continue
		}
		slog.Info("brochure ingested",
			"path", path,
			"project", report.ProjectName,
			"pages", report.PagesProcessed,
			"ocr_pages", report.OCRPages,
			"chunks", report.InsertedChunks,
		)
		ingested++
	}

	slog.Info("ingestion complete", "ingested", ingested, "failed", failed)
	if failed > 0 {
		os.Exit(1)
	}
}

package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/joho/godotenv"

	"github.com/proplens/go-crm-agent/internal/adapter/ai"
	"github.com/proplens/go-crm-agent/internal/adapter/extract"
	"github.com/proplens/go-crm-agent/internal/adapter/ocr"
	"github.com/proplens/go-crm-agent/internal/adapter/store"
	"github.com/proplens/go-crm-agent/internal/handler"
	"github.com/proplens/go-crm-agent/internal/middleware"
	"github.com/proplens/go-crm-agent/internal/service"
	"github.com/proplens/go-crm-agent/pkg/config"

	_ "github.com/lib/pq"
)

func main() {
	// ── Load .env file ───────────────────────────────────────────────────
	_ = godotenv.Load() // silently ignore if .env doesn't exist

	// ── Configuration ────────────────────────────────────────────────────
	cfg := config.Load()

	slog.Info("🚀 Starting Proplens CRM Agent",
		"port", cfg.Port,
		"ollama_embed", cfg.OllamaEmbedURL,
		"ollama_chat", cfg.OllamaChatURL,
	)

	// ── Database ─────────────────────────────────────────────────────────
	pgStore, err := store.NewPostgresStore(cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pgStore.Close()

	ctx := context.Background()
	if err := pgStore.Migrate(ctx); err != nil {
		slog.Error("failed to migrate schema", "error", err)
		os.Exit(1)
	}

	// ── Adapters ─────────────────────────────────────────────────────────
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

	checkpoints := store.NewCheckpointStore(pgStore)
	tesseract := ocr.NewTesseractProvider(cfg.OCRLanguage)
	extractor := extract.NewPDFExtractor(tesseract, cfg.OCRTextFloor, cfg.PageMinChars)

	chunker, err := service.NewTokenChunker(cfg.TokenEncoding, cfg.ChunkTokens, cfg.ChunkOverlap)
	if err != nil {
		slog.Error("failed to init tokenizer", "error", err)
		os.Exit(1)
	}

	// ── Services ─────────────────────────────────────────────────────────
	ingestService := service.NewIngestService(extractor, chunker, ollamaAI, brochureIndex, cfg.BrochuresDir)
	retrievalService := service.NewRetrievalService(brochureIndex, ollamaAI, cfg.MaxAnswerWords)
	routerService := service.NewRouterService(ollamaAI, cfg.HistorySize)
	querygenService := service.NewQueryGenService(trainingIndex, ollamaAI)
	executor := service.NewSQLExecutor(pgStore)

	agentService := service.NewAgentService(
		routerService,
		retrievalService,
		querygenService,
		executor,
		checkpoints,
		cfg.ConfidenceFloor,
		cfg.HistorySize,
		cfg.RetrievalTopK,
	)

	// ── Fiber App ────────────────────────────────────────────────────────
	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
	})

	// Global middleware
	app.Use(recover.New())
	app.Use(fiberlogger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: []string{cfg.FrontendURL},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept"},
		AllowMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
	}))

	// Audit middleware (logs all requests)
	app.Use(middleware.AuditMiddleware(pgStore))

	// Health check
	app.Get("/api/v1/health", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "healthy",
			"app":     cfg.AppName,
			"version": "1.0.0",
		})
	})

	// ── Routes ───────────────────────────────────────────────────────────
	api := app.Group("/api/v1")

	agentHandler := handler.NewAgentHandler(agentService)
	agentHandler.Register(api)

	docsHandler := handler.NewDocsHandler(ingestService, retrievalService)
	docsHandler.Register(api)

	leadsHandler := handler.NewLeadsHandler(pgStore)
	leadsHandler.Register(api)

	// ── Start ────────────────────────────────────────────────────────────
	slog.Info("🌐 Fiber listening", "port", cfg.Port)
	if err := app.Listen(":" + cfg.Port); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

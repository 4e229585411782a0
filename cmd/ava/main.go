package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/ent0n29/ava/internal/activity"
	"github.com/ent0n29/ava/internal/checkpoint"
	"github.com/ent0n29/ava/internal/config"
	"github.com/ent0n29/ava/internal/embedding"
	"github.com/ent0n29/ava/internal/graph"
	"github.com/ent0n29/ava/internal/httpapi"
	"github.com/ent0n29/ava/internal/llm"
	"github.com/ent0n29/ava/internal/logging"
	"github.com/ent0n29/ava/internal/memory"
	"github.com/ent0n29/ava/internal/observability"
	"github.com/ent0n29/ava/internal/retrieval"
)

func main() {
	ingestPath := flag.String("ingest", "", "ingest a text/markdown document into the knowledge base and exit")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	logger, err := logging.New(cfg.Production)
	if err != nil {
		log.Fatalf("logger init failed: %v", err)
	}
	defer logger.Sync()

	ctx := context.Background()

	var embedder embedding.Embedder
	if cfg.LLMAPIKey != "" {
		embedder = embedding.NewOpenAI(embedding.OpenAIConfig{
			APIKey:  cfg.LLMAPIKey,
			BaseURL: cfg.LLMBaseURL,
			Model:   cfg.EmbeddingModel,
			Dim:     cfg.EmbeddingDim,
		})
	} else {
		logger.Warn("no LLM api key set, using deterministic mock embeddings")
		embedder = embedding.NewMock(cfg.EmbeddingDim)
	}
	embedder = embedding.NewCached(embedder, cfg.EmbeddingCacheTTL)

	memoryStore, err := memory.NewStore(ctx, memory.Options{
		Backend:     cfg.MemoryBackend,
		DatabaseURL: cfg.DatabaseURL,
		ChromemPath: cfg.ChromemPath,
	}, embedder, logger)
	if err != nil {
		logger.Fatal("memory store init failed", zap.Error(err))
	}
	defer memoryStore.Close()

	ingester := retrieval.NewIngester(memoryStore, logger)
	if *ingestPath != "" {
		n, err := ingester.IngestFile(ctx, *ingestPath)
		if err != nil {
			logger.Fatal("ingest failed", zap.String("path", *ingestPath), zap.Error(err))
		}
		logger.Info("ingest complete", zap.Int("chunks", n))
		return
	}

	checkpointStore, err := checkpoint.NewStore(ctx, checkpoint.Options{
		Backend:     cfg.CheckpointBackend,
		DatabaseURL: cfg.DatabaseURL,
		RedisURL:    cfg.RedisURL,
	}, logger)
	if err != nil {
		logger.Fatal("checkpoint store init failed", zap.Error(err))
	}
	defer checkpointStore.Close()

	var model llm.Client
	if cfg.LLMAPIKey != "" {
		model = llm.NewOpenAI(llm.OpenAIConfig{
			APIKey:            cfg.LLMAPIKey,
			BaseURL:           cfg.LLMBaseURL,
			DefaultModel:      cfg.LLMModel,
			StructuredRetries: cfg.LLMStructuredRetry,
			RequestTimeout:    cfg.LLMRequestTimeout,
		})
	} else {
		logger.Warn("no LLM api key set, using mock completions")
		model = llm.NewMock()
	}

	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	engine := graph.New(graph.Config{
		Model:                   cfg.LLMModel,
		SmallModel:              cfg.LLMSmallModel,
		Temperature:             float32(cfg.LLMTemperature),
		SmallTemperature:        float32(cfg.LLMSmallTemperature),
		MemoryTopK:              cfg.MemoryTopK,
		RouterMessagesToAnalyze: cfg.RouterMessagesToAnalyze,
		SummaryTrigger:          cfg.SummaryTrigger,
		MessagesAfterSummary:    cfg.MessagesAfterSummary,
		MaxRetrievalAttempts:    cfg.MaxRetrievalAttempts,
	}, graph.Deps{
		Checkpoint: checkpointStore,
		LLM:        model,
		Memory:     memoryStore,
		Retrieval:  retrieval.NewService(memoryStore, cfg.RagTopK, logger),
		Activity:   activity.NewScheduleProvider(nil),
		Metrics:    metrics,
		Log:        logger,
	})

	api := httpapi.New(cfg, engine, ingester, metrics, logger)
	httpServer := &http.Server{
		Addr:    cfg.BindAddr,
		Handler: api.Router(),
	}

	go func() {
		logger.Info("server listening", zap.String("addr", cfg.BindAddr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("listen error", zap.Error(err))
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("graceful shutdown failed", zap.Error(err))
		_ = httpServer.Close()
	}

	logger.Info("shutdown complete")
}

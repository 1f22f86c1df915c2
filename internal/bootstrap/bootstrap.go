package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kirillkom/rag-context-engine/internal/config"
	"github.com/kirillkom/rag-context-engine/internal/core/ports"
	"github.com/kirillkom/rag-context-engine/internal/core/usecase"
	lookupcache "github.com/kirillkom/rag-context-engine/internal/infrastructure/cache/memory"
	"github.com/kirillkom/rag-context-engine/internal/infrastructure/llm/ollama"
	"github.com/kirillkom/rag-context-engine/internal/infrastructure/rerank/httprerank"
	"github.com/kirillkom/rag-context-engine/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/rag-context-engine/internal/infrastructure/resilience"
	"github.com/kirillkom/rag-context-engine/internal/infrastructure/tracing/natstrace"
	"github.com/kirillkom/rag-context-engine/internal/infrastructure/vector/memoryindex"
	"github.com/kirillkom/rag-context-engine/internal/infrastructure/vector/qdrant"
)

type App struct {
	Config config.Config

	Pipeline ports.ContextBuilder

	closeFn func()
}

func New(ctx context.Context, cfg config.Config) (*App, error) {
	basePolicy, err := config.LoadPolicy(cfg.RetrievalPolicyPath)
	if err != nil {
		return nil, fmt.Errorf("load retrieval policy: %w", err)
	}

	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	metadataRepo := postgres.NewMetadataRepository(db)
	if err := metadataRepo.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	settingsRepo := postgres.NewSettingsRepository(db, basePolicy)

	executorCfg := resilience.DefaultConfig()
	executorCfg.BreakerEnabled = cfg.BreakerEnabled
	executor := resilience.NewExecutor(executorCfg)

	ollamaClient := ollama.New(cfg.OllamaURL, cfg.OllamaGenModel, cfg.OllamaEmbedModel, executor)
	embedder := ollama.NewEmbedder(ollamaClient)
	generator := ollama.NewGenerator(ollamaClient)

	var index ports.VectorIndex
	if cfg.VectorBackend == "memory" {
		index = memoryindex.New()
	} else {
		index = qdrant.New(cfg.QdrantURL, cfg.QdrantCollection)
	}

	var reranker ports.Reranker
	if cfg.RerankURL != "" {
		reranker = httprerank.New(cfg.RerankURL, cfg.RerankModel)
	}

	lookupCache := newLookupCache(cfg.CacheSweepSeconds)

	var tracer ports.TraceSink
	var traceSink *natstrace.Sink
	if cfg.NATSTracingEnabled {
		traceSink, err = natstrace.New(cfg.NATSURL, cfg.NATSSubject)
		if err != nil {
			return nil, fmt.Errorf("init trace sink: %w", err)
		}
		tracer = traceSink
	}

	pipeline := usecase.NewContextPipeline(
		settingsRepo,
		usecase.NewQueryEnhancer(generator),
		usecase.NewRetriever(embedder, index, metadataRepo, metadataRepo, lookupCache),
		usecase.NewRanker(reranker),
		usecase.NewWindowAssembler(nil),
		tracer,
	)

	return &App{
		Config:   cfg,
		Pipeline: pipeline,

		closeFn: func() {
			if traceSink != nil {
				traceSink.Close()
			}
			lookupCache.Close()
			if err := db.Close(); err != nil {
				slog.Warn("db_close_failed", "error", err)
			}
		},
	}, nil
}

func newLookupCache(sweepSeconds int) *lookupcache.Cache {
	if sweepSeconds <= 0 {
		sweepSeconds = 60
	}
	return lookupcache.New(time.Duration(sweepSeconds) * time.Second)
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}

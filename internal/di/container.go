package di

import (
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"dataroom-rag/internal/adapter/chatmem"
	"dataroom-rag/internal/adapter/dataroomdb"
	"dataroom-rag/internal/adapter/inference"
	"dataroom-rag/internal/adapter/refiner"
	"dataroom-rag/internal/adapter/repository"
	"dataroom-rag/internal/domain"
	"dataroom-rag/internal/infra/config"
	"dataroom-rag/internal/infra/httpclient"
	"dataroom-rag/internal/usecase"
	"dataroom-rag/internal/worker"
)

// ApplicationComponents holds all wired dependencies for the application.
type ApplicationComponents struct {
	ProcessUsecase usecase.ProcessQueryUsecase
	DocumentClient domain.DocumentClient
	ChatStore      domain.ChatStore
	Persister      *worker.AnswerPersister
}

// NewApplicationComponents wires all dependencies from config and database pool.
func NewApplicationComponents(cfg *config.Config, pool *pgxpool.Pool, log *slog.Logger) (*ApplicationComponents, error) {
	// Shared HTTP clients with connection pooling
	inferenceHTTP := httpclient.NewPooledClient(time.Duration(cfg.InferenceTimeout) * time.Second)
	refinerHTTP := httpclient.NewPooledClient(time.Duration(cfg.RefinerTimeout) * time.Second)

	// External clients
	embedder := inference.NewEmbedderClient(cfg.InferenceURL, cfg.InferenceModel, time.Duration(cfg.InferenceTimeout)*time.Second, log, inferenceHTTP)
	generator := inference.NewGeneratorClient(cfg.InferenceURL, cfg.InferenceModel, time.Duration(cfg.InferenceTimeout)*time.Second, log, inferenceHTTP)

	refinerTimeout := time.Duration(cfg.RefinerTimeout) * time.Second
	reranker := refiner.NewRerankerClient(cfg.RefinerURL, cfg.RerankModel, refinerTimeout, log, refinerHTTP)
	compressor := refiner.NewCompressorClient(cfg.RefinerURL, refinerTimeout, log, refinerHTTP)
	grader := refiner.NewGraderClient(cfg.RefinerURL, refinerTimeout, log, refinerHTTP)

	// Search path: pgvector repository wrapped with an LRU cache and an
	// optional rate limiter.
	searchRepo := repository.NewChunkSearchRepository(pool, embedder)
	searcher, err := repository.NewCachedSearcher(searchRepo, cfg.SearchCacheSize, cfg.SearchRateLimit, log)
	if err != nil {
		return nil, err
	}

	// Session memory and best-effort persistence
	chatStore := chatmem.NewStore(time.Duration(cfg.ChatHistoryTTLMinutes) * time.Minute)
	persister := worker.NewAnswerPersister(chatStore, log)

	generateUsecase := usecase.NewGenerateAnswerUsecase(generator, persister, cfg.AnswerMaxTokens, log)

	pipelineCfg := usecase.PipelineConfig{
		Fast:      strategyConfig(cfg.Fast),
		Standard:  strategyConfig(cfg.Standard),
		Expanded:  strategyConfig(cfg.Expanded),
		PageQuery: strategyConfig(cfg.PageQuery),
	}

	processUsecase := usecase.NewProcessQueryUsecase(
		searcher,
		reranker,
		compressor,
		grader,
		usecase.NewSourceBuilder(),
		generateUsecase,
		pipelineCfg,
		log,
	)

	return &ApplicationComponents{
		ProcessUsecase: processUsecase,
		DocumentClient: dataroomdb.NewDocumentClient(pool),
		ChatStore:      chatStore,
		Persister:      persister,
	}, nil
}

func strategyConfig(s config.StrategySearch) usecase.StrategyConfig {
	return usecase.StrategyConfig{
		ResultCount:         s.ResultCount,
		SimilarityThreshold: s.SimilarityThreshold,
		TimeoutMs:           s.TimeoutMs,
	}
}

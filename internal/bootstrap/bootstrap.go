package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/kirillkom/insurance-upsell/internal/config"
	"github.com/kirillkom/insurance-upsell/internal/core/ports"
	"github.com/kirillkom/insurance-upsell/internal/core/usecase"
	"github.com/kirillkom/insurance-upsell/internal/infrastructure/chunking"
	"github.com/kirillkom/insurance-upsell/internal/infrastructure/extractor"
	"github.com/kirillkom/insurance-upsell/internal/infrastructure/extractor/pdf"
	"github.com/kirillkom/insurance-upsell/internal/infrastructure/extractor/plaintext"
	"github.com/kirillkom/insurance-upsell/internal/infrastructure/llm/ollama"
	"github.com/kirillkom/insurance-upsell/internal/infrastructure/queue/nats"
	"github.com/kirillkom/insurance-upsell/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/insurance-upsell/internal/infrastructure/resilience"
	"github.com/kirillkom/insurance-upsell/internal/infrastructure/storage/localfs"
	"github.com/kirillkom/insurance-upsell/internal/infrastructure/vocabulary"
)

type App struct {
	Config config.Config

	// Queue and Uploader are nil when the app was built WithoutQueue.
	Queue       *nats.Queue
	Plans       *usecase.PlanUseCase
	Uploader    *usecase.UploadPolicyUseCase
	Ingestor    *usecase.IngestPolicyUseCase
	Retriever   *usecase.RetrievalUseCase
	Assistant   *usecase.AssistantUseCase
	Recommender *usecase.RecommendUseCase

	closeFn func()
}

type options struct {
	observer ports.IngestionObserver
	noQueue  bool
}

type Option func(*options)

func WithIngestionObserver(o ports.IngestionObserver) Option {
	return func(opts *options) { opts.observer = o }
}

// WithoutQueue skips the NATS connection, for tools that never upload.
func WithoutQueue() Option {
	return func(opts *options) { opts.noQueue = true }
}

func New(ctx context.Context, cfg config.Config, opts ...Option) (*App, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := postgres.EnsureSchema(ctx, db, cfg.EmbeddingDimensions); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	planRepo := postgres.NewPlanRepository(db)
	docRepo := postgres.NewDocumentRepository(db)
	chunkRepo := postgres.NewChunkRepository(db)

	storage, err := localfs.New(cfg.StoragePath)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	vocab, err := loadVocabulary(cfg.VocabularyPath)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	providerResilience := resilience.DefaultConfig()
	providerResilience.Retry.MaxAttempts = cfg.ProviderRetryMaxAttempts
	providerResilience.Retry.AttemptTimeout = time.Duration(cfg.ProviderAttemptTimeoutSeconds) * time.Second
	providerResilience.Breaker.Enabled = cfg.ProviderBreakerEnabled

	ollamaClient := ollama.New(cfg.OllamaURL, cfg.OllamaGenModel, cfg.OllamaEmbedModel,
		ollama.WithExecutor(resilience.NewExecutor(providerResilience)),
		ollama.WithRateLimit(cfg.OllamaRateLimitRPS, cfg.OllamaRateBurst),
		ollama.WithEmbeddingDimensions(cfg.EmbeddingDimensions),
	)
	embedder := ollama.NewEmbedder(ollamaClient)
	generator := ollama.NewGenerator(ollamaClient)

	textExtractor := extractor.NewRouter().
		Register(pdf.NewExtractor(storage), "application/pdf").
		Register(plaintext.NewExtractor(storage), "text/plain", "text/markdown")
	chunker := chunking.NewSplitter(cfg.ChunkSize, cfg.ChunkOverlap)

	retriever := usecase.NewRetrievalUseCase(chunkRepo, vocab, cfg.KeywordScoreFloor)
	assistant := usecase.NewAssistantUseCase(planRepo, chunkRepo, embedder, retriever, vocab, generator, usecase.AssistantConfig{
		SearchTopK:          cfg.SearchTopK,
		AnswerTopK:          cfg.AnswerTopK,
		ProductSummaryTopK:  cfg.ProductSummaryTopK,
		SummaryChunkLimit:   cfg.SummaryChunkLimit,
		SimilarityThreshold: &cfg.SimilarityThreshold,
	})

	ingestOpts := []usecase.IngestOption{
		usecase.WithEmbeddingBatchSize(cfg.EmbeddingBatchSize),
		usecase.WithEmbeddingDimensions(cfg.EmbeddingDimensions),
		usecase.WithClaimLease(time.Duration(cfg.IngestClaimLeaseSeconds)*time.Second),
		usecase.WithSummaryRefresher(assistant),
	}
	if o.observer != nil {
		ingestOpts = append(ingestOpts, usecase.WithIngestionObserver(o.observer))
	}
	ingestor := usecase.NewIngestPolicyUseCase(planRepo, docRepo, chunkRepo, textExtractor, chunker, embedder, ingestOpts...)

	app := &App{
		Config:      cfg,
		Plans:       usecase.NewPlanUseCase(planRepo, docRepo, storage),
		Ingestor:    ingestor,
		Retriever:   retriever,
		Assistant:   assistant,
		Recommender: usecase.NewRecommendUseCase(planRepo),
	}

	if !o.noQueue {
		queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
			ResilienceExecutor: resilience.NewExecutor(resilience.DefaultConfig()),
			HandlerTimeout:     time.Duration(cfg.WorkerIngestTimeoutSeconds) * time.Second,
		})
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("init message queue: %w", err)
		}
		app.Queue = queue
		app.Uploader = usecase.NewUploadPolicyUseCase(planRepo, docRepo, storage, queue, cfg.PublicBaseURL)
	}

	app.closeFn = func() {
		if app.Queue != nil {
			app.Queue.Close()
		}
		_ = db.Close()
	}
	return app, nil
}

func loadVocabulary(path string) (*vocabulary.Vocabulary, error) {
	if path == "" {
		return vocabulary.Default(), nil
	}
	vocab, err := vocabulary.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load vocabulary: %w", err)
	}
	return vocab, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}

package server

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"

	"wellrag/analytics"
	"wellrag/app/agent"
	"wellrag/app/api"
	"wellrag/app/middleware"
	"wellrag/config"
	"wellrag/guard"
	"wellrag/loader/service"
	"wellrag/metrics"
	"wellrag/model"
	"wellrag/pkg/logging"
	"wellrag/retrieval"
	"wellrag/store"
	"wellrag/types"
)

type Server struct {
	cfg     *config.Config
	logger  *logging.Logger
	app     *fiber.App
	closers []func()
}

func NewServer(cfg *config.Config, logger *logging.Logger) *Server {
	if logger == nil {
		logger = logging.New(cfg.LogLevel)
	}
	return &Server{
		cfg:    cfg,
		logger: logger,
	}
}

// Run wires the dependencies and serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	app, err := s.build(ctx)
	if err != nil {
		s.close()
		return err
	}
	s.app = app

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server started", "addr", s.cfg.ServerAddr)
		errCh <- app.Listen(s.cfg.ServerAddr)
	}()

	select {
	case err := <-errCh:
		s.close()
		return fmt.Errorf("error to start server: %w", err)
	case <-ctx.Done():
		return s.Stop(context.Background())
	}
}

// Stop drains in-flight requests and releases the stores.
func (s *Server) Stop(ctx context.Context) error {
	defer s.close()
	if s.app == nil {
		return nil
	}
	if err := s.app.ShutdownWithContext(ctx); err != nil {
		return err
	}
	s.logger.Info("server stopped")
	return nil
}

func (s *Server) close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
	s.closers = nil
}

func (s *Server) build(ctx context.Context) (*fiber.App, error) {
	cfg := s.cfg

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.NewPipelineMetrics(registry)

	docs, logs, history, err := s.openStores(ctx)
	if err != nil {
		return nil, err
	}

	embedder := model.NewEmbedder(
		model.NewHuggingFaceProvider(cfg.EmbeddingURL, cfg.EmbeddingToken, nil),
		model.EmbedderConfig{
			Dimension:      cfg.EmbeddingDimension,
			Timeout:        cfg.EmbeddingTimeout,
			MaxRetries:     cfg.EmbeddingMaxRetries,
			RetryBaseDelay: cfg.EmbeddingRetryBaseDelay,
			RetryMaxDelay:  cfg.EmbeddingRetryMaxDelay,
		},
		s.logger.With("component", "embedder"), m)

	engine := analytics.NewEngine(analytics.WithHorizon(cfg.ForecastHorizon))
	assembler := agent.NewAssembler(agent.Sources{
		Guard:     guard.NewKeywordGuard(cfg.ExtraDomainTerms...),
		Logs:      logs,
		Retriever: retrieval.NewEngine(embedder, docs, s.logger.With("component", "retrieval"), m),
		Memory:    history,
		Analytics: engine,
	}, agent.AssemblerConfig{
		LogWindow:    cfg.LogWindow,
		MemoryWindow: cfg.MemoryWindow,
		RetrievalK:   cfg.RetrievalK,
		FetchTimeout: cfg.FetchTimeout,
	}, s.logger.With("component", "assembler"), m)

	llm := agent.NewLLMClient(cfg.LLMURL, cfg.LLMModel, cfg.LLMTimeout, s.logger.With("component", "llm"), m)

	pipeline := service.NewPipeline(docs, embedder, cfg.ChunkSize, cfg.ChunkOverlap, s.logger.With("component", "ingest"), m)
	ingester, err := service.New(pipeline, types.Config{
		MonitoringTime: cfg.MonitoringTime,
		SourceDir:      cfg.SourceDir,
		ArchiveDir:     cfg.ArchiveDir,
		BadDir:         cfg.BadDir,
		ChunkSize:      cfg.ChunkSize,
		ChunkOverlap:   cfg.ChunkOverlap,
		CropTop:        cfg.PDFCropTop,
		CropBottom:     cfg.PDFCropBottom,
	}, model.NewDocling(cfg.DoclingURL, 0, s.logger), s.logger.With("component", "ingest"))
	if err != nil {
		return nil, err
	}

	var (
		app = fiber.New(fiber.Config{
			ErrorHandler: api.ErrorHandler(s.logger),
			BodyLimit:    32 * 1024 * 1024,
		})
		checkHandler     = api.NewCheckHandler()
		assistantHandler = api.NewAssistantHandler(assembler, llm, history, s.logger)
		analyticsHandler = api.NewAnalyticsHandler(logs, engine, llm, cfg.LogWindow, s.logger)
		ingestHandler    = api.NewIngestHandler(ingester)
		check            = app.Group("/check")
		apiv1            = app.Group("/api/v1", middleware.RequestBudget(cfg.RequestTimeout))
	)

	app.Use(recover.New())
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	check.Get("/healthy", checkHandler.HandleHealthy)
	apiv1.Post("/assistant", assistantHandler.HandleAssistant)
	apiv1.Get("/analytics/:userID", analyticsHandler.HandleGetAnalytics)
	apiv1.Post("/insights", analyticsHandler.HandleInsights)
	apiv1.Post("/ingest", ingestHandler.HandleIngest)

	return app, nil
}

// openStores picks the document, log and history backends from the config.
// Postgres is dialled once and shared when more than one role uses it.
func (s *Server) openStores(ctx context.Context) (store.DocumentStore, store.LogStore, store.HistoryStore, error) {
	cfg := s.cfg

	var pg *store.PostgresStore
	postgres := func() (*store.PostgresStore, error) {
		if pg != nil {
			return pg, nil
		}
		p, err := store.NewPostgresStore(ctx, cfg.PostgresDSN(), cfg.EmbeddingDimension, s.logger.With("component", "postgres"))
		if err != nil {
			return nil, fmt.Errorf("error to connect to Postgres database: %w", err)
		}
		s.closers = append(s.closers, func() { _ = p.Close() })
		if err := p.Init(ctx); err != nil {
			return nil, fmt.Errorf("error to create tables: %w", err)
		}
		pg = p
		return pg, nil
	}

	var (
		mem     *store.InMemoryStore
		docs    store.DocumentStore
		logs    store.LogStore
		history store.HistoryStore
	)
	switch cfg.StoreBackend {
	case "memory":
		s.logger.Warn("memory store selected, documents and symptom logs are not persisted")
		mem = store.NewInMemoryStore()
		docs, logs = mem, mem
	default:
		p, err := postgres()
		if err != nil {
			return nil, nil, nil, err
		}
		docs, logs = p, p
	}

	switch cfg.MemoryBackend {
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		s.closers = append(s.closers, func() { _ = client.Close() })
		if err := client.Ping(ctx).Err(); err != nil {
			return nil, nil, nil, fmt.Errorf("error to connect to redis: %w", err)
		}
		history = store.NewRedisHistoryStore(client, cfg.RedisHistoryTTL, cfg.RedisHistoryCap, otel.Tracer("wellrag.store.history"))
	case "memory":
		if mem == nil {
			mem = store.NewInMemoryStore()
		}
		history = mem
	default:
		p, err := postgres()
		if err != nil {
			return nil, nil, nil, err
		}
		history = p
	}

	if docs == nil || logs == nil || history == nil {
		return nil, nil, nil, errors.New("store backends not configured")
	}
	return docs, logs, history, nil
}

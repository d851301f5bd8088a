package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"wellrag/config"
	"wellrag/loader/service"
	"wellrag/model"
	"wellrag/pkg/logging"
	"wellrag/store"
	"wellrag/types"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "loader",
		Short:        "Ingest reference documents into the wellness knowledge base",
		SilenceUsage: true,
	}

	root.AddCommand(
		&cobra.Command{
			Use:   "watch",
			Short: "Watch the source directory and ingest files as they arrive",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return withService(cmd.Context(), func(ctx context.Context, svc *service.Service) error {
					return svc.Run(ctx)
				})
			},
		},
		&cobra.Command{
			Use:   "ingest [file...]",
			Short: "Ingest the given PDF, text or markdown files",
			Args:  cobra.MinimumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withService(cmd.Context(), func(ctx context.Context, svc *service.Service) error {
					reports, err := svc.IngestPaths(ctx, args)
					printReports(cmd, reports)
					return err
				})
			},
		},
		&cobra.Command{
			Use:   "seed",
			Short: "Ingest the built-in menopause reference documents",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return withService(cmd.Context(), func(ctx context.Context, svc *service.Service) error {
					reports, err := svc.Seed(ctx)
					printReports(cmd, reports)
					return err
				})
			},
		},
	)
	return root
}

func withService(parent context.Context, run func(context.Context, *service.Service) error) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := logging.New(cfg.LogLevel).With("component", "loader")

	var docs store.DocumentStore
	switch cfg.StoreBackend {
	case "memory":
		logger.Warn("memory store selected, ingested documents are not persisted")
		docs = store.NewInMemoryStore()
	default:
		pg, err := store.NewPostgresStore(ctx, cfg.PostgresDSN(), cfg.EmbeddingDimension, logger)
		if err != nil {
			return fmt.Errorf("error to connect to Postgres database: %w", err)
		}
		defer pg.Close()
		if err := pg.Init(ctx); err != nil {
			return fmt.Errorf("error to create tables: %w", err)
		}
		docs = pg
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
		logger, nil)

	pipeline := service.NewPipeline(docs, embedder, cfg.ChunkSize, cfg.ChunkOverlap, logger, nil)
	svc, err := service.New(pipeline, types.Config{
		MonitoringTime: cfg.MonitoringTime,
		SourceDir:      cfg.SourceDir,
		ArchiveDir:     cfg.ArchiveDir,
		BadDir:         cfg.BadDir,
		ChunkSize:      cfg.ChunkSize,
		ChunkOverlap:   cfg.ChunkOverlap,
		CropTop:        cfg.PDFCropTop,
		CropBottom:     cfg.PDFCropBottom,
	}, model.NewDocling(cfg.DoclingURL, 0, logger), logger)
	if err != nil {
		return err
	}

	return run(ctx, svc)
}

func printReports(cmd *cobra.Command, reports []types.IngestReport) {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	for _, r := range reports {
		_ = enc.Encode(r)
	}
}

package service

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"wellrag/loader/internal"
	"wellrag/model"
	"wellrag/pkg/logging"
	"wellrag/types"
)

type Service struct {
	logger   *logging.Logger
	pipeline *Pipeline
	loader   *internal.FileLoader
}

func New(pipeline *Pipeline, cfg types.Config, converter model.Converter, logger *logging.Logger) (*Service, error) {
	if logger == nil {
		logger = logging.Default()
	}
	loader, err := internal.NewFileLoader(cfg, converter, logger)
	if err != nil {
		return nil, fmt.Errorf("create loader directories: %w", err)
	}
	return &Service{
		logger:   logger,
		pipeline: pipeline,
		loader:   loader,
	}, nil
}

// Run watches the source directory until ctx is cancelled, ingesting every
// file that settles and moving it to the archive or bad directory.
func (s *Service) Run(ctx context.Context) error {
	fileChan := make(chan string, 10)
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(fileChan)
		return s.loader.WatchFile(ctx, fileChan)
	})
	g.Go(func() error {
		s.ProcessFile(ctx, fileChan)
		return nil
	})

	err := g.Wait()
	s.logger.Info("loader service stopped")
	return err
}

func (s *Service) ProcessFile(ctx context.Context, fileChan <-chan string) {
	for {
		select {
		case <-ctx.Done():
			return
		case filePath, ok := <-fileChan:
			if !ok {
				return
			}
			s.processOne(ctx, filePath)
		}
	}
}

func (s *Service) processOne(ctx context.Context, filePath string) {
	defer s.loader.Done(filePath)

	report, err := s.IngestFile(ctx, filePath)
	if ctx.Err() != nil {
		// leave the file in place, it is picked up again on the next start
		s.logger.Warn("file processing interrupted", "file", filePath)
		return
	}

	state := internal.StateArchived
	if err != nil || report.Stored == 0 {
		state = internal.StateBad
		s.logger.Error("error processing file", "file", filePath, "error", err)
	}
	if _, err := s.loader.MoveToArchive(filePath, state); err != nil {
		s.logger.Error("failed to move processed file", "file", filePath, "error", err)
	}
}

// IngestFile loads one file from disk and ingests it.
func (s *Service) IngestFile(ctx context.Context, filePath string) (types.IngestReport, error) {
	doc, err := s.loader.Load(ctx, filePath)
	if err != nil {
		return types.IngestReport{DocumentName: filePath}, err
	}
	return s.pipeline.Ingest(ctx, doc)
}

func (s *Service) Ingest(ctx context.Context, doc types.Document) (types.IngestReport, error) {
	return s.pipeline.Ingest(ctx, doc)
}

// IngestPaths ingests each path in turn, continuing past failures.
func (s *Service) IngestPaths(ctx context.Context, paths []string) ([]types.IngestReport, error) {
	reports := make([]types.IngestReport, 0, len(paths))
	var errs []error
	for _, p := range paths {
		report, err := s.IngestFile(ctx, p)
		reports = append(reports, report)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", p, err))
		}
	}
	return reports, errors.Join(errs...)
}

// Seed ingests the built-in reference documents.
func (s *Service) Seed(ctx context.Context) ([]types.IngestReport, error) {
	docs := internal.SeedDocuments()
	reports := make([]types.IngestReport, 0, len(docs))
	for _, doc := range docs {
		report, err := s.pipeline.Ingest(ctx, doc)
		if err != nil {
			return reports, err
		}
		reports = append(reports, report)
	}
	return reports, nil
}

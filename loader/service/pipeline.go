package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"wellrag/loader/internal"
	"wellrag/metrics"
	"wellrag/model"
	"wellrag/pkg/logging"
	"wellrag/store"
	"wellrag/types"
)

var (
	ErrEmptyDocument = errors.New("document has no text")
	ErrInvalidWindow = internal.ErrInvalidWindow
)

// Pipeline chunks, embeds and stores documents.
type Pipeline struct {
	docs      store.DocumentStore
	embedder  model.EmbedderInterface
	chunkSize int
	overlap   int
	logger    *logging.Logger
	metrics   *metrics.PipelineMetrics
}

func NewPipeline(docs store.DocumentStore, embedder model.EmbedderInterface, chunkSize, overlap int, logger *logging.Logger, m *metrics.PipelineMetrics) *Pipeline {
	if logger == nil {
		logger = logging.Default()
	}
	return &Pipeline{
		docs:      docs,
		embedder:  embedder,
		chunkSize: chunkSize,
		overlap:   overlap,
		logger:    logger,
		metrics:   m,
	}
}

// Ingest upserts every chunk of doc keyed by (document, chunk index) and then
// drops chunks past the new end, so re-ingesting a document never leaves
// duplicates or a stale tail. A failed chunk is counted and skipped.
func (p *Pipeline) Ingest(ctx context.Context, doc types.Document) (types.IngestReport, error) {
	if doc.Name == "" {
		doc.Name = doc.Title
	}
	if doc.ID == uuid.Nil {
		doc.ID = types.DocumentID(doc.Name)
	}
	report := types.IngestReport{DocumentID: doc.ID, DocumentName: doc.Name}

	texts, err := internal.Split(doc.RawText, p.chunkSize, p.overlap)
	if err != nil {
		return report, fmt.Errorf("split %q: %w", doc.Name, err)
	}
	if len(texts) == 0 {
		return report, fmt.Errorf("ingest %q: %w", doc.Name, ErrEmptyDocument)
	}
	report.Chunks = len(texts)

	logger := p.logger.With("document", doc.Name)
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		embedding := p.embedder.Embed(ctx, text)
		if model.IsZero(embedding) {
			report.EmbeddingFallbacks++
			p.metrics.ObserveIngestedChunk("embedding_fallback")
			logger.Warn("chunk stored without embedding", "chunk", i)
		}

		err := p.docs.UpsertChunk(ctx, types.DocumentChunk{
			SourceDocumentID: doc.ID,
			DocumentName:     doc.Name,
			Title:            doc.Title,
			Source:           doc.Source,
			ChunkIndex:       i,
			Text:             text,
			Embedding:        embedding,
		})
		if err != nil {
			report.WriteFailures++
			p.metrics.ObserveIngestedChunk("write_failed")
			logger.Error("failed to store chunk", "chunk", i, "error", err)
			continue
		}
		report.Stored++
		p.metrics.ObserveIngestedChunk("stored")
	}

	deleted, err := p.docs.DeleteChunksFrom(ctx, doc.ID, len(texts))
	if err != nil {
		return report, fmt.Errorf("ingest %q: %w", doc.Name, err)
	}
	report.StaleDeleted = deleted

	logger.Info("document ingested",
		"chunks", report.Chunks,
		"stored", report.Stored,
		"fallbacks", report.EmbeddingFallbacks,
		"write_failures", report.WriteFailures,
		"stale_deleted", report.StaleDeleted)
	return report, nil
}

// Package retrieval finds the reference chunks most similar to a query.
package retrieval

import (
	"context"
	"math"
	"time"

	"wellrag/metrics"
	"wellrag/model"
	"wellrag/pkg/logging"
	"wellrag/store"
	"wellrag/types"
)

const DefaultK = 5

type Engine struct {
	embedder model.EmbedderInterface
	docs     store.DocumentStore
	logger   *logging.Logger
	metrics  *metrics.PipelineMetrics
}

func NewEngine(embedder model.EmbedderInterface, docs store.DocumentStore, logger *logging.Logger, m *metrics.PipelineMetrics) *Engine {
	if logger == nil {
		logger = logging.Default()
	}
	return &Engine{
		embedder: embedder,
		docs:     docs,
		logger:   logger,
		metrics:  m,
	}
}

// Search embeds the query and returns up to k chunks by descending
// similarity. A zero query embedding or a cancelled context yields no chunks
// and no error; a store failure is returned so callers can tell "nothing
// relevant" from "store unavailable".
func (e *Engine) Search(ctx context.Context, query string, k int) ([]types.DocumentChunk, error) {
	start := time.Now()
	if k <= 0 {
		k = DefaultK
	}
	if ctx.Err() != nil {
		e.metrics.ObserveRetrieval("cancelled", time.Since(start).Seconds())
		return []types.DocumentChunk{}, nil
	}

	vec := e.embedder.Embed(ctx, query)
	if model.IsZero(vec) {
		e.logger.Debug("query embedding unavailable, skipping similarity search")
		e.metrics.ObserveRetrieval("no_embedding", time.Since(start).Seconds())
		return []types.DocumentChunk{}, nil
	}

	chunks, err := e.docs.MatchDocuments(ctx, vec, k)
	if err != nil {
		if ctx.Err() != nil {
			e.metrics.ObserveRetrieval("cancelled", time.Since(start).Seconds())
			return []types.DocumentChunk{}, nil
		}
		e.metrics.ObserveRetrieval("error", time.Since(start).Seconds())
		return nil, err
	}

	if len(chunks) > k {
		chunks = chunks[:k]
	}
	for i := range chunks {
		if math.IsNaN(chunks[i].Similarity) {
			chunks[i].Similarity = 0
		}
	}
	if chunks == nil {
		chunks = []types.DocumentChunk{}
	}

	e.metrics.ObserveRetrieval("ok", time.Since(start).Seconds())
	return chunks, nil
}

// Retrieve is Search with store failures collapsed into an empty result.
func (e *Engine) Retrieve(ctx context.Context, query string, k int) []types.DocumentChunk {
	chunks, err := e.Search(ctx, query, k)
	if err != nil {
		e.logger.Warn("retrieval failed", "error", err)
		return []types.DocumentChunk{}
	}
	return chunks
}

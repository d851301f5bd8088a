package model

import (
	"context"
	"math/rand/v2"
	"time"

	"wellrag/metrics"
	"wellrag/pkg/logging"
)

// EmbedderInterface is the embedding service used by ingestion and
// retrieval. Embed never fails: when the provider cannot answer it returns a
// zero vector of the configured dimension.
type EmbedderInterface interface {
	Embed(ctx context.Context, text string) []float32
	Dimension() int
}

type EmbedderConfig struct {
	Dimension      int
	Timeout        time.Duration
	MaxRetries     int
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration
}

func (c EmbedderConfig) withDefaults() EmbedderConfig {
	if c.Dimension <= 0 {
		c.Dimension = 384
	}
	if c.Timeout <= 0 {
		c.Timeout = 20 * time.Second
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.RetryBaseDelay <= 0 {
		c.RetryBaseDelay = 3 * time.Second
	}
	if c.RetryMaxDelay < c.RetryBaseDelay {
		c.RetryMaxDelay = c.RetryBaseDelay
	}
	return c
}

// Embedder wraps a Provider with a bounded retry on transient errors and the
// zero-vector fallback.
type Embedder struct {
	provider Provider
	cfg      EmbedderConfig
	logger   *logging.Logger
	metrics  *metrics.PipelineMetrics

	jitter func(time.Duration) time.Duration
}

func NewEmbedder(provider Provider, cfg EmbedderConfig, logger *logging.Logger, m *metrics.PipelineMetrics) *Embedder {
	if provider == nil {
		panic("model: embedding provider cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Embedder{
		provider: provider,
		cfg:      cfg.withDefaults(),
		logger:   logger,
		metrics:  m,
		jitter:   fullJitter,
	}
}

func (e *Embedder) Dimension() int {
	return e.cfg.Dimension
}

func (e *Embedder) Embed(ctx context.Context, text string) []float32 {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	for attempt := 0; ; attempt++ {
		vec, err := e.provider.Embed(ctx, text)
		if err == nil {
			if len(vec) != e.cfg.Dimension {
				e.logger.Warn("embedding dimension mismatch, using zero vector",
					"want", e.cfg.Dimension, "got", len(vec))
				return e.fallback(start)
			}
			outcome := "ok"
			if attempt > 0 {
				outcome = "retried"
			}
			e.metrics.ObserveEmbedding(outcome, time.Since(start).Seconds())
			return vec
		}

		if !isTransient(err) || attempt >= e.cfg.MaxRetries {
			e.logger.Warn("embedding failed, using zero vector", "error", err, "attempts", attempt+1)
			return e.fallback(start)
		}

		delay := e.jitter(backoff(attempt, e.cfg.RetryBaseDelay, e.cfg.RetryMaxDelay))
		e.logger.Info("embedding provider warming up, retrying", "attempt", attempt+1, "delay", delay)
		if err := sleep(ctx, delay); err != nil {
			e.logger.Warn("embedding retry abandoned, using zero vector", "error", err)
			return e.fallback(start)
		}
	}
}

// ZeroVector is the "no information" embedding.
func (e *Embedder) ZeroVector() []float32 {
	return make([]float32, e.cfg.Dimension)
}

func (e *Embedder) fallback(start time.Time) []float32 {
	e.metrics.ObserveEmbedding("fallback", time.Since(start).Seconds())
	return e.ZeroVector()
}

// IsZero reports whether v carries no signal, which is how callers recognise a
// fallback embedding.
func IsZero(v []float32) bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}

// backoff doubles base per attempt up to max.
func backoff(attempt int, base, max time.Duration) time.Duration {
	d := base
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= max {
			return max
		}
	}
	return d
}

func fullJitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	return time.Duration(rand.Int64N(int64(d) + 1))
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

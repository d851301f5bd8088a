package agent

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"wellrag/analytics"
	"wellrag/guard"
	"wellrag/metrics"
	"wellrag/pkg/logging"
	"wellrag/store"
	"wellrag/types"
)

var errNotConfigured = errors.New("source not configured")

// Retriever is the similarity search used for the documents source.
type Retriever interface {
	Search(ctx context.Context, query string, k int) ([]types.DocumentChunk, error)
}

type Sources struct {
	Guard     guard.Classifier
	Logs      store.LogStore
	Retriever Retriever
	Memory    store.HistoryStore
	Analytics *analytics.Engine
}

type AssemblerConfig struct {
	LogWindow    int
	MemoryWindow int
	RetrievalK   int
	FetchTimeout time.Duration
}

func (c AssemblerConfig) withDefaults() AssemblerConfig {
	if c.LogWindow <= 0 {
		c.LogWindow = 30
	}
	if c.MemoryWindow <= 0 {
		c.MemoryWindow = 6
	}
	if c.RetrievalK <= 0 {
		c.RetrievalK = 5
	}
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = 8 * time.Second
	}
	return c
}

// Assembler gathers the per-request context for a prompt. It always produces
// a usable context: sources that fail are reported as missing.
type Assembler struct {
	src     Sources
	cfg     AssemblerConfig
	logger  *logging.Logger
	metrics *metrics.PipelineMetrics
	tracer  trace.Tracer
}

func NewAssembler(src Sources, cfg AssemblerConfig, logger *logging.Logger, m *metrics.PipelineMetrics) *Assembler {
	if src.Guard == nil {
		src.Guard = guard.NewKeywordGuard()
	}
	if src.Analytics == nil {
		src.Analytics = analytics.NewEngine()
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Assembler{
		src:     src,
		cfg:     cfg.withDefaults(),
		logger:  logger,
		metrics: m,
		tracer:  otel.Tracer("wellrag.agent.context"),
	}
}

func (a *Assembler) BuildContext(ctx context.Context, userID, message string) types.PromptContext {
	ctx, span := a.tracer.Start(ctx, "agent.build_context")
	defer span.End()

	if !a.src.Guard.IsInDomain(message) {
		pc := types.PromptContext{State: types.StateDomainRejected}
		a.finish(span, pc)
		return pc
	}

	var (
		g         errgroup.Group
		logs      []types.SymptomLog
		docs      []types.DocumentChunk
		turns     []types.ConversationTurn
		logsErr   error
		docsErr   error
		memoryErr error
	)
	timeout := a.cfg.FetchTimeout

	g.Go(func() error {
		logs, logsErr = fetch(ctx, timeout, func(ctx context.Context) ([]types.SymptomLog, error) {
			if a.src.Logs == nil {
				return nil, errNotConfigured
			}
			return a.src.Logs.RecentLogs(ctx, userID, a.cfg.LogWindow)
		})
		return nil
	})
	g.Go(func() error {
		docs, docsErr = fetch(ctx, timeout, func(ctx context.Context) ([]types.DocumentChunk, error) {
			if a.src.Retriever == nil {
				return nil, errNotConfigured
			}
			return a.src.Retriever.Search(ctx, message, a.cfg.RetrievalK)
		})
		return nil
	})
	g.Go(func() error {
		turns, memoryErr = fetch(ctx, timeout, func(ctx context.Context) ([]types.ConversationTurn, error) {
			if a.src.Memory == nil {
				return nil, errNotConfigured
			}
			return a.src.Memory.RecentTurns(ctx, userID, a.cfg.MemoryWindow)
		})
		return nil
	})
	_ = g.Wait()

	pc := types.PromptContext{DomainAccepted: true}

	if a.available(types.SourceSymptomLogs, logsErr) {
		pc.SymptomHistorySummary = SummarizeLogs(logs, maxHistoryEntries)
		if len(logs) > 0 {
			result := a.src.Analytics.Analyze(logs)
			pc.Analytics = &result
		}
	} else {
		pc.Missing = append(pc.Missing, types.SourceSymptomLogs)
	}

	if a.available(types.SourceDocuments, docsErr) {
		pc.RetrievedDocs = docs
	} else {
		pc.Missing = append(pc.Missing, types.SourceDocuments)
	}

	if a.available(types.SourceMemory, memoryErr) {
		pc.Memory = FormatMemory(turns)
	} else {
		pc.Missing = append(pc.Missing, types.SourceMemory)
	}

	switch len(pc.Missing) {
	case 0:
		pc.State = types.StateFullContext
	case 3:
		pc.State = types.StateFallbackPersona
	default:
		pc.State = types.StatePartialContext
	}

	a.finish(span, pc)
	return pc
}

func (a *Assembler) available(source types.Source, err error) bool {
	ok := err == nil
	a.metrics.ObserveSource(string(source), ok)
	if !ok {
		a.logger.Warn("context source unavailable", "source", source, "error", err)
	}
	return ok
}

func (a *Assembler) finish(span trace.Span, pc types.PromptContext) {
	a.metrics.ObserveContextState(string(pc.State))
	span.SetAttributes(
		attribute.String("context.state", string(pc.State)),
		attribute.Int("context.missing", len(pc.Missing)),
	)
	if pc.State == types.StateFallbackPersona {
		span.SetStatus(codes.Error, "all context sources unavailable")
	}
}

// fetch runs f under its own timeout. A fetch that outlives the timeout is
// abandoned, so one slow source cannot hold up the others.
func fetch[T any](ctx context.Context, timeout time.Duration, f func(context.Context) (T, error)) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		value T
		err   error
	}
	done := make(chan result, 1)
	go func() {
		v, err := f(ctx)
		done <- result{value: v, err: err}
	}()

	select {
	case r := <-done:
		if r.err == nil && ctx.Err() != nil {
			var zero T
			return zero, ctx.Err()
		}
		return r.value, r.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

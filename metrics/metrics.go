// Package metrics exposes prometheus collectors for the retrieval and context
// pipeline. Every method is safe to call on a nil receiver.
package metrics

import "github.com/prometheus/client_golang/prometheus"

type PipelineMetrics struct {
	embeddings       *prometheus.CounterVec
	embedLatency     prometheus.Histogram
	retrievalLatency *prometheus.HistogramVec
	contextStates    *prometheus.CounterVec
	sources          *prometheus.CounterVec
	ingestedChunks   *prometheus.CounterVec
	promptTokens     prometheus.Histogram
}

func NewPipelineMetrics(reg prometheus.Registerer) *PipelineMetrics {
	m := &PipelineMetrics{
		embeddings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wellrag",
			Subsystem: "embedding",
			Name:      "requests_total",
			Help:      "Embedding calls by outcome (ok, retried, fallback)",
		}, []string{"outcome"}),
		embedLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "wellrag",
			Subsystem: "embedding",
			Name:      "latency_seconds",
			Help:      "Wall time of an embedding call including retries",
			Buckets:   prometheus.DefBuckets,
		}),
		retrievalLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "wellrag",
			Subsystem: "retrieval",
			Name:      "latency_seconds",
			Help:      "Latency of similarity search requests",
			Buckets:   prometheus.DefBuckets,
		}, []string{"status"}),
		contextStates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wellrag",
			Subsystem: "context",
			Name:      "states_total",
			Help:      "Terminal states reached while assembling prompt context",
		}, []string{"state"}),
		sources: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wellrag",
			Subsystem: "context",
			Name:      "source_fetch_total",
			Help:      "Context source fetches by source and availability",
		}, []string{"source", "available"}),
		ingestedChunks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wellrag",
			Subsystem: "ingest",
			Name:      "chunks_total",
			Help:      "Chunks processed by ingestion, by result",
		}, []string{"result"}),
		promptTokens: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "wellrag",
			Subsystem: "generator",
			Name:      "prompt_tokens",
			Help:      "Token count of prompts sent to the generator",
			Buckets:   prometheus.ExponentialBuckets(128, 2, 8),
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(
		m.embeddings,
		m.embedLatency,
		m.retrievalLatency,
		m.contextStates,
		m.sources,
		m.ingestedChunks,
		m.promptTokens,
	)
	return m
}

func (m *PipelineMetrics) ObserveEmbedding(outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.embeddings.WithLabelValues(outcome).Inc()
	m.embedLatency.Observe(seconds)
}

func (m *PipelineMetrics) ObserveRetrieval(status string, seconds float64) {
	if m == nil {
		return
	}
	m.retrievalLatency.WithLabelValues(status).Observe(seconds)
}

func (m *PipelineMetrics) ObserveContextState(state string) {
	if m == nil {
		return
	}
	m.contextStates.WithLabelValues(state).Inc()
}

func (m *PipelineMetrics) ObserveSource(source string, available bool) {
	if m == nil {
		return
	}
	label := "false"
	if available {
		label = "true"
	}
	m.sources.WithLabelValues(source, label).Inc()
}

func (m *PipelineMetrics) ObserveIngestedChunk(result string) {
	if m == nil {
		return
	}
	m.ingestedChunks.WithLabelValues(result).Inc()
}

func (m *PipelineMetrics) ObservePromptTokens(tokens int) {
	if m == nil {
		return
	}
	m.promptTokens.Observe(float64(tokens))
}

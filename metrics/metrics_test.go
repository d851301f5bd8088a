package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestPipelineMetricsObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewPipelineMetrics(reg)

	m.ObserveEmbedding("ok", 0.2)
	m.ObserveEmbedding("fallback", 3.1)
	m.ObserveEmbedding("fallback", 0.1)
	m.ObserveRetrieval("ok", 0.05)
	m.ObserveContextState("partial_context")
	m.ObserveSource("memory", false)
	m.ObserveIngestedChunk("stored")
	m.ObservePromptTokens(900)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.embeddings.WithLabelValues("fallback")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.sources.WithLabelValues("memory", "false")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.contextStates.WithLabelValues("partial_context")))
}

func TestPipelineMetricsNilSafe(t *testing.T) {
	var m *PipelineMetrics
	m.ObserveEmbedding("ok", 0.1)
	m.ObserveRetrieval("error", 0.1)
	m.ObserveContextState("full_context")
	m.ObserveSource("documents", true)
	m.ObserveIngestedChunk("fallback")
	m.ObservePromptTokens(10)
}

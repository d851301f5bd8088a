package model

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wellrag/pkg/logging"
)

type stubProvider struct {
	calls   atomic.Int32
	answers []func() ([]float32, error)
}

func (s *stubProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	i := int(s.calls.Add(1)) - 1
	if i >= len(s.answers) {
		i = len(s.answers) - 1
	}
	return s.answers[i]()
}

func vec(d int, v float32) []float32 {
	out := make([]float32, d)
	for i := range out {
		out[i] = v
	}
	return out
}

func testEmbedder(p Provider, cfg EmbedderConfig) *Embedder {
	e := NewEmbedder(p, cfg, logging.Discard(), nil)
	e.jitter = func(d time.Duration) time.Duration { return d }
	return e
}

func TestEmbedReturnsProviderVector(t *testing.T) {
	p := &stubProvider{answers: []func() ([]float32, error){
		func() ([]float32, error) { return vec(4, 0.5), nil },
	}}
	e := testEmbedder(p, EmbedderConfig{Dimension: 4})

	got := e.Embed(context.Background(), "hot flashes")

	assert.Equal(t, vec(4, 0.5), got)
	assert.Equal(t, int32(1), p.calls.Load())
}

func TestEmbedRetriesWarmingModelOnce(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"error":"Model is currently loading"}`))
			return
		}
		_, _ = w.Write([]byte(`[0.1,0.2,0.3]`))
	}))
	defer srv.Close()

	e := testEmbedder(NewHuggingFaceProvider(srv.URL, "", srv.Client()), EmbedderConfig{
		Dimension:      3,
		MaxRetries:     1,
		RetryBaseDelay: time.Millisecond,
		RetryMaxDelay:  5 * time.Millisecond,
	})

	got := e.Embed(context.Background(), "night sweats")

	assert.Equal(t, []float32{0.1, 0.2, 0.3}, got)
	assert.Equal(t, int32(2), calls.Load())
}

func TestEmbedDoesNotRetryPermanentErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	e := testEmbedder(NewHuggingFaceProvider(srv.URL, "", srv.Client()), EmbedderConfig{
		Dimension:      8,
		MaxRetries:     3,
		RetryBaseDelay: time.Millisecond,
	})

	got := e.Embed(context.Background(), "anxiety")

	assert.Len(t, got, 8)
	assert.True(t, IsZero(got))
	assert.Equal(t, int32(1), calls.Load())
}

func TestEmbedGivesUpAfterMaxRetries(t *testing.T) {
	transient := &StatusError{Code: http.StatusServiceUnavailable}
	p := &stubProvider{answers: []func() ([]float32, error){
		func() ([]float32, error) { return nil, transient },
	}}
	e := testEmbedder(p, EmbedderConfig{
		Dimension:      4,
		MaxRetries:     2,
		RetryBaseDelay: time.Millisecond,
	})

	got := e.Embed(context.Background(), "insomnia")

	assert.True(t, IsZero(got))
	assert.Equal(t, int32(3), p.calls.Load())
}

func TestEmbedCancelledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := &stubProvider{answers: []func() ([]float32, error){
		func() ([]float32, error) {
			cancel()
			return nil, &StatusError{Code: http.StatusServiceUnavailable}
		},
		func() ([]float32, error) { return vec(4, 1), nil },
	}}
	e := testEmbedder(p, EmbedderConfig{
		Dimension:      4,
		MaxRetries:     1,
		RetryBaseDelay: time.Hour,
	})

	got := e.Embed(ctx, "joint pain")

	assert.Equal(t, make([]float32, 4), got)
	assert.Equal(t, int32(1), p.calls.Load())
}

func TestEmbedDimensionMismatch(t *testing.T) {
	p := &stubProvider{answers: []func() ([]float32, error){
		func() ([]float32, error) { return vec(3, 1), nil },
	}}
	e := testEmbedder(p, EmbedderConfig{Dimension: 4})

	got := e.Embed(context.Background(), "fatigue")

	assert.Equal(t, make([]float32, 4), got)
}

func TestEmbedNetworkErrorFallsBack(t *testing.T) {
	p := &stubProvider{answers: []func() ([]float32, error){
		func() ([]float32, error) { return nil, errors.New("connection refused") },
	}}
	e := testEmbedder(p, EmbedderConfig{Dimension: 2, MaxRetries: 5})

	got := e.Embed(context.Background(), "brain fog")

	assert.Equal(t, []float32{0, 0}, got)
	assert.Equal(t, int32(1), p.calls.Load())
}

func TestBackoffIsCapped(t *testing.T) {
	base := 3 * time.Second
	max := 10 * time.Second

	assert.Equal(t, 3*time.Second, backoff(0, base, max))
	assert.Equal(t, 6*time.Second, backoff(1, base, max))
	assert.Equal(t, 10*time.Second, backoff(2, base, max))
	assert.Equal(t, 10*time.Second, backoff(7, base, max))
}

func TestFullJitterStaysWithinBound(t *testing.T) {
	for range 100 {
		d := fullJitter(50 * time.Millisecond)
		require.GreaterOrEqual(t, d, time.Duration(0))
		require.LessOrEqual(t, d, 50*time.Millisecond)
	}
	assert.Zero(t, fullJitter(0))
}

func TestIsZero(t *testing.T) {
	assert.True(t, IsZero(nil))
	assert.True(t, IsZero([]float32{0, 0}))
	assert.False(t, IsZero([]float32{0, 0.01}))
}

package retrieval

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wellrag/pkg/logging"
	"wellrag/store"
	"wellrag/types"
)

type fixedEmbedder struct {
	vec   []float32
	calls int
}

func (f *fixedEmbedder) Embed(ctx context.Context, text string) []float32 {
	f.calls++
	return f.vec
}

func (f *fixedEmbedder) Dimension() int { return len(f.vec) }

type failingStore struct {
	store.DocumentStore
	err error
}

func (f failingStore) MatchDocuments(ctx context.Context, embedding []float32, k int) ([]types.DocumentChunk, error) {
	return nil, f.err
}

type nanStore struct {
	store.DocumentStore
}

func (nanStore) MatchDocuments(ctx context.Context, embedding []float32, k int) ([]types.DocumentChunk, error) {
	return []types.DocumentChunk{{Title: "a", Similarity: math.NaN()}}, nil
}

func seeded(t *testing.T, chunks ...types.DocumentChunk) *store.InMemoryStore {
	t.Helper()
	s := store.NewInMemoryStore()
	for _, c := range chunks {
		require.NoError(t, s.UpsertChunk(context.Background(), c))
	}
	return s
}

func doc(name string, emb ...float32) types.DocumentChunk {
	return types.DocumentChunk{
		SourceDocumentID: types.DocumentID(name),
		DocumentName:     name,
		Title:            name,
		Text:             name,
		Embedding:        emb,
	}
}

func TestRetrieveReturnsTopK(t *testing.T) {
	s := seeded(t, doc("hrt", 1, 0), doc("sleep", 0, 1), doc("mixed", 1, 1))
	e := NewEngine(&fixedEmbedder{vec: []float32{1, 0}}, s, logging.Discard(), nil)

	got := e.Retrieve(context.Background(), "hormone therapy", 2)

	require.Len(t, got, 2)
	assert.Equal(t, "hrt", got[0].Title)
	assert.Equal(t, "mixed", got[1].Title)
	assert.GreaterOrEqual(t, got[0].Similarity, got[1].Similarity)
}

func TestRetrieveDefaultK(t *testing.T) {
	var chunks []types.DocumentChunk
	for i := range 8 {
		chunks = append(chunks, doc(uuid.NewString(), 1, float32(i)))
	}
	e := NewEngine(&fixedEmbedder{vec: []float32{1, 1}}, seeded(t, chunks...), logging.Discard(), nil)

	assert.Len(t, e.Retrieve(context.Background(), "q", 0), DefaultK)
}

func TestRetrieveTiesKeepInsertionOrder(t *testing.T) {
	s := seeded(t, doc("first", 1, 0), doc("second", 1, 0), doc("third", 1, 0))
	e := NewEngine(&fixedEmbedder{vec: []float32{1, 0}}, s, logging.Discard(), nil)

	got := e.Retrieve(context.Background(), "q", 3)

	require.Len(t, got, 3)
	assert.Equal(t, []string{"first", "second", "third"}, []string{got[0].Title, got[1].Title, got[2].Title})
}

func TestRetrieveStoreErrorIsEmpty(t *testing.T) {
	e := NewEngine(&fixedEmbedder{vec: []float32{1}}, failingStore{err: errors.New("db down")}, logging.Discard(), nil)

	got := e.Retrieve(context.Background(), "q", 5)

	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestSearchSurfacesStoreError(t *testing.T) {
	boom := errors.New("db down")
	e := NewEngine(&fixedEmbedder{vec: []float32{1}}, failingStore{err: boom}, logging.Discard(), nil)

	_, err := e.Search(context.Background(), "q", 5)

	assert.ErrorIs(t, err, boom)
}

func TestSearchZeroEmbeddingSkipsStore(t *testing.T) {
	e := NewEngine(&fixedEmbedder{vec: []float32{0, 0}}, failingStore{err: errors.New("must not be called")}, logging.Discard(), nil)

	got, err := e.Search(context.Background(), "q", 5)

	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSearchCancelledContextIsEmpty(t *testing.T) {
	emb := &fixedEmbedder{vec: []float32{1}}
	e := NewEngine(emb, seeded(t, doc("a", 1)), logging.Discard(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	got, err := e.Search(ctx, "q", 5)

	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Zero(t, emb.calls)
}

func TestSearchNormalisesNaNSimilarity(t *testing.T) {
	e := NewEngine(&fixedEmbedder{vec: []float32{1}}, nanStore{}, logging.Discard(), nil)

	got, err := e.Search(context.Background(), "q", 5)

	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Zero(t, got[0].Similarity)
}

package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wellrag/types"
)

func chunk(doc string, index int, emb ...float32) types.DocumentChunk {
	return types.DocumentChunk{
		SourceDocumentID: types.DocumentID(doc),
		DocumentName:     doc,
		Title:            doc,
		ChunkIndex:       index,
		Text:             doc,
		Embedding:        emb,
	}
}

func TestInMemoryMatchOrdersBySimilarity(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.UpsertChunk(ctx, chunk("far", 0, 0, 1)))
	require.NoError(t, s.UpsertChunk(ctx, chunk("near", 0, 1, 0.1)))
	require.NoError(t, s.UpsertChunk(ctx, chunk("exact", 0, 1, 0)))

	got, err := s.MatchDocuments(ctx, []float32{1, 0}, 2)

	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "exact", got[0].DocumentName)
	assert.Equal(t, "near", got[1].DocumentName)
	assert.InDelta(t, 1.0, got[0].Similarity, 1e-9)
}

func TestInMemoryTiesKeepInsertionOrder(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()

	for _, name := range []string{"first", "second", "third"} {
		require.NoError(t, s.UpsertChunk(ctx, chunk(name, 0, 1, 1)))
	}

	got, err := s.MatchDocuments(ctx, []float32{2, 2}, 3)

	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "first", got[0].DocumentName)
	assert.Equal(t, "second", got[1].DocumentName)
	assert.Equal(t, "third", got[2].DocumentName)
}

func TestInMemoryUpsertReplacesAndDeleteTrimsTail(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()
	docID := types.DocumentID("doc")

	for i := range 4 {
		require.NoError(t, s.UpsertChunk(ctx, chunk("doc", i, 1)))
	}
	require.NoError(t, s.UpsertChunk(ctx, chunk("doc", 0, 1)))
	assert.Equal(t, 4, s.ChunkCount(docID))

	n, err := s.DeleteChunksFrom(ctx, docID, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.Equal(t, 2, s.ChunkCount(docID))
}

func TestInMemoryZeroQueryScoresZero(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()
	require.NoError(t, s.UpsertChunk(ctx, chunk("a", 0, 1, 0)))

	got, err := s.MatchDocuments(ctx, []float32{0, 0}, 5)

	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Zero(t, got[0].Similarity)
}

func TestInMemoryLogsAreAscendingAndWindowed(t *testing.T) {
	s := NewInMemoryStore()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	s.AddLog(types.SymptomLog{UserID: "u1", SymptomType: "c", CreatedAt: base.Add(2 * time.Hour)})
	s.AddLog(types.SymptomLog{UserID: "u1", SymptomType: "a", CreatedAt: base})
	s.AddLog(types.SymptomLog{UserID: "u1", SymptomType: "b", CreatedAt: base.Add(time.Hour)})
	s.AddLog(types.SymptomLog{UserID: "u2", SymptomType: "x", CreatedAt: base})

	logs, err := s.RecentLogs(context.Background(), "u1", 2)

	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, "b", logs[0].SymptomType)
	assert.Equal(t, "c", logs[1].SymptomType)
}

func TestInMemoryTurns(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.SaveTurns(ctx, "u1",
		types.ConversationTurn{Role: types.RoleUser, Content: "one"},
		types.ConversationTurn{Role: types.RoleAssistant, Content: "two"},
	))

	turns, err := s.RecentTurns(ctx, "u1", 1)
	require.NoError(t, err)
	require.Len(t, turns, 1)
	assert.Equal(t, "two", turns[0].Content)

	empty, err := s.RecentTurns(ctx, "u2", 6)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestInMemoryRespectsCancelledContext(t *testing.T) {
	s := NewInMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.RecentLogs(ctx, "u1", 5)
	assert.ErrorIs(t, err, context.Canceled)
}

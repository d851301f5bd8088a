// Package store holds the persistence collaborators of the assistant: the
// document vector store, the symptom log reader and the chat memory.
package store

import (
	"context"

	"github.com/google/uuid"

	"wellrag/types"
)

// DocumentStore keeps embedded chunks and answers similarity queries.
type DocumentStore interface {
	UpsertChunk(ctx context.Context, chunk types.DocumentChunk) error
	DeleteChunksFrom(ctx context.Context, docID uuid.UUID, fromIndex int) (int64, error)
	MatchDocuments(ctx context.Context, embedding []float32, k int) ([]types.DocumentChunk, error)
}

// LogStore reads the most recent symptom logs of a user, oldest first.
type LogStore interface {
	RecentLogs(ctx context.Context, userID string, n int) ([]types.SymptomLog, error)
}

// HistoryStore keeps the conversation turns of a user.
type HistoryStore interface {
	RecentTurns(ctx context.Context, userID string, n int) ([]types.ConversationTurn, error)
	SaveTurns(ctx context.Context, userID string, turns ...types.ConversationTurn) error
}

// reverse flips rows read newest first into chronological order.
func reverse[T any](s []T) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}

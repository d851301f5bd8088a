package store

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"wellrag/types"
)

type memChunk struct {
	chunk types.DocumentChunk
	seq   int64
}

type chunkKey struct {
	doc   uuid.UUID
	index int
}

// InMemoryStore is an in-process implementation of every store interface, used
// for local runs without Postgres and in tests.
type InMemoryStore struct {
	mu     sync.RWMutex
	seq    int64
	chunks map[chunkKey]*memChunk
	logs   map[string][]types.SymptomLog
	turns  map[string][]types.ConversationTurn
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		chunks: make(map[chunkKey]*memChunk),
		logs:   make(map[string][]types.SymptomLog),
		turns:  make(map[string][]types.ConversationTurn),
	}
}

func (m *InMemoryStore) UpsertChunk(ctx context.Context, c types.DocumentChunk) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	c.Embedding = append([]float32(nil), c.Embedding...)
	c.Similarity = 0

	key := chunkKey{doc: c.SourceDocumentID, index: c.ChunkIndex}
	if existing, ok := m.chunks[key]; ok {
		existing.chunk = c
		return nil
	}
	m.seq++
	m.chunks[key] = &memChunk{chunk: c, seq: m.seq}
	return nil
}

func (m *InMemoryStore) DeleteChunksFrom(ctx context.Context, docID uuid.UUID, fromIndex int) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for key := range m.chunks {
		if key.doc == docID && key.index >= fromIndex {
			delete(m.chunks, key)
			n++
		}
	}
	return n, nil
}

// MatchDocuments ranks by cosine similarity, ties in insertion order.
func (m *InMemoryStore) MatchDocuments(ctx context.Context, embedding []float32, k int) ([]types.DocumentChunk, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	ranked := make([]memChunk, 0, len(m.chunks))
	for _, mc := range m.chunks {
		c := *mc
		c.chunk.Similarity = cosine(embedding, c.chunk.Embedding)
		ranked = append(ranked, c)
	}
	m.mu.RUnlock()

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].chunk.Similarity != ranked[j].chunk.Similarity {
			return ranked[i].chunk.Similarity > ranked[j].chunk.Similarity
		}
		return ranked[i].seq < ranked[j].seq
	})

	if k > len(ranked) {
		k = len(ranked)
	}
	out := make([]types.DocumentChunk, 0, k)
	for _, r := range ranked[:k] {
		out = append(out, r.chunk)
	}
	return out, nil
}

// ChunkCount returns the number of stored chunks of a document.
func (m *InMemoryStore) ChunkCount(docID uuid.UUID) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for key := range m.chunks {
		if key.doc == docID {
			n++
		}
	}
	return n
}

// AddLog records a symptom log, keeping each user's logs in time order.
func (m *InMemoryStore) AddLog(l types.SymptomLog) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if l.CreatedAt.IsZero() {
		l.CreatedAt = time.Now().UTC()
	}
	logs := append(m.logs[l.UserID], l)
	sort.SliceStable(logs, func(i, j int) bool { return logs[i].CreatedAt.Before(logs[j].CreatedAt) })
	m.logs[l.UserID] = logs
}

func (m *InMemoryStore) RecentLogs(ctx context.Context, userID string, n int) ([]types.SymptomLog, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return tail(m.logs[userID], n), nil
}

func (m *InMemoryStore) RecentTurns(ctx context.Context, userID string, n int) ([]types.ConversationTurn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return tail(m.turns[userID], n), nil
}

func (m *InMemoryStore) SaveTurns(ctx context.Context, userID string, turns ...types.ConversationTurn) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range turns {
		if t.CreatedAt.IsZero() {
			t.CreatedAt = time.Now().UTC()
		}
		m.turns[userID] = append(m.turns[userID], t)
	}
	return nil
}

// tail copies the last n elements of s.
func tail[T any](s []T, n int) []T {
	if n < 0 {
		n = 0
	}
	if n > len(s) {
		n = len(s)
	}
	return append(make([]T, 0, n), s[len(s)-n:]...)
}

func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

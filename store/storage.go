package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"wellrag/pkg/logging"
	"wellrag/types"
)

// PgxPool is the part of pgxpool.Pool the store uses.
type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

type PostgresStore struct {
	pool      PgxPool
	dimension int
	logger    *logging.Logger
}

func NewPostgresStore(ctx context.Context, connStr string, dimension int, logger *logging.Logger) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return NewPostgresStoreWithPool(pool, dimension, logger), nil
}

func NewPostgresStoreWithPool(pool PgxPool, dimension int, logger *logging.Logger) *PostgresStore {
	if logger == nil {
		logger = logging.Default()
	}
	return &PostgresStore{
		pool:      pool,
		dimension: dimension,
		logger:    logger,
	}
}

func (p *PostgresStore) UpsertChunk(ctx context.Context, c types.DocumentChunk) error {
	query := `INSERT INTO medical_documents
		(id, document_id, document_name, title, source, chunk_index, content, embedding, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now(), now())
		ON CONFLICT (document_id, chunk_index) DO UPDATE SET
			document_name = EXCLUDED.document_name,
			title = EXCLUDED.title,
			source = EXCLUDED.source,
			content = EXCLUDED.content,
			embedding = EXCLUDED.embedding,
			updated_at = now()`

	_, err := p.pool.Exec(ctx, query,
		types.ChunkID(c.SourceDocumentID, c.ChunkIndex),
		c.SourceDocumentID,
		c.DocumentName,
		c.Title,
		c.Source,
		c.ChunkIndex,
		c.Text,
		pgvector.NewVector(c.Embedding),
	)
	if err != nil {
		return fmt.Errorf("upsert chunk %d: %w", c.ChunkIndex, err)
	}
	return nil
}

// DeleteChunksFrom removes the chunks of a document at or past fromIndex,
// which is the stale tail left when a document gets shorter.
func (p *PostgresStore) DeleteChunksFrom(ctx context.Context, docID uuid.UUID, fromIndex int) (int64, error) {
	tag, err := p.pool.Exec(ctx,
		"DELETE FROM medical_documents WHERE document_id = $1 AND chunk_index >= $2",
		docID, fromIndex)
	if err != nil {
		return 0, fmt.Errorf("delete stale chunks: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (p *PostgresStore) MatchDocuments(ctx context.Context, embedding []float32, k int) ([]types.DocumentChunk, error) {
	if len(embedding) == 0 {
		return nil, fmt.Errorf("empty query vector")
	}

	query := `SELECT document_id, document_name, title, source, chunk_index, content, similarity
		FROM match_medical_documents($1, $2)`

	rows, err := p.pool.Query(ctx, query, pgvector.NewVector(embedding), k)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chunks []types.DocumentChunk
	for rows.Next() {
		var c types.DocumentChunk
		if err := rows.Scan(
			&c.SourceDocumentID,
			&c.DocumentName,
			&c.Title,
			&c.Source,
			&c.ChunkIndex,
			&c.Text,
			&c.Similarity); err != nil {
			return nil, err
		}
		p.logger.Debug("matched chunk", "document", c.DocumentName, "index", c.ChunkIndex, "similarity", c.Similarity)
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}

func (p *PostgresStore) RecentLogs(ctx context.Context, userID string, n int) ([]types.SymptomLog, error) {
	query := `SELECT user_id, symptom_type, severity, mood, mood_score, sleep, notes, created_at
		FROM symptom_logs
		WHERE user_id = $1 AND is_deleted = false
		ORDER BY created_at DESC
		LIMIT $2`

	rows, err := p.pool.Query(ctx, query, userID, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := []types.SymptomLog{}
	for rows.Next() {
		var (
			l         types.SymptomLog
			mood      *string
			moodScore *float64
			notes     *string
		)
		if err := rows.Scan(
			&l.UserID,
			&l.SymptomType,
			&l.Severity,
			&mood,
			&moodScore,
			&l.Sleep,
			&notes,
			&l.CreatedAt); err != nil {
			return nil, err
		}
		switch {
		case moodScore != nil:
			l.Mood = types.ScoredMood(*moodScore)
		case mood != nil:
			l.Mood = types.FreeTextMood(*mood)
		}
		if notes != nil {
			l.Notes = *notes
		}
		logs = append(logs, l)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	reverse(logs)
	return logs, nil
}

func (p *PostgresStore) RecentTurns(ctx context.Context, userID string, n int) ([]types.ConversationTurn, error) {
	query := `SELECT role, content, created_at
		FROM chat_messages
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2`

	rows, err := p.pool.Query(ctx, query, userID, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	turns := []types.ConversationTurn{}
	for rows.Next() {
		var (
			t    types.ConversationTurn
			role string
		)
		if err := rows.Scan(&role, &t.Content, &t.CreatedAt); err != nil {
			return nil, err
		}
		t.Role = types.Role(role)
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	reverse(turns)
	return turns, nil
}

func (p *PostgresStore) SaveTurns(ctx context.Context, userID string, turns ...types.ConversationTurn) error {
	for _, t := range turns {
		createdAt := t.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now().UTC()
		}
		_, err := p.pool.Exec(ctx,
			"INSERT INTO chat_messages (user_id, role, content, created_at) VALUES ($1, $2, $3, $4)",
			userID, string(t.Role), t.Content, createdAt)
		if err != nil {
			return fmt.Errorf("save chat message: %w", err)
		}
	}
	return nil
}

func (p *PostgresStore) createTables(ctx context.Context) error {
	query := fmt.Sprintf(`
	CREATE EXTENSION IF NOT EXISTS vector;

	CREATE TABLE IF NOT EXISTS medical_documents (
		id UUID PRIMARY KEY,
		seq BIGSERIAL,
		document_id UUID NOT NULL,
		document_name TEXT NOT NULL,
		title TEXT NOT NULL,
		source TEXT,
		chunk_index INT NOT NULL CHECK (chunk_index >= 0),
		content TEXT NOT NULL,
		embedding vector(%[1]d),
		created_at TIMESTAMP WITH TIME ZONE DEFAULT now(),
		updated_at TIMESTAMP WITH TIME ZONE DEFAULT now(),
		UNIQUE (document_id, chunk_index)
	);

	CREATE INDEX IF NOT EXISTS idx_medical_documents_embedding
		ON medical_documents USING hnsw (embedding vector_cosine_ops);

	CREATE OR REPLACE FUNCTION match_medical_documents(query_embedding vector(%[1]d), match_count INT)
	RETURNS TABLE (
		document_id UUID,
		document_name TEXT,
		title TEXT,
		source TEXT,
		chunk_index INT,
		content TEXT,
		similarity DOUBLE PRECISION
	)
	LANGUAGE sql STABLE AS $$
		SELECT c.document_id, c.document_name, c.title, c.source, c.chunk_index, c.content,
		       1 - c.distance AS similarity
		FROM (
			SELECT d.document_id, d.document_name, d.title, d.source, d.chunk_index, d.content, d.seq,
			       d.embedding <=> query_embedding AS distance
			FROM medical_documents d
			WHERE d.embedding IS NOT NULL
			ORDER BY d.embedding <=> query_embedding
			LIMIT match_count * 4 + 16
		) c
		ORDER BY c.distance, c.seq
		LIMIT match_count
	$$;

	CREATE TABLE IF NOT EXISTS symptom_logs (
		id BIGSERIAL PRIMARY KEY,
		user_id TEXT NOT NULL,
		symptom_type TEXT NOT NULL,
		severity INT NOT NULL,
		mood TEXT,
		mood_score DOUBLE PRECISION,
		sleep INT,
		notes TEXT,
		created_at TIMESTAMP WITH TIME ZONE DEFAULT now(),
		is_deleted BOOLEAN NOT NULL DEFAULT false
	);

	CREATE INDEX IF NOT EXISTS idx_symptom_logs_user ON symptom_logs(user_id, created_at DESC);

	CREATE TABLE IF NOT EXISTS chat_messages (
		id BIGSERIAL PRIMARY KEY,
		user_id TEXT NOT NULL,
		role TEXT NOT NULL CHECK (role IN ('user','assistant')),
		content TEXT NOT NULL,
		created_at TIMESTAMP WITH TIME ZONE DEFAULT now()
	);

	CREATE INDEX IF NOT EXISTS idx_chat_messages_user ON chat_messages(user_id, created_at DESC);
	`, p.dimension)

	_, err := p.pool.Exec(ctx, query)
	return err
}

func (p *PostgresStore) Init(ctx context.Context) error {
	return p.createTables(ctx)
}

func (p *PostgresStore) Close() error {
	if p.pool != nil {
		p.pool.Close()
		p.logger.Info("postgres connection pool is closed")
	}
	return nil
}

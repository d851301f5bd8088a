package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnvDefaults(t *testing.T) {
	t.Setenv("CHUNK_SIZE", "")
	t.Setenv("EMBEDDING_DIMENSION", "")

	cfg := FromEnv()

	assert.Equal(t, 1000, cfg.ChunkSize)
	assert.Equal(t, 200, cfg.ChunkOverlap)
	assert.Equal(t, 384, cfg.EmbeddingDimension)
	assert.Equal(t, 1, cfg.EmbeddingMaxRetries)
	assert.Equal(t, 3*time.Second, cfg.EmbeddingRetryBaseDelay)
	assert.Equal(t, 30, cfg.LogWindow)
	assert.Equal(t, 6, cfg.MemoryWindow)
	assert.Equal(t, 5, cfg.RetrievalK)
	assert.Equal(t, 7, cfg.ForecastHorizon)
	require.NoError(t, cfg.Validate())
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("CHUNK_SIZE", "800")
	t.Setenv("CHUNK_OVERLAP", "100")
	t.Setenv("EMBEDDING_TIMEOUT", "5s")
	t.Setenv("STORE_BACKEND", "MEMORY")
	t.Setenv("DOMAIN_EXTRA_TERMS", " thyroid , ,iron ")

	cfg := FromEnv()

	assert.Equal(t, 800, cfg.ChunkSize)
	assert.Equal(t, 100, cfg.ChunkOverlap)
	assert.Equal(t, 5*time.Second, cfg.EmbeddingTimeout)
	assert.Equal(t, "memory", cfg.StoreBackend)
	assert.Equal(t, []string{"thyroid", "iron"}, cfg.ExtraDomainTerms)
}

func TestFromEnvIgnoresMalformedValues(t *testing.T) {
	t.Setenv("CHUNK_SIZE", "large")
	t.Setenv("FETCH_TIMEOUT", "soon")

	cfg := FromEnv()

	assert.Equal(t, 1000, cfg.ChunkSize)
	assert.Equal(t, 8*time.Second, cfg.FetchTimeout)
}

func TestValidateRejectsOverlapNotBelowSize(t *testing.T) {
	cfg := FromEnv()
	cfg.ChunkSize = 200
	cfg.ChunkOverlap = 200

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CHUNK_OVERLAP")
}

func TestValidateRejectsUnknownBackends(t *testing.T) {
	cfg := FromEnv()
	cfg.StoreBackend = "sqlite"
	cfg.MemoryBackend = "file"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "STORE_BACKEND")
	assert.Contains(t, err.Error(), "MEMORY_BACKEND")
}

func TestPostgresDSN(t *testing.T) {
	cfg := &Config{PGHost: "db", PGPort: 5433, PGUser: "u", PGPass: "p", PGDBName: "well"}
	assert.Equal(t, "host=db port=5433 user=u password=p dbname=well sslmode=disable", cfg.PostgresDSN())

	cfg.DatabaseURL = "postgres://x"
	assert.Equal(t, "postgres://x", cfg.PostgresDSN())
}

package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	ServerAddr string
	LogLevel   string

	// Storage backends: "postgres" or "memory" for documents and logs,
	// "postgres", "redis" or "memory" for conversation memory.
	StoreBackend  string
	MemoryBackend string
	DatabaseURL   string
	PGHost        string
	PGPort        int
	PGUser        string
	PGPass        string
	PGDBName      string

	RedisAddr       string
	RedisPassword   string
	RedisHistoryTTL time.Duration
	RedisHistoryCap int

	EmbeddingURL            string
	EmbeddingToken          string
	EmbeddingDimension      int
	EmbeddingTimeout        time.Duration
	EmbeddingMaxRetries     int
	EmbeddingRetryBaseDelay time.Duration
	EmbeddingRetryMaxDelay  time.Duration

	ChunkSize    int
	ChunkOverlap int

	LLMURL     string
	LLMModel   string
	LLMTimeout time.Duration

	DoclingURL     string
	SourceDir      string
	ArchiveDir     string
	BadDir         string
	MonitoringTime time.Duration
	PDFCropTop     float64
	PDFCropBottom  float64

	LogWindow        int
	MemoryWindow     int
	RetrievalK       int
	ForecastHorizon  int
	FetchTimeout     time.Duration
	RequestTimeout   time.Duration
	ExtraDomainTerms []string
}

// Load reads an optional .env file and then the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("config: load .env: %w", err)
	}
	cfg := FromEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromEnv builds a Config from environment variables without touching .env.
func FromEnv() *Config {
	return &Config{
		ServerAddr: getEnv("SERVER_ADDR", ":3000"),
		LogLevel:   getEnv("LOG_LEVEL", "info"),

		StoreBackend:  strings.ToLower(getEnv("STORE_BACKEND", "postgres")),
		MemoryBackend: strings.ToLower(getEnv("MEMORY_BACKEND", "postgres")),
		DatabaseURL:   getEnv("DATABASE_URL", ""),
		PGHost:        getEnv("PG_HOST", "localhost"),
		PGPort:        getEnvAsInt("PG_PORT", 5432),
		PGUser:        getEnv("PG_USER", "postgres"),
		PGPass:        getEnv("PG_PASS", ""),
		PGDBName:      getEnv("PG_DB_NAME", "wellrag"),

		RedisAddr:       getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:   getEnv("REDIS_PASSWORD", ""),
		RedisHistoryTTL: getEnvAsDuration("REDIS_HISTORY_TTL", 30*24*time.Hour),
		RedisHistoryCap: getEnvAsInt("REDIS_HISTORY_CAP", 200),

		EmbeddingURL:            getEnv("EMBEDDING_URL", "https://api-inference.huggingface.co/pipeline/feature-extraction/sentence-transformers/all-MiniLM-L6-v2"),
		EmbeddingToken:          getEnv("EMBEDDING_API_KEY", ""),
		EmbeddingDimension:      getEnvAsInt("EMBEDDING_DIMENSION", 384),
		EmbeddingTimeout:        getEnvAsDuration("EMBEDDING_TIMEOUT", 20*time.Second),
		EmbeddingMaxRetries:     getEnvAsInt("EMBEDDING_MAX_RETRIES", 1),
		EmbeddingRetryBaseDelay: getEnvAsDuration("EMBEDDING_RETRY_BASE_DELAY", 3*time.Second),
		EmbeddingRetryMaxDelay:  getEnvAsDuration("EMBEDDING_RETRY_MAX_DELAY", 10*time.Second),

		ChunkSize:    getEnvAsInt("CHUNK_SIZE", 1000),
		ChunkOverlap: getEnvAsInt("CHUNK_OVERLAP", 200),

		LLMURL:     getEnv("LLM_URL", "http://localhost:11434/api/generate"),
		LLMModel:   getEnv("LLM_MODEL", "llama3.1"),
		LLMTimeout: getEnvAsDuration("LLM_TIMEOUT", 60*time.Second),

		DoclingURL:     getEnv("DOCLING_URL", "http://localhost:5001/v1/convert/file"),
		SourceDir:      getEnv("LOADER_SOURCE_DIR", "./data/source"),
		ArchiveDir:     getEnv("LOADER_ARCHIVE_DIR", "./data/archive"),
		BadDir:         getEnv("LOADER_BAD_DIR", "./data/bad"),
		MonitoringTime: getEnvAsDuration("LOADER_MONITORING_TIME", 5*time.Second),
		PDFCropTop:     getEnvAsFloat("PDF_CROP_TOP", 0),
		PDFCropBottom:  getEnvAsFloat("PDF_CROP_BOTTOM", 0),

		LogWindow:        getEnvAsInt("LOG_WINDOW", 30),
		MemoryWindow:     getEnvAsInt("MEMORY_WINDOW", 6),
		RetrievalK:       getEnvAsInt("RETRIEVAL_K", 5),
		ForecastHorizon:  getEnvAsInt("FORECAST_HORIZON", 7),
		FetchTimeout:     getEnvAsDuration("FETCH_TIMEOUT", 8*time.Second),
		RequestTimeout:   getEnvAsDuration("REQUEST_TIMEOUT", 90*time.Second),
		ExtraDomainTerms: getEnvAsList("DOMAIN_EXTRA_TERMS"),
	}
}

// Validate rejects settings the pipeline cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.ChunkSize <= 0 {
		errs = append(errs, fmt.Errorf("CHUNK_SIZE must be positive, got %d", c.ChunkSize))
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		errs = append(errs, fmt.Errorf("CHUNK_OVERLAP must be in [0, CHUNK_SIZE), got %d", c.ChunkOverlap))
	}
	if c.EmbeddingDimension <= 0 {
		errs = append(errs, fmt.Errorf("EMBEDDING_DIMENSION must be positive, got %d", c.EmbeddingDimension))
	}
	if c.EmbeddingMaxRetries < 0 {
		errs = append(errs, fmt.Errorf("EMBEDDING_MAX_RETRIES must not be negative, got %d", c.EmbeddingMaxRetries))
	}
	if c.EmbeddingTimeout <= 0 || c.FetchTimeout <= 0 {
		errs = append(errs, errors.New("EMBEDDING_TIMEOUT and FETCH_TIMEOUT must be positive"))
	}
	switch c.StoreBackend {
	case "postgres", "memory":
	default:
		errs = append(errs, fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend))
	}
	switch c.MemoryBackend {
	case "postgres", "redis", "memory":
	default:
		errs = append(errs, fmt.Errorf("unknown MEMORY_BACKEND %q", c.MemoryBackend))
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

// PostgresDSN prefers DATABASE_URL and falls back to the PG_* parts.
func (c *Config) PostgresDSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		c.PGHost, c.PGPort, c.PGUser, c.PGPass, c.PGDBName)
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value, err := strconv.Atoi(getEnv(key, "")); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value, err := strconv.ParseFloat(getEnv(key, ""), 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsList(key string) []string {
	var out []string
	for _, part := range strings.Split(getEnv(key, ""), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

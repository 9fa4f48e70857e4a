package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Port string

	// Auth
	LawsearchAPIKey string

	// Storage
	DataDir       string
	IndexDir      string
	DivisionsFile string

	MaxUploadBytes int64

	// Generation
	LLMProvider          string
	AnthropicAPIKey      string
	GeminiAPIKey         string
	ModelFast            string
	ModelBalanced        string
	ModelReasoning       string
	ModelStrong          string
	LLMRequestsPerSecond float64

	// Embedding
	EmbeddingProvider          string
	EmbeddingModel             string
	OpenAIAPIKey               string
	OpenAIBaseURL              string
	EmbeddingRequestsPerSecond float64

	// Chunking
	ChunkSize    int
	ChunkOverlap int

	// Query limits
	DefaultEffort     string
	DefaultMaxResults int
	MaxResults        int
	MaxQuestionLength int
	MaxSteps          int
	QueryTimeout      time.Duration
	IncludeSources    bool

	// Concurrency
	MaxConcurrentDivisions int
	MaxConcurrentMap       int
	MaxConcurrentIngest    int

	// Ingest run state
	RunTTL time.Duration

	LogLevel string

	// PDF
	PDFFallbackPdftotext bool
}

func Load() Config {
	cfg := Config{
		Port: envOr("PORT", "8095"),

		LawsearchAPIKey: os.Getenv("LAWSEARCH_API_KEY"),

		DataDir:       envOr("DATA_DIR", "data/bills"),
		IndexDir:      envOr("INDEX_DIR", "db/index"),
		DivisionsFile: os.Getenv("DIVISIONS_FILE"),

		MaxUploadBytes: envInt64("MAX_UPLOAD_BYTES", 52428800), // 50MB

		LLMProvider:          strings.ToLower(envOr("LLM_PROVIDER", "anthropic")),
		AnthropicAPIKey:      os.Getenv("ANTHROPIC_API_KEY"),
		GeminiAPIKey:         os.Getenv("GEMINI_API_KEY"),
		ModelFast:            os.Getenv("MODEL_FAST"),
		ModelBalanced:        os.Getenv("MODEL_BALANCED"),
		ModelReasoning:       os.Getenv("MODEL_REASONING"),
		ModelStrong:          os.Getenv("MODEL_STRONG"),
		LLMRequestsPerSecond: envFloat("LLM_REQUESTS_PER_SECOND", 5),

		EmbeddingProvider:          strings.ToLower(envOr("EMBEDDING_PROVIDER", "openai")),
		EmbeddingModel:             os.Getenv("EMBEDDING_MODEL"),
		OpenAIAPIKey:               os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL:              envOr("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		EmbeddingRequestsPerSecond: envFloat("EMBEDDING_REQUESTS_PER_SECOND", 5),

		ChunkSize:    envInt("CHUNK_SIZE", 1500),
		ChunkOverlap: envInt("CHUNK_OVERLAP", 200),

		DefaultEffort:     strings.ToLower(envOr("DEFAULT_EFFORT", "medium")),
		DefaultMaxResults: envInt("DEFAULT_MAX_RESULTS", 8),
		MaxResults:        envInt("MAX_RESULTS", 20),
		MaxQuestionLength: envInt("MAX_QUESTION_LENGTH", 1000),
		MaxSteps:          envInt("MAX_STEPS", 25),
		QueryTimeout:      envDuration("QUERY_TIMEOUT", 300*time.Second),
		IncludeSources:    envBool("INCLUDE_SOURCES", false),

		MaxConcurrentDivisions: envInt("MAX_CONCURRENT_DIVISIONS", 4),
		MaxConcurrentMap:       envInt("MAX_CONCURRENT_MAP", 4),
		MaxConcurrentIngest:    envInt("MAX_CONCURRENT_INGEST", 2),

		RunTTL: envDuration("RUN_TTL", 1*time.Hour),

		LogLevel: envOr("LOG_LEVEL", "info"),

		PDFFallbackPdftotext: envBool("PDF_FALLBACK_PDFTOTEXT", true),
	}

	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = 1500
	}
	if cfg.ChunkOverlap < 0 {
		cfg.ChunkOverlap = 200
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 52428800
	}
	if cfg.DefaultMaxResults <= 0 {
		cfg.DefaultMaxResults = 8
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = 20
	}
	if cfg.MaxQuestionLength <= 0 {
		cfg.MaxQuestionLength = 1000
	}
	if cfg.MaxSteps <= 0 {
		cfg.MaxSteps = 25
	}
	if cfg.QueryTimeout <= 0 {
		cfg.QueryTimeout = 300 * time.Second
	}
	if cfg.MaxConcurrentDivisions <= 0 {
		cfg.MaxConcurrentDivisions = 4
	}
	if cfg.MaxConcurrentMap <= 0 {
		cfg.MaxConcurrentMap = 4
	}
	if cfg.MaxConcurrentIngest <= 0 {
		cfg.MaxConcurrentIngest = 2
	}
	if cfg.LLMRequestsPerSecond <= 0 {
		cfg.LLMRequestsPerSecond = 5
	}
	if cfg.RunTTL <= 0 {
		cfg.RunTTL = 1 * time.Hour
	}

	cfg.applyModelDefaults()
	if cfg.EmbeddingModel == "" {
		cfg.EmbeddingModel = DefaultEmbeddingModel(cfg.EmbeddingProvider)
	}

	return cfg
}

func (c *Config) applyModelDefaults() {
	var fast, balanced, reasoning, strong string
	switch c.LLMProvider {
	case "genai":
		fast, balanced, reasoning, strong = "gemini-2.5-flash-lite", "gemini-2.5-flash", "gemini-2.5-pro", "gemini-2.5-pro"
	default:
		fast, balanced, reasoning, strong = "claude-haiku-4-5", "claude-sonnet-4-5-20250929", "claude-sonnet-4-5-20250929", "claude-opus-4-1"
	}
	if c.ModelFast == "" {
		c.ModelFast = fast
	}
	if c.ModelBalanced == "" {
		c.ModelBalanced = balanced
	}
	if c.ModelReasoning == "" {
		c.ModelReasoning = reasoning
	}
	if c.ModelStrong == "" {
		c.ModelStrong = strong
	}
}

// DefaultEmbeddingModel returns the model used when EMBEDDING_MODEL is unset.
func DefaultEmbeddingModel(provider string) string {
	switch provider {
	case "genai":
		return "gemini-embedding-001"
	case "hash":
		return "hash-256"
	default:
		return "text-embedding-3-large"
	}
}

func (c Config) Validate() error {
	switch c.LLMProvider {
	case "anthropic":
		if c.AnthropicAPIKey == "" {
			return fmt.Errorf("ANTHROPIC_API_KEY is required")
		}
	case "genai":
		if c.GeminiAPIKey == "" {
			return fmt.Errorf("GEMINI_API_KEY is required")
		}
	default:
		return fmt.Errorf("unknown LLM_PROVIDER %q", c.LLMProvider)
	}
	switch c.EmbeddingProvider {
	case "openai":
		if c.OpenAIAPIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY is required")
		}
	case "genai":
		if c.GeminiAPIKey == "" {
			return fmt.Errorf("GEMINI_API_KEY is required")
		}
	case "hash":
	default:
		return fmt.Errorf("unknown EMBEDDING_PROVIDER %q", c.EmbeddingProvider)
	}
	if c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("CHUNK_OVERLAP (%d) must be smaller than CHUNK_SIZE (%d)", c.ChunkOverlap, c.ChunkSize)
	}
	if c.DefaultMaxResults > c.MaxResults {
		return fmt.Errorf("DEFAULT_MAX_RESULTS (%d) exceeds MAX_RESULTS (%d)", c.DefaultMaxResults, c.MaxResults)
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

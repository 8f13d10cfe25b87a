package config

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/vectorgate/vectorgate/models"
)

// Config represents the complete application configuration
type Config struct {
	Server        ServerConfig
	VectorStore   VectorStoreConfig
	Tenancy       TenancyConfig
	Chunking      ChunkingConfig
	Providers     ProvidersConfig
	Jobs          JobsConfig
	Observability ObservabilityConfig
	Environment   string
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// VectorStoreConfig holds the pgvector-backed store configuration.
// ConnectionURL is a postgres:// URL identifying host, credentials and
// database; it is validated for scheme and shape before use.
type VectorStoreConfig struct {
	ConnectionURL   string
	Table           string
	Dimensions      int
	IndexType       models.IndexType
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// TenancyConfig holds tenant resolution and quota configuration
type TenancyConfig struct {
	JWTSecret      string // HS256 secret for bearer-token credentials
	CacheTTL       time.Duration
	CacheMaxSize   int
	ResolveTimeout time.Duration
}

// ChunkingConfig holds document splitting parameters
type ChunkingConfig struct {
	MaxChunkSize int
	Overlap      int
}

// ProvidersConfig holds embedding/generation provider configuration
type ProvidersConfig struct {
	OpenAI OpenAIConfig
}

// OpenAIConfig holds configuration for an OpenAI-compatible provider
type OpenAIConfig struct {
	APIKey          string
	BaseURL         string
	EmbeddingModel  string
	GenerationModel string
	Timeout         time.Duration
	MaxRetries      int
}

// JobsConfig holds the job executor configuration
type JobsConfig struct {
	Workers      int
	PollInterval time.Duration
}

// ObservabilityConfig holds logging configuration
type ObservabilityConfig struct {
	LogLevel  string
	LogFormat string // json or text
}

// New creates a new Config instance by loading environment variables
func New(ctx context.Context) (*Config, error) {
	// Load .env if present (no-op otherwise)
	_ = godotenv.Load(".env")

	cfg := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getEnvAsInt("SERVER_PORT", 8080),
			ReadTimeout:     getEnvAsDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getEnvAsDuration("SERVER_WRITE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		VectorStore: VectorStoreConfig{
			ConnectionURL:   getEnv("VECTOR_STORE_URL", ""),
			Table:           getEnv("VECTOR_STORE_TABLE", "chunks"),
			Dimensions:      getEnvAsInt("VECTOR_STORE_DIMENSIONS", 1536),
			IndexType:       models.IndexType(getEnv("VECTOR_STORE_INDEX", string(models.IndexIVFFlat))),
			MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Tenancy: TenancyConfig{
			JWTSecret:      getEnv("TENANT_JWT_SECRET", ""),
			CacheTTL:       getEnvAsDuration("TENANT_CACHE_TTL", 5*time.Minute),
			CacheMaxSize:   getEnvAsInt("TENANT_CACHE_MAX_SIZE", 1024),
			ResolveTimeout: getEnvAsDuration("TENANT_RESOLVE_TIMEOUT", 5*time.Second),
		},
		Chunking: ChunkingConfig{
			MaxChunkSize: getEnvAsInt("CHUNK_MAX_SIZE", 1000),
			Overlap:      getEnvAsInt("CHUNK_OVERLAP", 100),
		},
		Providers: ProvidersConfig{
			OpenAI: OpenAIConfig{
				APIKey:          getEnv("OPENAI_API_KEY", ""),
				BaseURL:         getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
				EmbeddingModel:  getEnv("OPENAI_EMBEDDING_MODEL", "text-embedding-3-small"),
				GenerationModel: getEnv("OPENAI_GENERATION_MODEL", "gpt-4o-mini"),
				Timeout:         getEnvAsDuration("OPENAI_TIMEOUT", 60*time.Second),
				MaxRetries:      getEnvAsInt("OPENAI_MAX_RETRIES", 3),
			},
		},
		Jobs: JobsConfig{
			Workers:      getEnvAsInt("JOB_WORKERS", 4),
			PollInterval: getEnvAsDuration("JOB_POLL_INTERVAL", 250*time.Millisecond),
		},
		Observability: ObservabilityConfig{
			LogLevel:  getEnv("LOG_LEVEL", "info"),
			LogFormat: getEnv("LOG_FORMAT", "json"),
		},
	}

	// Validate the configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks if all required configuration fields are set
func (c *Config) Validate() error {
	if c.VectorStore.ConnectionURL == "" {
		return fmt.Errorf("vector store configuration required: set VECTOR_STORE_URL")
	}
	if err := models.ValidateConnectionURL(c.VectorStore.ConnectionURL); err != nil {
		return fmt.Errorf("invalid VECTOR_STORE_URL: %w", err)
	}
	if c.VectorStore.Dimensions <= 0 {
		return fmt.Errorf("vector store dimensions must be positive")
	}
	if !c.VectorStore.IndexType.Valid() {
		return fmt.Errorf("vector store index must be %q or %q", models.IndexIVFFlat, models.IndexHNSW)
	}
	if c.Jobs.Workers <= 0 {
		return fmt.Errorf("job worker count must be positive")
	}
	if c.Chunking.MaxChunkSize <= 0 {
		return fmt.Errorf("chunk size must be positive")
	}
	if c.Chunking.Overlap < 0 || c.Chunking.Overlap >= c.Chunking.MaxChunkSize {
		return fmt.Errorf("chunk overlap must be non-negative and smaller than chunk size")
	}

	if c.IsProduction() {
		if c.Tenancy.JWTSecret == "" {
			return fmt.Errorf("tenant JWT secret is required in production")
		}
		if c.Providers.OpenAI.APIKey == "" {
			return fmt.Errorf("an embedding provider must be configured in production")
		}
	}

	if c.Observability.LogLevel == "" {
		return fmt.Errorf("log level is required")
	}

	return nil
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return c.Environment == "production" || c.Environment == "prod"
}

// IsDevelopment returns true if running in development environment
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development" || c.Environment == "dev"
}

// Address returns the HTTP server address
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// LogString returns a safe connection description for logging (no password).
func (c *VectorStoreConfig) LogString() string {
	u, err := url.Parse(c.ConnectionURL)
	if err != nil {
		return "host=<invalid>"
	}
	host := u.Hostname()
	port := u.Port()
	if port == "" {
		port = "5432"
	}
	db := strings.TrimPrefix(u.Path, "/")
	return fmt.Sprintf("host=%s port=%s database=%s table=%s", host, port, db, c.Table)
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

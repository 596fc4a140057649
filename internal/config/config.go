// Package config loads settings from environment variables with the
// MINDLOOM_ prefix and provides defaults for every option, so a bare
// `mindloomd` starts against local sqlite and Ollama.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all settings for the Mindloom service.
type Config struct {
	Server   ServerConfig
	Storage  StorageConfig
	LLM      LLMConfig
	Ontology OntologyConfig
	Pipeline PipelineConfig
	Security SecurityConfig
	Backup   BackupConfig
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	Port int    // Server port (default: 7171)
	Host string // Server host (default: 127.0.0.1)
}

// StorageConfig selects and configures the index backend.
type StorageConfig struct {
	Engine      string // Index backend: sqlite, postgres (default: sqlite)
	DataPath    string // Path to the sqlite data directory (default: ./data)
	PostgresDSN string // Postgres connection string, required for the postgres engine
	VectorDim   int    // Embedding dimensionality for the postgres vector column (default: 768)
}

// LLMConfig contains model provider configuration.
type LLMConfig struct {
	Provider             string        // LLM provider: ollama, openai, none (default: ollama)
	OllamaURL            string        // Ollama API URL (default: http://localhost:11434)
	OllamaModel          string        // Ollama completion model (default: qwen2.5:7b)
	OllamaEmbeddingModel string        // Ollama embedding model (default: nomic-embed-text)
	OpenAIAPIKey         string        // OpenAI API key
	OpenAIModel          string        // OpenAI completion model (default: gpt-4o-mini)
	OpenAIEmbeddingModel string        // OpenAI embedding model (default: text-embedding-3-small)
	Timeout              time.Duration // Per-request timeout (default: 30s)
	RequestsPerSecond    int           // Client-side rate limit (default: 10)
}

// OntologyConfig points at the concept catalog.
type OntologyConfig struct {
	CatalogPath string // YAML catalog path; empty uses the built-in catalog
	Watch       bool   // Reload the catalog when the file changes (default: true)
}

// PipelineConfig tunes the ingestion and caching behavior.
type PipelineConfig struct {
	AsyncUpserts  bool          // Hand index writes to a worker pool (default: false)
	Workers       int           // Async upsert workers (default: 2)
	QueueSize     int           // Async upsert queue size (default: 64)
	CacheTTL      time.Duration // Analysis/search/profile cache TTL (default: 5m)
	KNNCandidates int           // Vector-side candidates per search (default: 100)
}

// SecurityConfig contains authentication settings.
type SecurityConfig struct {
	APIToken string // Bearer token; empty disables authentication
}

// BackupConfig schedules snapshots of the sqlite index. It only applies to
// the sqlite engine; postgres deployments back up server-side.
type BackupConfig struct {
	Enabled  bool          // Take periodic snapshots (default: false)
	Dir      string        // Snapshot directory (default: <data path>/backups)
	Interval time.Duration // Time between snapshots (default: 1h)
	Verify   bool          // Integrity-check each snapshot (default: true)
}

// Load builds the configuration from environment variables and defaults.
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port: getEnvInt("MINDLOOM_PORT", 7171),
			Host: getEnv("MINDLOOM_HOST", "127.0.0.1"),
		},
		Storage: StorageConfig{
			Engine:      getEnv("MINDLOOM_STORAGE_ENGINE", "sqlite"),
			DataPath:    getEnv("MINDLOOM_DATA_PATH", "./data"),
			PostgresDSN: getEnv("MINDLOOM_POSTGRES_DSN", ""),
			VectorDim:   getEnvInt("MINDLOOM_VECTOR_DIM", 768),
		},
		LLM: LLMConfig{
			Provider:             getEnv("MINDLOOM_LLM_PROVIDER", "ollama"),
			OllamaURL:            getEnv("MINDLOOM_OLLAMA_URL", "http://localhost:11434"),
			OllamaModel:          getEnv("MINDLOOM_OLLAMA_MODEL", "qwen2.5:7b"),
			OllamaEmbeddingModel: getEnv("MINDLOOM_EMBEDDING_MODEL", "nomic-embed-text"),
			OpenAIAPIKey:         getEnv("MINDLOOM_OPENAI_API_KEY", ""),
			OpenAIModel:          getEnv("MINDLOOM_OPENAI_MODEL", "gpt-4o-mini"),
			OpenAIEmbeddingModel: getEnv("MINDLOOM_OPENAI_EMBEDDING_MODEL", "text-embedding-3-small"),
			Timeout:              getEnvDuration("MINDLOOM_LLM_TIMEOUT", 30*time.Second),
			RequestsPerSecond:    getEnvInt("MINDLOOM_LLM_RPS", 10),
		},
		Ontology: OntologyConfig{
			CatalogPath: getEnv("MINDLOOM_ONTOLOGY_PATH", ""),
			Watch:       getEnvBool("MINDLOOM_ONTOLOGY_WATCH", true),
		},
		Pipeline: PipelineConfig{
			AsyncUpserts:  getEnvBool("MINDLOOM_ASYNC_UPSERTS", false),
			Workers:       getEnvInt("MINDLOOM_UPSERT_WORKERS", 2),
			QueueSize:     getEnvInt("MINDLOOM_UPSERT_QUEUE", 64),
			CacheTTL:      getEnvDuration("MINDLOOM_CACHE_TTL", 5*time.Minute),
			KNNCandidates: getEnvInt("MINDLOOM_KNN_CANDIDATES", 100),
		},
		Security: SecurityConfig{
			APIToken: getEnv("MINDLOOM_API_TOKEN", ""),
		},
		Backup: BackupConfig{
			Enabled:  getEnvBool("MINDLOOM_BACKUP_ENABLED", false),
			Dir:      getEnv("MINDLOOM_BACKUP_DIR", ""),
			Interval: getEnvDuration("MINDLOOM_BACKUP_INTERVAL", time.Hour),
			Verify:   getEnvBool("MINDLOOM_BACKUP_VERIFY", true),
		},
	}
}

// getEnv retrieves a string environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt retrieves an integer environment variable or returns a default
// value. Unparseable values fall back to the default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvBool retrieves a boolean environment variable or returns a default
// value. It recognizes "true", "1", "yes" and "false", "0", "no".
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		switch value {
		case "true", "1", "yes", "True", "TRUE", "Yes", "YES":
			return true
		case "false", "0", "no", "False", "FALSE", "No", "NO":
			return false
		}
	}
	return defaultValue
}

// getEnvDuration retrieves a duration environment variable (Go duration
// syntax, e.g. "45s") or returns a default value.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

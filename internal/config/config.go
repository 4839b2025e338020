package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

var ErrMissingRequired = errors.New("missing required configuration")

// Config is the immutable, environment-sourced configuration struct
// built once at startup. Core components never read the environment
// directly; they receive values threaded through from here.
type Config struct {
	// Job ledger (Postgres)
	DBHost string `envconfig:"DB_HOST" default:"postgres"`
	DBPort int    `envconfig:"DB_PORT" default:"5432"`
	DBUser string `envconfig:"DB_USER" default:"orion"`
	DBPass string `envconfig:"DB_PASS" default:"password"`
	DBName string `envconfig:"DB_NAME" default:"orion"`

	// Server
	ServerPort int `envconfig:"SERVER_PORT" default:"8081"`

	// On-disk layout and upload limits
	BaseDir     string `envconfig:"BASE_DIR" default:"./data"`
	MaxFileSize int64  `envconfig:"MAX_FILE_SIZE" default:"52428800"`

	// Vector storage
	VectorStorageType string `envconfig:"VECTOR_STORAGE_TYPE" default:"json"`

	// Chunking
	ChunkSize           int     `envconfig:"CHUNK_SIZE" default:"512"`
	ChunkOverlapPercent float64 `envconfig:"CHUNK_OVERLAP_PERCENT" default:"0.10"`
	TokenizerName       string  `envconfig:"TOKENIZER_NAME" default:"cl100k_base"`

	// Embedding
	EmbeddingProvider         string `envconfig:"EMBEDDING_PROVIDER" default:"cohere"`
	EmbeddingAPIKey           string `envconfig:"EMBEDDING_API_KEY" required:"true"`
	EmbeddingModel            string `envconfig:"EMBEDDING_MODEL" default:"embed-english-v3.0"`
	EmbeddingBatchSize        int    `envconfig:"EMBEDDING_BATCH_SIZE" default:"96"`
	EmbeddingBatchConcurrency int    `envconfig:"EMBEDDING_BATCH_CONCURRENCY" default:"8"`
	// EmbeddingBaseURL overrides the Cohere embed endpoint. Empty uses
	// the public API; set for a self-hosted proxy or, in tests, a
	// local stub.
	EmbeddingBaseURL string `envconfig:"EMBEDDING_BASE_URL" default:""`

	// Search
	HybridAlpha float64 `envconfig:"HYBRID_ALPHA" default:"0.7"`

	// Pipeline / worker pool
	PipelineTimeoutSeconds int    `envconfig:"PIPELINE_TIMEOUT_SECONDS" default:"300"`
	WorkerPoolSize         int    `envconfig:"WORKER_POOL_SIZE" default:"0"`
	TaskQueue              string `envconfig:"TASK_QUEUE" default:"inprocess"`
	NSQLookupd             string `envconfig:"NSQ_LOOKUPD" default:"nsqlookupd:4161"`
	NSQDHost               string `envconfig:"NSQD_HOST" default:"nsqd:4150"`

	MigrationPath string `envconfig:"MIGRATION_PATH" default:"file://migrations"`
	LogLevel      string `envconfig:"LOG_LEVEL" default:"INFO"`

	// Resilience
	BootstrapRetryAttempts     int `envconfig:"BOOTSTRAP_RETRY_ATTEMPTS" default:"10"`
	BootstrapRetryDelaySeconds int `envconfig:"BOOTSTRAP_RETRY_DELAY_SECONDS" default:"2"`
}

func Load() (*Config, error) {
	// Try loading .env from current dir and repo root.
	// Ignore errors, as env vars might be set in the shell.
	_ = godotenv.Load(".env")

	cwd, _ := os.Getwd()
	rootEnv := filepath.Join(cwd, "../../.env")
	_ = godotenv.Load(rootEnv)

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.DBHost == "" {
		return fmt.Errorf("%w: DB_HOST", ErrMissingRequired)
	}
	if c.DBUser == "" {
		return fmt.Errorf("%w: DB_USER", ErrMissingRequired)
	}
	if c.DBName == "" {
		return fmt.Errorf("%w: DB_NAME", ErrMissingRequired)
	}
	if c.EmbeddingAPIKey == "" {
		return fmt.Errorf("%w: EMBEDDING_API_KEY", ErrMissingRequired)
	}
	switch c.VectorStorageType {
	case "json", "hdf5":
	default:
		return fmt.Errorf("%w: VECTOR_STORAGE_TYPE must be json or hdf5", ErrMissingRequired)
	}
	switch c.EmbeddingProvider {
	case "cohere", "gemini":
	default:
		return fmt.Errorf("%w: EMBEDDING_PROVIDER must be cohere or gemini", ErrMissingRequired)
	}
	switch c.TaskQueue {
	case "inprocess", "nsq":
	default:
		return fmt.Errorf("%w: TASK_QUEUE must be inprocess or nsq", ErrMissingRequired)
	}
	return nil
}

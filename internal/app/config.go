package app

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/lishiyo/twincore-prototype-sub000/internal/platform/envutil"
)

// Config is the service configuration. A YAML file supplies the base values;
// environment variables override field by field so containers need no file.
type Config struct {
	ServerAddress string `yaml:"server_address"`
	Environment   string `yaml:"environment"`
	Version       string `yaml:"version"`

	EmbeddingDimension   int    `yaml:"embedding_dimension"`
	VectorCollectionName string `yaml:"vector_collection_name"`
	GraphDatabaseName    string `yaml:"graph_database_name"`

	ChunkDefaultSize    int `yaml:"chunk_default_size"`
	ChunkDefaultOverlap int `yaml:"chunk_default_overlap"`

	DefaultRetrievalLimit int     `yaml:"default_retrieval_limit"`
	DefaultScoreThreshold float64 `yaml:"default_score_threshold"`
}

func defaults() Config {
	return Config{
		ServerAddress:         ":8000",
		Environment:           "development",
		Version:               "dev",
		EmbeddingDimension:    1536,
		VectorCollectionName:  "memory_chunks",
		GraphDatabaseName:     "neo4j",
		ChunkDefaultSize:      1000,
		ChunkDefaultOverlap:   200,
		DefaultRetrievalLimit: 10,
		DefaultScoreThreshold: 0.6,
	}
}

// Load reads the YAML file at path (or CONFIG_PATH when path is empty), then
// applies environment overrides. A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := defaults()
	if path == "" {
		path = envutil.Str("CONFIG_PATH", "")
	}
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return cfg, fmt.Errorf("read config %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.ServerAddress = envutil.Str("SERVER_ADDRESS", cfg.ServerAddress)
	cfg.Environment = envutil.Str("ENVIRONMENT", cfg.Environment)
	cfg.Version = envutil.Str("SERVICE_VERSION", cfg.Version)
	cfg.EmbeddingDimension = envutil.Int("EMBEDDING_DIMENSION", cfg.EmbeddingDimension)
	cfg.VectorCollectionName = envutil.Str("VECTOR_COLLECTION_NAME", cfg.VectorCollectionName)
	cfg.GraphDatabaseName = envutil.Str("GRAPH_DATABASE_NAME", cfg.GraphDatabaseName)
	cfg.ChunkDefaultSize = envutil.Int("CHUNK_DEFAULT_SIZE", cfg.ChunkDefaultSize)
	cfg.ChunkDefaultOverlap = envutil.Int("CHUNK_DEFAULT_OVERLAP", cfg.ChunkDefaultOverlap)
	cfg.DefaultRetrievalLimit = envutil.Int("DEFAULT_RETRIEVAL_LIMIT", cfg.DefaultRetrievalLimit)
	cfg.DefaultScoreThreshold = envutil.Float("DEFAULT_SCORE_THRESHOLD", cfg.DefaultScoreThreshold)

	if err := cfg.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.EmbeddingDimension <= 0 {
		return fmt.Errorf("embedding_dimension must be positive, got %d", c.EmbeddingDimension)
	}
	if c.VectorCollectionName == "" {
		return fmt.Errorf("vector_collection_name is required")
	}
	if c.ChunkDefaultSize <= 0 {
		return fmt.Errorf("chunk_default_size must be positive, got %d", c.ChunkDefaultSize)
	}
	if c.ChunkDefaultOverlap < 0 || c.ChunkDefaultOverlap >= c.ChunkDefaultSize {
		return fmt.Errorf("chunk_default_overlap must be in [0, chunk_default_size), got %d", c.ChunkDefaultOverlap)
	}
	if c.DefaultScoreThreshold < 0 || c.DefaultScoreThreshold > 1 {
		return fmt.Errorf("default_score_threshold must be in [0, 1], got %g", c.DefaultScoreThreshold)
	}
	return nil
}

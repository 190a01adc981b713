// Package config provides unified configuration for the skyquery serving
// binary.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the unified configuration for the query-serving binary.
type Config struct {
	// DataDir is the base directory for all local state (manifest DB,
	// downloaded containers, index files).
	DataDir string `json:"data_dir" yaml:"data_dir"`

	// HTTP configuration
	HTTP HTTPConfig `json:"http" yaml:"http"`

	// gRPC configuration
	GRPC GRPCConfig `json:"grpc" yaml:"grpc"`

	// Query service configuration
	Query QueryConfig `json:"query" yaml:"query"`

	// Secondary-index policy configuration
	Index IndexConfig `json:"index" yaml:"index"`

	// Storage configuration
	Storage StorageConfig `json:"storage" yaml:"storage"`
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	// Addr is the HTTP address the query service listens on
	Addr string `json:"addr" yaml:"addr"`

	// ReadTimeout is the HTTP read timeout
	ReadTimeout time.Duration `json:"read_timeout" yaml:"read_timeout"`

	// WriteTimeout is the HTTP write timeout
	WriteTimeout time.Duration `json:"write_timeout" yaml:"write_timeout"`

	// IdleTimeout is the HTTP idle timeout
	IdleTimeout time.Duration `json:"idle_timeout" yaml:"idle_timeout"`
}

// GRPCConfig holds gRPC server configuration.
type GRPCConfig struct {
	// Addr is the gRPC server address
	Addr string `json:"addr" yaml:"addr"`

	// Enabled controls whether gRPC is enabled
	Enabled bool `json:"enabled" yaml:"enabled"`
}

// QueryConfig holds query service configuration.
type QueryConfig struct {
	// DownloadDir is the directory used to stage downloaded container
	// objects before they are run through the pushdown executor.
	DownloadDir string `json:"download_dir" yaml:"download_dir"`

	// Concurrency is the number of container objects executed in parallel
	// for a single query.
	Concurrency int `json:"concurrency" yaml:"concurrency"`

	// IndexBuildConcurrency is the number of secondary-index builder
	// workers run concurrently.
	IndexBuildConcurrency int `json:"index_build_concurrency" yaml:"index_build_concurrency"`

	// MaxPreloadIndexes is a loaded and defaulted setting for a count of
	// secondary-index prefixes; no component reads it, so nothing is
	// preloaded at startup.
	MaxPreloadIndexes int `json:"max_preload_indexes" yaml:"max_preload_indexes"`

	// CacheDir is the NVMe cache tier directory for downloaded container
	// objects. Resolve defaults an empty value to <DataDir>/cache; the
	// cache tier is enabled by a positive CacheSizeMB, not by this field.
	CacheDir string `json:"cache_dir" yaml:"cache_dir"`

	// CacheSizeMB bounds the NVMe cache tier's total size on disk.
	CacheSizeMB int64 `json:"cache_size_mb" yaml:"cache_size_mb"`
}

// IndexConfig holds automated secondary-index policy configuration: the
// query-frequency thresholds internal/index.Policy uses to decide when a
// column earns (or loses) a secondary index.
type IndexConfig struct {
	// CreateThreshold is the query frequency count above which a column
	// not yet indexed gets a secondary index built for it.
	CreateThreshold int64 `json:"create_threshold" yaml:"create_threshold"`

	// DropThreshold is the query frequency count below which an existing
	// secondary index is dropped.
	DropThreshold int64 `json:"drop_threshold" yaml:"drop_threshold"`

	// CheckInterval is how often the policy loop re-evaluates index actions.
	CheckInterval time.Duration `json:"check_interval" yaml:"check_interval"`

	// MaxIndexes caps the number of secondary indexes maintained per table.
	MaxIndexes int `json:"max_indexes" yaml:"max_indexes"`
}

// StorageConfig holds storage configuration.
type StorageConfig struct {
	// Type is the storage type: local, s3
	Type string `json:"type" yaml:"type"`

	// Path is the local storage path (for local type)
	Path string `json:"path" yaml:"path"`

	// S3 configuration (for s3 type)
	S3 S3Config `json:"s3" yaml:"s3"`
}

// S3Config holds S3 storage configuration.
type S3Config struct {
	// Bucket is the S3 bucket name
	Bucket string `json:"bucket" yaml:"bucket"`

	// Region is the AWS region
	Region string `json:"region" yaml:"region"`

	// Endpoint is the S3 endpoint (for S3-compatible storage)
	Endpoint string `json:"endpoint" yaml:"endpoint"`
}

// DefaultConfig returns the default configuration for local development.
func DefaultConfig() *Config {
	return &Config{
		DataDir: "./data/skyquery",
		HTTP: HTTPConfig{
			Addr:         ":8081",
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 60 * time.Second,
			IdleTimeout:  120 * time.Second,
		},
		GRPC: GRPCConfig{
			Addr:    ":9090",
			Enabled: true,
		},
		Query: QueryConfig{
			DownloadDir:           "",
			Concurrency:           10,
			IndexBuildConcurrency: 4,
			MaxPreloadIndexes:     1000,
			CacheDir:              "",
			CacheSizeMB:           2048,
		},
		Index: IndexConfig{
			CreateThreshold: 100,
			DropThreshold:   10,
			CheckInterval:   5 * time.Minute,
			MaxIndexes:      16,
		},
		Storage: StorageConfig{
			Type: "local",
			Path: "",
		},
	}
}

// Resolve resolves relative paths and sets defaults based on DataDir.
func (c *Config) Resolve() {
	if c.DataDir == "" {
		c.DataDir = "./data/skyquery"
	}

	if c.Storage.Path == "" {
		c.Storage.Path = filepath.Join(c.DataDir, "storage")
	}

	if c.Query.DownloadDir == "" {
		c.Query.DownloadDir = filepath.Join(c.DataDir, "downloads")
	}

	if c.Query.CacheDir == "" {
		c.Query.CacheDir = filepath.Join(c.DataDir, "cache")
	}
}

// ManifestPath returns the path to the manifest database.
func (c *Config) ManifestPath() string {
	return filepath.Join(c.DataDir, "manifest.db")
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data_dir is required")
	}

	if c.Storage.Type != "local" && c.Storage.Type != "s3" {
		return fmt.Errorf("invalid storage type: %s (must be local or s3)", c.Storage.Type)
	}

	if c.Storage.Type == "s3" && c.Storage.S3.Bucket == "" {
		return fmt.Errorf("s3.bucket is required when storage type is s3")
	}

	if c.Query.Concurrency <= 0 {
		return fmt.Errorf("query.concurrency must be positive, got %d", c.Query.Concurrency)
	}

	return nil
}

// LoadFromFile loads configuration from a YAML or JSON file.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse JSON config: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config file format: %s", ext)
	}

	return cfg, nil
}

// LoadFromEnv loads configuration from environment variables.
// Environment variables use the SKYQUERY_ prefix.
func LoadFromEnv(cfg *Config) {
	if v := os.Getenv("SKYQUERY_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}

	if v := os.Getenv("SKYQUERY_HTTP_ADDR"); v != "" {
		cfg.HTTP.Addr = v
	}

	if v := os.Getenv("SKYQUERY_GRPC_ADDR"); v != "" {
		cfg.GRPC.Addr = v
	}
	if v := os.Getenv("SKYQUERY_GRPC_ENABLED"); v != "" {
		cfg.GRPC.Enabled = v == "true" || v == "1"
	}

	if v := os.Getenv("SKYQUERY_QUERY_CONCURRENCY"); v != "" {
		fmt.Sscanf(v, "%d", &cfg.Query.Concurrency)
	}
	if v := os.Getenv("SKYQUERY_QUERY_INDEX_BUILD_CONCURRENCY"); v != "" {
		fmt.Sscanf(v, "%d", &cfg.Query.IndexBuildConcurrency)
	}
	if v := os.Getenv("SKYQUERY_QUERY_DOWNLOAD_DIR"); v != "" {
		cfg.Query.DownloadDir = v
	}

	if v := os.Getenv("SKYQUERY_STORAGE_TYPE"); v != "" {
		cfg.Storage.Type = v
	}
	if v := os.Getenv("SKYQUERY_STORAGE_PATH"); v != "" {
		cfg.Storage.Path = v
	}
	if v := os.Getenv("SKYQUERY_S3_BUCKET"); v != "" {
		cfg.Storage.S3.Bucket = v
	}
	if v := os.Getenv("SKYQUERY_S3_REGION"); v != "" {
		cfg.Storage.S3.Region = v
	}
	if v := os.Getenv("SKYQUERY_S3_ENDPOINT"); v != "" {
		cfg.Storage.S3.Endpoint = v
	}
}

// EnsureDirectories creates all required directories.
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		c.DataDir,
		c.Storage.Path,
		c.Query.DownloadDir,
	}

	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}

// Package config provides unified configuration for the epforge binaries.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/epforge/epforge/internal/input"
)

// Sink types.
const (
	SinkParquet = "parquet"
	SinkSQLite  = "sqlite"
)

// Storage types.
const (
	StorageNone  = "none"
	StorageLocal = "local"
	StorageS3    = "s3"
)

// Config holds the unified configuration for the epforge binaries.
type Config struct {
	// DataDir is the base directory for all output files
	DataDir string `json:"data_dir" yaml:"data_dir"`

	// Input configuration
	Input InputConfig `json:"input" yaml:"input"`

	// Batch configuration
	Batch BatchConfig `json:"batch" yaml:"batch"`

	// Sink configuration
	Sink SinkConfig `json:"sink" yaml:"sink"`

	// Storage configuration
	Storage StorageConfig `json:"storage" yaml:"storage"`

	// Dedupe configuration
	Dedupe DedupeConfig `json:"dedupe" yaml:"dedupe"`

	// Progress configuration
	Progress ProgressConfig `json:"progress" yaml:"progress"`
}

// InputConfig holds input stream configuration.
type InputConfig struct {
	// Compression is the input compression format:
	// auto, none, gzip, zstd, bzip2, snappy
	Compression string `json:"compression" yaml:"compression"`
}

// BatchConfig holds batching configuration.
type BatchConfig struct {
	// Size is the maximum rows per batch
	Size int `json:"size" yaml:"size"`

	// MaxSkipRatio aborts the run when the skipped-line ratio exceeds it
	// (0 disables the guard)
	MaxSkipRatio float64 `json:"max_skip_ratio" yaml:"max_skip_ratio"`
}

// SinkConfig holds sink configuration.
type SinkConfig struct {
	// Type is the sink type: parquet, sqlite
	Type string `json:"type" yaml:"type"`

	// OutputDir is the directory for finished partition files
	OutputDir string `json:"output_dir" yaml:"output_dir"`

	// ParquetCompression is the parquet column compression:
	// snappy, zstd, gzip, none
	ParquetCompression string `json:"parquet_compression" yaml:"parquet_compression"`
}

// StorageConfig holds object storage configuration.
type StorageConfig struct {
	// Type is the storage type: none, local, s3
	Type string `json:"type" yaml:"type"`

	// Path is the local storage path (for local type)
	Path string `json:"path" yaml:"path"`

	// MultipartThreshold is the file size in bytes above which uploads use
	// multipart
	MultipartThreshold int64 `json:"multipart_threshold" yaml:"multipart_threshold"`

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

	// UsePathStyle enables path-style addressing (required for MinIO)
	UsePathStyle bool `json:"use_path_style" yaml:"use_path_style"`
}

// DedupeConfig holds duplicate primary-key detection configuration.
type DedupeConfig struct {
	// ExpectedRows sizes the bloom filter (0 disables detection)
	ExpectedRows int `json:"expected_rows" yaml:"expected_rows"`

	// TargetFPR is the filter's target false positive rate
	TargetFPR float64 `json:"target_fpr" yaml:"target_fpr"`
}

// ProgressConfig holds progress reporting configuration.
type ProgressConfig struct {
	// Interval is the minimum time between progress log lines
	Interval time.Duration `json:"interval" yaml:"interval"`
}

// DefaultConfig returns the default configuration for local use.
func DefaultConfig() *Config {
	return &Config{
		DataDir: "./data/epforge",
		Input: InputConfig{
			Compression: string(input.FormatAuto),
		},
		Batch: BatchConfig{
			Size:         50000,
			MaxSkipRatio: 0,
		},
		Sink: SinkConfig{
			Type:               SinkParquet,
			OutputDir:          "",
			ParquetCompression: "snappy",
		},
		Storage: StorageConfig{
			Type:               StorageNone,
			Path:               "",
			MultipartThreshold: 64 * 1024 * 1024,
		},
		Dedupe: DedupeConfig{
			ExpectedRows: 10_000_000,
			TargetFPR:    0.001,
		},
		Progress: ProgressConfig{
			Interval: 5 * time.Second,
		},
	}
}

// Resolve resolves relative paths and sets defaults based on DataDir.
func (c *Config) Resolve() {
	if c.DataDir == "" {
		c.DataDir = "./data/epforge"
	}
	if c.Sink.OutputDir == "" {
		c.Sink.OutputDir = filepath.Join(c.DataDir, "partitions")
	}
	if c.Storage.Path == "" {
		c.Storage.Path = filepath.Join(c.DataDir, "storage")
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data_dir is required")
	}

	if !input.ValidFormat(c.Input.Compression) {
		return fmt.Errorf("invalid input compression: %s (must be auto, none, gzip, zstd, bzip2, or snappy)",
			c.Input.Compression)
	}

	if c.Batch.Size <= 0 {
		return fmt.Errorf("batch.size must be positive, got %d", c.Batch.Size)
	}
	if c.Batch.MaxSkipRatio < 0 || c.Batch.MaxSkipRatio >= 1 {
		return fmt.Errorf("batch.max_skip_ratio must be in [0, 1), got %g", c.Batch.MaxSkipRatio)
	}

	if c.Sink.Type != SinkParquet && c.Sink.Type != SinkSQLite {
		return fmt.Errorf("invalid sink type: %s (must be parquet or sqlite)", c.Sink.Type)
	}

	switch c.Storage.Type {
	case StorageNone, StorageLocal, StorageS3:
	default:
		return fmt.Errorf("invalid storage type: %s (must be none, local, or s3)", c.Storage.Type)
	}
	if c.Storage.Type == StorageS3 && c.Storage.S3.Bucket == "" {
		return fmt.Errorf("s3.bucket is required when storage type is s3")
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
// Environment variables use the EPFORGE_ prefix.
func LoadFromEnv(cfg *Config) {
	if v := os.Getenv("EPFORGE_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}

	// Input configuration
	if v := os.Getenv("EPFORGE_INPUT_COMPRESSION"); v != "" {
		cfg.Input.Compression = v
	}

	// Batch configuration
	if v := os.Getenv("EPFORGE_BATCH_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Batch.Size = n
		}
	}
	if v := os.Getenv("EPFORGE_BATCH_MAX_SKIP_RATIO"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Batch.MaxSkipRatio = f
		}
	}

	// Sink configuration
	if v := os.Getenv("EPFORGE_SINK_TYPE"); v != "" {
		cfg.Sink.Type = v
	}
	if v := os.Getenv("EPFORGE_SINK_OUTPUT_DIR"); v != "" {
		cfg.Sink.OutputDir = v
	}
	if v := os.Getenv("EPFORGE_SINK_PARQUET_COMPRESSION"); v != "" {
		cfg.Sink.ParquetCompression = v
	}

	// Storage configuration
	if v := os.Getenv("EPFORGE_STORAGE_TYPE"); v != "" {
		cfg.Storage.Type = v
	}
	if v := os.Getenv("EPFORGE_STORAGE_PATH"); v != "" {
		cfg.Storage.Path = v
	}
	if v := os.Getenv("EPFORGE_S3_BUCKET"); v != "" {
		cfg.Storage.S3.Bucket = v
	}
	if v := os.Getenv("EPFORGE_S3_REGION"); v != "" {
		cfg.Storage.S3.Region = v
	}
	if v := os.Getenv("EPFORGE_S3_ENDPOINT"); v != "" {
		cfg.Storage.S3.Endpoint = v
	}
	if v := os.Getenv("EPFORGE_S3_USE_PATH_STYLE"); v != "" {
		cfg.Storage.S3.UsePathStyle = v == "true" || v == "1"
	}

	// Dedupe configuration
	if v := os.Getenv("EPFORGE_DEDUPE_EXPECTED_ROWS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Dedupe.ExpectedRows = n
		}
	}

	// Progress configuration
	if v := os.Getenv("EPFORGE_PROGRESS_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Progress.Interval = d
		}
	}
}

// EnsureDirectories creates all required directories.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.DataDir, c.Sink.OutputDir}
	if c.Storage.Type == StorageLocal {
		dirs = append(dirs, c.Storage.Path)
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

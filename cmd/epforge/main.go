// Package main implements the epforge converter binary. It reads an EPF
// export from stdin or a file and bulk-loads it into a columnar partition
// (parquet or SQLite), optionally shipping the finished file to object
// storage.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/epforge/epforge/internal/config"
	"github.com/epforge/epforge/internal/input"
	"github.com/epforge/epforge/internal/pipeline"
	"github.com/epforge/epforge/internal/sink"
	"github.com/epforge/epforge/internal/storage"
	"github.com/epforge/epforge/pkg/types"
)

func main() {
	var (
		configPath  = flag.String("config", "", "path to YAML or JSON config file")
		inputPath   = flag.String("input", "-", "input EPF file, or - for stdin")
		outputDir   = flag.String("output-dir", "", "override sink output directory")
		sinkType    = flag.String("sink", "", "sink type: parquet or sqlite")
		batchSize   = flag.Int("batch-size", 0, "override rows per batch")
		compression = flag.String("compression", "", "input compression: auto, none, gzip, zstd, bzip2, snappy")
		storageType = flag.String("storage", "", "object storage type: none, local, s3")
	)
	flag.Parse()

	// Optional .env for storage credentials and overrides.
	_ = godotenv.Load()

	cfg := loadConfig(*configPath)
	if *outputDir != "" {
		cfg.Sink.OutputDir = *outputDir
	}
	if *sinkType != "" {
		cfg.Sink.Type = *sinkType
	}
	if *batchSize > 0 {
		cfg.Batch.Size = *batchSize
	}
	if *compression != "" {
		cfg.Input.Compression = *compression
	}
	if *storageType != "" {
		cfg.Storage.Type = *storageType
	}
	cfg.Resolve()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		log.Fatalf("Failed to create directories: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	in, closeInput, err := openInput(*inputPath)
	if err != nil {
		log.Fatalf("Failed to open input: %v", err)
	}
	defer closeInput()

	src, format, err := input.Open(in, input.Format(cfg.Input.Compression))
	if err != nil {
		log.Fatalf("Failed to open input stream: %v", err)
	}
	if format != input.FormatNone {
		log.Printf("Detected %s-compressed input", format)
	}

	p := pipeline.New(src, pipeline.Options{
		BatchSize:          cfg.Batch.Size,
		MaxSkipRatio:       cfg.Batch.MaxSkipRatio,
		ProgressInterval:   cfg.Progress.Interval,
		DedupeExpectedRows: cfg.Dedupe.ExpectedRows,
		DedupeTargetFPR:    cfg.Dedupe.TargetFPR,
	})

	schema, err := p.Schema()
	if err != nil {
		log.Fatalf("Failed to read EPF header: %v", err)
	}
	logSchema(schema)

	outPath := outputPath(cfg, schema)
	snk, err := newSink(ctx, cfg, outPath, schema)
	if err != nil {
		log.Fatalf("Failed to create %s sink: %v", cfg.Sink.Type, err)
	}

	report, err := p.Run(ctx, snk)
	if err != nil {
		// The partial output is unusable; a failed run restarts from the
		// beginning of the source stream.
		snk.Close(ctx)
		log.Fatalf("Ingest failed after %d rows: %v", report.Rows, err)
	}

	summary, err := snk.Close(ctx)
	if err != nil {
		log.Fatalf("Failed to finalize output: %v", err)
	}

	log.Printf("Wrote %d rows in %d batches to %s (%d bytes)",
		report.Rows, report.Batches, summary.Path, summary.SizeBytes)
	if report.Skipped > 0 {
		log.Printf("Skipped %d malformed lines", report.Skipped)
	}
	if report.DuplicateKeys > 0 {
		log.Printf("Detected ~%d duplicate primary keys", report.DuplicateKeys)
	}

	if cfg.Storage.Type != config.StorageNone {
		if err := upload(ctx, cfg, summary); err != nil {
			log.Fatalf("Failed to upload %s: %v", summary.Path, err)
		}
	}
}

func loadConfig(path string) *config.Config {
	cfg := config.DefaultConfig()
	if path != "" {
		loaded, err := config.LoadFromFile(path)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
		cfg = loaded
	}
	config.LoadFromEnv(cfg)
	return cfg
}

func openInput(path string) (io.Reader, func(), error) {
	if path == "" || path == "-" {
		return os.Stdin, func() {}, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	return f, func() { f.Close() }, nil
}

func logSchema(schema *types.Schema) {
	if p := schema.Provenance; p != nil {
		log.Printf("Processing EPF export: %s/%s from %s", p.Group, p.Name, p.DateString())
	} else {
		log.Printf("Processing EPF export without provenance")
	}
	log.Printf("Found %d columns, %d primary keys", schema.NumColumns(), len(schema.PrimaryKeys))
	if schema.ExportMode != "" {
		log.Printf("Export mode: %s", schema.ExportMode)
	}
	if len(schema.DeclaredTypes) > 0 && !schema.HasTypedColumns() {
		log.Printf("Declared type count disagrees with column count, treating all columns as strings")
	}
}

// outputPath names the partition file from the export's provenance, with a
// short random suffix so re-runs never collide.
func outputPath(cfg *config.Config, schema *types.Schema) string {
	suffix := uuid.New().String()[:8]
	ext := "parquet"
	if cfg.Sink.Type == config.SinkSQLite {
		ext = "sqlite"
	}

	if p := schema.Provenance; p != nil {
		return filepath.Join(cfg.Sink.OutputDir, p.Group, p.Name,
			fmt.Sprintf("%s-%s.%s", p.DateString(), suffix, ext))
	}
	return filepath.Join(cfg.Sink.OutputDir, fmt.Sprintf("export-%s.%s", suffix, ext))
}

func newSink(ctx context.Context, cfg *config.Config, path string, schema *types.Schema) (sink.Sink, error) {
	switch cfg.Sink.Type {
	case config.SinkSQLite:
		return sink.NewSQLiteSink(ctx, path, schema)
	default:
		codec, err := sink.CompressionCodec(cfg.Sink.ParquetCompression)
		if err != nil {
			return nil, err
		}
		return sink.NewParquetSink(path, schema, codec)
	}
}

func upload(ctx context.Context, cfg *config.Config, summary *sink.Summary) error {
	store, err := newStorage(ctx, cfg)
	if err != nil {
		return err
	}

	objectPath, err := filepath.Rel(cfg.Sink.OutputDir, summary.Path)
	if err != nil {
		objectPath = filepath.Base(summary.Path)
	}
	objectPath = filepath.ToSlash(objectPath)

	if summary.SizeBytes > cfg.Storage.MultipartThreshold {
		if _, err := store.UploadMultipart(ctx, summary.Path, objectPath); err != nil {
			return err
		}
	} else if err := store.Upload(ctx, summary.Path, objectPath); err != nil {
		return err
	}

	log.Printf("Uploaded %s to %s storage", objectPath, cfg.Storage.Type)
	return nil
}

func newStorage(ctx context.Context, cfg *config.Config) (storage.ObjectStorage, error) {
	switch cfg.Storage.Type {
	case config.StorageLocal:
		return storage.NewLocalStorage(cfg.Storage.Path)
	case config.StorageS3:
		s3cfg := storage.DefaultS3Config()
		if cfg.Storage.S3.Region != "" {
			s3cfg.Region = cfg.Storage.S3.Region
		}
		s3cfg.Endpoint = cfg.Storage.S3.Endpoint
		s3cfg.UsePathStyle = cfg.Storage.S3.UsePathStyle
		return storage.NewS3Storage(ctx, cfg.Storage.S3.Bucket, s3cfg)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Storage.Type)
	}
}

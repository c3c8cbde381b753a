package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/threadfeed/threadfeed/pkg/threadfeed"
	"github.com/threadfeed/threadfeed/pkg/threadfeed/repo/memory"
	repopg "github.com/threadfeed/threadfeed/pkg/threadfeed/repo/postgres"
	fsstorage "github.com/threadfeed/threadfeed/pkg/threadfeed/storage/fs"
	memorystorage "github.com/threadfeed/threadfeed/pkg/threadfeed/storage/memory"
	s3storage "github.com/threadfeed/threadfeed/pkg/threadfeed/storage/s3"
)

// Option applies configuration to a ServerConfig instance.
type Option func(*ServerConfig) error

// Load constructs a ServerConfig by applying the supplied options on top
// of library defaults.
func Load(opts ...Option) (*ServerConfig, error) {
	cfg := defaults()

	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func defaults() ServerConfig {
	return ServerConfig{
		Port:               "8080",
		Environment:        "development",
		DatabaseType:       "memory",
		StorageType:        "memory",
		GrantTTLSeconds:    int(threadfeed.DefaultGrantTTL / time.Second),
		DefaultPageSize:    threadfeed.DefaultPageSize,
		MaxPageSize:        threadfeed.DefaultMaxPageSize,
		EnableEventLogging: true,
	}
}

// ServerConfig represents server configuration for the threadfeed service
type ServerConfig struct {
	Port        string
	Environment string // development, production, testing

	// Database configuration
	DatabaseURL  string
	DatabaseType string // "memory", "postgres"

	// Blob storage configuration
	StorageType string // "memory", "fs", "s3"
	S3          S3Config
	FS          FSConfig

	// Upload grant validity window
	GrantTTLSeconds int

	// Feed pagination bounds
	DefaultPageSize int
	MaxPageSize     int

	// Server options
	EnableEventLogging bool
}

// S3Config holds the settings for an S3 or S3-compatible blob store
type S3Config struct {
	Region          string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	Endpoint        string
	UsePathStyle    bool
	CreateBucket    bool
}

// FSConfig holds the settings for a filesystem blob store
type FSConfig struct {
	BaseDir   string
	URLPrefix string
}

// Validate validates the server configuration
func (c *ServerConfig) Validate() error {
	if c.Port == "" {
		return errors.New("port is required")
	}

	switch c.DatabaseType {
	case "memory":
	case "postgres":
		if c.DatabaseURL == "" {
			return errors.New("database URL is required for postgres")
		}
	default:
		return fmt.Errorf("unsupported database type: %s", c.DatabaseType)
	}

	switch c.StorageType {
	case "memory":
	case "fs":
		if c.FS.BaseDir == "" {
			return errors.New("base directory is required for fs storage")
		}
	case "s3":
		if c.S3.Bucket == "" {
			return errors.New("S3 bucket is required for s3 storage")
		}
	default:
		return fmt.Errorf("unsupported storage type: %s", c.StorageType)
	}

	if c.GrantTTLSeconds <= 0 {
		return errors.New("grant TTL must be positive")
	}
	if c.DefaultPageSize <= 0 || c.MaxPageSize < c.DefaultPageSize {
		return errors.New("page size bounds are inconsistent")
	}

	return nil
}

// BuildRepository constructs the configured repository. For postgres, the
// schema is applied if missing.
func (c *ServerConfig) BuildRepository(ctx context.Context) (threadfeed.Repository, error) {
	switch c.DatabaseType {
	case "postgres":
		pool, err := pgxpool.New(ctx, c.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			return nil, fmt.Errorf("failed to ping database: %w", err)
		}
		if err := repopg.EnsureSchema(ctx, pool); err != nil {
			return nil, fmt.Errorf("failed to apply schema: %w", err)
		}
		return repopg.NewWithPool(pool), nil
	default:
		return memory.New(), nil
	}
}

// BuildBlobStore constructs the configured blob storage backend
func (c *ServerConfig) BuildBlobStore() (threadfeed.BlobStore, error) {
	switch c.StorageType {
	case "fs":
		return fsstorage.New(fsstorage.Config{
			BaseDir:   c.FS.BaseDir,
			URLPrefix: c.FS.URLPrefix,
		})
	case "s3":
		return s3storage.New(s3storage.Config{
			Region:                 c.S3.Region,
			Bucket:                 c.S3.Bucket,
			AccessKeyID:            c.S3.AccessKeyID,
			SecretAccessKey:        c.S3.SecretAccessKey,
			Endpoint:               c.S3.Endpoint,
			UsePathStyle:           c.S3.UsePathStyle,
			PresignDuration:        c.GrantTTLSeconds,
			CreateBucketIfNotExist: c.S3.CreateBucket,
		})
	default:
		return memorystorage.New(
			memorystorage.WithGrantTTL(time.Duration(c.GrantTTLSeconds) * time.Second),
		), nil
	}
}

// BuildService wires the repository, blob store and options into a
// ready-to-serve threadfeed.Service.
func (c *ServerConfig) BuildService(ctx context.Context, logger *slog.Logger) (threadfeed.Service, error) {
	repo, err := c.BuildRepository(ctx)
	if err != nil {
		return nil, err
	}

	store, err := c.BuildBlobStore()
	if err != nil {
		return nil, err
	}

	opts := []threadfeed.Option{
		threadfeed.WithRepository(repo),
		threadfeed.WithBlobStore(store),
		threadfeed.WithGrantTTL(time.Duration(c.GrantTTLSeconds) * time.Second),
		threadfeed.WithPageSizes(c.DefaultPageSize, c.MaxPageSize),
	}
	if c.EnableEventLogging {
		opts = append(opts, threadfeed.WithEventSink(threadfeed.NewLogEventSink(logger)))
	}

	return threadfeed.New(opts...)
}

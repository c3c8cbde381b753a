package main

import (
	"fmt"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/threadfeed/threadfeed/pkg/threadfeed/config"
)

// envConfig is the flat environment surface of the server executable.
// Environment-specific parsing stays here; the library only sees the
// assembled ServerConfig.
type envConfig struct {
	Port        string `env:"PORT" env-default:"8080"`
	Environment string `env:"ENVIRONMENT" env-default:"development"`

	DatabaseType string `env:"DATABASE_TYPE" env-default:"memory"`
	DatabaseURL  string `env:"DATABASE_URL" env-default:""`

	StorageType string `env:"STORAGE_TYPE" env-default:"memory"`

	S3Region          string `env:"S3_REGION" env-default:""`
	S3Bucket          string `env:"S3_BUCKET" env-default:""`
	S3AccessKeyID     string `env:"S3_ACCESS_KEY_ID" env-default:""`
	S3SecretAccessKey string `env:"S3_SECRET_ACCESS_KEY" env-default:""`
	S3Endpoint        string `env:"S3_ENDPOINT" env-default:""`
	S3UsePathStyle    bool   `env:"S3_USE_PATH_STYLE" env-default:"false"`
	S3CreateBucket    bool   `env:"S3_CREATE_BUCKET" env-default:"false"`

	FSBaseDir   string `env:"FS_BASE_DIR" env-default:""`
	FSURLPrefix string `env:"FS_URL_PREFIX" env-default:""`

	GrantTTLSeconds int `env:"UPLOAD_GRANT_TTL_SECONDS" env-default:"900"`

	DefaultPageSize int `env:"FEED_DEFAULT_PAGE_SIZE" env-default:"20"`
	MaxPageSize     int `env:"FEED_MAX_PAGE_SIZE" env-default:"50"`

	EnableEventLogging bool `env:"ENABLE_EVENT_LOGGING" env-default:"true"`
}

func loadServerConfigFromEnv() (*config.ServerConfig, error) {
	var env envConfig
	if err := cleanenv.ReadEnv(&env); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}

	opts := []config.Option{
		config.WithPort(env.Port),
		config.WithEnvironment(env.Environment),
		config.WithGrantTTLSeconds(env.GrantTTLSeconds),
		config.WithPageSizes(env.DefaultPageSize, env.MaxPageSize),
		config.WithEventLogging(env.EnableEventLogging),
	}

	if env.DatabaseType == "postgres" {
		opts = append(opts, config.WithPostgres(env.DatabaseURL))
	}

	if env.StorageType == "fs" {
		opts = append(opts, config.WithFSStorage(config.FSConfig{
			BaseDir:   env.FSBaseDir,
			URLPrefix: env.FSURLPrefix,
		}))
	}

	if env.StorageType == "s3" {
		opts = append(opts, config.WithS3Storage(config.S3Config{
			Region:          env.S3Region,
			Bucket:          env.S3Bucket,
			AccessKeyID:     env.S3AccessKeyID,
			SecretAccessKey: env.S3SecretAccessKey,
			Endpoint:        env.S3Endpoint,
			UsePathStyle:    env.S3UsePathStyle,
			CreateBucket:    env.S3CreateBucket,
		}))
	}

	return config.Load(opts...)
}

// Package config loads spycatd settings from SPYCATS_* environment variables,
// optionally seeded from a .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// Config is the process configuration.
type Config struct {
	HTTPAddr        string        `env:"SPYCATS_HTTP_ADDR,default=:8080"`
	ShutdownTimeout time.Duration `env:"SPYCATS_SHUTDOWN_TIMEOUT,default=10s"`

	StorageDriver string `env:"SPYCATS_STORAGE_DRIVER,default=sqlite"`
	SQLitePath    string `env:"SPYCATS_SQLITE_PATH,default=spycats.db"`
	PostgresDSN   string `env:"SPYCATS_POSTGRES_DSN"`

	BreedAPIURL     string        `env:"SPYCATS_BREED_API_URL,default=https://api.thecatapi.com"`
	BreedAPIKey     string        `env:"SPYCATS_BREED_API_KEY"`
	BreedTimeout    time.Duration `env:"SPYCATS_BREED_TIMEOUT,default=5s"`
	BreedCacheTTL   time.Duration `env:"SPYCATS_BREED_CACHE_TTL,default=1h"`
	BreedRatePerSec float64       `env:"SPYCATS_BREED_RATE_PER_SEC,default=5"`

	LogLevel  string `env:"SPYCATS_LOG_LEVEL,default=info"`
	LogFormat string `env:"SPYCATS_LOG_FORMAT,default=text"`
	Tracing   bool   `env:"SPYCATS_TRACING,default=false"`

	BlobDriver  string `env:"SPYCATS_BLOB_DRIVER,default=fs"`
	BlobFSRoot  string `env:"SPYCATS_BLOB_FS_ROOT,default=backups"`
	S3Bucket    string `env:"SPYCATS_BLOB_S3_BUCKET"`
	S3Region    string `env:"SPYCATS_BLOB_S3_REGION,default=us-east-1"`
	S3Endpoint  string `env:"SPYCATS_BLOB_S3_ENDPOINT"`
	S3PathStyle bool   `env:"SPYCATS_BLOB_S3_PATH_STYLE,default=false"`
	S3AccessKey string `env:"SPYCATS_BLOB_S3_ACCESS_KEY_ID"`
	S3SecretKey string `env:"SPYCATS_BLOB_S3_SECRET_ACCESS_KEY"`
}

// Load reads envFile (when present) into the environment and decodes Config.
// Variables already set in the environment win over the file. A missing
// envFile is not an error.
func Load(envFile string) (Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", envFile, err)
		}
	}
	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return Config{}, fmt.Errorf("decode environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func oneOf(field, value string, allowed ...string) error {
	for _, a := range allowed {
		if value == a {
			return nil
		}
	}
	return fmt.Errorf("%s: unsupported value %q (want one of %s)", field, value, strings.Join(allowed, ", "))
}

// Validate checks enumerated settings and driver requirements.
func (c Config) Validate() error {
	if err := oneOf("SPYCATS_STORAGE_DRIVER", c.StorageDriver, "memory", "sqlite", "postgres"); err != nil {
		return err
	}
	if err := oneOf("SPYCATS_BLOB_DRIVER", c.BlobDriver, "fs", "memory", "s3"); err != nil {
		return err
	}
	if err := oneOf("SPYCATS_LOG_FORMAT", c.LogFormat, "text", "json"); err != nil {
		return err
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("SPYCATS_LOG_LEVEL: %w", err)
	}
	if c.BlobDriver == "s3" && c.S3Bucket == "" {
		return errors.New("SPYCATS_BLOB_S3_BUCKET is required for the s3 blob driver")
	}
	if c.BlobDriver == "fs" && strings.TrimSpace(c.BlobFSRoot) == "" {
		return errors.New("SPYCATS_BLOB_FS_ROOT is required for the fs blob driver")
	}
	if c.BreedRatePerSec < 0 {
		return errors.New("SPYCATS_BREED_RATE_PER_SEC must not be negative")
	}
	return nil
}

// NewLogger builds the process logger from LogLevel and LogFormat.
func (c Config) NewLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	if level, err := logrus.ParseLevel(c.LogLevel); err == nil {
		logger.SetLevel(level)
	}
	if c.LogFormat == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339Nano})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return logger
}

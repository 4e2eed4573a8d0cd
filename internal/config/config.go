// Package config handles loading and validation of strata.yaml project
// configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	ddbstore "github.com/strata-systems/strata/internal/store/dynamodb"
)

// Config is the decoded strata.yaml.
type Config struct {
	// Store selects the metadata backend: memory, postgres, or dynamodb.
	Store string `yaml:"store"`
	// Blob selects the snapshot content backend: fs or s3.
	Blob string `yaml:"blob"`
	// Lock selects the active-pointer lock backend: local or redis.
	Lock string `yaml:"lock,omitempty"`

	Postgres *PostgresConfig  `yaml:"postgres,omitempty"`
	DynamoDB *ddbstore.Config `yaml:"dynamodb,omitempty"`
	FS       *FSConfig        `yaml:"fs,omitempty"`
	S3       *S3Config        `yaml:"s3,omitempty"`
	Redis    *RedisConfig     `yaml:"redis,omitempty"`
	Custom   CustomConfig     `yaml:"custom,omitempty"`
}

// PostgresConfig holds the Postgres backend settings.
type PostgresConfig struct {
	DSN string `yaml:"dsn"`
}

// FSConfig holds the filesystem blob backend settings.
type FSConfig struct {
	BasePath string `yaml:"basePath"`
}

// S3Config holds the S3 blob backend settings.
type S3Config struct {
	Bucket string `yaml:"bucket"`
	Prefix string `yaml:"prefix,omitempty"`
	Region string `yaml:"region,omitempty"`
}

// RedisConfig holds the Redis lock backend settings.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password,omitempty"`
	DB       int    `yaml:"db,omitempty"`
}

// CustomConfig controls the subprocess runner for custom steps.
type CustomConfig struct {
	Command        []string `yaml:"command,omitempty"`
	TimeoutSeconds int      `yaml:"timeoutSeconds,omitempty"`
}

// backendConfigs is a helper struct used for a second YAML unmarshal pass
// to decode backend-specific sections into their concrete types.
type backendConfigs struct {
	Postgres *PostgresConfig  `yaml:"postgres,omitempty"`
	DynamoDB *ddbstore.Config `yaml:"dynamodb,omitempty"`
	S3       *S3Config        `yaml:"s3,omitempty"`
	Redis    *RedisConfig     `yaml:"redis,omitempty"`
}

// Load reads and parses strata.yaml from the given directory.
func Load(dir string) (*Config, error) {
	path := filepath.Join(dir, "strata.yaml")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	// Second pass: decode backend-specific sections into concrete types.
	var raw backendConfigs
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing backend config: %w", err)
	}
	if raw.Postgres != nil {
		cfg.Postgres = raw.Postgres
	}
	if raw.DynamoDB != nil {
		cfg.DynamoDB = raw.DynamoDB
	}
	if raw.S3 != nil {
		cfg.S3 = raw.S3
	}
	if raw.Redis != nil {
		cfg.Redis = raw.Redis
	}

	applyDefaults(&cfg)
	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Store == "" {
		cfg.Store = "memory"
	}
	if cfg.Blob == "" {
		cfg.Blob = "fs"
	}
	if cfg.Lock == "" {
		cfg.Lock = "local"
	}
}

func validate(cfg *Config) error {
	switch cfg.Store {
	case "memory":
	case "postgres":
		if cfg.Postgres == nil || cfg.Postgres.DSN == "" {
			return fmt.Errorf("postgres.dsn is required when store is postgres")
		}
	case "dynamodb":
		if cfg.DynamoDB == nil || cfg.DynamoDB.TableName == "" {
			return fmt.Errorf("dynamodb.tableName is required when store is dynamodb")
		}
	default:
		return fmt.Errorf("unknown store backend %q", cfg.Store)
	}

	switch cfg.Blob {
	case "fs":
		if cfg.FS == nil || cfg.FS.BasePath == "" {
			return fmt.Errorf("fs.basePath is required when blob is fs")
		}
	case "s3":
		if cfg.S3 == nil || cfg.S3.Bucket == "" {
			return fmt.Errorf("s3.bucket is required when blob is s3")
		}
	default:
		return fmt.Errorf("unknown blob backend %q", cfg.Blob)
	}

	switch cfg.Lock {
	case "local":
	case "redis":
		if cfg.Redis == nil || cfg.Redis.Addr == "" {
			return fmt.Errorf("redis.addr is required when lock is redis")
		}
	default:
		return fmt.Errorf("unknown lock backend %q", cfg.Lock)
	}
	return nil
}

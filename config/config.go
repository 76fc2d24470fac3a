// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


// Package config loads docpipe's layered configuration: built-in defaults,
// then an optional file (TOML, YAML, JSON or .env), then DOCPIPE_*
// environment variables. Nested keys map to variables with '.' replaced by
// '_', so pipeline.chunk_size is DOCPIPE_PIPELINE_CHUNK_SIZE.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/poiesic/docpipe/ai"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable.
const EnvPrefix = "DOCPIPE"

// Storage drivers.
const (
	StorageBadger = "badger"
	StorageMinio  = "minio"
)

// Index drivers.
const (
	IndexNone   = "none"
	IndexQdrant = "qdrant"
)

var ErrInvalidConfig = errors.New("invalid config")

type Config struct {
	Storage  StorageConfig  `mapstructure:"storage"`
	Minio    MinioConfig    `mapstructure:"minio"`
	AI       AIConfig       `mapstructure:"ai"`
	Index    IndexConfig    `mapstructure:"index"`
	Pipeline PipelineConfig `mapstructure:"pipeline"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Temporal TemporalConfig `mapstructure:"temporal"`
}

type StorageConfig struct {
	// Driver is "badger" or "minio".
	Driver string `mapstructure:"driver"`
	// Path is the Badger directory. Empty runs in memory.
	Path   string `mapstructure:"path"`
	Bucket string `mapstructure:"bucket"`
}

type MinioConfig struct {
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Secure    bool   `mapstructure:"secure"`
}

type AIConfig struct {
	Provider   string `mapstructure:"provider"`
	Host       string `mapstructure:"host"`
	Model      string `mapstructure:"model"`
	APIKey     string `mapstructure:"api_key"`
	Dimensions int    `mapstructure:"dimensions"`
}

type IndexConfig struct {
	// Driver is "none" or "qdrant".
	Driver string       `mapstructure:"driver"`
	Name   string       `mapstructure:"name"`
	Qdrant QdrantConfig `mapstructure:"qdrant"`
}

type QdrantConfig struct {
	Host   string `mapstructure:"host"`
	Port   int    `mapstructure:"port"`
	APIKey string `mapstructure:"api_key"`
}

type PipelineConfig struct {
	ChunkSize         int           `mapstructure:"chunk_size"`
	ChunkOverlap      int           `mapstructure:"chunk_overlap"`
	EmbedWorkers      int           `mapstructure:"embed_workers"`
	EmbedRate         float64       `mapstructure:"embed_rate"`
	EmbedBurst        int           `mapstructure:"embed_burst"`
	CallTimeout       time.Duration `mapstructure:"call_timeout"`
	MaxAttempts       int           `mapstructure:"max_attempts"`
	RetryDelay        time.Duration `mapstructure:"retry_delay"`
	UploadPrefix      string        `mapstructure:"upload_prefix"`
	AllowedExtensions []string      `mapstructure:"allowed_extensions"`
	InlineChunks      bool          `mapstructure:"inline_chunks"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Queue    string `mapstructure:"queue"`
}

type TemporalConfig struct {
	Host      string `mapstructure:"host"`
	Namespace string `mapstructure:"namespace"`
	TaskQueue string `mapstructure:"task_queue"`
}

func setDefaults(v *viper.Viper) {
	aiDefaults := ai.DefaultConfig()

	v.SetDefault("storage.driver", StorageBadger)
	v.SetDefault("storage.path", "./docpipe-data")
	v.SetDefault("storage.bucket", "documents")

	v.SetDefault("minio.endpoint", "localhost:9000")
	v.SetDefault("minio.access_key", "")
	v.SetDefault("minio.secret_key", "")
	v.SetDefault("minio.secure", false)

	v.SetDefault("ai.provider", aiDefaults.Provider)
	v.SetDefault("ai.host", aiDefaults.Host)
	v.SetDefault("ai.model", aiDefaults.Model)
	v.SetDefault("ai.api_key", aiDefaults.APIKey)
	v.SetDefault("ai.dimensions", aiDefaults.Dimensions)

	v.SetDefault("index.driver", IndexNone)
	v.SetDefault("index.name", "documents")
	v.SetDefault("index.qdrant.host", "localhost")
	v.SetDefault("index.qdrant.port", 6334)
	v.SetDefault("index.qdrant.api_key", "")

	v.SetDefault("pipeline.chunk_size", 1000)
	v.SetDefault("pipeline.chunk_overlap", 100)
	v.SetDefault("pipeline.embed_workers", 4)
	v.SetDefault("pipeline.embed_rate", 0)
	v.SetDefault("pipeline.embed_burst", 1)
	v.SetDefault("pipeline.call_timeout", 30*time.Second)
	v.SetDefault("pipeline.max_attempts", 3)
	v.SetDefault("pipeline.retry_delay", time.Second)
	v.SetDefault("pipeline.upload_prefix", "uploads/")
	v.SetDefault("pipeline.allowed_extensions", []string{".pdf"})
	v.SetDefault("pipeline.inline_chunks", false)

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.queue", "docpipe:jobs")

	v.SetDefault("temporal.host", "localhost:7233")
	v.SetDefault("temporal.namespace", "default")
	v.SetDefault("temporal.task_queue", "docpipe")
}

// Default returns the built-in configuration.
func Default() *Config {
	cfg, err := Load("")
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads the configuration. path may be empty, in which case only
// defaults and the environment apply.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if strings.HasSuffix(path, ".env") {
			v.SetConfigType("env")
		}
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks driver names and numeric ranges.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case StorageBadger:
	case StorageMinio:
		if c.Minio.Endpoint == "" {
			return fmt.Errorf("%w: minio.endpoint is required", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown storage.driver %q", ErrInvalidConfig, c.Storage.Driver)
	}
	if c.Storage.Bucket == "" {
		return fmt.Errorf("%w: storage.bucket is required", ErrInvalidConfig)
	}
	switch c.Index.Driver {
	case IndexNone, IndexQdrant:
	default:
		return fmt.Errorf("%w: unknown index.driver %q", ErrInvalidConfig, c.Index.Driver)
	}
	p := c.Pipeline
	if p.ChunkSize <= 0 || p.ChunkOverlap < 0 || p.ChunkOverlap >= p.ChunkSize {
		return fmt.Errorf("%w: chunk_size=%d chunk_overlap=%d", ErrInvalidConfig, p.ChunkSize, p.ChunkOverlap)
	}
	if p.MaxAttempts < 1 {
		return fmt.Errorf("%w: pipeline.max_attempts must be at least 1", ErrInvalidConfig)
	}
	if err := c.AIConfig().Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

// AIConfig returns the embedding provider configuration.
func (c *Config) AIConfig() *ai.Config {
	return ai.NewConfig(
		ai.WithProvider(c.AI.Provider),
		ai.WithHost(c.AI.Host),
		ai.WithModel(c.AI.Model),
		ai.WithAPIKey(c.AI.APIKey),
		ai.WithDimensions(c.AI.Dimensions),
	)
}

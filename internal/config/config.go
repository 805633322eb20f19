// Package config loads the ober CLI configuration from an optional YAML file
// and OBER_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/hupe1980/ober/internal/compression"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. OBER_TOKENS_WIDTH.
const EnvPrefix = "OBER"

// Config holds all CLI configuration.
type Config struct {
	Documents DocumentsConfig `mapstructure:"documents"`
	Tokens    TokensConfig    `mapstructure:"tokens"`
	Senses    SensesConfig    `mapstructure:"senses"`
	Graph     GraphConfig     `mapstructure:"graph"`
	Clusterer ClustererConfig `mapstructure:"clusterer"`
	Publish   PublishConfig   `mapstructure:"publish"`
	Log       LogConfig       `mapstructure:"log"`
}

type DocumentsConfig struct {
	Path        string `mapstructure:"path"`
	Set         string `mapstructure:"set"`
	BatchSize   int    `mapstructure:"batch_size"`
	Compression string `mapstructure:"compression"`
	Codec       string `mapstructure:"codec"`
	// WriteLimit throttles payload writes in bytes per second. Zero is
	// unlimited.
	WriteLimit int `mapstructure:"write_limit"`
}

type TokensConfig struct {
	Path     string `mapstructure:"path"`
	Width    int    `mapstructure:"width"`
	MinCount int    `mapstructure:"min_count"`
	Mmap     bool   `mapstructure:"mmap"`
}

type SensesConfig struct {
	Path         string `mapstructure:"path"`
	ClustersPath string `mapstructure:"clusters_path"`
}

type GraphConfig struct {
	Neighbors int `mapstructure:"neighbors"`
	BatchSize int `mapstructure:"batch_size"`
	Workers   int `mapstructure:"workers"`
}

type ClustererConfig struct {
	Command string   `mapstructure:"command"`
	Args    []string `mapstructure:"args"`
	Workers int      `mapstructure:"workers"`
}

type PublishConfig struct {
	// Backend is one of local, minio or s3.
	Backend     string `mapstructure:"backend"`
	Dir         string `mapstructure:"dir"`
	Bucket      string `mapstructure:"bucket"`
	Prefix      string `mapstructure:"prefix"`
	Endpoint    string `mapstructure:"endpoint"`
	Region      string `mapstructure:"region"`
	AccessKey   string `mapstructure:"access_key"`
	SecretKey   string `mapstructure:"secret_key"`
	Secure      bool   `mapstructure:"secure"`
	Concurrency int    `mapstructure:"concurrency"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Documents: DocumentsConfig{
			Path:        "data/documents",
			BatchSize:   500000,
			Compression: "zstd",
			Codec:       "go-json",
		},
		Tokens: TokensConfig{
			Path:     "data/tokens",
			Width:    300,
			MinCount: 5,
			Mmap:     true,
		},
		Senses: SensesConfig{
			Path:         "data/senses",
			ClustersPath: "data/senses/clusters",
		},
		Graph: GraphConfig{
			Neighbors: 200,
			BatchSize: 250,
		},
		Clusterer: ClustererConfig{
			Command: "java",
			Args:    []string{"-jar", "-Xms4G", "-Xmx16G", "chinese-whispers.jar"},
			Workers: 4,
		},
		Publish: PublishConfig{
			Backend:     "local",
			Dir:         "data/published",
			Concurrency: 4,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("documents.path", d.Documents.Path)
	v.SetDefault("documents.set", d.Documents.Set)
	v.SetDefault("documents.batch_size", d.Documents.BatchSize)
	v.SetDefault("documents.compression", d.Documents.Compression)
	v.SetDefault("documents.codec", d.Documents.Codec)
	v.SetDefault("documents.write_limit", d.Documents.WriteLimit)
	v.SetDefault("tokens.path", d.Tokens.Path)
	v.SetDefault("tokens.width", d.Tokens.Width)
	v.SetDefault("tokens.min_count", d.Tokens.MinCount)
	v.SetDefault("tokens.mmap", d.Tokens.Mmap)
	v.SetDefault("senses.path", d.Senses.Path)
	v.SetDefault("senses.clusters_path", d.Senses.ClustersPath)
	v.SetDefault("graph.neighbors", d.Graph.Neighbors)
	v.SetDefault("graph.batch_size", d.Graph.BatchSize)
	v.SetDefault("graph.workers", d.Graph.Workers)
	v.SetDefault("clusterer.command", d.Clusterer.Command)
	v.SetDefault("clusterer.args", d.Clusterer.Args)
	v.SetDefault("clusterer.workers", d.Clusterer.Workers)
	v.SetDefault("publish.backend", d.Publish.Backend)
	v.SetDefault("publish.dir", d.Publish.Dir)
	v.SetDefault("publish.bucket", d.Publish.Bucket)
	v.SetDefault("publish.prefix", d.Publish.Prefix)
	v.SetDefault("publish.endpoint", d.Publish.Endpoint)
	v.SetDefault("publish.region", d.Publish.Region)
	v.SetDefault("publish.access_key", d.Publish.AccessKey)
	v.SetDefault("publish.secret_key", d.Publish.SecretKey)
	v.SetDefault("publish.secure", d.Publish.Secure)
	v.SetDefault("publish.concurrency", d.Publish.Concurrency)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
}

// Validate reports configuration values no command can run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Documents.BatchSize <= 0 {
		errs = append(errs, fmt.Errorf("documents.batch_size must be positive, got %d", c.Documents.BatchSize))
	}
	if k, err := compression.Parse(c.Documents.Compression); err != nil {
		errs = append(errs, fmt.Errorf("documents.compression: %w", err))
	} else if !k.Writable() {
		errs = append(errs, fmt.Errorf("documents.compression: %s is read-only", k))
	}
	if c.Tokens.Width <= 0 {
		errs = append(errs, fmt.Errorf("tokens.width must be positive, got %d", c.Tokens.Width))
	}
	if c.Graph.Neighbors <= 0 {
		errs = append(errs, fmt.Errorf("graph.neighbors must be positive, got %d", c.Graph.Neighbors))
	}
	switch c.Publish.Backend {
	case "local", "minio", "s3":
	default:
		errs = append(errs, fmt.Errorf("publish.backend: unknown backend %q", c.Publish.Backend))
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format: unknown format %q", c.Log.Format))
	}
	return errors.Join(errs...)
}

// Load reads configuration from path, if non-empty, and the environment.
// A missing file at path is an error; an empty path uses defaults and
// environment overrides only.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// LoadIfExists is Load that treats a missing file at path as absent.
func LoadIfExists(path string) (*Config, error) {
	if path != "" {
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			path = ""
		}
	}
	return Load(path)
}

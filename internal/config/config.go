// Package config loads service settings with the precedence
// environment > config file > built-in default.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Defaults applied when neither the environment nor the config file sets a
// value.
const (
	DefaultMongoURI        = "mongodb://localhost:27017/"
	DefaultMongoDatabase   = "WeatherDb"
	DefaultMongoCollection = "Forecasts"
	DefaultPathPattern     = "era5_land_data/*.nc"

	// DefaultChunkSize is one week of hourly steps: the bound on how much
	// grid data is materialized in memory at once.
	DefaultChunkSize = 24 * 7
)

// Config holds all service settings.
type Config struct {
	MongoURI            string
	MongoDatabase       string
	MongoCollection     string
	MongoConnectTimeout time.Duration

	NetCDFPathPattern string
	ChunkSize         int

	LogLevel  string
	LogFormat string

	// MetricsAddr enables the health/metrics HTTP listener when non-empty.
	MetricsAddr string
}

// fileConfig mirrors the optional YAML config file.
type fileConfig struct {
	Mongo struct {
		URI            string `yaml:"uri"`
		Database       string `yaml:"database"`
		Collection     string `yaml:"collection"`
		ConnectTimeout string `yaml:"connectTimeout"`
	} `yaml:"mongo"`
	NetCDF struct {
		PathPattern string `yaml:"pathPattern"`
		ChunkSize   int    `yaml:"chunkSize"`
	} `yaml:"netcdf"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
	Metrics struct {
		Addr string `yaml:"addr"`
	} `yaml:"metrics"`
}

// Load builds the configuration. A .env file in the working directory is
// loaded first if present, then the YAML config file (CONFIG_FILE, default
// config.yaml) fills unset values, and finally environment variables override
// everything.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		MongoURI:            DefaultMongoURI,
		MongoDatabase:       DefaultMongoDatabase,
		MongoCollection:     DefaultMongoCollection,
		MongoConnectTimeout: 10 * time.Second,
		NetCDFPathPattern:   DefaultPathPattern,
		ChunkSize:           DefaultChunkSize,
		LogLevel:            "info",
		LogFormat:           "json",
	}

	if err := applyFile(cfg, envOrDefault("CONFIG_FILE", "config.yaml")); err != nil {
		return nil, err
	}
	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyFile overlays settings from the YAML config file. A missing file is
// not an error; a malformed one is.
func applyFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read config file %s: %w", path, err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	setString(&cfg.MongoURI, fc.Mongo.URI)
	setString(&cfg.MongoDatabase, fc.Mongo.Database)
	setString(&cfg.MongoCollection, fc.Mongo.Collection)
	setString(&cfg.NetCDFPathPattern, fc.NetCDF.PathPattern)
	setString(&cfg.LogLevel, fc.Log.Level)
	setString(&cfg.LogFormat, fc.Log.Format)
	setString(&cfg.MetricsAddr, fc.Metrics.Addr)
	if fc.NetCDF.ChunkSize != 0 {
		cfg.ChunkSize = fc.NetCDF.ChunkSize
	}
	if fc.Mongo.ConnectTimeout != "" {
		d, err := time.ParseDuration(fc.Mongo.ConnectTimeout)
		if err != nil {
			return fmt.Errorf("config file %s: invalid mongo.connectTimeout: %w", path, err)
		}
		cfg.MongoConnectTimeout = d
	}
	return nil
}

// applyEnv overlays settings from environment variables.
func applyEnv(cfg *Config) error {
	setString(&cfg.MongoURI, os.Getenv("MONGODB_URI"))
	setString(&cfg.MongoDatabase, os.Getenv("MONGODB_DB"))
	setString(&cfg.MongoCollection, os.Getenv("MONGODB_COLLECTION"))
	setString(&cfg.NetCDFPathPattern, os.Getenv("NETCDF_PATH_PATTERN"))
	setString(&cfg.LogLevel, os.Getenv("LOG_LEVEL"))
	setString(&cfg.LogFormat, os.Getenv("LOG_FORMAT"))
	setString(&cfg.MetricsAddr, os.Getenv("METRICS_ADDR"))

	if s := os.Getenv("TIME_CHUNK_SIZE"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			return fmt.Errorf("invalid TIME_CHUNK_SIZE %q: %w", s, err)
		}
		cfg.ChunkSize = n
	}
	if s := os.Getenv("MONGO_CONNECT_TIMEOUT"); s != "" {
		d, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("invalid MONGO_CONNECT_TIMEOUT %q: %w", s, err)
		}
		cfg.MongoConnectTimeout = d
	}
	return nil
}

func (c *Config) validate() error {
	if c.MongoURI == "" {
		return errors.New("MONGODB_URI is required")
	}
	if c.MongoDatabase == "" {
		return errors.New("MONGODB_DB is required")
	}
	if c.MongoCollection == "" {
		return errors.New("MONGODB_COLLECTION is required")
	}
	if c.NetCDFPathPattern == "" {
		return errors.New("NETCDF_PATH_PATTERN is required")
	}
	if c.ChunkSize <= 0 {
		return errors.New("TIME_CHUNK_SIZE must be positive")
	}
	if c.MongoConnectTimeout <= 0 {
		return errors.New("MONGO_CONNECT_TIMEOUT must be positive")
	}
	if c.LogFormat != "json" && c.LogFormat != "text" {
		return fmt.Errorf("LOG_FORMAT must be json or text, got %q", c.LogFormat)
	}
	return nil
}

// MaskURI hides credentials in a connection string for logging.
func MaskURI(uri string) string {
	if i := strings.LastIndex(uri, "@"); i >= 0 {
		return "***@" + uri[i+1:]
	}
	return uri
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

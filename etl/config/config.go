// Package config loads the ETL engine's configuration surface from
// environment variables, using a getEnv/getIntEnv/getDurationEnv
// pattern.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v2"
)

// Format identifies the input file's shape.
type Format string

const (
	FormatDelimited Format = "delimited"
	FormatJSONLines Format = "jsonlines"
)

// ReaderConfig configures the chunked reader.
type ReaderConfig struct {
	SourcePath string
	ChunkSize  int
	Format     Format
	Delimiter  rune
}

// DatabaseConfig configures the PostgreSQL connector.
type DatabaseConfig struct {
	Host     string
	Port     int
	Database string
	User     string
	Password string
	SSLMode  string
	MaxConns int32
	MinConns int32
}

// DSN builds a libpq-style connection string for the connector.
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=%s pool_max_conns=%d pool_min_conns=%d",
		c.Host, c.Port, c.Database, c.User, c.Password, c.SSLMode, c.MaxConns, c.MinConns,
	)
}

// LoggingConfig configures the structured logger.
type LoggingConfig struct {
	Level string
}

// RunConfig configures a single orchestrator run.
type RunConfig struct {
	RunID        string
	MaxRetries   int
	RetryBackoff time.Duration
	CountryMap   map[string]string
}

// Config is the full configuration tree for a run of the ETL engine.
type Config struct {
	Reader   ReaderConfig
	Database DatabaseConfig
	Logging  LoggingConfig
	Run      RunConfig
}

// Load builds a Config from environment variables, applying sensible
// defaults (chunk_size=10000, max_retries=3, ...) when unset.
func Load() (*Config, error) {
	cfg := &Config{
		Reader: ReaderConfig{
			SourcePath: getEnv("SOURCE_PATH", ""),
			ChunkSize:  getIntEnv("CHUNK_SIZE", 10_000),
			Format:     Format(getEnv("SOURCE_FORMAT", string(FormatDelimited))),
			Delimiter:  ',',
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getIntEnv("DB_PORT", 5432),
			Database: getEnv("DB_NAME", "etl"),
			User:     getEnv("DB_USER", "etl"),
			Password: getEnv("DB_PASSWORD", "etl"),
			SSLMode:  getEnv("DB_SSLMODE", "prefer"),
			MaxConns: int32(getIntEnv("DB_MAX_CONNS", 10)),
			MinConns: int32(getIntEnv("DB_MIN_CONNS", 2)),
		},
		Logging: LoggingConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Run: RunConfig{
			RunID:        getEnv("RUN_ID", defaultRunID()),
			MaxRetries:   getIntEnv("MAX_RETRIES", 3),
			RetryBackoff: getDurationEnv("RETRY_BACKOFF", 0),
		},
	}

	countryMap, err := loadCountryMap()
	if err != nil {
		return nil, err
	}
	cfg.Run.CountryMap = countryMap

	if cfg.Reader.SourcePath == "" {
		return nil, fmt.Errorf("SOURCE_PATH is required")
	}
	if cfg.Reader.ChunkSize < 1 {
		return nil, fmt.Errorf("CHUNK_SIZE must be >= 1, got %d", cfg.Reader.ChunkSize)
	}
	if cfg.Run.MaxRetries < 0 {
		return nil, fmt.Errorf("MAX_RETRIES must be >= 0, got %d", cfg.Run.MaxRetries)
	}

	return cfg, nil
}

// defaultRunID derives run_YYYYMMDD_HHMMSS from the UTC wall clock.
func defaultRunID() string {
	return "run_" + timeNowUTC().Format("20060102_150405")
}

// timeNowUTC is a seam so tests can stub the clock if ever needed.
var timeNowUTC = func() time.Time { return time.Now().UTC() }

// loadCountryMap resolves the enrich step's code->name mapping.
// COUNTRY_MAP_FILE (YAML: map of code to name) takes precedence over
// the inline COUNTRY_MAP env var ("VN=Vietnam,US=United States"),
// letting operators supply larger mappings without a giant env var.
func loadCountryMap() (map[string]string, error) {
	if path := os.Getenv("COUNTRY_MAP_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read COUNTRY_MAP_FILE: %w", err)
		}
		var m map[string]string
		if err := yaml.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("failed to parse COUNTRY_MAP_FILE as yaml: %w", err)
		}
		return m, nil
	}

	m := make(map[string]string)
	raw := os.Getenv("COUNTRY_MAP")
	if raw == "" {
		return m, nil
	}
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		kv := strings.SplitN(pair, "=", 2)
		if len(kv) != 2 {
			return nil, fmt.Errorf("invalid COUNTRY_MAP entry: %q", pair)
		}
		m[strings.TrimSpace(kv[0])] = strings.TrimSpace(kv[1])
	}
	return m, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

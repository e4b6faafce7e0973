package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/mr1hm/go-evac-shelters/internal/source"
)

type Config struct {
	Server   ServerConfig
	GRPC     GRPCConfig
	Worker   WorkerConfig
	Shelters ShelterConfig
	DB       DatabaseConfig
	Logging  LoggingConfig
}

type ServerConfig struct {
	Host         string
	Port         int
	RateLimitRPS int
}

type GRPCConfig struct {
	Enabled bool
	Port    int
}

type WorkerConfig struct {
	Count      int
	BufferSize int
}

type SourceKind string

const (
	SourceBundled  SourceKind = "bundled"
	SourceSQLite   SourceKind = "sqlite"
	SourceOverpass SourceKind = "overpass"
	SourceHTTP     SourceKind = "http"
	SourceFile     SourceKind = "file"
)

type ShelterConfig struct {
	Source          string // bundled, sqlite, overpass, an http(s) URL, or a file path
	Format          string // empty means infer
	RefreshInterval time.Duration
	Watch           bool
	HTTPTimeout     time.Duration
	OverpassURL     string
	OverpassBBox    string
}

type DatabaseConfig struct {
	Enabled bool
	Path    string
}

type LoggingConfig struct {
	Level  string
	Format string
}

func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:         getEnv("SERVER_HOST", "localhost"),
			Port:         getEnvInt("SERVER_PORT", 8080),
			RateLimitRPS: getEnvInt("RATE_LIMIT_RPS", 5),
		},
		GRPC: GRPCConfig{
			Enabled: getEnvBool("GRPC_ENABLED", true),
			Port:    getEnvInt("GRPC_PORT", 50051),
		},
		Worker: WorkerConfig{
			Count:      getEnvInt("WORKER_COUNT", 1),
			BufferSize: getEnvInt("WORKER_BUFFER_SIZE", 4),
		},
		Shelters: ShelterConfig{
			Source:          getEnv("SHELTER_SOURCE", string(SourceBundled)),
			Format:          getEnv("SHELTER_FORMAT", ""),
			RefreshInterval: getEnvDuration("SHELTER_REFRESH_INTERVAL", 0),
			Watch:           getEnvBool("SHELTER_WATCH", false),
			HTTPTimeout:     getEnvDuration("HTTP_TIMEOUT", 15*time.Second),
			OverpassURL:     getEnv("OVERPASS_URL", "https://overpass-api.de/api/interpreter"),
			OverpassBBox:    getEnv("OVERPASS_BBOX", "34.70,135.55,34.83,135.72"),
		},
		DB: DatabaseConfig{
			Enabled: getEnvBool("DB_ENABLED", true),
			Path:    getEnv("DB_PATH", "./data/shelters.db"),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.GRPC.Enabled && (c.GRPC.Port < 1 || c.GRPC.Port > 65535) {
		return fmt.Errorf("invalid gRPC port: %d", c.GRPC.Port)
	}
	if c.Server.RateLimitRPS < 1 {
		return fmt.Errorf("rate limit must be at least 1 req/s: %d", c.Server.RateLimitRPS)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}
	if c.Logging.Format != "json" && c.Logging.Format != "text" {
		return fmt.Errorf("invalid log format: %s", c.Logging.Format)
	}

	if c.Worker.Count < 1 {
		return fmt.Errorf("worker count must be at least 1: %d", c.Worker.Count)
	}
	if c.Worker.BufferSize < 0 {
		return fmt.Errorf("worker buffer size must not be negative: %d", c.Worker.BufferSize)
	}

	if c.Shelters.RefreshInterval != 0 && c.Shelters.RefreshInterval < time.Minute {
		return fmt.Errorf("shelter refresh interval must be 0 or at least 1 minute")
	}
	if c.Shelters.HTTPTimeout <= 0 {
		return fmt.Errorf("HTTP timeout must be positive")
	}
	if c.Shelters.Format != "" {
		if _, err := source.ParseFormat(c.Shelters.Format); err != nil {
			return err
		}
	}

	switch c.Shelters.Kind() {
	case SourceOverpass:
		if _, err := source.ParseBBox(c.Shelters.OverpassBBox); err != nil {
			return fmt.Errorf("invalid OVERPASS_BBOX: %w", err)
		}
	case SourceSQLite:
		if !c.DB.Enabled {
			return fmt.Errorf("SHELTER_SOURCE=sqlite requires DB_ENABLED")
		}
	case SourceFile:
		if c.Shelters.Format == "" {
			if _, err := source.FormatFromPath(c.Shelters.Source); err != nil {
				return err
			}
		}
	}
	if c.Shelters.Watch && c.Shelters.Kind() != SourceFile {
		return fmt.Errorf("SHELTER_WATCH requires a file source")
	}

	return nil
}

func (s ShelterConfig) Kind() SourceKind {
	switch {
	case s.Source == "" || s.Source == string(SourceBundled):
		return SourceBundled
	case s.Source == string(SourceSQLite):
		return SourceSQLite
	case s.Source == string(SourceOverpass):
		return SourceOverpass
	case strings.HasPrefix(s.Source, "http://") || strings.HasPrefix(s.Source, "https://"):
		return SourceHTTP
	default:
		return SourceFile
	}
}

// FilePath returns the local path when the source is a file.
func (s ShelterConfig) FilePath() (string, bool) {
	if s.Kind() != SourceFile {
		return "", false
	}
	return s.Source, true
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return fallback
}

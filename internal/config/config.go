// Package config provides unified configuration loading for the CAD engine.
// Supports YAML files, environment variables, and programmatic overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Version is the service version reported by health endpoints and the CLI.
const Version = "1.0.0"

// Config holds all configuration for the CAD engine.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Conversion    ConversionConfig    `yaml:"conversion"`
	Kernel        KernelConfig        `yaml:"kernel"`
	Database      DatabaseConfig      `yaml:"database"`
	Cache         CacheConfig         `yaml:"cache"`
	Artifact      ArtifactConfig      `yaml:"artifact"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host               string        `yaml:"host"`
	Port               int           `yaml:"port"`
	ReadTimeout        time.Duration `yaml:"read_timeout"`
	WriteTimeout       time.Duration `yaml:"write_timeout"`
	IdleTimeout        time.Duration `yaml:"idle_timeout"`
	GracefulShutdown   time.Duration `yaml:"graceful_shutdown"`
	CORSOrigins        []string      `yaml:"cors_origins"`
	RateLimitPerMinute int           `yaml:"rate_limit_per_minute"`
}

// ConversionConfig holds the tolerance contract and upload limits.
type ConversionConfig struct {
	MaxFileSizeMB int `yaml:"max_file_size_mb"`
	// LinearDeflection bounds the chord distance between mesh and true
	// surface, in absolute model units. Valid range [0.001, 1.0].
	LinearDeflection float64 `yaml:"linear_deflection"`
	// AngularDeflection bounds the angle between adjacent facet normals,
	// in radians. Valid range [0.1, 1.0].
	AngularDeflection float64       `yaml:"angular_deflection"`
	WorkDir           string        `yaml:"work_dir"`
	JanitorInterval   time.Duration `yaml:"janitor_interval"`
	StaleAfter        time.Duration `yaml:"stale_after"`
}

// KernelConfig holds geometry kernel settings.
type KernelConfig struct {
	// Backend selects the kernel implementation: occt or stub.
	Backend string `yaml:"backend"`
	// DrawexePath overrides discovery of the OCCT Draw executable.
	DrawexePath    string        `yaml:"drawexe_path"`
	StartupTimeout time.Duration `yaml:"startup_timeout"`
	OpTimeout      time.Duration `yaml:"op_timeout"`
}

// DatabaseConfig holds job store connection settings.
type DatabaseConfig struct {
	Driver   string         `yaml:"driver"` // sqlite or postgres
	SQLite   SQLiteConfig   `yaml:"sqlite"`
	Postgres PostgresConfig `yaml:"postgres"`
}

// SQLiteConfig holds SQLite-specific settings.
type SQLiteConfig struct {
	Path         string `yaml:"path"`
	MaxOpenConns int    `yaml:"max_open_conns"`
	JournalMode  string `yaml:"journal_mode"`
}

// PostgresConfig holds Postgres-specific settings.
type PostgresConfig struct {
	DSN             string        `yaml:"dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// CacheConfig holds artifact cache settings.
type CacheConfig struct {
	Enabled    bool          `yaml:"enabled"`
	Driver     string        `yaml:"driver"` // memory or redis
	TTL        time.Duration `yaml:"ttl"`
	MaxEntries int           `yaml:"max_entries"`
	Redis      RedisConfig   `yaml:"redis"`
}

// RedisConfig holds Redis-specific settings.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

// ArtifactConfig holds persistent artifact store settings.
type ArtifactConfig struct {
	// Backend selects artifact persistence: none, local or s3.
	Backend string   `yaml:"backend"`
	Dir     string   `yaml:"dir"`
	S3      S3Config `yaml:"s3"`
}

// S3Config holds S3-compatible store settings.
type S3Config struct {
	Bucket       string `yaml:"bucket"`
	Region       string `yaml:"region"`
	Endpoint     string `yaml:"endpoint"`
	AccessKey    string `yaml:"access_key"`
	SecretKey    string `yaml:"secret_key"`
	UsePathStyle bool   `yaml:"use_path_style"`
}

// ObservabilityConfig holds logging settings.
type ObservabilityConfig struct {
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

// Load reads configuration from a YAML file and applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// DefaultConfig returns a configuration with sensible defaults for development.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:               "0.0.0.0",
			Port:               5000,
			ReadTimeout:        60 * time.Second,
			WriteTimeout:       120 * time.Second,
			IdleTimeout:        120 * time.Second,
			GracefulShutdown:   10 * time.Second,
			CORSOrigins:        []string{"http://localhost:3000"},
			RateLimitPerMinute: 10,
		},
		Conversion: ConversionConfig{
			MaxFileSizeMB:     50,
			LinearDeflection:  0.1,
			AngularDeflection: 0.5,
			WorkDir:           filepath.Join(os.TempDir(), "cad-files"),
			JanitorInterval:   5 * time.Minute,
			StaleAfter:        time.Hour,
		},
		Kernel: KernelConfig{
			Backend:        "occt",
			StartupTimeout: 30 * time.Second,
			OpTimeout:      5 * time.Minute,
		},
		Database: DatabaseConfig{
			Driver: "sqlite",
			SQLite: SQLiteConfig{
				Path:         filepath.Join(os.TempDir(), "cad-engine.db"),
				MaxOpenConns: 1,
				JournalMode:  "WAL",
			},
			Postgres: PostgresConfig{
				MaxOpenConns:    25,
				MaxIdleConns:    5,
				ConnMaxLifetime: 5 * time.Minute,
			},
		},
		Cache: CacheConfig{
			Enabled:    true,
			Driver:     "memory",
			TTL:        15 * time.Minute,
			MaxEntries: 256,
			Redis: RedisConfig{
				Addr:     "localhost:6379",
				DB:       0,
				PoolSize: 10,
			},
		},
		Artifact: ArtifactConfig{
			Backend: "none",
			Dir:     filepath.Join(os.TempDir(), "cad-artifacts"),
			S3: S3Config{
				Region:       "us-east-1",
				UsePathStyle: false,
			},
		},
		Observability: ObservabilityConfig{
			LogLevel:  "info",
			LogFormat: "json",
		},
	}
}

// MaxFileSizeBytes returns the upload cap in bytes.
func (c *Config) MaxFileSizeBytes() int64 {
	return int64(c.Conversion.MaxFileSizeMB) * 1024 * 1024
}

// DatabaseDSN returns the appropriate job store connection string.
func (c *Config) DatabaseDSN() string {
	if c.Database.Driver == "sqlite" {
		return c.Database.SQLite.Path
	}
	return c.Database.Postgres.DSN
}

// Validate checks the configuration for errors. A failed validation must
// abort startup; tolerance values are never checked again per request.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if len(c.Server.CORSOrigins) == 0 {
		return fmt.Errorf("cors_origins cannot be empty")
	}

	if c.Server.RateLimitPerMinute < 1 {
		return fmt.Errorf("rate_limit_per_minute must be at least 1")
	}

	if c.Conversion.MaxFileSizeMB < 1 {
		return fmt.Errorf("max_file_size_mb must be at least 1")
	}

	if c.Conversion.LinearDeflection < 0.001 || c.Conversion.LinearDeflection > 1.0 {
		return fmt.Errorf("linear_deflection must be between 0.001 and 1.0, got %g", c.Conversion.LinearDeflection)
	}

	if c.Conversion.AngularDeflection < 0.1 || c.Conversion.AngularDeflection > 1.0 {
		return fmt.Errorf("angular_deflection must be between 0.1 and 1.0, got %g", c.Conversion.AngularDeflection)
	}

	if c.Kernel.Backend != "occt" && c.Kernel.Backend != "stub" {
		return fmt.Errorf("invalid kernel backend: %s", c.Kernel.Backend)
	}

	if c.Database.Driver != "sqlite" && c.Database.Driver != "postgres" {
		return fmt.Errorf("invalid database driver: %s", c.Database.Driver)
	}

	if c.Cache.Driver != "memory" && c.Cache.Driver != "redis" {
		return fmt.Errorf("invalid cache driver: %s", c.Cache.Driver)
	}

	switch c.Artifact.Backend {
	case "none", "local":
	case "s3":
		if c.Artifact.S3.Bucket == "" {
			return fmt.Errorf("artifact backend s3 requires a bucket")
		}
	default:
		return fmt.Errorf("invalid artifact backend: %s", c.Artifact.Backend)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides to config.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}

	if v := os.Getenv("SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}

	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		origins := strings.Split(v, ",")
		for i := range origins {
			origins[i] = strings.TrimSpace(origins[i])
		}
		cfg.Server.CORSOrigins = origins
	}

	if v := os.Getenv("RATE_LIMIT_PER_MINUTE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Server.RateLimitPerMinute = n
		}
	}

	if v := os.Getenv("MAX_FILE_SIZE_MB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Conversion.MaxFileSizeMB = n
		}
	}

	if v := os.Getenv("LINEAR_DEFLECTION"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Conversion.LinearDeflection = f
		}
	}

	if v := os.Getenv("ANGULAR_DEFLECTION"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Conversion.AngularDeflection = f
		}
	}

	if v := os.Getenv("WORK_DIR"); v != "" {
		cfg.Conversion.WorkDir = v
	}

	if v := os.Getenv("KERNEL_BACKEND"); v != "" {
		cfg.Kernel.Backend = v
	}

	if v := os.Getenv("DRAWEXE_PATH"); v != "" {
		cfg.Kernel.DrawexePath = v
	}

	if v := os.Getenv("DATABASE_URL"); v != "" {
		if strings.HasPrefix(v, "sqlite:") {
			cfg.Database.Driver = "sqlite"
			cfg.Database.SQLite.Path = strings.TrimPrefix(v, "sqlite:")
		} else if strings.HasPrefix(v, "postgres") {
			cfg.Database.Driver = "postgres"
			cfg.Database.Postgres.DSN = v
		}
	}

	if v := os.Getenv("POSTGRES_URL"); v != "" {
		cfg.Database.Postgres.DSN = v
	}

	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Cache.Driver = "redis"
		cfg.Cache.Redis.Addr = strings.TrimPrefix(v, "redis://")
	}

	if v := os.Getenv("ARTIFACT_BACKEND"); v != "" {
		cfg.Artifact.Backend = v
	}

	if v := os.Getenv("ARTIFACT_DIR"); v != "" {
		cfg.Artifact.Dir = v
	}

	if v := os.Getenv("S3_BUCKET"); v != "" {
		cfg.Artifact.S3.Bucket = v
	}

	if v := os.Getenv("S3_REGION"); v != "" {
		cfg.Artifact.S3.Region = v
	}

	if v := os.Getenv("S3_ENDPOINT"); v != "" {
		cfg.Artifact.S3.Endpoint = v
		cfg.Artifact.S3.UsePathStyle = true
	}

	if v := os.Getenv("AWS_ACCESS_KEY_ID"); v != "" {
		cfg.Artifact.S3.AccessKey = v
	}

	if v := os.Getenv("AWS_SECRET_ACCESS_KEY"); v != "" {
		cfg.Artifact.S3.SecretKey = v
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Observability.LogLevel = strings.ToLower(v)
	}

	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Observability.LogFormat = v
	}
}

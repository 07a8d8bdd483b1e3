package config

import (
	"log"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"go-sales-etl/pkg/utils"
)

const (
	configPathEnv   = "SALES_ETL_CONFIG"
	mysqlHostEnv    = "MYSQL_HOST"
	mysqlPortEnv    = "MYSQL_PORT"
	mysqlUserEnv    = "MYSQL_USER"
	mysqlPassEnv    = "MYSQL_PASSWORD"
	mysqlDBEnv      = "MYSQL_DATABASE"
	sourcePathEnv   = "SALES_ETL_SOURCE"
	defaultChunkSz  = 500
	defaultWorkers  = 4
	defaultAttempts = 3
)

// Config holds everything the pipeline and its binaries need. It is built
// once at process start and passed down; nothing else reads the environment.
type Config struct {
	Database  DatabaseConfig  `yaml:"database"`
	Source    SourceConfig    `yaml:"source"`
	Load      LoadConfig      `yaml:"load"`
	Retention RetentionConfig `yaml:"retention"`
	Log       LogConfig       `yaml:"log"`
	API       APIConfig       `yaml:"api"`
}

// DatabaseConfig describes the target relational store.
type DatabaseConfig struct {
	Driver   string `yaml:"driver"` // "mysql" or "sqlite3"
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"` // database name, or file path for sqlite3
	Timeout  string `yaml:"timeout"`
}

// StoreTimeout bounds every chunk-level store operation.
func (d DatabaseConfig) StoreTimeout() time.Duration {
	return utils.ParseDuration(d.Timeout, 30*time.Second)
}

// SourceConfig points at the raw input file.
type SourceConfig struct {
	Path string `yaml:"path"`
}

// LoadConfig tunes the batch loader.
type LoadConfig struct {
	ChunkSize      int    `yaml:"chunkSize"`
	Workers        int    `yaml:"workers"`
	MaxAttempts    int    `yaml:"maxAttempts"`
	InitialBackoff string `yaml:"initialBackoff"`
	MaxBackoff     string `yaml:"maxBackoff"`
}

// InitialDelay is the delay before the first chunk retry.
func (l LoadConfig) InitialDelay() time.Duration {
	return utils.ParseDuration(l.InitialBackoff, time.Second)
}

// MaxDelay caps the retry backoff.
func (l LoadConfig) MaxDelay() time.Duration {
	return utils.ParseDuration(l.MaxBackoff, 30*time.Second)
}

// RetentionConfig drives the scheduled cleanup of old rows.
type RetentionConfig struct {
	Days int    `yaml:"days"`
	Cron string `yaml:"cron"`
}

// LogConfig selects the log level.
type LogConfig struct {
	Level string `yaml:"level"`
}

// APIConfig configures the HTTP surface.
type APIConfig struct {
	Addr string `yaml:"addr"`
}

// Load reads YAML configuration (if present) and applies environment overrides.
func Load() Config {
	cfg := defaultConfig()

	if path := os.Getenv(configPathEnv); path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else if err := yaml.Unmarshal(raw, &cfg); err != nil {
			log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
			cfg = defaultConfig()
		}
	}

	cfg.applyEnvOverrides()
	cfg.normalize()
	return cfg
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(mysqlHostEnv); v != "" {
		c.Database.Host = v
	}
	if v := os.Getenv(mysqlPortEnv); v != "" {
		c.Database.Port = utils.ParseInt(v, c.Database.Port)
	}
	if v := os.Getenv(mysqlUserEnv); v != "" {
		c.Database.User = v
	}
	if v := os.Getenv(mysqlPassEnv); v != "" {
		c.Database.Password = v
	}
	if v := os.Getenv(mysqlDBEnv); v != "" {
		c.Database.Name = v
	}
	if v := os.Getenv(sourcePathEnv); v != "" {
		c.Source.Path = v
	}
}

func (c *Config) normalize() {
	if c.Load.ChunkSize <= 0 {
		c.Load.ChunkSize = defaultChunkSz
	}
	if c.Load.Workers <= 0 {
		c.Load.Workers = defaultWorkers
	}
	if c.Load.MaxAttempts <= 0 {
		c.Load.MaxAttempts = defaultAttempts
	}
	if c.Retention.Days <= 0 {
		c.Retention.Days = 90
	}
}

func defaultConfig() Config {
	return Config{
		Database: DatabaseConfig{
			Driver:   "mysql",
			Host:     "localhost",
			Port:     3306,
			User:     "etl_user",
			Password: "",
			Name:     "etl_ventas",
			Timeout:  "30s",
		},
		Source: SourceConfig{Path: "data/ventas_raw.csv"},
		Load: LoadConfig{
			ChunkSize:      defaultChunkSz,
			Workers:        defaultWorkers,
			MaxAttempts:    defaultAttempts,
			InitialBackoff: "1s",
			MaxBackoff:     "30s",
		},
		Retention: RetentionConfig{Days: 90, Cron: "0 3 * * *"},
		Log:       LogConfig{Level: "info"},
		API:       APIConfig{Addr: ":8080"},
	}
}

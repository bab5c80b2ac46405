package config

import "time"

// Config is the main application configuration struct.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Ingestion IngestionConfig `mapstructure:"ingestion"`
}

type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json or console
}

type ServerConfig struct {
	Port            int      `mapstructure:"port"`
	AllowedOrigins  []string `mapstructure:"allowed_origins"`
	MaxUploadMB     int64    `mapstructure:"max_upload_mb"`
	ReadTimeoutSec  int      `mapstructure:"read_timeout_sec"`
	WriteTimeoutSec int      `mapstructure:"write_timeout_sec"`
}

// DatabaseConfig points the result repository at Postgres. An empty URL
// disables persistence.
type DatabaseConfig struct {
	URL            string `mapstructure:"url"`
	MaxConnections int32  `mapstructure:"max_connections"`
}

// RedisConfig points the result cache at Redis. An empty address disables
// caching.
type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type IngestionConfig struct {
	TablesPath       string        `mapstructure:"tables_path"` // empty means built-in tables
	Seed             int64         `mapstructure:"seed"`        // 0 means time seeded
	DiagnosticsLimit int           `mapstructure:"diagnostics_limit"`
	CacheTTL         time.Duration `mapstructure:"cache_ttl"`
}

// ReadTimeout returns the HTTP read timeout.
func (s ServerConfig) ReadTimeout() time.Duration {
	return time.Duration(s.ReadTimeoutSec) * time.Second
}

// WriteTimeout returns the HTTP write timeout.
func (s ServerConfig) WriteTimeout() time.Duration {
	return time.Duration(s.WriteTimeoutSec) * time.Second
}

// MaxUploadBytes is the multipart body limit.
func (s ServerConfig) MaxUploadBytes() int64 {
	return s.MaxUploadMB << 20
}

const defaultCacheTTL = 24 * time.Hour

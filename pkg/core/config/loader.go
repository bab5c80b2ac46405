package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	apperrors "portfolio_ingest/pkg/core/errors"
)

// EnvPrefix namespaces environment overrides, e.g. INGEST_DATABASE_URL.
const EnvPrefix = "INGEST"

// Load reads config.yaml (and config.<env>.yaml) from dir, applies
// environment overrides and defaults, then validates. A missing config file
// is not an error.
func Load(dir string) (*Config, error) {
	loadEnvFile(dir)

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if dir != "" {
		v.AddConfigPath(dir)
	}
	v.AddConfigPath("./configs")
	v.AddConfigPath(".")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	bindEnv(v)

	// 1. Base config
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	// 2. Environment specific config
	env := v.GetString("app.environment")
	if env == "" {
		env = "development"
	}
	v.SetConfigName(fmt.Sprintf("config.%s", env))
	_ = v.MergeInConfig()

	// 3. Decode
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a validated configuration without reading any file.
func Default() *Config {
	var cfg Config
	applyDefaults(&cfg)
	return &cfg
}

// loadEnvFile loads the first .env found next to the config dir or in the
// working directory.
func loadEnvFile(dir string) {
	candidates := []string{".env"}
	if dir != "" {
		candidates = append([]string{filepath.Join(dir, ".env"), filepath.Join(dir, "..", ".env")}, candidates...)
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				return
			}
		}
	}
}

// bindEnv registers keys that have no value in the file so AutomaticEnv can
// still see them during Unmarshal.
func bindEnv(v *viper.Viper) {
	keys := []string{
		"app.name", "app.version", "app.environment",
		"logging.level", "logging.format",
		"server.port", "server.allowed_origins", "server.max_upload_mb",
		"server.read_timeout_sec", "server.write_timeout_sec",
		"database.url", "database.max_connections",
		"redis.address", "redis.password", "redis.db",
		"ingestion.tables_path", "ingestion.seed", "ingestion.diagnostics_limit", "ingestion.cache_ttl",
	}
	for _, k := range keys {
		_ = v.BindEnv(k)
	}
}

// applyDefaults sets default values for optional configuration fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "portfolio-ingest"
	}
	if cfg.App.Environment == "" {
		cfg.App.Environment = "development"
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}

	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if len(cfg.Server.AllowedOrigins) == 0 {
		cfg.Server.AllowedOrigins = []string{"*"}
	}
	if cfg.Server.MaxUploadMB == 0 {
		cfg.Server.MaxUploadMB = 32
	}
	if cfg.Server.ReadTimeoutSec == 0 {
		cfg.Server.ReadTimeoutSec = 30
	}
	if cfg.Server.WriteTimeoutSec == 0 {
		cfg.Server.WriteTimeoutSec = 60
	}

	if cfg.Database.MaxConnections == 0 {
		cfg.Database.MaxConnections = 10
	}

	if cfg.Ingestion.DiagnosticsLimit == 0 {
		cfg.Ingestion.DiagnosticsLimit = 500
	}
	if cfg.Ingestion.CacheTTL == 0 {
		cfg.Ingestion.CacheTTL = defaultCacheTTL
	}
}

func validateConfig(cfg *Config) error {
	switch strings.ToLower(cfg.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		return apperrors.NewInvalidConfigError(fmt.Sprintf("logging.level %q is not one of debug, info, warn, error", cfg.Logging.Level))
	}
	switch cfg.Logging.Format {
	case "json", "console":
	default:
		return apperrors.NewInvalidConfigError(fmt.Sprintf("logging.format %q is not json or console", cfg.Logging.Format))
	}
	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		return apperrors.NewInvalidConfigError(fmt.Sprintf("server.port %d out of range", cfg.Server.Port))
	}
	if cfg.Server.MaxUploadMB < 0 {
		return apperrors.NewInvalidConfigError("server.max_upload_mb must be positive")
	}
	if cfg.Ingestion.DiagnosticsLimit < 0 {
		return apperrors.NewInvalidConfigError("ingestion.diagnostics_limit must not be negative")
	}
	if cfg.Ingestion.CacheTTL < 0 {
		return apperrors.NewInvalidConfigError("ingestion.cache_ttl must not be negative")
	}
	if cfg.Ingestion.TablesPath != "" {
		if _, err := os.Stat(cfg.Ingestion.TablesPath); err != nil {
			return apperrors.NewInvalidConfigError(fmt.Sprintf("ingestion.tables_path: %v", err))
		}
	}
	return nil
}

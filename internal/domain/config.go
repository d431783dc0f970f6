package domain

import (
	"os"
	"strconv"
)

// Config holds the complete Skua configuration.
type Config struct {
	// Folders watched and written by the pipeline
	SourceFolder  string `json:"sourceFolder"`
	MonitorFolder string `json:"monitorFolder"`
	ArchiveFolder string `json:"archiveFolder"`

	// Component configurations
	Repository RepositoryConfig `json:"repository"`
	Cache      CacheConfig      `json:"cache"`

	// Admin HTTP surface (skua serve)
	Server ServerConfig `json:"server"`

	// Observability
	Logging LoggingConfig `json:"logging"`
}

// ServerConfig holds HTTP server settings for the admin surface.
type ServerConfig struct {
	Host         string `json:"host"`
	Port         int    `json:"port"`
	ReadTimeout  int    `json:"readTimeout"`  // seconds
	WriteTimeout int    `json:"writeTimeout"` // seconds
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `json:"level"`  // debug, info, warn, error
	Format string `json:"format"` // json, text
}

// DefaultConfig returns a local-development configuration: SQLite storage
// and an in-process LRU cache, no external services required.
func DefaultConfig() *Config {
	return &Config{
		SourceFolder:  "./data_folder_source",
		MonitorFolder: "./data_folder_monitor",
		ArchiveFolder: "./archive",
		Repository: RepositoryConfig{
			Driver:     "sqlite",
			SQLitePath: "./skua.db",
		},
		Cache: CacheConfig{
			Type:         "memory",
			LocalMaxSize: 1024,
		},
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  30,
			WriteTimeout: 30,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// ConfigFromEnv builds the configuration from environment variables on top
// of DefaultConfig. Warehouse credentials follow the conventional
// POSTGRES_* names; everything else is SKUA_*.
func ConfigFromEnv() *Config {
	cfg := DefaultConfig()

	setString(&cfg.SourceFolder, "SKUA_SOURCE_FOLDER")
	setString(&cfg.MonitorFolder, "SKUA_MONITOR_FOLDER")
	setString(&cfg.ArchiveFolder, "SKUA_ARCHIVE_FOLDER")

	setString(&cfg.Repository.Driver, "SKUA_DRIVER")
	setString(&cfg.Repository.SQLitePath, "SKUA_SQLITE_PATH")
	setString(&cfg.Repository.PostgresHost, "POSTGRES_HOST")
	setInt(&cfg.Repository.PostgresPort, "POSTGRES_PORT")
	setString(&cfg.Repository.PostgresUser, "POSTGRES_USER")
	setString(&cfg.Repository.PostgresPassword, "POSTGRES_PASSWORD")
	setString(&cfg.Repository.PostgresDB, "POSTGRES_DB")
	setString(&cfg.Repository.PostgresSSLMode, "POSTGRES_SSLMODE")

	setString(&cfg.Cache.Type, "SKUA_CACHE")
	setString(&cfg.Cache.RedisAddr, "SKUA_REDIS_ADDR")
	setString(&cfg.Cache.RedisPassword, "SKUA_REDIS_PASSWORD")
	setInt(&cfg.Cache.RedisDB, "SKUA_REDIS_DB")

	setString(&cfg.Server.Host, "SKUA_HTTP_HOST")
	setInt(&cfg.Server.Port, "SKUA_HTTP_PORT")

	setString(&cfg.Logging.Level, "SKUA_LOG_LEVEL")
	setString(&cfg.Logging.Format, "SKUA_LOG_FORMAT")

	return cfg
}

// Validate reports fatal configuration problems before any I/O happens.
func (c *Config) Validate() error {
	switch c.Repository.Driver {
	case "sqlite":
		return nil
	case "postgres":
		if c.Repository.PostgresUser == "" || c.Repository.PostgresDB == "" {
			return ErrMissingCredentials
		}
		return nil
	default:
		return ErrUnknownDriver
	}
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

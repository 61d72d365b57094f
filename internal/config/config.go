package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Database DatabaseConfig
	Web      WebConfig
	Auth     AuthConfig
	Log      LogConfig
}

type DatabaseConfig struct {
	Backend          string        // postgres (default), mysql or sqlite
	URL              string        // connection URL, MySQL DSN or SQLite file path
	MaxOpenConns     int           // Maximum open connections (default 25)
	MaxIdleConns     int           // Maximum idle connections (default 5)
	HNSWIndexPath    string        // Path to persist the neighbour index (optional, if empty index is rebuilt on startup)
	HNSWSaveInterval time.Duration // How often serve persists the neighbour index
}

type WebConfig struct {
	Host           string
	Port           int
	AllowedOrigins []string // CORS whitelist, localhost is always allowed
}

type AuthConfig struct {
	JWTSecret string
	TokenTTL  time.Duration
	Issuer    string
}

type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json or console
}

const (
	BackendPostgres = "postgres"
	BackendMySQL    = "mysql"
	BackendSQLite   = "sqlite"
)

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envString reads an environment variable, trimmed, with a fallback.
func envString(key, defaultVal string) string {
	if s := strings.TrimSpace(os.Getenv(key)); s != "" {
		return s
	}
	return defaultVal
}

// envList splits a comma-separated environment variable, dropping empty items.
func envList(key string) []string {
	var out []string
	for item := range strings.SplitSeq(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func Load() *Config {
	return &Config{
		Database: DatabaseConfig{
			Backend:          strings.ToLower(envString("DATABASE_BACKEND", BackendPostgres)),
			URL:              os.Getenv("DATABASE_URL"),
			MaxOpenConns:     envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns:     envInt("DATABASE_MAX_IDLE_CONNS", 5),
			HNSWIndexPath:    os.Getenv("HNSW_INDEX_PATH"),
			HNSWSaveInterval: time.Duration(envInt("HNSW_SAVE_INTERVAL_MINUTES", 10)) * time.Minute,
		},
		Web: WebConfig{
			Host:           envString("WEB_HOST", "0.0.0.0"),
			Port:           envInt("WEB_PORT", 8080),
			AllowedOrigins: envList("WEB_ALLOWED_ORIGINS"),
		},
		Auth: AuthConfig{
			JWTSecret: os.Getenv("AUTH_JWT_SECRET"),
			TokenTTL:  time.Duration(envInt("AUTH_TOKEN_TTL_HOURS", 24)) * time.Hour,
			Issuer:    envString("AUTH_ISSUER", "face-login"),
		},
		Log: LogConfig{
			Level:  strings.ToLower(envString("LOG_LEVEL", "info")),
			Format: strings.ToLower(envString("LOG_FORMAT", "json")),
		},
	}
}

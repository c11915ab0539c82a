package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

const defaultEventsURL = "https://app.ticketmaster.com/discovery/v2"

// Config captures all runtime configuration derived from environment variables.
type Config struct {
	Port                 string
	DBURL                string
	EventsURL            string
	EventsAPIKey         string
	EventsTimeoutSecs    int
	EventsMaxResults     int
	EventsClassification string
	EventsConcurrency    int
	LogLevel             string
	LogFormat            string
	ReadTimeoutSecs      int
	WriteTimeoutSecs     int
	IdleTimeoutSecs      int
	DBMaxConns           int
	DBMinConns           int
	DBMaxIdleSecs        int
	DBMaxLifeSecs        int
	DBConnTimeoutSecs    int
	DBStatementCache     int
}

// Load reads configuration from environment variables, applying defaults and validation.
func Load() (Config, error) {
	cfg := Config{
		Port:                 getEnv("PORT", "8080"),
		DBURL:                os.Getenv("DB_URL"),
		EventsURL:            getEnv("EVENTS_URL", defaultEventsURL),
		EventsAPIKey:         os.Getenv("TICKETMASTER_API_KEY"),
		EventsTimeoutSecs:    getEnvInt("EVENTS_TIMEOUT_SECS", 5),
		EventsMaxResults:     getEnvInt("EVENTS_MAX_RESULTS", 3),
		EventsClassification: getEnv("EVENTS_CLASSIFICATION", "Music"),
		EventsConcurrency:    getEnvInt("EVENTS_CONCURRENCY", 4),
		LogLevel:             strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogFormat:            strings.ToLower(getEnv("LOG_FORMAT", "json")),
		ReadTimeoutSecs:      getEnvInt("SERVER_READ_TIMEOUT", 15),
		WriteTimeoutSecs:     getEnvInt("SERVER_WRITE_TIMEOUT", 30),
		IdleTimeoutSecs:      getEnvInt("SERVER_IDLE_TIMEOUT", 60),
		DBMaxConns:           getEnvInt("DB_MAX_CONNS", 20),
		DBMinConns:           getEnvInt("DB_MIN_CONNS", 2),
		DBMaxIdleSecs:        getEnvInt("DB_MAX_CONN_IDLE_SECS", 300),
		DBMaxLifeSecs:        getEnvInt("DB_MAX_CONN_LIFETIME_SECS", 3600),
		DBConnTimeoutSecs:    getEnvInt("DB_CONN_TIMEOUT_SECS", 10),
		DBStatementCache:     getEnvInt("DB_STATEMENT_CACHE_CAPACITY", 256),
	}

	if cfg.DBURL == "" {
		return Config{}, fmt.Errorf("DB_URL is required")
	}
	if cfg.EventsAPIKey == "" {
		return Config{}, fmt.Errorf("TICKETMASTER_API_KEY is required")
	}
	if cfg.EventsTimeoutSecs <= 0 {
		return Config{}, fmt.Errorf("EVENTS_TIMEOUT_SECS must be positive")
	}
	if cfg.EventsMaxResults <= 0 {
		return Config{}, fmt.Errorf("EVENTS_MAX_RESULTS must be positive")
	}
	if cfg.EventsConcurrency <= 0 {
		return Config{}, fmt.Errorf("EVENTS_CONCURRENCY must be positive")
	}
	if cfg.LogFormat != "json" && cfg.LogFormat != "console" {
		return Config{}, fmt.Errorf("LOG_FORMAT must be json or console")
	}
	if cfg.DBMaxConns <= 0 {
		return Config{}, fmt.Errorf("DB_MAX_CONNS must be positive")
	}
	if cfg.DBMinConns < 0 {
		return Config{}, fmt.Errorf("DB_MIN_CONNS must be non-negative")
	}
	if cfg.DBMaxConns > 0 && cfg.DBMinConns > cfg.DBMaxConns {
		return Config{}, fmt.Errorf("DB_MIN_CONNS cannot exceed DB_MAX_CONNS")
	}
	if cfg.DBStatementCache < 0 {
		return Config{}, fmt.Errorf("DB_STATEMENT_CACHE_CAPACITY must be non-negative")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return fallback
}

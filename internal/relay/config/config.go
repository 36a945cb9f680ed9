// Package config provides configuration for the relay.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds the relay configuration.
type Config struct {
	// Server settings
	HTTPPort int

	// Database
	DatabaseURL string

	// Upstream assistant API
	AssistantBaseURL string
	AssistantAPIKey  string
	AssistantID      string
	UpstreamTimeout  time.Duration

	// Logging
	LogLevel string
}

// Load loads configuration from environment variables.
func Load() *Config {
	return &Config{
		HTTPPort:         getEnvInt("HTTP_PORT", 8080),
		DatabaseURL:      getEnv("DATABASE_URL", "file:wunderlust.db?cache=shared&mode=rwc"),
		AssistantBaseURL: getEnv("ASSISTANT_BASE_URL", "https://api.openai.com/v1"),
		AssistantAPIKey:  getEnv("ASSISTANT_API_KEY", ""),
		AssistantID:      getEnv("ASSISTANT_ID", ""),
		UpstreamTimeout:  time.Duration(getEnvInt("UPSTREAM_TIMEOUT_MS", 60000)) * time.Millisecond,
		LogLevel:         getEnv("LOG_LEVEL", "info"),
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
	}
	return defaultVal
}

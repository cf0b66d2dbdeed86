package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server
	Port string
	Env  string

	// Widget defaults
	ChatBaseURL     string
	AllowedBaseURLs []string
	TenantID        string
	WidgetTitle     string
	WidgetIdleTTL   time.Duration

	// Widget session tokens
	TokenSecret string
	TokenTTL    time.Duration

	// Mount rate limit per client IP
	MountRateLimitPerMin int

	// Optional backing services
	DatabaseURL string
	RedisURL    string

	// Host pages allowed to call the API
	AllowedOrigins []string
}

func Load() *Config {
	// Load .env file if it exists
	godotenv.Load()

	cfg := &Config{
		Port:                 getEnvOrDefault("PORT", "8080"),
		Env:                  getEnvOrDefault("ENV", "development"),
		ChatBaseURL:          getEnvOrDefault("OWL_CHAT_BASE_URL", ""),
		AllowedBaseURLs:      getEnvAsListOrDefault("OWL_ALLOWED_BASE_URLS", nil),
		TenantID:             getEnvOrDefault("OWL_TENANT_ID", "demo"),
		WidgetTitle:          getEnvOrDefault("OWL_WIDGET_TITLE", "OWL Chat"),
		WidgetIdleTTL:        getEnvAsDurationOrDefault("OWL_WIDGET_IDLE_TTL", 30*time.Minute),
		TokenSecret:          mustGetEnv("WIDGET_TOKEN_SECRET"),
		TokenTTL:             getEnvAsDurationOrDefault("WIDGET_TOKEN_TTL", 24*time.Hour),
		MountRateLimitPerMin: getEnvAsIntOrDefault("MOUNT_RATE_LIMIT_PER_MIN", 30),
		DatabaseURL:          getEnvOrDefault("DATABASE_URL", ""),
		RedisURL:             getEnvOrDefault("REDIS_URL", ""),
		AllowedOrigins:       getEnvAsListOrDefault("ALLOWED_ORIGINS", []string{"*"}),
	}

	return cfg
}

func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

func mustGetEnv(key string) string {
	val := os.Getenv(key)
	if val == "" {
		panic(fmt.Sprintf("required environment variable %s is not set", key))
	}
	return val
}

func getEnvOrDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func getEnvAsIntOrDefault(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return n
}

func getEnvAsDurationOrDefault(key string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return defaultVal
	}
	return d
}

// getEnvAsListOrDefault splits a comma-separated value, dropping blanks.
func getEnvAsListOrDefault(key string, defaultVal []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultVal
	}
	return out
}

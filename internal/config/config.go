package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port      string
	Env       string
	LogLevel  string
	LogFormat string

	DatabaseURL   string
	RedisAddr     string
	RedisPassword string
	RedisTLS      bool

	// Cart storage
	CartBackend  string
	CartTTL      time.Duration
	SessionTTL   time.Duration
	SessionName  string
	SessionKey   string
	BookingPath  string
	CatalogFile  string
	StylistMapID string

	DefaultCountryCode string

	CORSAllowedOrigins []string
	RateLimitRPS       float64
	RateLimitBurst     int

	// Support backend consumed by salonctl
	SupportBaseURL         string
	SupportCSRFToken       string
	SupportSessionCookie   string
	SupportRefreshInterval time.Duration
	SupportPollInterval    time.Duration
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:      getEnv("PORT", "8080"),
		Env:       getEnv("ENV", "development"),
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),

		DatabaseURL:   getEnv("DATABASE_URL", ""),
		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),

		CartBackend:  strings.ToLower(strings.TrimSpace(getEnv("CART_BACKEND", "memory"))),
		CartTTL:      getEnvAsDuration("CART_TTL", 30*time.Minute),
		SessionTTL:   getEnvAsDuration("SESSION_TTL", 24*time.Hour),
		SessionName:  getEnv("SESSION_COOKIE", "salon_session"),
		SessionKey:   getEnv("SESSION_SECRET", ""),
		BookingPath:  getEnv("BOOKING_PATH", "/booking/"),
		CatalogFile:  getEnv("CATALOG_FILE", ""),
		StylistMapID: getEnv("STYLIST_MAP_ELEMENT_ID", "service-stylists-map"),

		DefaultCountryCode: getEnv("DEFAULT_COUNTRY_CODE", "+998"),

		CORSAllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS"),
		RateLimitRPS:       getEnvAsFloat("RATE_LIMIT_RPS", 10),
		RateLimitBurst:     getEnvAsInt("RATE_LIMIT_BURST", 20),

		SupportBaseURL:         strings.TrimRight(getEnv("SUPPORT_BASE_URL", ""), "/"),
		SupportCSRFToken:       getEnv("SUPPORT_CSRF_TOKEN", ""),
		SupportSessionCookie:   getEnv("SUPPORT_SESSION_COOKIE", ""),
		SupportRefreshInterval: getEnvAsDuration("SUPPORT_REFRESH_INTERVAL", 10*time.Second),
		SupportPollInterval:    getEnvAsDuration("SUPPORT_POLL_INTERVAL", 5*time.Second),
	}
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsList splits a comma separated variable, dropping blanks.
func getEnvAsList(key string) []string {
	raw := getEnv(key, "")
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

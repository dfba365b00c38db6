// Package config provides environment configuration for the portal server.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the application.
type Config struct {
	// Server settings
	Port               string
	AppEnv             string
	ServerReadTimeout  time.Duration
	ServerWriteTimeout time.Duration
	CORSOrigins        string

	// Database
	DatabaseURL string
	SeedData    bool
	DBDebug     bool

	// JWT settings
	JWTSecret string
	JWTTTL    time.Duration

	// Cases
	CaseRefPrefix string

	// Assistant
	UsageTimezone   string
	AIProvider      string
	AIModel         string
	AITimeout       time.Duration
	GeminiAPIKey    string
	OpenAIAPIKey    string
	AnthropicAPIKey string

	// Case documents (Supabase Storage); empty URL keeps files in memory
	SupabaseURL    string
	SupabaseKey    string
	SupabaseBucket string

	// NATS
	NATSURL           string
	NATSToken         string
	NATSSubjectPrefix string
	NATSStream        string // JetStream stream; empty publishes on core NATS

	// Rate limiting
	RateLimitRequests int
	RateLimitWindow   time.Duration

	// Logging
	LogLevel string
}

// Load reads configuration from environment variables.
func Load() *Config {
	return &Config{
		Port:               getEnv("PORT", "3000"),
		AppEnv:             getEnv("APP_ENV", "production"),
		ServerReadTimeout:  getDurationEnv("SERVER_READ_TIMEOUT", 30*time.Second),
		ServerWriteTimeout: getDurationEnv("SERVER_WRITE_TIMEOUT", 120*time.Second),
		CORSOrigins:        getEnv("CORS_ORIGINS", "*"),

		DatabaseURL: getEnv("DATABASE_URL", "sqlite://uclf.db"),
		SeedData:    getBoolEnv("SEED_DATA", true),
		DBDebug:     getBoolEnv("DB_DEBUG", false),

		JWTSecret: getEnv("JWT_SECRET", "development-secret-change-in-production"),
		JWTTTL:    getDurationEnv("JWT_TTL", 7*24*time.Hour),

		CaseRefPrefix: strings.ToUpper(getEnv("CASE_REF_PREFIX", "UCLF")),

		UsageTimezone:   getEnv("USAGE_TIMEZONE", "Africa/Kampala"),
		AIProvider:      getEnv("AI_PROVIDER", "gemini"),
		AIModel:         getEnv("AI_MODEL", ""),
		AITimeout:       getDurationEnv("AI_TIMEOUT", 60*time.Second),
		GeminiAPIKey:    getEnv("GEMINI_API_KEY", os.Getenv("API_KEY")),
		OpenAIAPIKey:    getEnv("OPENAI_API_KEY", ""),
		AnthropicAPIKey: getEnv("ANTHROPIC_API_KEY", ""),

		SupabaseURL:    getEnv("SUPABASE_URL", ""),
		SupabaseKey:    getEnv("SUPABASE_SERVICE_KEY", ""),
		SupabaseBucket: getEnv("SUPABASE_BUCKET", "case-files"),

		NATSURL:           getEnv("NATS_URL", ""),
		NATSToken:         getEnv("NATS_TOKEN", ""),
		NATSSubjectPrefix: getEnv("NATS_SUBJECT_PREFIX", "uclf"),
		NATSStream:        getEnv("NATS_STREAM", ""),

		RateLimitRequests: getIntEnv("RATE_LIMIT_REQUESTS", 120),
		RateLimitWindow:   getDurationEnv("RATE_LIMIT_WINDOW", time.Minute),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
}

// AllowedOrigins splits CORS_ORIGINS on commas.
func (c *Config) AllowedOrigins() []string {
	var out []string
	for _, o := range strings.Split(c.CORSOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

// IsDev reports whether the server runs in development mode.
func (c *Config) IsDev() bool { return c.AppEnv == "dev" || c.AppEnv == "development" }

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

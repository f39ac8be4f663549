// Package config provides application configuration.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Storage backend names accepted by STORAGE_BACKEND.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
)

// Config holds all application configuration.
type Config struct {
	Port             string
	FrontendURL      string
	LogLevel         slog.Level
	MaxHistoryLength int
	MaxRequestBody   int64
	SessionSecret    string
	AdminPassword    string
	BcryptCost       int
	PromptsFile      string
	Azure            AzureConfig
	Storage          StorageConfig
	RateLimit        RateLimitConfig
}

// AzureConfig holds the hosted model deployment settings.
type AzureConfig struct {
	APIKey      string
	Endpoint    string
	APIVersion  string
	Deployment  string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
}

// StorageConfig selects and configures the persistence backend.
type StorageConfig struct {
	Backend         string
	ChatHistoryFile string
	UsersFile       string
	DBPath          string
	RedisAddr       string
	RedisPassword   string
	RedisDB         int
	RedisPrefix     string
}

// RateLimitConfig controls per-client throttling of /ask.
type RateLimitConfig struct {
	RequestsPerWindow int
	WindowDuration    time.Duration
}

// requiredAzureVars maps each mandatory variable to the description used in
// the startup error.
var requiredAzureVars = []struct {
	key  string
	desc string
}{
	{"AZURE_OPENAI_API_KEY", "API key"},
	{"AZURE_OPENAI_API_ENDPOINT", "endpoint"},
	{"AZURE_OPENAI_API_VERSION", "API version"},
	{"AZURE_OPENAI_CHAT_DEPLOYMENT_NAME", "deployment name"},
}

// Load reads configuration from environment variables, including the Azure
// model settings that the server requires.
func Load() (*Config, error) {
	cfg := LoadStorage()
	for _, v := range requiredAzureVars {
		if strings.TrimSpace(os.Getenv(v.key)) == "" {
			return nil, fmt.Errorf("missing %s in environment variables (%s), check your .env file", v.desc, v.key)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// LoadStorage reads configuration without requiring model credentials.
// Offline commands that only touch persisted state use it directly.
func LoadStorage() *Config {
	return &Config{
		Port:             getEnv("PORT", "3000"),
		FrontendURL:      getEnv("FRONTEND_URL", ""),
		LogLevel:         getEnvLevel("LOG_LEVEL", slog.LevelInfo),
		MaxHistoryLength: getEnvInt("MAX_HISTORY_LENGTH", 10),
		MaxRequestBody:   int64(getEnvInt("MAX_REQUEST_BODY", 1<<20)),
		SessionSecret:    getEnv("SESSION_SECRET", "dev-session-secret-change-me"),
		AdminPassword:    getEnv("ADMIN_PASSWORD", "admin123"),
		BcryptCost:       getEnvInt("BCRYPT_COST", 10),
		PromptsFile:      getEnv("PROMPTS_FILE", ""),
		Azure: AzureConfig{
			APIKey:      getEnv("AZURE_OPENAI_API_KEY", ""),
			Endpoint:    getEnv("AZURE_OPENAI_API_ENDPOINT", ""),
			APIVersion:  getEnv("AZURE_OPENAI_API_VERSION", ""),
			Deployment:  getEnv("AZURE_OPENAI_CHAT_DEPLOYMENT_NAME", ""),
			Temperature: getEnvFloat("MODEL_TEMPERATURE", 0.7),
			MaxTokens:   getEnvInt("MODEL_MAX_TOKENS", 500),
			Timeout:     getEnvDuration("MODEL_TIMEOUT", 60*time.Second),
		},
		Storage: StorageConfig{
			Backend:         strings.ToLower(getEnv("STORAGE_BACKEND", BackendFile)),
			ChatHistoryFile: getEnv("CHAT_HISTORY_FILE", "./data/chat_history.json"),
			UsersFile:       getEnv("USERS_FILE", "./data/users.json"),
			DBPath:          getEnv("DB_PATH", "./data/askd.db"),
			RedisAddr:       getEnv("REDIS_ADDR", "localhost:6379"),
			RedisPassword:   getEnv("REDIS_PASSWORD", ""),
			RedisDB:         getEnvInt("REDIS_DB", 0),
			RedisPrefix:     getEnv("REDIS_PREFIX", "askd:"),
		},
		RateLimit: RateLimitConfig{
			RequestsPerWindow: getEnvInt("RATE_LIMIT_REQUESTS", 30),
			WindowDuration:    getEnvDuration("RATE_LIMIT_WINDOW", time.Minute),
		},
	}
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.MaxHistoryLength <= 0 {
		return fmt.Errorf("MAX_HISTORY_LENGTH must be > 0")
	}
	if c.MaxRequestBody <= 0 {
		return fmt.Errorf("MAX_REQUEST_BODY must be > 0")
	}
	if c.SessionSecret == "" {
		return fmt.Errorf("SESSION_SECRET cannot be empty")
	}
	if c.BcryptCost < 4 || c.BcryptCost > 31 {
		return fmt.Errorf("BCRYPT_COST must be between 4 and 31")
	}
	if c.Azure.Timeout <= 0 {
		return fmt.Errorf("MODEL_TIMEOUT must be > 0")
	}
	if c.RateLimit.RequestsPerWindow <= 0 || c.RateLimit.WindowDuration <= 0 {
		return fmt.Errorf("RATE_LIMIT_REQUESTS and RATE_LIMIT_WINDOW must be > 0")
	}

	switch c.Storage.Backend {
	case BackendFile:
		if c.Storage.ChatHistoryFile == "" || c.Storage.UsersFile == "" {
			return fmt.Errorf("CHAT_HISTORY_FILE and USERS_FILE cannot be empty")
		}
	case BackendSQLite:
		if c.Storage.DBPath == "" {
			return fmt.Errorf("DB_PATH cannot be empty")
		}
	case BackendRedis:
		if c.Storage.RedisAddr == "" {
			return fmt.Errorf("REDIS_ADDR cannot be empty")
		}
	default:
		return fmt.Errorf("unknown STORAGE_BACKEND %q", c.Storage.Backend)
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvFloat(key string, fallback float64) float64 {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fallback
	}
	return f
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return d
}

func getEnvLevel(key string, fallback slog.Level) slog.Level {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(value))); err != nil {
		return fallback
	}
	return level
}

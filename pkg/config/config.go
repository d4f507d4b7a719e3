package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	Server        ServerConfig
	Store         StoreConfig
	Redis         RedisConfig
	Extraction    ExtractionConfig
	Transcription TranscriptionConfig
	Analytics     AnalyticsConfig
	OTEL          OTELConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Host string
	Port int
}

// StoreConfig holds the embedded durable store configuration
type StoreConfig struct {
	Path     string
	InMemory bool
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// ExtractionConfig holds the structured-extraction webhook configuration
type ExtractionConfig struct {
	WebhookURL     string
	TimeoutSeconds int
}

// TranscriptionConfig holds the voice transcription webhook configuration
type TranscriptionConfig struct {
	WebhookURL     string
	TimeoutSeconds int
}

// AnalyticsConfig holds the analytics capture configuration
type AnalyticsConfig struct {
	Endpoint string
	APIKey   string
	Enabled  bool
}

// OTELConfig holds OpenTelemetry configuration
type OTELConfig struct {
	ServiceName    string
	ServiceVersion string
	Endpoint       string
	Enabled        bool
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	return &Config{
		Server: ServerConfig{
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
			Port: getEnvAsInt("SERVER_PORT", 8080),
		},
		Store: StoreConfig{
			Path:     getEnv("STORE_PATH", "./data/journal"),
			InMemory: getEnvAsBool("STORE_IN_MEMORY", false),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnvAsInt("REDIS_PORT", 6379),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Extraction: ExtractionConfig{
			WebhookURL:     getEnv("EXTRACTION_WEBHOOK_URL", ""),
			TimeoutSeconds: getEnvAsInt("EXTRACTION_TIMEOUT_SECONDS", 60),
		},
		Transcription: TranscriptionConfig{
			WebhookURL:     getEnv("TRANSCRIPTION_WEBHOOK_URL", ""),
			TimeoutSeconds: getEnvAsInt("TRANSCRIPTION_TIMEOUT_SECONDS", 30),
		},
		Analytics: AnalyticsConfig{
			Endpoint: getEnv("ANALYTICS_ENDPOINT", ""),
			APIKey:   getEnv("ANALYTICS_API_KEY", ""),
			Enabled:  getEnvAsBool("ANALYTICS_ENABLED", false),
		},
		OTEL: OTELConfig{
			ServiceName:    getEnv("OTEL_SERVICE_NAME", "allergy-journal"),
			ServiceVersion: getEnv("OTEL_SERVICE_VERSION", "1.0.0"),
			Endpoint:       getEnv("OTEL_ENDPOINT", ""),
			Enabled:        getEnvAsBool("OTEL_ENABLED", false),
		},
	}, nil
}

// RedisAddr returns the Redis address
func (c *RedisConfig) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Timeout returns the extraction timeout as a duration
func (c *ExtractionConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// Timeout returns the transcription timeout as a duration
func (c *TranscriptionConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

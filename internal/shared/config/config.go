package config

import (
	"fmt"
	"os"
	"strconv"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	GenAI    GenAIConfig
	Auth     AuthConfig
	Log      LogConfig
}

type ServerConfig struct {
	Port int
	Env  string
}

type DatabaseConfig struct {
	// Enabled controls whether reference data is loaded from Postgres.
	// When false (or the connection fails) the embedded datasets are used.
	Enabled  bool
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Database, d.SSLMode,
	)
}

// GenAIConfig holds configuration for the generative-language service.
type GenAIConfig struct {
	URL     string
	APIKey  string
	Model   string
	Enabled bool
	// TimeoutSeconds bounds a single generation call. Timeout is treated
	// as failure and routed to the deterministic fallback path.
	TimeoutSeconds int
	// RequestsPerMinute caps outbound generation calls.
	RequestsPerMinute int
}

type AuthConfig struct {
	JWTSecret string
}

type LogConfig struct {
	Level  string
	Format string
}

func Load() (*Config, error) {
	return &Config{
		Server: ServerConfig{
			Port: getEnvInt("SERVER_PORT", 8080),
			Env:  getEnv("ENV", "development"),
		},
		Database: DatabaseConfig{
			Enabled:  getEnvBool("DB_ENABLED", false),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "deprescribe"),
			Password: getEnv("DB_PASSWORD", "deprescribe"),
			Database: getEnv("DB_NAME", "deprescribe"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		GenAI: GenAIConfig{
			URL:               getEnv("GENAI_URL", "http://localhost:5100"),
			APIKey:            getEnv("GENAI_API_KEY", ""),
			Model:             getEnv("GENAI_MODEL", "medtext-large"),
			Enabled:           getEnvBool("GENAI_ENABLED", false),
			TimeoutSeconds:    getEnvInt("GENAI_TIMEOUT_SECONDS", 20),
			RequestsPerMinute: getEnvInt("GENAI_REQUESTS_PER_MINUTE", 30),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", "dev-secret-change-in-prod"),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "console"),
		},
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

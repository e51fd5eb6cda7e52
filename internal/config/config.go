package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	Redis         RedisConfig
	Storage       StorageConfig
	OCR           OCRConfig
	Extraction    ExtractionConfig
	Consolidation ConsolidationConfig
}

type ServerConfig struct {
	Host string
	Port int
}

type DatabaseConfig struct {
	URL            string
	MaxConns       int
	MinConns       int
	MigrationsPath string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type StorageConfig struct {
	SupabaseURL string
	SupabaseKey string
	Bucket      string
}

type OCRConfig struct {
	// Order is the comma-separated backend fallback order. Backends
	// without credentials configured are skipped at construction.
	Order string

	DocAIBaseURL      string
	DocAIClientID     string
	DocAIClientSecret string

	TextifyBaseURL string
	TextifyAPIKey  string

	OpenAIKey   string
	OpenAIModel string
}

type ExtractionConfig struct {
	AttemptTimeout  time.Duration
	OverallTimeout  time.Duration
	PollInterval    time.Duration
	PollMaxAttempts int
}

type ConsolidationConfig struct {
	ReviewThreshold float64
	ConflictCap     float64
	DefaultStrategy string
}

func Load() (*Config, error) {
	port, err := getEnvInt("SERVER_PORT", 8080)
	if err != nil {
		return nil, fmt.Errorf("invalid SERVER_PORT: %w", err)
	}

	maxConns, err := getEnvInt("DB_MAX_CONNS", 20)
	if err != nil {
		return nil, fmt.Errorf("invalid DB_MAX_CONNS: %w", err)
	}

	minConns, err := getEnvInt("DB_MIN_CONNS", 5)
	if err != nil {
		return nil, fmt.Errorf("invalid DB_MIN_CONNS: %w", err)
	}

	redisDB, err := getEnvInt("REDIS_DB", 0)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	attemptTimeout, err := getEnvInt("EXTRACTION_ATTEMPT_TIMEOUT_SECS", 45)
	if err != nil {
		return nil, fmt.Errorf("invalid EXTRACTION_ATTEMPT_TIMEOUT_SECS: %w", err)
	}

	overallTimeout, err := getEnvInt("EXTRACTION_OVERALL_TIMEOUT_SECS", 240)
	if err != nil {
		return nil, fmt.Errorf("invalid EXTRACTION_OVERALL_TIMEOUT_SECS: %w", err)
	}

	pollInterval, err := getEnvInt("OCR_POLL_INTERVAL_SECS", 2)
	if err != nil {
		return nil, fmt.Errorf("invalid OCR_POLL_INTERVAL_SECS: %w", err)
	}

	pollMaxAttempts, err := getEnvInt("OCR_POLL_MAX_ATTEMPTS", 60)
	if err != nil {
		return nil, fmt.Errorf("invalid OCR_POLL_MAX_ATTEMPTS: %w", err)
	}

	reviewThreshold, err := getEnvFloat("CONSOLIDATION_REVIEW_THRESHOLD", 0.70)
	if err != nil {
		return nil, fmt.Errorf("invalid CONSOLIDATION_REVIEW_THRESHOLD: %w", err)
	}

	conflictCap, err := getEnvFloat("CONSOLIDATION_CONFLICT_CAP", 0.85)
	if err != nil {
		return nil, fmt.Errorf("invalid CONSOLIDATION_CONFLICT_CAP: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
			Port: port,
		},
		Database: DatabaseConfig{
			URL:            getEnv("DATABASE_URL", ""),
			MaxConns:       maxConns,
			MinConns:       minConns,
			MigrationsPath: getEnv("MIGRATIONS_PATH", "migrations"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       redisDB,
		},
		Storage: StorageConfig{
			SupabaseURL: getEnv("SUPABASE_URL", ""),
			SupabaseKey: getEnv("SUPABASE_SERVICE_KEY", ""),
			Bucket:      getEnv("STORAGE_BUCKET", "reports"),
		},
		OCR: OCRConfig{
			Order:             getEnv("OCR_BACKEND_ORDER", "docai,textify,llmscan,pdftext"),
			DocAIBaseURL:      getEnv("DOCAI_BASE_URL", ""),
			DocAIClientID:     getEnv("DOCAI_CLIENT_ID", ""),
			DocAIClientSecret: getEnv("DOCAI_CLIENT_SECRET", ""),
			TextifyBaseURL:    getEnv("TEXTIFY_BASE_URL", ""),
			TextifyAPIKey:     getEnv("TEXTIFY_API_KEY", ""),
			OpenAIKey:         getEnv("OPENAI_API_KEY", ""),
			OpenAIModel:       getEnv("OPENAI_OCR_MODEL", "gpt-4o-mini"),
		},
		Extraction: ExtractionConfig{
			AttemptTimeout:  time.Duration(attemptTimeout) * time.Second,
			OverallTimeout:  time.Duration(overallTimeout) * time.Second,
			PollInterval:    time.Duration(pollInterval) * time.Second,
			PollMaxAttempts: pollMaxAttempts,
		},
		Consolidation: ConsolidationConfig{
			ReviewThreshold: reviewThreshold,
			ConflictCap:     conflictCap,
			DefaultStrategy: getEnv("CONSOLIDATION_DEFAULT_STRATEGY", "highest_confidence"),
		},
	}

	return cfg, nil
}

func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

func (c *Config) Validate() error {
	var missing []string
	if c.Database.URL == "" {
		missing = append(missing, "DATABASE_URL")
	}
	if c.Storage.SupabaseURL == "" {
		missing = append(missing, "SUPABASE_URL")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required env vars: %s", strings.Join(missing, ", "))
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return strconv.Atoi(v)
}

func getEnvFloat(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return strconv.ParseFloat(v, 64)
}

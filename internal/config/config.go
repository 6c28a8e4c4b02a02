package config

import (
	"fmt"
	"os"
	"strconv"
)

type Config struct {
	// Job Backend
	JobAPIBaseURL string
	JobAPIKey     string

	// Profile service (balance refresh); optional
	ProfileAPIBaseURL string

	// Supabase result archive; optional
	SupabaseURL           string
	SupabaseServiceKey    string
	SupabaseStorageBucket string

	// Auth
	JWTSecret string

	// Database; optional, snapshots fall back to memory
	DatabaseURL string

	// Server
	Port        string
	Environment string

	// Upload policy
	MaxUploadBytes int64

	// Generation tuning
	MaxInstructionLen int
	PollIntervalMs    int
	PollMaxAttempts   int
	PollMaxDurationMs int
	SlowWarningMs     int
	VerySlowWarningMs int
}

func Load() (*Config, error) {
	cfg := &Config{
		JobAPIBaseURL: getEnv("JOB_API_BASE_URL", "https://api.jobrunner.example.com/v1"),
		JobAPIKey:     getEnv("JOB_API_KEY", ""),

		ProfileAPIBaseURL: getEnv("PROFILE_API_BASE_URL", ""),

		SupabaseURL:           getEnv("SUPABASE_URL", ""),
		SupabaseServiceKey:    getEnv("SUPABASE_SERVICE_KEY", ""),
		SupabaseStorageBucket: getEnv("SUPABASE_STORAGE_BUCKET", "generated-images"),

		JWTSecret: getEnv("JWT_SECRET", ""),

		DatabaseURL: getEnv("DATABASE_URL", ""),

		Port:        getEnv("PORT", "8080"),
		Environment: getEnv("ENVIRONMENT", "development"),

		MaxUploadBytes: int64(getEnvInt("MAX_UPLOAD_BYTES", 20<<20)),

		MaxInstructionLen: getEnvInt("MAX_INSTRUCTION_LEN", 4000),
		PollIntervalMs:    getEnvInt("POLL_INTERVAL_MS", 2000),
		PollMaxAttempts:   getEnvInt("POLL_MAX_ATTEMPTS", 0),
		PollMaxDurationMs: getEnvInt("POLL_MAX_DURATION_MS", 600000),
		SlowWarningMs:     getEnvInt("SLOW_WARNING_MS", 60000),
		VerySlowWarningMs: getEnvInt("VERY_SLOW_WARNING_MS", 300000),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.JobAPIKey == "" {
		return fmt.Errorf("JOB_API_KEY is required")
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.PollIntervalMs <= 0 {
		return fmt.Errorf("POLL_INTERVAL_MS must be positive")
	}
	if c.PollMaxDurationMs <= 0 {
		return fmt.Errorf("POLL_MAX_DURATION_MS must be positive")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

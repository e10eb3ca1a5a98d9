package common

import (
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	Database   DatabaseConfig
	LLM        LLMConfig
	FineTuning FineTuningConfig
	Storage    StorageConfig
	Batch      BatchConfig
	LogLevel   string
}

// DatabaseConfig holds record-store configuration
type DatabaseConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	MaxConnLifetime time.Duration
	DialTimeout     time.Duration
}

// LLMConfig holds vision-model configuration
type LLMConfig struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float32
	// Long by design: multi-page documents can take minutes.
	Timeout time.Duration
}

// FineTuningConfig holds model-training configuration
type FineTuningConfig struct {
	BaseModel       string
	PollInterval    time.Duration
	TriggerInterval int
	MinCorpusSize   int
	AutoDeploy      bool
	TriggerCron     string
}

// StorageConfig holds object-storage configuration
type StorageConfig struct {
	RootDir string
}

// BatchConfig bounds concurrent document processing. Default of 1 keeps
// batches sequential to avoid rate-limit storms on the upstream API.
type BatchConfig struct {
	Concurrency int
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			DSN:             getEnv("DB_URL", ""),
			MaxOpenConns:    getEnvAsInt("DB_MAX_CONNS", 10),
			MaxIdleConns:    getEnvAsInt("DB_IDLE_CONNS", 10),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", 30*time.Minute),
			DialTimeout:     getEnvAsDuration("DB_DIAL_TIMEOUT", 3*time.Second),
		},
		LLM: LLMConfig{
			BaseURL:     getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
			APIKey:      getEnv("OPENAI_API_KEY", ""),
			Model:       getEnv("OPENAI_MODEL", "gpt-4o"),
			Temperature: getEnvAsFloat32("OPENAI_TEMPERATURE", 0.1),
			Timeout:     getEnvAsDuration("OPENAI_TIMEOUT", 4*time.Minute),
		},
		FineTuning: FineTuningConfig{
			BaseModel:       getEnv("FINETUNE_BASE_MODEL", "gpt-4o-2024-08-06"),
			PollInterval:    getEnvAsDuration("FINETUNE_POLL_INTERVAL", 30*time.Second),
			TriggerInterval: getEnvAsInt("FINETUNE_TRIGGER_INTERVAL", 50),
			MinCorpusSize:   getEnvAsInt("FINETUNE_MIN_CORPUS", 25),
			AutoDeploy:      getEnvAsBool("FINETUNE_AUTO_DEPLOY", false),
			TriggerCron:     getEnv("FINETUNE_TRIGGER_CRON", "0 0 2 * * *"),
		},
		Storage: StorageConfig{
			RootDir: getEnv("STORAGE_ROOT", "./data/storage"),
		},
		Batch: BatchConfig{
			Concurrency: getEnvAsInt("BATCH_CONCURRENCY", 1),
		},
		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
}

// Helper functions for environment variable parsing
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

func getEnvAsFloat32(key string, defaultValue float32) float32 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(floatVal)
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	if c.Database.DSN == "" {
		return NewAppError("CONFIG_ERROR", "DB_URL is required", ErrInvalidInput)
	}
	if c.LLM.APIKey == "" {
		return NewAppError("CONFIG_ERROR", "OPENAI_API_KEY is required", ErrInvalidInput)
	}
	if c.Batch.Concurrency < 1 {
		return NewAppError("CONFIG_ERROR", "BATCH_CONCURRENCY must be >= 1", ErrInvalidInput)
	}
	return nil
}

package common

import (
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Config holds all application configuration. It is built once at process
// start and passed into component constructors; core logic never reads the
// environment on its own.
type Config struct {
	Server  ServerConfig
	Storage StorageConfig
	Vision  VisionConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Addr            string
	MaxUploadBytes  int64
	ShutdownTimeout time.Duration
}

// StorageConfig holds on-disk storage paths.
type StorageConfig struct {
	Dir          string // uploaded files and identification images
	DatabasePath string // sqlite document store
	ExportsDir   string
}

// VisionConfig holds vision model configuration.
type VisionConfig struct {
	APIKey      string
	Model       string
	BaseURL     string
	Timeout     time.Duration
	MaxTokens   int
	IdentifyTTL time.Duration // phase-1 identification records expire after this
	RenderScale float64       // scale used when rendering PDF pages for identification
}

// LoadConfig loads configuration from environment variables.
func LoadConfig() *Config {
	storageDir := getEnv("STORAGE_DIR", "storage")
	return &Config{
		Server: ServerConfig{
			Addr:            getEnv("HTTP_ADDR", ":8000"),
			MaxUploadBytes:  getEnvAsInt64("MAX_UPLOAD_BYTES", 50*1024*1024),
			ShutdownTimeout: getEnvAsDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Storage: StorageConfig{
			Dir:          storageDir,
			DatabasePath: getEnv("DB_PATH", filepath.Join(storageDir, "infograph.db")),
			ExportsDir:   getEnv("EXPORTS_DIR", "exports"),
		},
		Vision: VisionConfig{
			APIKey:      getEnv("OPENAI_API_KEY", ""),
			Model:       getEnv("OPENAI_MODEL", "gpt-4o"),
			BaseURL:     getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
			Timeout:     getEnvAsDuration("VISION_TIMEOUT", 120*time.Second),
			MaxTokens:   getEnvAsInt("VISION_MAX_TOKENS", 8192),
			IdentifyTTL: getEnvAsDuration("IDENTIFICATION_TTL", time.Hour),
			RenderScale: getEnvAsFloat64("IDENTIFY_RENDER_SCALE", 2.0),
		},
	}
}

// Validate validates the loaded configuration. The vision API key is
// deliberately not required here: vision endpoints report their own
// unavailability when unconfigured.
func (c *Config) Validate() error {
	if c.Storage.Dir == "" {
		return NewError(KindInvalidInput, "STORAGE_DIR must not be empty")
	}
	if c.Server.Addr == "" {
		return NewError(KindInvalidInput, "HTTP_ADDR must not be empty")
	}
	return nil
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

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat64(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
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

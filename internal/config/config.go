package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Config holds the complete application configuration
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Gallery   GalleryConfig
	Enrich    EnrichConfig
	Logging   LoggingConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Host       string
	Port       string
	EnableCORS bool
}

// DatabaseConfig selects the backing database for the event log
type DatabaseConfig struct {
	Type       string // "sqlite" or "postgres"
	SQLitePath string
	Host       string
	Port       string
	User       string
	Password   string
	Name       string
}

// GalleryConfig holds the watched-directory settings
type GalleryConfig struct {
	PhotosDir    string
	DataFile     string // metadata store file inside PhotosDir
	SettingsFile string
	PageSize     int
}

// EnrichConfig holds enrichment pipeline tuning
type EnrichConfig struct {
	BatchSize       int
	OCRConcurrency  int
	RateLimit       int           // vision calls per window
	RateWindow      time.Duration
	RetryAttempts   int
	RetryDelay      time.Duration
	VisionMaxDim    int
	OCRMaxDim       int
	VisionEndpoint  string
	VisionModel     string
	APIKey          string
	TesseractBin    string
	CPUThreshold    float64 // percent; above this, batches are paused
	MemoryThreshold float64
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string
}

// Load builds the configuration from the environment with defaults.
func Load() *Config {
	photosDir := envOr("LUMEN_PHOTOS_DIR", "./photos")

	cfg := &Config{
		Server: ServerConfig{
			Host:       envOr("LUMEN_HOST", "0.0.0.0"),
			Port:       envOr("PORT", "8080"),
			EnableCORS: envBool("LUMEN_ENABLE_CORS", true),
		},
		Database: DatabaseConfig{
			Type:       envOr("DATABASE_TYPE", "sqlite"),
			SQLitePath: envOr("SQLITE_PATH", filepath.Join(envOr("DATA_DIR", "./data"), "lumen.db")),
			Host:       envOr("POSTGRES_HOST", "localhost"),
			Port:       envOr("POSTGRES_PORT", "5432"),
			User:       os.Getenv("POSTGRES_USER"),
			Password:   os.Getenv("POSTGRES_PASSWORD"),
			Name:       envOr("POSTGRES_DB", "lumen"),
		},
		Gallery: GalleryConfig{
			PhotosDir:    photosDir,
			DataFile:     filepath.Join(photosDir, "imageData.json"),
			SettingsFile: filepath.Join(photosDir, "settings.json"),
			PageSize:     envInt("LUMEN_PAGE_SIZE", 20),
		},
		Enrich: EnrichConfig{
			BatchSize:       envInt("LUMEN_ENRICH_BATCH", 3),
			OCRConcurrency:  envInt("LUMEN_OCR_CONCURRENCY", 20),
			RateLimit:       envInt("LUMEN_VISION_RATE_LIMIT", 20),
			RateWindow:      time.Minute,
			RetryAttempts:   3,
			RetryDelay:      5 * time.Second,
			VisionMaxDim:    400,
			OCRMaxDim:       550,
			VisionEndpoint:  envOr("LUMEN_VISION_ENDPOINT", "https://api.openai.com/v1/chat/completions"),
			VisionModel:     envOr("LUMEN_VISION_MODEL", "gpt-4o"),
			APIKey:          os.Getenv("LUMEN_API_KEY"),
			TesseractBin:    envOr("LUMEN_TESSERACT_BIN", "tesseract"),
			CPUThreshold:    envFloat("LUMEN_CPU_THRESHOLD", 85.0),
			MemoryThreshold: envFloat("LUMEN_MEMORY_THRESHOLD", 90.0),
		},
		Logging: LoggingConfig{
			Level: envOr("LUMEN_LOG_LEVEL", "info"),
		},
	}

	return cfg
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func envFloat(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

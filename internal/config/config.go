// Package config provides application configuration from environment
// variables with sensible defaults.
package config

import (
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds the recognized configuration options.
type Config struct {
	DataRoot       string  // Root directory for resolving annotation image paths
	PaddingFactor  float64 // Crop padding as a fraction of box size per side (1.0 = 100%)
	GridRows       int     // Grid page rows
	GridCols       int     // Grid page columns
	ViewfinderSize int     // Viewfinder crop edge length in pixels
	MinConfidence  float64 // Initial confidence threshold
	CacheEntries   int     // Memory crop-cache ceiling (entry count)
	CacheDir       string  // On-disk crop cache directory ("" = disabled)
	Reviewer       string  // Default reviewer identifier
}

// Load reads configuration from the environment, consulting a .env file in
// the working directory if present.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		DataRoot:       getEnv("REVIEW_DATA_ROOT", ""),
		PaddingFactor:  getEnvAsFloat("REVIEW_PADDING", 1.0),
		GridRows:       getEnvAsInt("REVIEW_GRID_ROWS", 10),
		GridCols:       getEnvAsInt("REVIEW_GRID_COLS", 10),
		ViewfinderSize: getEnvAsInt("REVIEW_VIEWFINDER_SIZE", 512),
		MinConfidence:  getEnvAsFloat("REVIEW_MIN_CONFIDENCE", 0),
		CacheEntries:   getEnvAsInt("REVIEW_CACHE_ENTRIES", 256),
		CacheDir:       getEnv("REVIEW_CACHE_DIR", defaultCacheDir()),
		Reviewer:       getEnv("REVIEW_REVIEWER", ""),
	}
}

// PageSize returns the number of grid cells per page.
func (c *Config) PageSize() int {
	return c.GridRows * c.GridCols
}

func defaultCacheDir() string {
	cacheDir, err := os.UserCacheDir()
	if err != nil {
		return ""
	}
	return filepath.Join(cacheDir, "cell-review", "crops")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

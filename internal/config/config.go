// Package config loads service configuration from the environment, with an
// optional .env file for local development.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds everything the binaries need to talk to the cloud
// collaborators.
type Config struct {
	// HTTP server
	Port string

	// Google Cloud
	ProjectID       string
	Dataset         string
	Bucket          string
	CredentialsFile string

	// Receipt analysis
	ModelName string

	// Upload limits
	MaxUploadBytes int64
}

// Load reads configuration from the environment. A .env file in the working
// directory is applied first when present; real environment variables win.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Port:            getEnv("PORT", "8080"),
		ProjectID:       getEnv("GCP_PROJECT", ""),
		Dataset:         getEnv("BQ_DATASET", "receipts"),
		Bucket:          getEnv("GCS_BUCKET", ""),
		CredentialsFile: getEnv("GOOGLE_CREDENTIALS_FILE", ""),
		ModelName:       getEnv("ANALYSIS_MODEL", "gemini-2.0-flash"),
		MaxUploadBytes:  getEnvInt64("MAX_UPLOAD_BYTES", 10*1024*1024),
	}
}

// Validate reports configuration problems that would only surface later as
// confusing client errors.
func (c *Config) Validate() error {
	if port, err := strconv.Atoi(c.Port); err != nil {
		return fmt.Errorf("invalid port %q: must be a number", c.Port)
	} else if port < 1 || port > 65535 {
		return fmt.Errorf("invalid port %d: must be between 1 and 65535", port)
	}

	if c.ProjectID == "" {
		return fmt.Errorf("GCP_PROJECT must be set")
	}

	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("invalid max upload size %d: must be positive", c.MaxUploadBytes)
	}

	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt64(key string, fallback int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parsed, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

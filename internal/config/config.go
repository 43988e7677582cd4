package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config represents the complete application configuration
type Config struct {
	Server  ServerConfig
	Paths   PathConfig
	Geocode GeocodeConfig
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Addr string
}

// PathConfig holds file system paths
type PathConfig struct {
	OutputDir    string
	DatabasePath string
}

// GeocodeConfig holds reverse-geocoding settings. Geocoding is optional and
// disabled by default; with it off every lookup resolves to a placeholder.
type GeocodeConfig struct {
	Enabled bool
	BaseURL string
	Timeout time.Duration
}

// Load reads configuration from the environment, consulting a .env file when
// one is present.
func Load() (*Config, error) {
	// A missing .env file is not an error; env vars may be set directly.
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Addr: getEnv("CDRLENS_ADDR", ":8080"),
		},
		Paths: PathConfig{
			OutputDir:    getEnv("CDRLENS_OUTPUT_DIR", "artifacts"),
			DatabasePath: getEnv("CDRLENS_DB_PATH", "cdrlens.db"),
		},
		Geocode: GeocodeConfig{
			Enabled: getEnvBool("CDRLENS_GEOCODE_ENABLED", false),
			BaseURL: getEnv("CDRLENS_GEOCODE_URL", "https://nominatim.openstreetmap.org"),
			Timeout: time.Duration(getEnvInt("CDRLENS_GEOCODE_TIMEOUT_SEC", 10)) * time.Second,
		},
	}

	if err := os.MkdirAll(cfg.Paths.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output dir %s: %w", cfg.Paths.OutputDir, err)
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

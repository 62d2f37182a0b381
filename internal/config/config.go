// Package config provides application configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// DefaultAutoPostInterval is the fixed auto-post period.
const DefaultAutoPostInterval = 40 * time.Minute

// Config holds all application configuration.
type Config struct {
	Port        string
	FrontendURL string
	DBPath      string
	Moltbook    MoltbookConfig
	AutoPost    AutoPostConfig
	Gemini      GeminiConfig
	RateLimit   RateLimitConfig
}

// MoltbookConfig describes the upstream social platform.
type MoltbookConfig struct {
	BaseURL         string
	Timeout         time.Duration // 0 = no client timeout
	CredentialsFile string
}

// AutoPostConfig controls the recurring publisher.
type AutoPostConfig struct {
	Interval    time.Duration
	Categories  []string // empty = every category in the content library
	LibraryPath string   // empty = embedded library
}

// GeminiConfig configures the optional text generation provider.
type GeminiConfig struct {
	APIKey string
	Model  string
}

// RateLimitConfig bounds the manual post and translate endpoints.
type RateLimitConfig struct {
	RPS   float64
	Burst int
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Port:        getEnv("PORT", "3000"),
		FrontendURL: getEnv("FRONTEND_URL", ""),
		DBPath:      getEnv("DB_PATH", "./data/dashboard.db"),
		Moltbook: MoltbookConfig{
			BaseURL:         strings.TrimRight(getEnv("MOLTBOOK_BASE_URL", "https://www.moltbook.com/api/v1"), "/"),
			Timeout:         getEnvDuration("MOLTBOOK_TIMEOUT", 0),
			CredentialsFile: getEnv("MOLTBOOK_CREDENTIALS_FILE", ".agent/skills/moltbook/credentials.json"),
		},
		AutoPost: AutoPostConfig{
			Interval:    getEnvDuration("AUTOPOST_INTERVAL", DefaultAutoPostInterval),
			Categories:  getEnvList("AUTOPOST_CATEGORIES"),
			LibraryPath: getEnv("CONTENT_LIBRARY_PATH", ""),
		},
		Gemini: GeminiConfig{
			APIKey: getEnv("GEMINI_API_KEY", ""),
			Model:  getEnv("GEMINI_MODEL", "gemini-2.0-flash"),
		},
		RateLimit: RateLimitConfig{
			RPS:   getEnvFloat("RATE_LIMIT_RPS", 0.5),
			Burst: getEnvInt("RATE_LIMIT_BURST", 5),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH cannot be empty")
	}
	if c.Moltbook.BaseURL == "" {
		return fmt.Errorf("MOLTBOOK_BASE_URL cannot be empty")
	}
	if c.Moltbook.Timeout < 0 {
		return fmt.Errorf("MOLTBOOK_TIMEOUT must be >= 0")
	}
	// Status reports the interval in whole minutes.
	if c.AutoPost.Interval < time.Minute {
		return fmt.Errorf("AUTOPOST_INTERVAL must be at least 1m")
	}
	if c.RateLimit.RPS <= 0 {
		return fmt.Errorf("RATE_LIMIT_RPS must be > 0")
	}
	if c.RateLimit.Burst <= 0 {
		return fmt.Errorf("RATE_LIMIT_BURST must be > 0")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
}

// GenerationEnabled reports whether a generation provider key is configured.
func (c *Config) GenerationEnabled() bool {
	return c.Gemini.APIKey != ""
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvFloat(key string, fallback float64) float64 {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fallback
	}
	return f
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return d
}

// getEnvList splits a comma separated variable, dropping blanks.
func getEnvList(key string) []string {
	value, ok := os.LookupEnv(key)
	if !ok {
		return nil
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const (
	// DefaultBaseURL is the prediction service API host
	DefaultBaseURL = "https://api.mediapredict.ai/v1"

	// APIKeyEnv names the environment variable holding the API key
	APIKeyEnv = "MEDIA_PREDICT_API_KEY"
)

// ErrMissingAPIKey is returned when no API key is passed or configured
var ErrMissingAPIKey = errors.New("API key is required: pass it explicitly or set " + APIKeyEnv)

// Config holds the configuration for the media prediction client
type Config struct {
	// Required
	APIKey string `yaml:"apiKey"`

	// Optional with defaults
	BaseURL     string        `yaml:"baseUrl"`
	Model       string        `yaml:"model"`
	ResultsRoot string        `yaml:"resultsRoot"`
	HTTPTimeout time.Duration `yaml:"httpTimeout"`
	LogLevel    string        `yaml:"logLevel"`
	LogFormat   string        `yaml:"logFormat"`
	DebugMode   bool          `yaml:"debug"`

	// Trace export is off when empty
	OTLPEndpoint string `yaml:"otlpEndpoint"`
}

// Defaults returns the configuration used when nothing overrides it
func Defaults() *Config {
	return &Config{
		BaseURL:     DefaultBaseURL,
		ResultsRoot: "./media_predict_results",
		HTTPTimeout: 60 * time.Second,
		LogLevel:    "info",
		LogFormat:   "text",
	}
}

// ResolveAPIKey returns explicit when set, otherwise the key from the
// environment. Neither present is ErrMissingAPIKey.
func ResolveAPIKey(explicit string) (string, error) {
	if key := strings.TrimSpace(explicit); key != "" {
		return key, nil
	}
	if key := strings.TrimSpace(os.Getenv(APIKeyEnv)); key != "" {
		return key, nil
	}
	return "", ErrMissingAPIKey
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := Defaults()
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	key, err := ResolveAPIKey(cfg.APIKey)
	if err != nil {
		return nil, err
	}
	cfg.APIKey = key
	return cfg, nil
}

// DefaultConfigPath returns the per-user config file location
func DefaultConfigPath() string {
	if v := strings.TrimSpace(os.Getenv("MEDIA_PREDICT_CONFIG")); v != "" {
		return v
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "media_predict", "config.yaml")
}

func (c *Config) applyEnv() error {
	if v := strings.TrimSpace(os.Getenv(APIKeyEnv)); v != "" {
		c.APIKey = v
	}
	if v := strings.TrimSpace(os.Getenv("MEDIA_PREDICT_BASE_URL")); v != "" {
		c.BaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv("MEDIA_PREDICT_MODEL")); v != "" {
		c.Model = v
	}
	if v := strings.TrimSpace(os.Getenv("MEDIA_PREDICT_RESULTS_ROOT")); v != "" {
		c.ResultsRoot = v
	}
	if v := os.Getenv("MEDIA_PREDICT_HTTP_TIMEOUT_SECONDS"); v != "" {
		val, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid MEDIA_PREDICT_HTTP_TIMEOUT_SECONDS: %w", err)
		}
		c.HTTPTimeout = time.Duration(val) * time.Second
	}
	if v := strings.TrimSpace(os.Getenv("LOG_LEVEL")); v != "" {
		c.LogLevel = v
	}
	if v := strings.TrimSpace(os.Getenv("LOG_FORMAT")); v != "" {
		c.LogFormat = v
	}
	if v := os.Getenv("DEBUG_MODE"); v != "" {
		val, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid DEBUG_MODE: %w", err)
		}
		c.DebugMode = val
	}
	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.APIKey == "" {
		return ErrMissingAPIKey
	}
	if c.BaseURL == "" {
		return fmt.Errorf("base URL is required")
	}
	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("HTTP timeout must be positive")
	}
	return nil
}

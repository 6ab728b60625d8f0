package server

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds the serving configuration. Values load in order of
// precedence: defaults, YAML file, environment variables.
type Config struct {
	Server struct {
		Host string `yaml:"host"`
		Port int    `yaml:"port" validate:"min=1,max=65535"`
	} `yaml:"server"`

	Auth struct {
		// JWTSecret signs access tokens. Must be set in production.
		JWTSecret string        `yaml:"jwt_secret" validate:"required,min=16"`
		TokenTTL  time.Duration `yaml:"token_ttl"`

		// APIKey is the shared service key accepted alongside per-user keys
		APIKey string `yaml:"api_key"`
	} `yaml:"auth"`

	Model struct {
		Path string `yaml:"path" validate:"required"`
	} `yaml:"model"`

	Database struct {
		// Path of the sqlite file. Empty disables persistence; detection
		// still works, requests are just not logged and user accounts are
		// unavailable.
		Path string `yaml:"path"`
	} `yaml:"database"`

	Limits struct {
		// MaxConcurrentExtractions bounds the CPU-bound pipeline stages
		MaxConcurrentExtractions int   `yaml:"max_concurrent_extractions" validate:"min=1"`
		MaxUploadBytes           int64 `yaml:"max_upload_bytes" validate:"min=1024"`
	} `yaml:"limits"`
}

// DefaultConfig returns the development configuration
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.Server.Host = "0.0.0.0"
	cfg.Server.Port = 8000
	cfg.Auth.JWTSecret = "change-me-in-production-please"
	cfg.Auth.TokenTTL = 24 * time.Hour
	cfg.Model.Path = "models/voice_classifier.json"
	cfg.Database.Path = "sonaguard.db"
	cfg.Limits.MaxConcurrentExtractions = 4
	cfg.Limits.MaxUploadBytes = 25 << 20
	return cfg
}

// LoadConfig builds the configuration from defaults, an optional YAML file
// and environment variables. A .env file in the working directory is
// loaded first when present.
func LoadConfig(path string) (*Config, error) {
	// Best effort; absence of .env is normal outside development
	_ = godotenv.Load()

	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnv(cfg)

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("SONAGUARD_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("SONAGUARD_JWT_SECRET"); v != "" {
		cfg.Auth.JWTSecret = v
	}
	if v := os.Getenv("API_KEY"); v != "" {
		cfg.Auth.APIKey = v
	}
	if v := os.Getenv("SONAGUARD_MODEL_PATH"); v != "" {
		cfg.Model.Path = v
	}
	if v := os.Getenv("SONAGUARD_DB_PATH"); v != "" {
		cfg.Database.Path = v
	}
}

package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the server configuration. Values load from an optional YAML
// file and can be overridden per-field with environment variables.
type Config struct {
	Server struct {
		Port            string        `yaml:"port"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`

	Storage struct {
		// Backend selects the timer store: "bolt" (single-file, default)
		// or "postgres" (shared across nodes).
		Backend     string `yaml:"backend"`
		BoltPath    string `yaml:"bolt_path"`
		PostgresDSN string `yaml:"postgres_dsn"`
	} `yaml:"storage"`

	NATS struct {
		// URL enables the cross-node room event bridge when set.
		URL string `yaml:"url"`
	} `yaml:"nats"`
}

func defaultConfig() *Config {
	var config Config
	config.Server.Port = "8080"
	config.Server.ShutdownTimeout = 10 * time.Second
	config.Storage.Backend = "bolt"
	config.Storage.BoltPath = "party.db"
	return &config
}

func loadConfig(path string) (*Config, error) {
	config := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	config.Server.Port = getEnv("PORT", config.Server.Port)
	config.Storage.Backend = getEnv("STORAGE_BACKEND", config.Storage.Backend)
	config.Storage.BoltPath = getEnv("BOLT_PATH", config.Storage.BoltPath)
	config.Storage.PostgresDSN = getEnv("DATABASE_URL", config.Storage.PostgresDSN)
	config.NATS.URL = getEnv("NATS_URL", config.NATS.URL)

	switch config.Storage.Backend {
	case "bolt", "postgres":
	default:
		return nil, fmt.Errorf("unknown storage backend %q", config.Storage.Backend)
	}
	if config.Storage.Backend == "postgres" && config.Storage.PostgresDSN == "" {
		return nil, fmt.Errorf("postgres backend requires a DSN (DATABASE_URL)")
	}

	return config, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

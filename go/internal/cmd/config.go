package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// ServiceConfig is the service-level configuration. The engine's own knobs
// come from the environment (see engine.ConfigFromEnv); this covers the
// process surface: listen address, NATS, HTTP client tuning.
type ServiceConfig struct {
	Server struct {
		Addr string `yaml:"addr"`
	} `yaml:"server"`

	NATS struct {
		Enabled       bool   `yaml:"enabled"`
		URL           string `yaml:"url"`
		SubjectPrefix string `yaml:"subject_prefix"`
	} `yaml:"nats"`

	HTTP struct {
		TimeoutMS     int `yaml:"timeout_ms"`
		RetryAttempts int `yaml:"retry_attempts"`
		RetryBaseMS   int `yaml:"retry_base_ms"`
	} `yaml:"http"`

	Ozon struct {
		BaseURL string `yaml:"base_url"`
	} `yaml:"ozon"`
}

// loadServiceConfig reads the optional yaml file named by SUPPLYBOT_CONFIG
// and applies environment overrides on top. Missing file means defaults.
func loadServiceConfig() (*ServiceConfig, error) {
	cfg := &ServiceConfig{}
	cfg.Server.Addr = ":8080"
	cfg.NATS.URL = "nats://localhost:4222"
	cfg.NATS.SubjectPrefix = "supply.events"
	cfg.HTTP.TimeoutMS = 10000
	cfg.HTTP.RetryAttempts = 3
	cfg.HTTP.RetryBaseMS = 200

	if path := os.Getenv("SUPPLYBOT_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	cfg.Server.Addr = getEnv("LISTEN_ADDR", cfg.Server.Addr)
	cfg.NATS.URL = getEnv("NATS_URL", cfg.NATS.URL)
	if v := os.Getenv("NATS_ENABLED"); v != "" {
		cfg.NATS.Enabled = v == "true" || v == "1"
	}
	cfg.HTTP.TimeoutMS = getEnvAsInt("HTTP_TIMEOUT_MS", cfg.HTTP.TimeoutMS)
	cfg.HTTP.RetryAttempts = getEnvAsInt("HTTP_RETRY_ATTEMPTS", cfg.HTTP.RetryAttempts)
	cfg.HTTP.RetryBaseMS = getEnvAsInt("HTTP_RETRY_BASE_MS", cfg.HTTP.RetryBaseMS)
	cfg.Ozon.BaseURL = getEnv("OZON_BASE_URL", cfg.Ozon.BaseURL)

	return cfg, nil
}

// HTTPTimeout returns the per-request client timeout.
func (c *ServiceConfig) HTTPTimeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutMS) * time.Millisecond
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

// Package config provides application configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config holds all server configuration.
type Config struct {
	Port        string
	DBPath      string
	FrontendURL string

	// OpenAI settings for the relay's conversation client.
	OpenAIAPIKey  string
	OpenAIBaseURL string
	OpenAIModel   string

	// SendBaseURL is the upstream participant send webhook base, e.g.
	// https://host/ai/api/participant. Replies are POSTed to
	// {SendBaseURL}/{id}/send.
	SendBaseURL string

	// QueueURL switches the ingest endpoint to asynchronous dispatch:
	// when set, inbound messages are placed on SQS instead of being
	// relayed inline.
	QueueURL  string
	AWSRegion string
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Port:          getEnv("PORT", "8080"),
		DBPath:        getEnv("DB_PATH", "./data/bcfg.db"),
		FrontendURL:   getEnv("FRONTEND_URL", ""),
		OpenAIAPIKey:  getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL: getEnv("OPENAI_BASE_URL", ""),
		OpenAIModel:   getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		SendBaseURL:   getEnv("BCFG_SEND_BASE_URL", ""),
		QueueURL:      getEnv("SQS_QUEUE_URL", ""),
		AWSRegion:     getEnv("AWS_REGION", "us-east-1"),
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
	if c.OpenAIAPIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY cannot be empty")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
}

// QueueEnabled reports whether ingest should dispatch through SQS.
func (c *Config) QueueEnabled() bool {
	return c.QueueURL != ""
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

// GetEnvInt reads an integer environment variable with a fallback.
// Exported for the worker entrypoint, which configures itself directly
// from the Lambda environment.
func GetEnvInt(key string, fallback int) int {
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

package config

import (
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "test-key")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Port != "8080" {
		t.Errorf("Expected default port 8080, got %s", cfg.Port)
	}
	if cfg.DBPath != "./data/bcfg.db" {
		t.Errorf("Expected default db path, got %s", cfg.DBPath)
	}
	if cfg.OpenAIModel != "gpt-4o-mini" {
		t.Errorf("Expected default model, got %s", cfg.OpenAIModel)
	}
	if cfg.QueueEnabled() {
		t.Error("Expected queue to be disabled by default")
	}
}

func TestLoadRequiresAPIKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")

	if _, err := Load(); err == nil {
		t.Error("Expected error when OPENAI_API_KEY is empty")
	}
}

func TestQueueEnabled(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "test-key")
	t.Setenv("SQS_QUEUE_URL", "https://sqs.example/queue")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !cfg.QueueEnabled() {
		t.Error("Expected queue to be enabled")
	}
}

func TestIsDevelopment(t *testing.T) {
	cases := []struct {
		frontendURL string
		want        bool
	}{
		{"", true},
		{"http://localhost:3000", true},
		{"http://127.0.0.1:3000", true},
		{"https://chat.example.org", false},
	}

	for _, tc := range cases {
		cfg := &Config{FrontendURL: tc.frontendURL}
		if got := cfg.IsDevelopment(); got != tc.want {
			t.Errorf("IsDevelopment(%q) = %v, want %v", tc.frontendURL, got, tc.want)
		}
	}
}

func TestGetEnvInt(t *testing.T) {
	t.Setenv("TEST_INT", "42")
	if got := GetEnvInt("TEST_INT", 7); got != 42 {
		t.Errorf("Expected 42, got %d", got)
	}

	t.Setenv("TEST_INT", "not a number")
	if got := GetEnvInt("TEST_INT", 7); got != 7 {
		t.Errorf("Expected fallback 7, got %d", got)
	}

	if got := GetEnvInt("TEST_INT_MISSING", 7); got != 7 {
		t.Errorf("Expected fallback 7 for unset key, got %d", got)
	}
}

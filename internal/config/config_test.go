package config

import (
	"os"
	"testing"
	"time"
)

func TestNewFromEnv(t *testing.T) {
	// Helper function to set environment variables for a test
	setEnv := func(key, value string) {
		t.Helper()
		t.Setenv(key, value)
	}

	t.Run("Success", func(t *testing.T) {
		setEnv("GEMINI_API_KEY", "gemini_key")
		setEnv("TELEGRAM_ALLOWED_USER_IDS", "12, 34")

		cfg, err := NewFromEnv()
		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		if cfg.GeminiAPIKey != "gemini_key" {
			t.Errorf("Expected GeminiAPIKey to be 'gemini_key', got '%s'", cfg.GeminiAPIKey)
		}
		if cfg.ModelTokenLimit != 8192 {
			t.Errorf("Expected default ModelTokenLimit 8192, got %d", cfg.ModelTokenLimit)
		}
		if cfg.MinCallInterval != 2*time.Second {
			t.Errorf("Expected default MinCallInterval 2s, got %s", cfg.MinCallInterval)
		}
		if cfg.DayAttemptPolicy != "graduated" {
			t.Errorf("Expected default policy 'graduated', got '%s'", cfg.DayAttemptPolicy)
		}
		if cfg.SimilarityUnique != 0.3 || cfg.SimilarityReject != 0.5 {
			t.Errorf("Unexpected similarity thresholds %.2f/%.2f", cfg.SimilarityUnique, cfg.SimilarityReject)
		}
		if len(cfg.TelegramAllowedUserIDs) != 2 || cfg.TelegramAllowedUserIDs[1] != 34 {
			t.Errorf("Expected allowed IDs [12 34], got %v", cfg.TelegramAllowedUserIDs)
		}
		if cfg.GhostEnabled() {
			t.Error("Expected Ghost publishing to be disabled without GHOST_API_URL")
		}
	})

	t.Run("ProxyWithoutGeminiKey", func(t *testing.T) {
		os.Unsetenv("GEMINI_API_KEY")
		setEnv("GENERATION_PROXY_URL", "http://proxy.test/generate")

		cfg, err := NewFromEnv()
		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		if cfg.GenerationProxyURL != "http://proxy.test/generate" {
			t.Errorf("Unexpected proxy URL '%s'", cfg.GenerationProxyURL)
		}
	})

	t.Run("MissingGeminiAPIKey", func(t *testing.T) {
		os.Unsetenv("GEMINI_API_KEY")
		os.Unsetenv("GENERATION_PROXY_URL")

		_, err := NewFromEnv()
		if err == nil {
			t.Fatal("Expected an error for missing GEMINI_API_KEY, got nil")
		}
		expectedError := "GEMINI_API_KEY environment variable not set"
		if err.Error() != expectedError {
			t.Errorf("Expected error '%s', got '%s'", expectedError, err.Error())
		}
	})

	t.Run("InvalidPolicy", func(t *testing.T) {
		setEnv("GEMINI_API_KEY", "gemini_key")
		setEnv("DAY_ATTEMPT_POLICY", "aggressive")

		if _, err := NewFromEnv(); err == nil {
			t.Fatal("Expected an error for unknown DAY_ATTEMPT_POLICY, got nil")
		}
	})

	t.Run("InvertedThresholds", func(t *testing.T) {
		setEnv("GEMINI_API_KEY", "gemini_key")
		setEnv("SIMILARITY_UNIQUE", "0.6")
		setEnv("SIMILARITY_REJECT", "0.4")

		if _, err := NewFromEnv(); err == nil {
			t.Fatal("Expected an error when unique threshold exceeds reject threshold, got nil")
		}
	})
}

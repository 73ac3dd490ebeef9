package config

import (
	"os"
	"testing"
)

func TestNewFromEnv(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		t.Setenv("GEMINI_API_KEY", "gemini_key")

		cfg, err := NewFromEnv()
		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		if cfg.GeminiAPIKey != "gemini_key" {
			t.Errorf("Expected GeminiAPIKey to be 'gemini_key', got '%s'", cfg.GeminiAPIKey)
		}
		if cfg.GeminiModel != "gemini-2.0-flash" {
			t.Errorf("Expected default model, got '%s'", cfg.GeminiModel)
		}
		if cfg.PlanWindowCapacity != 7 {
			t.Errorf("Expected default capacity 7, got %d", cfg.PlanWindowCapacity)
		}
		if cfg.GeneratorBatchDays != 3 {
			t.Errorf("Expected default batch size 3, got %d", cfg.GeneratorBatchDays)
		}
		if cfg.Port != "8080" {
			t.Errorf("Expected default port 8080, got '%s'", cfg.Port)
		}
	})

	t.Run("MissingGeminiAPIKey", func(t *testing.T) {
		os.Unsetenv("GEMINI_API_KEY")

		_, err := NewFromEnv()
		if err == nil {
			t.Fatal("Expected an error for missing GEMINI_API_KEY, got nil")
		}
		expectedError := "GEMINI_API_KEY environment variable not set"
		if err.Error() != expectedError {
			t.Errorf("Expected error '%s', got '%s'", expectedError, err.Error())
		}
	})

	t.Run("Overrides", func(t *testing.T) {
		t.Setenv("GEMINI_API_KEY", "gemini_key")
		t.Setenv("PLAN_WINDOW_CAPACITY", "14")
		t.Setenv("GENERATOR_BATCH_DAYS", "4")
		t.Setenv("GEMINI_MODEL", "gemini-2.5-pro")

		cfg, err := NewFromEnv()
		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		if cfg.PlanWindowCapacity != 14 {
			t.Errorf("Expected capacity 14, got %d", cfg.PlanWindowCapacity)
		}
		if cfg.GeneratorBatchDays != 4 {
			t.Errorf("Expected batch size 4, got %d", cfg.GeneratorBatchDays)
		}
		if cfg.GeminiModel != "gemini-2.5-pro" {
			t.Errorf("Expected model override, got '%s'", cfg.GeminiModel)
		}
	})

	t.Run("InvalidCapacity", func(t *testing.T) {
		t.Setenv("GEMINI_API_KEY", "gemini_key")
		t.Setenv("PLAN_WINDOW_CAPACITY", "zero")

		if _, err := NewFromEnv(); err == nil {
			t.Fatal("Expected an error for non-numeric capacity, got nil")
		}
	})

	t.Run("TelegramAllowedUserIDs", func(t *testing.T) {
		t.Setenv("GEMINI_API_KEY", "gemini_key")
		t.Setenv("TELEGRAM_ALLOWED_USER_IDS", "123, 456")

		cfg, err := NewFromEnv()
		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		if len(cfg.TelegramAllowedUserIDs) != 2 || cfg.TelegramAllowedUserIDs[0] != 123 || cfg.TelegramAllowedUserIDs[1] != 456 {
			t.Errorf("Expected [123 456], got %v", cfg.TelegramAllowedUserIDs)
		}
	})
}

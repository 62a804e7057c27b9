package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the configuration for the application.
type Config struct {
	GeminiAPIKey       string
	GeminiModel        string
	GenerationProxyURL string

	// Generation tuning
	ModelTokenLimit  int
	MinCallInterval  time.Duration
	DayAttemptPolicy string
	BatchSize        int
	SimilarityUnique float64
	SimilarityReject float64

	DatabasePath string
	LogMode      string

	// Ghost Config (optional, enables plan publishing)
	GhostURL      string
	GhostAdminKey string

	// Telegram Config
	TelegramBotToken       string
	TelegramWebhookURL     string
	TelegramAllowedUserIDs []int64
	AdminTelegramID        int64
}

// NewFromEnv creates a new Config object from environment variables.
// A .env file in the working directory is loaded first when present.
func NewFromEnv() (*Config, error) {
	_ = godotenv.Load()

	proxyURL := os.Getenv("GENERATION_PROXY_URL")
	geminiAPIKey := os.Getenv("GEMINI_API_KEY")
	if geminiAPIKey == "" && proxyURL == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY environment variable not set")
	}

	tokenLimit, err := getInt("MODEL_TOKEN_LIMIT", 8192)
	if err != nil {
		return nil, err
	}
	batchSize, err := getInt("BATCH_SIZE", 1)
	if err != nil {
		return nil, err
	}
	if batchSize < 1 {
		return nil, fmt.Errorf("BATCH_SIZE must be at least 1, got %d", batchSize)
	}

	interval, err := time.ParseDuration(getEnv("MIN_CALL_INTERVAL", "2s"))
	if err != nil {
		return nil, fmt.Errorf("invalid MIN_CALL_INTERVAL: %w", err)
	}

	policy := strings.ToLower(getEnv("DAY_ATTEMPT_POLICY", "graduated"))
	if policy != "single" && policy != "graduated" {
		return nil, fmt.Errorf("DAY_ATTEMPT_POLICY must be 'single' or 'graduated', got '%s'", policy)
	}

	unique, err := getFloat("SIMILARITY_UNIQUE", 0.3)
	if err != nil {
		return nil, err
	}
	reject, err := getFloat("SIMILARITY_REJECT", 0.5)
	if err != nil {
		return nil, err
	}
	if unique > reject {
		return nil, fmt.Errorf("SIMILARITY_UNIQUE (%.2f) must not exceed SIMILARITY_REJECT (%.2f)", unique, reject)
	}

	allowed, err := parseIDList(os.Getenv("TELEGRAM_ALLOWED_USER_IDS"))
	if err != nil {
		return nil, fmt.Errorf("invalid TELEGRAM_ALLOWED_USER_IDS: %w", err)
	}
	var adminID int64
	if v := os.Getenv("ADMIN_TELEGRAM_ID"); v != "" {
		adminID, err = strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid ADMIN_TELEGRAM_ID: %w", err)
		}
	}

	return &Config{
		GeminiAPIKey:           geminiAPIKey,
		GeminiModel:            getEnv("GEMINI_MODEL", "gemini-1.5-flash"),
		GenerationProxyURL:     proxyURL,
		ModelTokenLimit:        tokenLimit,
		MinCallInterval:        interval,
		DayAttemptPolicy:       policy,
		BatchSize:              batchSize,
		SimilarityUnique:       unique,
		SimilarityReject:       reject,
		DatabasePath:           getEnv("DATABASE_PATH", "data/planner.db"),
		LogMode:                getEnv("LOG_MODE", "development"),
		GhostURL:               os.Getenv("GHOST_API_URL"),
		GhostAdminKey:          os.Getenv("GHOST_ADMIN_API_KEY"),
		TelegramBotToken:       os.Getenv("TELEGRAM_BOT_TOKEN"),
		TelegramWebhookURL:     os.Getenv("TELEGRAM_WEBHOOK_URL"),
		TelegramAllowedUserIDs: allowed,
		AdminTelegramID:        adminID,
	}, nil
}

// GhostEnabled reports whether plan publishing is configured.
func (c *Config) GhostEnabled() bool {
	return c.GhostURL != "" && c.GhostAdminKey != ""
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getFloat(key string, defaultValue float64) (float64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return f, nil
}

func parseIDList(raw string) ([]int64, error) {
	var ids []int64
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

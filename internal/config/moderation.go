package config

import (
	"os"
	"strconv"
	"time"
)

// ModerationConfig holds the classifier and assistant settings.
// Environment variables:
// - OPENAI_API_KEY: API key; moderation and the assistant are disabled
//   without it (every entity is approved, summary endpoints return 503)
// - OPENAI_BASE_URL: optional custom endpoint
// - MODERATION_MODEL: classifier model (default gpt-4o-mini)
// - ASSISTANT_MODEL: summary/suggestion model (default gpt-4o-mini)
// - MODERATION_TIMEOUT_SECONDS: per-classification deadline (default 10)
// - MODERATION_FAIL_CLOSED: "true" flags content when the classifier fails
//   instead of the fail-open default
type ModerationConfig struct {
	APIKey          string
	BaseURL         string
	ClassifierModel string
	AssistantModel  string
	Timeout         time.Duration
	FailClosed      bool
}

// LoadModerationConfig reads the moderation settings from the environment
func LoadModerationConfig() ModerationConfig {
	timeout := 10 * time.Second
	if raw := os.Getenv("MODERATION_TIMEOUT_SECONDS"); raw != "" {
		if secs, err := strconv.Atoi(raw); err == nil && secs > 0 {
			timeout = time.Duration(secs) * time.Second
		}
	}

	failClosed, _ := strconv.ParseBool(os.Getenv("MODERATION_FAIL_CLOSED"))

	return ModerationConfig{
		APIKey:          os.Getenv("OPENAI_API_KEY"),
		BaseURL:         os.Getenv("OPENAI_BASE_URL"),
		ClassifierModel: getEnvOrDefault("MODERATION_MODEL", "gpt-4o-mini"),
		AssistantModel:  getEnvOrDefault("ASSISTANT_MODEL", "gpt-4o-mini"),
		Timeout:         timeout,
		FailClosed:      failClosed,
	}
}

// Enabled reports whether an API key is configured
func (c ModerationConfig) Enabled() bool {
	return c.APIKey != ""
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

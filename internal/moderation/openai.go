package moderation

import (
	"context"
	"fmt"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"go.uber.org/zap"

	"github.com/classpulse/classpulse/backend/internal/logger"
)

const classifierInstruction = `You are a content-safety classifier for a classroom discussion board.
Inspect the submitted text for hate speech, profanity, spam, and personal attacks.
Answer with exactly one word and nothing else:
SAFE if the text is acceptable classroom content,
REVIEW if the text is borderline and a moderator should look at it,
BLOCK if the text clearly violates classroom safety rules.`

// Config holds the OpenAI classifier configuration
type Config struct {
	APIKey  string        // Required: API key for the provider
	BaseURL string        // Optional: custom API endpoint
	Model   string        // Model name (default "gpt-4o-mini")
	Timeout time.Duration // Per-call deadline (default 10s)
}

// OpenAIClassifier implements Classifier over the OpenAI chat API
type OpenAIClassifier struct {
	client  openai.Client
	model   string
	timeout time.Duration
}

// NewOpenAIClassifier creates a classifier backed by the OpenAI API
func NewOpenAIClassifier(cfg Config) (*OpenAIClassifier, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API key is required")
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	model := cfg.Model
	if model == "" {
		model = "gpt-4o-mini"
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	return &OpenAIClassifier{
		client:  openai.NewClient(opts...),
		model:   model,
		timeout: timeout,
	}, nil
}

// Classify submits text and parses the single-word verdict.
// One attempt, no retries; a slow call only delays that entity.
func (c *OpenAIClassifier) Classify(ctx context.Context, text string, contentType ContentType) (Verdict, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: c.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(classifierInstruction),
			openai.UserMessage(fmt.Sprintf("Content type: %s\n\n%s", contentType, text)),
		},
		MaxCompletionTokens: openai.Int(8),
		Temperature:         openai.Float(0),
	})
	if err != nil {
		return "", fmt.Errorf("openai classify: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai classify: no choices in response")
	}

	logger.DebugWithFields("content classified",
		zap.String("model", c.model),
		zap.String("content_type", string(contentType)),
		zap.Int64("duration_ms", time.Since(start).Milliseconds()),
	)

	return Verdict(resp.Choices[0].Message.Content), nil
}

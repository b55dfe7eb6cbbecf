// Package assistant generates teacher-facing summaries and engagement
// suggestions for discussion threads using the OpenAI chat API.
package assistant

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"go.uber.org/zap"

	"github.com/classpulse/classpulse/backend/internal/logger"
	"github.com/classpulse/classpulse/backend/internal/models"
)

const summaryInstruction = `You are a teaching assistant for a classroom discussion board.
Summarize the discussion thread below for the teacher in at most three sentences.
Focus on the main points students raised and any unresolved questions.`

const suggestionInstruction = `You are a teaching assistant for a classroom discussion board.
The discussion below has gone quiet. Suggest, in at most three short bullet points,
concrete follow-up prompts the teacher could post to re-engage students.`

// Generator produces summaries and suggestions for discussion threads
type Generator interface {
	Summarize(ctx context.Context, discussion *models.Discussion) (string, error)
	SuggestActions(ctx context.Context, discussion *models.Discussion) ([]string, error)
}

// Config holds the assistant configuration
type Config struct {
	APIKey  string        // Required: API key for the provider
	BaseURL string        // Optional: custom API endpoint
	Model   string        // Model name (default "gpt-4o-mini")
	Timeout time.Duration // Per-call deadline (default 30s)
}

// OpenAIGenerator implements Generator over the OpenAI chat API
type OpenAIGenerator struct {
	client  openai.Client
	model   string
	timeout time.Duration
}

// NewOpenAIGenerator creates a generator backed by the OpenAI API
func NewOpenAIGenerator(cfg Config) (*OpenAIGenerator, error) {
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
		timeout = 30 * time.Second
	}

	return &OpenAIGenerator{
		client:  openai.NewClient(opts...),
		model:   model,
		timeout: timeout,
	}, nil
}

// Summarize produces a short teacher-facing summary of the thread
func (g *OpenAIGenerator) Summarize(ctx context.Context, discussion *models.Discussion) (string, error) {
	return g.generate(ctx, summaryInstruction, discussion)
}

// SuggestActions produces re-engagement prompts for a quiet thread
func (g *OpenAIGenerator) SuggestActions(ctx context.Context, discussion *models.Discussion) ([]string, error) {
	raw, err := g.generate(ctx, suggestionInstruction, discussion)
	if err != nil {
		return nil, err
	}
	return SplitSuggestions(raw), nil
}

// SplitSuggestions turns the model's bullet list into individual prompts
func SplitSuggestions(raw string) []string {
	var out []string
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimLeft(line, "-*• \t")
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}

func (g *OpenAIGenerator) generate(ctx context.Context, instruction string, discussion *models.Discussion) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	start := time.Now()
	resp, err := g.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: g.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(instruction),
			openai.UserMessage(RenderThread(discussion)),
		},
		MaxCompletionTokens: openai.Int(512),
		Temperature:         openai.Float(0.4),
	})
	if err != nil {
		return "", fmt.Errorf("openai generate: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai generate: no choices in response")
	}

	logger.DebugWithFields("assistant output generated",
		zap.String("model", g.model),
		zap.String("discussion_id", discussion.ID),
		zap.Int64("duration_ms", time.Since(start).Milliseconds()),
	)

	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// RenderThread flattens a resolved discussion tree into plain text for the
// model prompt. Replies must already be resolved onto the discussion.
func RenderThread(discussion *models.Discussion) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Discussion: %s\n", discussion.Title)
	if discussion.Prompt != "" {
		fmt.Fprintf(&b, "Prompt: %s\n", discussion.Prompt)
	}
	for _, reply := range discussion.Replies {
		renderReply(&b, reply, 1)
	}
	return b.String()
}

func renderReply(b *strings.Builder, reply *models.Reply, depth int) {
	indent := strings.Repeat("  ", depth)
	fmt.Fprintf(b, "%s- %s (%s): %s\n", indent, reply.Author.Name, reply.Author.Role, reply.Content)
	for _, child := range reply.Replies {
		renderReply(b, child, depth+1)
	}
}

package feedback

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"github.com/tmc/langchaingo/schema"
	"golang.org/x/time/rate"

	"github.com/hperssn/focusflow/internal/config"
	"github.com/hperssn/focusflow/internal/domain"
)

const (
	coachInstruction = "You are a helpful study coach. Give short, encouraging messages (max 50 words) to help students stay focused."

	llmRateLimit = 2 // requests per second
	llmBurst     = 5
)

var ErrNotConfigured = errors.New("integration not configured")

// LLMMessages generates coach messages through an OpenAI-compatible chat API
// (OpenRouter by default).
type LLMMessages struct {
	llm       llms.Model
	maxTokens int
	limiter   *rate.Limiter
}

// NewLLMMessages returns ErrNotConfigured when no API key is set.
func NewLLMMessages(cfg config.LLMConfig) (*LLMMessages, error) {
	if !cfg.APIKey.IsSet() {
		return nil, ErrNotConfigured
	}

	opts := []openai.Option{
		openai.WithBaseURL(cfg.BaseURL),
		openai.WithModel(cfg.Model),
		openai.WithToken(cfg.APIKey.Value()),
		openai.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}),
	}

	llm, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create llm client: %w", err)
	}

	return &LLMMessages{
		llm:       llm,
		maxTokens: cfg.MaxTokens,
		limiter:   rate.NewLimiter(rate.Limit(llmRateLimit), llmBurst),
	}, nil
}

func (g *LLMMessages) Generate(ctx context.Context, score float64, label domain.Label) (string, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limiter error: %w", err)
	}

	content := []llms.MessageContent{
		llms.TextParts(schema.ChatMessageTypeSystem, coachInstruction),
		llms.TextParts(schema.ChatMessageTypeHuman, coachPrompt(score, label)),
	}

	resp, err := g.llm.GenerateContent(ctx, content, llms.WithMaxTokens(g.maxTokens))
	if err != nil {
		return "", fmt.Errorf("llm request failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("llm returned no choices")
	}

	return strings.TrimSpace(resp.Choices[0].Content), nil
}

func coachPrompt(score float64, label domain.Label) string {
	return fmt.Sprintf(
		"The student's current focus score is %.0f/100 (%s). Generate a motivating message to help them stay focused.",
		score, label,
	)
}

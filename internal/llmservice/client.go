package llmservice

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
	"github.com/tmc/langchaingo/schema"

	"docrag/internal/config"
	"docrag/internal/models"
)

const retryBackoff = time.Second

// Generator is the single capability the pipeline needs from a language
// model. langchaingo providers satisfy it.
type Generator interface {
	GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error)
}

// NewClient builds the configured generation provider.
func NewClient(llmConfig *config.LLMConfig) (Generator, error) {
	switch llmConfig.Provider {
	case "ollama":
		return ollama.New(
			ollama.WithServerURL(llmConfig.BaseURL),
			ollama.WithModel(llmConfig.Model),
		)
	case "openai":
		return openai.New(
			openai.WithBaseURL(llmConfig.BaseURL),
			openai.WithToken(strings.TrimPrefix(llmConfig.Key, "Bearer ")),
			openai.WithModel(llmConfig.Model),
		)
	default:
		return nil, fmt.Errorf("unknown llm provider: %s", llmConfig.Provider)
	}
}

// Generate sends one prompt and returns the completion text. One retry with
// backoff, then the failure is surfaced as LLMUnavailable or Timeout.
func Generate(ctx context.Context, llm Generator, prompt string, timeout time.Duration) (string, error) {
	messages := []llms.MessageContent{
		{
			Role:  schema.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{llms.TextContent{Text: prompt}},
		},
	}

	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return "", fmt.Errorf("%w: %v", models.ErrLLMUnavailable, ctx.Err())
			case <-time.After(retryBackoff):
			}
			log.Warn().Err(lastErr).Msg("Retrying llm call")
		}

		callCtx, cancel := context.WithTimeout(ctx, timeout)
		res, err := llm.GenerateContent(callCtx, messages)
		cancel()
		if err == nil {
			if len(res.Choices) == 0 {
				lastErr = errors.New("no choices in response")
				continue
			}
			return res.Choices[0].Content, nil
		}
		lastErr = err
	}

	if errors.Is(lastErr, context.DeadlineExceeded) {
		return "", fmt.Errorf("%w: llm call: %v", models.ErrTimeout, lastErr)
	}
	return "", fmt.Errorf("%w: %v", models.ErrLLMUnavailable, lastErr)
}

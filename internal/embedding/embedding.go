package embedding

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"docrag/internal/config"
	"docrag/internal/models"
)

const retryBackoff = time.Second

// Embedder converts text into a vector. Satisfied by langchaingo's
// EmbedderImpl and by test fakes.
type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// NewEmbedder builds the configured embedding provider. Ingestion and query
// embedding must share one Embedder so similarity scores stay comparable.
func NewEmbedder(llmConfig *config.LLMConfig) (*embeddings.EmbedderImpl, error) {
	llm, err := newEmbedderClient(llmConfig)
	if err != nil {
		return nil, err
	}
	return embeddings.NewEmbedder(llm)
}

func newEmbedderClient(llmConfig *config.LLMConfig) (embeddings.EmbedderClient, error) {
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
			openai.WithEmbeddingModel(llmConfig.Model),
		)
	default:
		return nil, fmt.Errorf("unknown embedding provider: %s", llmConfig.Provider)
	}
}

// EmbedChunks embeds every chunk of one document.
func EmbedChunks(ctx context.Context, embedder Embedder, chunks []models.Chunk, timeout time.Duration) ([]models.ChunkEmbedding, error) {
	if len(chunks) == 0 {
		log.Info().Msg("No chunks to embed")
		return nil, nil
	}

	chunkEmbeddings := make([]models.ChunkEmbedding, 0, len(chunks))
	for _, chunk := range chunks {
		vector, err := EmbedText(ctx, embedder, chunk.Content, timeout)
		if err != nil {
			return nil, err
		}
		chunkEmbeddings = append(chunkEmbeddings, models.ChunkEmbedding{
			Chunk:     chunk,
			Embedding: vector,
		})
	}
	return chunkEmbeddings, nil
}

// EmbedText embeds one text with a per-call timeout and a single retry.
func EmbedText(ctx context.Context, embedder Embedder, text string, timeout time.Duration) ([]float32, error) {
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("%w: %v", models.ErrEmbeddingUnavailable, ctx.Err())
			case <-time.After(retryBackoff):
			}
			log.Warn().Err(lastErr).Msg("Retrying embedding call")
		}

		callCtx, cancel := context.WithTimeout(ctx, timeout)
		vector, err := embedder.EmbedQuery(callCtx, text)
		cancel()
		if err == nil {
			return vector, nil
		}
		lastErr = err
	}

	if errors.Is(lastErr, context.DeadlineExceeded) {
		return nil, fmt.Errorf("%w: embedding call: %v", models.ErrTimeout, lastErr)
	}
	return nil, fmt.Errorf("%w: %v", models.ErrEmbeddingUnavailable, lastErr)
}

package retriever

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"docrag/internal/embedding"
	"docrag/internal/models"
	"docrag/internal/store"
)

// Retriever embeds a question and fetches the most similar chunks.
// It holds the same Embedder instance ingestion used, so query vectors and
// stored vectors come from one model.
type Retriever struct {
	store    store.Store
	embedder embedding.Embedder
	timeout  time.Duration
}

func New(st store.Store, embedder embedding.Embedder, timeout time.Duration) *Retriever {
	return &Retriever{store: st, embedder: embedder, timeout: timeout}
}

// Retrieve returns up to k chunks ranked by descending similarity. A k larger
// than the index returns everything available.
func (r *Retriever) Retrieve(ctx context.Context, question string, k int) ([]models.RetrievedChunk, error) {
	if k <= 0 {
		return nil, fmt.Errorf("%w: k must be positive, got %d", models.ErrInvalidQuery, k)
	}

	vector, err := embedding.EmbedText(ctx, r.embedder, question, r.timeout)
	if err != nil {
		return nil, err
	}

	chunks, err := r.store.Query(ctx, vector, k)
	if err != nil {
		return nil, err
	}
	log.Debug().Int("k", k).Int("retrieved", len(chunks)).Msg("Retrieved chunks")
	return chunks, nil
}

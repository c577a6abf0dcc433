package store

import (
	"context"
	"fmt"

	"docrag/internal/config"
	"docrag/internal/models"
	"docrag/internal/store/chromem"
	"docrag/internal/store/pgvector"
)

// Store is the embedding index. Upsert is append-friendly: writing a new
// chunk ID never removes existing entries, and re-writing a known ID replaces
// that entry only. Query on an empty index returns an empty result.
type Store interface {
	Upsert(ctx context.Context, chunks []models.ChunkEmbedding) error
	Query(ctx context.Context, vector []float32, k int) ([]models.RetrievedChunk, error)
	Count(ctx context.Context) (int, error)
	Close() error
}

// New opens the configured backend.
func New(cfg *config.StoreConfig) (Store, error) {
	switch cfg.Type {
	case "chromem":
		return chromem.New(cfg)
	case "pgvector":
		return pgvector.New(cfg)
	default:
		return nil, fmt.Errorf("unknown store type: %s", cfg.Type)
	}
}

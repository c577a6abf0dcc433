package chromem

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"

	"github.com/philippgille/chromem-go"
	"github.com/rs/zerolog/log"

	"docrag/internal/config"
	"docrag/internal/models"
)

const compress = false

// Store is a chromem-go backed embedding index, persisted under the
// configured path unless in_memory is set. An in-memory store with an
// encryption key restores from an encrypted snapshot on open and writes one
// back on Close.
type Store struct {
	db            *chromem.DB
	collection    *chromem.Collection
	inMemory      bool
	encryptionKey string
	filePath      string
}

func New(cfg *config.StoreConfig) (*Store, error) {
	var db *chromem.DB
	var err error
	if cfg.InMemory {
		db = chromem.NewDB()
	} else {
		db, err = chromem.NewPersistentDB(cfg.Path, compress)
		if err != nil {
			return nil, fmt.Errorf("failed to create database: %v", err)
		}
	}

	s := &Store{
		db:            db,
		inMemory:      cfg.InMemory,
		encryptionKey: cfg.EncryptionKey,
		filePath:      filepath.Join(cfg.Path, cfg.Collection+".chromem"),
	}

	if cfg.InMemory && cfg.EncryptionKey != "" {
		if cfg.Path == "" {
			return nil, fmt.Errorf("store path is required for encrypted snapshots")
		}
		if _, err := os.Stat(s.filePath); err == nil {
			if err := s.db.ImportFromFile(s.filePath, s.encryptionKey, cfg.Collection); err != nil {
				return nil, fmt.Errorf("failed to import database: %v", err)
			}
			log.Info().Str("file", s.filePath).Msg("Restored collection from snapshot")
		}
	}

	// nil embedding func: all documents and queries carry their own vectors
	s.collection, err = db.GetOrCreateCollection(cfg.Collection, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create/get collection: %v", err)
	}
	return s, nil
}

func (s *Store) Upsert(ctx context.Context, chunks []models.ChunkEmbedding) error {
	if len(chunks) == 0 {
		return nil
	}
	docs := make([]chromem.Document, 0, len(chunks))
	for _, ce := range chunks {
		docs = append(docs, chromem.Document{
			ID:        ce.ChunkID,
			Content:   ce.Content,
			Metadata:  metadata(ce.Chunk),
			Embedding: ce.Embedding,
		})
	}
	if err := s.collection.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return fmt.Errorf("failed to add documents: %v", err)
	}
	return nil
}

func (s *Store) Query(ctx context.Context, vector []float32, k int) ([]models.RetrievedChunk, error) {
	count := s.collection.Count()
	if count == 0 {
		return nil, nil
	}
	if k > count {
		k = count
	}

	results, err := s.collection.QueryEmbedding(ctx, vector, k, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to query by similarity: %v", err)
	}

	chunks := make([]models.RetrievedChunk, 0, len(results))
	for _, res := range results {
		page, _ := strconv.Atoi(res.Metadata["page"])
		chunks = append(chunks, models.RetrievedChunk{
			Chunk: models.Chunk{
				ChunkID:        res.ID,
				SourceFilename: res.Metadata["source"],
				PageNumber:     page,
				Content:        res.Content,
			},
			Similarity: res.Similarity,
		})
	}
	return chunks, nil
}

func (s *Store) Count(ctx context.Context) (int, error) {
	return s.collection.Count(), nil
}

// Close snapshots an encrypted in-memory store; persistent stores are
// already on disk.
func (s *Store) Close() error {
	if s.inMemory && s.encryptionKey != "" {
		return s.Export(context.Background())
	}
	return nil
}

// Export writes an encrypted snapshot of the collection next to the database.
func (s *Store) Export(ctx context.Context) error {
	if s.encryptionKey == "" {
		return fmt.Errorf("encryption key is required")
	}
	log.Debug().Str("file", s.filePath).Msg("Exporting collection")
	if err := s.db.ExportToFile(s.filePath, compress, s.encryptionKey, s.collection.Name); err != nil {
		return fmt.Errorf("failed to export database: %v", err)
	}
	return nil
}

func metadata(c models.Chunk) map[string]string {
	return map[string]string{
		"source": c.SourceFilename,
		"page":   strconv.Itoa(c.PageNumber),
		"chunk":  c.ChunkID,
	}
}

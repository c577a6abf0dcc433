package rag

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"docrag/internal/chunker"
	"docrag/internal/composer"
	"docrag/internal/config"
	"docrag/internal/embedding"
	"docrag/internal/llmservice"
	"docrag/internal/loader"
	"docrag/internal/models"
	"docrag/internal/retriever"
	"docrag/internal/store"
)

// File is one uploaded file, not yet parsed.
type File struct {
	Name string
	Data []byte
}

// Pipeline wires ingestion (load, chunk, embed, upsert) and answering
// (retrieve, compose). The store is the only state shared across requests.
type Pipeline struct {
	cfg       *config.Config
	store     store.Store
	chunker   *chunker.Chunker
	embedder  embedding.Embedder
	retriever *retriever.Retriever
	composer  *composer.Composer
}

func New(cfg *config.Config, st store.Store, embedder embedding.Embedder, llm llmservice.Generator) *Pipeline {
	timeout := time.Duration(cfg.RAG.TimeoutSecs) * time.Second
	return &Pipeline{
		cfg:       cfg,
		store:     st,
		chunker:   chunker.New(cfg.RAG.ChunkSize, cfg.RAG.ChunkOverlap),
		embedder:  embedder,
		retriever: retriever.New(st, embedder, timeout),
		composer:  composer.New(llm, cfg.RAG.ContextBudget, timeout),
	}
}

// Ingest processes the files concurrently and reports per-file outcomes.
// One failed file never aborts the batch; a document counts as indexed only
// after every one of its chunks is upserted.
func (p *Pipeline) Ingest(ctx context.Context, files []File) models.IngestReport {
	results := make([]models.FileResult, len(files))

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	for i, file := range files {
		i, file := i, file
		g.Go(func() error {
			n, err := p.ingestFile(gctx, file)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				log.Error().Err(err).Str("file", file.Name).Msg("Ingestion failed")
				results[i] = models.FileResult{Filename: file.Name, Error: err.Error()}
				return nil
			}
			results[i] = models.FileResult{Filename: file.Name, Chunks: n}
			return nil
		})
	}
	_ = g.Wait()

	return models.IngestReport{Files: results}
}

func (p *Pipeline) ingestFile(ctx context.Context, file File) (int, error) {
	doc, err := loader.Load(file.Name, file.Data)
	if err != nil {
		return 0, err
	}
	return p.IngestDocument(ctx, doc)
}

// IngestDocument chunks, embeds and upserts one already-extracted document.
func (p *Pipeline) IngestDocument(ctx context.Context, doc models.Document) (int, error) {
	chunks := p.chunker.Chunk(doc)
	if len(chunks) == 0 {
		return 0, fmt.Errorf("%s: %w", doc.Filename, models.ErrEmptyDocument)
	}

	timeout := time.Duration(p.cfg.RAG.TimeoutSecs) * time.Second
	chunkEmbeddings, err := embedding.EmbedChunks(ctx, p.embedder, chunks, timeout)
	if err != nil {
		return 0, err
	}

	if err := p.store.Upsert(ctx, chunkEmbeddings); err != nil {
		return 0, err
	}
	log.Info().Str("file", doc.Filename).Int("chunks", len(chunks)).Msg("Document indexed")
	return len(chunks), nil
}

// Answer validates the query, retrieves context and composes a grounded
// answer. Validation happens before any backend call.
func (p *Pipeline) Answer(ctx context.Context, question string, k int) (models.Answer, error) {
	if strings.TrimSpace(question) == "" {
		return models.Answer{}, fmt.Errorf("%w: empty question", models.ErrInvalidQuery)
	}
	if k <= 0 {
		return models.Answer{}, fmt.Errorf("%w: k must be positive, got %d", models.ErrInvalidQuery, k)
	}

	retrieved, err := p.retriever.Retrieve(ctx, question, k)
	if err != nil {
		return models.Answer{}, err
	}

	return p.composer.Compose(ctx, question, retrieved)
}

// DefaultK is the k used when a request does not specify one.
func (p *Pipeline) DefaultK() int {
	return p.cfg.RAG.DefaultK
}

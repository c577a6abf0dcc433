package pgvector

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"

	"docrag/internal/config"
	"docrag/internal/models"
)

type chunkRow struct {
	bun.BaseModel  `bun:"table:chunks,alias:c"`
	ChunkID        string  `bun:"chunk_id,pk"`
	SourceFilename string  `bun:"source_filename,notnull"`
	PageNumber     int     `bun:"page_number,notnull"`
	Content        string  `bun:"content,notnull"`
	Embedding      string  `bun:"embedding,notnull,type:vector"`
	Similarity     float32 `bun:"similarity,scanonly"`
}

// Store is a Postgres/pgvector backed embedding index.
type Store struct {
	db *bun.DB
}

func New(cfg *config.StoreConfig) (*Store, error) {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(normalizeDSN(cfg.DSN)), pgdriver.WithPassword(cfg.Password)))

	db := bun.NewDB(sqldb, pgdialect.New())
	if cfg.Debug {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}

	s := &Store{db: db}
	if err := s.init(context.Background(), cfg.VectorSize); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) init(ctx context.Context, vectorSize int) error {
	if _, err := s.db.ExecContext(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS chunks (
		chunk_id text PRIMARY KEY,
		source_filename text NOT NULL,
		page_number integer NOT NULL,
		content text NOT NULL,
		embedding vector(%d) NOT NULL
	)`, vectorSize))
	return err
}

func (s *Store) Upsert(ctx context.Context, chunks []models.ChunkEmbedding) error {
	if len(chunks) == 0 {
		return nil
	}
	rows := make([]chunkRow, 0, len(chunks))
	for _, ce := range chunks {
		rows = append(rows, chunkRow{
			ChunkID:        ce.ChunkID,
			SourceFilename: ce.SourceFilename,
			PageNumber:     ce.PageNumber,
			Content:        ce.Content,
			Embedding:      vectorLiteral(ce.Embedding),
		})
	}
	_, err := s.db.NewInsert().
		Model(&rows).
		On("CONFLICT (chunk_id) DO UPDATE").
		Set("content = EXCLUDED.content, embedding = EXCLUDED.embedding").
		Exec(ctx)
	return err
}

func (s *Store) Query(ctx context.Context, vector []float32, k int) ([]models.RetrievedChunk, error) {
	var rows []chunkRow
	err := s.db.NewSelect().
		Model(&rows).
		ColumnExpr("c.*").
		ColumnExpr("1 - (embedding <=> ?::vector) AS similarity", vectorLiteral(vector)).
		OrderExpr("embedding <=> ?::vector", vectorLiteral(vector)).
		Limit(k).
		Scan(ctx)
	if err != nil {
		return nil, err
	}

	chunks := make([]models.RetrievedChunk, 0, len(rows))
	for _, row := range rows {
		chunks = append(chunks, models.RetrievedChunk{
			Chunk: models.Chunk{
				ChunkID:        row.ChunkID,
				SourceFilename: row.SourceFilename,
				PageNumber:     row.PageNumber,
				Content:        row.Content,
			},
			Similarity: row.Similarity,
		})
	}
	return chunks, nil
}

func (s *Store) Count(ctx context.Context) (int, error) {
	return s.db.NewSelect().Model((*chunkRow)(nil)).Count(ctx)
}

func (s *Store) Close() error {
	return s.db.Close()
}

// normalizeDSN disables TLS by default but leaves a DSN that already carries
// query parameters alone.
func normalizeDSN(dsn string) string {
	if strings.Contains(dsn, "?") {
		return dsn
	}
	return dsn + "?sslmode=disable"
}

// vectorLiteral renders the pgvector input format, e.g. [0.1,0.2,0.3].
func vectorLiteral(vector []float32) string {
	parts := make([]string, len(vector))
	for i, v := range vector {
		parts[i] = fmt.Sprintf("%g", v)
	}
	return "[" + strings.Join(parts, ",") + "]"
}

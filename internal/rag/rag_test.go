package rag

import (
	"context"
	"errors"
	"math"
	"sort"
	"strings"
	"testing"

	"github.com/tmc/langchaingo/llms"

	"docrag/internal/config"
	"docrag/internal/models"
)

// keywordEmbedder maps text onto a fixed keyword axis, so similarity between
// a question and a chunk is deterministic.
type keywordEmbedder struct {
	calls int
}

var keywords = []string{"capital", "france", "paris", "germany", "berlin", "weather"}

func (e *keywordEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	e.calls++
	lower := strings.ToLower(text)
	vec := make([]float32, len(keywords)+1)
	vec[len(keywords)] = 0.1 // keeps vectors non-zero for keyword-free text
	for i, kw := range keywords {
		vec[i] = float32(strings.Count(lower, kw))
	}
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	norm = math.Sqrt(norm)
	for i := range vec {
		vec[i] = float32(float64(vec[i]) / norm)
	}
	return vec, nil
}

// memStore is a brute-force cosine index keyed by chunk ID.
type memStore struct {
	entries map[string]models.ChunkEmbedding
}

func newMemStore() *memStore {
	return &memStore{entries: make(map[string]models.ChunkEmbedding)}
}

func (s *memStore) Upsert(ctx context.Context, chunks []models.ChunkEmbedding) error {
	for _, ce := range chunks {
		s.entries[ce.ChunkID] = ce
	}
	return nil
}

func (s *memStore) Query(ctx context.Context, vector []float32, k int) ([]models.RetrievedChunk, error) {
	var results []models.RetrievedChunk
	for _, ce := range s.entries {
		var dot float32
		for i := range vector {
			if i < len(ce.Embedding) {
				dot += vector[i] * ce.Embedding[i]
			}
		}
		results = append(results, models.RetrievedChunk{Chunk: ce.Chunk, Similarity: dot})
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Similarity > results[j].Similarity })
	if k < len(results) {
		results = results[:k]
	}
	return results, nil
}

func (s *memStore) Count(ctx context.Context) (int, error) { return len(s.entries), nil }
func (s *memStore) Close() error                           { return nil }

type fakeLLM struct {
	reply string
	calls int
}

func (f *fakeLLM) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	f.calls++
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: f.reply}}}, nil
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	cfg.RAG.ChunkSize = 200
	cfg.RAG.ChunkOverlap = 20
	cfg.RAG.TimeoutSecs = 5
	return cfg
}

func threePageDoc() models.Document {
	return models.Document{
		Filename: "doc.pdf",
		Pages: []models.Page{
			{Number: 1, Text: "Berlin is the capital of Germany and has changeable weather."},
			{Number: 2, Text: "The capital of France is Paris."},
			{Number: 3, Text: "The weather in Berlin is often cloudy."},
		},
	}
}

func TestAnswerFindsGroundedFact(t *testing.T) {
	st := newMemStore()
	llm := &fakeLLM{reply: "The capital of France is Paris."}
	p := New(testConfig(), st, &keywordEmbedder{}, llm)
	ctx := context.Background()

	if _, err := p.IngestDocument(ctx, threePageDoc()); err != nil {
		t.Fatalf("IngestDocument failed: %v", err)
	}

	answer, err := p.Answer(ctx, "What is the capital of France?", 3)
	if err != nil {
		t.Fatalf("Answer failed: %v", err)
	}
	if !strings.Contains(answer.Content, "Paris") {
		t.Errorf("answer = %q, want mention of Paris", answer.Content)
	}

	found := false
	for _, src := range answer.Sources {
		if src.Source == "doc.pdf" && src.Page == 2 {
			found = true
		}
	}
	if !found {
		t.Errorf("sources %v missing {doc.pdf, 2}", answer.Sources)
	}
}

func TestAnswerOnEmptyIndex(t *testing.T) {
	st := newMemStore()
	llm := &fakeLLM{reply: "No supporting context was found."}
	p := New(testConfig(), st, &keywordEmbedder{}, llm)

	answer, err := p.Answer(context.Background(), "What is the capital of France?", 5)
	if err != nil {
		t.Fatalf("Answer failed: %v", err)
	}
	if len(answer.Sources) != 0 {
		t.Errorf("empty-index answer cites sources: %v", answer.Sources)
	}
	if llm.calls != 1 {
		t.Errorf("llm called %d times, want 1", llm.calls)
	}
}

func TestAnswerRejectsInvalidQuery(t *testing.T) {
	st := newMemStore()
	emb := &keywordEmbedder{}
	p := New(testConfig(), st, emb, &fakeLLM{reply: "x"})
	ctx := context.Background()

	tests := []struct {
		name     string
		question string
		k        int
	}{
		{"empty question", "   ", 5},
		{"zero k", "q", 0},
		{"negative k", "q", -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.Answer(ctx, tt.question, tt.k)
			if !errors.Is(err, models.ErrInvalidQuery) {
				t.Errorf("err = %v, want ErrInvalidQuery", err)
			}
		})
	}
	if emb.calls != 0 {
		t.Errorf("embedder called %d times before validation", emb.calls)
	}
}

func TestIngestReportsEmptyDocument(t *testing.T) {
	st := newMemStore()
	p := New(testConfig(), st, &keywordEmbedder{}, &fakeLLM{reply: "x"})
	ctx := context.Background()

	// a txt upload with no text, alongside a good one
	report := p.Ingest(ctx, []File{
		{Name: "blank.txt", Data: []byte("   ")},
		{Name: "good.txt", Data: []byte("The capital of France is Paris.")},
	})

	if len(report.Files) != 2 {
		t.Fatalf("report has %d entries, want 2", len(report.Files))
	}
	byName := map[string]models.FileResult{}
	for _, f := range report.Files {
		byName[f.Filename] = f
	}
	if byName["blank.txt"].Error == "" || !strings.Contains(byName["blank.txt"].Error, "no extractable text") {
		t.Errorf("blank.txt result = %+v, want empty-document error", byName["blank.txt"])
	}
	if byName["good.txt"].Error != "" || byName["good.txt"].Chunks == 0 {
		t.Errorf("good.txt result = %+v, want success", byName["good.txt"])
	}

	// only the good file's chunks landed in the index
	count, _ := st.Count(ctx)
	if count != byName["good.txt"].Chunks {
		t.Errorf("index holds %d chunks, want %d", count, byName["good.txt"].Chunks)
	}
}

func TestReingestIsIdempotent(t *testing.T) {
	st := newMemStore()
	p := New(testConfig(), st, &keywordEmbedder{}, &fakeLLM{reply: "x"})
	ctx := context.Background()

	doc := threePageDoc()
	if _, err := p.IngestDocument(ctx, doc); err != nil {
		t.Fatalf("first ingest failed: %v", err)
	}
	before, _ := st.Count(ctx)

	if _, err := p.IngestDocument(ctx, doc); err != nil {
		t.Fatalf("second ingest failed: %v", err)
	}
	after, _ := st.Count(ctx)

	if before != after {
		t.Errorf("index grew from %d to %d on re-ingest", before, after)
	}
}

func TestSourcesAreSubsetOfRetrieved(t *testing.T) {
	st := newMemStore()
	p := New(testConfig(), st, &keywordEmbedder{}, &fakeLLM{reply: "x"})
	ctx := context.Background()

	if _, err := p.IngestDocument(ctx, threePageDoc()); err != nil {
		t.Fatalf("IngestDocument failed: %v", err)
	}

	answer, err := p.Answer(ctx, "What is the weather like in Berlin?", 2)
	if err != nil {
		t.Fatalf("Answer failed: %v", err)
	}
	valid := map[models.Source]bool{
		{Source: "doc.pdf", Page: 1}: true,
		{Source: "doc.pdf", Page: 2}: true,
		{Source: "doc.pdf", Page: 3}: true,
	}
	for _, src := range answer.Sources {
		if !valid[src] {
			t.Errorf("answer cites unknown source %v", src)
		}
	}
	if len(answer.Sources) > 2 {
		t.Errorf("got %d sources from a k=2 query", len(answer.Sources))
	}
}

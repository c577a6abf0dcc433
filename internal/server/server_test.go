package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"testing"

	"github.com/tmc/langchaingo/llms"

	"docrag/internal/config"
	"docrag/internal/models"
	"docrag/internal/rag"
)

type fakeEmbedder struct{}

func (fakeEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	// crude but deterministic: length-based axis plus a constant
	return []float32{float32(len(text)), 1}, nil
}

type memStore struct {
	entries map[string]models.ChunkEmbedding
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
		results = append(results, models.RetrievedChunk{Chunk: ce.Chunk, Similarity: 1})
	}
	sort.Slice(results, func(i, j int) bool { return results[i].ChunkID < results[j].ChunkID })
	if k < len(results) {
		results = results[:k]
	}
	return results, nil
}

func (s *memStore) Count(ctx context.Context) (int, error) { return len(s.entries), nil }
func (s *memStore) Close() error                           { return nil }

type fakeLLM struct {
	reply string
	err   error
}

func (f fakeLLM) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: f.reply}}}, nil
}

func testServer(llm fakeLLM) http.Handler {
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	cfg.RAG.TimeoutSecs = 5
	pipeline := rag.New(cfg, &memStore{entries: map[string]models.ChunkEmbedding{}}, fakeEmbedder{}, llm)
	return New(pipeline)
}

func multipartBody(t *testing.T, fields map[string]string, files map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			t.Fatal(err)
		}
	}
	for name, content := range files {
		fw, err := w.CreateFormFile("files", name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := fw.Write([]byte(content)); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	return body, w.FormDataContentType()
}

func postChat(t *testing.T, h http.Handler, fields map[string]string, files map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	body, contentType := multipartBody(t, fields, files)
	req := httptest.NewRequest(http.MethodPost, "/chat", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestChatRequiresQuestion(t *testing.T) {
	h := testServer(fakeLLM{reply: "ok"})
	tests := []struct {
		name   string
		fields map[string]string
	}{
		{"missing question", map[string]string{}},
		{"blank question", map[string]string{"question": "   "}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postChat(t, h, tt.fields, nil)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
		})
	}
}

func TestChatRejectsBadK(t *testing.T) {
	h := testServer(fakeLLM{reply: "ok"})
	for _, k := range []string{"0", "-1", "abc"} {
		rec := postChat(t, h, map[string]string{"question": "q", "k": k}, nil)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("k=%s: status = %d, want 400", k, rec.Code)
		}
	}
}

func TestChatRejectsUnsupportedUpload(t *testing.T) {
	h := testServer(fakeLLM{reply: "ok"})
	rec := postChat(t, h, map[string]string{"question": "q"}, map[string]string{"cat.png": "not a document"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestChatAnswersWithIngestReport(t *testing.T) {
	h := testServer(fakeLLM{reply: "The capital of France is Paris."})
	rec := postChat(t, h,
		map[string]string{"question": "What is the capital of France?"},
		map[string]string{"facts.txt": "The capital of France is Paris."},
	)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Answer   string              `json:"answer"`
		Sources  []models.Source     `json:"sources"`
		Ingested []models.FileResult `json:"ingested"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad response JSON: %v", err)
	}
	if !strings.Contains(resp.Answer, "Paris") {
		t.Errorf("answer = %q", resp.Answer)
	}
	if len(resp.Ingested) != 1 || resp.Ingested[0].Error != "" {
		t.Errorf("ingest report = %+v", resp.Ingested)
	}
	if len(resp.Sources) == 0 {
		t.Error("no sources returned for an indexed answer")
	}
}

func TestChatEmptyIndexReturnsEmptySources(t *testing.T) {
	h := testServer(fakeLLM{reply: "No supporting context was found."})
	rec := postChat(t, h, map[string]string{"question": "anything?"}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var resp struct {
		Sources []models.Source `json:"sources"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad response JSON: %v", err)
	}
	if len(resp.Sources) != 0 {
		t.Errorf("sources = %v, want none", resp.Sources)
	}
}

func TestChatFailureKeepsIngestReport(t *testing.T) {
	h := testServer(fakeLLM{err: errors.New("connection refused")})
	rec := postChat(t, h,
		map[string]string{"question": "What is the capital of France?"},
		map[string]string{"facts.txt": "The capital of France is Paris."},
	)
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", rec.Code)
	}

	var resp struct {
		Error    string              `json:"error"`
		Ingested []models.FileResult `json:"ingested"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad response JSON: %v", err)
	}
	if resp.Error == "" {
		t.Error("error message missing from failure payload")
	}
	if len(resp.Ingested) != 1 || resp.Ingested[0].Filename != "facts.txt" || resp.Ingested[0].Error != "" {
		t.Errorf("ingest report lost on query failure: %+v", resp.Ingested)
	}
}

func TestHealth(t *testing.T) {
	h := testServer(fakeLLM{reply: "ok"})
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

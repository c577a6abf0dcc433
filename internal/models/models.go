package models

// Page holds the extracted text of a single document page.
type Page struct {
	Number int
	Text   string
}

// Document is an uploaded file after text extraction, ordered by page.
type Document struct {
	Filename string
	Pages    []Page
}

// Chunk is a contiguous span of text from one page of one document.
type Chunk struct {
	ChunkID        string
	SourceFilename string
	PageNumber     int
	Content        string
}

// ChunkEmbedding pairs a chunk with its embedding vector for storage.
type ChunkEmbedding struct {
	Chunk
	Embedding []float32
}

// RetrievedChunk is a stored chunk returned from a similarity query.
// Similarity is cosine, higher is better.
type RetrievedChunk struct {
	Chunk
	Similarity float32
}

// Source identifies where an answer passage came from.
type Source struct {
	Source string `json:"source"`
	Page   int    `json:"page"`
}

// Answer is the composed response to one question.
type Answer struct {
	Content string
	Sources []Source
}

// FileResult reports the outcome of ingesting a single file.
type FileResult struct {
	Filename string `json:"filename"`
	Chunks   int    `json:"chunks,omitempty"`
	Error    string `json:"error,omitempty"`
}

// IngestReport collects per-file outcomes for one ingestion batch.
type IngestReport struct {
	Files []FileResult `json:"files"`
}

// Failed reports how many files in the batch did not ingest.
func (r IngestReport) Failed() int {
	n := 0
	for _, f := range r.Files {
		if f.Error != "" {
			n++
		}
	}
	return n
}

package chunker

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"docrag/internal/models"
)

const (
	defaultChunkSize    = 1000 // characters
	defaultChunkOverlap = 150  // characters
)

// Chunker splits documents into fixed-size overlapping chunks. Splitting is a
// pure function of the text and the two parameters, so re-chunking the same
// document always yields the same sequence (and the same chunk IDs).
type Chunker struct {
	chunkSize    int
	chunkOverlap int
}

func New(chunkSize, chunkOverlap int) *Chunker {
	if chunkSize <= 0 {
		chunkSize = defaultChunkSize
	}
	if chunkOverlap < 0 {
		chunkOverlap = 0
	}
	if chunkOverlap >= chunkSize {
		chunkOverlap = chunkSize / 2
	}
	return &Chunker{chunkSize: chunkSize, chunkOverlap: chunkOverlap}
}

// Chunk splits every page of the document. Chunk boundaries never cross pages;
// a non-empty page shorter than the chunk size yields exactly one chunk.
func (c *Chunker) Chunk(doc models.Document) []models.Chunk {
	var chunks []models.Chunk
	for _, page := range doc.Pages {
		for seq, text := range c.split(page.Text) {
			chunks = append(chunks, models.Chunk{
				ChunkID:        chunkID(doc.Filename, page.Number, seq, text),
				SourceFilename: doc.Filename,
				PageNumber:     page.Number,
				Content:        text,
			})
		}
	}
	return chunks
}

// split cuts content into overlapping spans, preferring a break on a space,
// newline or period within the last 10% of each span.
func (c *Chunker) split(content string) []string {
	content = strings.TrimSpace(content)
	contentLen := len(content)
	if contentLen == 0 {
		return nil
	}
	if contentLen <= c.chunkSize {
		return []string{content}
	}

	var chunks []string
	start := 0
	for start < contentLen {
		end := min(start+c.chunkSize, contentLen)

		if end < contentLen {
			lookBack := min(c.chunkSize/10, end-start)
			for i := end - 1; i >= end-lookBack && i > start; i-- {
				if content[i] == ' ' || content[i] == '\n' || content[i] == '.' {
					end = i + 1
					break
				}
			}
		}

		chunk := strings.TrimSpace(content[start:end])
		if chunk != "" {
			chunks = append(chunks, chunk)
		}

		if end >= contentLen {
			break
		}
		// advance from the actual break point, not a fixed stride: a pulled-back
		// break must not leave the bytes before the next window in no chunk
		next := end - c.chunkOverlap
		if next <= start {
			next = end
		}
		start = next
	}
	return chunks
}

// chunkID is derived from the chunk's content and position, so re-ingesting an
// identical file produces identical IDs and the index upsert is idempotent.
func chunkID(filename string, page, seq int, text string) string {
	h := sha256.Sum256([]byte(fmt.Sprintf("%s|%d|%d|%s", filename, page, seq, text)))
	return hex.EncodeToString(h[:16])
}

package composer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"docrag/internal/llmservice"
	"docrag/internal/models"
)

// Composer builds a grounded prompt from retrieved chunks and asks the
// language model for a single-shot answer.
type Composer struct {
	llm           llmservice.Generator
	contextBudget int
	timeout       time.Duration
}

func New(llm llmservice.Generator, contextBudget int, timeout time.Duration) *Composer {
	return &Composer{llm: llm, contextBudget: contextBudget, timeout: timeout}
}

// Compose answers the question from the retrieved chunks. Sources list only
// the chunks that made it into the prompt, deduplicated by (source, page) in
// first-seen order. With no chunks the model is still asked, but the prompt
// states that no supporting context exists and no sources are returned.
func (c *Composer) Compose(ctx context.Context, question string, retrieved []models.RetrievedChunk) (models.Answer, error) {
	included := c.fitBudget(retrieved)

	var prompt string
	if len(included) == 0 {
		prompt = fmt.Sprintf(models.NoContextPromptTemplate, question)
	} else {
		var knowledge strings.Builder
		for _, chunk := range included {
			knowledge.WriteString(fmt.Sprintf(models.ChunkHeaderTemplate, chunk.SourceFilename, chunk.PageNumber, chunk.Content))
			knowledge.WriteString("\n\n")
		}
		prompt = fmt.Sprintf(models.AnswerPromptTemplate, question, knowledge.String())
	}

	content, err := llmservice.Generate(ctx, c.llm, prompt, c.timeout)
	if err != nil {
		return models.Answer{}, err
	}

	return models.Answer{
		Content: content,
		Sources: dedupeSources(included),
	}, nil
}

// fitBudget keeps chunks greedily by rank until the character budget is
// exhausted. A chunk is included whole or not at all, and inclusion stops at
// the first chunk that does not fit, so a lower-ranked chunk never displaces
// a higher-ranked one.
func (c *Composer) fitBudget(retrieved []models.RetrievedChunk) []models.RetrievedChunk {
	if c.contextBudget <= 0 {
		return retrieved
	}
	total := 0
	for i, chunk := range retrieved {
		total += len(chunk.Content)
		if total > c.contextBudget {
			log.Debug().Int("included", i).Int("retrieved", len(retrieved)).Msg("Context budget reached")
			return retrieved[:i]
		}
	}
	return retrieved
}

func dedupeSources(chunks []models.RetrievedChunk) []models.Source {
	sources := []models.Source{}
	seen := make(map[models.Source]bool)
	for _, chunk := range chunks {
		src := models.Source{Source: chunk.SourceFilename, Page: chunk.PageNumber}
		if seen[src] {
			continue
		}
		seen[src] = true
		sources = append(sources, src)
	}
	return sources
}

package models

import "errors"

// Failure kinds surfaced across the pipeline. Wrap with fmt.Errorf("...: %w", err)
// and test with errors.Is at the boundary.
var (
	ErrUnreadablePDF        = errors.New("unreadable pdf")
	ErrEmptyDocument        = errors.New("no extractable text")
	ErrEmbeddingUnavailable = errors.New("embedding backend unavailable")
	ErrLLMUnavailable       = errors.New("llm backend unavailable")
	ErrTimeout              = errors.New("backend timed out")
	ErrInvalidQuery         = errors.New("invalid query")
)

package models

var (
	AnswerPromptTemplate = `You are an assistant which answers questions based only on the knowledge provided in the "The knowledge" section below.
Do not use external or internal world knowledge beyond the provided knowledge.
Keep the answer concise. Do not repeat the full source text in the answer; sources are reported separately.

Question: %s

The knowledge:
%s`

	NoContextPromptTemplate = `No supporting context was found in the indexed documents for the question below.
State clearly that no supporting context was found, then answer briefly if you can, making clear the answer is not backed by any source.

Question: %s`

	ChunkHeaderTemplate = "[source: %s, page: %d]\n%s"
)

// Package budget provides token budget estimation and context trimming for
// the answer pipeline. Because the bot supports multiple chat backends with
// different tokenizers, this package uses a conservative character-based
// heuristic: 1 token ≈ 4 characters of English prose. This deliberately
// under-estimates token counts to leave headroom for model-specific overhead.
package budget

import (
	"github.com/cibotics/cibot-go/internal/rag"
)

const (
	// charsPerToken is the conservative character-to-token ratio used for
	// estimation. 4 chars/token is standard for English prose; using 3
	// would be more aggressive but risks overflowing context windows.
	charsPerToken = 4

	// DefaultMaxContextTokens is the default input context budget in tokens.
	// Conservative enough to fit within 8k-context models (Mistral 7B)
	// while leaving room for the output.
	DefaultMaxContextTokens = 6000
)

// Estimate returns a rough token count for s using the character heuristic.
func Estimate(s string) int {
	n := len(s) / charsPerToken
	if n == 0 && len(s) > 0 {
		return 1
	}
	return n
}

// EstimateDocs returns the estimated total token count for a slice of
// retrieved documents.
func EstimateDocs(docs []rag.Document) int {
	total := 0
	for _, d := range docs {
		total += Estimate(d.Text)
	}
	return total
}

// TrimDocs drops retrieved documents from the tail of docs until the total
// estimated token count of fixed + docs fits within maxTokens. Search
// results arrive ordered by similarity, so the tail holds the least
// relevant chunks. fixed is the prompt scaffolding (persona, question,
// instructions) that must never be dropped.
//
// Returns the trimmed slice. If even zero documents exceed the budget, the
// empty slice is returned — callers should warn separately if the fixed
// text alone exceeds the budget.
func TrimDocs(fixed string, docs []rag.Document, maxTokens int) []rag.Document {
	if len(docs) == 0 {
		return docs
	}

	fixedTokens := Estimate(fixed)

	for len(docs) > 0 {
		if fixedTokens+EstimateDocs(docs) <= maxTokens {
			break
		}
		// Drop the least relevant document.
		docs = docs[:len(docs)-1]
	}
	return docs
}

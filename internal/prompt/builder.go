// Package prompt assembles the grounded prompts sent to the chat model.
// Chunks extracted from PDFs arrive full of layout artifacts (blank-line
// runs, single letters stranded on their own line), so every chunk is
// normalized before it is stitched into the prompt.
package prompt

import (
	"fmt"
	"regexp"
	"strings"
)

// persona pins the assistant's declared knowledge domain to CIB so the
// model does not answer from general pretraining about other banks.
const persona = "You are a financial assistant who only knows information about the Commercial International Bank in Egypt and cannot detail any information about other entities unless mentioned in the context provided to you. Use the following context to answer the question."

var (
	// blankLineRuns matches two or more consecutive line breaks,
	// optionally separated by whitespace.
	blankLineRuns = regexp.MustCompile(`\n\s*\n`)

	// strandedLetter matches a line holding exactly one alphabetic
	// character, a common artifact of PDF column extraction.
	strandedLetter = regexp.MustCompile(`\n\s*([a-zA-Z])\s*\n`)

	// whitespaceRuns matches any remaining whitespace run, line breaks
	// included.
	whitespaceRuns = regexp.MustCompile(`\s+`)
)

// NormalizeChunk cleans one extracted chunk for prompt use: blank-line runs
// collapse to a single break, stranded single letters are joined back into
// the surrounding text, and all remaining whitespace collapses to single
// spaces. The result is trimmed; an empty string means the chunk should be
// dropped.
func NormalizeChunk(chunk string) string {
	s := blankLineRuns.ReplaceAllString(chunk, "\n")
	s = strandedLetter.ReplaceAllString(s, " $1 ")
	s = whitespaceRuns.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// Build assembles the grounded prompt for a question and its retrieved
// context chunks. Chunks are normalized first; chunks that normalize to
// empty are dropped. Surviving chunks are joined with a blank line.
func Build(question string, contextChunks []string) string {
	cleaned := make([]string, 0, len(contextChunks))
	for _, chunk := range contextChunks {
		if c := NormalizeChunk(chunk); c != "" {
			cleaned = append(cleaned, c)
		}
	}
	context := strings.Join(cleaned, "\n\n")

	return fmt.Sprintf("%s\nContext:\n%s\n\nQuestion: %s\n\nAnswer (extract the key information directly from the context):",
		persona, context, question)
}

// BuildNoContext assembles the degraded-mode prompt used when the search
// returned nothing relevant. It steers the model toward asking the user to
// rephrase or stay on CIB topics instead of hallucinating an answer.
func BuildNoContext(question string) string {
	return fmt.Sprintf("You are a financial assistant for the Commercial International Bank in Egypt.\n\nQuestion: %s\n\nAnswer: I don't have specific information about that in my current database. Could you please rephrase your question or ask about CIB's financial statements, performance metrics, or other banking-related topics?",
		question)
}

// BuildStoreError assembles the degraded-mode prompt used when the vector
// store or the embedding backend could not be reached at all.
func BuildStoreError(question string) string {
	return fmt.Sprintf("You are a financial assistant for the Commercial International Bank in Egypt.\n\nQuestion: %s\n\nAnswer: I'm experiencing some technical difficulties accessing the financial database. Could you please try again or ask a general question about CIB?",
		question)
}

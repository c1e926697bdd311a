// Package llm provides the answer-generation clients. The default client
// speaks the Ollama chat API directly over HTTP; an adapter is also provided
// for hosted backends constructed through the provider package.
//
// Both clients fail softly: generation errors become fixed human-readable
// strings (or a final stream token) instead of Go errors, because the caller
// is usually mid-response to an end user when the backend misbehaves.
package llm

import "context"

// Soft-failure messages returned in place of raw transport errors.
const (
	// ConnectFailedMsg is returned when the chat backend cannot be reached.
	ConnectFailedMsg = "Error: Failed to connect to Ollama server. Please ensure Ollama is running."

	// ParseFailedMsg is returned when the backend answered but its response
	// could not be decoded.
	ParseFailedMsg = "Error: Failed to parse response from Ollama server."
)

// Generator produces completions for assembled prompts.
// Implementations must be safe to call from multiple goroutines.
type Generator interface {
	// Generate performs a single blocking completion call and returns the
	// full answer text. It never returns an error: transport and decode
	// failures yield a fixed soft-failure message instead.
	Generate(ctx context.Context, prompt string) string

	// Stream opens a streaming completion and returns a channel of tokens
	// in arrival order. The channel is always closed when the stream ends.
	// A failure at open time or mid-stream yields one final soft-failure
	// token before the channel closes; it never panics past this boundary.
	// Cancelling ctx closes the underlying connection promptly.
	Stream(ctx context.Context, prompt string) <-chan string
}

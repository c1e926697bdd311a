// Package answer orchestrates the full question-answering flow: retrieve
// grounding context from the vector store, assemble a prompt, and stream the
// generated answer back to the caller token by token.
//
// The flow degrades rather than fails. When retrieval finds nothing, the
// model is asked to invite a rephrasing; when the store or embedder is
// unreachable, the model is asked to report database trouble; any other
// internal fault becomes a single apology token. A caller holding the token
// channel never sees a raw fault.
package answer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/cibotics/cibot-go/internal/budget"
	"github.com/cibotics/cibot-go/internal/llm"
	"github.com/cibotics/cibot-go/internal/logging"
	"github.com/cibotics/cibot-go/internal/prompt"
	"github.com/cibotics/cibot-go/internal/rag"
)

// DefaultTopK is the number of chunks retrieved per question.
const DefaultTopK = 3

// Config holds the dependencies required to construct an Orchestrator.
type Config struct {
	// Retriever fetches grounding chunks for each question.
	Retriever rag.Retriever

	// Generator produces the streamed answer.
	Generator llm.Generator

	// TopK is the number of chunks retrieved per question. Defaults to
	// DefaultTopK if zero.
	TopK int

	// MaxContextTokens is the estimated token budget for the assembled
	// prompt. Retrieved chunks are trimmed least-relevant-first to fit.
	// Defaults to budget.DefaultMaxContextTokens if zero.
	MaxContextTokens int
}

// Orchestrator runs one question at a time through retrieval, prompt
// assembly, and streamed generation. It holds no per-request state and is
// safe for concurrent use.
type Orchestrator struct {
	retriever        rag.Retriever
	generator        llm.Generator
	topK             int
	maxContextTokens int
}

// New constructs an Orchestrator from the provided Config.
func New(cfg *Config) (*Orchestrator, error) {
	if cfg.Retriever == nil {
		return nil, fmt.Errorf("answer: Retriever must not be nil")
	}
	if cfg.Generator == nil {
		return nil, fmt.Errorf("answer: Generator must not be nil")
	}

	topK := cfg.TopK
	if topK <= 0 {
		topK = DefaultTopK
	}
	maxCtx := cfg.MaxContextTokens
	if maxCtx <= 0 {
		maxCtx = budget.DefaultMaxContextTokens
	}

	return &Orchestrator{
		retriever:        cfg.Retriever,
		generator:        cfg.Generator,
		topK:             topK,
		maxContextTokens: maxCtx,
	}, nil
}

// Ask answers one user question. It returns a channel that yields answer
// tokens in order and closes when the answer is complete. Context lookup
// always finishes (success, empty, or error) before the first token is
// produced.
//
// A question that is empty after trimming whitespace is rejected
// synchronously with rag.ErrInvalidInput; every later failure surfaces as
// plain-language tokens on the channel, never as a panic or a raw error.
// Cancelling ctx stops generation promptly; tokens already emitted stand.
func (o *Orchestrator) Ask(ctx context.Context, question string) (<-chan string, error) {
	if strings.TrimSpace(question) == "" {
		return nil, fmt.Errorf("%w: empty question", rag.ErrInvalidInput)
	}

	out := make(chan string, 16)

	go func() {
		defer close(out)
		defer func() {
			if r := recover(); r != nil {
				logging.FromContext(ctx).Error("answer: internal fault", slog.Any("panic", r))
				sendToken(ctx, out, apology(fmt.Errorf("%v", r)))
			}
		}()

		p, err := o.assemblePrompt(ctx, question)
		if err != nil {
			logging.FromContext(ctx).Error("answer: prompt assembly failed", slog.Any("error", err))
			sendToken(ctx, out, apology(err))
			return
		}

		for token := range o.generator.Stream(ctx, p) {
			if !sendToken(ctx, out, token) {
				return
			}
		}
	}()

	return out, nil
}

// assemblePrompt runs context lookup and builds the generation prompt,
// picking the degraded template when retrieval finds nothing or the
// store/embedder is unreachable. Any other retrieval failure is returned
// to the caller as a fatal error.
func (o *Orchestrator) assemblePrompt(ctx context.Context, question string) (string, error) {
	log := logging.FromContext(ctx)

	docs, err := o.retriever.Retrieve(ctx, question, o.topK)
	switch {
	case errors.Is(err, rag.ErrStoreUnavailable), errors.Is(err, rag.ErrModelUnavailable):
		log.Warn("answer: retrieval unavailable, degrading", slog.Any("error", err))
		return prompt.BuildStoreError(question), nil
	case err != nil:
		return "", fmt.Errorf("answer: retrieval failed: %w", err)
	}

	if len(docs) == 0 {
		log.Warn("answer: no relevant context found, degrading", slog.String("question", question))
		return prompt.BuildNoContext(question), nil
	}

	// Trim least-relevant chunks so the prompt fits the context budget.
	scaffold := prompt.Build(question, nil)
	kept := budget.TrimDocs(scaffold, docs, o.maxContextTokens)
	if dropped := len(docs) - len(kept); dropped > 0 {
		log.Warn("answer: dropped chunks to fit context budget",
			slog.Int("dropped", dropped),
			slog.Int("retained", len(kept)),
			slog.Int("max_tokens", o.maxContextTokens),
		)
	}

	chunks := make([]string, 0, len(kept))
	sources := make([]string, 0, len(kept))
	for _, d := range kept {
		chunks = append(chunks, d.Text)
		sources = append(sources, d.FileName)
	}
	log.Info("answer: built grounded prompt",
		slog.Int("chunks", len(chunks)),
		slog.Any("sources", sources),
	)

	return prompt.Build(question, chunks), nil
}

// apology converts an internal fault into the single user-facing token.
func apology(err error) string {
	return fmt.Sprintf("I apologize, but I'm experiencing technical difficulties. Please try again later. Error: %v", err)
}

// sendToken forwards token unless the caller has gone away. It reports
// whether the send happened.
func sendToken(ctx context.Context, out chan<- string, token string) bool {
	select {
	case out <- token:
		return true
	case <-ctx.Done():
		return false
	}
}

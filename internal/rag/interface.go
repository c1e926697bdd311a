// Package rag defines the interfaces for retrieval-augmented generation
// components: vector storage, document retrieval, and embedding.
// Concrete implementations (Qdrant, etc.) satisfy these interfaces so the
// answer layer never depends on a specific backend.
package rag

import (
	"context"
)

// Document represents one chunk of a financial statement, either on its
// way into the store or coming back from a similarity search.
type Document struct {
	// ID is the unique identifier for this chunk. IDs are derived
	// deterministically from the source file name and chunk index so
	// re-ingesting a statement overwrites its previous chunks.
	ID string

	// Text is the raw text content of the chunk.
	Text string

	// FileName is the statement file this chunk was extracted from,
	// e.g. "2023_english_q1_consolidated.pdf".
	FileName string

	// Metadata holds arbitrary key-value pairs (year, quarter, language, etc.).
	Metadata map[string]string

	// Score is the cosine similarity assigned during retrieval.
	// Zero value means the score was not computed.
	Score float32
}

// VectorStore is the interface for persisting and searching chunk embeddings.
// Implementations must be safe to call from multiple goroutines.
type VectorStore interface {
	// EnsureCollection makes sure the backing collection exists, creating
	// it when missing. With recreate set, an existing collection is
	// dropped and rebuilt empty.
	EnsureCollection(ctx context.Context, recreate bool) error

	// Upsert stores or updates a batch of documents with their pre-computed
	// embeddings. The vectors slice must be parallel to docs — vectors[i]
	// is the embedding for docs[i].
	Upsert(ctx context.Context, docs []Document, vectors [][]float32) error

	// Search performs a cosine similarity search and returns the top-k
	// most relevant documents for the given query embedding. A missing
	// or empty collection yields an empty result, not an error.
	Search(ctx context.Context, queryEmbedding []float32, topK int) ([]Document, error)

	// Count reports the number of points currently stored in the collection.
	Count(ctx context.Context) (uint64, error)

	// Close releases any resources held by the store.
	Close() error
}

// Embedder is the interface for converting text into dense vector embeddings.
// Implementations must be safe to call from multiple goroutines.
type Embedder interface {
	// Embed converts a batch of texts into their corresponding embeddings.
	// The returned slice is parallel to the input slice.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Retriever is the high-level interface used by the answer pipeline to
// fetch relevant context for a given query. It combines embedding and
// vector search. Implementations must be safe to call from multiple
// goroutines.
type Retriever interface {
	// Retrieve returns the top-k most relevant documents for the given query.
	Retrieve(ctx context.Context, query string, topK int) ([]Document, error)
}

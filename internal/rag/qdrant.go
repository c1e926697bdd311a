package rag

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/qdrant/go-client/qdrant"
)

// Defaults for a local Qdrant holding CIB financial statement chunks.
const (
	DefaultCollection = "cib_financial_statements"
	DefaultVectorSize = 384
	defaultQdrantPort = 6334
)

// QdrantConfig holds connection parameters for a Qdrant vector store instance.
type QdrantConfig struct {
	// Host is the Qdrant server hostname (default: localhost).
	Host string

	// FallbackHost, when set, is tried once if the primary host does not
	// answer the initial health check. Useful when the bot runs inside a
	// container and Qdrant on the host ("host.docker.internal" vs
	// "localhost").
	FallbackHost string

	// Port is the Qdrant gRPC port (default: 6334).
	Port int

	// Collection is the Qdrant collection name to use.
	Collection string

	// VectorSize is the dimensionality of the embeddings stored in this
	// collection. Upserts with a different dimensionality are rejected.
	VectorSize uint64

	// APIKey is the optional Qdrant API key for authenticated clusters.
	APIKey string

	// UseTLS enables TLS for the gRPC connection.
	UseTLS bool
}

// QdrantStore implements VectorStore backed by a Qdrant instance.
type QdrantStore struct {
	// client is the underlying Qdrant gRPC client.
	client *qdrant.Client

	// cfg holds the resolved configuration for this store.
	cfg *QdrantConfig
}

// NewQdrantStore dials Qdrant and verifies it is reachable with a health
// check. If the primary host does not answer and a fallback host is
// configured, the fallback is tried once before giving up. The returned
// store does not touch the collection; call [QdrantStore.EnsureCollection]
// before ingesting.
func NewQdrantStore(ctx context.Context, cfg *QdrantConfig) (*QdrantStore, error) {
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = defaultQdrantPort
	}
	if cfg.Collection == "" {
		cfg.Collection = DefaultCollection
	}
	if cfg.VectorSize == 0 {
		cfg.VectorSize = DefaultVectorSize
	}

	client, err := dialAndCheck(ctx, cfg, cfg.Host)
	if err != nil && cfg.FallbackHost != "" && cfg.FallbackHost != cfg.Host {
		client, err = dialAndCheck(ctx, cfg, cfg.FallbackHost)
		if err == nil {
			cfg.Host = cfg.FallbackHost
		}
	}
	if err != nil {
		return nil, err
	}

	return &QdrantStore{client: client, cfg: cfg}, nil
}

// dialAndCheck creates a client for host and runs a bounded health check.
func dialAndCheck(ctx context.Context, cfg *QdrantConfig, host string) (*qdrant.Client, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, storeErr("failed to create client", err)
	}

	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if _, err := client.HealthCheck(checkCtx); err != nil {
		client.Close()
		return nil, storeErr(fmt.Sprintf("health check against %s:%d failed", host, cfg.Port), err)
	}

	return client, nil
}

// EnsureCollection creates the collection if it does not already exist.
// With recreate set, an existing collection is dropped first so the store
// comes back empty.
func (s *QdrantStore) EnsureCollection(ctx context.Context, recreate bool) error {
	exists, err := s.client.CollectionExists(ctx, s.cfg.Collection)
	if err != nil {
		return storeErr("failed to check collection existence", err)
	}

	if exists {
		if !recreate {
			return nil
		}
		if err := s.client.DeleteCollection(ctx, s.cfg.Collection); err != nil {
			return storeErr(fmt.Sprintf("failed to drop collection %q", s.cfg.Collection), err)
		}
	}

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.cfg.Collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     s.cfg.VectorSize,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return storeErr(fmt.Sprintf("failed to create collection %q", s.cfg.Collection), err)
	}

	return nil
}

// Upsert stores or updates a batch of documents with their embeddings.
// The vectors slice must be parallel to docs; every vector must match the
// configured collection dimensionality.
func (s *QdrantStore) Upsert(ctx context.Context, docs []Document, vectors [][]float32) error {
	if len(docs) != len(vectors) {
		return fmt.Errorf("%w: %d documents but %d vectors", ErrInvalidInput, len(docs), len(vectors))
	}
	if len(docs) == 0 {
		return nil
	}

	points := make([]*qdrant.PointStruct, 0, len(docs))
	for i, doc := range docs {
		if uint64(len(vectors[i])) != s.cfg.VectorSize {
			return fmt.Errorf("%w: vector %d has %d dimensions, collection expects %d",
				ErrDimensionMismatch, i, len(vectors[i]), s.cfg.VectorSize)
		}

		payload := map[string]interface{}{
			"text":      doc.Text,
			"file_name": doc.FileName,
		}
		for k, v := range doc.Metadata {
			payload[k] = v
		}

		points = append(points, &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(doc.ID),
			Vectors: qdrant.NewVectors(vectors[i]...),
			Payload: qdrant.NewValueMap(payload),
		})
	}

	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.cfg.Collection,
		Points:         points,
	})
	if err != nil {
		return storeErr("upsert failed", err)
	}

	return nil
}

// Search performs a cosine similarity search and returns the top-k results.
// A collection that has not been created yet yields an empty result.
func (s *QdrantStore) Search(ctx context.Context, queryEmbedding []float32, topK int) ([]Document, error) {
	if topK <= 0 {
		return nil, fmt.Errorf("%w: topK must be positive, got %d", ErrInvalidInput, topK)
	}

	exists, err := s.client.CollectionExists(ctx, s.cfg.Collection)
	if err != nil {
		return nil, storeErr("failed to check collection existence", err)
	}
	if !exists {
		return nil, nil
	}

	limit := uint64(topK)
	results, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.cfg.Collection,
		Query:          qdrant.NewQuery(queryEmbedding...),
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, storeErr("search failed", err)
	}

	docs := make([]Document, 0, len(results))
	for _, r := range results {
		doc := Document{
			ID:       r.Id.GetUuid(),
			Score:    r.Score,
			Metadata: make(map[string]string),
		}
		if p := r.Payload; p != nil {
			if v, ok := p["text"]; ok {
				doc.Text = v.GetStringValue()
			}
			if v, ok := p["file_name"]; ok {
				doc.FileName = v.GetStringValue()
			}
			for k, v := range p {
				if k != "text" && k != "file_name" {
					doc.Metadata[k] = v.GetStringValue()
				}
			}
		}
		docs = append(docs, doc)
	}

	return docs, nil
}

// Count reports the number of points stored in the collection. A missing
// collection counts as zero.
func (s *QdrantStore) Count(ctx context.Context) (uint64, error) {
	exists, err := s.client.CollectionExists(ctx, s.cfg.Collection)
	if err != nil {
		return 0, storeErr("failed to check collection existence", err)
	}
	if !exists {
		return 0, nil
	}

	exact := true
	n, err := s.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: s.cfg.Collection,
		Exact:          &exact,
	})
	if err != nil {
		return 0, storeErr("count failed", err)
	}

	return n, nil
}

// Ping reports whether the Qdrant instance answers its health check.
func (s *QdrantStore) Ping(ctx context.Context) error {
	if _, err := s.client.HealthCheck(ctx); err != nil {
		return storeErr("health check failed", err)
	}
	return nil
}

// Close closes the underlying Qdrant gRPC connection.
func (s *QdrantStore) Close() error {
	return s.client.Close()
}

// storeErr tags err with ErrStoreUnavailable so callers can detect store
// trouble with errors.Is while keeping the underlying cause in the chain.
func storeErr(op string, err error) error {
	return fmt.Errorf("qdrant: %s: %w", op, errors.Join(ErrStoreUnavailable, err))
}

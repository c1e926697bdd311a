package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/cibotics/cibot-go/internal/embedder"
	"github.com/cibotics/cibot-go/internal/llm"
	"github.com/cibotics/cibot-go/internal/provider"
	"github.com/cibotics/cibot-go/internal/rag"
	"github.com/cibotics/cibot-go/internal/server"
)

// defaultCollection is the Qdrant collection holding statement chunks.
const defaultCollection = "cib_financial_statements"

// buildGenerator constructs the answer generator. The default is the native
// Ollama client; any other MODEL_PROVIDER goes through the eino provider
// layer so OpenAI, Azure, Bedrock, and Gemini all work behind the same
// Generator interface.
func buildGenerator(ctx context.Context) (llm.Generator, error) {
	backend := envOrDefault("MODEL_PROVIDER", "ollama")
	if backend == "ollama" {
		return llm.NewOllamaClient(&llm.OllamaConfig{
			Host:  envOrDefault("OLLAMA_HOST", "http://localhost:11434"),
			Model: envOrDefault("OLLAMA_MODEL", llm.DefaultModel),
		}), nil
	}

	chatModel, err := provider.NewFromEnv(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to initialise model provider: %w", err)
	}
	return llm.NewEinoGenerator(chatModel), nil
}

// buildStore connects to Qdrant using the environment configuration.
func buildStore(ctx context.Context) (*rag.QdrantStore, error) {
	embBackend := envOrDefault("EMBEDDING_PROVIDER", envOrDefault("MODEL_PROVIDER", "ollama"))
	vectorSize := envInt("EMBEDDING_DIMENSIONS", embedder.DefaultDimensions(embBackend))

	return rag.NewQdrantStore(ctx, &rag.QdrantConfig{
		Host:         envOrDefault("QDRANT_HOST", "localhost"),
		FallbackHost: os.Getenv("QDRANT_FALLBACK_HOST"),
		Port:         envInt("QDRANT_PORT", 6334),
		Collection:   envOrDefault("QDRANT_COLLECTION", defaultCollection),
		VectorSize:   uint64(vectorSize), //nolint:gosec // dimensions are bounded
		APIKey:       os.Getenv("QDRANT_API_KEY"),
		UseTLS:       os.Getenv("QDRANT_TLS") == "true",
	})
}

// buildRetriever wires the embedder and vector store into a Retriever.
// When Qdrant is unreachable the assistant still answers — it falls back to
// an offline retriever whose errors make the orchestrator explain the
// database trouble instead of crashing.
func buildRetriever(ctx context.Context, log *slog.Logger) (rag.Retriever, func()) {
	emb, err := embedder.NewFromEnv()
	if err != nil {
		log.Warn("retriever: embedder unavailable, running degraded", slog.Any("error", err))
		return &offlineRetriever{}, func() {}
	}

	store, err := buildStore(ctx)
	if err != nil {
		log.Warn("retriever: qdrant unavailable, running degraded", slog.Any("error", err))
		return &offlineRetriever{}, func() {}
	}

	retriever, err := rag.NewRetriever(emb, store, envInt("CIBOT_TOP_K", 0))
	if err != nil {
		_ = store.Close()
		log.Warn("retriever: construction failed, running degraded", slog.Any("error", err))
		return &offlineRetriever{}, func() {}
	}

	return retriever, func() { _ = store.Close() }
}

// offlineRetriever reports the vector store as unavailable on every call.
// The orchestrator turns that into a degraded, still-useful answer.
type offlineRetriever struct{}

func (offlineRetriever) Retrieve(context.Context, string, int) ([]rag.Document, error) {
	return nil, fmt.Errorf("retriever offline: %w", rag.ErrStoreUnavailable)
}

// buildPingers assembles the dependency probes for /api/ready and the
// `cibot status` command. The Ollama probe is included whenever the model
// or embedding backend is ollama. The Qdrant probe is always included:
// when no connection can be established at startup the probe reports that
// failure as down rather than disappearing from the list. The returned
// closer releases the probe's Qdrant connection.
func buildPingers(ctx context.Context, log *slog.Logger) ([]server.Pinger, func()) {
	var pingers []server.Pinger
	closer := func() {}

	modelBackend := envOrDefault("MODEL_PROVIDER", "ollama")
	embBackend := envOrDefault("EMBEDDING_PROVIDER", modelBackend)
	if modelBackend == "ollama" || embBackend == "ollama" {
		pingers = append(pingers, server.NewOllamaPinger(envOrDefault("OLLAMA_HOST", "http://localhost:11434")))
	}

	qstore, err := buildStore(ctx)
	if err != nil {
		log.Warn("pingers: qdrant unreachable at startup", slog.Any("error", err))
		pingers = append(pingers, server.NewDownPinger("qdrant", err))
	} else {
		pingers = append(pingers, server.NewQdrantPinger(qstore))
		closer = func() { _ = qstore.Close() }
	}

	return pingers, closer
}

// statementsDir resolves the directory that holds fetched statement PDFs.
func statementsDir() string {
	if dir := os.Getenv("CIBOT_STATEMENTS_DIR"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "statements"
	}
	return home + "/.cibot/statements"
}

// envOrDefault returns the value of the named environment variable, or
// fallback if the variable is unset or empty.
func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// envInt returns the integer value of the named environment variable, or
// fallback if the variable is unset, empty, or not parseable.
func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

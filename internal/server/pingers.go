package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

// OllamaPinger probes an Ollama instance via its /api/tags endpoint, which
// answers without touching a model. It satisfies the Pinger interface and is
// used by GET /api/ready and the `cibot status` command.
type OllamaPinger struct {
	// baseURL is the Ollama server root, e.g. "http://localhost:11434".
	baseURL string
	// client is the HTTP client used for the probe.
	client *http.Client
}

// NewOllamaPinger constructs an OllamaPinger for the given Ollama base URL.
func NewOllamaPinger(baseURL string) *OllamaPinger {
	return &OllamaPinger{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{},
	}
}

// Name returns the dependency label used in readiness responses.
func (p *OllamaPinger) Name() string { return "ollama" }

// Ping sends GET /api/tags to the Ollama server.
// Returns nil if Ollama is reachable, or a descriptive error otherwise.
func (p *OllamaPinger) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/api/tags", nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("ollama unreachable: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ollama returned status %d", resp.StatusCode)
	}
	return nil
}

// storePinger is the subset of the vector store used for readiness probes.
type storePinger interface {
	Ping(ctx context.Context) error
}

// QdrantPinger probes the Qdrant vector store through its health-check RPC.
// It satisfies the Pinger interface and is used by GET /api/ready.
type QdrantPinger struct {
	// store is the vector store to probe.
	store storePinger
}

// NewQdrantPinger constructs a QdrantPinger for the given store.
func NewQdrantPinger(store storePinger) *QdrantPinger {
	return &QdrantPinger{store: store}
}

// Name returns the dependency label used in readiness responses.
func (p *QdrantPinger) Name() string { return "qdrant" }

// Ping delegates to the store's health check.
// Returns nil if Qdrant is reachable, or a descriptive error otherwise.
func (p *QdrantPinger) Ping(ctx context.Context) error {
	if err := p.store.Ping(ctx); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	return nil
}

// DownPinger represents a dependency whose client could not be constructed
// at startup. Every Ping reports the construction failure, so the dependency
// shows up as down in /api/ready and `cibot status` instead of silently
// vanishing from the probe list.
type DownPinger struct {
	// name is the dependency label.
	name string
	// err is the startup failure to report.
	err error
}

// NewDownPinger constructs a DownPinger for the named dependency.
func NewDownPinger(name string, err error) *DownPinger {
	return &DownPinger{name: name, err: err}
}

// Name returns the dependency label used in readiness responses.
func (p *DownPinger) Name() string { return p.name }

// Ping always fails with the recorded startup error.
func (p *DownPinger) Ping(context.Context) error {
	return fmt.Errorf("unavailable since startup: %w", p.err)
}

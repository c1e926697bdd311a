package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/cibotics/cibot-go/internal/store"
)

// Config holds the HTTP server configuration.
type Config struct {
	// Host is the address to bind to (default: 127.0.0.1).
	Host string
	// Port is the TCP port to listen on (default: 8080).
	Port int
	// ReadTimeout is the maximum duration for reading the request.
	ReadTimeout time.Duration
	// WriteTimeout is the maximum duration for writing the response.
	WriteTimeout time.Duration
	// ShutdownTimeout is the maximum duration for a graceful shutdown.
	ShutdownTimeout time.Duration
	// Logger is the structured logger used by the server and its handlers.
	// If nil, [logging.New] is used.
	Logger *slog.Logger
	// Pingers is the ordered list of dependency probes run by GET /api/ready.
	// If empty, /api/ready returns 200 with no checks (liveness-only mode).
	Pingers []Pinger
	// RateLimit is the sustained request rate allowed per IP on rate-limited
	// endpoints (requests/second). Defaults to 10 if zero.
	RateLimit float64
	// RateBurst is the maximum instantaneous burst per IP. Defaults to 20 if zero.
	RateBurst int
	// APIKey is the Bearer token required on all protected /api/* routes.
	// If empty, authentication is disabled (development mode).
	APIKey string
	// StatementsDir is the directory of fetched statement PDFs served by
	// GET /api/statements. If empty, the endpoint returns an empty list.
	StatementsDir string
	// History persists chat sessions. If nil, history is disabled and
	// GET /api/session returns empty transcripts.
	History store.SessionStore
	// Registry receives the server's Prometheus metrics. If nil, the default
	// registry is used. Tests inject a fresh registry to stay hermetic.
	Registry *prometheus.Registry
}

// answerer is the interface handleChat calls to stream an answer.
// *answer.Orchestrator satisfies it; tests inject a fake.
type answerer interface {
	// Ask streams answer tokens for the question. A validation failure is
	// returned synchronously; later failures are delivered in-band as tokens.
	Ask(ctx context.Context, question string) (<-chan string, error)
}

// Server is the HTTP server that exposes the assistant over REST/SSE.
type Server struct {
	// answerer streams answers for POST /api/chat.
	answerer answerer
	// cfg holds the resolved server configuration.
	cfg *Config
	// httpServer is the underlying net/http server.
	httpServer *http.Server
	// log is the structured logger for this server instance.
	log *slog.Logger
	// pingers is the ordered list of dependency probes for GET /api/ready.
	pingers []Pinger
	// history persists chat sessions; nil when history is disabled.
	history store.SessionStore
	// metrics holds the Prometheus instruments owned by this server.
	metrics *serverMetrics
	// stopRL stops the rate limiter's background eviction goroutine on shutdown.
	stopRL func()
}

// chatRequest is the JSON body for POST /api/chat.
type chatRequest struct {
	// Message is the user's question.
	Message string `json:"message"`
	// SessionID groups messages into a persisted chat session. Optional;
	// when empty the exchange is not recorded.
	SessionID string `json:"sessionId,omitempty"`
}

// sessionResponse is the JSON response for GET /api/session.
type sessionResponse struct {
	// SessionID is the session that was queried.
	SessionID string `json:"sessionId"`
	// Messages is the transcript, oldest first.
	Messages []sessionMessage `json:"messages"`
}

// sessionMessage is one transcript entry in a sessionResponse.
type sessionMessage struct {
	// Role is "user" or "assistant".
	Role string `json:"role"`
	// Content is the message text.
	Content string `json:"content"`
	// CreatedAt is the RFC3339 timestamp the message was stored.
	CreatedAt string `json:"createdAt"`
}

// statementEntry describes one locally available statement PDF.
type statementEntry struct {
	// FileName is the canonical statement file name.
	FileName string `json:"fileName"`
	// Year is the statement year, empty when the name does not parse.
	Year string `json:"year,omitempty"`
	// Language is the statement language code ("en" or "ar").
	Language string `json:"language,omitempty"`
	// Quarter is Q1..Q4 or Unknown.
	Quarter string `json:"quarter,omitempty"`
	// Type is consolidated or standalone.
	Type string `json:"type,omitempty"`
	// SizeBytes is the file size on disk.
	SizeBytes int64 `json:"sizeBytes"`
}

// statementsResponse is the JSON response for GET /api/statements.
type statementsResponse struct {
	// Dir is the directory that was listed.
	Dir string `json:"dir"`
	// Statements is the list of PDFs found, sorted by file name.
	Statements []statementEntry `json:"statements"`
}

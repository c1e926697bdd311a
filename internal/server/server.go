// Package server implements the HTTP server that exposes the cibot
// assistant via a REST/SSE API. The server is started by the
// `cibot serve` CLI command.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cibotics/cibot-go/internal/logging"
	"github.com/cibotics/cibot-go/internal/store"
)

// New constructs a Server from the provided answerer and config.
func New(a answerer, cfg *Config) (*Server, error) {
	if a == nil {
		return nil, fmt.Errorf("server: answerer must not be nil")
	}
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 30 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		// WriteTimeout must be long enough for streaming responses.
		cfg.WriteTimeout = 10 * time.Minute
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = defaultRateLimit
	}
	if cfg.RateBurst == 0 {
		cfg.RateBurst = defaultRateBurst
	}
	log := cfg.Logger
	if log == nil {
		log = logging.New()
	}

	var reg prometheus.Registerer = prometheus.DefaultRegisterer
	metricsHandler := promhttp.Handler()
	if cfg.Registry != nil {
		reg = cfg.Registry
		metricsHandler = promhttp.HandlerFor(cfg.Registry, promhttp.HandlerOpts{})
	}

	s := &Server{
		answerer: a,
		cfg:      cfg,
		log:      log,
		pingers:  cfg.Pingers,
		history:  cfg.History,
		metrics:  newServerMetrics(reg),
	}

	rl, stopRL := newRateLimiter(cfg.RateLimit, cfg.RateBurst, log)
	s.stopRL = stopRL

	if cfg.APIKey == "" {
		log.Warn("server: CIBOT_API_KEY not set — API authentication disabled")
	}

	mux := http.NewServeMux()
	mux.Handle("POST /api/chat", rl.middleware(http.HandlerFunc(s.handleChat)))
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("GET /api/ready", s.handleReady)
	mux.HandleFunc("GET /api/statements", s.handleStatements)
	mux.HandleFunc("GET /api/session", s.handleSession)
	mux.Handle("GET /metrics", metricsHandler)

	handler := requestLogger(log, s.instrument(authMiddleware(cfg.APIKey, mux)))

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return s, nil
}

// Start begins listening and serving HTTP requests. It blocks until the
// context is cancelled, then performs a graceful shutdown.
func (s *Server) Start(ctx context.Context) error {
	defer s.stopRL()

	errCh := make(chan error, 1)

	go func() {
		fmt.Printf("cibot server listening on http://%s\n", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server: listen error: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server: graceful shutdown failed: %w", err)
		}
		return nil
	}
}

// instrument wraps next with the generic HTTP request counter and latency
// histogram. The handler label is the URL path so the cardinality stays
// bounded by the fixed route set.
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rw, r)
		elapsed := time.Since(start)

		s.metrics.httpRequestsTotal.WithLabelValues(r.Method, r.URL.Path, fmt.Sprintf("%d", rw.status)).Inc()
		s.metrics.httpDurationSeconds.WithLabelValues(r.Method, r.URL.Path).Observe(elapsed.Seconds())
	})
}

// handleChat handles POST /api/chat requests. It streams the assistant's
// answer using Server-Sent Events (SSE) so clients can render tokens as
// they arrive. Failures after the stream opens are delivered in-band as
// answer text, so the HTTP status is always 200 once streaming begins.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	tokens, err := s.answerer.Ask(r.Context(), req.Message)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	// Set SSE headers so the client receives a streaming response.
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	s.metrics.chatActiveStreams.Inc()
	defer s.metrics.chatActiveStreams.Dec()
	start := time.Now()

	var answerText strings.Builder
	outcome := "ok"
	for token := range tokens {
		answerText.WriteString(token)
		writeSSEData(w, token)
		flusher.Flush()
	}
	if r.Context().Err() != nil {
		outcome = "timeout"
	}

	// Signal stream completion.
	fmt.Fprintf(w, "event: done\ndata: [DONE]\n\n")
	flusher.Flush()

	s.metrics.chatRequestsTotal.WithLabelValues(outcome).Inc()
	s.metrics.chatDurationSeconds.WithLabelValues(outcome).Observe(time.Since(start).Seconds())

	s.recordExchange(r.Context(), req.SessionID, req.Message, answerText.String())
}

// writeSSEData formats a token as one or more SSE data lines. Each newline
// in the token starts a new "data: " line so multi-line chunks never break
// the SSE frame boundary; the client rejoins them with newlines.
func writeSSEData(w http.ResponseWriter, token string) {
	chunk := strings.TrimRight(token, "\n")
	var buf strings.Builder
	for _, line := range strings.Split(chunk, "\n") {
		buf.WriteString("data: ")
		buf.WriteString(line)
		buf.WriteString("\n")
	}
	buf.WriteString("\n")
	fmt.Fprint(w, buf.String())
}

// recordExchange persists a question/answer pair to the session history.
// History failures are logged, never surfaced to the client.
func (s *Server) recordExchange(ctx context.Context, sessionID, question, answer string) {
	if s.history == nil || sessionID == "" {
		return
	}
	// The request context may already be cancelled once streaming ends.
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	log := logging.FromContext(ctx)
	if err := s.history.Append(saveCtx, sessionID, store.RoleUser, question); err != nil {
		log.Warn("server: failed to persist user message", "error", err)
		return
	}
	if err := s.history.Append(saveCtx, sessionID, store.RoleAssistant, answer); err != nil {
		log.Warn("server: failed to persist assistant message", "error", err)
	}
}

// handleHealth handles GET /api/health for liveness checks.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}


// Package server — statements.go contains the handlers that expose the
// local statement library and persisted chat sessions.
package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/cibotics/cibot-go/internal/ingestion"
	"github.com/cibotics/cibot-go/internal/logging"
)

// defaultSessionLimit caps how many messages GET /api/session returns when
// the client does not specify one.
const defaultSessionLimit = 50

// welcomeMessage greets a session that has no stored history yet. It is
// returned in the transcript but never persisted.
const welcomeMessage = "Hello and welcome! I'm your assistant here to help you explore and understand CIB's financial statements. Ask me anything about CIB's reported results."

// writeJSONError writes a JSON-formatted error response with the given status code.
func writeJSONError(w http.ResponseWriter, msg string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// handleStatements handles GET /api/statements.
// It lists the statement PDFs available locally, with the year, quarter,
// language, and type decoded from each canonical file name.
func (s *Server) handleStatements(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	resp := statementsResponse{
		Dir:        s.cfg.StatementsDir,
		Statements: []statementEntry{},
	}

	if s.cfg.StatementsDir != "" {
		entries, err := os.ReadDir(s.cfg.StatementsDir)
		if err != nil && !os.IsNotExist(err) {
			log.Error("statements: list failed", slog.Any("error", err))
			writeJSONError(w, "failed to list statements", http.StatusInternalServerError)
			return
		}

		for _, e := range entries {
			if e.IsDir() || filepath.Ext(e.Name()) != ".pdf" {
				continue
			}
			item := statementEntry{FileName: e.Name()}
			if info, err := e.Info(); err == nil {
				item.SizeBytes = info.Size()
			}
			if meta, err := ingestion.ParseFileName(e.Name()); err == nil {
				item.Year = meta.Year
				item.Language = meta.Language
				item.Quarter = meta.Quarter
				item.Type = meta.Type
			}
			resp.Statements = append(resp.Statements, item)
		}
		sort.Slice(resp.Statements, func(i, j int) bool {
			return resp.Statements[i].FileName < resp.Statements[j].FileName
		})
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		log.Error("statements: encode failed", slog.Any("error", err))
	}
}

// handleSession handles GET /api/session?id=<session>&limit=<n>.
// It returns the persisted transcript for the session, oldest first.
func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	id := r.URL.Query().Get("id")
	if id == "" {
		writeJSONError(w, "id is required", http.StatusBadRequest)
		return
	}

	limit := defaultSessionLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeJSONError(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = n
	}

	resp := sessionResponse{SessionID: id, Messages: []sessionMessage{}}

	if s.history != nil {
		msgs, err := s.history.Recent(r.Context(), id, limit)
		if err != nil {
			log.Error("session: history read failed", slog.Any("error", err))
			writeJSONError(w, "failed to read session history", http.StatusInternalServerError)
			return
		}
		for _, m := range msgs {
			resp.Messages = append(resp.Messages, sessionMessage{
				Role:      string(m.Role),
				Content:   m.Content,
				CreatedAt: m.CreatedAt.Format(time.RFC3339),
			})
		}
	}

	if len(resp.Messages) == 0 {
		resp.Messages = append(resp.Messages, sessionMessage{
			Role:      "assistant",
			Content:   welcomeMessage,
			CreatedAt: time.Now().UTC().Format(time.RFC3339),
		})
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		log.Error("session: encode failed", slog.Any("error", err))
	}
}

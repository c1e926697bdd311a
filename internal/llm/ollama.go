package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/cibotics/cibot-go/internal/logging"
)

// DefaultModel is the chat model the bot was tuned against.
const DefaultModel = "mistral"

// defaultTimeout bounds a full completion. Local models on modest hardware
// can take minutes for a long grounded answer.
const defaultTimeout = 320 * time.Second

// maxLineSize caps a single NDJSON line from the streaming response.
const maxLineSize = 1 << 20

// OllamaClient implements Generator against the Ollama /api/chat endpoint.
// It is safe for concurrent use.
type OllamaClient struct {
	host    string
	model   string
	client  *http.Client
	timeout time.Duration
}

// OllamaConfig holds the settings for constructing an OllamaClient.
type OllamaConfig struct {
	// Host is the Ollama base URL (e.g. "http://localhost:11434").
	Host string
	// Model is the chat model name (default: "mistral").
	Model string
	// Timeout bounds a full generation call (default: 320s).
	Timeout time.Duration
}

// NewOllamaClient constructs an OllamaClient from the given config.
func NewOllamaClient(cfg *OllamaConfig) *OllamaClient {
	host := cfg.Host
	if host == "" {
		host = "http://localhost:11434"
	}
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &OllamaClient{
		host:    host,
		model:   model,
		client:  &http.Client{Timeout: timeout},
		timeout: timeout,
	}
}

// chatMessage is one turn in the Ollama chat request.
type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatRequest is the JSON body sent to /api/chat.
type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
}

// chatResponse is one JSON record from /api/chat — the whole body in
// non-streaming mode, one NDJSON line per token in streaming mode.
type chatResponse struct {
	Message struct {
		Content string `json:"content"`
	} `json:"message"`
	Done  bool   `json:"done"`
	Error string `json:"error,omitempty"`
}

// Generate performs a single blocking completion and returns the answer
// text. Transport failures and undecodable responses yield the fixed
// soft-failure messages instead of an error.
func (c *OllamaClient) Generate(ctx context.Context, prompt string) string {
	resp, err := c.post(ctx, prompt, false)
	if err != nil {
		logging.FromContext(ctx).Error("ollama: chat request failed", slog.Any("error", err))
		return ConnectFailedMsg
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		logging.FromContext(ctx).Error("ollama: chat request rejected", slog.Int("status", resp.StatusCode))
		return ConnectFailedMsg
	}

	var result chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		logging.FromContext(ctx).Error("ollama: failed to decode chat response", slog.Any("error", err))
		return ParseFailedMsg
	}

	return result.Message.Content
}

// Stream opens a streaming completion and returns a channel of tokens.
// Each NDJSON line's message.content is forwarded as one token; malformed
// lines are skipped. A failure at open time or mid-stream produces one
// final soft-failure token before the channel closes.
func (c *OllamaClient) Stream(ctx context.Context, prompt string) <-chan string {
	out := make(chan string, 16)

	go func() {
		defer close(out)

		resp, err := c.post(ctx, prompt, true)
		if err != nil {
			logging.FromContext(ctx).Error("ollama: chat stream open failed", slog.Any("error", err))
			emit(ctx, out, ConnectFailedMsg)
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			logging.FromContext(ctx).Error("ollama: chat stream rejected", slog.Int("status", resp.StatusCode))
			emit(ctx, out, ConnectFailedMsg)
			return
		}

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

		for scanner.Scan() {
			line := scanner.Bytes()
			if len(bytes.TrimSpace(line)) == 0 {
				continue
			}

			var chunk chatResponse
			if err := json.Unmarshal(line, &chunk); err != nil {
				// One bad line does not kill the stream.
				continue
			}

			if chunk.Message.Content != "" {
				if !emit(ctx, out, chunk.Message.Content) {
					return
				}
			}
			if chunk.Done {
				return
			}
		}

		if err := scanner.Err(); err != nil && ctx.Err() == nil {
			logging.FromContext(ctx).Error("ollama: chat stream read failed", slog.Any("error", err))
			emit(ctx, out, ParseFailedMsg)
		}
	}()

	return out
}

// post issues the chat request with the configured model and timeout.
func (c *OllamaClient) post(ctx context.Context, prompt string, stream bool) (*http.Response, error) {
	payload, err := json.Marshal(chatRequest{
		Model:    c.model,
		Messages: []chatMessage{{Role: "user", Content: prompt}},
		Stream:   stream,
	})
	if err != nil {
		return nil, fmt.Errorf("ollama: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.host+"/api/chat", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("ollama: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ollama: request failed: %w", err)
	}
	return resp, nil
}

// emit sends token unless the caller has gone away. It reports whether the
// send happened.
func emit(ctx context.Context, out chan<- string, token string) bool {
	select {
	case out <- token:
		return true
	case <-ctx.Done():
		return false
	}
}

package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

// collect drains a token channel with a test-scoped deadline.
func collect(t *testing.T, ch <-chan string) []string {
	t.Helper()
	var tokens []string
	timeout := time.After(10 * time.Second)
	for {
		select {
		case tok, ok := <-ch:
			if !ok {
				return tokens
			}
			tokens = append(tokens, tok)
		case <-timeout:
			t.Fatalf("timed out waiting for stream to close; got %v", tokens)
		}
	}
}

func TestGenerate(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("path = %s, want /api/chat", r.URL.Path)
		}
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Stream {
			t.Error("stream = true on a blocking call")
		}
		if req.Model != "mistral" {
			t.Errorf("model = %q, want mistral", req.Model)
		}
		if len(req.Messages) != 1 || req.Messages[0].Role != "user" {
			t.Errorf("messages = %+v, want single user message", req.Messages)
		}
		fmt.Fprint(w, `{"message":{"content":"Net income was EGP 16bn."},"done":true}`)
	}))
	defer srv.Close()

	c := NewOllamaClient(&OllamaConfig{Host: srv.URL})
	got := c.Generate(context.Background(), "what was net income?")
	if got != "Net income was EGP 16bn." {
		t.Errorf("Generate = %q", got)
	}
}

func TestGenerateSoftFailures(t *testing.T) {
	t.Parallel()

	t.Run("connection refused", func(t *testing.T) {
		t.Parallel()
		srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
		srv.Close()

		c := NewOllamaClient(&OllamaConfig{Host: srv.URL})
		if got := c.Generate(context.Background(), "q"); got != ConnectFailedMsg {
			t.Errorf("Generate = %q, want connect failure message", got)
		}
	})

	t.Run("http error status", func(t *testing.T) {
		t.Parallel()
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer srv.Close()

		c := NewOllamaClient(&OllamaConfig{Host: srv.URL})
		if got := c.Generate(context.Background(), "q"); got != ConnectFailedMsg {
			t.Errorf("Generate = %q, want connect failure message", got)
		}
	})

	t.Run("undecodable body", func(t *testing.T) {
		t.Parallel()
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, "definitely not json")
		}))
		defer srv.Close()

		c := NewOllamaClient(&OllamaConfig{Host: srv.URL})
		if got := c.Generate(context.Background(), "q"); got != ParseFailedMsg {
			t.Errorf("Generate = %q, want parse failure message", got)
		}
	})
}

func TestStreamForwardsTokensInOrder(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if !req.Stream {
			t.Error("stream = false on a streaming call")
		}
		fmt.Fprintln(w, `{"message":{"content":"Net "},"done":false}`)
		fmt.Fprintln(w, `{"message":{"content":"income "},"done":false}`)
		fmt.Fprintln(w, `{"message":{"content":"grew."},"done":false}`)
		fmt.Fprintln(w, `{"message":{"content":""},"done":true}`)
	}))
	defer srv.Close()

	c := NewOllamaClient(&OllamaConfig{Host: srv.URL})
	tokens := collect(t, c.Stream(context.Background(), "q"))

	want := []string{"Net ", "income ", "grew."}
	if len(tokens) != len(want) {
		t.Fatalf("tokens = %v, want %v", tokens, want)
	}
	for i := range want {
		if tokens[i] != want[i] {
			t.Errorf("tokens[%d] = %q, want %q", i, tokens[i], want[i])
		}
	}
}

func TestStreamSkipsMalformedLines(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, `{"message":{"content":"good "},"done":false}`)
		fmt.Fprintln(w, `{{{not json at all`)
		fmt.Fprintln(w, ``)
		fmt.Fprintln(w, `{"message":{"content":"tokens"},"done":true}`)
	}))
	defer srv.Close()

	c := NewOllamaClient(&OllamaConfig{Host: srv.URL})
	tokens := collect(t, c.Stream(context.Background(), "q"))

	if len(tokens) != 2 || tokens[0] != "good " || tokens[1] != "tokens" {
		t.Errorf("tokens = %v, want [good , tokens]", tokens)
	}
}

func TestStreamOpenFailureYieldsSentinel(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close()

	c := NewOllamaClient(&OllamaConfig{Host: srv.URL})
	tokens := collect(t, c.Stream(context.Background(), "q"))

	if len(tokens) != 1 || tokens[0] != ConnectFailedMsg {
		t.Errorf("tokens = %v, want single connect failure sentinel", tokens)
	}
}

func TestStreamStopsOnDone(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, `{"message":{"content":"only"},"done":true}`)
		fmt.Fprintln(w, `{"message":{"content":"never seen"},"done":false}`)
	}))
	defer srv.Close()

	c := NewOllamaClient(&OllamaConfig{Host: srv.URL})
	tokens := collect(t, c.Stream(context.Background(), "q"))

	if len(tokens) != 1 || tokens[0] != "only" {
		t.Errorf("tokens = %v, want [only]", tokens)
	}
}

func TestStreamHonorsCancellation(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, `{"message":{"content":"first"},"done":false}`)
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
		<-release
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	c := NewOllamaClient(&OllamaConfig{Host: srv.URL})
	ch := c.Stream(ctx, "q")

	select {
	case tok := <-ch:
		if tok != "first" {
			t.Fatalf("first token = %q", tok)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("timed out waiting for first token")
	}

	cancel()

	select {
	case _, ok := <-ch:
		if ok {
			// A token may have been buffered before cancellation; the
			// channel must still close shortly after.
			select {
			case _, ok := <-ch:
				if ok {
					t.Error("stream kept producing after cancellation")
				}
			case <-time.After(10 * time.Second):
				t.Fatal("stream did not close after cancellation")
			}
		}
	case <-time.After(10 * time.Second):
		t.Fatal("stream did not close after cancellation")
	}
}

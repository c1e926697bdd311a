package ingestion

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cibotics/cibot-go/internal/logging"
)

// newListingServer serves a listing page with the given hrefs and the PDF
// bytes behind each of them.
func newListingServer(t *testing.T, hrefs ...string) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		var page strings.Builder
		for _, h := range hrefs {
			fmt.Fprintf(&page, `<a href=%q>statement</a>`, h)
		}
		fmt.Fprint(w, page.String())
	})
	for _, h := range hrefs {
		mux.HandleFunc(h, func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, "%PDF-1.4 fake statement body")
		})
	}

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

// TestFetchAllContinuesPastFailedListing verifies that an unreachable
// English listing does not abort the Arabic pass, and that a second run
// skips statements already on disk.
func TestFetchAllContinuesPastFailedListing(t *testing.T) {
	t.Parallel()

	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	down.Close() // connection refused from here on

	arabic := newListingServer(t, "/statements/2023-q4-consolidated.pdf")

	dir := t.TempDir()
	f, err := NewFetcher(&FetcherConfig{
		Dir:        dir,
		EnglishURL: down.URL,
		ArabicURL:  arabic.URL,
	})
	if err != nil {
		t.Fatalf("NewFetcher: %v", err)
	}

	stats, err := f.FetchAll(context.Background())
	if err != nil {
		t.Fatalf("FetchAll: %v", err)
	}
	if stats.Found != 1 || stats.Downloaded != 1 {
		t.Errorf("stats = %+v, want 1 found and 1 downloaded from the surviving listing", stats)
	}

	pdfs, err := filepath.Glob(filepath.Join(dir, "*.pdf"))
	if err != nil {
		t.Fatal(err)
	}
	if len(pdfs) != 1 {
		t.Fatalf("expected 1 downloaded PDF, got %d", len(pdfs))
	}
	body, err := os.ReadFile(pdfs[0])
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(body), "%PDF") {
		t.Errorf("downloaded file is not the served PDF body: %q", body)
	}

	// The canonical name is the idempotence key: nothing downloads twice.
	stats, err = f.FetchAll(context.Background())
	if err != nil {
		t.Fatalf("FetchAll (repeat): %v", err)
	}
	if stats.Downloaded != 0 || stats.Skipped != 1 {
		t.Errorf("repeat stats = %+v, want 0 downloaded and 1 skipped", stats)
	}
}

// TestFetchAllWarnsOnLinklessListing verifies that a listing page with no
// PDF hrefs (a JS-rendered page, typically) yields zero links and a
// warning, not an error.
func TestFetchAllWarnsOnLinklessListing(t *testing.T) {
	t.Parallel()

	empty := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><script>render()</script></body></html>`)
	}))
	t.Cleanup(empty.Close)

	f, err := NewFetcher(&FetcherConfig{
		Dir:        t.TempDir(),
		EnglishURL: empty.URL,
		ArabicURL:  empty.URL,
	})
	if err != nil {
		t.Fatalf("NewFetcher: %v", err)
	}

	var logBuf bytes.Buffer
	ctx := logging.WithLogger(context.Background(), slog.New(slog.NewTextHandler(&logBuf, nil)))

	stats, err := f.FetchAll(ctx)
	if err != nil {
		t.Fatalf("FetchAll: %v", err)
	}
	if stats.Found != 0 || stats.Downloaded != 0 {
		t.Errorf("stats = %+v, want nothing found", stats)
	}
	if !strings.Contains(logBuf.String(), "no PDF links") {
		t.Errorf("expected a no-links warning in the log, got: %s", logBuf.String())
	}
}

// TestFetchAllErrorsWhenAllListingsDown verifies that FetchAll reports an
// error only when every listing page is unreachable.
func TestFetchAllErrorsWhenAllListingsDown(t *testing.T) {
	t.Parallel()

	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	down.Close()

	f, err := NewFetcher(&FetcherConfig{
		Dir:        t.TempDir(),
		EnglishURL: down.URL,
		ArabicURL:  down.URL,
	})
	if err != nil {
		t.Fatalf("NewFetcher: %v", err)
	}

	if _, err := f.FetchAll(context.Background()); err == nil {
		t.Fatal("expected an error when every listing is unreachable")
	}
}

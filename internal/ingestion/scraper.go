package ingestion

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/cibotics/cibot-go/internal/logging"
)

// IR library listing pages holding the statement download links.
const (
	DefaultEnglishListingURL = "https://www.cibeg.com/en/investor-relations/ir-library/financial-statements"
	DefaultArabicListingURL  = "https://www.cibeg.com/ar/investor-relations/ir-library/financial-statements"
)

// pdfLinkPattern pulls PDF hrefs out of a listing page.
var pdfLinkPattern = regexp.MustCompile(`(?i)href=["']([^"']+\.pdf)["']`)

// FetcherConfig holds the settings for constructing a Fetcher.
type FetcherConfig struct {
	// Dir is the directory downloaded statements are written to.
	Dir string

	// EnglishURL and ArabicURL override the listing pages.
	EnglishURL string
	ArabicURL  string

	// HTTPTimeout bounds each listing fetch and each download.
	// Defaults to 60s.
	HTTPTimeout time.Duration
}

// Fetcher scrapes the IR library listing pages for statement PDFs and
// downloads them under their canonical metadata-derived names. A file
// already present on disk is never downloaded again — the canonical name
// is the idempotence key.
type Fetcher struct {
	dir      string
	listings map[string]string // language code -> listing URL
	client   *http.Client
}

// NewFetcher constructs a Fetcher from the given config.
func NewFetcher(cfg *FetcherConfig) (*Fetcher, error) {
	if cfg.Dir == "" {
		return nil, fmt.Errorf("ingestion: download directory must not be empty")
	}
	english := cfg.EnglishURL
	if english == "" {
		english = DefaultEnglishListingURL
	}
	arabic := cfg.ArabicURL
	if arabic == "" {
		arabic = DefaultArabicListingURL
	}
	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	return &Fetcher{
		dir:      cfg.Dir,
		listings: map[string]string{"en": english, "ar": arabic},
		client:   &http.Client{Timeout: timeout},
	}, nil
}

// FetchStats summarizes one fetch run.
type FetchStats struct {
	// Found is the number of unique PDF links discovered across listings.
	Found int
	// Downloaded is the number of statements fetched this run.
	Downloaded int
	// Skipped is the number of statements already present on disk.
	Skipped int
	// Failed is the number of individual links that could not be fetched.
	Failed int
}

// FetchAll scrapes both listing pages and downloads every statement not
// already on disk. Individual link and listing failures are logged and
// counted, never fatal — an unreachable English listing must not abort the
// Arabic pass. The error return covers an unwritable directory and the case
// where every listing fetch failed.
func (f *Fetcher) FetchAll(ctx context.Context) (*FetchStats, error) {
	if err := os.MkdirAll(f.dir, 0o755); err != nil {
		return nil, fmt.Errorf("ingestion: create download dir: %w", err)
	}

	log := logging.FromContext(ctx)
	stats := &FetchStats{}
	listingFailures := 0

	for _, language := range []string{"en", "ar"} {
		links, err := f.Links(ctx, language)
		if err != nil {
			log.Warn("fetch: listing failed, continuing with next language",
				slog.String("language", language),
				slog.Any("error", err),
			)
			listingFailures++
			continue
		}
		if len(links) == 0 {
			log.Warn("fetch: listing page yielded no PDF links; the page may require JavaScript",
				slog.String("language", language),
			)
			continue
		}
		stats.Found += len(links)

		for _, link := range links {
			meta := LabelLink(link, language)
			name := meta.FileName()
			dest := filepath.Join(f.dir, name)

			if _, err := os.Stat(dest); err == nil {
				log.Debug("fetch: statement already on disk", slog.String("file", name))
				stats.Skipped++
				continue
			}

			if err := f.download(ctx, link, dest); err != nil {
				log.Warn("fetch: download failed, continuing",
					slog.String("url", link),
					slog.Any("error", err),
				)
				stats.Failed++
				continue
			}

			log.Info("fetch: downloaded statement",
				slog.String("file", name),
				slog.String("url", link),
			)
			stats.Downloaded++
		}
	}

	if listingFailures == len(f.listings) {
		return stats, fmt.Errorf("ingestion: all %d listing pages unreachable", listingFailures)
	}
	return stats, nil
}

// Links fetches the listing page for a language and returns the unique PDF
// links it references, in page order. Relative hrefs are resolved against
// the listing URL.
func (f *Fetcher) Links(ctx context.Context, language string) ([]string, error) {
	listing, ok := f.listings[language]
	if !ok {
		return nil, fmt.Errorf("ingestion: unknown language %q", language)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, listing, nil)
	if err != nil {
		return nil, fmt.Errorf("ingestion: create listing request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ingestion: fetch listing %s: %w", listing, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ingestion: listing %s returned HTTP %d", listing, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("ingestion: read listing body: %w", err)
	}

	base, err := url.Parse(listing)
	if err != nil {
		return nil, fmt.Errorf("ingestion: parse listing url: %w", err)
	}

	seen := make(map[string]bool)
	var links []string
	for _, match := range pdfLinkPattern.FindAllStringSubmatch(string(body), -1) {
		ref, err := url.Parse(match[1])
		if err != nil {
			continue
		}
		resolved := base.ResolveReference(ref).String()
		if seen[resolved] {
			continue
		}
		seen[resolved] = true
		links = append(links, resolved)
	}

	return links, nil
}

// download fetches one PDF to dest, writing through a temp file so an
// interrupted download never leaves a half-written statement behind.
func (f *Fetcher) download(ctx context.Context, link, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return fmt.Errorf("http get: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	tmp, err := os.CreateTemp(f.dir, ".download-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		return fmt.Errorf("write body: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tmp.Name(), dest); err != nil {
		return fmt.Errorf("rename into place: %w", err)
	}
	return nil
}

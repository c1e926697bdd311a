// Package ingestion turns CIB financial statement PDFs into searchable
// vector store entries. It covers the full path from the IR website to
// Qdrant: scrape the statement listing pages, download PDFs under
// canonical metadata-derived names, extract their text, chunk it, embed
// each chunk, and upsert the results. The pipeline is invoked by the
// `cibot fetch` and `cibot ingest` CLI commands.
package ingestion

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/cibotics/cibot-go/internal/logging"
	"github.com/cibotics/cibot-go/internal/rag"
)

// chunkSeparator splits extracted statement text into chunks. Statements
// are prose-and-table documents where paragraph boundaries are the only
// reliable seams.
const chunkSeparator = "\n\n"

// Pipeline orchestrates the extract → chunk → embed → upsert flow for
// downloaded statement PDFs.
type Pipeline struct {
	// embedder converts text chunks into dense vector embeddings.
	embedder rag.Embedder

	// store persists the embedded chunks.
	store rag.VectorStore
}

// NewPipeline constructs a Pipeline from the provided dependencies.
func NewPipeline(embedder rag.Embedder, store rag.VectorStore) (*Pipeline, error) {
	if embedder == nil {
		return nil, fmt.Errorf("ingestion: embedder must not be nil")
	}
	if store == nil {
		return nil, fmt.Errorf("ingestion: store must not be nil")
	}
	return &Pipeline{embedder: embedder, store: store}, nil
}

// IngestStats summarizes one ingestion run.
type IngestStats struct {
	// Files is the number of PDFs ingested successfully.
	Files int
	// Chunks is the total number of chunks upserted.
	Chunks int
	// Failed is the number of PDFs that could not be ingested.
	Failed int
}

// IngestDir ingests every .pdf file in dir. Per-file failures are logged
// and counted, not fatal — one corrupt statement must not abort the rest
// of the batch. Progress is reported via the optional callback.
func (p *Pipeline) IngestDir(ctx context.Context, dir string, progress func(msg string)) (*IngestStats, error) {
	if progress == nil {
		progress = func(string) {}
	}

	paths, err := filepath.Glob(filepath.Join(dir, "*.pdf"))
	if err != nil {
		return nil, fmt.Errorf("ingestion: list %s: %w", dir, err)
	}
	sort.Strings(paths)

	log := logging.FromContext(ctx)
	stats := &IngestStats{}

	for _, path := range paths {
		progress(fmt.Sprintf("ingesting %s", filepath.Base(path)))

		n, err := p.IngestFile(ctx, path)
		if err != nil {
			log.Warn("ingestion: file failed, continuing",
				slog.String("file", filepath.Base(path)),
				slog.Any("error", err),
			)
			stats.Failed++
			continue
		}

		progress(fmt.Sprintf("ingested %d chunks from %s", n, filepath.Base(path)))
		stats.Files++
		stats.Chunks += n
	}

	return stats, nil
}

// IngestFile extracts, chunks, embeds, and upserts one statement PDF,
// returning the number of chunks stored. Chunk IDs derive from the file
// name and chunk index, so re-ingesting the same statement overwrites its
// previous chunks instead of duplicating them.
func (p *Pipeline) IngestFile(ctx context.Context, path string) (int, error) {
	doc, err := ExtractPDF(path)
	if err != nil {
		return 0, err
	}
	return p.ingestExtracted(ctx, doc)
}

func (p *Pipeline) ingestExtracted(ctx context.Context, doc *ExtractedDoc) (int, error) {
	if doc.TextPages == 0 {
		return 0, fmt.Errorf("ingestion: %s has no extractable text (%d image pages)", doc.FileName, doc.ImagePages)
	}

	chunks := splitChunks(doc.Text)
	if len(chunks) == 0 {
		return 0, fmt.Errorf("ingestion: %s produced no usable chunks", doc.FileName)
	}

	embeddings, err := p.embedder.Embed(ctx, chunks)
	if err != nil {
		return 0, fmt.Errorf("ingestion: embedding failed for %s: %w", doc.FileName, err)
	}

	// File-name metadata is best effort: hand-named PDFs still ingest,
	// they just carry no year/quarter payload.
	meta, metaErr := ParseFileName(doc.FileName)

	docs := make([]rag.Document, 0, len(chunks))
	for i, chunk := range chunks {
		d := rag.Document{
			ID:       chunkID(doc.FileName, i),
			Text:     chunk,
			FileName: doc.FileName,
			Metadata: map[string]string{
				"chunk_index": fmt.Sprintf("%d", i),
			},
		}
		if metaErr == nil {
			d.Metadata["year"] = meta.Year
			d.Metadata["language"] = meta.Language
			d.Metadata["quarter"] = meta.Quarter
			d.Metadata["statement_type"] = meta.Type
		}
		docs = append(docs, d)
	}

	if err := p.store.Upsert(ctx, docs, embeddings); err != nil {
		return 0, fmt.Errorf("ingestion: upsert failed for %s: %w", doc.FileName, err)
	}

	return len(docs), nil
}

// splitChunks breaks extracted text on blank lines, trimming each piece
// and dropping the empty ones.
func splitChunks(text string) []string {
	parts := strings.Split(text, chunkSeparator)
	chunks := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			chunks = append(chunks, trimmed)
		}
	}
	return chunks
}

// chunkID derives a stable UUID for a chunk from its file name and index,
// so the same chunk always maps to the same point in the store.
func chunkID(fileName string, index int) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(fmt.Sprintf("cibot://statements/%s#%d", fileName, index))).String()
}

package ingestion

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
)

// ExtractedDoc is the text recovered from one statement PDF.
type ExtractedDoc struct {
	// FileName is the base name of the source PDF.
	FileName string

	// Text is the combined extracted text: a file header followed by one
	// "## Page N" section per text page.
	Text string

	// TextPages is the number of pages that yielded extractable text.
	TextPages int

	// ImagePages is the number of pages with no extractable text —
	// scanned pages that would need OCR, which this pipeline skips.
	ImagePages int
}

// ExtractPDF reads a statement PDF and returns its text page by page.
// Pages without an extractable text layer are counted and skipped rather
// than failing the whole document; a page whose text cannot be decoded is
// treated the same way.
func ExtractPDF(path string) (*ExtractedDoc, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("ingestion: open pdf %s: %w", path, err)
	}
	defer f.Close()

	doc := &ExtractedDoc{FileName: filepath.Base(path)}

	var sb strings.Builder
	fmt.Fprintf(&sb, "File: %s\n", doc.FileName)

	total := r.NumPage()
	for i := 1; i <= total; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			doc.ImagePages++
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil || strings.TrimSpace(text) == "" {
			doc.ImagePages++
			continue
		}

		doc.TextPages++
		fmt.Fprintf(&sb, "\n## Page %d\n%s\n", i, text)
	}

	doc.Text = sb.String()
	return doc, nil
}

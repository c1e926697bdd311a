package ingestion

import (
	"fmt"
	"net/url"
	"path"
	"strings"
)

// Quarter labels used in statement file names.
const (
	QuarterQ1      = "Q1"
	QuarterQ2      = "Q2"
	QuarterQ3      = "Q3"
	QuarterQ4      = "Q4"
	QuarterUnknown = "Unknown"
)

// Statement type labels used in statement file names.
const (
	TypeConsolidated = "consolidated"
	TypeStandalone   = "standalone"
	TypeUnknown      = "Unknown"
)

// StatementMeta holds the metadata inferred for one financial statement
// PDF: publication year, site language, fiscal quarter, and whether the
// statement is consolidated or standalone.
type StatementMeta struct {
	// Year is the four-digit publication year, or empty when none was found.
	Year string
	// Language is the site language code ("en" or "ar").
	Language string
	// Quarter is one of Q1..Q4 or Unknown.
	Quarter string
	// Type is consolidated, standalone, or Unknown.
	Type string
	// URL is the source link the metadata was inferred from, when known.
	URL string
}

// LabelLink inspects a statement download URL and returns best-effort
// metadata. The IR site encodes the year as a path segment and scatters
// quarter and statement-type hints through the trailing segments, so the
// tail of the path (from the year onward) is scanned for keywords.
func LabelLink(rawURL, language string) StatementMeta {
	m := StatementMeta{
		Language: language,
		Quarter:  QuarterUnknown,
		Type:     TypeUnknown,
		URL:      rawURL,
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return m
	}

	segments := strings.Split(parsed.Path, "/")
	tail := ""
	for i, seg := range segments {
		if y, ok := leadingYear(seg); ok {
			m.Year = y
			tail = strings.ToLower(strings.Join(segments[i:], ""))
			break
		}
	}
	if tail == "" {
		// No year segment; fall back to scanning the whole path.
		tail = strings.ToLower(strings.Join(segments, ""))
	}

	switch {
	case strings.Contains(tail, "q1"), strings.Contains(tail, "march"):
		m.Quarter = QuarterQ1
	case strings.Contains(tail, "q2"), strings.Contains(tail, "june"):
		m.Quarter = QuarterQ2
	case strings.Contains(tail, "q3"), strings.Contains(tail, "september"):
		m.Quarter = QuarterQ3
	case strings.Contains(tail, "q4"), strings.Contains(tail, "december"):
		m.Quarter = QuarterQ4
	}

	switch {
	case strings.Contains(tail, "consolidat"), strings.Contains(tail, "cs"), strings.Contains(tail, "condensed"):
		m.Type = TypeConsolidated
	case strings.Contains(tail, "standalone"), strings.Contains(tail, "sa"), strings.Contains(tail, "separate"):
		m.Type = TypeStandalone
	}

	return m
}

// leadingYear reports whether seg starts with a plausible four-digit year
// (the Arabic site uses segments like "2023-ar").
func leadingYear(seg string) (string, bool) {
	if len(seg) < 4 {
		return "", false
	}
	y := seg[:4]
	for _, c := range y {
		if c < '0' || c > '9' {
			return "", false
		}
	}
	if y < "1990" || y > "2099" {
		return "", false
	}
	if len(seg) > 4 && seg[4] != '-' {
		return "", false
	}
	return y, true
}

// FileName renders the canonical on-disk name for the statement, e.g.
// "2023_en_q1_consolidated.pdf". The name doubles as the idempotence key
// for downloads and ingestion.
func (m StatementMeta) FileName() string {
	return fmt.Sprintf("%s_%s_%s_%s.pdf", m.Year, m.Language, strings.ToLower(m.Quarter), m.Type)
}

// ParseFileName recovers StatementMeta from a canonical statement file
// name. It accepts full paths and returns an error for names that do not
// follow the {year}_{language}_{quarter}_{type}.pdf contract.
func ParseFileName(name string) (StatementMeta, error) {
	base := path.Base(strings.ReplaceAll(name, "\\", "/"))
	trimmed, ok := strings.CutSuffix(base, ".pdf")
	if !ok {
		return StatementMeta{}, fmt.Errorf("ingestion: %q is not a .pdf file name", base)
	}

	parts := strings.SplitN(trimmed, "_", 4)
	if len(parts) != 4 {
		return StatementMeta{}, fmt.Errorf("ingestion: %q does not match {year}_{language}_{quarter}_{type}.pdf", base)
	}

	m := StatementMeta{
		Year:     parts[0],
		Language: parts[1],
		Quarter:  normalizeQuarter(parts[2]),
		Type:     parts[3],
	}
	if _, ok := leadingYear(m.Year); !ok {
		return StatementMeta{}, fmt.Errorf("ingestion: %q has invalid year %q", base, parts[0])
	}
	return m, nil
}

// normalizeQuarter maps a lowercase file-name quarter back to its label.
func normalizeQuarter(q string) string {
	switch strings.ToLower(q) {
	case "q1":
		return QuarterQ1
	case "q2":
		return QuarterQ2
	case "q3":
		return QuarterQ3
	case "q4":
		return QuarterQ4
	default:
		return QuarterUnknown
	}
}

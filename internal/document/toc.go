package document

import (
	"fmt"
	"strings"

	"github.com/scribehq/dle/internal/config"
	"github.com/scribehq/dle/internal/dlerrors"
)

// GenerateTOC builds a nested bullet list of the body's headings (excluding
// level-1, which is treated as the document title) and splices it between
// the configured start/end markers, replacing any existing content there.
// Regenerating an already-current TOC is a fixed point (§4.6).
func GenerateTOC(body string, cfg config.TOCConfig) (string, error) {
	idx, err := BuildIndex(body)
	if err != nil {
		return "", err
	}

	startLine, endLine, err := findMarkers(idx.Lines, cfg)
	if err != nil {
		return "", err
	}

	// Slugs are numbered over every heading, title included, in document
	// order, so TOC links match what ValidateCrosslinks resolves.
	allTexts := make([]string, len(idx.Headings))
	for i, h := range idx.Headings {
		allTexts[i] = h.Text
	}
	allSlugs := SlugSequence(allTexts)

	tocHeadings := make([]Heading, 0, len(idx.Headings))
	slugs := make([]string, 0, len(idx.Headings))
	for i, h := range idx.Headings {
		if h.Line >= startLine && h.Line <= endLine {
			continue // never summarize the marker block itself
		}
		if h.Level == 1 {
			continue
		}
		tocHeadings = append(tocHeadings, h)
		slugs = append(slugs, allSlugs[i])
	}

	var b strings.Builder
	b.WriteString(cfg.MarkerStart + "\n")
	for i, h := range tocHeadings {
		indent := strings.Repeat("  ", h.Level-2)
		fmt.Fprintf(&b, "%s- [%s](#%s)\n", indent, h.Text, slugs[i])
	}
	b.WriteString(cfg.MarkerEnd)

	return idx.Lines.ReplaceRange(startLine, endLine, b.String()).Join(), nil
}

// findMarkers locates the start/end marker lines, returning SECTION_NOT_FOUND
// when either is absent. It never inserts markers itself; InsertTOCMarkers
// adds a pair.
func findMarkers(lines *Lines, cfg config.TOCConfig) (start, end int, err error) {
	for n := 1; n <= lines.Count(); n++ {
		if strings.TrimSpace(lines.At(n)) == cfg.MarkerStart {
			start = n
			break
		}
	}
	if start == 0 {
		return 0, 0, dlerrors.New(dlerrors.SectionNotFound, "TOC markers not present in body").
			WithDiagnostics(map[string]any{"marker_start": cfg.MarkerStart})
	}
	for n := start + 1; n <= lines.Count(); n++ {
		if strings.TrimSpace(lines.At(n)) == cfg.MarkerEnd {
			end = n
			return start, end, nil
		}
	}
	return 0, 0, dlerrors.New(dlerrors.SectionNotFound, "TOC end marker not present in body").
		WithDiagnostics(map[string]any{"marker_end": cfg.MarkerEnd})
}

// InsertTOCMarkers inserts an empty marker pair immediately after the first
// level-1 heading (or at the top of the body if there is none), for callers
// preparing a document that has no TOC block yet.
func InsertTOCMarkers(body string, cfg config.TOCConfig) (string, error) {
	idx, err := BuildIndex(body)
	if err != nil {
		return "", err
	}
	after := 0
	for _, h := range idx.Headings {
		if h.Level == 1 {
			after = h.Line
			break
		}
	}
	block := cfg.MarkerStart + "\n" + cfg.MarkerEnd
	return idx.Lines.InsertAfter(after, block).Join(), nil
}

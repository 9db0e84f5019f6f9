// Package mutate implements the body-relative edit operations described in
// §4.4: replace_range, replace_block, replace_section, append,
// status_update, and apply_patch. Every operation takes a body string and
// returns the new body; the caller (pkg/dle) owns frontmatter splitting,
// locking, and the atomic write.
package mutate

import (
	"regexp"
	"strings"

	"github.com/scribehq/dle/internal/dlerrors"
	"github.com/scribehq/dle/internal/document"
)

// Kind tags which operation an Edit performs, for apply_patch sequences.
type Kind string

const (
	KindReplaceRange   Kind = "replace_range"
	KindReplaceBlock   Kind = "replace_block"
	KindReplaceSection Kind = "replace_section"
	KindAppend         Kind = "append"
	KindStatusUpdate   Kind = "status_update"
)

// Edit is one tagged mutation, matching §3's Edit variant.
type Edit struct {
	Kind Kind

	// replace_range
	StartLine int
	EndLine   int

	// replace_block
	AnchorText string

	// replace_section / status_update
	SectionSlug string

	// replace_range / replace_block / replace_section / append
	Content string

	// status_update
	Token  string
	Status bool
	Proof  string
}

// ReplaceRange replaces body lines [start, end] (1-based, inclusive) with
// content verbatim.
func ReplaceRange(body string, start, end int, content string) (string, error) {
	lines := document.Split(body)
	if start < 1 || end < start || end > lines.Count() {
		return "", dlerrors.Newf(dlerrors.RangeOutOfBounds, "range [%d,%d] outside body of %d lines", start, end, lines.Count()).
			WithDiagnostics(map[string]any{"start_line": start, "end_line": end, "body_line_count": lines.Count()})
	}
	return lines.ReplaceRange(start, end, content).Join(), nil
}

var whitespaceRunRe = regexp.MustCompile(`^\s*$`)

// ReplaceBlock finds anchorText as a whole-line or line-prefix match outside
// fenced code, requiring exactly one match, and replaces from that line
// through (but excluding) the next blank line.
func ReplaceBlock(body, anchorText, content string) (string, error) {
	idx, err := document.BuildIndex(body)
	if err != nil {
		return "", err
	}
	lines := idx.Lines

	var matches []int
	for n := 1; n <= lines.Count(); n++ {
		if idx.InFence(n) {
			continue
		}
		if idx.Kind(n) == document.KindATXHeading || idx.Kind(n) == document.KindSetextUnderline {
			continue
		}
		line := lines.At(n)
		if line == anchorText || strings.HasPrefix(line, anchorText) {
			matches = append(matches, n)
		}
	}

	switch len(matches) {
	case 0:
		return "", dlerrors.Newf(dlerrors.AnchorNotFound, "no line matches anchor text %q", anchorText).
			WithDiagnostics(map[string]any{"anchor_text": anchorText})
	case 1:
		// fall through
	default:
		return "", dlerrors.Newf(dlerrors.AmbiguousAnchor, "anchor text %q matches %d lines", anchorText, len(matches)).
			WithDiagnostics(map[string]any{"anchor_text": anchorText, "lines": matches})
	}

	start := matches[0]
	end := start
	for n := start + 1; n <= lines.Count(); n++ {
		if whitespaceRunRe.MatchString(lines.At(n)) {
			break
		}
		end = n
	}

	return lines.ReplaceRange(start, end, content).Join(), nil
}

// ReplaceSection resolves sectionSlug via the anchor index and replaces the
// section's content (the lines after the heading through the terminator)
// while preserving the heading and anchor comment lines.
func ReplaceSection(body, sectionSlug, content string) (string, error) {
	idx, err := document.BuildIndex(body)
	if err != nil {
		return "", err
	}
	headingLine, terminator, err := idx.SectionRange(sectionSlug)
	if err != nil {
		return "", err
	}
	if headingLine == terminator {
		return idx.Lines.InsertAfter(headingLine, content).Join(), nil
	}
	return idx.Lines.ReplaceRange(headingLine+1, terminator, content).Join(), nil
}

// AppendContent writes content after the final non-whitespace body line,
// ensuring exactly one blank-line separator.
func AppendContent(body, content string) string {
	lines := document.Split(body)
	last := lines.LastNonBlank()
	trimmed := strings.TrimRight(content, "\n")
	return lines.InsertAfter(last, "\n"+trimmed).Join()
}

var checklistRe = regexp.MustCompile(`^(\s*-\s*\[)([ xX])(\]\s*)(.*)$`)
var proofRe = regexp.MustCompile(`\s*\(proof:[^)]*\)\s*$`)

// StatusUpdate locates a checklist line under sectionSlug whose label
// matches token as a whole word, toggles its checkbox to status, and
// attaches or replaces a trailing `(proof: ...)` marker if proof is
// non-empty.
func StatusUpdate(body, sectionSlug, token string, status bool, proof string) (string, error) {
	idx, err := document.BuildIndex(body)
	if err != nil {
		return "", err
	}
	start, end, err := idx.SectionRange(sectionSlug)
	if err != nil {
		return "", err
	}

	tokenRe, err := regexp.Compile(`\b` + regexp.QuoteMeta(token) + `\b`)
	if err != nil {
		return "", dlerrors.Newf(dlerrors.TokenNotFound, "invalid token %q", token)
	}

	var match int
	for n := start; n <= end; n++ {
		line := idx.Lines.At(n)
		if checklistRe.MatchString(line) && tokenRe.MatchString(line) {
			if match != 0 {
				return "", dlerrors.Newf(dlerrors.TokenNotFound, "token %q matches more than one checklist line", token).
					WithDiagnostics(map[string]any{"token": token, "lines": []int{match, n}})
			}
			match = n
		}
	}
	if match == 0 {
		return "", dlerrors.Newf(dlerrors.TokenNotFound, "no checklist line under section %q matches token %q", sectionSlug, token).
			WithDiagnostics(map[string]any{"token": token, "section": sectionSlug})
	}

	line := idx.Lines.At(match)
	m := checklistRe.FindStringSubmatch(line)
	mark := " "
	if status {
		mark = "x"
	}
	rest := proofRe.ReplaceAllString(m[4], "")
	newLine := m[1] + mark + m[3] + rest
	if proof != "" {
		newLine += " (proof: " + proof + ")"
	}

	return idx.Lines.ReplaceRange(match, match, newLine).Join(), nil
}

// ApplyPatch executes edits in order against a single in-memory body,
// atomically: each edit sees the effects of all prior edits in the same
// call, and if any edit fails the whole patch is discarded (the original
// body is returned unchanged, alongside the error).
func ApplyPatch(body string, edits []Edit) (string, error) {
	current := body
	for _, e := range edits {
		next, err := applyOne(current, e)
		if err != nil {
			return body, err
		}
		current = next
	}
	return current, nil
}

func applyOne(body string, e Edit) (string, error) {
	switch e.Kind {
	case KindReplaceRange:
		return ReplaceRange(body, e.StartLine, e.EndLine, e.Content)
	case KindReplaceBlock:
		return ReplaceBlock(body, e.AnchorText, e.Content)
	case KindReplaceSection:
		return ReplaceSection(body, e.SectionSlug, e.Content)
	case KindAppend:
		return AppendContent(body, e.Content), nil
	case KindStatusUpdate:
		return StatusUpdate(body, e.SectionSlug, e.Token, e.Status, e.Proof)
	default:
		return "", dlerrors.Newf(dlerrors.RangeOutOfBounds, "unknown edit kind %q", e.Kind)
	}
}

// Package frontmatter splits a Markdown document into its leading `---`
// YAML frontmatter block and body, the way internal/marshal did for Linear
// documents in the teacher repo — except here the frontmatter bytes are
// never re-serialized. §4.2 requires byte-for-byte preservation across any
// body-only mutation, so Parse keeps the original bytes verbatim and Render
// just concatenates them back with the (possibly mutated) body. Only
// UpdateFields performs a deliberate, line-oriented rewrite of named keys.
package frontmatter

import (
	"bytes"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

const delimiter = "---"

// Document is the result of splitting a file into frontmatter and body.
type Document struct {
	// Raw holds the exact original frontmatter bytes, including both
	// delimiter lines and the trailing newline after the closing
	// delimiter. Empty if the document has no frontmatter.
	Raw []byte

	// Fields is a read-only decode of Raw's YAML content, for callers
	// that need to inspect (not mutate) a frontmatter value.
	Fields map[string]any

	// Body is everything after the frontmatter block (or the whole file
	// if there was none).
	Body string

	// LineOffset is body_line_offset per §4.2/§3: the count of lines
	// consumed by frontmatter, plus one. With no frontmatter this is 1,
	// so ToFileLine(bodyLine) == bodyLine.
	LineOffset int
}

// ToFileLine maps a body-relative line number to its 1-based line number
// in the original file, for diagnostics only — all structural operations
// stay body-relative.
func (d *Document) ToFileLine(bodyLine int) int {
	return bodyLine + d.LineOffset - 1
}

// HasFrontmatter reports whether the document carried a frontmatter block.
func (d *Document) HasFrontmatter() bool {
	return len(d.Raw) > 0
}

// Parse splits content into frontmatter and body. Frontmatter is detected
// iff the file begins exactly with "---" followed by a line terminator (LF
// or CRLF) and a closing "---" appears on its own line afterward.
func Parse(content []byte) (*Document, error) {
	nl := "\n"
	rest := content
	if bytes.HasPrefix(content, []byte(delimiter+"\r\n")) {
		nl = "\r\n"
		rest = content[len(delimiter+"\r\n"):]
	} else if bytes.HasPrefix(content, []byte(delimiter+"\n")) {
		rest = content[len(delimiter+"\n"):]
	} else {
		return &Document{
			Fields:     map[string]any{},
			Body:       string(content),
			LineOffset: 1,
		}, nil
	}

	closeMarker := []byte(nl + delimiter)
	idx := bytes.Index(rest, closeMarker)
	if idx == -1 {
		return nil, fmt.Errorf("unclosed frontmatter")
	}

	yamlBody := rest[:idx]
	afterClose := rest[idx+len(closeMarker):]

	// Consume the line terminator right after the closing delimiter, if
	// present, same as the body's first line starting fresh.
	bodyStart := afterClose
	if bytes.HasPrefix(bodyStart, []byte("\r\n")) {
		bodyStart = bodyStart[2:]
	} else if bytes.HasPrefix(bodyStart, []byte("\n")) {
		bodyStart = bodyStart[1:]
	}

	rawLen := len(content) - len(bodyStart)
	raw := content[:rawLen]

	fields := map[string]any{}
	if len(bytes.TrimSpace(yamlBody)) > 0 {
		if err := yaml.Unmarshal(yamlBody, &fields); err != nil {
			return nil, fmt.Errorf("failed to parse frontmatter: %w", err)
		}
	}
	if fields == nil {
		fields = map[string]any{}
	}

	lineCount := bytes.Count(raw, []byte("\n"))

	return &Document{
		Raw:        raw,
		Fields:     fields,
		Body:       string(bodyStart),
		LineOffset: lineCount + 1,
	}, nil
}

// Render reassembles a document's raw frontmatter bytes with its (possibly
// mutated) body, verbatim. This is the only write path and it never touches
// Raw.
func Render(doc *Document) []byte {
	var buf bytes.Buffer
	buf.Write(doc.Raw)
	buf.WriteString(doc.Body)
	return buf.Bytes()
}

// UpdateFields rewrites the named top-level scalar keys in place, line by
// line, preserving key order and every other line untouched. Unknown keys
// (not present in updates) are never dropped. A key present in updates but
// absent from the current frontmatter is appended as a new line just
// before the closing delimiter. Values are YAML-scalar-encoded individually
// so special characters are quoted correctly without touching sibling
// lines.
func (d *Document) UpdateFields(updates map[string]string) error {
	if len(updates) == 0 {
		return nil
	}
	if !d.HasFrontmatter() {
		return fmt.Errorf("document has no frontmatter to update")
	}

	nl := "\n"
	if bytes.Contains(d.Raw, []byte("\r\n")) {
		nl = "\r\n"
	}

	text := string(d.Raw)
	lines := strings.Split(text, nl)
	// lines[0] == "---", lines[len-1] == "" (trailing split artifact) or
	// contains the closing "---" depending on exact trailing bytes; we
	// operate on the body lines between the two delimiter lines.
	closeIdx := -1
	for i := 1; i < len(lines); i++ {
		if strings.TrimRight(lines[i], "\r") == delimiter {
			closeIdx = i
			break
		}
	}
	if closeIdx == -1 {
		return fmt.Errorf("malformed frontmatter: no closing delimiter found")
	}

	remaining := make(map[string]string, len(updates))
	for k, v := range updates {
		remaining[k] = v
	}

	for i := 1; i < closeIdx; i++ {
		line := lines[i]
		key, ok := scalarKey(line)
		if !ok {
			continue
		}
		if newVal, found := remaining[key]; found {
			indent := line[:len(line)-len(strings.TrimLeft(line, " "))]
			lines[i] = indent + key + ": " + encodeScalar(newVal)
			delete(remaining, key)
			d.Fields[key] = newVal
		}
	}

	if len(remaining) > 0 {
		newLines := make([]string, 0, len(remaining))
		for k, v := range updates {
			if _, stillPending := remaining[k]; stillPending {
				newLines = append(newLines, k+": "+encodeScalar(v))
				d.Fields[k] = v
			}
		}
		tail := append([]string{}, lines[:closeIdx]...)
		tail = append(tail, newLines...)
		tail = append(tail, lines[closeIdx:]...)
		lines = tail
	}

	d.Raw = []byte(strings.Join(lines, nl))
	return nil
}

// scalarKey returns the top-level "key:" name on a frontmatter line, if the
// line is a simple "key: value" assignment (not a nested/indented line, not
// a list item).
func scalarKey(line string) (string, bool) {
	trimmed := strings.TrimLeft(line, " ")
	if trimmed == "" || strings.HasPrefix(trimmed, "#") || strings.HasPrefix(trimmed, "-") {
		return "", false
	}
	idx := strings.Index(trimmed, ":")
	if idx == -1 {
		return "", false
	}
	key := strings.TrimSpace(trimmed[:idx])
	if key == "" {
		return "", false
	}
	return key, true
}

// encodeScalar renders v as a single YAML scalar line value, quoting when
// the plain form would be ambiguous.
func encodeScalar(v string) string {
	out, err := yaml.Marshal(v)
	if err != nil {
		return v
	}
	return strings.TrimRight(string(out), "\n")
}

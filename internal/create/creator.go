// Package create builds new document bodies either from a raw content
// string or from a structured section list, the way the teacher's
// ParseNewDocument built a Linear document body from either frontmatter or
// a first-heading title (§4.8). Here the direction is reversed: instead of
// extracting a title from body text, it assembles body text from sections.
package create

import (
	"fmt"
	"strings"
)

// Section is one ordered `{heading, anchor, body}` block in a structured
// document description.
type Section struct {
	Heading string
	Anchor  string
	Body    string
	Level   int // defaults to 2 if zero
}

// Spec describes a new document: either Content is set directly, or
// Sections (with an optional Snippet prelude) are rendered into a body.
// Title becomes the document's single H1.
type Spec struct {
	Title    string
	Content  string
	Snippet  string
	Sections []Section
}

// Render produces the full document body (no frontmatter) for spec. If
// Content is non-empty it is used verbatim after the title line; otherwise
// Sections are rendered in order, each as an ATX heading optionally
// preceded by an `<!-- ID: slug -->` anchor comment.
func Render(spec Spec) string {
	var b strings.Builder

	if spec.Title != "" {
		fmt.Fprintf(&b, "# %s\n\n", spec.Title)
	}

	if spec.Content != "" {
		b.WriteString(strings.TrimRight(spec.Content, "\n"))
		b.WriteString("\n")
		return b.String()
	}

	if spec.Snippet != "" {
		b.WriteString(strings.TrimRight(spec.Snippet, "\n"))
		b.WriteString("\n\n")
	}

	for i, s := range spec.Sections {
		if i > 0 {
			b.WriteString("\n")
		}
		level := s.Level
		if level == 0 {
			level = 2
		}
		if s.Anchor != "" {
			fmt.Fprintf(&b, "<!-- ID: %s -->\n", s.Anchor)
		}
		fmt.Fprintf(&b, "%s %s\n", strings.Repeat("#", level), s.Heading)
		if s.Body != "" {
			b.WriteString("\n")
			b.WriteString(strings.TrimRight(s.Body, "\n"))
			b.WriteString("\n")
		}
	}

	return b.String()
}

// TitleAndBody extracts a display title and remaining body from raw
// content, preferring an explicit frontmatter title (passed in by the
// caller after frontmatter.Parse) and falling back to the first H1 heading,
// then the first non-blank line (truncated), then "Untitled" — the same
// fallback order the teacher used for incoming Linear documents.
func TitleAndBody(frontmatterTitle string, body string) (title string, rest string) {
	if frontmatterTitle != "" {
		return frontmatterTitle, body
	}

	lines := strings.Split(body, "\n")
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "# ") {
			title = strings.TrimPrefix(trimmed, "# ")
			if i+1 < len(lines) {
				rest = strings.TrimLeft(strings.Join(lines[i+1:], "\n"), "\n")
			}
			return title, rest
		}
	}

	rest = body
	if len(lines) > 0 && strings.TrimSpace(lines[0]) != "" {
		title = strings.TrimSpace(lines[0])
		if len(title) > 50 {
			title = title[:50] + "..."
		}
	} else {
		title = "Untitled"
	}
	return title, rest
}

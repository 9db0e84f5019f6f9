package document

import (
	"regexp"
	"strings"

	"github.com/scribehq/dle/internal/dlerrors"
)

// LineKind classifies a single body line for the purposes of anchor and
// heading detection (§4.3).
type LineKind int

const (
	KindOther LineKind = iota
	KindFenceOpen
	KindFenceBody
	KindFenceClose
	KindATXHeading
	KindSetextUnderline
	KindAnchorComment
	KindBlank
)

var anchorCommentRe = regexp.MustCompile(`^<!--\s*ID:\s*([A-Za-z0-9_-]+)\s*-->\s*$`)
var atxHeadingRe = regexp.MustCompile(`^(#{1,6})(\s.*|)$`)
var setextUnderlineRe = regexp.MustCompile(`^(=+|-+)\s*$`)
var fenceRe = regexp.MustCompile("^(```+|~~~+)")

// Heading is one ATX (or Setext-derived) heading in the body.
type Heading struct {
	Level int
	Line  int // 1-based body line of the heading text itself
	Text  string
}

// Anchor is a resolved `<!-- ID: slug -->` comment paired with the heading
// it precedes.
type Anchor struct {
	Slug    string
	Line    int // line of the anchor comment itself
	Heading Heading
}

// FenceSpan is an inclusive [Start, End] body-line range occupied by a
// fenced code block, including its opening and closing fence lines.
type FenceSpan struct {
	Start, End int
}

// Index is the single-pass classification of a document body: its
// headings, anchors, and fenced code spans (§4.3).
type Index struct {
	Lines    *Lines
	Headings []Heading
	Anchors  []Anchor
	Fences   []FenceSpan
	kinds    []LineKind // 1-indexed, parallel to Lines
}

// BuildIndex performs the single pass over body described in §4.3.
func BuildIndex(body string) (*Index, error) {
	lines := Split(body)
	idx := &Index{Lines: lines, kinds: make([]LineKind, lines.Count()+1)}

	inFence := false
	var fenceMarker string
	fenceStart := 0

	pendingAnchor := "" // slug of an anchor comment awaiting its heading
	pendingAnchorLine := 0

	anchorLines := map[string][]int{} // slug -> all lines it appeared on

	for n := 1; n <= lines.Count(); n++ {
		line := lines.At(n)

		if inFence {
			if fenceCloses(line, fenceMarker) {
				idx.kinds[n] = KindFenceClose
				idx.Fences = append(idx.Fences, FenceSpan{Start: fenceStart, End: n})
				inFence = false
				fenceMarker = ""
				continue
			}
			idx.kinds[n] = KindFenceBody
			continue
		}

		if m := fenceRe.FindString(line); m != "" {
			idx.kinds[n] = KindFenceOpen
			inFence = true
			fenceMarker = m
			fenceStart = n
			continue
		}

		if strings.TrimSpace(line) == "" {
			idx.kinds[n] = KindBlank
			// A blank line also breaks anchor adjacency.
			pendingAnchor = ""
			continue
		}

		if m := anchorCommentRe.FindStringSubmatch(line); m != nil {
			idx.kinds[n] = KindAnchorComment
			slug := m[1]
			anchorLines[slug] = append(anchorLines[slug], n)
			pendingAnchor = slug
			pendingAnchorLine = n
			continue
		}

		if m := atxHeadingRe.FindStringSubmatch(line); m != nil {
			idx.kinds[n] = KindATXHeading
			level := len(m[1])
			text := strings.TrimSpace(m[2])
			h := Heading{Level: level, Line: n, Text: text}
			idx.Headings = append(idx.Headings, h)
			if pendingAnchor != "" {
				idx.Anchors = append(idx.Anchors, Anchor{Slug: pendingAnchor, Line: pendingAnchorLine, Heading: h})
				pendingAnchor = ""
			}
			continue
		}

		if n < lines.Count() && setextUnderlineRe.MatchString(lines.At(n+1)) {
			// This line is Setext title text; the underline is
			// classified when we reach it.
			idx.kinds[n] = KindOther
			continue
		}
		if setextUnderlineRe.MatchString(line) && n > 1 && idx.kinds[n-1] == KindOther && strings.TrimSpace(lines.At(n-1)) != "" {
			idx.kinds[n] = KindSetextUnderline
			level := 1
			if strings.HasPrefix(strings.TrimSpace(line), "-") {
				level = 2
			}
			text := strings.TrimSpace(lines.At(n - 1))
			h := Heading{Level: level, Line: n - 1, Text: text}
			idx.Headings = append(idx.Headings, h)
			if pendingAnchor != "" {
				idx.Anchors = append(idx.Anchors, Anchor{Slug: pendingAnchor, Line: pendingAnchorLine, Heading: h})
				pendingAnchor = ""
			}
			continue
		}

		idx.kinds[n] = KindOther
		// A non-blank, non-heading line breaks anchor adjacency: the
		// comment must immediately precede the heading.
		pendingAnchor = ""
	}

	for slug, occurrences := range anchorLines {
		if len(occurrences) > 1 {
			return nil, dlerrors.Newf(dlerrors.AmbiguousAnchor, "anchor %q appears more than once", slug).
				WithDiagnostics(map[string]any{"slug": slug, "lines": occurrences})
		}
	}

	return idx, nil
}

func fenceCloses(line, marker string) bool {
	trimmed := strings.TrimSpace(line)
	ch := marker[0]
	if trimmed == "" {
		return false
	}
	for _, r := range trimmed {
		if byte(r) != ch {
			return false
		}
	}
	return len(trimmed) >= len(marker)
}

// Kind returns the classified kind of body line n.
func (idx *Index) Kind(n int) LineKind {
	if n < 1 || n >= len(idx.kinds) {
		return KindOther
	}
	return idx.kinds[n]
}

// InFence reports whether body line n falls inside (or is a boundary of) a
// fenced code span.
func (idx *Index) InFence(n int) bool {
	for _, f := range idx.Fences {
		if n >= f.Start && n <= f.End {
			return true
		}
	}
	return false
}

// FindAnchor resolves slug to its Anchor, or returns ANCHOR_NOT_FOUND.
func (idx *Index) FindAnchor(slug string) (Anchor, error) {
	for _, a := range idx.Anchors {
		if a.Slug == slug {
			return a, nil
		}
	}
	return Anchor{}, dlerrors.Newf(dlerrors.AnchorNotFound, "no anchor with slug %q", slug).
		WithDiagnostics(map[string]any{"slug": slug})
}

// SectionRange returns the inclusive body-line range [heading, terminator]
// of the section anchored by slug, per §4.3: the section runs from its
// heading through the line before the next heading of level <= the
// section's own level (outside fenced code), or through end-of-body.
func (idx *Index) SectionRange(slug string) (start, end int, err error) {
	anchor, err := idx.FindAnchor(slug)
	if err != nil {
		return 0, 0, err
	}
	start = anchor.Heading.Line
	end = idx.Lines.Count()
	for _, h := range idx.Headings {
		if h.Line <= start {
			continue
		}
		if h.Level <= anchor.Heading.Level {
			end = h.Line - 1
			break
		}
	}
	return start, end, nil
}

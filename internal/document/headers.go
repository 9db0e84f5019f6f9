package document

import (
	"regexp"
	"strings"
)

var setextUnderlineStrictRe = regexp.MustCompile(`^(=+|-+)[ \t]*$`)

// atxMissingSpaceRe matches a `#` run glued directly to its text (`##Title`).
var atxMissingSpaceRe = regexp.MustCompile(`^(#{1,6})([^#\s].*)$`)

// NormalizeHeaders rewrites body per §4.5:
//   - ATX headings get exactly one space between the `#` run and their
//     text, and no trailing whitespace.
//   - Setext headings (text line followed by an underline of `=` or `-`)
//     are rewritten as ATX level-1 (`=`) or level-2 (`-`).
//   - Fenced code spans are left untouched.
//   - The transform is a fixed point: normalizing already-normalized
//     input returns it unchanged.
func NormalizeHeaders(body string) (string, error) {
	idx, err := BuildIndex(body)
	if err != nil {
		return "", err
	}
	lines := idx.Lines

	out := make([]string, 0, lines.Count())
	skip := make(map[int]bool)

	for n := 1; n <= lines.Count(); n++ {
		if skip[n] {
			continue
		}
		line := lines.At(n)

		if idx.InFence(n) {
			out = append(out, line)
			continue
		}

		if idx.Kind(n) == KindATXHeading {
			out = append(out, normalizeATX(line))
			continue
		}

		if m := atxMissingSpaceRe.FindStringSubmatch(line); m != nil {
			out = append(out, normalizeATX(m[1]+" "+m[2]))
			continue
		}

		if n < lines.Count() && isSetextTitleLine(idx, lines, n) {
			underline := lines.At(n + 1)
			level := 1
			if strings.HasPrefix(strings.TrimSpace(underline), "-") {
				level = 2
			}
			out = append(out, normalizeATX(strings.Repeat("#", level)+" "+strings.TrimSpace(line)))
			skip[n+1] = true
			continue
		}

		out = append(out, strings.TrimRight(line, " \t"))
	}

	joined := strings.Join(out, "\n")
	if lines.hasEOLPublic() {
		joined += "\n"
	}
	return joined, nil
}

func isSetextTitleLine(idx *Index, lines *Lines, n int) bool {
	if idx.InFence(n) || idx.InFence(n+1) {
		return false
	}
	if idx.Kind(n) != KindOther {
		return false
	}
	if strings.TrimSpace(lines.At(n)) == "" {
		return false
	}
	return setextUnderlineStrictRe.MatchString(lines.At(n + 1))
}

func normalizeATX(line string) string {
	trimmed := strings.TrimRight(line, " \t")
	m := atxHeadingRe.FindStringSubmatch(trimmed)
	if m == nil {
		return trimmed
	}
	hashes := m[1]
	text := strings.TrimSpace(m[2])
	if text == "" {
		return hashes
	}
	return hashes + " " + text
}

// hasEOLPublic exposes whether the body ended with a trailing newline,
// without making the field itself exported.
func (l *Lines) hasEOLPublic() bool { return l.hasEOL }

package document

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

var slugDropRe = regexp.MustCompile("[`*_~]")
var slugNonWordRe = regexp.MustCompile(`[^a-z0-9 _-]`)
var slugSpaceRunRe = regexp.MustCompile(`[ ]+`)

// Slugify reproduces GitHub's heading-anchor algorithm (§4.6): NFKD
// normalize, strip emoji, lowercase, strip Markdown emphasis markers and
// punctuation other than space/hyphen/underscore, collapse internal
// whitespace to single hyphens, and trim leading/trailing hyphens.
//
// NFKD decomposes accented Latin text into base letter + combining mark
// (e.g. "é" -> "e" + U+0301); stripMarksAndSymbols then drops the
// combining marks and symbol/pictographic runes (emoji, variation
// selectors, zero-width joiners) before the rest of the pipeline runs, so
// "Café ☕" and "Cafe" land on the same anchor the way github.com's
// renderer treats them.
func Slugify(heading string) string {
	s := norm.NFKD.String(heading)
	s = stripMarksAndSymbols(s)
	s = strings.ToLower(s)
	s = slugDropRe.ReplaceAllString(s, "")
	s = slugNonWordRe.ReplaceAllString(s, "")
	s = slugSpaceRunRe.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")
	return s
}

// stripMarksAndSymbols drops combining marks (category Mn, the accents
// NFKD split off their base letters) and symbol runes (categories So/Sk,
// which cover emoji and other pictographic symbols) plus the variation
// selector and zero-width-joiner code points emoji sequences use to
// combine, leaving plain transliterated text behind.
func stripMarksAndSymbols(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case unicode.Is(unicode.Mn, r):
			continue
		case unicode.Is(unicode.So, r), unicode.Is(unicode.Sk, r):
			continue
		case r == 0xFE0F, r == 0x200D:
			continue
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// SlugSequence assigns GitHub-style collision suffixes (`-1`, `-2`, ...) to
// a sequence of headings processed in document order, matching TOC and
// crosslink resolution so both consumers see identical identifiers for
// identical heading text.
func SlugSequence(headings []string) []string {
	seen := make(map[string]int, len(headings))
	out := make([]string, len(headings))
	for i, h := range headings {
		base := Slugify(h)
		count := seen[base]
		seen[base] = count + 1
		if count == 0 {
			out[i] = base
		} else {
			out[i] = base + "-" + strconv.Itoa(count)
		}
	}
	return out
}

package document

import (
	"regexp"
	"strings"
)

// LinkRef is one Markdown inline link found in a body, `[text](target)`.
type LinkRef struct {
	Text   string
	Target string
	Line   int
}

// BrokenLink pairs a LinkRef with the reason it failed to resolve.
type BrokenLink struct {
	LinkRef
	Reason string
}

var inlineLinkRe = regexp.MustCompile(`\[([^\]]*)\]\(([^)\s]+)\)`)

// FindLinks extracts every inline Markdown link in body, skipping fenced
// code spans, in document order.
func FindLinks(body string) ([]LinkRef, error) {
	idx, err := BuildIndex(body)
	if err != nil {
		return nil, err
	}
	var out []LinkRef
	for n := 1; n <= idx.Lines.Count(); n++ {
		if idx.InFence(n) {
			continue
		}
		for _, m := range inlineLinkRe.FindAllStringSubmatch(idx.Lines.At(n), -1) {
			out = append(out, LinkRef{Text: m[1], Target: m[2], Line: n})
		}
	}
	return out, nil
}

// ValidateCrosslinks checks every in-body anchor link (`#slug`) against the
// document's own heading slugs, computed with the same Slugify/SlugSequence
// algorithm used by GenerateTOC so the two never diverge (§4.7). Links
// targeting anything other than a bare `#fragment` (external URLs, relative
// file paths) are out of scope and always considered valid here.
func ValidateCrosslinks(body string) ([]BrokenLink, error) {
	idx, err := BuildIndex(body)
	if err != nil {
		return nil, err
	}
	links, err := FindLinks(body)
	if err != nil {
		return nil, err
	}

	texts := make([]string, len(idx.Headings))
	for i, h := range idx.Headings {
		texts[i] = h.Text
	}
	valid := make(map[string]bool, len(texts))
	for _, s := range SlugSequence(texts) {
		valid[s] = true
	}

	var broken []BrokenLink
	for _, link := range links {
		if !strings.HasPrefix(link.Target, "#") {
			continue
		}
		frag := strings.TrimPrefix(link.Target, "#")
		if !valid[frag] {
			broken = append(broken, BrokenLink{LinkRef: link, Reason: "no heading produces this anchor"})
		}
	}
	return broken, nil
}

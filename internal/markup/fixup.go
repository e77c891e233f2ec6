// Package markup rewrites Mobipocket-specific HTML into standard HTML and
// extracts plain text from it.
package markup

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// ImageScheme is the URL scheme of rewritten image references.
// "pdbrec:/N" points at the N-th image (1-based) of the book.
const ImageScheme = "pdbrec"

// fileposRe matches links that address their target by byte offset,
// e.g. <a filepos="00001234"> or <a href="x" filepos=1234>.
var fileposRe = regexp.MustCompile(`(?i)<a(?: href="[^"]*")?\s+filepos=['"]?(\d+)['"]?`)

// recindexRe matches <img recindex="3"> style image tags.
var recindexRe = regexp.MustCompile(`(?i)<img.*?recindex=['"]?(\d*)['"]?.*?>`)

// pagebreakRe matches the Mobipocket page break element.
var pagebreakRe = regexp.MustCompile(`(?i)<mbp:pagebreak\s*/?>`)

const pagebreakHTML = `<p style="page-break-after:always"></p>`

// Fix converts Mobipocket markup into HTML that a generic renderer can follow:
//
//  1. every byte offset referenced by a filepos link gets a named anchor
//     inserted at that offset, moved back to the start of a tag when the
//     offset falls inside one
//  2. filepos links become href="#N" fragment links
//  3. <img recindex="N"> becomes <img src="pdbrec:/N">
//  4. <mbp:pagebreak/> becomes a paragraph with page-break-after
//
// Offsets are byte offsets into text as it was before any rewriting.
func Fix(text string) string {
	ret := insertAnchors(text)
	ret = fileposRe.ReplaceAllString(ret, `<a href="#$1"`)
	ret = recindexRe.ReplaceAllString(ret, `<img src="`+ImageScheme+`:/$1">`)
	ret = pagebreakRe.ReplaceAllString(ret, pagebreakHTML)
	return ret
}

// anchorTarget is a distinct filepos value and its original spelling.
type anchorTarget struct {
	pos  int
	name string
}

// fileposTargets returns the distinct non-zero filepos targets in ascending order.
func fileposTargets(text string) []anchorTarget {
	seen := make(map[int]string)
	for _, m := range fileposRe.FindAllStringSubmatch(text, -1) {
		pos, err := strconv.Atoi(m[1])
		if err != nil || pos == 0 {
			continue
		}
		seen[pos] = m[1]
	}

	targets := make([]anchorTarget, 0, len(seen))
	for pos, name := range seen {
		targets = append(targets, anchorTarget{pos: pos, name: name})
	}
	sort.Slice(targets, func(i, j int) bool { return targets[i].pos < targets[j].pos })
	return targets
}

// insertAnchors places <a name="N"> at every filepos target.
func insertAnchors(text string) string {
	targets := fileposTargets(text)
	if len(targets) == 0 {
		return text
	}

	var b strings.Builder
	b.Grow(len(text) + len(targets)*32)

	// Targets are ascending, so each insertion point lies at or after the
	// previous one and the text can be copied through in a single pass.
	copied := 0
	for _, t := range targets {
		// Links pointing outside the document are ignored.
		if t.pos >= len(text) {
			continue
		}
		at := max(outsideTag(text, t.pos), copied)
		b.WriteString(text[copied:at])
		b.WriteString(`<a name="`)
		b.WriteString(t.name)
		b.WriteString(`">&nbsp;</a>`)
		copied = at
	}
	b.WriteString(text[copied:])
	return b.String()
}

// outsideTag returns pos, or the start of the tag enclosing pos.
func outsideTag(text string, pos int) int {
	for i := pos - 1; i >= 0; i-- {
		switch text[i] {
		case '>':
			return pos
		case '<':
			return i
		}
	}
	return pos
}

// ImageRef resolves a rewritten image source to a 0-based image index.
// It reports false for sources that are not pdbrec references.
func ImageRef(src string) (int, bool) {
	rest, ok := strings.CutPrefix(src, ImageScheme+":/")
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimPrefix(rest, "/"))
	if err != nil || n < 1 {
		return 0, false
	}
	return n - 1, true
}

// IsHTML reports whether text looks like an HTML document rather than plain text.
func IsHTML(text string) bool {
	head := text[:min(len(text), 1024)]
	return strings.Contains(strings.ToLower(head), "<html")
}

package markup

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// blockSelector lists elements that end a line in plain text output.
const blockSelector = "p, div, h1, h2, h3, h4, h5, h6, li, tr, blockquote, pre, dt, dd"

// PlainText strips markup from an HTML book, keeping one line per block
// element. Scripts, styles and the document head are dropped.
func PlainText(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("failed to parse HTML: %w", err)
	}

	doc.Find("script, style, head").Remove()
	doc.Find("br").ReplaceWithHtml("\n")
	doc.Find(blockSelector).AppendHtml("\n")

	var lines []string
	for _, line := range strings.Split(doc.Text(), "\n") {
		if fields := strings.Fields(line); len(fields) > 0 {
			lines = append(lines, strings.Join(fields, " "))
		}
	}
	return strings.Join(lines, "\n"), nil
}

// RecIndexes returns the recindex attribute of every image tag in
// Mobipocket markup, in document order. Values that are not positive
// integers are skipped.
func RecIndexes(html string) ([]int, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	var indexes []int
	doc.Find("img[recindex]").Each(func(i int, s *goquery.Selection) {
		v, _ := s.Attr("recindex")
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil || n < 1 {
			return
		}
		indexes = append(indexes, n)
	})
	return indexes, nil
}

// ImageRefs returns the 0-based image indexes referenced by images in
// HTML produced by Fix, in document order.
func ImageRefs(html string) ([]int, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	var refs []int
	doc.Find("img[src]").Each(func(i int, s *goquery.Selection) {
		src, _ := s.Attr("src")
		if idx, ok := ImageRef(src); ok {
			refs = append(refs, idx)
		}
	})
	return refs, nil
}

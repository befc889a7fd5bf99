// Package extract pulls outbound link references out of HTML documents.
package extract

import (
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// linkAttrs maps each element that can reference another resource to the
// attribute holding the reference.
var linkAttrs = map[string]string{
	"a":      "href",
	"audio":  "src",
	"embed":  "src",
	"iframe": "src",
	"img":    "src",
	"link":   "href",
	"object": "data",
	"script": "src",
	"source": "src",
	"video":  "src",
}

var selector = buildSelector()

func buildSelector() string {
	parts := make([]string, 0, len(linkAttrs))
	for tag, attr := range linkAttrs {
		parts = append(parts, tag+"["+attr+"]")
	}
	return strings.Join(parts, ", ")
}

// Links returns the trimmed, non-empty reference values found in r, in
// document order. Duplicates are kept; the caller dedupes after resolution.
func Links(r io.Reader) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	var links []string
	doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
		attr := linkAttrs[goquery.NodeName(s)]
		if attr == "" {
			return
		}
		value, ok := s.Attr(attr)
		if !ok {
			return
		}
		if value = strings.TrimSpace(value); value != "" {
			links = append(links, value)
		}
	})
	return links, nil
}

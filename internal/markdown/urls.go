package markdown

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// ImageURLs returns the destination of every image reference in md, in
// document order, deduplicated.
func ImageURLs(md string) []string {
	source := []byte(md)
	doc := goldmark.New().Parser().Parse(text.NewReader(source))

	seen := make(map[string]struct{})
	var urls []string
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		img, ok := n.(*ast.Image)
		if !ok {
			return ast.WalkContinue, nil
		}
		dest := string(img.Destination)
		if dest == "" {
			return ast.WalkContinue, nil
		}
		if _, dup := seen[dest]; !dup {
			seen[dest] = struct{}{}
			urls = append(urls, dest)
		}
		return ast.WalkContinue, nil
	})
	return urls
}

// ReplaceURLs substitutes every mapped image destination in md. Replacement
// targets the full parenthesized destination, so a mapped URL that is a
// prefix of another destination (same URL with a query string, say) never
// corrupts it. URLs missing from mapping are left untouched so the document
// degrades to the original ephemeral links.
func ReplaceURLs(md string, mapping map[string]string) string {
	if len(mapping) == 0 {
		return md
	}
	for _, u := range ImageURLs(md) {
		if stable, ok := mapping[u]; ok && stable != "" {
			md = strings.ReplaceAll(md, "("+u+")", "("+stable+")")
		}
	}
	return md
}

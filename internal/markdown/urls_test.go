package markdown

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestImageURLs(t *testing.T) {
	md := "intro text\n\n![one](https://a.example/x.png)\n\nmiddle\n\n![two](https://b.example/y.jpg)\n\n![dup](https://a.example/x.png)\n\n[link](https://not-an-image.example)"

	urls := ImageURLs(md)
	assert.Equal(t, []string{"https://a.example/x.png", "https://b.example/y.jpg"}, urls)
}

func TestImageURLsEmpty(t *testing.T) {
	assert.Empty(t, ImageURLs("plain text, no images"))
}

func TestReplaceURLs(t *testing.T) {
	md := "![a](https://tmp/one.png)\n\ntext\n\n![b](https://tmp/two.png)"
	mapping := map[string]string{
		"https://tmp/one.png": "https://cdn/articles/abc.png",
	}

	out := ReplaceURLs(md, mapping)
	assert.Contains(t, out, "https://cdn/articles/abc.png")
	assert.NotContains(t, out, "https://tmp/one.png")
	// unmapped URL keeps its original ephemeral link
	assert.Contains(t, out, "https://tmp/two.png")
}

func TestReplaceURLsNoMapping(t *testing.T) {
	md := "![a](https://tmp/one.png)"
	assert.Equal(t, md, ReplaceURLs(md, nil))
}

func TestReplaceURLsPrefixDestinationUntouched(t *testing.T) {
	// one destination is a prefix of another; only the exact match is swapped
	md := "![a](https://tmp/one.png)\n\n![b](https://tmp/one.png?v=2)"
	mapping := map[string]string{
		"https://tmp/one.png": "https://cdn/articles/abc.png",
	}

	out := ReplaceURLs(md, mapping)
	assert.Contains(t, out, "![a](https://cdn/articles/abc.png)")
	assert.Contains(t, out, "![b](https://tmp/one.png?v=2)")
}

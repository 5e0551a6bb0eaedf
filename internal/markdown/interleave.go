package markdown

import (
	"sort"
	"strings"
)

// CoverIndex marks the cover image slot. Cover images are surfaced as
// metadata only and must never be interleaved into the body.
const CoverIndex = -1

// Image is one generated illustration tied to a paragraph slot.
type Image struct {
	Index int    `json:"index"`
	URL   string `json:"url"`
}

// Paragraph is one planned paragraph slot: the plan's index plus its short
// reader-facing summary.
type Paragraph struct {
	Index int    `json:"index"`
	Text  string `json:"text"`
}

const defaultAlt = "illustration"

// fallbackStride is how many source lines go between images when the plan
// carries no paragraph structure.
const fallbackStride = 4

// Interleave assembles the final markdown document. When paragraphs is
// non-empty the paragraph summaries form the skeleton and each image is
// placed right after the paragraph whose plan index it carries. When the
// planner degraded (no paragraphs), the original text is preserved verbatim
// at the line level and images are distributed every few lines, leftovers
// appended at the end so nothing is lost.
//
// Output is deterministic: placement depends only on the explicit ordering
// of the inputs. Images with the cover index are ignored.
func Interleave(original string, images []Image, paragraphs []Paragraph) string {
	body := make([]Image, 0, len(images))
	for _, img := range images {
		if img.Index == CoverIndex || img.URL == "" {
			continue
		}
		body = append(body, img)
	}
	sort.SliceStable(body, func(i, j int) bool { return body[i].Index < body[j].Index })

	if len(paragraphs) > 0 {
		return interleavePlanned(body, paragraphs)
	}
	return interleaveFallback(original, body)
}

func interleavePlanned(images []Image, paragraphs []Paragraph) string {
	used := make([]bool, len(images))
	parts := make([]string, 0, len(paragraphs)*2)
	for _, p := range paragraphs {
		parts = append(parts, p.Text)
		for i, img := range images {
			if used[i] || img.Index != p.Index {
				continue
			}
			parts = append(parts, "!["+defaultAlt+"]("+img.URL+")")
			used[i] = true
			break
		}
	}
	// Unmatched images (duplicate or out-of-range plan indices) are dropped;
	// the plan's index values are untrusted model output.
	return strings.Join(parts, "\n\n")
}

func interleaveFallback(original string, images []Image) string {
	lines := strings.Split(original, "\n")
	out := make([]string, 0, len(lines)+3*len(images))
	next := 0
	for i, line := range lines {
		out = append(out, line)
		if (i+1)%fallbackStride == 0 && next < len(images) {
			out = append(out, imageBlock(images[next].URL)...)
			next++
		}
	}
	for ; next < len(images); next++ {
		out = append(out, imageBlock(images[next].URL)...)
	}
	return strings.Join(out, "\n")
}

func imageBlock(url string) []string {
	return []string{"", "![" + defaultAlt + "](" + url + ")", ""}
}

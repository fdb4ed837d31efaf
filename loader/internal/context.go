package internal

import (
	"strings"
)

const (
	DefaultContextChars = 500
	ellipsis            = "..."
)

// TrimBefore keeps the last limit characters of s, marking the cut with a
// leading ellipsis.
func TrimBefore(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return ellipsis + string(r[len(r)-limit:])
}

// TrimAfter keeps the first limit characters of s, marking the cut with a
// trailing ellipsis.
func TrimAfter(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit]) + ellipsis
}

// GeometricContext splits blocks into those entirely above and entirely
// below bbox. Blocks overlapping the image vertically belong to neither side.
func GeometricContext(blocks []TextBlock, bbox Rect, limit int) (before, after string) {
	var above, below []string
	for _, b := range blocks {
		switch {
		case b.Rect.Y1 < bbox.Y0:
			above = append(above, strings.TrimSpace(b.Text))
		case b.Rect.Y0 > bbox.Y1:
			below = append(below, strings.TrimSpace(b.Text))
		}
	}
	return TrimBefore(strings.Join(above, " "), limit), TrimAfter(strings.Join(below, " "), limit)
}

// SplitPoint returns the character offset at which the text of a page with
// total images is divided for image idx (0-based).
func SplitPoint(textLen, total, idx int) int {
	if total <= 1 {
		return textLen / 2
	}
	return (idx + 1) * textLen / (total + 1)
}

// ProportionalContext is used when an image has no known position on the page.
func ProportionalContext(pageText string, total, idx, limit int) (before, after string) {
	if strings.TrimSpace(pageText) == "" {
		return "", ""
	}
	r := []rune(pageText)
	split := SplitPoint(len(r), total, idx)

	before = TrimBefore(string(r[:split]), limit)
	after = TrimAfter(string(r[split:]), limit)
	return strings.TrimSpace(before), strings.TrimSpace(after)
}

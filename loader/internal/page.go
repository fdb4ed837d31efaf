package internal

import (
	"context"
	"sort"
	"strings"
)

// Rect is a box in page space with the origin at the top-left corner and
// Y growing downwards.
type Rect struct {
	X0, Y0, X1, Y1 float64
}

type TextBlock struct {
	Text string
	Rect Rect
}

// PageImage is one embedded raster image. BBox is nil when its placement on
// the page could not be determined.
type PageImage struct {
	Name     string
	FileType string
	Width    int
	Height   int
	Data     []byte
	BBox     *Rect
}

type Page struct {
	Number int // 1-indexed
	Text   string
	Blocks []TextBlock
	Images []PageImage
}

// PageSource opens a paginated document and returns its page model.
type PageSource interface {
	LoadPages(ctx context.Context, path string) ([]Page, error)
}

// ReadingText returns the page text with blocks ordered top-to-bottom,
// left-to-right. Pages without block geometry fall back to the plain text.
func (p Page) ReadingText() string {
	if len(p.Blocks) == 0 {
		return p.Text
	}
	blocks := make([]TextBlock, len(p.Blocks))
	copy(blocks, p.Blocks)
	sort.SliceStable(blocks, func(i, j int) bool {
		if blocks[i].Rect.Y0 != blocks[j].Rect.Y0 {
			return blocks[i].Rect.Y0 < blocks[j].Rect.Y0
		}
		return blocks[i].Rect.X0 < blocks[j].Rect.X0
	})

	parts := make([]string, 0, len(blocks))
	for _, b := range blocks {
		if t := strings.TrimSpace(b.Text); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " ")
}

// DocumentText cleans every page and joins them in page order.
func DocumentText(pages []Page) string {
	parts := make([]string, 0, len(pages))
	for _, p := range pages {
		if t := CleanText(p.ReadingText()); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " ")
}

// CleanText collapses every run of whitespace to a single space and trims the result.
func CleanText(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

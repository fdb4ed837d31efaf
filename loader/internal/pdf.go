package internal

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// PDFSource builds the page model of a PDF. pdfcpu enumerates the embedded
// images; text, text blocks and image placement come from the content
// streams read with ledongthuc/pdf.
type PDFSource struct {
	logger *slog.Logger
}

func NewPDFSource(logger *slog.Logger) *PDFSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &PDFSource{logger: logger}
}

func (s *PDFSource) LoadPages(ctx context.Context, path string) ([]Page, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	pctx, err := api.ReadValidateAndOptimize(f, model.NewDefaultConfiguration())
	if err != nil {
		return nil, fmt.Errorf("read pdf %s: %w", path, err)
	}

	layouts := s.readLayouts(path)

	pages := make([]Page, 0, pctx.PageCount)
	for nr := 1; nr <= pctx.PageCount; nr++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page := Page{Number: nr}
		layout := layouts[nr]
		if layout != nil {
			page.Text = layout.text
			page.Blocks = layout.blocks
		}

		images, err := pdfcpu.ExtractPageImages(pctx, nr, false)
		if err != nil {
			s.logger.Warn("[PDF] failed to enumerate page images", "path", path, "page", nr, "error", err)
		}
		page.Images = s.pageImages(images, layout)
		pages = append(pages, page)
	}
	return pages, nil
}

func (s *PDFSource) pageImages(images map[int]model.Image, layout *pageLayout) []PageImage {
	objNrs := make([]int, 0, len(images))
	for nr := range images {
		objNrs = append(objNrs, nr)
	}
	sort.Ints(objNrs)

	out := make([]PageImage, 0, len(objNrs))
	for _, nr := range objNrs {
		img := images[nr]
		if img.Reader == nil {
			continue
		}
		data, err := io.ReadAll(img)
		if err != nil {
			s.logger.Warn("[PDF] failed to read image", "object", nr, "error", err)
			continue
		}
		pi := PageImage{
			Name:     img.Name,
			FileType: img.FileType,
			Width:    img.Width,
			Height:   img.Height,
			Data:     data,
		}
		if layout != nil {
			if r, ok := layout.placements[img.Name]; ok {
				pi.BBox = &r
			}
		}
		out = append(out, pi)
	}
	return out
}

type pageLayout struct {
	text       string
	blocks     []TextBlock
	placements map[string]Rect
}

// readLayouts never fails: a document whose content streams cannot be
// interpreted simply yields pages without text geometry.
func (s *PDFSource) readLayouts(path string) map[int]*pageLayout {
	layouts := make(map[int]*pageLayout)

	f, r, err := pdf.Open(path)
	if err != nil {
		s.logger.Warn("[PDF] text layer unavailable", "path", path, "error", err)
		return layouts
	}
	defer f.Close()

	for nr := 1; nr <= r.NumPage(); nr++ {
		p := r.Page(nr)
		if p.V.IsNull() {
			continue
		}
		layout, err := readLayout(p)
		if err != nil {
			s.logger.Warn("[PDF] failed to read page layout", "path", path, "page", nr, "error", err)
		}
		layouts[nr] = layout
	}
	return layouts
}

func readLayout(p pdf.Page) (layout *pageLayout, err error) {
	layout = &pageLayout{placements: map[string]Rect{}}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed page content: %v", r)
		}
	}()

	height := pageHeight(p)

	layout.blocks = groupBlocks(p.Content().Text, height)
	if len(layout.blocks) == 0 {
		if text, terr := p.GetPlainText(nil); terr == nil {
			layout.text = text
		}
	} else {
		layout.text = Page{Blocks: layout.blocks}.ReadingText()
	}
	layout.placements = imagePlacements(p, height)
	return layout, nil
}

func pageHeight(p pdf.Page) float64 {
	box := p.V.Key("MediaBox")
	if box.Kind() != pdf.Array || box.Len() < 4 {
		return 792
	}
	return box.Index(3).Float64() - box.Index(1).Float64()
}

// groupBlocks joins text runs into lines by baseline and lines into blocks
// separated by a vertical gap larger than the line's font size.
func groupBlocks(runs []pdf.Text, height float64) []TextBlock {
	type line struct {
		y, size float64
		x0, x1  float64
		sb      strings.Builder
	}
	var lines []*line
	var cur *line
	for _, t := range runs {
		size := t.FontSize
		if size <= 0 {
			size = 1
		}
		if cur == nil || math.Abs(cur.y-t.Y) > size/2 {
			cur = &line{y: t.Y, size: size, x0: t.X, x1: t.X + t.W}
			lines = append(lines, cur)
		}
		cur.sb.WriteString(t.S)
		cur.x0 = math.Min(cur.x0, t.X)
		cur.x1 = math.Max(cur.x1, t.X+t.W)
		cur.size = math.Max(cur.size, size)
	}

	var blocks []TextBlock
	var prev *line
	for _, l := range lines {
		text := strings.TrimSpace(l.sb.String())
		if text == "" {
			continue
		}
		top := height - (l.y + l.size)
		bottom := height - l.y
		if prev != nil && len(blocks) > 0 {
			last := &blocks[len(blocks)-1]
			if gap := top - last.Rect.Y1; gap >= -prev.size && gap <= prev.size {
				last.Text += " " + text
				last.Rect.X0 = math.Min(last.Rect.X0, l.x0)
				last.Rect.X1 = math.Max(last.Rect.X1, l.x1)
				last.Rect.Y1 = math.Max(last.Rect.Y1, bottom)
				prev = l
				continue
			}
		}
		blocks = append(blocks, TextBlock{Text: text, Rect: Rect{X0: l.x0, Y0: top, X1: l.x1, Y1: bottom}})
		prev = l
	}
	return blocks
}

// matrix is a PDF transformation matrix [a b c d e f].
type matrix [6]float64

var identity = matrix{1, 0, 0, 1, 0, 0}

func (m matrix) mul(n matrix) matrix {
	return matrix{
		m[0]*n[0] + m[1]*n[2],
		m[0]*n[1] + m[1]*n[3],
		m[2]*n[0] + m[3]*n[2],
		m[2]*n[1] + m[3]*n[3],
		m[4]*n[0] + m[5]*n[2] + n[4],
		m[4]*n[1] + m[5]*n[3] + n[5],
	}
}

func (m matrix) apply(x, y float64) (float64, float64) {
	return m[0]*x + m[2]*y + m[4], m[1]*x + m[3]*y + m[5]
}

// imagePlacements tracks the graphics state of the page content and records
// where each image XObject is painted. An image painted more than once keeps
// its first placement.
func imagePlacements(p pdf.Page, height float64) map[string]Rect {
	xobjects := p.Resources().Key("XObject")
	placements := map[string]Rect{}
	ctm := identity
	var stack []matrix

	interpret := func(strm pdf.Value) {
		pdf.Interpret(strm, func(stk *pdf.Stack, op string) {
			n := stk.Len()
			args := make([]pdf.Value, n)
			for i := n - 1; i >= 0; i-- {
				args[i] = stk.Pop()
			}
			switch op {
			case "q":
				stack = append(stack, ctm)
			case "Q":
				if len(stack) > 0 {
					ctm = stack[len(stack)-1]
					stack = stack[:len(stack)-1]
				}
			case "cm":
				if len(args) != 6 {
					return
				}
				var m matrix
				for i := range m {
					m[i] = args[i].Float64()
				}
				ctm = m.mul(ctm)
			case "Do":
				if len(args) != 1 {
					return
				}
				name := args[0].Name()
				if xobjects.Key(name).Key("Subtype").Name() != "Image" {
					return
				}
				if _, seen := placements[name]; seen {
					return
				}
				placements[name] = unitSquare(ctm, height)
			}
		})
	}

	contents := p.V.Key("Contents")
	if contents.Kind() == pdf.Array {
		for i := 0; i < contents.Len(); i++ {
			interpret(contents.Index(i))
		}
	} else {
		interpret(contents)
	}
	return placements
}

func unitSquare(ctm matrix, height float64) Rect {
	xs := make([]float64, 0, 4)
	ys := make([]float64, 0, 4)
	for _, c := range [][2]float64{{0, 0}, {1, 0}, {0, 1}, {1, 1}} {
		x, y := ctm.apply(c[0], c[1])
		xs = append(xs, x)
		ys = append(ys, y)
	}
	minX, maxX := bounds(xs)
	minY, maxY := bounds(ys)
	return Rect{X0: minX, Y0: height - maxY, X1: maxX, Y1: height - minY}
}

func bounds(v []float64) (lo, hi float64) {
	lo, hi = v[0], v[0]
	for _, x := range v[1:] {
		lo = math.Min(lo, x)
		hi = math.Max(hi, x)
	}
	return lo, hi
}

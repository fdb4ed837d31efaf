package internal

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePages struct {
	pages []Page
	err   error
}

func (f fakePages) LoadPages(context.Context, string) ([]Page, error) {
	return f.pages, f.err
}

func pngBytes(t *testing.T, w, h int, c color.Color) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestImageFilename(t *testing.T) {
	assert.Equal(t, "manual_pg3_img2.png", ImageFilename("/docs/manual.pdf", 3, 2))
	assert.Equal(t, "a.b_pg1_img1.png", ImageFilename("a.b.pdf", 1, 1))
}

func TestExtractSkipsSmallImages(t *testing.T) {
	opaque := color.NRGBA{R: 200, A: 255}
	pages := []Page{{
		Number: 1,
		Text:   "left side text right side text",
		Images: []PageImage{
			{Name: "Im1", Data: pngBytes(t, 8, 8, opaque)},
			{Name: "Im2", Data: pngBytes(t, 200, 200, opaque)},
		},
	}}
	out := t.TempDir()

	images, err := NewExtractor(fakePages{pages: pages}, 500, nil).Extract(context.Background(), "doc.pdf", out)
	require.NoError(t, err)

	require.Len(t, images, 1)
	img := images[0]
	assert.Equal(t, "doc_pg1_img2.png", img.Filename)
	assert.Equal(t, filepath.Join(out, "doc_pg1_img2.png"), img.FilePath)
	assert.Equal(t, 1, img.PageNumber)
	assert.Equal(t, 2, img.ImageNumber)
	assert.Equal(t, 200, img.Width)
	assert.Equal(t, 200, img.Height)
	assert.NotEmpty(t, img.ContextBefore)
	assert.NotEmpty(t, img.ContextAfter)

	saved, err := os.ReadFile(img.FilePath)
	require.NoError(t, err)
	cfg, format, err := image.DecodeConfig(bytes.NewReader(saved))
	require.NoError(t, err)
	assert.Equal(t, "png", format)
	assert.Equal(t, 200, cfg.Width)

	_, err = os.Stat(filepath.Join(out, "doc_pg1_img1.png"))
	assert.True(t, os.IsNotExist(err))
}

func TestExtractDeclaredSizeSkipsWithoutDecoding(t *testing.T) {
	pages := []Page{{
		Number: 1,
		Images: []PageImage{{Name: "Im1", Width: 4, Height: 400, Data: []byte("not an image")}},
	}}

	images, err := NewExtractor(fakePages{pages: pages}, 500, nil).Extract(context.Background(), "doc.pdf", t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, images)
}

func TestExtractUsesGeometry(t *testing.T) {
	pages := []Page{{
		Number: 2,
		Text:   "unused",
		Blocks: []TextBlock{
			{Text: "Figure heading", Rect: Rect{Y0: 10, Y1: 20}},
			{Text: "Figure 1: pump assembly", Rect: Rect{Y0: 320, Y1: 330}},
		},
		Images: []PageImage{{
			Name: "Im1",
			Data: pngBytes(t, 50, 50, color.NRGBA{B: 255, A: 128}),
			BBox: &Rect{X0: 0, Y0: 100, X1: 300, Y1: 300},
		}},
	}}

	images, err := NewExtractor(fakePages{pages: pages}, 500, nil).Extract(context.Background(), "/tmp/manual.pdf", t.TempDir())
	require.NoError(t, err)

	require.Len(t, images, 1)
	assert.Equal(t, "manual_pg2_img1.png", images[0].Filename)
	assert.Equal(t, "Figure heading", images[0].ContextBefore)
	assert.Equal(t, "Figure 1: pump assembly", images[0].ContextAfter)
}

func TestExtractProportionalUsesBlockText(t *testing.T) {
	pages := []Page{{
		Number: 1,
		Text:   "Above textBelow text",
		Blocks: []TextBlock{
			{Text: "Below text", Rect: Rect{Y0: 580, Y1: 592}},
			{Text: "Above text", Rect: Rect{Y0: 60, Y1: 72}},
		},
		Images: []PageImage{{Name: "Im1", Data: pngBytes(t, 20, 20, color.Gray{Y: 90})}},
	}}

	images, err := NewExtractor(fakePages{pages: pages}, 500, nil).Extract(context.Background(), "doc.pdf", t.TempDir())
	require.NoError(t, err)

	require.Len(t, images, 1)
	assert.Equal(t, "Above text", images[0].ContextBefore)
	assert.Equal(t, "Below text", images[0].ContextAfter)
}

func TestExtractSkipsUndecodable(t *testing.T) {
	pages := []Page{{
		Number: 1,
		Images: []PageImage{
			{Name: "Im1", Data: []byte("garbage")},
			{Name: "Im2", Data: pngBytes(t, 20, 20, color.Gray{Y: 30})},
		},
	}}

	images, err := NewExtractor(fakePages{pages: pages}, 500, nil).Extract(context.Background(), "doc.pdf", t.TempDir())
	require.NoError(t, err)

	require.Len(t, images, 1)
	assert.Equal(t, 2, images[0].ImageNumber)
}

func TestExtractNoImages(t *testing.T) {
	out := filepath.Join(t.TempDir(), "nested", "images")

	images, err := NewExtractor(fakePages{pages: []Page{{Number: 1, Text: "text only"}}}, 0, nil).Extract(context.Background(), "doc.pdf", out)
	require.NoError(t, err)
	assert.Empty(t, images)

	info, err := os.Stat(out)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestExtractPropagatesSourceError(t *testing.T) {
	boom := errors.New("broken pdf")

	_, err := NewExtractor(fakePages{err: boom}, 500, nil).Extract(context.Background(), "doc.pdf", t.TempDir())
	assert.ErrorIs(t, err, boom)
}

func TestDecodeRasterFlattensTransparency(t *testing.T) {
	img, err := DecodeRaster(pngBytes(t, 12, 12, color.NRGBA{A: 0}))
	require.NoError(t, err)

	rgba, ok := img.(*image.RGBA)
	require.True(t, ok)
	assert.True(t, rgba.Opaque())
	r, g, b, _ := rgba.At(3, 3).RGBA()
	assert.Equal(t, uint32(0xffff), r)
	assert.Equal(t, uint32(0xffff), g)
	assert.Equal(t, uint32(0xffff), b)
}

func TestDecodeRasterKeepsOpaque(t *testing.T) {
	img, err := DecodeRaster(pngBytes(t, 12, 12, color.NRGBA{G: 255, A: 255}))
	require.NoError(t, err)

	r, g, b, a := img.At(5, 5).RGBA()
	assert.Equal(t, []uint32{0, 0xffff, 0, 0xffff}, []uint32{r, g, b, a})
}

func TestDecodeRasterRejectsGarbage(t *testing.T) {
	_, err := DecodeRaster([]byte("nope"))
	assert.Error(t, err)
}

func TestDocumentText(t *testing.T) {
	pages := []Page{
		{Number: 1, Blocks: []TextBlock{
			{Text: "second line", Rect: Rect{X0: 0, Y0: 50}},
			{Text: "right", Rect: Rect{X0: 200, Y0: 10}},
			{Text: "left", Rect: Rect{X0: 0, Y0: 10}},
		}},
		{Number: 2, Text: "  plain\n\ttext  "},
		{Number: 3},
	}

	assert.Equal(t, "left right second line plain text", DocumentText(pages))
}

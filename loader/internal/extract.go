package internal

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"ragchat/types"
)

const MinImageSide = 10

// Extractor saves the images of a document and derives the text around each.
type Extractor struct {
	source       PageSource
	contextChars int
	logger       *slog.Logger
}

func NewExtractor(source PageSource, contextChars int, logger *slog.Logger) *Extractor {
	if contextChars <= 0 {
		contextChars = DefaultContextChars
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{
		source:       source,
		contextChars: contextChars,
		logger:       logger,
	}
}

// ImageFilename is deterministic: {stem}_pg{page}_img{index}.png, both 1-indexed.
func ImageFilename(documentPath string, page, index int) string {
	stem := strings.TrimSuffix(filepath.Base(documentPath), filepath.Ext(documentPath))
	return fmt.Sprintf("%s_pg%d_img%d.png", stem, page, index)
}

// Extract writes one PNG per retained image into outputDir and returns them
// in page order. Images below MinImageSide on either side are dropped. The
// image number is the image's position among all images on its page,
// dropped ones included.
func (e *Extractor) Extract(ctx context.Context, documentPath, outputDir string) ([]types.ExtractedImage, error) {
	pages, err := e.source.LoadPages(ctx, documentPath)
	if err != nil {
		return nil, err
	}
	return e.ExtractPages(ctx, documentPath, pages, outputDir)
}

// ExtractPages is Extract over pages that are already loaded.
func (e *Extractor) ExtractPages(ctx context.Context, documentPath string, pages []Page, outputDir string) ([]types.ExtractedImage, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("create image folder: %w", err)
	}

	var out []types.ExtractedImage
	for _, page := range pages {
		for idx, pi := range page.Images {
			if err := ctx.Err(); err != nil {
				return out, err
			}
			if pi.Width > 0 && pi.Height > 0 && (pi.Width < MinImageSide || pi.Height < MinImageSide) {
				continue
			}

			img, err := DecodeRaster(pi.Data)
			if err != nil {
				e.logger.Warn("[EXTRACT] skipping undecodable image", "document", documentPath, "page", page.Number, "image", idx+1, "format", pi.FileType, "error", err)
				continue
			}
			w, h := img.Bounds().Dx(), img.Bounds().Dy()
			if w < MinImageSide || h < MinImageSide {
				continue
			}

			data, err := EncodePNG(img)
			if err != nil {
				return out, err
			}
			name := ImageFilename(documentPath, page.Number, idx+1)
			path := filepath.Join(outputDir, name)
			if err := os.WriteFile(path, data, 0644); err != nil {
				return out, fmt.Errorf("save image %s: %w", name, err)
			}

			var before, after string
			if pi.BBox != nil {
				before, after = GeometricContext(page.Blocks, *pi.BBox, e.contextChars)
			} else {
				before, after = ProportionalContext(page.ReadingText(), len(page.Images), idx, e.contextChars)
			}

			out = append(out, types.ExtractedImage{
				Filename:      name,
				FilePath:      path,
				PageNumber:    page.Number,
				ImageNumber:   idx + 1,
				ContextBefore: before,
				ContextAfter:  after,
				Width:         w,
				Height:        h,
			})
		}
	}
	e.logger.Info("[EXTRACT] images extracted", "document", documentPath, "count", len(out))
	return out, nil
}

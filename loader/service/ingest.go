package service

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"ragchat/index"
	"ragchat/loader/internal"
	"ragchat/model"
	"ragchat/store"
	"ragchat/types"
)

const DefaultBatchSize = 96

// Ingestion steps named in PartialIngestionError.
const (
	StepIndexText     = "index text"
	StepMarkText      = "mark vectorized"
	StepExtractImages = "extract images"
	StepEmbedImages   = "embed images"
	StepIndexImages   = "index images"
	StepSaveImages    = "save images"
)

type Describer interface {
	Describe(ctx context.Context, img types.ExtractedImage) (string, error)
}

type Summarizer interface {
	Summarize(ctx context.Context, text string) (string, error)
}

// ImageEmbedder fuses a description with an image file into one vector.
type ImageEmbedder interface {
	Embed(ctx context.Context, text, imagePath string) ([]float32, error)
}

type Options struct {
	ImageFolder  string
	ChunkSize    int
	ChunkOverlap int
	BatchSize    int
	ContextChars int
	Workers      int
}

type Deps struct {
	Store      store.DocumentStorer
	Text       index.TextIndex
	Images     index.VectorIndex
	Embedder   ImageEmbedder
	Describer  Describer
	Summarizer Summarizer
	Tokenizer  model.Tokenizer
	// Pages defaults to the PDF reader.
	Pages internal.PageSource
}

// Result reports what one ingestion committed.
type Result struct {
	Document        *types.Document
	Chunks          int
	Images          int
	Vectorized      bool
	ImagesProcessed bool
}

type Ingestor struct {
	opts      Options
	deps      Deps
	pages     internal.PageSource
	chunker   *internal.Chunker
	extractor *internal.Extractor
	logger    *slog.Logger
}

func NewIngestor(opts Options, deps Deps, logger *slog.Logger) (*Ingestor, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	chunker, err := internal.NewChunker(deps.Tokenizer,
		internal.WithMaxTokens(opts.ChunkSize),
		internal.WithOverlap(opts.ChunkOverlap))
	if err != nil {
		return nil, err
	}

	pages := deps.Pages
	if pages == nil {
		pages = internal.NewPDFSource(logger)
	}
	return &Ingestor{
		opts:      opts,
		deps:      deps,
		pages:     pages,
		chunker:   chunker,
		extractor: internal.NewExtractor(pages, opts.ContextChars, logger),
		logger:    logger,
	}, nil
}

// RecordID returns "<namespace>-chunk-<32 hex chars>". Every call yields a
// new id, so a retried upsert never overwrites an earlier attempt.
func RecordID(namespace string) string {
	u := uuid.New()
	return namespace + "-chunk-" + hex.EncodeToString(u[:])
}

// Summarize cleans the whole document text and asks for a short gist.
func (s *Ingestor) Summarize(ctx context.Context, path string) (string, error) {
	pages, err := s.pages.LoadPages(ctx, path)
	if err != nil {
		return "", err
	}
	return s.deps.Summarizer.Summarize(ctx, internal.DocumentText(pages))
}

// Ingest indexes a document's text and images without touching metadata rows.
func (s *Ingestor) Ingest(ctx context.Context, path string) (*Result, error) {
	return s.ingest(ctx, path, nil)
}

// Upload summarizes a document, records it and ingests it. A failed summary
// leaves the description empty; the document is still indexed.
func (s *Ingestor) Upload(ctx context.Context, path string) (*Result, error) {
	summary, err := s.Summarize(ctx, path)
	if err != nil {
		s.logger.Error("[INGEST] document summary failed", "path", path, "error", err)
		summary = ""
	}

	doc, err := s.deps.Store.InsertDocument(ctx, path, summary, false)
	if err != nil {
		return nil, fmt.Errorf("save document: %w", err)
	}
	return s.ingest(ctx, path, doc)
}

func (s *Ingestor) ingest(ctx context.Context, path string, doc *types.Document) (*Result, error) {
	res := &Result{Document: doc}
	fail := func(step string, err error) (*Result, error) {
		s.logger.Error("[INGEST] step failed", "path", path, "step", step, "error", err)
		return res, &types.PartialIngestionError{
			Document:        path,
			Step:            step,
			Vectorized:      res.Vectorized,
			ImagesProcessed: res.ImagesProcessed,
			Err:             err,
		}
	}

	pages, err := s.pages.LoadPages(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("read document %s: %w", path, err)
	}

	source := filepath.Base(path)
	chunks := s.chunker.Chunks(source, internal.DocumentText(pages), func() string {
		return RecordID(types.NamespaceDocuments)
	})
	if n, err := s.indexText(ctx, chunks); err != nil {
		if n == 0 {
			return nil, fmt.Errorf("index text of %s: %w", path, err)
		}
		return fail(StepIndexText, err)
	}
	res.Chunks = len(chunks)
	res.Vectorized = true
	if doc != nil {
		if err := s.deps.Store.MarkVectorized(ctx, doc.ID, true); err != nil {
			return fail(StepMarkText, err)
		}
		doc.Vectorized = true
	}
	s.logger.Info("[INGEST] text indexed", "path", path, "chunks", len(chunks))

	images, err := s.extractor.ExtractPages(ctx, path, pages, s.opts.ImageFolder)
	if err != nil {
		return fail(StepExtractImages, err)
	}

	records, err := s.embedImages(ctx, images)
	if err != nil {
		return fail(StepEmbedImages, err)
	}
	if len(records) > 0 {
		if err := s.deps.Images.Upsert(ctx, types.NamespaceImages, records); err != nil {
			return fail(StepIndexImages, err)
		}
	}
	res.Images = len(records)

	if doc != nil {
		for i, img := range images {
			_, err := s.deps.Store.InsertImage(ctx, types.Image{
				DocumentID:  doc.ID,
				Name:        img.Filename,
				Path:        img.FilePath,
				Description: records[i].Metadata["description"].(string),
				PageNo:      img.PageNumber,
			})
			if err != nil {
				return fail(StepSaveImages, err)
			}
		}
		if err := s.deps.Store.MarkImagesProcessed(ctx, doc.ID, true); err != nil {
			return fail(StepSaveImages, err)
		}
		doc.ImagesProcessed = true
	}
	res.ImagesProcessed = true
	s.logger.Info("[INGEST] images indexed", "path", path, "images", len(records))
	return res, nil
}

// indexText upserts in batches and returns how many records were committed
// before a failure.
func (s *Ingestor) indexText(ctx context.Context, chunks []types.DocumentChunk) (int, error) {
	done := 0
	for start := 0; start < len(chunks); start += s.opts.BatchSize {
		end := min(start+s.opts.BatchSize, len(chunks))
		batch := make([]types.TextRecord, 0, end-start)
		for _, c := range chunks[start:end] {
			batch = append(batch, types.TextRecord{ID: c.ID, Text: c.Text, Source: c.Source})
		}
		if err := s.deps.Text.UpsertRecords(ctx, types.NamespaceDocuments, batch); err != nil {
			return done, err
		}
		done += len(batch)
	}
	return done, nil
}

// embedImages describes and embeds images concurrently. An image whose
// description fails is still indexed on its pixels alone.
func (s *Ingestor) embedImages(ctx context.Context, images []types.ExtractedImage) ([]types.IndexRecord, error) {
	records := make([]types.IndexRecord, len(images))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Workers)
	for i, img := range images {
		g.Go(func() error {
			desc, err := s.deps.Describer.Describe(gctx, img)
			if err != nil {
				if errors.Is(err, context.Canceled) {
					return err
				}
				s.logger.Warn("[INGEST] image description failed", "image", img.Filename, "error", err)
				desc = ""
			}
			vec, err := s.deps.Embedder.Embed(gctx, desc, img.FilePath)
			if err != nil {
				return fmt.Errorf("embed %s: %w", img.Filename, err)
			}
			records[i] = types.IndexRecord{
				ID:     RecordID(types.NamespaceImages),
				Vector: vec,
				Metadata: map[string]any{
					"description": desc,
					"source":      img.Filename,
					"pageNo":      img.PageNumber,
					"imageNo":     img.ImageNumber,
				},
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return records, nil
}

package service

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragchat/index"
	"ragchat/loader/internal"
	"ragchat/types"
)

type pagesFunc func() ([]internal.Page, error)

func (f pagesFunc) LoadPages(context.Context, string) ([]internal.Page, error) { return f() }

type wordTokenizer struct {
	mu    sync.Mutex
	vocab []string
	ids   map[string]int
}

func (w *wordTokenizer) Encode(text string) []int {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.ids == nil {
		w.ids = map[string]int{}
	}
	var out []int
	for _, word := range strings.Fields(text) {
		id, ok := w.ids[word]
		if !ok {
			id = len(w.vocab)
			w.vocab = append(w.vocab, word)
			w.ids[word] = id
		}
		out = append(out, id)
	}
	return out
}

func (w *wordTokenizer) Decode(tokens []int) string {
	w.mu.Lock()
	defer w.mu.Unlock()
	words := make([]string, len(tokens))
	for i, t := range tokens {
		words[i] = w.vocab[t]
	}
	return strings.Join(words, " ")
}

type fakeStore struct {
	mu              sync.Mutex
	docs            []*types.Document
	images          []types.Image
	vectorized      bool
	imagesProcessed bool
}

func (s *fakeStore) InsertDocument(_ context.Context, path, description string, vectorized bool) (*types.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc := &types.Document{ID: int64(len(s.docs) + 1), Path: path, Description: description, Vectorized: vectorized}
	s.docs = append(s.docs, doc)
	return doc, nil
}

func (s *fakeStore) GetDocumentByPath(context.Context, string) (*types.Document, error) {
	return nil, types.ErrNotFound
}

func (s *fakeStore) ListDocuments(context.Context) ([]types.Document, error) { return nil, nil }

func (s *fakeStore) MarkVectorized(_ context.Context, _ int64, v bool) error {
	s.vectorized = v
	return nil
}

func (s *fakeStore) MarkImagesProcessed(_ context.Context, _ int64, v bool) error {
	s.imagesProcessed = v
	return nil
}

func (s *fakeStore) InsertImage(_ context.Context, img types.Image) (*types.Image, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.images = append(s.images, img)
	return &img, nil
}

func (s *fakeStore) GetAllDocumentDescriptions(context.Context) ([]string, error) { return nil, nil }
func (s *fakeStore) GetAllDocumentPaths(context.Context) ([]string, error)        { return nil, nil }

type fakeText struct {
	batches [][]types.TextRecord
	failAt  int // 1-based batch that fails, 0 never
}

func (f *fakeText) UpsertRecords(_ context.Context, ns string, records []types.TextRecord) error {
	if ns != types.NamespaceDocuments {
		return errors.New("wrong namespace")
	}
	if f.failAt == len(f.batches)+1 {
		return types.NewExternalServiceError("index", "upsert", errors.New("payload too large"))
	}
	f.batches = append(f.batches, records)
	return nil
}

func (f *fakeText) SearchText(context.Context, string, string, int) ([]types.Hit, error) {
	return nil, nil
}

type failingIndex struct{}

func (failingIndex) Upsert(context.Context, string, []types.IndexRecord) error {
	return types.NewExternalServiceError("index", "upsert", errors.New("down"))
}

func (failingIndex) Query(context.Context, string, []float32, int) ([]types.Hit, error) {
	return nil, nil
}

type fakeDescriber struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (d *fakeDescriber) Describe(context.Context, types.ExtractedImage) (string, error) {
	d.mu.Lock()
	d.calls++
	d.mu.Unlock()
	if d.err != nil {
		return "", d.err
	}
	return "a labelled diagram", nil
}

type fakeEmbedder struct {
	mu    sync.Mutex
	texts []string
}

func (e *fakeEmbedder) Embed(_ context.Context, text, _ string) ([]float32, error) {
	e.mu.Lock()
	e.texts = append(e.texts, text)
	e.mu.Unlock()
	return []float32{1, 0}, nil
}

type fakeSummarizer struct {
	err error
}

func (s fakeSummarizer) Summarize(_ context.Context, text string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return "Summary of " + strconv.Itoa(len(strings.Fields(text))) + " words", nil
}

type fixture struct {
	store     *fakeStore
	text      *fakeText
	images    *index.Memory
	describer *fakeDescriber
	embedder  *fakeEmbedder
	deps      Deps
	opts      Options
}

func newFixture(t *testing.T, pages []internal.Page) *fixture {
	t.Helper()
	f := &fixture{
		store:     &fakeStore{},
		text:      &fakeText{},
		images:    index.NewMemory(),
		describer: &fakeDescriber{},
		embedder:  &fakeEmbedder{},
	}
	f.deps = Deps{
		Store:      f.store,
		Text:       f.text,
		Images:     f.images,
		Embedder:   f.embedder,
		Describer:  f.describer,
		Summarizer: fakeSummarizer{},
		Tokenizer:  &wordTokenizer{},
		Pages:      pagesFunc(func() ([]internal.Page, error) { return pages, nil }),
	}
	f.opts = Options{
		ImageFolder:  t.TempDir(),
		ChunkSize:    250,
		ChunkOverlap: 100,
		Workers:      2,
	}
	return f
}

func (f *fixture) ingestor(t *testing.T) *Ingestor {
	t.Helper()
	ing, err := NewIngestor(f.opts, f.deps, nil)
	require.NoError(t, err)
	return ing
}

func pageWords(from, n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = "word" + strconv.Itoa(from+i)
	}
	return strings.Join(parts, " ")
}

func pngOf(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = 0x80
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestUploadTextOnlyDocument(t *testing.T) {
	pages := []internal.Page{
		{Number: 1, Text: pageWords(0, 300)},
		{Number: 2, Text: pageWords(300, 300)},
	}
	f := newFixture(t, pages)

	res, err := f.ingestor(t).Upload(context.Background(), "/docs/manual.pdf")
	require.NoError(t, err)

	require.Len(t, f.store.docs, 1)
	assert.Equal(t, "Summary of 600 words", f.store.docs[0].Description)
	assert.Equal(t, "/docs/manual.pdf", f.store.docs[0].Path)

	require.Len(t, f.text.batches, 1)
	assert.Len(t, f.text.batches[0], 4)
	assert.Equal(t, 4, res.Chunks)
	for _, r := range f.text.batches[0] {
		assert.Equal(t, "manual.pdf", r.Source)
		assert.Regexp(t, regexp.MustCompile(`^documents-chunk-[0-9a-f]{32}$`), r.ID)
	}

	assert.Zero(t, f.images.Len(types.NamespaceImages))
	assert.Zero(t, res.Images)
	assert.Zero(t, f.describer.calls)
	assert.True(t, res.Vectorized)
	assert.True(t, res.ImagesProcessed)
	assert.True(t, f.store.vectorized)
	assert.True(t, f.store.imagesProcessed)
}

func TestUploadKeepsLargeImagesOnly(t *testing.T) {
	pages := []internal.Page{{
		Number: 1,
		Text:   "Figure one shows the pump. The filter sits below it.",
		Images: []internal.PageImage{
			{Name: "Im1", Data: pngOf(t, 8, 8)},
			{Name: "Im2", Data: pngOf(t, 200, 200)},
		},
	}}
	f := newFixture(t, pages)

	res, err := f.ingestor(t).Upload(context.Background(), "/docs/manual.pdf")
	require.NoError(t, err)

	assert.Equal(t, 1, f.describer.calls)
	assert.Equal(t, 1, res.Images)
	assert.Equal(t, 1, f.images.Len(types.NamespaceImages))

	hits, err := f.images.Query(context.Background(), types.NamespaceImages, []float32{1, 0}, 5)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "manual_pg1_img2.png", hits[0].String("source"))
	assert.Equal(t, "a labelled diagram", hits[0].String("description"))
	assert.Equal(t, 1, hits[0].Metadata["pageNo"])
	assert.Equal(t, 2, hits[0].Metadata["imageNo"])
	assert.Regexp(t, regexp.MustCompile(`^images-chunk-[0-9a-f]{32}$`), hits[0].ID)

	require.Len(t, f.store.images, 1)
	assert.Equal(t, "manual_pg1_img2.png", f.store.images[0].Name)
	assert.Equal(t, int64(1), f.store.images[0].DocumentID)
	assert.True(t, f.store.imagesProcessed)
}

func TestDescriptionFailureFallsBackToImageOnly(t *testing.T) {
	pages := []internal.Page{{Number: 1, Text: "text", Images: []internal.PageImage{{Data: pngOf(t, 50, 50)}}}}
	f := newFixture(t, pages)
	f.describer.err = types.NewExternalServiceError("openai", "complete", errors.New("429"))

	res, err := f.ingestor(t).Ingest(context.Background(), "doc.pdf")
	require.NoError(t, err)

	assert.Equal(t, 1, res.Images)
	assert.Equal(t, []string{""}, f.embedder.texts)
	assert.Nil(t, res.Document)
	assert.Empty(t, f.store.images)
}

func TestImageIndexFailureIsPartial(t *testing.T) {
	pages := []internal.Page{{Number: 1, Text: pageWords(0, 50), Images: []internal.PageImage{{Data: pngOf(t, 50, 50)}}}}
	f := newFixture(t, pages)
	f.deps.Images = failingIndex{}

	res, err := f.ingestor(t).Upload(context.Background(), "doc.pdf")

	var partial *types.PartialIngestionError
	require.ErrorAs(t, err, &partial)
	assert.ErrorIs(t, err, types.ErrPartialIngestion)
	assert.ErrorIs(t, err, types.ErrExternalService)
	assert.Equal(t, StepIndexImages, partial.Step)
	assert.True(t, partial.Vectorized)
	assert.False(t, partial.ImagesProcessed)
	assert.True(t, res.Vectorized)
	assert.True(t, f.store.vectorized)
	assert.False(t, f.store.imagesProcessed)
}

func TestTextBatchFailureAfterFirstBatchIsPartial(t *testing.T) {
	pages := []internal.Page{{Number: 1, Text: pageWords(0, 600)}}
	f := newFixture(t, pages)
	f.opts.BatchSize = 2
	f.text.failAt = 2

	_, err := f.ingestor(t).Ingest(context.Background(), "doc.pdf")

	var partial *types.PartialIngestionError
	require.ErrorAs(t, err, &partial)
	assert.Equal(t, StepIndexText, partial.Step)
	assert.False(t, partial.Vectorized)
	assert.Len(t, f.text.batches, 1)
}

func TestFirstTextBatchFailureIsNotPartial(t *testing.T) {
	f := newFixture(t, []internal.Page{{Number: 1, Text: pageWords(0, 10)}})
	f.text.failAt = 1

	_, err := f.ingestor(t).Ingest(context.Background(), "doc.pdf")
	require.Error(t, err)
	assert.NotErrorIs(t, err, types.ErrPartialIngestion)
	assert.ErrorIs(t, err, types.ErrExternalService)
}

func TestBatchesRespectLimit(t *testing.T) {
	f := newFixture(t, []internal.Page{{Number: 1, Text: pageWords(0, 2000)}})
	f.opts.ChunkSize = 10
	f.opts.ChunkOverlap = 0
	f.opts.BatchSize = 96

	res, err := f.ingestor(t).Ingest(context.Background(), "doc.pdf")
	require.NoError(t, err)

	assert.Equal(t, 200, res.Chunks)
	require.Len(t, f.text.batches, 3)
	assert.Len(t, f.text.batches[0], 96)
	assert.Len(t, f.text.batches[1], 96)
	assert.Len(t, f.text.batches[2], 8)
}

func TestSummaryFailureStillIngests(t *testing.T) {
	f := newFixture(t, []internal.Page{{Number: 1, Text: pageWords(0, 20)}})
	f.deps.Summarizer = fakeSummarizer{err: errors.New("llm down")}

	res, err := f.ingestor(t).Upload(context.Background(), "doc.pdf")
	require.NoError(t, err)

	assert.Empty(t, f.store.docs[0].Description)
	assert.True(t, res.Vectorized)
}

func TestNewIngestorRejectsOverlap(t *testing.T) {
	f := newFixture(t, nil)
	f.opts.ChunkOverlap = f.opts.ChunkSize

	_, err := NewIngestor(f.opts, f.deps, nil)
	assert.ErrorIs(t, err, types.ErrConfiguration)
}

func TestRecordIDIsUnique(t *testing.T) {
	a, b := RecordID("documents"), RecordID("documents")
	assert.NotEqual(t, a, b)
	assert.True(t, strings.HasPrefix(a, "documents-chunk-"))
}

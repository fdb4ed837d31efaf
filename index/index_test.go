package index

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragchat/types"
)

// letterEmbedder maps text onto counts of the letters a, b and c.
type letterEmbedder struct{}

func (letterEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if text == "fail" {
		return nil, errors.New("embedder down")
	}
	return []float32{
		float32(strings.Count(text, "a")),
		float32(strings.Count(text, "b")),
		float32(strings.Count(text, "c")),
	}, nil
}

func TestMemoryQueryRanksByCosine(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	require.NoError(t, m.Upsert(ctx, "documents", []types.IndexRecord{
		{ID: "x", Vector: []float32{1, 0}},
		{ID: "y", Vector: []float32{1, 1}},
		{ID: "z", Vector: []float32{0, 1}},
		{ID: "odd", Vector: []float32{1, 0, 0}},
	}))
	require.NoError(t, m.Upsert(ctx, "images", []types.IndexRecord{{ID: "i", Vector: []float32{1, 0}}}))

	hits, err := m.Query(ctx, "documents", []float32{2, 0}, 2)
	require.NoError(t, err)

	require.Len(t, hits, 2)
	assert.Equal(t, "x", hits[0].ID)
	assert.InDelta(t, 1.0, hits[0].Score, 1e-9)
	assert.Equal(t, "y", hits[1].ID)
	assert.Equal(t, 4, m.Len("documents"))
	assert.Equal(t, 1, m.Len("images"))
}

func TestMemoryQueryIsStable(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	require.NoError(t, m.Upsert(ctx, "ns", []types.IndexRecord{
		{ID: "b", Vector: []float32{1, 0}},
		{ID: "a", Vector: []float32{1, 0}},
		{ID: "c", Vector: []float32{1, 0}},
	}))

	first, err := m.Query(ctx, "ns", []float32{1, 0}, 3)
	require.NoError(t, err)
	for range 5 {
		again, err := m.Query(ctx, "ns", []float32{1, 0}, 3)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
	assert.Equal(t, "a", first[0].ID)
}

func TestMemoryUpsertOverwrites(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	require.NoError(t, m.Upsert(ctx, "ns", []types.IndexRecord{{ID: "r", Vector: []float32{1, 0}, Metadata: map[string]any{"v": 1}}}))
	require.NoError(t, m.Upsert(ctx, "ns", []types.IndexRecord{{ID: "r", Vector: []float32{0, 1}, Metadata: map[string]any{"v": 2}}}))

	hits, err := m.Query(ctx, "ns", []float32{0, 1}, 5)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, 2, hits[0].Metadata["v"])

	assert.ErrorIs(t, m.Upsert(ctx, "ns", []types.IndexRecord{{Vector: []float32{1}}}), types.ErrInvalidArgument)
}

func TestMemoryQueryEmpty(t *testing.T) {
	hits, err := NewMemory().Query(context.Background(), "none", []float32{1}, 3)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestManagedRoundTrip(t *testing.T) {
	mem := NewMemory()
	idx := NewManaged(letterEmbedder{}, mem, 2, nil)
	ctx := context.Background()

	require.NoError(t, idx.UpsertRecords(ctx, types.NamespaceDocuments, []types.TextRecord{
		{ID: "1", Text: "aaa", Source: "doc.pdf"},
		{ID: "2", Text: "bbb", Source: "doc.pdf"},
		{ID: "3", Text: "ccc", Source: "other.pdf"},
	}))

	hits, err := idx.SearchText(ctx, types.NamespaceDocuments, "bb", 1)
	require.NoError(t, err)

	require.Len(t, hits, 1)
	assert.Equal(t, "2", hits[0].ID)
	assert.Equal(t, "bbb", hits[0].String("text"))
	assert.Equal(t, "doc.pdf", hits[0].String("source"))
}

func TestManagedUpsertFailsAsAWhole(t *testing.T) {
	mem := NewMemory()
	idx := NewManaged(letterEmbedder{}, mem, 4, nil)

	err := idx.UpsertRecords(context.Background(), "ns", []types.TextRecord{
		{ID: "1", Text: "abc"},
		{ID: "2", Text: "fail"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "embed record 2")
	assert.Equal(t, 0, mem.Len("ns"))
}

func TestCosine(t *testing.T) {
	assert.InDelta(t, 0.0, Cosine([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.InDelta(t, -1.0, Cosine([]float32{1, 0}, []float32{-3, 0}), 1e-9)
	assert.Equal(t, 0.0, Cosine([]float32{0, 0}, []float32{1, 1}))
}

func TestPgVectorSchema(t *testing.T) {
	schema := NewPgVector(nil, "image_chunks", 512, nil).schema()

	assert.Contains(t, schema, `CREATE TABLE IF NOT EXISTS "image_chunks"`)
	assert.Contains(t, schema, "embedding vector(512) NOT NULL")
	assert.Contains(t, schema, `"idx_image_chunks_embedding_hnsw" ON "image_chunks" USING hnsw (embedding vector_cosine_ops)`)
	assert.Contains(t, schema, `DROP INDEX IF EXISTS "idx_image_chunks_embedding";`)
	assert.NotContains(t, schema, "ivfflat")
}

func TestPgVectorUpsertRejectsDimension(t *testing.T) {
	p := NewPgVector(nil, "text_chunks", 3, nil)
	err := p.Upsert(context.Background(), types.NamespaceDocuments, []types.IndexRecord{{ID: "a", Vector: []float32{1, 2}}})
	assert.ErrorIs(t, err, types.ErrInvalidArgument)
}

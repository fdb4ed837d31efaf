package index

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"ragchat/model"
	"ragchat/types"
)

// VectorIndex stores vectors in named namespaces and answers nearest
// neighbour queries ranked by cosine similarity.
type VectorIndex interface {
	Upsert(ctx context.Context, namespace string, records []types.IndexRecord) error
	Query(ctx context.Context, namespace string, vector []float32, topK int) ([]types.Hit, error)
}

// TextIndex embeds on write and on search, the way managed indexes with an
// integrated embedding model do.
type TextIndex interface {
	UpsertRecords(ctx context.Context, namespace string, records []types.TextRecord) error
	SearchText(ctx context.Context, namespace, query string, topK int) ([]types.Hit, error)
}

// Managed implements TextIndex over a VectorIndex and a text embedder.
type Managed struct {
	embedder model.TextEmbedder
	index    VectorIndex
	workers  int
	logger   *slog.Logger
}

func NewManaged(embedder model.TextEmbedder, index VectorIndex, workers int, logger *slog.Logger) *Managed {
	if workers < 1 {
		workers = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Managed{
		embedder: embedder,
		index:    index,
		workers:  workers,
		logger:   logger,
	}
}

func (m *Managed) UpsertRecords(ctx context.Context, namespace string, records []types.TextRecord) error {
	out := make([]types.IndexRecord, len(records))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.workers)
	for i, r := range records {
		g.Go(func() error {
			vec, err := m.embedder.Embed(gctx, r.Text)
			if err != nil {
				return fmt.Errorf("embed record %s: %w", r.ID, err)
			}
			out[i] = types.IndexRecord{
				ID:     r.ID,
				Vector: vec,
				Metadata: map[string]any{
					"text":   r.Text,
					"source": r.Source,
				},
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return m.index.Upsert(ctx, namespace, out)
}

func (m *Managed) SearchText(ctx context.Context, namespace, query string, topK int) ([]types.Hit, error) {
	vec, err := m.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}
	hits, err := m.index.Query(ctx, namespace, vec, topK)
	if err != nil {
		return nil, err
	}
	m.logger.Debug("[SEARCH] text query", "namespace", namespace, "hits", len(hits))
	return hits, nil
}

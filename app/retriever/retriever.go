package retriever

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"ragchat/index"
	"ragchat/types"
)

const (
	DefaultTextTopK  = 3
	DefaultImageTopK = 5
)

// QueryEmbedder embeds a text-only query in the image index space.
type QueryEmbedder interface {
	EmbedText(ctx context.Context, text string) ([]float32, error)
}

type Retriever struct {
	text   index.TextIndex
	images index.VectorIndex
	embed  QueryEmbedder
	logger *slog.Logger
}

func New(text index.TextIndex, images index.VectorIndex, embed QueryEmbedder, logger *slog.Logger) *Retriever {
	if logger == nil {
		logger = slog.Default()
	}
	return &Retriever{
		text:   text,
		images: images,
		embed:  embed,
		logger: logger,
	}
}

// QueryText returns the top hits of the documents namespace labelled
// "Answer N:" in rank order. Overlapping chunks are kept as they are.
func (r *Retriever) QueryText(ctx context.Context, query string, topK int) (string, error) {
	if topK <= 0 {
		topK = DefaultTextTopK
	}
	hits, err := r.text.SearchText(ctx, types.NamespaceDocuments, query, topK)
	if err != nil {
		return "", err
	}
	r.logger.Info("[RETRIEVER] text query", "hits", len(hits))
	return FormatAnswers(hits), nil
}

func FormatAnswers(hits []types.Hit) string {
	answers := make([]string, len(hits))
	for i, h := range hits {
		answers[i] = fmt.Sprintf("Answer %d: %s \n", i+1, h.String("text"))
	}
	return strings.Join(answers, "\n")
}

// QueryImage returns the source file name of the best image match. topK is
// the candidate pool; only rank one is returned.
func (r *Retriever) QueryImage(ctx context.Context, query string, topK int) (string, error) {
	if topK <= 0 {
		topK = DefaultImageTopK
	}
	vec, err := r.embed.EmbedText(ctx, query)
	if err != nil {
		return "", err
	}
	hits, err := r.images.Query(ctx, types.NamespaceImages, vec, topK)
	if err != nil {
		return "", err
	}
	if len(hits) == 0 || hits[0].String("source") == "" {
		return "", fmt.Errorf("image for %q: %w", query, types.ErrNotFound)
	}
	r.logger.Info("[RETRIEVER] image query", "source", hits[0].String("source"), "score", hits[0].Score)
	return hits[0].String("source"), nil
}

package internal

import (
	"fmt"
	"iter"

	"ragchat/model"
	"ragchat/types"
)

const (
	DefaultMaxTokens = 250
	DefaultOverlap   = 100
)

// Chunker splits text into windows of at most maxTokens tokens. Each window
// starts maxTokens-overlap tokens after the previous one.
type Chunker struct {
	tok       model.Tokenizer
	maxTokens int
	overlap   int
}

type ChunkerOption func(*Chunker)

func WithMaxTokens(n int) ChunkerOption {
	return func(c *Chunker) { c.maxTokens = n }
}

func WithOverlap(n int) ChunkerOption {
	return func(c *Chunker) { c.overlap = n }
}

// NewChunker rejects configurations that cannot make forward progress
// (overlap >= maxTokens) instead of clamping them.
func NewChunker(tok model.Tokenizer, opts ...ChunkerOption) (*Chunker, error) {
	c := &Chunker{
		tok:       tok,
		maxTokens: DefaultMaxTokens,
		overlap:   DefaultOverlap,
	}
	for _, opt := range opts {
		opt(c)
	}

	if tok == nil {
		return nil, fmt.Errorf("%w: chunker needs a tokenizer", types.ErrConfiguration)
	}
	if c.maxTokens <= 0 {
		return nil, fmt.Errorf("%w: max tokens must be positive, got %d", types.ErrConfiguration, c.maxTokens)
	}
	if c.overlap < 0 || c.overlap >= c.maxTokens {
		return nil, fmt.Errorf("%w: overlap must be in [0, %d), got %d", types.ErrConfiguration, c.maxTokens, c.overlap)
	}
	return c, nil
}

func (c *Chunker) MaxTokens() int { return c.maxTokens }
func (c *Chunker) Overlap() int   { return c.overlap }

// Chunk tokenizes text once and yields the decoded windows lazily. The
// returned sequence can be ranged over any number of times.
func (c *Chunker) Chunk(text string) iter.Seq[string] {
	tokens := c.tok.Encode(text)
	step := c.maxTokens - c.overlap

	return func(yield func(string) bool) {
		for start := 0; start < len(tokens); start += step {
			end := min(start+c.maxTokens, len(tokens))
			if !yield(c.tok.Decode(tokens[start:end])) {
				return
			}
		}
	}
}

// Chunks materializes Chunk into DocumentChunks. ids is called once per chunk.
func (c *Chunker) Chunks(source, text string, ids func() string) []types.DocumentChunk {
	var out []types.DocumentChunk
	for s := range c.Chunk(text) {
		out = append(out, types.DocumentChunk{
			ID:      ids(),
			Source:  source,
			Text:    s,
			Ordinal: len(out),
		})
	}
	return out
}

// Chunk is a one-shot helper around NewChunker.
func Chunk(tok model.Tokenizer, text string, maxTokens, overlap int) (iter.Seq[string], error) {
	c, err := NewChunker(tok, WithMaxTokens(maxTokens), WithOverlap(overlap))
	if err != nil {
		return nil, err
	}
	return c.Chunk(text), nil
}

package model

import (
	"context"
	"fmt"
	"math"
	"os"
	"strings"

	"ragchat/types"
)

const (
	DefaultImageWeight   = 0.4
	DefaultTextWeight    = 0.6
	DefaultClipMaxTokens = 75
)

// Multimodal embeds text, an image, or a weighted fusion of both. Each
// modality is unit-normalized before fusion; the fused vector is not
// normalized again, so its norm is generally below one and the index must
// compare by cosine.
type Multimodal struct {
	enc         Encoder
	counter     TokenCounter
	count       func(string) int
	maxTokens   int
	imageWeight float64
	textWeight  float64
	readFile    func(string) ([]byte, error)
}

type MultimodalOption func(*Multimodal)

// WithTokenCounter sets a local counter for the text token budget. It is
// only used when the encoder cannot count tokens itself. The budget search
// assumes the count never decreases as words are appended.
func WithTokenCounter(count func(string) int) MultimodalOption {
	return func(m *Multimodal) { m.count = count }
}

func WithMaxTokens(n int) MultimodalOption {
	return func(m *Multimodal) { m.maxTokens = n }
}

func WithWeights(image, text float64) MultimodalOption {
	return func(m *Multimodal) {
		m.imageWeight = image
		m.textWeight = text
	}
}

func WithFileReader(read func(string) ([]byte, error)) MultimodalOption {
	return func(m *Multimodal) { m.readFile = read }
}

func NewMultimodal(enc Encoder, opts ...MultimodalOption) (*Multimodal, error) {
	m := &Multimodal{
		enc:         enc,
		count:       func(s string) int { return len(strings.Fields(s)) },
		maxTokens:   DefaultClipMaxTokens,
		imageWeight: DefaultImageWeight,
		textWeight:  DefaultTextWeight,
		readFile:    os.ReadFile,
	}
	if tc, ok := enc.(TokenCounter); ok {
		m.counter = tc
	}
	for _, opt := range opts {
		opt(m)
	}
	if err := validateWeights(m.imageWeight, m.textWeight); err != nil {
		return nil, err
	}
	if m.maxTokens <= 0 {
		return nil, fmt.Errorf("%w: token budget must be positive", types.ErrConfiguration)
	}
	return m, nil
}

func validateWeights(image, text float64) error {
	if image < 0 || text < 0 || math.Abs(image+text-1) > 1e-6 {
		return fmt.Errorf("%w: fusion weights must be non-negative and sum to 1, got %v+%v", types.ErrConfiguration, image, text)
	}
	return nil
}

// Embed fuses with the configured weights.
func (m *Multimodal) Embed(ctx context.Context, text, imagePath string) ([]float32, error) {
	return m.EmbedWeighted(ctx, text, imagePath, m.imageWeight, m.textWeight)
}

// EmbedText embeds a text-only query.
func (m *Multimodal) EmbedText(ctx context.Context, text string) ([]float32, error) {
	return m.Embed(ctx, text, "")
}

// EmbedWeighted treats an empty text or path as absent.
func (m *Multimodal) EmbedWeighted(ctx context.Context, text, imagePath string, imageWeight, textWeight float64) ([]float32, error) {
	if text == "" && imagePath == "" {
		return nil, fmt.Errorf("%w: embed needs text or an image", types.ErrInvalidArgument)
	}

	var imageVec, textVec []float32
	if imagePath != "" {
		data, err := m.readFile(imagePath)
		if err != nil {
			return nil, fmt.Errorf("read image %s: %w", imagePath, err)
		}
		v, err := m.enc.EncodeImage(ctx, data)
		if err != nil {
			return nil, err
		}
		imageVec = Normalize(v)
	}
	if text != "" {
		budgeted, err := m.budget(ctx, text)
		if err != nil {
			return nil, err
		}
		v, err := m.enc.EncodeText(ctx, budgeted)
		if err != nil {
			return nil, err
		}
		textVec = Normalize(v)
	}

	switch {
	case imageVec != nil && textVec != nil:
		return Fuse(imageVec, textVec, imageWeight, textWeight)
	case imageVec != nil:
		return imageVec, nil
	default:
		return textVec, nil
	}
}

// Fuse returns imageWeight*image + textWeight*text elementwise.
func Fuse(image, text []float32, imageWeight, textWeight float64) ([]float32, error) {
	if len(image) != len(text) {
		return nil, fmt.Errorf("%w: image vector has %d dims, text vector %d", types.ErrInvalidArgument, len(image), len(text))
	}
	out := make([]float32, len(image))
	for i := range image {
		out[i] = float32(imageWeight*float64(image[i]) + textWeight*float64(text[i]))
	}
	return out, nil
}

// budget truncates text to the encoder's token budget, counting with the
// encoder's own tokenizer when it has one.
func (m *Multimodal) budget(ctx context.Context, text string) (string, error) {
	if m.counter == nil {
		return TruncateToBudget(text, m.maxTokens, m.count), nil
	}
	var countErr error
	count := func(s string) int {
		if countErr != nil {
			return m.maxTokens + 1
		}
		n, err := m.counter.CountTokens(ctx, s)
		if err != nil {
			countErr = err
			return m.maxTokens + 1
		}
		return n
	}
	if count(text) <= m.maxTokens {
		return text, countErr
	}
	out := TruncateToBudget(text, m.maxTokens, count)
	return out, countErr
}

// TruncateToBudget returns the longest word prefix of text whose token count
// is at most maxTokens. When no non-empty prefix fits it falls back to the
// first maxTokens characters.
func TruncateToBudget(text string, maxTokens int, count func(string) int) string {
	words := strings.Fields(text)
	low, high := 0, len(words)
	best := ""
	for low <= high {
		mid := (low + high) / 2
		candidate := strings.Join(words[:mid], " ")
		if count(candidate) <= maxTokens {
			best = candidate
			low = mid + 1
		} else {
			high = mid - 1
		}
	}
	if best != "" {
		return best
	}
	r := []rune(text)
	if len(r) > maxTokens {
		r = r[:maxTokens]
	}
	return string(r)
}

package model

import (
	"fmt"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// Tokenizer turns text into token ids and back.
type Tokenizer interface {
	Encode(text string) []int
	Decode(tokens []int) string
}

const DefaultEncoding = "cl100k_base"

type Tiktoken struct {
	enc *tiktoken.Tiktoken
}

var (
	encOnce sync.Once
	encErr  error
	encDef  *Tiktoken
)

// NewTiktoken loads the cl100k_base vocabulary once per process.
func NewTiktoken() (*Tiktoken, error) {
	encOnce.Do(func() {
		enc, err := tiktoken.GetEncoding(DefaultEncoding)
		if err != nil {
			encErr = fmt.Errorf("load %s encoding: %w", DefaultEncoding, err)
			return
		}
		encDef = &Tiktoken{enc: enc}
	})
	return encDef, encErr
}

func (t *Tiktoken) Encode(text string) []int {
	return t.enc.Encode(text, nil, nil)
}

func (t *Tiktoken) Decode(tokens []int) string {
	return t.enc.Decode(tokens)
}

// Count returns the number of tokens in text.
func (t *Tiktoken) Count(text string) int {
	return len(t.Encode(text))
}

package model

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragchat/types"
)

func TestDescriberSendsContextAndImage(t *testing.T) {
	var got Request
	llm := CompleterFunc(func(_ context.Context, req Request) (string, error) {
		got = req
		return "  A cross-section of a pump.\n", nil
	})
	d := NewDescriber(llm, Profile{Model: "gpt-4o"})
	d.readFile = func(string) ([]byte, error) { return []byte("pngdata"), nil }

	out, err := d.Describe(context.Background(), types.ExtractedImage{
		FilePath:      "/img/a.png",
		ContextBefore: "Figure 2",
		ContextAfter:  "Pump housing",
	})
	require.NoError(t, err)

	assert.Equal(t, "A cross-section of a pump.", out)
	assert.Equal(t, "gpt-4o", got.Model)
	assert.Equal(t, float32(0), got.Temperature)
	require.Len(t, got.Parts, 2)
	assert.True(t, strings.HasPrefix(got.Parts[0].Text, "Describe the image with the following context: "))
	assert.Contains(t, got.Parts[0].Text, "Context Before: Figure 2\n\nContext After: Pump housing")
	assert.Equal(t, "image/png", got.Parts[1].MIMEType)
	assert.Equal(t, []byte("pngdata"), got.Parts[1].Image)
}

func TestSummarizer(t *testing.T) {
	calls := 0
	llm := CompleterFunc(func(_ context.Context, req Request) (string, error) {
		calls++
		assert.Equal(t, float32(0.5), req.Temperature)
		assert.Equal(t, "document body", req.Parts[0].Text)
		return "A manual.", nil
	})
	s := NewSummarizer(llm, Profile{Model: "gpt-4o", Temperature: 0.5})

	out, err := s.Summarize(context.Background(), "document body")
	require.NoError(t, err)
	assert.Equal(t, "A manual.", out)

	_, err = s.Summarize(context.Background(), "   ")
	assert.ErrorIs(t, err, types.ErrInvalidArgument)
	assert.Equal(t, 1, calls)
}

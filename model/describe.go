package model

import (
	"context"
	"fmt"
	"os"
	"strings"

	"ragchat/types"
)

// Describer asks the LLM for a short description of an extracted image.
type Describer struct {
	llm      Completer
	profile  Profile
	readFile func(string) ([]byte, error)
}

func NewDescriber(llm Completer, profile Profile) *Describer {
	return &Describer{llm: llm, profile: profile, readFile: os.ReadFile}
}

func DescribeContext(img types.ExtractedImage) string {
	return fmt.Sprintf("Context Before: %s\n\nContext After: %s", img.ContextBefore, img.ContextAfter)
}

func (d *Describer) Describe(ctx context.Context, img types.ExtractedImage) (string, error) {
	data, err := d.readFile(img.FilePath)
	if err != nil {
		return "", fmt.Errorf("read image %s: %w", img.FilePath, err)
	}
	req := NewRequest(d.profile, describePrompt,
		TextPart("Describe the image with the following context: "+DescribeContext(img)),
		ImagePart(data, "image/png"),
	)
	out, err := d.llm.Complete(ctx, req)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// Summarizer compresses a whole document into a gist kept as metadata.
type Summarizer struct {
	llm     Completer
	profile Profile
}

func NewSummarizer(llm Completer, profile Profile) *Summarizer {
	return &Summarizer{llm: llm, profile: profile}
}

func (s *Summarizer) Summarize(ctx context.Context, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("%w: nothing to summarize", types.ErrInvalidArgument)
	}
	out, err := s.llm.Complete(ctx, NewRequest(s.profile, summarizePrompt, TextPart(text)))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

package model

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"ragchat/types"
)

type GeminiClient struct {
	client *genai.Client
}

func NewGeminiClient(ctx context.Context, cfg ProviderConfig) (*GeminiClient, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("%w: gemini provider needs LLM_API_KEY", types.ErrConfiguration)
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  strings.TrimSpace(cfg.APIKey),
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &GeminiClient{client: client}, nil
}

func (c *GeminiClient) Complete(ctx context.Context, req Request) (string, error) {
	parts := make([]*genai.Part, 0, len(req.Parts))
	for _, p := range req.Parts {
		if p.IsImage() {
			parts = append(parts, &genai.Part{InlineData: &genai.Blob{MIMEType: p.MIMEType, Data: p.Image}})
			continue
		}
		parts = append(parts, &genai.Part{Text: p.Text})
	}

	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(req.Temperature),
	}
	if req.System != "" {
		config.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: req.System}}}
	}

	resp, err := c.client.Models.GenerateContent(
		ctx,
		req.Model,
		[]*genai.Content{{Role: "user", Parts: parts}},
		config,
	)
	if err != nil {
		return "", types.NewExternalServiceError("gemini", "complete", err)
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", types.NewExternalServiceError("gemini", "complete", errors.New("empty response"))
	}
	return text, nil
}

func init() {
	Register("gemini", func(ctx context.Context, cfg ProviderConfig) (Completer, error) {
		c, err := NewGeminiClient(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return c, nil
	})
}

package model

import (
	"context"
	"encoding/base64"
	"net/http"
	"strings"

	"ragchat/types"
)

// Encoder embeds text and images into one shared vector space.
type Encoder interface {
	EncodeText(ctx context.Context, text string) ([]float32, error)
	EncodeImage(ctx context.Context, image []byte) ([]float32, error)
}

// TokenCounter counts tokens in the vocabulary of the text encoder itself.
type TokenCounter interface {
	CountTokens(ctx context.Context, text string) (int, error)
}

// ClipClient calls a CLIP inference server exposing
// POST /encode/text {"text"} and POST /encode/image {"image": base64},
// both answering {"embedding": [...]}, and POST /tokenize {"text"}
// answering {"count": n}. The count excludes the start and end tokens, so
// a 75 token budget fills CLIP's 77 token context.
type ClipClient struct {
	baseURL string
	client  *http.Client
}

type clipTextRequest struct {
	Text string `json:"text"`
}

type clipImageRequest struct {
	Image string `json:"image"`
}

type clipTokenizeResponse struct {
	Count int `json:"count"`
}

type clipResponse struct {
	Embedding []float64 `json:"embedding"`
}

func NewClipClient(baseURL string) *ClipClient {
	return &ClipClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{},
	}
}

func (c *ClipClient) EncodeText(ctx context.Context, text string) ([]float32, error) {
	var resp clipResponse
	if err := postJSON(ctx, c.client, c.baseURL+"/encode/text", "", clipTextRequest{Text: text}, &resp); err != nil {
		return nil, types.NewExternalServiceError("clip", "encode text", err)
	}
	return toFloat32(resp.Embedding), nil
}

func (c *ClipClient) EncodeImage(ctx context.Context, image []byte) ([]float32, error) {
	var resp clipResponse
	req := clipImageRequest{Image: base64.StdEncoding.EncodeToString(image)}
	if err := postJSON(ctx, c.client, c.baseURL+"/encode/image", "", req, &resp); err != nil {
		return nil, types.NewExternalServiceError("clip", "encode image", err)
	}
	return toFloat32(resp.Embedding), nil
}

func (c *ClipClient) CountTokens(ctx context.Context, text string) (int, error) {
	var resp clipTokenizeResponse
	if err := postJSON(ctx, c.client, c.baseURL+"/tokenize", "", clipTextRequest{Text: text}, &resp); err != nil {
		return 0, types.NewExternalServiceError("clip", "tokenize", err)
	}
	return resp.Count, nil
}

package model

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"ragchat/types"
)

const defaultOpenAIURL = "https://api.openai.com/v1/chat/completions"

// OpenAIClient talks to any OpenAI-compatible chat completions endpoint.
type OpenAIClient struct {
	url    string
	apiKey string
	client *http.Client
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type openAIContent struct {
	Type     string          `json:"type"`
	Text     string          `json:"text,omitempty"`
	ImageURL *openAIImageURL `json:"image_url,omitempty"`
}

type openAIImageURL struct {
	URL string `json:"url"`
}

type openAIChatRequest struct {
	Model       string          `json:"model"`
	Temperature float32         `json:"temperature"`
	Messages    []openAIMessage `json:"messages"`
}

type openAIChatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func NewOpenAIClient(cfg ProviderConfig) *OpenAIClient {
	url := cfg.URL
	if url == "" {
		url = defaultOpenAIURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &OpenAIClient{
		url:    url,
		apiKey: cfg.APIKey,
		client: &http.Client{Timeout: timeout},
	}
}

func (c *OpenAIClient) Complete(ctx context.Context, req Request) (string, error) {
	body, err := json.Marshal(openAIChatRequest{
		Model:       req.Model,
		Temperature: req.Temperature,
		Messages:    buildOpenAIMessages(req),
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return "", types.NewExternalServiceError("openai", "complete", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", types.NewExternalServiceError("openai", "complete", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", types.NewExternalServiceError("openai", "complete",
			fmt.Errorf("status %d, body: %s", resp.StatusCode, strings.TrimSpace(string(respBody))))
	}

	var out openAIChatResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return "", types.NewExternalServiceError("openai", "complete", fmt.Errorf("failed to unmarshal response: %w", err))
	}
	if out.Error != nil {
		return "", types.NewExternalServiceError("openai", "complete", errors.New(out.Error.Message))
	}
	if len(out.Choices) == 0 {
		return "", types.NewExternalServiceError("openai", "complete", errors.New("no choices returned"))
	}
	return out.Choices[0].Message.Content, nil
}

// buildOpenAIMessages sends plain string content unless an image is attached.
func buildOpenAIMessages(req Request) []openAIMessage {
	var msgs []openAIMessage
	if req.System != "" {
		msgs = append(msgs, openAIMessage{Role: "system", Content: req.System})
	}

	if !req.HasImages() {
		texts := make([]string, 0, len(req.Parts))
		for _, p := range req.Parts {
			texts = append(texts, p.Text)
		}
		return append(msgs, openAIMessage{Role: "user", Content: strings.Join(texts, "\n")})
	}

	content := make([]openAIContent, 0, len(req.Parts))
	for _, p := range req.Parts {
		if p.IsImage() {
			url := fmt.Sprintf("data:%s;base64,%s", p.MIMEType, base64.StdEncoding.EncodeToString(p.Image))
			content = append(content, openAIContent{Type: "image_url", ImageURL: &openAIImageURL{URL: url}})
			continue
		}
		content = append(content, openAIContent{Type: "text", Text: p.Text})
	}
	return append(msgs, openAIMessage{Role: "user", Content: content})
}

func init() {
	Register("openai", func(_ context.Context, cfg ProviderConfig) (Completer, error) {
		return NewOpenAIClient(cfg), nil
	})
}

package model

import (
	"context"
	"net/http"
)

// Part is one segment of the user content of a completion: either text or
// an inline image.
type Part struct {
	Text     string
	Image    []byte
	MIMEType string
}

func TextPart(text string) Part {
	return Part{Text: text}
}

// ImagePart sniffs the MIME type from the data when it is not given.
func ImagePart(data []byte, mimeType string) Part {
	if mimeType == "" {
		mimeType = http.DetectContentType(data)
	}
	return Part{Image: data, MIMEType: mimeType}
}

func (p Part) IsImage() bool { return len(p.Image) > 0 }

// Profile is the model and sampling temperature used for one LLM role.
type Profile struct {
	Model       string
	Temperature float32
}

type Request struct {
	System      string
	Parts       []Part
	Model       string
	Temperature float32
}

func NewRequest(p Profile, system string, parts ...Part) Request {
	return Request{
		System:      system,
		Parts:       parts,
		Model:       p.Model,
		Temperature: p.Temperature,
	}
}

// HasImages reports whether any part carries an image.
func (r Request) HasImages() bool {
	for _, p := range r.Parts {
		if p.IsImage() {
			return true
		}
	}
	return false
}

// Completer is a chat-completion capability.
type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// CompleterFunc adapts a function to Completer.
type CompleterFunc func(ctx context.Context, req Request) (string, error)

func (f CompleterFunc) Complete(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}

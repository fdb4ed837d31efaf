package types

import (
	"strings"
	"time"
)

// Index namespaces.
const (
	NamespaceDocuments = "documents"
	NamespaceImages    = "images"
)

// DocumentChunk is a token-bounded span of a document's cleaned text.
type DocumentChunk struct {
	ID      string
	Source  string
	Text    string
	Ordinal int
}

// ExtractedImage describes one raster image saved from a document page
// together with the text that surrounds it.
type ExtractedImage struct {
	Filename      string
	FilePath      string
	PageNumber    int
	ImageNumber   int
	ContextBefore string
	ContextAfter  string
	Width         int
	Height        int
}

// IndexRecord is a single vector with its metadata as handed to a vector index.
type IndexRecord struct {
	ID       string
	Vector   []float32
	Metadata map[string]any
}

// TextRecord is a record for a managed text index that embeds on write.
type TextRecord struct {
	ID     string
	Text   string
	Source string
}

// Hit is one ranked search result.
type Hit struct {
	ID       string
	Score    float64
	Metadata map[string]any
}

// String returns metadata[key] if it holds a string.
func (h Hit) String(key string) string {
	v, _ := h.Metadata[key].(string)
	return v
}

type Sender string

const (
	SenderUser      Sender = "user"
	SenderAssistant Sender = "bot"
)

// ConversationTurn is one persisted chat message.
type ConversationTurn struct {
	ID        int64     `json:"message_id"`
	Sender    Sender    `json:"sender"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Label is the classifier output that gates the response path.
type Label string

const (
	LabelValidQuestion Label = "Valid RAG Question"
	LabelGreeting      Label = "Greeting"
	LabelOffTopic      Label = "Off-Topic"
)

// ParseLabel maps raw classifier output to a Label. Models sometimes wrap the
// answer in quotes or bold markers, those are stripped. Anything that is not
// recognised is returned as-is and treated as non-grounded by callers.
func ParseLabel(raw string) Label {
	s := strings.TrimSpace(raw)
	s = strings.Trim(s, "\"'*`. ")
	switch strings.ToLower(s) {
	case strings.ToLower(string(LabelValidQuestion)):
		return LabelValidQuestion
	case strings.ToLower(string(LabelGreeting)):
		return LabelGreeting
	case strings.ToLower(string(LabelOffTopic)):
		return LabelOffTopic
	}
	return Label(s)
}

// Document is the persisted metadata row of an uploaded file.
type Document struct {
	ID              int64     `json:"id"`
	Name            string    `json:"name"`
	Format          string    `json:"format"`
	Path            string    `json:"path"`
	Description     string    `json:"description"`
	Vectorized      bool      `json:"vectorized"`
	ImagesProcessed bool      `json:"images_processed"`
	CreatedAt       time.Time `json:"created_at"`
}

// Image is the persisted metadata row of an extracted image.
type Image struct {
	ID          int64  `json:"id"`
	DocumentID  int64  `json:"document_id"`
	Name        string `json:"name"`
	Format      string `json:"format"`
	Path        string `json:"path"`
	Description string `json:"description"`
	PageNo      int    `json:"page_no"`
}

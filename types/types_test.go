package types

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLabel(t *testing.T) {
	tests := []struct {
		raw  string
		want Label
	}{
		{"Valid RAG Question", LabelValidQuestion},
		{"  valid rag question\n", LabelValidQuestion},
		{`"Greeting"`, LabelGreeting},
		{"**Off-Topic**", LabelOffTopic},
		{"Off-Topic.", LabelOffTopic},
		{"Something else", Label("Something else")},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLabel(tt.raw))
		})
	}
}

func TestHitString(t *testing.T) {
	h := Hit{Metadata: map[string]any{"source": "a.png", "pageNo": 3}}

	assert.Equal(t, "a.png", h.String("source"))
	assert.Empty(t, h.String("pageNo"))
	assert.Empty(t, h.String("missing"))
}

func TestExternalServiceError(t *testing.T) {
	cause := errors.New("connection refused")
	err := fmt.Errorf("respond: %w", NewExternalServiceError("openai", "complete", cause))

	assert.ErrorIs(t, err, ErrExternalService)
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, ErrNotFound)

	var ext *ExternalServiceError
	require.ErrorAs(t, err, &ext)
	assert.Equal(t, "openai", ext.Service)
}

func TestPartialIngestionError(t *testing.T) {
	err := error(&PartialIngestionError{
		Document:   "doc.pdf",
		Step:       "index images",
		Vectorized: true,
		Err:        ErrExternalService,
	})

	assert.ErrorIs(t, err, ErrPartialIngestion)
	assert.ErrorIs(t, err, ErrExternalService)
	assert.Contains(t, err.Error(), `step "index images"`)
	assert.Contains(t, err.Error(), "vectorized=true")
}

func TestChatParamsValidate(t *testing.T) {
	ok := ChatParams{UserID: 7, Text: "hi"}
	assert.Empty(t, Validate(&ok))

	bad := ChatParams{}
	errs := Validate(&bad)
	assert.Contains(t, errs, "UserID")
	assert.Contains(t, errs, "Text")
}

func TestImageParamsValidate(t *testing.T) {
	assert.Contains(t, Validate(&ImageParams{}), "Filename")
	assert.Empty(t, Validate(&ImageParams{Filename: "a.png"}))
}

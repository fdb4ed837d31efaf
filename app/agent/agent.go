package agent

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"ragchat/model"
	"ragchat/types"
)

// Retriever is the read side of the indexes.
type Retriever interface {
	QueryText(ctx context.Context, query string, topK int) (string, error)
	QueryImage(ctx context.Context, query string, topK int) (string, error)
}

type Profiles struct {
	Classify model.Profile
	Respond  model.Profile
}

// Input is everything one chat turn depends on; the agent keeps no state
// between calls.
type Input struct {
	Text         string
	UserImage    []byte
	History      []types.ConversationTurn
	Descriptions []string
}

type Answer struct {
	Label       types.Label
	Text        string
	ImageAnswer string
	// OK is false when the reply is the apology.
	OK bool
}

type Agent struct {
	llm         model.Completer
	retriever   Retriever
	profiles    Profiles
	imageFolder string
	readFile    func(string) ([]byte, error)
	logger      *slog.Logger
}

func New(llm model.Completer, retriever Retriever, profiles Profiles, imageFolder string, logger *slog.Logger) *Agent {
	if logger == nil {
		logger = slog.Default()
	}
	return &Agent{
		llm:         llm,
		retriever:   retriever,
		profiles:    profiles,
		imageFolder: imageFolder,
		readFile:    os.ReadFile,
		logger:      logger,
	}
}

// Respond classifies the input and then answers either grounded in the
// indexes (valid questions) or from the domain description alone.
func (a *Agent) Respond(ctx context.Context, in Input) Answer {
	start := time.Now()
	defer func() {
		a.logger.Info("[AGENT] answer took", "duration", time.Since(start))
	}()

	domain := FormatDomainDescription(in.Descriptions)
	history := FormatHistory(in.History, HistoryLimit)

	label, err := a.classify(ctx, domain, history, in.Text)
	if err != nil {
		a.logger.Error("[AGENT] classification failed", "error", err)
		return Answer{Text: Apology}
	}
	a.logger.Info("[AGENT] classified", "label", label)

	var (
		req   model.Request
		image string
	)
	if label == types.LabelValidQuestion {
		req, image = a.groundedRequest(ctx, domain, history, label, in)
	} else {
		req = model.NewRequest(a.profiles.Respond, respondPrompt,
			model.TextPart(formatResponderInput(domain, in.Text, label, "", history)))
	}

	text, err := a.llm.Complete(ctx, req)
	if err != nil {
		a.logger.Error("[AGENT] response failed", "label", label, "error", err)
		return Answer{Label: label, Text: Apology}
	}
	return Answer{Label: label, Text: text, ImageAnswer: image, OK: true}
}

func (a *Agent) classify(ctx context.Context, domain, history, input string) (types.Label, error) {
	req := model.NewRequest(a.profiles.Classify, classifyPrompt+domain,
		model.TextPart(formatClassifierInput(history, input)))
	raw, err := a.llm.Complete(ctx, req)
	if err != nil {
		return "", err
	}
	return types.ParseLabel(raw), nil
}

// groundedRequest never fails: missing text or image context only narrows
// what is attached.
func (a *Agent) groundedRequest(ctx context.Context, domain, history string, label types.Label, in Input) (model.Request, string) {
	rag, err := a.retriever.QueryText(ctx, in.Text, 0)
	if err != nil {
		a.logger.Error("[AGENT] text retrieval failed", "error", err)
		rag = ""
	}

	parts := []model.Part{model.TextPart(formatResponderInput(domain, in.Text, label, rag, history))}
	if len(in.UserImage) > 0 {
		parts = append(parts, model.TextPart(userImageLabel), model.ImagePart(in.UserImage, ""))
	}

	source, err := a.retriever.QueryImage(ctx, in.Text, 0)
	switch {
	case errors.Is(err, types.ErrNotFound):
		a.logger.Info("[AGENT] no matching image")
		source = ""
	case err != nil:
		a.logger.Error("[AGENT] image retrieval failed", "error", err)
		source = ""
	}
	if source != "" {
		data, err := a.readFile(filepath.Join(a.imageFolder, filepath.Base(source)))
		if err != nil {
			a.logger.Warn("[AGENT] retrieved image unreadable", "source", source, "error", err)
			source = ""
		} else {
			parts = append(parts, model.TextPart(ragImageLabel), model.ImagePart(data, ""))
		}
	}

	return model.NewRequest(a.profiles.Respond, respondPrompt, parts...), source
}

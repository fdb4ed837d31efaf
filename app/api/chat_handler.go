package api

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"ragchat/app/agent"
	"ragchat/store"
	"ragchat/types"
)

// Responder answers one chat turn.
type Responder interface {
	Respond(ctx context.Context, in agent.Input) agent.Answer
}

type ChatHandler struct {
	chats       store.ChatStorer
	docs        store.DocumentStorer
	agent       Responder
	imageFolder string
	logger      *slog.Logger
}

func NewChatHandler(chats store.ChatStorer, docs store.DocumentStorer, agent Responder, imageFolder string, logger *slog.Logger) *ChatHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ChatHandler{
		chats:       chats,
		docs:        docs,
		agent:       agent,
		imageFolder: imageFolder,
		logger:      logger,
	}
}

// HandleChat stores the user message, runs the agent and stores its reply.
// The history passed to the agent already contains the new message.
func (h *ChatHandler) HandleChat(c *fiber.Ctx) error {
	var params types.ChatParams
	if c.BodyParser(&params) != nil {
		return ErrBadRequest()
	}
	if errors := types.Validate(&params); len(errors) > 0 {
		return NewValidationError(errors)
	}
	ctx := c.UserContext()

	userImage, err := h.saveImage(c)
	if err != nil {
		return err
	}

	if err := h.chats.InsertMessage(ctx, params.UserID, types.SenderUser, params.Text); err != nil {
		return err
	}
	history, err := h.chats.GetUserChatHistory(ctx, params.UserID)
	if err != nil {
		return err
	}
	descriptions, err := h.docs.GetAllDocumentDescriptions(ctx)
	if err != nil {
		return err
	}

	answer := h.agent.Respond(ctx, agent.Input{
		Text:         params.Text,
		UserImage:    userImage,
		History:      history,
		Descriptions: descriptions,
	})
	h.logger.Info("[CHAT] answered", "user", params.UserID, "class", answer.Label, "ok", answer.OK)

	if err := h.chats.InsertMessage(ctx, params.UserID, types.SenderAssistant, answer.Text); err != nil {
		return err
	}

	resp := types.ChatResponse{
		Status:   "200 OK",
		UserID:   params.UserID,
		Text:     params.Text,
		Class:    answer.Label,
		Response: answer.Text,
	}
	if answer.ImageAnswer != "" {
		resp.ImageAnswer = []string{answer.ImageAnswer}
	}
	return c.JSON(resp)
}

// saveImage keeps the optional uploaded image and returns its bytes.
func (h *ChatHandler) saveImage(c *fiber.Ctx) ([]byte, error) {
	file, err := c.FormFile("image")
	if err != nil {
		return nil, nil
	}
	name := filepath.Base(file.Filename)
	if name == "." || name == string(filepath.Separator) {
		return nil, ErrInvalidFilename()
	}
	if err := os.MkdirAll(h.imageFolder, 0o755); err != nil {
		return nil, err
	}
	path := filepath.Join(h.imageFolder, name)
	if err := c.SaveFile(file, path); err != nil {
		return nil, err
	}
	h.logger.Info("[CHAT] user image saved", "path", path)
	return os.ReadFile(path)
}

func (h *ChatHandler) HandleUserChats(c *fiber.Ctx) error {
	userID, err := strconv.ParseInt(c.Params("user_id"), 10, 64)
	if err != nil || userID <= 0 {
		return ErrInvalidID()
	}
	history, err := h.chats.GetUserChatHistory(c.UserContext(), userID)
	if err != nil {
		return err
	}
	if history == nil {
		history = []types.ConversationTurn{}
	}
	return c.JSON(history)
}

package api

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofiber/fiber/v2"

	"ragchat/loader/service"
	"ragchat/store"
	"ragchat/types"
)

type Uploader interface {
	Upload(ctx context.Context, path string) (*service.Result, error)
}

type DocumentHandler struct {
	docs      store.DocumentStorer
	uploader  Uploader
	docFolder string
	logger    *slog.Logger
}

func NewDocumentHandler(docs store.DocumentStorer, uploader Uploader, docFolder string, logger *slog.Logger) *DocumentHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &DocumentHandler{
		docs:      docs,
		uploader:  uploader,
		docFolder: docFolder,
		logger:    logger,
	}
}

// HandleUpload saves the PDF into the document folder and runs the upload
// pipeline. A partially ingested document is reported with 500 and the
// flags of what did get committed.
func (h *DocumentHandler) HandleUpload(c *fiber.Ctx) error {
	file, err := c.FormFile("file")
	if err != nil {
		return ErrBadRequest()
	}
	name := filepath.Base(file.Filename)
	if !strings.EqualFold(filepath.Ext(name), ".pdf") {
		return ErrForbiddenType()
	}
	if err := os.MkdirAll(h.docFolder, 0o755); err != nil {
		return err
	}
	path := filepath.Join(h.docFolder, name)
	if err := c.SaveFile(file, path); err != nil {
		return err
	}
	h.logger.Info("[UPLOAD] file saved", "path", path)

	res, err := h.uploader.Upload(c.UserContext(), path)
	var partial *types.PartialIngestionError
	switch {
	case errors.As(err, &partial):
		return c.Status(fiber.StatusInternalServerError).JSON(types.UploadResponse{
			Status:          "partial",
			Message:         partial.Error(),
			Filename:        name,
			Vectorized:      partial.Vectorized,
			ImagesProcessed: partial.ImagesProcessed,
		})
	case err != nil:
		return err
	}

	return c.JSON(types.UploadResponse{
		Status:          "200 OK",
		Message:         "File saved successfully",
		Filename:        name,
		Chunks:          res.Chunks,
		Images:          res.Images,
		Vectorized:      res.Vectorized,
		ImagesProcessed: res.ImagesProcessed,
	})
}

func (h *DocumentHandler) HandleListDocuments(c *fiber.Ctx) error {
	docs, err := h.docs.ListDocuments(c.UserContext())
	if err != nil {
		return err
	}
	if docs == nil {
		docs = []types.Document{}
	}
	return c.JSON(docs)
}

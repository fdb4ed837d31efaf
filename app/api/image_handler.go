package api

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofiber/fiber/v2"

	"ragchat/types"
)

var allowedImageExt = map[string]bool{".pdf": true, ".png": true}

type ImageHandler struct {
	folder string
}

func NewImageHandler(folder string) *ImageHandler {
	return &ImageHandler{folder: folder}
}

// HandleGetImage serves a file from the image folder, inline or as an
// attachment.
func (h *ImageHandler) HandleGetImage(c *fiber.Ctx) error {
	var params types.ImageParams
	if c.QueryParser(&params) != nil {
		return ErrBadRequest()
	}
	if errors := types.Validate(&params); len(errors) > 0 {
		return NewValidationError(errors)
	}
	name := params.Filename
	if strings.Contains(name, "..") || strings.HasPrefix(name, "/") {
		return ErrInvalidFilename()
	}

	path := filepath.Join(h.folder, name)
	if _, err := os.Stat(path); err != nil {
		return ErrNotFound(name, "file")
	}
	if !allowedImageExt[strings.ToLower(filepath.Ext(name))] {
		return ErrForbiddenType()
	}

	disposition := "attachment"
	if params.Inline {
		disposition = "inline"
	}
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("%s; filename=%s", disposition, filepath.Base(name)))
	return c.SendFile(path)
}

package types

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

type Validater interface {
	Validate() map[string]string
}

var validate = validator.New()

func Validate(v Validater) map[string]string {
	return v.Validate()
}

// ChatParams is the multipart form of a chat request. The optional image is
// read separately from the "image" form file.
type ChatParams struct {
	UserID int64  `form:"userID" validate:"required,gt=0"`
	Text   string `form:"text" validate:"required"`
}

type ImageParams struct {
	Filename string `query:"filename" validate:"required"`
	Inline   bool   `query:"inline"`
}

func (params *ChatParams) Validate() map[string]string {
	return validateStruct(params)
}

func (params *ImageParams) Validate() map[string]string {
	return validateStruct(params)
}

func validateStruct(s any) map[string]string {
	if err := validate.Struct(s); err != nil {
		errs, ok := err.(validator.ValidationErrors)
		if !ok {
			return map[string]string{"request": err.Error()}
		}
		errors := make(map[string]string)
		for _, e := range errs {
			errors[e.Field()] = fmt.Sprintf("failed on '%s' tag", e.Tag())
		}
		return errors
	}
	return nil
}

type ChatResponse struct {
	Status      string   `json:"status"`
	UserID      int64    `json:"userID"`
	Text        string   `json:"text"`
	Class       Label    `json:"class"`
	Response    string   `json:"response"`
	ImageAnswer []string `json:"image_answer"`
}

type UploadResponse struct {
	Status          string `json:"status"`
	Message         string `json:"message"`
	Filename        string `json:"filename"`
	Chunks          int    `json:"chunks"`
	Images          int    `json:"images"`
	Vectorized      bool   `json:"vectorized"`
	ImagesProcessed bool   `json:"images_processed"`
}

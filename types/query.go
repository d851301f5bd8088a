package types

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

type Validater interface {
	Validate() map[string]string
}

var validate = validator.New()

type AssistantParams struct {
	UserID  string `json:"user_id" validate:"required"`
	Message string `json:"message" validate:"required,max=4000"`
}

type InsightParams struct {
	UserID string `json:"user_id" validate:"required"`
}

type IngestParams struct {
	Name   string `json:"name"`
	Title  string `json:"title" validate:"required"`
	Source string `json:"source"`
	Text   string `json:"text" validate:"required"`
}

func Validate(v Validater) map[string]string {
	return v.Validate()
}

func (params *AssistantParams) Validate() map[string]string {
	return validateStruct(params)
}

func (params *InsightParams) Validate() map[string]string {
	return validateStruct(params)
}

func (params *IngestParams) Validate() map[string]string {
	return validateStruct(params)
}

func validateStruct(v any) map[string]string {
	if err := validate.Struct(v); err != nil {
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

type AssistantResponse struct {
	Reply     string       `json:"reply"`
	Citations []Citation   `json:"citations"`
	State     ContextState `json:"state"`
	Missing   []Source     `json:"missing,omitempty"`
	Timestamp time.Time    `json:"timestamp"`
}

type Citation struct {
	Title      string  `json:"title"`
	Source     string  `json:"source"`
	Content    string  `json:"content"`
	Similarity float64 `json:"similarity"`
}

type InsightResponse struct {
	Summary string `json:"summary"`
}

package api

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofiber/fiber/v2"

	"wellrag/loader/service"
	"wellrag/types"
)

type Ingester interface {
	Ingest(ctx context.Context, doc types.Document) (types.IngestReport, error)
	IngestFile(ctx context.Context, path string) (types.IngestReport, error)
}

var uploadExtensions = map[string]bool{".pdf": true, ".txt": true, ".md": true}

type IngestHandler struct {
	ingester Ingester
}

func NewIngestHandler(ingester Ingester) *IngestHandler {
	return &IngestHandler{
		ingester: ingester,
	}
}

// HandleIngest accepts either a multipart "file" upload or a JSON document.
func (h *IngestHandler) HandleIngest(c *fiber.Ctx) error {
	if strings.HasPrefix(string(c.Request().Header.ContentType()), fiber.MIMEMultipartForm) {
		return h.ingestUpload(c)
	}

	var params types.IngestParams
	if c.BodyParser(&params) != nil {
		return ErrBadRequest()
	}

	if errors := types.Validate(&params); len(errors) > 0 {
		return NewValidationError(errors)
	}

	name := params.Name
	if name == "" {
		name = params.Title
	}
	report, err := h.ingester.Ingest(c.UserContext(), types.NewDocument(name, params.Title, params.Source, params.Text))
	if err != nil {
		return ingestError(err)
	}
	return c.JSON(report)
}

func (h *IngestHandler) ingestUpload(c *fiber.Ctx) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return ErrBadRequest()
	}

	name := filepath.Base(fileHeader.Filename)
	ext := strings.ToLower(filepath.Ext(name))
	if !uploadExtensions[ext] {
		return ErrUnsupportedMedia(ext)
	}

	dir, err := os.MkdirTemp("", "wellrag-upload-*")
	if err != nil {
		return err
	}
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, name)
	if err := c.SaveFile(fileHeader, path); err != nil {
		return err
	}

	report, err := h.ingester.IngestFile(c.UserContext(), path)
	if err != nil {
		return ingestError(err)
	}
	return c.JSON(report)
}

func ingestError(err error) error {
	if errors.Is(err, service.ErrEmptyDocument) || errors.Is(err, service.ErrInvalidWindow) {
		return NewError(fiber.StatusUnprocessableEntity, err.Error())
	}
	return err
}

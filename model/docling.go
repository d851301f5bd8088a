package model

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"wellrag/pkg/logging"
	"wellrag/types"
)

var ErrEmptyConversion = errors.New("converter returned no text")

// Converter turns a binary document into plain text.
type Converter interface {
	Convert(ctx context.Context, filePath string) (string, error)
}

// Docling talks to a docling-serve compatible /v1/convert/file endpoint.
type Docling struct {
	url         string
	client      *http.Client
	maxAttempts int
	logger      *logging.Logger
}

func NewDocling(url string, timeout time.Duration, logger *logging.Logger) *Docling {
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Docling{
		url:         url,
		client:      &http.Client{Timeout: timeout},
		maxAttempts: 3,
		logger:      logger,
	}
}

// Convert retries the conversion a few times with a linear pause, the way the
// converter service tends to fail while it is busy with a previous file.
func (d *Docling) Convert(ctx context.Context, filePath string) (string, error) {
	var lastErr error

	for attempt := 1; attempt <= d.maxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		default:
		}

		text, err := d.convert(ctx, filePath)
		if err == nil {
			return text, nil
		}
		lastErr = err
		d.logger.Warn("document conversion failed", "file", filePath, "attempt", attempt, "error", err)

		if attempt < d.maxAttempts {
			if err := sleep(ctx, time.Duration(attempt)*300*time.Millisecond); err != nil {
				return "", err
			}
		}
	}

	return "", fmt.Errorf("conversion failed after %d attempts: %w", d.maxAttempts, lastErr)
}

func (d *Docling) convert(ctx context.Context, filePath string) (string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return "", err
	}
	defer file.Close()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("files", filepath.Base(filePath))
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(part, file); err != nil {
		return "", err
	}
	if err := writer.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.url, &buf)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := d.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("converter: status %d, body: %s", resp.StatusCode, truncate(string(body), 512))
	}

	var dr types.DoclingResponse
	if err := json.Unmarshal(body, &dr); err != nil {
		return "", fmt.Errorf("failed to unmarshal converter response: %w", err)
	}

	text := dr.Document.MdContent
	if strings.TrimSpace(text) == "" {
		text = dr.Document.TextContent
	}
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyConversion
	}
	return text, nil
}

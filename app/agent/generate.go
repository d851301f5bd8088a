package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/pkoukk/tiktoken-go"

	"wellrag/metrics"
	"wellrag/pkg/logging"
)

var ErrEmptyAnswer = errors.New("generator returned an empty answer")

// Generator produces the assistant reply for a composed prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

type GenerateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type GenerateResponse struct {
	Response string `json:"response"`
}

// LLMClient calls an Ollama style /api/generate endpoint.
type LLMClient struct {
	url         string
	model       string
	client      *http.Client
	logger      *logging.Logger
	metrics     *metrics.PipelineMetrics
	countTokens func(string) (int, error)
}

func NewLLMClient(url, model string, timeout time.Duration, logger *logging.Logger, m *metrics.PipelineMetrics) *LLMClient {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &LLMClient{
		url:         url,
		model:       model,
		client:      &http.Client{Timeout: timeout},
		logger:      logger,
		metrics:     m,
		countTokens: CountTokens,
	}
}

func (c *LLMClient) Generate(ctx context.Context, prompt string) (string, error) {
	start := time.Now()

	if count, err := c.countTokens(prompt); err == nil {
		c.metrics.ObservePromptTokens(count)
		c.logger.Debug("prompt size", "tokens", count, "chars", len(prompt))
	} else {
		c.logger.Debug("token count unavailable", "error", err)
	}

	reqBody, err := json.Marshal(GenerateRequest{
		Model:  c.model,
		Prompt: prompt,
		Stream: false,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(reqBody))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("generator request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read generator response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("generator: status %d", resp.StatusCode)
	}

	answer := decodeAnswer(body)
	c.logger.Info("generator answered", "took", time.Since(start), "chars", len(answer))
	if strings.TrimSpace(answer) == "" {
		return "", ErrEmptyAnswer
	}
	return answer, nil
}

// decodeAnswer reads a single JSON object or, if the server streamed anyway,
// concatenates the fragments.
func decodeAnswer(body []byte) string {
	var genResp GenerateResponse
	if err := json.Unmarshal(body, &genResp); err == nil && genResp.Response != "" {
		return genResp.Response
	}

	var out strings.Builder
	decoder := json.NewDecoder(bytes.NewReader(body))
	for decoder.More() {
		var chunk GenerateResponse
		if err := decoder.Decode(&chunk); err != nil {
			break
		}
		out.WriteString(chunk.Response)
	}
	return out.String()
}

var encoding = sync.OnceValues(func() (*tiktoken.Tiktoken, error) {
	return tiktoken.EncodingForModel("gpt-3.5-turbo")
})

// CountTokens approximates the prompt size with the cl100k encoding.
func CountTokens(text string) (int, error) {
	enc, err := encoding()
	if err != nil {
		return 0, err
	}
	return len(enc.Encode(text, nil, nil)), nil
}

package model

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Provider is an external text embedding endpoint.
type Provider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// StatusError is a non-2xx answer from the embedding provider.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("embedding provider: status %d, body: %s", e.Code, e.Body)
}

// Transient reports whether the provider asked us to come back later. 503 is
// what the inference API sends while the model is still loading.
func (e *StatusError) Transient() bool {
	return e.Code == http.StatusServiceUnavailable
}

func isTransient(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Transient()
}

// HuggingFaceProvider calls a feature-extraction pipeline: POST {"inputs": text}.
type HuggingFaceProvider struct {
	apiURL string
	token  string
	client *http.Client
}

type featureExtractionRequest struct {
	Inputs string `json:"inputs"`
}

func NewHuggingFaceProvider(apiURL, token string, client *http.Client) *HuggingFaceProvider {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &HuggingFaceProvider{
		apiURL: apiURL,
		token:  token,
		client: client,
	}
}

func (p *HuggingFaceProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(featureExtractionRequest{Inputs: text})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.apiURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.token != "" {
		req.Header.Set("Authorization", "Bearer "+p.token)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{Code: resp.StatusCode, Body: truncate(string(respBody), 512)}
	}

	return decodeEmbedding(respBody)
}

// decodeEmbedding accepts a flat vector or a token-level matrix, which is
// mean-pooled into one vector.
func decodeEmbedding(data []byte) ([]float32, error) {
	var flat []float32
	if err := json.Unmarshal(data, &flat); err == nil {
		return flat, nil
	}

	var matrix [][]float32
	if err := json.Unmarshal(data, &matrix); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if len(matrix) == 0 || len(matrix[0]) == 0 {
		return nil, errors.New("embedding provider: empty embedding")
	}

	pooled := make([]float32, len(matrix[0]))
	for _, row := range matrix {
		if len(row) != len(pooled) {
			return nil, errors.New("embedding provider: ragged token embeddings")
		}
		for i, v := range row {
			pooled[i] += v
		}
	}
	for i := range pooled {
		pooled[i] /= float32(len(matrix))
	}
	return pooled, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// Package inference talks to a self-hosted OCR inference server that accepts a base64 image and a
// prompt and answers with the recognized text.
package inference

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"permitflow/internal/config"
	"permitflow/internal/ocr"
	"permitflow/internal/port"
)

const (
	defaultEndpoint = "http://localhost:8000/ocr"
	defaultPrompt   = "<image>\nFree OCR."
)

type inferenceRequest struct {
	Prompt    string `json:"prompt"`
	ImageB64  string `json:"image_base64"`
	BaseSize  int    `json:"base_size,omitempty"`
	ImageSize int    `json:"image_size,omitempty"`
	CropMode  bool   `json:"crop_mode"`
}

type inferenceResponse struct {
	Text  string `json:"text"`
	Error string `json:"error"`
}

// Engine implements port.Recognizer against an OCR inference server.
type Engine struct {
	endpoint   string
	apiKey     string
	prompt     string
	client     *http.Client
	terminated atomic.Bool
}

// NewEngine creates an engine for the configured inference server. DefaultModel, when set,
// overrides the prompt sent with every image.
func NewEngine(cfg *config.OCRProviderConfig) *Engine {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = defaultEndpoint
	}
	prompt := cfg.DefaultModel
	if prompt == "" {
		prompt = defaultPrompt
	}
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	if timeout == 0 {
		timeout = 120 * time.Second
	}
	return &Engine{
		endpoint: endpoint,
		apiKey:   cfg.APIKey,
		prompt:   prompt,
		client:   &http.Client{Timeout: timeout, Transport: http.DefaultTransport.(*http.Transport).Clone()},
	}
}

func (e *Engine) Recognize(ctx context.Context, img port.Image, onProgress func(port.ProgressEvent)) (string, error) {
	if e.terminated.Load() {
		return "", ocr.ErrTerminated
	}
	if onProgress != nil {
		onProgress(port.ProgressEvent{Status: port.StatusRecognizingText, Progress: 0})
	}

	bodyBytes, err := json.Marshal(inferenceRequest{
		Prompt:   e.prompt,
		ImageB64: base64.StdEncoding.EncodeToString(img.Data),
		CropMode: true,
	})
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if e.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.apiKey)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("calling inference server: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		return "", ocr.NewRateLimitError("inference", fmt.Errorf("status 429"),
			ocr.RetryAfter(resp.Header, time.Now()))
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("inference server error (status %d): %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	var out inferenceResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return "", fmt.Errorf("unmarshaling response: %w", err)
	}
	if out.Error != "" {
		return "", fmt.Errorf("inference server: %s", out.Error)
	}
	if onProgress != nil {
		onProgress(port.ProgressEvent{Status: port.StatusRecognizingText, Progress: 1})
	}
	return strings.TrimSpace(out.Text), nil
}

// Terminate releases the engine's connections. Further Recognize calls fail.
func (e *Engine) Terminate() error {
	if e.terminated.CompareAndSwap(false, true) {
		e.client.CloseIdleConnections()
	}
	return nil
}

package gemini

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
	apiBaseURL = "https://generativelanguage.googleapis.com/v1beta/models"

	transcribePrompt = "Transcribe every piece of visible text in this document image exactly as printed, " +
		"in reading order. Return plain text only, with no commentary and no markdown."
)

// Engine implements port.Recognizer using Google's Gemini API.
type Engine struct {
	apiKey     string
	model      string
	endpoint   string
	client     *http.Client
	terminated atomic.Bool
}

// NewEngine creates a Gemini-backed recognition engine.
func NewEngine(cfg *config.OCRProviderConfig) *Engine {
	return newEngine(cfg, cfg.Endpoint)
}

// NewEngineWithEndpoint creates an engine pointing at a custom API endpoint (for testing).
func NewEngineWithEndpoint(cfg *config.OCRProviderConfig, endpoint string) *Engine {
	return newEngine(cfg, endpoint)
}

func newEngine(cfg *config.OCRProviderConfig, endpoint string) *Engine {
	model := cfg.DefaultModel
	if model == "" {
		model = "gemini-2.0-flash"
	}
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	if timeout == 0 {
		timeout = 120 * time.Second
	}
	if endpoint == "" {
		endpoint = fmt.Sprintf("%s/%s:generateContent", apiBaseURL, model)
	}
	return &Engine{
		apiKey:   cfg.APIKey,
		model:    model,
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout, Transport: http.DefaultTransport.(*http.Transport).Clone()},
	}
}

func (e *Engine) Recognize(ctx context.Context, img port.Image, onProgress func(port.ProgressEvent)) (string, error) {
	if e.terminated.Load() {
		return "", ocr.ErrTerminated
	}
	mimeType, err := toGeminiMimeType(img.ContentType)
	if err != nil {
		return "", err
	}
	report(onProgress, port.StatusRecognizingText, 0)

	reqBody := map[string]interface{}{
		"contents": []map[string]interface{}{
			{
				"role": "user",
				"parts": []map[string]interface{}{
					{
						"inline_data": map[string]interface{}{
							"mime_type": mimeType,
							"data":      base64.StdEncoding.EncodeToString(img.Data),
						},
					},
					{"text": transcribePrompt},
				},
			},
		},
		"generationConfig": map[string]interface{}{
			"temperature":     0,
			"maxOutputTokens": 8192,
		},
	}
	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", e.apiKey)

	resp, err := e.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("calling gemini API: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return "", ocr.NewRateLimitError("gemini", fmt.Errorf("status 429: %s", truncate(string(respBody), 200)),
			ocr.RetryAfter(resp.Header, time.Now()))
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("gemini API error (status %d): %s", resp.StatusCode, truncate(string(respBody), 500))
	}

	text, err := parseResponse(respBody)
	if err != nil {
		return "", err
	}
	report(onProgress, port.StatusRecognizingText, 1)
	return text, nil
}

// Terminate releases the engine's connections. Further Recognize calls fail.
func (e *Engine) Terminate() error {
	if e.terminated.CompareAndSwap(false, true) {
		e.client.CloseIdleConnections()
	}
	return nil
}

func toGeminiMimeType(contentType string) (string, error) {
	switch contentType {
	case "image/jpeg", "image/png":
		return contentType, nil
	default:
		return "", fmt.Errorf("unsupported content type for recognition: %s", contentType)
	}
}

// geminiResponse models the Gemini API response.
type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
}

func parseResponse(body []byte) (string, error) {
	var resp geminiResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("unmarshaling response: %w", err)
	}
	if len(resp.Candidates) == 0 {
		return "", fmt.Errorf("empty response from API: no candidates")
	}
	var sb strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		sb.WriteString(p.Text)
	}
	return strings.TrimSpace(sb.String()), nil
}

func report(fn func(port.ProgressEvent), status string, progress float64) {
	if fn != nil {
		fn(port.ProgressEvent{Status: status, Progress: progress})
	}
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

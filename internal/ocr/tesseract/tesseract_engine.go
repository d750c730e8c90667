//go:build tesseract

// Package tesseract recognizes text locally with Tesseract through gosseract. It needs cgo and the
// tesseract/leptonica libraries, so it is only built with the "tesseract" tag.
package tesseract

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/otiai10/gosseract/v2"

	"permitflow/internal/config"
	"permitflow/internal/ocr"
	"permitflow/internal/port"
)

const defaultLanguages = "eng"

// Engine implements port.Recognizer over one gosseract client.
type Engine struct {
	mu        sync.Mutex
	client    *gosseract.Client
	languages []string
}

// NewEngine creates an engine. cfg.DefaultModel names the tessdata languages, comma separated
// ("eng,fil"); it defaults to "eng".
func NewEngine(cfg *config.OCRProviderConfig) *Engine {
	langs := cfg.DefaultModel
	if strings.TrimSpace(langs) == "" {
		langs = defaultLanguages
	}
	var languages []string
	for _, l := range strings.Split(langs, ",") {
		if l = strings.TrimSpace(l); l != "" {
			languages = append(languages, l)
		}
	}
	return &Engine{client: gosseract.NewClient(), languages: languages}
}

// Recognize runs tesseract over img. Tesseract reports no intermediate progress, so the
// recognizing phase jumps from 0 to 1.
func (e *Engine) Recognize(ctx context.Context, img port.Image, onProgress func(port.ProgressEvent)) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.client == nil {
		return "", ocr.ErrTerminated
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	report(onProgress, 0)

	if err := e.client.SetLanguage(e.languages...); err != nil {
		return "", fmt.Errorf("tesseract: setting languages: %w", err)
	}
	if err := e.client.SetImageFromBytes(img.Data); err != nil {
		return "", fmt.Errorf("tesseract: loading page %d: %w", img.Page, err)
	}
	text, err := e.client.Text()
	if err != nil {
		return "", fmt.Errorf("tesseract: recognizing page %d: %w", img.Page, err)
	}
	report(onProgress, 1)
	return text, nil
}

// Terminate closes the tesseract client. Further calls are no-ops.
func (e *Engine) Terminate() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.client == nil {
		return nil
	}
	err := e.client.Close()
	e.client = nil
	return err
}

func report(fn func(port.ProgressEvent), p float64) {
	if fn != nil {
		fn(port.ProgressEvent{Status: port.StatusRecognizingText, Progress: p})
	}
}

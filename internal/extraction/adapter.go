// Package extraction runs OCR over uploaded documents and classifies the text as a sanity check.
// Results are advisory; nothing here blocks submission.
package extraction

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"permitflow/internal/config"
	"permitflow/internal/domain"
	"permitflow/internal/form"
	"permitflow/internal/logger"
	"permitflow/internal/metrics"
	"permitflow/internal/port"
)

// Outcome is the result of one extraction. A failure is reported through Error, never as a Go error.
type Outcome struct {
	IsValid       bool   `json:"is_valid"`
	Message       string `json:"message"`
	ExtractedText string `json:"extracted_text"`
	Error         string `json:"error,omitempty"`
}

// Adapter wraps a recognition engine factory and a PDF rasterizer.
type Adapter struct {
	engines    port.RecognizerFactory
	rasterizer port.Rasterizer
	textLayer  port.TextLayerReader
	maxPages   int
	scale      int
	metrics    *metrics.Metrics
	logger     *zap.Logger
}

// NewAdapter creates an Adapter. MaxPages and Scale default to 3 and 2.
func NewAdapter(engines port.RecognizerFactory, rasterizer port.Rasterizer, cfg config.OCRConfig, m *metrics.Metrics, log *zap.Logger) *Adapter {
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = 3
	}
	if cfg.Scale <= 0 {
		cfg.Scale = 2
	}
	return &Adapter{
		engines:    engines,
		rasterizer: rasterizer,
		maxPages:   cfg.MaxPages,
		scale:      cfg.Scale,
		metrics:    m,
		logger:     logger.OrNop(log),
	}
}

// WithTextLayer sets a reader used for PDFs that cannot be rasterized. Its text stands in for OCR
// output when the document carries an embedded text layer.
func (a *Adapter) WithTextLayer(r port.TextLayerReader) *Adapter {
	a.textLayer = r
	return a
}

// ExtractAndClassify recognizes the text of file and classifies it against kind. progress, if
// non-nil, receives integer percentages from the text-recognition phase across all pages.
// The engine is created for this call only and released on every exit path.
func (a *Adapter) ExtractAndClassify(ctx context.Context, kind domain.DocumentKind, file *form.File, progress func(int)) Outcome {
	start := time.Now()
	defer func() { a.metrics.ObserveExtractionLatency(time.Since(start)) }()

	if file == nil {
		a.metrics.IncExtraction(string(kind), "error")
		return Outcome{Error: "No file selected.", Message: "Please select a file to verify."}
	}

	text, err := a.extract(ctx, file, progress)
	if err != nil {
		err = &domain.ExtractionError{Attachment: file.Name, Err: err}
		a.logger.Warn("extraction.Adapter.ExtractAndClassify: extraction failed",
			zap.String("kind", string(kind)), zap.Error(err))
		a.metrics.IncExtraction(string(kind), "error")
		return Outcome{
			Error:   err.Error(),
			Message: "We could not read this document. You may still continue with your application.",
		}
	}

	valid, msg := Classify(kind, text)
	result := "invalid"
	if valid {
		result = "valid"
	}
	a.metrics.IncExtraction(string(kind), result)
	a.logger.Debug("extraction.Adapter.ExtractAndClassify: classified",
		zap.String("file", file.Name), zap.String("kind", string(kind)), zap.Bool("valid", valid), zap.Int("chars", len(text)))
	return Outcome{IsValid: valid, Message: msg, ExtractedText: text}
}

func (a *Adapter) extract(ctx context.Context, file *form.File, progress func(int)) (text string, err error) {
	engine, err := a.engines.NewRecognizer(ctx)
	if err != nil {
		return "", fmt.Errorf("starting recognition engine: %w", err)
	}
	defer func() {
		if terr := engine.Terminate(); terr != nil {
			a.logger.Warn("extraction.Adapter.extract: terminating engine", zap.Error(terr))
		}
	}()

	var images []port.Image
	if file.IsPDF() {
		images, err = a.rasterizer.Rasterize(ctx, file.Data, a.maxPages, a.scale)
		if err != nil {
			if text, ok := a.readTextLayer(ctx, file, err); ok {
				newProgressReporter(1, progress).done()
				return text, nil
			}
			return "", fmt.Errorf("rasterizing %s: %w", file.Name, err)
		}
		if len(images) > a.maxPages {
			images = images[:a.maxPages]
		}
	} else {
		images = []port.Image{{Data: file.Data, ContentType: file.ContentType}}
	}

	reporter := newProgressReporter(len(images), progress)
	pages := make([]string, 0, len(images))
	for i, img := range images {
		pageText, err := engine.Recognize(ctx, img, reporter.forPage(i))
		if err != nil {
			return "", fmt.Errorf("recognizing page %d: %w", i+1, err)
		}
		pages = append(pages, pageText)
	}
	reporter.done()
	return strings.Join(pages, "\n"), nil
}

func (a *Adapter) readTextLayer(ctx context.Context, file *form.File, rasterErr error) (string, bool) {
	if a.textLayer == nil {
		return "", false
	}
	text, err := a.textLayer.ReadText(ctx, file.Data, a.maxPages)
	if err != nil || strings.TrimSpace(text) == "" {
		return "", false
	}
	a.logger.Warn("extraction.Adapter.extract: rasterizing failed, using embedded text",
		zap.String("file", file.Name), zap.Error(rasterErr))
	return text, true
}

// progressReporter maps per-page recognition progress onto one 0..100 scale and never goes backwards.
type progressReporter struct {
	pages int
	fn    func(int)
	last  int
}

func newProgressReporter(pages int, fn func(int)) *progressReporter {
	if pages < 1 {
		pages = 1
	}
	return &progressReporter{pages: pages, fn: fn, last: -1}
}

func (r *progressReporter) forPage(i int) func(port.ProgressEvent) {
	return func(ev port.ProgressEvent) {
		if ev.Status != port.StatusRecognizingText {
			return
		}
		p := ev.Progress
		if p < 0 {
			p = 0
		}
		if p > 1 {
			p = 1
		}
		r.emit(int((float64(i) + p) / float64(r.pages) * 100))
	}
}

func (r *progressReporter) done() { r.emit(100) }

func (r *progressReporter) emit(pct int) {
	if r.fn == nil || pct <= r.last {
		return
	}
	r.last = pct
	r.fn(pct)
}

package port

import "context"

// StatusRecognizingText is the recognition sub-phase whose progress is surfaced to callers.
const StatusRecognizingText = "recognizing text"

// Image is a single bitmap handed to a text recognizer.
type Image struct {
	Data        []byte
	ContentType string
	Page        int // 1-based; 0 for a standalone image
}

// ProgressEvent reports recognition progress. Progress is a fraction in [0, 1] of the current Status.
type ProgressEvent struct {
	Status   string
	Progress float64
}

// Recognizer abstracts a text-recognition (OCR) engine. An engine is scoped to one extraction
// and must be released with Terminate once the caller is done with it.
type Recognizer interface {
	Recognize(ctx context.Context, img Image, onProgress func(ProgressEvent)) (string, error)
	Terminate() error
}

// RecognizerFactory creates a fresh engine per extraction.
type RecognizerFactory interface {
	NewRecognizer(ctx context.Context) (Recognizer, error)
}

// Rasterizer renders the leading pages of a paginated document to images.
type Rasterizer interface {
	Rasterize(ctx context.Context, document []byte, maxPages, scale int) ([]Image, error)
}

// TextLayerReader reads the embedded text of a paginated document without rendering it.
type TextLayerReader interface {
	ReadText(ctx context.Context, document []byte, maxPages int) (string, error)
}

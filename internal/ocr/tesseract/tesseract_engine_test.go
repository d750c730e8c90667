//go:build tesseract

package tesseract_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"permitflow/internal/config"
	"permitflow/internal/ocr/tesseract"
	"permitflow/internal/port"
)

func TestEngine_TerminateTwice(t *testing.T) {
	e := tesseract.NewEngine(&config.OCRProviderConfig{Provider: "tesseract"})
	require.NoError(t, e.Terminate())
	assert.NoError(t, e.Terminate())
}

func TestEngine_RecognizeAfterTerminate(t *testing.T) {
	e := tesseract.NewEngine(&config.OCRProviderConfig{Provider: "tesseract"})
	require.NoError(t, e.Terminate())

	_, err := e.Recognize(context.Background(), port.Image{Data: []byte{0x89}}, nil)
	assert.Error(t, err)
}

func TestEngine_CancelledContext(t *testing.T) {
	e := tesseract.NewEngine(&config.OCRProviderConfig{Provider: "tesseract", DefaultModel: "eng, fil"})
	defer func() { _ = e.Terminate() }()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var events []port.ProgressEvent
	_, err := e.Recognize(ctx, port.Image{Data: []byte{0x89}}, func(ev port.ProgressEvent) { events = append(events, ev) })
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, events)
}

func TestEngine_UnreadableImage(t *testing.T) {
	e := tesseract.NewEngine(&config.OCRProviderConfig{Provider: "tesseract"})
	defer func() { _ = e.Terminate() }()

	_, err := e.Recognize(context.Background(), port.Image{Data: []byte("not an image"), Page: 2}, nil)
	assert.Error(t, err)
}

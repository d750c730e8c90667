//go:build tesseract

package providers

import (
	"permitflow/internal/config"
	"permitflow/internal/ocr"
	"permitflow/internal/ocr/tesseract"
	"permitflow/internal/port"
)

func registerLocal() {
	ocr.RegisterProvider("tesseract", func(cfg *config.OCRProviderConfig) (port.Recognizer, error) {
		return tesseract.NewEngine(cfg), nil
	})
}

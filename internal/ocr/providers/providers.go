// Package providers registers the built-in OCR providers with the ocr factory registry.
package providers

import (
	"sync"

	"permitflow/internal/config"
	"permitflow/internal/ocr"
	"permitflow/internal/ocr/gemini"
	"permitflow/internal/ocr/inference"
	"permitflow/internal/port"
)

var once sync.Once

// Register makes the "gemini" and "inference" providers available, plus "tesseract" in builds
// tagged tesseract. Safe to call more than once.
func Register() {
	once.Do(func() {
		ocr.RegisterProvider("gemini", func(cfg *config.OCRProviderConfig) (port.Recognizer, error) {
			return gemini.NewEngine(cfg), nil
		})
		ocr.RegisterProvider("inference", func(cfg *config.OCRProviderConfig) (port.Recognizer, error) {
			return inference.NewEngine(cfg), nil
		})
		registerLocal()
	})
}

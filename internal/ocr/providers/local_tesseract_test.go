//go:build tesseract

package providers_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"permitflow/internal/ocr"
	"permitflow/internal/ocr/providers"
)

func TestRegister_Tesseract(t *testing.T) {
	providers.Register()
	assert.Contains(t, ocr.Providers(), "tesseract")
}

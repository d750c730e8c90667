package ocr_test

import (
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"permitflow/internal/ocr"
)

func TestRateLimitError(t *testing.T) {
	inner := errors.New("429")
	err := ocr.NewRateLimitError("gemini", inner, 0)

	assert.Equal(t, time.Minute, err.RetryAfter)
	assert.ErrorIs(t, err, inner)
	assert.Contains(t, err.Error(), "gemini rate limited")
}

func TestRetryAfter(t *testing.T) {
	now := time.Date(2025, 10, 21, 7, 28, 0, 0, time.UTC)
	tests := []struct {
		name  string
		value string
		want  time.Duration
	}{
		{"seconds", "30", 30 * time.Second},
		{"absent", "", 0},
		{"negative", "-5", 0},
		{"http_date", "Tue, 21 Oct 2025 07:29:30 GMT", 90 * time.Second},
		{"date_in_past", "Wed, 21 Oct 2015 07:28:00 GMT", 0},
		{"garbage", "soon", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := http.Header{}
			if tt.value != "" {
				h.Set("Retry-After", tt.value)
			}
			assert.Equal(t, tt.want, ocr.RetryAfter(h, now))
		})
	}
}

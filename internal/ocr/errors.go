package ocr

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// defaultBackoff applies when a provider throttles without saying for how long.
const defaultBackoff = time.Minute

// ErrTerminated is returned by an engine used after Terminate.
var ErrTerminated = errors.New("ocr engine terminated")

// RateLimitError means a provider refused a page with HTTP 429. The fallback engine keeps the
// provider's circuit open for RetryAfter.
type RateLimitError struct {
	Err        error
	RetryAfter time.Duration
	Provider   string
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("%s rate limited (retry after %s): %v", e.Provider, e.RetryAfter, e.Err)
}

func (e *RateLimitError) Unwrap() error { return e.Err }

// NewRateLimitError wraps a throttled page request. A non-positive retryAfter becomes one minute.
func NewRateLimitError(provider string, err error, retryAfter time.Duration) *RateLimitError {
	if retryAfter <= 0 {
		retryAfter = defaultBackoff
	}
	return &RateLimitError{Err: err, RetryAfter: retryAfter, Provider: provider}
}

// RetryAfter reads the backoff a throttling OCR provider asks for. Gemini sends delta seconds; a
// proxy in front of a self-hosted inference server may send an HTTP date instead. Zero means the
// header is absent, unreadable or already past.
func RetryAfter(h http.Header, now time.Time) time.Duration {
	val := strings.TrimSpace(h.Get("Retry-After"))
	if val == "" {
		return 0
	}
	if secs, err := strconv.Atoi(val); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	at, err := http.ParseTime(val)
	if err != nil || !at.After(now) {
		return 0
	}
	return at.Sub(now).Round(time.Second)
}

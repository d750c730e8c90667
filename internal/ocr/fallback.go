package ocr

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"permitflow/internal/logger"
	"permitflow/internal/port"
)

// circuitState tracks rate-limit backoff for a single provider.
type circuitState struct {
	mu      sync.RWMutex
	resetAt time.Time // zero value = closed (healthy)
}

func (c *circuitState) isOpenWithReset(now time.Time) (time.Time, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.resetAt, !c.resetAt.IsZero() && now.Before(c.resetAt)
}

func (c *circuitState) open(resetAt time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resetAt = resetAt
}

// FallbackRecognizer tries engines in order, skipping those with open circuits.
// It implements port.Recognizer; Terminate releases every engine it wraps.
type FallbackRecognizer struct {
	engines  []port.Recognizer
	circuits []*circuitState
	names    []string
	logger   *zap.Logger
}

// NewFallbackRecognizer creates a FallbackRecognizer with fresh circuits.
func NewFallbackRecognizer(engines []port.Recognizer, names []string, log *zap.Logger) *FallbackRecognizer {
	circuits := make([]*circuitState, len(engines))
	for i := range circuits {
		circuits[i] = &circuitState{}
	}
	return newFallbackRecognizer(engines, names, circuits, log)
}

func newFallbackRecognizer(engines []port.Recognizer, names []string, circuits []*circuitState, log *zap.Logger) *FallbackRecognizer {
	return &FallbackRecognizer{engines: engines, circuits: circuits, names: names, logger: logger.OrNop(log)}
}

func (f *FallbackRecognizer) Recognize(ctx context.Context, img port.Image, onProgress func(port.ProgressEvent)) (string, error) {
	now := time.Now()
	var lastErr error
	allRateLimited := true
	var earliestReset time.Time

	for i, e := range f.engines {
		if resetAt, open := f.circuits[i].isOpenWithReset(now); open {
			f.logger.Info("ocr.FallbackRecognizer: skipping provider",
				zap.String("provider", f.names[i]), zap.Time("circuit_open_until", resetAt))
			if earliestReset.IsZero() || resetAt.Before(earliestReset) {
				earliestReset = resetAt
			}
			continue
		}

		text, err := e.Recognize(ctx, img, onProgress)
		if err == nil {
			return text, nil
		}

		f.logger.Warn("ocr.FallbackRecognizer: provider failed", zap.String("provider", f.names[i]), zap.Error(err))
		lastErr = err

		var rlErr *RateLimitError
		if errors.As(err, &rlErr) {
			resetAt := now.Add(rlErr.RetryAfter)
			f.circuits[i].open(resetAt)
			if earliestReset.IsZero() || resetAt.Before(earliestReset) {
				earliestReset = resetAt
			}
		} else {
			allRateLimited = false
		}
	}

	if lastErr == nil || allRateLimited {
		retryAfter := time.Until(earliestReset)
		if retryAfter < time.Second {
			retryAfter = time.Second
		}
		return "", NewRateLimitError("all", errors.New("all ocr providers rate limited"), retryAfter)
	}
	return "", fmt.Errorf("all ocr providers failed: %w", lastErr)
}

// Terminate releases every wrapped engine and returns the first error.
func (f *FallbackRecognizer) Terminate() error {
	var first error
	for _, e := range f.engines {
		if err := e.Terminate(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

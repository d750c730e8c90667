// Package submission sends a completed application to the permit office and interprets the reply.
package submission

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"permitflow/internal/config"
	"permitflow/internal/domain"
	"permitflow/internal/form"
	"permitflow/internal/logger"
	"permitflow/internal/metrics"
	"permitflow/internal/validator"
)

const maxReplyBytes = 1 << 20

// Result describes a successful submission.
type Result struct {
	State         domain.AttemptState `json:"state"`
	Message       string              `json:"message"`
	RedirectURL   string              `json:"redirect_url"`
	RedirectAfter time.Duration       `json:"-"`
	RedirectMS    int64               `json:"redirect_after_ms"`
}

// Coordinator validates, encodes and posts applications. It never retries.
type Coordinator struct {
	endpoints     config.EndpointsConfig
	redirectDelay time.Duration
	http          *http.Client
	metrics       *metrics.Metrics
	logger        *zap.Logger
}

// NewCoordinator creates a Coordinator.
func NewCoordinator(endpoints config.EndpointsConfig, cfg config.SubmissionConfig, m *metrics.Metrics, log *zap.Logger) *Coordinator {
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	delay := cfg.RedirectDelay
	if delay <= 0 {
		delay = 3 * time.Second
	}
	return &Coordinator{
		endpoints:     endpoints,
		redirectDelay: delay,
		http:          &http.Client{Timeout: timeout},
		metrics:       m,
		logger:        logger.OrNop(log),
	}
}

// Submit re-validates every step, then posts the form. Failures are *domain.SubmissionError.
func (c *Coordinator) Submit(ctx context.Context, v *validator.StepValidator, f *form.Form, opts validator.Options) (*Result, error) {
	def := v.Definition()
	formType := string(def.Type)

	// Validating
	if res := v.ValidateAll(f, opts); !res.OK {
		c.metrics.IncSubmission(formType, string(domain.AttemptAborted))
		return nil, &domain.SubmissionError{
			State:   domain.AttemptAborted,
			Step:    res.Step,
			Message: res.Message,
			Err:     res.Err(),
		}
	}

	endpoint := c.endpoints.SubmitURL(formType)
	if endpoint == "" {
		return nil, c.fail(formType, 0, "No submission endpoint is configured for this form.", nil)
	}

	p, err := buildPayload(def, f)
	if err != nil {
		c.metrics.IncSubmission(formType, string(domain.AttemptAborted))
		return nil, &domain.SubmissionError{
			State:   domain.AttemptAborted,
			Message: "The signature could not be read. Please sign the declaration again.",
			Err:     err,
		}
	}

	// Sending
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, p.body)
	if err != nil {
		return nil, c.fail(formType, 0, networkDiagnostic(endpoint), err)
	}
	req.Header.Set("Content-Type", p.contentType)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("submission.Coordinator.Submit: request failed",
			zap.String("form", formType), zap.String("endpoint", endpoint), zap.Error(err))
		return nil, c.fail(formType, 0, networkDiagnostic(endpoint), err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxReplyBytes))
	if err != nil {
		return nil, c.fail(formType, resp.StatusCode, networkDiagnostic(endpoint), err)
	}
	c.logger.Debug("submission.Coordinator.Submit: reply received",
		zap.String("form", formType), zap.Int("status", resp.StatusCode),
		zap.Int("bytes", len(body)), zap.Duration("elapsed", time.Since(start)))

	reply, diagnostic := parseReply(body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := fmt.Sprintf("The server returned an error (HTTP %d).", resp.StatusCode)
		switch {
		case reply != nil && reply.reason() != "":
			msg += " " + reply.reason()
		case reply == nil:
			msg += " " + diagnostic
		}
		return nil, c.fail(formType, resp.StatusCode, msg, nil)
	}
	if reply == nil {
		c.logger.Warn("submission.Coordinator.Submit: unreadable reply",
			zap.String("form", formType), zap.ByteString("head", head(body)))
		return nil, c.fail(formType, resp.StatusCode, diagnostic, nil)
	}
	if !reply.ok() {
		msg := reply.reason()
		if msg == "" {
			msg = "The permit office did not accept the application."
		}
		return nil, c.fail(formType, resp.StatusCode, msg, nil)
	}

	msg := reply.Message
	if msg == "" {
		msg = "Your application has been submitted successfully."
	}
	c.metrics.IncSubmission(formType, string(domain.AttemptSuccess))
	c.logger.Info("submission.Coordinator.Submit: accepted", zap.String("form", formType))
	return &Result{
		State:         domain.AttemptSuccess,
		Message:       msg,
		RedirectURL:   c.endpoints.TrackingURL,
		RedirectAfter: c.redirectDelay,
		RedirectMS:    c.redirectDelay.Milliseconds(),
	}, nil
}

func (c *Coordinator) fail(formType string, status int, msg string, err error) error {
	c.metrics.IncSubmission(formType, string(domain.AttemptFailed))
	return &domain.SubmissionError{State: domain.AttemptFailed, StatusCode: status, Message: msg, Err: err}
}

func head(b []byte) []byte {
	if len(b) > 200 {
		return b[:200]
	}
	return b
}

// IsAborted reports whether err is a submission that never left validation.
func IsAborted(err error) bool {
	var se *domain.SubmissionError
	return errors.As(err, &se) && se.State == domain.AttemptAborted
}

// Package wizard sequences the steps of one application.
package wizard

import (
	"context"
	"errors"
	"sync"

	"permitflow/internal/domain"
	"permitflow/internal/form"
	"permitflow/internal/submission"
	"permitflow/internal/validator"
)

// Submitter sends a completed application.
type Submitter interface {
	Submit(ctx context.Context, v *validator.StepValidator, f *form.Form, opts validator.Options) (*submission.Result, error)
}

// State is the externally visible position of the wizard.
type State struct {
	CurrentStep int    `json:"current_step"`
	StepCount   int    `json:"step_count"`
	StepError   string `json:"step_error,omitempty"`
	Submitting  bool   `json:"submitting"`
	Submitted   bool   `json:"submitted"`

	Attempt domain.AttemptState `json:"attempt"`
}

// Controller holds the step counter. The counter moves forward only past a step that validates
// and moves back only through Previous.
type Controller struct {
	validator *validator.StepValidator
	form      *form.Form
	submitter Submitter

	mu      sync.Mutex
	current int
	stepErr string
	attempt domain.AttemptState
}

// New creates a controller positioned on step 1.
func New(v *validator.StepValidator, f *form.Form, s Submitter) *Controller {
	return &Controller{validator: v, form: f, submitter: s, current: 1, attempt: domain.AttemptIdle}
}

// State returns the current position.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stateLocked()
}

func (c *Controller) stateLocked() State {
	return State{
		CurrentStep: c.current,
		StepCount:   c.validator.Definition().StepCount(),
		StepError:   c.stepErr,
		Submitting:  c.inFlight(),
		Submitted:   c.attempt == domain.AttemptSuccess,
		Attempt:     c.attempt,
	}
}

// Next validates the current step. On success it advances (never past the last step) and clears
// the step error; on failure the step is unchanged and the returned error is a *domain.ValidationError.
func (c *Controller) Next(opts validator.Options) (State, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	res := c.validator.Validate(c.current, c.form, opts)
	if !res.OK {
		c.stepErr = res.Message
		return c.stateLocked(), res.Err()
	}
	if c.current < c.validator.Definition().StepCount() {
		c.current++
	}
	c.stepErr = ""
	return c.stateLocked(), nil
}

// Previous steps back, never below step 1, and clears the step error.
func (c *Controller) Previous() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current > 1 {
		c.current--
	}
	c.stepErr = ""
	return c.stateLocked()
}

// Submit sends the application. It is only reachable from the final step with consent given.
// Only one attempt runs at a time and a successful application cannot be sent again. The attempt
// moves Idle, Validating, then Aborted or Sending, then Success or Failed.
func (c *Controller) Submit(ctx context.Context, consent bool, opts validator.Options) (*submission.Result, error) {
	c.mu.Lock()
	switch {
	case c.attempt == domain.AttemptSuccess:
		c.mu.Unlock()
		return nil, domain.ErrSubmissionFinished
	case c.inFlight():
		c.mu.Unlock()
		return nil, domain.ErrSubmissionInFlight
	case c.current != c.validator.Definition().StepCount():
		c.mu.Unlock()
		return nil, domain.ErrNotFinalStep
	case !consent:
		c.mu.Unlock()
		return nil, domain.ErrConsentRequired
	}
	c.attempt = domain.AttemptValidating
	if res := c.validator.ValidateAll(c.form, opts); !res.OK {
		c.attempt = domain.AttemptAborted
		c.stepErr = res.Message
		c.mu.Unlock()
		return nil, &domain.SubmissionError{State: domain.AttemptAborted, Step: res.Step, Message: res.Message, Err: res.Err()}
	}
	c.attempt = domain.AttemptSending
	c.mu.Unlock()

	res, err := c.submitter.Submit(ctx, c.validator, c.form, opts)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.attempt = domain.AttemptFailed
		var se *domain.SubmissionError
		if errors.As(err, &se) {
			c.stepErr = se.Message
			if se.State == domain.AttemptAborted {
				c.attempt = domain.AttemptAborted
			}
		} else {
			c.stepErr = err.Error()
		}
		return nil, err
	}
	c.attempt = domain.AttemptSuccess
	c.stepErr = ""
	return res, nil
}

func (c *Controller) inFlight() bool {
	return c.attempt == domain.AttemptValidating || c.attempt == domain.AttemptSending
}

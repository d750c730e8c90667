package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrSessionNotFound     = errors.New("wizard session not found")
	ErrUnknownFormType     = errors.New("unknown form type")
	ErrUnknownField        = errors.New("unknown form field")
	ErrUnknownAttachment   = errors.New("unknown attachment")
	ErrInvalidStep         = errors.New("step out of range")
	ErrNotFinalStep        = errors.New("submission is only available from the final step")
	ErrConsentRequired     = errors.New("you must confirm the declaration before submitting")
	ErrSubmissionFinished  = errors.New("application has already been submitted")
	ErrSubmissionInFlight  = errors.New("a submission for this application is already in progress")
	ErrUnsupportedFileType = errors.New("unsupported file type")
	ErrFileTooLarge        = errors.New("file exceeds maximum allowed size")
	ErrNoPreview           = errors.New("no preview is open")
	ErrNoFileAttached      = errors.New("no file is attached")
	ErrNotVerifiable       = errors.New("attachment does not accept a verifiable reference id")
)

// ValidationError is a local, user-correctable step failure. It never reaches the network.
type ValidationError struct {
	Step          int
	MissingFields []string
	Message       string
}

func (e *ValidationError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "Please complete the following: " + strings.Join(e.MissingFields, ", ")
}

// VerificationError describes a failed remote status check. It is advisory.
type VerificationError struct {
	Kind VerifyKind
	ID   string
	Err  error
}

func (e *VerificationError) Error() string {
	return fmt.Sprintf("%s verification for %q: %v", e.Kind, e.ID, e.Err)
}

func (e *VerificationError) Unwrap() error { return e.Err }

// ExtractionError describes an OCR or rasterization failure for one document.
type ExtractionError struct {
	Attachment string // file name
	Err        error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extracting text from %s: %v", e.Attachment, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// SubmissionError is fatal to one submission attempt; the user must retry explicitly.
type SubmissionError struct {
	State      AttemptState
	Step       int // first failing step when State is AttemptAborted
	StatusCode int
	Message    string
	Err        error
}

func (e *SubmissionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *SubmissionError) Unwrap() error { return e.Err }

package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"permitflow/internal/domain"
	"permitflow/internal/middleware"
)

// APIResponse is the standard envelope for all API responses.
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *APIError   `json:"error,omitempty"`
}

// APIError holds error details in the response.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	// Details carries structured context for validation and submission failures.
	Details interface{} `json:"details,omitempty"`
}

// ValidationDetails is attached to VALIDATION_FAILED errors.
type ValidationDetails struct {
	Step          int               `json:"step"`
	MissingFields []string          `json:"missing_fields,omitempty"`
	FieldErrors   map[string]string `json:"field_errors,omitempty"`
}

// SubmissionDetails is attached to submission errors.
type SubmissionDetails struct {
	State      domain.AttemptState `json:"state"`
	Step       int                 `json:"step,omitempty"`
	StatusCode int                 `json:"status_code,omitempty"`
}

// RespondOK sends a 200 success response.
func RespondOK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, APIResponse{Success: true, Data: data})
}

// RespondCreated sends a 201 success response.
func RespondCreated(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, APIResponse{Success: true, Data: data})
}

// RespondError sends an error response with the given status code.
func RespondError(c *gin.Context, status int, code, msg string) {
	c.JSON(status, APIResponse{
		Success: false,
		Error:   &APIError{Code: code, Message: msg},
	})
}

// MapDomainError translates domain errors to HTTP status codes and error codes.
func MapDomainError(err error) (status int, code, msg string) {
	var ve *domain.ValidationError
	if errors.As(err, &ve) {
		return http.StatusUnprocessableEntity, "VALIDATION_FAILED", ve.Error()
	}
	var se *domain.SubmissionError
	if errors.As(err, &se) {
		if se.State == domain.AttemptAborted {
			return http.StatusUnprocessableEntity, "SUBMISSION_ABORTED", se.Message
		}
		return http.StatusBadGateway, "SUBMISSION_FAILED", se.Message
	}

	switch {
	case errors.Is(err, domain.ErrSessionNotFound):
		return http.StatusNotFound, "SESSION_NOT_FOUND", "wizard session not found or expired"
	case errors.Is(err, domain.ErrUnknownFormType):
		return http.StatusNotFound, "UNKNOWN_FORM_TYPE", "unknown form type; allowed: renewal, special"
	case errors.Is(err, domain.ErrUnknownField):
		return http.StatusBadRequest, "UNKNOWN_FIELD", err.Error()
	case errors.Is(err, domain.ErrUnknownAttachment):
		return http.StatusBadRequest, "UNKNOWN_ATTACHMENT", err.Error()
	case errors.Is(err, domain.ErrInvalidStep):
		return http.StatusBadRequest, "INVALID_STEP", "step out of range"
	case errors.Is(err, domain.ErrNotFinalStep):
		return http.StatusConflict, "NOT_FINAL_STEP", "submission is only available from the final step"
	case errors.Is(err, domain.ErrConsentRequired):
		return http.StatusUnprocessableEntity, "CONSENT_REQUIRED", "you must confirm the declaration before submitting"
	case errors.Is(err, domain.ErrSubmissionFinished):
		return http.StatusConflict, "ALREADY_SUBMITTED", "application has already been submitted"
	case errors.Is(err, domain.ErrSubmissionInFlight):
		return http.StatusConflict, "SUBMISSION_IN_PROGRESS", "a submission for this application is already in progress"
	case errors.Is(err, domain.ErrUnsupportedFileType):
		return http.StatusBadRequest, "UNSUPPORTED_FILE_TYPE", "unsupported file type; allowed: pdf, jpg, png"
	case errors.Is(err, domain.ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE", "file exceeds maximum allowed size"
	case errors.Is(err, domain.ErrNoPreview):
		return http.StatusNotFound, "NO_PREVIEW", "no preview is open"
	case errors.Is(err, domain.ErrNoFileAttached):
		return http.StatusConflict, "NO_FILE_ATTACHED", "no file is attached"
	case errors.Is(err, domain.ErrNotVerifiable):
		return http.StatusBadRequest, "NOT_VERIFIABLE", "attachment does not accept a verifiable reference id"
	default:
		return http.StatusInternalServerError, "INTERNAL_ERROR", "an internal error occurred"
	}
}

// errorDetails returns structured details for typed errors.
func errorDetails(err error) interface{} {
	var ve *domain.ValidationError
	if errors.As(err, &ve) {
		return &ValidationDetails{Step: ve.Step, MissingFields: ve.MissingFields}
	}
	var se *domain.SubmissionError
	if errors.As(err, &se) {
		return &SubmissionDetails{State: se.State, Step: se.Step, StatusCode: se.StatusCode}
	}
	return nil
}

// HandleError maps a domain error and sends the appropriate error response.
func HandleError(c *gin.Context, log *zap.Logger, err error) {
	status, code, msg := MapDomainError(err)
	if status >= 500 && log != nil {
		requestID, _ := c.Get(middleware.RequestIDKey)
		log.Error("handler.HandleError: internal error",
			zap.Any("request_id", requestID), zap.String("path", c.FullPath()), zap.Error(err))
	}
	c.JSON(status, APIResponse{
		Success: false,
		Error:   &APIError{Code: code, Message: msg, Details: errorDetails(err)},
	})
}

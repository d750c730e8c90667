package handler_test

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"permitflow/internal/domain"
	"permitflow/internal/handler"
)

func TestMapDomainError(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{domain.ErrSessionNotFound, http.StatusNotFound, "SESSION_NOT_FOUND"},
		{fmt.Errorf("get: %w", domain.ErrUnknownFormType), http.StatusNotFound, "UNKNOWN_FORM_TYPE"},
		{domain.ErrNotFinalStep, http.StatusConflict, "NOT_FINAL_STEP"},
		{domain.ErrSubmissionInFlight, http.StatusConflict, "SUBMISSION_IN_PROGRESS"},
		{domain.ErrFileTooLarge, http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE"},
		{domain.ErrNotVerifiable, http.StatusBadRequest, "NOT_VERIFIABLE"},
		{&domain.ValidationError{Step: 2, MissingFields: []string{"Signature"}}, http.StatusUnprocessableEntity, "VALIDATION_FAILED"},
		{&domain.SubmissionError{State: domain.AttemptFailed, Message: "The server returned an error (HTTP 500)."}, http.StatusBadGateway, "SUBMISSION_FAILED"},
		{fmt.Errorf("boom"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			status, code, msg := handler.MapDomainError(tt.err)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.code, code)
			assert.NotEmpty(t, msg)
		})
	}
}

func TestMapDomainError_ValidationMessage(t *testing.T) {
	_, _, msg := handler.MapDomainError(&domain.ValidationError{MissingFields: []string{"Business Name", "Email"}})
	assert.Equal(t, "Please complete the following: Business Name, Email", msg)
}

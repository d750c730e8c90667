package handler_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"permitflow/internal/domain"
	"permitflow/internal/form"
	"permitflow/internal/handler"
	"permitflow/internal/service"
	"permitflow/internal/submission"
	"permitflow/internal/wizard"
	"permitflow/mocks"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var pngBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01")

func newContext(method, target string, body io.Reader, params gin.Params) (*gin.Context, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest(method, target, body)
	if body != nil {
		c.Request.Header.Set("Content-Type", "application/json")
	}
	c.Params = params
	return c, w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) handler.APIResponse {
	t.Helper()
	var resp handler.APIResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func multipartBody(t *testing.T, name string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", name)
	require.NoError(t, err)
	_, _ = part.Write(data)
	require.NoError(t, writer.Close())
	return body, writer.FormDataContentType()
}

func TestWizardHandler_Create_Success(t *testing.T) {
	svc := new(mocks.MockWizardService)
	h := handler.NewWizardHandler(svc, 0, nil)

	svc.On("CreateSession", mock.Anything, &service.CreateSessionInput{FormType: domain.FormTypeRenewal, ApplicantID: "APP-1"}).
		Return(&service.SessionView{ID: "s1", FormType: domain.FormTypeRenewal}, nil)

	c, w := newContext(http.MethodPost, "/api/v1/sessions",
		strings.NewReader(`{"form_type":"renewal","applicant_id":"APP-1"}`), nil)
	h.Create(c)

	assert.Equal(t, http.StatusCreated, w.Code)
	resp := decode(t, w)
	assert.True(t, resp.Success)
	svc.AssertExpectations(t)
}

func TestWizardHandler_Create_MissingFormType(t *testing.T) {
	svc := new(mocks.MockWizardService)
	h := handler.NewWizardHandler(svc, 0, nil)

	c, w := newContext(http.MethodPost, "/api/v1/sessions", strings.NewReader(`{}`), nil)
	h.Create(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	svc.AssertNotCalled(t, "CreateSession", mock.Anything, mock.Anything)
}

func TestWizardHandler_Create_UnknownFormType(t *testing.T) {
	svc := new(mocks.MockWizardService)
	h := handler.NewWizardHandler(svc, 0, nil)

	svc.On("CreateSession", mock.Anything, mock.Anything).Return(nil, domain.ErrUnknownFormType)

	c, w := newContext(http.MethodPost, "/api/v1/sessions", strings.NewReader(`{"form_type":"zoning"}`), nil)
	h.Create(c)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "UNKNOWN_FORM_TYPE", decode(t, w).Error.Code)
}

func TestWizardHandler_Get_NotFound(t *testing.T) {
	svc := new(mocks.MockWizardService)
	h := handler.NewWizardHandler(svc, 0, nil)

	svc.On("GetSession", mock.Anything, "missing").Return(nil, domain.ErrSessionNotFound)

	c, w := newContext(http.MethodGet, "/api/v1/sessions/missing", nil, gin.Params{{Key: "id", Value: "missing"}})
	h.Get(c)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "SESSION_NOT_FOUND", decode(t, w).Error.Code)
}

func TestWizardHandler_SetFields_UnknownField(t *testing.T) {
	svc := new(mocks.MockWizardService)
	h := handler.NewWizardHandler(svc, 0, nil)

	svc.On("SetFields", mock.Anything, "s1", &service.SetFieldsInput{Values: map[string]string{"shoe_size": "9"}}).
		Return(nil, domain.ErrUnknownField)

	c, w := newContext(http.MethodPut, "/api/v1/sessions/s1/fields",
		strings.NewReader(`{"values":{"shoe_size":"9"}}`), gin.Params{{Key: "id", Value: "s1"}})
	h.SetFields(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "UNKNOWN_FIELD", decode(t, w).Error.Code)
}

func TestWizardHandler_AttachFile_Success(t *testing.T) {
	svc := new(mocks.MockWizardService)
	h := handler.NewWizardHandler(svc, 1<<20, nil)

	svc.On("AttachFile", mock.Anything, "s1", "dti_registration", mock.MatchedBy(func(f *form.File) bool {
		return f.Name == "dti.png" && f.ContentType == "image/png"
	})).Return(&service.SessionView{ID: "s1"}, nil)

	body, ct := multipartBody(t, "dti.png", pngBytes)
	c, w := newContext(http.MethodPost, "/api/v1/sessions/s1/files/dti_registration", body,
		gin.Params{{Key: "id", Value: "s1"}, {Key: "field", Value: "dti_registration"}})
	c.Request.Header.Set("Content-Type", ct)
	h.AttachFile(c)

	assert.Equal(t, http.StatusCreated, w.Code)
	svc.AssertExpectations(t)
}

func TestWizardHandler_AttachFile_Rejections(t *testing.T) {
	tests := []struct {
		name     string
		data     []byte
		maxBytes int64
		status   int
		code     string
	}{
		{"too large", bytes.Repeat([]byte("a"), 64), 16, http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE"},
		{"wrong type", []byte("just some text, not a document"), 1 << 20, http.StatusBadRequest, "UNSUPPORTED_FILE_TYPE"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(mocks.MockWizardService)
			h := handler.NewWizardHandler(svc, tt.maxBytes, nil)

			body, ct := multipartBody(t, "upload.bin", tt.data)
			c, w := newContext(http.MethodPost, "/api/v1/sessions/s1/files/dti_registration", body,
				gin.Params{{Key: "id", Value: "s1"}, {Key: "field", Value: "dti_registration"}})
			c.Request.Header.Set("Content-Type", ct)
			h.AttachFile(c)

			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.code, decode(t, w).Error.Code)
			svc.AssertNotCalled(t, "AttachFile", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestWizardHandler_AttachFile_NoFile(t *testing.T) {
	svc := new(mocks.MockWizardService)
	h := handler.NewWizardHandler(svc, 0, nil)

	c, w := newContext(http.MethodPost, "/api/v1/sessions/s1/files/x", nil,
		gin.Params{{Key: "id", Value: "s1"}, {Key: "field", Value: "x"}})
	h.AttachFile(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "MISSING_FILE", decode(t, w).Error.Code)
}

func TestWizardHandler_Verify_UnsuccessfulIsStillOK(t *testing.T) {
	svc := new(mocks.MockWizardService)
	h := handler.NewWizardHandler(svc, 0, nil)

	svc.On("VerifyAttachment", mock.Anything, "s1", "barangay_clearance", "BC-9").
		Return(&domain.VerificationResult{Success: false, Message: "No barangay clearance record was found for BC-9."}, nil)

	c, w := newContext(http.MethodPost, "/api/v1/sessions/s1/verify/barangay_clearance",
		strings.NewReader(`{"reference_id":"BC-9"}`),
		gin.Params{{Key: "id", Value: "s1"}, {Key: "attachment", Value: "barangay_clearance"}})
	h.Verify(c)

	assert.Equal(t, http.StatusOK, w.Code)
	resp := decode(t, w)
	assert.True(t, resp.Success)
	data := resp.Data.(map[string]interface{})
	assert.Equal(t, false, data["success"])
}

func TestWizardHandler_Extract_Accepted(t *testing.T) {
	svc := new(mocks.MockWizardService)
	h := handler.NewWizardHandler(svc, 0, nil)

	svc.On("ExtractDocument", mock.Anything, "s1", "dti_registration").
		Return(&domain.DocumentState{Verifying: true}, nil)

	c, w := newContext(http.MethodPost, "/api/v1/sessions/s1/extract/dti_registration", nil,
		gin.Params{{Key: "id", Value: "s1"}, {Key: "attachment", Value: "dti_registration"}})
	h.Extract(c)

	assert.Equal(t, http.StatusAccepted, w.Code)
}

func TestWizardHandler_Next_ValidationFailure(t *testing.T) {
	svc := new(mocks.MockWizardService)
	h := handler.NewWizardHandler(svc, 0, nil)

	out := &service.StepOutcome{
		State:       wizard.State{CurrentStep: 1, StepCount: 4, StepError: "Please complete the following: Business Name"},
		FieldErrors: map[string]string{"email": "Enter a valid email address."},
	}
	verr := &domain.ValidationError{Step: 1, MissingFields: []string{"Business Name"}}
	svc.On("Next", mock.Anything, "s1").Return(out, verr)

	c, w := newContext(http.MethodPost, "/api/v1/sessions/s1/next", nil, gin.Params{{Key: "id", Value: "s1"}})
	h.Next(c)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	resp := decode(t, w)
	assert.False(t, resp.Success)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "VALIDATION_FAILED", resp.Error.Code)
	details := resp.Error.Details.(map[string]interface{})
	assert.Equal(t, []interface{}{"Business Name"}, details["missing_fields"])
	assert.Contains(t, details["field_errors"], "email")
}

func TestWizardHandler_Validate_BadStep(t *testing.T) {
	svc := new(mocks.MockWizardService)
	h := handler.NewWizardHandler(svc, 0, nil)

	c, w := newContext(http.MethodGet, "/api/v1/sessions/s1/validate?step=zero", nil, gin.Params{{Key: "id", Value: "s1"}})
	h.Validate(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	svc.AssertNotCalled(t, "ValidateStep", mock.Anything, mock.Anything, mock.Anything)
}

func TestWizardHandler_Submit(t *testing.T) {
	tests := []struct {
		name   string
		result *submission.Result
		err    error
		status int
		code   string
	}{
		{
			name:   "success",
			result: &submission.Result{State: domain.AttemptSuccess, Message: "Your application has been submitted successfully."},
			status: http.StatusOK,
		},
		{
			name:   "consent missing",
			err:    domain.ErrConsentRequired,
			status: http.StatusUnprocessableEntity,
			code:   "CONSENT_REQUIRED",
		},
		{
			name:   "aborted by validation",
			err:    &domain.SubmissionError{State: domain.AttemptAborted, Step: 2, Message: "Please complete the following: Signature"},
			status: http.StatusUnprocessableEntity,
			code:   "SUBMISSION_ABORTED",
		},
		{
			name:   "server script error",
			err:    &domain.SubmissionError{State: domain.AttemptFailed, Message: "The permit server reported a script error (PHP)."},
			status: http.StatusBadGateway,
			code:   "SUBMISSION_FAILED",
		},
		{
			name:   "already submitted",
			err:    domain.ErrSubmissionFinished,
			status: http.StatusConflict,
			code:   "ALREADY_SUBMITTED",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(mocks.MockWizardService)
			h := handler.NewWizardHandler(svc, 0, nil)
			if tt.err != nil {
				svc.On("Submit", mock.Anything, "s1", true).Return(nil, tt.err)
			} else {
				svc.On("Submit", mock.Anything, "s1", true).Return(tt.result, nil)
			}

			c, w := newContext(http.MethodPost, "/api/v1/sessions/s1/submit",
				strings.NewReader(`{"consent":true}`), gin.Params{{Key: "id", Value: "s1"}})
			h.Submit(c)

			assert.Equal(t, tt.status, w.Code)
			resp := decode(t, w)
			if tt.code == "" {
				assert.True(t, resp.Success)
				return
			}
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.code, resp.Error.Code)
			var se *domain.SubmissionError
			if errors.As(tt.err, &se) {
				assert.Equal(t, se.Message, resp.Error.Message)
			}
		})
	}
}

func TestWizardHandler_ReviewCSV(t *testing.T) {
	svc := new(mocks.MockWizardService)
	h := handler.NewWizardHandler(svc, 0, nil)

	svc.On("ReviewCSV", mock.Anything, "s1", mock.Anything).
		Run(func(args mock.Arguments) {
			_, _ = args.Get(2).(io.Writer).Write([]byte("Step,Field,Value\n"))
		}).
		Return("Acme_Bakery_20261019.csv", nil)

	c, w := newContext(http.MethodGet, "/api/v1/sessions/s1/review.csv", nil, gin.Params{{Key: "id", Value: "s1"}})
	h.ReviewCSV(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "Acme_Bakery_20261019.csv")
	assert.Equal(t, "Step,Field,Value\n", w.Body.String())
}

func TestWizardHandler_ReviewWorkbook_SessionGone(t *testing.T) {
	svc := new(mocks.MockWizardService)
	h := handler.NewWizardHandler(svc, 0, nil)

	svc.On("ReviewWorkbook", mock.Anything, "s1", mock.Anything).Return("", domain.ErrSessionNotFound)

	c, w := newContext(http.MethodGet, "/api/v1/sessions/s1/review.xlsx", nil, gin.Params{{Key: "id", Value: "s1"}})
	h.ReviewWorkbook(c)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Empty(t, w.Header().Get("Content-Disposition"))
}

func TestWizardHandler_ClosePreview_NoneOpen(t *testing.T) {
	svc := new(mocks.MockWizardService)
	h := handler.NewWizardHandler(svc, 0, nil)

	svc.On("ClosePreview", mock.Anything, "s1").Return(domain.ErrNoPreview)

	c, w := newContext(http.MethodDelete, "/api/v1/sessions/s1/preview", nil, gin.Params{{Key: "id", Value: "s1"}})
	h.ClosePreview(c)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "NO_PREVIEW", decode(t, w).Error.Code)
}

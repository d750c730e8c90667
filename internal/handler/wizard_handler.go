package handler

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"permitflow/internal/domain"
	"permitflow/internal/form"
	"permitflow/internal/logger"
	"permitflow/internal/service"
)

// WizardHandler handles the wizard session endpoints.
type WizardHandler struct {
	wizardService  service.WizardService
	maxUploadBytes int64
	logger         *zap.Logger
}

// NewWizardHandler creates a new WizardHandler.
func NewWizardHandler(wizardService service.WizardService, maxUploadBytes int64, log *zap.Logger) *WizardHandler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = 10 << 20
	}
	return &WizardHandler{wizardService: wizardService, maxUploadBytes: maxUploadBytes, logger: logger.OrNop(log)}
}

type createSessionRequest struct {
	FormType    string `json:"form_type" binding:"required"`
	ApplicantID string `json:"applicant_id"`
}

type setFieldsRequest struct {
	Values map[string]string `json:"values"`
	Flags  map[string]bool   `json:"flags"`
}

type verifyRequest struct {
	ReferenceID string `json:"reference_id"`
}

type submitRequest struct {
	Consent bool `json:"consent"`
}

// Create handles POST /api/v1/sessions
func (h *WizardHandler) Create(c *gin.Context) {
	var req createSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_REQUEST", "form_type is required")
		return
	}
	view, err := h.wizardService.CreateSession(c.Request.Context(), &service.CreateSessionInput{
		FormType:    domain.FormType(req.FormType),
		ApplicantID: req.ApplicantID,
	})
	if err != nil {
		HandleError(c, h.logger, err)
		return
	}
	RespondCreated(c, view)
}

// Get handles GET /api/v1/sessions/:id
func (h *WizardHandler) Get(c *gin.Context) {
	view, err := h.wizardService.GetSession(c.Request.Context(), c.Param("id"))
	if err != nil {
		HandleError(c, h.logger, err)
		return
	}
	RespondOK(c, view)
}

// Discard handles DELETE /api/v1/sessions/:id
func (h *WizardHandler) Discard(c *gin.Context) {
	if err := h.wizardService.DiscardSession(c.Request.Context(), c.Param("id")); err != nil {
		HandleError(c, h.logger, err)
		return
	}
	RespondOK(c, gin.H{"message": "session discarded"})
}

// SetFields handles PUT /api/v1/sessions/:id/fields
func (h *WizardHandler) SetFields(c *gin.Context) {
	var req setFieldsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_REQUEST", "invalid request body")
		return
	}
	view, err := h.wizardService.SetFields(c.Request.Context(), c.Param("id"), &service.SetFieldsInput{
		Values: req.Values,
		Flags:  req.Flags,
	})
	if err != nil {
		HandleError(c, h.logger, err)
		return
	}
	RespondOK(c, view)
}

// AttachFile handles POST /api/v1/sessions/:id/files/:field (multipart, field "file")
func (h *WizardHandler) AttachFile(c *gin.Context) {
	upload, header, err := c.Request.FormFile("file")
	if err != nil {
		RespondError(c, http.StatusBadRequest, "MISSING_FILE", "file field is required")
		return
	}
	defer func() { _ = upload.Close() }()

	if header.Size > h.maxUploadBytes {
		HandleError(c, h.logger, domain.ErrFileTooLarge)
		return
	}
	file, err := form.ReadFile(header.Filename, upload, h.maxUploadBytes)
	if err != nil {
		if errors.Is(err, domain.ErrFileTooLarge) || errors.Is(err, domain.ErrUnsupportedFileType) {
			HandleError(c, h.logger, err)
			return
		}
		RespondError(c, http.StatusBadRequest, "UNREADABLE_FILE", "the uploaded file could not be read")
		return
	}

	view, err := h.wizardService.AttachFile(c.Request.Context(), c.Param("id"), c.Param("field"), file)
	if err != nil {
		HandleError(c, h.logger, err)
		return
	}
	RespondCreated(c, view)
}

// RemoveFile handles DELETE /api/v1/sessions/:id/files/:field
func (h *WizardHandler) RemoveFile(c *gin.Context) {
	view, err := h.wizardService.RemoveFile(c.Request.Context(), c.Param("id"), c.Param("field"))
	if err != nil {
		HandleError(c, h.logger, err)
		return
	}
	RespondOK(c, view)
}

// Verify handles POST /api/v1/sessions/:id/verify/:attachment
// An unsuccessful check is still a 200: the result is advisory.
func (h *WizardHandler) Verify(c *gin.Context) {
	var req verifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_REQUEST", "invalid request body")
		return
	}
	res, err := h.wizardService.VerifyAttachment(c.Request.Context(), c.Param("id"), c.Param("attachment"), req.ReferenceID)
	if err != nil {
		HandleError(c, h.logger, err)
		return
	}
	RespondOK(c, res)
}

// Extract handles POST /api/v1/sessions/:id/extract/:attachment
// Extraction runs in the background; poll GET /documents for progress.
func (h *WizardHandler) Extract(c *gin.Context) {
	st, err := h.wizardService.ExtractDocument(c.Request.Context(), c.Param("id"), c.Param("attachment"))
	if err != nil {
		HandleError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusAccepted, APIResponse{Success: true, Data: st})
}

// Documents handles GET /api/v1/sessions/:id/documents
func (h *WizardHandler) Documents(c *gin.Context) {
	states, err := h.wizardService.DocumentStates(c.Request.Context(), c.Param("id"))
	if err != nil {
		HandleError(c, h.logger, err)
		return
	}
	RespondOK(c, states)
}

// OpenPreview handles POST /api/v1/sessions/:id/preview/:field
func (h *WizardHandler) OpenPreview(c *gin.Context) {
	handle, err := h.wizardService.OpenPreview(c.Request.Context(), c.Param("id"), c.Param("field"))
	if err != nil {
		HandleError(c, h.logger, err)
		return
	}
	RespondOK(c, handle)
}

// ClosePreview handles DELETE /api/v1/sessions/:id/preview
func (h *WizardHandler) ClosePreview(c *gin.Context) {
	if err := h.wizardService.ClosePreview(c.Request.Context(), c.Param("id")); err != nil {
		HandleError(c, h.logger, err)
		return
	}
	RespondOK(c, gin.H{"message": "preview closed"})
}

// Next handles POST /api/v1/sessions/:id/next
func (h *WizardHandler) Next(c *gin.Context) {
	out, err := h.wizardService.Next(c.Request.Context(), c.Param("id"))
	if err != nil {
		var ve *domain.ValidationError
		if errors.As(err, &ve) && out != nil {
			c.JSON(http.StatusUnprocessableEntity, APIResponse{
				Success: false,
				Data:    out,
				Error: &APIError{
					Code:    "VALIDATION_FAILED",
					Message: ve.Error(),
					Details: &ValidationDetails{Step: ve.Step, MissingFields: ve.MissingFields, FieldErrors: out.FieldErrors},
				},
			})
			return
		}
		HandleError(c, h.logger, err)
		return
	}
	RespondOK(c, out)
}

// Previous handles POST /api/v1/sessions/:id/previous
func (h *WizardHandler) Previous(c *gin.Context) {
	st, err := h.wizardService.Previous(c.Request.Context(), c.Param("id"))
	if err != nil {
		HandleError(c, h.logger, err)
		return
	}
	RespondOK(c, st)
}

// Validate handles GET /api/v1/sessions/:id/validate?step=N
// Without step the current step is checked.
func (h *WizardHandler) Validate(c *gin.Context) {
	step := 0
	if s := c.Query("step"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			RespondError(c, http.StatusBadRequest, "INVALID_STEP", "step must be a positive integer")
			return
		}
		step = n
	}
	res, err := h.wizardService.ValidateStep(c.Request.Context(), c.Param("id"), step)
	if err != nil {
		HandleError(c, h.logger, err)
		return
	}
	RespondOK(c, res)
}

// Submit handles POST /api/v1/sessions/:id/submit
func (h *WizardHandler) Submit(c *gin.Context) {
	var req submitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_REQUEST", "invalid request body")
		return
	}
	res, err := h.wizardService.Submit(c.Request.Context(), c.Param("id"), req.Consent)
	if err != nil {
		HandleError(c, h.logger, err)
		return
	}
	RespondOK(c, res)
}

// ReviewWorkbook handles GET /api/v1/sessions/:id/review.xlsx
func (h *WizardHandler) ReviewWorkbook(c *gin.Context) {
	var buf bytes.Buffer
	name, err := h.wizardService.ReviewWorkbook(c.Request.Context(), c.Param("id"), &buf)
	if err != nil {
		HandleError(c, h.logger, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, name))
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", buf.Bytes())
}

// ReviewCSV handles GET /api/v1/sessions/:id/review.csv
func (h *WizardHandler) ReviewCSV(c *gin.Context) {
	var buf bytes.Buffer
	name, err := h.wizardService.ReviewCSV(c.Request.Context(), c.Param("id"), &buf)
	if err != nil {
		HandleError(c, h.logger, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, name))
	c.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}

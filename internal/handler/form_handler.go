package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"permitflow/internal/domain"
	"permitflow/internal/formdef"
	"permitflow/internal/logger"
)

// FormHandler serves the wizard definitions.
type FormHandler struct {
	logger *zap.Logger
}

// NewFormHandler creates a new FormHandler.
func NewFormHandler(log *zap.Logger) *FormHandler {
	return &FormHandler{logger: logger.OrNop(log)}
}

// List handles GET /api/v1/forms
func (h *FormHandler) List(c *gin.Context) {
	RespondOK(c, formdef.Types())
}

// Get handles GET /api/v1/forms/:type
func (h *FormHandler) Get(c *gin.Context) {
	def, err := formdef.Get(domain.FormType(c.Param("type")))
	if err != nil {
		HandleError(c, h.logger, err)
		return
	}
	RespondOK(c, def)
}

// Options handles GET /api/v1/options/:name (nationalities, barangays, special_permit_types)
func (h *FormHandler) Options(c *gin.Context) {
	opts, ok := formdef.List(c.Param("name"))
	if !ok {
		RespondError(c, http.StatusNotFound, "UNKNOWN_LIST", "unknown option list")
		return
	}
	RespondOK(c, opts)
}

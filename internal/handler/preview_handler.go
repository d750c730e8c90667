package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"permitflow/internal/storage/memory"
)

// PreviewHandler serves previews staged in the in-memory store.
type PreviewHandler struct {
	store *memory.Store
}

// NewPreviewHandler creates a new PreviewHandler.
func NewPreviewHandler(store *memory.Store) *PreviewHandler {
	return &PreviewHandler{store: store}
}

// Serve handles GET /previews/:bucket/*key
// Expired or released previews are 404.
func (h *PreviewHandler) Serve(c *gin.Context) {
	key := strings.TrimPrefix(c.Param("key"), "/")
	obj, ok := h.store.Get(c.Param("bucket"), key)
	if !ok {
		RespondError(c, http.StatusNotFound, "PREVIEW_NOT_FOUND", "preview not found or expired")
		return
	}
	c.Header("Cache-Control", "private, no-store")
	c.Header("Content-Disposition", "inline")
	c.Data(http.StatusOK, obj.ContentType, obj.Data)
}

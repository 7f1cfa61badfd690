package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/penflowhq/penflow/internal/collab"
	"github.com/penflowhq/penflow/pkg/errors"
	"github.com/penflowhq/penflow/pkg/response"
)

// DocumentHandler exposes read-only views over live editing sessions.
type DocumentHandler struct {
	registry *collab.Registry
}

// NewDocumentHandler constructs a handler over the session registry.
func NewDocumentHandler(registry *collab.Registry) *DocumentHandler {
	return &DocumentHandler{registry: registry}
}

// Live returns the authoritative in-memory state of an active session. A
// document nobody is editing has no live state; callers fall back to the
// persisted checkpoint.
func (h *DocumentHandler) Live(c *gin.Context) {
	docID := strings.TrimSpace(c.Param("id"))
	if docID == "" {
		response.Error(c, errors.ErrBadRequest)
		return
	}

	content, version, ok := h.registry.Snapshot(docID)
	if !ok {
		response.Error(c, errors.ErrSessionNotActive)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"id":      docID,
		"content": content,
		"version": version,
	})
}

// Active lists every document with a live session.
func (h *DocumentHandler) Active(c *gin.Context) {
	sessions := h.registry.ActiveDocuments()

	items := make([]gin.H, 0, len(sessions))
	for _, s := range sessions {
		items = append(items, gin.H{
			"id":      s.DocID,
			"version": s.Version,
		})
	}

	response.Success(c, http.StatusOK, gin.H{"documents": items})
}

package handlers

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/penflowhq/penflow/internal/collab"
)

// CollabHandler upgrades HTTP requests into collaborative editing sessions.
// Connect-time failures are reported on the websocket itself with distinct
// close codes, so the handler never writes an HTTP error body after upgrade.
type CollabHandler struct {
	hub *collab.Hub
}

// NewCollabHandler constructs the websocket entry point for documents.
func NewCollabHandler(hub *collab.Hub) *CollabHandler {
	return &CollabHandler{hub: hub}
}

// Connect joins the caller to the document named in the route.
func (h *CollabHandler) Connect(c *gin.Context) {
	docID := strings.TrimSpace(c.Param("docId"))

	token := strings.TrimSpace(c.Query("token"))
	if token == "" {
		token = strings.TrimSpace(c.Query("access_token"))
	}
	if token == "" {
		authz := c.GetHeader("Authorization")
		if strings.HasPrefix(strings.ToLower(authz), "bearer ") {
			token = strings.TrimSpace(authz[7:])
		}
	}

	h.hub.Serve(c.Writer, c.Request, docID, token)
}

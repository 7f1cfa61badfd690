package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/penflowhq/penflow/internal/collab"
	"github.com/penflowhq/penflow/internal/ot"
)

func newDocumentRouter(t *testing.T) (*gin.Engine, *collab.Registry) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	registry := collab.NewRegistry()
	handler := NewDocumentHandler(registry)

	r := gin.New()
	r.GET("/api/documents/:id/live", handler.Live)
	r.GET("/api/documents", handler.Active)
	return r, registry
}

func TestLiveReturnsSessionState(t *testing.T) {
	r, registry := newDocumentRouter(t)

	s := registry.GetOrCreate(context.Background(), "doc-1")
	_, _, err := s.Submit(ot.Operation{Kind: ot.Insert, Position: 0, Payload: "Hi", Version: 0})
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/documents/doc-1/live", nil)
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Success bool `json:"success"`
		Data    struct {
			ID      string `json:"id"`
			Content string `json:"content"`
			Version int    `json:"version"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.True(t, body.Success)
	require.Equal(t, "Hi", body.Data.Content)
	require.Equal(t, 1, body.Data.Version)
}

func TestLiveMissingSessionIs404(t *testing.T) {
	r, _ := newDocumentRouter(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/documents/ghost/live", nil)
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusNotFound, w.Code)
	require.Contains(t, w.Body.String(), "SESSION_NOT_ACTIVE")
}

func TestActiveListsLiveSessions(t *testing.T) {
	r, registry := newDocumentRouter(t)
	registry.GetOrCreate(context.Background(), "doc-1")

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/documents", nil)
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "doc-1")
}

func TestHealthEndpoint(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.GET("/health", Health())

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "ok")
}

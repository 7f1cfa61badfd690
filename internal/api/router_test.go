package api

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/penflowhq/penflow/internal/app"
	"github.com/penflowhq/penflow/internal/collab"
)

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &app.Config{}
	cfg.Monitoring.Prometheus.Enabled = true

	registry := collab.NewRegistry()
	hub := collab.NewHub(registry, collab.ResolverFunc(func(token string) (collab.UserInfo, error) {
		return collab.UserInfo{}, errors.New("no identities in this test")
	}))

	r, err := NewRouter(cfg, hub, registry)
	require.NoError(t, err)
	return r
}

func TestRouterRequiresCollaborators(t *testing.T) {
	_, err := NewRouter(nil, nil, nil)
	require.Error(t, err)
}

func TestHealthRoute(t *testing.T) {
	r := newTestRouter(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, w.Code)
}

func TestMetricsRoute(t *testing.T) {
	r := newTestRouter(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
}

func TestUnknownRouteIsJSON(t *testing.T) {
	r := newTestRouter(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/nope", nil))
	require.Equal(t, http.StatusNotFound, w.Code)
	require.Contains(t, w.Header().Get("Content-Type"), "application/json")
}

func TestLiveRouteWithoutSession(t *testing.T) {
	r := newTestRouter(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/documents/doc-1/live", nil))
	require.Equal(t, http.StatusNotFound, w.Code)
	require.Contains(t, w.Body.String(), "SESSION_NOT_ACTIVE")
}

package followup

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	apphttp "exterminador_backend/internal/http"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRunEngine(store *fakeStore) *gin.Engine {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	module := NewModule(newTestService(store, &fakeDispatcher{}))
	module.RegisterRoutes(&apphttp.RouterContext{
		Engine:   engine,
		V1:       engine.Group("/api/v1"),
		Internal: engine.Group("/api/v1/internal"),
	})
	return engine
}

func TestHandleRun(t *testing.T) {
	store := &fakeStore{due: nil}
	engine := newRunEngine(store)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/internal/followups/run", nil)
	engine.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, true, body["success"])
	assert.Equal(t, float64(0), body["total_procesadas"])
	assert.Equal(t, "exterminador_seguimiento", body["sistema"])
	assert.NotEmpty(t, body["timestamp"])
}

func TestHandleRunQueryFailure(t *testing.T) {
	engine := newRunEngine(&fakeStore{dueErr: errors.New("db down")})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/internal/followups/run", nil)
	engine.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clipcast/config"
	"clipcast/internal/notify"
	"clipcast/internal/response"
	"clipcast/internal/service"
	"clipcast/internal/storage"
	apperrors "clipcast/pkg/errors"
)

func buildSessionRouter(t *testing.T) (*gin.Engine, *service.Service) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	config.Conf.App.DataDir = t.TempDir()
	config.Conf.Tts.PartConcurrency = 2
	config.Conf.Export.Concurrency = 1
	config.Conf.Export.QueueSize = 8
	storage.InitDB()

	hub := notify.NewHub()
	svc := service.NewService(hub)
	t.Cleanup(func() {
		svc.Shutdown()
		hub.Close()
	})

	router := gin.New()
	h := NewHandler(svc)
	router.POST("/api/session", h.CreateSession)
	router.GET("/api/session/:sessionId", h.GetSession)
	router.POST("/api/session/:sessionId/play", h.Play)
	router.POST("/api/session/:sessionId/seek", h.Seek)
	router.DELETE("/api/session/:sessionId", h.CloseSession)
	return router, svc
}

func doJSON(t *testing.T, router *gin.Engine, method, url string, body any) response.Response {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, _ := http.NewRequest(method, url, &buf)
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var resp response.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func createTestSession(t *testing.T, router *gin.Engine, voice string) string {
	t.Helper()

	resp := doJSON(t, router, "POST", "/api/session", map[string]any{
		"timeline": map[string]any{
			"global_voice": voice,
			"scenes": []map[string]any{
				{"scene_id": "a", "image": "a.png", "duration": 2.0, "text": map[string]any{"content": "hello"}},
			},
		},
	})
	require.Equal(t, int32(0), resp.Error)

	data, ok := resp.Data.(map[string]any)
	require.True(t, ok)
	sessionId, _ := data["session_id"].(string)
	require.NotEmpty(t, sessionId)
	return sessionId
}

func TestCreateSessionInvalidJSON(t *testing.T) {
	router, _ := buildSessionRouter(t)

	req, _ := http.NewRequest("POST", "/api/session", bytes.NewBufferString("{not json"))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var resp response.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, int32(apperrors.CodeInvalidParams), resp.Error)
}

func TestCreateAndGetSession(t *testing.T) {
	router, _ := buildSessionRouter(t)

	sessionId := createTestSession(t, router, "en-US-1")

	resp := doJSON(t, router, "GET", "/api/session/"+sessionId, nil)
	require.Equal(t, int32(0), resp.Error)

	data, ok := resp.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, sessionId, data["session_id"])

	state, ok := data["state"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "stopped", state["mode"])
	assert.Equal(t, false, state["is_playing"])
}

func TestGetSessionNotFound(t *testing.T) {
	router, _ := buildSessionRouter(t)

	resp := doJSON(t, router, "GET", "/api/session/nope", nil)
	assert.Equal(t, int32(apperrors.CodeSessionNotFound), resp.Error)
}

func TestPlayWithoutVoiceRejected(t *testing.T) {
	router, _ := buildSessionRouter(t)
	config.Conf.Tts.DefaultVoice = ""

	sessionId := createTestSession(t, router, "")
	resp := doJSON(t, router, "POST", fmt.Sprintf("/api/session/%s/play", sessionId), nil)
	assert.Equal(t, int32(apperrors.CodeVoiceRequired), resp.Error)
}

func TestSeekUpdatesState(t *testing.T) {
	router, _ := buildSessionRouter(t)

	sessionId := createTestSession(t, router, "en-US-1")
	resp := doJSON(t, router, "POST", fmt.Sprintf("/api/session/%s/seek", sessionId), map[string]any{"time": 1.0})
	require.Equal(t, int32(0), resp.Error)

	resp = doJSON(t, router, "GET", "/api/session/"+sessionId, nil)
	data := resp.Data.(map[string]any)
	state := data["state"].(map[string]any)
	assert.InDelta(t, 1.0, state["current_time"].(float64), 1e-9)
}

func TestCloseSessionTwice(t *testing.T) {
	router, _ := buildSessionRouter(t)

	sessionId := createTestSession(t, router, "en-US-1")
	resp := doJSON(t, router, "DELETE", "/api/session/"+sessionId, nil)
	require.Equal(t, int32(0), resp.Error)

	resp = doJSON(t, router, "DELETE", "/api/session/"+sessionId, nil)
	assert.Equal(t, int32(apperrors.CodeSessionNotFound), resp.Error)
}

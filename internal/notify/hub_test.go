package notify

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clipcast/internal/types"
)

func dialTestHub(t *testing.T) (*Hub, *websocket.Conn) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	hub := NewHub()
	r := gin.New()
	r.GET("/ws", hub.HandleWS)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	require.Eventually(t, func() bool {
		return hub.ClientCount() == 1
	}, time.Second, 10*time.Millisecond)
	return hub, conn
}

func TestJobStatusBroadcast(t *testing.T) {
	hub, conn := dialTestHub(t)

	hub.PublishJobStatus(types.JobStatusUpdate{
		JobId:  "job-1",
		Status: types.JobStatusCompleted,
	})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var env struct {
		Type string                `json:"type"`
		Data types.JobStatusUpdate `json:"data"`
	}
	require.NoError(t, json.Unmarshal(data, &env))
	assert.Equal(t, "job_status", env.Type)
	assert.Equal(t, "job-1", env.Data.JobId)
	assert.Equal(t, types.JobStatusCompleted, env.Data.Status)
}

func TestPlaybackStateBroadcast(t *testing.T) {
	hub, conn := dialTestHub(t)

	hub.PublishPlaybackState("s1", types.PlaybackState{
		CurrentTime: 1.5,
		IsPlaying:   true,
		ModeName:    "full",
	})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var env struct {
		Type string               `json:"type"`
		Data PlaybackStateMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(data, &env))
	assert.Equal(t, "playback_state", env.Type)
	assert.Equal(t, "s1", env.Data.SessionId)
	assert.True(t, env.Data.State.IsPlaying)
}

func TestCloseDisconnectsClients(t *testing.T) {
	hub, conn := dialTestHub(t)

	hub.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	assert.Equal(t, 0, hub.ClientCount())
}

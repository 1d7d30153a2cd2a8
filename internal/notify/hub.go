// Package notify pushes engine events to connected clients over websockets:
// export job status transitions and per-session playback state.
package notify

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"clipcast/internal/types"
	"clipcast/log"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	sendBufferSize = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// The preview server binds to loopback; cross-origin checks add nothing.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Envelope wraps every pushed message with its type.
type Envelope struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// PlaybackStateMessage carries one session's observable state.
type PlaybackStateMessage struct {
	SessionId string              `json:"session_id"`
	State     types.PlaybackState `json:"state"`
}

type client struct {
	conn *websocket.Conn
	send chan Envelope
}

// Hub broadcasts envelopes to every connected client. Slow clients are
// dropped rather than allowed to stall the engine.
type Hub struct {
	mu      sync.Mutex
	clients map[*client]struct{}
	closed  bool
}

func NewHub() *Hub {
	return &Hub{clients: make(map[*client]struct{})}
}

// HandleWS upgrades the request and serves the connection until it closes.
func (h *Hub) HandleWS(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.GetLogger().Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	cl := &client{conn: conn, send: make(chan Envelope, sendBufferSize)}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.Close()
		return
	}
	h.clients[cl] = struct{}{}
	h.mu.Unlock()

	go h.writePump(cl)
	h.readPump(cl)
}

// PublishJobStatus implements the export notifier.
func (h *Hub) PublishJobStatus(update types.JobStatusUpdate) {
	h.broadcast(Envelope{Type: "job_status", Data: update})
}

// FrameMessage carries one composed visual frame.
type FrameMessage struct {
	SessionId string `json:"session_id"`
	Frame     any    `json:"frame"`
}

// PublishFrame pushes one composed visual frame for a session.
func (h *Hub) PublishFrame(sessionId string, frame any) {
	h.broadcast(Envelope{Type: "frame", Data: FrameMessage{SessionId: sessionId, Frame: frame}})
}

// PublishPlaybackState pushes a session's state tuple.
func (h *Hub) PublishPlaybackState(sessionId string, state types.PlaybackState) {
	h.broadcast(Envelope{Type: "playback_state", Data: PlaybackStateMessage{
		SessionId: sessionId,
		State:     state,
	}})
}

func (h *Hub) broadcast(env Envelope) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for cl := range h.clients {
		select {
		case cl.send <- env:
		default:
			// Client can't keep up; drop it.
			delete(h.clients, cl)
			close(cl.send)
		}
	}
}

func (h *Hub) remove(cl *client) {
	h.mu.Lock()
	if _, ok := h.clients[cl]; ok {
		delete(h.clients, cl)
		close(cl.send)
	}
	h.mu.Unlock()
	cl.conn.Close()
}

// readPump drains incoming frames to keep the connection alive and detect
// closure. Clients never send meaningful payloads.
func (h *Hub) readPump(cl *client) {
	defer h.remove(cl)

	cl.conn.SetReadLimit(1024)
	_ = cl.conn.SetReadDeadline(time.Now().Add(pongWait))
	cl.conn.SetPongHandler(func(string) error {
		return cl.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := cl.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(cl *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		cl.conn.Close()
	}()

	for {
		select {
		case env, ok := <-cl.send:
			_ = cl.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = cl.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := cl.conn.WriteJSON(env); err != nil {
				return
			}
		case <-ticker.C:
			_ = cl.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := cl.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// ClientCount reports connected clients, for diagnostics.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close disconnects every client and rejects new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	for cl := range h.clients {
		delete(h.clients, cl)
		close(cl.send)
	}
	h.mu.Unlock()
}

package api

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/wardlow/reeve-agent/internal/events"
)

const (
	// wsWriteWait bounds a single WebSocket write.
	wsWriteWait = 10 * time.Second
	// wsPingPeriod is how often pings go out to detect dead peers. It
	// must be shorter than the pong wait.
	wsPingPeriod = 30 * time.Second
	wsPongWait   = 60 * time.Second
	// wsEventBuffer is the per-subscriber event buffer; a reader that
	// falls further behind misses events.
	wsEventBuffer = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The feed is observability data on a local agent; same-origin
	// enforcement is left to the deployment.
	CheckOrigin: func(*http.Request) bool { return true },
}

// handleEvents upgrades to WebSocket and relays the event bus to the
// client as JSON, one event per message, until either side closes.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if s.bus == nil {
		s.errorResponse(w, http.StatusServiceUnavailable, "event feed not enabled")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		s.logger.Debug("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	ch, cancel := s.bus.Subscribe(wsEventBuffer)
	defer cancel()

	s.logger.Debug("event feed client connected", "remote", conn.RemoteAddr())

	// Reader goroutine: the client sends nothing meaningful, but reads
	// must be pumped for close and pong frames to be processed.
	done := make(chan struct{})
	go func() {
		defer close(done)
		conn.SetReadLimit(512)
		conn.SetReadDeadline(time.Now().Add(wsPongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(wsPongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	pings := time.NewTicker(wsPingPeriod)
	defer pings.Stop()

	for {
		select {
		case <-done:
			return
		case <-r.Context().Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			if err := s.writeEvent(conn, ev); err != nil {
				return
			}
		case <-pings.C:
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (s *Server) writeEvent(conn *websocket.Conn, ev events.Event) error {
	conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return conn.WriteJSON(ev)
}

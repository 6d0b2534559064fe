package httpapi

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/roach88/hotspot/internal/editor"
)

const (
	eventBuffer  = 64
	writeTimeout = 10 * time.Second
	pingInterval = 30 * time.Second
)

// streamEvents upgrades the request and forwards every bus event of the
// project as a JSON text message. A client too slow to keep up loses
// events rather than stalling the editor; the drop is logged.
func (s *Server) streamEvents(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	bus := sess.Store.Bus()
	out := make(chan editor.Event, eventBuffer)
	sub := bus.SubscribeAll(func(e editor.Event) {
		select {
		case out <- e:
		default:
			s.logger.Warn("event stream full, dropping event",
				"project_id", sess.Project.ID,
				"event", string(e.Type),
			)
		}
	})
	defer bus.Unsubscribe(sub)

	// subscribed before the handshake completes, so a client sees every
	// event published after its dial returns
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	s.logger.Debug("event stream opened", "project_id", sess.Project.ID, "remote", r.RemoteAddr)
	ping := time.NewTicker(pingInterval)
	defer ping.Stop()

	for {
		select {
		case <-closed:
			s.logger.Debug("event stream closed", "project_id", sess.Project.ID)
			return
		case <-r.Context().Done():
			return
		case e := <-out:
			_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteJSON(e); err != nil {
				s.logger.Debug("event stream write failed", "error", err)
				return
			}
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

package main

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"

	"kubeintent/internal/session"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// CORS is handled at the mux level; the upgrade accepts any origin.
	CheckOrigin: func(*http.Request) bool { return true },
}

// handleWatch streams session state transitions over a WebSocket. The current
// state goes out first so a late subscriber is never behind.
func (s *apiServer) handleWatch(w http.ResponseWriter, r *http.Request) {
	sessionID := strings.TrimPrefix(r.URL.Path, "/api/watch/")
	if sessionID == "" {
		http.Error(w, "session id required", http.StatusBadRequest)
		return
	}
	sess, err := s.orch.Store().Get(r.Context(), sessionID)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			http.Error(w, "session not found", http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	events, cancel := s.orch.Hub().Subscribe(sessionID)
	defer cancel()

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", "session", sessionID, "err", err)
		return
	}
	defer conn.Close()

	if err := conn.WriteJSON(session.Event{
		SessionID: sess.ID,
		From:      sess.State,
		To:        sess.State,
		At:        sess.UpdatedAt,
	}); err != nil {
		return
	}
	if sess.State.Terminal() {
		return
	}

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
			if ev.To.Terminal() {
				return
			}
		}
	}
}

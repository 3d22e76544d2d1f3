package rest

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/marcopiovanello/dlp-bridge/server/internal/events"
)

const (
	writeWait  = 10 * time.Second
	pingPeriod = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// Events streams the event feed as JSON messages. The latest progress
// snapshot, if any, is sent first so late clients start from the current
// state.
func (h *Handler) Events(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Error("websocket upgrade failed", slog.Any("err", err))
		return
	}
	defer conn.Close()

	feed, unsubscribe := h.hub.Feed.Subscribe()
	defer unsubscribe()

	if p, ok := h.hub.Progress.Latest(); ok {
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		err := conn.WriteJSON(events.Event{
			Kind:     events.KindProgress,
			Progress: p,
			Time:     time.Now(),
		})
		if err != nil {
			return
		}
	}

	// the client only ever closes; reading surfaces that
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-closed:
			return
		case <-r.Context().Done():
			return
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case ev, ok := <-feed:
			if !ok {
				conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"))
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(ev); err != nil {
				h.log.Debug("event client gone", slog.Any("err", err))
				return
			}
		}
	}
}

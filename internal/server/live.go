package server

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"stickfigures/internal/view"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// handleLive streams page snapshots to the browser. Only versions newer than
// the last one sent are written; a burst of updates collapses into the latest.
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	store := s.ctrl.Store()
	updates := make(chan view.Snapshot, 16)
	sub := store.Subscribe(updates)
	defer sub.Unsubscribe()

	gone := make(chan struct{})
	go func() {
		defer close(gone)
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					s.log.Debug("live connection closed unexpectedly", zap.Error(err))
				}
				return
			}
		}
	}()

	var (
		sent   uint64
		pushed bool
	)
	push := func(snap view.Snapshot) error {
		if pushed && snap.Version <= sent {
			return nil
		}
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(snap); err != nil {
			return err
		}
		sent, pushed = snap.Version, true
		return nil
	}

	if err := push(store.Snapshot()); err != nil {
		return
	}

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	for {
		select {
		case snap := <-updates:
			if err := push(latest(snap, updates)); err != nil {
				s.log.Debug("live push failed", zap.Error(err))
				return
			}
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-sub.Err():
			return
		case <-gone:
			return
		case <-s.closing:
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
				time.Now().Add(writeWait))
			return
		}
	}
}

// latest drains queued snapshots without blocking and returns the newest.
func latest(snap view.Snapshot, queued <-chan view.Snapshot) view.Snapshot {
	for {
		select {
		case next := <-queued:
			if next.Version > snap.Version {
				snap = next
			}
		default:
			return snap
		}
	}
}

package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/unklstewy/whats-overhead/internal/overhead"
	"github.com/unklstewy/whats-overhead/internal/position"
	"github.com/unklstewy/whats-overhead/pkg/selection"
)

// WebSocket message types
const (
	MessageTypeSnapshot = "snapshot"
	MessageTypeSetMode  = "set_mode"
	MessageTypeRefresh  = "refresh"
)

const (
	writeWait  = 10 * time.Second
	pingPeriod = 30 * time.Second
)

// Message is one WebSocket frame in either direction.
type Message struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

type setModeData struct {
	Mode string `json:"mode"`
}

// handleWebSocket streams snapshots for the lat/lon in the query. Each
// connection runs its own polling service for that observer. An optional
// mode parameter is not saved; a set_mode message is. The client can also
// send refresh messages.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	observer, err := parseObserver(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	var mode selection.Mode
	if raw := r.URL.Query().Get("mode"); raw != "" {
		if mode, err = selection.ParseMode(raw); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("failed to upgrade connection", zap.Error(err), zap.String("remote_addr", r.RemoteAddr))
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := s.opts.Stores(profileID(r))
	svc := overhead.New(ctx, position.Static{Coordinate: observer}, s.opts.Source, store,
		overhead.Config{RadiusNM: s.opts.RadiusNM, Interval: s.opts.StaleWindow}, s.logger)
	// A mode in the query applies to this stream only
	if mode != "" {
		svc.ApplyMode(mode)
	}

	snapshots, unsubscribe := svc.Subscribe()
	defer unsubscribe()

	go svc.Run(ctx)
	go s.readPump(ctx, cancel, conn, svc)

	s.logger.Debug("websocket stream started", zap.String("remote_addr", r.RemoteAddr))
	s.writePump(ctx, conn, snapshots)
	s.logger.Debug("websocket stream ended", zap.String("remote_addr", r.RemoteAddr))
}

// readPump handles client messages until the connection fails, then cancels
// the stream.
func (s *Server) readPump(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn, svc *overhead.Service) {
	defer cancel()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn("websocket read error", zap.Error(err))
			}
			return
		}

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			s.logger.Debug("ignoring malformed websocket message", zap.Error(err))
			continue
		}

		switch msg.Type {
		case MessageTypeSetMode:
			var d setModeData
			if err := json.Unmarshal(msg.Data, &d); err != nil {
				continue
			}
			mode, err := selection.ParseMode(d.Mode)
			if err != nil {
				continue
			}
			if _, err := svc.SetMode(ctx, mode); err != nil {
				s.logger.Warn("failed to save mode", zap.Error(err))
			}
		case MessageTypeRefresh:
			go svc.ForceRefresh(ctx)
		default:
			s.logger.Debug("unknown websocket message", zap.String("type", msg.Type))
		}
	}
}

// writePump is the only writer on conn.
func (s *Server) writePump(ctx context.Context, conn *websocket.Conn, snapshots <-chan overhead.Snapshot) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			return

		case snap, ok := <-snapshots:
			if !ok {
				return
			}
			data, err := json.Marshal(s.newOverheadResponse(snap))
			if err != nil {
				s.logger.Error("failed to marshal snapshot", zap.Error(err))
				continue
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(Message{Type: MessageTypeSnapshot, Data: data}); err != nil {
				return
			}

		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

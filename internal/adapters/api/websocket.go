package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"

	"github.com/floroz/escrow-auction/internal/auction"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = 54 * time.Second
)

// EventStreamPattern is the route of the WebSocket event stream
const EventStreamPattern = "GET /ws/auctions/{id}/events"

// EventStreamHandler streams an auction's records as JSON text frames, the
// same records SubscribeEvents sends.
type EventStreamHandler struct {
	registry *auction.Registry
	handler  *AuctionHandler
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// NewEventStreamHandler creates the WebSocket handler. Any origin is accepted.
func NewEventStreamHandler(h *AuctionHandler, logger *slog.Logger) *EventStreamHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &EventStreamHandler{
		registry: h.service.Registry(),
		handler:  h,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		logger: logger,
	}
}

func (s *EventStreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(r.PathValue("id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid auction id", http.StatusBadRequest)
		return
	}

	var from uint64
	if v := r.URL.Query().Get("from"); v != "" {
		if from, err = strconv.ParseUint(v, 10, 64); err != nil {
			http.Error(w, "invalid from offset", http.StatusBadRequest)
			return
		}
	}

	a, err := s.registry.Get(id)
	if errors.Is(err, auction.ErrNotFound) {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied to the client
		s.logger.Warn("Failed to upgrade connection", "error", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	closed := s.readPump(conn)
	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()

	s.logger.Info("Event stream opened", "auction_id", id, "from", from)

	records := a.Events().Subscribe(ctx, from)
	for {
		select {
		case <-closed:
			return
		case <-ctx.Done():
			return
		case rec, ok := <-records:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteJSON(s.handler.mapEvent(a.RedactSealed(rec))); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump consumes control frames and reports when the peer goes away.
func (s *EventStreamHandler) readPump(conn *websocket.Conn) <-chan struct{} {
	closed := make(chan struct{})

	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					s.logger.Debug("Event stream read error", "error", err)
				}
				return
			}
		}
	}()
	return closed
}

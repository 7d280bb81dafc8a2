package api

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"calliope/internal/metrics"
	"calliope/pkg/errors"
	"calliope/pkg/logger"
)

const (
	wsWriteTimeout = 5 * time.Second
	wsPingInterval = 30 * time.Second
)

// ProgressHandler streams job progress over WebSocket. On connect the client
// receives the latest snapshot, then live events until a terminal event closes
// the stream. Reconnecting repeats the same handshake, so a dropped client
// never misses the job outcome.
type ProgressHandler struct {
	service  GenerationService
	upgrader websocket.Upgrader
	log      *logger.Logger
}

func NewProgressHandler(service GenerationService) *ProgressHandler {
	return &ProgressHandler{
		service: service,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// The API carries no session auth; origin checks belong to the
			// gateway in front of it.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		log: logger.Get().With("component", "progress_ws"),
	}
}

// HandleProgress upgrades the connection and streams progress events.
// GET /api/v1/generations/{id}/progress
func (h *ProgressHandler) HandleProgress(w http.ResponseWriter, r *http.Request) {
	jobID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, errors.Wrap(errors.ErrInvalidInput, "invalid job id"))
		return
	}

	snapshot, events, unsubscribe, err := h.service.Reconnect(r.Context(), jobID)
	if err != nil {
		writeError(w, err)
		return
	}
	defer unsubscribe()

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error response.
		h.log.Warnf("WebSocket upgrade failed for job %s: %v", jobID, err)
		return
	}
	defer conn.Close()

	metrics.ProgressSubscribers.WithLabelValues("websocket").Inc()
	defer metrics.ProgressSubscribers.WithLabelValues("websocket").Dec()

	if snapshot != nil {
		if err := h.writeEvent(conn, snapshot); err != nil {
			h.log.Warnf("Failed to send snapshot for job %s: %v", jobID, err)
			return
		}
		if snapshot.Terminal() {
			h.closeStream(conn, jobID)
			return
		}
	}

	// A terminal job carries no live channel; a select on a nil channel would
	// hang here even when the snapshot was missing or did not say terminal.
	if events == nil {
		h.closeStream(conn, jobID)
		return
	}

	// Reader goroutine drains client frames and surfaces disconnects.
	clientGone := make(chan struct{})
	go func() {
		defer close(clientGone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	pings := time.NewTicker(wsPingInterval)
	defer pings.Stop()

	for {
		select {
		case event, ok := <-events:
			if !ok {
				// Hub dropped the subscriber; the job outcome is still
				// durable, the client re-fetches it on reconnect.
				h.closeStream(conn, jobID)
				return
			}
			if err := h.writeEvent(conn, &event); err != nil {
				h.log.Debugf("Progress write failed for job %s: %v", jobID, err)
				return
			}
			if event.Terminal() {
				h.closeStream(conn, jobID)
				return
			}
		case <-pings.C:
			conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-clientGone:
			return
		case <-r.Context().Done():
			return
		}
	}
}

func (h *ProgressHandler) writeEvent(conn *websocket.Conn, event interface{}) error {
	conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return conn.WriteJSON(event)
}

func (h *ProgressHandler) closeStream(conn *websocket.Conn, jobID uuid.UUID) {
	message := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "job finished")
	conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	if err := conn.WriteMessage(websocket.CloseMessage, message); err != nil {
		h.log.Debugf("Close handshake failed for job %s: %v", jobID, err)
	}
}

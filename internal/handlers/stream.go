package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/jwebster45206/heartline/internal/session"
	"github.com/jwebster45206/heartline/pkg/dialogue"
	"github.com/jwebster45206/heartline/pkg/interpreter"
)

const (
	wsPongWait   = 60 * time.Second
	wsPingPeriod = 50 * time.Second
	wsWriteWait  = 10 * time.Second
)

// StreamCommand is a client message on the session socket.
type StreamCommand struct {
	Action string  `json:"action"` // advance, choice, tick, view
	Index  int     `json:"index,omitempty"`
	Hours  float64 `json:"hours,omitempty"`
}

// StreamMessage is a server message on the session socket.
type StreamMessage struct {
	Type    string              `json:"type"` // view, output, step, tick, error
	View    any                 `json:"view,omitempty"`
	Output  *interpreter.Output `json:"output,omitempty"`
	Step    any                 `json:"step,omitempty"`
	Tick    any                 `json:"tick,omitempty"`
	Error   string              `json:"error,omitempty"`
	Warning string              `json:"warning,omitempty"`
}

// StreamHandler serves a session's presenter output over a WebSocket and
// accepts play commands on the same connection. One stream per session is
// expected; concurrent streams split the output between them.
type StreamHandler struct {
	manager  *session.Manager
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

func NewStreamHandler(manager *session.Manager, logger *slog.Logger) *StreamHandler {
	return &StreamHandler{
		manager: manager,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		logger: logger,
	}
}

// ServeHTTP upgrades GET /v1/sessions/{id}/ws
func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/sessions"), "/"), "/")
	if len(parts) != 2 || parts[1] != "ws" {
		w.Header().Set("Content-Type", "application/json")
		writeError(w, h.logger, http.StatusNotFound, "Expected /v1/sessions/{id}/ws")
		return
	}
	id, err := uuid.Parse(parts[0])
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		writeError(w, h.logger, http.StatusBadRequest, "Invalid session ID format")
		return
	}
	sess, err := h.manager.Get(id)
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		writeError(w, h.logger, statusFor(err), err.Error())
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied to the client
		h.logger.Warn("WebSocket upgrade failed", "session_id", id, "error", err)
		return
	}
	defer conn.Close()

	h.logger.Info("Session stream connected", "session_id", id, "remote_addr", r.RemoteAddr)

	// Output produced while nobody was listening is stale
	sess.Presenter.Drain()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	replies := make(chan StreamMessage, 16)
	replies <- h.view(id)
	go h.readLoop(ctx, cancel, conn, id, replies)

	ping := time.NewTicker(wsPingPeriod)
	defer ping.Stop()

	for {
		var msg StreamMessage
		select {
		case <-ctx.Done():
			h.logger.Info("Session stream closed", "session_id", id)
			return
		case out := <-sess.Presenter.Output():
			msg = StreamMessage{Type: "output", Output: &out}
		case msg = <-replies:
		case <-ping.C:
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
			continue
		}

		conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		if err := conn.WriteJSON(msg); err != nil {
			h.logger.Debug("Session stream write failed", "session_id", id, "error", err)
			return
		}
	}
}

// readLoop handles client commands until the connection fails.
func (h *StreamHandler) readLoop(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn, id uuid.UUID, replies chan<- StreamMessage) {
	defer cancel()

	conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	for {
		var cmd StreamCommand
		if err := conn.ReadJSON(&cmd); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn("Session stream read failed", "session_id", id, "error", err)
			}
			return
		}
		conn.SetReadDeadline(time.Now().Add(wsPongWait))

		select {
		case replies <- h.handle(ctx, id, cmd):
		case <-ctx.Done():
			return
		}
	}
}

func (h *StreamHandler) handle(ctx context.Context, id uuid.UUID, cmd StreamCommand) StreamMessage {
	switch cmd.Action {
	case "view":
		return h.view(id)
	case "advance":
		step, err := h.manager.Advance(ctx, id)
		return stepMessage(step, err)
	case "choice":
		step, err := h.manager.SelectChoice(ctx, id, cmd.Index)
		return stepMessage(step, err)
	case "tick":
		result, err := h.manager.Tick(ctx, id, cmd.Hours)
		if err != nil {
			return StreamMessage{Type: "error", Error: err.Error()}
		}
		return StreamMessage{Type: "tick", Tick: result}
	default:
		return StreamMessage{Type: "error", Error: "unknown action " + cmd.Action}
	}
}

func (h *StreamHandler) view(id uuid.UUID) StreamMessage {
	v, err := h.manager.View(id)
	if err != nil {
		return StreamMessage{Type: "error", Error: err.Error()}
	}
	return StreamMessage{Type: "view", View: v}
}

func stepMessage(step any, err error) StreamMessage {
	if err != nil && !dialogue.IsMalformed(err) {
		return StreamMessage{Type: "error", Error: err.Error()}
	}
	msg := StreamMessage{Type: "step", Step: step}
	if err != nil {
		msg.Warning = err.Error()
	}
	return msg
}

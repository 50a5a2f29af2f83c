package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/aescanero/dagrun/internal/domain"
	"github.com/aescanero/dagrun/internal/ports"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// SnapshotTopic names the first frame of every stream, carrying the run
// record as it was when the client connected.
const SnapshotTopic = "snapshot"

const writeWait = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// RunGetter loads the current record of a run.
type RunGetter interface {
	GetRun(ctx context.Context, runID string) (*domain.Run, error)
}

// Handler handles WebSocket connections
type Handler struct {
	subscriber ports.Subscriber
	runs       RunGetter
	logger     *zap.Logger
}

// NewHandler creates a new WebSocket handler
func NewHandler(subscriber ports.Subscriber, runs RunGetter, logger *zap.Logger) *Handler {
	return &Handler{
		subscriber: subscriber,
		runs:       runs,
		logger:     logger,
	}
}

// HandleRunStream streams the events of one run as {topic, payload} frames.
// The stream ends after the terminal status event.
func (h *Handler) HandleRunStream(c *gin.Context) {
	runID := c.Param("id")

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	// Subscribe before loading the snapshot so no event falls in between.
	events, err := h.subscriber.Subscribe(ctx, ports.RunTopics(runID)...)
	if err != nil {
		h.logger.Error("failed to subscribe to run events",
			zap.String("run_id", runID),
			zap.Error(err))
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "event stream unavailable"})
		return
	}

	run, err := h.runs.GetRun(ctx, runID)
	if errors.Is(err, ports.ErrRunNotFound) {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "run not found"})
		return
	}
	if err != nil {
		h.logger.Error("failed to load run", zap.String("run_id", runID), zap.Error(err))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("failed to upgrade connection", zap.Error(err))
		return
	}
	defer func() { _ = conn.Close() }()

	h.logger.Info("WebSocket connection established",
		zap.String("run_id", runID),
		zap.String("client", c.ClientIP()))

	// Control frames are only processed while reading.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	if err := writeFrame(conn, ports.Message{Topic: SnapshotTopic, Payload: run}); err != nil {
		h.logger.Debug("failed to write snapshot", zap.Error(err))
		return
	}
	if run.Status.IsTerminal() {
		closeNormal(conn, "run finished")
		return
	}

	statusTopic := ports.StatusTopic(runID)
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-events:
			if !ok {
				closeNormal(conn, "event stream closed")
				return
			}
			if err := writeFrame(conn, msg); err != nil {
				h.logger.Debug("failed to write event",
					zap.String("run_id", runID),
					zap.Error(err))
				return
			}
			if msg.Topic == statusTopic && isTerminal(msg.Payload) {
				closeNormal(conn, "run finished")
				return
			}
		}
	}
}

func writeFrame(conn *websocket.Conn, msg ports.Message) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(msg)
}

func closeNormal(conn *websocket.Conn, reason string) {
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason),
		time.Now().Add(writeWait))
}

// isTerminal inspects a status payload from either an in-process or a
// networked bus.
func isTerminal(payload any) bool {
	switch p := payload.(type) {
	case domain.StatusEvent:
		return p.Status.IsTerminal()
	case *domain.StatusEvent:
		return p != nil && p.Status.IsTerminal()
	case json.RawMessage:
		var ev domain.StatusEvent
		if err := json.Unmarshal(p, &ev); err != nil {
			return false
		}
		return ev.Status.IsTerminal()
	}
	return false
}

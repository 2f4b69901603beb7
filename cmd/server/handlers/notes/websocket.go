package notes

import (
	"context"
	"crypto/rand"
	"log/slog"
	"sync"
	"time"

	"fido/cmd/server/ctxkeys"
	"fido/cmd/server/handlers/httperr"
	"fido/internal/feed"
	"fido/internal/logger"
	"fido/internal/services/notelist"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/oklog/ulid/v2"
)

// Close codes sent on the snapshot stream.
const (
	WSCloseGoingAway       = 1001 // engine stopped
	WSClosePolicyViolation = 1008 // session limit reached
)

const (
	wsWriteTimeout     = 10 * time.Second
	wsPingInterval     = 25 * time.Second
	wsPingWriteTimeout = 5 * time.Second
)

// SnapshotSource hands out snapshot subscriptions.
type SnapshotSource interface {
	Subscribe() *feed.Subscription[notelist.Snapshot]
}

var _ SnapshotSource = (*notelist.Engine)(nil)

// WebSocketHandlers serves the live snapshot stream.
type WebSocketHandlers struct {
	source     SnapshotSource
	maxSession time.Duration
}

// NewWebSocketHandlers creates new WebSocket handlers. maxSessionSec <= 0
// means sessions never time out.
func NewWebSocketHandlers(source SnapshotSource, maxSessionSec int) *WebSocketHandlers {
	return &WebSocketHandlers{
		source:     source,
		maxSession: time.Duration(max(maxSessionSec, 0)) * time.Second,
	}
}

// WSUpgrade rejects plain HTTP and tags the upgrade with a connection id and
// the request context.
func (h *WebSocketHandlers) WSUpgrade(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		logger.L().Warn("websocket upgrade required", "path", c.Path())
		return httperr.Fail(httperr.E{
			Status:  fiber.StatusBadRequest,
			Message: "WebSocket upgrade required",
		})
	}

	connID := ulid.MustNew(ulid.Timestamp(time.Now().UTC()), rand.Reader)
	c.Locals(ctxkeys.ConnIDKey, connID.String())
	c.Locals(ctxkeys.ParentCtxKey, c.UserContext())
	return c.Next()
}

// WSSnapshotStream writes the current snapshot and then every new one to the
// client until either side goes away, the engine stops or the session limit
// is hit.
func (h *WebSocketHandlers) WSSnapshotStream(c *websocket.Conn) {
	connID, _ := c.Locals(ctxkeys.ConnIDKey).(string)
	s := &snapshotStream{conn: c, log: logger.L().With("conn_id", connID)}

	parent, ok := c.Locals(ctxkeys.ParentCtxKey).(context.Context)
	if !ok {
		s.log.Error("snapshot stream without request context")
		s.closeConn()
		return
	}
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	sub := h.source.Subscribe()
	defer sub.Cancel()
	s.log.Info("snapshot stream opened", "sub_id", sub.ID.String())

	if h.maxSession > 0 {
		expire := time.AfterFunc(h.maxSession, func() {
			s.log.Info("snapshot stream session expired", "after", h.maxSession)
			s.sendClose(WSClosePolicyViolation, "session timeout")
			s.closeConn()
			cancel()
		})
		defer expire.Stop()
	}

	go s.keepAlive(ctx)
	go s.forward(ctx, sub)

	s.drain()
	s.log.Info("snapshot stream closed")
}

// snapshotStream is one client connection. Every frame goes through writeMu
// since the forwarder, keep-alive and session timer write concurrently.
type snapshotStream struct {
	conn    *websocket.Conn
	log     *slog.Logger
	writeMu sync.Mutex
}

func (s *snapshotStream) write(timeout time.Duration, frame func() error) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.conn.SetWriteDeadline(time.Now().Add(timeout)); err != nil {
		return err
	}
	return frame()
}

// forward relays snapshots. A closed subscription means the engine stopped.
func (s *snapshotStream) forward(ctx context.Context, sub *feed.Subscription[notelist.Snapshot]) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("panic in snapshot forwarder", "error", r)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case snap, ok := <-sub.Ch:
			if !ok {
				s.sendClose(WSCloseGoingAway, "engine stopped")
				return
			}
			err := s.write(wsWriteTimeout, func() error { return s.conn.WriteJSON(snap) })
			if err != nil {
				s.log.Warn("snapshot not delivered", "error", err)
				return
			}
		}
	}
}

func (s *snapshotStream) keepAlive(ctx context.Context) {
	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			err := s.write(wsPingWriteTimeout, func() error {
				return s.conn.WriteMessage(websocket.PingMessage, nil)
			})
			if err != nil {
				s.log.Warn("keep-alive ping failed", "error", err)
				return
			}
		}
	}
}

// drain reads and discards client frames; it returns when the connection
// is gone. Control frames are answered by the connection itself.
func (s *snapshotStream) drain() {
	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				s.log.Warn("snapshot stream read failed", "error", err)
			}
			return
		}
	}
}

func (s *snapshotStream) sendClose(code int, reason string) {
	err := s.write(wsWriteTimeout, func() error {
		return s.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason))
	})
	if err != nil {
		s.log.Debug("close frame not sent", "code", code, "error", err)
	}
}

func (s *snapshotStream) closeConn() {
	if err := s.conn.Close(); err != nil {
		s.log.Debug("failed to close WebSocket connection", "error", err)
	}
}

// LogWSConnections logs every WebSocket upgrade attempt.
func LogWSConnections() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			logger.L().Info("WebSocket upgrade attempt", "ip", c.IP(), "path", c.Path())
		}
		return c.Next()
	}
}

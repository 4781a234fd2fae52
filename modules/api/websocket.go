package api

import (
	"errors"
	"time"

	fastws "github.com/fasthttp/websocket"
	"github.com/gofiber/contrib/websocket"

	domain "github.com/example/shop-chat/domain/chat"
)

const writeWait = 10 * time.Second

// fiberConn adapts a Fiber WebSocket connection to Conn.
type fiberConn struct {
	c *websocket.Conn
}

func (f fiberConn) ReadMessage() (int, []byte, error) {
	return f.c.ReadMessage()
}

func (f fiberConn) WriteJSON(v any) error {
	if err := f.c.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return f.c.WriteJSON(v)
}

func (f fiberConn) CloseWith(code int, reason string) error {
	msg := fastws.FormatCloseMessage(code, reason)
	if err := f.c.WriteControl(fastws.CloseMessage, msg, time.Now().Add(writeWait)); err != nil {
		_ = f.c.Close()
		return err
	}
	return f.c.Close()
}

// closeCodeOf extracts the peer's close code from a read error.
func closeCodeOf(err error) int {
	var ce *fastws.CloseError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return fastws.CloseAbnormalClosure
}

// handleWebSocket serves /ws/chat/:room_id. Sockets opened after Stop has
// begun are closed straight away.
func (m *APIModule) handleWebSocket(c *websocket.Conn) {
	conn := fiberConn{c: c}
	if !m.trackSession() {
		_ = conn.CloseWith(fastws.CloseGoingAway, domain.ErrUnavailable.Error())
		return
	}
	defer m.sessions.Done()

	roomID := c.Params("room_id")
	session := NewSession(conn, m.sessionConfig())
	m.logger.Debug("WebSocket connected", "session", session.ID(), "roomID", roomID)
	session.Run(m.baseCtx, roomID)
}

package api

import (
	"context"
	"net"
	"testing"
	"time"

	gws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// serveTestAPI starts the module on a loopback listener and returns the
// ws:// base URL.
func serveTestAPI(t *testing.T) (*APIModule, *fakePort, string) {
	t.Helper()
	m, port := newTestAPI(t)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() {
		_ = m.App().Listener(ln)
	}()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = m.Stop(ctx)
	})

	return m, port, "ws://" + ln.Addr().String()
}

func dialRoom(t *testing.T, baseURL, roomID string) *gws.Conn {
	t.Helper()
	conn, _, err := gws.DefaultDialer.Dial(baseURL+"/ws/chat/"+roomID, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	return conn
}

func TestWebSocket_UnknownRoomClosesWith4004(t *testing.T) {
	_, _, baseURL := serveTestAPI(t)
	conn := dialRoom(t, baseURL, "does-not-exist")

	var frame map[string]string
	require.NoError(t, conn.ReadJSON(&frame))
	assert.Equal(t, "room does not exist", frame["error"])

	_, _, err := conn.ReadMessage()
	require.Error(t, err)
	assert.True(t, gws.IsCloseError(err, CloseRoomNotFound), "got %v", err)
}

func TestWebSocket_BroadcastBetweenParticipants(t *testing.T) {
	m, port, baseURL := serveTestAPI(t)
	roomID := port.addRoom(shopEmail, visitorEmail)

	shop := dialRoom(t, baseURL, roomID)
	visitor := dialRoom(t, baseURL, roomID)
	require.Eventually(t, func() bool { return m.hub.ReceiverCount() == 2 }, waitFor, tick)

	require.NoError(t, visitor.WriteJSON(chatFrame("is this in stock?", visitorEmail)))

	for _, c := range []*gws.Conn{shop, visitor} {
		var out OutboundMessage
		require.NoError(t, c.ReadJSON(&out))
		assert.Equal(t, "is this in stock?", out.Message)
		assert.Equal(t, visitorEmail, out.SenderEmail)
	}
	assert.Len(t, port.roomMessages(roomID), 1)
}

func TestWebSocket_ClientCloseLeavesGroup(t *testing.T) {
	m, port, baseURL := serveTestAPI(t)
	roomID := port.addRoom(shopEmail, visitorEmail)

	conn := dialRoom(t, baseURL, roomID)
	require.Eventually(t, func() bool { return m.hub.ReceiverCount() == 1 }, waitFor, tick)

	msg := gws.FormatCloseMessage(gws.CloseNormalClosure, "bye")
	require.NoError(t, conn.WriteControl(gws.CloseMessage, msg, time.Now().Add(time.Second)))

	require.Eventually(t, func() bool { return m.hub.ReceiverCount() == 0 }, waitFor, tick)
}

func TestWebSocket_StopClosesOpenSessions(t *testing.T) {
	m, port, baseURL := serveTestAPI(t)
	roomID := port.addRoom(shopEmail, visitorEmail)

	shop := dialRoom(t, baseURL, roomID)
	visitor := dialRoom(t, baseURL, roomID)
	require.Eventually(t, func() bool { return m.hub.ReceiverCount() == 2 }, waitFor, tick)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, m.Stop(ctx))

	assert.Zero(t, m.hub.ReceiverCount())
	for _, c := range []*gws.Conn{shop, visitor} {
		_, _, err := c.ReadMessage()
		require.Error(t, err)
		assert.True(t, gws.IsCloseError(err, gws.CloseGoingAway), "got %v", err)
	}
}

func TestModule_TrackSessionRefusedAfterStop(t *testing.T) {
	m := NewModule(Options{}, &mockLogger{})
	require.True(t, m.trackSession())
	m.sessions.Done()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, m.Stop(ctx))

	assert.False(t, m.trackSession())
}

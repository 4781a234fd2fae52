package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sort"
	"sync"
	"testing"
	"time"

	fastws "github.com/fasthttp/websocket"
	"github.com/go-monolith/mono/pkg/types"

	domain "github.com/example/shop-chat/domain/chat"
	"github.com/example/shop-chat/modules/chat"
)

// mockLogger implements types.Logger for testing
type mockLogger struct{}

func (m *mockLogger) Debug(_ string, _ ...any)         {}
func (m *mockLogger) Info(_ string, _ ...any)          {}
func (m *mockLogger) Warn(_ string, _ ...any)          {}
func (m *mockLogger) Error(_ string, _ ...any)         {}
func (m *mockLogger) With(_ ...any) types.Logger       { return m }
func (m *mockLogger) WithModule(_ string) types.Logger { return m }
func (m *mockLogger) WithError(_ error) types.Logger   { return m }

// fakePort is an in-memory chat.ChatPort.
type fakePort struct {
	mu       sync.Mutex
	rooms    map[string]domain.Room
	pairs    map[string]string
	messages map[string][]domain.Message
	nextID   uint
	nextRoom int

	existsErr error
	saveErr   error
	roomErr   error
}

var _ chat.ChatPort = (*fakePort)(nil)

func newFakePort() *fakePort {
	return &fakePort{
		rooms:    make(map[string]domain.Room),
		pairs:    make(map[string]string),
		messages: make(map[string][]domain.Message),
	}
}

// addRoom creates a room directly and returns its id.
func (p *fakePort) addRoom(shop, visitor string) string {
	res, err := p.GetOrCreateRoom(context.Background(), shop, visitor)
	if err != nil {
		panic(err)
	}
	return res.Room.ID
}

func (p *fakePort) roomMessages(roomID string) []domain.Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]domain.Message(nil), p.messages[roomID]...)
}

func (p *fakePort) GetOrCreateRoom(_ context.Context, shop, visitor string) (domain.RoomResult, error) {
	if shop == "" || visitor == "" {
		return domain.RoomResult{}, domain.ErrMissingParticipants
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.roomErr != nil {
		return domain.RoomResult{}, p.roomErr
	}
	key := shop + "|" + visitor
	if id, ok := p.pairs[key]; ok {
		return domain.RoomResult{Room: p.rooms[id], Outcome: domain.OutcomeExisting}, nil
	}
	p.nextRoom++
	room := domain.Room{
		ID:               fmt.Sprintf("room-%d", p.nextRoom),
		ShopUserEmail:    shop,
		VisitorUserEmail: visitor,
		CreatedAt:        time.Now().UTC(),
	}
	p.rooms[room.ID] = room
	p.pairs[key] = room.ID
	return domain.RoomResult{Room: room, Outcome: domain.OutcomeCreated}, nil
}

func (p *fakePort) RoomExists(_ context.Context, roomID string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.existsErr != nil {
		return false, p.existsErr
	}
	_, ok := p.rooms[roomID]
	return ok, nil
}

func (p *fakePort) SaveMessage(_ context.Context, roomID, sender, text string) (*domain.Message, error) {
	if sender == "" || text == "" {
		return nil, domain.ErrMissingContent
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.saveErr != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrPersistence, p.saveErr)
	}
	if _, ok := p.rooms[roomID]; !ok {
		return nil, domain.ErrRoomNotFound
	}
	p.nextID++
	msg := domain.Message{
		ID:          p.nextID,
		RoomID:      roomID,
		SenderEmail: sender,
		Text:        text,
		Timestamp:   time.Now().UTC(),
	}
	p.messages[roomID] = append(p.messages[roomID], msg)
	return &msg, nil
}

func (p *fakePort) LatestMessage(_ context.Context, roomID string) (*domain.Message, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	msgs := p.messages[roomID]
	if len(msgs) == 0 {
		return nil, false, nil
	}
	latest := msgs[len(msgs)-1]
	return &latest, true, nil
}

func (p *fakePort) ListMessages(_ context.Context, roomID string) ([]domain.Message, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	msgs := p.messages[roomID]
	if len(msgs) == 0 {
		return nil, domain.ErrMessagesNotFound
	}
	return append([]domain.Message(nil), msgs...), nil
}

func (p *fakePort) ListRooms(_ context.Context, email string) ([]domain.RoomDetail, error) {
	if email == "" {
		return nil, domain.ErrMissingParticipants
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []domain.RoomDetail
	for id, room := range p.rooms {
		if room.ShopUserEmail != email && room.VisitorUserEmail != email {
			continue
		}
		d := domain.RoomDetail{Room: room, Messages: append([]domain.Message(nil), p.messages[id]...)}
		if n := len(d.Messages); n > 0 {
			text := d.Messages[n-1].Text
			d.LatestMessage = &text
		}
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// fakeConn is a Conn fed from a channel. Closing inbound ends the read
// loop with a normal close; CloseWith ends it like a dropped socket.
type fakeConn struct {
	inbound   chan []byte
	done      chan struct{}
	closeOnce sync.Once

	mu         sync.Mutex
	frames     []map[string]string
	failWrites int
	closed     bool
	closeCode  int
}

func newFakeConn() *fakeConn {
	return &fakeConn{inbound: make(chan []byte, 16), done: make(chan struct{})}
}

func (c *fakeConn) ReadMessage() (int, []byte, error) {
	select {
	case payload, ok := <-c.inbound:
		if !ok {
			return 0, nil, &fastws.CloseError{Code: fastws.CloseNormalClosure}
		}
		return fastws.TextMessage, payload, nil
	case <-c.done:
		return 0, nil, net.ErrClosed
	}
}

func (c *fakeConn) WriteJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failWrites > 0 {
		c.failWrites--
		return errors.New("write: broken pipe")
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	var frame map[string]string
	if err := json.Unmarshal(data, &frame); err != nil {
		return err
	}
	c.frames = append(c.frames, frame)
	return nil
}

func (c *fakeConn) CloseWith(code int, _ string) error {
	c.mu.Lock()
	c.closed = true
	c.closeCode = code
	c.mu.Unlock()
	c.closeOnce.Do(func() { close(c.done) })
	return nil
}

func (c *fakeConn) send(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	c.inbound <- data
}

func (c *fakeConn) sendRaw(s string) {
	c.inbound <- []byte(s)
}

func (c *fakeConn) Frames() []map[string]string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]map[string]string(nil), c.frames...)
}

func (c *fakeConn) Closed() (bool, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed, c.closeCode
}

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return data
}

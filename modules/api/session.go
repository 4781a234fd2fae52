package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	fastws "github.com/fasthttp/websocket"

	domain "github.com/example/shop-chat/domain/chat"
	"github.com/example/shop-chat/modules/broadcast"
	"github.com/go-monolith/mono/pkg/types"
	"github.com/google/uuid"
)

// CloseRoomNotFound is the close code sent when a client connects to a room
// that does not exist.
const CloseRoomNotFound = 4004

const defaultRequestTimeout = 5 * time.Second

// State is the lifecycle stage of a Session.
type State int32

const (
	StateConnecting State = iota
	StateJoined
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateJoined:
		return "joined"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

var (
	errNotConnecting = errors.New("session already connected")
	errNotJoined     = errors.New("session is not joined")
)

// RoomDirectory resolves rooms for sessions.
type RoomDirectory interface {
	GetOrCreateRoom(ctx context.Context, shopEmail, visitorEmail string) (domain.RoomResult, error)
	RoomExists(ctx context.Context, roomID string) (bool, error)
}

// MessageStore persists chat messages for sessions.
type MessageStore interface {
	SaveMessage(ctx context.Context, roomID, senderEmail, text string) (*domain.Message, error)
}

// Conn is the socket a Session owns.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteJSON(v any) error
	CloseWith(code int, reason string) error
}

// SessionConfig holds the collaborators shared by every session.
type SessionConfig struct {
	Rooms          RoomDirectory
	Messages       MessageStore
	Groups         broadcast.GroupRegistry
	Logger         types.Logger
	RequestTimeout time.Duration

	// OnDisconnectError receives errors raised while leaving the group on
	// disconnect. They never reach the client.
	OnDisconnectError func(sessionID string, err error)
}

// Session drives one WebSocket connection through
// Connecting -> Joined -> Closed.
type Session struct {
	id   string
	conn Conn
	cfg  SessionConfig

	mu     sync.Mutex
	state  State
	roomID string

	writeMu sync.Mutex
}

// Compile-time interface check.
var _ broadcast.Receiver = (*Session)(nil)

// NewSession creates a session in the Connecting state.
func NewSession(conn Conn, cfg SessionConfig) *Session {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaultRequestTimeout
	}
	s := &Session{
		id:    uuid.New().String(),
		conn:  conn,
		cfg:   cfg,
		state: StateConnecting,
	}
	if s.cfg.OnDisconnectError == nil {
		s.cfg.OnDisconnectError = func(id string, err error) {
			s.cfg.Logger.Debug("Ignored disconnect error", "session", id, "error", err)
		}
	}
	return s
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// RoomID returns the room the session is currently bound to.
func (s *Session) RoomID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.roomID
}

// Events handled by dispatch.
type (
	sessionEvent interface{ sessionEvent() }

	connectEvent    struct{ roomID string }
	receiveEvent    struct{ payload []byte }
	disconnectEvent struct{ code int }
	deliverEvent    struct{ event broadcast.Event }
)

func (connectEvent) sessionEvent()    {}
func (receiveEvent) sessionEvent()    {}
func (disconnectEvent) sessionEvent() {}
func (deliverEvent) sessionEvent()    {}

func (s *Session) dispatch(ctx context.Context, ev sessionEvent) error {
	switch e := ev.(type) {
	case connectEvent:
		return s.connect(ctx, e.roomID)
	case receiveEvent:
		return s.receive(ctx, e.payload)
	case disconnectEvent:
		s.disconnect(e.code)
		return nil
	case deliverEvent:
		return s.chatMessage(e.event)
	default:
		return fmt.Errorf("unknown session event %T", ev)
	}
}

// Run connects to roomID and then reads frames until the socket fails or
// closes. Disconnect always runs once the session has been admitted.
// Cancelling ctx shuts the session down with a going-away close.
func (s *Session) Run(ctx context.Context, roomID string) {
	if err := s.dispatch(ctx, connectEvent{roomID: roomID}); err != nil {
		return
	}
	shutdownDone := make(chan struct{})
	stop := context.AfterFunc(ctx, func() {
		defer close(shutdownDone)
		s.Shutdown()
	})
	// The socket must not be touched once Run returns.
	defer func() {
		if !stop() {
			<-shutdownDone
		}
	}()

	for {
		_, payload, err := s.conn.ReadMessage()
		if err != nil {
			code := closeCodeOf(err)
			if ctx.Err() != nil {
				code = fastws.CloseGoingAway
			}
			_ = s.dispatch(ctx, disconnectEvent{code: code})
			return
		}
		_ = s.dispatch(ctx, receiveEvent{payload: payload})
	}
}

// Shutdown closes the socket of a live session. The blocked read in Run
// then fails and Run finishes the disconnect.
func (s *Session) Shutdown() {
	if s.State() == StateClosed {
		return
	}
	s.closeConn(fastws.CloseGoingAway, "server shutting down")
}

// Deliver handles a broadcast addressed to this session's group.
func (s *Session) Deliver(ev broadcast.Event) error {
	return s.dispatch(context.Background(), deliverEvent{event: ev})
}

func (s *Session) connect(ctx context.Context, roomID string) error {
	s.mu.Lock()
	if s.state != StateConnecting {
		s.mu.Unlock()
		return errNotConnecting
	}
	s.mu.Unlock()

	rctx, cancel := context.WithTimeout(ctx, s.cfg.RequestTimeout)
	exists, err := s.cfg.Rooms.RoomExists(rctx, roomID)
	cancel()
	if err != nil {
		s.cfg.Logger.Warn("Room lookup failed", "session", s.id, "roomID", roomID, "error", err)
	}
	if err != nil || !exists {
		s.sendError(domain.ErrRoomNotFound)
		s.mu.Lock()
		s.state = StateClosed
		s.mu.Unlock()
		s.closeConn(CloseRoomNotFound, domain.ErrRoomNotFound.Error())
		return domain.ErrRoomNotFound
	}

	s.mu.Lock()
	s.roomID = roomID
	s.mu.Unlock()

	if err := s.cfg.Groups.Add(broadcast.GroupName(roomID), s); err != nil {
		s.mu.Lock()
		s.state = StateClosed
		s.mu.Unlock()
		return s.unavailable(err)
	}

	s.mu.Lock()
	s.state = StateJoined
	s.mu.Unlock()

	s.cfg.Logger.Info("Session joined", "session", s.id, "roomID", roomID)
	return nil
}

func (s *Session) disconnect(code int) {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return
	}
	s.state = StateClosed
	roomID := s.roomID
	s.mu.Unlock()

	if err := s.cfg.Groups.Discard(broadcast.GroupName(roomID), s); err != nil {
		s.cfg.OnDisconnectError(s.id, err)
	}
	s.cfg.Logger.Info("Session closed", "session", s.id, "roomID", roomID, "code", code)
}

func (s *Session) receive(ctx context.Context, payload []byte) error {
	if s.State() != StateJoined {
		return errNotJoined
	}

	var in InboundFrame
	if err := json.Unmarshal(payload, &in); err != nil {
		s.sendError(domain.ErrInvalidFrame)
		return domain.ErrInvalidFrame
	}
	in.Normalize()
	if err := in.Validate(); err != nil {
		s.sendError(err)
		return err
	}

	rctx, cancel := context.WithTimeout(ctx, s.cfg.RequestTimeout)
	defer cancel()

	result, err := s.cfg.Rooms.GetOrCreateRoom(rctx, in.ShopUserEmail, in.VisitorUserEmail)
	if err != nil {
		return s.failReceive("Room resolution failed", err)
	}
	roomID := result.Room.ID
	if err := s.rebind(roomID); err != nil {
		return s.unavailable(err)
	}

	if _, err := s.cfg.Messages.SaveMessage(rctx, roomID, in.SenderEmail, in.Message); err != nil {
		return s.failReceive("Message save failed", err)
	}

	s.cfg.Groups.Send(broadcast.GroupName(roomID), broadcast.Event{
		Type:        broadcast.EventChatMessage,
		Message:     in.Message,
		SenderEmail: in.SenderEmail,
	})
	return nil
}

// failReceive reports err to the sender. Anything that is not a
// validation error is reported as a persistence failure.
func (s *Session) failReceive(msg string, err error) error {
	if domain.IsValidation(err) {
		s.sendError(err)
		return err
	}
	s.cfg.Logger.Error(msg, "session", s.id, "error", err)
	s.sendError(domain.ErrPersistence)
	if errors.Is(err, domain.ErrPersistence) {
		return err
	}
	return fmt.Errorf("%w: %w", domain.ErrPersistence, err)
}

// unavailable tells the client the group registry refused it and closes
// the socket. Run's read loop then ends the session.
func (s *Session) unavailable(err error) error {
	s.cfg.Logger.Warn("Group registry refused session", "session", s.id, "error", err)
	s.sendError(domain.ErrUnavailable)
	s.closeConn(fastws.CloseGoingAway, domain.ErrUnavailable.Error())
	return fmt.Errorf("%w: %w", domain.ErrUnavailable, err)
}

// rebind moves the session to roomID's group when it differs from the
// current binding. The binding is left untouched when the move fails.
func (s *Session) rebind(roomID string) error {
	s.mu.Lock()
	old := s.roomID
	s.mu.Unlock()
	if old == roomID {
		return nil
	}

	if err := s.cfg.Groups.Add(broadcast.GroupName(roomID), s); err != nil {
		return err
	}
	s.mu.Lock()
	s.roomID = roomID
	s.mu.Unlock()

	if err := s.cfg.Groups.Discard(broadcast.GroupName(old), s); err != nil && !errors.Is(err, broadcast.ErrNotMember) {
		s.cfg.Logger.Warn("Failed to leave previous group", "session", s.id, "roomID", old, "error", err)
	}
	s.cfg.Logger.Debug("Session rebound", "session", s.id, "from", old, "to", roomID)
	return nil
}

func (s *Session) chatMessage(ev broadcast.Event) error {
	if s.State() == StateClosed {
		return nil
	}
	out := OutboundMessage{Message: ev.Message, SenderEmail: ev.SenderEmail}
	if err := s.writeJSON(out); err != nil {
		s.sendError(domain.ErrDeliveryFailure)
		return fmt.Errorf("%w: %w", domain.ErrDeliveryFailure, err)
	}
	return nil
}

func (s *Session) sendError(err error) {
	if werr := s.writeJSON(ErrorFrame{Error: err.Error()}); werr != nil {
		s.cfg.Logger.Debug("Failed to send error frame", "session", s.id, "error", werr)
	}
}

func (s *Session) writeJSON(v any) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteJSON(v)
}

func (s *Session) closeConn(code int, reason string) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.conn.CloseWith(code, reason); err != nil {
		s.cfg.Logger.Debug("Close failed", "session", s.id, "error", err)
	}
}

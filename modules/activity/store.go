package activity

import (
	"sync"
	"time"
)

// Snapshot is a point-in-time copy of the activity counters.
type Snapshot struct {
	MessagesSent      uint64     `json:"messages_sent"`
	RoomsCreated      uint64     `json:"rooms_created"`
	RoomsWithMessages int        `json:"rooms_with_messages"`
	Senders           int        `json:"senders"`
	LastMessageAt     *time.Time `json:"last_message_at,omitempty"`
	LastRoomCreatedAt *time.Time `json:"last_room_created_at,omitempty"`
}

// Store keeps chat activity counters in memory.
type Store struct {
	mu            sync.RWMutex
	messagesSent  uint64
	roomsCreated  uint64
	perRoom       map[string]uint64
	senders       map[string]struct{}
	lastMessageAt time.Time
	lastRoomAt    time.Time
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{
		perRoom: make(map[string]uint64),
		senders: make(map[string]struct{}),
	}
}

// RecordMessage counts one persisted message.
func (s *Store) RecordMessage(roomID, sender string, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messagesSent++
	s.perRoom[roomID]++
	s.senders[sender] = struct{}{}
	if at.After(s.lastMessageAt) {
		s.lastMessageAt = at
	}
}

// RecordRoom counts one newly created room.
func (s *Store) RecordRoom(at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.roomsCreated++
	if at.After(s.lastRoomAt) {
		s.lastRoomAt = at
	}
}

// RoomMessages returns how many messages were seen for roomID.
func (s *Store) RoomMessages(roomID string) uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.perRoom[roomID]
}

// Snapshot returns the current counters.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Snapshot{
		MessagesSent:      s.messagesSent,
		RoomsCreated:      s.roomsCreated,
		RoomsWithMessages: len(s.perRoom),
		Senders:           len(s.senders),
	}
	if !s.lastMessageAt.IsZero() {
		t := s.lastMessageAt
		snap.LastMessageAt = &t
	}
	if !s.lastRoomAt.IsZero() {
		t := s.lastRoomAt
		snap.LastRoomCreatedAt = &t
	}
	return snap
}

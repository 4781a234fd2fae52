package broadcast

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/go-monolith/mono/pkg/types"
)

// EventChatMessage is the only event type fanned out to rooms.
const EventChatMessage = "chat_message"

const groupPrefix = "chat_room_"

var (
	// ErrNotMember is returned by Discard when the receiver is not in the
	// group. Callers treat it as a no-op.
	ErrNotMember = errors.New("receiver is not a member of the group")
	// ErrHubClosed is returned by Add once the hub is closed, and by Close
	// when it gives up waiting for receivers.
	ErrHubClosed = errors.New("hub is closed")
)

// GroupName returns the group key for a room.
func GroupName(roomID string) string {
	return groupPrefix + roomID
}

// Event is what a group send hands to every member.
type Event struct {
	Type        string `json:"type"`
	Message     string `json:"message"`
	SenderEmail string `json:"sender_email"`
}

// Receiver is a group member. Deliver is always called from the member's
// own goroutine, one event at a time, in send order.
type Receiver interface {
	ID() string
	Deliver(ev Event) error
}

// GroupRegistry is the add/discard/send surface sessions depend on.
type GroupRegistry interface {
	Add(key string, r Receiver) error
	Discard(key string, r Receiver) error
	Send(key string, ev Event)
}

// Compile-time interface check.
var _ GroupRegistry = (*Hub)(nil)

type member struct {
	receiver Receiver
	key      string
	box      *mailbox
}

// Hub is an in-memory GroupRegistry. Each receiver belongs to at most one
// group and owns an unbounded FIFO mailbox drained by a dedicated goroutine.
type Hub struct {
	mu      sync.RWMutex
	groups  map[string]map[string]*member // key -> receiverID -> member
	members map[string]*member            // receiverID -> member
	closed  bool
	wg      sync.WaitGroup
	logger  types.Logger

	sent      atomic.Uint64
	delivered atomic.Uint64
	failed    atomic.Uint64
}

// NewHub creates a new Hub.
func NewHub(logger types.Logger) *Hub {
	return &Hub{
		groups:  make(map[string]map[string]*member),
		members: make(map[string]*member),
		logger:  logger,
	}
}

// Add puts r in group key. Adding a receiver already in key is a no-op;
// a receiver in another group is moved, keeping its pending events.
// After Close, Add returns ErrHubClosed and r joins nothing.
func (h *Hub) Add(key string, r Receiver) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return ErrHubClosed
	}

	id := r.ID()
	if m, ok := h.members[id]; ok {
		if m.key == key {
			return nil
		}
		h.removeFromGroup(m)
		m.key = key
		h.addToGroup(m)
		h.logger.Debug("Receiver moved", "receiver", id, "group", key)
		return nil
	}

	m := &member{receiver: r, key: key, box: newMailbox()}
	h.members[id] = m
	h.addToGroup(m)

	h.wg.Add(1)
	go h.pump(m)
	h.logger.Debug("Receiver added", "receiver", id, "group", key)
	return nil
}

// Discard removes r from group key and stops its mailbox. Events still
// queued for r are dropped.
func (h *Hub) Discard(key string, r Receiver) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	m, ok := h.members[r.ID()]
	if !ok || m.key != key {
		return ErrNotMember
	}

	h.removeFromGroup(m)
	delete(h.members, r.ID())
	m.box.stop()
	h.logger.Debug("Receiver discarded", "receiver", r.ID(), "group", key)
	return nil
}

// Send queues ev for every current member of key. It never blocks on a
// receiver and never reports delivery errors to the caller.
func (h *Hub) Send(key string, ev Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, m := range h.groups[key] {
		if m.box.push(ev) {
			h.sent.Add(1)
		}
	}
}

// Members returns the receiver ids in group key, sorted.
func (h *Hub) Members(key string) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	ids := make([]string, 0, len(h.groups[key]))
	for id := range h.groups[key] {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// GroupOf returns the group a receiver currently belongs to.
func (h *Hub) GroupOf(receiverID string) (string, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	m, ok := h.members[receiverID]
	if !ok {
		return "", false
	}
	return m.key, true
}

// GroupCount returns the number of non-empty groups.
func (h *Hub) GroupCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.groups)
}

// ReceiverCount returns the number of registered receivers.
func (h *Hub) ReceiverCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.members)
}

// Stats is a snapshot of hub counters.
type Stats struct {
	Groups    int    `json:"groups"`
	Receivers int    `json:"receivers"`
	Queued    uint64 `json:"queued"`
	Delivered uint64 `json:"delivered"`
	Failed    uint64 `json:"failed"`
}

// Stats returns the current hub counters.
func (h *Hub) Stats() Stats {
	h.mu.RLock()
	groups, receivers := len(h.groups), len(h.members)
	h.mu.RUnlock()

	return Stats{
		Groups:    groups,
		Receivers: receivers,
		Queued:    h.sent.Load(),
		Delivered: h.delivered.Load(),
		Failed:    h.failed.Load(),
	}
}

// Close stops every mailbox and waits for in-flight deliveries until ctx
// is done.
func (h *Hub) Close(ctx context.Context) error {
	h.mu.Lock()
	if !h.closed {
		h.closed = true
		for _, m := range h.members {
			m.box.stop()
		}
		h.groups = make(map[string]map[string]*member)
		h.members = make(map[string]*member)
	}
	h.mu.Unlock()

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return errors.Join(ErrHubClosed, ctx.Err())
	}
}

func (h *Hub) addToGroup(m *member) {
	group, ok := h.groups[m.key]
	if !ok {
		group = make(map[string]*member)
		h.groups[m.key] = group
	}
	group[m.receiver.ID()] = m
}

func (h *Hub) removeFromGroup(m *member) {
	group := h.groups[m.key]
	delete(group, m.receiver.ID())
	if len(group) == 0 {
		delete(h.groups, m.key)
	}
}

func (h *Hub) pump(m *member) {
	defer h.wg.Done()
	for {
		ev, ok := m.box.next()
		if !ok {
			return
		}
		h.deliver(m, ev)
	}
}

// deliver isolates one receiver's failure from everyone else.
func (h *Hub) deliver(m *member, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			h.failed.Add(1)
			h.logger.Error("Receiver panicked during delivery", "receiver", m.receiver.ID(), "panic", r)
		}
	}()

	if err := m.receiver.Deliver(ev); err != nil {
		h.failed.Add(1)
		h.logger.Warn("Delivery failed", "receiver", m.receiver.ID(), "error", err)
		return
	}
	h.delivered.Add(1)
}

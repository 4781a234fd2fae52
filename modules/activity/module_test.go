package activity

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/go-monolith/mono/pkg/types"

	"github.com/example/shop-chat/events"
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

func TestStore_Empty(t *testing.T) {
	snap := NewStore().Snapshot()
	if snap.MessagesSent != 0 || snap.RoomsCreated != 0 {
		t.Errorf("expected zero counters, got %+v", snap)
	}
	if snap.LastMessageAt != nil || snap.LastRoomCreatedAt != nil {
		t.Errorf("expected nil timestamps, got %+v", snap)
	}
}

func TestStore_RecordMessage(t *testing.T) {
	s := NewStore()
	t0 := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	s.RecordMessage("room-1", "shop@example.com", t0)
	s.RecordMessage("room-1", "visitor@example.com", t0.Add(time.Second))
	s.RecordMessage("room-2", "shop@example.com", t0.Add(-time.Second))

	snap := s.Snapshot()
	if snap.MessagesSent != 3 {
		t.Errorf("MessagesSent = %d, want 3", snap.MessagesSent)
	}
	if snap.RoomsWithMessages != 2 {
		t.Errorf("RoomsWithMessages = %d, want 2", snap.RoomsWithMessages)
	}
	if snap.Senders != 2 {
		t.Errorf("Senders = %d, want 2", snap.Senders)
	}
	if snap.LastMessageAt == nil || !snap.LastMessageAt.Equal(t0.Add(time.Second)) {
		t.Errorf("LastMessageAt = %v, want %v", snap.LastMessageAt, t0.Add(time.Second))
	}
	if got := s.RoomMessages("room-1"); got != 2 {
		t.Errorf("RoomMessages(room-1) = %d, want 2", got)
	}
}

func TestStore_Concurrent(t *testing.T) {
	s := NewStore()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.RecordMessage("room", "a@example.com", time.Now())
			s.RecordRoom(time.Now())
		}()
	}
	wg.Wait()

	snap := s.Snapshot()
	if snap.MessagesSent != 50 || snap.RoomsCreated != 50 {
		t.Errorf("unexpected counters: %+v", snap)
	}
}

func TestModule_HandleEvents(t *testing.T) {
	m := NewModule(&mockLogger{})
	ctx := context.Background()
	now := time.Now().UTC()

	if err := m.handleRoomCreated(ctx, events.RoomCreatedEvent{
		RoomID:           "room-1",
		ShopUserEmail:    "shop@example.com",
		VisitorUserEmail: "visitor@example.com",
		Timestamp:        now,
	}, nil); err != nil {
		t.Fatalf("handleRoomCreated: %v", err)
	}
	if err := m.handleMessageSent(ctx, events.MessageSentEvent{
		MessageID:   1,
		RoomID:      "room-1",
		SenderEmail: "visitor@example.com",
		Text:        "hello",
		Timestamp:   now,
	}, nil); err != nil {
		t.Fatalf("handleMessageSent: %v", err)
	}

	snap := m.Snapshot()
	if snap.RoomsCreated != 1 || snap.MessagesSent != 1 {
		t.Errorf("unexpected snapshot: %+v", snap)
	}

	health := m.Health(ctx)
	if !health.Healthy {
		t.Error("expected healthy module")
	}
	if health.Details["messages_sent"] != uint64(1) {
		t.Errorf("messages_sent = %v, want 1", health.Details["messages_sent"])
	}
}

func TestModule_Lifecycle(t *testing.T) {
	m := NewModule(&mockLogger{})
	if m.Name() != "activity" {
		t.Errorf("Name() = %q, want activity", m.Name())
	}
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := m.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}

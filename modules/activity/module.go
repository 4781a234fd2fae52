package activity

import (
	"context"
	"fmt"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
	"github.com/go-monolith/mono/pkg/types"

	"github.com/example/shop-chat/events"
)

// Module consumes chat events and keeps activity counters.
type Module struct {
	store  *Store
	logger types.Logger
}

// Compile-time interface checks.
var (
	_ mono.Module                = (*Module)(nil)
	_ mono.EventConsumerModule   = (*Module)(nil)
	_ mono.HealthCheckableModule = (*Module)(nil)
)

// NewModule creates a new activity module.
func NewModule(logger types.Logger) *Module {
	return &Module{
		store:  NewStore(),
		logger: logger,
	}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "activity"
}

// RegisterEventConsumers registers handlers for chat events.
func (m *Module) RegisterEventConsumers(registry mono.EventRegistry) error {
	if err := helper.RegisterTypedEventConsumer(registry, events.MessageSentV1, m.handleMessageSent, m); err != nil {
		return fmt.Errorf("failed to register MessageSent consumer: %w", err)
	}
	if err := helper.RegisterTypedEventConsumer(registry, events.RoomCreatedV1, m.handleRoomCreated, m); err != nil {
		return fmt.Errorf("failed to register RoomCreated consumer: %w", err)
	}

	m.logger.Info("Registered event consumers", "events", []string{"MessageSent.v1", "RoomCreated.v1"})
	return nil
}

func (m *Module) handleMessageSent(_ context.Context, event events.MessageSentEvent, _ *mono.Msg) error {
	m.store.RecordMessage(event.RoomID, event.SenderEmail, event.Timestamp)
	m.logger.Debug("Recorded message", "roomID", event.RoomID, "messageID", event.MessageID)
	return nil
}

func (m *Module) handleRoomCreated(_ context.Context, event events.RoomCreatedEvent, _ *mono.Msg) error {
	m.store.RecordRoom(event.Timestamp)
	m.logger.Info("Recorded room creation", "roomID", event.RoomID)
	return nil
}

// Start initializes the module.
func (m *Module) Start(_ context.Context) error {
	m.logger.Info("Activity module started")
	return nil
}

// Stop shuts down the module.
func (m *Module) Stop(_ context.Context) error {
	m.logger.Info("Activity module stopped")
	return nil
}

// Health reports the current counters.
func (m *Module) Health(_ context.Context) mono.HealthStatus {
	snap := m.store.Snapshot()
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{
			"messages_sent": snap.MessagesSent,
			"rooms_created": snap.RoomsCreated,
		},
	}
}

// Snapshot returns the current counters.
func (m *Module) Snapshot() Snapshot {
	return m.store.Snapshot()
}

// Store returns the underlying store.
func (m *Module) Store() *Store {
	return m.store
}

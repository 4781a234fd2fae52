package broadcast

import (
	"context"
	"fmt"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/types"
)

// Module owns the in-memory group registry shared by all WebSocket sessions.
type Module struct {
	hub    *Hub
	logger types.Logger
}

// Compile-time interface checks.
var _ mono.Module = (*Module)(nil)
var _ mono.HealthCheckableModule = (*Module)(nil)

// NewModule creates a new broadcast module.
func NewModule(logger types.Logger) *Module {
	return &Module{
		hub:    NewHub(logger),
		logger: logger,
	}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "broadcast"
}

// Start is a no-op; mailboxes start as receivers join.
func (m *Module) Start(_ context.Context) error {
	m.logger.Info("Broadcast module started")
	return nil
}

// Stop stops every mailbox and waits for in-flight deliveries.
func (m *Module) Stop(ctx context.Context) error {
	receivers := m.hub.ReceiverCount()
	if err := m.hub.Close(ctx); err != nil {
		return fmt.Errorf("failed to close hub: %w", err)
	}
	m.logger.Info("Broadcast module stopped", "receivers", receivers)
	return nil
}

// Health returns the health status.
func (m *Module) Health(_ context.Context) mono.HealthStatus {
	stats := m.hub.Stats()
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{
			"groups":    stats.Groups,
			"receivers": stats.Receivers,
			"delivered": stats.Delivered,
			"failed":    stats.Failed,
		},
	}
}

// Hub returns the group registry for the API module to use.
func (m *Module) Hub() *Hub {
	return m.hub
}

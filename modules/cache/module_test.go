package cache

import (
	"context"
	"testing"
	"time"

	"github.com/go-monolith/mono/pkg/types"
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

func TestNewModule_Defaults(t *testing.T) {
	m := NewModule(Options{Addr: "127.0.0.1:1"}, &mockLogger{})
	defer func() { _ = m.client.Close() }()

	if m.Name() != "cache" {
		t.Errorf("Name() = %q, want cache", m.Name())
	}
	if m.opts.Prefix != "chat:" {
		t.Errorf("Prefix = %q, want chat:", m.opts.Prefix)
	}
	if m.opts.TTL != 5*time.Minute {
		t.Errorf("TTL = %v, want 5m", m.opts.TTL)
	}
	if m.Cache() == nil {
		t.Fatal("Cache() returned nil")
	}
	if got := m.Cache().LatestKey("r"); got != "chat:room:r:latest" {
		t.Errorf("LatestKey() = %q", got)
	}
}

func TestModule_UnreachableRedis(t *testing.T) {
	m := NewModule(Options{Addr: "127.0.0.1:1"}, &mockLogger{})
	defer func() { _ = m.client.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := m.Start(ctx); err == nil {
		t.Error("Start() expected error when Redis is unreachable")
	}
	if health := m.Health(ctx); health.Healthy {
		t.Error("Health() = healthy, want unhealthy")
	}
}

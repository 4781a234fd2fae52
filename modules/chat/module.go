package chat

import (
	"context"
	"encoding/json"
	"fmt"

	domain "github.com/example/shop-chat/domain/chat"
	"github.com/example/shop-chat/events"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
	"github.com/go-monolith/mono/pkg/types"
	"golang.org/x/sync/singleflight"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// MessageCache holds the newest message per room.
type MessageCache interface {
	Latest(ctx context.Context, roomID string) (*domain.Message, bool, error)
	StoreLatest(ctx context.Context, msg domain.Message) error
	Invalidate(ctx context.Context, roomID string) error
}

// Options configures the chat database.
type Options struct {
	DBPath  string
	DBDebug bool
}

// Module provides the room directory and message store as request-reply
// services backed by GORM + SQLite.
type Module struct {
	db       *gorm.DB
	repo     *Repository
	cache    MessageCache
	sfGroup  singleflight.Group
	eventBus mono.EventBus
	opts     Options
	logger   types.Logger
}

// Compile-time interface checks.
var (
	_ mono.Module                = (*Module)(nil)
	_ mono.ServiceProviderModule = (*Module)(nil)
	_ mono.EventBusAwareModule   = (*Module)(nil)
	_ mono.EventEmitterModule    = (*Module)(nil)
	_ mono.HealthCheckableModule = (*Module)(nil)
)

// NewModule creates a new chat module.
func NewModule(opts Options, logger types.Logger) *Module {
	if opts.DBPath == "" {
		opts.DBPath = "chat.db"
	}
	return &Module{
		opts:   opts,
		logger: logger,
	}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "chat"
}

// SetCache enables the latest-message cache.
func (m *Module) SetCache(c MessageCache) {
	m.cache = c
}

// SetEventBus receives the EventBus from the framework.
func (m *Module) SetEventBus(bus mono.EventBus) {
	m.eventBus = bus
}

// EmitEvents declares the events this module can emit.
func (m *Module) EmitEvents() []mono.BaseEventDefinition {
	return []mono.BaseEventDefinition{
		events.MessageSentV1.ToBase(),
		events.RoomCreatedV1.ToBase(),
	}
}

// RegisterServices registers request-reply services in the service container.
func (m *Module) RegisterServices(container mono.ServiceContainer) error {
	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceGetOrCreateRoom, json.Unmarshal, json.Marshal, m.getOrCreateRoom,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceGetOrCreateRoom, err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceRoomExists, json.Unmarshal, json.Marshal, m.roomExists,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceRoomExists, err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceSaveMessage, json.Unmarshal, json.Marshal, m.saveMessage,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceSaveMessage, err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceLatestMessage, json.Unmarshal, json.Marshal, m.latestMessage,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceLatestMessage, err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceListMessages, json.Unmarshal, json.Marshal, m.listMessages,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceListMessages, err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceListRooms, json.Unmarshal, json.Marshal, m.listRooms,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceListRooms, err)
	}

	m.logger.Info("Registered chat services",
		"services", []string{
			ServiceGetOrCreateRoom, ServiceRoomExists, ServiceSaveMessage,
			ServiceLatestMessage, ServiceListMessages, ServiceListRooms,
		})
	return nil
}

// Start opens the database and runs migrations.
func (m *Module) Start(_ context.Context) error {
	m.logger.Info("Connecting to SQLite database", "path", m.opts.DBPath)

	db, err := openDB(m.opts)
	if err != nil {
		return err
	}
	m.db = db

	m.repo = NewRepository(m.db)
	if err := m.repo.Migrate(); err != nil {
		return err
	}

	m.logger.Info("Chat module started")
	return nil
}

// Stop closes the database connection.
func (m *Module) Stop(_ context.Context) error {
	if m.db == nil {
		return nil
	}

	sqlDB, err := m.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB: %w", err)
	}
	if err := sqlDB.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	m.logger.Info("Chat database connection closed")
	return nil
}

// Health pings the database.
func (m *Module) Health(ctx context.Context) mono.HealthStatus {
	if m.db == nil {
		return mono.HealthStatus{
			Healthy: false,
			Message: "database not initialized",
		}
	}

	sqlDB, err := m.db.DB()
	if err != nil {
		return mono.HealthStatus{
			Healthy: false,
			Message: fmt.Sprintf("failed to get sql.DB: %v", err),
		}
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return mono.HealthStatus{
			Healthy: false,
			Message: fmt.Sprintf("database ping failed: %v", err),
		}
	}

	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{
			"driver": "sqlite",
			"path":   m.opts.DBPath,
			"cache":  m.cache != nil,
		},
	}
}

// openDB opens SQLite with a single connection so writes are serialized
// and in-memory databases are shared by every query.
func openDB(opts Options) (*gorm.DB, error) {
	logLevel := logger.Silent
	if opts.DBDebug {
		logLevel = logger.Info
	}

	db, err := gorm.Open(sqlite.Open(opts.DBPath), &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	return db, nil
}

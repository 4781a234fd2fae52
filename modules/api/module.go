package api

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/types"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/example/shop-chat/modules/activity"
	"github.com/example/shop-chat/modules/broadcast"
	"github.com/example/shop-chat/modules/cache"
	"github.com/example/shop-chat/modules/chat"
)

// Options configures the HTTP server.
type Options struct {
	Addr               string
	CORSAllowedOrigins string
	RequestTimeout     time.Duration
}

// ActivitySource exposes activity counters to the stats endpoint.
type ActivitySource interface {
	Snapshot() activity.Snapshot
}

// CacheStatsSource exposes cache counters to the stats endpoint.
type CacheStatsSource interface {
	GetStats() cache.StatsSnapshot
}

// APIModule serves the REST API and the chat WebSocket endpoint.
type APIModule struct {
	app      *fiber.App
	chat     chat.ChatPort
	hub      *broadcast.Hub
	activity ActivitySource
	cache    CacheStatsSource
	opts     Options
	logger   types.Logger

	baseCtx context.Context
	cancel  context.CancelFunc

	mu       sync.Mutex
	stopping bool
	sessions sync.WaitGroup
}

// Compile-time interface checks.
var _ mono.Module = (*APIModule)(nil)
var _ mono.DependentModule = (*APIModule)(nil)
var _ mono.HealthCheckableModule = (*APIModule)(nil)

// NewModule creates a new APIModule.
func NewModule(opts Options, logger types.Logger) *APIModule {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = defaultRequestTimeout
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &APIModule{
		opts:    opts,
		logger:  logger,
		baseCtx: ctx,
		cancel:  cancel,
	}
}

// Name returns the module name.
func (m *APIModule) Name() string {
	return "api"
}

// Dependencies returns the list of module dependencies.
func (m *APIModule) Dependencies() []string {
	return []string{"chat"}
}

// SetDependencyServiceContainer receives service containers from dependencies.
func (m *APIModule) SetDependencyServiceContainer(dependency string, container mono.ServiceContainer) {
	switch dependency {
	case "chat":
		m.chat = chat.NewChatAdapter(container)
	}
}

// SetChat replaces the chat port.
func (m *APIModule) SetChat(port chat.ChatPort) {
	m.chat = port
}

// SetHub sets the broadcast hub (called from main.go).
func (m *APIModule) SetHub(hub *broadcast.Hub) {
	m.hub = hub
}

// SetActivity sets the activity counters shown by /api/v1/stats.
func (m *APIModule) SetActivity(src ActivitySource) {
	m.activity = src
}

// SetCacheStats sets the cache counters shown by /api/v1/stats.
func (m *APIModule) SetCacheStats(src CacheStatsSource) {
	m.cache = src
}

// App returns the Fiber app, or nil before Start.
func (m *APIModule) App() *fiber.App {
	return m.app
}

// Start builds the Fiber app and starts listening.
func (m *APIModule) Start(_ context.Context) error {
	if err := m.buildApp(); err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		if err := m.app.Listen(m.opts.Addr); err != nil {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("HTTP server failed to start: %w", err)
	case <-time.After(100 * time.Millisecond):
	}

	m.logger.Info("HTTP server started", "addr", m.opts.Addr)
	return nil
}

// Stop refuses new sockets, closes open sessions with a going-away code and
// waits for them to leave their groups before shutting down the HTTP server.
func (m *APIModule) Stop(ctx context.Context) error {
	m.mu.Lock()
	m.stopping = true
	m.mu.Unlock()
	m.cancel()

	if err := m.waitSessions(ctx); err != nil {
		m.logger.Warn("Sessions still open at shutdown", "error", err)
	}

	if m.app != nil {
		if err := m.app.ShutdownWithContext(ctx); err != nil {
			return fmt.Errorf("failed to shutdown server: %w", err)
		}
	}
	m.logger.Info("HTTP server stopped")
	return nil
}

// trackSession registers a new socket, or reports false once Stop has begun.
func (m *APIModule) trackSession() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopping {
		return false
	}
	m.sessions.Add(1)
	return true
}

func (m *APIModule) waitSessions(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		m.sessions.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Health returns the health status.
func (m *APIModule) Health(_ context.Context) mono.HealthStatus {
	details := map[string]any{"addr": m.opts.Addr}
	if m.hub != nil {
		details["connected_sessions"] = m.hub.ReceiverCount()
	}
	return mono.HealthStatus{
		Healthy: m.app != nil,
		Message: "operational",
		Details: details,
	}
}

func (m *APIModule) buildApp() error {
	if m.chat == nil {
		return fmt.Errorf("chat adapter dependency not set")
	}
	if m.hub == nil {
		return fmt.Errorf("broadcast hub dependency not set")
	}

	m.app = fiber.New(fiber.Config{
		AppName:               "Shop Chat",
		DisableStartupMessage: true,
		ErrorHandler:          m.errorHandler,
		ReadTimeout:           30 * time.Second,
		WriteTimeout:          60 * time.Second,
		IdleTimeout:           120 * time.Second,
	})

	m.app.Use(recover.New())
	m.app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} ${method} ${path} ${latency}\n",
		Next: func(c *fiber.Ctx) bool {
			return c.Get(fiber.HeaderUpgrade) == "websocket"
		},
	}))
	m.app.Use(cors.New(cors.Config{
		AllowOrigins: m.opts.CORSAllowedOrigins,
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Content-Type,Authorization",
	}))

	m.setupRoutes()
	return nil
}

func (m *APIModule) sessionConfig() SessionConfig {
	return SessionConfig{
		Rooms:          m.chat,
		Messages:       m.chat,
		Groups:         m.hub,
		Logger:         m.logger,
		RequestTimeout: m.opts.RequestTimeout,
	}
}

// errorHandler handles errors globally.
func (m *APIModule) errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	m.logger.Error("HTTP error", "code", code, "message", message, "error", err)

	return c.Status(code).JSON(ErrorResponse{
		Error:  "server_error",
		Detail: message,
	})
}

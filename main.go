package main

import (
	"context"
	"log"
	"os"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/go-monolith/mono"

	"github.com/example/shop-chat/config"
	"github.com/example/shop-chat/modules/activity"
	"github.com/example/shop-chat/modules/api"
	"github.com/example/shop-chat/modules/broadcast"
	"github.com/example/shop-chat/modules/cache"
	"github.com/example/shop-chat/modules/chat"
)

func main() {
	log.Println("=== Shop Chat - Fiber WebSocket + GORM/SQLite ===")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	app, err := mono.NewMonoApplication(
		mono.WithShutdownTimeout(cfg.ShutdownTimeout),
		mono.WithLogLevel(mono.LogLevelInfo),
		mono.WithLogFormat(mono.LogFormatText),
	)
	if err != nil {
		log.Fatalf("Failed to create application: %v", err)
	}
	logger := app.Logger()

	chatModule := chat.NewModule(chat.Options{
		DBPath:  cfg.DBPath,
		DBDebug: cfg.DBDebug,
	}, logger.WithModule("chat"))
	broadcastModule := broadcast.NewModule(logger.WithModule("broadcast"))
	activityModule := activity.NewModule(logger.WithModule("activity"))
	apiModule := api.NewModule(api.Options{
		Addr:               cfg.ListenAddr(),
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		RequestTimeout:     cfg.RequestTimeout,
	}, logger.WithModule("api"))

	// The hub and stats sources are not exposed via ServiceContainer.
	apiModule.SetHub(broadcastModule.Hub())
	apiModule.SetActivity(activityModule)

	if cfg.CacheEnabled() {
		cacheModule := cache.NewModule(cache.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			TTL:      cfg.CacheTTL,
		}, logger.WithModule("cache"))
		chatModule.SetCache(cacheModule.Cache())
		apiModule.SetCacheStats(cacheModule.Cache())
		app.Register(cacheModule)
	}

	// - chat: room directory + message store (ServiceProviderModule + EventEmitterModule)
	// - broadcast: group registry for WebSocket sessions
	// - activity: event consumer for stats
	// - api: Fiber HTTP/WebSocket server, depends on chat
	app.Register(chatModule)
	app.Register(broadcastModule)
	app.Register(activityModule)
	app.Register(apiModule)

	if err := app.Start(context.Background()); err != nil {
		log.Fatalf("Failed to start application: %v", err)
	}

	printStartupInfo(cfg)

	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		cfg.ShutdownTimeout,
		map[string]gfshutdown.Operation{
			"mono-app": func(ctx context.Context) error {
				log.Println("Graceful shutdown initiated...")
				return app.Stop(ctx)
			},
		},
	)

	exitCode := <-wait
	log.Printf("Application exited with code: %d", exitCode)
	os.Exit(exitCode)
}

func printStartupInfo(cfg config.Config) {
	cacheState := "disabled"
	if cfg.CacheEnabled() {
		cacheState = cfg.RedisAddr
	}

	log.Println("")
	log.Println("Application started successfully!")
	log.Println("")
	log.Printf("  - Database: %s", cfg.DBPath)
	log.Printf("  - Latest-message cache: %s", cacheState)
	log.Println("")
	log.Printf("REST API Endpoints (http://localhost:%s):", cfg.Port)
	log.Println("  GET    /health                          - Health check")
	log.Println("  GET    /api/v1/rooms?email=             - Rooms for a user")
	log.Println("  POST   /api/v1/rooms                    - Get or create a room")
	log.Println("  GET    /api/v1/rooms/:room_id/messages  - Message history")
	log.Println("  GET    /api/v1/stats                    - Runtime statistics")
	log.Println("")
	log.Printf("WebSocket Endpoint: ws://localhost:%s/ws/chat/:room_id", cfg.Port)
	log.Println(`  Send: {"message", "sender_email", "shop_user_email", "visitor_user_email"}`)
	log.Println("")
	log.Println("Press Ctrl+C to shutdown gracefully")
}

// Package main is the entry point of the application
package main

import (
	"flag"
	"net/http"
	"os"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/gorilla/websocket"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/tecu23/arena-server/pkg/clock"
	"github.com/tecu23/arena-server/pkg/config"
	"github.com/tecu23/arena-server/pkg/events"
	"github.com/tecu23/arena-server/pkg/manager"
	"github.com/tecu23/arena-server/pkg/registry"
	"github.com/tecu23/arena-server/pkg/server"
	"github.com/tecu23/arena-server/pkg/session"
	"github.com/tecu23/arena-server/pkg/store"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,

	CheckOrigin: func(r *http.Request) bool {
		allowed := os.Getenv("ALLOWED_ORIGIN")
		return allowed == "" || allowed == r.Header.Get("Origin")
	},
}

// application encapsulates global dependencies
type application struct {
	Logger    *zap.Logger
	Config    *config.Config
	Publisher *events.Publisher
	Registry  *registry.Registry
	Games     *manager.Manager
	Hub       *server.Hub
	Scheduler gocron.Scheduler
	Server    *http.Server

	StartTime time.Time
}

func main() {
	// .env is optional; deployed environments set variables directly
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	debug := flag.Bool("debug", cfg.Debug, "enable debug logging")
	port := flag.String("port", cfg.Port, "server port")
	flag.Parse()

	cfg.Debug = *debug
	cfg.Port = *port

	logger := initLogger(cfg.Debug)
	defer logger.Sync()

	publisher := events.NewPublisher()

	gameStore, err := newStore(cfg, logger)
	if err != nil {
		logger.Fatal("initialize store error", zap.Error(err))
	}

	games := manager.NewManager(gameStore, logger)

	restored, err := games.Restore()
	if err != nil {
		logger.Warn("restoring games failed", zap.Error(err))
	} else if restored > 0 {
		logger.Info("restored games from store", zap.Int("count", restored))
	}

	reg := registry.New(logger)
	sessions := session.NewManager(cfg.ForfeitGrace, logger)
	turnClock := clock.NewTurnClock(cfg.MoveTimeLimit)

	hub := server.NewHub(server.Config{
		Registry:     reg,
		Sessions:     sessions,
		Games:        games,
		Clock:        turnClock,
		Publisher:    publisher,
		Logger:       logger,
		QueueTimeout: cfg.QueueTimeout,
	})

	// Audit trail for every published event
	publisher.SubscribeAll(func(e events.Event) {
		logger.Debug("event published",
			zap.String("type", string(e.Type)),
			zap.String("game_id", e.GameID))
	})

	scheduler, err := newSweeper(hub, cfg.SweepInterval)
	if err != nil {
		logger.Fatal("initialize scheduler error", zap.Error(err))
	}

	app := &application{
		Logger:    logger,
		Config:    cfg,
		Publisher: publisher,
		Registry:  reg,
		Games:     games,
		Hub:       hub,
		Scheduler: scheduler,
		StartTime: time.Now(),
	}

	go app.Hub.Run()
	app.Scheduler.Start()

	if err := app.serve(); err != nil {
		logger.Fatal("error serving", zap.Error(err))
	}
}

func newStore(cfg *config.Config, logger *zap.Logger) (store.GameStore, error) {
	if cfg.RedisAddr == "" {
		return store.NewMemoryStore(logger), nil
	}

	client, err := store.NewRedisClient(cfg.RedisAddr)
	if err != nil {
		return nil, err
	}

	return store.NewRedisStore(client, logger), nil
}

// newSweeper schedules the periodic forfeit check.
func newSweeper(hub *server.Hub, interval time.Duration) (gocron.Scheduler, error) {
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}

	if _, err := scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(hub.SweepForfeits),
	); err != nil {
		return nil, err
	}

	return scheduler, nil
}

func initLogger(debug bool) *zap.Logger {
	var cfg zap.Config
	if debug {
		cfg = zap.NewDevelopmentConfig()
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	} else {
		cfg = zap.NewProductionConfig()
		cfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	}

	logger, err := cfg.Build()
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}

	return logger
}

// Shutdown cleans up resources
func (app *application) Shutdown() {
	if app.Scheduler != nil {
		if err := app.Scheduler.Shutdown(); err != nil {
			app.Logger.Warn("scheduler shutdown error", zap.Error(err))
		}
	}

	if app.Hub != nil {
		app.Hub.Shutdown()
	}

	app.Logger.Info("All components shut down successfully")
}

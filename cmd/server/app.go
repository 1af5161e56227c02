package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/diewo77/bilan-portal/internal/config"
	"github.com/diewo77/bilan-portal/internal/queue"
	"github.com/diewo77/bilan-portal/internal/server"
	"github.com/diewo77/bilan-portal/internal/services"
)

// App wires the services, the import queue and the HTTP routes together.
type App struct {
	Clients *services.ClientService
	Imports *services.ImportService
	Handler http.Handler

	rdb *redis.Client
	log *zap.Logger
}

// NewApp builds the application. Without a Redis URL submitted imports are
// only logged.
func NewApp(ctx context.Context, cfg *config.Config, db *gorm.DB, log *zap.Logger) (*App, error) {
	app := &App{log: log}
	app.Clients = services.NewClientService(db, log.Named("clients"))

	var pub queue.Publisher = queue.LogPublisher{Log: log.Named("queue")}
	if cfg.Redis.URL != "" {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			return nil, fmt.Errorf("parse REDIS_URL: %w", err)
		}
		app.rdb = redis.NewClient(opts)
		rp := queue.NewRedisPublisher(app.rdb, cfg.Redis.Queue, log.Named("queue"))
		if err := rp.Ping(ctx); err != nil {
			_ = app.rdb.Close()
			return nil, fmt.Errorf("redis ping %s: %w", opts.Addr, err)
		}
		log.Info("import queue connected", zap.String("addr", opts.Addr), zap.String("queue", rp.QueueName()))
		pub = rp
	} else {
		log.Warn("REDIS_URL not set, submitted imports will not be queued")
	}

	app.Imports = services.NewImportService(app.Clients, pub, log.Named("imports"))
	app.Handler = server.New(app.Clients, app.Imports, log.Named("http"))
	return app, nil
}

// Close releases the Redis connection, if any.
func (a *App) Close() error {
	if a.rdb == nil {
		return nil
	}
	return a.rdb.Close()
}

package main // Entry point package

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/event-ticket-booking/internal/availability"
	"github.com/iliyamo/event-ticket-booking/internal/booking"
	"github.com/iliyamo/event-ticket-booking/internal/config"
	"github.com/iliyamo/event-ticket-booking/internal/database"
	"github.com/iliyamo/event-ticket-booking/internal/handler"
	"github.com/iliyamo/event-ticket-booking/internal/logging"
	"github.com/iliyamo/event-ticket-booking/internal/middleware"
	"github.com/iliyamo/event-ticket-booking/internal/notify"
	"github.com/iliyamo/event-ticket-booking/internal/queue"
	"github.com/iliyamo/event-ticket-booking/internal/repository"
	"github.com/iliyamo/event-ticket-booking/internal/router"
	"github.com/iliyamo/event-ticket-booking/internal/worker"
)

func main() {
	cfg := config.Load()
	logging.Setup(cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(database.Options{
		User: cfg.DBUser, Pass: cfg.DBPass, Host: cfg.DBHost, Port: cfg.DBPort, Name: cfg.DBName,
		MaxOpenConns: cfg.DBMaxOpen,
	})
	if err != nil {
		logrus.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	if cfg.AutoMigrate {
		if err := database.EnsureSchema(ctx, db); err != nil {
			logrus.Fatalf("Failed to create schema: %v", err)
		}
		logrus.Info("Database schema ensured")
	}

	rdb := config.NewRedisClient() // nil when redis is down
	if rdb != nil {
		defer rdb.Close()
	}

	events := repository.NewEventRepo(db)
	tickets := repository.NewTicketRepo(db)
	seats := availability.NewQuery(tickets, rdb, cfg.AvailabilityTTL)

	cacheCfg := config.LoadCacheConfig()
	publisher := queue.NewPublisher(cfg.RabbitURL)
	go publisher.Run(ctx)

	listeners := notify.Multi{seats, publisher}
	if rdb != nil {
		listeners = append(listeners, notify.NewRedisPublisher(rdb))
	}
	if inv := middleware.NewCacheInvalidator(cacheCfg, rdb, router.EventPath); inv != nil {
		listeners = append(listeners, inv)
	}

	svc := booking.NewService(tickets, events)
	svc.Layout = cfg.Layout()
	svc.Notifier = listeners
	svc.Log = logrus.StandardLogger()

	startBackground(ctx, cfg, events)

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(middleware.RequestLogger())
	e.Use(middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb))

	router.RegisterRoutes(e, router.Deps{
		Health:    healthHandler(db, rdb),
		Events:    handler.NewEventHandler(events, seats, svc.Layout),
		Tickets:   handler.NewTicketHandler(svc, seats),
		JWTSecret: cfg.JWTSecret,
		Cache:     middleware.NewRedisCache(cacheCfg, rdb),
	})

	addr := ":" + cfg.Port
	go func() {
		logrus.WithFields(logrus.Fields{"addr": addr, "env": cfg.Env}).Info("App Started")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.Fatalf("HTTP server failed: %v", err)
		}
	}()

	<-ctx.Done()
	logrus.Info("App Shutting Down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logrus.Errorf("error on server shutdown: %v", err)
	}
}

// startBackground runs the audit consumers and the counter reconciler until
// ctx is done.
func startBackground(ctx context.Context, cfg config.Config, events *repository.EventRepo) {
	audit := &queue.AuditLog{Dir: cfg.AuditLogDir}
	reconciler := worker.NewReconciler(events, cfg.ReconcileInterval)
	reconciler.Grace = cfg.ReconcileGrace

	consumers := map[string]queue.Handler{
		queue.TicketBookedQueue:    audit.Handle,
		queue.TicketCancelledQueue: audit.Handle,
		queue.InconsistentQueue:    reconciler.HandleMessage,
	}
	for name, h := range consumers {
		go func(name string, h queue.Handler) {
			if err := queue.Consume(ctx, cfg.RabbitURL, name, h); err != nil && !errors.Is(err, context.Canceled) {
				logrus.WithError(err).WithField("queue", name).Error("Queue consumer stopped")
			}
		}(name, h)
	}
	go reconciler.Start(ctx)
}

func healthHandler(db handler.Pinger, rdb *redis.Client) *handler.HealthHandler {
	h := &handler.HealthHandler{DB: db}
	if rdb != nil {
		h.Redis = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	}
	return h
}

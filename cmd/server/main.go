package main // Entry point package

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/hotel-reservation/internal/config"
	"github.com/iliyamo/hotel-reservation/internal/database"
	"github.com/iliyamo/hotel-reservation/internal/handler"
	"github.com/iliyamo/hotel-reservation/internal/lock"
	"github.com/iliyamo/hotel-reservation/internal/middleware"
	"github.com/iliyamo/hotel-reservation/internal/queue"
	"github.com/iliyamo/hotel-reservation/internal/repository"
	"github.com/iliyamo/hotel-reservation/internal/repository/boltstore"
	"github.com/iliyamo/hotel-reservation/internal/router"
	queue_publisher "github.com/iliyamo/hotel-reservation/internal/service"
	"github.com/iliyamo/hotel-reservation/internal/service/booking"
)

func main() {
	config.LoadDotEnv()
	cfg := config.Load()
	bookingCfg := config.LoadBookingConfig()
	queueCfg := config.LoadQueueConfig()
	cacheCfg := config.LoadCacheConfig()
	rateCfg := config.LoadRateLimitConfig()

	e := echo.New()
	e.HideBanner = true
	e.Logger.SetLevel(cfg.GommonLevel())
	log.SetLevel(cfg.GommonLevel())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	checks := map[string]handler.Check{}

	// Storage engine.
	var store repository.Store
	switch cfg.StoreDriver {
	case config.StoreBolt:
		if err := os.MkdirAll(filepath.Dir(cfg.BoltPath), 0o755); err != nil {
			log.Fatalf("bolt: %v", err)
		}
		st, err := boltstore.Open(cfg.BoltPath)
		if err != nil {
			log.Fatalf("bolt: open %s: %v", cfg.BoltPath, err)
		}
		store = st
	default:
		db, err := database.Open(ctx, cfg)
		if err != nil {
			log.Fatalf("mysql: %v", err)
		}
		mctx, cancel := context.WithTimeout(ctx, 30*time.Second)
		err = database.Migrate(mctx, db)
		cancel()
		if err != nil {
			log.Fatalf("mysql: migrate: %v", err)
		}
		store = repository.NewMySQLStore(db)
		checks["mysql"] = db.PingContext
	}
	defer store.Close()

	// Redis backs the room lock, the rate limiter and the response cache.
	rdb := config.NewRedisClient(config.LoadRedisConfig())
	if rdb != nil {
		defer rdb.Close()
		checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	}

	svc := booking.NewService(store, newLocker(bookingCfg, rdb), newPublisher(queueCfg), bookingCfg)

	if cfg.ReconcileOnStart {
		rep, err := svc.Reconcile(ctx)
		if err != nil {
			log.Errorf("startup reconcile: %v", err)
		} else {
			log.Infof("startup reconcile: %d rooms checked, %d repaired, %d booking ids dropped",
				rep.RoomsChecked, len(rep.RoomsRepaired), rep.BookingIDsDropped)
		}
	}

	if queueCfg.ConsumerEnabled {
		go func() {
			if err := queue.StartBookingConsumer(ctx, queueCfg, log.New("consumer")); err != nil && !errors.Is(err, context.Canceled) {
				log.Errorf("booking consumer stopped: %v", err)
			}
		}()
	}

	e.Use(echomw.RequestID())
	e.Use(echomw.Recover())
	e.Use(echomw.Logger())

	purger := middleware.NewCachePurger(cacheCfg, rdb)
	reservations := handler.NewReservationHandler(svc, purger, bookingCfg.RequestTimeout)
	staff := handler.NewStaffHandler(svc, bookingCfg.RequestTimeout)
	admin := handler.NewAdminHandler(svc, purger, bookingCfg.RequestTimeout)

	limit := middleware.NewTokenBucket(rateCfg, rdb)
	router.RegisterRoutes(e, handler.Health(checks))
	router.RegisterPublic(e, admin, limit, middleware.NewRedisCache(cacheCfg, rdb))
	router.RegisterGuest(e, reservations, cfg.JWTSecret, limit)
	router.RegisterStaff(e, staff, cfg.JWTSecret, limit)
	router.RegisterAdmin(e, admin, cfg.JWTSecret)

	addr := ":" + cfg.Port
	go func() {
		log.Infof("listening on %s (env=%s, store=%s)", addr, cfg.Env, cfg.StoreDriver)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Errorf("shutdown: %v", err)
	}
}

// newLocker picks the room lock.  Redis is required for more than one
// server process; without it the in-process locker is used.
func newLocker(cfg config.BookingConfig, rdb *redis.Client) lock.Locker {
	if cfg.LockDriver == config.LockRedis && rdb != nil {
		return lock.NewRedisLocker(rdb, cfg.LockPrefix, cfg.LockTTL, cfg.LockWait)
	}
	if cfg.LockDriver == config.LockRedis {
		log.Warn("redis unavailable, room locks are local to this process")
	}
	return lock.NewLocalLocker()
}

func newPublisher(cfg config.QueueConfig) booking.EventPublisher {
	if !cfg.EventsEnabled {
		return nil
	}
	return queue_publisher.NewAMQPPublisher(cfg, log.New("events"))
}

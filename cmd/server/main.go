package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/iliyamo/lang-test-booking/internal/config"
	"github.com/iliyamo/lang-test-booking/internal/database"
	"github.com/iliyamo/lang-test-booking/internal/handler"
	"github.com/iliyamo/lang-test-booking/internal/logging"
	"github.com/iliyamo/lang-test-booking/internal/metrics"
	"github.com/iliyamo/lang-test-booking/internal/middleware"
	"github.com/iliyamo/lang-test-booking/internal/mongostore"
	"github.com/iliyamo/lang-test-booking/internal/queue"
	"github.com/iliyamo/lang-test-booking/internal/repository"
	"github.com/iliyamo/lang-test-booking/internal/router"
	"github.com/iliyamo/lang-test-booking/internal/scheduler"
	"github.com/iliyamo/lang-test-booking/internal/service"
)

// stores is the storage backend selected by STORAGE_DRIVER.
type stores struct {
	sessions service.SessionStore
	bookings service.BookingStore
	users    service.UserStore
	tokens   service.TokenStore
	ping     handler.Pinger
	close    func()
}

func openMySQL(cfg config.Config) stores {
	dsn := cfg.DB.DSN()
	if cfg.MigrateOnStart {
		if err := database.Migrate(dsn); err != nil {
			log.WithError(err).Fatal("migrate")
		}
	}
	db, err := database.Open(cfg.DB)
	if err != nil {
		log.WithError(err).Fatal("open mysql")
	}
	return stores{
		sessions: repository.NewSessionRepo(db),
		bookings: repository.NewBookingRepo(db),
		users:    repository.NewUserRepo(db),
		tokens:   repository.NewTokenRepo(db),
		ping:     db.PingContext,
		close:    func() { closeDB(db) },
	}
}

func openMongo(cfg config.Config) stores {
	client, db, err := database.OpenMongo(cfg.Mongo.URI, cfg.Mongo.Database)
	if err != nil {
		log.WithError(err).Fatal("open mongo")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := mongostore.EnsureIndexes(ctx, db); err != nil {
		log.WithError(err).Fatal("ensure mongo indexes")
	}
	return stores{
		sessions: mongostore.NewSessionStore(db),
		bookings: mongostore.NewBookingStore(db),
		users:    mongostore.NewUserStore(db),
		tokens:   mongostore.NewTokenStore(db),
		ping:     func(ctx context.Context) error { return client.Ping(ctx, nil) },
		close:    func() { disconnect(client) },
	}
}

func closeDB(db *sql.DB) {
	if err := db.Close(); err != nil {
		log.WithError(err).Warn("close mysql")
	}
}

func disconnect(client *mongo.Client) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Disconnect(ctx); err != nil {
		log.WithError(err).Warn("disconnect mongo")
	}
}

func main() {
	cfg := config.Load()
	logger := logging.Setup(cfg.Log)

	var st stores
	if cfg.StorageDriver == config.DriverMongo {
		st = openMongo(cfg)
	} else {
		st = openMySQL(cfg)
	}
	defer st.close()

	rdb := config.NewRedisClient(cfg.Redis)
	if rdb != nil {
		defer rdb.Close()
	}

	var events service.EventPublisher = service.NopPublisher{}
	if cfg.RabbitURL != "" {
		pub := queue.NewPublisher(cfg.RabbitURL)
		defer pub.Close()
		events = pub
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.ConsumerOn && cfg.RabbitURL != "" {
		consumer := &queue.Consumer{URL: cfg.RabbitURL, LogPath: cfg.BookingLogPath}
		go consumer.Run(ctx)
	}

	auth := service.NewAuthService(st.users, st.tokens, service.AuthConfig{
		JWTSecret:      cfg.JWTSecret,
		AccessTTLMin:   cfg.AccessTTLMin,
		RefreshTTLDays: cfg.RefreshTTLDays,
		BcryptCost:     cfg.BcryptCost,
	})
	bookings := service.NewBookingService(st.bookings, st.sessions, events)
	sessions := service.NewSessionService(st.sessions, st.bookings)
	users := service.NewUserService(st.users, cfg.BcryptCost)

	sched, err := scheduler.New(cfg.CompletionCron, bookings)
	if err != nil {
		log.WithError(err).Fatal("scheduler")
	}
	sched.Start()

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(middleware.RequestLogger(logger))
	e.Use(metrics.Middleware())
	e.Use(middleware.NewTokenBucket(cfg.RateLimit, rdb))

	router.Register(e, router.Handlers{
		Auth:     handler.NewAuthHandler(auth),
		Users:    handler.NewUserHandler(users),
		Sessions: handler.NewSessionHandler(sessions),
		Bookings: handler.NewBookingHandler(bookings),
		Health:   handler.Health(st.ping),
	}, router.Options{Tokens: auth, Cache: cfg.Cache, Redis: rdb})

	addr := ":" + cfg.Port
	go func() {
		log.WithFields(log.Fields{"addr": addr, "env": cfg.Env, "storage": cfg.StorageDriver}).Info("listening")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("server")
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("http shutdown")
	}
	sched.Stop(shutdownCtx)
}

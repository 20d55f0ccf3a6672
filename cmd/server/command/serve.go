// Package command holds the cobra sub-commands of the server binary.
package command

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/iliyamo/room-queue/internal/config"
	"github.com/iliyamo/room-queue/internal/database"
	"github.com/iliyamo/room-queue/internal/handler"
	"github.com/iliyamo/room-queue/internal/middleware"
	"github.com/iliyamo/room-queue/internal/repository"
	"github.com/iliyamo/room-queue/internal/router"
	"github.com/iliyamo/room-queue/internal/service"
)

// memberStore is what both member repositories provide.
type memberStore interface {
	handler.MemberDirectory
	service.MemberStats
}

// Serve runs the HTTP API.
type Serve struct {
	Logger *logrus.Logger
}

func (cmd Serve) Command(ctx context.Context) *cobra.Command {
	var memory bool
	c := &cobra.Command{
		Use:   "serve",
		Short: "run the HTTP API",
		RunE: func(_ *cobra.Command, _ []string) error {
			return cmd.main(ctx, memory)
		},
	}
	c.Flags().BoolVar(&memory, "memory", false, "keep queue and members in process memory instead of MySQL")
	return c
}

func (cmd Serve) main(ctx context.Context, memory bool) error {
	cfg := config.Load()
	qcfg := config.LoadQueueConfig()
	ncfg := config.LoadNotifyConfig()
	log := cmd.Logger

	var (
		store    repository.QueueStore
		members  memberStore
		pinger   handler.Pinger
		notifier service.Notifier
	)
	if memory {
		log.Warn("serve: in-memory mode, state is lost on exit")
		store = repository.NewMemoryQueueRepo()
		members = repository.NewMemoryMemberRepo()
		notifier = service.LogNotifier{Log: log}
	} else {
		db, err := database.Open(cfg.DB.User, cfg.DB.Pass, cfg.DB.Host, cfg.DB.Port, cfg.DB.Name)
		if err != nil {
			return errors.Wrap(err, "serve: failed to connect to mysql")
		}
		defer db.Close()

		queueRepo := repository.NewQueueRepo(db)
		if err := queueRepo.EnsureRooms(ctx, qcfg.TotalRooms); err != nil {
			return errors.Wrap(err, "serve: failed to prepare rooms")
		}
		store, members, pinger = queueRepo, repository.NewMemberRepo(db), db
		notifier = service.NewAMQPNotifier(ncfg.AMQPURL, ncfg.Queue, log)
	}

	dispatcher := service.NewDispatcher(notifier, ncfg.Workers, ncfg.Buffer, ncfg.Timeout, log)
	dispatcher.Start()
	defer dispatcher.Stop()

	rq := service.NewRoomQueue(store, dispatcher, service.Options{
		TotalRooms:  qcfg.TotalRooms,
		MaxAttempts: qcfg.MaxAttempts,
		OpTimeout:   qcfg.OpTimeout,
	}, log)
	if promoted, err := rq.Reconcile(ctx); err != nil {
		return errors.Wrap(err, "serve: failed to reconcile rooms")
	} else if len(promoted) > 0 {
		log.Infof("serve: reconcile filled %d free rooms", len(promoted))
	}

	rdb := cmd.redis()
	if rdb != nil {
		defer rdb.Close()
	}

	qh := handler.NewQueueHandler(rq, members)
	h := router.Handlers{
		Members: handler.NewMemberHandler(members),
		Queue:   qh,
		Staff:   handler.NewStaffHandler(qh, service.NewDashboard(members, store)),
	}
	mw := router.Middlewares{
		RateLimit:   middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb, log),
		StatusCache: middleware.NewRedisCache(config.LoadCacheConfig(), rdb, log),
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(middleware.RequestLogger(log))
	router.RegisterRoutes(e, pinger)
	router.RegisterPublic(e, h, mw)
	router.RegisterMember(e, h, mw, cfg.JWTSecret)
	router.RegisterStaff(e, h, cfg.JWTSecret)

	addr := ":" + cfg.Port
	errCh := make(chan error, 1)
	go func() {
		log.WithFields(logrus.Fields{"addr": addr, "env": cfg.Env, "rooms": qcfg.TotalRooms}).Info("listening")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}

// redis connects when Redis is reachable.  Without it rate limiting and
// the status cache are disabled.
func (cmd Serve) redis() *redis.Client {
	rdb, err := config.NewRedisClient(config.LoadRedisConfig())
	if err != nil {
		cmd.Logger.WithError(err).Warn("serve: redis unavailable; rate limiting and cache disabled")
		return nil
	}
	return rdb
}

// Package app assembles the console: session, gateway, cache, services, views
// and the local HTTP surface.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"vpms_console/internal/api"
	"vpms_console/internal/api/handler"
	"vpms_console/internal/api/middleware"
	"vpms_console/internal/bus"
	"vpms_console/internal/cache"
	"vpms_console/internal/config"
	"vpms_console/internal/gateway"
	"vpms_console/internal/repository"
	"vpms_console/internal/repository/memory"
	"vpms_console/internal/repository/sqlite"
	"vpms_console/internal/router"
	"vpms_console/internal/service"
	"vpms_console/internal/session"
	"vpms_console/internal/view"
)

const shutdownTimeout = 10 * time.Second

// Console is one wired operator console.
type Console struct {
	Config   *config.Config
	Bus      *bus.Bus
	API      *gateway.Client
	Session  *session.Store
	Cache    *cache.Entities
	Services *service.Services
	Router   *router.Router
	Sockets  *handler.WebSocketManager
	Engine   *gin.Engine

	logger  *zap.Logger
	closers []func() error
}

// Options picks the storage backends. Zero values mean the in-memory ones.
type Options struct {
	Repository repository.KeyValueRepository
	CacheStore cache.Store
}

// Build wires a console around cfg without touching the network.
func Build(cfg *config.Config, opts Options, l *zap.Logger) *Console {
	if opts.Repository == nil {
		opts.Repository = memory.NewKeyValueRepository()
	}
	if opts.CacheStore == nil {
		opts.CacheStore = cache.NewMemoryStore()
	}

	b := bus.New(l)
	client := gateway.New(cfg.APIBaseURL, cfg.HTTPTimeout, l)
	store := session.NewStore(opts.Repository, b, l)
	store.SetAuthenticator(client)
	client.SetCredentials(store)

	// the cache subscribes first so views refetch against fresh data
	entities := cache.NewEntities(client, store, opts.CacheStore, cfg.CacheTTL, l)
	entities.Attach(b)

	svc := service.New(client, store, b, cfg.PaymentSettle, l)
	factory := view.NewFactory(entities, svc.Auth, view.Intervals{
		Default: cfg.PollInterval,
		Fast:    cfg.FastPollInterval,
	})
	caps := router.DefaultCapabilities()
	r := router.New(caps, factory, store, b, l)

	ws := handler.NewWebSocketManager(l)
	ws.Attach(b)

	authMw := middleware.NewAuthMiddleware(store, caps, l)
	return &Console{
		Config:   cfg,
		Bus:      b,
		API:      client,
		Session:  store,
		Cache:    entities,
		Services: svc,
		Router:   r,
		Sockets:  ws,
		Engine:   api.SetupRouter(svc, r, authMw, ws, cfg.AllowedOrigins, l),
		logger:   l,
	}
}

// Open builds a console with durable storage: the SQLite session file, and
// Redis for the entity cache when REDIS_ADDR is set. ephemeral keeps the
// session in memory instead.
func Open(ctx context.Context, cfg *config.Config, ephemeral bool, l *zap.Logger) (*Console, error) {
	var (
		opts    Options
		closers []func() error
	)
	if !ephemeral {
		db, err := sqlite.Open(cfg.SessionDBPath)
		if err != nil {
			return nil, err
		}
		closers = append(closers, db.Close)
		if err := sqlite.RunMigrations(ctx, db); err != nil {
			closeAll(closers)
			return nil, err
		}
		opts.Repository = sqlite.NewKeyValueRepository(db)
	}
	if cfg.RedisAddr != "" {
		rdb, err := cache.ConnectRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			closeAll(closers)
			return nil, err
		}
		closers = append(closers, rdb.Close)
		opts.CacheStore = cache.NewRedisStore(rdb)
		l.Info("entity cache backed by redis", zap.String("addr", cfg.RedisAddr))
	}

	c := Build(cfg, opts, l)
	c.closers = closers
	if err := c.Session.Restore(ctx); err != nil {
		c.Close()
		return nil, fmt.Errorf("restore session: %w", err)
	}
	return c, nil
}

// Start shows the first screen and begins relaying notifications.
func (c *Console) Start(ctx context.Context) error {
	go c.Sockets.Start(ctx)
	return c.Router.Start(ctx)
}

// Serve runs the local HTTP surface until ctx is done, then shuts down.
func (c *Console) Serve(ctx context.Context) error {
	if err := c.Start(ctx); err != nil {
		return err
	}
	srv := &http.Server{
		Addr:    ":" + c.Config.ServerPort,
		Handler: c.Engine,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		c.logger.Info("console listening", zap.String("port", c.Config.ServerPort), zap.String("api", c.API.BaseURL()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		c.logger.Info("shutting down console")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		c.Router.Stop()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func (c *Console) Close() error {
	return closeAll(c.closers)
}

func closeAll(closers []func() error) error {
	var errs []error
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

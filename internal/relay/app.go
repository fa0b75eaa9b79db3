// Package relay wires the relay binary: repository, watch hub, gRPC
// service, Prometheus endpoint and optional Redis fan-out.
package relay

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/dmitrijs2005/groupsync/internal/logging"
	"github.com/dmitrijs2005/groupsync/internal/relay/config"
	"github.com/dmitrijs2005/groupsync/internal/relay/fanout"
	"github.com/dmitrijs2005/groupsync/internal/relay/limiter"
	"github.com/dmitrijs2005/groupsync/internal/relay/metrics"
	"github.com/dmitrijs2005/groupsync/internal/relay/repository"
	"github.com/dmitrijs2005/groupsync/internal/store"
	"github.com/dmitrijs2005/groupsync/internal/store/notify"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	gs "github.com/dmitrijs2005/groupsync/internal/relay/grpc"
)

const shutdownTimeout = 5 * time.Second

type App struct {
	config *config.Config
	logger logging.Logger
}

func NewApp(c *config.Config, l logging.Logger) *App {
	return &App{config: c, logger: l.With("module", "relay")}
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

// openRepository returns the configured repository behind an LRU, and a
// closer for the underlying connection.
func (app *App) openRepository(ctx context.Context) (*repository.Cached, func() error, error) {
	var (
		base   repository.Repository
		closer = func() error { return nil }
	)
	if app.config.DatabaseDSN == "" {
		app.logger.Warn(ctx, "No database configured, nodes are kept in memory")
		base = repository.NewMemory()
	} else {
		pg, err := repository.OpenPostgres(ctx, app.config.DatabaseDSN)
		if err != nil {
			return nil, nil, errors.Wrap(err, "db init error")
		}
		base, closer = pg, pg.Close
	}

	cached, err := repository.NewCached(base, app.config.CacheSize)
	if err != nil {
		_ = closer()
		return nil, nil, err
	}
	return cached, closer, nil
}

// Run serves until ctx is cancelled, a termination signal arrives or one
// of the components fails.
func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting relay...")
	app.initSignalHandler(cancelFunc)

	repo, closeRepo, err := app.openRepository(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeRepo(); err != nil {
			app.logger.Error(ctx, "Closing repository", "error", err)
		}
	}()

	lim, err := limiter.New(app.config.RateLimit, app.config.RateBurst, app.config.CacheSize)
	if err != nil {
		return err
	}

	hub := notify.NewHub()
	m := metrics.New()
	m.GaugeFunc("watchers", "Live watch subscriptions.", func() float64 { return float64(hub.Len()) })
	m.GaugeFunc("limited_users", "Users with a live rate bucket.", func() float64 { return float64(lim.Len()) })
	m.CounterFunc("cache_hits_total", "Repository cache hits.", func() float64 {
		hits, _ := repo.Stats()
		return float64(hits)
	})
	m.CounterFunc("cache_misses_total", "Repository cache misses.", func() float64 {
		_, misses := repo.Stats()
		return float64(misses)
	})

	opts := []gs.Option{gs.WithLimiter(lim), gs.WithMetrics(m)}

	var bridge *fanout.Bridge
	if app.config.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: app.config.RedisAddr})
		defer rdb.Close()
		bridge = fanout.NewBridge(rdb, app.config.RedisChannel, app.logger)
		opts = append(opts, gs.WithFanout(bridge))
	}

	srv := gs.NewGRPCServer(app.config.GRPCAddr, app.logger, repo, hub, app.config.SecretKey, opts...)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Run(gctx)
	})
	if app.config.MetricsAddr != "" {
		g.Go(func() error {
			return app.serveMetrics(gctx, m.Handler())
		})
	}
	if bridge != nil {
		g.Go(func() error {
			return bridge.Run(gctx, func(n store.Node) {
				repo.Forget(n.Path)
				srv.Deliver(n)
			})
		})
	}

	err = g.Wait()
	app.logger.Info(ctx, "Relay stopped")
	return err
}

func (app *App) serveMetrics(ctx context.Context, h http.Handler) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", h)
	srv := &http.Server{Addr: app.config.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	app.logger.Info(ctx, "Serving metrics", "address", app.config.MetricsAddr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "metrics server")
	}
	return nil
}

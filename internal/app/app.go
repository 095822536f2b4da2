// Package app wires configuration, storage, services and HTTP transport
// into the running API server.
package app

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/kart-orders/internal/domain/order"
	"github.com/xenking/kart-orders/internal/domain/returns"
	"github.com/xenking/kart-orders/internal/handler"
	"github.com/xenking/kart-orders/internal/storage/postgres"
	"github.com/xenking/kart-orders/pkg/health"
	"github.com/xenking/kart-orders/pkg/httpmiddleware"
)

// Run creates all dependencies, serves HTTP until ctx is cancelled and then
// shuts down gracefully. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))

	if err := postgres.RunMigrations(cfg.DatabaseURL); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	srv, err := newServer(ctx, lg, m, cfg, pool)
	if err != nil {
		return err
	}

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		BaseContext:       func(net.Listener) context.Context { return ctx },
		Handler:           srv.handler,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.health.Run(gctx, cfg.Health.Interval)
	})
	g.Go(func() error {
		<-gctx.Done()
		srv.health.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			return errors.Wrap(err, "shutdown")
		}
		return nil
	})
	g.Go(func() error {
		lg.Info("Server listening", zap.String("addr", cfg.Addr))
		srv.health.SetReady(true)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "server")
		}
		return nil
	})

	return g.Wait()
}

type server struct {
	handler http.Handler
	health  *health.Health
}

// newServer builds the services and the middleware-wrapped router on top of
// an open pool. Background work started here stops with ctx.
func newServer(
	ctx context.Context,
	lg *zap.Logger,
	tel httpmiddleware.Telemetry,
	cfg *Config,
	pool *pgxpool.Pool,
) (*server, error) {
	healthSvc := health.New()
	healthSvc.Add(health.Readiness, "postgres", cfg.Health.DatabaseTimeout, health.PoolCheck(pool))
	healthSvc.Add(health.Readiness, "postgres_pool", time.Second, health.PoolSaturationCheck(pool))
	healthSvc.Add(health.Liveness, "goroutines", time.Second, health.GoroutineCountCheck(cfg.Health.MaxGoroutines))

	// Storage.
	tx := postgres.NewTxManager(pool)
	ledger := postgres.NewInventoryRepository(pool)
	orderRepo := postgres.NewOrderRepository(pool)
	returnRepo := postgres.NewReturnRepository(pool)
	apikeyRepo := postgres.NewAPIKeyRepository(pool)

	// Domain services.
	orderService, err := order.NewService(tx, ledger, orderRepo, tel.TracerProvider(), tel.MeterProvider())
	if err != nil {
		return nil, errors.Wrap(err, "create order service")
	}
	returnService := returns.NewService(tx, returnRepo)

	// HTTP.
	h := handler.New(
		handler.Config{ImageBaseURL: cfg.ImageBaseURL, RequestTimeout: cfg.RequestTimeout},
		orderService,
		returnService,
		handler.NewSecurity(apikeyRepo, []byte(cfg.APIKeyPepper)),
	)

	router := chi.NewRouter()
	router.Get("/livez", healthSvc.LiveEndpoint)
	router.Get("/readyz", healthSvc.ReadyEndpoint)
	h.Mount(router)

	return &server{
		health: healthSvc,
		handler: httpmiddleware.Wrap(router,
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(lg),
			httpmiddleware.Recovery(),
			httpmiddleware.RateLimit(ctx, httpmiddleware.RateLimitConfig{
				Max:    cfg.RateLimit.Max,
				Window: cfg.RateLimit.Window,
			}),
			httpmiddleware.RouteContext(),
			httpmiddleware.Instrument("kart-orders", tel),
			httpmiddleware.LogRequests(),
			httpmiddleware.Labeler(),
		),
	}, nil
}

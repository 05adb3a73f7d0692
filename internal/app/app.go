package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/zaincode21/uruti-discounts/internal/domain/auth"
	"github.com/zaincode21/uruti-discounts/internal/domain/discount"
	"github.com/zaincode21/uruti-discounts/internal/handler"
	"github.com/zaincode21/uruti-discounts/internal/storage/memory"
	"github.com/zaincode21/uruti-discounts/internal/storage/postgres"
	"github.com/zaincode21/uruti-discounts/pkg/health"
	"github.com/zaincode21/uruti-discounts/pkg/httpmiddleware"
)

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing",
		zap.String("addr", cfg.Addr),
		zap.String("storage", cfg.Storage.Driver),
	)

	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	healthSvc := health.New()
	healthSvc.Add(health.Liveness, "goroutines", health.GoroutineCountCheck(10000))
	healthSvc.Add(health.Liveness, "gc_pause", health.GCMaxPauseCheck(time.Second))

	var (
		store discount.Store
		keys  auth.Repository
	)
	switch cfg.Storage.Driver {
	case DriverPostgres:
		pool, err := postgres.NewPool(ctx, cfg.Storage.DatabaseURL, postgres.PoolConfig{
			MaxConns:        cfg.Storage.MaxConns,
			MinConns:        cfg.Storage.MinConns,
			MaxConnLifetime: cfg.Storage.MaxConnLifetime,
		})
		if err != nil {
			return errors.Wrap(err, "create db pool")
		}
		defer pool.Close()

		if err := postgres.RunMigrations(ctx, pool); err != nil {
			return errors.Wrap(err, "run migrations")
		}
		healthSvc.Add(health.Readiness, "postgres", health.PingCheck(pool), health.WithTimeout(5*time.Second))

		store = postgres.NewDiscountStore(pool)
		keys = postgres.NewAPIKeyRepository(pool)
	case DriverMemory:
		lg.Warn("Using in-memory storage, data is lost on restart")
		store = memory.New()
	default:
		return errors.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
	if cfg.Admin.KeyHash != "" {
		keys = auth.NewStaticKeys(auth.APIKeyInfo{
			ID:      "config",
			Name:    "Configured admin key",
			KeyHash: cfg.Admin.KeyHash,
			Scopes:  []string{auth.ScopeDiscountsWrite},
		})
	}

	svc, err := discount.NewService(store,
		discount.WithLocation(loc),
		discount.WithMeterProvider(m.MeterProvider()),
		discount.WithTracerProvider(m.TracerProvider()),
	)
	if err != nil {
		return errors.Wrap(err, "create discount service")
	}

	var verifier httpmiddleware.KeyVerifier
	if keys != nil {
		verifier = handler.AdminVerifier(auth.NewAuthenticator(keys, []byte(cfg.Admin.Pepper)))
	} else {
		lg.Warn("No admin key configured, discount management routes are unauthenticated")
	}

	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: newHTTPHandler(ctx, lg, cfg, svc, verifier, healthSvc,
			m.TracerProvider(), m.MeterProvider()),
	}

	// Graceful shutdown: wait for context cancellation, drain, then stop.
	shutdownDone := make(chan struct{})
	go func() {
		<-ctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		healthSvc.Stop()
		close(shutdownDone)
	}()

	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}

// newHTTPHandler mounts health endpoints and the instrumented API on one mux
// behind the shared middleware chain.
func newHTTPHandler(
	ctx context.Context,
	lg *zap.Logger,
	cfg *Config,
	svc *discount.Service,
	verifier httpmiddleware.KeyVerifier,
	healthSvc *health.Health,
	tp trace.TracerProvider,
	mp metric.MeterProvider,
) http.Handler {
	h := handler.New(handler.Config{RequestTimeout: cfg.RequestTimeout}, svc, verifier)
	api := otelhttp.NewHandler(h.Routes(), "discounts-api",
		otelhttp.WithTracerProvider(tp),
		otelhttp.WithMeterProvider(mp),
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}),
	)

	mux := http.NewServeMux()
	mux.HandleFunc("/livez", healthSvc.LiveEndpoint)
	mux.HandleFunc("/readyz", healthSvc.ReadyEndpoint)
	mux.Handle("/api/", api)

	mws := []httpmiddleware.Middleware{
		httpmiddleware.Recovery(),
		httpmiddleware.CORS(httpmiddleware.CORSConfig{
			AllowOrigins:     cfg.CORS.Origins,
			AllowCredentials: cfg.CORS.AllowCredentials,
			MaxAge:           cfg.CORS.MaxAge,
		}),
	}
	if cfg.RateLimit.RPS > 0 {
		mws = append(mws, httpmiddleware.RateLimit(ctx, httpmiddleware.RateLimitConfig{
			RPS:     cfg.RateLimit.RPS,
			Burst:   cfg.RateLimit.Burst,
			IdleTTL: cfg.RateLimit.IdleTTL,
		}))
	}
	mws = append(mws,
		httpmiddleware.RequestID(),
		httpmiddleware.InjectLogger(lg),
	)
	return httpmiddleware.Wrap(mux, mws...)
}

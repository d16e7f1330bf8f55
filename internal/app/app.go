// Package app wires configuration, storage, domain services and the HTTP
// server into a running process.
package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/drme990/manasik-v2-sub000/internal/analytics"
	"github.com/drme990/manasik-v2-sub000/internal/domain/coupon"
	"github.com/drme990/manasik-v2-sub000/internal/domain/order"
	"github.com/drme990/manasik-v2-sub000/internal/gateway/paymob"
	"github.com/drme990/manasik-v2-sub000/internal/handler"
	"github.com/drme990/manasik-v2-sub000/internal/repository"
	"github.com/drme990/manasik-v2-sub000/pkg/health"
	"github.com/drme990/manasik-v2-sub000/pkg/httpmiddleware"
)

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, _ *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))

	// PostgreSQL pool + migrations.
	pool, err := repository.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	// Health checks.
	healthSvc := health.New()
	healthSvc.AddReadinessCheck("postgres", 5*time.Second, health.PingCheck(pool))
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))
	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	// Repositories.
	productRepo := repository.NewProductRepository(pool)
	couponRepo := repository.NewCouponRepository(pool)
	orderRepo := repository.NewOrderRepository(pool)

	// Payment gateway.
	gateway := paymob.New(paymob.Config{
		BaseURL:       cfg.Paymob.BaseURL,
		SecretKey:     cfg.Paymob.SecretKey,
		PublicKey:     cfg.Paymob.PublicKey,
		IntegrationID: cfg.Paymob.IntegrationID,
	})
	if !gateway.Configured() {
		lg.Warn("Payment gateway not configured, orders will be created without checkout URLs")
	}
	if cfg.Paymob.HMACSecret == "" {
		lg.Warn("PAYMOB HMAC SECRET IS EMPTY: webhook signatures will NOT be verified")
	}

	// Purchase tracking.
	var tracker order.Tracker = analytics.NoopTracker{}
	if len(cfg.Tracking.Brokers) > 0 {
		kafkaTracker := analytics.NewKafkaTracker(cfg.Tracking.Brokers, cfg.Tracking.Topic)
		defer func() { _ = kafkaTracker.Close() }()
		tracker = kafkaTracker
	}

	// Domain services.
	couponValidator := coupon.NewValidator(couponRepo)
	checkoutService := order.NewService(order.ServiceConfig{
		NotifyURL:     cfg.Checkout.NotifyURL,
		RedirectURL:   cfg.Checkout.RedirectURL,
		ExpirySeconds: cfg.Checkout.ExpirySeconds,
	}, productRepo, couponValidator, orderRepo, gateway)
	reconciler := order.NewReconciler(orderRepo, tracker)

	// HTTP routes.
	h := handler.NewHandler(checkoutService, reconciler, cfg.Paymob.HMACSecret)
	mux := http.NewServeMux()
	mux.HandleFunc("GET /livez", healthSvc.LiveEndpoint)
	mux.HandleFunc("GET /readyz", healthSvc.ReadyEndpoint)
	h.Register(mux)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(mux,
			httpmiddleware.Recovery(),
			httpmiddleware.CORS(httpmiddleware.CORSConfig{
				AllowOrigins: cfg.CORS.Origins,
				AllowHeaders: []string{"Content-Type", "Authorization"},
				MaxAge:       86400,
			}),
			httpmiddleware.RateLimit(ctx, httpmiddleware.RateLimitConfig{
				Max:    cfg.RateLimit.Max,
				Window: cfg.RateLimit.Window,
			}),
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(zctx.From(ctx)),
			httpmiddleware.LogRequests(),
		),
	}

	// Graceful shutdown: flip readiness, let the balancer drain, then stop.
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

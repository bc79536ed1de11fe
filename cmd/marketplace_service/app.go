package marketplaceservice

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"ride-market/internal/domain/request"
	"ride-market/internal/general/config"
	"ride-market/internal/general/jwt"
	"ride-market/internal/general/logger"
	"ride-market/internal/general/postgres"
	"ride-market/internal/general/rabbitmq"
	"ride-market/internal/general/rediscache"
	"ride-market/internal/general/stripepay"
	"ride-market/internal/general/websocket"
	"ride-market/internal/software/marketplace/handler"
	"ride-market/internal/software/marketplace/service"
)

// Run starts the marketplace HTTP service and blocks until ctx is cancelled
// or the server fails. maxConcurrent caps in-flight HTTP requests.
func Run(ctx context.Context, maxConcurrent int) error {
	log := logger.New("marketplace-service")

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	pool, err := postgres.NewPool(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pool.Close()

	mqClient, err := rabbitmq.ConnectRabbitMQ(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("connect rabbitmq: %w", err)
	}
	defer mqClient.Close()
	pub := rabbitmq.NewMQPublisher(mqClient)

	jwtManager := jwt.NewManager(cfg.JWT.SecretKey, 2*time.Hour)

	// cache is optional: run degraded rather than refuse to start
	cache, err := rediscache.Connect(ctx, cfg, log)
	if err != nil {
		log.Error(ctx, "redis_unavailable", "View cache disabled, serving from store", err, nil)
		cache = nil
	} else {
		defer cache.Close()
	}

	gateway := stripepay.New(cfg, log)
	feed := websocket.NewFeed(log, jwtManager)

	uow := postgres.NewUnitOfWork(pool)
	svc := service.NewMarketplaceService(
		log,
		uow,
		postgres.NewRequestRepo(),
		postgres.NewPassengerRepo(),
		postgres.NewBidRepo(),
		postgres.NewEventRepo(),
		postgres.NewDirectoryRepo(),
		gateway,
		service.FixedTaxRate(cfg.Marketplace.TaxRateBps),
		pub,
		cache,
		feed,
		request.Admission{AllowLateBids: cfg.Marketplace.AllowLateBids},
	)

	mux := http.NewServeMux()
	httpHandler := handler.NewMarketHTTPHandler(svc, log, jwtManager, feed)
	httpHandler.RegisterRoutes(mux)

	limited := withConcurrencyLimit(maxConcurrent, mux)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Services.MarketplaceServicePort),
		Handler:           limited,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	metricsSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Services.MetricsPort),
		Handler:           promhttp.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 2)
	go func() {
		log.Info(ctx, "http_listening", fmt.Sprintf("Marketplace service listening on :%d", cfg.Services.MarketplaceServicePort), map[string]any{
			"max_concurrent": maxConcurrent,
		})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	go func() {
		log.Info(ctx, "metrics_listening", fmt.Sprintf("Metrics listening on :%d", cfg.Services.MetricsPort), nil)
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info(ctx, "shutdown_begin", "Shutting down marketplace service", nil)
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = metricsSrv.Shutdown(shutdownCtx)
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	log.Info(ctx, "shutdown_complete", "Marketplace service stopped", nil)
	return nil
}

// withConcurrencyLimit bounds in-flight requests with a semaphore. Extra
// requests wait; clients that give up waiting get a cancelled context.
func withConcurrencyLimit(n int, next http.Handler) http.Handler {
	if n <= 0 {
		return next
	}
	sem := make(chan struct{}, n)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case sem <- struct{}{}:
			defer func() { <-sem }()
			next.ServeHTTP(w, r)
		case <-r.Context().Done():
			http.Error(w, "server busy", http.StatusServiceUnavailable)
		}
	})
}

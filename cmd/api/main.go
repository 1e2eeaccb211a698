package main

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/salon-storefront/internal/api/router"
	"github.com/wolfman30/salon-storefront/internal/cart"
	"github.com/wolfman30/salon-storefront/internal/catalog"
	appconfig "github.com/wolfman30/salon-storefront/internal/config"
	httpmiddleware "github.com/wolfman30/salon-storefront/internal/http/middleware"
	"github.com/wolfman30/salon-storefront/internal/observability/metrics"
	"github.com/wolfman30/salon-storefront/internal/phone"
	"github.com/wolfman30/salon-storefront/internal/session"
	"github.com/wolfman30/salon-storefront/pkg/logging"
)

const janitorInterval = 10 * time.Minute

func main() {
	_ = godotenv.Load()
	cfg := appconfig.Load()

	logger := logging.NewWithWriter(os.Stdout, cfg.LogLevel, cfg.LogFormat)
	logger.Info("starting salon storefront edge",
		"env", cfg.Env,
		"port", cfg.Port,
		"cart_backend", cfg.CartBackend,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool := connectPostgresPool(ctx, cfg.DatabaseURL, logger)
	if pool != nil {
		defer pool.Close()
	}
	rdb := connectRedis(ctx, cfg, logger)
	if rdb != nil {
		defer func() { _ = rdb.Close() }()
	}

	storage, err := setupCartStorage(cfg, pool, rdb)
	if err != nil {
		logger.Error("failed to set up cart storage", "error", err)
		os.Exit(1)
	}
	menus, err := setupCatalog(cfg, pool, logger)
	if err != nil {
		logger.Error("failed to set up catalog", "error", err)
		os.Exit(1)
	}

	metricsHandler, cartMetrics, httpMetrics := setupMetrics()

	if cfg.CartBackend == "postgres" {
		go runJanitor(ctx, pool, cfg.SessionTTL, janitorInterval, logger)
	}

	cartHandler := cart.NewHandler(cart.HandlerConfig{
		Storage:     storage,
		Menus:       menus,
		TTL:         cfg.CartTTL,
		BookingPath: cfg.BookingPath,
		Metrics:     cartMetrics,
		Logger:      logger.Component("cart"),
	})
	sessions := session.NewManager(cfg.SessionName, cfg.SessionKey, cfg.SessionTTL,
		session.WithSecureCookie(cfg.Env == "production"),
		session.WithLogger(logger.Component("session")),
	)
	if cfg.SessionKey == "" {
		logger.Warn("SESSION_SECRET not set; session cookies are unsigned")
	}

	r := router.New(&router.Config{
		Logger:             logger,
		CartHandler:        cartHandler,
		Sessions:           sessions,
		PhoneHandler:       phone.Handler(cfg.DefaultCountryCode),
		MetricsHandler:     metricsHandler,
		RequestObserver:    httpMetrics,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		RateLimiter:        httpmiddleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst),
		HealthChecks:       healthChecks(pool, rdb),
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}

func setupMetrics() (http.Handler, *metrics.CartMetrics, *metrics.HTTPMetrics) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	handler := promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
	return handler, metrics.NewCartMetrics(reg), metrics.NewHTTPMetrics(reg)
}

func connectPostgresPool(ctx context.Context, databaseURL string, logger *logging.Logger) *pgxpool.Pool {
	if databaseURL == "" {
		return nil
	}
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		logger.Error("failed to create postgres pool", "error", err)
		os.Exit(1)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		logger.Error("failed to reach postgres", "error", err)
		os.Exit(1)
	}
	logger.Info("connected to postgres")
	return pool
}

func connectRedis(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) *redis.Client {
	if cfg.RedisAddr == "" {
		return nil
	}
	opts := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Warn("redis ping failed", "error", err)
	}
	return client
}

func setupCartStorage(cfg *appconfig.Config, pool *pgxpool.Pool, rdb *redis.Client) (cart.StorageFactory, error) {
	switch cfg.CartBackend {
	case "", "memory":
		return cart.NewMemorySessions(cfg.SessionTTL).Factory(), nil
	case "redis":
		if rdb == nil {
			return nil, errors.New("CART_BACKEND=redis requires REDIS_ADDR")
		}
		return cart.RedisFactory(rdb, cfg.SessionTTL), nil
	case "postgres":
		if pool == nil {
			return nil, errors.New("CART_BACKEND=postgres requires DATABASE_URL")
		}
		return cart.PostgresFactory(pool), nil
	default:
		return nil, fmt.Errorf("unknown CART_BACKEND %q", cfg.CartBackend)
	}
}

func setupCatalog(cfg *appconfig.Config, pool *pgxpool.Pool, logger *logging.Logger) (cart.MenuSource, error) {
	if cfg.CatalogFile != "" {
		static, err := catalog.LoadFile(cfg.CatalogFile)
		if err != nil {
			return nil, err
		}
		logger.Info("catalog loaded from file", "path", cfg.CatalogFile)
		return static, nil
	}
	if pool != nil {
		return catalog.NewRepository(pool, logger.Component("catalog")), nil
	}
	return nil, errors.New("either CATALOG_FILE or DATABASE_URL is required")
}

// runJanitor deletes Postgres-backed visitor storage that has been idle
// longer than the session lifetime.
func runJanitor(ctx context.Context, pool *pgxpool.Pool, idle, every time.Duration, logger *logging.Logger) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := cart.PurgeIdle(ctx, pool, idle)
			if err != nil {
				logger.Warn("cart storage purge failed", "error", err)
				continue
			}
			if n > 0 {
				logger.Info("purged idle cart storage", "rows", n)
			}
		}
	}
}

func healthChecks(pool *pgxpool.Pool, rdb *redis.Client) map[string]router.HealthCheck {
	checks := map[string]router.HealthCheck{}
	if pool != nil {
		checks["postgres"] = pool.Ping
	}
	if rdb != nil {
		checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	}
	return checks
}

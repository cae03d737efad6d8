package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/example/curvedesk/internal/clock"
	"github.com/example/curvedesk/internal/config"
	httpmw "github.com/example/curvedesk/internal/http/middleware"
	"github.com/example/curvedesk/internal/idempotency"
	orderhandler "github.com/example/curvedesk/internal/order/handler"
	"github.com/example/curvedesk/internal/order/repository"
	orderservice "github.com/example/curvedesk/internal/order/service"
	"github.com/example/curvedesk/internal/yield"
	"github.com/example/curvedesk/pkg/events"
	"github.com/example/curvedesk/pkg/observability"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger := observability.SetupLogger("curvedesk")
	defer logger.Sync() //nolint:errcheck

	shutdown, err := observability.SetupTracer(ctx, "curvedesk")
	if err != nil {
		logger.Warn("tracer setup failed", zap.Error(err))
	} else {
		defer shutdown(context.Background())
	}

	cfg, err := config.Load(getenv("CURVEDESK_CONFIG", "curvedesk.toml"))
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Warn("redis ping failed, redis-backed features disabled", zap.Error(err))
			_ = redisClient.Close()
			redisClient = nil
		} else {
			defer redisClient.Close()
		}
	}

	var natsConn *nats.Conn
	if cfg.NATS.URL != "" {
		if conn, err := nats.Connect(cfg.NATS.URL, nats.Name("curvedesk")); err == nil {
			natsConn = conn
			defer conn.Drain()
		} else {
			logger.Warn("nats connection failed", zap.Error(err))
		}
	}

	clk := clock.NewSystem()

	keys := idempotency.NewStore(cfg.IdempotencyTTL(), clk, logger.Named("idempotency"))
	go func() {
		if err := keys.Run(ctx, cfg.SweepInterval()); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("idempotency sweeper stopped", zap.Error(err))
		}
	}()

	repo := repository.NewMemoryRepository()
	publisher := events.NewPublisher(natsConn, cfg.NATS.Subject)
	orderSvc := orderservice.New(repo, publisher, clk)
	orderHTTP := orderhandler.NewHTTP(orderSvc, keys, logger.Named("orders"))

	var curveCache yield.Cache = yield.NewMemoryCache()
	if redisClient != nil {
		curveCache = yield.NewRedisCache(redisClient)
	}
	curveClient := yield.NewClient(cfg.Provider.BaseURL, cfg.Provider.APIKey, nil)
	curveSvc := yield.NewService(curveClient, curveCache, clk, logger.Named("yield"), cfg.RefreshInterval())
	curveHTTP := yield.NewHTTP(curveSvc, logger.Named("yield"))

	limiter := httpmw.NewRateLimiter(redisClient,
		httpmw.RateConfig{Rate: cfg.RateLimit.ReadRPS, Burst: cfg.RateLimit.ReadBurst},
		httpmw.RateConfig{Rate: cfg.RateLimit.WriteRPS, Burst: cfg.RateLimit.WriteBurst},
	)

	r := chi.NewRouter()
	r.Use(chimiddleware.Logger)
	r.Use(httpmw.CORS(cfg.Server.CORSOrigin))
	if limiter != nil {
		r.Use(limiter.Middleware)
	}
	r.Mount("/api/orders", orderHTTP.Router())
	r.Mount("/api/yield-curve", curveHTTP.Router())
	r.Mount("/observability", observability.MetricsRouter())

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           r,
		ReadHeaderTimeout: time.Duration(cfg.Server.ReadTimeout) * time.Second,
	}

	go func() {
		logger.Info("curvedesk listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("http server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

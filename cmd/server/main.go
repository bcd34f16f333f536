package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"store_api/internal/catalog"
	"store_api/internal/config"
	"store_api/internal/inventory"
	"store_api/internal/notify"
	"store_api/internal/orders"
	"store_api/internal/payment"
	"store_api/internal/pricing"
	"store_api/internal/queue"
	"store_api/internal/router"
	"store_api/internal/store"
	"store_api/internal/users"
	rediskey "store_api/pkg/redis"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	rd "github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm/logger"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logr := newLogger(cfg.LogLevel)
	slog.SetDefault(logr)

	// 1. Database, schema
	db, err := store.Open(store.Options{Driver: cfg.DBDriver, DSN: cfg.DBDSN, LogLevel: logger.Warn})
	if err != nil {
		log.Fatalf("db open: %v", err)
	}
	if err := store.Migrate(db); err != nil {
		log.Fatalf("db migrate: %v", err)
	}

	// 2. Redis for pub/sub, rate limiting and capture locks
	rdb := rd.NewClient(&rd.Options{Addr: cfg.RedisAddr, DB: cfg.RedisDB})
	defer rdb.Close()
	pingCtx, cancelPing := context.WithTimeout(context.Background(), 2*time.Second)
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		logr.Warn("redis unreachable, notifications and rate limits degrade", "addr", cfg.RedisAddr, "err", err)
	}
	cancelPing()

	// 3. Notification sinks behind a bounded async queue
	sinks := notify.Fanout{notify.NewRedisPublisher(rdb)}
	if cfg.KafkaEnabled {
		producer := queue.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer producer.Close()
		sinks = append(sinks, notify.NewKafkaPublisher(producer))
	}
	emitter := notify.NewAsync(sinks, cfg.NotifyBuffer, cfg.NotifyTimeout, logr)
	defer emitter.Close()

	// 4. Services
	gateway, err := payment.NewPayPal(payment.PayPalConfig{
		Mode:      cfg.PayPalMode,
		ClientID:  cfg.PayPalClientID,
		Secret:    cfg.PayPalSecret,
		BaseURL:   cfg.PayPalBaseURL,
		ReturnURL: cfg.ReturnURL(),
		CancelURL: cfg.CancelURL(),
		WebhookID: cfg.PayPalWebhookID,
		Timeout:   cfg.GatewayTimeout,
	})
	if err != nil {
		log.Fatalf("paypal: %v", err)
	}
	reconciler := payment.NewReconciler(db, emitter, logr)

	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())
	router.Setup(r, router.Deps{
		Users:   users.NewService(db, 0),
		Catalog: catalog.NewService(db),
		Orders:  orders.NewService(db, inventory.NewLedger(), pricing.Calculator{}, emitter, logr),
		Payments: payment.NewService(db, gateway, reconciler, payment.Options{
			Locker:         rediskey.NewLocker(rdb, cfg.CaptureLockTTL),
			GatewayTimeout: cfg.GatewayTimeout,
			Logger:         logr,
		}),
		Redis:           rdb,
		Logger:          logr,
		WriteRateLimit:  cfg.WriteRateLimit,
		WriteRateWindow: cfg.WriteRateWindow,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logr.Info("http server listening", "addr", cfg.HTTPAddr, "db", cfg.DBDriver, "kafka", cfg.KafkaEnabled)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		logr.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	if err := g.Wait(); err != nil {
		logr.Error("server stopped", "err", err)
	}
}

func newLogger(level string) *slog.Logger {
	var lv slog.Level
	if err := lv.UnmarshalText([]byte(level)); err != nil {
		lv = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lv}))
}

package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fjod/go_cart/shop-service/internal/cache"
	"github.com/fjod/go_cart/shop-service/internal/config"
	"github.com/fjod/go_cart/shop-service/internal/consumer"
	h "github.com/fjod/go_cart/shop-service/internal/http"
	"github.com/fjod/go_cart/shop-service/internal/lock"
	"github.com/fjod/go_cart/shop-service/internal/logger"
	"github.com/fjod/go_cart/shop-service/internal/payment"
	"github.com/fjod/go_cart/shop-service/internal/publisher"
	"github.com/fjod/go_cart/shop-service/internal/repository"
	"github.com/fjod/go_cart/shop-service/internal/service"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fatal("invalid configuration", err)
	}
	slog.SetDefault(logger.New(os.Stdout, logger.ParseLevel(cfg.LogLevel)))
	shutdownTracing := logger.SetupTracing()
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			slog.Error("tracer provider shutdown", "error", err)
		}
	}()
	slog.Info("shop-service starting...", "store", cfg.StoreDriver, "locks", cfg.LockBackend)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx, cfg)
	if err != nil {
		fatal("failed to open store", err)
	}
	defer store.Close()

	var (
		locks    lock.Provider = lock.NewMemoryProvider()
		appCache cache.Cache   = cache.Noop{}
	)
	if cfg.LockBackend == config.LocksRedis {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       0,
		})
		defer redisClient.Close()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			fatal("redis connection failed", err)
		}
		slog.Info("redis ping succeeded", "addr", cfg.RedisAddr)
		locks = lock.NewRedisProvider(redisClient)
		appCache = cache.NewRedisCache(redisClient)
	}

	g, gctx := errgroup.WithContext(ctx)

	var notifier service.Notifier = publisher.LogNotifier{}
	if len(cfg.KafkaBrokers) > 0 {
		kafkaNotifier := publisher.NewKafkaNotifier(publisher.Topics{
			OrderCreated:   cfg.OrderCreatedTopic,
			OrderUpdated:   cfg.OrderUpdatedTopic,
			OrderCancelled: cfg.OrderCancelledTopic,
		}, cfg.KafkaBrokers...)
		defer kafkaNotifier.Close()
		g.Go(func() error {
			kafkaNotifier.Run(gctx)
			return nil
		})
		notifier = kafkaNotifier
		slog.Info("publishing order events to kafka", "brokers", cfg.KafkaBrokers)
	}

	timeouts := service.LockTimeouts{
		CartWait:   cfg.CartLockWait,
		CartLease:  cfg.CartLockLease,
		OrderWait:  cfg.OrderLockWait,
		OrderLease: cfg.OrderLockLease,
	}
	pricing := service.Pricing{
		ShippingBaseFee:      cfg.ShippingBaseFee,
		ShippingIncrementFee: cfg.ShippingIncrementFee,
		ItemsPerIncrement:    cfg.ItemsPerIncrement,
		TaxRate:              cfg.TaxRate,
	}

	var gateway service.PaymentGateway = payment.NoopGateway{}
	if cfg.PaymentGateway == config.GatewaySimulated {
		gateway = payment.NewBreakerGateway("payment-gateway", payment.NewSimulatedGateway(), payment.DefaultBreakerSettings())
	}

	products := service.NewProductService(store, appCache)
	carts := service.NewCartService(store, locks, appCache, timeouts)
	orders := service.NewOrderService(store, locks, appCache, notifier, timeouts)
	checkout := service.NewCheckoutService(service.CheckoutDeps{
		Store:        store,
		Locks:        locks,
		CartCache:    appCache,
		ProductCache: appCache,
		Notifier:     notifier,
		Gateway:      gateway,
		Payments:     orders,
		Pricing:      pricing,
		Timeouts:     timeouts,
	})

	if len(cfg.KafkaBrokers) > 0 {
		paymentConsumer := consumer.NewConsumer(orders, cfg.PaymentResultsTopic, cfg.KafkaBrokers...)
		defer paymentConsumer.Close()
		g.Go(func() error {
			paymentConsumer.Run(gctx)
			return nil
		})
	}

	router := h.NewRouter(
		h.RouterConfig{
			RequestTimeout:     cfg.RequestTimeout,
			MaxRequestBodySize: cfg.MaxRequestBodySize,
		},
		h.NewProductHandler(products, cfg.RequestTimeout),
		h.NewCartHandler(carts, cfg.RequestTimeout),
		h.NewOrdersHandler(checkout, orders, cfg.RequestTimeout),
	)

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      otelhttp.NewHandler(router, "shop-service"),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g.Go(func() error {
		slog.Info("http server listening", "port", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		slog.Error("server stopped with error", "error", err)
	}
	slog.Info("shop-service stopped")
}

func openStore(ctx context.Context, cfg *config.Config) (repository.Store, error) {
	switch cfg.StoreDriver {
	case config.StorePostgres, config.StoreSQLite:
		var (
			store *repository.SQLStore
			err   error
		)
		if cfg.StoreDriver == config.StorePostgres {
			store, err = repository.NewPostgresStore(&repository.Credentials{
				Host:              cfg.DBHost,
				Port:              cfg.DBPort,
				User:              cfg.DBUser,
				Password:          cfg.DBPassword,
				DBName:            cfg.DBName,
				MigrationsDirPath: cfg.Migrations(),
			})
		} else {
			store, err = repository.NewSQLiteStore(cfg.SQLitePath)
		}
		if err != nil {
			return nil, err
		}
		if err := store.RunMigrations(cfg.Migrations()); err != nil {
			store.Close()
			return nil, err
		}
		slog.Info("database migrations completed", "driver", cfg.StoreDriver)
		return seed(ctx, cfg, store)
	default:
		return seed(ctx, cfg, repository.NewMemoryStore())
	}
}

func seed(ctx context.Context, cfg *config.Config, store repository.Store) (repository.Store, error) {
	if !cfg.Seed {
		return store, nil
	}
	if err := repository.Seed(ctx, store); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			slog.Info("seed data already present")
			return store, nil
		}
		store.Close()
		return nil, err
	}
	slog.Info("seed data loaded")
	return store, nil
}

func fatal(msg string, err error) {
	slog.Error(msg, "error", err)
	os.Exit(1)
}

package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	account "github.com/dmehra2102/checkout-service/internal/account/domain"
	inventoryapp "github.com/dmehra2102/checkout-service/internal/inventory/application"
	inventory "github.com/dmehra2102/checkout-service/internal/inventory/domain"
	"github.com/dmehra2102/checkout-service/internal/order/application"
	"github.com/dmehra2102/checkout-service/internal/order/domain"
	orderpg "github.com/dmehra2102/checkout-service/internal/order/infrastructure/postgres"
	paymentapp "github.com/dmehra2102/checkout-service/internal/payment/application"
	"github.com/dmehra2102/checkout-service/internal/payment/infrastructure/paypal"
	reconcileapp "github.com/dmehra2102/checkout-service/internal/reconcile/application"
	reconcilekafka "github.com/dmehra2102/checkout-service/internal/reconcile/infrastructure/kafka"
	"github.com/dmehra2102/checkout-service/internal/schema"
	"github.com/dmehra2102/checkout-service/pkg/config"
	"github.com/dmehra2102/checkout-service/pkg/idempotency"
	"github.com/dmehra2102/checkout-service/pkg/logging"
	"github.com/dmehra2102/checkout-service/pkg/refs"
	"github.com/dmehra2102/checkout-service/pkg/shutdown"
	"github.com/dmehra2102/checkout-service/pkg/store"
	"github.com/dmehra2102/checkout-service/pkg/store/postgres"
	"github.com/dmehra2102/checkout-service/pkg/tracing"
)

// The reconciler reads checkout events from the outbox topic and compares
// incomplete checkouts with the provider. It reads the same database as
// the order service and never writes orders.
func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}
	log := logging.New(cfg.LogLevel)

	brokers := cfg.Brokers()
	if cfg.StoreDriver != config.DriverPostgres || len(brokers) == 0 {
		log.Error("reconciler needs STORE_DRIVER=postgres and KAFKA_ADDR")
		os.Exit(1)
	}

	ctx, cancel := shutdown.WithSignals(context.Background())
	defer cancel()

	tp, err := tracing.Init(ctx, "reconciler", cfg.OTELEndpoint, log)
	if err != nil {
		log.Error("otel init failed", "err", err)
		os.Exit(1)
	}

	pool, err := pgxpool.New(ctx, cfg.PGURL)
	if err != nil {
		log.Error("pg connect failed", "err", err)
		os.Exit(1)
	}

	redisDB := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	idem := idempotency.NewStore(redisDB, cfg.Reconciler.DedupTTL, "reconciler")

	backend := postgres.NewBackend(log, pool)
	resolver := refs.NewResolver(log, schema.New(), store.Source{Backend: backend})
	users := store.New[account.User, account.UserPatch](log, backend, resolver, account.KindUser)
	products := store.New[inventory.Product, inventory.ProductPatch](log, backend, resolver, inventory.KindProduct)
	orders := store.New[domain.Order, domain.OrderPatch](log, backend, resolver, domain.KindOrder)

	gateway := paypal.New(log, paypal.Config{
		APIURI:            cfg.PayPal.APIURI,
		ClientID:          cfg.PayPal.ClientID,
		ClientSecret:      cfg.PayPal.ClientSecret,
		Timeout:           cfg.PayPal.Timeout,
		RequestsPerSecond: cfg.PayPal.RequestsPerSecond,
	})
	mapper := paymentapp.NewMapper(paymentapp.ConfigFrom(cfg.BaseURI, cfg.PayPal))
	checkout := application.NewCheckout(log, orders, users, inventoryapp.NewService(log, products), mapper,
		orderpg.NewOutboxStore(log, pool), backend, gateway,
		application.WithGatewayRetries(cfg.GatewayRetry, cfg.GatewayDelay))

	reader := reconcilekafka.NewReader(brokers, cfg.OutboxTopic, cfg.Reconciler.GroupID)
	consumer := reconcilekafka.NewConsumer(log, reader, reconcileapp.NewService(log, checkout), idem)

	done := make(chan struct{})
	go func() {
		defer close(done)
		log.Info("reconciler consuming", "topic", cfg.OutboxTopic, "group", cfg.Reconciler.GroupID)
		if err := consumer.Run(ctx); err != nil {
			log.Error("consumer stopped", "err", err)
			cancel()
		}
	}()

	<-ctx.Done()

	_ = shutdown.Drain(log, 10*time.Second,
		func(ctx context.Context) error {
			select {
			case <-done:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		},
		func(context.Context) error { return redisDB.Close() },
		func(context.Context) error { pool.Close(); return nil },
		tp.Shutdown,
	)
	log.Info("reconciler shutdown complete")
}

package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	accountapp "github.com/dmehra2102/checkout-service/internal/account/application"
	account "github.com/dmehra2102/checkout-service/internal/account/domain"
	accounthttp "github.com/dmehra2102/checkout-service/internal/account/infrastructure/http"
	inventoryapp "github.com/dmehra2102/checkout-service/internal/inventory/application"
	inventory "github.com/dmehra2102/checkout-service/internal/inventory/domain"
	"github.com/dmehra2102/checkout-service/internal/order/application"
	"github.com/dmehra2102/checkout-service/internal/order/domain"
	orderhttp "github.com/dmehra2102/checkout-service/internal/order/infrastructure/http"
	orderkafka "github.com/dmehra2102/checkout-service/internal/order/infrastructure/kafka"
	orderpg "github.com/dmehra2102/checkout-service/internal/order/infrastructure/postgres"
	paymentapp "github.com/dmehra2102/checkout-service/internal/payment/application"
	"github.com/dmehra2102/checkout-service/internal/payment/infrastructure/paypal"
	"github.com/dmehra2102/checkout-service/internal/schema"
	"github.com/dmehra2102/checkout-service/pkg/config"
	"github.com/dmehra2102/checkout-service/pkg/logging"
	"github.com/dmehra2102/checkout-service/pkg/metrics"
	"github.com/dmehra2102/checkout-service/pkg/outbox"
	"github.com/dmehra2102/checkout-service/pkg/refs"
	"github.com/dmehra2102/checkout-service/pkg/security"
	"github.com/dmehra2102/checkout-service/pkg/shutdown"
	"github.com/dmehra2102/checkout-service/pkg/store"
	"github.com/dmehra2102/checkout-service/pkg/store/memory"
	"github.com/dmehra2102/checkout-service/pkg/store/postgres"
	"github.com/dmehra2102/checkout-service/pkg/tracing"
)

// outboxStore is what the saga appends to and the relay drains.
type outboxStore interface {
	application.EventPublisher
	outbox.Store
}

// storage is a document backend that can commit order writes together with
// outbox appends.
type storage interface {
	store.Backend
	store.Transactor
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}
	log := logging.New(cfg.LogLevel)

	ctx, cancel := shutdown.WithSignals(context.Background())
	defer cancel()

	tp, err := tracing.Init(ctx, "order-service", cfg.OTELEndpoint, log)
	if err != nil {
		log.Error("otel init failed", "err", err)
		os.Exit(1)
	}

	registry, err := cfg.Tokens.Registry()
	if err != nil {
		log.Error("token registry invalid", "err", err)
		os.Exit(1)
	}
	sec := security.NewService(log, registry)

	// Storage
	var (
		backend storage
		events  outboxStore
		pool    *pgxpool.Pool
	)
	switch cfg.StoreDriver {
	case config.DriverPostgres:
		pool, err = pgxpool.New(ctx, cfg.PGURL)
		if err != nil {
			log.Error("pg connect failed", "err", err)
			os.Exit(1)
		}
		pg := postgres.NewBackend(log, pool)
		if err := pg.Migrate(ctx, schema.Tables()...); err != nil {
			log.Error("schema migration failed", "err", err)
			os.Exit(1)
		}
		ob := orderpg.NewOutboxStore(log, pool)
		if err := ob.Migrate(ctx); err != nil {
			log.Error("outbox migration failed", "err", err)
			os.Exit(1)
		}
		backend, events = pg, ob
	default:
		backend, events = memory.NewBackend(), outbox.NewMemoryStore()
		log.Warn("using in-memory storage; data is lost on exit")
	}

	resolver := refs.NewResolver(log, schema.New(), store.Source{Backend: backend})
	users := store.New[account.User, account.UserPatch](log, backend, resolver, account.KindUser)
	categories := store.New[inventory.Category, inventory.CategoryPatch](log, backend, resolver, inventory.KindCategory)
	products := store.New[inventory.Product, inventory.ProductPatch](log, backend, resolver, inventory.KindProduct)
	orders := store.New[domain.Order, domain.OrderPatch](log, backend, resolver, domain.KindOrder)

	if cfg.SeedFile != "" {
		if err := seed(ctx, log, cfg.SeedFile, categories, products); err != nil {
			log.Error("seed failed", "file", cfg.SeedFile, "err", err)
			os.Exit(1)
		}
	}

	// Outbox relay: Kafka when brokers are configured, the log otherwise.
	var producer outbox.Producer = outbox.LogProducer{Log: log}
	var writer *orderkafka.Writer
	if brokers := cfg.Brokers(); len(brokers) > 0 {
		writer = orderkafka.NewWriter(brokers)
		producer = writer
	}
	dispatch := outbox.NewDispatcher(log, producer, cfg.OutboxTopic)
	relay := outbox.NewRelay(log, events, dispatch, "order-service-relay")

	// Checkout
	gateway := paypal.New(log, paypal.Config{
		APIURI:            cfg.PayPal.APIURI,
		ClientID:          cfg.PayPal.ClientID,
		ClientSecret:      cfg.PayPal.ClientSecret,
		Timeout:           cfg.PayPal.Timeout,
		RequestsPerSecond: cfg.PayPal.RequestsPerSecond,
	})
	mapper := paymentapp.NewMapper(paymentapp.ConfigFrom(cfg.BaseURI, cfg.PayPal))
	checkout := application.NewCheckout(log, orders, users, inventoryapp.NewService(log, products), mapper, events, backend, gateway,
		application.WithGatewayRetries(cfg.GatewayRetry, cfg.GatewayDelay))
	accounts := accountapp.NewService(log, users, sec, cfg.BaseURI)

	// HTTP
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	srvMetrics := metrics.NewServerMetrics(reg, "order_service")

	var guard func(http.Handler) http.Handler
	if cfg.AuthEnabled {
		guard = accounthttp.Authenticator(log, accounts)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer, srvMetrics.Middleware)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Handle("/metrics", metrics.Handler(reg))
	r.Mount("/orders", orderhttp.NewHandler(log, checkout).Routes(guard))
	r.Mount("/auth", accounthttp.NewHandler(log, accounts).Routes())

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      r,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: cfg.PayPal.Timeout*4 + 10*time.Second,
	}

	// Run relay
	relayDone := make(chan struct{})
	go func() {
		defer close(relayDone)
		if err := relay.Run(ctx); err != nil {
			log.Error("relay stopped with error", "err", err)
		}
	}()

	// Run HTTP
	go func() {
		log.Info("http listening", "addr", cfg.HTTPAddr, "store", cfg.StoreDriver, "auth", cfg.AuthEnabled)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server error", "err", err)
			cancel()
		}
	}()

	<-ctx.Done()

	_ = shutdown.Drain(log, 10*time.Second,
		srv.Shutdown,
		func(ctx context.Context) error {
			select {
			case <-relayDone:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		},
		func(context.Context) error {
			if writer != nil {
				return writer.Close()
			}
			return nil
		},
		func(context.Context) error {
			if pool != nil {
				pool.Close()
			}
			return nil
		},
		tp.Shutdown,
	)
	log.Info("order-service shutdown complete")
}

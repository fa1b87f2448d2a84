package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ariefcatur/go-marketplace-orders/internal/auth"
	"github.com/ariefcatur/go-marketplace-orders/internal/checkout"
	"github.com/ariefcatur/go-marketplace-orders/internal/config"
	"github.com/ariefcatur/go-marketplace-orders/internal/httpx"
	"github.com/ariefcatur/go-marketplace-orders/internal/inventory"
	kafkax "github.com/ariefcatur/go-marketplace-orders/internal/kafka"
	"github.com/ariefcatur/go-marketplace-orders/internal/logging"
	"github.com/ariefcatur/go-marketplace-orders/internal/memstore"
	"github.com/ariefcatur/go-marketplace-orders/internal/notify"
	"github.com/ariefcatur/go-marketplace-orders/internal/orders"
	"github.com/ariefcatur/go-marketplace-orders/internal/postgres"
	"github.com/ariefcatur/go-marketplace-orders/internal/ratings"
	"github.com/ariefcatur/go-marketplace-orders/internal/redisx"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

// stores is the storage wiring selected by STORE_DRIVER.
type stores struct {
	catalog       inventory.Store
	discrepancies inventory.DiscrepancyLog
	carts         checkout.Store
	orders        orders.Store
	businesses    orders.Businesses
	ratings       ratings.Store
	cache         redisx.Cache
	close         func()
}

func openPostgres(ctx context.Context, cfg config.Config, log zerolog.Logger) (stores, error) {
	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		return stores{}, err
	}
	if err := postgres.Migrate(ctx, db); err != nil {
		db.Close()
		return stores{}, err
	}
	rdb := redisx.New(cfg.RedisAddr)
	cache := &redisx.Store{RDB: rdb}
	if err := cache.Ping(ctx); err != nil {
		log.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("redis unreachable, continuing")
	}
	return stores{
		catalog:       &inventory.Repo{DB: db},
		discrepancies: &inventory.DiscrepancyRepo{DB: db},
		carts:         &checkout.Repo{DB: db},
		orders:        &orders.Repo{DB: db},
		businesses:    &orders.BusinessRepo{DB: db},
		ratings:       &ratings.Repo{DB: db},
		cache:         cache,
		close: func() {
			_ = rdb.Close()
			db.Close()
		},
	}, nil
}

func openMemory(cfg config.Config) (stores, error) {
	m := memstore.New()
	if cfg.SeedFile != "" {
		if err := m.LoadSeed(cfg.SeedFile); err != nil {
			return stores{}, err
		}
	}
	return stores{
		catalog:       m.Catalog,
		discrepancies: m.Discrepancies,
		carts:         m.Carts,
		orders:        m.Orders,
		businesses:    m.Businesses,
		ratings:       m.Ratings,
		cache:         m.Cache,
		close:         func() {},
	}, nil
}

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	log := logging.New(cfg.ServiceName, cfg.LogLevel)
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		st  stores
		err error
	)
	switch cfg.StoreDriver {
	case config.DriverMemory:
		st, err = openMemory(cfg)
	default:
		st, err = openPostgres(ctx, cfg, log)
	}
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.StoreDriver).Msg("open stores")
	}
	defer st.close()

	prod := kafkax.NewProducer(cfg.KafkaBrokers, cfg.NotifyTopic, cfg.NotifyBuffer, log)
	prod.Start()
	notifier := &notify.Publisher{Producer: prod, Service: cfg.ServiceName, Log: log}

	inv := &inventory.Service{Store: st.catalog, Log: log.With().Str("component", "inventory").Logger()}
	carts := &checkout.Carts{Store: st.carts, Catalog: st.catalog, Log: log}
	coord := &checkout.Coordinator{
		Carts:         st.carts,
		Inventory:     inv,
		Orders:        st.orders,
		Notifier:      notifier,
		Discrepancies: st.discrepancies,
		CommitRetries: cfg.OrderCommitRetries,
		RetryBackoff:  cfg.OrderCommitBackoff,
		Log:           log.With().Str("component", "checkout").Logger(),
	}
	machine := &orders.Machine{
		Store:         st.orders,
		Inventory:     inv,
		Products:      st.catalog,
		Businesses:    st.businesses,
		Notifier:      notifier,
		Discrepancies: st.discrepancies,
		Log:           log.With().Str("component", "orders").Logger(),
	}
	ledger := &ratings.Ledger{
		Orders:     st.orders,
		Store:      st.ratings,
		Businesses: st.businesses,
		Log:        log.With().Str("component", "ratings").Logger(),
	}

	api := &httpx.API{
		Cart:          &httpx.CartHandler{Carts: carts, Coordinator: coord, Cache: st.cache},
		Orders:        &httpx.OrdersHandler{Machine: machine, Ledger: ledger, Cache: st.cache},
		Reputation:    &httpx.ReputationHandler{Ledger: ledger},
		Discrepancies: &httpx.DiscrepancyHandler{Log: st.discrepancies},
		Verifier:      &auth.Verifier{Secret: []byte(cfg.JWTSecret)},
		Log:           log,
	}
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Str("driver", cfg.StoreDriver).Msg("HTTP listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("listen")
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info().Msg("shutting down")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)
	prod.Close()      // no new events; flush the buffer
	prod.WaitClosed() // drain
}

package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dquispe/tienda/internal/bus"
	"github.com/dquispe/tienda/internal/catalog"
	"github.com/dquispe/tienda/internal/checkout"
	"github.com/dquispe/tienda/internal/config"
	"github.com/dquispe/tienda/internal/httpapi"
	"github.com/dquispe/tienda/internal/notify"
	"github.com/dquispe/tienda/internal/orders"
	"github.com/dquispe/tienda/internal/publisher"
	"github.com/dquispe/tienda/internal/store"
)

func main() {
	cfg := config.Load()

	st, err := store.NewSQLStore(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer st.Close()

	if err := st.RunMigrations(); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	eventBus := newBus(cfg)
	defer eventBus.Close()

	catalogSvc := catalog.NewService(st, eventBus)
	ordersSvc := orders.NewService(st, catalogSvc, eventBus)
	if cfg.NotifyURL != "" {
		ordersSvc = ordersSvc.WithNotifier(notify.NewHTTPNotifier(cfg.NotifyURL))
		log.Printf("Customer notifications enabled: %s", cfg.NotifyURL)
	}
	checkoutSvc := checkout.NewService(catalogSvc, ordersSvc)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if len(cfg.KafkaBrokers) > 0 {
		writer := publisher.NewWriter(cfg.KafkaBrokers...)
		defer writer.Close()
		go publisher.New(eventBus, writer).Run(ctx)
		log.Printf("Order event export enabled: %v", cfg.KafkaBrokers)
	}

	router := httpapi.NewRouter(httpapi.RouterConfig{
		Catalog:        catalogSvc,
		Checkout:       checkoutSvc,
		Orders:         ordersSvc,
		Bus:            eventBus,
		RequestTimeout: cfg.RequestTimeout,
	})

	srv := &http.Server{
		Addr:        ":" + cfg.HTTPPort,
		Handler:     router,
		ReadTimeout: 10 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		log.Printf("tienda listening on :%s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("server forced to shutdown: %v", err)
		os.Exit(1)
	}

	log.Println("server exited")
}

// newBus picks the event bus. Redis pub/sub lets several instances share one
// event feed; without it the feed is in-process only.
func newBus(cfg *config.Config) bus.Bus {
	if cfg.RedisAddr == "" {
		return bus.NewMemoryBus()
	}
	client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	log.Printf("Using Redis event bus: %s", cfg.RedisAddr)
	return bus.NewRedisBus(client)
}

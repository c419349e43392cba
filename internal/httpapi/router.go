package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/dquispe/tienda/internal/bus"
	"github.com/dquispe/tienda/internal/catalog"
	"github.com/dquispe/tienda/internal/checkout"
	"github.com/dquispe/tienda/internal/orders"
)

const serviceName = "tienda"

// RouterConfig carries the services the HTTP surface is built from.
type RouterConfig struct {
	Catalog        *catalog.Service
	Checkout       *checkout.Service
	Orders         *orders.Service
	Bus            bus.Bus
	RequestTimeout time.Duration
}

// NewRouter assembles the full route tree. Public catalog reads, a
// session-scoped cart and checkout, per-customer order views and event
// feeds, and an /admin subtree for catalog and order management.
func NewRouter(cfg RouterConfig) http.Handler {
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = 30 * time.Second
	}

	catalogHandler := NewCatalogHandler(cfg.Catalog)
	cartHandler := NewCartHandler(cfg.Catalog, cfg.Checkout)
	ordersHandler := NewOrdersHandler(cfg.Orders)
	eventsHandler := NewEventsHandler(cfg.Bus)

	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.Compress(5))
	r.Use(SessionMiddleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		// Streaming endpoints cannot sit behind the timeout middleware,
		// a feed connection stays open for the life of the session.
		r.Group(func(r chi.Router) {
			r.Use(RequireUser)
			r.Get("/events/catalog", eventsHandler.Catalog)
			r.Get("/events/orders", eventsHandler.Orders)
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(cfg.RequestTimeout))

			r.Get("/products", catalogHandler.List)

			r.Group(func(r chi.Router) {
				r.Use(RequireUser)

				r.Route("/cart", func(r chi.Router) {
					r.Get("/", cartHandler.Get)
					r.Post("/items", cartHandler.AddItem)
					r.Put("/items/{productID}", cartHandler.SetQuantity)
					r.Delete("/items/{productID}", cartHandler.RemoveItem)
					r.Put("/delivery", cartHandler.SetDelivery)
				})
				r.Post("/checkout", cartHandler.Checkout)

				r.Get("/orders", ordersHandler.List)
				r.Get("/orders/{id}", ordersHandler.Get)
			})

			r.Route("/admin", func(r chi.Router) {
				r.Use(RequireAdmin)

				r.Post("/products", catalogHandler.Create)
				r.Put("/products/{id}", catalogHandler.Update)
				r.Delete("/products/{id}", catalogHandler.Delete)

				r.Get("/orders", ordersHandler.List)
				r.Put("/orders/{id}/status", ordersHandler.Transition)
				r.Delete("/orders/{id}", ordersHandler.Delete)

				r.Get("/stats", ordersHandler.Stats)
			})
		})
	})

	return otelhttp.NewHandler(r, serviceName)
}

package http

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"penguin-ternos-backend/internal/cache"
)

// Handlers groups the API handlers mounted under /api.
type Handlers struct {
	Rentals *RentalHandler
	Sales   *SaleHandler
	Items   *ItemHandler
	Config  *ConfigHandler
}

// RouterOptions configures the middleware chain.
type RouterOptions struct {
	Idempotency    cache.IdempotencyStore // nil disables replay
	IdempotencyTTL time.Duration
}

func healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// NewRouter registers every route on a gorilla/mux router.
func NewRouter(h Handlers, opts RouterOptions) *mux.Router {
	router := mux.NewRouter()
	router.Use(Recover, RequestID, AccessLog, Tracing)
	router.HandleFunc("/healthz", healthz).Methods(http.MethodGet)

	api := router.PathPrefix("/api").Subrouter()
	if opts.Idempotency != nil {
		api.Use(Idempotency(opts.Idempotency, opts.IdempotencyTTL))
	}

	api.HandleFunc("/rentals", h.Rentals.List).Methods(http.MethodGet)
	api.HandleFunc("/rentals", h.Rentals.Create).Methods(http.MethodPost)
	api.HandleFunc("/rentals/active", h.Rentals.ListActive).Methods(http.MethodGet)
	api.HandleFunc("/rentals/history", h.Rentals.ListHistory).Methods(http.MethodGet)
	api.HandleFunc("/rentals/overdue", h.Rentals.ListOverdue).Methods(http.MethodGet)
	api.HandleFunc("/rentals/{id:[0-9]+}", h.Rentals.Get).Methods(http.MethodGet)
	api.HandleFunc("/rentals/{id:[0-9]+}/return", h.Rentals.Return).Methods(http.MethodPost)

	api.HandleFunc("/sales", h.Sales.List).Methods(http.MethodGet)
	api.HandleFunc("/sales", h.Sales.Create).Methods(http.MethodPost)
	api.HandleFunc("/sales/{id:[0-9]+}", h.Sales.Get).Methods(http.MethodGet)
	api.HandleFunc("/sales/{id:[0-9]+}/return", h.Sales.Return).Methods(http.MethodPost)

	api.HandleFunc("/items", h.Items.List).Methods(http.MethodGet)
	api.HandleFunc("/items", h.Items.Create).Methods(http.MethodPost)
	api.HandleFunc("/items/summary", h.Items.Summary).Methods(http.MethodGet)
	api.HandleFunc("/items/by-counter/{kind}", h.Items.ByCounter).Methods(http.MethodGet)
	api.HandleFunc("/items/{id:[0-9]+}", h.Items.Get).Methods(http.MethodGet)
	api.HandleFunc("/items/{id:[0-9]+}", h.Items.Update).Methods(http.MethodPut)
	api.HandleFunc("/items/{id:[0-9]+}", h.Items.Delete).Methods(http.MethodDelete)
	api.HandleFunc("/items/{id:[0-9]+}/availability", h.Items.Availability).Methods(http.MethodGet)
	api.HandleFunc("/items/{id:[0-9]+}/movements", h.Items.Movements).Methods(http.MethodGet)
	api.HandleFunc("/items/{id:[0-9]+}/maintenance", h.Items.Maintenance).Methods(http.MethodPatch)
	api.HandleFunc("/items/{id:[0-9]+}/status", h.Items.Status).Methods(http.MethodPatch)

	api.HandleFunc("/suits", h.Items.ListSuits).Methods(http.MethodGet)
	api.HandleFunc("/suits", h.Items.CreateSuit).Methods(http.MethodPost)
	api.HandleFunc("/suits/{id:[0-9]+}", h.Items.GetSuit).Methods(http.MethodGet)

	api.HandleFunc("/config", h.Config.Get).Methods(http.MethodGet)
	api.HandleFunc("/config", h.Config.Update).Methods(http.MethodPut)

	return router
}

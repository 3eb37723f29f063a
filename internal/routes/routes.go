package routes

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stanstork/adscope-api/internal/handlers"
)

type Handlers struct {
	Health        http.HandlerFunc
	Auth          *handlers.AuthHandler
	Ingest        *handlers.IngestHandler
	Runs          *handlers.RunHandler
	Notifications *handlers.NotificationHandler
	// RequireSignature wraps the ingestion endpoint.
	RequireSignature func(http.Handler) http.Handler
	Metrics          prometheus.Gatherer
}

// NewRouter sets up the API routes
func NewRouter(h Handlers) *mux.Router {
	router := mux.NewRouter()

	router.HandleFunc("/health", h.Health).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.HandlerFor(h.Metrics, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	// Agent ingestion, HMAC signed
	router.Handle("/api/ingest", h.RequireSignature(http.HandlerFunc(h.Ingest.Ingest))).Methods(http.MethodPost)

	// Read surface, bearer token
	api := router.PathPrefix("/api").Subrouter()
	api.Use(h.Auth.JWTMiddleware)
	api.HandleFunc("/runs/latest", h.Runs.Latest).Methods(http.MethodGet)
	api.HandleFunc("/runs/{runID}", h.Runs.Get).Methods(http.MethodGet)
	api.HandleFunc("/diagnostics", h.Runs.Diagnostics).Methods(http.MethodGet)
	api.HandleFunc("/notifications", h.Notifications.List).Methods(http.MethodGet)
	api.HandleFunc("/notifications/{notificationID}/read", h.Notifications.MarkRead).Methods(http.MethodPost)

	return router
}

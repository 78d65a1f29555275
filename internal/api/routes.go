package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SetupRoutes configures all API routes. gatherer backs /metrics and may be nil.
func SetupRoutes(handler *Handler, gatherer prometheus.Gatherer) *mux.Router {
	r := mux.NewRouter()
	r.Use(noCache, handler.instrument)

	// Health check
	r.HandleFunc("/health", handler.HealthCheck).Methods("GET")
	if gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})).Methods("GET")
	}

	api := r.PathPrefix("/api/v1").Subrouter()

	// Public routes
	api.HandleFunc("/register", handler.Register).Methods("POST")
	api.HandleFunc("/login", handler.Login).Methods("POST")

	// Session routes
	authed := api.NewRoute().Subrouter()
	authed.Use(handler.requireSession)
	authed.HandleFunc("/logout", handler.Logout).Methods("POST")
	authed.HandleFunc("/quote/{symbol}", handler.GetQuote).Methods("GET")
	authed.HandleFunc("/buy", handler.Buy).Methods("POST")
	authed.HandleFunc("/sell", handler.Sell).Methods("POST")
	authed.HandleFunc("/portfolio", handler.GetPortfolio).Methods("GET")
	authed.HandleFunc("/portfolio/refresh", handler.RefreshPortfolio).Methods("POST")
	authed.HandleFunc("/history", handler.GetHistory).Methods("GET")
	authed.HandleFunc("/cash", handler.AddCash).Methods("POST")
	authed.HandleFunc("/reset", handler.Reset).Methods("POST")

	r.NotFoundHandler = noCache(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		respondMessage(w, http.StatusNotFound, "not found")
	}))

	return r
}

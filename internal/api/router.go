// internal/api/router.go
package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Uyoxy/NexaFx-backend/internal/api/handler"
)

// NewRouter sets up and returns a new HTTP router.
func NewRouter(transactionHandler *handler.TransactionHandler, blockchainHandler *handler.BlockchainHandler, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	// Global middlewares
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(handler.DefaultTimeout))

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	// Prometheus metrics
	r.Handle("/metrics", promhttp.Handler())

	// Transaction ledger routes
	r.Route("/transactions", func(r chi.Router) {
		r.Post("/", transactionHandler.Create)
		r.Get("/", transactionHandler.List)
		r.Post("/swap", transactionHandler.Swap)
		r.Get("/reference/{reference}", transactionHandler.GetByReference)
		r.Get("/{transactionID}", transactionHandler.Get)
		r.Patch("/{transactionID}", transactionHandler.Update)
		r.Delete("/{transactionID}", transactionHandler.Delete)
	})

	// Read-only ledger account queries
	r.Route("/blockchain/stellar/account/{address}", func(r chi.Router) {
		r.Get("/exists", blockchainHandler.AccountExists)
		r.Get("/balances", blockchainHandler.GetBalances)
	})

	return r
}

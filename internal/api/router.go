/**
 * @description
 * This file sets up the HTTP router for the ledger-service. It defines the API
 * endpoints, associates them with their corresponding handlers, and applies
 * standard middleware.
 *
 * @dependencies
 * - net/http: Standard Go library for HTTP functionality.
 * - github.com/go-chi/chi/v5: A lightweight and idiomatic router for Go.
 * - github.com/go-chi/cors: CORS middleware for browser clients.
 */

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// LedgerRoutes creates and returns the router for the ledger service.
// enableTestingEndpoints mounts the balance-seeding endpoint; it must stay off
// outside test deployments.
func LedgerRoutes(h *LedgerHandlers, enableTestingEndpoints bool) http.Handler {
	r := chi.NewRouter()

	// Add standard middleware for logging, panic recovery, and timeouts.
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE"},
		AllowedHeaders: []string{"Content-Type"},
	}))

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("healthy"))
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/", h.WelcomeHandler)

		r.Post("/user-info/new", h.CreateAccountHandler)

		r.Get("/account-info/balance/{email}/{password}", h.GetBalanceHandler)
		r.Get("/account-info/request-history/{email}/{password}", h.GetRequestHistoryHandler)

		r.Post("/transfer/spend", h.SpendHandler)
		r.Post("/transfer/internal", h.InternalTransferHandler)
		r.Post("/transfer/external/create-request", h.CreatePaymentRequestHandler)
		r.Get("/transfer/external/capture-request/{email}/{id}", h.CaptureRequestHandler)

		if enableTestingEndpoints {
			r.Post("/testing/new-with-balance", h.SeedAccountHandler)
		}
	})

	return r
}

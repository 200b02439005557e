/**
 * @description
 * This file contains the HTTP handlers for the ledger-service's API endpoints.
 * Handlers are responsible for parsing incoming requests, calling the
 * appropriate methods on the application service, and writing the HTTP
 * response. They act as the bridge between the web layer and the business
 * logic layer.
 *
 * Error translation lives in one place (respondServiceError) so every
 * endpoint maps the service's error values to the same status codes.
 *
 * @dependencies
 * - encoding/json, log, net/http: Standard Go libraries.
 * - github.com/go-chi/chi/v5: URL parameter extraction.
 * - internal/app, internal/domain, internal/store: For service logic, models, and custom errors.
 */

package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/forebank/ledger-service/internal/app"
	"github.com/forebank/ledger-service/internal/domain"
	"github.com/forebank/ledger-service/internal/store"
)

// LedgerHandlers holds the application service that handlers will use.
type LedgerHandlers struct {
	service *app.Service
}

// NewLedgerHandlers creates a new instance of LedgerHandlers.
func NewLedgerHandlers(service *app.Service) *LedgerHandlers {
	return &LedgerHandlers{service: service}
}

// WelcomeHandler answers the API root with a small liveness payload.
func (h *LedgerHandlers) WelcomeHandler(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"message": "Welcome to the ledger-service API"})
}

// CreateAccountHandler handles requests to open a new account.
func (h *LedgerHandlers) CreateAccountHandler(w http.ResponseWriter, r *http.Request) {
	var payload domain.CreateAccountPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	account, err := h.service.CreateAccount(r.Context(), payload)
	if err != nil {
		h.respondServiceError(w, "create_account", err)
		return
	}
	h.writeJSON(w, http.StatusCreated, account)
}

// SeedAccountHandler handles requests to open a new account with an opening
// balance. The router only mounts this behind the testing-endpoints flag.
func (h *LedgerHandlers) SeedAccountHandler(w http.ResponseWriter, r *http.Request) {
	var payload domain.SeedAccountPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	account, err := h.service.SeedAccount(r.Context(), payload)
	if err != nil {
		h.respondServiceError(w, "seed_account", err)
		return
	}
	h.writeJSON(w, http.StatusCreated, account)
}

// GetBalanceHandler handles credentialed balance reads.
func (h *LedgerHandlers) GetBalanceHandler(w http.ResponseWriter, r *http.Request) {
	email := chi.URLParam(r, "email")
	password := chi.URLParam(r, "password")

	balance, err := h.service.GetBalance(r.Context(), email, password)
	if err != nil {
		h.respondServiceError(w, "get_balance", err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"email": email, "balance": balance})
}

// GetRequestHistoryHandler handles credentialed reads of an account's payment
// request history.
func (h *LedgerHandlers) GetRequestHistoryHandler(w http.ResponseWriter, r *http.Request) {
	email := chi.URLParam(r, "email")
	password := chi.URLParam(r, "password")

	history, err := h.service.GetRequestHistory(r.Context(), email, password)
	if err != nil {
		h.respondServiceError(w, "get_request_history", err)
		return
	}
	h.writeJSON(w, http.StatusOK, history)
}

// SpendHandler handles direct spend requests.
func (h *LedgerHandlers) SpendHandler(w http.ResponseWriter, r *http.Request) {
	var payload domain.SpendPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	newBalance, err := h.service.Spend(r.Context(), payload)
	if err != nil {
		h.respondServiceError(w, "spend", err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"email": payload.Email, "balance": newBalance})
}

// InternalTransferHandler handles peer-to-peer transfer requests.
func (h *LedgerHandlers) InternalTransferHandler(w http.ResponseWriter, r *http.Request) {
	var payload domain.InternalTransferPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	result, err := h.service.InternalTransfer(r.Context(), payload)
	if err != nil {
		h.respondServiceError(w, "internal_transfer", err)
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

// CreatePaymentRequestHandler handles requests to open an externally funded
// payment request.
func (h *LedgerHandlers) CreatePaymentRequestHandler(w http.ResponseWriter, r *http.Request) {
	var payload domain.CreatePaymentRequestPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	result, err := h.service.CreatePaymentRequest(r.Context(), payload)
	if err != nil {
		h.respondServiceError(w, "create_payment_request", err)
		return
	}
	h.writeJSON(w, http.StatusCreated, result)
}

// CaptureRequestHandler handles the processor's return redirect: it captures
// the approved order and credits the account. The route carries no credential
// on purpose; the unguessable request id is the authorization.
func (h *LedgerHandlers) CaptureRequestHandler(w http.ResponseWriter, r *http.Request) {
	email := chi.URLParam(r, "email")
	requestID := chi.URLParam(r, "id")

	newBalance, err := h.service.CaptureRequest(r.Context(), email, requestID)
	if err != nil {
		h.respondServiceError(w, "capture_request", err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Payment captured successfully",
		"email":   email,
		"balance": newBalance,
	})
}

// respondServiceError maps service and store error values onto HTTP statuses.
func (h *LedgerHandlers) respondServiceError(w http.ResponseWriter, endpoint string, err error) {
	var limitErr *app.RateLimitError
	switch {
	case errors.As(err, &limitErr):
		w.Header().Set("Retry-After", strconv.Itoa(limitErr.RetryAfterSeconds))
		h.writeError(w, http.StatusTooManyRequests, "Too many requests, slow down")
	case errors.Is(err, app.ErrInvalidInput):
		h.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, app.ErrSpendRejected):
		h.writeError(w, http.StatusBadRequest, "Invalid credentials or insufficient funds")
	case errors.Is(err, store.ErrInsufficientFunds):
		h.writeError(w, http.StatusBadRequest, "Insufficient funds")
	case errors.Is(err, app.ErrUnauthorized), errors.Is(err, store.ErrCredentialMismatch):
		h.writeError(w, http.StatusUnauthorized, "Invalid credentials")
	case errors.Is(err, store.ErrAccountNotFound):
		h.writeError(w, http.StatusNotFound, "Account not found")
	case errors.Is(err, store.ErrRequestNotFound):
		h.writeError(w, http.StatusNotFound, "Payment request not found")
	case errors.Is(err, store.ErrAccountExists):
		h.writeError(w, http.StatusConflict, "An account with this email already exists")
	case errors.Is(err, store.ErrRequestAlreadyCaptured):
		h.writeError(w, http.StatusConflict, "Payment request has already been captured")
	case errors.Is(err, app.ErrProcessorUnavailable):
		h.writeError(w, http.StatusServiceUnavailable, "Payment processor is unavailable, try again later")
	default:
		log.Printf("level=error component=api endpoint=%s outcome=failed err=%v", endpoint, err)
		h.writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}

// writeJSON is a helper for writing JSON responses.
func (h *LedgerHandlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// writeError is a helper for writing JSON error responses.
func (h *LedgerHandlers) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}

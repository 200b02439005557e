/**
 * @description
 * This file defines the core domain models for the ledger-service. These
 * structs represent the main entities and data transfer objects (DTOs) used
 * throughout the service's business logic, database interactions, and API
 * layers.
 *
 * @notes
 * - Amounts are carried as `money.Money`, a fixed-point decimal with scale 2.
 *   Monetary values are never represented as binary floats anywhere in the
 *   service.
 * - PaymentRequest entries are owned by exactly one Account and are only ever
 *   appended; the sole in-place mutation is the pending -> captured status
 *   transition performed by the store.
 */

package domain

import (
	"regexp"
	"time"

	"github.com/forebank/ledger-service/internal/money"
)

// Payment request lifecycle states. The only legal transition is
// RequestStatusPendingApproval -> RequestStatusCaptured.
const (
	RequestStatusPendingApproval = "pending-approval"
	RequestStatusCaptured        = "captured-by-server"
)

var emailPattern = regexp.MustCompile(`^\S+@\S+\.\S+$`)

// IsValidEmailFormat reports whether s looks like an account identity
// (an email-shaped string). Identities are validated at every boundary
// before any store lookup.
func IsValidEmailFormat(s string) bool {
	return emailPattern.MatchString(s)
}

// Account is a custodial ledger account. The email is the unique, immutable
// identity key. PasswordHash is opaque to the core: it is only ever compared
// against a supplied secret by the credential verifier.
type Account struct {
	Email        string      `json:"email"`
	PasswordHash string      `json:"-"`
	Balance      money.Money `json:"balance"`
	CreatedAt    time.Time   `json:"created_at"`
}

// PaymentRequest is one externally funded money request in an account's
// history. RequestID is the server-generated correlation token; OrderID is the
// identifier issued by the payment processor.
type PaymentRequest struct {
	RequestID    string      `json:"request_id"`
	OrderID      string      `json:"order_id"`
	Status       string      `json:"status"`
	Amount       money.Money `json:"amount"`
	CaptureURL   string      `json:"capture_url"`
	ViewURL      string      `json:"view_url"`
	TimeCreated  time.Time   `json:"time_created"`
	TimeCaptured *time.Time  `json:"time_captured"`
}

// CreateAccountPayload is the DTO for account creation requests.
type CreateAccountPayload struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SeedAccountPayload is the DTO for the flag-gated seeding endpoint that
// creates an account with an opening balance.
type SeedAccountPayload struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Balance  string `json:"balance"`
}

// SpendPayload is the DTO for direct spend requests. Amount stays a string
// until the strict money parser has accepted it.
type SpendPayload struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Amount   string `json:"amount"`
}

// InternalTransferPayload is the DTO for peer-to-peer transfer requests.
type InternalTransferPayload struct {
	Sender         string `json:"sender"`
	Receiver       string `json:"receiver"`
	SenderPassword string `json:"senderPassword"`
	Amount         string `json:"amount"`
}

// InternalTransferResult carries the post-commit balances of both accounts.
type InternalTransferResult struct {
	SenderBalance   money.Money `json:"senderBalance"`
	ReceiverBalance money.Money `json:"receiverBalance"`
}

// CreatePaymentRequestPayload is the DTO for creating an externally funded
// payment request.
type CreatePaymentRequestPayload struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Amount   string `json:"amount"`
}

// CreatePaymentRequestResult is returned after the processor order has been
// created and the pending request recorded.
type CreatePaymentRequestResult struct {
	RequestID     string `json:"request_id"`
	CompletionURL string `json:"completionUrl"`
}

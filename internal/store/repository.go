/**
 * @description
 * This file defines the `Repository` interface, which specifies the contract
 * for all data access operations required by the ledger-service. The store is
 * the only component permitted to write balances; every mutation it exposes is
 * an atomic primitive (conditional update or multi-account transaction), never
 * a read followed by a separate write.
 *
 * @dependencies
 * - context, time: Standard Go libraries.
 * - internal/domain, internal/money: Domain models and the decimal money type.
 */

package store

import (
	"context"
	"time"

	"github.com/forebank/ledger-service/internal/domain"
	"github.com/forebank/ledger-service/internal/money"
)

// Repository defines the set of atomic primitives for interacting with the
// ledger's persistence layer.
type Repository interface {
	// CreateAccount inserts a new account with the given opening balance.
	// Exactly one of two racing creations for the same email succeeds; the
	// loser gets ErrAccountExists.
	CreateAccount(ctx context.Context, email, passwordHash string, openingBalance money.Money) (*domain.Account, error)

	// FindAccountByEmail returns the account, including its credential hash,
	// or ErrAccountNotFound.
	FindAccountByEmail(ctx context.Context, email string) (*domain.Account, error)

	// ConditionalDebit decrements the balance by amount iff the stored
	// credential hash still equals passwordHash and the balance covers the
	// amount, evaluated and applied as one statement. Returns the post-debit
	// balance, or ErrDebitConditionFailed when the predicate did not hold.
	// The caller cannot distinguish a stale credential from insufficient
	// funds; that ambiguity is intentional.
	ConditionalDebit(ctx context.Context, email, passwordHash string, amount money.Money) (money.Money, error)

	// Credit increments the balance unconditionally and returns the new
	// balance, or ErrAccountNotFound.
	Credit(ctx context.Context, email string, amount money.Money) (money.Money, error)

	// TransferFunds moves amount from sender to receiver inside one
	// all-or-nothing transaction. The sender row is locked and re-read, the
	// verify callback gates on the credential hash seen at apply time, the
	// debit carries the balance-sufficiency predicate, and the receiver
	// credit lands in the same transaction. Either both mutations commit or
	// neither does.
	TransferFunds(ctx context.Context, sender, receiver string, amount money.Money, verify func(passwordHash string) bool) (*domain.InternalTransferResult, error)

	// AppendPaymentRequest records a new pending-approval request for the
	// account, or ErrAccountNotFound.
	AppendPaymentRequest(ctx context.Context, email string, req *domain.PaymentRequest) error

	// FindPaymentRequest returns one request in the account's history, or
	// ErrAccountNotFound / ErrRequestNotFound.
	FindPaymentRequest(ctx context.Context, email, requestID string) (*domain.PaymentRequest, error)

	// ListPaymentRequests returns the account's request history in insertion
	// order.
	ListPaymentRequests(ctx context.Context, email string) ([]domain.PaymentRequest, error)

	// CapturePaymentRequest flips the request status from pending-approval to
	// captured-by-server and credits the request amount to the account's
	// balance, as a single transaction. The status transition is the
	// idempotency gate: a request already captured yields
	// ErrRequestAlreadyCaptured and no second credit, ever.
	CapturePaymentRequest(ctx context.Context, email, requestID string, capturedAt time.Time) (money.Money, error)
}

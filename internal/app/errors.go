/**
 * @description
 * This file defines the application-level error values the service layer
 * returns to the API. Store-level sentinels (not-found, conflict, insufficient
 * funds) pass through untouched; the errors here cover the cases the service
 * itself decides.
 */

package app

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput is wrapped around a human-readable detail whenever a
	// payload fails validation before any side effect.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnauthorized is returned when a supplied credential does not match
	// the account's stored hash on a read or request-creation path.
	ErrUnauthorized = errors.New("invalid credentials")

	// ErrSpendRejected deliberately collapses a stale credential and an
	// insufficient balance into one answer so the spend endpoint never
	// reveals which condition failed.
	ErrSpendRejected = errors.New("invalid credentials or insufficient funds")

	// ErrProcessorUnavailable is returned when the payment processor could
	// not be reached or answered with an error. Ledger state is unchanged
	// whenever this is returned.
	ErrProcessorUnavailable = errors.New("payment processor unavailable")
)

// RateLimitError signals that a caller exceeded a per-account rate limit.
// RetryAfterSeconds feeds the Retry-After response header.
type RateLimitError struct {
	Scope             string
	RetryAfterSeconds int
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded for %s, retry in %ds", e.Scope, e.RetryAfterSeconds)
}

func invalidInput(detail string) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, detail)
}

/**
 * @description
 * This file provides the PostgreSQL implementation of the `Repository`
 * interface. Balances are stored as NUMERIC(12,2) and always cross the driver
 * boundary as text, parsed through the strict money type; they never round-trip
 * through binary floats.
 *
 * Every mutating primitive is either a single conditional UPDATE (the predicate
 * and the write are one statement) or a pgx transaction that commits both
 * sides or neither.
 *
 * @dependencies
 * - context, errors, time: Standard Go libraries.
 * - github.com/jackc/pgx/v5: The PostgreSQL driver for database operations.
 * - internal/domain, internal/money: Domain models and the decimal money type.
 */

package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/forebank/ledger-service/internal/domain"
	"github.com/forebank/ledger-service/internal/money"
)

var (
	ErrAccountNotFound        = errors.New("account not found")
	ErrAccountExists          = errors.New("account already exists")
	ErrDebitConditionFailed   = errors.New("debit condition failed")
	ErrCredentialMismatch     = errors.New("credential mismatch")
	ErrInsufficientFunds      = errors.New("insufficient funds")
	ErrRequestNotFound        = errors.New("payment request not found")
	ErrRequestAlreadyCaptured = errors.New("payment request already captured")
)

const uniqueViolationCode = "23505"

// PostgresRepository is a concrete implementation of the Repository interface
// for PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository creates a new instance of PostgresRepository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// EnsureSchema creates the ledger tables if they do not exist yet.
func (r *PostgresRepository) EnsureSchema(ctx context.Context) error {
	schema := `
		CREATE TABLE IF NOT EXISTS accounts (
			email         TEXT PRIMARY KEY,
			password_hash TEXT NOT NULL,
			balance       NUMERIC(12,2) NOT NULL DEFAULT 0.00 CHECK (balance >= 0),
			created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE TABLE IF NOT EXISTS payment_requests (
			id            UUID PRIMARY KEY,
			account_email TEXT NOT NULL REFERENCES accounts(email),
			order_id      TEXT NOT NULL,
			status        TEXT NOT NULL,
			amount        NUMERIC(12,2) NOT NULL CHECK (amount >= 0),
			capture_url   TEXT NOT NULL,
			view_url      TEXT NOT NULL,
			time_created  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			time_captured TIMESTAMPTZ
		);
		CREATE INDEX IF NOT EXISTS idx_payment_requests_account
			ON payment_requests (account_email, time_created);
	`
	_, err := r.db.Exec(ctx, schema)
	return err
}

// CreateAccount inserts a new account row. The primary key constraint is what
// guarantees exactly one winner when two creations race on the same email.
func (r *PostgresRepository) CreateAccount(ctx context.Context, email, passwordHash string, openingBalance money.Money) (*domain.Account, error) {
	query := `
		INSERT INTO accounts (email, password_hash, balance)
		VALUES ($1, $2, $3::numeric)
		RETURNING email, password_hash, balance::text, created_at
	`
	var account domain.Account
	var balanceText string
	err := r.db.QueryRow(ctx, query, email, passwordHash, openingBalance.String()).Scan(
		&account.Email, &account.PasswordHash, &balanceText, &account.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			return nil, ErrAccountExists
		}
		return nil, err
	}
	account.Balance, err = money.Parse(balanceText)
	if err != nil {
		return nil, fmt.Errorf("stored balance unparsable: %w", err)
	}
	return &account, nil
}

// FindAccountByEmail retrieves an account row, including the credential hash.
func (r *PostgresRepository) FindAccountByEmail(ctx context.Context, email string) (*domain.Account, error) {
	var account domain.Account
	var balanceText string
	query := `SELECT email, password_hash, balance::text, created_at FROM accounts WHERE email = $1`
	err := r.db.QueryRow(ctx, query, email).Scan(&account.Email, &account.PasswordHash, &balanceText, &account.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	account.Balance, err = money.Parse(balanceText)
	if err != nil {
		return nil, fmt.Errorf("stored balance unparsable: %w", err)
	}
	return &account, nil
}

// ConditionalDebit applies the balance decrement in one statement whose WHERE
// clause carries both the credential gate and the sufficiency predicate. Zero
// rows means the predicate did not hold at apply time; the caller cannot tell
// which half failed.
func (r *PostgresRepository) ConditionalDebit(ctx context.Context, email, passwordHash string, amount money.Money) (money.Money, error) {
	query := `
		UPDATE accounts
		SET balance = balance - $1::numeric
		WHERE email = $2
		  AND password_hash = $3
		  AND balance >= $1::numeric
		RETURNING balance::text
	`
	var balanceText string
	err := r.db.QueryRow(ctx, query, amount.String(), email, passwordHash).Scan(&balanceText)
	if err != nil {
		if err == pgx.ErrNoRows {
			return money.Money{}, ErrDebitConditionFailed
		}
		return money.Money{}, err
	}
	return money.Parse(balanceText)
}

// Credit increments the balance unconditionally.
func (r *PostgresRepository) Credit(ctx context.Context, email string, amount money.Money) (money.Money, error) {
	query := `
		UPDATE accounts
		SET balance = balance + $1::numeric
		WHERE email = $2
		RETURNING balance::text
	`
	var balanceText string
	err := r.db.QueryRow(ctx, query, amount.String(), email).Scan(&balanceText)
	if err != nil {
		if err == pgx.ErrNoRows {
			return money.Money{}, ErrAccountNotFound
		}
		return money.Money{}, err
	}
	return money.Parse(balanceText)
}

// TransferFunds performs the dual-account debit+credit as one transaction.
// The sender row is locked with FOR UPDATE so the credential hash handed to
// the verify callback is the hash in effect when the debit applies.
func (r *PostgresRepository) TransferFunds(ctx context.Context, sender, receiver string, amount money.Money, verify func(passwordHash string) bool) (*domain.InternalTransferResult, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	var passwordHash string
	err = tx.QueryRow(ctx, `SELECT password_hash FROM accounts WHERE email = $1 FOR UPDATE`, sender).Scan(&passwordHash)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}

	if verify == nil || !verify(passwordHash) {
		return nil, ErrCredentialMismatch
	}

	debitQuery := `
		UPDATE accounts
		SET balance = balance - $1::numeric
		WHERE email = $2
		  AND password_hash = $3
		  AND balance >= $1::numeric
		RETURNING balance::text
	`
	var senderBalanceText string
	err = tx.QueryRow(ctx, debitQuery, amount.String(), sender, passwordHash).Scan(&senderBalanceText)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrInsufficientFunds
		}
		return nil, err
	}

	creditQuery := `
		UPDATE accounts
		SET balance = balance + $1::numeric
		WHERE email = $2
		RETURNING balance::text
	`
	var receiverBalanceText string
	err = tx.QueryRow(ctx, creditQuery, amount.String(), receiver).Scan(&receiverBalanceText)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	senderBalance, err := money.Parse(senderBalanceText)
	if err != nil {
		return nil, fmt.Errorf("stored sender balance unparsable: %w", err)
	}
	receiverBalance, err := money.Parse(receiverBalanceText)
	if err != nil {
		return nil, fmt.Errorf("stored receiver balance unparsable: %w", err)
	}
	return &domain.InternalTransferResult{
		SenderBalance:   senderBalance,
		ReceiverBalance: receiverBalance,
	}, nil
}

// AppendPaymentRequest inserts a new pending-approval entry into the account's
// request history.
func (r *PostgresRepository) AppendPaymentRequest(ctx context.Context, email string, req *domain.PaymentRequest) error {
	query := `
		INSERT INTO payment_requests (
			id, account_email, order_id, status, amount, capture_url, view_url, time_created
		)
		VALUES ($1::uuid, $2, $3, $4, $5::numeric, $6, $7, $8)
	`
	_, err := r.db.Exec(ctx, query,
		req.RequestID,
		email,
		req.OrderID,
		req.Status,
		req.Amount.String(),
		req.CaptureURL,
		req.ViewURL,
		req.TimeCreated,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		// 23503: the referenced account row is missing.
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return ErrAccountNotFound
		}
		return err
	}
	return nil
}

// FindPaymentRequest returns one entry from the account's request history.
func (r *PostgresRepository) FindPaymentRequest(ctx context.Context, email, requestID string) (*domain.PaymentRequest, error) {
	query := `
		SELECT id::text, order_id, status, amount::text, capture_url, view_url, time_created, time_captured
		FROM payment_requests
		WHERE id = $1::uuid AND account_email = $2
	`
	req, err := scanPaymentRequest(r.db.QueryRow(ctx, query, requestID, email))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrRequestNotFound
		}
		return nil, err
	}
	return req, nil
}

// ListPaymentRequests returns the account's full request history in insertion
// order.
func (r *PostgresRepository) ListPaymentRequests(ctx context.Context, email string) ([]domain.PaymentRequest, error) {
	if _, err := r.FindAccountByEmail(ctx, email); err != nil {
		return nil, err
	}

	query := `
		SELECT id::text, order_id, status, amount::text, capture_url, view_url, time_created, time_captured
		FROM payment_requests
		WHERE account_email = $1
		ORDER BY time_created ASC
	`
	rows, err := r.db.Query(ctx, query, email)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	history := []domain.PaymentRequest{}
	for rows.Next() {
		req, err := scanPaymentRequest(rows)
		if err != nil {
			return nil, err
		}
		history = append(history, *req)
	}
	return history, rows.Err()
}

// CapturePaymentRequest is the idempotency gate for external captures. The
// status transition is a conditional UPDATE that only matches a
// pending-approval row; the balance credit rides in the same transaction, so
// either the request flips and the money lands, or nothing changes.
func (r *PostgresRepository) CapturePaymentRequest(ctx context.Context, email, requestID string, capturedAt time.Time) (money.Money, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return money.Money{}, err
	}
	defer tx.Rollback(ctx)

	transitionQuery := `
		UPDATE payment_requests
		SET status = $3, time_captured = $4
		WHERE id = $1::uuid
		  AND account_email = $2
		  AND status = $5
		RETURNING amount::text
	`
	var amountText string
	err = tx.QueryRow(ctx, transitionQuery,
		requestID, email, domain.RequestStatusCaptured, capturedAt, domain.RequestStatusPendingApproval,
	).Scan(&amountText)
	if err != nil {
		if err == pgx.ErrNoRows {
			// Distinguish a missing request from a lost transition race.
			var status string
			statusErr := tx.QueryRow(ctx,
				`SELECT status FROM payment_requests WHERE id = $1::uuid AND account_email = $2`,
				requestID, email,
			).Scan(&status)
			if statusErr == pgx.ErrNoRows {
				return money.Money{}, ErrRequestNotFound
			}
			if statusErr != nil {
				return money.Money{}, statusErr
			}
			return money.Money{}, ErrRequestAlreadyCaptured
		}
		return money.Money{}, err
	}

	amount, err := money.Parse(amountText)
	if err != nil {
		return money.Money{}, fmt.Errorf("stored request amount unparsable: %w", err)
	}

	creditQuery := `
		UPDATE accounts
		SET balance = balance + $1::numeric
		WHERE email = $2
		RETURNING balance::text
	`
	var balanceText string
	err = tx.QueryRow(ctx, creditQuery, amount.String(), email).Scan(&balanceText)
	if err != nil {
		if err == pgx.ErrNoRows {
			return money.Money{}, ErrAccountNotFound
		}
		return money.Money{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return money.Money{}, err
	}
	return money.Parse(balanceText)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPaymentRequest(row rowScanner) (*domain.PaymentRequest, error) {
	var req domain.PaymentRequest
	var amountText string
	err := row.Scan(
		&req.RequestID,
		&req.OrderID,
		&req.Status,
		&amountText,
		&req.CaptureURL,
		&req.ViewURL,
		&req.TimeCreated,
		&req.TimeCaptured,
	)
	if err != nil {
		return nil, err
	}
	req.Amount, err = money.Parse(amountText)
	if err != nil {
		return nil, fmt.Errorf("stored request amount unparsable: %w", err)
	}
	return &req, nil
}

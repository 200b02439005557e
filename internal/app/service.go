/**
 * @description
 * This file contains the core business logic for the ledger-service. The
 * `Service` struct orchestrates all money movement operations, coordinating
 * between the database repository, the payment processor client, and the
 * message broker.
 *
 * Key features:
 * - Implements the main use cases: account lifecycle, direct spends and
 *   peer-to-peer transfers.
 * - Every balance mutation is delegated to an atomic store primitive; the
 *   service never reads a balance and writes it back.
 * - Publishes events to RabbitMQ for asynchronous processing by other
 *   services. Event publishing is advisory and never blocks an operation.
 *
 * @dependencies
 * - context, errors, log, time: Standard Go libraries.
 * - internal/domain, internal/money, internal/security, internal/store:
 *   Domain models, the decimal money type, credential hashing, data access.
 * - pkg/rabbitmq: Event publishing.
 */

package app

import (
	"context"
	"log"
	"time"

	"github.com/forebank/ledger-service/internal/domain"
	"github.com/forebank/ledger-service/internal/money"
	"github.com/forebank/ledger-service/internal/security"
	"github.com/forebank/ledger-service/internal/store"
	"github.com/forebank/ledger-service/pkg/rabbitmq"
)

// RateLimitPolicy bounds how often one account may hit a limited operation.
// A zero Limit or Window disables the policy.
type RateLimitPolicy struct {
	Limit  int
	Window time.Duration
}

// Credentials is the credential backend the service depends on.
// security.BcryptCredentials satisfies it.
type Credentials interface {
	security.CredentialHasher
	security.CredentialVerifier
}

// Service provides the core business logic for the ledger.
type Service struct {
	repo        store.Repository
	credentials Credentials
	processor   PaymentProcessor
	events      rabbitmq.Publisher
	limiter     RateLimiter

	serverBaseURL    string
	maxRequestAmount money.Money
	spendPolicy      RateLimitPolicy
	capturePolicy    RateLimitPolicy
}

// NewService creates a new ledger service instance. limiter may be nil, in
// which case no rate limiting is applied.
func NewService(
	repo store.Repository,
	credentials Credentials,
	processor PaymentProcessor,
	events rabbitmq.Publisher,
	limiter RateLimiter,
	serverBaseURL string,
	maxRequestAmount money.Money,
	spendPolicy, capturePolicy RateLimitPolicy,
) *Service {
	return &Service{
		repo:             repo,
		credentials:      credentials,
		processor:        processor,
		events:           events,
		limiter:          limiter,
		serverBaseURL:    serverBaseURL,
		maxRequestAmount: maxRequestAmount,
		spendPolicy:      spendPolicy,
		capturePolicy:    capturePolicy,
	}
}

// CreateAccount opens a new custodial account with a zero balance. The
// plaintext password is hashed here and never stored or logged.
func (s *Service) CreateAccount(ctx context.Context, payload domain.CreateAccountPayload) (*domain.Account, error) {
	if !domain.IsValidEmailFormat(payload.Email) {
		return nil, invalidInput("email is not in a valid format")
	}
	if payload.Password == "" {
		return nil, invalidInput("password must not be empty")
	}

	hash, err := s.credentials.Hash(payload.Password)
	if err != nil {
		return nil, err
	}

	account, err := s.repo.CreateAccount(ctx, payload.Email, hash, money.Zero())
	if err != nil {
		return nil, err
	}

	s.publish(ctx, rabbitmq.RoutingKeyAccountCreated, rabbitmq.AccountCreatedEvent{
		Email:     account.Email,
		Timestamp: time.Now().UTC(),
	})
	log.Printf("level=info component=service op=create_account email=%s", account.Email)
	return account, nil
}

// SeedAccount opens a new account with a caller-supplied opening balance. The
// router only exposes this behind the testing-endpoints flag.
func (s *Service) SeedAccount(ctx context.Context, payload domain.SeedAccountPayload) (*domain.Account, error) {
	if !domain.IsValidEmailFormat(payload.Email) {
		return nil, invalidInput("email is not in a valid format")
	}
	if payload.Password == "" {
		return nil, invalidInput("password must not be empty")
	}
	balance, err := money.Parse(payload.Balance)
	if err != nil {
		return nil, invalidInput("balance must be a decimal amount with at most two fraction digits")
	}

	hash, err := s.credentials.Hash(payload.Password)
	if err != nil {
		return nil, err
	}

	account, err := s.repo.CreateAccount(ctx, payload.Email, hash, balance)
	if err != nil {
		return nil, err
	}
	log.Printf("level=info component=service op=seed_account email=%s", account.Email)
	return account, nil
}

// GetBalance returns the account's current balance after verifying the
// supplied credential.
func (s *Service) GetBalance(ctx context.Context, email, password string) (money.Money, error) {
	account, err := s.authenticate(ctx, email, password)
	if err != nil {
		return money.Zero(), err
	}
	return account.Balance, nil
}

// GetRequestHistory returns the account's payment request history in
// insertion order, after verifying the supplied credential.
func (s *Service) GetRequestHistory(ctx context.Context, email, password string) ([]domain.PaymentRequest, error) {
	if _, err := s.authenticate(ctx, email, password); err != nil {
		return nil, err
	}
	history, err := s.repo.ListPaymentRequests(ctx, email)
	if err != nil {
		return nil, err
	}
	// An account with no requests yields an empty array on the wire, not null.
	if history == nil {
		history = []domain.PaymentRequest{}
	}
	return history, nil
}

// Spend debits the account by the given amount. Authentication and balance
// sufficiency are evaluated inside one conditional store update, and every
// failure mode past validation collapses into ErrSpendRejected so the caller
// cannot probe which condition failed.
func (s *Service) Spend(ctx context.Context, payload domain.SpendPayload) (money.Money, error) {
	if !domain.IsValidEmailFormat(payload.Email) {
		return money.Zero(), invalidInput("email is not in a valid format")
	}
	amount, err := money.Parse(payload.Amount)
	if err != nil {
		return money.Zero(), invalidInput("amount must be a decimal amount with at most two fraction digits")
	}
	if amount.IsZero() {
		return money.Zero(), invalidInput("amount must be greater than zero")
	}

	if err := s.consumeLimit(ctx, RateLimitScopeSpend, payload.Email, s.spendPolicy); err != nil {
		return money.Zero(), err
	}

	account, err := s.repo.FindAccountByEmail(ctx, payload.Email)
	if err != nil {
		return money.Zero(), ErrSpendRejected
	}
	if !s.credentials.Verify(payload.Password, account.PasswordHash) {
		return money.Zero(), ErrSpendRejected
	}

	// The predicate re-checks the hash at apply time, so a concurrent
	// credential rotation between the verify above and the update below
	// still rejects the debit.
	newBalance, err := s.repo.ConditionalDebit(ctx, payload.Email, account.PasswordHash, amount)
	if err != nil {
		return money.Zero(), ErrSpendRejected
	}

	log.Printf("level=info component=service op=spend email=%s amount=%s", payload.Email, amount.String())
	return newBalance, nil
}

// InternalTransfer moves funds between two accounts atomically. The receiver
// is checked up front so a missing receiver fails before any debit; the
// sender's credential and balance are gated inside the store transaction.
func (s *Service) InternalTransfer(ctx context.Context, payload domain.InternalTransferPayload) (*domain.InternalTransferResult, error) {
	if !domain.IsValidEmailFormat(payload.Sender) {
		return nil, invalidInput("sender is not in a valid format")
	}
	if !domain.IsValidEmailFormat(payload.Receiver) {
		return nil, invalidInput("receiver is not in a valid format")
	}
	if payload.Sender == payload.Receiver {
		return nil, invalidInput("sender and receiver must differ")
	}
	amount, err := money.Parse(payload.Amount)
	if err != nil {
		return nil, invalidInput("amount must be a decimal amount with at most two fraction digits")
	}
	if amount.IsZero() {
		return nil, invalidInput("amount must be greater than zero")
	}

	if err := s.consumeLimit(ctx, RateLimitScopeSpend, payload.Sender, s.spendPolicy); err != nil {
		return nil, err
	}

	if _, err := s.repo.FindAccountByEmail(ctx, payload.Receiver); err != nil {
		return nil, err
	}

	result, err := s.repo.TransferFunds(ctx, payload.Sender, payload.Receiver, amount, func(passwordHash string) bool {
		return s.credentials.Verify(payload.SenderPassword, passwordHash)
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, rabbitmq.RoutingKeyTransferCompleted, rabbitmq.InternalTransferCompletedEvent{
		Sender:    payload.Sender,
		Receiver:  payload.Receiver,
		Amount:    amount.String(),
		Timestamp: time.Now().UTC(),
	})
	log.Printf("level=info component=service op=internal_transfer sender=%s receiver=%s amount=%s", payload.Sender, payload.Receiver, amount.String())
	return result, nil
}

// authenticate loads the account and verifies the credential. A missing
// account surfaces as ErrAccountNotFound; a bad credential as ErrUnauthorized.
func (s *Service) authenticate(ctx context.Context, email, password string) (*domain.Account, error) {
	if !domain.IsValidEmailFormat(email) {
		return nil, invalidInput("email is not in a valid format")
	}
	account, err := s.repo.FindAccountByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if !s.credentials.Verify(password, account.PasswordHash) {
		return nil, ErrUnauthorized
	}
	return account, nil
}

func (s *Service) consumeLimit(ctx context.Context, scope, subject string, policy RateLimitPolicy) error {
	if s.limiter == nil || policy.Limit <= 0 || policy.Window <= 0 {
		return nil
	}
	count, retryAfter, err := s.limiter.ConsumeRateLimit(ctx, scope, subject, policy.Limit, policy.Window)
	if err != nil {
		// A limiter outage must not take money movement down with it.
		log.Printf("level=warn component=service msg=\"rate limiter unavailable; allowing request\" scope=%s err=%v", scope, err)
		return nil
	}
	if count > policy.Limit {
		return &RateLimitError{Scope: scope, RetryAfterSeconds: retryAfter}
	}
	return nil
}

func (s *Service) publish(ctx context.Context, routingKey string, event interface{}) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, rabbitmq.EventsExchange, routingKey, event); err != nil {
		log.Printf("level=warn component=service msg=\"event publish failed\" routing_key=%s err=%v", routingKey, err)
	}
}

/**
 * @description
 * This file implements the external payment request flow: creating a
 * processor order for a requested amount, recording the pending request, and
 * later capturing the approved order and crediting the account.
 *
 * The capture path is the only place external money enters the ledger. Its
 * ordering is deliberate: the processor capture call happens first, and the
 * local status transition plus credit happen afterwards in one store
 * transaction. A processor failure therefore leaves the request pending and
 * retryable, while the status transition guarantees at most one credit per
 * request no matter how many capture attempts race.
 */

package app

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/forebank/ledger-service/internal/domain"
	"github.com/forebank/ledger-service/internal/money"
	"github.com/forebank/ledger-service/internal/store"
	"github.com/forebank/ledger-service/pkg/paypalclient"
	"github.com/forebank/ledger-service/pkg/rabbitmq"
)

// PaymentProcessor is the slice of the processor client the service uses.
type PaymentProcessor interface {
	CreateOrder(ctx context.Context, amount, itemName, returnURL string) (*paypalclient.Order, error)
	CaptureOrder(ctx context.Context, captureURL string) (*paypalclient.CaptureResult, error)
}

// CreatePaymentRequest opens an externally funded payment request: it creates
// a capture-intent order at the processor and appends a pending request to the
// account's history. No balance changes here.
func (s *Service) CreatePaymentRequest(ctx context.Context, payload domain.CreatePaymentRequestPayload) (*domain.CreatePaymentRequestResult, error) {
	amount, err := s.validateRequestAmount(payload.Amount)
	if err != nil {
		return nil, err
	}

	account, err := s.authenticate(ctx, payload.Email, payload.Password)
	if err != nil {
		return nil, err
	}

	requestID := uuid.NewString()
	returnURL := fmt.Sprintf("%s/api/transfer/external/capture-request/%s/%s", s.serverBaseURL, account.Email, requestID)

	order, err := s.processor.CreateOrder(ctx, amount.String(), "Money request for "+account.Email, returnURL)
	if err != nil {
		log.Printf("level=warn component=service op=create_payment_request email=%s msg=\"processor order creation failed\" err=%v", account.Email, err)
		return nil, ErrProcessorUnavailable
	}

	request := &domain.PaymentRequest{
		RequestID:   requestID,
		OrderID:     order.OrderID,
		Status:      domain.RequestStatusPendingApproval,
		Amount:      amount,
		CaptureURL:  order.CaptureURL,
		ViewURL:     order.ViewURL,
		TimeCreated: time.Now().UTC(),
	}
	if err := s.repo.AppendPaymentRequest(ctx, account.Email, request); err != nil {
		return nil, err
	}

	log.Printf("level=info component=service op=create_payment_request email=%s request_id=%s order_id=%s amount=%s",
		account.Email, requestID, order.OrderID, amount.String())
	return &domain.CreatePaymentRequestResult{
		RequestID:     requestID,
		CompletionURL: order.ApproveURL,
	}, nil
}

// CaptureRequest settles a payer-approved request: it captures the processor
// order and then, in one store transaction, flips the request to captured and
// credits the account. Returns the post-credit balance.
//
// Retry contract: a processor failure returns ErrProcessorUnavailable with
// the request still pending, so the capture link can simply be followed
// again. A request that already reached captured returns
// ErrRequestAlreadyCaptured and never credits twice.
func (s *Service) CaptureRequest(ctx context.Context, email, requestID string) (money.Money, error) {
	if !domain.IsValidEmailFormat(email) {
		return money.Zero(), invalidInput("email is not in a valid format")
	}
	if _, err := uuid.Parse(requestID); err != nil {
		return money.Zero(), invalidInput("request id is not in a valid format")
	}

	if err := s.consumeLimit(ctx, RateLimitScopeCapture, email, s.capturePolicy); err != nil {
		return money.Zero(), err
	}

	request, err := s.repo.FindPaymentRequest(ctx, email, requestID)
	if err != nil {
		return money.Zero(), err
	}
	if request.Status == domain.RequestStatusCaptured {
		return money.Zero(), store.ErrRequestAlreadyCaptured
	}

	if _, err := s.processor.CaptureOrder(ctx, request.CaptureURL); err != nil {
		log.Printf("level=warn component=service op=capture_request email=%s request_id=%s msg=\"processor capture failed; request stays pending\" err=%v",
			email, requestID, err)
		return money.Zero(), ErrProcessorUnavailable
	}

	// ErrRequestAlreadyCaptured here means a concurrent capture won the
	// transition after our pre-check. The ledger still credited exactly once.
	newBalance, err := s.repo.CapturePaymentRequest(ctx, email, requestID, time.Now().UTC())
	if err != nil {
		return money.Zero(), err
	}

	s.publish(ctx, rabbitmq.RoutingKeyRequestCaptured, rabbitmq.PaymentRequestCapturedEvent{
		Email:     email,
		RequestID: requestID,
		OrderID:   request.OrderID,
		Amount:    request.Amount.String(),
		Timestamp: time.Now().UTC(),
	})
	log.Printf("level=info component=service op=capture_request email=%s request_id=%s amount=%s", email, requestID, request.Amount.String())
	return newBalance, nil
}

func (s *Service) validateRequestAmount(raw string) (money.Money, error) {
	amount, err := money.Parse(raw)
	if err != nil {
		return money.Zero(), invalidInput("amount must be a decimal amount with at most two fraction digits")
	}
	if amount.IsZero() {
		return money.Zero(), invalidInput("amount must be greater than zero")
	}
	if s.maxRequestAmount.LessThan(amount) {
		return money.Zero(), invalidInput("amount exceeds the maximum requestable amount")
	}
	return amount, nil
}

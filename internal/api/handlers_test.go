package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/forebank/ledger-service/internal/app"
	"github.com/forebank/ledger-service/internal/domain"
	"github.com/forebank/ledger-service/internal/money"
	"github.com/forebank/ledger-service/internal/security"
	"github.com/forebank/ledger-service/internal/store"
	"github.com/forebank/ledger-service/pkg/paypalclient"
)

// handlerRepoStub is a small in-memory repository for routing tests. It keeps
// the store's contract: conditional debit checks hash and balance together,
// capture transitions exactly once.
type handlerRepoStub struct {
	store.Repository
	accounts map[string]*domain.Account
	requests map[string][]*domain.PaymentRequest
}

func newHandlerRepoStub() *handlerRepoStub {
	return &handlerRepoStub{
		accounts: make(map[string]*domain.Account),
		requests: make(map[string][]*domain.PaymentRequest),
	}
}

func (s *handlerRepoStub) CreateAccount(ctx context.Context, email, passwordHash string, openingBalance money.Money) (*domain.Account, error) {
	if _, ok := s.accounts[email]; ok {
		return nil, store.ErrAccountExists
	}
	account := &domain.Account{Email: email, PasswordHash: passwordHash, Balance: openingBalance, CreatedAt: time.Now().UTC()}
	s.accounts[email] = account
	copied := *account
	return &copied, nil
}

func (s *handlerRepoStub) FindAccountByEmail(ctx context.Context, email string) (*domain.Account, error) {
	account, ok := s.accounts[email]
	if !ok {
		return nil, store.ErrAccountNotFound
	}
	copied := *account
	return &copied, nil
}

func (s *handlerRepoStub) ConditionalDebit(ctx context.Context, email, passwordHash string, amount money.Money) (money.Money, error) {
	account, ok := s.accounts[email]
	if !ok || account.PasswordHash != passwordHash || account.Balance.LessThan(amount) {
		return money.Zero(), store.ErrDebitConditionFailed
	}
	newBalance, err := account.Balance.Sub(amount)
	if err != nil {
		return money.Zero(), store.ErrDebitConditionFailed
	}
	account.Balance = newBalance
	return newBalance, nil
}

func (s *handlerRepoStub) TransferFunds(ctx context.Context, sender, receiver string, amount money.Money, verify func(passwordHash string) bool) (*domain.InternalTransferResult, error) {
	senderAccount, ok := s.accounts[sender]
	if !ok {
		return nil, store.ErrAccountNotFound
	}
	receiverAccount, ok := s.accounts[receiver]
	if !ok {
		return nil, store.ErrAccountNotFound
	}
	if verify == nil || !verify(senderAccount.PasswordHash) {
		return nil, store.ErrCredentialMismatch
	}
	if senderAccount.Balance.LessThan(amount) {
		return nil, store.ErrInsufficientFunds
	}
	newSenderBalance, err := senderAccount.Balance.Sub(amount)
	if err != nil {
		return nil, store.ErrInsufficientFunds
	}
	senderAccount.Balance = newSenderBalance
	receiverAccount.Balance = receiverAccount.Balance.Add(amount)
	return &domain.InternalTransferResult{SenderBalance: senderAccount.Balance, ReceiverBalance: receiverAccount.Balance}, nil
}

func (s *handlerRepoStub) AppendPaymentRequest(ctx context.Context, email string, req *domain.PaymentRequest) error {
	if _, ok := s.accounts[email]; !ok {
		return store.ErrAccountNotFound
	}
	copied := *req
	s.requests[email] = append(s.requests[email], &copied)
	return nil
}

func (s *handlerRepoStub) FindPaymentRequest(ctx context.Context, email, requestID string) (*domain.PaymentRequest, error) {
	if _, ok := s.accounts[email]; !ok {
		return nil, store.ErrAccountNotFound
	}
	for _, req := range s.requests[email] {
		if req.RequestID == requestID {
			copied := *req
			return &copied, nil
		}
	}
	return nil, store.ErrRequestNotFound
}

func (s *handlerRepoStub) ListPaymentRequests(ctx context.Context, email string) ([]domain.PaymentRequest, error) {
	if _, ok := s.accounts[email]; !ok {
		return nil, store.ErrAccountNotFound
	}
	out := make([]domain.PaymentRequest, 0, len(s.requests[email]))
	for _, req := range s.requests[email] {
		out = append(out, *req)
	}
	return out, nil
}

func (s *handlerRepoStub) CapturePaymentRequest(ctx context.Context, email, requestID string, capturedAt time.Time) (money.Money, error) {
	account, ok := s.accounts[email]
	if !ok {
		return money.Zero(), store.ErrAccountNotFound
	}
	for _, req := range s.requests[email] {
		if req.RequestID != requestID {
			continue
		}
		if req.Status == domain.RequestStatusCaptured {
			return money.Zero(), store.ErrRequestAlreadyCaptured
		}
		req.Status = domain.RequestStatusCaptured
		captured := capturedAt
		req.TimeCaptured = &captured
		account.Balance = account.Balance.Add(req.Amount)
		return account.Balance, nil
	}
	return money.Zero(), store.ErrRequestNotFound
}

type handlerProcessorStub struct {
	captureErr error
}

func (p *handlerProcessorStub) CreateOrder(ctx context.Context, amount, itemName, returnURL string) (*paypalclient.Order, error) {
	return &paypalclient.Order{
		OrderID:    "ORD-1",
		ApproveURL: "https://processor.example/approve/ORD-1",
		CaptureURL: "https://processor.example/capture/ORD-1",
		ViewURL:    "https://processor.example/self/ORD-1",
	}, nil
}

func (p *handlerProcessorStub) CaptureOrder(ctx context.Context, captureURL string) (*paypalclient.CaptureResult, error) {
	if p.captureErr != nil {
		return nil, p.captureErr
	}
	return &paypalclient.CaptureResult{OrderID: "ORD-1", Status: "COMPLETED"}, nil
}

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	svc := app.NewService(
		newHandlerRepoStub(),
		security.NewBcryptCredentials(bcrypt.MinCost),
		&handlerProcessorStub{},
		nil,
		nil,
		"https://ledger.test",
		money.MustParse("9999999.99"),
		app.RateLimitPolicy{},
		app.RateLimitPolicy{},
	)
	return LedgerRoutes(NewLedgerHandlers(svc), true)
}

func doRequest(t *testing.T, router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func seedViaAPI(t *testing.T, router http.Handler, email, password, balance string) {
	t.Helper()
	rec := doRequest(t, router, http.MethodPost, "/api/testing/new-with-balance",
		`{"email":"`+email+`","password":"`+password+`","balance":"`+balance+`"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("seeding %s: status %d, body %s", email, rec.Code, rec.Body.String())
	}
}

func TestHealthAndWelcomeRoutes(t *testing.T) {
	router := newTestRouter(t)

	rec := doRequest(t, router, http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK || rec.Body.String() != "healthy" {
		t.Errorf("health = %d %q", rec.Code, rec.Body.String())
	}

	rec = doRequest(t, router, http.MethodGet, "/api/", "")
	if rec.Code != http.StatusOK {
		t.Errorf("welcome status = %d", rec.Code)
	}
}

func TestCreateAccountRoute(t *testing.T) {
	router := newTestRouter(t)

	rec := doRequest(t, router, http.MethodPost, "/api/user-info/new", `{"email":"alice@example.com","password":"hunter2"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body %s", rec.Code, rec.Body.String())
	}
	var account struct {
		Email   string `json:"email"`
		Balance string `json:"balance"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &account); err != nil {
		t.Fatalf("decode create response: %v", err)
	}
	if account.Email != "alice@example.com" || account.Balance != "0.00" {
		t.Errorf("create response = %+v", account)
	}

	rec = doRequest(t, router, http.MethodPost, "/api/user-info/new", `{"email":"alice@example.com","password":"other"}`)
	if rec.Code != http.StatusConflict {
		t.Errorf("duplicate create status = %d, want 409", rec.Code)
	}

	rec = doRequest(t, router, http.MethodPost, "/api/user-info/new", `{"email":"not-an-email","password":"pw"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad email status = %d, want 400", rec.Code)
	}

	rec = doRequest(t, router, http.MethodPost, "/api/user-info/new", `{bad json`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad json status = %d, want 400", rec.Code)
	}
}

func TestBalanceRouteStatuses(t *testing.T) {
	router := newTestRouter(t)
	seedViaAPI(t, router, "alice@example.com", "hunter2", "50.00")

	rec := doRequest(t, router, http.MethodGet, "/api/account-info/balance/alice@example.com/hunter2", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("balance status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Balance string `json:"balance"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode balance response: %v", err)
	}
	if resp.Balance != "50.00" {
		t.Errorf("balance = %q, want 50.00", resp.Balance)
	}

	rec = doRequest(t, router, http.MethodGet, "/api/account-info/balance/alice@example.com/wrong", "")
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("wrong password status = %d, want 401", rec.Code)
	}

	rec = doRequest(t, router, http.MethodGet, "/api/account-info/balance/ghost@example.com/pw", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing account status = %d, want 404", rec.Code)
	}
}

func TestSpendRouteCollapsesRejection(t *testing.T) {
	router := newTestRouter(t)
	seedViaAPI(t, router, "alice@example.com", "hunter2", "50.00")

	rec := doRequest(t, router, http.MethodPost, "/api/transfer/spend",
		`{"email":"alice@example.com","password":"hunter2","amount":"20.00"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("spend status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Balance string `json:"balance"`
	}
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Balance != "30.00" {
		t.Errorf("balance after spend = %q, want 30.00", resp.Balance)
	}

	// Wrong password and insufficient funds must be indistinguishable.
	recBadPassword := doRequest(t, router, http.MethodPost, "/api/transfer/spend",
		`{"email":"alice@example.com","password":"wrong","amount":"20.00"}`)
	recBadFunds := doRequest(t, router, http.MethodPost, "/api/transfer/spend",
		`{"email":"alice@example.com","password":"hunter2","amount":"99.00"}`)
	if recBadPassword.Code != http.StatusBadRequest || recBadFunds.Code != http.StatusBadRequest {
		t.Fatalf("rejection statuses = %d/%d, want 400/400", recBadPassword.Code, recBadFunds.Code)
	}
	if recBadPassword.Body.String() != recBadFunds.Body.String() {
		t.Errorf("rejection bodies differ: %q vs %q", recBadPassword.Body.String(), recBadFunds.Body.String())
	}
}

func TestInternalTransferRoute(t *testing.T) {
	router := newTestRouter(t)
	seedViaAPI(t, router, "a@example.com", "pw-a", "60.00")
	seedViaAPI(t, router, "b@example.com", "pw-b", "5.00")

	rec := doRequest(t, router, http.MethodPost, "/api/transfer/internal",
		`{"sender":"a@example.com","receiver":"b@example.com","senderPassword":"pw-a","amount":"60.00"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("transfer status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		SenderBalance   string `json:"senderBalance"`
		ReceiverBalance string `json:"receiverBalance"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode transfer response: %v", err)
	}
	if resp.SenderBalance != "0.00" || resp.ReceiverBalance != "65.00" {
		t.Errorf("balances = %s/%s, want 0.00/65.00", resp.SenderBalance, resp.ReceiverBalance)
	}

	rec = doRequest(t, router, http.MethodPost, "/api/transfer/internal",
		`{"sender":"a@example.com","receiver":"b@example.com","senderPassword":"wrong","amount":"1.00"}`)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("wrong password status = %d, want 401", rec.Code)
	}

	rec = doRequest(t, router, http.MethodPost, "/api/transfer/internal",
		`{"sender":"a@example.com","receiver":"ghost@example.com","senderPassword":"pw-a","amount":"1.00"}`)
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing receiver status = %d, want 404", rec.Code)
	}
}

func TestExternalRequestRoutes(t *testing.T) {
	router := newTestRouter(t)
	seedViaAPI(t, router, "alice@example.com", "hunter2", "0.00")

	rec := doRequest(t, router, http.MethodPost, "/api/transfer/external/create-request",
		`{"email":"alice@example.com","password":"hunter2","amount":"25.00"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create request status = %d, body %s", rec.Code, rec.Body.String())
	}
	var created struct {
		RequestID     string `json:"request_id"`
		CompletionURL string `json:"completionUrl"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode create request response: %v", err)
	}
	if created.RequestID == "" || created.CompletionURL == "" {
		t.Fatalf("create request response missing fields: %+v", created)
	}

	capturePath := "/api/transfer/external/capture-request/alice@example.com/" + created.RequestID
	rec = doRequest(t, router, http.MethodGet, capturePath, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("capture status = %d, body %s", rec.Code, rec.Body.String())
	}
	var captured struct {
		Balance string `json:"balance"`
	}
	json.Unmarshal(rec.Body.Bytes(), &captured)
	if captured.Balance != "25.00" {
		t.Errorf("balance after capture = %q, want 25.00", captured.Balance)
	}

	// Following the same link again conflicts.
	rec = doRequest(t, router, http.MethodGet, capturePath, "")
	if rec.Code != http.StatusConflict {
		t.Errorf("replayed capture status = %d, want 409", rec.Code)
	}

	rec = doRequest(t, router, http.MethodGet, "/api/account-info/request-history/alice@example.com/hunter2", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("history status = %d", rec.Code)
	}
	var history []struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &history); err != nil {
		t.Fatalf("decode history: %v", err)
	}
	if len(history) != 1 || history[0].Status != domain.RequestStatusCaptured {
		t.Errorf("history = %+v", history)
	}
}

func TestRequestHistoryEmptyIsArray(t *testing.T) {
	router := newTestRouter(t)
	seedViaAPI(t, router, "alice@example.com", "hunter2", "0.00")

	rec := doRequest(t, router, http.MethodGet, "/api/account-info/request-history/alice@example.com/hunter2", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("history status = %d, body %s", rec.Code, rec.Body.String())
	}
	// An account with no requests answers with an empty array, never null.
	if got := strings.TrimSpace(rec.Body.String()); got != "[]" {
		t.Errorf("empty history body = %q, want []", got)
	}
}

func TestSeedEndpointAbsentWhenDisabled(t *testing.T) {
	repo := newHandlerRepoStub()
	svc := app.NewService(
		repo,
		security.NewBcryptCredentials(bcrypt.MinCost),
		&handlerProcessorStub{},
		nil,
		nil,
		"https://ledger.test",
		money.MustParse("9999999.99"),
		app.RateLimitPolicy{},
		app.RateLimitPolicy{},
	)
	router := LedgerRoutes(NewLedgerHandlers(svc), false)

	rec := doRequest(t, router, http.MethodPost, "/api/testing/new-with-balance",
		`{"email":"alice@example.com","password":"pw","balance":"10.00"}`)
	if rec.Code != http.StatusNotFound && rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("disabled seed endpoint status = %d, want 404 or 405", rec.Code)
	}
}

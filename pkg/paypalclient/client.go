/**
 * @description
 * This package provides a client for the external payment processor's
 * checkout-orders API. It encapsulates the logic for making authenticated HTTP
 * requests, handling request body construction, and parsing responses.
 *
 * The client never advances any internal ledger state: it only creates orders
 * and captures them on demand. A transport error or non-2xx capture response
 * surfaces as an error so the caller can leave its own state untouched and
 * retry later.
 *
 * @dependencies
 * - bytes, context, encoding/json, fmt, net/http, time: Standard Go libraries.
 */
package paypalclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"
)

// Client is a client for the payment processor API.
type Client struct {
	BaseURL    string
	Currency   string
	HTTPClient *http.Client

	tokens *TokenProvider
}

// NewClient creates a new processor API client. The token provider owns the
// OAuth access token lifecycle (see tokens.go).
func NewClient(baseURL, clientID, clientSecret, currency string) *Client {
	httpClient := &http.Client{Timeout: 30 * time.Second}
	return &Client{
		BaseURL:    baseURL,
		Currency:   currency,
		HTTPClient: httpClient,
		tokens:     NewTokenProvider(baseURL, clientID, clientSecret, httpClient),
	}
}

// Order is the subset of a processor order the ledger needs: the processor's
// order id plus the three link handles (approve for the payer, capture for the
// server, self for inspection).
type Order struct {
	OrderID    string
	ApproveURL string
	CaptureURL string
	ViewURL    string
}

// CaptureResult reports the processor-side outcome of a capture call.
type CaptureResult struct {
	OrderID string `json:"id"`
	Status  string `json:"status"`
}

// ErrorResponse represents an error payload from the processor API.
type ErrorResponse struct {
	Name    string `json:"name"`
	Message string `json:"message"`
}

func (e *ErrorResponse) Error() string {
	if e.Name != "" || e.Message != "" {
		return fmt.Sprintf("processor api error: %s - %s", e.Name, e.Message)
	}
	return "unknown processor api error"
}

type createOrderRequest struct {
	Intent             string         `json:"intent"`
	PurchaseUnits      []purchaseUnit `json:"purchase_units"`
	ApplicationContext appContext     `json:"application_context"`
}

type purchaseUnit struct {
	Amount unitAmountWithBreakdown `json:"amount"`
	Items  []orderItem             `json:"items"`
}

type unitAmountWithBreakdown struct {
	CurrencyCode string     `json:"currency_code"`
	Value        string     `json:"value"`
	Breakdown    *breakdown `json:"breakdown,omitempty"`
}

type breakdown struct {
	ItemTotal unitAmount `json:"item_total"`
}

type unitAmount struct {
	CurrencyCode string `json:"currency_code"`
	Value        string `json:"value"`
}

type orderItem struct {
	Name       string     `json:"name"`
	UnitAmount unitAmount `json:"unit_amount"`
	Quantity   string     `json:"quantity"`
}

type appContext struct {
	ShippingPreference string `json:"shipping_preference"`
	UserAction         string `json:"user_action"`
	ReturnURL          string `json:"return_url"`
}

type orderResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Links  []struct {
		Href string `json:"href"`
		Rel  string `json:"rel"`
	} `json:"links"`
}

// CreateOrder creates a capture-intent order for the given decimal amount
// string. The returnURL must embed the ledger's correlation token so the
// processor hands control back to exactly one payment request.
func (c *Client) CreateOrder(ctx context.Context, amount, itemName, returnURL string) (*Order, error) {
	payload := createOrderRequest{
		Intent: "CAPTURE",
		PurchaseUnits: []purchaseUnit{{
			Amount: unitAmountWithBreakdown{
				CurrencyCode: c.Currency,
				Value:        amount,
				Breakdown: &breakdown{
					ItemTotal: unitAmount{CurrencyCode: c.Currency, Value: amount},
				},
			},
			Items: []orderItem{{
				Name:       itemName,
				UnitAmount: unitAmount{CurrencyCode: c.Currency, Value: amount},
				Quantity:   "1",
			}},
		}},
		ApplicationContext: appContext{
			ShippingPreference: "NO_SHIPPING",
			UserAction:         "PAY_NOW",
			ReturnURL:          returnURL,
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal order request: %w", err)
	}

	bodyBytes, err := c.doAuthorized(ctx, http.MethodPost, c.BaseURL+"/v2/checkout/orders", body, "create_order")
	if err != nil {
		return nil, err
	}

	var resp orderResponse
	if err := json.Unmarshal(bodyBytes, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode order response: %w", err)
	}

	order := &Order{OrderID: resp.ID}
	for _, link := range resp.Links {
		switch link.Rel {
		case "approve":
			order.ApproveURL = link.Href
		case "capture":
			order.CaptureURL = link.Href
		case "self":
			order.ViewURL = link.Href
		}
	}
	if order.OrderID == "" || order.ApproveURL == "" || order.CaptureURL == "" || order.ViewURL == "" {
		return nil, fmt.Errorf("order response missing id or approve/capture/self links")
	}
	return order, nil
}

// CaptureOrder invokes the capture handle stored on a payment request. Any
// transport failure or non-2xx status is an error; the caller must treat the
// outcome as not-captured and keep its own state pending.
func (c *Client) CaptureOrder(ctx context.Context, captureURL string) (*CaptureResult, error) {
	bodyBytes, err := c.doAuthorized(ctx, http.MethodPost, captureURL, nil, "capture_order")
	if err != nil {
		return nil, err
	}

	var result CaptureResult
	if err := json.Unmarshal(bodyBytes, &result); err != nil {
		return nil, fmt.Errorf("failed to decode capture response: %w", err)
	}
	return &result, nil
}

// doAuthorized executes one bearer-authenticated request, refreshing the token
// and retrying once on a 401.
func (c *Client) doAuthorized(ctx context.Context, method, url string, body []byte, op string) ([]byte, error) {
	for attempt := 0; ; attempt++ {
		token, err := c.tokens.Token(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to obtain access token: %w", err)
		}

		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, url, reader)
		if err != nil {
			return nil, fmt.Errorf("failed to create %s request: %w", op, err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")
		req.Header.Set("Authorization", "Bearer "+token)

		resp, err := c.HTTPClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("failed to execute %s request: %w", op, err)
		}
		bodyBytes, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read %s response: %w", op, err)
		}

		if resp.StatusCode == http.StatusUnauthorized && attempt == 0 {
			log.Printf("level=warn component=paypal_client op=%s status=401 msg=\"access token rejected; refreshing\"", op)
			c.tokens.Invalidate()
			continue
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			var errResp ErrorResponse
			if err := json.Unmarshal(bodyBytes, &errResp); err != nil {
				log.Printf("level=warn component=paypal_client op=%s status=%d msg=\"non-2xx response (unparsable error body)\"", op, resp.StatusCode)
				return nil, fmt.Errorf("failed to decode error response (status %d)", resp.StatusCode)
			}
			log.Printf("level=warn component=paypal_client op=%s status=%d name=%q detail=%q", op, resp.StatusCode, errResp.Name, errResp.Message)
			return nil, &errResp
		}

		return bodyBytes, nil
	}
}

/**
 * @description
 * This file implements the OAuth client-credentials token lifecycle for the
 * processor client. The provider holds one process-wide access token behind a
 * mutex, refreshes it shortly before the processor-reported expiry, and can be
 * invalidated explicitly when the processor rejects a token early.
 *
 * @dependencies
 * - net/http, net/url, sync, time: Standard Go libraries.
 */
package paypalclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// expirySlack is subtracted from the processor-reported lifetime so a token is
// refreshed before it can expire mid-request.
const expirySlack = 60 * time.Second

// TokenProvider fetches and caches an OAuth access token for the processor
// API. All client requests go through Token, so the process holds at most one
// live token at a time.
type TokenProvider struct {
	tokenURL     string
	clientID     string
	clientSecret string
	httpClient   *http.Client

	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

// NewTokenProvider creates a provider for the processor at baseURL.
func NewTokenProvider(baseURL, clientID, clientSecret string, httpClient *http.Client) *TokenProvider {
	return &TokenProvider{
		tokenURL:     strings.TrimRight(baseURL, "/") + "/v1/oauth2/token",
		clientID:     clientID,
		clientSecret: clientSecret,
		httpClient:   httpClient,
	}
}

// Token returns the cached access token, fetching a fresh one when the cache
// is empty or within the expiry slack window.
func (p *TokenProvider) Token(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.token != "" && time.Now().Before(p.expiresAt) {
		return p.token, nil
	}
	if err := p.refreshLocked(ctx); err != nil {
		return "", err
	}
	return p.token, nil
}

// Invalidate discards the cached token so the next Token call fetches a fresh
// one. Used when the processor rejects a token before its reported expiry.
func (p *TokenProvider) Invalidate() {
	p.mu.Lock()
	p.token = ""
	p.expiresAt = time.Time{}
	p.mu.Unlock()
}

func (p *TokenProvider) refreshLocked(ctx context.Context) error {
	form := url.Values{"grant_type": {"client_credentials"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to create token request: %w", err)
	}
	req.SetBasicAuth(p.clientID, p.clientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute token request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read token response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("token endpoint returned status %d", resp.StatusCode)
	}

	var payload struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return fmt.Errorf("failed to decode token response: %w", err)
	}
	if payload.AccessToken == "" {
		return fmt.Errorf("token response missing access_token")
	}

	lifetime := time.Duration(payload.ExpiresIn) * time.Second
	if lifetime > expirySlack {
		lifetime -= expirySlack
	}
	p.token = payload.AccessToken
	p.expiresAt = time.Now().Add(lifetime)
	return nil
}

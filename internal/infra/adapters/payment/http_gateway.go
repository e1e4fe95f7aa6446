// File: internal/infra/adapters/payment/http_gateway.go
package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"payment-lifecycle/internal/domain/ports/adapter"
)

var _ adapter.ProviderGateway = (*HTTPGateway)(nil)

// HTTPGateway talks to a hosted-checkout provider over JSON/REST:
//
//	POST {base}/sessions               -> {payment_url, expires_at}
//	GET  {base}/sessions/{reference}   -> {status}
type HTTPGateway struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewHTTPGateway(baseURL, apiKey string, timeout time.Duration) (*HTTPGateway, error) {
	if baseURL == "" {
		return nil, errors.New("provider base url empty")
	}
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("invalid provider base url: %w", err)
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &HTTPGateway{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
	}, nil
}

func (g *HTTPGateway) Name() string { return "http" }

func (g *HTTPGateway) CreateSession(ctx context.Context, in adapter.ProviderSessionRequest) (adapter.ProviderSession, error) {
	payload := map[string]any{
		"tier_id":            in.TierID,
		"amount":             in.Amount,
		"payment_method":     in.PaymentMethod,
		"merchant_reference": in.MerchantReference,
	}
	b, _ := json.Marshal(payload)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/sessions", bytes.NewReader(b))
	if err != nil {
		return adapter.ProviderSession{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	var out struct {
		PaymentURL string    `json:"payment_url"`
		ExpiresAt  time.Time `json:"expires_at"`
	}
	if err := g.do(req, &out); err != nil {
		return adapter.ProviderSession{}, err
	}
	if out.PaymentURL == "" {
		return adapter.ProviderSession{}, errors.New("provider session request failed: no payment url")
	}
	return adapter.ProviderSession{PaymentURL: out.PaymentURL, ExpiresAt: out.ExpiresAt}, nil
}

func (g *HTTPGateway) GetStatus(ctx context.Context, reference string) (adapter.ProviderStatus, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"/sessions/"+url.PathEscape(reference), nil)
	if err != nil {
		return adapter.ProviderStatusUnknown, err
	}
	var out struct {
		Status string `json:"status"`
	}
	if err := g.do(req, &out); err != nil {
		return adapter.ProviderStatusUnknown, err
	}
	return ParseProviderStatus(out.Status), nil
}

func (g *HTTPGateway) do(req *http.Request, out any) error {
	req.Header.Set("Accept", "application/json")
	if g.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+g.apiKey)
	}
	resp, err := g.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("provider %s %s: status %d: %s", req.Method, req.URL.Path, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// ParseProviderStatus folds provider vocabulary onto adapter.ProviderStatus.
func ParseProviderStatus(s string) adapter.ProviderStatus {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "paid", "complete", "completed", "succeeded":
		return adapter.ProviderStatusPaid
	case "failed", "declined", "cancelled", "canceled":
		return adapter.ProviderStatusFailed
	case "expired":
		return adapter.ProviderStatusExpired
	case "pending", "created", "processing":
		return adapter.ProviderStatusPending
	default:
		return adapter.ProviderStatusUnknown
	}
}

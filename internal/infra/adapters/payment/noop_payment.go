package payment

import (
	"context"
	"sync"
	"time"

	"payment-lifecycle/internal/domain/ports/adapter"
)

var _ adapter.ProviderGateway = (*NoopPaymentGateway)(nil)

// NoopPaymentGateway is an in-memory provider for local runs and tests.
// Sessions start pending; SetStatus simulates the customer finishing checkout.
type NoopPaymentGateway struct {
	mu       sync.Mutex
	ttl      time.Duration
	sessions map[string]adapter.ProviderStatus
}

func NewNoopPaymentGateway(ttl time.Duration) *NoopPaymentGateway {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &NoopPaymentGateway{
		ttl:      ttl,
		sessions: make(map[string]adapter.ProviderStatus),
	}
}

func (g *NoopPaymentGateway) Name() string { return "noop" }

func (g *NoopPaymentGateway) CreateSession(ctx context.Context, req adapter.ProviderSessionRequest) (adapter.ProviderSession, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.sessions[req.MerchantReference] = adapter.ProviderStatusPending
	return adapter.ProviderSession{
		PaymentURL: "https://example.test/pay/" + req.MerchantReference,
		ExpiresAt:  time.Now().UTC().Add(g.ttl),
	}, nil
}

func (g *NoopPaymentGateway) GetStatus(ctx context.Context, reference string) (adapter.ProviderStatus, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	st, ok := g.sessions[reference]
	if !ok {
		return adapter.ProviderStatusUnknown, nil
	}
	return st, nil
}

func (g *NoopPaymentGateway) SetStatus(reference string, status adapter.ProviderStatus) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.sessions[reference] = status
}

package adapter

import (
	"context"
	"time"
)

// ProviderStatus is the provider's view of a payment, before it is mapped onto
// the local state machine.
type ProviderStatus string

const (
	ProviderStatusPending ProviderStatus = "pending"
	ProviderStatusPaid    ProviderStatus = "paid"
	ProviderStatusFailed  ProviderStatus = "failed"
	ProviderStatusExpired ProviderStatus = "expired"
	ProviderStatusUnknown ProviderStatus = "unknown"
)

// ProviderSessionRequest carries everything the provider needs to open a hosted
// payment page. Submitting the same MerchantReference twice must be idempotent
// on the provider side.
type ProviderSessionRequest struct {
	TierID            string
	Amount            int64 // minor units
	PaymentMethod     string
	MerchantReference string
}

type ProviderSession struct {
	PaymentURL string
	ExpiresAt  time.Time
}

// ProviderGateway is the hex port for the external payment provider.
type ProviderGateway interface {
	Name() string

	// CreateSession opens a provider-side session for the reference.
	CreateSession(ctx context.Context, req ProviderSessionRequest) (ProviderSession, error)
	// GetStatus returns the provider's current status for a reference.
	GetStatus(ctx context.Context, merchantReference string) (ProviderStatus, error)
}

// File: internal/usecase/payment_session_uc.go
package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"payment-lifecycle/internal/domain"
	"payment-lifecycle/internal/domain/model"
	"payment-lifecycle/internal/domain/ports/adapter"
	"payment-lifecycle/internal/infra/logging"
	"payment-lifecycle/internal/infra/metrics"
)

// Compile-time check
var _ PaymentSessionUseCase = (*paymentSessionUC)(nil)

type SessionRequest struct {
	TierID        string
	UserID        string
	PaymentMethod model.PaymentMethod
	// UserEmail is optional; its local part seeds the reference token that
	// recovery searches use. UserID is used when it is empty.
	UserEmail string
}

type PaymentSessionUseCase interface {
	// CreateSession validates the request, opens a provider session and persists a pending record.
	CreateSession(ctx context.Context, req SessionRequest) (*model.PaymentSession, error)
}

type paymentSessionUC struct {
	catalog *TierCatalog
	store   *PaymentStore
	gateway adapter.ProviderGateway
	refs    ReferenceGenerator
	timeout time.Duration
	log     *zerolog.Logger
}

func NewPaymentSessionUseCase(catalog *TierCatalog, store *PaymentStore, gateway adapter.ProviderGateway, refs ReferenceGenerator, providerTimeout time.Duration, logger *zerolog.Logger) *paymentSessionUC {
	if providerTimeout <= 0 {
		providerTimeout = 5 * time.Second
	}
	return &paymentSessionUC{
		catalog: catalog,
		store:   store,
		gateway: gateway,
		refs:    refs,
		timeout: providerTimeout,
		log:     logger,
	}
}

// Validate applies the fail-fast checks in order and returns the tier on success.
func (u *paymentSessionUC) Validate(req SessionRequest) (model.Tier, error) {
	if strings.TrimSpace(req.TierID) == "" || strings.TrimSpace(req.UserID) == "" {
		return model.Tier{}, domain.ErrMissingFields
	}
	tier, ok := u.catalog.GetTier(req.TierID)
	if !ok {
		return model.Tier{}, domain.ErrInvalidTier
	}
	if tier.IsFree() {
		return model.Tier{}, domain.ErrFreeTierNotPurchasable
	}
	if !tier.Allows(req.PaymentMethod) {
		return model.Tier{}, domain.ErrInvalidPaymentMethod
	}
	return tier, nil
}

func (u *paymentSessionUC) CreateSession(ctx context.Context, req SessionRequest) (*model.PaymentSession, error) {
	defer logging.TraceDuration(u.log, "PaymentSessionUC.CreateSession")()
	l := logging.With(logging.WithUserID(ctx, req.UserID), u.log)

	tier, err := u.Validate(req)
	if err != nil {
		l.Info().Err(err).Str("tier_id", req.TierID).Str("payment_method", string(req.PaymentMethod)).Msg("session request rejected")
		return nil, err
	}

	hint := req.UserID
	if req.UserEmail != "" {
		hint = req.UserEmail
	}
	reference, err := u.refs.Next(EmailLocalPart(hint))
	if err != nil {
		l.Error().Err(err).Msg("merchant reference not minted")
		return nil, err
	}

	ps, err := u.openProviderSession(ctx, adapter.ProviderSessionRequest{
		TierID:            tier.ID,
		Amount:            tier.PriceOnceOff,
		PaymentMethod:     string(req.PaymentMethod),
		MerchantReference: reference,
	})
	if err != nil {
		l.Warn().Err(err).Str("tier_id", tier.ID).Msg("provider session failed; nothing persisted")
		return nil, fmt.Errorf("%w: %v", domain.ErrProviderUnavailable, err)
	}

	now := time.Now().UTC()
	userID := req.UserID
	expiresAt := ps.ExpiresAt.UTC()
	rec := &model.PaymentRecord{
		ID:                uuid.NewString(),
		MerchantReference: reference,
		UserID:            &userID,
		TierID:            tier.ID,
		PaymentMethod:     req.PaymentMethod,
		Amount:            tier.PriceOnceOff,
		Status:            model.PaymentStatusPending,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if !ps.ExpiresAt.IsZero() {
		rec.ExpiresAt = &expiresAt
	}
	if err := u.store.Create(ctx, rec); err != nil {
		l.Error().Err(err).Str("payment_id", rec.ID).Msg("persist payment record failed")
		return nil, err
	}

	l.Info().Str("payment_id", rec.ID).Str("tier_id", tier.ID).Msg("payment session created")
	return &model.PaymentSession{
		TierID:            tier.ID,
		UserID:            req.UserID,
		PaymentMethod:     req.PaymentMethod,
		PaymentURL:        ps.PaymentURL,
		MerchantReference: reference,
		ExpiresAt:         expiresAt,
		Status:            model.PaymentStatusPending,
	}, nil
}

func (u *paymentSessionUC) openProviderSession(ctx context.Context, req adapter.ProviderSessionRequest) (adapter.ProviderSession, error) {
	ctx, cancel := context.WithTimeout(ctx, u.timeout)
	defer cancel()

	start := time.Now()
	ps, err := u.gateway.CreateSession(ctx, req)
	metrics.ObserveProviderCall("create_session", callResult(err), time.Since(start))
	if err != nil {
		return adapter.ProviderSession{}, err
	}
	if ps.PaymentURL == "" {
		return adapter.ProviderSession{}, fmt.Errorf("provider returned no payment url")
	}
	return ps, nil
}

// File: internal/usecase/tier_catalog.go
package usecase

import (
	"fmt"

	"payment-lifecycle/internal/domain/model"
)

// TierCatalog is the static, in-memory catalog of purchasable tiers. It has no
// I/O and no mutable state after construction.
type TierCatalog struct {
	tiers []model.Tier
	byID  map[string]int
}

// DefaultTiers is the production catalog, in display order.
func DefaultTiers() []model.Tier {
	return []model.Tier{
		{
			ID:           "starter",
			DisplayName:  "Starter",
			PriceOnceOff: 0,
			Features:     []string{"profile", "job_alerts"},
		},
		{
			ID:           "essential",
			DisplayName:  "Essential",
			PriceOnceOff: 14900,
			AllowedPaymentMethods: []model.PaymentMethod{
				model.PaymentMethodCard, model.PaymentMethodAirtime, model.PaymentMethodQR,
				model.PaymentMethodEFT, model.PaymentMethodStore,
			},
			Features: []string{"profile", "job_alerts", "cv_review", "document_vault"},
		},
		{
			ID:           "professional",
			DisplayName:  "Professional",
			PriceOnceOff: 34900,
			AllowedPaymentMethods: []model.PaymentMethod{
				model.PaymentMethodCard, model.PaymentMethodQR, model.PaymentMethodEFT,
				model.PaymentMethodStore, model.PaymentMethodPaymentPlan,
			},
			Features: []string{"profile", "job_alerts", "cv_review", "document_vault", "assistant", "priority_support"},
		},
		{
			ID:           "premium",
			DisplayName:  "Premium",
			PriceOnceOff: 59900,
			AllowedPaymentMethods: []model.PaymentMethod{
				model.PaymentMethodCard, model.PaymentMethodEFT, model.PaymentMethodPaymentPlan,
			},
			Features: []string{"profile", "job_alerts", "cv_review", "document_vault", "assistant", "priority_support", "coaching"},
		},
	}
}

// NewTierCatalog validates and indexes tiers. Ids must be unique, prices
// non-negative, methods known, and a free tier must not list any method.
func NewTierCatalog(tiers []model.Tier) (*TierCatalog, error) {
	c := &TierCatalog{byID: make(map[string]int, len(tiers))}
	for _, t := range tiers {
		if t.ID == "" {
			return nil, fmt.Errorf("tier catalog: empty tier id")
		}
		if _, dup := c.byID[t.ID]; dup {
			return nil, fmt.Errorf("tier catalog: duplicate tier id %q", t.ID)
		}
		if t.PriceOnceOff < 0 {
			return nil, fmt.Errorf("tier catalog: negative price for %q", t.ID)
		}
		if t.IsFree() && len(t.AllowedPaymentMethods) > 0 {
			return nil, fmt.Errorf("tier catalog: free tier %q must not allow payment methods", t.ID)
		}
		for _, m := range t.AllowedPaymentMethods {
			if !m.Valid() {
				return nil, fmt.Errorf("tier catalog: unknown payment method %q on %q", m, t.ID)
			}
		}
		c.byID[t.ID] = len(c.tiers)
		c.tiers = append(c.tiers, cloneTier(t))
	}
	return c, nil
}

// MustDefaultTierCatalog panics if the built-in catalog is malformed.
func MustDefaultTierCatalog() *TierCatalog {
	c, err := NewTierCatalog(DefaultTiers())
	if err != nil {
		panic(err)
	}
	return c
}

// GetTier returns the tier and true, or the zero Tier and false when the id is unknown.
func (c *TierCatalog) GetTier(tierID string) (model.Tier, bool) {
	i, ok := c.byID[tierID]
	if !ok {
		return model.Tier{}, false
	}
	return cloneTier(c.tiers[i]), true
}

func (c *TierCatalog) ListTiers() []model.Tier {
	out := make([]model.Tier, len(c.tiers))
	for i, t := range c.tiers {
		out[i] = cloneTier(t)
	}
	return out
}

func (c *TierCatalog) IsPaymentMethodAllowed(tierID string, method model.PaymentMethod) bool {
	t, ok := c.GetTier(tierID)
	return ok && t.Allows(method)
}

// AvailableMethods is empty for the free tier and for unknown ids; use GetTier
// to tell the two apart.
func (c *TierCatalog) AvailableMethods(tierID string) []model.PaymentMethod {
	t, ok := c.GetTier(tierID)
	if !ok {
		return []model.PaymentMethod{}
	}
	return t.AllowedPaymentMethods
}

func cloneTier(t model.Tier) model.Tier {
	t.AllowedPaymentMethods = append([]model.PaymentMethod{}, t.AllowedPaymentMethods...)
	t.Features = append([]string{}, t.Features...)
	return t
}

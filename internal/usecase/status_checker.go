// File: internal/usecase/status_checker.go
package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"payment-lifecycle/internal/domain/model"
	"payment-lifecycle/internal/domain/ports/adapter"
	"payment-lifecycle/internal/infra/logging"
	"payment-lifecycle/internal/infra/metrics"
)

// PollThrottle limits how often one reference is re-queried at the provider.
// Allow returns true when the caller may poll now.
type PollThrottle interface {
	Allow(ctx context.Context, reference string, window time.Duration) bool
}

// StatusChecker answers "what is the status of this reference" without ever
// failing: provider trouble turns into an unknown answer (ok == false).
type StatusChecker struct {
	store     *PaymentStore
	gateway   adapter.ProviderGateway
	throttle  PollThrottle // optional
	freshness time.Duration
	timeout   time.Duration
	log       *zerolog.Logger
	now       func() time.Time
}

// NewStatusChecker: a pending record last touched more recently than freshness
// is answered from the store; older ones are re-queried with the given timeout.
func NewStatusChecker(store *PaymentStore, gateway adapter.ProviderGateway, throttle PollThrottle, freshness, timeout time.Duration, logger *zerolog.Logger) *StatusChecker {
	if freshness <= 0 {
		freshness = 2 * time.Minute
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &StatusChecker{
		store:     store,
		gateway:   gateway,
		throttle:  throttle,
		freshness: freshness,
		timeout:   timeout,
		log:       logger,
		now:       time.Now,
	}
}

// CheckStatus is read-only: a fresher provider answer is returned but not persisted.
func (c *StatusChecker) CheckStatus(ctx context.Context, reference string) (model.PaymentStatus, bool) {
	return c.check(ctx, reference, false, "status_poll")
}

// Reconcile always queries the provider for a pending record, ignoring the
// freshness window and the throttle, and hands any terminal answer to the
// PaymentStore. ok == true with a pending status means the provider itself
// answered pending or unknown.
func (c *StatusChecker) Reconcile(ctx context.Context, reference, source string) (model.PaymentStatus, bool) {
	return c.check(ctx, reference, true, source)
}

func (c *StatusChecker) check(ctx context.Context, reference string, write bool, source string) (model.PaymentStatus, bool) {
	l := logging.With(logging.WithReference(ctx, reference), c.log)
	rec, err := c.store.GetByReference(ctx, reference)
	if err != nil {
		l.Debug().Err(err).Msg("status check: record lookup failed")
		return "", false
	}
	if rec.Status != model.PaymentStatusPending {
		return rec.Status, true
	}
	// Reconcile never answers pending from the store.
	if !write {
		if c.now().Sub(rec.UpdatedAt) < c.freshness {
			return rec.Status, true
		}
		if c.throttle != nil && !c.throttle.Allow(ctx, reference, c.freshness) {
			return rec.Status, true
		}
	}

	ps, err := c.queryProvider(ctx, reference)
	if err != nil {
		l.Warn().Err(err).Msg("status check: provider unavailable")
		return "", false
	}

	if !write {
		return mapProviderStatus(ps)
	}
	updated, _, err := c.store.ApplyProviderStatus(ctx, reference, ps, source)
	if err != nil {
		l.Warn().Err(err).Str("provider_status", string(ps)).Msg("status check: provider status not applied")
		if updated != nil {
			return updated.Status, true
		}
		return "", false
	}
	return updated.Status, true
}

func (c *StatusChecker) queryProvider(ctx context.Context, reference string) (adapter.ProviderStatus, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	ps, err := c.gateway.GetStatus(ctx, reference)
	metrics.ObserveProviderCall("get_status", callResult(err), time.Since(start))
	return ps, err
}

func mapProviderStatus(ps adapter.ProviderStatus) (model.PaymentStatus, bool) {
	switch ps {
	case adapter.ProviderStatusPaid:
		return model.PaymentStatusPaid, true
	case adapter.ProviderStatusFailed:
		return model.PaymentStatusFailed, true
	case adapter.ProviderStatusExpired:
		return model.PaymentStatusExpired, true
	case adapter.ProviderStatusPending:
		return model.PaymentStatusPending, true
	default:
		return "", false
	}
}

func callResult(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "error"
	}
}

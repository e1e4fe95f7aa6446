package sched

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"payment-lifecycle/internal/domain"
	"payment-lifecycle/internal/domain/model"
	"payment-lifecycle/internal/domain/ports/repository"
	"payment-lifecycle/internal/infra/logging"
	"payment-lifecycle/internal/infra/metrics"
	"payment-lifecycle/internal/infra/redis"
	"payment-lifecycle/internal/infra/worker"
	"payment-lifecycle/internal/usecase"
)

const (
	reconcilerLockKey = "payment:reconciler:lock"
	reconcilerSource  = "reconciler"
	reconcileBatch    = 200
)

type pendingLister interface {
	ListPendingOlderThan(ctx context.Context, tx repository.Tx, olderThan time.Time, limit int) ([]*model.PaymentRecord, error)
}

type reconciler interface {
	Reconcile(ctx context.Context, reference, source string) (model.PaymentStatus, bool)
}

type transitioner interface {
	Transition(ctx context.Context, req usecase.TransitionRequest) (*model.PaymentRecord, usecase.MutationResult, error)
}

// SweepResult counts what one sweep did.
type SweepResult struct {
	Scanned    int
	Reconciled int
	Expired    int
	Unchanged  int
	Failed     int
}

// PaymentReconciler periodically re-queries the provider for pending records
// whose callback never arrived, and expires records past their provider expiry
// plus a grace period. One replica sweeps at a time under a Redis lock.
type PaymentReconciler struct {
	payments  pendingLister
	checker   reconciler
	store     transitioner
	locker    redis.Locker // optional
	interval  time.Duration
	freshness time.Duration
	grace     time.Duration
	workers   int
	log       *zerolog.Logger
	now       func() time.Time
}

type ReconcilerConfig struct {
	Interval  time.Duration
	Freshness time.Duration
	Grace     time.Duration
	// Concurrency bounds the provider queries in flight during one sweep.
	Concurrency int
}

func NewPaymentReconciler(payments pendingLister, checker reconciler, store transitioner, locker redis.Locker, cfg ReconcilerConfig, logger *zerolog.Logger) *PaymentReconciler {
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Minute
	}
	if cfg.Freshness <= 0 {
		cfg.Freshness = 2 * time.Minute
	}
	if cfg.Grace < 0 {
		cfg.Grace = 0
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	recLog := logger.With().Str("component", "PaymentReconciler").Logger()
	return &PaymentReconciler{
		payments:  payments,
		checker:   checker,
		store:     store,
		locker:    locker,
		interval:  cfg.Interval,
		freshness: cfg.Freshness,
		grace:     cfg.Grace,
		workers:   cfg.Concurrency,
		log:       &recLog,
		now:       time.Now,
	}
}

func (w *PaymentReconciler) Run(ctx context.Context) error {
	w.log.Info().Dur("interval", w.interval).Msg("Starting payment reconciler")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping payment reconciler")
			return ctx.Err()
		case <-ticker.C:
			res, err := w.Sweep(ctx)
			if err != nil {
				w.log.Error().Err(err).Msg("payment reconciler sweep failed")
				continue
			}
			if res.Scanned > 0 {
				w.log.Info().
					Int("scanned", res.Scanned).
					Int("reconciled", res.Reconciled).
					Int("expired", res.Expired).
					Int("failed", res.Failed).
					Msg("payment reconciler sweep done")
			}
		}
	}
}

// Sweep runs one pass. Per-record errors are counted and logged; they never
// abort the pass.
func (w *PaymentReconciler) Sweep(ctx context.Context) (SweepResult, error) {
	var res SweepResult
	if w.locker != nil {
		token, err := w.locker.TryLock(ctx, reconcilerLockKey, w.interval)
		if errors.Is(err, redis.ErrLockHeld) {
			metrics.IncReconcilerRun("skipped")
			return res, nil
		}
		if err != nil {
			metrics.IncReconcilerRun("error")
			return res, err
		}
		defer func() {
			if err := w.locker.Unlock(context.WithoutCancel(ctx), reconcilerLockKey, token); err != nil {
				w.log.Warn().Err(err).Msg("reconciler unlock failed")
			}
		}()
	}

	now := w.now()
	pending, err := w.payments.ListPendingOlderThan(ctx, nil, now.Add(-w.freshness), reconcileBatch)
	if err != nil {
		metrics.IncReconcilerRun("error")
		return res, err
	}
	var mu sync.Mutex
	pool := worker.NewPool(w.workers, w.log)
	pool.Start(ctx)
	for _, p := range pending {
		p := p
		err := pool.Submit(ctx, func(ctx context.Context) error {
			outcome := w.reconcileOne(ctx, p, now)
			metrics.IncReconcilerRecord(outcome)
			mu.Lock()
			defer mu.Unlock()
			res.Scanned++
			switch outcome {
			case "reconciled":
				res.Reconciled++
			case "expired":
				res.Expired++
			case "unchanged":
				res.Unchanged++
			default:
				res.Failed++
			}
			return nil
		})
		if err != nil {
			break
		}
	}
	pool.Stop()
	metrics.IncReconcilerRun("ok")
	return res, nil
}

func (w *PaymentReconciler) reconcileOne(ctx context.Context, p *model.PaymentRecord, now time.Time) string {
	ctx = logging.WithReference(ctx, p.MerchantReference)
	l := logging.With(ctx, w.log)

	st, ok := w.checker.Reconcile(ctx, p.MerchantReference, reconcilerSource)
	if !ok {
		l.Debug().Str("payment_id", p.ID).Msg("provider status unknown; retry next sweep")
		return "unknown"
	}
	if st != model.PaymentStatusPending {
		return "reconciled"
	}
	if p.ExpiresAt == nil || now.Before(p.ExpiresAt.Add(w.grace)) {
		return "unchanged"
	}

	_, _, err := w.store.Transition(ctx, usecase.TransitionRequest{
		PaymentID: p.ID,
		To:        model.PaymentStatusExpired,
		Source:    reconcilerSource,
		EventData: map[string]interface{}{"expires_at": p.ExpiresAt.UTC().Format(time.RFC3339)},
	})
	switch {
	case err == nil:
		return "expired"
	case errors.Is(err, domain.ErrConflict), errors.Is(err, domain.ErrInvalidTransition):
		l.Warn().Err(err).Str("payment_id", p.ID).Msg("expiry skipped: record moved")
		return domain.Kind(err)
	default:
		l.Error().Err(err).Str("payment_id", p.ID).Msg("expiry failed")
		return "error"
	}
}

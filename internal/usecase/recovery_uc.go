// File: internal/usecase/recovery_uc.go
package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"payment-lifecycle/internal/domain"
	"payment-lifecycle/internal/domain/model"
	"payment-lifecycle/internal/domain/ports/adapter"
	"payment-lifecycle/internal/domain/ports/repository"
	"payment-lifecycle/internal/infra/logging"
	"payment-lifecycle/internal/infra/metrics"
)

const (
	recoveryListLimit   = 500
	recoverySearchLimit = 50
)

// RecoveryService finds payments that fell through the cracks and lets admins
// and returning users attach or close them out. Authorization is checked here,
// before any record is read, so a Forbidden answer says nothing about whether
// the record exists.
type RecoveryService struct {
	payments  repository.PaymentRepository
	store     *PaymentStore
	audit     *AuditLog
	admins    adapter.AdminDirectory
	staleness time.Duration
	log       *zerolog.Logger
	now       func() time.Time
}

func NewRecoveryService(payments repository.PaymentRepository, store *PaymentStore, audit *AuditLog, admins adapter.AdminDirectory, staleness time.Duration, logger *zerolog.Logger) *RecoveryService {
	if staleness <= 0 {
		staleness = time.Hour
	}
	return &RecoveryService{
		payments:  payments,
		store:     store,
		audit:     audit,
		admins:    admins,
		staleness: staleness,
		log:       logger,
		now:       time.Now,
	}
}

// ListOrphaned returns pending/failed records untouched for longer than the
// staleness threshold, plus failed records nobody owns. Newest first.
func (s *RecoveryService) ListOrphaned(ctx context.Context, actorID string) (out []*model.PaymentRecord, err error) {
	defer s.track("list_orphaned", &err)
	if err := s.requireAdmin(ctx, actorID, "list_orphaned", ""); err != nil {
		return nil, err
	}
	return s.payments.ListOrphaned(ctx, nil, repository.OrphanQuery{
		StaleBefore: s.now().Add(-s.staleness),
		Limit:       recoveryListLimit,
	})
}

// ListFailed returns every failed record, newest first.
func (s *RecoveryService) ListFailed(ctx context.Context, actorID string) (out []*model.PaymentRecord, err error) {
	defer s.track("list_failed", &err)
	if err := s.requireAdmin(ctx, actorID, "list_failed", ""); err != nil {
		return nil, err
	}
	return s.payments.ListByStatus(ctx, nil, model.PaymentStatusFailed, recoveryListLimit)
}

// LinkPayment attributes a record to userID on an admin's authority. An owned
// record is only reassigned when override is set.
func (s *RecoveryService) LinkPayment(ctx context.Context, actorID, paymentID, userID, notes string, override bool) (p *model.PaymentRecord, err error) {
	defer s.track("link_payment", &err)
	if err := s.requireAdmin(ctx, actorID, "link_payment", paymentID); err != nil {
		return nil, err
	}
	if paymentID == "" || userID == "" {
		return nil, domain.ErrMissingFields
	}
	p, _, err = s.store.SetOwner(ctx, OwnerChange{
		PaymentID:   paymentID,
		UserID:      userID,
		ActorID:     actorID,
		Override:    override,
		Event:       model.AuditAdminLinkedPayment,
		RejectEvent: model.AuditLinkRejected,
		EventData:   map[string]interface{}{"notes": notes},
	})
	return p, err
}

// ResolvePayment closes a record out as refunded. Resolving an already
// refunded record is an idempotent success.
func (s *RecoveryService) ResolvePayment(ctx context.Context, actorID, paymentID, notes string) (p *model.PaymentRecord, err error) {
	defer s.track("resolve_payment", &err)
	if err := s.requireAdmin(ctx, actorID, "resolve_payment", paymentID); err != nil {
		return nil, err
	}
	if paymentID == "" {
		return nil, domain.ErrMissingFields
	}
	p, _, err = s.store.Transition(ctx, TransitionRequest{
		PaymentID: paymentID,
		To:        model.PaymentStatusRefunded,
		ActorID:   actorID,
		Admin:     true,
		Source:    "admin_resolve",
		Event:     model.AuditAdminResolvedPayment,
		EventData: map[string]interface{}{"notes": notes},
	})
	return p, err
}

// UserRecoveryCheck lists pending/failed records whose merchant reference
// carries the token derived from the email's local part. The match is
// approximate in both directions: it surfaces candidates, never ownership.
// userEmail defaults to actorEmail; only admins may search another address.
// Records owned by someone other than the actor are never returned.
func (s *RecoveryService) UserRecoveryCheck(ctx context.Context, actorID, actorEmail, userEmail string) (out []*model.PaymentRecord, err error) {
	defer s.track("user_recovery_check", &err)
	if strings.TrimSpace(actorID) == "" {
		return nil, domain.ErrForbidden
	}
	email := strings.TrimSpace(userEmail)
	if email == "" {
		email = strings.TrimSpace(actorEmail)
	}
	local := EmailLocalPart(email)
	if local == "" {
		return nil, domain.ErrMissingFields
	}
	if !strings.EqualFold(email, strings.TrimSpace(actorEmail)) {
		if err := s.requireAdmin(ctx, actorID, "user_recovery_check", ""); err != nil {
			return nil, err
		}
	}
	token := hintToken(local)
	if token == "" {
		return []*model.PaymentRecord{}, nil
	}
	return s.payments.SearchByReferenceToken(ctx, nil, repository.TokenSearch{
		Token:     "-" + token + "-",
		VisibleTo: actorID,
		Limit:     recoverySearchLimit,
	})
}

// ClaimPayment is the self-service counterpart of LinkPayment. Users may only
// claim for themselves; admins may claim on a user's behalf.
func (s *RecoveryService) ClaimPayment(ctx context.Context, actorID, paymentID, userID string) (p *model.PaymentRecord, err error) {
	defer s.track("claim_payment", &err)
	if actorID == "" {
		return nil, domain.ErrForbidden
	}
	if paymentID == "" || userID == "" {
		return nil, domain.ErrMissingFields
	}
	if actorID != userID {
		if err := s.requireAdmin(ctx, actorID, "claim_payment", paymentID); err != nil {
			return nil, err
		}
	}
	p, _, err = s.store.SetOwner(ctx, OwnerChange{
		PaymentID:   paymentID,
		UserID:      userID,
		ActorID:     actorID,
		Event:       model.AuditUserClaimedPayment,
		RejectEvent: model.AuditClaimRejected,
	})
	return p, err
}

// History returns the audit trail of one record.
func (s *RecoveryService) History(ctx context.Context, actorID, paymentID string) (out []*model.AuditEntry, err error) {
	defer s.track("payment_history", &err)
	if err := s.requireAdmin(ctx, actorID, "payment_history", paymentID); err != nil {
		return nil, err
	}
	if _, err := s.store.Get(ctx, paymentID); err != nil {
		return nil, err
	}
	return s.audit.History(ctx, paymentID)
}

func (s *RecoveryService) requireAdmin(ctx context.Context, actorID, action, paymentID string) error {
	if strings.TrimSpace(actorID) == "" {
		return domain.ErrForbidden
	}
	ok, err := s.admins.IsAdmin(ctx, actorID)
	if err != nil {
		return fmt.Errorf("admin lookup: %w", err)
	}
	if ok {
		return nil
	}
	logging.With(logging.WithActorID(ctx, actorID), s.log).Warn().
		Str("action", action).
		Msg("recovery action forbidden")
	if paymentID != "" {
		_ = s.audit.Append(ctx, nil, paymentID, model.AuditForbiddenAttempt, actorID, map[string]interface{}{
			"action": action,
		})
	}
	return domain.ErrForbidden
}

func (s *RecoveryService) track(action string, errp *error) {
	result := "ok"
	if *errp != nil {
		result = domain.Kind(*errp)
	}
	metrics.IncRecoveryAction(action, result)
}

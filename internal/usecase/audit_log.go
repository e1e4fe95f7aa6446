// File: internal/usecase/audit_log.go
package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"payment-lifecycle/internal/domain/model"
	"payment-lifecycle/internal/domain/ports/repository"
	"payment-lifecycle/internal/infra/metrics"
)

// AuditLog appends facts about payment records. It never updates or removes
// entries.
type AuditLog struct {
	repo repository.AuditRepository
	log  *zerolog.Logger
	now  func() time.Time
}

func NewAuditLog(repo repository.AuditRepository, logger *zerolog.Logger) *AuditLog {
	return &AuditLog{repo: repo, log: logger, now: time.Now}
}

// Append writes one entry through tx (nil for a standalone write). actorID ""
// records the system as the actor.
func (a *AuditLog) Append(ctx context.Context, tx repository.Tx, paymentID string, event model.AuditEventType, actorID string, data map[string]interface{}) error {
	e := &model.AuditEntry{
		ID:         uuid.NewString(),
		PaymentID:  paymentID,
		EventType:  event,
		EventData:  data,
		OccurredAt: a.now().UTC(),
	}
	if actorID != "" {
		e.ActorID = &actorID
	}
	if e.EventData == nil {
		e.EventData = map[string]interface{}{}
	}
	if err := a.repo.Append(ctx, tx, e); err != nil {
		metrics.IncAuditFailure(string(event))
		a.log.Error().Err(err).
			Str("payment_id", paymentID).
			Str("event_type", string(event)).
			Msg("audit append failed")
		return err
	}
	return nil
}

// History returns a record's entries in the order they occurred.
func (a *AuditLog) History(ctx context.Context, paymentID string) ([]*model.AuditEntry, error) {
	return a.repo.ListByPayment(ctx, nil, paymentID)
}

package repository

import (
	"context"

	"payment-lifecycle/internal/domain/model"
)

// AuditRepository is append-only; entries are never updated or deleted.
type AuditRepository interface {
	Append(ctx context.Context, tx Tx, e *model.AuditEntry) error
	ListByPayment(ctx context.Context, tx Tx, paymentID string) ([]*model.AuditEntry, error)
}

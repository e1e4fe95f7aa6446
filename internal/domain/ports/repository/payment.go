package repository

import (
	"context"
	"time"

	"payment-lifecycle/internal/domain/model"
)

// -----------------------------
// Payments
// -----------------------------

// OrphanQuery selects records that need operator attention.
type OrphanQuery struct {
	// StaleBefore: records whose updated_at is older than this are stale.
	StaleBefore time.Time
	Limit       int
}

// TokenSearch looks for recovery candidates by reference token. Only records
// that are unowned or owned by VisibleTo are returned.
type TokenSearch struct {
	Token     string
	VisibleTo string
	Limit     int
}

type PaymentRepository interface {
	// Create inserts a new record. A duplicate merchant reference yields domain.ErrAlreadyExists.
	Create(ctx context.Context, tx Tx, p *model.PaymentRecord) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.PaymentRecord, error)
	FindByReference(ctx context.Context, tx Tx, reference string) (*model.PaymentRecord, error)

	// UpdateStatusIf moves the record to `to` only while its status is still `from`.
	// Returns false when the condition did not hold.
	UpdateStatusIf(ctx context.Context, tx Tx, id string, from, to model.PaymentStatus) (bool, error)
	// SetOwnerIf sets user_id only while the current owner equals `expected`
	// (nil means "currently unowned"). Returns false when the condition did not hold.
	SetOwnerIf(ctx context.Context, tx Tx, id string, expected *string, userID string) (bool, error)

	// ListOrphaned returns pending/failed records that are stale, plus failed
	// records nobody owns, newest first.
	ListOrphaned(ctx context.Context, tx Tx, q OrphanQuery) ([]*model.PaymentRecord, error)
	ListByStatus(ctx context.Context, tx Tx, status model.PaymentStatus, limit int) ([]*model.PaymentRecord, error)
	// ListPendingOlderThan returns pending records last touched before the cutoff, oldest first.
	ListPendingOlderThan(ctx context.Context, tx Tx, olderThan time.Time, limit int) ([]*model.PaymentRecord, error)
	// SearchByReferenceToken returns pending/failed records whose reference
	// contains q.Token and that are unowned or owned by q.VisibleTo, newest first.
	SearchByReferenceToken(ctx context.Context, tx Tx, q TokenSearch) ([]*model.PaymentRecord, error)
}

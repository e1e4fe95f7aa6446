package postgres

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v4/pgxpool"

	"payment-lifecycle/internal/domain"
	"payment-lifecycle/internal/domain/model"
	"payment-lifecycle/internal/domain/ports/repository"
)

var _ repository.AuditRepository = (*auditRepo)(nil)

type auditRepo struct{ pool *pgxpool.Pool }

func NewAuditRepo(pool *pgxpool.Pool) *auditRepo {
	return &auditRepo{pool: pool}
}

func (r *auditRepo) Append(ctx context.Context, tx repository.Tx, e *model.AuditEntry) error {
	const q = `
INSERT INTO payment_audit_log (id, payment_id, event_type, actor_id, event_data, occurred_at)
VALUES ($1,$2,$3,$4,$5,$6);`

	data := e.EventData
	if data == nil {
		data = map[string]interface{}{}
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return domain.ErrInvalidArgument
	}
	_, err = execSQL(ctx, r.pool, tx, q, e.ID, e.PaymentID, string(e.EventType), e.ActorID, raw, e.OccurredAt)
	return mapWriteErr(err)
}

func (r *auditRepo) ListByPayment(ctx context.Context, tx repository.Tx, paymentID string) ([]*model.AuditEntry, error) {
	const q = `
SELECT id, payment_id, event_type, actor_id, event_data, occurred_at
FROM payment_audit_log
WHERE payment_id=$1
ORDER BY occurred_at ASC, id ASC;`

	rows, err := queryRows(ctx, r.pool, tx, q, paymentID)
	if err != nil {
		return nil, mapReadErr(err)
	}
	defer rows.Close()

	out := make([]*model.AuditEntry, 0)
	for rows.Next() {
		var (
			e     model.AuditEntry
			event string
			raw   []byte
		)
		if err := rows.Scan(&e.ID, &e.PaymentID, &event, &e.ActorID, &raw, &e.OccurredAt); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		e.EventType = model.AuditEventType(event)
		e.EventData = map[string]interface{}{}
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &e.EventData); err != nil {
				return nil, domain.ErrReadDatabaseRow
			}
		}
		out = append(out, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return out, nil
}

package postgres

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"payment-lifecycle/internal/domain"
	"payment-lifecycle/internal/domain/model"
	"payment-lifecycle/internal/domain/ports/repository"
)

var _ repository.PaymentRepository = (*paymentRepo)(nil)

type paymentRepo struct{ pool *pgxpool.Pool }

func NewPaymentRepo(pool *pgxpool.Pool) *paymentRepo {
	return &paymentRepo{pool: pool}
}

const paymentColumns = `id, merchant_reference, user_id, tier_id, payment_method, amount, status, expires_at, created_at, updated_at`

func (r *paymentRepo) Create(ctx context.Context, tx repository.Tx, p *model.PaymentRecord) error {
	const q = `
INSERT INTO payments (
  id, merchant_reference, user_id, tier_id, payment_method, amount, status, expires_at, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10);`

	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = p.CreatedAt
	}
	_, err := execSQL(ctx, r.pool, tx, q,
		p.ID, p.MerchantReference, p.UserID, p.TierID, string(p.PaymentMethod), p.Amount,
		string(p.Status), p.ExpiresAt, p.CreatedAt, p.UpdatedAt)
	return mapWriteErr(err)
}

func (r *paymentRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.PaymentRecord, error) {
	if !isUUID(id) {
		return nil, domain.ErrNotFound
	}
	q := `SELECT ` + paymentColumns + ` FROM payments WHERE id=$1`
	if _, ok := tx.(pgx.Tx); ok {
		q += " FOR UPDATE"
	}
	q += ";"
	return r.findOne(ctx, tx, q, id)
}

func (r *paymentRepo) FindByReference(ctx context.Context, tx repository.Tx, reference string) (*model.PaymentRecord, error) {
	q := `SELECT ` + paymentColumns + ` FROM payments WHERE merchant_reference=$1`
	if _, ok := tx.(pgx.Tx); ok {
		q += " FOR UPDATE"
	}
	q += ";"
	return r.findOne(ctx, tx, q, reference)
}

func (r *paymentRepo) UpdateStatusIf(ctx context.Context, tx repository.Tx, id string, from, to model.PaymentStatus) (bool, error) {
	if !isUUID(id) {
		return false, nil
	}
	const q = `UPDATE payments SET status=$3, updated_at=NOW() WHERE id=$1 AND status=$2;`
	cmd, err := execSQL(ctx, r.pool, tx, q, id, string(from), string(to))
	if err != nil {
		return false, mapWriteErr(err)
	}
	return cmd.RowsAffected() == 1, nil
}

func (r *paymentRepo) SetOwnerIf(ctx context.Context, tx repository.Tx, id string, expected *string, userID string) (bool, error) {
	if !isUUID(id) {
		return false, nil
	}
	q := `UPDATE payments SET user_id=$2, updated_at=NOW() WHERE id=$1 AND user_id IS NULL;`
	args := []interface{}{id, userID}
	if expected != nil {
		q = `UPDATE payments SET user_id=$2, updated_at=NOW() WHERE id=$1 AND user_id=$3;`
		args = append(args, *expected)
	}
	cmd, err := execSQL(ctx, r.pool, tx, q, args...)
	if err != nil {
		return false, mapWriteErr(err)
	}
	return cmd.RowsAffected() == 1, nil
}

func (r *paymentRepo) ListOrphaned(ctx context.Context, tx repository.Tx, oq repository.OrphanQuery) ([]*model.PaymentRecord, error) {
	const q = `
SELECT ` + paymentColumns + `
FROM payments
WHERE status IN ('pending','failed')
  AND (updated_at < $1 OR (user_id IS NULL AND status = 'failed'))
ORDER BY created_at DESC
LIMIT $2;`
	return r.list(ctx, tx, q, oq.StaleBefore, normLimit(oq.Limit))
}

func (r *paymentRepo) ListByStatus(ctx context.Context, tx repository.Tx, status model.PaymentStatus, limit int) ([]*model.PaymentRecord, error) {
	const q = `SELECT ` + paymentColumns + ` FROM payments WHERE status=$1 ORDER BY created_at DESC LIMIT $2;`
	return r.list(ctx, tx, q, string(status), normLimit(limit))
}

func (r *paymentRepo) ListPendingOlderThan(ctx context.Context, tx repository.Tx, olderThan time.Time, limit int) ([]*model.PaymentRecord, error) {
	const q = `SELECT ` + paymentColumns + ` FROM payments WHERE status='pending' AND updated_at < $1 ORDER BY updated_at ASC LIMIT $2;`
	return r.list(ctx, tx, q, olderThan, normLimit(limit))
}

func (r *paymentRepo) SearchByReferenceToken(ctx context.Context, tx repository.Tx, ts repository.TokenSearch) ([]*model.PaymentRecord, error) {
	if ts.Token == "" || ts.VisibleTo == "" {
		return nil, domain.ErrInvalidArgument
	}
	const q = `
SELECT ` + paymentColumns + `
FROM payments
WHERE status IN ('pending','failed')
  AND merchant_reference LIKE $1 ESCAPE '\'
  AND (user_id IS NULL OR user_id = $2)
ORDER BY created_at DESC
LIMIT $3;`
	return r.list(ctx, tx, q, "%"+escapeLike(ts.Token)+"%", ts.VisibleTo, normLimit(ts.Limit))
}

func (r *paymentRepo) findOne(ctx context.Context, tx repository.Tx, q string, arg interface{}) (*model.PaymentRecord, error) {
	row, err := pickRow(ctx, r.pool, tx, q, arg)
	if err != nil {
		return nil, err
	}
	p, err := scanPayment(row)
	if err != nil {
		return nil, mapReadErr(err)
	}
	return p, nil
}

func (r *paymentRepo) list(ctx context.Context, tx repository.Tx, q string, args ...interface{}) ([]*model.PaymentRecord, error) {
	rows, err := queryRows(ctx, r.pool, tx, q, args...)
	if err != nil {
		return nil, mapReadErr(err)
	}
	defer rows.Close()

	out := make([]*model.PaymentRecord, 0)
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return out, nil
}

func scanPayment(row pgx.Row) (*model.PaymentRecord, error) {
	var (
		p      model.PaymentRecord
		method string
		status string
	)
	if err := row.Scan(&p.ID, &p.MerchantReference, &p.UserID, &p.TierID, &method, &p.Amount, &status, &p.ExpiresAt, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	p.PaymentMethod = model.PaymentMethod(method)
	p.Status = model.PaymentStatus(status)
	return &p, nil
}

// isUUID guards the uuid column against ids that would fail the cast.
func isUUID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func normLimit(n int) int {
	if n <= 0 || n > 1000 {
		return 1000
	}
	return n
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string { return likeEscaper.Replace(s) }

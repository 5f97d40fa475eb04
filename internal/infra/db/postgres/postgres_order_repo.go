package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/shopspring/decimal"

	"filmstream/internal/domain"
	"filmstream/internal/domain/model"
	"filmstream/internal/domain/ports/repository"
)

var _ repository.OrderRepository = (*orderRepo)(nil)

type orderRepo struct{ pool *pgxpool.Pool }

func NewOrderRepo(pool *pgxpool.Pool) *orderRepo {
	return &orderRepo{pool: pool}
}

const orderColumns = `id, user_id, plan_id, film_id, amount::text, currency, order_status,
  COALESCE(payment_method, ''), external_payment_id, metadata, created_at, paid_at, expires_at`

func (r *orderRepo) Create(ctx context.Context, tx repository.Tx, o *model.Order) error {
	planID, filmID := model.TargetColumns(o.Target)
	meta, err := marshalMeta(o.Metadata)
	if err != nil {
		return err
	}
	const q = `
INSERT INTO orders (
  id, user_id, order_type, plan_id, film_id, amount, currency, order_status, payment_method, external_payment_id, metadata, created_at, paid_at, expires_at
) VALUES (
  $1,$2,$3,$4,$5,$6::numeric,$7,$8,NULLIF($9,''),$10,$11,$12,$13,$14
);`
	_, err = execSQL(ctx, r.pool, tx, q, o.ID, o.UserID, string(o.Type()), planID, filmID, o.Amount.String(), o.Currency,
		string(o.Status), o.PaymentMethod, o.ExternalPaymentID, meta, o.CreatedAt, o.PaidAt, o.ExpiresAt)
	return writeErr(err)
}

func (r *orderRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Order, error) {
	q := `SELECT ` + orderColumns + ` FROM orders WHERE id=$1`
	if inTx(tx) {
		q += " FOR UPDATE"
	}
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	return scanOrder(row)
}

func (r *orderRepo) FindByExternalPaymentID(ctx context.Context, tx repository.Tx, externalID string) (*model.Order, error) {
	q := `SELECT ` + orderColumns + ` FROM orders WHERE external_payment_id=$1`
	if inTx(tx) {
		q += " FOR UPDATE"
	}
	row, err := pickRow(ctx, r.pool, tx, q, externalID)
	if err != nil {
		return nil, err
	}
	return scanOrder(row)
}

func (r *orderRepo) ListByUser(ctx context.Context, tx repository.Tx, userID string) ([]*model.Order, error) {
	q := `SELECT ` + orderColumns + ` FROM orders WHERE user_id=$1 ORDER BY created_at DESC;`
	return r.list(ctx, tx, q, userID)
}

func (r *orderRepo) ListPendingOlderThan(ctx context.Context, tx repository.Tx, olderThan time.Time, limit int) ([]*model.Order, error) {
	if limit <= 0 {
		limit = 100
	}
	q := `SELECT ` + orderColumns + ` FROM orders WHERE order_status='pending' AND created_at < $1 ORDER BY created_at ASC LIMIT $2;`
	return r.list(ctx, tx, q, olderThan, limit)
}

func (r *orderRepo) ListCheckableOlderThan(ctx context.Context, tx repository.Tx, olderThan time.Time, limit int) ([]*model.Order, error) {
	if limit <= 0 {
		limit = 100
	}
	q := `SELECT ` + orderColumns + ` FROM orders
 WHERE order_status='pending' AND external_payment_id IS NOT NULL AND created_at < $1
 ORDER BY created_at ASC LIMIT $2;`
	return r.list(ctx, tx, q, olderThan, limit)
}

func (r *orderRepo) list(ctx context.Context, tx repository.Tx, q string, args ...interface{}) ([]*model.Order, error) {
	rows, err := queryRows(ctx, r.pool, tx, q, args...)
	if err != nil {
		return nil, readErr(err)
	}
	defer rows.Close()

	var out []*model.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, readErr(err)
	}
	return out, nil
}

func (r *orderRepo) AttachPayment(ctx context.Context, tx repository.Tx, id, externalID, paymentMethod string, metadata map[string]any) error {
	meta, err := marshalMeta(metadata)
	if err != nil {
		return err
	}
	const q = `UPDATE orders SET external_payment_id=$2, payment_method=$3, metadata=$4 WHERE id=$1;`
	cmd, err := execSQL(ctx, r.pool, tx, q, id, externalID, paymentMethod, meta)
	if err != nil {
		return writeErr(err)
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *orderRepo) UpdateStatusByExternalID(ctx context.Context, tx repository.Tx, externalID string, status model.OrderStatus, paidAt *time.Time) (int64, error) {
	// a paid order never moves back
	const q = `
UPDATE orders SET order_status=$2, paid_at=COALESCE(paid_at, $3)
 WHERE external_payment_id=$1 AND (order_status <> 'paid' OR $2 = 'paid');`
	cmd, err := execSQL(ctx, r.pool, tx, q, externalID, string(status), paidAt)
	if err != nil {
		return 0, writeErr(err)
	}
	return cmd.RowsAffected(), nil
}

func (r *orderRepo) UpdateStatus(ctx context.Context, tx repository.Tx, id string, status model.OrderStatus, paidAt *time.Time) error {
	const q = `UPDATE orders SET order_status=$2, paid_at=COALESCE(paid_at, $3) WHERE id=$1;`
	cmd, err := execSQL(ctx, r.pool, tx, q, id, string(status), paidAt)
	if err != nil {
		return writeErr(err)
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// UpdateStatusIfPending atomically updates status only when current status is 'pending'.
func (r *orderRepo) UpdateStatusIfPending(ctx context.Context, tx repository.Tx, id string, status model.OrderStatus, paidAt *time.Time) (bool, error) {
	const q = `
    UPDATE orders
       SET order_status = $2,
           paid_at = COALESCE(paid_at, $3)
     WHERE id = $1
       AND order_status = 'pending'`
	cmd, err := execSQL(ctx, r.pool, tx, q, id, string(status), paidAt)
	if err != nil {
		return false, writeErr(err)
	}
	return cmd.RowsAffected() >= 1, nil
}

func scanOrder(row scanner) (*model.Order, error) {
	var (
		o              model.Order
		planID, filmID *string
		amount, status string
		meta           []byte
	)
	if err := row.Scan(&o.ID, &o.UserID, &planID, &filmID, &amount, &o.Currency, &status,
		&o.PaymentMethod, &o.ExternalPaymentID, &meta, &o.CreatedAt, &o.PaidAt, &o.ExpiresAt); err != nil {
		return nil, readErr(err)
	}
	target, err := model.TargetFromColumns(planID, filmID)
	if err != nil {
		return nil, fmt.Errorf("%w: order %s has no single target", domain.ErrReadDatabaseRow, o.ID)
	}
	o.Target = target
	o.Status = model.OrderStatus(status)
	if o.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, fmt.Errorf("%w: amount %q", domain.ErrReadDatabaseRow, amount)
	}
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &o.Metadata); err != nil {
			return nil, fmt.Errorf("%w: metadata: %v", domain.ErrReadDatabaseRow, err)
		}
	}
	return &o, nil
}

func marshalMeta(m map[string]any) ([]byte, error) {
	if m == nil {
		return nil, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("%w: metadata: %v", domain.ErrInvalidArgument, err)
	}
	return b, nil
}

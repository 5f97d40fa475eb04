package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/shopspring/decimal"

	"filmstream/internal/domain"
	"filmstream/internal/domain/model"
	"filmstream/internal/domain/ports/repository"
)

// Ensure subscriptionRepo implements repository.SubscriptionRepository
var _ repository.SubscriptionRepository = (*subscriptionRepo)(nil)

type subscriptionRepo struct {
	pool *pgxpool.Pool
}

func NewSubscriptionRepo(pool *pgxpool.Pool) *subscriptionRepo {
	return &subscriptionRepo{pool: pool}
}

const subscriptionColumns = `s.id, s.user_id, s.plan_id, s.order_id, s.subscription_status, s.started_at, s.expires_at, s.auto_renew, s.created_at`

func (r *subscriptionRepo) Save(ctx context.Context, tx repository.Tx, s *model.Subscription) error {
	const q = `
INSERT INTO subscriptions (
  id, user_id, plan_id, order_id, subscription_status, started_at, expires_at, auto_renew, created_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9);`

	_, err := execSQL(ctx, r.pool, tx, q, s.ID, s.UserID, s.PlanID, s.OrderID, string(s.Status), s.StartedAt, s.ExpiresAt, s.AutoRenew, s.CreatedAt)
	return writeErr(err)
}

func (r *subscriptionRepo) FindByOrderID(ctx context.Context, tx repository.Tx, orderID string) (*model.Subscription, error) {
	q := `SELECT ` + subscriptionColumns + ` FROM subscriptions s WHERE s.order_id=$1 LIMIT 1;`
	row, err := pickRow(ctx, r.pool, tx, q, orderID)
	if err != nil {
		return nil, err
	}
	return scanSubscription(row)
}

func (r *subscriptionRepo) HasActive(ctx context.Context, tx repository.Tx, userID string) (bool, error) {
	const q = `SELECT EXISTS (SELECT 1 FROM subscriptions WHERE user_id=$1 AND subscription_status='active');`
	row, err := pickRow(ctx, r.pool, tx, q, userID)
	if err != nil {
		return false, err
	}
	var ok bool
	if err := row.Scan(&ok); err != nil {
		return false, readErr(err)
	}
	return ok, nil
}

func (r *subscriptionRepo) FindLatestByUser(ctx context.Context, tx repository.Tx, userID string) (*model.SubscriptionWithPlan, error) {
	q := `
SELECT ` + subscriptionColumns + `,
       COALESCE(p.name, ''), COALESCE(p.description, ''), COALESCE(p.price::text, '0'), COALESCE(p.currency, ''), COALESCE(p.duration_days, 0)
  FROM subscriptions s
  LEFT JOIN subscription_plans p ON p.id = s.plan_id
 WHERE s.user_id=$1
 ORDER BY s.expires_at DESC
 LIMIT 1;`
	row, err := pickRow(ctx, r.pool, tx, q, userID)
	if err != nil {
		return nil, err
	}

	var (
		out    model.SubscriptionWithPlan
		status string
		price  string
	)
	s := &out.Subscription
	if err := row.Scan(&s.ID, &s.UserID, &s.PlanID, &s.OrderID, &status, &s.StartedAt, &s.ExpiresAt, &s.AutoRenew, &s.CreatedAt,
		&out.Plan.Name, &out.Plan.Description, &price, &out.Plan.Currency, &out.Plan.DurationDays); err != nil {
		return nil, readErr(err)
	}
	s.Status = model.SubscriptionStatus(status)
	out.Plan.ID = s.PlanID
	if out.Plan.Price, err = decimal.NewFromString(price); err != nil {
		return nil, fmt.Errorf("%w: price %q", domain.ErrReadDatabaseRow, price)
	}
	return &out, nil
}

func (r *subscriptionRepo) ExpireActive(ctx context.Context, tx repository.Tx, userID *string, now time.Time) (int, error) {
	const q = `
UPDATE subscriptions
   SET subscription_status='expired'
 WHERE subscription_status='active'
   AND expires_at < $1
   AND ($2::text IS NULL OR user_id = $2);`
	cmd, err := execSQL(ctx, r.pool, tx, q, now, userID)
	if err != nil {
		return 0, writeErr(err)
	}
	return int(cmd.RowsAffected()), nil
}

func (r *subscriptionRepo) CancelActiveByUser(ctx context.Context, tx repository.Tx, userID string) (int, error) {
	const q = `UPDATE subscriptions SET subscription_status='cancelled' WHERE user_id=$1 AND subscription_status='active';`
	cmd, err := execSQL(ctx, r.pool, tx, q, userID)
	if err != nil {
		return 0, writeErr(err)
	}
	return int(cmd.RowsAffected()), nil
}

func (r *subscriptionRepo) CountByStatus(ctx context.Context, tx repository.Tx) (map[model.SubscriptionStatus]int, error) {
	const q = `SELECT subscription_status, COUNT(*) FROM subscriptions GROUP BY subscription_status;`
	rows, err := queryRows(ctx, r.pool, tx, q)
	if err != nil {
		return nil, readErr(err)
	}
	defer rows.Close()
	out := make(map[model.SubscriptionStatus]int)
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, readErr(err)
		}
		out[model.SubscriptionStatus(status)] = n
	}
	return out, rows.Err()
}

func scanSubscription(row scanner) (*model.Subscription, error) {
	var (
		s      model.Subscription
		status string
	)
	if err := row.Scan(&s.ID, &s.UserID, &s.PlanID, &s.OrderID, &status, &s.StartedAt, &s.ExpiresAt, &s.AutoRenew, &s.CreatedAt); err != nil {
		return nil, readErr(err)
	}
	s.Status = model.SubscriptionStatus(status)
	return &s, nil
}

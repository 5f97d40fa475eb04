package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/shopspring/decimal"

	"filmstream/internal/domain"
	"filmstream/internal/domain/model"
	"filmstream/internal/domain/ports/repository"
)

// Ensure interface compliance
var _ repository.SubscriptionPlanRepository = (*PostgresPlanRepo)(nil)

type PostgresPlanRepo struct {
	pool *pgxpool.Pool
}

func NewPostgresPlanRepo(pool *pgxpool.Pool) *PostgresPlanRepo {
	return &PostgresPlanRepo{pool: pool}
}

const planColumns = `id, name, COALESCE(description, ''), price::text, currency, duration_days, is_active, created_at`

func (r *PostgresPlanRepo) Save(ctx context.Context, tx repository.Tx, plan *model.SubscriptionPlan) error {
	const sql = `
INSERT INTO subscription_plans (id, name, description, price, currency, duration_days, is_active, created_at)
VALUES ($1, $2, NULLIF($3, ''), $4::numeric, $5, $6, $7, $8)
ON CONFLICT (id) DO UPDATE
  SET name          = EXCLUDED.name,
      description   = EXCLUDED.description,
      price         = EXCLUDED.price,
      currency      = EXCLUDED.currency,
      duration_days = EXCLUDED.duration_days,
      is_active     = EXCLUDED.is_active;
`
	_, err := execSQL(ctx, r.pool, tx, sql,
		plan.ID, plan.Name, plan.Description, plan.Price.String(), plan.Currency, plan.DurationDays, plan.IsActive, plan.CreatedAt,
	)
	return writeErr(err)
}

func (r *PostgresPlanRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.SubscriptionPlan, error) {
	sql := `SELECT ` + planColumns + ` FROM subscription_plans WHERE id = $1;`
	row, err := pickRow(ctx, r.pool, tx, sql, id)
	if err != nil {
		return nil, err
	}
	return scanPlan(row)
}

func (r *PostgresPlanRepo) ListActive(ctx context.Context, tx repository.Tx) ([]*model.SubscriptionPlan, error) {
	sql := `SELECT ` + planColumns + ` FROM subscription_plans WHERE is_active = true ORDER BY price ASC;`
	rows, err := queryRows(ctx, r.pool, tx, sql)
	if err != nil {
		return nil, readErr(err)
	}
	defer rows.Close()
	var out []*model.SubscriptionPlan
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *PostgresPlanRepo) Delete(ctx context.Context, tx repository.Tx, id string) error {
	// 1) refuse while someone still holds the plan
	const countSQL = `
SELECT COUNT(1) FROM subscriptions s
WHERE s.plan_id = $1 AND s.subscription_status = 'active';
`
	row, err := pickRow(ctx, r.pool, tx, countSQL, id)
	if err != nil {
		return err
	}
	var cnt int
	if err := row.Scan(&cnt); err != nil {
		return readErr(err)
	}
	if cnt > 0 {
		return fmt.Errorf("%w: plan %s has %d active subscriptions", domain.ErrInvalidArgument, id, cnt)
	}

	// 2) safe to delete
	const delSQL = `DELETE FROM subscription_plans WHERE id = $1;`
	ct, err := execSQL(ctx, r.pool, tx, delSQL, id)
	if err != nil {
		return writeErr(err)
	}
	if ct.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func scanPlan(row scanner) (*model.SubscriptionPlan, error) {
	var (
		p     model.SubscriptionPlan
		price string
	)
	if err := row.Scan(&p.ID, &p.Name, &p.Description, &price, &p.Currency, &p.DurationDays, &p.IsActive, &p.CreatedAt); err != nil {
		return nil, readErr(err)
	}
	d, err := decimal.NewFromString(price)
	if err != nil {
		return nil, fmt.Errorf("%w: price %q", domain.ErrReadDatabaseRow, price)
	}
	p.Price = d
	return &p, nil
}

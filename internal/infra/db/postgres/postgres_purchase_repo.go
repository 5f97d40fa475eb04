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

type PostgresPurchaseRepo struct {
	db *pgxpool.Pool
}

func NewPostgresPurchaseRepo(db *pgxpool.Pool) *PostgresPurchaseRepo {
	return &PostgresPurchaseRepo{db: db}
}

var _ repository.PurchaseRepository = (*PostgresPurchaseRepo)(nil)

const purchaseColumns = `id, user_id, film_id, order_id, purchased_at, expires_at`

func (r *PostgresPurchaseRepo) Save(ctx context.Context, tx repository.Tx, p *model.UserPurchasedFilm) error {
	if p.PurchasedAt.IsZero() {
		p.PurchasedAt = time.Now().UTC()
	}
	_, err := execSQL(ctx, r.db, tx, `
		INSERT INTO user_purchased_films (id, user_id, film_id, order_id, purchased_at, expires_at)
		VALUES ($1,$2,$3,$4,$5,$6)
	`, p.ID, p.UserID, p.FilmID, p.OrderID, p.PurchasedAt, p.ExpiresAt)
	return writeErr(err)
}

func (r *PostgresPurchaseRepo) FindByOrderID(ctx context.Context, tx repository.Tx, orderID string) (*model.UserPurchasedFilm, error) {
	row, err := pickRow(ctx, r.db, tx, `SELECT `+purchaseColumns+` FROM user_purchased_films WHERE order_id=$1 LIMIT 1`, orderID)
	if err != nil {
		return nil, err
	}
	return scanPurchase(row)
}

func (r *PostgresPurchaseRepo) FindValid(ctx context.Context, tx repository.Tx, userID, filmID string, now time.Time) (*model.UserPurchasedFilm, error) {
	row, err := pickRow(ctx, r.db, tx, `
		SELECT `+purchaseColumns+`
		FROM user_purchased_films
		WHERE user_id=$1 AND film_id=$2 AND (expires_at IS NULL OR expires_at > $3)
		ORDER BY purchased_at DESC
		LIMIT 1
	`, userID, filmID, now)
	if err != nil {
		return nil, err
	}
	return scanPurchase(row)
}

func (r *PostgresPurchaseRepo) ListValidByUser(ctx context.Context, tx repository.Tx, userID string, now time.Time) ([]*model.PurchasedFilm, error) {
	rows, err := queryRows(ctx, r.db, tx, `
		SELECT up.id, f.id, f.name, f.price::text, up.purchased_at, up.expires_at
		FROM user_purchased_films up
		JOIN films f ON f.id = up.film_id
		WHERE up.user_id=$1 AND (up.expires_at IS NULL OR up.expires_at > $2)
		ORDER BY up.purchased_at DESC
	`, userID, now)
	if err != nil {
		return nil, readErr(err)
	}
	defer rows.Close()
	var out []*model.PurchasedFilm
	for rows.Next() {
		var (
			pf    model.PurchasedFilm
			price *string
		)
		if err := rows.Scan(&pf.ID, &pf.FilmID, &pf.FilmName, &price, &pf.PurchasedAt, &pf.ExpiresAt); err != nil {
			return nil, readErr(err)
		}
		if pf.FilmPrice, err = parseOptionalDecimal(price); err != nil {
			return nil, err
		}
		out = append(out, &pf)
	}
	return out, rows.Err()
}

func scanPurchase(row scanner) (*model.UserPurchasedFilm, error) {
	var p model.UserPurchasedFilm
	if err := row.Scan(&p.ID, &p.UserID, &p.FilmID, &p.OrderID, &p.PurchasedAt, &p.ExpiresAt); err != nil {
		return nil, readErr(err)
	}
	return &p, nil
}

func parseOptionalDecimal(s *string) (*decimal.Decimal, error) {
	if s == nil {
		return nil, nil
	}
	d, err := decimal.NewFromString(*s)
	if err != nil {
		return nil, fmt.Errorf("%w: decimal %q", domain.ErrReadDatabaseRow, *s)
	}
	return &d, nil
}

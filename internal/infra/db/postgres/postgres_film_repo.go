package postgres

import (
	"context"

	"github.com/jackc/pgx/v4/pgxpool"

	"filmstream/internal/domain/model"
	"filmstream/internal/domain/ports/repository"
)

var _ repository.FilmRepository = (*filmRepo)(nil)

type filmRepo struct{ pool *pgxpool.Pool }

func NewFilmRepo(pool *pgxpool.Pool) *filmRepo {
	return &filmRepo{pool: pool}
}

func (r *filmRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Film, error) {
	const q = `SELECT id, name, is_paid, price::text, COALESCE(film_url, '') FROM films WHERE id=$1;`
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	var (
		f     model.Film
		price *string
	)
	if err := row.Scan(&f.ID, &f.Name, &f.IsPaid, &price, &f.FilmURL); err != nil {
		return nil, readErr(err)
	}
	if f.Price, err = parseOptionalDecimal(price); err != nil {
		return nil, err
	}
	return &f, nil
}

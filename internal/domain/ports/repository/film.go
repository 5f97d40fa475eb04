package repository

import (
	"context"

	"filmstream/internal/domain/model"
)

// FilmRepository is a read-only view of the catalog.
type FilmRepository interface {
	FindByID(ctx context.Context, tx Tx, id string) (*model.Film, error)
}

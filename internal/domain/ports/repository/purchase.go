package repository

import (
	"context"
	"time"

	"filmstream/internal/domain/model"
)

type PurchaseRepository interface {
	// Save inserts a purchase. A second row for the same order yields domain.ErrAlreadyExists.
	Save(ctx context.Context, tx Tx, p *model.UserPurchasedFilm) error
	FindByOrderID(ctx context.Context, tx Tx, orderID string) (*model.UserPurchasedFilm, error)
	// FindValid returns a purchase of filmID by userID that has not lapsed at now.
	FindValid(ctx context.Context, tx Tx, userID, filmID string, now time.Time) (*model.UserPurchasedFilm, error)
	ListValidByUser(ctx context.Context, tx Tx, userID string, now time.Time) ([]*model.PurchasedFilm, error)
}

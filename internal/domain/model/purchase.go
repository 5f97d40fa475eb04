package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// UserPurchasedFilm is the per-film entitlement created by a paid film order.
// A nil ExpiresAt means the purchase never lapses.
type UserPurchasedFilm struct {
	ID          string
	UserID      string
	FilmID      string
	OrderID     string
	PurchasedAt time.Time
	ExpiresAt   *time.Time
}

func (p *UserPurchasedFilm) IsValidAt(t time.Time) bool {
	return p.ExpiresAt == nil || p.ExpiresAt.After(t)
}

// PurchasedFilm is a valid purchase joined with the film it unlocks.
type PurchasedFilm struct {
	ID          string
	FilmID      string
	FilmName    string
	FilmPrice   *decimal.Decimal
	PurchasedAt time.Time
	ExpiresAt   *time.Time
}

// File: internal/usecase/access_uc.go
package usecase

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"filmstream/internal/domain"
	"filmstream/internal/domain/model"
	"filmstream/internal/domain/ports/repository"
)

var _ AccessUseCase = (*accessUC)(nil)

// AccessDecision explains why a user may or may not watch a film.
type AccessDecision struct {
	FilmID          string `json:"filmId"`
	IsPaid          bool   `json:"isPaid"`
	Allowed         bool   `json:"hasAccess"`
	ViaSubscription bool   `json:"viaSubscription"`
	ViaPurchase     bool   `json:"viaPurchase"`
}

type AccessUseCase interface {
	HasActiveSubscription(ctx context.Context, userID string) (bool, error)
	HasUserPurchasedFilm(ctx context.Context, userID, filmID string) (bool, error)
	// GetUserSubscription returns the subscription with the furthest expiry, or nil when the user never had one.
	GetUserSubscription(ctx context.Context, userID string) (*model.SubscriptionWithPlan, error)
	CanAccessFilm(ctx context.Context, userID string, film *model.Film) (*AccessDecision, error)
	FilmAccessFlags(ctx context.Context, userID string, films []*model.Film) (map[string]AccessDecision, error)
	CheckFilmAccess(ctx context.Context, caller model.Caller, filmID string) (*AccessDecision, error)
}

type accessUC struct {
	subs      repository.SubscriptionRepository
	purchases repository.PurchaseRepository
	films     repository.FilmRepository
	expiry    ExpiryUseCase
	now       Clock
	logger    *zerolog.Logger
}

func NewAccessUseCase(
	subs repository.SubscriptionRepository,
	purchases repository.PurchaseRepository,
	films repository.FilmRepository,
	expiry ExpiryUseCase,
	clock Clock,
	logger *zerolog.Logger,
) *accessUC {
	l := logger.With().Str("component", "AccessUseCase").Logger()
	return &accessUC{
		subs:      subs,
		purchases: purchases,
		films:     films,
		expiry:    expiry,
		now:       orSystem(clock),
		logger:    &l,
	}
}

func (uc *accessUC) HasActiveSubscription(ctx context.Context, userID string) (bool, error) {
	if userID == "" {
		return false, nil
	}
	if _, err := uc.expiry.UpdateExpiredSubscriptions(ctx, &userID); err != nil {
		return false, err
	}
	return uc.subs.HasActive(ctx, repository.NoTX, userID)
}

func (uc *accessUC) HasUserPurchasedFilm(ctx context.Context, userID, filmID string) (bool, error) {
	if userID == "" || filmID == "" {
		return false, nil
	}
	_, err := uc.purchases.FindValid(ctx, repository.NoTX, userID, filmID, uc.now())
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, domain.ErrNotFound):
		return false, nil
	default:
		return false, err
	}
}

func (uc *accessUC) GetUserSubscription(ctx context.Context, userID string) (*model.SubscriptionWithPlan, error) {
	if _, err := uc.expiry.UpdateExpiredSubscriptions(ctx, &userID); err != nil {
		return nil, err
	}
	sub, err := uc.subs.FindLatestByUser(ctx, repository.NoTX, userID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return sub, nil
}

func (uc *accessUC) CanAccessFilm(ctx context.Context, userID string, film *model.Film) (*AccessDecision, error) {
	d := &AccessDecision{FilmID: film.ID, IsPaid: film.IsPaid}
	if !film.IsPaid {
		d.Allowed = true
		return d, nil
	}
	hasSub, err := uc.HasActiveSubscription(ctx, userID)
	if err != nil {
		return nil, err
	}
	if hasSub {
		d.Allowed, d.ViaSubscription = true, true
		return d, nil
	}
	bought, err := uc.HasUserPurchasedFilm(ctx, userID, film.ID)
	if err != nil {
		return nil, err
	}
	d.Allowed, d.ViaPurchase = bought, bought
	return d, nil
}

// FilmAccessFlags annotates a page of catalog films with one subscription lookup
// and a purchase lookup per paid film.
func (uc *accessUC) FilmAccessFlags(ctx context.Context, userID string, films []*model.Film) (map[string]AccessDecision, error) {
	out := make(map[string]AccessDecision, len(films))
	hasSub, err := uc.HasActiveSubscription(ctx, userID)
	if err != nil {
		return nil, err
	}
	for _, f := range films {
		d := AccessDecision{FilmID: f.ID, IsPaid: f.IsPaid}
		switch {
		case !f.IsPaid:
			d.Allowed = true
		case hasSub:
			d.Allowed, d.ViaSubscription = true, true
		default:
			bought, err := uc.HasUserPurchasedFilm(ctx, userID, f.ID)
			if err != nil {
				return nil, err
			}
			d.Allowed, d.ViaPurchase = bought, bought
		}
		out[f.ID] = d
	}
	return out, nil
}

func (uc *accessUC) CheckFilmAccess(ctx context.Context, caller model.Caller, filmID string) (*AccessDecision, error) {
	film, err := uc.films.FindByID(ctx, repository.NoTX, filmID)
	if err != nil {
		return nil, err
	}
	return uc.CanAccessFilm(ctx, caller.UserID, film)
}

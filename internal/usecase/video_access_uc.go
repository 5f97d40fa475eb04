// File: internal/usecase/video_access_uc.go
package usecase

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/rs/zerolog"

	"filmstream/internal/domain"
	"filmstream/internal/domain/model"
	"filmstream/internal/domain/ports/adapter"
	"filmstream/internal/domain/ports/repository"
	"filmstream/internal/infra/metrics"
)

var _ VideoAccessUseCase = (*videoAccessUC)(nil)

// AccessDeniedError carries the details the client gets alongside a 403.
// It unwraps to domain.ErrAccessDenied or domain.ErrAccessLost.
type AccessDeniedError struct {
	Err    error
	IsPaid bool
	UserID string
	FilmID string
}

func (e *AccessDeniedError) Error() string {
	return fmt.Sprintf("%v: user %s film %s", e.Err, e.UserID, e.FilmID)
}

func (e *AccessDeniedError) Unwrap() error { return e.Err }

// UserTokenVerifier checks a long-lived API token and returns its subject.
type UserTokenVerifier interface {
	VerifyUserToken(token string) (string, error)
}

type VideoToken struct {
	Token     string `json:"token"`
	TokenID   string `json:"tokenId"`
	FilmID    string `json:"filmId"`
	StreamURL string `json:"streamUrl"`
	ExpiresIn int64  `json:"expiresIn"`
	FilmName  string `json:"filmName"`
}

type RefreshedVideoToken struct {
	TokenID   string `json:"tokenId"`
	ExpiresIn int64  `json:"expiresIn"`
	FilmName  string `json:"filmName"`
	Refreshed bool   `json:"refreshed"`
}

// StreamGrant is the outcome of a successful stream authorization.
type StreamGrant struct {
	UserID string
	Film   *model.Film
}

type VideoAccessConfig struct {
	TokenTTL    time.Duration
	IssueLimit  int
	IssueWindow time.Duration
}

type VideoAccessUseCase interface {
	Issue(ctx context.Context, caller model.Caller, filmID string) (*VideoToken, error)
	IssueAdmin(ctx context.Context, caller model.Caller, filmID string) (*VideoToken, error)
	Refresh(ctx context.Context, caller model.Caller, filmID, tokenID string) (*RefreshedVideoToken, error)
	RefreshAdmin(ctx context.Context, caller model.Caller, filmID, tokenID string) (*RefreshedVideoToken, error)
	// Validate checks a streaming token for filmID and returns the user it was issued to.
	Validate(ctx context.Context, filmID, token string) (string, error)
	// AuthorizeStream validates the token and re-checks the entitlement for paid films.
	AuthorizeStream(ctx context.Context, filmID, token string) (*StreamGrant, error)
}

type videoAccessUC struct {
	films    repository.FilmRepository
	access   AccessUseCase
	tokens   repository.VideoTokenStore
	limiter  adapter.RateLimiter
	verifier UserTokenVerifier
	cfg      VideoAccessConfig
	now      Clock
	logger   *zerolog.Logger
}

// NewVideoAccessUseCase wires the streaming token service. limiter and verifier may be nil.
func NewVideoAccessUseCase(
	films repository.FilmRepository,
	access AccessUseCase,
	tokens repository.VideoTokenStore,
	limiter adapter.RateLimiter,
	verifier UserTokenVerifier,
	cfg VideoAccessConfig,
	clock Clock,
	logger *zerolog.Logger,
) *videoAccessUC {
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = model.VideoTokenTTL
	}
	l := logger.With().Str("component", "VideoAccessUseCase").Logger()
	return &videoAccessUC{
		films:    films,
		access:   access,
		tokens:   tokens,
		limiter:  limiter,
		verifier: verifier,
		cfg:      cfg,
		now:      orSystem(clock),
		logger:   &l,
	}
}

func (uc *videoAccessUC) Issue(ctx context.Context, caller model.Caller, filmID string) (*VideoToken, error) {
	if caller.UserID == "" {
		return nil, domain.ErrUnauthenticated
	}
	if err := uc.checkRate(ctx, caller.UserID); err != nil {
		return nil, err
	}
	film, err := uc.films.FindByID(ctx, repository.NoTX, filmID)
	if err != nil {
		return nil, err
	}
	if film.IsPaid {
		d, err := uc.access.CanAccessFilm(ctx, caller.UserID, film)
		if err != nil {
			return nil, err
		}
		if !d.Allowed {
			metrics.IncVideoToken("issue", "denied")
			return nil, &AccessDeniedError{Err: domain.ErrAccessDenied, IsPaid: true, UserID: caller.UserID, FilmID: film.ID}
		}
	}
	return uc.mint(caller.UserID, film)
}

func (uc *videoAccessUC) IssueAdmin(ctx context.Context, caller model.Caller, filmID string) (*VideoToken, error) {
	if !caller.IsAdmin {
		return nil, domain.ErrForbidden
	}
	film, err := uc.films.FindByID(ctx, repository.NoTX, filmID)
	if err != nil {
		return nil, err
	}
	return uc.mint(caller.UserID, film)
}

func (uc *videoAccessUC) mint(userID string, film *model.Film) (*VideoToken, error) {
	now := uc.now()
	exp := now.Add(uc.cfg.TokenTTL)
	payload := model.VideoTokenPayload{
		UserID:  userID,
		FilmID:  film.ID,
		TokenID: model.NewVideoTokenID(userID, film.ID, now),
		Exp:     exp.UnixMilli(),
		Type:    model.VideoTokenType,
	}
	token, err := model.EncodeVideoToken(payload)
	if err != nil {
		return nil, err
	}
	uc.tokens.Put(model.VideoAccessToken{
		TokenID:       payload.TokenID,
		UserID:        userID,
		FilmID:        film.ID,
		ExpiresAt:     exp,
		OriginalToken: token,
	})
	metrics.IncVideoToken("issue", "ok")
	uc.logger.Debug().Str("user_id", userID).Str("film_id", film.ID).Str("token_id", payload.TokenID).Msg("video token issued")

	return &VideoToken{
		Token:     token,
		TokenID:   payload.TokenID,
		FilmID:    film.ID,
		StreamURL: fmt.Sprintf("/videos/stream/%s?token=%s", film.ID, url.QueryEscape(token)),
		ExpiresIn: int64(uc.cfg.TokenTTL / time.Second),
		FilmName:  film.Name,
	}, nil
}

func (uc *videoAccessUC) Refresh(ctx context.Context, caller model.Caller, filmID, tokenID string) (*RefreshedVideoToken, error) {
	if caller.UserID == "" {
		return nil, domain.ErrUnauthenticated
	}
	film, entry, err := uc.lookup(ctx, filmID, tokenID)
	if err != nil {
		return nil, err
	}
	if entry.UserID != caller.UserID {
		metrics.IncVideoToken("refresh", "forbidden")
		return nil, domain.ErrForbidden
	}
	if film.IsPaid {
		d, err := uc.access.CanAccessFilm(ctx, caller.UserID, film)
		if err != nil {
			return nil, err
		}
		if !d.Allowed {
			uc.tokens.Delete(tokenID)
			metrics.IncVideoToken("refresh", "access_lost")
			uc.logger.Info().Str("user_id", caller.UserID).Str("film_id", film.ID).Str("token_id", tokenID).Msg("video token revoked, access lost")
			return nil, &AccessDeniedError{Err: domain.ErrAccessLost, IsPaid: true, UserID: caller.UserID, FilmID: film.ID}
		}
	}
	return uc.extend(film, tokenID)
}

func (uc *videoAccessUC) RefreshAdmin(ctx context.Context, caller model.Caller, filmID, tokenID string) (*RefreshedVideoToken, error) {
	if !caller.IsAdmin {
		return nil, domain.ErrForbidden
	}
	film, _, err := uc.lookup(ctx, filmID, tokenID)
	if err != nil {
		return nil, err
	}
	return uc.extend(film, tokenID)
}

func (uc *videoAccessUC) lookup(ctx context.Context, filmID, tokenID string) (*model.Film, model.VideoAccessToken, error) {
	if tokenID == "" {
		return nil, model.VideoAccessToken{}, fmt.Errorf("%w: tokenId is required", domain.ErrValidation)
	}
	film, err := uc.films.FindByID(ctx, repository.NoTX, filmID)
	if err != nil {
		return nil, model.VideoAccessToken{}, err
	}
	entry, ok := uc.tokens.Get(tokenID)
	if !ok {
		metrics.IncVideoToken("refresh", "not_found")
		return nil, model.VideoAccessToken{}, domain.ErrTokenNotFound
	}
	if entry.FilmID != film.ID {
		return nil, model.VideoAccessToken{}, domain.ErrTokenFilmMismatch
	}
	return film, entry, nil
}

func (uc *videoAccessUC) extend(film *model.Film, tokenID string) (*RefreshedVideoToken, error) {
	if !uc.tokens.Extend(tokenID, uc.now().Add(uc.cfg.TokenTTL)) {
		// swept between lookup and extend
		return nil, domain.ErrTokenNotFound
	}
	metrics.IncVideoToken("refresh", "ok")
	return &RefreshedVideoToken{
		TokenID:   tokenID,
		ExpiresIn: int64(uc.cfg.TokenTTL / time.Second),
		FilmName:  film.Name,
		Refreshed: true,
	}, nil
}

func (uc *videoAccessUC) Validate(ctx context.Context, filmID, token string) (string, error) {
	if token == "" {
		return "", domain.ErrTokenMissing
	}
	p, err := model.DecodeVideoToken(token)
	if err != nil || p.Type != model.VideoTokenType {
		return uc.validateUserToken(token)
	}

	userID, tokFilm, exp := p.UserID, p.FilmID, p.ExpiresAt()
	// The cache is authoritative for expiry while it still knows the token.
	if p.TokenID != "" {
		if entry, ok := uc.tokens.Get(p.TokenID); ok {
			userID, tokFilm, exp = entry.UserID, entry.FilmID, entry.ExpiresAt
		}
	}
	if !uc.now().Before(exp) {
		metrics.IncVideoToken("validate", "expired")
		return "", domain.ErrTokenExpired
	}
	if tokFilm != filmID {
		metrics.IncVideoToken("validate", "film_mismatch")
		return "", domain.ErrTokenFilmMismatch
	}
	if userID == "" {
		return "", domain.ErrTokenInvalid
	}
	return userID, nil
}

func (uc *videoAccessUC) validateUserToken(token string) (string, error) {
	if uc.verifier == nil {
		return "", domain.ErrTokenInvalid
	}
	userID, err := uc.verifier.VerifyUserToken(token)
	if err != nil || userID == "" {
		metrics.IncVideoToken("validate", "invalid")
		return "", domain.ErrTokenInvalid
	}
	return userID, nil
}

func (uc *videoAccessUC) AuthorizeStream(ctx context.Context, filmID, token string) (*StreamGrant, error) {
	userID, err := uc.Validate(ctx, filmID, token)
	if err != nil {
		return nil, err
	}
	film, err := uc.films.FindByID(ctx, repository.NoTX, filmID)
	if err != nil {
		return nil, err
	}
	if film.FilmURL == "" {
		return nil, fmt.Errorf("%w: film %s has no video", domain.ErrNotFound, film.ID)
	}
	if film.IsPaid {
		d, err := uc.access.CanAccessFilm(ctx, userID, film)
		if err != nil {
			return nil, err
		}
		if !d.Allowed {
			return nil, &AccessDeniedError{Err: domain.ErrAccessDenied, IsPaid: true, UserID: userID, FilmID: film.ID}
		}
	}
	return &StreamGrant{UserID: userID, Film: film}, nil
}

func (uc *videoAccessUC) checkRate(ctx context.Context, userID string) error {
	if uc.limiter == nil || uc.cfg.IssueLimit <= 0 {
		return nil
	}
	key := fmt.Sprintf("rate_limit:%s:video_token", userID)
	ok, err := uc.limiter.Allow(ctx, key, uc.cfg.IssueLimit, uc.cfg.IssueWindow)
	if err != nil {
		uc.logger.Warn().Err(err).Msg("rate limiter unavailable")
		return nil
	}
	if !ok {
		metrics.IncVideoToken("issue", "rate_limited")
		return domain.ErrRateLimited
	}
	return nil
}

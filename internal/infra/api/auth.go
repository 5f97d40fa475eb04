package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"filmstream/internal/domain"
	"filmstream/internal/domain/model"
)

// ===== Session/JWT primitives =====

type AuthConfig struct {
	HMACSecret []byte
	CookieName string
	TTL        time.Duration
}

type AuthManager struct {
	cfg AuthConfig
	now func() time.Time
}

func NewAuthManager(secret, cookieName string, ttl time.Duration) *AuthManager {
	if cookieName == "" {
		cookieName = "token"
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &AuthManager{
		cfg: AuthConfig{HMACSecret: []byte(secret), CookieName: cookieName, TTL: ttl},
		now: time.Now,
	}
}

type UserClaims struct {
	UserID string `json:"userId"`
	Email  string `json:"email,omitempty"`
	Role   string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

const roleAdmin = "admin"

// Mint signs a token for the given caller. Used by tooling and tests; login lives elsewhere.
func (a *AuthManager) Mint(c model.Caller) (string, error) {
	now := a.now()
	claims := UserClaims{
		UserID: c.UserID,
		Email:  c.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.cfg.TTL)),
			Subject:   c.UserID,
		},
	}
	if c.IsAdmin {
		claims.Role = roleAdmin
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.cfg.HMACSecret)
}

// ParseFromRequest reads the bearer header, then the session cookie.
func (a *AuthManager) ParseFromRequest(r *http.Request) (model.Caller, error) {
	// Authorization: Bearer <jwt>
	if hdr := r.Header.Get("Authorization"); hdr != "" {
		if strings.HasPrefix(strings.ToLower(hdr), "bearer ") {
			return a.parse(strings.TrimSpace(hdr[7:]))
		}
	}
	if c, err := r.Cookie(a.cfg.CookieName); err == nil {
		return a.parse(c.Value)
	}
	return model.Caller{}, fmt.Errorf("%w: missing token", domain.ErrUnauthenticated)
}

// VerifyUserToken lets a session JWT stand in for a video token.
func (a *AuthManager) VerifyUserToken(token string) (string, error) {
	c, err := a.parse(token)
	if err != nil {
		return "", err
	}
	return c.UserID, nil
}

func (a *AuthManager) parse(tok string) (model.Caller, error) {
	claims := &UserClaims{}
	tkn, err := jwt.ParseWithClaims(tok, claims, func(t *jwt.Token) (any, error) {
		return a.cfg.HMACSecret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(a.now))
	if err != nil || !tkn.Valid {
		return model.Caller{}, fmt.Errorf("%w: invalid token", domain.ErrUnauthenticated)
	}
	uid := claims.UserID
	if uid == "" {
		uid = claims.Subject
	}
	if uid == "" {
		return model.Caller{}, fmt.Errorf("%w: token has no subject", domain.ErrUnauthenticated)
	}
	return model.Caller{UserID: uid, Email: claims.Email, IsAdmin: claims.Role == roleAdmin}, nil
}

type callerKey struct{}

func withCaller(ctx context.Context, c model.Caller) context.Context {
	return context.WithValue(ctx, callerKey{}, c)
}

// callerFrom returns the caller stored by Authenticate, or the zero caller.
func callerFrom(r *http.Request) model.Caller {
	c, _ := r.Context().Value(callerKey{}).(model.Caller)
	return c
}

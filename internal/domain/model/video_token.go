package model

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"filmstream/internal/domain"
)

const (
	VideoTokenType = "video_access"
	VideoTokenTTL  = 2 * time.Hour
)

// VideoAccessToken is the server-side record of an issued streaming token.
type VideoAccessToken struct {
	TokenID       string
	UserID        string
	FilmID        string
	ExpiresAt     time.Time
	OriginalToken string
}

// VideoTokenPayload is the self-describing body carried inside the opaque token.
// Exp is epoch milliseconds.
type VideoTokenPayload struct {
	UserID  string `json:"userId"`
	FilmID  string `json:"filmId"`
	TokenID string `json:"tokenId"`
	Exp     int64  `json:"exp"`
	Type    string `json:"type"`
}

func (p VideoTokenPayload) ExpiresAt() time.Time { return time.UnixMilli(p.Exp) }

// NewVideoTokenID builds the cache key for a token issued at now.
func NewVideoTokenID(userID, filmID string, now time.Time) string {
	return fmt.Sprintf("%s-%s-%d", userID, filmID, now.UnixMilli())
}

// EncodeVideoToken serialises the payload into the opaque string handed to clients.
func EncodeVideoToken(p VideoTokenPayload) (string, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(b), nil
}

// DecodeVideoToken parses an opaque token. Anything that is not a base64 JSON
// object yields domain.ErrTokenInvalid.
func DecodeVideoToken(token string) (VideoTokenPayload, error) {
	var p VideoTokenPayload
	raw, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		return p, domain.ErrTokenInvalid
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		return p, domain.ErrTokenInvalid
	}
	return p, nil
}

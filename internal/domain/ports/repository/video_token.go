package repository

import (
	"time"

	"filmstream/internal/domain/model"
)

// VideoTokenStore keeps issued streaming tokens for the lifetime of the process.
type VideoTokenStore interface {
	Put(tok model.VideoAccessToken)
	Get(tokenID string) (model.VideoAccessToken, bool)
	Extend(tokenID string, expiresAt time.Time) bool
	Delete(tokenID string)
}

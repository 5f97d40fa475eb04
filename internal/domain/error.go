package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound           = errors.New("entity not found")
	ErrAlreadyExists      = errors.New("entity already exists")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrInvalidExecContext = errors.New("invalid execution context")
	ErrOperationFailed    = errors.New("operation failed")
	ErrReadDatabaseRow    = errors.New("failed to read database row")

	// Orders and payments
	ErrValidation       = errors.New("validation failed")
	ErrPriceMismatch    = errors.New("amount does not match price")
	ErrFilmNotForSale   = errors.New("film is free and cannot be purchased")
	ErrPlanUnavailable  = errors.New("subscription plan not found or inactive")
	ErrAlreadyPurchased = errors.New("film already purchased")
	ErrPaymentCreation  = errors.New("payment creation failed, try later")
	ErrGateway          = errors.New("payment gateway error")
	ErrNoPaymentToCheck = errors.New("order has no payment to check")
	ErrInvalidWebhook   = errors.New("invalid webhook payload")

	// Auth and access
	ErrUnauthenticated  = errors.New("authentication required")
	ErrForbidden        = errors.New("forbidden")
	ErrAccessDenied     = errors.New("access to film denied")
	ErrOriginNotAllowed = errors.New("origin not allowed")
	ErrRateLimited      = errors.New("too many requests")

	// Video access tokens
	ErrTokenMissing      = errors.New("video token missing")
	ErrTokenInvalid      = errors.New("video token invalid")
	ErrTokenExpired      = errors.New("video token expired")
	ErrTokenFilmMismatch = errors.New("video token issued for another film")
	ErrTokenNotFound     = errors.New("video token not found")
	ErrAccessLost        = errors.New("access to film lost")
)

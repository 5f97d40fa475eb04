package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"

	"filmstream/internal/domain"
	"filmstream/internal/infra/logging"
	"filmstream/internal/usecase"
)

type errorBody struct {
	Error   string `json:"error"`
	Code    string `json:"code"`
	Message string `json:"message,omitempty"`
	IsPaid  *bool  `json:"isPaid,omitempty"`
	UserID  string `json:"userId,omitempty"`
	FilmID  string `json:"filmId,omitempty"`
}

type errorMapping struct {
	err    error
	status int
	code   string
}

// errorTable is checked in order; the first errors.Is match wins.
var errorTable = []errorMapping{
	{domain.ErrValidation, http.StatusBadRequest, "VALIDATION"},
	{domain.ErrInvalidArgument, http.StatusBadRequest, "VALIDATION"},
	{domain.ErrPriceMismatch, http.StatusBadRequest, "PRICE_MISMATCH"},
	{domain.ErrFilmNotForSale, http.StatusBadRequest, "FILM_NOT_FOR_SALE"},
	{domain.ErrPlanUnavailable, http.StatusBadRequest, "PLAN_UNAVAILABLE"},
	{domain.ErrAlreadyPurchased, http.StatusBadRequest, "ALREADY_PURCHASED"},
	{domain.ErrInvalidWebhook, http.StatusBadRequest, "INVALID_WEBHOOK"},
	{domain.ErrNoPaymentToCheck, http.StatusBadRequest, "NO_PAYMENT"},

	{domain.ErrUnauthenticated, http.StatusUnauthorized, "UNAUTHENTICATED"},
	{domain.ErrTokenMissing, http.StatusUnauthorized, "TOKEN_MISSING"},
	{domain.ErrTokenInvalid, http.StatusUnauthorized, "TOKEN_INVALID"},
	{domain.ErrTokenExpired, http.StatusUnauthorized, "TOKEN_EXPIRED"},

	{domain.ErrForbidden, http.StatusForbidden, "FORBIDDEN"},
	{domain.ErrAccessDenied, http.StatusForbidden, "ACCESS_DENIED"},
	{domain.ErrTokenFilmMismatch, http.StatusForbidden, "TOKEN_FILM_MISMATCH"},
	{domain.ErrAccessLost, http.StatusForbidden, "ACCESS_LOST"},
	{domain.ErrOriginNotAllowed, http.StatusForbidden, "ORIGIN_NOT_ALLOWED"},

	{domain.ErrNotFound, http.StatusNotFound, "NOT_FOUND"},
	{domain.ErrTokenNotFound, http.StatusNotFound, "TOKEN_NOT_FOUND"},

	{domain.ErrRateLimited, http.StatusTooManyRequests, "RATE_LIMITED"},

	{domain.ErrPaymentCreation, http.StatusBadGateway, "PAYMENT_FAILED"},
	{domain.ErrGateway, http.StatusBadGateway, "GATEWAY"},
}

// classify maps err to an HTTP status and a stable code.
func classify(err error) (int, string) {
	for _, m := range errorTable {
		if errors.Is(err, m.err) {
			return m.status, m.code
		}
	}
	return http.StatusInternalServerError, "INTERNAL"
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError renders err as {error, code}. Internal errors are logged and
// their text is not sent to the client.
func writeError(w http.ResponseWriter, r *http.Request, logger *zerolog.Logger, err error) {
	status, code := classify(err)
	body := errorBody{Error: err.Error(), Code: code}
	if status == http.StatusInternalServerError {
		l := logging.With(r.Context(), logger)
		l.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		body.Error = "internal error"
	}

	var denied *usecase.AccessDeniedError
	if errors.As(err, &denied) {
		isPaid := denied.IsPaid
		body.Error = denied.Err.Error()
		body.IsPaid = &isPaid
		body.UserID = denied.UserID
		body.FilmID = denied.FilmID
		body.Message = "an active subscription or a purchase of this film is required"
	}
	writeJSON(w, status, body)
}

// decodeJSON reads a JSON body into v, mapping malformed input to ErrValidation.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: malformed body: %v", domain.ErrValidation, err)
	}
	return nil
}

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"filmstream/internal/usecase"
)

func (s *Server) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	o, err := s.deps.Orders.GetOrder(r.Context(), callerFrom(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderDTO(o))
}

func (s *Server) handleListUserOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := s.deps.Orders.ListUserOrders(r.Context(), callerFrom(r), chi.URLParam(r, "userId"))
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	out := make([]orderDTO, 0, len(orders))
	for _, o := range orders {
		out = append(out, toOrderDTO(o))
	}
	writeJSON(w, http.StatusOK, map[string]any{"orders": out})
}

func (s *Server) handleListPlans(w http.ResponseWriter, r *http.Request) {
	plans, err := s.deps.Plans.List(r.Context())
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	out := make([]planDTO, 0, len(plans))
	for _, p := range plans {
		out = append(out, toPlanDTO(p))
	}
	writeJSON(w, http.StatusOK, map[string]any{"plans": out})
}

func (s *Server) handleMySubscription(w http.ResponseWriter, r *http.Request) {
	c := callerFrom(r)
	sub, err := s.deps.Access.GetUserSubscription(r.Context(), c.UserID)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	if sub == nil {
		writeJSON(w, http.StatusOK, map[string]any{"subscription": nil, "hasActiveSubscription": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"subscription":          toSubscriptionDTO(&sub.Subscription, &sub.Plan),
		"hasActiveSubscription": sub.IsActiveAt(s.now()),
	})
}

func (s *Server) handlePurchasedFilms(w http.ResponseWriter, r *http.Request) {
	c := callerFrom(r)
	films, err := s.deps.Entitlements.ListPurchasedFilms(r.Context(), c, c.UserID)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	out := make([]purchasedFilmDTO, 0, len(films))
	for _, f := range films {
		out = append(out, toPurchasedFilmDTO(f))
	}
	writeJSON(w, http.StatusOK, map[string]any{"films": out})
}

func (s *Server) handleFilmAccess(w http.ResponseWriter, r *http.Request) {
	d, err := s.deps.Access.CheckFilmAccess(r.Context(), callerFrom(r), chi.URLParam(r, "filmId"))
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

type manualGrantRequest struct {
	UserID       string `json:"userId"`
	PlanID       string `json:"planId"`
	DurationDays int    `json:"durationDays"`
}

func (s *Server) handleManualGrant(w http.ResponseWriter, r *http.Request) {
	var req manualGrantRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, s.log, err)
		return
	}
	sub, err := s.deps.Entitlements.ManualGrant(r.Context(), callerFrom(r), usecase.ManualGrantInput{
		UserID:       req.UserID,
		PlanID:       req.PlanID,
		DurationDays: req.DurationDays,
	})
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"success": true, "subscription": toSubscriptionDTO(sub, nil)})
}

func (s *Server) handleInvalidate(w http.ResponseWriter, r *http.Request) {
	n, err := s.deps.Entitlements.Invalidate(r.Context(), callerFrom(r), chi.URLParam(r, "userId"))
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "invalidated": n})
}

func (s *Server) handleSweep(w http.ResponseWriter, r *http.Request) {
	n, err := s.deps.Expiry.UpdateAllExpiredSubscriptions(r.Context())
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "expired": n})
}

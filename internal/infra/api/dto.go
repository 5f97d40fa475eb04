package api

import (
	"time"

	"github.com/shopspring/decimal"

	"filmstream/internal/domain/model"
)

type orderDTO struct {
	ID                string          `json:"id"`
	UserID            string          `json:"userId"`
	OrderType         model.OrderType `json:"orderType"`
	PlanID            string          `json:"planId,omitempty"`
	FilmID            string          `json:"filmId,omitempty"`
	Amount            decimal.Decimal `json:"amount"`
	Currency          string          `json:"currency"`
	Status            string          `json:"orderStatus"`
	PaymentMethod     string          `json:"paymentMethod,omitempty"`
	ExternalPaymentID *string         `json:"externalPaymentId,omitempty"`
	CreatedAt         time.Time       `json:"createdAt"`
	PaidAt            *time.Time      `json:"paidAt,omitempty"`
	ExpiresAt         time.Time       `json:"expiresAt"`
}

func toOrderDTO(o *model.Order) orderDTO {
	d := orderDTO{
		ID:                o.ID,
		UserID:            o.UserID,
		OrderType:         o.Type(),
		Amount:            o.Amount,
		Currency:          o.Currency,
		Status:            string(o.Status),
		PaymentMethod:     o.PaymentMethod,
		ExternalPaymentID: o.ExternalPaymentID,
		CreatedAt:         o.CreatedAt,
		PaidAt:            o.PaidAt,
		ExpiresAt:         o.ExpiresAt,
	}
	switch t := o.Target.(type) {
	case model.SubscriptionTarget:
		d.PlanID = t.PlanID
	case model.FilmTarget:
		d.FilmID = t.FilmID
	}
	return d
}

type planDTO struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Description  string          `json:"description,omitempty"`
	Price        decimal.Decimal `json:"price"`
	Currency     string          `json:"currency"`
	DurationDays int             `json:"durationDays"`
}

func toPlanDTO(p *model.SubscriptionPlan) planDTO {
	return planDTO{
		ID:           p.ID,
		Name:         p.Name,
		Description:  p.Description,
		Price:        p.Price,
		Currency:     p.Currency,
		DurationDays: p.DurationDays,
	}
}

type subscriptionDTO struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	PlanID    string    `json:"planId"`
	OrderID   *string   `json:"orderId,omitempty"`
	Status    string    `json:"status"`
	StartedAt time.Time `json:"startedAt"`
	ExpiresAt time.Time `json:"expiresAt"`
	AutoRenew bool      `json:"autoRenew"`
	Plan      *planDTO  `json:"plan,omitempty"`
}

func toSubscriptionDTO(s *model.Subscription, plan *model.SubscriptionPlan) subscriptionDTO {
	d := subscriptionDTO{
		ID:        s.ID,
		UserID:    s.UserID,
		PlanID:    s.PlanID,
		OrderID:   s.OrderID,
		Status:    string(s.Status),
		StartedAt: s.StartedAt,
		ExpiresAt: s.ExpiresAt,
		AutoRenew: s.AutoRenew,
	}
	if !plan.IsZero() {
		p := toPlanDTO(plan)
		d.Plan = &p
	}
	return d
}

type purchasedFilmDTO struct {
	ID          string           `json:"id"`
	FilmID      string           `json:"filmId"`
	FilmName    string           `json:"filmName"`
	FilmPrice   *decimal.Decimal `json:"filmPrice,omitempty"`
	PurchasedAt time.Time        `json:"purchasedAt"`
	ExpiresAt   *time.Time       `json:"expiresAt,omitempty"`
}

func toPurchasedFilmDTO(p *model.PurchasedFilm) purchasedFilmDTO {
	return purchasedFilmDTO{
		ID:          p.ID,
		FilmID:      p.FilmID,
		FilmName:    p.FilmName,
		FilmPrice:   p.FilmPrice,
		PurchasedAt: p.PurchasedAt,
		ExpiresAt:   p.ExpiresAt,
	}
}

package model

import "github.com/shopspring/decimal"

// Film is the read-only catalog projection the payment core needs.
type Film struct {
	ID      string
	Name    string
	IsPaid  bool
	Price   *decimal.Decimal
	FilmURL string
}

// HasPrice reports whether amount matches the film's price exactly.
func (f *Film) HasPrice(amount decimal.Decimal) bool {
	return f.Price != nil && f.Price.Equal(amount)
}

//go:build integration

package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"filmstream/internal/domain"
	"filmstream/internal/domain/model"
)

func TestOrderRepo_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode.")
	}

	ctx := context.Background()
	repo := NewOrderRepo(testPool)

	newFilmOrder := func(t *testing.T, userID, filmID string, createdAt time.Time) *model.Order {
		t.Helper()
		o, err := model.NewOrder(uuid.NewString(), userID, model.FilmTarget{FilmID: filmID}, decimal.RequireFromString("299.00"), "RUB", createdAt)
		if err != nil {
			t.Fatalf("failed to build order: %v", err)
		}
		if err := repo.Create(ctx, nil, o); err != nil {
			t.Fatalf("failed to create order: %v", err)
		}
		return o
	}

	t.Run("should create, attach payment and find by external id", func(t *testing.T) {
		cleanup(t)
		filmID := seedFilm(t, "Heat", true, "299")
		o := newFilmOrder(t, "user-1", filmID, time.Now().UTC())

		meta := map[string]any{"id": "pay-1", "status": "pending"}
		if err := repo.AttachPayment(ctx, nil, o.ID, "pay-1", "bank_card", meta); err != nil {
			t.Fatalf("AttachPayment failed: %v", err)
		}

		found, err := repo.FindByExternalPaymentID(ctx, nil, "pay-1")
		if err != nil {
			t.Fatalf("FindByExternalPaymentID failed: %v", err)
		}
		if found.ID != o.ID {
			t.Errorf("expected order %s, got %s", o.ID, found.ID)
		}
		ft, ok := found.Target.(model.FilmTarget)
		if !ok || ft.FilmID != filmID {
			t.Errorf("target did not round-trip: %#v", found.Target)
		}
		if !found.Amount.Equal(decimal.RequireFromString("299")) {
			t.Errorf("unexpected amount %s", found.Amount)
		}
		if found.PaymentMethod != "bank_card" || found.Metadata["id"] != "pay-1" {
			t.Errorf("payment details not stored: %q %v", found.PaymentMethod, found.Metadata)
		}
	})

	t.Run("external payment id must be unique", func(t *testing.T) {
		cleanup(t)
		filmID := seedFilm(t, "Heat", true, "299")
		a := newFilmOrder(t, "user-1", filmID, time.Now().UTC())
		b := newFilmOrder(t, "user-1", filmID, time.Now().UTC())

		if err := repo.AttachPayment(ctx, nil, a.ID, "dup", "bank_card", nil); err != nil {
			t.Fatalf("first attach failed: %v", err)
		}
		err := repo.AttachPayment(ctx, nil, b.ID, "dup", "bank_card", nil)
		if !errors.Is(err, domain.ErrAlreadyExists) {
			t.Fatalf("expected ErrAlreadyExists, got %v", err)
		}
	})

	t.Run("update by unknown external id affects nothing", func(t *testing.T) {
		cleanup(t)
		n, err := repo.UpdateStatusByExternalID(ctx, nil, "missing", model.OrderStatusPaid, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if n != 0 {
			t.Errorf("expected 0 rows, got %d", n)
		}
	})

	t.Run("UpdateStatusIfPending only moves pending orders and keeps first paidAt", func(t *testing.T) {
		cleanup(t)
		filmID := seedFilm(t, "Heat", true, "299")
		o := newFilmOrder(t, "user-1", filmID, time.Now().UTC())

		paidAt := time.Now().UTC().Truncate(time.Microsecond)
		ok, err := repo.UpdateStatusIfPending(ctx, nil, o.ID, model.OrderStatusPaid, &paidAt)
		if err != nil || !ok {
			t.Fatalf("expected first transition to succeed, ok=%v err=%v", ok, err)
		}
		ok, err = repo.UpdateStatusIfPending(ctx, nil, o.ID, model.OrderStatusFailed, nil)
		if err != nil || ok {
			t.Fatalf("expected second transition to be a no-op, ok=%v err=%v", ok, err)
		}

		later := paidAt.Add(time.Hour)
		if err := repo.UpdateStatus(ctx, nil, o.ID, model.OrderStatusPaid, &later); err != nil {
			t.Fatalf("UpdateStatus failed: %v", err)
		}
		found, _ := repo.FindByID(ctx, nil, o.ID)
		if found.PaidAt == nil || !found.PaidAt.Equal(paidAt) {
			t.Errorf("paidAt should keep its first value, got %v", found.PaidAt)
		}
	})

	t.Run("ListPendingOlderThan returns oldest pending first", func(t *testing.T) {
		cleanup(t)
		filmID := seedFilm(t, "Heat", true, "299")
		now := time.Now().UTC()
		old := newFilmOrder(t, "user-1", filmID, now.Add(-2*time.Hour))
		older := newFilmOrder(t, "user-1", filmID, now.Add(-3*time.Hour))
		_ = newFilmOrder(t, "user-1", filmID, now)

		list, err := repo.ListPendingOlderThan(ctx, nil, now.Add(-time.Hour), 10)
		if err != nil {
			t.Fatalf("ListPendingOlderThan failed: %v", err)
		}
		if len(list) != 2 || list[0].ID != older.ID || list[1].ID != old.ID {
			t.Fatalf("unexpected pending list: %+v", list)
		}

		mine, err := repo.ListByUser(ctx, nil, "user-1")
		if err != nil {
			t.Fatalf("ListByUser failed: %v", err)
		}
		if len(mine) != 3 {
			t.Errorf("expected 3 orders, got %d", len(mine))
		}
	})

	t.Run("ListCheckableOlderThan skips orders without a payment", func(t *testing.T) {
		cleanup(t)
		filmID := seedFilm(t, "Heat", true, "299")
		now := time.Now().UTC()
		_ = newFilmOrder(t, "user-1", filmID, now.Add(-3*time.Hour))
		withPay := newFilmOrder(t, "user-1", filmID, now.Add(-2*time.Hour))
		if err := repo.AttachPayment(ctx, nil, withPay.ID, "pay-2", "bank_card", nil); err != nil {
			t.Fatalf("AttachPayment failed: %v", err)
		}

		list, err := repo.ListCheckableOlderThan(ctx, nil, now.Add(-time.Hour), 1)
		if err != nil {
			t.Fatalf("ListCheckableOlderThan failed: %v", err)
		}
		if len(list) != 1 || list[0].ID != withPay.ID {
			t.Fatalf("expected only the order with a payment, got %+v", list)
		}
	})

	t.Run("FindByID with a malformed id reports ErrNotFound", func(t *testing.T) {
		cleanup(t)
		_, err := repo.FindByID(ctx, nil, "not-a-uuid")
		if !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("FindByID reports ErrNotFound", func(t *testing.T) {
		cleanup(t)
		_, err := repo.FindByID(ctx, nil, uuid.NewString())
		if !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})
}

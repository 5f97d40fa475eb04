package usecase

import (
	"context"

	"github.com/google/uuid"

	"filmstream/internal/domain"
	"filmstream/internal/domain/model"
	"filmstream/internal/domain/ports/repository"
)

// PlanUseCase manages subscription plans.
type PlanUseCase struct {
	repo repository.SubscriptionPlanRepository
}

// NewPlanUseCase constructs a PlanUseCase.
func NewPlanUseCase(repo repository.SubscriptionPlanRepository) *PlanUseCase {
	return &PlanUseCase{repo: repo}
}

// Create saves or updates a plan. An empty ID is assigned.
func (uc *PlanUseCase) Create(ctx context.Context, plan *model.SubscriptionPlan) error {
	if plan == nil || plan.Name == "" || plan.DurationDays <= 0 || !plan.Price.IsPositive() {
		return domain.ErrInvalidArgument
	}
	if plan.ID == "" {
		plan.ID = uuid.NewString()
	}
	if plan.Currency == "" {
		plan.Currency = model.DefaultCurrency
	}
	return uc.repo.Save(ctx, repository.NoTX, plan)
}

// Get retrieves a plan by ID.
func (uc *PlanUseCase) Get(ctx context.Context, id string) (*model.SubscriptionPlan, error) {
	return uc.repo.FindByID(ctx, repository.NoTX, id)
}

// List returns the plans open for purchase.
func (uc *PlanUseCase) List(ctx context.Context) ([]*model.SubscriptionPlan, error) {
	return uc.repo.ListActive(ctx, repository.NoTX)
}

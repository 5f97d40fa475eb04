package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/shopspring/decimal"

	"filmstream/internal/config"
	"filmstream/internal/domain/model"
	pg "filmstream/internal/infra/db/postgres"
	"filmstream/internal/usecase"
)

func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	flag.Parse()

	// ---- Config ----
	cfg, err := config.LoadConfig(*cfgPath, true)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Connect Postgres
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 4)
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	defer pool.Close()

	planUC := usecase.NewPlanUseCase(pg.NewPostgresPlanRepo(pool))

	// If plans already exist, do nothing
	plans, err := planUC.List(ctx)
	if err != nil {
		log.Fatalf("list plans: %v", err)
	}
	if len(plans) > 0 {
		fmt.Printf("%d plans already present. No changes.\n", len(plans))
		for _, p := range plans {
			fmt.Printf("  - %s (days=%d, price=%s %s)\n", p.Name, p.DurationDays, p.Price.StringFixed(2), p.Currency)
		}
		return
	}

	seed := []struct {
		Name  string
		Days  int
		Price string
	}{
		{"Monthly", 30, "299.00"},
		{"Quarterly", 90, "799.00"},
		{"Yearly", 365, "2990.00"},
	}
	for _, s := range seed {
		plan := &model.SubscriptionPlan{
			Name:         s.Name,
			DurationDays: s.Days,
			Price:        decimal.RequireFromString(s.Price),
			Currency:     model.DefaultCurrency,
			IsActive:     true,
		}
		if err := planUC.Create(ctx, plan); err != nil {
			log.Fatalf("create plan %s: %v", s.Name, err)
		}
		fmt.Printf("seeded plan %s id=%s\n", plan.Name, plan.ID)
	}
}

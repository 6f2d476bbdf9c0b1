// Package main seeds the database with payment methods and, when
// SEED_DEMO_DATA=true, a demo branch with a client, a salesperson and a few
// stocked products.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/shopspring/decimal"

	"stoq/internal/app"
	"stoq/internal/config"
	"stoq/internal/core/clock"
	"stoq/internal/core/id"
	"stoq/internal/core/types"
	"stoq/internal/domain/catalog"
	"stoq/internal/domain/commission"
	"stoq/internal/domain/party"
	"stoq/internal/domain/registers/stock"
	"stoq/internal/infrastructure/storage/postgres"
	"stoq/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}
	log, err := logger.New(logger.Config{Level: "info", Development: true})
	if err != nil {
		fmt.Printf("failed to create logger: %v\n", err)
		os.Exit(1)
	}
	ctx := logger.WithLogger(context.Background(), log.WithComponent("seed"))

	pool, err := postgres.NewPool(ctx, cfg.Pool())
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()
	log.Info("connected to database")

	clk, err := clock.NewFromName(cfg.Timezone)
	if err != nil {
		log.Fatalw("invalid timezone", "error", err)
	}
	svc, err := app.NewPostgres(postgres.NewTxManager(pool), app.Options{Params: cfg.Params, Clock: clk})
	if err != nil {
		log.Fatalw("failed to build services", "error", err)
	}

	if err := svc.Bootstrap(ctx); err != nil {
		log.Fatalw("failed to seed payment methods", "error", err)
	}

	if os.Getenv("SEED_DEMO_DATA") == "true" {
		if err := seedDemoData(ctx, svc); err != nil {
			log.Fatalw("failed to seed demo data", "error", err)
		}
	}

	log.Info("seeding completed successfully")
}

type demoProduct struct {
	code, description, price string
	qty                      int64
}

var demoProducts = []demoProduct{
	{"CAM-001", "Basic t-shirt", "39.90", 50},
	{"CAL-002", "Denim trousers", "129.00", 20},
	{"TEN-003", "Running shoes", "249.90", 10},
}

func seedDemoData(ctx context.Context, svc *app.Services) error {
	return svc.Repos.Tx.RunInTransaction(ctx, func(ctx context.Context) error {
		branch := party.NewPerson("Demo branch")
		branch.Branch = &party.BranchRole{Acronym: "DMO"}
		client := party.NewPerson("Demo client")
		client.Client = &party.ClientRole{Status: party.ClientSolvent, CreditLimit: types.NewMoney(5000)}
		seller := party.NewPerson("Demo salesperson")
		seller.Employee = &party.EmployeeRole{IsSalesperson: true}
		for _, p := range []*party.Person{branch, client, seller} {
			if err := svc.Repos.Parties.SavePerson(ctx, p); err != nil {
				return fmt.Errorf("save person %q: %w", p.Name, err)
			}
		}

		category := catalog.NewCategory("APP", "Apparel", nil)
		if err := svc.Repos.Catalog.SaveCategory(ctx, category); err != nil {
			return fmt.Errorf("save category: %w", err)
		}
		if err := svc.Commissions.SetSource(ctx, &commission.Source{
			CategoryID:       &category.ID,
			DirectRate:       decimal.NewFromInt(5),
			InstallmentsRate: decimal.NewFromFloat(2.5),
		}); err != nil {
			return fmt.Errorf("set commission source: %w", err)
		}

		initial := stock.Recorder{ID: id.New(), Type: "initial"}
		for _, dp := range demoProducts {
			s := catalog.NewProduct(dp.code, dp.description, types.MustMoney(dp.price), &category.ID)
			if err := svc.Repos.Catalog.SaveSellable(ctx, s); err != nil {
				return fmt.Errorf("save sellable %s: %w", dp.code, err)
			}
			if err := svc.Stock.IncreaseStock(ctx, s.ID, branch.ID, types.NewQuantity(dp.qty), initial); err != nil {
				return fmt.Errorf("stock %s: %w", dp.code, err)
			}
		}

		logger.Info(ctx, "demo data seeded",
			"branch_id", branch.ID,
			"client_id", client.ID,
			"salesperson_id", seller.ID,
			"products", len(demoProducts),
		)
		return nil
	})
}

package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"github.com/subwave/billing-service/internal/adapters/postgres"
	"github.com/subwave/billing-service/internal/domain"
	"github.com/subwave/billing-service/internal/domain/models"
)

// seedPlan describes one catalog entry. Prices are written in major
// currency units and converted to minor units on insert.
type seedPlan struct {
	title        string
	description  string
	price        string
	durationDays int
}

var catalog = []seedPlan{
	{"Basic", "Standard catalog access", "9.99", 30},
	{"Pro", "Standard catalog plus priority support", "24.99", 30},
	{"Pro Annual", "Twelve months of Pro at a discount", "249.00", 365},
}

func main() {
	// Load .env if present; real environments set variables directly
	_ = godotenv.Load()

	dsn := os.Getenv("POSTGRES_URL")
	if dsn == "" {
		log.Fatal("POSTGRES_URL is required")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer pool.Close()

	planRepo := postgres.NewPlanRepository(postgres.NewDBExecutor(pool))

	for _, entry := range catalog {
		price, err := minorUnits(entry.price)
		if err != nil {
			log.Fatalf("plan %q: %v", entry.title, err)
		}

		plan := &models.SubscriptionPlan{
			Title:        entry.title,
			Description:  entry.description,
			Price:        price,
			DurationDays: entry.durationDays,
		}

		err = planRepo.Create(ctx, nil, plan)
		switch {
		case domain.IsDomainError(err, domain.ErrorCodePlanExists):
			log.Printf("plan %q already present, skipping", entry.title)
		case err != nil:
			log.Fatalf("failed to create plan %q: %v", entry.title, err)
		default:
			log.Printf("created plan %q (id=%s, price=%d)", entry.title, plan.ID, plan.Price)
		}
	}
}

// minorUnits converts a major-unit price string to minor units, rejecting
// values that do not land on a whole cent
func minorUnits(price string) (int64, error) {
	d, err := decimal.NewFromString(price)
	if err != nil {
		return 0, fmt.Errorf("parse price: %w", err)
	}
	if d.IsNegative() {
		return 0, fmt.Errorf("price %s is negative", price)
	}

	cents := d.Mul(decimal.NewFromInt(100))
	if !cents.IsInteger() {
		return 0, fmt.Errorf("price %s is not a whole number of cents", price)
	}
	return cents.IntPart(), nil
}

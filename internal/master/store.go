// Package master provides the master-data store: products, markets, and
// run history. Two backends are supported, SQLite for local use and
// Postgres for shared deployments.
package master

import (
	"context"

	"github.com/calder-retail/replenish-cli/internal/model"
)

// Store is the persistence interface for master data and run history.
type Store interface {
	// Master data
	UpsertProducts(ctx context.Context, products []model.Product) (int, error)
	UpsertMarkets(ctx context.Context, marketIDs []string) (int, error)
	Products(ctx context.Context) ([]model.Product, error)
	Markets(ctx context.Context) ([]string, error)

	// Run history
	CreateRun(ctx context.Context, runDate string) (*model.Run, error)
	FinishRun(ctx context.Context, runID string, status model.RunStatus, summary *model.RunSummary) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, limit int) ([]model.Run, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// Limits extracts the per-SKU MxOQ limits consumed by the quality guard.
// Every product is present so the guard can tell known SKUs from ghosts;
// a non-positive value means no ceiling is configured for that SKU.
func Limits(products []model.Product) map[string]int {
	limits := make(map[string]int, len(products))
	for _, p := range products {
		limits[p.SKU] = p.MxOQ
	}
	return limits
}

// BySKU indexes products by SKU for planner lookups.
func BySKU(products []model.Product) map[string]model.Product {
	m := make(map[string]model.Product, len(products))
	for _, p := range products {
		m[p.SKU] = p
	}
	return m
}

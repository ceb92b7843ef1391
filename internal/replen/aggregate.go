// Package replen implements the replenishment calculation core: demand
// aggregation, stock resolution, net-demand computation, and MOQ/pack-aware
// order planning. All functions are pure over immutable inputs.
package replen

import "github.com/calder-retail/replenish-cli/internal/model"

// AggregateDemand reduces raw per-market sale records into per-SKU totals.
// Duplicate market-SKU submissions sum; unknown SKUs pass through (ghost
// detection is the quality guard's concern). Empty input yields an empty
// map.
func AggregateDemand(sales []model.SaleRecord) map[string]int {
	totals := make(map[string]int, len(sales))
	for _, s := range sales {
		totals[s.SKU] += s.Quantity
	}
	return totals
}

package replen

import (
	"sort"

	"github.com/calder-retail/replenish-cli/internal/model"
)

// ComputeNetDemand combines aggregated demand and resolved stock into net
// demand per SKU over the full outer union of both sides. A SKU missing
// from either side defaults its contribution to zero; net demand is never
// negative. Output is sorted by SKU for deterministic runs.
func ComputeNetDemand(runDate string, demand map[string]int, stock map[string]StockPosition) []model.NetDemand {
	skus := make(map[string]struct{}, len(demand)+len(stock))
	for sku := range demand {
		skus[sku] = struct{}{}
	}
	for sku := range stock {
		skus[sku] = struct{}{}
	}

	out := make([]model.NetDemand, 0, len(skus))
	for sku := range skus {
		pos := stock[sku]

		net := demand[sku] + pos.Safety - pos.FreeStock
		if net < 0 {
			net = 0
		}

		out = append(out, model.NetDemand{
			RunDate:   runDate,
			SKU:       sku,
			NetDemand: net,
		})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].SKU < out[j].SKU })
	return out
}

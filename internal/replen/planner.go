package replen

import (
	"sort"

	"github.com/calder-retail/replenish-cli/internal/model"
	"github.com/calder-retail/replenish-cli/internal/pack"
)

// PlanOrders converts net demand into supplier order quantities. Only SKUs
// with positive net demand produce orders. A SKU without a master-data row
// is dropped: it has no supplier to order from, and the quality guard has
// already flagged it as a ghost. Quantities honor the MOQ floor and round
// up to the product's pack size. Output is sorted by supplier then SKU so
// per-supplier partitions are stable.
func PlanOrders(runDate string, net []model.NetDemand, products map[string]model.Product, resolver *pack.Resolver) []model.SupplierOrder {
	orders := make([]model.SupplierOrder, 0, len(net))

	for _, nd := range net {
		if nd.NetDemand <= 0 {
			continue
		}

		p, ok := products[nd.SKU]
		if !ok || p.SupplierID == "" {
			continue
		}

		base := nd.NetDemand
		if p.MOQ > base {
			base = p.MOQ
		}

		orders = append(orders, model.SupplierOrder{
			RunDate:    runDate,
			SupplierID: p.SupplierID,
			SKU:        nd.SKU,
			Quantity:   pack.RoundUpToPack(base, resolver.Resolve(p.Package)),
		})
	}

	sort.Slice(orders, func(i, j int) bool {
		if orders[i].SupplierID != orders[j].SupplierID {
			return orders[i].SupplierID < orders[j].SupplierID
		}
		return orders[i].SKU < orders[j].SKU
	})
	return orders
}

// GroupBySupplier partitions planned orders by supplier for per-supplier
// export. Order within each supplier is preserved.
func GroupBySupplier(orders []model.SupplierOrder) map[string][]model.SupplierOrder {
	grouped := make(map[string][]model.SupplierOrder)
	for _, o := range orders {
		grouped[o.SupplierID] = append(grouped[o.SupplierID], o)
	}
	return grouped
}

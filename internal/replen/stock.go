package replen

import "github.com/calder-retail/replenish-cli/internal/model"

// StockPosition is the per-SKU view of stock after reducing over locations.
type StockPosition struct {
	// FreeStock is the sum over locations of max(available-reserved, 0).
	FreeStock int
	// Safety is the max safety quantity over locations.
	Safety int
}

// ResolveStock reduces per-location stock records into per-SKU positions.
// Locations with reserved > available contribute zero free stock (the raw,
// unclamped values are still checked by the quality guard).
func ResolveStock(stock []model.StockRecord) map[string]StockPosition {
	positions := make(map[string]StockPosition, len(stock))
	for _, rec := range stock {
		pos := positions[rec.SKU]

		free := rec.Available - rec.Reserved
		if free > 0 {
			pos.FreeStock += free
		}
		if rec.Safety > pos.Safety {
			pos.Safety = rec.Safety
		}

		positions[rec.SKU] = pos
	}
	return positions
}

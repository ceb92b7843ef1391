package model

import "time"

// SaleRecord is one raw sale observation submitted by a market.
// One file per market per run date; immutable once ingested.
type SaleRecord struct {
	RunDate    string    `json:"run_date"`
	MarketID   string    `json:"market_id"`
	SKU        string    `json:"sku"`
	Quantity   int       `json:"quantity"`
	ObservedAt time.Time `json:"observed_at"`
}

// StockRecord is one raw per-location stock observation for a run date.
// Reserved <= Available is expected but not guaranteed; violations are a
// data-quality concern, not a rejected input.
type StockRecord struct {
	RunDate   string `json:"run_date"`
	SKU       string `json:"sku"`
	Location  string `json:"location"`
	Available int    `json:"quantity_available"`
	Reserved  int    `json:"quantity_reserved"`
	Safety    int    `json:"safety_quantity"`
}

// Product is one row of product master data, snapshotted at run start.
type Product struct {
	SKU        string `json:"sku"`
	SupplierID string `json:"supplier_id"`
	MOQ        int    `json:"moq"`
	Package    string `json:"package"`
	MxOQ       int    `json:"mxoq"`
}

// AggregatedDemand is the per-SKU sales total across all markets for a run
// date. Recomputed each run; unique per (run_date, sku).
type AggregatedDemand struct {
	RunDate       string `json:"run_date"`
	SKU           string `json:"sku"`
	TotalQuantity int    `json:"total_quantity"`
}

// NetDemand is the projected per-SKU shortfall for a run date, floored at
// zero.
type NetDemand struct {
	RunDate   string `json:"run_date"`
	SKU       string `json:"sku"`
	NetDemand int    `json:"net_demand"`
}

// SupplierOrder is one order line emitted to a supplier for a run date.
type SupplierOrder struct {
	RunDate    string `json:"run_date"`
	SupplierID string `json:"supplier_id"`
	SKU        string `json:"sku"`
	Quantity   int    `json:"quantity"`
}

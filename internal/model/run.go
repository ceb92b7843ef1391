package model

import "time"

// RunStatus represents the terminal state of a replenishment run.
type RunStatus string

const (
	RunStatusRunning  RunStatus = "running"
	RunStatusOK       RunStatus = "succeeded"
	RunStatusWarnings RunStatus = "succeeded_with_warnings"
	RunStatusFailed   RunStatus = "failed"
)

// RunSummary is the user-visible outcome of one run: record counts per
// stage and exception counts per rule.
type RunSummary struct {
	RunDate         string       `json:"run_date"`
	Status          RunStatus    `json:"status"`
	SalesRecords    int          `json:"sales_records"`
	StockRecords    int          `json:"stock_records"`
	MarketsExpected int          `json:"markets_expected"`
	MarketsReceived int          `json:"markets_received"`
	SKUsAggregated  int          `json:"skus_aggregated"`
	NetDemandRows   int          `json:"net_demand_rows"`
	OrdersPlanned   int          `json:"orders_planned"`
	Suppliers       int          `json:"suppliers"`
	Exceptions      map[Rule]int `json:"exceptions,omitempty"`
	GuardDegraded   bool         `json:"guard_degraded,omitempty"`
	Error           string       `json:"error,omitempty"`
}

// TotalExceptions sums exception counts across all rules.
func (s *RunSummary) TotalExceptions() int {
	var n int
	for _, c := range s.Exceptions {
		n += c
	}
	return n
}

// Run is one recorded pipeline execution.
type Run struct {
	ID         string      `json:"id"`
	RunDate    string      `json:"run_date"`
	Status     RunStatus   `json:"status"`
	Summary    *RunSummary `json:"summary,omitempty"`
	CreatedAt  time.Time   `json:"created_at"`
	FinishedAt *time.Time  `json:"finished_at,omitempty"`
}

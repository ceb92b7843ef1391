// Package quality implements the data-quality guard: a stateful,
// append-only collector of anomalies observed during a pipeline run. Checks
// are predicate-plus-log functions that never error, so the pipeline always
// runs to completion and still reports every violation for the day.
package quality

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/calder-retail/replenish-cli/internal/model"
)

// Guard collects quality exceptions for one batch date. It is created at
// pipeline start and flushed plus discarded at pipeline end. Appends are
// serialized, so checks may run from concurrent stages.
type Guard struct {
	batchDate string
	limits    map[string]int // sku -> MxOQ
	degraded  bool

	mu   sync.Mutex
	errs []model.QualityException
}

// NewGuard creates a guard for one batch date with per-SKU MxOQ limits
// loaded from master data.
func NewGuard(batchDate string, limits map[string]int) *Guard {
	return &Guard{batchDate: batchDate, limits: limits}
}

// NewDegradedGuard creates a guard whose master-data limits could not be
// loaded. Magnitude and ghost-SKU checks fail open: they pass everything
// without logging, and the degradation is surfaced through Degraded() in
// the run summary rather than silently swallowed.
func NewDegradedGuard(batchDate string) *Guard {
	zap.L().Warn("quality guard degraded: product limits unavailable, magnitude checks fail open",
		zap.String("batch_date", batchDate),
	)
	return &Guard{batchDate: batchDate, degraded: true}
}

// Degraded reports whether master-data limits failed to load for this run.
func (g *Guard) Degraded() bool { return g.degraded }

// LogIssue appends one exception to the log. It is also the hook used to
// record pipeline-level crashes so a hard failure still leaves an audit
// trail.
func (g *Guard) LogIssue(rule model.Rule, entityID, details string, severity model.Severity) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.errs = append(g.errs, model.QualityException{
		Timestamp: time.Now().UTC(),
		BatchDate: g.batchDate,
		Rule:      rule,
		EntityID:  entityID,
		Details:   details,
		Severity:  severity,
	})
}

// CheckOrderMagnitude validates an aggregated order quantity against the
// SKU's maximum order quantity. Unknown SKUs and demand spikes are logged;
// the returned boolean only reports row validity. A known SKU with a
// non-positive limit has no configured ceiling and always passes.
func (g *Guard) CheckOrderMagnitude(orderID, sku string, quantity int) bool {
	if g.degraded {
		return true
	}

	max, ok := g.limits[sku]
	if !ok {
		g.LogIssue(model.RuleUnknownProduct, sku, "SKU not found in master data", model.SeverityHigh)
		zap.L().Warn("unknown SKU detected", zap.String("sku", sku))
		return false
	}

	if max > 0 && quantity > max {
		g.LogIssue(model.RuleAbnormalDemandSpike, orderID,
			fmt.Sprintf("Qty %d > Max %d", quantity, max), model.SeverityHigh)
		zap.L().Warn("abnormal demand spike",
			zap.String("order_id", orderID),
			zap.String("sku", sku),
			zap.Int("quantity", quantity),
			zap.Int("max", max),
		)
		return false
	}

	return true
}

// CheckStockLogic validates a raw stock observation: reserving more than is
// available is an impossible state.
func (g *Guard) CheckStockLogic(sku string, available, reserved int) bool {
	if reserved > available {
		g.LogIssue(model.RuleImpossibleStock, sku,
			fmt.Sprintf("Reserved %d > Available %d", reserved, available), model.SeverityHigh)
		zap.L().Warn("impossible stock state",
			zap.String("sku", sku),
			zap.Int("available", available),
			zap.Int("reserved", reserved),
		)
		return false
	}
	return true
}

// CheckMissingMarkets logs one MISSING_FILE exception per expected market
// that submitted nothing for the batch date. The pipeline continues
// regardless.
func (g *Guard) CheckMissingMarkets(expected, received []string) {
	got := make(map[string]struct{}, len(received))
	for _, m := range received {
		got[m] = struct{}{}
	}

	for _, m := range expected {
		if _, ok := got[m]; ok {
			continue
		}
		g.LogIssue(model.RuleMissingFile, m,
			fmt.Sprintf("No sales submission received for %s", g.batchDate), model.SeverityMedium)
		zap.L().Warn("missing market submission", zap.String("market_id", m))
	}
}

// CheckGhostSKUs logs one UNKNOWN_PRODUCT exception per sold SKU absent
// from master data, naming the offending market. soldBy maps SKU to the
// market that first sold it. Skipped when the guard is degraded, since an
// empty known set would flag every sale.
func (g *Guard) CheckGhostSKUs(soldBy map[string]string, known map[string]struct{}) {
	if g.degraded {
		return
	}

	ghosts := make([]string, 0)
	for sku := range soldBy {
		if _, ok := known[sku]; !ok {
			ghosts = append(ghosts, sku)
		}
	}
	sort.Strings(ghosts)

	for _, sku := range ghosts {
		g.LogIssue(model.RuleUnknownProduct, sku,
			fmt.Sprintf("Sold by market %s but absent from master data", soldBy[sku]), model.SeverityHigh)
		zap.L().Warn("ghost SKU sold",
			zap.String("sku", sku),
			zap.String("market_id", soldBy[sku]),
		)
	}
}

// CheckPackageCompliance verifies final order quantities against each
// product's MOQ floor and pack multiple.
func (g *Guard) CheckPackageCompliance(orders []model.SupplierOrder, products map[string]model.Product, packSize func(string) int) {
	for _, o := range orders {
		p, ok := products[o.SKU]
		if !ok {
			continue
		}

		size := packSize(p.Package)
		switch {
		case o.Quantity < p.MOQ:
			g.LogIssue(model.RulePackageNoncompliant, o.SKU,
				fmt.Sprintf("Qty %d below MOQ %d", o.Quantity, p.MOQ), model.SeverityMedium)
		case size > 1 && o.Quantity%size != 0:
			g.LogIssue(model.RulePackageNoncompliant, o.SKU,
				fmt.Sprintf("Qty %d not a multiple of pack size %d", o.Quantity, size), model.SeverityMedium)
		}
	}
}

// Exceptions returns a copy of the accumulated exception log in append
// order.
func (g *Guard) Exceptions() []model.QualityException {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]model.QualityException, len(g.errs))
	copy(out, g.errs)
	return out
}

// CountsByRule tallies accumulated exceptions per rule.
func (g *Guard) CountsByRule() map[model.Rule]int {
	g.mu.Lock()
	defer g.mu.Unlock()
	counts := make(map[model.Rule]int, len(g.errs))
	for _, e := range g.errs {
		counts[e.Rule]++
	}
	return counts
}

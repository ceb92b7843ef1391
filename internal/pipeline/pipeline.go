// Package pipeline orchestrates one replenishment run: master-data
// snapshot, raw ingestion, demand aggregation, stock netting, order
// planning, and the quality report flush. Stages are sequential and
// deterministic per run date.
package pipeline

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/calder-retail/replenish-cli/internal/ingest"
	"github.com/calder-retail/replenish-cli/internal/master"
	"github.com/calder-retail/replenish-cli/internal/model"
	"github.com/calder-retail/replenish-cli/internal/output"
	"github.com/calder-retail/replenish-cli/internal/pack"
	"github.com/calder-retail/replenish-cli/internal/quality"
	"github.com/calder-retail/replenish-cli/internal/replen"
)

// Pipeline wires the stages of a replenishment run. All collaborators are
// injected so stages can be tested against fakes.
type Pipeline struct {
	Store          master.Store
	Reader         *ingest.Reader
	Writer         *output.Writer
	Resolver       *pack.Resolver
	AllowedFormats []string
	DataRoot       string

	log *zap.Logger
}

// New creates a Pipeline.
func New(store master.Store, reader *ingest.Reader, writer *output.Writer, resolver *pack.Resolver, allowedFormats []string, dataRoot string) *Pipeline {
	return &Pipeline{
		Store:          store,
		Reader:         reader,
		Writer:         writer,
		Resolver:       resolver,
		AllowedFormats: allowedFormats,
		DataRoot:       dataRoot,
		log:            zap.L().With(zap.String("component", "pipeline")),
	}
}

// Run executes one replenishment run for a run date. Input anomalies are
// collected by the quality guard and never abort the run; a stage failure
// is logged as a PIPELINE_CRASH exception, the partial report is still
// flushed, and the error is returned. The returned summary is always
// non-nil.
func (p *Pipeline) Run(ctx context.Context, runDate string) (*model.RunSummary, error) {
	summary := &model.RunSummary{RunDate: runDate}

	// Step 1: snapshot master data. Load failure degrades the guard
	// instead of aborting: magnitude checks fail open for this run and
	// the degradation is surfaced in the summary.
	products, markets, guard := p.loadMaster(ctx, runDate)
	summary.GuardDegraded = guard.Degraded()
	summary.MarketsExpected = len(markets)
	known := make(map[string]struct{}, len(products))
	for _, prod := range products {
		known[prod.SKU] = struct{}{}
	}

	// Step 3 (before ingest so malformed drops are reported even when a
	// later stage crashes): whitelist raw file formats. Never blocking.
	p.Reader.ValidateFormats(runDate, p.AllowedFormats, guard)

	// Step 2: ingest raw sales. A missing sales partition means the run
	// has no mandatory input and is fatal.
	sales, received, err := p.Reader.ReadSales(runDate)
	if err != nil {
		return p.crash(guard, summary, err)
	}
	summary.SalesRecords = len(sales)
	summary.MarketsReceived = len(received)

	guard.CheckMissingMarkets(markets, received)

	// Step 4: aggregate demand per SKU.
	demand := replen.AggregateDemand(sales)
	summary.SKUsAggregated = len(demand)

	// Step 5: magnitude checks per aggregated SKU, plus the ghost scan.
	soldBy := make(map[string]string, len(demand))
	for _, s := range sales {
		if _, ok := soldBy[s.SKU]; !ok {
			soldBy[s.SKU] = s.MarketID
		}
	}
	guard.CheckGhostSKUs(soldBy, known)
	for _, sku := range sortedKeys(demand) {
		if _, ok := known[sku]; !ok {
			continue // already reported by the ghost scan
		}
		guard.CheckOrderMagnitude(fmt.Sprintf("%s:%s", runDate, sku), sku, demand[sku])
	}

	// Step 6: ingest stock and run stock-logic checks, one exception per
	// offending SKU.
	stock, err := p.Reader.ReadStock(runDate)
	if err != nil {
		return p.crash(guard, summary, err)
	}
	summary.StockRecords = len(stock)

	flagged := make(map[string]struct{})
	for _, rec := range stock {
		if _, ok := flagged[rec.SKU]; ok {
			continue
		}
		if !guard.CheckStockLogic(rec.SKU, rec.Available, rec.Reserved) {
			flagged[rec.SKU] = struct{}{}
		}
	}
	positions := replen.ResolveStock(stock)

	// Step 7: net demand.
	net := replen.ComputeNetDemand(runDate, demand, positions)
	summary.NetDemandRows = len(net)

	// Step 8: plan supplier orders.
	bySKU := master.BySKU(products)
	orders := replen.PlanOrders(runDate, net, bySKU, p.Resolver)
	summary.OrdersPlanned = len(orders)
	summary.Suppliers = len(replen.GroupBySupplier(orders))

	// Step 9: package/MOQ compliance on the final orders.
	guard.CheckPackageCompliance(orders, bySKU, p.Resolver.Resolve)

	// Persist artifacts. Partitions are write-once, so a pre-existing
	// partition for this run date fails the run.
	if _, err := p.Writer.WriteAggregatedDemand(runDate, demandRows(runDate, demand)); err != nil {
		return p.crash(guard, summary, err)
	}
	if _, err := p.Writer.WriteNetDemand(runDate, net); err != nil {
		return p.crash(guard, summary, err)
	}
	if _, err := p.Writer.WriteSupplierOrders(runDate, orders); err != nil {
		return p.crash(guard, summary, err)
	}

	// Step 10: flush the quality report. A report-write failure must not
	// discard the completed computation, but it is never silent.
	if err := guard.SaveReport(p.DataRoot); err != nil {
		p.log.Error("exception report write failed", zap.String("run_date", runDate), zap.Error(err))
		summary.Error = err.Error()
	}

	summary.Exceptions = guard.CountsByRule()
	if summary.TotalExceptions() > 0 || guard.Degraded() {
		summary.Status = model.RunStatusWarnings
	} else {
		summary.Status = model.RunStatusOK
	}

	p.log.Info("run complete",
		zap.String("run_date", runDate),
		zap.String("status", string(summary.Status)),
		zap.Int("sales_records", summary.SalesRecords),
		zap.Int("orders_planned", summary.OrdersPlanned),
		zap.Int("exceptions", summary.TotalExceptions()),
	)
	return summary, nil
}

// loadMaster snapshots products and markets. On failure it returns a
// degraded guard and empty master data.
func (p *Pipeline) loadMaster(ctx context.Context, runDate string) ([]model.Product, []string, *quality.Guard) {
	products, err := p.Store.Products(ctx)
	if err != nil {
		p.log.Error("master products unavailable", zap.Error(err))
		return nil, nil, quality.NewDegradedGuard(runDate)
	}
	markets, err := p.Store.Markets(ctx)
	if err != nil {
		p.log.Error("master markets unavailable", zap.Error(err))
		return nil, nil, quality.NewDegradedGuard(runDate)
	}
	return products, markets, quality.NewGuard(runDate, master.Limits(products))
}

// crash records a fatal stage failure, flushes whatever exceptions were
// collected, and returns the failed summary with the original error.
func (p *Pipeline) crash(guard *quality.Guard, summary *model.RunSummary, err error) (*model.RunSummary, error) {
	p.log.Error("pipeline crashed", zap.String("run_date", summary.RunDate), zap.Error(err))
	guard.LogIssue(model.RulePipelineCrash, "SYSTEM", err.Error(), model.SeverityHigh)

	if saveErr := guard.SaveReport(p.DataRoot); saveErr != nil {
		p.log.Error("exception report write failed after crash", zap.Error(saveErr))
	}

	summary.Exceptions = guard.CountsByRule()
	summary.Status = model.RunStatusFailed
	summary.Error = err.Error()
	return summary, err
}

func demandRows(runDate string, demand map[string]int) []model.AggregatedDemand {
	rows := make([]model.AggregatedDemand, 0, len(demand))
	for _, sku := range sortedKeys(demand) {
		rows = append(rows, model.AggregatedDemand{RunDate: runDate, SKU: sku, TotalQuantity: demand[sku]})
	}
	return rows
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

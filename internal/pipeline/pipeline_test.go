package pipeline

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calder-retail/replenish-cli/internal/ingest"
	"github.com/calder-retail/replenish-cli/internal/model"
	"github.com/calder-retail/replenish-cli/internal/output"
	"github.com/calder-retail/replenish-cli/internal/pack"
	"github.com/calder-retail/replenish-cli/internal/quality"
)

const runDate = "2026-01-13"

// fakeStore serves canned master data; err makes every read fail.
type fakeStore struct {
	products []model.Product
	markets  []string
	err      error
}

func (f *fakeStore) Products(ctx context.Context) ([]model.Product, error) {
	return f.products, f.err
}

func (f *fakeStore) Markets(ctx context.Context) ([]string, error) {
	return f.markets, f.err
}

func (f *fakeStore) UpsertProducts(ctx context.Context, products []model.Product) (int, error) {
	return 0, nil
}
func (f *fakeStore) UpsertMarkets(ctx context.Context, marketIDs []string) (int, error) {
	return 0, nil
}
func (f *fakeStore) CreateRun(ctx context.Context, runDate string) (*model.Run, error) {
	return nil, nil
}
func (f *fakeStore) FinishRun(ctx context.Context, runID string, status model.RunStatus, summary *model.RunSummary) error {
	return nil
}
func (f *fakeStore) GetRun(ctx context.Context, runID string) (*model.Run, error) { return nil, nil }
func (f *fakeStore) ListRuns(ctx context.Context, limit int) ([]model.Run, error) { return nil, nil }
func (f *fakeStore) Migrate(ctx context.Context) error                            { return nil }
func (f *fakeStore) Close() error                                                 { return nil }

func defaultStore() *fakeStore {
	return &fakeStore{
		products: []model.Product{
			{SKU: "SKU-A", SupplierID: "SUP-001", MOQ: 5, Package: "Box of 6", MxOQ: 100},
		},
		markets: []string{"MKT-001", "MKT-002"},
	}
}

func newTestPipeline(t *testing.T, store *fakeStore) (*Pipeline, string) {
	t.Helper()
	root := t.TempDir()
	writer, err := output.New(root, output.FormatCSV, "")
	require.NoError(t, err)

	p := New(store, &ingest.Reader{Root: root, Concurrency: 2}, writer,
		pack.NewResolver(), []string{".csv", ".parquet"}, root)
	return p, root
}

func writeRaw(t *testing.T, root, kind, name, content string) {
	t.Helper()
	dir := filepath.Join(root, "raw", kind, runDate)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestRunEndToEnd(t *testing.T) {
	p, root := newTestPipeline(t, defaultStore())

	writeRaw(t, root, "sales", "sales_market_MKT-001.csv",
		"market_id,sku,quantity\nMKT-001,SKU-A,10\n")
	writeRaw(t, root, "sales", "sales_market_MKT-002.csv",
		"market_id,sku,quantity\nMKT-002,SKU-A,5\n")
	writeRaw(t, root, "stock", "stock.csv",
		"sku,location,quantity_available,quantity_reserved,safety_quantity\nSKU-A,DC-1,20,5,10\n")

	summary, err := p.Run(context.Background(), runDate)
	require.NoError(t, err)

	assert.Equal(t, model.RunStatusOK, summary.Status)
	assert.Equal(t, 2, summary.SalesRecords)
	assert.Equal(t, 1, summary.StockRecords)
	assert.Equal(t, 2, summary.MarketsExpected)
	assert.Equal(t, 2, summary.MarketsReceived)
	assert.Equal(t, 1, summary.SKUsAggregated)
	assert.Equal(t, 1, summary.OrdersPlanned)
	assert.Equal(t, 1, summary.Suppliers)
	assert.Zero(t, summary.TotalExceptions())

	// Demand 15, free stock 15, safety 10 -> net 10; max(10, moq 5)
	// rounded up to a box of 6 is 12.
	rows := readCSV(t, filepath.Join(root, "output", "supplier_orders", runDate, "orders_SUP-001.csv"))
	require.Len(t, rows, 2)
	assert.Equal(t, []string{runDate, "SUP-001", "SKU-A", "12"}, rows[1])

	agg := readCSV(t, filepath.Join(root, "processed", "aggregated_demand", runDate, "aggregated_demand.csv"))
	require.Len(t, agg, 2)
	assert.Equal(t, []string{runDate, "SKU-A", "15"}, agg[1])

	net := readCSV(t, filepath.Join(root, "processed", "net_demand", runDate, "net_demand.csv"))
	require.Len(t, net, 2)
	assert.Equal(t, []string{runDate, "SKU-A", "10"}, net[1])

	// Clean run leaves no exception report.
	_, statErr := os.Stat(quality.ReportPath(root, runDate))
	assert.True(t, os.IsNotExist(statErr))
}

func TestRunImpossibleStock(t *testing.T) {
	store := defaultStore()
	store.products = append(store.products,
		model.Product{SKU: "SKU-B", SupplierID: "SUP-001", MOQ: 1, Package: "Single Unit", MxOQ: 50})
	p, root := newTestPipeline(t, store)

	writeRaw(t, root, "sales", "sales_market_MKT-001.csv",
		"market_id,sku,quantity\nMKT-001,SKU-B,3\n")
	writeRaw(t, root, "sales", "sales_market_MKT-002.csv",
		"market_id,sku,quantity\n")
	writeRaw(t, root, "stock", "stock.csv",
		"sku,location,quantity_available,quantity_reserved,safety_quantity\n"+
			"SKU-B,DC-1,5,8,0\nSKU-B,DC-2,5,8,0\n")

	summary, err := p.Run(context.Background(), runDate)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusWarnings, summary.Status)

	// Exactly one IMPOSSIBLE_STOCK per offending SKU even with several
	// bad locations.
	assert.Equal(t, 1, summary.Exceptions[model.RuleImpossibleStock])

	rows := readCSV(t, quality.ReportPath(root, runDate))
	var impossible [][]string
	for _, row := range rows[1:] {
		if row[2] == string(model.RuleImpossibleStock) {
			impossible = append(impossible, row)
		}
	}
	require.Len(t, impossible, 1)
	assert.Equal(t, "SKU-B", impossible[0][3])

	// Free stock clamps to 0: net = demand 3 + safety 0 - free 0 = 3.
	net := readCSV(t, filepath.Join(root, "processed", "net_demand", runDate, "net_demand.csv"))
	require.Len(t, net, 2)
	assert.Equal(t, []string{runDate, "SKU-B", "3"}, net[1])
}

func TestRunGhostSKU(t *testing.T) {
	p, root := newTestPipeline(t, defaultStore())

	writeRaw(t, root, "sales", "sales_market_MKT-001.csv",
		"market_id,sku,quantity\nMKT-001,SKU-GHOST,4\n")
	writeRaw(t, root, "sales", "sales_market_MKT-002.csv",
		"market_id,sku,quantity\nMKT-002,SKU-A,5\n")
	writeRaw(t, root, "stock", "stock.csv",
		"sku,location,quantity_available,quantity_reserved,safety_quantity\nSKU-A,DC-1,0,0,0\n")

	summary, err := p.Run(context.Background(), runDate)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusWarnings, summary.Status)
	assert.Equal(t, 1, summary.Exceptions[model.RuleUnknownProduct])

	rows := readCSV(t, quality.ReportPath(root, runDate))
	var found bool
	for _, row := range rows[1:] {
		if row[2] == string(model.RuleUnknownProduct) && row[3] == "SKU-GHOST" {
			found = true
			assert.Contains(t, row[4], "MKT-001")
		}
	}
	assert.True(t, found, "expected an unknown-product exception for SKU-GHOST")

	// Ghost SKUs never reach supplier orders.
	orders := readCSV(t, filepath.Join(root, "output", "supplier_orders", runDate, "orders_SUP-001.csv"))
	for _, row := range orders[1:] {
		assert.NotEqual(t, "SKU-GHOST", row[2])
	}
}

func TestRunAbnormalDemandSpike(t *testing.T) {
	p, root := newTestPipeline(t, defaultStore())

	writeRaw(t, root, "sales", "sales_market_MKT-001.csv",
		"market_id,sku,quantity\nMKT-001,SKU-A,900\n")
	writeRaw(t, root, "sales", "sales_market_MKT-002.csv",
		"market_id,sku,quantity\n")
	writeRaw(t, root, "stock", "stock.csv",
		"sku,location,quantity_available,quantity_reserved,safety_quantity\nSKU-A,DC-1,0,0,0\n")

	summary, err := p.Run(context.Background(), runDate)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusWarnings, summary.Status)
	assert.Equal(t, 1, summary.Exceptions[model.RuleAbnormalDemandSpike])

	rows := readCSV(t, quality.ReportPath(root, runDate))
	var found bool
	for _, row := range rows[1:] {
		if row[2] == string(model.RuleAbnormalDemandSpike) {
			found = true
			assert.Equal(t, runDate+":SKU-A", row[3])
		}
	}
	assert.True(t, found)
}

func TestRunZeroMxOQProductIsNotUnknown(t *testing.T) {
	// Master CSVs without an mxoq column leave MxOQ at 0; selling such a
	// SKU is normal and must not raise UNKNOWN_PRODUCT or a spike.
	store := defaultStore()
	store.products = []model.Product{
		{SKU: "SKU-Z", SupplierID: "SUP-001", MOQ: 1, Package: "Single Unit", MxOQ: 0},
	}
	p, root := newTestPipeline(t, store)

	writeRaw(t, root, "sales", "sales_market_MKT-001.csv",
		"market_id,sku,quantity\nMKT-001,SKU-Z,5\n")
	writeRaw(t, root, "sales", "sales_market_MKT-002.csv",
		"market_id,sku,quantity\nMKT-002,SKU-Z,9000\n")
	writeRaw(t, root, "stock", "stock.csv",
		"sku,location,quantity_available,quantity_reserved,safety_quantity\nSKU-Z,DC-1,0,0,0\n")

	summary, err := p.Run(context.Background(), runDate)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusOK, summary.Status)
	assert.Zero(t, summary.TotalExceptions())
	assert.Equal(t, 1, summary.OrdersPlanned)
}

func TestRunMissingMarket(t *testing.T) {
	p, root := newTestPipeline(t, defaultStore())

	writeRaw(t, root, "sales", "sales_market_MKT-001.csv",
		"market_id,sku,quantity\nMKT-001,SKU-A,10\n")
	writeRaw(t, root, "stock", "stock.csv",
		"sku,location,quantity_available,quantity_reserved,safety_quantity\nSKU-A,DC-1,50,0,0\n")

	summary, err := p.Run(context.Background(), runDate)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusWarnings, summary.Status)
	assert.Equal(t, 1, summary.Exceptions[model.RuleMissingFile])
	assert.Equal(t, 1, summary.MarketsReceived)

	rows := readCSV(t, quality.ReportPath(root, runDate))
	var found bool
	for _, row := range rows[1:] {
		if row[2] == string(model.RuleMissingFile) {
			found = true
			assert.Equal(t, "MKT-002", row[3])
		}
	}
	assert.True(t, found)
}

func TestRunInvalidFormat(t *testing.T) {
	p, root := newTestPipeline(t, defaultStore())

	writeRaw(t, root, "sales", "sales_market_MKT-001.csv",
		"market_id,sku,quantity\nMKT-001,SKU-A,10\n")
	writeRaw(t, root, "sales", "sales_market_MKT-002.csv",
		"market_id,sku,quantity\n")
	writeRaw(t, root, "sales", "notes.txt", "not a data file\n")
	writeRaw(t, root, "stock", "stock.csv",
		"sku,location,quantity_available,quantity_reserved,safety_quantity\nSKU-A,DC-1,50,0,0\n")

	summary, err := p.Run(context.Background(), runDate)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusWarnings, summary.Status)
	assert.Equal(t, 1, summary.Exceptions[model.RuleInvalidFormat])
}

func TestRunMissingSalesPartitionIsFatal(t *testing.T) {
	p, root := newTestPipeline(t, defaultStore())

	// Stock exists, sales partition does not.
	writeRaw(t, root, "stock", "stock.csv",
		"sku,location,quantity_available,quantity_reserved,safety_quantity\nSKU-A,DC-1,50,0,0\n")

	summary, err := p.Run(context.Background(), runDate)
	require.Error(t, err)
	assert.Equal(t, model.RunStatusFailed, summary.Status)
	assert.NotEmpty(t, summary.Error)
	assert.Equal(t, 1, summary.Exceptions[model.RulePipelineCrash])

	// The partial report is still flushed, tagged SYSTEM.
	rows := readCSV(t, quality.ReportPath(root, runDate))
	require.Len(t, rows, 2)
	assert.Equal(t, string(model.RulePipelineCrash), rows[1][2])
	assert.Equal(t, "SYSTEM", rows[1][3])
	assert.Equal(t, string(model.SeverityHigh), rows[1][5])
}

func TestRunMissingStockPartitionIsFatal(t *testing.T) {
	p, root := newTestPipeline(t, defaultStore())

	writeRaw(t, root, "sales", "sales_market_MKT-001.csv",
		"market_id,sku,quantity\nMKT-001,SKU-A,10\n")
	writeRaw(t, root, "sales", "sales_market_MKT-002.csv",
		"market_id,sku,quantity\n")

	summary, err := p.Run(context.Background(), runDate)
	require.Error(t, err)
	assert.Equal(t, model.RunStatusFailed, summary.Status)
	assert.Equal(t, 1, summary.Exceptions[model.RulePipelineCrash])
}

func TestRunDegradedGuard(t *testing.T) {
	store := defaultStore()
	store.err = eris.New("master store unreachable")
	p, root := newTestPipeline(t, store)

	writeRaw(t, root, "sales", "sales_market_MKT-001.csv",
		"market_id,sku,quantity\nMKT-001,SKU-A,10\n")
	writeRaw(t, root, "stock", "stock.csv",
		"sku,location,quantity_available,quantity_reserved,safety_quantity\nSKU-A,DC-1,50,0,0\n")

	summary, err := p.Run(context.Background(), runDate)
	require.NoError(t, err)

	// The run completes degraded: no master data, magnitude checks fail
	// open, and the degradation is visible in the summary.
	assert.True(t, summary.GuardDegraded)
	assert.Equal(t, model.RunStatusWarnings, summary.Status)
	assert.Zero(t, summary.Exceptions[model.RuleUnknownProduct])
	assert.Zero(t, summary.MarketsExpected)

	// Without master data no product has a supplier, so no orders.
	assert.Zero(t, summary.OrdersPlanned)
}

func TestRunWriteOncePartition(t *testing.T) {
	p, root := newTestPipeline(t, defaultStore())

	writeRaw(t, root, "sales", "sales_market_MKT-001.csv",
		"market_id,sku,quantity\nMKT-001,SKU-A,10\n")
	writeRaw(t, root, "sales", "sales_market_MKT-002.csv",
		"market_id,sku,quantity\n")
	writeRaw(t, root, "stock", "stock.csv",
		"sku,location,quantity_available,quantity_reserved,safety_quantity\nSKU-A,DC-1,0,0,0\n")

	// A pre-existing output partition for this run date means another
	// writer got there first.
	require.NoError(t, os.MkdirAll(filepath.Join(root, "processed", "aggregated_demand", runDate), 0o755))

	summary, err := p.Run(context.Background(), runDate)
	require.Error(t, err)
	assert.Equal(t, model.RunStatusFailed, summary.Status)
	assert.Contains(t, err.Error(), "already exists")
}

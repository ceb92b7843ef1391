package output

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/calder-retail/replenish-cli/internal/model"
)

const runDate = "2026-01-13"

func testOrders() []model.SupplierOrder {
	return []model.SupplierOrder{
		{RunDate: runDate, SupplierID: "SUP-001", SKU: "SKU-0001", Quantity: 12},
		{RunDate: runDate, SupplierID: "SUP-001", SKU: "SKU-0003", Quantity: 100},
		{RunDate: runDate, SupplierID: "SUP-002", SKU: "SKU-0002", Quantity: 60},
	}
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

func TestNewRejectsUnknownFormats(t *testing.T) {
	t.Parallel()

	_, err := New(t.TempDir(), "avro", "")
	require.Error(t, err)

	_, err = New(t.TempDir(), "csv", "pdf")
	require.Error(t, err)

	// XLSX is orders-only.
	_, err = New(t.TempDir(), "xlsx", "")
	require.Error(t, err)
}

func TestWriteAggregatedDemandCSV(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	w, err := New(root, "csv", "")
	require.NoError(t, err)

	path, err := w.WriteAggregatedDemand(runDate, []model.AggregatedDemand{
		{RunDate: runDate, SKU: "SKU-0001", TotalQuantity: 15},
	})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "processed", "aggregated_demand", runDate, "aggregated_demand.csv"), path)

	rows := readCSV(t, path)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"run_date", "sku", "total_quantity"}, rows[0])
	assert.Equal(t, []string{runDate, "SKU-0001", "15"}, rows[1])
}

func TestWriteNetDemandCSV(t *testing.T) {
	t.Parallel()
	w, err := New(t.TempDir(), "csv", "")
	require.NoError(t, err)

	path, err := w.WriteNetDemand(runDate, []model.NetDemand{
		{RunDate: runDate, SKU: "SKU-0001", NetDemand: 10},
		{RunDate: runDate, SKU: "SKU-0002", NetDemand: 0},
	})
	require.NoError(t, err)

	rows := readCSV(t, path)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{runDate, "SKU-0002", "0"}, rows[2])
}

func TestWriteSupplierOrdersCSV(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	w, err := New(root, "csv", "")
	require.NoError(t, err)

	paths, err := w.WriteSupplierOrders(runDate, testOrders())
	require.NoError(t, err)
	require.Len(t, paths, 2)

	// One file per supplier, sorted.
	assert.Equal(t, filepath.Join(root, "output", "supplier_orders", runDate, "orders_SUP-001.csv"), paths[0])
	assert.Equal(t, filepath.Join(root, "output", "supplier_orders", runDate, "orders_SUP-002.csv"), paths[1])

	rows := readCSV(t, paths[0])
	require.Len(t, rows, 3)
	assert.Equal(t, []string{runDate, "SUP-001", "SKU-0001", "12"}, rows[1])
	assert.Equal(t, []string{runDate, "SUP-001", "SKU-0003", "100"}, rows[2])
}

func TestWriteSupplierOrdersXLSX(t *testing.T) {
	t.Parallel()
	w, err := New(t.TempDir(), "csv", "xlsx")
	require.NoError(t, err)

	paths, err := w.WriteSupplierOrders(runDate, testOrders())
	require.NoError(t, err)
	require.Len(t, paths, 2)
	assert.Equal(t, ".xlsx", filepath.Ext(paths[0]))

	f, err := xlsx.OpenFile(paths[0])
	require.NoError(t, err)
	require.Len(t, f.Sheets, 1)

	sheet := f.Sheets[0]
	require.GreaterOrEqual(t, len(sheet.Rows), 5)
	assert.Equal(t, "run_date", sheet.Rows[0].Cells[0].String())
	assert.Equal(t, runDate, sheet.Rows[0].Cells[1].String())
	assert.Equal(t, "supplier_id", sheet.Rows[1].Cells[0].String())
	assert.Equal(t, "SUP-001", sheet.Rows[1].Cells[1].String())
	assert.Equal(t, "SKU-0001", sheet.Rows[3].Cells[0].String())
}

func TestWriteSupplierOrdersParquet(t *testing.T) {
	t.Parallel()
	w, err := New(t.TempDir(), "parquet", "")
	require.NoError(t, err)

	paths, err := w.WriteSupplierOrders(runDate, testOrders())
	require.NoError(t, err)
	require.Len(t, paths, 2)

	info, err := os.Stat(paths[0])
	require.NoError(t, err)
	assert.Positive(t, info.Size())
}

func TestWriteOncepartitions(t *testing.T) {
	t.Parallel()
	w, err := New(t.TempDir(), "csv", "")
	require.NoError(t, err)

	_, err = w.WriteAggregatedDemand(runDate, nil)
	require.NoError(t, err)

	_, err = w.WriteAggregatedDemand(runDate, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")
}

func TestWriteEmptyArtifactsStillCreatesPartitions(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	w, err := New(root, "csv", "")
	require.NoError(t, err)

	path, err := w.WriteNetDemand(runDate, nil)
	require.NoError(t, err)
	rows := readCSV(t, path)
	assert.Len(t, rows, 1) // header only

	paths, err := w.WriteSupplierOrders(runDate, nil)
	require.NoError(t, err)
	assert.Empty(t, paths)

	// Partition exists even with zero suppliers.
	_, err = os.Stat(filepath.Join(root, "output", "supplier_orders", runDate))
	assert.NoError(t, err)
}

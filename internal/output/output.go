// Package output persists the run's derived artifacts: aggregated demand,
// net demand, and per-supplier order files. Partitions are write-once: a
// run date that already has outputs must be cleaned before retry (single
// active writer per run date).
package output

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/calder-retail/replenish-cli/internal/model"
	"github.com/calder-retail/replenish-cli/internal/replen"
)

// Supported artifact formats.
const (
	FormatCSV     = "csv"
	FormatParquet = "parquet"
	FormatXLSX    = "xlsx" // supplier orders only
)

// Writer writes the three output artifacts under the data root:
// processed/aggregated_demand/<date>/, processed/net_demand/<date>/, and
// output/supplier_orders/<date>/ with one file per supplier.
type Writer struct {
	root         string
	format       string
	ordersFormat string
}

// New creates a Writer. format applies to the processed artifacts (csv or
// parquet); ordersFormat applies to supplier order files (csv, parquet, or
// xlsx) and defaults to format when empty.
func New(root, format, ordersFormat string) (*Writer, error) {
	if format == "" {
		format = FormatCSV
	}
	if ordersFormat == "" {
		ordersFormat = format
	}

	switch format {
	case FormatCSV, FormatParquet:
	default:
		return nil, eris.Errorf("output: unsupported format %q", format)
	}
	switch ordersFormat {
	case FormatCSV, FormatParquet, FormatXLSX:
	default:
		return nil, eris.Errorf("output: unsupported orders format %q", ordersFormat)
	}

	return &Writer{root: root, format: format, ordersFormat: ordersFormat}, nil
}

// WriteAggregatedDemand persists the per-SKU demand totals for the run
// date and returns the written path.
func (w *Writer) WriteAggregatedDemand(runDate string, rows []model.AggregatedDemand) (string, error) {
	dir, err := w.freshPartition(filepath.Join(w.root, "processed", "aggregated_demand"), runDate)
	if err != nil {
		return "", err
	}

	path := filepath.Join(dir, "aggregated_demand."+w.format)
	switch w.format {
	case FormatParquet:
		err = writeAggregatedParquet(path, rows)
	default:
		err = writeAggregatedCSV(path, rows)
	}
	if err != nil {
		return "", err
	}

	zap.L().Info("aggregated demand written", zap.String("path", path), zap.Int("rows", len(rows)))
	return path, nil
}

// WriteNetDemand persists the per-SKU net demand for the run date and
// returns the written path.
func (w *Writer) WriteNetDemand(runDate string, rows []model.NetDemand) (string, error) {
	dir, err := w.freshPartition(filepath.Join(w.root, "processed", "net_demand"), runDate)
	if err != nil {
		return "", err
	}

	path := filepath.Join(dir, "net_demand."+w.format)
	switch w.format {
	case FormatParquet:
		err = writeNetDemandParquet(path, rows)
	default:
		err = writeNetDemandCSV(path, rows)
	}
	if err != nil {
		return "", err
	}

	zap.L().Info("net demand written", zap.String("path", path), zap.Int("rows", len(rows)))
	return path, nil
}

// WriteSupplierOrders persists one order file per supplier for the run
// date and returns the written paths in supplier order.
func (w *Writer) WriteSupplierOrders(runDate string, orders []model.SupplierOrder) ([]string, error) {
	dir, err := w.freshPartition(filepath.Join(w.root, "output", "supplier_orders"), runDate)
	if err != nil {
		return nil, err
	}

	grouped := replen.GroupBySupplier(orders)
	suppliers := make([]string, 0, len(grouped))
	for s := range grouped {
		suppliers = append(suppliers, s)
	}
	sort.Strings(suppliers)

	paths := make([]string, 0, len(suppliers))
	for _, supplier := range suppliers {
		path := filepath.Join(dir, "orders_"+supplier+"."+w.ordersFormat)

		var err error
		switch w.ordersFormat {
		case FormatParquet:
			err = writeOrdersParquet(path, grouped[supplier])
		case FormatXLSX:
			err = writeOrdersXLSX(path, runDate, supplier, grouped[supplier])
		default:
			err = writeOrdersCSV(path, grouped[supplier])
		}
		if err != nil {
			return nil, err
		}
		paths = append(paths, path)
	}

	zap.L().Info("supplier orders written",
		zap.String("run_date", runDate),
		zap.Int("suppliers", len(paths)),
		zap.Int("orders", len(orders)),
	)
	return paths, nil
}

// freshPartition creates base/<runDate>, failing if the partition already
// exists.
func (w *Writer) freshPartition(base, runDate string) (string, error) {
	if err := os.MkdirAll(base, 0o755); err != nil {
		return "", eris.Wrapf(err, "output: create %s", base)
	}
	dir := filepath.Join(base, runDate)
	if err := os.Mkdir(dir, 0o755); err != nil {
		if os.IsExist(err) {
			return "", eris.Errorf("output: partition %s already exists (write-once, clean before retry)", dir)
		}
		return "", eris.Wrapf(err, "output: create partition %s", dir)
	}
	return dir, nil
}

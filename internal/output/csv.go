package output

import (
	"encoding/csv"
	"os"
	"strconv"

	"github.com/rotisserie/eris"

	"github.com/calder-retail/replenish-cli/internal/model"
)

func writeCSV(path string, header []string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "output: create %s", path)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return eris.Wrapf(err, "output: write header of %s", path)
	}
	for _, row := range rows {
		if err := w.Write(row); err != nil {
			return eris.Wrapf(err, "output: write row of %s", path)
		}
	}
	w.Flush()
	return eris.Wrapf(w.Error(), "output: flush %s", path)
}

func writeAggregatedCSV(path string, rows []model.AggregatedDemand) error {
	records := make([][]string, 0, len(rows))
	for _, r := range rows {
		records = append(records, []string{r.RunDate, r.SKU, strconv.Itoa(r.TotalQuantity)})
	}
	return writeCSV(path, []string{"run_date", "sku", "total_quantity"}, records)
}

func writeNetDemandCSV(path string, rows []model.NetDemand) error {
	records := make([][]string, 0, len(rows))
	for _, r := range rows {
		records = append(records, []string{r.RunDate, r.SKU, strconv.Itoa(r.NetDemand)})
	}
	return writeCSV(path, []string{"run_date", "sku", "net_demand"}, records)
}

func writeOrdersCSV(path string, orders []model.SupplierOrder) error {
	records := make([][]string, 0, len(orders))
	for _, o := range orders {
		records = append(records, []string{o.RunDate, o.SupplierID, o.SKU, strconv.Itoa(o.Quantity)})
	}
	return writeCSV(path, []string{"run_date", "supplier_id", "sku", "quantity"}, records)
}

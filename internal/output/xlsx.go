package output

import (
	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/calder-retail/replenish-cli/internal/model"
)

// writeOrdersXLSX writes one supplier's orders as a spreadsheet with a
// run date / supplier header block followed by the sku/quantity lines.
func writeOrdersXLSX(path, runDate, supplierID string, orders []model.SupplierOrder) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Orders")
	if err != nil {
		return eris.Wrapf(err, "output: add sheet for %s", path)
	}

	header := sheet.AddRow()
	header.AddCell().SetString("run_date")
	header.AddCell().SetString(runDate)

	supplier := sheet.AddRow()
	supplier.AddCell().SetString("supplier_id")
	supplier.AddCell().SetString(supplierID)

	cols := sheet.AddRow()
	cols.AddCell().SetString("sku")
	cols.AddCell().SetString("quantity")

	for _, o := range orders {
		row := sheet.AddRow()
		row.AddCell().SetString(o.SKU)
		row.AddCell().SetInt(o.Quantity)
	}

	return eris.Wrapf(f.Save(path), "output: save %s", path)
}

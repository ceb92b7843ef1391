package master

import (
	"context"
	"encoding/csv"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/calder-retail/replenish-cli/internal/model"
)

// Master-data defaults applied when a column is absent or empty.
const (
	DefaultMOQ     = 1
	DefaultPackage = "Single Unit"
)

// ImportProducts loads a products master CSV into the store. Expected
// columns: sku, supplier_id, moq, package, mxoq; extra columns (name,
// category, unit_price, leadtime) are ignored. Missing moq defaults to 1
// and missing package to "Single Unit".
func ImportProducts(ctx context.Context, st Store, path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, eris.Wrapf(err, "master: open %s", path)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return 0, eris.Wrapf(err, "master: read header of %s", path)
	}
	colIdx := make(map[string]int, len(header))
	for i, col := range header {
		colIdx[strings.ToLower(strings.TrimSpace(col))] = i
	}

	var products []model.Product
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return 0, eris.Wrapf(err, "master: read row of %s", path)
		}

		sku := col(record, colIdx, "sku")
		if sku == "" {
			continue
		}

		p := model.Product{
			SKU:        sku,
			SupplierID: col(record, colIdx, "supplier_id"),
			MOQ:        intCol(record, colIdx, "moq", DefaultMOQ),
			Package:    col(record, colIdx, "package"),
			MxOQ:       intCol(record, colIdx, "mxoq", 0),
		}
		if p.Package == "" {
			p.Package = DefaultPackage
		}
		products = append(products, p)
	}

	n, err := st.UpsertProducts(ctx, products)
	if err != nil {
		return 0, err
	}

	zap.L().Info("products imported", zap.String("path", path), zap.Int("count", n))
	return n, nil
}

// ImportMarkets loads a markets master CSV (column market_id) into the
// store.
func ImportMarkets(ctx context.Context, st Store, path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, eris.Wrapf(err, "master: open %s", path)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return 0, eris.Wrapf(err, "master: read header of %s", path)
	}
	colIdx := make(map[string]int, len(header))
	for i, c := range header {
		colIdx[strings.ToLower(strings.TrimSpace(c))] = i
	}

	var markets []string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return 0, eris.Wrapf(err, "master: read row of %s", path)
		}
		if id := col(record, colIdx, "market_id"); id != "" {
			markets = append(markets, id)
		}
	}

	n, err := st.UpsertMarkets(ctx, markets)
	if err != nil {
		return 0, err
	}

	zap.L().Info("markets imported", zap.String("path", path), zap.Int("count", n))
	return n, nil
}

func col(record []string, colIdx map[string]int, name string) string {
	idx, ok := colIdx[name]
	if !ok || idx >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[idx])
}

func intCol(record []string, colIdx map[string]int, name string, fallback int) int {
	raw := col(record, colIdx, name)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}

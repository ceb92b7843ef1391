// Package ingest reads raw per-market sales and per-location stock files
// for one run date from the data root, and validates raw file formats
// against the configured whitelist.
package ingest

import (
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/calder-retail/replenish-cli/internal/model"
)

const salesFilePrefix = "sales_market_"

// Reader loads raw inputs from the local data root, laid out as
// raw/sales/<run_date>/sales_market_<id>.csv and
// raw/stock/<run_date>/*.csv.
type Reader struct {
	Root string
	// Concurrency caps parallel per-market file reads. Zero means one
	// file at a time.
	Concurrency int
}

// SalesDir returns the raw sales partition for a run date.
func (r *Reader) SalesDir(runDate string) string {
	return filepath.Join(r.Root, "raw", "sales", runDate)
}

// StockDir returns the raw stock partition for a run date.
func (r *Reader) StockDir(runDate string) string {
	return filepath.Join(r.Root, "raw", "stock", runDate)
}

// ReadSales reads every per-market sales file for the run date and returns
// the merged records plus the list of markets that submitted. A missing
// partition directory is fatal (the run has no mandatory input); a missing
// individual market file is not; absence is detected against the expected
// market list by the quality guard. Records are merged deterministically:
// files are processed in name order and the merged slice is ordered by
// file, then row.
func (r *Reader) ReadSales(runDate string) ([]model.SaleRecord, []string, error) {
	dir := r.SalesDir(runDate)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, nil, eris.Wrapf(err, "ingest: read sales partition %s", dir)
	}

	var files []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, salesFilePrefix) || !strings.HasSuffix(name, ".csv") {
			continue
		}
		files = append(files, name)
	}
	sort.Strings(files)

	perFile := make([][]model.SaleRecord, len(files))
	var mu sync.Mutex
	received := make(map[string]struct{}, len(files))

	g := new(errgroup.Group)
	limit := r.Concurrency
	if limit < 1 {
		limit = 1
	}
	g.SetLimit(limit)

	for i, name := range files {
		g.Go(func() error {
			records, err := readSalesFile(filepath.Join(dir, name), runDate)
			if err != nil {
				return err
			}
			perFile[i] = records

			mu.Lock()
			received[marketFromFilename(name)] = struct{}{}
			for _, rec := range records {
				if rec.MarketID != "" {
					received[rec.MarketID] = struct{}{}
				}
			}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	var merged []model.SaleRecord
	for _, records := range perFile {
		merged = append(merged, records...)
	}

	markets := make([]string, 0, len(received))
	for m := range received {
		markets = append(markets, m)
	}
	sort.Strings(markets)

	zap.L().Info("raw sales ingested",
		zap.String("run_date", runDate),
		zap.Int("files", len(files)),
		zap.Int("records", len(merged)),
		zap.Int("markets", len(markets)),
	)
	return merged, markets, nil
}

func readSalesFile(path, runDate string) ([]model.SaleRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "ingest: open %s", path)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "ingest: read header of %s", path)
	}
	colIdx := mapColumns(header)

	fallbackMarket := marketFromFilename(filepath.Base(path))

	var records []model.SaleRecord
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrapf(err, "ingest: read row of %s", path)
		}

		qty, err := strconv.Atoi(strings.TrimSpace(getCol(record, colIdx, "quantity")))
		if err != nil {
			return nil, eris.Wrapf(err, "ingest: bad quantity in %s", path)
		}

		market := getCol(record, colIdx, "market_id")
		if market == "" {
			market = fallbackMarket
		}

		rec := model.SaleRecord{
			RunDate:  runDate,
			MarketID: market,
			SKU:      getCol(record, colIdx, "sku"),
			Quantity: qty,
		}
		if raw := getCol(record, colIdx, "observed_at"); raw != "" {
			if ts, err := time.Parse(time.RFC3339, raw); err == nil {
				rec.ObservedAt = ts
			}
		}
		records = append(records, rec)
	}
	return records, nil
}

// marketFromFilename extracts the market id from a per-market file name
// such as sales_market_MKT-001.csv.
func marketFromFilename(name string) string {
	name = strings.TrimSuffix(name, filepath.Ext(name))
	return strings.TrimPrefix(name, salesFilePrefix)
}

// mapColumns builds a case-insensitive column name to index map.
func mapColumns(header []string) map[string]int {
	m := make(map[string]int, len(header))
	for i, col := range header {
		m[strings.ToLower(strings.TrimSpace(col))] = i
	}
	return m
}

// getCol gets a column value by name, returning empty string if absent.
func getCol(record []string, colIdx map[string]int, name string) string {
	idx, ok := colIdx[name]
	if !ok || idx >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[idx])
}

package ingest

import (
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/calder-retail/replenish-cli/internal/model"
)

// ReadStock reads every stock file in the run date's raw stock partition.
// The partition may hold one file or several location-partitioned files;
// a missing partition is fatal since stock is a mandatory input.
func (r *Reader) ReadStock(runDate string) ([]model.StockRecord, error) {
	dir := r.StockDir(runDate)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, eris.Wrapf(err, "ingest: read stock partition %s", dir)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".csv") {
			continue
		}
		files = append(files, e.Name())
	}
	sort.Strings(files)

	var records []model.StockRecord
	for _, name := range files {
		recs, err := readStockFile(filepath.Join(dir, name), runDate)
		if err != nil {
			return nil, err
		}
		records = append(records, recs...)
	}

	zap.L().Info("raw stock ingested",
		zap.String("run_date", runDate),
		zap.Int("files", len(files)),
		zap.Int("records", len(records)),
	)
	return records, nil
}

func readStockFile(path, runDate string) ([]model.StockRecord, error) {
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

	var records []model.StockRecord
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrapf(err, "ingest: read row of %s", path)
		}

		available, err := atoiCol(record, colIdx, "quantity_available")
		if err != nil {
			return nil, eris.Wrapf(err, "ingest: bad quantity_available in %s", path)
		}
		reserved, err := atoiCol(record, colIdx, "quantity_reserved")
		if err != nil {
			return nil, eris.Wrapf(err, "ingest: bad quantity_reserved in %s", path)
		}
		safety, err := atoiCol(record, colIdx, "safety_quantity")
		if err != nil {
			return nil, eris.Wrapf(err, "ingest: bad safety_quantity in %s", path)
		}

		records = append(records, model.StockRecord{
			RunDate:   runDate,
			SKU:       getCol(record, colIdx, "sku"),
			Location:  getCol(record, colIdx, "location"),
			Available: available,
			Reserved:  reserved,
			Safety:    safety,
		})
	}
	return records, nil
}

func atoiCol(record []string, colIdx map[string]int, name string) (int, error) {
	raw := getCol(record, colIdx, name)
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}

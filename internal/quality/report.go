package quality

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// SaveReport writes the accumulated exceptions to a Hive-style partition
// under root: logs/exceptions/date=<batch_date>/exceptions.csv. Zero
// exceptions is a no-op, not an error. One writer per batch date is
// assumed; the partition is created as a whole via a temp-file rename.
func (g *Guard) SaveReport(root string) error {
	errs := g.Exceptions()
	if len(errs) == 0 {
		zap.L().Info("no data-quality exceptions to save",
			zap.String("batch_date", g.batchDate))
		return nil
	}

	partitionDir := filepath.Join(root, "logs", "exceptions", "date="+g.batchDate)
	if err := os.MkdirAll(partitionDir, 0o755); err != nil {
		return eris.Wrap(err, "quality: create partition dir")
	}

	tmp, err := os.CreateTemp(partitionDir, ".exceptions-*.csv")
	if err != nil {
		return eris.Wrap(err, "quality: create temp report")
	}
	tmpPath := tmp.Name()

	w := csv.NewWriter(tmp)
	if err := w.Write([]string{"timestamp", "batch_date", "rule_broken", "entity_id", "details", "severity"}); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return eris.Wrap(err, "quality: write report header")
	}
	for _, e := range errs {
		row := []string{
			e.Timestamp.Format(time.RFC3339Nano),
			e.BatchDate,
			string(e.Rule),
			e.EntityID,
			e.Details,
			string(e.Severity),
		}
		if err := w.Write(row); err != nil {
			tmp.Close()
			os.Remove(tmpPath)
			return eris.Wrap(err, "quality: write report row")
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return eris.Wrap(err, "quality: flush report")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return eris.Wrap(err, "quality: close temp report")
	}

	finalPath := filepath.Join(partitionDir, "exceptions.csv")
	if err := os.Rename(tmpPath, finalPath); err != nil {
		os.Remove(tmpPath)
		return eris.Wrap(err, "quality: publish report")
	}

	zap.L().Warn("exceptions report saved",
		zap.String("path", finalPath),
		zap.Int("exceptions", len(errs)),
	)
	return nil
}

// ReportPath returns where SaveReport would write the report for a batch
// date under root.
func ReportPath(root, batchDate string) string {
	return filepath.Join(root, "logs", "exceptions", fmt.Sprintf("date=%s", batchDate), "exceptions.csv")
}

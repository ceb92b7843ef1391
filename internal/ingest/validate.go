package ingest

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/calder-retail/replenish-cli/internal/model"
	"github.com/calder-retail/replenish-cli/internal/quality"
)

// ValidateFormats walks the run date's raw sales partition and logs an
// INVALID_FORMAT exception for every file whose extension is not in the
// whitelist. Violations never block the run; a missing partition is left
// for ingestion to report.
func (r *Reader) ValidateFormats(runDate string, allowed []string, guard *quality.Guard) {
	dir := r.SalesDir(runDate)
	entries, err := os.ReadDir(dir)
	if err != nil {
		zap.L().Warn("format validation skipped: raw sales partition unreadable",
			zap.String("dir", dir), zap.Error(err))
		return
	}

	whitelist := make(map[string]struct{}, len(allowed))
	for _, ext := range allowed {
		whitelist[strings.ToLower(ext)] = struct{}{}
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	for _, name := range names {
		ext := strings.ToLower(filepath.Ext(name))
		if _, ok := whitelist[ext]; ok {
			continue
		}
		guard.LogIssue(model.RuleInvalidFormat, name,
			fmt.Sprintf("Format %q not in whitelist", ext), model.SeverityMedium)
		zap.L().Warn("invalid raw file format",
			zap.String("file", name), zap.String("ext", ext))
	}
}

package main

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/calder-retail/replenish-cli/internal/quality"
)

var exceptionsCmd = &cobra.Command{
	Use:   "exceptions <run-date>",
	Short: "Print the data-quality exception report for a run date",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		batchDate := args[0]
		path := quality.ReportPath(cfg.DataRoot, batchDate)

		f, err := os.Open(path)
		if os.IsNotExist(err) {
			fmt.Fprintf(os.Stdout, "No exceptions recorded for %s\n", batchDate)
			return nil
		}
		if err != nil {
			return eris.Wrapf(err, "open exception report %s", path)
		}
		defer f.Close()

		rows, err := csv.NewReader(f).ReadAll()
		if err != nil {
			return eris.Wrapf(err, "read exception report %s", path)
		}
		if len(rows) < 2 {
			fmt.Fprintf(os.Stdout, "No exceptions recorded for %s\n", batchDate)
			return nil
		}

		formatExceptions(os.Stdout, rows)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(exceptionsCmd)
}

// formatExceptions renders the report rows (header included) as a table.
func formatExceptions(out io.Writer, rows [][]string) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "TIMESTAMP\tRULE\tENTITY\tSEVERITY\tDETAILS")

	for _, row := range rows[1:] {
		if len(row) < 6 {
			continue
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", row[0], row[2], row[3], row[5], row[4])
	}
	_ = w.Flush()

	_, _ = fmt.Fprintf(out, "\n%d exceptions\n", len(rows)-1)
}

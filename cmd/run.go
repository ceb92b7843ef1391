package main

import (
	"encoding/json"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/calder-retail/replenish-cli/internal/ingest"
	"github.com/calder-retail/replenish-cli/internal/model"
	"github.com/calder-retail/replenish-cli/internal/output"
	"github.com/calder-retail/replenish-cli/internal/pack"
	"github.com/calder-retail/replenish-cli/internal/pipeline"
)

var runDateFlag string

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Execute the replenishment pipeline for one run date",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("run"); err != nil {
			return err
		}

		runDate := runDateFlag
		if runDate == "" {
			runDate = time.Now().UTC().Format("2006-01-02")
		}
		if _, err := time.Parse("2006-01-02", runDate); err != nil {
			return eris.Wrapf(err, "invalid run date %q", runDate)
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		writer, err := output.New(cfg.DataRoot, cfg.Output.Format, cfg.Output.OrdersFormat)
		if err != nil {
			return err
		}

		resolver := &pack.Resolver{
			PalletSize:  cfg.Pack.PalletSize,
			DefaultSize: cfg.Pack.DefaultSize,
		}
		reader := &ingest.Reader{Root: cfg.DataRoot, Concurrency: cfg.Ingest.Concurrency}

		p := pipeline.New(st, reader, writer, resolver, cfg.Ingest.AllowedFormats, cfg.DataRoot)

		run, err := st.CreateRun(ctx, runDate)
		if err != nil {
			return eris.Wrap(err, "create run record")
		}
		zap.L().Info("run started", zap.String("run_id", run.ID), zap.String("run_date", runDate))

		summary, runErr := p.Run(ctx, runDate)
		if err := st.FinishRun(ctx, run.ID, summary.Status, summary); err != nil {
			zap.L().Error("record run outcome failed", zap.String("run_id", run.ID), zap.Error(err))
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(summary); err != nil {
			return eris.Wrap(err, "encode summary")
		}

		if runErr != nil {
			return eris.Wrapf(runErr, "run %s failed", runDate)
		}
		if summary.Status == model.RunStatusWarnings {
			zap.L().Warn("run completed with warnings",
				zap.String("run_date", runDate),
				zap.Int("exceptions", summary.TotalExceptions()),
			)
		}
		return nil
	},
}

func init() {
	runCmd.Flags().StringVar(&runDateFlag, "date", "", "run date YYYY-MM-DD (default today, UTC)")
	rootCmd.AddCommand(runCmd)
}

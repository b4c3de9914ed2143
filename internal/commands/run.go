package commands

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"etfkpis/internal/config"
	"etfkpis/internal/export"
)

func newRunCommand(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Build today's ETF KPI table and export it",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup(cmd, root)
			if err != nil {
				return err
			}

			a, err := newApp(cfg, log)
			if err != nil {
				return err
			}
			defer a.Close()

			cutoff, err := cfg.Cutoff()
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			a.log.WithFields(logrus.Fields{
				"env":      cfg.Env,
				"max_etfs": cfg.MaxCount(),
				"ipo_date": cutoff.Format(config.DateLayout),
				"cache":    cfg.CacheBackend,
				"parquet":  cfg.Parquet,
			}).Info("starting run")

			rows, err := a.pipeline.Run(ctx, cutoff, cfg.MaxCount())
			if err != nil {
				a.log.WithError(err).Error("run failed")
				return err
			}

			location := cfg.OutputLocation()
			exporter, err := a.exporter(ctx, location)
			if err != nil {
				return err
			}
			paths, err := exporter.Write(ctx, rows, export.Target{
				Location: location,
				Parquet:  cfg.Parquet,
				Date:     time.Now(),
				RunID:    a.runID,
			})
			if err != nil {
				return err
			}

			for _, p := range paths {
				fmt.Fprintln(cmd.OutOrStdout(), p)
			}
			return nil
		},
	}

	cmd.Flags().String("ipo-date", "", "minimum IPO date (YYYY-MM-DD), defaults to today")
	cmd.Flags().Int("max-etfs", 0, "maximum number of ETFs in prod runs")
	cmd.Flags().Bool("parquet", false, "write parquet instead of CSV")
	cmd.Flags().String("output", "", "output directory or s3://bucket[/prefix]")
	return cmd
}

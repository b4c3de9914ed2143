package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"etfkpis/internal/alphavantage"
)

func newUniverseCommand(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "universe",
		Short: "List the ETFs a run would enrich",
		Long:  "Loads and filters the Alpha Vantage listing without calling Yahoo Finance",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup(cmd, root)
			if err != nil {
				return err
			}
			cutoff, err := cfg.Cutoff()
			if err != nil {
				return err
			}

			listing := alphavantage.NewListingClient(
				cfg.AlphavantageAPIKey,
				cfg.AlphavantageBaseURL,
				alphavantage.WithLogger(log),
			)
			records, err := listing.LoadReferenceUniverse(cmd.Context(), cutoff, cfg.MaxCount())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%-10s %-12s %s\n", "Symbol", "IPO Date", "Name")
			fmt.Fprintln(out, strings.Repeat("-", 60))
			for _, r := range records {
				fmt.Fprintf(out, "%-10s %-12s %s\n", r.Symbol, r.IPODate.Format(alphavantage.DateLayout), r.Name)
			}
			fmt.Fprintf(out, "\nTotal: %d ETFs\n", len(records))
			return nil
		},
	}

	cmd.Flags().String("ipo-date", "", "minimum IPO date (YYYY-MM-DD), defaults to today")
	cmd.Flags().Int("max-etfs", 0, "maximum number of ETFs in prod runs")
	return cmd
}

package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/donaldgifford/surplus-ml/internal/store"
)

func summaryCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Report how much training data is available",
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, _, err := setup()
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
			defer cancel()

			st, err := store.Open(ctx, cfg.Database.Driver, cfg.Database.DSN())
			if err != nil {
				return fmt.Errorf("opening %s store: %w", cfg.Database.Driver, err)
			}
			defer st.Close() //nolint:errcheck // read-only command

			sum, err := st.DataSummary(ctx)
			if err != nil {
				return fmt.Errorf("loading data summary: %w", err)
			}

			if output == "json" {
				return printJSON(os.Stdout, sum)
			}
			return printSummary(os.Stdout, sum)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "table", "output format (table, json)")
	return cmd
}

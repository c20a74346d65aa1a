package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/donaldgifford/surplus-ml/internal/engine"
)

func trainCmd() *cobra.Command {
	var (
		opts   engine.TrainOptions
		output string
	)

	cmd := &cobra.Command{
		Use:   "train",
		Short: "Train the price and recommendation models",
		Long: "Loads training data, trains each model, saves artifacts to the models\n" +
			"directory and writes a training report. Exits non-zero when every\n" +
			"attempted model fails.",
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, log, err := setup()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer func() {
				if err := a.Close(); err != nil {
					log.Warn("closing store", "error", err)
				}
			}()

			res, err := a.engine.RunTraining(ctx, opts)
			if err != nil {
				return fmt.Errorf("training: %w", err)
			}

			if output == "json" {
				if err := printJSON(os.Stdout, res); err != nil {
					return err
				}
			} else if err := printRunResult(os.Stdout, res); err != nil {
				return err
			}

			if res.AllFailed() {
				return errors.New("no model was trained successfully")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&opts.SkipPrice, "skip-price", false, "do not train the price model")
	cmd.Flags().BoolVar(&opts.SkipRecommendation, "skip-recommendation", false, "do not train the recommendation model")
	cmd.Flags().StringVarP(&output, "output", "o", "table", "output format (table, json)")

	return cmd
}

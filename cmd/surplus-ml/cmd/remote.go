package cmd

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	apiclient "github.com/donaldgifford/surplus-ml/internal/api/client"
	"github.com/donaldgifford/surplus-ml/internal/engine"
	"github.com/donaldgifford/surplus-ml/internal/pricing"
)

func remoteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "remote",
		Short: "Talk to a running surplus-ml server",
		Long: "Query and manage a running server over its HTTP API. The server URL\n" +
			"comes from --server or SML_SERVER.",
	}

	cmd.PersistentFlags().String("server", "http://localhost:8080", "API server URL")
	cmd.PersistentFlags().StringP("output", "o", "table", "output format (table, json)")
	cobra.CheckErr(viper.BindPFlag("server", cmd.PersistentFlags().Lookup("server")))
	cobra.CheckErr(viper.BindPFlag("output", cmd.PersistentFlags().Lookup("output")))

	cmd.AddCommand(
		remoteModelsCmd(),
		remoteReloadCmd(),
		remotePredictCmd(),
		remoteSimilarCmd(),
		remoteTrainCmd(),
	)
	return cmd
}

func newClient() *apiclient.Client {
	return apiclient.New(viper.GetString("server"))
}

func jsonOutput() bool {
	return viper.GetString("output") == "json"
}

func remoteModelsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "Show model availability and training metadata",
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, err := newClient().ListModels(cmd.Context())
			if err != nil {
				return err
			}
			if jsonOutput() {
				return printJSON(os.Stdout, m)
			}
			return printModels(os.Stdout, m)
		},
	}
}

func remoteReloadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reload",
		Short: "Reload model artifacts on the server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			loaded, err := newClient().ReloadModels(cmd.Context())
			if err != nil {
				return err
			}
			if jsonOutput() {
				return printJSON(os.Stdout, loaded)
			}

			names := make([]string, 0, len(loaded))
			for name := range loaded {
				names = append(names, name)
			}
			sort.Strings(names)

			tw := newTabWriter(os.Stdout)
			tw.writef("MODEL\tLOADED\n")
			for _, name := range names {
				tw.writef("%s\t%t\n", name, loaded[name])
			}
			return tw.finish()
		},
	}
}

func remotePredictCmd() *cobra.Command {
	var req pricing.Request

	cmd := &cobra.Command{
		Use:   "predict",
		Short: "Request a price recommendation",
		Example: `  # Price a carton of milk expiring on the 15th
  surplus-ml remote predict --original-price 4.99 --expiry-date 2024-06-15 --category dairy`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rec, err := newClient().PredictPrice(cmd.Context(), &req)
			if err != nil {
				return err
			}
			if jsonOutput() {
				return printJSON(os.Stdout, rec)
			}
			return printRecommendation(os.Stdout, rec)
		},
	}

	cmd.Flags().Float64Var(&req.OriginalPrice, "original-price", 0, "price before discount")
	cmd.Flags().StringVar(&req.ExpiryDate, "expiry-date", "", "ISO expiry date (default 30 days out)")
	cmd.Flags().StringVar(&req.Category, "category", "", "listing category")
	cmd.Flags().Float64Var(&req.Quantity, "quantity", 0, "units offered (default 1)")
	cobra.CheckErr(cmd.MarkFlagRequired("original-price"))

	return cmd
}

func remoteSimilarCmd() *cobra.Command {
	var (
		userID int64
		limit  int
	)

	cmd := &cobra.Command{
		Use:   "similar <listing-id>",
		Short: "List active listings similar to a stored listing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var id int64
			if _, err := fmt.Sscan(args[0], &id); err != nil || id < 1 {
				return fmt.Errorf("invalid listing id %q", args[0])
			}

			resp, err := newClient().Similar(cmd.Context(), id, userID, limit)
			if err != nil {
				return err
			}
			if jsonOutput() {
				return printJSON(os.Stdout, resp)
			}
			return printSimilar(os.Stdout, resp)
		},
	}

	cmd.Flags().Int64Var(&userID, "user", 0, "viewer for personalization")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum results (default server top_k)")
	return cmd
}

func remoteTrainCmd() *cobra.Command {
	var opts engine.TrainOptions

	cmd := &cobra.Command{
		Use:   "train",
		Short: "Trigger a training run on the server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			res, err := newClient().Train(cmd.Context(), opts)
			if err != nil {
				return err
			}
			if jsonOutput() {
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
	return cmd
}

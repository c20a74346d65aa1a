package cmd

import (
	"fmt"
	"os"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humaecho"
	"github.com/labstack/echo/v4"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"
)

func openapiCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "openapi",
		Short: "Print the OpenAPI 3.1 document for the API",
		Long: "Prints the OpenAPI document the server publishes at /openapi.json\n" +
			"without connecting to a database or loading models.",
		RunE: func(_ *cobra.Command, _ []string) error {
			api := humaecho.New(echo.New(), huma.DefaultConfig(apiTitle, Version))
			registerRoutes(api, &app{}, rate.NewLimiter(rate.Inf, 1))

			switch format {
			case "json":
				return printJSON(os.Stdout, api.OpenAPI())
			case "yaml":
				data, err := api.OpenAPI().YAML()
				if err != nil {
					return fmt.Errorf("encoding openapi: %w", err)
				}
				_, err = os.Stdout.Write(data)
				return err
			default:
				return fmt.Errorf("unknown format %q (want json or yaml)", format)
			}
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "yaml", "output format (json, yaml)")
	return cmd
}

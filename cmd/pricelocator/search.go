package main

import (
	"encoding/json"

	"github.com/couchcryptid/price-locator/internal/config"
	"github.com/couchcryptid/price-locator/internal/domain"
	"github.com/couchcryptid/price-locator/internal/observability"
	"github.com/spf13/cobra"
)

type searchFlags struct {
	location  string
	commodity string
	volume    float64
	wPrice    float64
	wTime     float64
	wQuality  float64
}

func newSearchCmd() *cobra.Command {
	var f searchFlags
	cmd := &cobra.Command{
		Use:   "search",
		Short: "Run one price search and print the result as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logger := observability.NewLoggerTo(cmd.ErrOrStderr(), cfg)

			a, err := buildApp(cfg, logger, metrics())
			if err != nil {
				return err
			}
			defer a.Close() //nolint:errcheck // process is exiting

			req := domain.SearchRequest{BuyerLocation: f.location, CommodityID: f.commodity}
			if cmd.Flags().Changed("volume") {
				req.Volume = &f.volume
			}
			if cmd.Flags().Changed("w-price") || cmd.Flags().Changed("w-time") || cmd.Flags().Changed("w-quality") {
				req.Weights = &domain.Weights{Price: f.wPrice, Time: f.wTime, Quality: f.wQuality}
			}

			result, err := a.service.Search(cmd.Context(), req)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(result)
		},
	}

	def := domain.DefaultWeights()
	cmd.Flags().StringVarP(&f.location, "location", "l", "", "buyer CEP or \"lat, lon\"")
	cmd.Flags().StringVarP(&f.commodity, "commodity", "c", "", "commodity id (see products)")
	cmd.Flags().Float64Var(&f.volume, "volume", 1000, "volume in kg")
	cmd.Flags().Float64Var(&f.wPrice, "w-price", def.Price, "price weight")
	cmd.Flags().Float64Var(&f.wTime, "w-time", def.Time, "delivery time weight")
	cmd.Flags().Float64Var(&f.wQuality, "w-quality", def.Quality, "quality weight")
	_ = cmd.MarkFlagRequired("location")
	_ = cmd.MarkFlagRequired("commodity")
	return cmd
}

package main

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/couchcryptid/price-locator/internal/domain"
	"github.com/spf13/cobra"
)

func newProductsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "products",
		Short: "List supported commodity ids",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			for _, id := range domain.SupportedProducts() {
				if _, err := fmt.Fprintln(cmd.OutOrStdout(), id); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func newRegionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "regions",
		Short: "List supported origin regions with their centroids",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			regions := make([]domain.Region, 0)
			for _, r := range domain.Regions() {
				regions = append(regions, r)
			}
			slices.SortFunc(regions, func(a, b domain.Region) int { return cmp.Compare(a.Code, b.Code) })
			for _, r := range regions {
				if _, err := fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%.2f\t%.2f\n", r.Code, r.Name, r.Lat, r.Lon); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

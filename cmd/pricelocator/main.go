// Command pricelocator serves and queries the commodity price locator.
//
// Usage:
//
//	pricelocator serve
//	pricelocator search --location 01310-100 --commodity soja
//	pricelocator products
//	pricelocator regions
//
// All commands read their configuration from the environment.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "pricelocator",
		Short:         "Find the cheapest delivered source for a Brazilian commodity",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.AddCommand(
		newServeCmd(),
		newSearchCmd(),
		newProductsCmd(),
		newRegionsCmd(),
	)
	return root
}

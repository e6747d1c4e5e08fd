package commands

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/marshallshelly/pebble-catalog/cmd/pebble-catalog/tui"
	"github.com/marshallshelly/pebble-catalog/pkg/catalog"
)

var browseSize int

var browseCmd = &cobra.Command{
	Use:   "browse",
	Short: "Browse products interactively",
	Long: `Open an interactive product browser.

Keys:
  ←/→ or p/n   previous/next page
  /            filter by name
  d            delete the selected product
  r            reload
  q            quit`,
	Args: cobra.NoArgs,
	RunE: withCatalog(func(ctx context.Context, c *catalog.Catalog, _ []string) error {
		return tui.RunBrowser(ctx, c.Products, browseSize)
	}),
}

func init() {
	rootCmd.AddCommand(browseCmd)
	browseCmd.Flags().IntVar(&browseSize, "size", 20, "Products per page")
}

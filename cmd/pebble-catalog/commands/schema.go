package commands

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/marshallshelly/pebble-catalog/cmd/pebble-catalog/output"
	"github.com/marshallshelly/pebble-catalog/pkg/catalog"
)

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Create or drop the catalog tables",
}

var schemaInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the catalog tables if they do not exist",
	Long: `Create the provider, product and product_detail tables.

Relationship columns are plain key columns without foreign key or unique
constraints; broken references are reported when products are read.`,
	Args: cobra.NoArgs,
	RunE: withCatalog(func(ctx context.Context, c *catalog.Catalog, _ []string) error {
		if err := c.Bootstrap(ctx); err != nil {
			return err
		}
		output.Success("Catalog tables ready (%s)", c.DB.Dialect().Name())
		return nil
	}),
}

var schemaDropCmd = &cobra.Command{
	Use:   "drop",
	Short: "Drop the catalog tables and all their rows",
	Args:  cobra.NoArgs,
	RunE: withCatalog(func(ctx context.Context, c *catalog.Catalog, _ []string) error {
		if err := c.Drop(ctx); err != nil {
			return err
		}
		output.Warning("Catalog tables dropped")
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(schemaCmd)
	schemaCmd.AddCommand(schemaInitCmd, schemaDropCmd)
}

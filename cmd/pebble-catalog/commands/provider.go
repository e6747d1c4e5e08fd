package commands

import (
	"context"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/marshallshelly/pebble-catalog/cmd/pebble-catalog/output"
	"github.com/marshallshelly/pebble-catalog/pkg/catalog"
)

var providerCmd = &cobra.Command{
	Use:     "provider",
	Aliases: []string{"providers"},
	Short:   "Manage providers",
}

var providerAddCmd = &cobra.Command{
	Use:   "add NAME",
	Short: "Add a provider",
	Args:  cobra.ExactArgs(1),
	RunE: withCatalog(func(ctx context.Context, c *catalog.Catalog, args []string) error {
		p := catalog.Provider{Name: args[0]}
		if err := c.Providers.Save(ctx, &p); err != nil {
			return err
		}
		if jsonOutput {
			return output.JSON(p)
		}
		output.Success("Added provider %d: %s", p.ID, p.Name)
		return nil
	}),
}

var providerListCmd = &cobra.Command{
	Use:   "list",
	Short: "List providers",
	Args:  cobra.NoArgs,
	RunE: withCatalog(func(ctx context.Context, c *catalog.Catalog, _ []string) error {
		providers, err := c.Providers.FindAll(ctx)
		if err != nil {
			return err
		}
		if jsonOutput {
			return output.JSON(providers)
		}
		if len(providers) == 0 {
			output.Info("No providers")
			return nil
		}
		rows := make([][]string, len(providers))
		for i, p := range providers {
			rows[i] = []string{strconv.FormatInt(p.ID, 10), p.Name, p.CreatedAt.Format(timeLayout)}
		}
		output.Table([]string{"ID", "NAME", "CREATED AT"}, rows)
		return nil
	}),
}

var providerDeleteCmd = &cobra.Command{
	Use:   "delete ID",
	Short: "Delete a provider",
	Long: `Delete a provider by id.

Products that still reference the provider keep their provider_id; reading
them reports a dangling reference until they are reassigned.`,
	Args: cobra.ExactArgs(1),
	RunE: withCatalog(func(ctx context.Context, c *catalog.Catalog, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		n, err := c.Providers.DeleteByID(ctx, id)
		if err != nil {
			return err
		}
		if n == 0 {
			output.Warning("No provider with id %d", id)
			return nil
		}
		if refs, err := c.Products.CountByProviderID(ctx, id); err == nil && refs > 0 {
			output.Warning("%d product(s) still reference provider %d", refs, id)
		}
		output.Success("Deleted provider %d", id)
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(providerCmd)
	providerCmd.AddCommand(providerAddCmd, providerListCmd, providerDeleteCmd)
}

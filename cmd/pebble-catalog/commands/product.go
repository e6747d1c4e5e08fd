package commands

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/marshallshelly/pebble-catalog/cmd/pebble-catalog/output"
	"github.com/marshallshelly/pebble-catalog/pkg/catalog"
	"github.com/marshallshelly/pebble-catalog/pkg/query"
)

const timeLayout = "2006-01-02 15:04:05"

var (
	// product add flags
	productName     string
	productPrice    int
	productStock    int
	productProvider int64

	// product list flags
	nameContains string
	minPrice     int
	maxPrice     int
	pageIndex    int
	pageSize     int
	sortSpec     string
)

var productCmd = &cobra.Command{
	Use:     "product",
	Aliases: []string{"products"},
	Short:   "Manage products",
}

var productAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a product",
	Long: `Add a product.

Examples:
  pebble-catalog product add --name Scissors --price 5000 --stock 500 --provider 1`,
	Args: cobra.NoArgs,
	RunE: withCatalog(func(ctx context.Context, c *catalog.Catalog, _ []string) error {
		p := catalog.Product{Name: productName, Price: productPrice, Stock: productStock}
		if productProvider > 0 {
			p.Provider = &catalog.Provider{ID: productProvider}
		}
		if err := c.Products.Save(ctx, &p); err != nil {
			return err
		}
		if jsonOutput {
			return output.JSON(p)
		}
		output.Success("Added product %d: %s", p.ID, p.Name)
		return nil
	}),
}

var productGetCmd = &cobra.Command{
	Use:   "get ID",
	Short: "Show a product with its provider and detail",
	Args:  cobra.ExactArgs(1),
	RunE: withCatalog(func(ctx context.Context, c *catalog.Catalog, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		p, found, err := c.Products.FindByID(ctx, id)
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("no product with id %d", id)
		}
		if jsonOutput {
			return output.JSON(p)
		}
		printProducts([]catalog.Product{p})
		return nil
	}),
}

var productListCmd = &cobra.Command{
	Use:   "list",
	Short: "List products",
	Long: `List products, optionally filtered, sorted and paged.

Price bounds are inclusive. --sort takes comma-separated attribute:direction
pairs; attributes may cross the provider relationship.

Examples:
  pebble-catalog product list --name-contains iss
  pebble-catalog product list --min-price 1000 --sort price:asc,stock:desc
  pebble-catalog product list --sort provider.name --page 0 --size 20`,
	Args: cobra.NoArgs,
	RunE: withCatalog(func(ctx context.Context, c *catalog.Catalog, _ []string) error {
		d, err := listDescriptor(nameContains, minPrice, maxPrice, sortSpec)
		if err != nil {
			return err
		}

		if pageSize > 0 {
			page, err := c.Products.FindPage(ctx, d, query.PageOf(pageIndex, pageSize))
			if err != nil {
				return err
			}
			if jsonOutput {
				return output.JSON(page)
			}
			printProducts(page.Items)
			output.Muted("page %d of %d, %d product(s)", page.Index+1, page.TotalPages(), page.Total)
			return nil
		}

		products, err := c.Products.FindBy(ctx, d)
		if err != nil {
			return err
		}
		if jsonOutput {
			return output.JSON(products)
		}
		printProducts(products)
		return nil
	}),
}

var productRenameCmd = &cobra.Command{
	Use:   "rename ID NAME",
	Short: "Rename a product",
	Args:  cobra.ExactArgs(2),
	RunE: withCatalog(func(ctx context.Context, c *catalog.Catalog, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		// Load and save in one transaction so a concurrent rename cannot be lost.
		var renamed catalog.Product
		err = c.DB.Transaction(ctx, func(ctx context.Context) error {
			p, found, err := c.Products.FindByID(ctx, id)
			if err != nil {
				return err
			}
			if !found {
				return fmt.Errorf("no product with id %d", id)
			}
			p.Name = args[1]
			if err := c.Products.Save(ctx, &p); err != nil {
				return err
			}
			renamed = p
			return nil
		})
		if err != nil {
			return err
		}
		if jsonOutput {
			return output.JSON(renamed)
		}
		output.Success("Renamed product %d to %s", renamed.ID, renamed.Name)
		return nil
	}),
}

var productDeleteCmd = &cobra.Command{
	Use:   "delete ID",
	Short: "Delete a product",
	Args:  cobra.ExactArgs(1),
	RunE: withCatalog(func(ctx context.Context, c *catalog.Catalog, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		n, err := c.Products.DeleteByID(ctx, id)
		if err != nil {
			return err
		}
		if n == 0 {
			output.Warning("No product with id %d", id)
			return nil
		}
		output.Success("Deleted product %d", id)
		return nil
	}),
}

var productDescribeCmd = &cobra.Command{
	Use:   "describe ID TEXT",
	Short: "Set the description of a product",
	Args:  cobra.ExactArgs(2),
	RunE: withCatalog(func(ctx context.Context, c *catalog.Catalog, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		var detail catalog.ProductDetail
		err = c.DB.Transaction(ctx, func(ctx context.Context) error {
			p, found, err := c.Products.FindByID(ctx, id)
			if err != nil {
				return err
			}
			if !found {
				return fmt.Errorf("no product with id %d", id)
			}
			detail, err = c.Details.Describe(ctx, &p, args[1])
			return err
		})
		if err != nil {
			return err
		}
		if jsonOutput {
			return output.JSON(detail)
		}
		output.Success("Described product %d", id)
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(productCmd)
	productCmd.AddCommand(productAddCmd, productGetCmd, productListCmd, productRenameCmd, productDeleteCmd, productDescribeCmd)

	productAddCmd.Flags().StringVar(&productName, "name", "", "Product name (required)")
	productAddCmd.Flags().IntVar(&productPrice, "price", 0, "Price in minor units")
	productAddCmd.Flags().IntVar(&productStock, "stock", 0, "Units in stock")
	productAddCmd.Flags().Int64Var(&productProvider, "provider", 0, "Provider id")
	_ = productAddCmd.MarkFlagRequired("name")

	productListCmd.Flags().StringVar(&nameContains, "name-contains", "", "Only names containing this text")
	productListCmd.Flags().IntVar(&minPrice, "min-price", -1, "Lowest price, inclusive")
	productListCmd.Flags().IntVar(&maxPrice, "max-price", -1, "Highest price, inclusive")
	productListCmd.Flags().IntVar(&pageIndex, "page", 0, "Page index, from 0")
	productListCmd.Flags().IntVar(&pageSize, "size", 0, "Page size; 0 lists everything")
	productListCmd.Flags().StringVar(&sortSpec, "sort", "", "Sort order, e.g. price:asc,stock:desc")
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}

// listDescriptor builds the product list query from its flags. Negative
// price bounds are unset.
func listDescriptor(contains string, low, high int, sort string) (query.Descriptor, error) {
	var preds []query.Node
	if contains != "" {
		preds = append(preds, query.Contains("Name", contains))
	}
	if low >= 0 {
		preds = append(preds, query.Gte("Price", low))
	}
	if high >= 0 {
		preds = append(preds, query.Lte("Price", high))
	}
	orders, err := parseSort(sort)
	if err != nil {
		return query.Descriptor{}, err
	}
	d := query.Where(preds...)
	d.Sort = orders
	return d, nil
}

// parseSort parses "price:asc,provider.name:desc". The direction defaults
// to ascending.
func parseSort(spec string) ([]query.Order, error) {
	if strings.TrimSpace(spec) == "" {
		return nil, nil
	}
	var orders []query.Order
	for _, part := range strings.Split(spec, ",") {
		path, dir, _ := strings.Cut(strings.TrimSpace(part), ":")
		if path == "" {
			return nil, fmt.Errorf("invalid sort %q", spec)
		}
		o := query.Order{Path: path, Direction: query.Asc}
		switch strings.ToLower(dir) {
		case "", "asc":
		case "desc":
			o.Direction = query.Desc
		default:
			return nil, fmt.Errorf("invalid sort direction %q", dir)
		}
		orders = append(orders, o)
	}
	return orders, nil
}

func printProducts(products []catalog.Product) {
	if len(products) == 0 {
		output.Info("No products")
		return
	}
	rows := make([][]string, len(products))
	for i, p := range products {
		rows[i] = productRow(p)
	}
	output.Table([]string{"ID", "NAME", "PRICE", "STOCK", "PROVIDER", "DESCRIPTION", "UPDATED AT"}, rows)
}

func productRow(p catalog.Product) []string {
	provider := ""
	if p.Provider != nil {
		provider = p.Provider.Name
	}
	description := ""
	if p.ProductDetail != nil && p.ProductDetail.Description != nil {
		description = *p.ProductDetail.Description
	}
	return []string{
		strconv.FormatInt(p.ID, 10),
		p.Name,
		strconv.Itoa(p.Price),
		strconv.Itoa(p.Stock),
		output.OrNone(provider),
		output.OrNone(description),
		p.UpdatedAt.Format(timeLayout),
	}
}

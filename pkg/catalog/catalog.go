package catalog

import (
	"context"
	"reflect"

	"github.com/marshallshelly/pebble-catalog/pkg/builder"
	"github.com/marshallshelly/pebble-catalog/pkg/registry"
	"github.com/marshallshelly/pebble-catalog/pkg/repository"
	"github.com/marshallshelly/pebble-catalog/pkg/runtime"
)

// Catalog bundles the repositories of one database.
type Catalog struct {
	DB        *runtime.DB
	Registry  *registry.Registry
	Products  *ProductRepository
	Providers *ProviderRepository
	Details   *ProductDetailRepository
}

// New builds the catalog repositories over db with a registry of their
// own. opts apply to every repository.
func New(db *runtime.DB, opts ...repository.Option) (*Catalog, error) {
	reg := registry.NewRegistry()
	for _, m := range Models() {
		if err := reg.Register(m); err != nil {
			return nil, err
		}
	}
	opts = append([]repository.Option{repository.WithRegistry(reg)}, opts...)

	products, err := NewProductRepository(db, opts...)
	if err != nil {
		return nil, err
	}
	providers, err := NewProviderRepository(db, opts...)
	if err != nil {
		return nil, err
	}
	details, err := NewProductDetailRepository(db, opts...)
	if err != nil {
		return nil, err
	}
	return &Catalog{DB: db, Registry: reg, Products: products, Providers: providers, Details: details}, nil
}

// Bootstrap creates the catalog tables if they do not exist. Relationship
// columns carry no foreign key or unique constraints: broken references
// and duplicate owners are reported when relationships are resolved.
func (c *Catalog) Bootstrap(ctx context.Context) error {
	return c.DB.InTx(ctx, func(ctx context.Context, q runtime.Querier) error {
		for _, m := range Models() {
			table, err := c.Registry.Lookup(reflect.TypeOf(m))
			if err != nil {
				return err
			}
			if _, err := q.Exec(ctx, builder.CreateTable(table, q.Dialect())); err != nil {
				return err
			}
			c.DB.Logger().WithField("table", table.Name).Info("table ready")
		}
		return nil
	})
}

// Drop removes the catalog tables.
func (c *Catalog) Drop(ctx context.Context) error {
	return c.DB.InTx(ctx, func(ctx context.Context, q runtime.Querier) error {
		models := Models()
		for i := len(models) - 1; i >= 0; i-- {
			table, err := c.Registry.Lookup(reflect.TypeOf(models[i]))
			if err != nil {
				return err
			}
			if _, err := q.Exec(ctx, builder.DropTable(table, q.Dialect())); err != nil {
				return err
			}
		}
		return nil
	})
}

package catalog

import (
	"context"

	"github.com/marshallshelly/pebble-catalog/pkg/repository"
	"github.com/marshallshelly/pebble-catalog/pkg/runtime"
)

// ProviderRepository reads and writes providers.
type ProviderRepository struct {
	*repository.Repository[Provider]
}

func NewProviderRepository(db *runtime.DB, opts ...repository.Option) (*ProviderRepository, error) {
	repo, err := repository.New[Provider](db, opts...)
	if err != nil {
		return nil, err
	}
	for _, name := range []string{"findByNameOrderByIDAsc", "existsByName"} {
		if _, err := repo.Derive(name); err != nil {
			return nil, err
		}
	}
	return &ProviderRepository{Repository: repo}, nil
}

func (r *ProviderRepository) FindByName(ctx context.Context, name string) ([]Provider, error) {
	return r.Find(ctx, "findByNameOrderByIDAsc", name)
}

func (r *ProviderRepository) ExistsByName(ctx context.Context, name string) (bool, error) {
	return r.Exists(ctx, "existsByName", name)
}

// ProductDetailRepository reads and writes product details.
type ProductDetailRepository struct {
	*repository.Repository[ProductDetail]
}

func NewProductDetailRepository(db *runtime.DB, opts ...repository.Option) (*ProductDetailRepository, error) {
	repo, err := repository.New[ProductDetail](db, opts...)
	if err != nil {
		return nil, err
	}
	if _, err := repo.Derive("findByProductID"); err != nil {
		return nil, err
	}
	return &ProductDetailRepository{Repository: repo}, nil
}

// FindByProductID returns the detail owned by a product.
func (r *ProductDetailRepository) FindByProductID(ctx context.Context, productID int64) (ProductDetail, bool, error) {
	return r.FindOne(ctx, "findByProductID", productID)
}

// Describe sets the description of product, creating its detail row on
// first use. Run it inside runtime.DB.Transaction to make the read and the
// write atomic.
func (r *ProductDetailRepository) Describe(ctx context.Context, product *Product, description string) (ProductDetail, error) {
	detail, found, err := r.FindByProductID(ctx, product.ID)
	if err != nil {
		return detail, err
	}
	if !found {
		detail = ProductDetail{}
	}
	detail.Description = &description
	detail.Product = product
	if err := r.Save(ctx, &detail); err != nil {
		return detail, err
	}
	return detail, nil
}

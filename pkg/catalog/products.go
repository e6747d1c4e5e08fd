package catalog

import (
	"context"

	"github.com/marshallshelly/pebble-catalog/pkg/query"
	"github.com/marshallshelly/pebble-catalog/pkg/repository"
	"github.com/marshallshelly/pebble-catalog/pkg/runtime"
)

// productMethods are the derived queries ProductRepository exposes. They
// are parsed and checked against the Product schema when the repository is
// built, so a typo fails at startup rather than on first call.
var productMethods = []string{
	"findByID",
	"findByName",
	"findFirst5ByName",
	"findTop10ByName",
	"findByIDIsNot",
	"findByUpdatedAtIsNull",
	"findByUpdatedAtIsNotNull",
	"findByIDAndName",
	"findByIDOrName",
	"findByPriceIsGreaterThan",
	"findByPriceGreaterThanEqual",
	"findByPriceIsLessThan",
	"findByPriceLessThanEqual",
	"findByPriceBetween",
	"findByPriceBetweenInclusive",
	"findByNameContaining",
	"findByNameStartingWith",
	"findByNameEndingWith",
	"findByNameOrderByIDAsc",
	"findByNameOrderByIDDesc",
	"findByNameOrderByPriceAscStockDesc",
	"findByProviderName",
	"findByProviderIsNull",
	"findByProductDetailIsNull",
	"existsByID",
	"countByName",
	"countByProviderID",
	"removeByName",
}

// ProductRepository reads and writes products.
type ProductRepository struct {
	*repository.Repository[Product]
}

// NewProductRepository builds the repository and compiles its derived
// methods.
func NewProductRepository(db *runtime.DB, opts ...repository.Option) (*ProductRepository, error) {
	repo, err := repository.New[Product](db, opts...)
	if err != nil {
		return nil, err
	}
	for _, name := range productMethods {
		if _, err := repo.Derive(name); err != nil {
			return nil, err
		}
	}
	return &ProductRepository{Repository: repo}, nil
}

// FindByName returns the products with exactly this name.
func (r *ProductRepository) FindByName(ctx context.Context, name string) ([]Product, error) {
	return r.Find(ctx, "findByName", name)
}

// FindByNameSorted returns the products with this name in the given order.
func (r *ProductRepository) FindByNameSorted(ctx context.Context, name string, sort ...query.Order) ([]Product, error) {
	d, err := r.MustDerive("findByName").Bind(name)
	if err != nil {
		return nil, err
	}
	d.Sort = append(d.Sort, sort...)
	return r.FindBy(ctx, d)
}

// FindByNamePage returns one page of the products with this name.
func (r *ProductRepository) FindByNamePage(ctx context.Context, name string, page query.PageRequest) (repository.Page[Product], error) {
	return r.Page(ctx, "findByName", page, name)
}

func (r *ProductRepository) FindFirst5ByName(ctx context.Context, name string) ([]Product, error) {
	return r.Find(ctx, "findFirst5ByName", name)
}

func (r *ProductRepository) FindTop10ByName(ctx context.Context, name string) ([]Product, error) {
	return r.Find(ctx, "findTop10ByName", name)
}

func (r *ProductRepository) FindByIDIsNot(ctx context.Context, id int64) ([]Product, error) {
	return r.Find(ctx, "findByIDIsNot", id)
}

func (r *ProductRepository) FindByUpdatedAtIsNull(ctx context.Context) ([]Product, error) {
	return r.Find(ctx, "findByUpdatedAtIsNull")
}

func (r *ProductRepository) FindByUpdatedAtIsNotNull(ctx context.Context) ([]Product, error) {
	return r.Find(ctx, "findByUpdatedAtIsNotNull")
}

func (r *ProductRepository) FindByIDAndName(ctx context.Context, id int64, name string) (Product, bool, error) {
	return r.FindOne(ctx, "findByIDAndName", id, name)
}

func (r *ProductRepository) FindByIDOrName(ctx context.Context, id int64, name string) ([]Product, error) {
	return r.Find(ctx, "findByIDOrName", id, name)
}

// FindByPriceGreaterThan excludes price itself.
func (r *ProductRepository) FindByPriceGreaterThan(ctx context.Context, price int) ([]Product, error) {
	return r.Find(ctx, "findByPriceIsGreaterThan", price)
}

func (r *ProductRepository) FindByPriceGreaterThanEqual(ctx context.Context, price int) ([]Product, error) {
	return r.Find(ctx, "findByPriceGreaterThanEqual", price)
}

// FindByPriceLessThan excludes price itself.
func (r *ProductRepository) FindByPriceLessThan(ctx context.Context, price int) ([]Product, error) {
	return r.Find(ctx, "findByPriceIsLessThan", price)
}

func (r *ProductRepository) FindByPriceLessThanEqual(ctx context.Context, price int) ([]Product, error) {
	return r.Find(ctx, "findByPriceLessThanEqual", price)
}

// FindByPriceBetween excludes both bounds.
func (r *ProductRepository) FindByPriceBetween(ctx context.Context, low, high int) ([]Product, error) {
	return r.Find(ctx, "findByPriceBetween", low, high)
}

// FindByPriceBetweenInclusive includes both bounds.
func (r *ProductRepository) FindByPriceBetweenInclusive(ctx context.Context, low, high int) ([]Product, error) {
	return r.Find(ctx, "findByPriceBetweenInclusive", low, high)
}

// FindByNameContaining matches s literally; % and _ in s are not wildcards.
func (r *ProductRepository) FindByNameContaining(ctx context.Context, s string) ([]Product, error) {
	return r.Find(ctx, "findByNameContaining", s)
}

func (r *ProductRepository) FindByNameStartingWith(ctx context.Context, prefix string) ([]Product, error) {
	return r.Find(ctx, "findByNameStartingWith", prefix)
}

func (r *ProductRepository) FindByNameEndingWith(ctx context.Context, suffix string) ([]Product, error) {
	return r.Find(ctx, "findByNameEndingWith", suffix)
}

func (r *ProductRepository) FindByNameOrderByIDAsc(ctx context.Context, name string) ([]Product, error) {
	return r.Find(ctx, "findByNameOrderByIDAsc", name)
}

func (r *ProductRepository) FindByNameOrderByIDDesc(ctx context.Context, name string) ([]Product, error) {
	return r.Find(ctx, "findByNameOrderByIDDesc", name)
}

func (r *ProductRepository) FindByNameOrderByPriceAscStockDesc(ctx context.Context, name string) ([]Product, error) {
	return r.Find(ctx, "findByNameOrderByPriceAscStockDesc", name)
}

// FindByProviderName returns the products whose provider has this name.
func (r *ProductRepository) FindByProviderName(ctx context.Context, name string) ([]Product, error) {
	return r.Find(ctx, "findByProviderName", name)
}

// FindWithoutProvider returns the products with no provider set.
func (r *ProductRepository) FindWithoutProvider(ctx context.Context) ([]Product, error) {
	return r.Find(ctx, "findByProviderIsNull")
}

// FindWithoutDetail returns the products no detail points at.
func (r *ProductRepository) FindWithoutDetail(ctx context.Context) ([]Product, error) {
	return r.Find(ctx, "findByProductDetailIsNull")
}

func (r *ProductRepository) ExistsByID(ctx context.Context, id int64) (bool, error) {
	return r.Exists(ctx, "existsByID", id)
}

func (r *ProductRepository) CountByName(ctx context.Context, name string) (int64, error) {
	return r.Count(ctx, "countByName", name)
}

func (r *ProductRepository) CountByProviderID(ctx context.Context, providerID int64) (int64, error) {
	return r.Count(ctx, "countByProviderID", providerID)
}

// RemoveByName deletes every product with this name and returns how many
// were removed.
func (r *ProductRepository) RemoveByName(ctx context.Context, name string) (int64, error) {
	return r.Delete(ctx, "removeByName", name)
}

// FindSummariesByName returns the name, price and stock of the products
// with this name without loading whole entities.
func (r *ProductRepository) FindSummariesByName(ctx context.Context, name string) ([]ProductSummary, error) {
	return repository.Project[ProductSummary](ctx, r.Repository,
		[]string{"Name", "Price", "Stock"}, query.Where(query.Eq("Name", name)))
}

// Package catalog defines the product catalog entities and their
// repositories.
package catalog

import "time"

// Provider supplies products.
type Provider struct {
	ID        int64     `po:"id,primaryKey,autoIncrement" json:"id"`
	Name      string    `po:"name,varchar(255),notNull" json:"name"`
	CreatedAt time.Time `po:"created_at,createdAt" json:"createdAt"`
	UpdatedAt time.Time `po:"updated_at,updatedAt" json:"updatedAt"`
}

// Product is a sellable item. It owns the provider relationship through
// provider_id; its detail is found by reverse lookup on product_detail.
type Product struct {
	ID            int64          `po:"id,primaryKey,autoIncrement" json:"id"`
	Name          string         `po:"name,varchar(255),notNull" json:"name"`
	Price         int            `po:"price,notNull" json:"price"`
	Stock         int            `po:"stock,notNull" json:"stock"`
	ProviderID    *int64         `po:"provider_id" json:"providerId,omitempty"`
	Provider      *Provider      `po:"-,belongsTo" json:"provider,omitempty"`
	ProductDetail *ProductDetail `po:"-,hasOne,inverse(Product)" json:"productDetail,omitempty"`
	CreatedAt     time.Time      `po:"created_at,createdAt" json:"createdAt"`
	UpdatedAt     time.Time      `po:"updated_at,updatedAt" json:"updatedAt"`
}

// ProductDetail holds the long description of a product. At most one
// detail may point at a product.
type ProductDetail struct {
	ID          int64    `po:"id,primaryKey,autoIncrement" json:"id"`
	Description *string  `po:"description,text" json:"description,omitempty"`
	ProductID   *int64   `po:"product_id" json:"productId,omitempty"`
	Product     *Product `po:"-,ownsOne,foreignKey(product_id)" json:"product,omitempty"`
}

// ProductSummary is the name, price and stock of a product.
type ProductSummary struct {
	Name  string `json:"name"`
	Price int    `json:"price"`
	Stock int    `json:"stock"`
}

// Models returns the catalog entities in dependency order.
func Models() []any {
	return []any{Provider{}, Product{}, ProductDetail{}}
}

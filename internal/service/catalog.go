// Package service holds the storefront use cases. Services depend on the
// repository interfaces of package store and report failures as *apperr.Error.
package service

import (
	"context"
	"strings"

	"github.com/safar/storefront/internal/apperr"
	"github.com/safar/storefront/internal/models"
	"github.com/safar/storefront/internal/store"
)

const minProductPrice = 1

type Catalog struct {
	products   store.ProductRepository
	categories store.CategoryRepository
}

func NewCatalog(products store.ProductRepository, categories store.CategoryRepository) *Catalog {
	return &Catalog{products: products, categories: categories}
}

func (c *Catalog) List(ctx context.Context) ([]models.Product, error) {
	products, err := c.products.List(ctx)
	return products, apperr.FromStore(err, "product")
}

func (c *Catalog) Get(ctx context.Context, id string) (*models.Product, error) {
	p, err := c.products.GetByID(ctx, id)
	if err != nil {
		return nil, apperr.FromStore(err, "product")
	}
	if p == nil {
		return nil, apperr.NotFound("product not found")
	}
	return p, nil
}

func (c *Catalog) Featured(ctx context.Context) ([]models.Product, error) {
	products, err := c.products.ListFeatured(ctx)
	return products, apperr.FromStore(err, "product")
}

func (c *Catalog) ByCategory(ctx context.Context, category string) ([]models.Product, error) {
	if strings.TrimSpace(category) == "" {
		return nil, apperr.Validation("category is required")
	}
	products, err := c.products.ListByCategory(ctx, category)
	return products, apperr.FromStore(err, "product")
}

func (c *Catalog) Search(ctx context.Context, text string) ([]models.Product, error) {
	if strings.TrimSpace(text) == "" {
		return c.List(ctx)
	}
	products, err := c.products.Search(ctx, text)
	return products, apperr.FromStore(err, "product")
}

func (c *Catalog) Create(ctx context.Context, in models.ProductInput) (*models.Product, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Category = strings.TrimSpace(in.Category)
	if in.Name == "" {
		return nil, apperr.Validation("name is required")
	}
	if err := validatePrice(in.Price); err != nil {
		return nil, err
	}
	if err := validateStock(in.Stock); err != nil {
		return nil, err
	}

	p, err := c.products.Create(ctx, in)
	if err != nil {
		return nil, apperr.FromStore(err, "product")
	}
	return p, nil
}

func (c *Catalog) Update(ctx context.Context, id string, patch models.ProductPatch) (*models.Product, error) {
	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return nil, apperr.Validation("name must not be empty")
		}
		patch.Name = &name
	}
	if patch.Price != nil {
		if err := validatePrice(*patch.Price); err != nil {
			return nil, err
		}
	}
	if patch.Stock != nil {
		if err := validateStock(*patch.Stock); err != nil {
			return nil, err
		}
	}

	p, err := c.products.Update(ctx, id, patch)
	if err != nil {
		return nil, apperr.FromStore(err, "product")
	}
	if p == nil {
		return nil, apperr.NotFound("product not found")
	}
	return p, nil
}

func (c *Catalog) Delete(ctx context.Context, id string) error {
	removed, err := c.products.Delete(ctx, id)
	if err != nil {
		return apperr.FromStore(err, "product")
	}
	if !removed {
		return apperr.NotFound("product not found")
	}
	return nil
}

func (c *Catalog) Categories(ctx context.Context) ([]models.Category, error) {
	cats, err := c.categories.List(ctx)
	return cats, apperr.FromStore(err, "category")
}

func (c *Catalog) CreateCategory(ctx context.Context, name string) (*models.Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperr.Validation("name is required")
	}
	cat, err := c.categories.Create(ctx, name)
	if err != nil {
		return nil, apperr.FromStore(err, "category")
	}
	return cat, nil
}

func validatePrice(price int64) error {
	if price < minProductPrice {
		return apperr.Validation("price must be at least 1")
	}
	return nil
}

func validateStock(stock int) error {
	if stock < 0 {
		return apperr.Validation("stock must not be negative")
	}
	return nil
}

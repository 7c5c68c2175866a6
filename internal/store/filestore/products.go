package filestore

import (
	"context"
	"strings"

	"github.com/safar/storefront/internal/models"
)

type ProductRepository struct {
	s *Store
}

func (r *ProductRepository) List(ctx context.Context) ([]models.Product, error) {
	return r.s.products.view()
}

func (r *ProductRepository) GetByID(ctx context.Context, id string) (*models.Product, error) {
	products, err := r.s.products.view()
	if err != nil {
		return nil, err
	}
	for i := range products {
		if products[i].ID == id {
			return &products[i], nil
		}
	}
	return nil, nil
}

func (r *ProductRepository) ListByCategory(ctx context.Context, category string) ([]models.Product, error) {
	category = strings.TrimSpace(category)
	return r.filter(func(p models.Product) bool {
		return strings.EqualFold(p.Category, category) || (p.CategoryID != "" && p.CategoryID == category)
	})
}

func (r *ProductRepository) Search(ctx context.Context, text string) ([]models.Product, error) {
	needle := strings.ToLower(strings.TrimSpace(text))
	return r.filter(func(p models.Product) bool {
		return strings.Contains(strings.ToLower(p.Name), needle) ||
			strings.Contains(strings.ToLower(p.Description), needle) ||
			strings.Contains(strings.ToLower(p.Category), needle)
	})
}

func (r *ProductRepository) ListFeatured(ctx context.Context) ([]models.Product, error) {
	return r.filter(func(p models.Product) bool { return p.Famous })
}

func (r *ProductRepository) filter(keep func(models.Product) bool) ([]models.Product, error) {
	products, err := r.s.products.view()
	if err != nil {
		return nil, err
	}
	out := make([]models.Product, 0, len(products))
	for _, p := range products {
		if keep(p) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *ProductRepository) Create(ctx context.Context, in models.ProductInput) (*models.Product, error) {
	now := r.s.now()
	product := models.Product{
		ID:          r.s.ids.NewID(),
		Name:        in.Name,
		Price:       in.Price,
		Stock:       in.Stock,
		Category:    in.Category,
		Description: in.Description,
		Image:       in.Image,
		Famous:      in.Famous,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err := r.s.products.mutate(func(products []models.Product) ([]models.Product, error) {
		if product.Category != "" {
			cat, err := r.s.Categories().ensure(product.Category)
			if err != nil {
				return nil, err
			}
			product.Category = cat.Name
			product.CategoryID = cat.ID
		}
		return append(products, product), nil
	})
	if err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *ProductRepository) Update(ctx context.Context, id string, patch models.ProductPatch) (*models.Product, error) {
	var updated *models.Product
	err := r.s.products.mutate(func(products []models.Product) ([]models.Product, error) {
		for i := range products {
			if products[i].ID != id {
				continue
			}
			patch.Apply(&products[i])
			if patch.Category != nil {
				products[i].CategoryID = ""
				if products[i].Category != "" {
					cat, err := r.s.Categories().ensure(products[i].Category)
					if err != nil {
						return nil, err
					}
					products[i].Category = cat.Name
					products[i].CategoryID = cat.ID
				}
			}
			products[i].UpdatedAt = r.s.now()
			p := products[i]
			updated = &p
			return products, nil
		}
		return products, nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Delete removes the product and every cart line that references it.
func (r *ProductRepository) Delete(ctx context.Context, id string) (bool, error) {
	s := r.s
	s.products.mu.Lock()
	defer s.products.mu.Unlock()
	s.cart.mu.Lock()
	defer s.cart.mu.Unlock()

	products, err := s.products.load()
	if err != nil {
		return false, err
	}
	i := findProduct(products, id)
	if i < 0 {
		return false, nil
	}

	items, err := s.cart.load()
	if err != nil {
		return false, err
	}
	kept := make([]models.CartItem, 0, len(items))
	for _, it := range items {
		if it.ProductID != id {
			kept = append(kept, it)
		}
	}
	if len(kept) != len(items) {
		if err := s.cart.store(kept); err != nil {
			return false, err
		}
	}

	products = append(products[:i], products[i+1:]...)
	if err := s.products.store(products); err != nil {
		if len(kept) != len(items) {
			return false, restore(err, func() error { return s.cart.store(items) })
		}
		return false, err
	}
	return true, nil
}

type CategoryRepository struct {
	s *Store
}

func (r *CategoryRepository) List(ctx context.Context) ([]models.Category, error) {
	return r.s.categories.view()
}

func (r *CategoryRepository) Create(ctx context.Context, name string) (*models.Category, error) {
	return r.ensure(name)
}

// ensure returns the category with the given name (case-insensitive),
// creating it when missing.
func (r *CategoryRepository) ensure(name string) (*models.Category, error) {
	name = strings.TrimSpace(name)
	var found models.Category
	err := r.s.categories.mutate(func(cats []models.Category) ([]models.Category, error) {
		for _, c := range cats {
			if strings.EqualFold(c.Name, name) {
				found = c
				return cats, nil
			}
		}
		found = models.Category{ID: r.s.ids.NewID(), Name: name, CreatedAt: r.s.now()}
		return append(cats, found), nil
	})
	if err != nil {
		return nil, err
	}
	return &found, nil
}

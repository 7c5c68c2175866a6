package sqlstore

import (
	"context"
	"fmt"
	"strings"

	"github.com/safar/storefront/internal/database"
	"github.com/safar/storefront/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ProductRepository struct {
	s *Store
}

func productQuery(db *gorm.DB) *gorm.DB {
	return db.Table("products AS p").
		Select("p.*, c.name AS category_name").
		Joins("LEFT JOIN categories AS c ON c.id = p.category_id").
		Order("p.created_at, p.id")
}

func (r *ProductRepository) find(ctx context.Context, db *gorm.DB, query string, args ...any) ([]models.Product, error) {
	q := productQuery(db.WithContext(ctx))
	if query != "" {
		q = q.Where(query, args...)
	}

	var views []productView
	if err := q.Find(&views).Error; err != nil {
		return nil, fmt.Errorf("list products: %w", database.TranslateError(err))
	}

	products := make([]models.Product, 0, len(views))
	for _, v := range views {
		products = append(products, v.model())
	}
	return products, nil
}

func (r *ProductRepository) List(ctx context.Context) ([]models.Product, error) {
	return r.find(ctx, r.s.db, "")
}

func (r *ProductRepository) GetByID(ctx context.Context, id string) (*models.Product, error) {
	return r.get(ctx, r.s.db, id)
}

func (r *ProductRepository) get(ctx context.Context, db *gorm.DB, id string) (*models.Product, error) {
	products, err := r.find(ctx, db, "p.id = ?", id)
	if err != nil {
		return nil, err
	}
	if len(products) == 0 {
		return nil, nil
	}
	return &products[0], nil
}

func (r *ProductRepository) ListByCategory(ctx context.Context, category string) ([]models.Product, error) {
	category = strings.TrimSpace(category)
	return r.find(ctx, r.s.db, "LOWER(c.name) = LOWER(?) OR p.category_id = ?", category, category)
}

func (r *ProductRepository) Search(ctx context.Context, text string) ([]models.Product, error) {
	pattern := containsPattern(strings.TrimSpace(text))
	return r.find(ctx, r.s.db, "p.name ILIKE ? OR p.description ILIKE ? OR c.name ILIKE ?", pattern, pattern, pattern)
}

func (r *ProductRepository) ListFeatured(ctx context.Context) ([]models.Product, error) {
	return r.find(ctx, r.s.db, "p.famous = ?", true)
}

func (r *ProductRepository) Create(ctx context.Context, in models.ProductInput) (*models.Product, error) {
	now := r.s.now()
	row := productRow{
		ID:          r.s.ids.NewID(),
		Name:        in.Name,
		Price:       in.Price,
		Stock:       in.Stock,
		Description: in.Description,
		Image:       in.Image,
		Famous:      in.Famous,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	var created *models.Product
	err := database.WithTransaction(ctx, r.s.db, database.DefaultTxOptions(), func(tx *gorm.DB) error {
		if name := strings.TrimSpace(in.Category); name != "" {
			cat, err := r.s.Categories().ensure(ctx, tx, name)
			if err != nil {
				return err
			}
			row.CategoryID = &cat.ID
		}

		if err := tx.Create(&row).Error; err != nil {
			return fmt.Errorf("create product: %w", database.TranslateError(err))
		}

		p, err := r.get(ctx, tx, row.ID)
		if err != nil {
			return err
		}
		created = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (r *ProductRepository) Update(ctx context.Context, id string, patch models.ProductPatch) (*models.Product, error) {
	var updated *models.Product
	err := database.WithTransaction(ctx, r.s.db, database.DefaultTxOptions(), func(tx *gorm.DB) error {
		var rows []productRow
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", id).Limit(1).Find(&rows).Error
		if err != nil {
			return fmt.Errorf("lock product: %w", database.TranslateError(err))
		}
		if len(rows) == 0 {
			return nil
		}

		changes := map[string]any{"updated_at": r.s.now()}
		if patch.Name != nil {
			changes["name"] = *patch.Name
		}
		if patch.Price != nil {
			changes["price"] = *patch.Price
		}
		if patch.Stock != nil {
			changes["stock"] = *patch.Stock
		}
		if patch.Description != nil {
			changes["description"] = *patch.Description
		}
		if patch.Image != nil {
			changes["image"] = *patch.Image
		}
		if patch.Famous != nil {
			changes["famous"] = *patch.Famous
		}
		if patch.Category != nil {
			changes["category_id"] = nil
			if name := strings.TrimSpace(*patch.Category); name != "" {
				cat, err := r.s.Categories().ensure(ctx, tx, name)
				if err != nil {
					return err
				}
				changes["category_id"] = cat.ID
			}
		}

		if err := tx.Model(&productRow{}).Where("id = ?", id).Updates(changes).Error; err != nil {
			return fmt.Errorf("update product: %w", database.TranslateError(err))
		}

		p, err := r.get(ctx, tx, id)
		if err != nil {
			return err
		}
		updated = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (r *ProductRepository) Delete(ctx context.Context, id string) (bool, error) {
	res := r.s.db.WithContext(ctx).Where("id = ?", id).Delete(&productRow{})
	if res.Error != nil {
		return false, fmt.Errorf("delete product: %w", database.TranslateDeleteError(res.Error))
	}
	return res.RowsAffected > 0, nil
}

type CategoryRepository struct {
	s *Store
}

func (r *CategoryRepository) List(ctx context.Context) ([]models.Category, error) {
	var rows []categoryRow
	if err := r.s.db.WithContext(ctx).Order("name").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list categories: %w", database.TranslateError(err))
	}
	out := make([]models.Category, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.model())
	}
	return out, nil
}

func (r *CategoryRepository) Create(ctx context.Context, name string) (*models.Category, error) {
	return r.ensure(ctx, r.s.db, strings.TrimSpace(name))
}

// ensure finds a category by case-insensitive name, inserting it when
// missing. A concurrent insert of the same name is absorbed by ON CONFLICT.
func (r *CategoryRepository) ensure(ctx context.Context, db *gorm.DB, name string) (*models.Category, error) {
	db = db.WithContext(ctx)
	lookup := func() (*models.Category, error) {
		var rows []categoryRow
		if err := db.Where("LOWER(name) = LOWER(?)", name).Limit(1).Find(&rows).Error; err != nil {
			return nil, fmt.Errorf("find category: %w", database.TranslateError(err))
		}
		if len(rows) == 0 {
			return nil, nil
		}
		c := rows[0].model()
		return &c, nil
	}

	if c, err := lookup(); err != nil || c != nil {
		return c, err
	}

	row := categoryRow{ID: r.s.ids.NewID(), Name: name, CreatedAt: r.s.now()}
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error; err != nil {
		return nil, fmt.Errorf("create category: %w", database.TranslateError(err))
	}

	c, err := lookup()
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, fmt.Errorf("category %q vanished after insert: %w", name, database.ErrNotFound)
	}
	return c, nil
}

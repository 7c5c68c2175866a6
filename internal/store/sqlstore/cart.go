package sqlstore

import (
	"context"
	"fmt"

	"github.com/safar/storefront/internal/database"
	"github.com/safar/storefront/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type CartRepository struct {
	s *Store
}

func (r *CartRepository) Items(ctx context.Context, userID string) ([]models.CartItem, error) {
	var rows []cartItemRow
	err := r.s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("added_at, product_id").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list cart items: %w", database.TranslateError(err))
	}
	items := make([]models.CartItem, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.model())
	}
	return items, nil
}

func (r *CartRepository) AddQuantity(ctx context.Context, userID, productID string, delta, limit int) (*models.CartItem, error) {
	return r.apply(ctx, userID, productID, limit, func(current int) int { return current + delta })
}

func (r *CartRepository) SetQuantity(ctx context.Context, userID, productID string, quantity, limit int) (*models.CartItem, error) {
	return r.apply(ctx, userID, productID, limit, func(int) int { return quantity })
}

// apply is a locked read-modify-write of one cart entry. Two first inserts of
// the same entry collide at serializable isolation and the loser is retried.
func (r *CartRepository) apply(ctx context.Context, userID, productID string, limit int, next func(int) int) (*models.CartItem, error) {
	var result *models.CartItem
	err := database.WithRetry(ctx, r.s.db, serializable(), func(tx *gorm.DB) error {
		result = nil

		var rows []cartItemRow
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("user_id = ? AND product_id = ?", userID, productID).
			Limit(1).Find(&rows).Error
		if err != nil {
			return fmt.Errorf("lock cart item: %w", err)
		}

		current := 0
		if len(rows) > 0 {
			current = rows[0].Quantity
		}

		qty := next(current)
		if qty <= 0 {
			if len(rows) == 0 {
				return nil
			}
			err := tx.Where("user_id = ? AND product_id = ?", userID, productID).Delete(&cartItemRow{}).Error
			if err != nil {
				return fmt.Errorf("remove cart item: %w", err)
			}
			return nil
		}
		if qty > current && qty > limit {
			return database.ErrInsufficientStock
		}

		now := r.s.now()
		if len(rows) > 0 {
			row := rows[0]
			err := tx.Model(&cartItemRow{}).
				Where("user_id = ? AND product_id = ?", userID, productID).
				Updates(map[string]any{"quantity": qty, "updated_at": now}).Error
			if err != nil {
				return fmt.Errorf("update cart item: %w", err)
			}
			row.Quantity = qty
			row.UpdatedAt = now
			item := row.model()
			result = &item
			return nil
		}

		row := cartItemRow{UserID: userID, ProductID: productID, Quantity: qty, AddedAt: now, UpdatedAt: now}
		if err := tx.Create(&row).Error; err != nil {
			return fmt.Errorf("insert cart item: %w", err)
		}
		item := row.model()
		result = &item
		return nil
	})
	if err != nil {
		return nil, database.TranslateError(err)
	}
	return result, nil
}

func (r *CartRepository) Remove(ctx context.Context, userID, productID string) (bool, error) {
	res := r.s.db.WithContext(ctx).
		Where("user_id = ? AND product_id = ?", userID, productID).
		Delete(&cartItemRow{})
	if res.Error != nil {
		return false, fmt.Errorf("remove cart item: %w", database.TranslateError(res.Error))
	}
	return res.RowsAffected > 0, nil
}

func (r *CartRepository) Clear(ctx context.Context, userID string) (int, error) {
	res := r.s.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&cartItemRow{})
	if res.Error != nil {
		return 0, fmt.Errorf("clear cart: %w", database.TranslateError(res.Error))
	}
	return int(res.RowsAffected), nil
}

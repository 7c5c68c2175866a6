package filestore

import (
	"context"

	"github.com/safar/storefront/internal/database"
	"github.com/safar/storefront/internal/models"
)

type CartRepository struct {
	s *Store
}

func (r *CartRepository) Items(ctx context.Context, userID string) ([]models.CartItem, error) {
	all, err := r.s.cart.view()
	if err != nil {
		return nil, err
	}
	out := make([]models.CartItem, 0)
	for _, it := range all {
		if it.UserID == userID {
			out = append(out, it)
		}
	}
	return out, nil
}

func (r *CartRepository) AddQuantity(ctx context.Context, userID, productID string, delta, limit int) (*models.CartItem, error) {
	return r.apply(userID, productID, limit, func(current int) int { return current + delta })
}

func (r *CartRepository) SetQuantity(ctx context.Context, userID, productID string, quantity, limit int) (*models.CartItem, error) {
	return r.apply(userID, productID, limit, func(int) int { return quantity })
}

func (r *CartRepository) apply(userID, productID string, limit int, next func(current int) int) (*models.CartItem, error) {
	var result *models.CartItem
	err := r.s.cart.mutate(func(items []models.CartItem) ([]models.CartItem, error) {
		idx := -1
		current := 0
		for i := range items {
			if items[i].UserID == userID && items[i].ProductID == productID {
				idx = i
				current = items[i].Quantity
				break
			}
		}

		qty := next(current)
		if qty <= 0 {
			if idx >= 0 {
				items = append(items[:idx], items[idx+1:]...)
			}
			return items, nil
		}
		if qty > current && qty > limit {
			return nil, database.ErrInsufficientStock
		}

		now := r.s.now()
		if idx >= 0 {
			items[idx].Quantity = qty
			items[idx].UpdatedAt = now
			it := items[idx]
			result = &it
			return items, nil
		}

		it := models.CartItem{UserID: userID, ProductID: productID, Quantity: qty, AddedAt: now, UpdatedAt: now}
		result = &it
		return append(items, it), nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (r *CartRepository) Remove(ctx context.Context, userID, productID string) (bool, error) {
	removed := false
	err := r.s.cart.mutate(func(items []models.CartItem) ([]models.CartItem, error) {
		out := items[:0]
		for _, it := range items {
			if it.UserID == userID && it.ProductID == productID {
				removed = true
				continue
			}
			out = append(out, it)
		}
		return out, nil
	})
	return removed, err
}

func (r *CartRepository) Clear(ctx context.Context, userID string) (int, error) {
	removed := 0
	err := r.s.cart.mutate(func(items []models.CartItem) ([]models.CartItem, error) {
		var out []models.CartItem
		out, removed = withoutUser(items, userID)
		return out, nil
	})
	return removed, err
}

func withoutUser(items []models.CartItem, userID string) ([]models.CartItem, int) {
	out := make([]models.CartItem, 0, len(items))
	removed := 0
	for _, it := range items {
		if it.UserID == userID {
			removed++
			continue
		}
		out = append(out, it)
	}
	return out, removed
}

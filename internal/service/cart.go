package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/safar/storefront/internal/apperr"
	"github.com/safar/storefront/internal/database"
	"github.com/safar/storefront/internal/models"
	"github.com/safar/storefront/internal/store"
)

// Cart keeps one line per (user, product). Quantities never exceed the
// product's stock at the time they grow.
type Cart struct {
	items    store.CartRepository
	products store.ProductRepository
}

func NewCart(items store.CartRepository, products store.ProductRepository) *Cart {
	return &Cart{items: items, products: products}
}

// AddItem adds delta units of a product. A line whose quantity drops to zero
// or below is removed.
func (c *Cart) AddItem(ctx context.Context, userID, productID string, delta int) (*models.Cart, error) {
	if delta == 0 {
		return nil, apperr.Validation("quantity must not be zero")
	}
	p, err := c.product(ctx, productID)
	if err != nil {
		return nil, err
	}

	if _, err := c.items.AddQuantity(ctx, userID, productID, delta, p.Stock); err != nil {
		return nil, cartError(err, p)
	}
	return c.Get(ctx, userID)
}

// SetQuantity replaces the quantity of a line; zero removes it.
func (c *Cart) SetQuantity(ctx context.Context, userID, productID string, quantity int) (*models.Cart, error) {
	if quantity < 0 {
		return nil, apperr.Validation("quantity must not be negative")
	}
	if quantity == 0 {
		if _, err := c.items.Remove(ctx, userID, productID); err != nil {
			return nil, apperr.FromStore(err, "cart item")
		}
		return c.Get(ctx, userID)
	}

	p, err := c.product(ctx, productID)
	if err != nil {
		return nil, err
	}
	if _, err := c.items.SetQuantity(ctx, userID, productID, quantity, p.Stock); err != nil {
		return nil, cartError(err, p)
	}
	return c.Get(ctx, userID)
}

// RemoveItem is idempotent and reports whether a line was removed.
func (c *Cart) RemoveItem(ctx context.Context, userID, productID string) (bool, error) {
	removed, err := c.items.Remove(ctx, userID, productID)
	if err != nil {
		return false, apperr.FromStore(err, "cart item")
	}
	return removed, nil
}

func (c *Cart) Clear(ctx context.Context, userID string) (int, error) {
	n, err := c.items.Clear(ctx, userID)
	if err != nil {
		return 0, apperr.FromStore(err, "cart")
	}
	return n, nil
}

// Get joins the stored lines with live product data. Lines whose product no
// longer exists are left out of the view.
func (c *Cart) Get(ctx context.Context, userID string) (*models.Cart, error) {
	items, err := c.items.Items(ctx, userID)
	if err != nil {
		return nil, apperr.FromStore(err, "cart")
	}

	cart := &models.Cart{UserID: userID, Items: make([]models.CartLine, 0, len(items))}
	for _, it := range items {
		p, err := c.products.GetByID(ctx, it.ProductID)
		if err != nil {
			return nil, apperr.FromStore(err, "product")
		}
		if p == nil {
			continue
		}
		line := models.CartLine{
			ProductID: p.ID,
			Name:      p.Name,
			Price:     p.Price,
			Image:     p.Image,
			Stock:     p.Stock,
			Quantity:  it.Quantity,
			Subtotal:  p.Price * int64(it.Quantity),
		}
		cart.Items = append(cart.Items, line)
		cart.Total += line.Subtotal
	}
	return cart, nil
}

func (c *Cart) product(ctx context.Context, id string) (*models.Product, error) {
	p, err := c.products.GetByID(ctx, id)
	if err != nil {
		return nil, apperr.FromStore(err, "product")
	}
	if p == nil {
		return nil, apperr.NotFound("product not found")
	}
	return p, nil
}

func cartError(err error, p *models.Product) error {
	if errors.Is(err, database.ErrInsufficientStock) {
		return apperr.Wrap(apperr.CodeConflict, fmt.Sprintf("only %d units of %s available", p.Stock, p.Name), err)
	}
	return apperr.FromStore(err, "cart item")
}

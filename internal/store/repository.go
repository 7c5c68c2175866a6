// Package store defines the storage-neutral repository contracts shared by the
// JSON-file and relational backends, and selects one of them at startup.
//
// Lookups by id return (nil, nil) when the record does not exist. Updates
// return (nil, nil) for an unknown id. Deletes report whether a record was
// removed. Expected failures are reported with the datastore error set in
// package database (ErrNotFound, ErrDuplicate, ErrCheckFailed).
package store

import (
	"context"
	"time"

	"github.com/safar/storefront/internal/models"
)

type ProductRepository interface {
	List(ctx context.Context) ([]models.Product, error)
	GetByID(ctx context.Context, id string) (*models.Product, error)
	// ListByCategory matches a category name case-insensitively, or a category id.
	ListByCategory(ctx context.Context, category string) ([]models.Product, error)
	// Search is a case-insensitive substring match over name, description and category.
	Search(ctx context.Context, text string) ([]models.Product, error)
	ListFeatured(ctx context.Context) ([]models.Product, error)
	Create(ctx context.Context, in models.ProductInput) (*models.Product, error)
	Update(ctx context.Context, id string, patch models.ProductPatch) (*models.Product, error)
	Delete(ctx context.Context, id string) (bool, error)
}

type CategoryRepository interface {
	List(ctx context.Context) ([]models.Category, error)
	Create(ctx context.Context, name string) (*models.Category, error)
}

type ClientRepository interface {
	List(ctx context.Context) ([]models.Client, error)
	// GetByID never returns the password hash.
	GetByID(ctx context.Context, id string) (*models.Client, error)
	// GetByEmail is the only read path that includes the password hash.
	GetByEmail(ctx context.Context, email string) (*models.Client, error)
	Create(ctx context.Context, in models.ClientInput) (*models.Client, error)
	Update(ctx context.Context, id string, patch models.ClientPatch) (*models.Client, error)
	Delete(ctx context.Context, id string) (bool, error)
}

type CartRepository interface {
	Items(ctx context.Context, userID string) ([]models.CartItem, error)
	// AddQuantity adds delta to the (user, product) entry, creating it when
	// missing. A resulting quantity <= 0 removes the entry and returns nil.
	// Growing the quantity beyond limit fails with ErrInsufficientStock.
	AddQuantity(ctx context.Context, userID, productID string, delta, limit int) (*models.CartItem, error)
	// SetQuantity replaces the quantity with the same removal and limit rules
	// as AddQuantity.
	SetQuantity(ctx context.Context, userID, productID string, quantity, limit int) (*models.CartItem, error)
	Remove(ctx context.Context, userID, productID string) (bool, error)
	Clear(ctx context.Context, userID string) (int, error)
}

type OrderRepository interface {
	Create(ctx context.Context, order *models.Order) (*models.Order, error)
	GetByID(ctx context.Context, id string) (*models.Order, error)
	// ListByClient returns up to limit orders older than the cursor, newest first.
	ListByClient(ctx context.Context, clientID string, after *OrderCursor, limit int) ([]models.Order, error)
	ListPendingBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.Order, error)
	SetPaymentRef(ctx context.Context, id, ref, approvalLink string) error
	// MarkPaid moves a pending order to paid, decrements stock for every line
	// and clears the owner's cart as one unit. An already paid order is
	// returned unchanged.
	MarkPaid(ctx context.Context, id string, capture models.Capture) (*models.Order, error)
	// MarkFailed moves a pending order to failed. An already failed order is
	// returned unchanged.
	MarkFailed(ctx context.Context, id, reason string) (*models.Order, error)
}

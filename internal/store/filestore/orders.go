package filestore

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"time"

	"github.com/pkg/errors"
	"github.com/safar/storefront/internal/database"
	"github.com/safar/storefront/internal/models"
	"github.com/safar/storefront/internal/store"
)

type OrderRepository struct {
	s *Store
}

func (r *OrderRepository) Create(ctx context.Context, order *models.Order) (*models.Order, error) {
	if order.Total != models.SumItems(order.Items) {
		return nil, fmt.Errorf("order total %d does not match items: %w", order.Total, database.ErrCheckFailed)
	}

	created := *order
	created.Items = slices.Clone(order.Items)
	if created.ID == "" {
		created.ID = r.s.ids.NewID()
	}
	if created.Status == "" {
		created.Status = models.OrderStatusPending
	}
	now := r.s.now()
	created.CreatedAt = now
	created.UpdatedAt = now

	err := r.s.orders.mutate(func(orders []models.Order) ([]models.Order, error) {
		if findOrder(orders, created.ID) >= 0 {
			return nil, database.ErrDuplicate
		}
		return append(orders, created), nil
	})
	if err != nil {
		return nil, err
	}
	return &created, nil
}

func (r *OrderRepository) GetByID(ctx context.Context, id string) (*models.Order, error) {
	orders, err := r.s.orders.view()
	if err != nil {
		return nil, err
	}
	if i := findOrder(orders, id); i >= 0 {
		return &orders[i], nil
	}
	return nil, nil
}

func (r *OrderRepository) ListByClient(ctx context.Context, clientID string, after *store.OrderCursor, limit int) ([]models.Order, error) {
	orders, err := r.s.orders.view()
	if err != nil {
		return nil, err
	}

	out := make([]models.Order, 0)
	for _, o := range orders {
		if o.ClientID == clientID && after.Before(o) {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *OrderRepository) ListPendingBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.Order, error) {
	orders, err := r.s.orders.view()
	if err != nil {
		return nil, err
	}

	out := make([]models.Order, 0)
	for _, o := range orders {
		if o.Status == models.OrderStatusPending && o.CreatedAt.Before(cutoff) {
			out = append(out, o)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *OrderRepository) SetPaymentRef(ctx context.Context, id, ref, approvalLink string) error {
	return r.s.orders.mutate(func(orders []models.Order) ([]models.Order, error) {
		i := findOrder(orders, id)
		if i < 0 {
			return nil, database.ErrNotFound
		}
		orders[i].PaymentRef = ref
		orders[i].ApprovalLink = approvalLink
		orders[i].UpdatedAt = r.s.now()
		return orders, nil
	})
}

// MarkPaid holds the orders, products and cart locks for the whole capture.
// Documents are written products first, then cart, then orders; when a later
// write fails the earlier documents are put back.
func (r *OrderRepository) MarkPaid(ctx context.Context, id string, capture models.Capture) (*models.Order, error) {
	s := r.s
	s.orders.mu.Lock()
	defer s.orders.mu.Unlock()
	s.products.mu.Lock()
	defer s.products.mu.Unlock()
	s.cart.mu.Lock()
	defer s.cart.mu.Unlock()

	orders, err := s.orders.load()
	if err != nil {
		return nil, err
	}
	i := findOrder(orders, id)
	if i < 0 {
		return nil, database.ErrNotFound
	}
	order := &orders[i]
	switch order.Status {
	case models.OrderStatusPaid:
		paid := *order
		return &paid, nil
	case models.OrderStatusFailed:
		return nil, fmt.Errorf("order %s is failed: %w", id, database.ErrInvalidTransition)
	}

	products, err := s.products.load()
	if err != nil {
		return nil, err
	}
	items, err := s.cart.load()
	if err != nil {
		return nil, err
	}
	prevProducts := slices.Clone(products)
	prevItems := slices.Clone(items)

	now := s.now()
	for _, line := range order.Items {
		j := findProduct(products, line.ProductID)
		if j < 0 {
			return nil, fmt.Errorf("product %s: %w", line.ProductID, database.ErrNotFound)
		}
		if products[j].Stock < line.Quantity {
			return nil, fmt.Errorf("product %s: %w", line.ProductID, database.ErrInsufficientStock)
		}
		products[j].Stock -= line.Quantity
		products[j].UpdatedAt = now
	}
	items, _ = withoutUser(items, order.ClientID)

	capturedAt := capture.CapturedAt
	if capturedAt.IsZero() {
		capturedAt = now
	}
	order.Status = models.OrderStatusPaid
	order.CaptureID = capture.CaptureID
	order.PaidAmount = capture.PaidAmount
	order.CapturedAt = &capturedAt
	order.FailureReason = ""
	order.UpdatedAt = now

	if err := s.products.store(products); err != nil {
		return nil, err
	}
	if err := s.cart.store(items); err != nil {
		return nil, restore(err, func() error { return s.products.store(prevProducts) })
	}
	if err := s.orders.store(orders); err != nil {
		return nil, restore(err,
			func() error { return s.products.store(prevProducts) },
			func() error { return s.cart.store(prevItems) },
		)
	}

	paid := *order
	return &paid, nil
}

func (r *OrderRepository) MarkFailed(ctx context.Context, id, reason string) (*models.Order, error) {
	var result *models.Order
	err := r.s.orders.mutate(func(orders []models.Order) ([]models.Order, error) {
		i := findOrder(orders, id)
		if i < 0 {
			return nil, database.ErrNotFound
		}
		switch orders[i].Status {
		case models.OrderStatusFailed:
		case models.OrderStatusPaid:
			return nil, fmt.Errorf("order %s is paid: %w", id, database.ErrInvalidTransition)
		default:
			orders[i].Status = models.OrderStatusFailed
			orders[i].FailureReason = reason
			orders[i].UpdatedAt = r.s.now()
		}
		o := orders[i]
		result = &o
		return orders, nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// restore runs the undo steps after a failed multi-document write and
// reports the original failure, annotated when an undo step failed too.
func restore(cause error, undo ...func() error) error {
	for _, fn := range undo {
		if err := fn(); err != nil {
			return errors.Wrapf(cause, "write failed and restore failed (%v)", err)
		}
	}
	return errors.Wrap(cause, "write failed")
}

func findOrder(orders []models.Order, id string) int {
	for i := range orders {
		if orders[i].ID == id {
			return i
		}
	}
	return -1
}

func findProduct(products []models.Product, id string) int {
	for i := range products {
		if products[i].ID == id {
			return i
		}
	}
	return -1
}

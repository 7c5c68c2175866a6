package sqlstore

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/safar/storefront/internal/database"
	"github.com/safar/storefront/internal/models"
	"github.com/safar/storefront/internal/store"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type OrderRepository struct {
	s *Store
}

func (r *OrderRepository) Create(ctx context.Context, order *models.Order) (*models.Order, error) {
	if order.Total != models.SumItems(order.Items) {
		return nil, fmt.Errorf("order total %d does not match items: %w", order.Total, database.ErrCheckFailed)
	}

	created := *order
	if created.ID == "" {
		created.ID = r.s.ids.NewID()
	}
	if created.Status == "" {
		created.Status = models.OrderStatusPending
	}
	now := r.s.now()
	created.CreatedAt = now
	created.UpdatedAt = now

	row := newOrderRow(&created)
	items := make([]orderItemRow, 0, len(created.Items))
	for i, it := range created.Items {
		items = append(items, orderItemRow{
			OrderID:   created.ID,
			Position:  i + 1,
			ProductID: it.ProductID,
			Name:      it.Name,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
			Subtotal:  it.Subtotal,
		})
	}

	err := database.WithTransaction(ctx, r.s.db, database.DefaultTxOptions(), func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(&row).Error; err != nil {
			return fmt.Errorf("create order: %w", err)
		}
		if len(items) > 0 {
			if err := tx.Create(&items).Error; err != nil {
				return fmt.Errorf("create order items: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, database.TranslateError(err)
	}

	result := row.model(items)
	return &result, nil
}

// loadItems fetches the line items of the given orders keyed by order id.
func loadItems(ctx context.Context, db *gorm.DB, ids ...string) (map[string][]orderItemRow, error) {
	byOrder := make(map[string][]orderItemRow, len(ids))
	if len(ids) == 0 {
		return byOrder, nil
	}

	var rows []orderItemRow
	err := db.WithContext(ctx).
		Where("order_id IN ?", ids).
		Order("order_id, position").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("get order items: %w", err)
	}
	for _, row := range rows {
		byOrder[row.OrderID] = append(byOrder[row.OrderID], row)
	}
	return byOrder, nil
}

func withItems(ctx context.Context, db *gorm.DB, rows []orderRow) ([]models.Order, error) {
	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
	}
	items, err := loadItems(ctx, db, ids...)
	if err != nil {
		return nil, err
	}

	orders := make([]models.Order, 0, len(rows))
	for _, row := range rows {
		orders = append(orders, row.model(items[row.ID]))
	}
	return orders, nil
}

func (r *OrderRepository) GetByID(ctx context.Context, id string) (*models.Order, error) {
	var rows []orderRow
	if err := r.s.db.WithContext(ctx).Where("id = ?", id).Limit(1).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("get order: %w", database.TranslateError(err))
	}
	if len(rows) == 0 {
		return nil, nil
	}

	orders, err := withItems(ctx, r.s.db, rows)
	if err != nil {
		return nil, database.TranslateError(err)
	}
	return &orders[0], nil
}

func (r *OrderRepository) ListByClient(ctx context.Context, clientID string, after *store.OrderCursor, limit int) ([]models.Order, error) {
	q := r.s.db.WithContext(ctx).Where("client_id = ?", clientID)
	if after != nil {
		q = q.Where("(created_at, id) < (?, ?)", after.CreatedAt, after.ID)
	}
	q = q.Order("created_at DESC, id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}

	var rows []orderRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list orders: %w", database.TranslateError(err))
	}
	orders, err := withItems(ctx, r.s.db, rows)
	if err != nil {
		return nil, database.TranslateError(err)
	}
	return orders, nil
}

func (r *OrderRepository) ListPendingBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.Order, error) {
	q := r.s.db.WithContext(ctx).
		Where("status = ? AND created_at < ?", models.OrderStatusPending, cutoff).
		Order("created_at")
	if limit > 0 {
		q = q.Limit(limit)
	}

	var rows []orderRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list pending orders: %w", database.TranslateError(err))
	}
	orders, err := withItems(ctx, r.s.db, rows)
	if err != nil {
		return nil, database.TranslateError(err)
	}
	return orders, nil
}

func (r *OrderRepository) SetPaymentRef(ctx context.Context, id, ref, approvalLink string) error {
	res := r.s.db.WithContext(ctx).Model(&orderRow{}).Where("id = ?", id).Updates(map[string]any{
		"payment_ref":   ref,
		"approval_link": approvalLink,
		"updated_at":    r.s.now(),
	})
	if res.Error != nil {
		return fmt.Errorf("set payment ref: %w", database.TranslateError(res.Error))
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("order %s: %w", id, database.ErrNotFound)
	}
	return nil
}

func lockOrder(tx *gorm.DB, id string) (*orderRow, error) {
	var rows []orderRow
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", id).Limit(1).Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("lock order: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("order %s: %w", id, database.ErrNotFound)
	}
	return &rows[0], nil
}

// MarkPaid applies the capture in one serializable transaction: the status
// transition, a conditional stock decrement per line and the cart clear
// commit together or not at all.
func (r *OrderRepository) MarkPaid(ctx context.Context, id string, capture models.Capture) (*models.Order, error) {
	var result models.Order
	err := database.WithRetry(ctx, r.s.db, serializable(), func(tx *gorm.DB) error {
		row, err := lockOrder(tx, id)
		if err != nil {
			return err
		}
		items, err := loadItems(ctx, tx, id)
		if err != nil {
			return err
		}

		switch row.Status {
		case models.OrderStatusPaid:
			result = row.model(items[id])
			return nil
		case models.OrderStatusFailed:
			return fmt.Errorf("order %s is failed: %w", id, database.ErrInvalidTransition)
		}

		now := r.s.now()

		// Lock products in id order so concurrent captures cannot deadlock.
		lines := append([]orderItemRow(nil), items[id]...)
		sort.Slice(lines, func(i, j int) bool { return lines[i].ProductID < lines[j].ProductID })
		for _, line := range lines {
			res := tx.Exec(
				`UPDATE products
				 SET stock = stock - ?, updated_at = ?
				 WHERE id = ? AND stock >= ?`,
				line.Quantity, now, line.ProductID, line.Quantity)
			if res.Error != nil {
				return fmt.Errorf("decrement stock: %w", res.Error)
			}
			if res.RowsAffected == 0 {
				return r.stockFailure(tx, line.ProductID)
			}
		}

		if err := tx.Where("user_id = ?", row.ClientID).Delete(&cartItemRow{}).Error; err != nil {
			return fmt.Errorf("clear cart: %w", err)
		}

		capturedAt := capture.CapturedAt
		if capturedAt.IsZero() {
			capturedAt = now
		}
		err = tx.Model(&orderRow{}).Where("id = ?", id).Updates(map[string]any{
			"status":         models.OrderStatusPaid,
			"capture_id":     capture.CaptureID,
			"paid_amount":    capture.PaidAmount,
			"captured_at":    capturedAt,
			"failure_reason": "",
			"updated_at":     now,
		}).Error
		if err != nil {
			return fmt.Errorf("mark order paid: %w", err)
		}

		row.Status = models.OrderStatusPaid
		row.CaptureID = capture.CaptureID
		row.PaidAmount = capture.PaidAmount
		row.CapturedAt = &capturedAt
		row.FailureReason = ""
		row.UpdatedAt = now
		result = row.model(items[id])
		return nil
	})
	if err != nil {
		return nil, database.TranslateError(err)
	}
	return &result, nil
}

func (r *OrderRepository) stockFailure(tx *gorm.DB, productID string) error {
	var n int64
	if err := tx.Model(&productRow{}).Where("id = ?", productID).Count(&n).Error; err != nil {
		return fmt.Errorf("check product: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("product %s: %w", productID, database.ErrNotFound)
	}
	return fmt.Errorf("product %s: %w", productID, database.ErrInsufficientStock)
}

func (r *OrderRepository) MarkFailed(ctx context.Context, id, reason string) (*models.Order, error) {
	var result models.Order
	err := database.WithTransaction(ctx, r.s.db, database.DefaultTxOptions(), func(tx *gorm.DB) error {
		row, err := lockOrder(tx, id)
		if err != nil {
			return err
		}

		switch row.Status {
		case models.OrderStatusPaid:
			return fmt.Errorf("order %s is paid: %w", id, database.ErrInvalidTransition)
		case models.OrderStatusPending:
			now := r.s.now()
			err := tx.Model(&orderRow{}).Where("id = ?", id).Updates(map[string]any{
				"status":         models.OrderStatusFailed,
				"failure_reason": reason,
				"updated_at":     now,
			}).Error
			if err != nil {
				return fmt.Errorf("mark order failed: %w", err)
			}
			row.Status = models.OrderStatusFailed
			row.FailureReason = reason
			row.UpdatedAt = now
		}

		items, err := loadItems(ctx, tx, id)
		if err != nil {
			return err
		}
		result = row.model(items[id])
		return nil
	})
	if err != nil {
		return nil, database.TranslateError(err)
	}
	return &result, nil
}

package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/safar/storefront/internal/apperr"
	"github.com/safar/storefront/internal/database"
	"github.com/safar/storefront/internal/events"
	"github.com/safar/storefront/internal/models"
	"github.com/safar/storefront/internal/payment"
	"github.com/safar/storefront/internal/store"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	defaultOrderPageSize = 20
	maxOrderPageSize     = 100
	reconcileBatchSize   = 100
)

// Actor is the caller an order operation runs on behalf of.
type Actor struct {
	ID    string
	Admin bool
}

func (a Actor) owns(o *models.Order) bool {
	return a.Admin || o.ClientID == a.ID
}

type LineRequest struct {
	ProductID string
	Quantity  int
}

type CreateOrderInput struct {
	// Items defaults to the caller's stored cart when empty.
	Items    []LineRequest
	Delivery models.Delivery
	// ClientTotal is what the caller believes the order costs. It is only
	// compared against the computed total for logging.
	ClientTotal *int64
}

type CreatedOrder struct {
	OrderID      string          `json:"orderId"`
	ApprovalLink string          `json:"approvalLink"`
	Total        int64           `json:"total"`
	Amount       decimal.Decimal `json:"amount"`
	Currency     string          `json:"currency"`
}

type CaptureOutcome struct {
	OrderID    string             `json:"orderId"`
	Status     models.OrderStatus `json:"status"`
	CaptureID  string             `json:"captureId"`
	PaidAmount decimal.Decimal    `json:"paidAmount"`
}

type ReconcileReport struct {
	Checked int
	Paid    int
	Failed  int
	Pending int
}

type Checkout struct {
	orders    store.OrderRepository
	products  store.ProductRepository
	cart      store.CartRepository
	provider  payment.Provider
	publisher events.Publisher
	logger    *zap.Logger
	now       func() time.Time
}

type CheckoutOption func(*Checkout)

func WithClock(now func() time.Time) CheckoutOption {
	return func(c *Checkout) { c.now = now }
}

func NewCheckout(
	orders store.OrderRepository,
	products store.ProductRepository,
	cart store.CartRepository,
	provider payment.Provider,
	publisher events.Publisher,
	logger *zap.Logger,
	opts ...CheckoutOption,
) *Checkout {
	c := &Checkout{
		orders:    orders,
		products:  products,
		cart:      cart,
		provider:  provider,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CreateOrder prices the requested lines from the live catalog, stores a
// pending order and asks the payment provider for an approval link. Stock is
// only checked here; it is decremented at capture.
func (c *Checkout) CreateOrder(ctx context.Context, actor Actor, in CreateOrderInput) (*CreatedOrder, error) {
	if err := validateDelivery(in.Delivery); err != nil {
		return nil, err
	}

	lines := in.Items
	if len(lines) == 0 {
		stored, err := c.cart.Items(ctx, actor.ID)
		if err != nil {
			return nil, apperr.FromStore(err, "cart")
		}
		for _, it := range stored {
			lines = append(lines, LineRequest{ProductID: it.ProductID, Quantity: it.Quantity})
		}
	}
	lines, err := mergeLines(lines)
	if err != nil {
		return nil, err
	}

	items := make([]models.OrderItem, 0, len(lines))
	for _, l := range lines {
		p, err := c.products.GetByID(ctx, l.ProductID)
		if err != nil {
			return nil, apperr.FromStore(err, "product")
		}
		if p == nil {
			return nil, apperr.NotFound(fmt.Sprintf("product %s not found", l.ProductID))
		}
		if p.Stock < l.Quantity {
			return nil, apperr.Conflict(fmt.Sprintf("insufficient stock for %s: %d available", p.Name, p.Stock))
		}
		items = append(items, models.OrderItem{
			ProductID: p.ID,
			Name:      p.Name,
			Quantity:  l.Quantity,
			UnitPrice: p.Price,
			Subtotal:  p.Price * int64(l.Quantity),
		})
	}

	total := models.SumItems(items)
	if in.ClientTotal != nil && *in.ClientTotal != total {
		c.logger.Warn("client total differs from computed total",
			zap.String("client_id", actor.ID),
			zap.Int64("client_total", *in.ClientTotal),
			zap.Int64("total", total))
	}

	order, err := c.orders.Create(ctx, &models.Order{
		ClientID: actor.ID,
		Items:    items,
		Total:    total,
		Delivery: in.Delivery,
		Status:   models.OrderStatusPending,
	})
	if err != nil {
		return nil, apperr.FromStore(err, "order")
	}

	amount := payment.ToProviderCurrency(total)
	pay, err := c.provider.CreateOrder(ctx, payment.PaymentRequest{
		OrderID:     order.ID,
		Amount:      amount,
		Description: fmt.Sprintf("Order %s", order.ID),
	})
	if err != nil {
		c.fail(context.WithoutCancel(ctx), order.ID, "payment provider rejected the order")
		return nil, apperr.Wrap(apperr.CodeUpstream, "payment provider is unavailable", err)
	}
	if err := c.orders.SetPaymentRef(ctx, order.ID, pay.Ref, pay.ApprovalLink); err != nil {
		return nil, apperr.FromStore(err, "order")
	}

	c.logger.Info("order created",
		zap.String("order_id", order.ID),
		zap.String("client_id", actor.ID),
		zap.Int64("total", total),
		zap.String("payment_ref", pay.Ref))

	return &CreatedOrder{
		OrderID:      order.ID,
		ApprovalLink: pay.ApprovalLink,
		Total:        total,
		Amount:       amount,
		Currency:     payment.ProviderCurrency,
	}, nil
}

// CaptureOrder settles an approved payment. Capturing a paid order returns
// the stored result without contacting the provider.
func (c *Checkout) CaptureOrder(ctx context.Context, actor Actor, orderID string) (*CaptureOutcome, error) {
	order, err := c.ownedOrder(ctx, actor, orderID)
	if err != nil {
		return nil, err
	}

	switch order.Status {
	case models.OrderStatusPaid:
		return outcomeOf(order), nil
	case models.OrderStatusFailed:
		return nil, apperr.Conflict("order has already failed")
	}
	if order.PaymentRef == "" {
		return nil, apperr.Conflict("order has no payment to capture")
	}
	return c.capture(ctx, order)
}

func (c *Checkout) capture(ctx context.Context, order *models.Order) (*CaptureOutcome, error) {
	if err := c.checkStock(ctx, order); err != nil {
		if apperr.CodeOf(err) == apperr.CodeConflict {
			c.fail(context.WithoutCancel(ctx), order.ID, "insufficient stock at capture")
		}
		return nil, err
	}

	res, err := c.provider.Capture(ctx, order.PaymentRef)
	if err != nil {
		switch {
		case errors.Is(err, payment.ErrDeclined):
			c.fail(context.WithoutCancel(ctx), order.ID, "payment declined")
			return nil, apperr.Wrap(apperr.CodeUpstream, "payment was declined", err)
		case errors.Is(err, payment.ErrNotApproved):
			return nil, apperr.Wrap(apperr.CodeConflict, "payment has not been approved yet", err)
		}
		c.logger.Warn("payment capture failed, order left pending",
			zap.String("order_id", order.ID), zap.Error(err))
		return nil, apperr.Wrap(apperr.CodeUpstream, "payment provider is unavailable", err)
	}

	// Money has moved; the local update must not be abandoned with the request.
	return c.applyCapture(context.WithoutCancel(ctx), order, res)
}

func (c *Checkout) applyCapture(ctx context.Context, order *models.Order, res *payment.CaptureResult) (*CaptureOutcome, error) {
	paid, err := c.orders.MarkPaid(ctx, order.ID, models.Capture{
		CaptureID:  res.CaptureID,
		PaidAmount: res.Amount,
		CapturedAt: c.now(),
	})
	if err != nil {
		if errors.Is(err, database.ErrInsufficientStock) {
			c.logger.Error("payment captured but stock ran out, refund required",
				zap.String("order_id", order.ID),
				zap.String("capture_id", res.CaptureID),
				zap.String("amount", res.Amount.String()))
			c.fail(ctx, order.ID, "stock ran out after capture "+res.CaptureID)
		}
		return nil, apperr.FromStore(err, "order")
	}

	c.logger.Info("order paid",
		zap.String("order_id", paid.ID),
		zap.String("capture_id", paid.CaptureID),
		zap.String("amount", paid.PaidAmount.String()))

	if err := c.publisher.PublishOrderPaid(ctx, events.NewOrderPaid(paid)); err != nil {
		c.logger.Error("publish order paid", zap.String("order_id", paid.ID), zap.Error(err))
	}
	return outcomeOf(paid), nil
}

func (c *Checkout) checkStock(ctx context.Context, order *models.Order) error {
	for _, it := range order.Items {
		p, err := c.products.GetByID(ctx, it.ProductID)
		if err != nil {
			return apperr.FromStore(err, "product")
		}
		if p == nil {
			return apperr.Conflict(fmt.Sprintf("product %s is no longer available", it.Name))
		}
		if p.Stock < it.Quantity {
			return apperr.Conflict(fmt.Sprintf("insufficient stock for %s: %d available", p.Name, p.Stock))
		}
	}
	return nil
}

func (c *Checkout) GetOrder(ctx context.Context, actor Actor, id string) (*models.Order, error) {
	return c.ownedOrder(ctx, actor, id)
}

// RefreshOrder asks the provider about a pending order and applies the
// result before returning it.
func (c *Checkout) RefreshOrder(ctx context.Context, actor Actor, id string) (*models.Order, error) {
	order, err := c.ownedOrder(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if order.Status != models.OrderStatusPending || order.PaymentRef == "" {
		return order, nil
	}
	if err := c.resolve(ctx, order, false); err != nil {
		return nil, err
	}
	return c.ownedOrder(ctx, actor, id)
}

func (c *Checkout) ListOrders(ctx context.Context, actor Actor, cursor string, limit int) (*store.OrderPage, error) {
	if limit <= 0 {
		limit = defaultOrderPageSize
	}
	if limit > maxOrderPageSize {
		limit = maxOrderPageSize
	}
	after, err := store.DecodeCursor(cursor)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeValidation, "invalid cursor", err)
	}

	orders, err := c.orders.ListByClient(ctx, actor.ID, after, limit+1)
	if err != nil {
		return nil, apperr.FromStore(err, "order")
	}
	return store.BuildOrderPage(orders, limit), nil
}

// Reconcile resolves pending orders created before cutoff. Orders the buyer
// never approved are failed; completed payments are applied.
func (c *Checkout) Reconcile(ctx context.Context, cutoff time.Time) (ReconcileReport, error) {
	var report ReconcileReport

	orders, err := c.orders.ListPendingBefore(ctx, cutoff, reconcileBatchSize)
	if err != nil {
		return report, fmt.Errorf("list pending orders: %w", err)
	}

	for i := range orders {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		order := &orders[i]
		report.Checked++

		if err := c.resolve(ctx, order, true); err != nil {
			c.logger.Warn("reconcile order",
				zap.String("order_id", order.ID), zap.Error(err))
		}

		current, err := c.orders.GetByID(ctx, order.ID)
		if err != nil || current == nil {
			report.Pending++
			continue
		}
		switch current.Status {
		case models.OrderStatusPaid:
			report.Paid++
		case models.OrderStatusFailed:
			report.Failed++
		default:
			report.Pending++
		}
	}

	if report.Checked > 0 {
		c.logger.Info("reconciled pending orders",
			zap.Int("checked", report.Checked),
			zap.Int("paid", report.Paid),
			zap.Int("failed", report.Failed),
			zap.Int("pending", report.Pending))
	}
	return report, nil
}

// resolve applies the provider's view of a pending order. With expire set,
// orders whose payment never progressed are failed.
func (c *Checkout) resolve(ctx context.Context, order *models.Order, expire bool) error {
	if order.PaymentRef == "" {
		if expire {
			c.fail(ctx, order.ID, "no payment was started")
		}
		return nil
	}

	st, err := c.provider.Status(ctx, order.PaymentRef)
	if err != nil {
		return fmt.Errorf("payment status: %w", err)
	}

	switch st.Status {
	case payment.StatusCompleted:
		if st.Capture == nil {
			return errors.New("completed payment without capture details")
		}
		_, err := c.applyCapture(ctx, order, st.Capture)
		return err
	case payment.StatusApproved:
		_, err := c.capture(ctx, order)
		return err
	case payment.StatusVoided, payment.StatusDeclined:
		c.fail(ctx, order.ID, "payment "+strings.ToLower(st.Status))
		return nil
	}

	if expire {
		c.fail(ctx, order.ID, "payment approval expired")
	}
	return nil
}

func (c *Checkout) fail(ctx context.Context, orderID, reason string) {
	if _, err := c.orders.MarkFailed(ctx, orderID, reason); err != nil {
		c.logger.Error("mark order failed",
			zap.String("order_id", orderID),
			zap.String("reason", reason),
			zap.Error(err))
		return
	}
	c.logger.Info("order failed", zap.String("order_id", orderID), zap.String("reason", reason))
}

func (c *Checkout) ownedOrder(ctx context.Context, actor Actor, id string) (*models.Order, error) {
	order, err := c.orders.GetByID(ctx, id)
	if err != nil {
		return nil, apperr.FromStore(err, "order")
	}
	if order == nil {
		return nil, apperr.NotFound("order not found")
	}
	if !actor.owns(order) {
		return nil, apperr.Forbidden("order belongs to another client")
	}
	return order, nil
}

func outcomeOf(o *models.Order) *CaptureOutcome {
	return &CaptureOutcome{
		OrderID:    o.ID,
		Status:     o.Status,
		CaptureID:  o.CaptureID,
		PaidAmount: o.PaidAmount,
	}
}

// mergeLines folds repeated products into one line, keeping first-seen order.
func mergeLines(lines []LineRequest) ([]LineRequest, error) {
	if len(lines) == 0 {
		return nil, apperr.Validation("order has no items")
	}
	index := make(map[string]int, len(lines))
	out := make([]LineRequest, 0, len(lines))
	for _, l := range lines {
		if l.ProductID == "" {
			return nil, apperr.Validation("productId is required")
		}
		if l.Quantity <= 0 {
			return nil, apperr.Validation("quantity must be positive")
		}
		if i, ok := index[l.ProductID]; ok {
			out[i].Quantity += l.Quantity
			continue
		}
		index[l.ProductID] = len(out)
		out = append(out, l)
	}
	return out, nil
}

func validateDelivery(d models.Delivery) error {
	switch {
	case strings.TrimSpace(d.Address) == "":
		return apperr.Validation("delivery address is required")
	case strings.TrimSpace(d.Region) == "":
		return apperr.Validation("delivery region is required")
	case strings.TrimSpace(d.Commune) == "":
		return apperr.Validation("delivery commune is required")
	}
	return nil
}

// Package payment talks to the external payment provider that approves and
// captures checkout orders.
package payment

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

var (
	// ErrDeclined means the provider refused the payment. The order should
	// be marked failed.
	ErrDeclined = errors.New("payment declined")
	// ErrNotApproved means the buyer has not approved the payment yet.
	ErrNotApproved = errors.New("payment not approved")
)

// Provider order states.
const (
	StatusCreated   = "CREATED"
	StatusApproved  = "APPROVED"
	StatusCompleted = "COMPLETED"
	StatusVoided    = "VOIDED"
	StatusDeclined  = "DECLINED"
)

type PaymentRequest struct {
	OrderID     string
	Amount      decimal.Decimal
	Description string
}

type PaymentOrder struct {
	Ref          string
	ApprovalLink string
}

type CaptureResult struct {
	CaptureID string
	Status    string
	Amount    decimal.Decimal
}

type StatusResult struct {
	Status string
	// Capture is set once the provider reports the payment as completed.
	Capture *CaptureResult
}

type Provider interface {
	CreateOrder(ctx context.Context, req PaymentRequest) (*PaymentOrder, error)
	Capture(ctx context.Context, ref string) (*CaptureResult, error)
	Status(ctx context.Context, ref string) (*StatusResult, error)
}

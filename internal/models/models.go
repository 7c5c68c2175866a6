package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

type OrderStatus string

const (
	OrderStatusPending OrderStatus = "pending"
	OrderStatusPaid    OrderStatus = "paid"
	OrderStatusFailed  OrderStatus = "failed"
)

type Product struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Price       int64     `json:"price"`
	Stock       int       `json:"stock"`
	Category    string    `json:"category"`
	CategoryID  string    `json:"categoryId,omitempty"`
	Description string    `json:"description,omitempty"`
	Image       string    `json:"image,omitempty"`
	Famous      bool      `json:"famous"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// ProductInput carries the fields of a product being created. Values are
// expected to be validated by the caller.
type ProductInput struct {
	Name        string
	Price       int64
	Stock       int
	Category    string
	Description string
	Image       string
	Famous      bool
}

// ProductPatch holds a partial update; nil fields are left untouched.
type ProductPatch struct {
	Name        *string
	Price       *int64
	Stock       *int
	Category    *string
	Description *string
	Image       *string
	Famous      *bool
}

func (p ProductPatch) Apply(dst *Product) {
	if p.Name != nil {
		dst.Name = *p.Name
	}
	if p.Price != nil {
		dst.Price = *p.Price
	}
	if p.Stock != nil {
		dst.Stock = *p.Stock
	}
	if p.Category != nil {
		dst.Category = *p.Category
	}
	if p.Description != nil {
		dst.Description = *p.Description
	}
	if p.Image != nil {
		dst.Image = *p.Image
	}
	if p.Famous != nil {
		dst.Famous = *p.Famous
	}
}

type Category struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

type Client struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	Phone        string    `json:"phone,omitempty"`
	Address      string    `json:"address,omitempty"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Public returns a copy of the client without its credential hash.
func (c Client) Public() Client {
	c.PasswordHash = ""
	return c
}

type ClientInput struct {
	Name     string
	Email    string
	Phone    string
	Address  string
	Password string
	Role     Role
}

type ClientPatch struct {
	Name     *string
	Email    *string
	Phone    *string
	Address  *string
	Password *string
	Role     *Role
	Active   *bool
}

type CartItem struct {
	UserID    string    `json:"userId"`
	ProductID string    `json:"productId"`
	Quantity  int       `json:"quantity"`
	AddedAt   time.Time `json:"addedAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// CartLine is a cart item joined with the live product it references.
type CartLine struct {
	ProductID string `json:"productId"`
	Name      string `json:"name"`
	Price     int64  `json:"price"`
	Image     string `json:"image,omitempty"`
	Stock     int    `json:"stock"`
	Quantity  int    `json:"quantity"`
	Subtotal  int64  `json:"subtotal"`
}

type Cart struct {
	UserID string     `json:"userId"`
	Items  []CartLine `json:"items"`
	Total  int64      `json:"total"`
}

type Delivery struct {
	Address  string `json:"address"`
	Region   string `json:"region"`
	Commune  string `json:"commune"`
	Comments string `json:"comments,omitempty"`
}

type Order struct {
	ID            string          `json:"id"`
	ClientID      string          `json:"clientId"`
	Items         []OrderItem     `json:"items"`
	Total         int64           `json:"total"`
	Delivery      Delivery        `json:"delivery"`
	Status        OrderStatus     `json:"status"`
	PaymentRef    string          `json:"paymentRef,omitempty"`
	ApprovalLink  string          `json:"approvalLink,omitempty"`
	CaptureID     string          `json:"captureId,omitempty"`
	PaidAmount    decimal.Decimal `json:"paidAmount"`
	FailureReason string          `json:"failureReason,omitempty"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
	CapturedAt    *time.Time      `json:"capturedAt,omitempty"`
}

// OrderItem freezes the unit price at the time the order was created.
type OrderItem struct {
	ProductID string `json:"productId"`
	Name      string `json:"name"`
	Quantity  int    `json:"quantity"`
	UnitPrice int64  `json:"unitPrice"`
	Subtotal  int64  `json:"subtotal"`
}

// Capture describes a confirmed payment applied to an order.
type Capture struct {
	CaptureID  string
	PaidAmount decimal.Decimal
	CapturedAt time.Time
}

func SumItems(items []OrderItem) int64 {
	var total int64
	for _, it := range items {
		total += it.Subtotal
	}
	return total
}

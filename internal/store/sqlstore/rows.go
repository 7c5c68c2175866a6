package sqlstore

import (
	"time"

	"github.com/safar/storefront/internal/models"
	"github.com/shopspring/decimal"
)

type categoryRow struct {
	ID        string    `gorm:"column:id;primaryKey"`
	Name      string    `gorm:"column:name"`
	CreatedAt time.Time `gorm:"column:created_at"`
}

func (categoryRow) TableName() string { return "categories" }

func (r categoryRow) model() models.Category {
	return models.Category{ID: r.ID, Name: r.Name, CreatedAt: r.CreatedAt}
}

type productRow struct {
	ID          string    `gorm:"column:id;primaryKey"`
	Name        string    `gorm:"column:name"`
	Price       int64     `gorm:"column:price"`
	Stock       int       `gorm:"column:stock"`
	CategoryID  *string   `gorm:"column:category_id"`
	Description string    `gorm:"column:description"`
	Image       string    `gorm:"column:image"`
	Famous      bool      `gorm:"column:famous"`
	CreatedAt   time.Time `gorm:"column:created_at"`
	UpdatedAt   time.Time `gorm:"column:updated_at"`
}

func (productRow) TableName() string { return "products" }

// productView is a product joined with its category name.
type productView struct {
	productRow   `gorm:"embedded"`
	CategoryName *string `gorm:"column:category_name"`
}

func (v productView) model() models.Product {
	p := models.Product{
		ID:          v.ID,
		Name:        v.Name,
		Price:       v.Price,
		Stock:       v.Stock,
		Description: v.Description,
		Image:       v.Image,
		Famous:      v.Famous,
		CreatedAt:   v.CreatedAt,
		UpdatedAt:   v.UpdatedAt,
	}
	if v.CategoryID != nil {
		p.CategoryID = *v.CategoryID
	}
	if v.CategoryName != nil {
		p.Category = *v.CategoryName
	}
	return p
}

type clientRow struct {
	ID           string      `gorm:"column:id;primaryKey"`
	Name         string      `gorm:"column:name"`
	Email        string      `gorm:"column:email"`
	Phone        string      `gorm:"column:phone"`
	Address      string      `gorm:"column:address"`
	PasswordHash string      `gorm:"column:password_hash"`
	Role         models.Role `gorm:"column:role"`
	Active       bool        `gorm:"column:active"`
	CreatedAt    time.Time   `gorm:"column:created_at"`
	UpdatedAt    time.Time   `gorm:"column:updated_at"`
}

func (clientRow) TableName() string { return "clients" }

func (r clientRow) model() models.Client {
	return models.Client{
		ID:           r.ID,
		Name:         r.Name,
		Email:        r.Email,
		Phone:        r.Phone,
		Address:      r.Address,
		PasswordHash: r.PasswordHash,
		Role:         r.Role,
		Active:       r.Active,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

type cartItemRow struct {
	UserID    string    `gorm:"column:user_id;primaryKey"`
	ProductID string    `gorm:"column:product_id;primaryKey"`
	Quantity  int       `gorm:"column:quantity"`
	AddedAt   time.Time `gorm:"column:added_at"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

func (cartItemRow) TableName() string { return "cart_items" }

func (r cartItemRow) model() models.CartItem {
	return models.CartItem{
		UserID:    r.UserID,
		ProductID: r.ProductID,
		Quantity:  r.Quantity,
		AddedAt:   r.AddedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

type orderRow struct {
	ID               string             `gorm:"column:id;primaryKey"`
	ClientID         string             `gorm:"column:client_id"`
	Total            int64              `gorm:"column:total"`
	DeliveryAddress  string             `gorm:"column:delivery_address"`
	DeliveryRegion   string             `gorm:"column:delivery_region"`
	DeliveryCommune  string             `gorm:"column:delivery_commune"`
	DeliveryComments string             `gorm:"column:delivery_comments"`
	Status           models.OrderStatus `gorm:"column:status"`
	PaymentRef       string             `gorm:"column:payment_ref"`
	ApprovalLink     string             `gorm:"column:approval_link"`
	CaptureID        string             `gorm:"column:capture_id"`
	PaidAmount       decimal.Decimal    `gorm:"column:paid_amount;type:numeric(12,2)"`
	FailureReason    string             `gorm:"column:failure_reason"`
	CreatedAt        time.Time          `gorm:"column:created_at"`
	UpdatedAt        time.Time          `gorm:"column:updated_at"`
	CapturedAt       *time.Time         `gorm:"column:captured_at"`
}

func (orderRow) TableName() string { return "orders" }

type orderItemRow struct {
	OrderID   string `gorm:"column:order_id;primaryKey"`
	Position  int    `gorm:"column:position;primaryKey;autoIncrement:false"`
	ProductID string `gorm:"column:product_id"`
	Name      string `gorm:"column:name"`
	Quantity  int    `gorm:"column:quantity"`
	UnitPrice int64  `gorm:"column:unit_price"`
	Subtotal  int64  `gorm:"column:subtotal"`
}

func (orderItemRow) TableName() string { return "order_items" }

func newOrderRow(o *models.Order) orderRow {
	return orderRow{
		ID:               o.ID,
		ClientID:         o.ClientID,
		Total:            o.Total,
		DeliveryAddress:  o.Delivery.Address,
		DeliveryRegion:   o.Delivery.Region,
		DeliveryCommune:  o.Delivery.Commune,
		DeliveryComments: o.Delivery.Comments,
		Status:           o.Status,
		PaymentRef:       o.PaymentRef,
		ApprovalLink:     o.ApprovalLink,
		CaptureID:        o.CaptureID,
		PaidAmount:       o.PaidAmount,
		FailureReason:    o.FailureReason,
		CreatedAt:        o.CreatedAt,
		UpdatedAt:        o.UpdatedAt,
		CapturedAt:       o.CapturedAt,
	}
}

func (r orderRow) model(items []orderItemRow) models.Order {
	o := models.Order{
		ID:       r.ID,
		ClientID: r.ClientID,
		Items:    make([]models.OrderItem, 0, len(items)),
		Total:    r.Total,
		Delivery: models.Delivery{
			Address:  r.DeliveryAddress,
			Region:   r.DeliveryRegion,
			Commune:  r.DeliveryCommune,
			Comments: r.DeliveryComments,
		},
		Status:        r.Status,
		PaymentRef:    r.PaymentRef,
		ApprovalLink:  r.ApprovalLink,
		CaptureID:     r.CaptureID,
		PaidAmount:    r.PaidAmount,
		FailureReason: r.FailureReason,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
		CapturedAt:    r.CapturedAt,
	}
	for _, it := range items {
		o.Items = append(o.Items, models.OrderItem{
			ProductID: it.ProductID,
			Name:      it.Name,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
			Subtotal:  it.Subtotal,
		})
	}
	return o
}

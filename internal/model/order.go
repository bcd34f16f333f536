package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus is the lifecycle state of an order.
type OrderStatus string

const (
	OrderPending    OrderStatus = "pending"
	OrderProcessing OrderStatus = "processing"
	OrderCompleted  OrderStatus = "completed"
	OrderCancelled  OrderStatus = "cancelled"
	OrderPaid       OrderStatus = "paid"
	OrderShipped    OrderStatus = "shipped"
	OrderRefunded   OrderStatus = "refunded"
)

// PlacementStatuses are the statuses a customer may choose when placing or editing an order.
var PlacementStatuses = []OrderStatus{OrderPending, OrderProcessing, OrderCompleted, OrderCancelled}

// AdminStatuses are the statuses an administrator may set. Paid is reserved for payment reconciliation.
var AdminStatuses = []OrderStatus{OrderPending, OrderProcessing, OrderCompleted, OrderShipped, OrderCancelled, OrderRefunded}

// Valid reports whether s is one of allowed.
func (s OrderStatus) Valid(allowed []OrderStatus) bool {
	for _, a := range allowed {
		if s == a {
			return true
		}
	}
	return false
}

// Order is the aggregate root of a purchase. It exclusively owns its items.
type Order struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	UserID      uint            `gorm:"not null;index" json:"user_id"`
	OrderNumber string          `gorm:"size:64;uniqueIndex;not null" json:"order_number"`
	Subtotal    decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"subtotal"`
	Tax         decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"tax"`
	Discount    decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"discount"`
	Total       decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"total"`
	Currency    string          `gorm:"size:3;not null;default:USD" json:"currency"`
	Status      OrderStatus     `gorm:"size:32;not null;default:pending;index" json:"status"`

	User     *User       `gorm:"constraint:OnDelete:CASCADE" json:"user,omitempty"`
	Items    []OrderItem `gorm:"constraint:OnDelete:CASCADE" json:"items,omitempty"`
	Payment  *Payment    `gorm:"constraint:OnDelete:CASCADE" json:"payment,omitempty"`
	Shipping *Shipping   `gorm:"constraint:OnDelete:CASCADE" json:"shipping,omitempty"`
}

func (Order) TableName() string { return "orders" }

// OrderItem is a line of an order. Price is a snapshot taken at placement and never changes.
type OrderItem struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	OrderID   uint            `gorm:"not null;index" json:"order_id"`
	ProductID uint            `gorm:"not null;index" json:"product_id"`
	ColorID   uint            `gorm:"not null" json:"color_id"`
	SizeID    uint            `gorm:"not null" json:"size_id"`
	Quantity  int             `gorm:"not null;check:quantity > 0" json:"quantity"`
	Price     decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"price"`
	Total     decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"total"`

	Product *Product      `json:"product,omitempty"`
	Color   *ProductColor `gorm:"foreignKey:ColorID" json:"color,omitempty"`
	Size    *ProductSize  `gorm:"foreignKey:SizeID" json:"size,omitempty"`
}

func (OrderItem) TableName() string { return "order_items" }

package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentStatus mirrors the payments.status column.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
	PaymentRefunded  PaymentStatus = "refunded"
)

// Payment records a captured provider transaction.
// (payment_gateway, transaction_id) is unique and doubles as the reconciliation idempotency key.
type Payment struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	OrderID        uint            `gorm:"not null;index" json:"order_id"`
	PaymentGateway string          `gorm:"size:50;not null;default:paypal;uniqueIndex:idx_payments_gateway_txn" json:"payment_gateway"`
	TransactionID  string          `gorm:"size:128;not null;uniqueIndex:idx_payments_gateway_txn" json:"transaction_id"`
	Amount         decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"amount"`
	Currency       string          `gorm:"size:3" json:"currency"`
	Status         PaymentStatus   `gorm:"size:32;not null;default:pending" json:"status"`
}

func (Payment) TableName() string { return "payments" }

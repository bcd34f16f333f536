package model

import "time"

// Shipping holds the delivery address of an order. At most one per order.
type Shipping struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	OrderID    uint   `gorm:"not null;uniqueIndex" json:"order_id"`
	Name       string `gorm:"size:255;not null" json:"name"`
	Address    string `gorm:"size:255;not null" json:"address"`
	City       string `gorm:"size:100;not null" json:"city"`
	State      string `gorm:"size:100" json:"state"`
	PostalCode string `gorm:"size:20;not null" json:"postal_code"`
	Country    string `gorm:"size:100;not null" json:"country"`
	Phone      string `gorm:"size:20" json:"phone"`
}

func (Shipping) TableName() string { return "shippings" }

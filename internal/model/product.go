package model

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Product is a catalog entry. Inventory is only ever changed through the inventory ledger.
type Product struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	Name        string          `gorm:"size:255;not null" json:"name"`
	Description string          `gorm:"type:text" json:"description"`
	Price       decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"price"`
	SKU         string          `gorm:"column:sku;size:64;uniqueIndex;not null" json:"sku"`
	Inventory   int             `gorm:"not null;default:0;check:inventory >= 0" json:"inventory"`
	Status      string          `gorm:"size:32;not null;default:active" json:"status"`

	Colors []ProductColor `gorm:"constraint:OnDelete:CASCADE" json:"colors,omitempty"`
	Sizes  []ProductSize  `gorm:"constraint:OnDelete:CASCADE" json:"sizes,omitempty"`
}

func (Product) TableName() string { return "products" }

// ProductColor belongs to exactly one product.
type ProductColor struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	ProductID uint   `gorm:"not null;index" json:"product_id"`
	Name      string `gorm:"size:64;not null" json:"name"`
	HexCode   string `gorm:"size:16" json:"hex_code"`
}

func (ProductColor) TableName() string { return "product_colors" }

// ProductSize belongs to exactly one product.
type ProductSize struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	ProductID uint   `gorm:"not null;index" json:"product_id"`
	Name      string `gorm:"size:32;not null" json:"name"`
}

func (ProductSize) TableName() string { return "product_sizes" }

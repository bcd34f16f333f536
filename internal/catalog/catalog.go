// Package catalog exposes products to shoppers and lets administrators add them.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"store_api/internal/apperr"
	"store_api/internal/model"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type ColorInput struct {
	Name    string `json:"name" binding:"required,max=64"`
	HexCode string `json:"hex_code" binding:"omitempty,max=16"`
}

type ProductInput struct {
	Name        string          `json:"name" binding:"required,max=255"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	SKU         string          `json:"sku" binding:"required,max=64"`
	Inventory   int             `json:"inventory" binding:"min=0"`
	Colors      []ColorInput    `json:"colors" binding:"required,min=1,dive"`
	Sizes       []string        `json:"sizes" binding:"required,min=1,dive,required,max=32"`
}

type Service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) *Service { return &Service{db: db} }

func (s *Service) CreateProduct(ctx context.Context, in ProductInput) (*model.Product, error) {
	if in.Price.IsNegative() {
		return nil, apperr.Invalid("price", "must be at least 0")
	}
	if in.Inventory < 0 {
		return nil, apperr.Invalid("inventory", "must be at least 0")
	}
	p := model.Product{
		Name:        strings.TrimSpace(in.Name),
		Description: in.Description,
		Price:       in.Price.Round(2),
		SKU:         strings.TrimSpace(in.SKU),
		Inventory:   in.Inventory,
		Status:      "active",
	}
	for _, c := range in.Colors {
		p.Colors = append(p.Colors, model.ProductColor{Name: c.Name, HexCode: c.HexCode})
	}
	for _, sz := range in.Sizes {
		p.Sizes = append(p.Sizes, model.ProductSize{Name: sz})
	}
	if err := s.db.WithContext(ctx).Create(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apperr.Invalid("sku", "has already been taken")
		}
		return nil, fmt.Errorf("create product: %w", err)
	}
	return &p, nil
}

// ListProducts returns active products with their variants, by id.
func (s *Service) ListProducts(ctx context.Context) ([]model.Product, error) {
	var out []model.Product
	err := s.db.WithContext(ctx).
		Preload("Colors").Preload("Sizes").
		Where("status = ?", "active").
		Order("id").
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	return out, nil
}

func (s *Service) GetProduct(ctx context.Context, id uint) (*model.Product, error) {
	var p model.Product
	err := s.db.WithContext(ctx).Preload("Colors").Preload("Sizes").First(&p, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("product", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get product %d: %w", id, err)
	}
	return &p, nil
}

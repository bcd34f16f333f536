package orders

import (
	"context"
	"errors"
	"fmt"

	"store_api/internal/apperr"
	"store_api/internal/model"

	"gorm.io/gorm"
)

// ShippingInput is the delivery address of an order.
type ShippingInput struct {
	OrderID    uint   `json:"order_id" binding:"required"`
	Name       string `json:"name" binding:"required,max=255"`
	Address    string `json:"address" binding:"required,max=255"`
	City       string `json:"city" binding:"required,max=100"`
	State      string `json:"state" binding:"max=100"`
	PostalCode string `json:"postal_code" binding:"required,max=20"`
	Country    string `json:"country" binding:"required,max=100"`
	Phone      string `json:"phone" binding:"max=20"`
}

// ShippingPatch updates an existing address. Empty fields are left unchanged.
type ShippingPatch struct {
	Name       string `json:"name" binding:"max=255"`
	Address    string `json:"address" binding:"max=255"`
	City       string `json:"city" binding:"max=100"`
	State      string `json:"state" binding:"max=100"`
	PostalCode string `json:"postal_code" binding:"max=20"`
	Country    string `json:"country" binding:"max=100"`
	Phone      string `json:"phone" binding:"max=20"`
}

// CreateShipping attaches an address to one of the caller's orders. An order has at most one.
func (s *Service) CreateShipping(ctx context.Context, userID uint, in ShippingInput) (*model.Shipping, error) {
	if err := s.ownOrder(ctx, userID, in.OrderID); err != nil {
		return nil, err
	}
	var n int64
	if err := s.db.WithContext(ctx).Model(&model.Shipping{}).Where("order_id = ?", in.OrderID).Count(&n).Error; err != nil {
		return nil, fmt.Errorf("check shipping: %w", err)
	}
	if n > 0 {
		return nil, apperr.Conflictf("order %d already has a shipping address", in.OrderID)
	}

	sh := model.Shipping{
		OrderID:    in.OrderID,
		Name:       in.Name,
		Address:    in.Address,
		City:       in.City,
		State:      in.State,
		PostalCode: in.PostalCode,
		Country:    in.Country,
		Phone:      in.Phone,
	}
	if err := s.db.WithContext(ctx).Create(&sh).Error; err != nil {
		if errIsDuplicate(err) {
			return nil, apperr.Conflictf("order %d already has a shipping address", in.OrderID)
		}
		return nil, fmt.Errorf("insert shipping: %w", err)
	}
	return &sh, nil
}

// GetShipping returns the address of one of the caller's orders.
func (s *Service) GetShipping(ctx context.Context, userID, orderID uint) (*model.Shipping, error) {
	if err := s.ownOrder(ctx, userID, orderID); err != nil {
		return nil, err
	}
	var sh model.Shipping
	err := s.db.WithContext(ctx).Where("order_id = ?", orderID).First(&sh).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("shipping", nil)
	}
	if err != nil {
		return nil, fmt.Errorf("load shipping: %w", err)
	}
	return &sh, nil
}

// UpdateShipping patches the address of one of the caller's orders.
func (s *Service) UpdateShipping(ctx context.Context, userID, orderID uint, patch ShippingPatch) (*model.Shipping, error) {
	sh, err := s.GetShipping(ctx, userID, orderID)
	if err != nil {
		return nil, err
	}
	// Struct updates skip zero values, which is exactly the patch semantics.
	err = s.db.WithContext(ctx).Model(sh).Updates(model.Shipping{
		Name:       patch.Name,
		Address:    patch.Address,
		City:       patch.City,
		State:      patch.State,
		PostalCode: patch.PostalCode,
		Country:    patch.Country,
		Phone:      patch.Phone,
	}).Error
	if err != nil {
		return nil, fmt.Errorf("update shipping: %w", err)
	}
	return s.GetShipping(ctx, userID, orderID)
}

// DeleteShipping removes the address of one of the caller's orders.
func (s *Service) DeleteShipping(ctx context.Context, userID, orderID uint) error {
	if err := s.ownOrder(ctx, userID, orderID); err != nil {
		return err
	}
	res := s.db.WithContext(ctx).Where("order_id = ?", orderID).Delete(&model.Shipping{})
	if res.Error != nil {
		return fmt.Errorf("delete shipping: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("shipping", nil)
	}
	return nil
}

func (s *Service) ownOrder(ctx context.Context, userID, orderID uint) error {
	var n int64
	err := s.db.WithContext(ctx).Model(&model.Order{}).
		Where("id = ? AND user_id = ?", orderID, userID).Count(&n).Error
	if err != nil {
		return fmt.Errorf("check order %d: %w", orderID, err)
	}
	if n == 0 {
		return apperr.NotFound("order", orderID)
	}
	return nil
}

func errIsDuplicate(err error) bool { return errors.Is(err, gorm.ErrDuplicatedKey) }

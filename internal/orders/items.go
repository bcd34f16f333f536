package orders

import (
	"context"
	"errors"
	"fmt"

	"store_api/internal/apperr"
	"store_api/internal/model"
	"store_api/internal/pricing"

	"gorm.io/gorm"
)

// AddItemInput is a new line for an open order.
type AddItemInput struct {
	OrderID   uint `json:"order_id" binding:"required"`
	ProductID uint `json:"product_id" binding:"required"`
	ColorID   uint `json:"color_id" binding:"required"`
	SizeID    uint `json:"size_id" binding:"required"`
	Quantity  int  `json:"quantity" binding:"required,min=1"`
}

// ItemPatch changes a line. Nil fields are left unchanged; the price snapshot never moves.
type ItemPatch struct {
	Quantity *int  `json:"quantity" binding:"omitempty,min=1"`
	ColorID  *uint `json:"color_id"`
	SizeID   *uint `json:"size_id"`
}

// ListOrderItems returns the lines of one of the caller's orders.
func (s *Service) ListOrderItems(ctx context.Context, userID, orderID uint) ([]model.OrderItem, error) {
	if err := s.ownOrder(ctx, userID, orderID); err != nil {
		return nil, err
	}
	var items []model.OrderItem
	err := preloadItem(s.db.WithContext(ctx)).Where("order_id = ?", orderID).Order("id").Find(&items).Error
	if err != nil {
		return nil, fmt.Errorf("list order items: %w", err)
	}
	return items, nil
}

// GetOrderItem returns one line of the caller's orders. Foreign lines look missing.
func (s *Service) GetOrderItem(ctx context.Context, userID, itemID uint) (*model.OrderItem, error) {
	owned := s.db.Model(&model.Order{}).Select("id").Where("user_id = ?", userID)
	return s.loadItem(ctx, s.db.Where("order_id IN (?)", owned), itemID)
}

// AddOrderItem reserves stock for a new line and re-totals its order.
func (s *Service) AddOrderItem(ctx context.Context, userID uint, in AddItemInput) (*model.OrderItem, error) {
	if in.Quantity < 1 {
		return nil, apperr.Invalid("quantity", "must be at least 1")
	}
	var itemID uint
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		o, err := s.openOrder(ctx, tx, userID, in.OrderID)
		if err != nil {
			return err
		}
		products, err := s.ledger.Lock(ctx, tx, []uint{in.ProductID})
		if err != nil {
			return err
		}
		if err := validVariant(tx, in.ProductID, in.ColorID, in.SizeID); err != nil {
			return err
		}
		if err := s.ledger.Reserve(ctx, tx, in.ProductID, in.Quantity); err != nil {
			return err
		}

		price := products[in.ProductID].Price
		item := model.OrderItem{
			OrderID:   o.ID,
			ProductID: in.ProductID,
			ColorID:   in.ColorID,
			SizeID:    in.SizeID,
			Quantity:  in.Quantity,
			Price:     price,
			Total:     price,
		}
		if err := tx.Create(&item).Error; err != nil {
			return fmt.Errorf("insert order item: %w", err)
		}
		itemID = item.ID
		return s.retotal(ctx, tx, o)
	})
	if err != nil {
		return nil, err
	}
	s.log.InfoContext(ctx, "order item added", "order_id", in.OrderID, "item_id", itemID, "quantity", in.Quantity)
	return s.loadItem(ctx, s.db, itemID)
}

// UpdateOrderItem applies a patch. A larger quantity reserves the difference, a
// smaller one releases it.
func (s *Service) UpdateOrderItem(ctx context.Context, userID, itemID uint, patch ItemPatch) (*model.OrderItem, error) {
	if patch.Quantity != nil && *patch.Quantity < 1 {
		return nil, apperr.Invalid("quantity", "must be at least 1")
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		item, o, err := s.openItem(ctx, tx, userID, itemID)
		if err != nil {
			return err
		}

		colorID, sizeID := item.ColorID, item.SizeID
		if patch.ColorID != nil {
			colorID = *patch.ColorID
		}
		if patch.SizeID != nil {
			sizeID = *patch.SizeID
		}
		if colorID != item.ColorID || sizeID != item.SizeID {
			if err := validVariant(tx, item.ProductID, colorID, sizeID); err != nil {
				return err
			}
		}

		qty := item.Quantity
		if patch.Quantity != nil {
			qty = *patch.Quantity
		}
		switch delta := qty - item.Quantity; {
		case delta > 0:
			if err := s.ledger.Reserve(ctx, tx, item.ProductID, delta); err != nil {
				return err
			}
		case delta < 0:
			if err := s.ledger.Release(ctx, tx, item.ProductID, -delta); err != nil {
				return err
			}
		}

		err = tx.Model(&model.OrderItem{}).Where("id = ?", item.ID).Updates(map[string]any{
			"quantity": qty,
			"color_id": colorID,
			"size_id":  sizeID,
		}).Error
		if err != nil {
			return fmt.Errorf("update order item %d: %w", item.ID, err)
		}
		return s.retotal(ctx, tx, o)
	})
	if err != nil {
		return nil, err
	}
	return s.loadItem(ctx, s.db, itemID)
}

// RemoveOrderItem releases a line's stock and deletes it. The last line cannot
// go; the order is deleted instead.
func (s *Service) RemoveOrderItem(ctx context.Context, userID, itemID uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		item, o, err := s.openItem(ctx, tx, userID, itemID)
		if err != nil {
			return err
		}
		if len(o.Items) <= 1 {
			return apperr.Conflictf("item %d is the last line of order %s; delete the order instead", item.ID, o.OrderNumber)
		}
		if err := s.ledger.Release(ctx, tx, item.ProductID, item.Quantity); err != nil {
			return err
		}
		if err := tx.Delete(&model.OrderItem{}, item.ID).Error; err != nil {
			return fmt.Errorf("delete order item %d: %w", item.ID, err)
		}
		s.log.InfoContext(ctx, "order item removed", "order_id", o.ID, "item_id", item.ID, "released", item.Quantity)
		return s.retotal(ctx, tx, o)
	})
}

// openOrder locks one of the caller's orders whose lines may still change.
func (s *Service) openOrder(ctx context.Context, tx *gorm.DB, userID, orderID uint) (*model.Order, error) {
	o, err := lockOrder(ctx, tx.Where("user_id = ?", userID), orderID)
	if err != nil {
		return nil, err
	}
	if o.Status != model.OrderPending && o.Status != model.OrderProcessing {
		return nil, apperr.Conflictf("order %s is %s and its items can no longer change", o.OrderNumber, o.Status)
	}
	return o, nil
}

func (s *Service) openItem(ctx context.Context, tx *gorm.DB, userID, itemID uint) (*model.OrderItem, *model.Order, error) {
	var item model.OrderItem
	err := tx.WithContext(ctx).First(&item, itemID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, apperr.NotFound("order item", itemID)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("load order item %d: %w", itemID, err)
	}
	o, err := s.openOrder(ctx, tx, userID, item.OrderID)
	if apperr.IsNotFound(err) {
		return nil, nil, apperr.NotFound("order item", itemID)
	}
	if err != nil {
		return nil, nil, err
	}
	return &item, o, nil
}

// retotal reprices every line of o from its snapshot and rewrites the order totals,
// keeping the stored tax and discount.
func (s *Service) retotal(ctx context.Context, tx *gorm.DB, o *model.Order) error {
	var items []model.OrderItem
	if err := tx.WithContext(ctx).Where("order_id = ?", o.ID).Order("id").Find(&items).Error; err != nil {
		return fmt.Errorf("load order %d items: %w", o.ID, err)
	}
	lines := make([]pricing.Line, len(items))
	for i, it := range items {
		lines[i] = pricing.Line{UnitPrice: it.Price, Quantity: it.Quantity}
	}
	totals, err := s.calc.Calculate(lines, &o.Tax, &o.Discount)
	if err != nil {
		return err
	}

	for i, it := range items {
		if it.Total.Equal(totals.LineTotals[i]) {
			continue
		}
		if err := tx.Model(&model.OrderItem{}).Where("id = ?", it.ID).Update("total", totals.LineTotals[i]).Error; err != nil {
			return fmt.Errorf("update order item %d total: %w", it.ID, err)
		}
	}
	err = tx.Model(&model.Order{}).Where("id = ?", o.ID).Updates(map[string]any{
		"subtotal": totals.Subtotal,
		"total":    totals.Total,
	}).Error
	if err != nil {
		return fmt.Errorf("retotal order %d: %w", o.ID, err)
	}
	return nil
}

func validVariant(tx *gorm.DB, productID, colorID, sizeID uint) error {
	fields := map[string]string{}
	if err := checkVariant(tx, productID, colorID, sizeID, "", fields); err != nil {
		return err
	}
	if len(fields) > 0 {
		return &apperr.ValidationError{Message: "Validation Error.", Fields: fields}
	}
	return nil
}

func preloadItem(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Product", func(db *gorm.DB) *gorm.DB { return db.Unscoped() }).
		Preload("Color").
		Preload("Size")
}

func (s *Service) loadItem(ctx context.Context, scope *gorm.DB, itemID uint) (*model.OrderItem, error) {
	var item model.OrderItem
	err := preloadItem(scope.WithContext(ctx)).First(&item, itemID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("order item", itemID)
	}
	if err != nil {
		return nil, fmt.Errorf("load order item %d: %w", itemID, err)
	}
	return &item, nil
}

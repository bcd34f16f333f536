package orders

import (
	"context"
	"errors"
	"fmt"

	"store_api/internal/apperr"
	"store_api/internal/model"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Page is a slice of orders plus the total count across pages.
type Page struct {
	Orders  []model.Order `json:"orders"`
	Total   int64         `json:"total"`
	Page    int           `json:"page"`
	PerPage int           `json:"per_page"`
}

// GetOrder returns one of the caller's orders. Foreign orders look missing.
func (s *Service) GetOrder(ctx context.Context, userID, orderID uint) (*model.Order, error) {
	o, err := s.loadOrder(ctx, s.db.Where("user_id = ?", userID), orderID)
	if err != nil {
		return nil, err
	}
	return o, nil
}

// ListOrders pages through the caller's orders, newest first.
func (s *Service) ListOrders(ctx context.Context, userID uint, page, perPage int) (*Page, error) {
	return s.list(ctx, s.db.Where("user_id = ?", userID), false, page, perPage)
}

// ListAllOrders pages through every order with its customer.
func (s *Service) ListAllOrders(ctx context.Context, page, perPage int) (*Page, error) {
	return s.list(ctx, s.db, true, page, perPage)
}

func (s *Service) list(ctx context.Context, scope *gorm.DB, withUser bool, page, perPage int) (*Page, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 15
	}
	out := &Page{Page: page, PerPage: perPage}
	q := scope.WithContext(ctx).Model(&model.Order{}).Session(&gorm.Session{})
	if err := q.Count(&out.Total).Error; err != nil {
		return nil, fmt.Errorf("count orders: %w", err)
	}
	find := preloadAggregate(q)
	if withUser {
		find = find.Preload("User")
	}
	err := find.
		Order("id DESC").
		Offset((page - 1) * perPage).
		Limit(perPage).
		Find(&out.Orders).Error
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return out, nil
}

// UpdateOrderInput patches an order. Nil fields are left unchanged.
type UpdateOrderInput struct {
	Status   *model.OrderStatus `json:"status"`
	Tax      *decimal.Decimal   `json:"tax"`
	Discount *decimal.Decimal   `json:"discount"`
}

// UpdateOrder lets the owner change status, tax or discount of an unpaid order.
// The total is recomputed from the stored subtotal.
func (s *Service) UpdateOrder(ctx context.Context, userID, orderID uint, in UpdateOrderInput) (*model.Order, error) {
	if in.Status != nil && !in.Status.Valid(model.PlacementStatuses) {
		return nil, apperr.Invalid("status", "is invalid")
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		o, err := lockOrder(ctx, tx.Where("user_id = ?", userID), orderID)
		if err != nil {
			return err
		}
		if o.Status == model.OrderPaid {
			return apperr.Conflictf("order %s is paid and can no longer be edited", o.OrderNumber)
		}

		tax, discount := o.Tax, o.Discount
		if in.Tax != nil {
			tax = *in.Tax
		}
		if in.Discount != nil {
			discount = *in.Discount
		}
		totals, err := s.calc.Retotal(o.Subtotal, &tax, &discount)
		if err != nil {
			return err
		}

		updates := map[string]any{
			"tax":      totals.Tax,
			"discount": totals.Discount,
			"total":    totals.Total,
		}
		if in.Status != nil {
			if err := s.moveStock(ctx, tx, o, *in.Status); err != nil {
				return err
			}
			updates["status"] = *in.Status
		}
		if err := tx.Model(&model.Order{}).Where("id = ?", o.ID).Updates(updates).Error; err != nil {
			return fmt.Errorf("update order %d: %w", orderID, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.loadOrder(ctx, s.db, orderID)
}

// UpdateOrderStatus is the administrative status change. Paid is not settable here.
func (s *Service) UpdateOrderStatus(ctx context.Context, orderID uint, status model.OrderStatus) (*model.Order, error) {
	if !status.Valid(model.AdminStatuses) {
		return nil, apperr.Invalid("status", "is invalid")
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		o, err := lockOrder(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if err := s.moveStock(ctx, tx, o, status); err != nil {
			return err
		}
		if err := tx.Model(&model.Order{}).Where("id = ?", o.ID).Update("status", status).Error; err != nil {
			return fmt.Errorf("update order %d status: %w", orderID, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.InfoContext(ctx, "order status changed", "order_id", orderID, "status", status)
	return s.loadOrder(ctx, s.db, orderID)
}

// lockOrder loads the order and its items under a row lock. scope may narrow the
// lookup to one owner.
func lockOrder(ctx context.Context, scope *gorm.DB, orderID uint) (*model.Order, error) {
	var o model.Order
	err := scope.WithContext(ctx).
		Clauses(clause.Locking{Strength: clause.LockingStrengthUpdate}).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		First(&o, orderID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("order", orderID)
	}
	if err != nil {
		return nil, fmt.Errorf("lock order %d: %w", orderID, err)
	}
	return &o, nil
}

// moveStock keeps reservations in step with a status change. Entering cancelled
// releases every item; leaving it reserves them again and fails when the stock
// is gone.
func (s *Service) moveStock(ctx context.Context, tx *gorm.DB, o *model.Order, to model.OrderStatus) error {
	switch {
	case o.Status == to:
		return nil
	case to == model.OrderCancelled:
		for _, it := range o.Items {
			if err := s.ledger.Release(ctx, tx, it.ProductID, it.Quantity); err != nil {
				return err
			}
		}
		s.log.InfoContext(ctx, "order cancelled, stock released", "order_id", o.ID, "items", len(o.Items))
	case o.Status == model.OrderCancelled:
		ids := make([]uint, len(o.Items))
		for i, it := range o.Items {
			ids[i] = it.ProductID
		}
		if _, err := s.ledger.Lock(ctx, tx, ids); err != nil {
			return err
		}
		for _, it := range o.Items {
			if err := s.ledger.Reserve(ctx, tx, it.ProductID, it.Quantity); err != nil {
				return err
			}
		}
		s.log.InfoContext(ctx, "order reopened, stock reserved", "order_id", o.ID, "status", to)
	}
	return nil
}

// DeleteOrder removes one of the caller's orders and returns its stock. A cancelled
// order gave its stock back already.
func (s *Service) DeleteOrder(ctx context.Context, userID, orderID uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		o, err := lockOrder(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if o.UserID != userID {
			return fmt.Errorf("%w: order %d belongs to another user", apperr.ErrForbidden, orderID)
		}

		released := 0
		if o.Status != model.OrderCancelled {
			for _, it := range o.Items {
				if err := s.ledger.Release(ctx, tx, it.ProductID, it.Quantity); err != nil {
					return err
				}
			}
			released = len(o.Items)
		}
		for _, m := range []any{&model.OrderItem{}, &model.Payment{}, &model.Shipping{}} {
			if err := tx.Where("order_id = ?", o.ID).Delete(m).Error; err != nil {
				return fmt.Errorf("delete order %d children: %w", o.ID, err)
			}
		}
		if err := tx.Delete(&model.Order{}, o.ID).Error; err != nil {
			return fmt.Errorf("delete order %d: %w", o.ID, err)
		}
		s.log.InfoContext(ctx, "order deleted", "order_id", o.ID, "items_released", released)
		return nil
	})
}

// Summary aggregates order counts and revenue for the admin dashboard.
type Summary struct {
	TotalOrders  int64                       `json:"total_orders"`
	TotalRevenue decimal.Decimal             `json:"total_revenue"`
	ByStatus     map[model.OrderStatus]int64 `json:"by_status"`
}

// Summary counts orders per status. Revenue counts paid, shipped and completed orders.
func (s *Service) Summary(ctx context.Context) (*Summary, error) {
	var rows []struct {
		Status model.OrderStatus
		N      int64
	}
	err := s.db.WithContext(ctx).Model(&model.Order{}).
		Select("status, COUNT(*) AS n").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("summarise orders: %w", err)
	}

	out := &Summary{TotalRevenue: decimal.Zero, ByStatus: map[model.OrderStatus]int64{}}
	for _, r := range rows {
		out.ByStatus[r.Status] = r.N
		out.TotalOrders += r.N
	}

	// Summed in Go so the result stays exact on every dialect.
	var totals []decimal.Decimal
	err = s.db.WithContext(ctx).Model(&model.Order{}).
		Where("status IN ?", []model.OrderStatus{model.OrderPaid, model.OrderShipped, model.OrderCompleted}).
		Pluck("total", &totals).Error
	if err != nil {
		return nil, fmt.Errorf("sum revenue: %w", err)
	}
	for _, t := range totals {
		out.TotalRevenue = out.TotalRevenue.Add(t)
	}
	return out, nil
}

package orders

import (
	"context"
	"fmt"
	"strings"

	"store_api/internal/apperr"
	"store_api/internal/model"
	"store_api/internal/notify"
	"store_api/internal/pricing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ItemInput is one requested cart line.
type ItemInput struct {
	ProductID uint `json:"product_id" binding:"required"`
	ColorID   uint `json:"color_id" binding:"required"`
	SizeID    uint `json:"size_id" binding:"required"`
	Quantity  int  `json:"quantity" binding:"required,min=1"`
}

// PlaceOrderInput is a validated-at-the-edge placement request. UserID always comes
// from the authenticated caller.
type PlaceOrderInput struct {
	UserID   uint              `json:"-"`
	Currency string            `json:"currency" binding:"required,len=3"`
	Status   model.OrderStatus `json:"status" binding:"required"`
	Tax      *decimal.Decimal  `json:"tax"`
	Discount *decimal.Decimal  `json:"discount"`
	Items    []ItemInput       `json:"order_items" binding:"required,min=1,dive"`
}

func (in PlaceOrderInput) validate() error {
	fields := map[string]string{}
	if in.UserID == 0 {
		fields["user_id"] = "is required"
	}
	if len(strings.TrimSpace(in.Currency)) != 3 {
		fields["currency"] = "must be 3 characters"
	}
	if !in.Status.Valid(model.PlacementStatuses) {
		fields["status"] = "is invalid"
	}
	if len(in.Items) == 0 {
		fields["order_items"] = "must contain at least one item"
	}
	for i, it := range in.Items {
		if it.ProductID == 0 {
			fields[fmt.Sprintf("order_items.%d.product_id", i)] = "is required"
		}
		if it.ColorID == 0 {
			fields[fmt.Sprintf("order_items.%d.color_id", i)] = "is required"
		}
		if it.SizeID == 0 {
			fields[fmt.Sprintf("order_items.%d.size_id", i)] = "is required"
		}
		if it.Quantity < 1 {
			fields[fmt.Sprintf("order_items.%d.quantity", i)] = "must be at least 1"
		}
	}
	if len(fields) > 0 {
		return &apperr.ValidationError{Message: "Validation Error.", Fields: fields}
	}
	return nil
}

// PlaceOrder persists the order, its items and the stock reservations as one unit.
// Nothing is written unless every line can be fulfilled.
func (s *Service) PlaceOrder(ctx context.Context, in PlaceOrderInput) (*model.Order, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	var placed model.Order
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ids := make([]uint, len(in.Items))
		for i, it := range in.Items {
			ids[i] = it.ProductID
		}
		products, err := s.ledger.Lock(ctx, tx, ids)
		if err != nil {
			return err
		}
		if err := checkVariants(tx, in.Items); err != nil {
			return err
		}

		demand := map[uint]int{}
		for _, it := range in.Items {
			demand[it.ProductID] += it.Quantity
		}
		for id, qty := range demand {
			if p := products[id]; p.Inventory < qty {
				return &apperr.InsufficientInventoryError{
					ProductID: p.ID, ProductName: p.Name, Requested: qty, Available: p.Inventory,
				}
			}
		}

		lines := make([]pricing.Line, len(in.Items))
		for i, it := range in.Items {
			lines[i] = pricing.Line{UnitPrice: products[it.ProductID].Price, Quantity: it.Quantity}
		}
		totals, err := s.calc.Calculate(lines, in.Tax, in.Discount)
		if err != nil {
			return err
		}

		placed = model.Order{
			UserID:      in.UserID,
			OrderNumber: newOrderNumber(),
			Subtotal:    totals.Subtotal,
			Tax:         totals.Tax,
			Discount:    totals.Discount,
			Total:       totals.Total,
			Currency:    strings.ToUpper(in.Currency),
			Status:      in.Status,
		}
		if err := tx.Create(&placed).Error; err != nil {
			return fmt.Errorf("insert order: %w", err)
		}

		for i, it := range in.Items {
			if err := s.ledger.Reserve(ctx, tx, it.ProductID, it.Quantity); err != nil {
				return err
			}
			item := model.OrderItem{
				OrderID:   placed.ID,
				ProductID: it.ProductID,
				ColorID:   it.ColorID,
				SizeID:    it.SizeID,
				Quantity:  it.Quantity,
				Price:     lines[i].UnitPrice,
				Total:     totals.LineTotals[i],
			}
			if err := tx.Create(&item).Error; err != nil {
				return fmt.Errorf("insert order item: %w", err)
			}
			item.Product = products[it.ProductID]
			placed.Items = append(placed.Items, item)
		}
		return nil
	})
	if err != nil {
		if apperr.IsBusiness(err) {
			return nil, err
		}
		s.log.ErrorContext(ctx, "order placement failed", "user_id", in.UserID, "err", err)
		return nil, &apperr.OrderCreationFailedError{Err: err}
	}

	// Committed. A failed reload falls back to the copy built in the transaction.
	order, err := s.loadOrder(ctx, s.db, placed.ID)
	if err != nil {
		s.log.WarnContext(ctx, "reload placed order", "order_id", placed.ID, "err", err)
		order = &placed
	}
	s.log.InfoContext(ctx, "order placed",
		"order_id", order.ID, "order_number", order.OrderNumber, "total", order.Total.StringFixed(2))

	var customer model.User
	if err := s.db.WithContext(ctx).First(&customer, order.UserID).Error; err != nil {
		s.log.WarnContext(ctx, "order.placed without customer", "order_id", order.ID, "err", err)
	}
	s.emit(ctx, notify.NewOrderPlaced(order, customer))
	return order, nil
}

// checkVariants makes sure every color and size belongs to the product it is ordered with.
func checkVariants(tx *gorm.DB, items []ItemInput) error {
	fields := map[string]string{}
	for i, it := range items {
		prefix := fmt.Sprintf("order_items.%d.", i)
		if err := checkVariant(tx, it.ProductID, it.ColorID, it.SizeID, prefix, fields); err != nil {
			return err
		}
	}
	if len(fields) > 0 {
		return &apperr.ValidationError{Message: "Validation Error.", Fields: fields}
	}
	return nil
}

// checkVariant records a field error under prefix for a color or size of another product.
func checkVariant(tx *gorm.DB, productID, colorID, sizeID uint, prefix string, fields map[string]string) error {
	var n int64
	if err := tx.Model(&model.ProductColor{}).
		Where("id = ? AND product_id = ?", colorID, productID).Count(&n).Error; err != nil {
		return fmt.Errorf("check color: %w", err)
	}
	if n == 0 {
		fields[prefix+"color_id"] = "does not belong to the product"
	}
	if err := tx.Model(&model.ProductSize{}).
		Where("id = ? AND product_id = ?", sizeID, productID).Count(&n).Error; err != nil {
		return fmt.Errorf("check size: %w", err)
	}
	if n == 0 {
		fields[prefix+"size_id"] = "does not belong to the product"
	}
	return nil
}

// newOrderNumber returns ORD-<13 hex>-<6 alnum>, upper-cased. The unique index
// on order_number rejects the astronomically unlikely collision.
func newOrderNumber() string {
	a := strings.ReplaceAll(uuid.NewString(), "-", "")
	b := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "ORD-" + strings.ToUpper(a[:13]) + "-" + strings.ToUpper(b[:6])
}


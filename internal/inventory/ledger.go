// Package inventory guards product stock. Every method runs on the caller's transaction.
package inventory

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"store_api/internal/apperr"
	"store_api/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Ledger reserves and releases product stock.
type Ledger struct{}

// NewLedger returns a Ledger.
func NewLedger() *Ledger { return &Ledger{} }

// Lock loads the products with row locks, in ascending id order so that two
// orders touching the same products cannot deadlock. Missing ids are an error.
func (l *Ledger) Lock(ctx context.Context, tx *gorm.DB, productIDs []uint) (map[uint]*model.Product, error) {
	ids := dedupe(productIDs)
	var products []model.Product
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: clause.LockingStrengthUpdate}).
		Where("id IN ?", ids).
		Order("id").
		Find(&products).Error
	if err != nil {
		return nil, fmt.Errorf("lock products: %w", err)
	}

	out := make(map[uint]*model.Product, len(products))
	for i := range products {
		out[products[i].ID] = &products[i]
	}
	for _, id := range ids {
		if _, ok := out[id]; !ok {
			return nil, apperr.NotFound("product", id)
		}
	}
	return out, nil
}

// Reserve decrements stock by qty. The decrement is conditional on enough stock
// remaining, so it cannot drive inventory negative even without a row lock.
func (l *Ledger) Reserve(ctx context.Context, tx *gorm.DB, productID uint, qty int) error {
	if qty <= 0 {
		return apperr.Invalid("quantity", "must be at least 1")
	}
	res := tx.WithContext(ctx).
		Model(&model.Product{}).
		Where("id = ? AND inventory >= ?", productID, qty).
		UpdateColumn("inventory", gorm.Expr("inventory - ?", qty))
	if res.Error != nil {
		return fmt.Errorf("reserve product %d: %w", productID, res.Error)
	}
	if res.RowsAffected == 1 {
		return nil
	}

	var p model.Product
	if err := tx.WithContext(ctx).Select("id", "name", "inventory").First(&p, productID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.NotFound("product", productID)
		}
		return fmt.Errorf("reserve product %d: %w", productID, err)
	}
	return &apperr.InsufficientInventoryError{
		ProductID:   p.ID,
		ProductName: p.Name,
		Requested:   qty,
		Available:   p.Inventory,
	}
}

// Release returns qty units to stock. Soft-deleted products still get their stock back.
func (l *Ledger) Release(ctx context.Context, tx *gorm.DB, productID uint, qty int) error {
	if qty <= 0 {
		return nil
	}
	res := tx.WithContext(ctx).
		Unscoped().
		Model(&model.Product{}).
		Where("id = ?", productID).
		UpdateColumn("inventory", gorm.Expr("inventory + ?", qty))
	if res.Error != nil {
		return fmt.Errorf("release product %d: %w", productID, res.Error)
	}
	return nil
}

func dedupe(ids []uint) []uint {
	seen := make(map[uint]struct{}, len(ids))
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

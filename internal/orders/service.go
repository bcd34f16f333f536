// Package orders places customer orders and manages them afterwards.
package orders

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"store_api/internal/apperr"
	"store_api/internal/inventory"
	"store_api/internal/model"
	"store_api/internal/notify"
	"store_api/internal/pricing"

	"gorm.io/gorm"
)

// Service owns the Order aggregate. Dependencies are passed in explicitly so tests
// can swap the emitter for a recorder.
type Service struct {
	db      *gorm.DB
	ledger  *inventory.Ledger
	calc    pricing.Calculator
	emitter notify.Emitter
	log     *slog.Logger
}

func NewService(db *gorm.DB, ledger *inventory.Ledger, calc pricing.Calculator, emitter notify.Emitter, log *slog.Logger) *Service {
	if ledger == nil {
		ledger = inventory.NewLedger()
	}
	if emitter == nil {
		emitter = notify.Discard{}
	}
	if log == nil {
		log = slog.Default()
	}
	return &Service{db: db, ledger: ledger, calc: calc, emitter: emitter, log: log}
}

// preloadAggregate loads everything a client sees of an order.
func preloadAggregate(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		Preload("Items.Product", func(db *gorm.DB) *gorm.DB { return db.Unscoped() }).
		Preload("Items.Color").
		Preload("Items.Size").
		Preload("Payment").
		Preload("Shipping")
}

func (s *Service) loadOrder(ctx context.Context, db *gorm.DB, orderID uint) (*model.Order, error) {
	var o model.Order
	err := preloadAggregate(db.WithContext(ctx)).First(&o, orderID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("order", orderID)
	}
	if err != nil {
		return nil, fmt.Errorf("load order %d: %w", orderID, err)
	}
	return &o, nil
}

func (s *Service) emit(ctx context.Context, ev notify.Event) {
	if err := s.emitter.Emit(ctx, ev); err != nil {
		s.log.WarnContext(ctx, "emit event", "event", ev.Name, "order_number", ev.Data.OrderNumber, "err", err)
	}
}

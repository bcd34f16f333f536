package payment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"store_api/internal/apperr"
	"store_api/internal/model"
	"store_api/internal/notify"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Settlement is a confirmed capture waiting to be applied to its order.
type Settlement struct {
	OrderID       uint
	Gateway       string
	TransactionID string
	Amount        decimal.Decimal
	Currency      string
}

// Reconciliation is the outcome of applying a settlement.
type Reconciliation struct {
	Order             *model.Order   `json:"order"`
	Payment           *model.Payment `json:"payment"`
	AlreadyReconciled bool           `json:"already_reconciled"`
	// NeedsReview marks money captured for an order that was closed meanwhile.
	NeedsReview bool `json:"needs_review"`
}

// Reconciler is the only writer of the paid status.
type Reconciler struct {
	db      *gorm.DB
	emitter notify.Emitter
	log     *slog.Logger
}

func NewReconciler(db *gorm.DB, emitter notify.Emitter, log *slog.Logger) *Reconciler {
	if emitter == nil {
		emitter = notify.Discard{}
	}
	if log == nil {
		log = slog.Default()
	}
	return &Reconciler{db: db, emitter: emitter, log: log}
}

// Reconcile records the payment exactly once per (gateway, transaction id) and
// moves a pending or processing order to paid. Replays return the existing
// payment untouched. Captures landing on a cancelled or refunded order are
// recorded but flagged for review instead of reviving the order.
func (r *Reconciler) Reconcile(ctx context.Context, s Settlement) (*Reconciliation, error) {
	if s.Gateway == "" {
		s.Gateway = GatewayPayPal
	}
	if s.TransactionID == "" {
		return nil, apperr.Invalid("transaction_id", "is required")
	}

	if existing, err := r.findPayment(r.db.WithContext(ctx), s); err != nil {
		return nil, err
	} else if existing != nil {
		return r.replay(ctx, s, existing)
	}

	var (
		order   model.Order
		payment *model.Payment
		replay  *model.Payment

		transitioned bool
	)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.Locking{Strength: clause.LockingStrengthUpdate}).First(&order, s.OrderID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.NotFound("order", s.OrderID)
		}
		if err != nil {
			return fmt.Errorf("lock order %d: %w", s.OrderID, err)
		}

		if replay, err = r.findPayment(tx, s); err != nil || replay != nil {
			return err
		}

		amount := s.Amount
		if amount.IsZero() {
			amount = order.Total
		}
		currency := strings.ToUpper(s.Currency)
		if currency == "" {
			currency = order.Currency
		}
		payment = &model.Payment{
			OrderID:        order.ID,
			PaymentGateway: s.Gateway,
			TransactionID:  s.TransactionID,
			Amount:         amount.Round(2),
			Currency:       currency,
			Status:         model.PaymentCompleted,
		}
		if err := tx.Create(payment).Error; err != nil {
			return fmt.Errorf("insert payment: %w", err)
		}
		if !payable(order.Status) {
			return nil
		}
		if err := tx.Model(&order).Update("status", model.OrderPaid).Error; err != nil {
			return fmt.Errorf("mark order %d paid: %w", order.ID, err)
		}
		order.Status = model.OrderPaid
		transitioned = true
		return nil
	})

	switch {
	case apperr.IsNotFound(err):
		r.log.ErrorContext(ctx, "capture for unknown order",
			"order_id", s.OrderID, "gateway", s.Gateway, "transaction_id", s.TransactionID)
		return nil, err
	case errors.Is(err, gorm.ErrDuplicatedKey):
		// Lost the race to a concurrent reconcile of the same capture.
		existing, ferr := r.findPayment(r.db.WithContext(ctx), s)
		if ferr != nil {
			return nil, ferr
		}
		if existing == nil {
			return nil, fmt.Errorf("reconcile: duplicate payment vanished: %w", err)
		}
		return r.replay(ctx, s, existing)
	case err != nil:
		return nil, err
	}

	if replay != nil {
		return r.replay(ctx, s, replay)
	}

	if closed(order.Status) {
		r.log.ErrorContext(ctx, "capture on closed order, needs review",
			"order_id", order.ID, "order_status", order.Status,
			"transaction_id", payment.TransactionID, "amount", payment.Amount.StringFixed(2))
		return &Reconciliation{Order: &order, Payment: payment, NeedsReview: true}, nil
	}
	if !transitioned {
		r.log.WarnContext(ctx, "additional capture on settled order",
			"order_id", order.ID, "order_status", order.Status,
			"transaction_id", payment.TransactionID, "amount", payment.Amount.StringFixed(2))
		return &Reconciliation{Order: &order, Payment: payment}, nil
	}

	r.log.InfoContext(ctx, "order paid",
		"order_id", order.ID, "order_number", order.OrderNumber, "transaction_id", payment.TransactionID)
	r.emitPaid(ctx, &order, payment)
	return &Reconciliation{Order: &order, Payment: payment}, nil
}

func (r *Reconciler) findPayment(db *gorm.DB, s Settlement) (*model.Payment, error) {
	var p model.Payment
	err := db.Where("payment_gateway = ? AND transaction_id = ?", s.Gateway, s.TransactionID).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find payment: %w", err)
	}
	return &p, nil
}

func (r *Reconciler) replay(ctx context.Context, s Settlement, p *model.Payment) (*Reconciliation, error) {
	if p.OrderID != s.OrderID {
		r.log.ErrorContext(ctx, "transaction already bound to another order",
			"transaction_id", s.TransactionID, "order_id", s.OrderID, "bound_order_id", p.OrderID)
		return nil, apperr.Conflictf("transaction %s belongs to another order", s.TransactionID)
	}
	var order model.Order
	if err := r.db.WithContext(ctx).First(&order, p.OrderID).Error; err != nil {
		return nil, fmt.Errorf("load order %d: %w", p.OrderID, err)
	}
	r.log.InfoContext(ctx, "capture already reconciled", "order_id", order.ID, "transaction_id", p.TransactionID)
	return &Reconciliation{Order: &order, Payment: p, AlreadyReconciled: true, NeedsReview: closed(order.Status)}, nil
}

// payable reports whether a capture moves an order in this status to paid.
func payable(s model.OrderStatus) bool {
	return s == model.OrderPending || s == model.OrderProcessing
}

func closed(s model.OrderStatus) bool {
	return s == model.OrderCancelled || s == model.OrderRefunded
}

// emitPaid loads the customer for the snapshot. Failures are logged, never returned.
func (r *Reconciler) emitPaid(ctx context.Context, o *model.Order, p *model.Payment) {
	var customer model.User
	if err := r.db.WithContext(ctx).First(&customer, o.UserID).Error; err != nil {
		r.log.WarnContext(ctx, "order.paid without customer", "order_id", o.ID, "err", err)
	}
	if err := r.emitter.Emit(ctx, notify.NewOrderPaid(o, customer, p)); err != nil {
		r.log.WarnContext(ctx, "emit order.paid", "order_id", o.ID, "err", err)
	}
}

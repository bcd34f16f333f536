package payment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"store_api/internal/apperr"
	"store_api/internal/model"

	"gorm.io/gorm"
)

// Locker serialises work on a named resource across instances.
type Locker interface {
	TryLock(ctx context.Context, name string) (unlock func(), ok bool, err error)
}

// Service drives the provider flow around an order: intent, capture, webhook.
type Service struct {
	db         *gorm.DB
	gateway    Gateway
	reconciler *Reconciler
	locker     Locker
	timeout    time.Duration
	log        *slog.Logger
}

// Options tunes a Service. A nil Locker disables capture serialisation.
type Options struct {
	Locker         Locker
	GatewayTimeout time.Duration
	Logger         *slog.Logger
}

func NewService(db *gorm.DB, gateway Gateway, reconciler *Reconciler, opts Options) *Service {
	if opts.GatewayTimeout <= 0 {
		opts.GatewayTimeout = 15 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Service{
		db:         db,
		gateway:    gateway,
		reconciler: reconciler,
		locker:     opts.Locker,
		timeout:    opts.GatewayTimeout,
		log:        opts.Logger,
	}
}

// CreatePaymentIntent asks the provider to authorise the order total. The order id
// travels as the correlation id and comes back on capture.
func (s *Service) CreatePaymentIntent(ctx context.Context, userID, orderID uint) (*Intent, error) {
	var order model.Order
	err := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", orderID, userID).First(&order).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("order", orderID)
	}
	if err != nil {
		return nil, fmt.Errorf("load order %d: %w", orderID, err)
	}
	switch order.Status {
	case model.OrderPaid:
		return nil, apperr.Conflictf("order %s is already paid", order.OrderNumber)
	case model.OrderCancelled, model.OrderRefunded:
		return nil, apperr.Conflictf("order %s is %s", order.OrderNumber, order.Status)
	}

	gctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	intent, err := s.gateway.CreateIntent(gctx, IntentRequest{
		CorrelationID: strconv.FormatUint(uint64(order.ID), 10),
		InvoiceID:     order.OrderNumber,
		Amount:        order.Total,
		Currency:      order.Currency,
	})
	if err != nil {
		return nil, asGatewayError("create intent", err)
	}
	s.log.InfoContext(ctx, "payment intent created", "order_id", order.ID, "intent_id", intent.ID)
	return intent, nil
}

// CapturePayment captures an approved intent and reconciles it onto the order named
// by the provider's correlation id.
func (s *Service) CapturePayment(ctx context.Context, intentID string) (*Reconciliation, error) {
	intentID = strings.TrimSpace(intentID)
	if intentID == "" {
		return nil, apperr.Invalid("poid", "is required")
	}

	if s.locker != nil {
		unlock, ok, err := s.locker.TryLock(ctx, "capture:"+intentID)
		switch {
		case err != nil:
			s.log.WarnContext(ctx, "capture lock unavailable, continuing without it", "intent_id", intentID, "err", err)
		case !ok:
			return nil, apperr.Conflictf("capture of %s already in progress", intentID)
		default:
			defer unlock()
		}
	}

	gctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	res, err := s.gateway.Capture(gctx, intentID)
	if err != nil {
		return nil, asGatewayError("capture", err)
	}
	if res.Status != StatusCompleted {
		s.log.WarnContext(ctx, "capture not completed", "intent_id", intentID, "status", res.Status)
		return nil, &apperr.PaymentNotCompletedError{Status: res.Status}
	}
	return s.settle(ctx, res)
}

// HandleWebhook verifies and applies a provider notification. A nil result with a nil
// error means the event was acknowledged but not acted on.
func (s *Service) HandleWebhook(ctx context.Context, header http.Header, body []byte) (*Reconciliation, error) {
	ev, err := s.gateway.ParseWebhook(ctx, header, body)
	if err != nil {
		return nil, err
	}
	if ev.Type != WebhookCaptureCompleted || ev.Capture == nil {
		s.log.InfoContext(ctx, "webhook ignored", "event_id", ev.ID, "type", ev.Type)
		return nil, nil
	}
	if ev.Capture.Status != StatusCompleted {
		s.log.WarnContext(ctx, "webhook capture not completed", "event_id", ev.ID, "status", ev.Capture.Status)
		return nil, nil
	}
	return s.settle(ctx, ev.Capture)
}

// GetPaymentForOrder returns the payment recorded for one of the caller's orders.
func (s *Service) GetPaymentForOrder(ctx context.Context, userID, orderID uint) (*model.Payment, error) {
	var order model.Order
	err := s.db.WithContext(ctx).Select("id").Where("id = ? AND user_id = ?", orderID, userID).First(&order).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("order", orderID)
	}
	if err != nil {
		return nil, fmt.Errorf("load order %d: %w", orderID, err)
	}

	var p model.Payment
	err = s.db.WithContext(ctx).Where("order_id = ?", orderID).Order("id").First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("payment", nil)
	}
	if err != nil {
		return nil, fmt.Errorf("load payment for order %d: %w", orderID, err)
	}
	return &p, nil
}

func (s *Service) settle(ctx context.Context, res *CaptureResult) (*Reconciliation, error) {
	orderID, err := strconv.ParseUint(strings.TrimSpace(res.CorrelationID), 10, 64)
	if err != nil || orderID == 0 {
		s.log.ErrorContext(ctx, "capture without usable correlation id",
			"intent_id", res.IntentID, "transaction_id", res.TransactionID, "custom_id", res.CorrelationID)
		return nil, apperr.NotFound("order", res.CorrelationID)
	}
	return s.reconciler.Reconcile(ctx, Settlement{
		OrderID:       uint(orderID),
		Gateway:       s.gateway.Name(),
		TransactionID: res.TransactionID,
		Amount:        res.Amount,
		Currency:      res.Currency,
	})
}

func asGatewayError(op string, err error) error {
	var ge *apperr.GatewayError
	if errors.As(err, &ge) {
		return err
	}
	return &apperr.GatewayError{Op: op, Err: err}
}

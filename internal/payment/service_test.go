package payment

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"testing"

	"store_api/internal/apperr"
	"store_api/internal/model"
	"store_api/internal/notify"
	"store_api/internal/store/storetest"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fakeGateway struct {
	mu       sync.Mutex
	intents  []IntentRequest
	capture  *CaptureResult
	webhook  *WebhookEvent
	err      error
	captures int
}

func (f *fakeGateway) Name() string { return GatewayPayPal }

func (f *fakeGateway) CreateIntent(_ context.Context, req IntentRequest) (*Intent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.intents = append(f.intents, req)
	return &Intent{ID: "PP-1", Status: "CREATED", ApprovalURL: "https://paypal.test/approve/PP-1"}, nil
}

func (f *fakeGateway) Capture(_ context.Context, _ string) (*CaptureResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.captures++
	if f.err != nil {
		return nil, f.err
	}
	c := *f.capture
	return &c, nil
}

func (f *fakeGateway) ParseWebhook(context.Context, http.Header, []byte) (*WebhookEvent, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.webhook, nil
}

type fakeLocker struct {
	held bool
	err  error
}

func (l *fakeLocker) TryLock(context.Context, string) (func(), bool, error) {
	if l.err != nil {
		return func() {}, false, l.err
	}
	return func() {}, !l.held, nil
}

type serviceFixture struct {
	db    *gorm.DB
	gw    *fakeGateway
	svc   *Service
	rec   *notify.Recorder
	order model.Order
}

func newServiceFixture(t *testing.T, locker Locker) serviceFixture {
	t.Helper()
	db := storetest.New(t)
	u := storetest.User(t, db, "jane@example.com")
	o := storetest.Order(t, db, u.ID, "30.00", model.OrderPending)
	rec := &notify.Recorder{}
	gw := &fakeGateway{}
	svc := NewService(db, gw, NewReconciler(db, rec, quietLogger()), Options{Locker: locker, Logger: quietLogger()})
	return serviceFixture{db: db, gw: gw, svc: svc, rec: rec, order: o}
}

func (f serviceFixture) completed(txn string) *CaptureResult {
	return &CaptureResult{
		IntentID:      "PP-1",
		Status:        StatusCompleted,
		CorrelationID: strconv.FormatUint(uint64(f.order.ID), 10),
		TransactionID: txn,
		Amount:        decimal.RequireFromString("30.00"),
		Currency:      "USD",
	}
}

func TestCreatePaymentIntentCarriesCorrelation(t *testing.T) {
	f := newServiceFixture(t, nil)

	intent, err := f.svc.CreatePaymentIntent(context.Background(), f.order.UserID, f.order.ID)
	require.NoError(t, err)
	assert.Equal(t, "PP-1", intent.ID)
	assert.NotEmpty(t, intent.ApprovalURL)

	require.Len(t, f.gw.intents, 1)
	req := f.gw.intents[0]
	assert.Equal(t, strconv.FormatUint(uint64(f.order.ID), 10), req.CorrelationID)
	assert.Equal(t, f.order.OrderNumber, req.InvoiceID)
	assert.Equal(t, "30.00", req.Amount.StringFixed(2))
	assert.Equal(t, "USD", req.Currency)
}

func TestCreatePaymentIntentRules(t *testing.T) {
	f := newServiceFixture(t, nil)

	_, err := f.svc.CreatePaymentIntent(context.Background(), f.order.UserID+1, f.order.ID)
	assert.True(t, apperr.IsNotFound(err), "foreign order must look missing, got %v", err)

	require.NoError(t, f.db.Model(&f.order).Update("status", model.OrderPaid).Error)
	_, err = f.svc.CreatePaymentIntent(context.Background(), f.order.UserID, f.order.ID)
	assert.ErrorIs(t, err, apperr.ErrConflict)
	assert.Empty(t, f.gw.intents)
}

func TestCreatePaymentIntentGatewayFailure(t *testing.T) {
	f := newServiceFixture(t, nil)
	f.gw.err = errors.New("connection reset")

	_, err := f.svc.CreatePaymentIntent(context.Background(), f.order.UserID, f.order.ID)
	var ge *apperr.GatewayError
	assert.ErrorAs(t, err, &ge)
}

func TestCapturePaymentReconciles(t *testing.T) {
	f := newServiceFixture(t, &fakeLocker{})
	f.gw.capture = f.completed("TXN-1")

	res, err := f.svc.CapturePayment(context.Background(), "PP-1")
	require.NoError(t, err)
	assert.Equal(t, model.OrderPaid, res.Order.Status)
	assert.Equal(t, "TXN-1", res.Payment.TransactionID)
	assert.Len(t, f.rec.Named(notify.OrderPaid), 1)

	again, err := f.svc.CapturePayment(context.Background(), "PP-1")
	require.NoError(t, err)
	assert.True(t, again.AlreadyReconciled)
	assert.EqualValues(t, 1, storetest.Count(t, f.db, &model.Payment{}))
}

func TestCapturePaymentNotCompleted(t *testing.T) {
	f := newServiceFixture(t, nil)
	f.gw.capture = f.completed("TXN-1")
	f.gw.capture.Status = "PENDING"

	_, err := f.svc.CapturePayment(context.Background(), "PP-1")
	var nc *apperr.PaymentNotCompletedError
	require.ErrorAs(t, err, &nc)
	assert.Equal(t, "PENDING", nc.Status)

	var stored model.Order
	require.NoError(t, f.db.First(&stored, f.order.ID).Error)
	assert.Equal(t, model.OrderPending, stored.Status)
	assert.EqualValues(t, 0, storetest.Count(t, f.db, &model.Payment{}))
}

func TestCapturePaymentGatewayFailureLeavesOrder(t *testing.T) {
	f := newServiceFixture(t, nil)
	f.gw.err = context.DeadlineExceeded

	_, err := f.svc.CapturePayment(context.Background(), "PP-1")
	var ge *apperr.GatewayError
	require.ErrorAs(t, err, &ge)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.EqualValues(t, 0, storetest.Count(t, f.db, &model.Payment{}))
}

func TestCapturePaymentUnknownCorrelation(t *testing.T) {
	f := newServiceFixture(t, nil)
	f.gw.capture = f.completed("TXN-1")
	f.gw.capture.CorrelationID = "999"

	_, err := f.svc.CapturePayment(context.Background(), "PP-1")
	assert.True(t, apperr.IsNotFound(err))
	assert.EqualValues(t, 0, storetest.Count(t, f.db, &model.Payment{}))
}

func TestCapturePaymentLockHeld(t *testing.T) {
	f := newServiceFixture(t, &fakeLocker{held: true})
	f.gw.capture = f.completed("TXN-1")

	_, err := f.svc.CapturePayment(context.Background(), "PP-1")
	assert.ErrorIs(t, err, apperr.ErrConflict)
	assert.Zero(t, f.gw.captures)
}

func TestCapturePaymentLockUnavailableProceeds(t *testing.T) {
	f := newServiceFixture(t, &fakeLocker{err: errors.New("redis down")})
	f.gw.capture = f.completed("TXN-1")

	res, err := f.svc.CapturePayment(context.Background(), "PP-1")
	require.NoError(t, err)
	assert.Equal(t, model.OrderPaid, res.Order.Status)
}

func TestHandleWebhook(t *testing.T) {
	f := newServiceFixture(t, nil)

	f.gw.webhook = &WebhookEvent{ID: "WH-1", Type: "CHECKOUT.ORDER.APPROVED"}
	res, err := f.svc.HandleWebhook(context.Background(), http.Header{}, []byte(`{}`))
	require.NoError(t, err)
	assert.Nil(t, res)

	f.gw.webhook = &WebhookEvent{ID: "WH-2", Type: WebhookCaptureCompleted, Capture: f.completed("TXN-9")}
	res, err = f.svc.HandleWebhook(context.Background(), http.Header{}, []byte(`{}`))
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, "TXN-9", res.Payment.TransactionID)
}

func TestGetPaymentForOrder(t *testing.T) {
	f := newServiceFixture(t, nil)

	_, err := f.svc.GetPaymentForOrder(context.Background(), f.order.UserID, f.order.ID)
	assert.True(t, apperr.IsNotFound(err))

	f.gw.capture = f.completed("TXN-1")
	_, err = f.svc.CapturePayment(context.Background(), "PP-1")
	require.NoError(t, err)

	p, err := f.svc.GetPaymentForOrder(context.Background(), f.order.UserID, f.order.ID)
	require.NoError(t, err)
	assert.Equal(t, "TXN-1", p.TransactionID)

	_, err = f.svc.GetPaymentForOrder(context.Background(), f.order.UserID+1, f.order.ID)
	assert.True(t, apperr.IsNotFound(err))
}

func TestHandleWebhookRequiresCompletedStatus(t *testing.T) {
	f := newServiceFixture(t, nil)

	for _, status := range []string{"", "PENDING", "DECLINED"} {
		capture := f.completed("TXN-" + status)
		capture.Status = status
		f.gw.webhook = &WebhookEvent{ID: "WH-" + status, Type: WebhookCaptureCompleted, Capture: capture}

		res, err := f.svc.HandleWebhook(context.Background(), http.Header{}, []byte(`{}`))
		require.NoError(t, err)
		assert.Nil(t, res, "status %q", status)
	}
	assert.EqualValues(t, 0, storetest.Count(t, f.db, &model.Payment{}))

	var stored model.Order
	require.NoError(t, f.db.First(&stored, f.order.ID).Error)
	assert.Equal(t, model.OrderPending, stored.Status)
}

func TestCapturePaymentOnCancelledOrderNeedsReview(t *testing.T) {
	f := newServiceFixture(t, nil)
	f.gw.capture = f.completed("TXN-1")
	require.NoError(t, f.db.Model(&model.Order{}).Where("id = ?", f.order.ID).Update("status", model.OrderCancelled).Error)

	res, err := f.svc.CapturePayment(context.Background(), "PP-1")
	require.NoError(t, err)
	assert.True(t, res.NeedsReview)
	assert.Equal(t, model.OrderCancelled, res.Order.Status)
	assert.EqualValues(t, 1, storetest.Count(t, f.db, &model.Payment{}))
	assert.Empty(t, f.rec.Named(notify.OrderPaid))
}

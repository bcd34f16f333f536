// Package payment talks to the payment provider and reconciles confirmed captures onto orders.
package payment

import (
	"context"
	"net/http"

	"github.com/shopspring/decimal"
)

// Provider statuses the service acts on.
const (
	StatusCompleted = "COMPLETED"

	WebhookCaptureCompleted = "PAYMENT.CAPTURE.COMPLETED"
)

// IntentRequest describes the payment to authorise. CorrelationID is echoed back
// unmodified by the provider on capture and is the only way a capture is tied to an order.
type IntentRequest struct {
	CorrelationID string
	InvoiceID     string
	Amount        decimal.Decimal
	Currency      string
}

// Intent is a created, not yet approved, provider payment.
type Intent struct {
	ID          string `json:"paypal_order_id"`
	Status      string `json:"status"`
	ApprovalURL string `json:"approval_url"`
}

// CaptureResult is the provider's answer to a capture, reduced to what reconciliation needs.
type CaptureResult struct {
	IntentID      string          `json:"id"`
	Status        string          `json:"status"`
	CorrelationID string          `json:"custom_id"`
	TransactionID string          `json:"transaction_id"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
}

// WebhookEvent is a verified provider notification.
type WebhookEvent struct {
	ID      string
	Type    string
	Capture *CaptureResult
}

// Gateway is the outbound contract with a payment provider. Every failure of the
// call itself must be returned as *apperr.GatewayError.
type Gateway interface {
	Name() string
	CreateIntent(ctx context.Context, req IntentRequest) (*Intent, error)
	Capture(ctx context.Context, intentID string) (*CaptureResult, error)
	ParseWebhook(ctx context.Context, header http.Header, body []byte) (*WebhookEvent, error)
}

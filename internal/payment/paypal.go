package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"store_api/internal/apperr"

	"github.com/plutov/paypal/v4"
	"github.com/shopspring/decimal"
)

const GatewayPayPal = "paypal"

// PayPalConfig configures the PayPal adapter. BaseURL overrides the Mode-derived API host.
type PayPalConfig struct {
	Mode      string // sandbox | live
	ClientID  string
	Secret    string
	BaseURL   string
	ReturnURL string
	CancelURL string
	WebhookID string
	Timeout   time.Duration
}

// PayPal implements Gateway against the PayPal Orders v2 API.
type PayPal struct {
	client    *paypal.Client
	returnURL string
	cancelURL string
	webhookID string

	mu          sync.Mutex
	tokenExpiry time.Time
}

func NewPayPal(cfg PayPalConfig) (*PayPal, error) {
	base := cfg.BaseURL
	if base == "" {
		base = paypal.APIBaseSandBox
		if cfg.Mode == "live" {
			base = paypal.APIBaseLive
		}
	}
	c, err := paypal.NewClient(cfg.ClientID, cfg.Secret, base)
	if err != nil {
		return nil, fmt.Errorf("paypal client: %w", err)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	c.SetHTTPClient(&http.Client{Timeout: timeout})
	return &PayPal{
		client:    c,
		returnURL: cfg.ReturnURL,
		cancelURL: cfg.CancelURL,
		webhookID: cfg.WebhookID,
	}, nil
}

func (p *PayPal) Name() string { return GatewayPayPal }

// authorize fetches an access token when none is cached or it is about to expire.
func (p *PayPal) authorize(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if time.Until(p.tokenExpiry) > time.Minute {
		return nil
	}
	tok, err := p.client.GetAccessToken(ctx)
	if err != nil {
		return err
	}
	p.tokenExpiry = time.Now().Add(time.Duration(tok.ExpiresIn) * time.Second)
	return nil
}

func (p *PayPal) CreateIntent(ctx context.Context, req IntentRequest) (*Intent, error) {
	if err := p.authorize(ctx); err != nil {
		return nil, &apperr.GatewayError{Op: "authorize", Err: err}
	}
	units := []paypal.PurchaseUnitRequest{{
		ReferenceID: req.InvoiceID,
		Amount: &paypal.PurchaseUnitAmount{
			Currency: strings.ToUpper(req.Currency),
			Value:    req.Amount.StringFixed(2),
		},
		CustomID:  req.CorrelationID,
		InvoiceID: req.InvoiceID,
	}}
	appCtx := &paypal.ApplicationContext{ReturnURL: p.returnURL, CancelURL: p.cancelURL}

	order, err := p.client.CreateOrder(ctx, paypal.OrderIntentCapture, units, nil, appCtx)
	if err != nil {
		return nil, &apperr.GatewayError{Op: "create order", Err: err}
	}
	intent := &Intent{ID: order.ID, Status: order.Status}
	for _, l := range order.Links {
		if l.Rel == "approve" || l.Rel == "payer-action" {
			intent.ApprovalURL = l.Href
			break
		}
	}
	return intent, nil
}

func (p *PayPal) Capture(ctx context.Context, intentID string) (*CaptureResult, error) {
	if err := p.authorize(ctx); err != nil {
		return nil, &apperr.GatewayError{Op: "authorize", Err: err}
	}
	resp, err := p.client.CaptureOrder(ctx, intentID, paypal.CaptureOrderRequest{})
	if err != nil {
		return nil, &apperr.GatewayError{Op: "capture order", Err: err}
	}

	res := &CaptureResult{IntentID: resp.ID, Status: resp.Status}
	if len(resp.PurchaseUnits) > 0 && resp.PurchaseUnits[0].Payments != nil &&
		len(resp.PurchaseUnits[0].Payments.Captures) > 0 {
		c := resp.PurchaseUnits[0].Payments.Captures[0]
		res.TransactionID = c.ID
		res.CorrelationID = c.CustomID
		if c.Amount != nil {
			res.Currency = c.Amount.Currency
			if v, err := decimal.NewFromString(c.Amount.Value); err == nil {
				res.Amount = v
			}
		}
	}
	return res, nil
}

// webhookBody is the subset of a PayPal webhook event used for capture notifications.
type webhookBody struct {
	ID        string `json:"id"`
	EventType string `json:"event_type"`
	Resource  struct {
		ID       string `json:"id"`
		Status   string `json:"status"`
		CustomID string `json:"custom_id"`
		Amount   struct {
			CurrencyCode string `json:"currency_code"`
			Value        string `json:"value"`
		} `json:"amount"`
		SupplementaryData struct {
			RelatedIDs struct {
				OrderID string `json:"order_id"`
			} `json:"related_ids"`
		} `json:"supplementary_data"`
	} `json:"resource"`
}

// ParseWebhook verifies the transmission signature with PayPal before trusting the body.
func (p *PayPal) ParseWebhook(ctx context.Context, header http.Header, body []byte) (*WebhookEvent, error) {
	if p.webhookID == "" {
		return nil, fmt.Errorf("%w: webhook id not configured", apperr.ErrUnauthorized)
	}
	if err := p.authorize(ctx); err != nil {
		return nil, &apperr.GatewayError{Op: "authorize", Err: err}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "/", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header = header.Clone()
	verdict, err := p.client.VerifyWebhookSignature(ctx, req, p.webhookID)
	if err != nil {
		return nil, &apperr.GatewayError{Op: "verify webhook", Err: err}
	}
	if verdict.VerificationStatus != "SUCCESS" {
		return nil, fmt.Errorf("%w: webhook signature %s", apperr.ErrUnauthorized, verdict.VerificationStatus)
	}

	var wb webhookBody
	if err := json.Unmarshal(body, &wb); err != nil {
		return nil, apperr.Invalid("body", "malformed webhook payload")
	}
	ev := &WebhookEvent{ID: wb.ID, Type: wb.EventType}
	if wb.EventType == WebhookCaptureCompleted {
		amount, _ := decimal.NewFromString(wb.Resource.Amount.Value)
		ev.Capture = &CaptureResult{
			IntentID:      wb.Resource.SupplementaryData.RelatedIDs.OrderID,
			Status:        wb.Resource.Status,
			CorrelationID: wb.Resource.CustomID,
			TransactionID: wb.Resource.ID,
			Amount:        amount,
			Currency:      wb.Resource.Amount.CurrencyCode,
		}
	}
	return ev, nil
}

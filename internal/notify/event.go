// Package notify publishes order lifecycle events to real-time subscribers.
// Emission is best-effort: callers never fail or roll back because of it.
package notify

import (
	"fmt"
	"strconv"
	"strings"

	"store_api/internal/model"
)

// Well-known channels every event is broadcast on.
const (
	ChannelOrders = "orders"
	ChannelAdmin  = "admin-notifications"
)

// Event names.
const (
	OrderPlaced = "order.placed"
	OrderPaid   = "order.paid"
)

// Event is the JSON message delivered to subscribers.
type Event struct {
	Name string  `json:"event"`
	Data Payload `json:"data"`
}

// Payload is a denormalized snapshot of committed order data.
type Payload struct {
	OrderID     string `json:"order_id"`
	OrderNumber string `json:"order_number"`
	Customer    string `json:"customer"`
	Email       string `json:"email"`
	Total       string `json:"total"`
	Status      string `json:"status"`
	Currency    string `json:"currency"`
	Message     string `json:"message"`

	TransactionID string `json:"transaction_id,omitempty"`
	Amount        string `json:"amount,omitempty"`
	PaymentStatus string `json:"payment_status,omitempty"`
}

// Key partitions events of one order together.
func (e Event) Key() string { return e.Data.OrderNumber }

// Validate rejects events that subscribers could not route.
func (e Event) Validate() error {
	if e.Name == "" {
		return fmt.Errorf("event name is required")
	}
	if e.Data.OrderID == "" || e.Data.OrderNumber == "" {
		return fmt.Errorf("order_id and order_number are required")
	}
	return nil
}

// NewOrderPlaced snapshots a freshly committed order.
func NewOrderPlaced(o *model.Order, customer model.User) Event {
	return Event{Name: OrderPlaced, Data: snapshot(o, customer, "A new order has been placed!")}
}

// NewOrderPaid snapshots an order together with the payment that settled it.
func NewOrderPaid(o *model.Order, customer model.User, p *model.Payment) Event {
	data := snapshot(o, customer, "The order has been paid successfully!")
	data.TransactionID = p.TransactionID
	data.Amount = p.Amount.StringFixed(2)
	data.PaymentStatus = string(p.Status)
	return Event{Name: OrderPaid, Data: data}
}

func snapshot(o *model.Order, customer model.User, msg string) Payload {
	return Payload{
		OrderID:     strconv.FormatUint(uint64(o.ID), 10),
		OrderNumber: o.OrderNumber,
		Customer:    customer.FullName(),
		Email:       customer.Email,
		Total:       o.Total.StringFixed(2),
		Status:      capitalize(string(o.Status)),
		Currency:    strings.ToUpper(o.Currency),
		Message:     msg,
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusProcessing, OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled:
		return true
	}
	return false
}

// Terminal statuses cannot be left once reached.
func (s OrderStatus) Terminal() bool {
	return s == OrderStatusDelivered || s == OrderStatusCancelled
}

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusFailed    PaymentStatus = "failed"
)

func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentStatusPending, PaymentStatusCompleted, PaymentStatusFailed:
		return true
	}
	return false
}

type Address struct {
	Street  string `json:"street"`
	City    string `json:"city"`
	State   string `json:"state"`
	ZipCode string `json:"zip_code"`
	Country string `json:"country"`
}

// Complete reports whether every address field is set.
func (a Address) Complete() bool {
	return a.Street != "" && a.City != "" && a.State != "" && a.ZipCode != "" && a.Country != ""
}

// OrderItem is immutable once the order exists. Name and Image are
// denormalized from the catalog at purchase time.
type OrderItem struct {
	ProductID   string          `json:"product_id"`
	ProductName string          `json:"product_name"`
	Image       string          `json:"image,omitempty"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
}

func (i OrderItem) Subtotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

type Order struct {
	ID              uuid.UUID       `json:"id"`
	UserID          string          `json:"user_id"`
	Items           []OrderItem     `json:"items"`
	Total           decimal.Decimal `json:"total"`
	Currency        string          `json:"currency"`
	Status          OrderStatus     `json:"status"`
	PaymentStatus   PaymentStatus   `json:"payment_status"`
	PaymentMethod   string          `json:"payment_method,omitempty"`
	PaymentIntentID string          `json:"payment_intent_id,omitempty"`
	TrackingNumber  string          `json:"tracking_number,omitempty"`
	ShippingAddress Address         `json:"shipping_address"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// ComputeTotal sums the item subtotals.
func ComputeTotal(items []OrderItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.Subtotal())
	}
	return total
}

// StatusUpdate carries the admin-editable fields; nil means unchanged.
type StatusUpdate struct {
	Status         *OrderStatus
	PaymentStatus  *PaymentStatus
	TrackingNumber *string
}

// Apply validates u against o and applies it in place.
func (u StatusUpdate) Apply(o *Order) error {
	if u.Status != nil {
		if !u.Status.Valid() {
			return fmt.Errorf("%w: status %q", ErrInvalidStatus, *u.Status)
		}
		if o.Status.Terminal() && *u.Status != o.Status {
			return fmt.Errorf("%w: order is %s", ErrTerminalStatus, o.Status)
		}
	}
	if u.PaymentStatus != nil && !u.PaymentStatus.Valid() {
		return fmt.Errorf("%w: payment status %q", ErrInvalidStatus, *u.PaymentStatus)
	}

	if u.Status != nil {
		o.Status = *u.Status
	}
	if u.PaymentStatus != nil {
		o.PaymentStatus = *u.PaymentStatus
	}
	if u.TrackingNumber != nil {
		o.TrackingNumber = *u.TrackingNumber
	}
	o.UpdatedAt = time.Now().UTC()
	return nil
}

// OrderPlacedEvent is the outbox payload written with every new order.
type OrderPlacedEvent struct {
	OrderID  uuid.UUID       `json:"order_id"`
	UserID   string          `json:"user_id"`
	Items    []OrderItem     `json:"items"`
	Total    decimal.Decimal `json:"total"`
	Currency string          `json:"currency"`
	PlacedAt time.Time       `json:"placed_at"`
}

const EventOrderPlaced = "order.placed"

func NewOrderPlacedEvent(o *Order) OrderPlacedEvent {
	return OrderPlacedEvent{
		OrderID:  o.ID,
		UserID:   o.UserID,
		Items:    o.Items,
		Total:    o.Total,
		Currency: o.Currency,
		PlacedAt: o.CreatedAt,
	}
}

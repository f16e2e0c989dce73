package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentStatus moves forward only: pending → processing → completed|failed.
// A failed order may re-enter processing for a new attempt.
type PaymentStatus string

const (
	PaymentPending    PaymentStatus = "pending"
	PaymentProcessing PaymentStatus = "processing"
	PaymentCompleted  PaymentStatus = "completed"
	PaymentFailed     PaymentStatus = "failed"
)

// CanTransition reports whether from → to is a legal ledger write.
// processing → processing is the reclaim of a stale attempt.
func CanTransition(from, to PaymentStatus) bool {
	switch from {
	case PaymentPending, PaymentFailed:
		return to == PaymentProcessing
	case PaymentProcessing:
		return to == PaymentProcessing || to == PaymentCompleted || to == PaymentFailed
	default:
		return false
	}
}

// Fulfillment statuses, driven by the back office.
const (
	OrderPending   = "pending"
	OrderPreparing = "preparing"
	OrderReady     = "ready"
	OrderPickedUp  = "picked_up"
	OrderCancelled = "cancelled"
)

var fulfillmentFlow = map[string][]string{
	OrderPending:   {OrderPreparing, OrderCancelled},
	OrderPreparing: {OrderReady, OrderCancelled},
	OrderReady:     {OrderPickedUp},
}

// CanAdvance reports whether the fulfillment status may move from → to.
func CanAdvance(from, to string) bool {
	for _, next := range fulfillmentFlow[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Payment method tags.
const (
	MethodCard      = "card"
	MethodApplePay  = "apple_pay"
	MethodGooglePay = "google_pay"
)

// OrderItem is one priced cart line, snapshotted at order creation.
type OrderItem struct {
	ID        uint            `json:"id"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	TaxRate   decimal.Decimal `json:"taxRate"`
	Quantity  int             `json:"quantity"`
}

// Order is the ledger row for a cart and its payment lifecycle.
// Total is the server-computed amount owed; DisplayTotal is what the client
// showed and is never charged.
type Order struct {
	ID              uint            `gorm:"primaryKey" json:"id"`
	UserID          uint            `gorm:"not null;index" json:"userId"`
	Items           []OrderItem     `gorm:"serializer:json;type:text" json:"items"`
	Subtotal        decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"subtotal"`
	Tax             decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"tax"`
	Total           decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"total"`
	DisplayTotal    decimal.Decimal `gorm:"type:decimal(12,2)" json:"displayTotal"`
	Status          string          `gorm:"size:20;not null;default:pending" json:"status"`
	PaymentStatus   PaymentStatus   `gorm:"size:20;not null;default:pending;index" json:"paymentStatus"`
	PaymentAttempts int             `gorm:"not null;default:0" json:"paymentAttempts"`
	TransactionID   *string         `gorm:"size:100" json:"transactionId"`
	PaymentMethod   *string         `gorm:"size:20" json:"paymentMethod"`
	DeliveryMethod  string          `gorm:"size:30" json:"deliveryMethod"`
	DeliveryData    map[string]any  `gorm:"serializer:json;type:text" json:"deliveryData,omitempty"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `gorm:"index" json:"updatedAt"`
}

package models

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

// OrderStatus represents the status of an order
type OrderStatus string

const (
	OrderPending           OrderStatus = "PENDING"
	OrderConfirmed         OrderStatus = "CONFIRMED"
	OrderCancelled         OrderStatus = "CANCELLED"
	OrderRefunded          OrderStatus = "REFUNDED"
	OrderPartiallyRefunded OrderStatus = "PARTIALLY_REFUNDED"
)

// DefaultCurrency is the only currency the gateway is configured for.
const DefaultCurrency = "PHP"

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderPending:           {OrderConfirmed, OrderCancelled},
	OrderConfirmed:         {OrderRefunded, OrderPartiallyRefunded},
	OrderPartiallyRefunded: {OrderRefunded},
}

// CanTransition reports whether an order may move from one status to another.
func CanTransition(from, to OrderStatus) bool {
	for _, allowed := range orderTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderPending, OrderConfirmed, OrderCancelled, OrderRefunded, OrderPartiallyRefunded:
		return true
	}
	return false
}

func (s OrderStatus) DisplayName() string {
	switch s {
	case OrderPending:
		return "Awaiting payment"
	case OrderConfirmed:
		return "Confirmed"
	case OrderCancelled:
		return "Cancelled"
	case OrderRefunded:
		return "Refunded"
	case OrderPartiallyRefunded:
		return "Partially refunded"
	default:
		return "Unknown"
	}
}

// Order represents a buyer's checkout for one event within one tenant
type Order struct {
	ID               int         `json:"id" db:"id"`
	OrderNumber      string      `json:"order_number" db:"order_number"`
	TenantID         int         `json:"tenant_id" db:"tenant_id"`
	EventID          int         `json:"event_id" db:"event_id"`
	UserID           int         `json:"user_id" db:"user_id"`
	Status           OrderStatus `json:"status" db:"status"`
	SubtotalAmount   int64       `json:"subtotal_amount" db:"subtotal_amount"`
	DiscountAmount   int64       `json:"discount_amount" db:"discount_amount"`
	TotalAmount      int64       `json:"total_amount" db:"total_amount"`
	Currency         string      `json:"currency" db:"currency"`
	ExpiresAt        *time.Time  `json:"expires_at,omitempty" db:"expires_at"`
	PaymentSessionID *string     `json:"payment_session_id,omitempty" db:"payment_session_id"`
	PaymentID        *string     `json:"payment_id,omitempty" db:"payment_id"`
	PaymentMethod    *string     `json:"payment_method,omitempty" db:"payment_method"`
	ContactEmail     string      `json:"contact_email" db:"contact_email"`
	ContactPhone     string      `json:"contact_phone" db:"contact_phone"`
	PromotionID      *int        `json:"promotion_id,omitempty" db:"promotion_id"`
	VoucherCodeID    *int        `json:"voucher_code_id,omitempty" db:"voucher_code_id"`
	CreatedAt        time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time   `json:"updated_at" db:"updated_at"`
	CompletedAt      *time.Time  `json:"completed_at,omitempty" db:"completed_at"`
	CancelledAt      *time.Time  `json:"cancelled_at,omitempty" db:"cancelled_at"`

	Items []OrderItem `json:"items,omitempty"`
}

// OrderItem snapshots the unit price resolved when the order was created.
type OrderItem struct {
	ID           int   `json:"id" db:"id"`
	OrderID      int   `json:"order_id" db:"order_id"`
	TicketTypeID int   `json:"ticket_type_id" db:"ticket_type_id"`
	PriceTierID  *int  `json:"price_tier_id,omitempty" db:"price_tier_id"`
	Quantity     int   `json:"quantity" db:"quantity"`
	UnitPrice    int64 `json:"unit_price" db:"unit_price"`
	TotalPrice   int64 `json:"total_price" db:"total_price"`
}

// PendingAttendee is the holder data for one ticket unit, captured while the
// order waits for payment and copied onto the ticket at confirmation.
type PendingAttendee struct {
	TicketTypeID int    `json:"ticket_type_id" db:"ticket_type_id"`
	Position     int    `json:"position" db:"position"`
	Name         string `json:"name" db:"name"`
	Email        string `json:"email" db:"email"`
	Phone        string `json:"phone" db:"phone"`
}

// PaymentDetails describes a paid gateway payment used to confirm an order.
type PaymentDetails struct {
	PaymentID string    `json:"payment_id"`
	Amount    int64     `json:"amount"`
	Method    string    `json:"method"`
	PaidAt    time.Time `json:"paid_at"`
}

var orderNumberRegex = regexp.MustCompile(`^ORD-\d{8}-[0-9A-HJKMNP-TV-Z]{8}$`)

// GenerateOrderNumber returns ORD-YYYYMMDD-XXXXXXXX using the random tail of a ULID.
func GenerateOrderNumber(now time.Time) string {
	id := ulid.MustNew(ulid.Timestamp(now), ulid.DefaultEntropy()).String()
	return fmt.Sprintf("ORD-%s-%s", now.UTC().Format("20060102"), id[len(id)-8:])
}

func ValidOrderNumber(s string) bool {
	return orderNumberRegex.MatchString(s)
}

func (o *Order) IsPending() bool {
	return o.Status == OrderPending
}

func (o *Order) IsConfirmed() bool {
	return o.Status == OrderConfirmed
}

// IsLive reports whether a pending order is still inside its hold window.
func (o *Order) IsLive(now time.Time) bool {
	return o.IsPending() && o.ExpiresAt != nil && now.Before(*o.ExpiresAt)
}

func (o *Order) IsExpired(now time.Time) bool {
	return o.IsPending() && o.ExpiresAt != nil && !now.Before(*o.ExpiresAt)
}

func (o *Order) CanBeCancelled() bool {
	return CanTransition(o.Status, OrderCancelled)
}

// TicketCount is the number of tickets the order issues on confirmation.
func (o *Order) TicketCount() int {
	n := 0
	for _, item := range o.Items {
		n += item.Quantity
	}
	return n
}

// Validate checks the amount invariants of a freshly priced order.
func (o *Order) Validate() error {
	if !o.Status.Valid() {
		return errors.New("invalid order status")
	}
	if o.OrderNumber != "" && !ValidOrderNumber(o.OrderNumber) {
		return fmt.Errorf("malformed order number %q", o.OrderNumber)
	}
	if len(o.Items) == 0 {
		return errors.New("order must contain at least one item")
	}
	var subtotal int64
	for _, item := range o.Items {
		if err := ValidateLineQuantity(item.Quantity); err != nil {
			return err
		}
		if item.TotalPrice != item.UnitPrice*int64(item.Quantity) {
			return fmt.Errorf("item total for ticket type %d does not match unit price", item.TicketTypeID)
		}
		subtotal += item.TotalPrice
	}
	if subtotal != o.SubtotalAmount {
		return errors.New("subtotal does not match order items")
	}
	if o.DiscountAmount < 0 || o.DiscountAmount > o.SubtotalAmount {
		return errors.New("discount out of range")
	}
	if o.TotalAmount != o.SubtotalAmount-o.DiscountAmount {
		return errors.New("total does not equal subtotal minus discount")
	}
	if o.IsPending() != (o.ExpiresAt != nil) {
		return errors.New("expiry must be set exactly while pending")
	}
	return nil
}

// ValidateAttendees checks that every attendee maps to a ticket unit of the order.
func (o *Order) ValidateAttendees(attendees []PendingAttendee) error {
	units := make(map[int]int)
	for _, item := range o.Items {
		units[item.TicketTypeID] += item.Quantity
	}
	seen := make(map[[2]int]bool)
	for _, a := range attendees {
		if strings.TrimSpace(a.Name) == "" {
			return fmt.Errorf("%w: attendee name is required", ErrInvalidAttendees)
		}
		if a.Position < 0 || a.Position >= units[a.TicketTypeID] {
			return fmt.Errorf("%w: no ticket unit %d for ticket type %d", ErrInvalidAttendees, a.Position, a.TicketTypeID)
		}
		key := [2]int{a.TicketTypeID, a.Position}
		if seen[key] {
			return fmt.Errorf("%w: duplicate attendee for ticket unit %d", ErrInvalidAttendees, a.Position)
		}
		seen[key] = true
	}
	return nil
}

package models

import "time"

const (
	MinLineQuantity = 1
	MaxLineQuantity = 10
)

// Cart holds one buyer's selections for one tenant.
type Cart struct {
	ID        int        `json:"id" db:"id"`
	UserID    int        `json:"user_id" db:"user_id"`
	TenantID  int        `json:"tenant_id" db:"tenant_id"`
	Items     []CartItem `json:"items"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt time.Time  `json:"updated_at" db:"updated_at"`
}

// CartItem represents a line in the shopping cart
type CartItem struct {
	ID           int  `json:"id" db:"id"`
	CartID       int  `json:"cart_id" db:"cart_id"`
	EventID      int  `json:"event_id" db:"event_id"`
	TicketTypeID int  `json:"ticket_type_id" db:"ticket_type_id"`
	PriceTierID  *int `json:"price_tier_id,omitempty" db:"price_tier_id"`
	Quantity     int  `json:"quantity" db:"quantity"`
}

// IsExpired reports whether the cart went unmodified for longer than ttl.
func (c *Cart) IsExpired(now time.Time, ttl time.Duration) bool {
	return now.Sub(c.UpdatedAt) > ttl
}

// ExpiresAt is when the cart becomes logically empty.
func (c *Cart) ExpiresAt(ttl time.Duration) time.Time {
	return c.UpdatedAt.Add(ttl)
}

// SameLine reports whether two items would merge into one cart row.
func (i CartItem) SameLine(ticketTypeID int, priceTierID *int) bool {
	if i.TicketTypeID != ticketTypeID {
		return false
	}
	if i.PriceTierID == nil || priceTierID == nil {
		return i.PriceTierID == nil && priceTierID == nil
	}
	return *i.PriceTierID == *priceTierID
}

func ValidateLineQuantity(quantity int) error {
	if quantity < MinLineQuantity || quantity > MaxLineQuantity {
		return ErrInvalidQuantity
	}
	return nil
}

// MergeQuantity sums an existing line with an addition, capped at the line maximum.
func MergeQuantity(existing, added int) int {
	total := existing + added
	if total > MaxLineQuantity {
		return MaxLineQuantity
	}
	return total
}

// CartLineView is a priced cart line for display.
type CartLineView struct {
	CartItem
	TicketTypeName string `json:"ticket_type_name"`
	TierName       string `json:"tier_name,omitempty"`
	UnitPrice      int64  `json:"unit_price"`
	LineTotal      int64  `json:"line_total"`
	Available      bool   `json:"available"`
}

type CartEventGroup struct {
	EventID    int            `json:"event_id"`
	EventTitle string         `json:"event_title"`
	Lines      []CartLineView `json:"lines"`
	Subtotal   int64          `json:"subtotal"`
}

// CartView is the tenant cart grouped by event.
type CartView struct {
	CartID    int              `json:"cart_id,omitempty"`
	TenantID  int              `json:"tenant_id"`
	Groups    []CartEventGroup `json:"groups"`
	Subtotal  int64            `json:"subtotal"`
	ItemCount int              `json:"item_count"`
	ExpiresAt *time.Time       `json:"expires_at,omitempty"`
}

package models

import (
	"strings"
	"time"
)

type DiscountType string

const (
	DiscountPercent DiscountType = "PERCENT" // value in basis points out of 10000
	DiscountFixed   DiscountType = "FIXED"   // value in minor units
)

type PromotionScope string

const (
	ScopeOrder PromotionScope = "ORDER"
	ScopeItem  PromotionScope = "ITEM"
)

// BasisPoints is the denominator for percent discounts.
const BasisPoints = 10000

type Promotion struct {
	ID             int            `json:"id" db:"id"`
	TenantID       int            `json:"tenant_id" db:"tenant_id"`
	Name           string         `json:"name" db:"name"`
	DiscountType   DiscountType   `json:"discount_type" db:"discount_type"`
	DiscountValue  int64          `json:"discount_value" db:"discount_value"`
	Scope          PromotionScope `json:"scope" db:"scope"`
	RequiresCode   bool           `json:"requires_code" db:"requires_code"`
	ValidFrom      *time.Time     `json:"valid_from,omitempty" db:"valid_from"`
	ValidUntil     *time.Time     `json:"valid_until,omitempty" db:"valid_until"`
	MaxRedemptions *int           `json:"max_redemptions,omitempty" db:"max_redemptions"`
	MaxPerUser     *int           `json:"max_per_user,omitempty" db:"max_per_user"`
	RedeemedCount  int            `json:"redeemed_count" db:"redeemed_count"`
	// TicketTypeIDs lists the ticket types an ITEM scoped promotion discounts.
	TicketTypeIDs []int `json:"ticket_type_ids,omitempty"`
}

type VoucherCode struct {
	ID             int    `json:"id" db:"id"`
	PromotionID    int    `json:"promotion_id" db:"promotion_id"`
	TenantID       int    `json:"tenant_id" db:"tenant_id"`
	Code           string `json:"code" db:"code"`
	MaxRedemptions *int   `json:"max_redemptions,omitempty" db:"max_redemptions"`
	RedeemedCount  int    `json:"redeemed_count" db:"redeemed_count"`
}

// PromotionRedemption reserves one use of a promotion for an order.
type PromotionRedemption struct {
	PromotionID    int   `json:"promotion_id"`
	VoucherCodeID  *int  `json:"voucher_code_id,omitempty"`
	UserID         int   `json:"user_id"`
	DiscountAmount int64 `json:"discount_amount"`
}

// InWindow checks validFrom <= at <= validUntil with open bounds.
func (p *Promotion) InWindow(at time.Time) bool {
	if p.ValidFrom != nil && at.Before(*p.ValidFrom) {
		return false
	}
	if p.ValidUntil != nil && at.After(*p.ValidUntil) {
		return false
	}
	return true
}

func (p *Promotion) Exhausted() bool {
	return p.MaxRedemptions != nil && p.RedeemedCount >= *p.MaxRedemptions
}

// AppliesTo reports whether an ITEM scoped promotion targets the ticket type.
// ORDER scoped promotions apply to every line.
func (p *Promotion) AppliesTo(ticketTypeID int) bool {
	if p.Scope == ScopeOrder {
		return true
	}
	for _, id := range p.TicketTypeIDs {
		if id == ticketTypeID {
			return true
		}
	}
	return false
}

func (v *VoucherCode) Exhausted() bool {
	return v.MaxRedemptions != nil && v.RedeemedCount >= *v.MaxRedemptions
}

// NormalizeVoucherCode trims and upper-cases a buyer supplied code.
func NormalizeVoucherCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

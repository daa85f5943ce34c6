package services

import (
	"sort"
	"time"

	"ticketing-checkout/internal/models"
)

// PricedLine is one order line after authoritative price resolution.
type PricedLine struct {
	TicketTypeID int
	PriceTierID  *int
	Quantity     int
	UnitPrice    int64
}

func (l PricedLine) Total() int64 {
	return l.UnitPrice * int64(l.Quantity)
}

// ResolvePrice returns the price a single ticket of tt costs at the given time
// and the tier that produced it, or nil when the base price applies.
func ResolvePrice(tt *models.TicketType, tiers []*models.PriceTier, at time.Time) (int64, *models.PriceTier) {
	return ResolvePriceForQuantity(tt, tiers, at, 1)
}

// ResolvePriceForQuantity is ResolvePrice for a line of quantity units. An
// allocation tier only matches when it can cover the whole line.
func ResolvePriceForQuantity(tt *models.TicketType, tiers []*models.PriceTier, at time.Time, quantity int) (int64, *models.PriceTier) {
	ordered := make([]*models.PriceTier, 0, len(tiers))
	for _, tier := range tiers {
		if tier != nil && tier.TicketTypeID == tt.ID {
			ordered = append(ordered, tier)
		}
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Priority > ordered[j].Priority
	})

	for _, tier := range ordered {
		if tier.ActiveFor(at, quantity) {
			return tier.Price, tier
		}
	}
	return tt.BasePrice, nil
}

// ValidatePromotion checks the window, the global and per-user caps and the
// voucher credential. userRedemptions is the buyer's current redemption count.
func ValidatePromotion(p *models.Promotion, v *models.VoucherCode, userRedemptions int, at time.Time) error {
	if p == nil {
		return models.ErrPromotionNotFound
	}
	if p.RequiresCode && v == nil {
		return models.ErrVoucherInvalid
	}
	if v != nil && v.PromotionID != p.ID {
		return models.ErrVoucherInvalid
	}
	if !p.InWindow(at) {
		return models.ErrPromotionNotApplicable
	}
	if p.Exhausted() {
		return models.ErrPromotionExhausted
	}
	if v != nil && v.Exhausted() {
		return models.ErrPromotionExhausted
	}
	if p.MaxPerUser != nil && userRedemptions >= *p.MaxPerUser {
		return models.ErrPromotionExhausted
	}
	return nil
}

// ApplyPromotion computes the discount a promotion grants on the lines.
// ORDER scope discounts the subtotal once. ITEM scope discounts only linked
// ticket types; a FIXED item discount is granted per ticket. The result never
// exceeds the discounted amount.
func ApplyPromotion(p *models.Promotion, lines []PricedLine) int64 {
	if p == nil {
		return 0
	}

	var eligible int64
	var units int64
	for _, line := range lines {
		if p.AppliesTo(line.TicketTypeID) {
			eligible += line.Total()
			units += int64(line.Quantity)
		}
	}
	if eligible <= 0 {
		return 0
	}

	var discount int64
	switch p.DiscountType {
	case models.DiscountPercent:
		discount = eligible * p.DiscountValue / models.BasisPoints
	case models.DiscountFixed:
		discount = p.DiscountValue
		if p.Scope == models.ScopeItem {
			discount = p.DiscountValue * units
		}
	}

	if discount > eligible {
		discount = eligible
	}
	if discount < 0 {
		discount = 0
	}
	return discount
}

// Subtotal sums the line totals.
func Subtotal(lines []PricedLine) int64 {
	var sum int64
	for _, l := range lines {
		sum += l.Total()
	}
	return sum
}

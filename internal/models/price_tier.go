package models

import (
	"errors"
	"strings"
	"time"
)

type TierStrategy string

const (
	TierTimeWindow TierStrategy = "TIME_WINDOW"
	TierAllocation TierStrategy = "ALLOCATION"
)

// PriceTier overrides a ticket type's base price while it is active.
type PriceTier struct {
	ID              int          `json:"id" db:"id"`
	TicketTypeID    int          `json:"ticket_type_id" db:"ticket_type_id"`
	Name            string       `json:"name" db:"name"`
	Strategy        TierStrategy `json:"strategy" db:"strategy"`
	Price           int64        `json:"price" db:"price"`
	Priority        int          `json:"priority" db:"priority"`
	StartsAt        *time.Time   `json:"starts_at,omitempty" db:"starts_at"`
	EndsAt          *time.Time   `json:"ends_at,omitempty" db:"ends_at"`
	AllocationTotal *int         `json:"allocation_total,omitempty" db:"allocation_total"`
	AllocationSold  int          `json:"allocation_sold" db:"allocation_sold"`
}

// ActiveFor reports whether the tier prices quantity units at time at.
// Open-ended window bounds match everything on that side.
func (p *PriceTier) ActiveFor(at time.Time, quantity int) bool {
	switch p.Strategy {
	case TierTimeWindow:
		if p.StartsAt != nil && at.Before(*p.StartsAt) {
			return false
		}
		if p.EndsAt != nil && at.After(*p.EndsAt) {
			return false
		}
		return true
	case TierAllocation:
		if p.AllocationTotal == nil {
			return false
		}
		return *p.AllocationTotal-p.AllocationSold >= quantity && quantity > 0
	default:
		return false
	}
}

func (p *PriceTier) IsAllocation() bool {
	return p.Strategy == TierAllocation
}

func (p *PriceTier) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return errors.New("price tier name is required")
	}
	if p.Price < 0 {
		return errors.New("tier price cannot be negative")
	}
	switch p.Strategy {
	case TierTimeWindow:
		if p.StartsAt != nil && p.EndsAt != nil && p.EndsAt.Before(*p.StartsAt) {
			return errors.New("tier window ends before it starts")
		}
	case TierAllocation:
		if p.AllocationTotal == nil || *p.AllocationTotal < 0 {
			return errors.New("allocation tier needs a non-negative allocation total")
		}
	default:
		return errors.New("invalid tier strategy")
	}
	return nil
}

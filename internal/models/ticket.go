package models

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// TicketStatus represents the status of an issued ticket
type TicketStatus string

const (
	TicketActive      TicketStatus = "ACTIVE"
	TicketCheckedIn   TicketStatus = "CHECKED_IN"
	TicketTransferred TicketStatus = "TRANSFERRED"
	TicketCancelled   TicketStatus = "CANCELLED"
	TicketExpired     TicketStatus = "EXPIRED"
)

type TicketKind string

const (
	KindGeneral TicketKind = "GENERAL"
	KindTable   TicketKind = "TABLE"
	KindSeat    TicketKind = "SEAT"
)

// TicketType is a purchasable admission category for an event.
type TicketType struct {
	ID            int        `json:"id" db:"id"`
	EventID       int        `json:"event_id" db:"event_id"`
	Name          string     `json:"name" db:"name"`
	Kind          TicketKind `json:"kind" db:"kind"`
	BasePrice     int64      `json:"base_price" db:"base_price"`         // minor units
	QuantityTotal *int       `json:"quantity_total" db:"quantity_total"` // nil = unlimited
	QuantitySold  int        `json:"quantity_sold" db:"quantity_sold"`
	SalesStart    *time.Time `json:"sales_start,omitempty" db:"sales_start"`
	SalesEnd      *time.Time `json:"sales_end,omitempty" db:"sales_end"`
	CreatedAt     time.Time  `json:"created_at" db:"created_at"`
}

// Ticket is one admitted unit, created when its order is confirmed.
type Ticket struct {
	ID           int          `json:"id" db:"id"`
	Code         string       `json:"code" db:"code"`
	OrderID      int          `json:"order_id" db:"order_id"`
	EventID      int          `json:"event_id" db:"event_id"`
	TicketTypeID int          `json:"ticket_type_id" db:"ticket_type_id"`
	Status       TicketStatus `json:"status" db:"status"`
	HolderName   *string      `json:"holder_name,omitempty" db:"holder_name"`
	HolderEmail  *string      `json:"holder_email,omitempty" db:"holder_email"`
	HolderPhone  *string      `json:"holder_phone,omitempty" db:"holder_phone"`
	CreatedAt    time.Time    `json:"created_at" db:"created_at"`
}

// Unlimited reports whether the ticket type has no stock cap.
func (tt *TicketType) Unlimited() bool {
	return tt.QuantityTotal == nil
}

// Remaining returns unsold stock, or -1 for unlimited ticket types.
func (tt *TicketType) Remaining() int {
	if tt.QuantityTotal == nil {
		return -1
	}
	if left := *tt.QuantityTotal - tt.QuantitySold; left > 0 {
		return left
	}
	return 0
}

// HasCapacityFor is the soft stock check used before an order exists.
func (tt *TicketType) HasCapacityFor(quantity int) bool {
	return tt.Unlimited() || tt.Remaining() >= quantity
}

func (tt *TicketType) IsSoldOut() bool {
	return !tt.Unlimited() && tt.Remaining() == 0
}

// IsOnSale checks the optional sales window.
func (tt *TicketType) IsOnSale(at time.Time) bool {
	if tt.SalesStart != nil && at.Before(*tt.SalesStart) {
		return false
	}
	if tt.SalesEnd != nil && at.After(*tt.SalesEnd) {
		return false
	}
	return true
}

// Validate validates the ticket type data
func (tt *TicketType) Validate() error {
	if strings.TrimSpace(tt.Name) == "" {
		return errors.New("ticket type name is required")
	}
	switch tt.Kind {
	case KindGeneral, KindTable, KindSeat:
	default:
		return errors.New("invalid ticket kind")
	}
	if tt.BasePrice < 0 {
		return errors.New("base price cannot be negative")
	}
	if tt.QuantityTotal != nil && *tt.QuantityTotal < 0 {
		return errors.New("quantity cannot be negative")
	}
	if tt.QuantityTotal != nil && tt.QuantitySold > *tt.QuantityTotal {
		return errors.New("quantity sold exceeds quantity total")
	}
	if tt.SalesStart != nil && tt.SalesEnd != nil && tt.SalesEnd.Before(*tt.SalesStart) {
		return errors.New("sales end must be after sales start")
	}
	return nil
}

// GenerateTicketCode returns a door-scannable code unique per ticket.
func GenerateTicketCode(eventID int) string {
	raw := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
	return fmt.Sprintf("TKT-%d-%s", eventID, raw[:16])
}

func (t *Ticket) IsActive() bool {
	return t.Status == TicketActive
}

func (t *Ticket) HasHolder() bool {
	return t.HolderName != nil && *t.HolderName != ""
}

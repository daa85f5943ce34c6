package models

import "time"

type EventStatus string

const (
	EventDraft     EventStatus = "draft"
	EventPublished EventStatus = "published"
	EventCancelled EventStatus = "cancelled"
)

type Event struct {
	ID        int         `json:"id" db:"id"`
	TenantID  int         `json:"tenant_id" db:"tenant_id"`
	Title     string      `json:"title" db:"title"`
	Venue     string      `json:"venue" db:"venue"`
	StartsAt  time.Time   `json:"starts_at" db:"starts_at"`
	Status    EventStatus `json:"status" db:"status"`
	CreatedAt time.Time   `json:"created_at" db:"created_at"`
}

// IsOnSale reports whether buyers may add the event's tickets to a cart.
func (e *Event) IsOnSale(now time.Time) bool {
	return e.Status == EventPublished && e.StartsAt.After(now)
}

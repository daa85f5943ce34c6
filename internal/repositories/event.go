package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"ticketing-checkout/internal/models"
)

type EventRepository struct {
	db *sql.DB
}

func NewEventRepository(db *sql.DB) *EventRepository {
	return &EventRepository{db: db}
}

func (r *EventRepository) GetByID(ctx context.Context, id int) (*models.Event, error) {
	e := &models.Event{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, tenant_id, title, venue, starts_at, status, created_at
		FROM events WHERE id = $1`, id,
	).Scan(&e.ID, &e.TenantID, &e.Title, &e.Venue, &e.StartsAt, &e.Status, &e.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrEventNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get event %d: %w", id, err)
	}
	return e, nil
}

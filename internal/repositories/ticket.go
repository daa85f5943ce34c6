package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"ticketing-checkout/internal/models"

	"github.com/lib/pq"
)

// TicketTypeRepository reads ticket types and their price tiers
type TicketTypeRepository struct {
	db *sql.DB
}

// NewTicketTypeRepository creates a new ticket type repository
func NewTicketTypeRepository(db *sql.DB) *TicketTypeRepository {
	return &TicketTypeRepository{db: db}
}

const ticketTypeColumns = `
	id, event_id, name, kind, base_price, quantity_total, quantity_sold, sales_start, sales_end, created_at`

func scanTicketType(row rowScanner) (*models.TicketType, error) {
	tt := &models.TicketType{}
	err := row.Scan(&tt.ID, &tt.EventID, &tt.Name, &tt.Kind, &tt.BasePrice,
		&tt.QuantityTotal, &tt.QuantitySold, &tt.SalesStart, &tt.SalesEnd, &tt.CreatedAt)
	if err != nil {
		return nil, err
	}
	return tt, nil
}

// GetByID retrieves a ticket type by ID
func (r *TicketTypeRepository) GetByID(ctx context.Context, id int) (*models.TicketType, error) {
	tt, err := scanTicketType(r.db.QueryRowContext(ctx,
		`SELECT `+ticketTypeColumns+` FROM ticket_types WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrTicketTypeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get ticket type %d: %w", id, err)
	}
	return tt, nil
}

// ListByEvent returns every ticket type of an event
func (r *TicketTypeRepository) ListByEvent(ctx context.Context, eventID int) ([]*models.TicketType, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+ticketTypeColumns+` FROM ticket_types WHERE event_id = $1 ORDER BY base_price, id`, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to list ticket types: %w", err)
	}
	defer rows.Close()

	var out []*models.TicketType
	for rows.Next() {
		tt, err := scanTicketType(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ticket type: %w", err)
		}
		out = append(out, tt)
	}
	return out, rows.Err()
}

// GetTiers returns the price tiers of the given ticket types keyed by ticket
// type, each slice ordered by priority descending.
func (r *TicketTypeRepository) GetTiers(ctx context.Context, ticketTypeIDs []int) (map[int][]*models.PriceTier, error) {
	tiers := make(map[int][]*models.PriceTier)
	if len(ticketTypeIDs) == 0 {
		return tiers, nil
	}

	ids := make([]int64, len(ticketTypeIDs))
	for i, id := range ticketTypeIDs {
		ids[i] = int64(id)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, ticket_type_id, name, strategy, price, priority,
		       starts_at, ends_at, allocation_total, allocation_sold
		FROM price_tiers
		WHERE ticket_type_id = ANY($1)
		ORDER BY ticket_type_id, priority DESC, id`, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("failed to get price tiers: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		p := &models.PriceTier{}
		if err := rows.Scan(&p.ID, &p.TicketTypeID, &p.Name, &p.Strategy, &p.Price, &p.Priority,
			&p.StartsAt, &p.EndsAt, &p.AllocationTotal, &p.AllocationSold); err != nil {
			return nil, fmt.Errorf("failed to scan price tier: %w", err)
		}
		tiers[p.TicketTypeID] = append(tiers[p.TicketTypeID], p)
	}
	return tiers, rows.Err()
}

// UpdateBasePrice changes the list price. Existing order items keep their snapshot.
func (r *TicketTypeRepository) UpdateBasePrice(ctx context.Context, id int, price int64) error {
	res, err := r.db.ExecContext(ctx, `UPDATE ticket_types SET base_price = $2 WHERE id = $1`, id, price)
	if err != nil {
		return fmt.Errorf("failed to update base price: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.ErrTicketTypeNotFound
	}
	return nil
}

package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"ticketing-checkout/internal/database"
	"ticketing-checkout/internal/models"
)

// CartRepository persists one cart per (user, tenant)
type CartRepository struct {
	db *sql.DB
}

// NewCartRepository creates a new cart repository
func NewCartRepository(db *sql.DB) *CartRepository {
	return &CartRepository{db: db}
}

// Get returns the user's cart for the tenant with its items, or nil if none exists.
func (r *CartRepository) Get(ctx context.Context, userID, tenantID int) (*models.Cart, error) {
	return r.getWhere(ctx, `user_id = $1 AND tenant_id = $2`, userID, tenantID)
}

// GetByID returns a cart with its items, or nil if none exists.
func (r *CartRepository) GetByID(ctx context.Context, cartID int) (*models.Cart, error) {
	return r.getWhere(ctx, `id = $1`, cartID)
}

func (r *CartRepository) getWhere(ctx context.Context, where string, args ...any) (*models.Cart, error) {
	c := &models.Cart{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, tenant_id, created_at, updated_at
		FROM carts WHERE `+where, args...,
	).Scan(&c.ID, &c.UserID, &c.TenantID, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cart: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, cart_id, event_id, ticket_type_id, price_tier_id, quantity
		FROM cart_items WHERE cart_id = $1 ORDER BY id`, c.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to get cart items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var it models.CartItem
		if err := rows.Scan(&it.ID, &it.CartID, &it.EventID, &it.TicketTypeID, &it.PriceTierID, &it.Quantity); err != nil {
			return nil, fmt.Errorf("failed to scan cart item: %w", err)
		}
		c.Items = append(c.Items, it)
	}
	return c, rows.Err()
}

// GetOrCreate lazily creates the cart on first add.
func (r *CartRepository) GetOrCreate(ctx context.Context, userID, tenantID int) (*models.Cart, error) {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO carts (user_id, tenant_id) VALUES ($1, $2)
		ON CONFLICT (user_id, tenant_id) DO NOTHING`, userID, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to create cart: %w", err)
	}
	return r.Get(ctx, userID, tenantID)
}

// AddOrMergeItem inserts a line or adds to the identical existing line, capped
// at the per-line maximum, and bumps the cart clock.
func (r *CartRepository) AddOrMergeItem(ctx context.Context, cartID int, item models.CartItem) (*models.CartItem, error) {
	out := item
	out.CartID = cartID
	err := database.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx, `
			INSERT INTO cart_items (cart_id, event_id, ticket_type_id, price_tier_id, quantity)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (cart_id, ticket_type_id, COALESCE(price_tier_id, 0))
			DO UPDATE SET quantity = LEAST(cart_items.quantity + EXCLUDED.quantity, $6)
			RETURNING id, quantity`,
			cartID, item.EventID, item.TicketTypeID, item.PriceTierID, item.Quantity, models.MaxLineQuantity,
		).Scan(&out.ID, &out.Quantity)
		if err != nil {
			return fmt.Errorf("failed to add cart item: %w", err)
		}
		return touchCart(ctx, tx, cartID)
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// GetItemForUser loads a cart line only if it belongs to the user's cart.
func (r *CartRepository) GetItemForUser(ctx context.Context, userID, itemID int) (*models.CartItem, error) {
	var it models.CartItem
	err := r.db.QueryRowContext(ctx, `
		SELECT ci.id, ci.cart_id, ci.event_id, ci.ticket_type_id, ci.price_tier_id, ci.quantity
		FROM cart_items ci
		JOIN carts c ON c.id = ci.cart_id
		WHERE ci.id = $1 AND c.user_id = $2`, itemID, userID,
	).Scan(&it.ID, &it.CartID, &it.EventID, &it.TicketTypeID, &it.PriceTierID, &it.Quantity)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrCartItemNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cart item: %w", err)
	}
	return &it, nil
}

// SetItemQuantity overwrites a line's quantity and bumps the cart clock.
func (r *CartRepository) SetItemQuantity(ctx context.Context, cartID, itemID, quantity int) error {
	return database.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `UPDATE cart_items SET quantity = $3 WHERE id = $1 AND cart_id = $2`,
			itemID, cartID, quantity)
		if err != nil {
			return fmt.Errorf("failed to update cart item: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return models.ErrCartItemNotFound
		}
		return touchCart(ctx, tx, cartID)
	})
}

// DeleteItem removes a line and bumps the cart clock.
func (r *CartRepository) DeleteItem(ctx context.Context, cartID, itemID int) error {
	return database.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM cart_items WHERE id = $1 AND cart_id = $2`, itemID, cartID); err != nil {
			return fmt.Errorf("failed to delete cart item: %w", err)
		}
		return touchCart(ctx, tx, cartID)
	})
}

// Clear empties the cart without bumping its clock.
func (r *CartRepository) Clear(ctx context.Context, cartID int) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM cart_items WHERE cart_id = $1`, cartID); err != nil {
		return fmt.Errorf("failed to clear cart: %w", err)
	}
	return nil
}

func touchCart(ctx context.Context, tx *sql.Tx, cartID int) error {
	if _, err := tx.ExecContext(ctx, `UPDATE carts SET updated_at = NOW() WHERE id = $1`, cartID); err != nil {
		return fmt.Errorf("failed to touch cart: %w", err)
	}
	return nil
}

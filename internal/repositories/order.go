package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"ticketing-checkout/internal/database"
	"ticketing-checkout/internal/models"

	"github.com/lib/pq"
)

// OrderRepository handles order data operations, including the confirmation
// transaction that moves inventory counters.
type OrderRepository struct {
	db *sql.DB
}

// NewOrderRepository creates a new order repository
func NewOrderRepository(db *sql.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// CreateOrderInput is everything written atomically when checkout starts.
type CreateOrderInput struct {
	Order      *models.Order
	Redemption *models.PromotionRedemption
	// ClearCartID drops every line of that cart in the same transaction.
	ClearCartID *int
}

// ConfirmOrderInput carries the paid payment and the tickets to issue.
type ConfirmOrderInput struct {
	OrderID int
	Payment models.PaymentDetails
	Tickets []*models.Ticket
	Now     time.Time
}

// OrderListFilter narrows organizer order listings.
type OrderListFilter struct {
	TenantID int
	Status   models.OrderStatus
	Limit    int
	Offset   int
}

const orderColumns = `
	id, order_number, tenant_id, event_id, user_id, status,
	subtotal_amount, discount_amount, total_amount, currency,
	expires_at, payment_session_id, payment_id, payment_method,
	contact_email, contact_phone, promotion_id, voucher_code_id,
	created_at, updated_at, completed_at, cancelled_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*models.Order, error) {
	o := &models.Order{}
	err := row.Scan(
		&o.ID, &o.OrderNumber, &o.TenantID, &o.EventID, &o.UserID, &o.Status,
		&o.SubtotalAmount, &o.DiscountAmount, &o.TotalAmount, &o.Currency,
		&o.ExpiresAt, &o.PaymentSessionID, &o.PaymentID, &o.PaymentMethod,
		&o.ContactEmail, &o.ContactPhone, &o.PromotionID, &o.VoucherCodeID,
		&o.CreatedAt, &o.UpdatedAt, &o.CompletedAt, &o.CancelledAt,
	)
	if err != nil {
		return nil, err
	}
	return o, nil
}

const (
	orderNumberConstraint = "orders_order_number_key"
	orderNumberAttempts   = 3
)

// CreatePending inserts a PENDING order with its items, reserves a promotion
// redemption when one applies, and clears the source cart. The cart row is
// locked first; if the buyer already holds a live pending order for the
// tenant, ErrPendingOrderExists is returned and nothing is written. An order
// number collision rolls back and retries with a fresh number.
func (r *OrderRepository) CreatePending(ctx context.Context, in CreateOrderInput) (*models.Order, error) {
	if in.Order == nil {
		return nil, fmt.Errorf("%w: order is required", models.ErrInvalidInput)
	}
	if err := in.Order.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrInvalidInput, err)
	}

	var created *models.Order
	var err error
	for attempt := 1; attempt <= orderNumberAttempts; attempt++ {
		err = database.WithTx(ctx, r.db, func(tx *sql.Tx) error {
			var txErr error
			created, txErr = createPendingTx(ctx, tx, in, models.GenerateOrderNumber(in.Order.CreatedAt))
			return txErr
		})
		if !isConstraintViolation(err, orderNumberConstraint) {
			break
		}
	}
	if err != nil {
		return nil, err
	}
	return created, nil
}

func createPendingTx(ctx context.Context, tx *sql.Tx, in CreateOrderInput, orderNumber string) (*models.Order, error) {
	o := in.Order
	if in.ClearCartID != nil {
		if _, err := tx.ExecContext(ctx, `SELECT id FROM carts WHERE id = $1 FOR UPDATE`, *in.ClearCartID); err != nil {
			return nil, fmt.Errorf("failed to lock cart: %w", err)
		}
	}
	var live bool
	err := tx.QueryRowContext(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM orders
			WHERE user_id = $1 AND tenant_id = $2 AND status = $3 AND expires_at > $4
		)`, o.UserID, o.TenantID, models.OrderPending, o.CreatedAt,
	).Scan(&live)
	if err != nil {
		return nil, fmt.Errorf("failed to check pending orders: %w", err)
	}
	if live {
		return nil, models.ErrPendingOrderExists
	}

	if in.Redemption != nil {
		if err := reserveRedemption(ctx, tx, in.Redemption); err != nil {
			return nil, err
		}
	}

	row := tx.QueryRowContext(ctx, `
		INSERT INTO orders (
			order_number, tenant_id, event_id, user_id, status,
			subtotal_amount, discount_amount, total_amount, currency, expires_at,
			contact_email, contact_phone, promotion_id, voucher_code_id, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $15)
		RETURNING `+orderColumns,
		orderNumber, o.TenantID, o.EventID, o.UserID, models.OrderPending,
		o.SubtotalAmount, o.DiscountAmount, o.TotalAmount, o.Currency, o.ExpiresAt,
		o.ContactEmail, o.ContactPhone, o.PromotionID, o.VoucherCodeID, o.CreatedAt,
	)
	created, err := scanOrder(row)
	if err != nil {
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	for _, item := range o.Items {
		item.OrderID = created.ID
		err := tx.QueryRowContext(ctx, `
			INSERT INTO order_items (order_id, ticket_type_id, price_tier_id, quantity, unit_price, total_price)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING id`,
			item.OrderID, item.TicketTypeID, item.PriceTierID, item.Quantity, item.UnitPrice, item.TotalPrice,
		).Scan(&item.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to create order item: %w", err)
		}
		created.Items = append(created.Items, item)
	}

	if in.Redemption != nil {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO promotion_redemptions (promotion_id, voucher_code_id, order_id, user_id, discount_amount)
			VALUES ($1, $2, $3, $4, $5)`,
			in.Redemption.PromotionID, in.Redemption.VoucherCodeID, created.ID, in.Redemption.UserID, in.Redemption.DiscountAmount,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to record promotion redemption: %w", err)
		}
	}

	if in.ClearCartID != nil {
		if _, err := tx.ExecContext(ctx, `DELETE FROM cart_items WHERE cart_id = $1`, *in.ClearCartID); err != nil {
			return nil, fmt.Errorf("failed to clear cart: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `UPDATE carts SET updated_at = NOW() WHERE id = $1`, *in.ClearCartID); err != nil {
			return nil, fmt.Errorf("failed to touch cart: %w", err)
		}
	}
	return created, nil
}

// reserveRedemption locks the promotion (and voucher) rows, re-checks the caps
// and bumps the counters. Per-user limits are evaluated under the same lock.
func reserveRedemption(ctx context.Context, tx *sql.Tx, red *models.PromotionRedemption) error {
	var maxRedemptions, maxPerUser sql.NullInt64
	var redeemed int64
	err := tx.QueryRowContext(ctx, `
		SELECT max_redemptions, max_per_user, redeemed_count
		FROM promotions WHERE id = $1 FOR UPDATE`, red.PromotionID,
	).Scan(&maxRedemptions, &maxPerUser, &redeemed)
	if errors.Is(err, sql.ErrNoRows) {
		return models.ErrPromotionNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to lock promotion: %w", err)
	}
	if maxRedemptions.Valid && redeemed >= maxRedemptions.Int64 {
		return models.ErrPromotionExhausted
	}

	if maxPerUser.Valid {
		var used int64
		err := tx.QueryRowContext(ctx, `
			SELECT COUNT(*) FROM promotion_redemptions
			WHERE promotion_id = $1 AND user_id = $2`, red.PromotionID, red.UserID,
		).Scan(&used)
		if err != nil {
			return fmt.Errorf("failed to count user redemptions: %w", err)
		}
		if used >= maxPerUser.Int64 {
			return models.ErrPromotionExhausted
		}
	}

	if red.VoucherCodeID != nil {
		res, err := tx.ExecContext(ctx, `
			UPDATE voucher_codes SET redeemed_count = redeemed_count + 1
			WHERE id = $1 AND promotion_id = $2
			  AND (max_redemptions IS NULL OR redeemed_count + 1 <= max_redemptions)`,
			*red.VoucherCodeID, red.PromotionID)
		if err != nil {
			return fmt.Errorf("failed to redeem voucher code: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return models.ErrPromotionExhausted
		}
	}

	if _, err := tx.ExecContext(ctx, `UPDATE promotions SET redeemed_count = redeemed_count + 1 WHERE id = $1`, red.PromotionID); err != nil {
		return fmt.Errorf("failed to redeem promotion: %w", err)
	}
	return nil
}

// GetByID retrieves an order with its items
func (r *OrderRepository) GetByID(ctx context.Context, id int) (*models.Order, error) {
	o, err := scanOrder(r.db.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get order %d: %w", id, err)
	}
	if o.Items, err = r.getItems(ctx, r.db, o.ID); err != nil {
		return nil, err
	}
	return o, nil
}

// GetByPaymentSessionID finds the order a checkout session was created for.
func (r *OrderRepository) GetByPaymentSessionID(ctx context.Context, sessionID string) (*models.Order, error) {
	o, err := scanOrder(r.db.QueryRowContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE payment_session_id = $1`, sessionID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get order by payment session: %w", err)
	}
	if o.Items, err = r.getItems(ctx, r.db, o.ID); err != nil {
		return nil, err
	}
	return o, nil
}

// GetPendingForUserTenant returns the newest PENDING order for the buyer in
// the tenant, or nil when there is none. Expired ones are returned too.
func (r *OrderRepository) GetPendingForUserTenant(ctx context.Context, userID, tenantID int) (*models.Order, error) {
	o, err := scanOrder(r.db.QueryRowContext(ctx, `
		SELECT `+orderColumns+` FROM orders
		WHERE user_id = $1 AND tenant_id = $2 AND status = $3
		ORDER BY created_at DESC
		LIMIT 1`, userID, tenantID, models.OrderPending))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get pending order: %w", err)
	}
	if o.Items, err = r.getItems(ctx, r.db, o.ID); err != nil {
		return nil, err
	}
	return o, nil
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (r *OrderRepository) getItems(ctx context.Context, q queryer, orderID int) ([]models.OrderItem, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, order_id, ticket_type_id, price_tier_id, quantity, unit_price, total_price
		FROM order_items WHERE order_id = $1 ORDER BY id`, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to get order items: %w", err)
	}
	defer rows.Close()

	var items []models.OrderItem
	for rows.Next() {
		var it models.OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.TicketTypeID, &it.PriceTierID, &it.Quantity, &it.UnitPrice, &it.TotalPrice); err != nil {
			return nil, fmt.Errorf("failed to scan order item: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// SetPaymentSession stores the gateway session and extends the hold window.
func (r *OrderRepository) SetPaymentSession(ctx context.Context, orderID int, sessionID string, expiresAt time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE orders SET payment_session_id = $2, expires_at = $3, updated_at = NOW()
		WHERE id = $1 AND status = $4`,
		orderID, sessionID, expiresAt, models.OrderPending)
	if err != nil {
		return fmt.Errorf("failed to set payment session: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return r.missingOrWrongState(ctx, orderID)
	}
	return nil
}

func (r *OrderRepository) missingOrWrongState(ctx context.Context, orderID int) error {
	var status models.OrderStatus
	err := r.db.QueryRowContext(ctx, `SELECT status FROM orders WHERE id = $1`, orderID).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return models.ErrOrderNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to read order status: %w", err)
	}
	return fmt.Errorf("%w: order is %s", models.ErrInvalidTransition, status)
}

// SaveAttendees replaces the attendee records of a pending order.
func (r *OrderRepository) SaveAttendees(ctx context.Context, orderID int, attendees []models.PendingAttendee) error {
	return database.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		var status models.OrderStatus
		err := tx.QueryRowContext(ctx, `SELECT status FROM orders WHERE id = $1 FOR UPDATE`, orderID).Scan(&status)
		if errors.Is(err, sql.ErrNoRows) {
			return models.ErrOrderNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to lock order: %w", err)
		}
		if status != models.OrderPending {
			return fmt.Errorf("%w: order is %s", models.ErrInvalidTransition, status)
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM order_attendees WHERE order_id = $1`, orderID); err != nil {
			return fmt.Errorf("failed to clear attendees: %w", err)
		}
		for _, a := range attendees {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO order_attendees (order_id, ticket_type_id, position, name, email, phone)
				VALUES ($1, $2, $3, $4, $5, $6)`,
				orderID, a.TicketTypeID, a.Position, a.Name, a.Email, a.Phone)
			if err != nil {
				return fmt.Errorf("failed to save attendee: %w", err)
			}
		}
		return nil
	})
}

func (r *OrderRepository) GetAttendees(ctx context.Context, orderID int) ([]models.PendingAttendee, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT ticket_type_id, position, name, email, phone
		FROM order_attendees WHERE order_id = $1
		ORDER BY ticket_type_id, position`, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to get attendees: %w", err)
	}
	defer rows.Close()

	var out []models.PendingAttendee
	for rows.Next() {
		var a models.PendingAttendee
		if err := rows.Scan(&a.TicketTypeID, &a.Position, &a.Name, &a.Email, &a.Phone); err != nil {
			return nil, fmt.Errorf("failed to scan attendee: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// Confirm is the only writer of the PENDING -> CONFIRMED edge. Inside one
// transaction it locks the order, increments stock counters with conditional
// updates, bulk inserts tickets and flips the status. A counter that would pass
// its cap aborts everything with ErrOversold. A concurrent winner makes this
// call return ErrAlreadyConfirmed.
func (r *OrderRepository) Confirm(ctx context.Context, in ConfirmOrderInput) (*models.Order, error) {
	var confirmed *models.Order
	err := database.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		var status models.OrderStatus
		err := tx.QueryRowContext(ctx, `SELECT status FROM orders WHERE id = $1 FOR UPDATE`, in.OrderID).Scan(&status)
		if errors.Is(err, sql.ErrNoRows) {
			return models.ErrOrderNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to lock order: %w", err)
		}
		switch status {
		case models.OrderPending:
		case models.OrderConfirmed:
			return models.ErrAlreadyConfirmed
		default:
			return fmt.Errorf("%w: order is %s", models.ErrInvalidTransition, status)
		}

		items, err := r.getItems(ctx, tx, in.OrderID)
		if err != nil {
			return err
		}
		if err := incrementInventory(ctx, tx, items); err != nil {
			return err
		}
		if err := insertTickets(ctx, tx, in.Tickets); err != nil {
			return err
		}

		row := tx.QueryRowContext(ctx, `
			UPDATE orders
			SET status = $2, completed_at = $3, expires_at = NULL,
			    payment_id = $4, payment_method = NULLIF($5, ''), updated_at = $3
			WHERE id = $1 AND status = $6
			RETURNING `+orderColumns,
			in.OrderID, models.OrderConfirmed, in.Now, in.Payment.PaymentID, in.Payment.Method, models.OrderPending)
		confirmed, err = scanOrder(row)
		if err != nil {
			return fmt.Errorf("failed to confirm order: %w", err)
		}
		confirmed.Items = items
		return nil
	})
	if err != nil {
		return nil, err
	}
	return confirmed, nil
}

func incrementInventory(ctx context.Context, tx *sql.Tx, items []models.OrderItem) error {
	for _, item := range items {
		res, err := tx.ExecContext(ctx, `
			UPDATE ticket_types SET quantity_sold = quantity_sold + $2
			WHERE id = $1 AND (quantity_total IS NULL OR quantity_sold + $2 <= quantity_total)`,
			item.TicketTypeID, item.Quantity)
		if err != nil {
			return fmt.Errorf("failed to increment ticket type %d: %w", item.TicketTypeID, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("%w: ticket type %d", models.ErrOversold, item.TicketTypeID)
		}

		if item.PriceTierID == nil {
			continue
		}
		// Time window tiers carry no counter, so only allocation rows match.
		res, err = tx.ExecContext(ctx, `
			UPDATE price_tiers SET allocation_sold = allocation_sold + $2
			WHERE id = $1 AND strategy = 'ALLOCATION' AND allocation_sold + $2 <= allocation_total`,
			*item.PriceTierID, item.Quantity)
		if err != nil {
			return fmt.Errorf("failed to increment price tier %d: %w", *item.PriceTierID, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			var strategy models.TierStrategy
			err := tx.QueryRowContext(ctx, `SELECT strategy FROM price_tiers WHERE id = $1`, *item.PriceTierID).Scan(&strategy)
			if err != nil && !errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("failed to read price tier %d: %w", *item.PriceTierID, err)
			}
			if strategy == models.TierAllocation {
				return fmt.Errorf("%w: price tier %d", models.ErrOversold, *item.PriceTierID)
			}
		}
	}
	return nil
}

func insertTickets(ctx context.Context, tx *sql.Tx, tickets []*models.Ticket) error {
	stmt, err := tx.PrepareContext(ctx, pq.CopyIn("tickets",
		"code", "order_id", "event_id", "ticket_type_id", "status",
		"holder_name", "holder_email", "holder_phone", "created_at"))
	if err != nil {
		return fmt.Errorf("failed to prepare ticket copy: %w", err)
	}
	for _, t := range tickets {
		if _, err := stmt.ExecContext(ctx, t.Code, t.OrderID, t.EventID, t.TicketTypeID, t.Status,
			t.HolderName, t.HolderEmail, t.HolderPhone, t.CreatedAt); err != nil {
			stmt.Close()
			return fmt.Errorf("failed to queue ticket: %w", err)
		}
	}
	if _, err := stmt.ExecContext(ctx); err != nil {
		stmt.Close()
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: ticket code collision", models.ErrDuplicateEntry)
		}
		return fmt.Errorf("failed to insert tickets: %w", err)
	}
	return stmt.Close()
}

// Cancel moves a PENDING order to CANCELLED and releases its promotion redemption.
func (r *OrderRepository) Cancel(ctx context.Context, orderID int, now time.Time) error {
	return r.cancel(ctx, orderID, now, false)
}

// CancelIfExpired cancels the order only while it is PENDING and past expires_at.
// It returns ErrInvalidTransition when the order was confirmed or re-extended.
func (r *OrderRepository) CancelIfExpired(ctx context.Context, orderID int, now time.Time) error {
	return r.cancel(ctx, orderID, now, true)
}

func (r *OrderRepository) cancel(ctx context.Context, orderID int, now time.Time, onlyExpired bool) error {
	query := `
		UPDATE orders SET status = $2, expires_at = NULL, cancelled_at = $3, updated_at = $3
		WHERE id = $1 AND status = $4`
	if onlyExpired {
		query += ` AND expires_at < $3`
	}
	query += ` RETURNING promotion_id, voucher_code_id`

	err := database.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		var promotionID, voucherID *int
		err := tx.QueryRowContext(ctx, query, orderID, models.OrderCancelled, now, models.OrderPending).Scan(&promotionID, &voucherID)
		if errors.Is(err, sql.ErrNoRows) {
			return errNoRowsCancelled
		}
		if err != nil {
			return fmt.Errorf("failed to cancel order: %w", err)
		}
		if promotionID == nil {
			return nil
		}
		return releaseRedemption(ctx, tx, orderID, *promotionID, voucherID)
	})
	if errors.Is(err, errNoRowsCancelled) {
		return r.missingOrWrongState(ctx, orderID)
	}
	return err
}

var errNoRowsCancelled = errors.New("no pending order cancelled")

func releaseRedemption(ctx context.Context, tx *sql.Tx, orderID, promotionID int, voucherID *int) error {
	res, err := tx.ExecContext(ctx, `DELETE FROM promotion_redemptions WHERE order_id = $1`, orderID)
	if err != nil {
		return fmt.Errorf("failed to release redemption: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE promotions SET redeemed_count = GREATEST(redeemed_count - 1, 0) WHERE id = $1`, promotionID); err != nil {
		return fmt.Errorf("failed to release promotion: %w", err)
	}
	if voucherID != nil {
		if _, err := tx.ExecContext(ctx,
			`UPDATE voucher_codes SET redeemed_count = GREATEST(redeemed_count - 1, 0) WHERE id = $1`, *voucherID); err != nil {
			return fmt.Errorf("failed to release voucher code: %w", err)
		}
	}
	return nil
}

// ListExpiredPending returns ids of PENDING orders whose hold ran out before now.
func (r *OrderRepository) ListExpiredPending(ctx context.Context, now time.Time, limit int) ([]int, error) {
	if limit <= 0 {
		limit = 500
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id FROM orders
		WHERE status = $1 AND expires_at < $2
		ORDER BY expires_at
		LIMIT $3`, models.OrderPending, now, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list expired orders: %w", err)
	}
	defer rows.Close()

	var ids []int
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan expired order: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// GetTickets returns the tickets issued for an order.
func (r *OrderRepository) GetTickets(ctx context.Context, orderID int) ([]*models.Ticket, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, code, order_id, event_id, ticket_type_id, status, holder_name, holder_email, holder_phone, created_at
		FROM tickets WHERE order_id = $1 ORDER BY id`, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to get tickets: %w", err)
	}
	defer rows.Close()

	var tickets []*models.Ticket
	for rows.Next() {
		t := &models.Ticket{}
		if err := rows.Scan(&t.ID, &t.Code, &t.OrderID, &t.EventID, &t.TicketTypeID, &t.Status,
			&t.HolderName, &t.HolderEmail, &t.HolderPhone, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan ticket: %w", err)
		}
		tickets = append(tickets, t)
	}
	return tickets, rows.Err()
}

// List returns a tenant's orders, newest first, with the total count.
func (r *OrderRepository) List(ctx context.Context, f OrderListFilter) ([]*models.Order, int, error) {
	if f.Limit <= 0 || f.Limit > 100 {
		f.Limit = 50
	}
	where := `WHERE tenant_id = $1`
	args := []any{f.TenantID}
	if f.Status != "" {
		args = append(args, f.Status)
		where += fmt.Sprintf(` AND status = $%d`, len(args))
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM orders `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count orders: %w", err)
	}

	args = append(args, f.Limit, f.Offset)
	rows, err := r.db.QueryContext(ctx, fmt.Sprintf(`SELECT `+orderColumns+` FROM orders %s
		ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, where, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list orders: %w", err)
	}
	defer rows.Close()

	var orders []*models.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, o)
	}
	return orders, total, rows.Err()
}

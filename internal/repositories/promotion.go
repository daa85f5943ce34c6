package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"ticketing-checkout/internal/models"

	"github.com/lib/pq"
)

// PromotionRepository reads promotions, voucher codes and redemption counts
type PromotionRepository struct {
	db *sql.DB
}

func NewPromotionRepository(db *sql.DB) *PromotionRepository {
	return &PromotionRepository{db: db}
}

const promotionColumns = `
	p.id, p.tenant_id, p.name, p.discount_type, p.discount_value, p.scope, p.requires_code,
	p.valid_from, p.valid_until, p.max_redemptions, p.max_per_user, p.redeemed_count,
	COALESCE(ARRAY(SELECT ticket_type_id FROM promotion_ticket_types WHERE promotion_id = p.id ORDER BY ticket_type_id), '{}')`

func scanPromotion(row rowScanner) (*models.Promotion, error) {
	p := &models.Promotion{}
	var targets pq.Int64Array
	err := row.Scan(&p.ID, &p.TenantID, &p.Name, &p.DiscountType, &p.DiscountValue, &p.Scope, &p.RequiresCode,
		&p.ValidFrom, &p.ValidUntil, &p.MaxRedemptions, &p.MaxPerUser, &p.RedeemedCount, &targets)
	if err != nil {
		return nil, err
	}
	for _, id := range targets {
		p.TicketTypeIDs = append(p.TicketTypeIDs, int(id))
	}
	return p, nil
}

// GetByVoucherCode resolves a code within a tenant to its promotion.
func (r *PromotionRepository) GetByVoucherCode(ctx context.Context, tenantID int, code string) (*models.Promotion, *models.VoucherCode, error) {
	v := &models.VoucherCode{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, promotion_id, tenant_id, code, max_redemptions, redeemed_count
		FROM voucher_codes
		WHERE tenant_id = $1 AND UPPER(code) = $2`, tenantID, models.NormalizeVoucherCode(code),
	).Scan(&v.ID, &v.PromotionID, &v.TenantID, &v.Code, &v.MaxRedemptions, &v.RedeemedCount)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, models.ErrVoucherInvalid
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get voucher code: %w", err)
	}

	p, err := scanPromotion(r.db.QueryRowContext(ctx,
		`SELECT `+promotionColumns+` FROM promotions p WHERE p.id = $1`, v.PromotionID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, models.ErrPromotionNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get promotion %d: %w", v.PromotionID, err)
	}
	return p, v, nil
}

// ListAutomatic returns code-less promotions of a tenant valid at the given time.
func (r *PromotionRepository) ListAutomatic(ctx context.Context, tenantID int, at time.Time) ([]*models.Promotion, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+promotionColumns+`
		FROM promotions p
		WHERE p.tenant_id = $1 AND p.requires_code = FALSE
		  AND (p.valid_from IS NULL OR p.valid_from <= $2)
		  AND (p.valid_until IS NULL OR p.valid_until >= $2)
		ORDER BY p.id`, tenantID, at)
	if err != nil {
		return nil, fmt.Errorf("failed to list promotions: %w", err)
	}
	defer rows.Close()

	var out []*models.Promotion
	for rows.Next() {
		p, err := scanPromotion(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan promotion: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// CountUserRedemptions counts the live redemptions a user holds for a promotion.
func (r *PromotionRepository) CountUserRedemptions(ctx context.Context, promotionID, userID int) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM promotion_redemptions WHERE promotion_id = $1 AND user_id = $2`,
		promotionID, userID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count redemptions: %w", err)
	}
	return n, nil
}

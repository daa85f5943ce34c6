package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"ticketing-checkout/internal/models"
)

// TenantRepository reads tenants and their member roles
type TenantRepository struct {
	db *sql.DB
}

func NewTenantRepository(db *sql.DB) *TenantRepository {
	return &TenantRepository{db: db}
}

func (r *TenantRepository) GetBySubdomain(ctx context.Context, subdomain string) (*models.Tenant, error) {
	t := &models.Tenant{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, subdomain, name, status, created_at
		FROM tenants WHERE subdomain = $1`, strings.ToLower(subdomain),
	).Scan(&t.ID, &t.Subdomain, &t.Name, &t.Status, &t.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrTenantNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get tenant %q: %w", subdomain, err)
	}
	return t, nil
}

// GetMemberRole returns the user's role in the tenant, or ErrForbidden when
// the user is not a member.
func (r *TenantRepository) GetMemberRole(ctx context.Context, tenantID, userID int) (models.Role, error) {
	var role models.Role
	err := r.db.QueryRowContext(ctx, `
		SELECT role FROM tenant_members WHERE tenant_id = $1 AND user_id = $2`, tenantID, userID,
	).Scan(&role)
	if errors.Is(err, sql.ErrNoRows) {
		return "", models.ErrForbidden
	}
	if err != nil {
		return "", fmt.Errorf("failed to get member role: %w", err)
	}
	return role, nil
}

package middleware

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"

	"ticketing-checkout/internal/models"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// TenantStore resolves tenants and organizer roles
type TenantStore interface {
	GetBySubdomain(ctx context.Context, subdomain string) (*models.Tenant, error)
	GetMemberRole(ctx context.Context, tenantID, userID int) (models.Role, error)
}

// TenantMiddleware scopes requests to one tenant storefront
type TenantMiddleware struct {
	tenants    TenantStore
	rootDomain string
}

func NewTenantMiddleware(tenants TenantStore, rootDomain string) *TenantMiddleware {
	return &TenantMiddleware{tenants: tenants, rootDomain: strings.ToLower(strings.TrimPrefix(rootDomain, "."))}
}

// ResolveTenant loads the tenant named by the {tenant} route parameter or,
// failing that, by the request host's subdomain.
func (m *TenantMiddleware) ResolveTenant(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sub := chi.URLParam(r, "tenant")
		if sub == "" {
			sub = m.subdomain(r.Host)
		}
		if sub == "" {
			writeError(w, http.StatusNotFound, "Organizer not found")
			return
		}

		tenant, err := m.tenants.GetBySubdomain(r.Context(), sub)
		if errors.Is(err, models.ErrTenantNotFound) || (err == nil && !tenant.IsActive()) {
			writeError(w, http.StatusNotFound, "Organizer not found")
			return
		}
		if err != nil {
			zerolog.Ctx(r.Context()).Error().Err(err).Str("tenant", sub).Msg("failed to resolve tenant")
			writeError(w, http.StatusInternalServerError, "Internal server error")
			return
		}

		ctx := context.WithValue(r.Context(), TenantContextKey, tenant)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m *TenantMiddleware) subdomain(host string) string {
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.ToLower(host)
	if m.rootDomain == "" || !strings.HasSuffix(host, "."+m.rootDomain) {
		return ""
	}
	sub := strings.TrimSuffix(host, "."+m.rootDomain)
	if sub == "www" || strings.Contains(sub, ".") {
		return ""
	}
	return sub
}

// RequireRole lets through signed-in members of the resolved tenant whose
// role ranks at least min.
func (m *TenantMiddleware) RequireRole(min models.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := GetUserFromContext(r.Context())
			tenant := GetTenantFromContext(r.Context())
			if user == nil {
				writeError(w, http.StatusUnauthorized, "Sign in to continue")
				return
			}
			if tenant == nil {
				writeError(w, http.StatusNotFound, "Organizer not found")
				return
			}

			role, err := m.tenants.GetMemberRole(r.Context(), tenant.ID, user.ID)
			if err != nil && !errors.Is(err, models.ErrForbidden) {
				zerolog.Ctx(r.Context()).Error().Err(err).Int("tenant_id", tenant.ID).Msg("failed to load member role")
				writeError(w, http.StatusInternalServerError, "Internal server error")
				return
			}
			if err != nil || !role.AtLeast(min) {
				writeError(w, http.StatusForbidden, "You do not have access to this organizer")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func WithTenant(ctx context.Context, tenant *models.Tenant) context.Context {
	return context.WithValue(ctx, TenantContextKey, tenant)
}

// GetTenantFromContext retrieves the resolved tenant from request context
func GetTenantFromContext(ctx context.Context) *models.Tenant {
	tenant, _ := ctx.Value(TenantContextKey).(*models.Tenant)
	return tenant
}

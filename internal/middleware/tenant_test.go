package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"ticketing-checkout/internal/models"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type mockTenants struct {
	mock.Mock
}

func (m *mockTenants) GetBySubdomain(ctx context.Context, subdomain string) (*models.Tenant, error) {
	args := m.Called(ctx, subdomain)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Tenant), args.Error(1)
}

func (m *mockTenants) GetMemberRole(ctx context.Context, tenantID, userID int) (models.Role, error) {
	args := m.Called(ctx, tenantID, userID)
	return args.Get(0).(models.Role), args.Error(1)
}

var acme = &models.Tenant{ID: 3, Subdomain: "acme", Name: "Acme Events", Status: models.TenantActive}

func TestResolveTenant_FromRouteParam(t *testing.T) {
	tenants := &mockTenants{}
	tenants.On("GetBySubdomain", mock.Anything, "acme").Return(acme, nil)
	mw := NewTenantMiddleware(tenants, "tickets.test")

	r := chi.NewRouter()
	r.With(mw.ResolveTenant).Get("/t/{tenant}/cart", func(w http.ResponseWriter, r *http.Request) {
		tenant := GetTenantFromContext(r.Context())
		w.Write([]byte(tenant.Name))
	})

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/t/acme/cart", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "Acme Events", rr.Body.String())
}

func TestResolveTenant_FromHost(t *testing.T) {
	tests := []struct {
		name   string
		host   string
		setup  func(m *mockTenants)
		status int
	}{
		{"subdomain", "acme.tickets.test", func(m *mockTenants) { m.On("GetBySubdomain", mock.Anything, "acme").Return(acme, nil) }, http.StatusOK},
		{"subdomain with port", "ACME.tickets.test:8080", func(m *mockTenants) { m.On("GetBySubdomain", mock.Anything, "acme").Return(acme, nil) }, http.StatusOK},
		{"bare root domain", "tickets.test", func(m *mockTenants) {}, http.StatusNotFound},
		{"www", "www.tickets.test", func(m *mockTenants) {}, http.StatusNotFound},
		{"foreign host", "acme.example.com", func(m *mockTenants) {}, http.StatusNotFound},
		{"unknown tenant", "ghost.tickets.test", func(m *mockTenants) {
			m.On("GetBySubdomain", mock.Anything, "ghost").Return(nil, models.ErrTenantNotFound)
		}, http.StatusNotFound},
		{"suspended tenant", "old.tickets.test", func(m *mockTenants) {
			m.On("GetBySubdomain", mock.Anything, "old").Return(&models.Tenant{ID: 9, Status: models.TenantSuspended}, nil)
		}, http.StatusNotFound},
		{"lookup failure", "acme.tickets.test", func(m *mockTenants) {
			m.On("GetBySubdomain", mock.Anything, "acme").Return(nil, errors.New("db down"))
		}, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tenants := &mockTenants{}
			tt.setup(tenants)
			mw := NewTenantMiddleware(tenants, "tickets.test")

			handler := mw.ResolveTenant(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.NotNil(t, GetTenantFromContext(r.Context()))
			}))
			req := httptest.NewRequest(http.MethodGet, "/cart", nil)
			req.Host = tt.host
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)

			assert.Equal(t, tt.status, rr.Code)
			tenants.AssertExpectations(t)
		})
	}
}

func TestRequireRole(t *testing.T) {
	tests := []struct {
		name   string
		user   *models.User
		role   models.Role
		err    error
		status int
	}{
		{"anonymous", nil, "", nil, http.StatusUnauthorized},
		{"owner", &models.User{ID: 1}, models.RoleOwner, nil, http.StatusOK},
		{"manager", &models.User{ID: 1}, models.RoleManager, nil, http.StatusOK},
		{"member", &models.User{ID: 1}, models.RoleMember, nil, http.StatusForbidden},
		{"not a member", &models.User{ID: 1}, "", models.ErrForbidden, http.StatusForbidden},
		{"lookup failure", &models.User{ID: 1}, "", errors.New("db down"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tenants := &mockTenants{}
			if tt.user != nil {
				tenants.On("GetMemberRole", mock.Anything, acme.ID, tt.user.ID).Return(tt.role, tt.err)
			}
			mw := NewTenantMiddleware(tenants, "tickets.test")

			handler := mw.RequireRole(models.RoleManager)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			ctx := WithTenant(req.Context(), acme)
			if tt.user != nil {
				ctx = WithUser(ctx, tt.user)
			}
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req.WithContext(ctx))

			assert.Equal(t, tt.status, rr.Code)
			tenants.AssertExpectations(t)
		})
	}
}

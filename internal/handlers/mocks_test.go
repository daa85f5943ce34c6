package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"

	"ticketing-checkout/internal/middleware"
	"ticketing-checkout/internal/models"
	"ticketing-checkout/internal/services"

	"github.com/stretchr/testify/mock"
)

type mockCart struct {
	mock.Mock
}

func (m *mockCart) AddItem(ctx context.Context, req services.AddCartItemRequest) (*models.CartItem, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.CartItem), args.Error(1)
}

func (m *mockCart) UpdateItem(ctx context.Context, userID, itemID, quantity int) error {
	return m.Called(ctx, userID, itemID, quantity).Error(0)
}

func (m *mockCart) RemoveItem(ctx context.Context, userID, itemID int) error {
	return m.Called(ctx, userID, itemID).Error(0)
}

func (m *mockCart) GetCartForTenant(ctx context.Context, userID, tenantID int) (*models.CartView, error) {
	args := m.Called(ctx, userID, tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.CartView), args.Error(1)
}

func (m *mockCart) QuoteEvent(ctx context.Context, tenantID, eventID int) ([]services.PriceQuote, error) {
	args := m.Called(ctx, tenantID, eventID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]services.PriceQuote), args.Error(1)
}

type mockCheckout struct {
	mock.Mock
}

func (m *mockCheckout) InitializeCheckout(ctx context.Context, user *models.User, tenantID int, voucherCode string) (*models.Order, error) {
	args := m.Called(ctx, user, tenantID, voucherCode)
	return orderArg(args, 0), args.Error(1)
}

func (m *mockCheckout) GetPendingOrderForTenant(ctx context.Context, userID, tenantID int) (*models.Order, error) {
	args := m.Called(ctx, userID, tenantID)
	return orderArg(args, 0), args.Error(1)
}

func (m *mockCheckout) CreatePaymentSession(ctx context.Context, userID, orderID int) (*services.PaymentSessionResult, error) {
	args := m.Called(ctx, userID, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.PaymentSessionResult), args.Error(1)
}

func (m *mockCheckout) SaveAttendees(ctx context.Context, userID, orderID int, attendees []models.PendingAttendee) error {
	return m.Called(ctx, userID, orderID, attendees).Error(0)
}

func (m *mockCheckout) ConfirmOrderFromPayment(ctx context.Context, orderID int, payment models.PaymentDetails) (*services.ConfirmationResult, error) {
	args := m.Called(ctx, orderID, payment)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.ConfirmationResult), args.Error(1)
}

func (m *mockCheckout) CancelOrder(ctx context.Context, userID, orderID int) error {
	return m.Called(ctx, userID, orderID).Error(0)
}

func (m *mockCheckout) VerifyAndConfirmPayment(ctx context.Context, userID, orderID int) (*services.VerificationResult, error) {
	args := m.Called(ctx, userID, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.VerificationResult), args.Error(1)
}

func (m *mockCheckout) GetOrderDetails(ctx context.Context, userID, orderID int) (*services.OrderDetails, error) {
	args := m.Called(ctx, userID, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.OrderDetails), args.Error(1)
}

func (m *mockCheckout) ListTenantOrders(ctx context.Context, tenantID int, status models.OrderStatus, limit, offset int) ([]*models.Order, int, error) {
	args := m.Called(ctx, tenantID, status, limit, offset)
	var orders []*models.Order
	if args.Get(0) != nil {
		orders = args.Get(0).([]*models.Order)
	}
	return orders, args.Int(1), args.Error(2)
}

func orderArg(args mock.Arguments, i int) *models.Order {
	if args.Get(i) == nil {
		return nil
	}
	return args.Get(i).(*models.Order)
}

type mockReaper struct {
	mock.Mock
}

func (m *mockReaper) CleanupAllExpiredOrders(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

type mockProcessor struct {
	mock.Mock
}

func (m *mockProcessor) HandleCheckoutPaid(ctx context.Context, event *services.WebhookEvent) error {
	return m.Called(ctx, event).Error(0)
}

var (
	testUser   = &models.User{ID: 11, Email: "buyer@example.com", FirstName: "Ana"}
	testTenant = &models.Tenant{ID: 3, Subdomain: "acme", Name: "Acme", Status: models.TenantActive}
)

// asBuyer injects the signed-in buyer and resolved tenant the way the
// middleware chain would.
func asBuyer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := middleware.WithUser(r.Context(), testUser)
		ctx = middleware.WithTenant(ctx, testTenant)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func do(h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

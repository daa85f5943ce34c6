package services

import (
	"context"
	"time"

	"ticketing-checkout/internal/models"
	"ticketing-checkout/internal/repositories"
)

// OrderRepository defines the order persistence used by the checkout service
type OrderRepository interface {
	CreatePending(ctx context.Context, in repositories.CreateOrderInput) (*models.Order, error)
	GetByID(ctx context.Context, id int) (*models.Order, error)
	GetByPaymentSessionID(ctx context.Context, sessionID string) (*models.Order, error)
	GetPendingForUserTenant(ctx context.Context, userID, tenantID int) (*models.Order, error)
	SetPaymentSession(ctx context.Context, orderID int, sessionID string, expiresAt time.Time) error
	SaveAttendees(ctx context.Context, orderID int, attendees []models.PendingAttendee) error
	GetAttendees(ctx context.Context, orderID int) ([]models.PendingAttendee, error)
	Confirm(ctx context.Context, in repositories.ConfirmOrderInput) (*models.Order, error)
	Cancel(ctx context.Context, orderID int, now time.Time) error
	CancelIfExpired(ctx context.Context, orderID int, now time.Time) error
	ListExpiredPending(ctx context.Context, now time.Time, limit int) ([]int, error)
	GetTickets(ctx context.Context, orderID int) ([]*models.Ticket, error)
	List(ctx context.Context, f repositories.OrderListFilter) ([]*models.Order, int, error)
}

// TicketTypeRepository defines ticket type and price tier reads
type TicketTypeRepository interface {
	GetByID(ctx context.Context, id int) (*models.TicketType, error)
	ListByEvent(ctx context.Context, eventID int) ([]*models.TicketType, error)
	GetTiers(ctx context.Context, ticketTypeIDs []int) (map[int][]*models.PriceTier, error)
}

type CartRepository interface {
	Get(ctx context.Context, userID, tenantID int) (*models.Cart, error)
	GetByID(ctx context.Context, cartID int) (*models.Cart, error)
	GetOrCreate(ctx context.Context, userID, tenantID int) (*models.Cart, error)
	AddOrMergeItem(ctx context.Context, cartID int, item models.CartItem) (*models.CartItem, error)
	GetItemForUser(ctx context.Context, userID, itemID int) (*models.CartItem, error)
	SetItemQuantity(ctx context.Context, cartID, itemID, quantity int) error
	DeleteItem(ctx context.Context, cartID, itemID int) error
	Clear(ctx context.Context, cartID int) error
}

type PromotionRepository interface {
	GetByVoucherCode(ctx context.Context, tenantID int, code string) (*models.Promotion, *models.VoucherCode, error)
	ListAutomatic(ctx context.Context, tenantID int, at time.Time) ([]*models.Promotion, error)
	CountUserRedemptions(ctx context.Context, promotionID, userID int) (int, error)
}

type EventRepository interface {
	GetByID(ctx context.Context, id int) (*models.Event, error)
}

type UserRepository interface {
	GetByID(ctx context.Context, id int) (*models.User, error)
}

// PaymentGateway is the hosted checkout provider
type PaymentGateway interface {
	CreateCheckoutSession(ctx context.Context, req CheckoutSessionRequest) (*CheckoutSession, error)
	RetrieveCheckoutSession(ctx context.Context, sessionID string) (*CheckoutSession, error)
}

// ConfirmationNotifier is told about every order that was confirmed
type ConfirmationNotifier interface {
	OrderConfirmed(orderID int)
}

// CartServiceInterface defines the interface for cart operations
type CartServiceInterface interface {
	AddItem(ctx context.Context, req AddCartItemRequest) (*models.CartItem, error)
	UpdateItem(ctx context.Context, userID, itemID, quantity int) error
	RemoveItem(ctx context.Context, userID, itemID int) error
	GetCartForTenant(ctx context.Context, userID, tenantID int) (*models.CartView, error)
	QuoteEvent(ctx context.Context, tenantID, eventID int) ([]PriceQuote, error)
}

// CheckoutServiceInterface defines the order lifecycle operations
type CheckoutServiceInterface interface {
	InitializeCheckout(ctx context.Context, user *models.User, tenantID int, voucherCode string) (*models.Order, error)
	GetPendingOrderForTenant(ctx context.Context, userID, tenantID int) (*models.Order, error)
	CreatePaymentSession(ctx context.Context, userID, orderID int) (*PaymentSessionResult, error)
	SaveAttendees(ctx context.Context, userID, orderID int, attendees []models.PendingAttendee) error
	ConfirmOrderFromPayment(ctx context.Context, orderID int, payment models.PaymentDetails) (*ConfirmationResult, error)
	CancelOrder(ctx context.Context, userID, orderID int) error
	VerifyAndConfirmPayment(ctx context.Context, userID, orderID int) (*VerificationResult, error)
	GetOrderDetails(ctx context.Context, userID, orderID int) (*OrderDetails, error)
	ListTenantOrders(ctx context.Context, tenantID int, status models.OrderStatus, limit, offset int) ([]*models.Order, int, error)
}

// ReaperInterface is the expired-order sweep
type ReaperInterface interface {
	CleanupAllExpiredOrders(ctx context.Context) (int, error)
}

// WebhookProcessor handles verified gateway events
type WebhookProcessor interface {
	HandleCheckoutPaid(ctx context.Context, event *WebhookEvent) error
}

package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"ticketing-checkout/internal/models"
	"ticketing-checkout/internal/repositories"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testTenant = 1

type harness struct {
	store    *memStore
	gateway  *fakeGateway
	notifier *recordingNotifier
	carts    *CartService
	checkout *CheckoutService
	event    *models.Event
	general  *models.TicketType
}

func newHarness(t *testing.T, stock *int, price int64) *harness {
	t.Helper()
	store := newMemStore()
	h := &harness{store: store, gateway: newFakeGateway(), notifier: &recordingNotifier{}}
	h.event = store.addEvent(testTenant, "Summer Fest")
	h.general = store.addTicketType(h.event.ID, "General", price, stock)

	h.carts = NewCartService(fakeCarts{store}, fakeTicketTypes{store}, fakeEvents{store}, 15*time.Minute, zerolog.Nop())
	h.checkout = NewCheckoutService(
		fakeOrders{store}, fakeCarts{store}, fakeTicketTypes{store}, fakePromotions{store}, fakeEvents{store},
		h.gateway, h.notifier,
		CheckoutConfig{BaseURL: "https://fest.example.com"},
		zerolog.Nop(),
	)
	return h
}

func buyer(id int) *models.User {
	return &models.User{ID: id, Email: fmt.Sprintf("buyer%d@example.com", id), FirstName: "Buyer", LastName: fmt.Sprint(id)}
}

func (h *harness) addToCart(t *testing.T, userID, ticketTypeID, qty int) {
	t.Helper()
	tt, err := fakeTicketTypes{h.store}.GetByID(context.Background(), ticketTypeID)
	require.NoError(t, err)
	_, err = h.carts.AddItem(context.Background(), AddCartItemRequest{
		UserID: userID, TenantID: testTenant, EventID: tt.EventID, TicketTypeID: ticketTypeID, Quantity: qty,
	})
	require.NoError(t, err)
}

func (h *harness) checkoutFor(t *testing.T, userID, qty int) *models.Order {
	t.Helper()
	h.addToCart(t, userID, h.general.ID, qty)
	order, err := h.checkout.InitializeCheckout(context.Background(), buyer(userID), testTenant, "")
	require.NoError(t, err)
	return order
}

func paid(order *models.Order) models.PaymentDetails {
	return models.PaymentDetails{PaymentID: fmt.Sprintf("pay_%d", order.ID), Amount: order.TotalAmount, Method: "card", PaidAt: time.Now()}
}

func TestInitializeCheckout_CreatesPricedPendingOrder(t *testing.T) {
	h := newHarness(t, intPtr(100), 7500)
	ctx := context.Background()
	now := time.Now()
	h.checkout.now = func() time.Time { return now }

	order := h.checkoutFor(t, 10, 3)

	assert.Equal(t, models.OrderPending, order.Status)
	assert.True(t, models.ValidOrderNumber(order.OrderNumber), order.OrderNumber)
	assert.Equal(t, int64(22500), order.SubtotalAmount)
	assert.Equal(t, int64(22500), order.TotalAmount)
	assert.Equal(t, models.DefaultCurrency, order.Currency)
	require.NotNil(t, order.ExpiresAt)
	assert.WithinDuration(t, now.Add(15*time.Minute), *order.ExpiresAt, time.Second)
	require.Len(t, order.Items, 1)
	assert.Equal(t, int64(7500), order.Items[0].UnitPrice)
	assert.Equal(t, "buyer10@example.com", order.ContactEmail)

	view, err := h.carts.GetCartForTenant(ctx, 10, testTenant)
	require.NoError(t, err)
	assert.Zero(t, view.ItemCount, "cart is cleared by checkout")
	assert.Equal(t, 0, h.store.sold(h.general.ID), "stock is only taken at confirmation")
}

func TestInitializeCheckout_EmptyCart(t *testing.T) {
	h := newHarness(t, nil, 7500)
	_, err := h.checkout.InitializeCheckout(context.Background(), buyer(1), testTenant, "")
	assert.ErrorIs(t, err, models.ErrCartEmpty)
}

func TestInitializeCheckout_ResumesLivePendingOrder(t *testing.T) {
	h := newHarness(t, nil, 7500)
	first := h.checkoutFor(t, 1, 1)

	resumed, err := h.checkout.InitializeCheckout(context.Background(), buyer(1), testTenant, "")
	require.NoError(t, err)
	assert.Equal(t, first.ID, resumed.ID)
}

func TestInitializeCheckout_ExpiredCartIsEmpty(t *testing.T) {
	h := newHarness(t, nil, 7500)
	h.addToCart(t, 1, h.general.ID, 2)
	h.store.ageCart(1, testTenant, 16*time.Minute)

	_, err := h.checkout.InitializeCheckout(context.Background(), buyer(1), testTenant, "")
	assert.ErrorIs(t, err, models.ErrCartEmpty)
}

func TestInitializeCheckout_RejectsLinesOfSeveralEvents(t *testing.T) {
	h := newHarness(t, nil, 7500)
	other := h.store.addEvent(testTenant, "Winter Fest")
	vip := h.store.addTicketType(other.ID, "VIP", 20000, nil)

	h.addToCart(t, 1, h.general.ID, 1)
	h.addToCart(t, 1, vip.ID, 1)

	_, err := h.checkout.InitializeCheckout(context.Background(), buyer(1), testTenant, "")
	assert.ErrorIs(t, err, models.ErrMultipleEvents)
}

func TestInitializeCheckout_SoftCapacityCheck(t *testing.T) {
	h := newHarness(t, intPtr(2), 7500)
	h.addToCart(t, 1, h.general.ID, 2)
	h.store.mu.Lock()
	h.store.ticketTypes[h.general.ID].QuantitySold = 1
	h.store.mu.Unlock()

	_, err := h.checkout.InitializeCheckout(context.Background(), buyer(1), testTenant, "")
	assert.ErrorIs(t, err, models.ErrInsufficientStock)
}

func TestInitializeCheckout_NewCartLinesResumeLivePendingOrder(t *testing.T) {
	h := newHarness(t, nil, 7500)
	ctx := context.Background()
	first := h.checkoutFor(t, 1, 1)

	session, err := h.checkout.CreatePaymentSession(ctx, 1, first.ID)
	require.NoError(t, err)
	h.gateway.pay(session.SessionID, first.TotalAmount)

	h.addToCart(t, 1, h.general.ID, 2)
	again, err := h.checkout.InitializeCheckout(ctx, buyer(1), testTenant, "")
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)

	// The payment for the first session still lands on its order.
	sess, err := h.gateway.RetrieveCheckoutSession(ctx, session.SessionID)
	require.NoError(t, err)
	require.NoError(t, h.checkout.HandleCheckoutPaid(ctx, &WebhookEvent{
		ID: "evt_1", Type: EventCheckoutPaid, SessionID: session.SessionID, Payments: sess.Payments,
	}))
	got, err := fakeOrders{h.store}.GetByID(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderConfirmed, got.Status)
	assert.Equal(t, 1, h.store.ticketCount(first.ID))
}

func TestInitializeCheckout_ConcurrentCheckoutReturnsWinningOrder(t *testing.T) {
	h := newHarness(t, nil, 7500)
	ctx := context.Background()
	h.addToCart(t, 1, h.general.ID, 1)

	expires := time.Now().Add(time.Hour)
	winner, err := fakeOrders{h.store}.CreatePending(ctx, repositories.CreateOrderInput{Order: &models.Order{
		TenantID: testTenant, EventID: h.event.ID, UserID: 1, Status: models.OrderPending,
		SubtotalAmount: 7500, TotalAmount: 7500, Currency: models.DefaultCurrency, ExpiresAt: &expires, CreatedAt: time.Now(),
		Items: []models.OrderItem{{TicketTypeID: h.general.ID, Quantity: 1, UnitPrice: 7500, TotalPrice: 7500}},
	}})
	require.NoError(t, err)

	h.store.mu.Lock()
	h.store.missPendingLookups = 1
	h.store.mu.Unlock()

	got, err := h.checkout.InitializeCheckout(ctx, buyer(1), testTenant, "")
	require.NoError(t, err)
	assert.Equal(t, winner.ID, got.ID)
	assert.Len(t, h.store.orders, 1)
}

func TestInitializeCheckout_UsesActiveTierPrice(t *testing.T) {
	h := newHarness(t, nil, 7500)
	h.store.addTier(&models.PriceTier{TicketTypeID: h.general.ID, Name: "Early bird", Strategy: models.TierAllocation,
		Price: 5000, Priority: 1, AllocationTotal: intPtr(2)})

	order := h.checkoutFor(t, 1, 2)
	require.Len(t, order.Items, 1)
	assert.Equal(t, int64(5000), order.Items[0].UnitPrice)
	require.NotNil(t, order.Items[0].PriceTierID)

	// Three units no longer fit the allocation, so the base price applies.
	other := h.checkoutFor(t, 2, 3)
	assert.Equal(t, int64(7500), other.Items[0].UnitPrice)
	assert.Nil(t, other.Items[0].PriceTierID)
}

func TestInitializeCheckout_VoucherDiscount(t *testing.T) {
	h := newHarness(t, nil, 10000)
	h.store.addPromotion(&models.Promotion{TenantID: testTenant, Name: "Ten off", DiscountType: models.DiscountPercent,
		DiscountValue: 1000, Scope: models.ScopeOrder, RequiresCode: true}, "FEST10", nil)

	h.addToCart(t, 1, h.general.ID, 2)
	order, err := h.checkout.InitializeCheckout(context.Background(), buyer(1), testTenant, " fest10 ")
	require.NoError(t, err)
	assert.Equal(t, int64(20000), order.SubtotalAmount)
	assert.Equal(t, int64(2000), order.DiscountAmount)
	assert.Equal(t, int64(18000), order.TotalAmount)
	assert.NotNil(t, order.PromotionID)
	assert.NotNil(t, order.VoucherCodeID)
}

func TestInitializeCheckout_UnknownVoucher(t *testing.T) {
	h := newHarness(t, nil, 10000)
	h.addToCart(t, 1, h.general.ID, 1)
	_, err := h.checkout.InitializeCheckout(context.Background(), buyer(1), testTenant, "NOPE")
	assert.ErrorIs(t, err, models.ErrVoucherInvalid)
}

func TestInitializeCheckout_BestAutomaticPromotion(t *testing.T) {
	h := newHarness(t, nil, 10000)
	h.store.addPromotion(&models.Promotion{TenantID: testTenant, Name: "Small", DiscountType: models.DiscountFixed,
		DiscountValue: 500, Scope: models.ScopeOrder}, "", nil)
	big := h.store.addPromotion(&models.Promotion{TenantID: testTenant, Name: "Big", DiscountType: models.DiscountPercent,
		DiscountValue: 2500, Scope: models.ScopeOrder}, "", nil)

	order := h.checkoutFor(t, 1, 1)
	require.NotNil(t, order.PromotionID)
	assert.Equal(t, big.ID, *order.PromotionID)
	assert.Equal(t, int64(2500), order.DiscountAmount)
}

func TestPromotionCapIsEnforced(t *testing.T) {
	const capK, buyers = 3, 6
	h := newHarness(t, nil, 10000)
	promo := h.store.addPromotion(&models.Promotion{TenantID: testTenant, Name: "Launch", DiscountType: models.DiscountFixed,
		DiscountValue: 1000, Scope: models.ScopeOrder, RequiresCode: true, MaxRedemptions: intPtr(capK)}, "LAUNCH", nil)

	for u := 1; u <= buyers; u++ {
		h.addToCart(t, u, h.general.ID, 1)
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	var applied, rejected []int
	for u := 1; u <= buyers; u++ {
		wg.Add(1)
		go func(u int) {
			defer wg.Done()
			_, err := h.checkout.InitializeCheckout(context.Background(), buyer(u), testTenant, "LAUNCH")
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				applied = append(applied, u)
			} else if errors.Is(err, models.ErrPromotionExhausted) {
				rejected = append(rejected, u)
			} else {
				t.Errorf("unexpected error: %v", err)
			}
		}(u)
	}
	wg.Wait()

	assert.Len(t, applied, capK)
	assert.Len(t, rejected, buyers-capK)
	assert.Equal(t, capK, h.store.promotion(promo.ID).RedeemedCount)

	// Cancelling one order releases its use for the next buyer.
	pending, err := h.checkout.GetPendingOrderForTenant(context.Background(), applied[0], testTenant)
	require.NoError(t, err)
	require.NoError(t, h.checkout.CancelOrder(context.Background(), applied[0], pending.ID))
	assert.Equal(t, capK-1, h.store.promotion(promo.ID).RedeemedCount)

	_, err = h.checkout.InitializeCheckout(context.Background(), buyer(rejected[0]), testTenant, "LAUNCH")
	assert.NoError(t, err)
}

func TestPromotionPerUserCap(t *testing.T) {
	h := newHarness(t, nil, 10000)
	h.store.addPromotion(&models.Promotion{TenantID: testTenant, Name: "Once", DiscountType: models.DiscountFixed,
		DiscountValue: 1000, Scope: models.ScopeOrder, RequiresCode: true, MaxPerUser: intPtr(1)}, "ONCE", nil)

	h.addToCart(t, 1, h.general.ID, 1)
	first, err := h.checkout.InitializeCheckout(context.Background(), buyer(1), testTenant, "ONCE")
	require.NoError(t, err)
	_, err = h.checkout.ConfirmOrderFromPayment(context.Background(), first.ID, paid(first))
	require.NoError(t, err)

	h.addToCart(t, 1, h.general.ID, 1)
	_, err = h.checkout.InitializeCheckout(context.Background(), buyer(1), testTenant, "ONCE")
	assert.ErrorIs(t, err, models.ErrPromotionExhausted)
}

func TestConfirm_LastUnitFirstPaymentWins(t *testing.T) {
	h := newHarness(t, intPtr(1), 75)
	a := h.checkoutFor(t, 1, 1)
	b := h.checkoutFor(t, 2, 1)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, o := range []*models.Order{a, b} {
		wg.Add(1)
		go func(i int, o *models.Order) {
			defer wg.Done()
			_, errs[i] = h.checkout.ConfirmOrderFromPayment(context.Background(), o.ID, paid(o))
		}(i, o)
	}
	wg.Wait()

	var winner, loser *models.Order
	switch {
	case errs[0] == nil && errors.Is(errs[1], models.ErrOversold):
		winner, loser = a, b
	case errs[1] == nil && errors.Is(errs[0], models.ErrOversold):
		winner, loser = b, a
	default:
		t.Fatalf("expected exactly one oversold error, got %v and %v", errs[0], errs[1])
	}

	assert.Equal(t, 1, h.store.sold(h.general.ID))
	assert.Equal(t, 1, h.store.ticketCount(winner.ID))
	assert.Equal(t, 0, h.store.ticketCount(loser.ID))

	got, err := fakeOrders{h.store}.GetByID(context.Background(), loser.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderPending, got.Status, "the losing order stays pending for reconciliation")
}

func TestConfirm_NeverOversells(t *testing.T) {
	const stock, buyers = 5, 20
	h := newHarness(t, intPtr(stock), 7500)

	orders := make([]*models.Order, 0, buyers)
	for u := 1; u <= buyers; u++ {
		orders = append(orders, h.checkoutFor(t, u, 1))
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	confirmed, oversold := 0, 0
	for _, o := range orders {
		wg.Add(1)
		go func(o *models.Order) {
			defer wg.Done()
			_, err := h.checkout.ConfirmOrderFromPayment(context.Background(), o.ID, paid(o))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				confirmed++
			case errors.Is(err, models.ErrOversold):
				oversold++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(o)
	}
	wg.Wait()

	assert.Equal(t, stock, confirmed)
	assert.Equal(t, buyers-stock, oversold)
	assert.Equal(t, stock, h.store.sold(h.general.ID))
	assert.Len(t, h.notifier.confirmed(), stock)
}

func TestConfirm_IsIdempotent(t *testing.T) {
	h := newHarness(t, intPtr(10), 7500)
	order := h.checkoutFor(t, 1, 3)

	const calls = 8
	var wg sync.WaitGroup
	results := make([]*ConfirmationResult, calls)
	errs := make([]error, calls)
	for i := 0; i < calls; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = h.checkout.ConfirmOrderFromPayment(context.Background(), order.ID, paid(order))
		}(i)
	}
	wg.Wait()

	fresh := 0
	for i := 0; i < calls; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, models.OrderConfirmed, results[i].Order.Status)
		assert.Equal(t, 3, results[i].TicketCount)
		if !results[i].AlreadyConfirmed {
			fresh++
		}
	}
	assert.Equal(t, 1, fresh)
	assert.Equal(t, 3, h.store.sold(h.general.ID))
	assert.Equal(t, 3, h.store.ticketCount(order.ID))
	assert.Equal(t, []int{order.ID}, h.notifier.confirmed())
}

func TestConfirm_TicketCountMatchesItems(t *testing.T) {
	h := newHarness(t, nil, 7500)
	vip := h.store.addTicketType(h.event.ID, "VIP", 15000, nil)
	h.addToCart(t, 1, h.general.ID, 4)
	h.addToCart(t, 1, vip.ID, 2)

	order, err := h.checkout.InitializeCheckout(context.Background(), buyer(1), testTenant, "")
	require.NoError(t, err)
	res, err := h.checkout.ConfirmOrderFromPayment(context.Background(), order.ID, paid(order))
	require.NoError(t, err)

	assert.Equal(t, 6, res.TicketCount)
	tickets, err := fakeOrders{h.store}.GetTickets(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Len(t, tickets, order.TicketCount())

	codes := make(map[string]bool)
	for _, tk := range tickets {
		assert.Equal(t, models.TicketActive, tk.Status)
		assert.False(t, codes[tk.Code], "ticket codes are unique")
		codes[tk.Code] = true
	}
}

func TestConfirm_PriceSnapshotSurvivesPriceChanges(t *testing.T) {
	h := newHarness(t, nil, 7500)
	order := h.checkoutFor(t, 1, 2)

	h.store.setBasePrice(h.general.ID, 9900)
	h.store.addTier(&models.PriceTier{TicketTypeID: h.general.ID, Name: "Door", Strategy: models.TierTimeWindow, Price: 12000, Priority: 10})

	res, err := h.checkout.ConfirmOrderFromPayment(context.Background(), order.ID, paid(order))
	require.NoError(t, err)
	assert.Equal(t, int64(15000), res.Order.TotalAmount)
	assert.Equal(t, int64(7500), res.Order.Items[0].UnitPrice)
}

func TestConfirm_RejectsAmountMismatch(t *testing.T) {
	h := newHarness(t, nil, 7500)
	order := h.checkoutFor(t, 1, 2)

	p := paid(order)
	p.Amount = 100
	_, err := h.checkout.ConfirmOrderFromPayment(context.Background(), order.ID, p)
	assert.ErrorIs(t, err, models.ErrPaymentAmountMismatch)
	assert.Equal(t, 0, h.store.sold(h.general.ID))
}

func TestConfirm_CancelledOrderIsInvalidTransition(t *testing.T) {
	h := newHarness(t, nil, 7500)
	order := h.checkoutFor(t, 1, 1)
	require.NoError(t, h.checkout.CancelOrder(context.Background(), 1, order.ID))

	_, err := h.checkout.ConfirmOrderFromPayment(context.Background(), order.ID, paid(order))
	assert.ErrorIs(t, err, models.ErrInvalidTransition)
}

func TestConfirm_LateConfirmationAfterExpiryIsAccepted(t *testing.T) {
	h := newHarness(t, nil, 7500)
	order := h.checkoutFor(t, 1, 1)
	h.store.expireOrder(order.ID, time.Now().Add(-time.Minute))

	res, err := h.checkout.ConfirmOrderFromPayment(context.Background(), order.ID, paid(order))
	require.NoError(t, err)
	assert.Equal(t, models.OrderConfirmed, res.Order.Status)
	assert.Nil(t, res.Order.ExpiresAt)
}

func TestSaveAttendees_FlowIntoTickets(t *testing.T) {
	h := newHarness(t, nil, 7500)
	order := h.checkoutFor(t, 1, 2)
	ctx := context.Background()

	err := h.checkout.SaveAttendees(ctx, 1, order.ID, []models.PendingAttendee{
		{TicketTypeID: h.general.ID, Position: 0, Name: "Ana Cruz", Email: "ana@example.com"},
		{TicketTypeID: h.general.ID, Position: 1, Name: "Ben Reyes"},
	})
	require.NoError(t, err)

	_, err = h.checkout.ConfirmOrderFromPayment(ctx, order.ID, paid(order))
	require.NoError(t, err)

	details, err := h.checkout.GetOrderDetails(ctx, 1, order.ID)
	require.NoError(t, err)
	require.Len(t, details.Tickets, 2)
	assert.Equal(t, "Summer Fest", details.EventTitle)
	assert.Equal(t, "Ana Cruz", *details.Tickets[0].HolderName)
	assert.Equal(t, "ana@example.com", *details.Tickets[0].HolderEmail)
	assert.Equal(t, "Ben Reyes", *details.Tickets[1].HolderName)
	assert.Nil(t, details.Tickets[1].HolderEmail)
}

func TestSaveAttendees_Validation(t *testing.T) {
	h := newHarness(t, nil, 7500)
	order := h.checkoutFor(t, 1, 1)
	ctx := context.Background()

	err := h.checkout.SaveAttendees(ctx, 1, order.ID, []models.PendingAttendee{{TicketTypeID: h.general.ID, Position: 1, Name: "X"}})
	assert.ErrorIs(t, err, models.ErrInvalidAttendees)

	err = h.checkout.SaveAttendees(ctx, 2, order.ID, nil)
	assert.ErrorIs(t, err, models.ErrForbidden)
}

func TestCreatePaymentSession(t *testing.T) {
	h := newHarness(t, nil, 7500)
	ctx := context.Background()
	now := time.Now()
	h.checkout.now = func() time.Time { return now }
	order := h.checkoutFor(t, 1, 2)

	res, err := h.checkout.CreatePaymentSession(ctx, 1, order.ID)
	require.NoError(t, err)
	assert.False(t, res.Reused)
	assert.Contains(t, res.CheckoutURL, res.SessionID)
	assert.WithinDuration(t, now.Add(30*time.Minute), res.ExpiresAt, time.Second)

	stored, err := fakeOrders{h.store}.GetByID(ctx, order.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.PaymentSessionID)
	assert.Equal(t, res.SessionID, *stored.PaymentSessionID)

	req := h.gateway.requests[0]
	assert.Equal(t, order.OrderNumber, req.ReferenceNumber)
	require.Len(t, req.LineItems, 1)
	assert.Equal(t, CheckoutLineItem{Name: "General", Amount: 7500, Currency: "PHP", Quantity: 2}, req.LineItems[0])
	assert.Equal(t, fmt.Sprintf("https://fest.example.com/orders/%d/success", order.ID), req.SuccessURL)

	again, err := h.checkout.CreatePaymentSession(ctx, 1, order.ID)
	require.NoError(t, err)
	assert.True(t, again.Reused)
	assert.Equal(t, res.SessionID, again.SessionID)

	h.gateway.setStatus(res.SessionID, "expired")
	fresh, err := h.checkout.CreatePaymentSession(ctx, 1, order.ID)
	require.NoError(t, err)
	assert.NotEqual(t, res.SessionID, fresh.SessionID)
}

func TestCreatePaymentSession_DiscountedOrderIsOneLine(t *testing.T) {
	h := newHarness(t, nil, 10000)
	h.store.addPromotion(&models.Promotion{TenantID: testTenant, Name: "Auto", DiscountType: models.DiscountFixed,
		DiscountValue: 1500, Scope: models.ScopeOrder}, "", nil)
	order := h.checkoutFor(t, 1, 2)

	_, err := h.checkout.CreatePaymentSession(context.Background(), 1, order.ID)
	require.NoError(t, err)
	require.Len(t, h.gateway.requests[0].LineItems, 1)
	assert.Equal(t, int64(18500), h.gateway.requests[0].LineItems[0].Amount)
	assert.Equal(t, 1, h.gateway.requests[0].LineItems[0].Quantity)
}

func TestCreatePaymentSession_Guards(t *testing.T) {
	h := newHarness(t, nil, 7500)
	ctx := context.Background()
	order := h.checkoutFor(t, 1, 1)

	_, err := h.checkout.CreatePaymentSession(ctx, 2, order.ID)
	assert.ErrorIs(t, err, models.ErrForbidden)

	h.store.expireOrder(order.ID, time.Now().Add(-time.Second))
	_, err = h.checkout.CreatePaymentSession(ctx, 1, order.ID)
	assert.ErrorIs(t, err, models.ErrOrderExpired)

	_, err = h.checkout.CreatePaymentSession(ctx, 1, 9999)
	assert.ErrorIs(t, err, models.ErrOrderNotFound)
}

func TestCreatePaymentSession_FreeOrderConfirmsDirectly(t *testing.T) {
	h := newHarness(t, intPtr(5), 0)
	order := h.checkoutFor(t, 1, 2)

	res, err := h.checkout.CreatePaymentSession(context.Background(), 1, order.ID)
	require.NoError(t, err)
	assert.True(t, res.Confirmed)
	assert.Empty(t, h.gateway.requests)
	assert.Equal(t, 2, h.store.sold(h.general.ID))
}

func TestVerifyAndConfirmPayment(t *testing.T) {
	h := newHarness(t, nil, 7500)
	ctx := context.Background()
	order := h.checkoutFor(t, 1, 1)

	_, err := h.checkout.VerifyAndConfirmPayment(ctx, 1, order.ID)
	assert.ErrorIs(t, err, models.ErrNoPaymentSession)

	session, err := h.checkout.CreatePaymentSession(ctx, 1, order.ID)
	require.NoError(t, err)

	res, err := h.checkout.VerifyAndConfirmPayment(ctx, 1, order.ID)
	require.NoError(t, err)
	assert.Equal(t, VerificationProcessing, res.Status)
	assert.Equal(t, int64(3000), res.PollIntervalMs)
	assert.Equal(t, 20, res.MaxAttempts)

	h.gateway.pay(session.SessionID, order.TotalAmount)
	res, err = h.checkout.VerifyAndConfirmPayment(ctx, 1, order.ID)
	require.NoError(t, err)
	assert.Equal(t, VerificationConfirmed, res.Status)
	assert.Equal(t, 1, res.TicketCount)
}

func TestVerifyAndConfirmPayment_GatewayErrorReportsProcessing(t *testing.T) {
	h := newHarness(t, nil, 7500)
	ctx := context.Background()
	order := h.checkoutFor(t, 1, 1)
	_, err := h.checkout.CreatePaymentSession(ctx, 1, order.ID)
	require.NoError(t, err)

	h.gateway.retrieveErr = errors.New("gateway timeout")
	res, err := h.checkout.VerifyAndConfirmPayment(ctx, 1, order.ID)
	require.NoError(t, err)
	assert.Equal(t, VerificationProcessing, res.Status)
}

func TestWebhookThenPollConfirmsOnce(t *testing.T) {
	h := newHarness(t, intPtr(10), 7500)
	ctx := context.Background()
	order := h.checkoutFor(t, 1, 2)
	session, err := h.checkout.CreatePaymentSession(ctx, 1, order.ID)
	require.NoError(t, err)
	h.gateway.pay(session.SessionID, order.TotalAmount)

	sess, err := h.gateway.RetrieveCheckoutSession(ctx, session.SessionID)
	require.NoError(t, err)
	require.NoError(t, h.checkout.HandleCheckoutPaid(ctx, &WebhookEvent{
		ID: "evt_1", Type: EventCheckoutPaid, SessionID: session.SessionID, Payments: sess.Payments,
	}))

	res, err := h.checkout.VerifyAndConfirmPayment(ctx, 1, order.ID)
	require.NoError(t, err)
	assert.Equal(t, VerificationConfirmed, res.Status)

	details, err := h.checkout.GetOrderDetails(ctx, 1, order.ID)
	require.NoError(t, err)
	assert.Len(t, details.Tickets, 2)
	assert.Equal(t, 2, h.store.sold(h.general.ID))
}

func TestHandleCheckoutPaid_IgnoresUnknownAndSettledOrders(t *testing.T) {
	h := newHarness(t, nil, 7500)
	ctx := context.Background()

	assert.NoError(t, h.checkout.HandleCheckoutPaid(ctx, &WebhookEvent{SessionID: "cs_unknown"}))

	order := h.checkoutFor(t, 1, 1)
	session, err := h.checkout.CreatePaymentSession(ctx, 1, order.ID)
	require.NoError(t, err)
	require.NoError(t, h.checkout.CancelOrder(ctx, 1, order.ID))

	err = h.checkout.HandleCheckoutPaid(ctx, &WebhookEvent{SessionID: session.SessionID, Payments: []CheckoutPayment{
		{ID: "pay_1", Amount: order.TotalAmount, Status: PaymentStatusPaid},
	}})
	assert.NoError(t, err)
	assert.Equal(t, 0, h.store.ticketCount(order.ID))
}

func TestWaitForConfirmation(t *testing.T) {
	h := newHarness(t, nil, 7500)
	ctx := context.Background()
	order := h.checkoutFor(t, 1, 1)
	session, err := h.checkout.CreatePaymentSession(ctx, 1, order.ID)
	require.NoError(t, err)

	_, err = h.checkout.WaitForConfirmation(ctx, order.ID, time.Millisecond, 3)
	assert.ErrorIs(t, err, ErrStillProcessing)

	h.gateway.pay(session.SessionID, order.TotalAmount)
	res, err := h.checkout.WaitForConfirmation(ctx, order.ID, time.Millisecond, 3)
	require.NoError(t, err)
	assert.Equal(t, VerificationConfirmed, res.Status)
}

func TestGetPendingOrderForTenant_CancelsExpired(t *testing.T) {
	h := newHarness(t, nil, 7500)
	ctx := context.Background()
	order := h.checkoutFor(t, 1, 1)

	got, err := h.checkout.GetPendingOrderForTenant(ctx, 1, testTenant)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, order.ID, got.ID)

	h.store.expireOrder(order.ID, time.Now().Add(-time.Second))
	got, err = h.checkout.GetPendingOrderForTenant(ctx, 1, testTenant)
	require.NoError(t, err)
	assert.Nil(t, got)

	stored, err := fakeOrders{h.store}.GetByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderCancelled, stored.Status)
}

func TestCancelOrder(t *testing.T) {
	h := newHarness(t, nil, 7500)
	ctx := context.Background()
	order := h.checkoutFor(t, 1, 1)

	assert.ErrorIs(t, h.checkout.CancelOrder(ctx, 2, order.ID), models.ErrForbidden)
	require.NoError(t, h.checkout.CancelOrder(ctx, 1, order.ID))
	assert.ErrorIs(t, h.checkout.CancelOrder(ctx, 1, order.ID), models.ErrInvalidTransition)
}

func TestListTenantOrders(t *testing.T) {
	h := newHarness(t, nil, 7500)
	ctx := context.Background()
	a := h.checkoutFor(t, 1, 1)
	h.checkoutFor(t, 2, 1)
	_, err := h.checkout.ConfirmOrderFromPayment(ctx, a.ID, paid(a))
	require.NoError(t, err)

	all, total, err := h.checkout.ListTenantOrders(ctx, testTenant, "", 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Len(t, all, 2)

	confirmed, total, err := h.checkout.ListTenantOrders(ctx, testTenant, models.OrderConfirmed, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, a.ID, confirmed[0].ID)

	_, _, err = h.checkout.ListTenantOrders(ctx, testTenant, "SHIPPED", 10, 0)
	assert.ErrorIs(t, err, models.ErrInvalidInput)
}

package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"ticketing-checkout/internal/models"
	"ticketing-checkout/internal/repositories"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("ticketing-checkout/services")

// ErrStillProcessing is returned by WaitForConfirmation when the gateway has
// not reported a paid payment within the allowed attempts.
var ErrStillProcessing = errors.New("payment still processing")

// VerificationStatus is what a buyer's payment poll reports
type VerificationStatus string

const (
	VerificationConfirmed  VerificationStatus = "confirmed"
	VerificationProcessing VerificationStatus = "processing"
	VerificationFailed     VerificationStatus = "failed"
)

// CheckoutConfig carries the timing and URL settings of the order lifecycle
type CheckoutConfig struct {
	CartTTL        time.Duration
	OrderHold      time.Duration
	PaymentWindow  time.Duration
	PollInterval   time.Duration
	PollAttempts   int
	BaseURL        string
	PaymentMethods []string
}

func (c CheckoutConfig) withDefaults() CheckoutConfig {
	if c.CartTTL <= 0 {
		c.CartTTL = 15 * time.Minute
	}
	if c.OrderHold <= 0 {
		c.OrderHold = 15 * time.Minute
	}
	if c.PaymentWindow <= 0 {
		c.PaymentWindow = 30 * time.Minute
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 3 * time.Second
	}
	if c.PollAttempts <= 0 {
		c.PollAttempts = 20
	}
	if len(c.PaymentMethods) == 0 {
		c.PaymentMethods = []string{"card", "gcash", "paymaya"}
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	return c
}

type PaymentSessionResult struct {
	OrderID     int       `json:"order_id"`
	SessionID   string    `json:"session_id,omitempty"`
	CheckoutURL string    `json:"checkout_url"`
	ExpiresAt   time.Time `json:"expires_at"`
	Reused      bool      `json:"reused"`
	// Confirmed is set when the order needed no payment and was confirmed directly.
	Confirmed bool `json:"confirmed"`
}

type ConfirmationResult struct {
	Order            *models.Order `json:"order"`
	TicketCount      int           `json:"ticket_count"`
	AlreadyConfirmed bool          `json:"already_confirmed"`
}

type VerificationResult struct {
	Status         VerificationStatus `json:"status"`
	Order          *models.Order      `json:"order"`
	TicketCount    int                `json:"ticket_count,omitempty"`
	Message        string             `json:"message,omitempty"`
	PollIntervalMs int64              `json:"poll_interval_ms,omitempty"`
	MaxAttempts    int                `json:"max_attempts,omitempty"`
}

type OrderDetails struct {
	Order       *models.Order            `json:"order"`
	EventTitle  string                   `json:"event_title"`
	StatusLabel string                   `json:"status_label"`
	Tickets     []*models.Ticket         `json:"tickets"`
	Attendees   []models.PendingAttendee `json:"attendees"`
}

// CheckoutService drives orders from cart to confirmation
type CheckoutService struct {
	orders      OrderRepository
	carts       CartRepository
	ticketTypes TicketTypeRepository
	promotions  PromotionRepository
	events      EventRepository
	gateway     PaymentGateway
	notifier    ConfirmationNotifier
	cfg         CheckoutConfig
	now         func() time.Time
	log         zerolog.Logger
}

// NewCheckoutService creates a new checkout service. notifier may be nil.
func NewCheckoutService(
	orders OrderRepository,
	carts CartRepository,
	ticketTypes TicketTypeRepository,
	promotions PromotionRepository,
	events EventRepository,
	gateway PaymentGateway,
	notifier ConfirmationNotifier,
	cfg CheckoutConfig,
	log zerolog.Logger,
) *CheckoutService {
	return &CheckoutService{
		orders:      orders,
		carts:       carts,
		ticketTypes: ticketTypes,
		promotions:  promotions,
		events:      events,
		gateway:     gateway,
		notifier:    notifier,
		cfg:         cfg.withDefaults(),
		now:         time.Now,
		log:         log.With().Str("component", "checkout").Logger(),
	}
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// InitializeCheckout turns the buyer's tenant cart into a PENDING order.
// Prices are resolved here and snapshotted onto the order items. A live
// pending order for the same buyer and tenant is returned instead of creating
// another one, so a session the buyer may already have paid is never dropped.
func (s *CheckoutService) InitializeCheckout(ctx context.Context, user *models.User, tenantID int, voucherCode string) (order *models.Order, err error) {
	ctx, span := tracer.Start(ctx, "checkout.initialize",
		trace.WithAttributes(attribute.Int("user.id", user.ID), attribute.Int("tenant.id", tenantID)))
	defer func() { endSpan(span, err) }()

	pending, err := s.GetPendingOrderForTenant(ctx, user.ID, tenantID)
	if err != nil {
		return nil, err
	}
	if pending != nil {
		span.SetAttributes(attribute.Int("order.id", pending.ID), attribute.Bool("order.resumed", true))
		return pending, nil
	}

	now := s.now()
	cart, err := s.carts.Get(ctx, user.ID, tenantID)
	if err != nil {
		return nil, err
	}
	if cart == nil || len(cart.Items) == 0 || cart.IsExpired(now, s.cfg.CartTTL) {
		return nil, models.ErrCartEmpty
	}

	eventID := cart.Items[0].EventID
	for _, it := range cart.Items[1:] {
		if it.EventID != eventID {
			return nil, models.ErrMultipleEvents
		}
	}
	event, err := s.events.GetByID(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if event.TenantID != tenantID {
		return nil, models.ErrEventNotFound
	}
	if !event.IsOnSale(now) {
		return nil, models.ErrEventNotOnSale
	}

	lines, err := s.priceCart(ctx, cart, now)
	if err != nil {
		return nil, err
	}

	promo, voucher, discount, err := s.choosePromotion(ctx, user.ID, tenantID, voucherCode, lines, now)
	if err != nil {
		return nil, err
	}

	subtotal := Subtotal(lines)
	expires := now.Add(s.cfg.OrderHold)
	order = &models.Order{
		TenantID:       tenantID,
		EventID:        eventID,
		UserID:         user.ID,
		Status:         models.OrderPending,
		SubtotalAmount: subtotal,
		DiscountAmount: discount,
		TotalAmount:    subtotal - discount,
		Currency:       models.DefaultCurrency,
		ExpiresAt:      &expires,
		ContactEmail:   user.Email,
		ContactPhone:   user.Phone,
		CreatedAt:      now,
	}
	for _, l := range lines {
		order.Items = append(order.Items, models.OrderItem{
			TicketTypeID: l.TicketTypeID,
			PriceTierID:  l.PriceTierID,
			Quantity:     l.Quantity,
			UnitPrice:    l.UnitPrice,
			TotalPrice:   l.Total(),
		})
	}

	in := repositories.CreateOrderInput{Order: order, ClearCartID: &cart.ID}
	if promo != nil {
		order.PromotionID = &promo.ID
		in.Redemption = &models.PromotionRedemption{
			PromotionID:    promo.ID,
			UserID:         user.ID,
			DiscountAmount: discount,
		}
		if voucher != nil {
			order.VoucherCodeID = &voucher.ID
			in.Redemption.VoucherCodeID = &voucher.ID
		}
	}
	if err := order.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrInvalidInput, err)
	}

	created, err := s.orders.CreatePending(ctx, in)
	if errors.Is(err, models.ErrPendingOrderExists) {
		// A concurrent checkout won; hand back its order.
		pending, perr := s.GetPendingOrderForTenant(ctx, user.ID, tenantID)
		if perr != nil {
			return nil, perr
		}
		if pending != nil {
			return pending, nil
		}
	}
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int("order.id", created.ID), attribute.Int64("order.total", created.TotalAmount))
	s.log.Info().
		Int("order_id", created.ID).
		Str("order_number", created.OrderNumber).
		Int("tenant_id", tenantID).
		Int64("total", created.TotalAmount).
		Int64("discount", created.DiscountAmount).
		Msg("order created")
	return created, nil
}

// priceCart resolves authoritative prices for every cart line and runs the
// soft capacity check. Stock itself is only taken at confirmation.
func (s *CheckoutService) priceCart(ctx context.Context, cart *models.Cart, now time.Time) ([]PricedLine, error) {
	ids := make([]int, 0, len(cart.Items))
	for _, it := range cart.Items {
		ids = append(ids, it.TicketTypeID)
	}
	tiers, err := s.ticketTypes.GetTiers(ctx, ids)
	if err != nil {
		return nil, err
	}

	requested := make(map[int]int)
	lines := make([]PricedLine, 0, len(cart.Items))
	for _, it := range cart.Items {
		tt, err := s.ticketTypes.GetByID(ctx, it.TicketTypeID)
		if err != nil {
			return nil, err
		}
		if tt.EventID != it.EventID {
			return nil, models.ErrTicketTypeNotFound
		}
		if !tt.IsOnSale(now) {
			return nil, models.ErrSalesClosed
		}
		requested[tt.ID] += it.Quantity
		if !tt.HasCapacityFor(requested[tt.ID]) {
			return nil, fmt.Errorf("%w: %s", models.ErrInsufficientStock, tt.Name)
		}

		price, tier := ResolvePriceForQuantity(tt, tiers[tt.ID], now, it.Quantity)
		line := PricedLine{TicketTypeID: tt.ID, Quantity: it.Quantity, UnitPrice: price}
		if tier != nil {
			id := tier.ID
			line.PriceTierID = &id
		}
		lines = append(lines, line)
	}
	return lines, nil
}

// choosePromotion validates a voucher code, or picks the automatic promotion
// granting the largest discount when no code is given.
func (s *CheckoutService) choosePromotion(ctx context.Context, userID, tenantID int, code string, lines []PricedLine, now time.Time) (*models.Promotion, *models.VoucherCode, int64, error) {
	code = models.NormalizeVoucherCode(code)
	if code != "" {
		promo, voucher, err := s.promotions.GetByVoucherCode(ctx, tenantID, code)
		if err != nil {
			return nil, nil, 0, err
		}
		used, err := s.promotions.CountUserRedemptions(ctx, promo.ID, userID)
		if err != nil {
			return nil, nil, 0, err
		}
		if err := ValidatePromotion(promo, voucher, used, now); err != nil {
			return nil, nil, 0, err
		}
		discount := ApplyPromotion(promo, lines)
		if discount == 0 {
			return nil, nil, 0, models.ErrPromotionNotApplicable
		}
		return promo, voucher, discount, nil
	}

	autos, err := s.promotions.ListAutomatic(ctx, tenantID, now)
	if err != nil {
		return nil, nil, 0, err
	}
	var best *models.Promotion
	var bestDiscount int64
	for _, p := range autos {
		used, err := s.promotions.CountUserRedemptions(ctx, p.ID, userID)
		if err != nil {
			return nil, nil, 0, err
		}
		if ValidatePromotion(p, nil, used, now) != nil {
			continue
		}
		if d := ApplyPromotion(p, lines); d > bestDiscount {
			best, bestDiscount = p, d
		}
	}
	return best, nil, bestDiscount, nil
}

// GetPendingOrderForTenant returns the buyer's live pending order, or nil. A
// pending order found past its hold is cancelled on the spot.
func (s *CheckoutService) GetPendingOrderForTenant(ctx context.Context, userID, tenantID int) (*models.Order, error) {
	order, err := s.orders.GetPendingForUserTenant(ctx, userID, tenantID)
	if err != nil || order == nil {
		return nil, err
	}
	now := s.now()
	if order.IsLive(now) {
		return order, nil
	}
	if err := s.orders.CancelIfExpired(ctx, order.ID, now); err != nil && !errors.Is(err, models.ErrInvalidTransition) {
		s.log.Warn().Err(err).Int("order_id", order.ID).Msg("failed to cancel expired order")
	}
	return nil, nil
}

func (s *CheckoutService) ownedOrder(ctx context.Context, userID, orderID int) (*models.Order, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.UserID != userID {
		return nil, models.ErrForbidden
	}
	return order, nil
}

// CreatePaymentSession opens a hosted checkout for a pending order. An
// existing session that is still active is handed back unchanged.
func (s *CheckoutService) CreatePaymentSession(ctx context.Context, userID, orderID int) (result *PaymentSessionResult, err error) {
	ctx, span := tracer.Start(ctx, "checkout.payment_session", trace.WithAttributes(attribute.Int("order.id", orderID)))
	defer func() { endSpan(span, err) }()

	order, err := s.ownedOrder(ctx, userID, orderID)
	if err != nil {
		return nil, err
	}
	if !order.IsPending() {
		return nil, fmt.Errorf("%w: order is %s", models.ErrInvalidTransition, order.Status)
	}
	now := s.now()
	if order.IsExpired(now) {
		if err := s.orders.CancelIfExpired(ctx, order.ID, now); err != nil && !errors.Is(err, models.ErrInvalidTransition) {
			s.log.Warn().Err(err).Int("order_id", order.ID).Msg("failed to cancel expired order")
		}
		return nil, models.ErrOrderExpired
	}

	if order.TotalAmount == 0 {
		confirmed, err := s.ConfirmOrderFromPayment(ctx, order.ID, models.PaymentDetails{
			PaymentID: "free-" + order.OrderNumber,
			Method:    "free",
			PaidAt:    now,
		})
		if err != nil {
			return nil, err
		}
		return &PaymentSessionResult{
			OrderID:     confirmed.Order.ID,
			CheckoutURL: s.successURL(order.ID),
			ExpiresAt:   now,
			Confirmed:   true,
		}, nil
	}

	if order.PaymentSessionID != nil {
		existing, err := s.gateway.RetrieveCheckoutSession(ctx, *order.PaymentSessionID)
		if err != nil {
			s.log.Warn().Err(err).Int("order_id", order.ID).Msg("could not load existing payment session, creating a new one")
		} else if existing.IsActive() {
			return &PaymentSessionResult{
				OrderID:     order.ID,
				SessionID:   existing.ID,
				CheckoutURL: existing.CheckoutURL,
				ExpiresAt:   *order.ExpiresAt,
				Reused:      true,
			}, nil
		}
	}

	req, err := s.sessionRequest(ctx, order)
	if err != nil {
		return nil, err
	}
	session, err := s.gateway.CreateCheckoutSession(ctx, req)
	if err != nil {
		return nil, err
	}
	expires := now.Add(s.cfg.PaymentWindow)
	if err := s.orders.SetPaymentSession(ctx, order.ID, session.ID, expires); err != nil {
		return nil, err
	}

	s.log.Info().Int("order_id", order.ID).Str("session_id", session.ID).Msg("payment session created")
	return &PaymentSessionResult{
		OrderID:     order.ID,
		SessionID:   session.ID,
		CheckoutURL: session.CheckoutURL,
		ExpiresAt:   expires,
	}, nil
}

// sessionRequest lists the order items as gateway line items. A discounted
// order is sent as a single line carrying the total, since the gateway has no
// discount field.
func (s *CheckoutService) sessionRequest(ctx context.Context, order *models.Order) (CheckoutSessionRequest, error) {
	req := CheckoutSessionRequest{
		ReferenceNumber:    order.OrderNumber,
		Description:        "Order " + order.OrderNumber,
		SuccessURL:         s.successURL(order.ID),
		CancelURL:          fmt.Sprintf("%s/orders/%d/cancelled", s.cfg.BaseURL, order.ID),
		PaymentMethodTypes: s.cfg.PaymentMethods,
	}
	if order.DiscountAmount > 0 {
		req.LineItems = []CheckoutLineItem{{
			Name:     "Order " + order.OrderNumber,
			Amount:   order.TotalAmount,
			Currency: order.Currency,
			Quantity: 1,
		}}
		return req, nil
	}
	for _, item := range order.Items {
		tt, err := s.ticketTypes.GetByID(ctx, item.TicketTypeID)
		if err != nil {
			return req, err
		}
		req.LineItems = append(req.LineItems, CheckoutLineItem{
			Name:     tt.Name,
			Amount:   item.UnitPrice,
			Currency: order.Currency,
			Quantity: item.Quantity,
		})
	}
	return req, nil
}

func (s *CheckoutService) successURL(orderID int) string {
	return fmt.Sprintf("%s/orders/%d/success", s.cfg.BaseURL, orderID)
}

// SaveAttendees replaces the attendee set of a pending order.
func (s *CheckoutService) SaveAttendees(ctx context.Context, userID, orderID int, attendees []models.PendingAttendee) error {
	order, err := s.ownedOrder(ctx, userID, orderID)
	if err != nil {
		return err
	}
	if !order.IsPending() {
		return fmt.Errorf("%w: order is %s", models.ErrInvalidTransition, order.Status)
	}
	if err := order.ValidateAttendees(attendees); err != nil {
		return err
	}
	return s.orders.SaveAttendees(ctx, order.ID, attendees)
}

const ticketCodeAttempts = 3

// ConfirmOrderFromPayment is the single entry point of the PENDING ->
// CONFIRMED transition, shared by the webhook and buyer polling. Repeated
// calls for a confirmed order succeed without issuing more tickets.
func (s *CheckoutService) ConfirmOrderFromPayment(ctx context.Context, orderID int, payment models.PaymentDetails) (result *ConfirmationResult, err error) {
	ctx, span := tracer.Start(ctx, "checkout.confirm",
		trace.WithAttributes(attribute.Int("order.id", orderID), attribute.String("payment.id", payment.PaymentID)))
	defer func() { endSpan(span, err) }()

	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	switch {
	case order.IsConfirmed():
		return &ConfirmationResult{Order: order, TicketCount: order.TicketCount(), AlreadyConfirmed: true}, nil
	case !order.IsPending():
		return nil, fmt.Errorf("%w: order is %s", models.ErrInvalidTransition, order.Status)
	}
	if payment.Amount != order.TotalAmount {
		s.log.Error().Int("order_id", order.ID).Int64("paid", payment.Amount).Int64("total", order.TotalAmount).
			Str("payment_id", payment.PaymentID).Msg("paid amount does not match order total")
		return nil, models.ErrPaymentAmountMismatch
	}

	attendees, err := s.orders.GetAttendees(ctx, order.ID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	var confirmed *models.Order
	for attempt := 1; ; attempt++ {
		confirmed, err = s.orders.Confirm(ctx, repositories.ConfirmOrderInput{
			OrderID: order.ID,
			Payment: payment,
			Tickets: buildTickets(order, attendees, now),
			Now:     now,
		})
		if errors.Is(err, models.ErrDuplicateEntry) && attempt < ticketCodeAttempts {
			continue
		}
		break
	}

	switch {
	case errors.Is(err, models.ErrAlreadyConfirmed):
		current, gerr := s.orders.GetByID(ctx, order.ID)
		if gerr != nil {
			return nil, gerr
		}
		return &ConfirmationResult{Order: current, TicketCount: current.TicketCount(), AlreadyConfirmed: true}, nil
	case errors.Is(err, models.ErrOversold):
		s.log.Error().Err(err).Int("order_id", order.ID).Str("order_number", order.OrderNumber).
			Str("payment_id", payment.PaymentID).Msg("paid order oversold, needs reconciliation")
		return nil, err
	case err != nil:
		return nil, err
	}

	s.log.Info().Int("order_id", confirmed.ID).Str("order_number", confirmed.OrderNumber).
		Int("tickets", confirmed.TicketCount()).Str("payment_id", payment.PaymentID).Msg("order confirmed")
	if s.notifier != nil {
		s.notifier.OrderConfirmed(confirmed.ID)
	}
	return &ConfirmationResult{Order: confirmed, TicketCount: confirmed.TicketCount()}, nil
}

// buildTickets creates one ticket per purchased unit, filling holder details
// from the attendee captured for that unit.
func buildTickets(order *models.Order, attendees []models.PendingAttendee, now time.Time) []*models.Ticket {
	byUnit := make(map[[2]int]models.PendingAttendee, len(attendees))
	for _, a := range attendees {
		byUnit[[2]int{a.TicketTypeID, a.Position}] = a
	}

	tickets := make([]*models.Ticket, 0, order.TicketCount())
	positions := make(map[int]int)
	for _, item := range order.Items {
		for i := 0; i < item.Quantity; i++ {
			pos := positions[item.TicketTypeID]
			positions[item.TicketTypeID]++
			t := &models.Ticket{
				Code:         models.GenerateTicketCode(order.EventID),
				OrderID:      order.ID,
				EventID:      order.EventID,
				TicketTypeID: item.TicketTypeID,
				Status:       models.TicketActive,
				CreatedAt:    now,
			}
			if a, ok := byUnit[[2]int{item.TicketTypeID, pos}]; ok {
				t.HolderName = optional(a.Name)
				t.HolderEmail = optional(a.Email)
				t.HolderPhone = optional(a.Phone)
			}
			tickets = append(tickets, t)
		}
	}
	return tickets
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

// CancelOrder cancels a pending order on the buyer's request.
func (s *CheckoutService) CancelOrder(ctx context.Context, userID, orderID int) error {
	order, err := s.ownedOrder(ctx, userID, orderID)
	if err != nil {
		return err
	}
	if !order.CanBeCancelled() {
		return fmt.Errorf("%w: order is %s", models.ErrInvalidTransition, order.Status)
	}
	if err := s.orders.Cancel(ctx, order.ID, s.now()); err != nil {
		return err
	}
	s.log.Info().Int("order_id", order.ID).Msg("order cancelled by buyer")
	return nil
}

// VerifyAndConfirmPayment is the buyer-side poll after returning from the
// hosted checkout. Gateway failures are reported as processing.
func (s *CheckoutService) VerifyAndConfirmPayment(ctx context.Context, userID, orderID int) (*VerificationResult, error) {
	order, err := s.ownedOrder(ctx, userID, orderID)
	if err != nil {
		return nil, err
	}
	result, err := s.syncPayment(ctx, order)
	if err != nil {
		return nil, err
	}
	if result.Status == VerificationProcessing {
		result.PollIntervalMs = s.cfg.PollInterval.Milliseconds()
		result.MaxAttempts = s.cfg.PollAttempts
	}
	return result, nil
}

// syncPayment pulls the order's checkout session and confirms the order when
// a paid payment is found.
func (s *CheckoutService) syncPayment(ctx context.Context, order *models.Order) (*VerificationResult, error) {
	switch {
	case order.IsConfirmed():
		return &VerificationResult{Status: VerificationConfirmed, Order: order, TicketCount: order.TicketCount()}, nil
	case !order.IsPending():
		return &VerificationResult{Status: VerificationFailed, Order: order, Message: "Order is " + strings.ToLower(order.Status.DisplayName())}, nil
	case order.PaymentSessionID == nil:
		return nil, models.ErrNoPaymentSession
	}

	session, err := s.gateway.RetrieveCheckoutSession(ctx, *order.PaymentSessionID)
	if err != nil {
		s.log.Warn().Err(err).Int("order_id", order.ID).Msg("payment lookup failed")
		return &VerificationResult{Status: VerificationProcessing, Order: order, Message: "Payment is still being processed"}, nil
	}
	paid := session.PaidPayment()
	if paid == nil {
		return &VerificationResult{Status: VerificationProcessing, Order: order, Message: "Payment is still being processed"}, nil
	}

	confirmed, err := s.ConfirmOrderFromPayment(ctx, order.ID, paid.Details())
	if err != nil {
		return nil, err
	}
	return &VerificationResult{Status: VerificationConfirmed, Order: confirmed.Order, TicketCount: confirmed.TicketCount}, nil
}

// WaitForConfirmation polls the gateway until the order is confirmed, the
// attempts run out or ctx is done.
func (s *CheckoutService) WaitForConfirmation(ctx context.Context, orderID int, interval time.Duration, attempts int) (*VerificationResult, error) {
	if interval <= 0 {
		interval = s.cfg.PollInterval
	}
	if attempts <= 0 {
		attempts = s.cfg.PollAttempts
	}

	for i := 0; i < attempts; i++ {
		order, err := s.orders.GetByID(ctx, orderID)
		if err != nil {
			return nil, err
		}
		result, err := s.syncPayment(ctx, order)
		if err != nil {
			return nil, err
		}
		if result.Status != VerificationProcessing {
			return result, nil
		}
		if i == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(interval):
		}
	}
	return nil, ErrStillProcessing
}

// HandleCheckoutPaid confirms the order behind a paid checkout session event.
// Events for unknown or already settled orders are ignored.
func (s *CheckoutService) HandleCheckoutPaid(ctx context.Context, event *WebhookEvent) error {
	log := s.log.With().Str("event_id", event.ID).Str("session_id", event.SessionID).Logger()

	order, err := s.orders.GetByPaymentSessionID(ctx, event.SessionID)
	if errors.Is(err, models.ErrOrderNotFound) {
		log.Warn().Msg("no order for checkout session")
		return nil
	}
	if err != nil {
		return err
	}
	if !order.IsPending() {
		log.Info().Int("order_id", order.ID).Str("status", string(order.Status)).Msg("order already settled, ignoring event")
		return nil
	}

	var paid *CheckoutPayment
	for i := range event.Payments {
		if event.Payments[i].Status == PaymentStatusPaid {
			paid = &event.Payments[i]
			break
		}
	}
	if paid == nil {
		log.Warn().Int("order_id", order.ID).Msg("paid event without a paid payment")
		return nil
	}

	_, err = s.ConfirmOrderFromPayment(ctx, order.ID, paid.Details())
	return err
}

// GetOrderDetails returns an order of the buyer with its tickets and attendees.
func (s *CheckoutService) GetOrderDetails(ctx context.Context, userID, orderID int) (*OrderDetails, error) {
	order, err := s.ownedOrder(ctx, userID, orderID)
	if err != nil {
		return nil, err
	}
	tickets, err := s.orders.GetTickets(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	attendees, err := s.orders.GetAttendees(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	event, err := s.events.GetByID(ctx, order.EventID)
	if err != nil {
		return nil, err
	}
	if tickets == nil {
		tickets = []*models.Ticket{}
	}
	if attendees == nil {
		attendees = []models.PendingAttendee{}
	}
	return &OrderDetails{
		Order:       order,
		EventTitle:  event.Title,
		StatusLabel: order.Status.DisplayName(),
		Tickets:     tickets,
		Attendees:   attendees,
	}, nil
}

// ListTenantOrders lists a tenant's orders for organizers, newest first.
func (s *CheckoutService) ListTenantOrders(ctx context.Context, tenantID int, status models.OrderStatus, limit, offset int) ([]*models.Order, int, error) {
	if status != "" && !status.Valid() {
		return nil, 0, fmt.Errorf("%w: unknown status %q", models.ErrInvalidInput, status)
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.orders.List(ctx, repositories.OrderListFilter{
		TenantID: tenantID,
		Status:   status,
		Limit:    limit,
		Offset:   offset,
	})
}

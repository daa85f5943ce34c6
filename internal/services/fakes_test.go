package services

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"ticketing-checkout/internal/models"
	"ticketing-checkout/internal/repositories"
)

// memStore is an in-memory stand-in for Postgres. Every method takes the
// mutex for its whole body, which gives the same all-or-nothing behaviour as
// the repository transactions.
type memStore struct {
	mu sync.Mutex

	events      map[int]*models.Event
	ticketTypes map[int]*models.TicketType
	tiers       map[int][]*models.PriceTier
	promotions  map[int]*models.Promotion
	vouchers    map[string]*models.VoucherCode
	redemptions map[int]models.PromotionRedemption // by order id
	carts       map[[2]int]*models.Cart
	cartItems   map[int]*models.CartItem
	orders      map[int]*models.Order
	attendees   map[int][]models.PendingAttendee
	tickets     map[int][]*models.Ticket
	seq         int

	// missPendingLookups makes that many pending-order lookups miss, standing
	// in for a concurrent request that commits right after the read.
	missPendingLookups int
}

func newMemStore() *memStore {
	return &memStore{
		events:      make(map[int]*models.Event),
		ticketTypes: make(map[int]*models.TicketType),
		tiers:       make(map[int][]*models.PriceTier),
		promotions:  make(map[int]*models.Promotion),
		vouchers:    make(map[string]*models.VoucherCode),
		redemptions: make(map[int]models.PromotionRedemption),
		carts:       make(map[[2]int]*models.Cart),
		cartItems:   make(map[int]*models.CartItem),
		orders:      make(map[int]*models.Order),
		attendees:   make(map[int][]models.PendingAttendee),
		tickets:     make(map[int][]*models.Ticket),
	}
}

func (s *memStore) nextID() int {
	s.seq++
	return s.seq
}

func (s *memStore) addEvent(tenantID int, title string) *models.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := &models.Event{ID: s.nextID(), TenantID: tenantID, Title: title, Venue: "Main Hall",
		StartsAt: time.Now().Add(72 * time.Hour), Status: models.EventPublished}
	s.events[e.ID] = e
	return e
}

func (s *memStore) addTicketType(eventID int, name string, price int64, total *int) *models.TicketType {
	s.mu.Lock()
	defer s.mu.Unlock()
	tt := &models.TicketType{ID: s.nextID(), EventID: eventID, Name: name, Kind: models.KindGeneral,
		BasePrice: price, QuantityTotal: total}
	s.ticketTypes[tt.ID] = tt
	return tt
}

func (s *memStore) addTier(tier *models.PriceTier) *models.PriceTier {
	s.mu.Lock()
	defer s.mu.Unlock()
	tier.ID = s.nextID()
	s.tiers[tier.TicketTypeID] = append(s.tiers[tier.TicketTypeID], tier)
	return tier
}

func (s *memStore) addPromotion(p *models.Promotion, code string, codeMax *int) *models.Promotion {
	s.mu.Lock()
	defer s.mu.Unlock()
	p.ID = s.nextID()
	s.promotions[p.ID] = p
	if code != "" {
		s.vouchers[models.NormalizeVoucherCode(code)] = &models.VoucherCode{
			ID: s.nextID(), PromotionID: p.ID, TenantID: p.TenantID, Code: code, MaxRedemptions: codeMax,
		}
	}
	return p
}

func (s *memStore) setBasePrice(id int, price int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ticketTypes[id].BasePrice = price
}

func (s *memStore) sold(id int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ticketTypes[id].QuantitySold
}

func (s *memStore) ticketCount(orderID int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tickets[orderID])
}

func (s *memStore) promotion(id int) models.Promotion {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.promotions[id]
}

func (s *memStore) ageCart(userID, tenantID int, by time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.carts[[2]int{userID, tenantID}]; ok {
		c.UpdatedAt = c.UpdatedAt.Add(-by)
	}
}

func (s *memStore) expireOrder(orderID int, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders[orderID].ExpiresAt = &at
}

func cloneOrder(o *models.Order) *models.Order {
	c := *o
	c.Items = append([]models.OrderItem(nil), o.Items...)
	if o.ExpiresAt != nil {
		t := *o.ExpiresAt
		c.ExpiresAt = &t
	}
	return &c
}

// fakeOrders implements OrderRepository

type fakeOrders struct{ s *memStore }

func (f fakeOrders) CreatePending(_ context.Context, in repositories.CreateOrderInput) (*models.Order, error) {
	s := f.s
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, o := range s.orders {
		if o.UserID == in.Order.UserID && o.TenantID == in.Order.TenantID && o.IsLive(in.Order.CreatedAt) {
			return nil, models.ErrPendingOrderExists
		}
	}

	if red := in.Redemption; red != nil {
		p, ok := s.promotions[red.PromotionID]
		if !ok {
			return nil, models.ErrPromotionNotFound
		}
		if p.Exhausted() {
			return nil, models.ErrPromotionExhausted
		}
		if p.MaxPerUser != nil {
			used := 0
			for _, r := range s.redemptions {
				if r.PromotionID == p.ID && r.UserID == red.UserID {
					used++
				}
			}
			if used >= *p.MaxPerUser {
				return nil, models.ErrPromotionExhausted
			}
		}
		if red.VoucherCodeID != nil {
			for _, v := range s.vouchers {
				if v.ID == *red.VoucherCodeID {
					if v.Exhausted() {
						return nil, models.ErrPromotionExhausted
					}
					v.RedeemedCount++
				}
			}
		}
		p.RedeemedCount++
	}

	o := cloneOrder(in.Order)
	o.ID = s.nextID()
	o.OrderNumber = models.GenerateOrderNumber(o.CreatedAt)
	o.UpdatedAt = o.CreatedAt
	for i := range o.Items {
		o.Items[i].ID = s.nextID()
		o.Items[i].OrderID = o.ID
	}
	s.orders[o.ID] = o
	if in.Redemption != nil {
		s.redemptions[o.ID] = *in.Redemption
	}
	if in.ClearCartID != nil {
		for id, it := range s.cartItems {
			if it.CartID == *in.ClearCartID {
				delete(s.cartItems, id)
			}
		}
	}
	return cloneOrder(o), nil
}

func (f fakeOrders) GetByID(_ context.Context, id int) (*models.Order, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	o, ok := f.s.orders[id]
	if !ok {
		return nil, models.ErrOrderNotFound
	}
	return cloneOrder(o), nil
}

func (f fakeOrders) GetByPaymentSessionID(_ context.Context, sessionID string) (*models.Order, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	for _, o := range f.s.orders {
		if o.PaymentSessionID != nil && *o.PaymentSessionID == sessionID {
			return cloneOrder(o), nil
		}
	}
	return nil, models.ErrOrderNotFound
}

func (f fakeOrders) GetPendingForUserTenant(_ context.Context, userID, tenantID int) (*models.Order, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if f.s.missPendingLookups > 0 {
		f.s.missPendingLookups--
		return nil, nil
	}
	var newest *models.Order
	for _, o := range f.s.orders {
		if o.UserID == userID && o.TenantID == tenantID && o.IsPending() {
			if newest == nil || o.ID > newest.ID {
				newest = o
			}
		}
	}
	if newest == nil {
		return nil, nil
	}
	return cloneOrder(newest), nil
}

func (f fakeOrders) SetPaymentSession(_ context.Context, orderID int, sessionID string, expiresAt time.Time) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	o, ok := f.s.orders[orderID]
	if !ok {
		return models.ErrOrderNotFound
	}
	if !o.IsPending() {
		return models.ErrInvalidTransition
	}
	o.PaymentSessionID = &sessionID
	o.ExpiresAt = &expiresAt
	return nil
}

func (f fakeOrders) SaveAttendees(_ context.Context, orderID int, attendees []models.PendingAttendee) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	f.s.attendees[orderID] = append([]models.PendingAttendee(nil), attendees...)
	return nil
}

func (f fakeOrders) GetAttendees(_ context.Context, orderID int) ([]models.PendingAttendee, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	return append([]models.PendingAttendee(nil), f.s.attendees[orderID]...), nil
}

func (f fakeOrders) Confirm(_ context.Context, in repositories.ConfirmOrderInput) (*models.Order, error) {
	s := f.s
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[in.OrderID]
	if !ok {
		return nil, models.ErrOrderNotFound
	}
	switch o.Status {
	case models.OrderPending:
	case models.OrderConfirmed:
		return nil, models.ErrAlreadyConfirmed
	default:
		return nil, models.ErrInvalidTransition
	}

	// Check every counter before touching any, so a failure changes nothing.
	wantType := make(map[int]int)
	wantTier := make(map[int]int)
	for _, it := range o.Items {
		wantType[it.TicketTypeID] += it.Quantity
		if it.PriceTierID != nil {
			wantTier[*it.PriceTierID] += it.Quantity
		}
	}
	for id, n := range wantType {
		tt := s.ticketTypes[id]
		if tt.QuantityTotal != nil && tt.QuantitySold+n > *tt.QuantityTotal {
			return nil, models.ErrOversold
		}
	}
	for _, tiers := range s.tiers {
		for _, tier := range tiers {
			if n, ok := wantTier[tier.ID]; ok && tier.IsAllocation() && tier.AllocationSold+n > *tier.AllocationTotal {
				return nil, models.ErrOversold
			}
		}
	}

	for id, n := range wantType {
		s.ticketTypes[id].QuantitySold += n
	}
	for _, tiers := range s.tiers {
		for _, tier := range tiers {
			if n, ok := wantTier[tier.ID]; ok && tier.IsAllocation() {
				tier.AllocationSold += n
			}
		}
	}
	for _, t := range in.Tickets {
		t.ID = s.nextID()
	}
	s.tickets[o.ID] = append(s.tickets[o.ID], in.Tickets...)

	now := in.Now
	o.Status = models.OrderConfirmed
	o.ExpiresAt = nil
	o.CompletedAt = &now
	o.PaymentID = &in.Payment.PaymentID
	if in.Payment.Method != "" {
		o.PaymentMethod = &in.Payment.Method
	}
	return cloneOrder(o), nil
}

func (f fakeOrders) Cancel(_ context.Context, orderID int, now time.Time) error {
	return f.cancel(orderID, now, false)
}

func (f fakeOrders) CancelIfExpired(_ context.Context, orderID int, now time.Time) error {
	return f.cancel(orderID, now, true)
}

func (f fakeOrders) cancel(orderID int, now time.Time, onlyExpired bool) error {
	s := f.s
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID]
	if !ok {
		return models.ErrOrderNotFound
	}
	if !o.IsPending() || (onlyExpired && !o.ExpiresAt.Before(now)) {
		return models.ErrInvalidTransition
	}
	o.Status = models.OrderCancelled
	o.ExpiresAt = nil
	o.CancelledAt = &now
	if red, ok := s.redemptions[orderID]; ok {
		delete(s.redemptions, orderID)
		s.promotions[red.PromotionID].RedeemedCount--
		if red.VoucherCodeID != nil {
			for _, v := range s.vouchers {
				if v.ID == *red.VoucherCodeID {
					v.RedeemedCount--
				}
			}
		}
	}
	return nil
}

func (f fakeOrders) ListExpiredPending(_ context.Context, now time.Time, limit int) ([]int, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	var ids []int
	for id, o := range f.s.orders {
		if o.IsPending() && o.ExpiresAt.Before(now) {
			ids = append(ids, id)
		}
	}
	sort.Ints(ids)
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

func (f fakeOrders) GetTickets(_ context.Context, orderID int) ([]*models.Ticket, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	return append([]*models.Ticket(nil), f.s.tickets[orderID]...), nil
}

func (f fakeOrders) List(_ context.Context, filter repositories.OrderListFilter) ([]*models.Order, int, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	var all []*models.Order
	for _, o := range f.s.orders {
		if o.TenantID == filter.TenantID && (filter.Status == "" || o.Status == filter.Status) {
			all = append(all, cloneOrder(o))
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID > all[j].ID })
	total := len(all)
	if filter.Offset >= len(all) {
		return []*models.Order{}, total, nil
	}
	all = all[filter.Offset:]
	if len(all) > filter.Limit {
		all = all[:filter.Limit]
	}
	return all, total, nil
}

// fakeTicketTypes implements TicketTypeRepository

type fakeTicketTypes struct{ s *memStore }

func (f fakeTicketTypes) GetByID(_ context.Context, id int) (*models.TicketType, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	tt, ok := f.s.ticketTypes[id]
	if !ok {
		return nil, models.ErrTicketTypeNotFound
	}
	c := *tt
	return &c, nil
}

func (f fakeTicketTypes) ListByEvent(_ context.Context, eventID int) ([]*models.TicketType, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	var out []*models.TicketType
	for _, tt := range f.s.ticketTypes {
		if tt.EventID == eventID {
			c := *tt
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f fakeTicketTypes) GetTiers(_ context.Context, ids []int) (map[int][]*models.PriceTier, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	out := make(map[int][]*models.PriceTier)
	for _, id := range ids {
		for _, tier := range f.s.tiers[id] {
			c := *tier
			out[id] = append(out[id], &c)
		}
	}
	return out, nil
}

// fakeCarts implements CartRepository

type fakeCarts struct{ s *memStore }

func (f fakeCarts) load(c *models.Cart) *models.Cart {
	out := *c
	out.Items = nil
	for _, it := range f.s.cartItems {
		if it.CartID == c.ID {
			out.Items = append(out.Items, *it)
		}
	}
	sort.Slice(out.Items, func(i, j int) bool { return out.Items[i].ID < out.Items[j].ID })
	return &out
}

func (f fakeCarts) byID(cartID int) *models.Cart {
	for _, c := range f.s.carts {
		if c.ID == cartID {
			return c
		}
	}
	return nil
}

func (f fakeCarts) Get(_ context.Context, userID, tenantID int) (*models.Cart, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	c, ok := f.s.carts[[2]int{userID, tenantID}]
	if !ok {
		return nil, nil
	}
	return f.load(c), nil
}

func (f fakeCarts) GetByID(_ context.Context, cartID int) (*models.Cart, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	c := f.byID(cartID)
	if c == nil {
		return nil, nil
	}
	return f.load(c), nil
}

func (f fakeCarts) GetOrCreate(_ context.Context, userID, tenantID int) (*models.Cart, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	key := [2]int{userID, tenantID}
	c, ok := f.s.carts[key]
	if !ok {
		now := time.Now()
		c = &models.Cart{ID: f.s.nextID(), UserID: userID, TenantID: tenantID, CreatedAt: now, UpdatedAt: now}
		f.s.carts[key] = c
	}
	return f.load(c), nil
}

func (f fakeCarts) AddOrMergeItem(_ context.Context, cartID int, item models.CartItem) (*models.CartItem, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if c := f.byID(cartID); c != nil {
		c.UpdatedAt = time.Now()
	}
	for _, it := range f.s.cartItems {
		if it.CartID == cartID && it.SameLine(item.TicketTypeID, item.PriceTierID) {
			it.Quantity = models.MergeQuantity(it.Quantity, item.Quantity)
			c := *it
			return &c, nil
		}
	}
	item.ID = f.s.nextID()
	item.CartID = cartID
	f.s.cartItems[item.ID] = &item
	c := item
	return &c, nil
}

func (f fakeCarts) GetItemForUser(_ context.Context, userID, itemID int) (*models.CartItem, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	it, ok := f.s.cartItems[itemID]
	if !ok {
		return nil, models.ErrCartItemNotFound
	}
	if c := f.byID(it.CartID); c == nil || c.UserID != userID {
		return nil, models.ErrCartItemNotFound
	}
	c := *it
	return &c, nil
}

func (f fakeCarts) SetItemQuantity(_ context.Context, cartID, itemID, quantity int) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	it, ok := f.s.cartItems[itemID]
	if !ok || it.CartID != cartID {
		return models.ErrCartItemNotFound
	}
	it.Quantity = quantity
	f.byID(cartID).UpdatedAt = time.Now()
	return nil
}

func (f fakeCarts) DeleteItem(_ context.Context, cartID, itemID int) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	it, ok := f.s.cartItems[itemID]
	if !ok || it.CartID != cartID {
		return models.ErrCartItemNotFound
	}
	delete(f.s.cartItems, itemID)
	f.byID(cartID).UpdatedAt = time.Now()
	return nil
}

func (f fakeCarts) Clear(_ context.Context, cartID int) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	for id, it := range f.s.cartItems {
		if it.CartID == cartID {
			delete(f.s.cartItems, id)
		}
	}
	if c := f.byID(cartID); c != nil {
		c.UpdatedAt = time.Now()
	}
	return nil
}

// fakePromotions implements PromotionRepository

type fakePromotions struct{ s *memStore }

func (f fakePromotions) GetByVoucherCode(_ context.Context, tenantID int, code string) (*models.Promotion, *models.VoucherCode, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	v, ok := f.s.vouchers[models.NormalizeVoucherCode(code)]
	if !ok || v.TenantID != tenantID {
		return nil, nil, models.ErrVoucherInvalid
	}
	p := *f.s.promotions[v.PromotionID]
	vc := *v
	return &p, &vc, nil
}

func (f fakePromotions) ListAutomatic(_ context.Context, tenantID int, at time.Time) ([]*models.Promotion, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	var out []*models.Promotion
	for _, p := range f.s.promotions {
		if p.TenantID == tenantID && !p.RequiresCode && p.InWindow(at) {
			c := *p
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f fakePromotions) CountUserRedemptions(_ context.Context, promotionID, userID int) (int, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	n := 0
	for _, r := range f.s.redemptions {
		if r.PromotionID == promotionID && r.UserID == userID {
			n++
		}
	}
	return n, nil
}

type fakeEvents struct{ s *memStore }

func (f fakeEvents) GetByID(_ context.Context, id int) (*models.Event, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	e, ok := f.s.events[id]
	if !ok {
		return nil, models.ErrEventNotFound
	}
	c := *e
	return &c, nil
}

// fakeGateway implements PaymentGateway

type fakeGateway struct {
	mu          sync.Mutex
	sessions    map[string]*CheckoutSession
	requests    []CheckoutSessionRequest
	retrieveErr error
	seq         int
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{sessions: make(map[string]*CheckoutSession)}
}

func (g *fakeGateway) CreateCheckoutSession(_ context.Context, req CheckoutSessionRequest) (*CheckoutSession, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seq++
	id := fmt.Sprintf("cs_test_%d", g.seq)
	s := &CheckoutSession{ID: id, CheckoutURL: "https://checkout.paymongo.com/" + id, Status: SessionStatusActive,
		ReferenceNumber: req.ReferenceNumber}
	g.sessions[id] = s
	g.requests = append(g.requests, req)
	c := *s
	return &c, nil
}

func (g *fakeGateway) RetrieveCheckoutSession(_ context.Context, id string) (*CheckoutSession, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.retrieveErr != nil {
		return nil, g.retrieveErr
	}
	s, ok := g.sessions[id]
	if !ok {
		return nil, fmt.Errorf("no such session %s", id)
	}
	c := *s
	c.Payments = append([]CheckoutPayment(nil), s.Payments...)
	return &c, nil
}

// pay attaches a paid payment to the session.
func (g *fakeGateway) pay(sessionID string, amount int64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	s := g.sessions[sessionID]
	s.Payments = append(s.Payments, CheckoutPayment{
		ID: "pay_" + sessionID, Amount: amount, Status: PaymentStatusPaid, Method: "gcash", PaidAt: time.Now(),
	})
}

func (g *fakeGateway) setStatus(sessionID, status string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.sessions[sessionID].Status = status
}

type recordingNotifier struct {
	mu  sync.Mutex
	ids []int
}

func (n *recordingNotifier) OrderConfirmed(orderID int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.ids = append(n.ids, orderID)
}

func (n *recordingNotifier) confirmed() []int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]int(nil), n.ids...)
}

package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"ticketing-checkout/internal/models"

	"github.com/rs/zerolog"
)

// AddCartItemRequest is an add-to-cart call from a buyer
type AddCartItemRequest struct {
	UserID       int  `json:"-"`
	TenantID     int  `json:"-"`
	EventID      int  `json:"event_id"`
	TicketTypeID int  `json:"ticket_type_id"`
	PriceTierID  *int `json:"price_tier_id,omitempty"`
	Quantity     int  `json:"quantity"`
}

// PriceQuote is the display price of a ticket type right now
type PriceQuote struct {
	TicketTypeID int               `json:"ticket_type_id"`
	Name         string            `json:"name"`
	Kind         models.TicketKind `json:"kind"`
	BasePrice    int64             `json:"base_price"`
	Price        int64             `json:"price"`
	TierID       *int              `json:"tier_id,omitempty"`
	TierName     string            `json:"tier_name,omitempty"`
	// TierRemaining is left in an allocation tier; nil for time window tiers.
	TierRemaining *int `json:"tier_remaining,omitempty"`
	Remaining     int  `json:"remaining"` // -1 when unlimited
	OnSale        bool `json:"on_sale"`
}

// CartService holds buyers' pending selections per tenant
type CartService struct {
	carts       CartRepository
	ticketTypes TicketTypeRepository
	events      EventRepository
	ttl         time.Duration
	now         func() time.Time
	log         zerolog.Logger
}

// NewCartService creates a new cart service
func NewCartService(carts CartRepository, ticketTypes TicketTypeRepository, events EventRepository, ttl time.Duration, log zerolog.Logger) *CartService {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &CartService{
		carts:       carts,
		ticketTypes: ticketTypes,
		events:      events,
		ttl:         ttl,
		now:         time.Now,
		log:         log.With().Str("component", "cart").Logger(),
	}
}

// AddItem validates the selection and merges it into the tenant cart.
func (s *CartService) AddItem(ctx context.Context, req AddCartItemRequest) (*models.CartItem, error) {
	if err := models.ValidateLineQuantity(req.Quantity); err != nil {
		return nil, err
	}

	now := s.now()
	event, err := s.events.GetByID(ctx, req.EventID)
	if err != nil {
		return nil, err
	}
	if event.TenantID != req.TenantID {
		return nil, models.ErrEventNotFound
	}
	if !event.IsOnSale(now) {
		return nil, models.ErrEventNotOnSale
	}

	tt, err := s.ticketTypes.GetByID(ctx, req.TicketTypeID)
	if err != nil {
		return nil, err
	}
	if tt.EventID != event.ID {
		return nil, fmt.Errorf("%w: ticket type %d does not belong to event %d", models.ErrTicketTypeNotFound, tt.ID, event.ID)
	}
	if !tt.IsOnSale(now) {
		return nil, models.ErrSalesClosed
	}
	if !tt.HasCapacityFor(req.Quantity) {
		return nil, models.ErrInsufficientStock
	}

	if req.PriceTierID != nil {
		tiers, err := s.ticketTypes.GetTiers(ctx, []int{tt.ID})
		if err != nil {
			return nil, err
		}
		found := false
		for _, tier := range tiers[tt.ID] {
			if tier.ID == *req.PriceTierID {
				found = true
				break
			}
		}
		if !found {
			return nil, models.ErrPriceTierNotFound
		}
	}

	cart, err := s.carts.GetOrCreate(ctx, req.UserID, req.TenantID)
	if err != nil {
		return nil, err
	}
	// An idle cart is logically empty, so stale lines must not merge into new ones.
	if cart.IsExpired(now, s.ttl) && len(cart.Items) > 0 {
		if err := s.carts.Clear(ctx, cart.ID); err != nil {
			return nil, err
		}
	}

	item, err := s.carts.AddOrMergeItem(ctx, cart.ID, models.CartItem{
		EventID:      event.ID,
		TicketTypeID: tt.ID,
		PriceTierID:  req.PriceTierID,
		Quantity:     req.Quantity,
	})
	if err != nil {
		return nil, err
	}

	s.log.Debug().Int("user_id", req.UserID).Int("cart_id", cart.ID).Int("ticket_type_id", tt.ID).
		Int("quantity", item.Quantity).Msg("cart line updated")
	return item, nil
}

// UpdateItem sets a line's quantity; zero removes the line.
func (s *CartService) UpdateItem(ctx context.Context, userID, itemID, quantity int) error {
	if quantity == 0 {
		return s.RemoveItem(ctx, userID, itemID)
	}
	if err := models.ValidateLineQuantity(quantity); err != nil {
		return err
	}
	item, err := s.liveItem(ctx, userID, itemID)
	if err != nil {
		return err
	}
	return s.carts.SetItemQuantity(ctx, item.CartID, item.ID, quantity)
}

func (s *CartService) RemoveItem(ctx context.Context, userID, itemID int) error {
	item, err := s.liveItem(ctx, userID, itemID)
	if err != nil {
		return err
	}
	return s.carts.DeleteItem(ctx, item.CartID, item.ID)
}

// liveItem loads the buyer's line. Lines of an idle cart no longer exist: the
// cart is cleared so that writing to it cannot revive them.
func (s *CartService) liveItem(ctx context.Context, userID, itemID int) (*models.CartItem, error) {
	item, err := s.carts.GetItemForUser(ctx, userID, itemID)
	if err != nil {
		return nil, err
	}
	cart, err := s.carts.GetByID(ctx, item.CartID)
	if err != nil {
		return nil, err
	}
	if cart == nil {
		return nil, models.ErrCartItemNotFound
	}
	if cart.IsExpired(s.now(), s.ttl) {
		if err := s.carts.Clear(ctx, cart.ID); err != nil {
			return nil, err
		}
		return nil, models.ErrCartItemNotFound
	}
	return item, nil
}

// GetCartForTenant returns the priced, event-grouped cart. A cart idle past its
// TTL reads as empty.
func (s *CartService) GetCartForTenant(ctx context.Context, userID, tenantID int) (*models.CartView, error) {
	view := &models.CartView{TenantID: tenantID, Groups: []models.CartEventGroup{}}

	cart, err := s.carts.Get(ctx, userID, tenantID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	if cart == nil || cart.IsExpired(now, s.ttl) || len(cart.Items) == 0 {
		return view, nil
	}
	view.CartID = cart.ID
	expires := cart.ExpiresAt(s.ttl)
	view.ExpiresAt = &expires

	ids := make([]int, 0, len(cart.Items))
	for _, it := range cart.Items {
		ids = append(ids, it.TicketTypeID)
	}
	tiers, err := s.ticketTypes.GetTiers(ctx, ids)
	if err != nil {
		return nil, err
	}

	groups := make(map[int]*models.CartEventGroup)
	for _, it := range cart.Items {
		tt, err := s.ticketTypes.GetByID(ctx, it.TicketTypeID)
		if err != nil {
			return nil, err
		}
		group, ok := groups[it.EventID]
		if !ok {
			event, err := s.events.GetByID(ctx, it.EventID)
			if err != nil {
				return nil, err
			}
			// Lines of another tenant's events never belong in this view.
			if event.TenantID != tenantID {
				continue
			}
			group = &models.CartEventGroup{EventID: event.ID, EventTitle: event.Title}
			groups[it.EventID] = group
		}

		price, tier := ResolvePriceForQuantity(tt, tiers[tt.ID], now, it.Quantity)
		line := models.CartLineView{
			CartItem:       it,
			TicketTypeName: tt.Name,
			UnitPrice:      price,
			LineTotal:      price * int64(it.Quantity),
			Available:      tt.HasCapacityFor(it.Quantity) && tt.IsOnSale(now),
		}
		if tier != nil {
			line.TierName = tier.Name
		}
		group.Lines = append(group.Lines, line)
		group.Subtotal += line.LineTotal
		view.Subtotal += line.LineTotal
		view.ItemCount += it.Quantity
	}

	for _, g := range groups {
		view.Groups = append(view.Groups, *g)
	}
	sort.Slice(view.Groups, func(i, j int) bool { return view.Groups[i].EventID < view.Groups[j].EventID })
	return view, nil
}

// QuoteEvent prices every ticket type of a tenant's event for display.
func (s *CartService) QuoteEvent(ctx context.Context, tenantID, eventID int) ([]PriceQuote, error) {
	event, err := s.events.GetByID(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if event.TenantID != tenantID {
		return nil, models.ErrEventNotFound
	}

	types, err := s.ticketTypes.ListByEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	ids := make([]int, len(types))
	for i, tt := range types {
		ids[i] = tt.ID
	}
	tiers, err := s.ticketTypes.GetTiers(ctx, ids)
	if err != nil {
		return nil, err
	}

	now := s.now()
	quotes := make([]PriceQuote, 0, len(types))
	for _, tt := range types {
		price, tier := ResolvePrice(tt, tiers[tt.ID], now)
		q := PriceQuote{
			TicketTypeID: tt.ID,
			Name:         tt.Name,
			Kind:         tt.Kind,
			BasePrice:    tt.BasePrice,
			Price:        price,
			Remaining:    tt.Remaining(),
			OnSale:       event.IsOnSale(now) && tt.IsOnSale(now) && !tt.IsSoldOut(),
		}
		if tier != nil {
			q.TierID = &tier.ID
			q.TierName = tier.Name
			if tier.IsAllocation() && tier.AllocationTotal != nil {
				left := *tier.AllocationTotal - tier.AllocationSold
				q.TierRemaining = &left
			}
		}
		quotes = append(quotes, q)
	}
	return quotes, nil
}

package handlers

import (
	"net/http"

	"ticketing-checkout/internal/middleware"
	"ticketing-checkout/internal/services"
)

// CartHandler serves a tenant's cart and its price quotes
type CartHandler struct {
	cart services.CartServiceInterface
}

// NewCartHandler creates a new cart handler
func NewCartHandler(cart services.CartServiceInterface) *CartHandler {
	return &CartHandler{cart: cart}
}

type addItemRequest struct {
	EventID      int  `json:"event_id"`
	TicketTypeID int  `json:"ticket_type_id"`
	PriceTierID  *int `json:"price_tier_id,omitempty"`
	Quantity     int  `json:"quantity"`
}

type updateItemRequest struct {
	Quantity int `json:"quantity"`
}

// Quotes lists the current display price of each ticket type of an event.
func (h *CartHandler) Quotes(w http.ResponseWriter, r *http.Request) {
	tenant := middleware.GetTenantFromContext(r.Context())
	eventID, ok := urlParamInt(w, r, "eventID")
	if !ok {
		return
	}

	quotes, err := h.cart.QuoteEvent(r.Context(), tenant.ID, eventID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, quotes)
}

func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r.Context())
	tenant := middleware.GetTenantFromContext(r.Context())

	view, err := h.cart.GetCartForTenant(r.Context(), user.ID, tenant.ID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, view)
}

// AddItem adds tickets to the buyer's cart, merging with an existing line.
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r.Context())
	tenant := middleware.GetTenantFromContext(r.Context())

	var req addItemRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.EventID <= 0 || req.TicketTypeID <= 0 {
		writeError(w, http.StatusBadRequest, "event_id and ticket_type_id are required")
		return
	}

	item, err := h.cart.AddItem(r.Context(), services.AddCartItemRequest{
		UserID:       user.ID,
		TenantID:     tenant.ID,
		EventID:      req.EventID,
		TicketTypeID: req.TicketTypeID,
		PriceTierID:  req.PriceTierID,
		Quantity:     req.Quantity,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, item)
}

// UpdateItem sets a line's quantity; zero removes it.
func (h *CartHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r.Context())
	itemID, ok := urlParamInt(w, r, "itemID")
	if !ok {
		return
	}
	var req updateItemRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.cart.UpdateItem(r.Context(), user.ID, itemID, req.Quantity); err != nil {
		writeServiceError(w, r, err)
		return
	}
	h.GetCart(w, r)
}

func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r.Context())
	itemID, ok := urlParamInt(w, r, "itemID")
	if !ok {
		return
	}

	if err := h.cart.RemoveItem(r.Context(), user.ID, itemID); err != nil {
		writeServiceError(w, r, err)
		return
	}
	h.GetCart(w, r)
}

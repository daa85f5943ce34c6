package handlers

import (
	"net/http"
	"strconv"

	"ticketing-checkout/internal/middleware"
	"ticketing-checkout/internal/models"
	"ticketing-checkout/internal/services"
)

// OrganizerHandler serves the tenant back office
type OrganizerHandler struct {
	checkout services.CheckoutServiceInterface
}

func NewOrganizerHandler(checkout services.CheckoutServiceInterface) *OrganizerHandler {
	return &OrganizerHandler{checkout: checkout}
}

type orderList struct {
	Orders []*models.Order `json:"orders"`
	Total  int             `json:"total"`
	Limit  int             `json:"limit"`
	Offset int             `json:"offset"`
}

// ListOrders pages through the tenant's orders, optionally filtered by ?status=.
func (h *OrganizerHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	tenant := middleware.GetTenantFromContext(r.Context())
	q := r.URL.Query()

	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))
	if offset < 0 {
		offset = 0
	}

	orders, total, err := h.checkout.ListTenantOrders(r.Context(), tenant.ID, models.OrderStatus(q.Get("status")), limit, offset)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if orders == nil {
		orders = []*models.Order{}
	}
	writeData(w, http.StatusOK, orderList{Orders: orders, Total: total, Limit: limit, Offset: offset})
}

package handlers

import (
	"net/http"

	"ticketing-checkout/internal/middleware"
	"ticketing-checkout/internal/models"
	"ticketing-checkout/internal/services"
)

// CheckoutHandler drives a buyer's order from checkout to confirmation
type CheckoutHandler struct {
	checkout services.CheckoutServiceInterface
}

func NewCheckoutHandler(checkout services.CheckoutServiceInterface) *CheckoutHandler {
	return &CheckoutHandler{checkout: checkout}
}

type initializeCheckoutRequest struct {
	VoucherCode string `json:"voucher_code"`
}

type saveAttendeesRequest struct {
	Attendees []models.PendingAttendee `json:"attendees"`
}

// InitializeCheckout turns the buyer's cart for the tenant into a pending order.
func (h *CheckoutHandler) InitializeCheckout(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r.Context())
	tenant := middleware.GetTenantFromContext(r.Context())

	var req initializeCheckoutRequest
	if r.ContentLength != 0 && !decodeJSON(w, r, &req) {
		return
	}

	order, err := h.checkout.InitializeCheckout(r.Context(), user, tenant.ID, req.VoucherCode)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, order)
}

// GetPendingOrder returns the buyer's live pending order for the tenant, or
// null when there is none.
func (h *CheckoutHandler) GetPendingOrder(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r.Context())
	tenant := middleware.GetTenantFromContext(r.Context())

	order, err := h.checkout.GetPendingOrderForTenant(r.Context(), user.ID, tenant.ID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if order == nil {
		writeData(w, http.StatusOK, nil)
		return
	}
	writeData(w, http.StatusOK, order)
}

func (h *CheckoutHandler) CreatePaymentSession(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r.Context())
	orderID, ok := urlParamInt(w, r, "orderID")
	if !ok {
		return
	}

	result, err := h.checkout.CreatePaymentSession(r.Context(), user.ID, orderID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, result)
}

func (h *CheckoutHandler) SaveAttendees(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r.Context())
	orderID, ok := urlParamInt(w, r, "orderID")
	if !ok {
		return
	}
	var req saveAttendeesRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.checkout.SaveAttendees(r.Context(), user.ID, orderID, req.Attendees); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, map[string]int{"saved": len(req.Attendees)})
}

func (h *CheckoutHandler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r.Context())
	orderID, ok := urlParamInt(w, r, "orderID")
	if !ok {
		return
	}

	if err := h.checkout.CancelOrder(r.Context(), user.ID, orderID); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, map[string]string{"status": string(models.OrderCancelled)})
}

// VerifyPayment is polled by the success page until the order is confirmed.
func (h *CheckoutHandler) VerifyPayment(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r.Context())
	orderID, ok := urlParamInt(w, r, "orderID")
	if !ok {
		return
	}

	result, err := h.checkout.VerifyAndConfirmPayment(r.Context(), user.ID, orderID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, result)
}

func (h *CheckoutHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r.Context())
	orderID, ok := urlParamInt(w, r, "orderID")
	if !ok {
		return
	}

	details, err := h.checkout.GetOrderDetails(r.Context(), user.ID, orderID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, details)
}

package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"ticketing-checkout/internal/models"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// maxBodyBytes bounds JSON request bodies
const maxBodyBytes = 1 << 20

type envelope struct {
	Data  any    `json:"data,omitempty"`
	Error string `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeData(w http.ResponseWriter, status int, data any) {
	if data == nil {
		// keep the "data" key so clients can tell "nothing" from an error
		writeJSON(w, status, map[string]any{"data": nil})
		return
	}
	writeJSON(w, status, envelope{Data: data})
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, envelope{Error: message})
}

// errorStatus maps domain errors to an HTTP status. The message shown to the
// buyer is the sentinel's text so wrapped internals never leak.
var errorStatus = []struct {
	err    error
	status int
}{
	{models.ErrInvalidInput, http.StatusBadRequest},
	{models.ErrInvalidQuantity, http.StatusBadRequest},
	{models.ErrCartEmpty, http.StatusBadRequest},
	{models.ErrMultipleEvents, http.StatusBadRequest},
	{models.ErrEventNotOnSale, http.StatusBadRequest},
	{models.ErrSalesClosed, http.StatusBadRequest},
	{models.ErrInvalidAttendees, http.StatusBadRequest},
	{models.ErrVoucherInvalid, http.StatusBadRequest},
	{models.ErrPromotionNotApplicable, http.StatusBadRequest},
	{models.ErrUnauthorized, http.StatusUnauthorized},
	{models.ErrForbidden, http.StatusForbidden},
	{models.ErrTenantNotFound, http.StatusNotFound},
	{models.ErrEventNotFound, http.StatusNotFound},
	{models.ErrUserNotFound, http.StatusNotFound},
	{models.ErrOrderNotFound, http.StatusNotFound},
	{models.ErrTicketTypeNotFound, http.StatusNotFound},
	{models.ErrPriceTierNotFound, http.StatusNotFound},
	{models.ErrCartItemNotFound, http.StatusNotFound},
	{models.ErrPromotionNotFound, http.StatusNotFound},
	{models.ErrInsufficientStock, http.StatusConflict},
	{models.ErrOversold, http.StatusConflict},
	{models.ErrPromotionExhausted, http.StatusConflict},
	{models.ErrInvalidTransition, http.StatusConflict},
	{models.ErrOrderExpired, http.StatusConflict},
	{models.ErrAlreadyConfirmed, http.StatusConflict},
	{models.ErrPaymentAmountMismatch, http.StatusConflict},
	{models.ErrNoPaymentSession, http.StatusConflict},
	{models.ErrPendingOrderExists, http.StatusConflict},
}

// writeServiceError answers with the status mapped from err, logging
// anything that is not a known domain error.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	for _, e := range errorStatus {
		if errors.Is(err, e.err) {
			if e.err == models.ErrOversold {
				zerolog.Ctx(r.Context()).Error().Err(err).Msg("oversold while confirming order")
			}
			writeError(w, e.status, e.err.Error())
			return
		}
	}
	zerolog.Ctx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	writeError(w, http.StatusInternalServerError, "Something went wrong. Please try again.")
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}

func urlParamInt(w http.ResponseWriter, r *http.Request, name string) (int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, name))
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "Invalid "+name)
		return 0, false
	}
	return id, true
}

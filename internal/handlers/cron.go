package handlers

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"ticketing-checkout/internal/services"

	"github.com/rs/zerolog"
)

// CronHandler exposes scheduled maintenance to an external scheduler
type CronHandler struct {
	reaper services.ReaperInterface
	secret string
}

func NewCronHandler(reaper services.ReaperInterface, secret string) *CronHandler {
	return &CronHandler{reaper: reaper, secret: secret}
}

// CleanupOrders cancels expired pending orders. Callers authenticate with
// "Authorization: Bearer <CRON_SECRET>".
func (h *CronHandler) CleanupOrders(w http.ResponseWriter, r *http.Request) {
	log := zerolog.Ctx(r.Context())

	if h.secret == "" {
		log.Error().Msg("cron secret is not configured")
		writeError(w, http.StatusInternalServerError, "Cron not configured")
		return
	}
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok || subtle.ConstantTimeCompare([]byte(token), []byte(h.secret)) != 1 {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	cancelled, err := h.reaper.CleanupAllExpiredOrders(r.Context())
	if err != nil {
		log.Error().Err(err).Int("cancelled", cancelled).Msg("expired order cleanup failed")
		writeError(w, http.StatusInternalServerError, "Cleanup failed")
		return
	}
	writeJSON(w, http.StatusOK, cleanupResponse{OK: true, Cancelled: cancelled})
}

type cleanupResponse struct {
	OK        bool `json:"ok"`
	Cancelled int  `json:"cancelled"`
}

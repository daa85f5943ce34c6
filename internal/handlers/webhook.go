package handlers

import (
	"errors"
	"io"
	"net/http"

	"ticketing-checkout/internal/services"

	"github.com/rs/zerolog"
)

// maxWebhookBytes bounds webhook payloads
const maxWebhookBytes = 64 << 10

// WebhookHandler receives PayMongo events
type WebhookHandler struct {
	processor services.WebhookProcessor
	secret    string
}

func NewWebhookHandler(processor services.WebhookProcessor, secret string) *WebhookHandler {
	return &WebhookHandler{processor: processor, secret: secret}
}

// PayMongo verifies the signature and hands paid checkout events to the
// processor. Once verified the gateway always gets a 200 so it stops
// retrying; processing failures are logged and left to polling or the reaper.
func (h *WebhookHandler) PayMongo(w http.ResponseWriter, r *http.Request) {
	log := zerolog.Ctx(r.Context())

	if h.secret == "" {
		log.Error().Msg("webhook secret is not configured")
		writeError(w, http.StatusInternalServerError, "Webhook not configured")
		return
	}

	// A body that cannot be read in full cannot be verified either.
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBytes))
	if err != nil {
		log.Warn().Err(err).Str("ip", r.RemoteAddr).Msg("rejected unreadable webhook")
		writeError(w, http.StatusUnauthorized, "Invalid signature")
		return
	}

	if err := services.VerifyWebhookSignature(body, r.Header.Get(services.SignatureHeader), h.secret); err != nil {
		log.Warn().Err(err).Str("ip", r.RemoteAddr).Msg("rejected webhook")
		writeError(w, http.StatusUnauthorized, "Invalid signature")
		return
	}

	event, err := services.ParseWebhookEvent(body)
	if err != nil {
		log.Error().Err(err).Msg("unreadable webhook payload")
		writeData(w, http.StatusOK, map[string]bool{"received": true})
		return
	}

	if event.Type != services.EventCheckoutPaid {
		log.Debug().Str("event_id", event.ID).Str("type", event.Type).Msg("ignoring webhook event")
		writeData(w, http.StatusOK, map[string]bool{"received": true})
		return
	}

	if err := h.processor.HandleCheckoutPaid(r.Context(), event); err != nil {
		ev := log.Error()
		if errors.Is(err, r.Context().Err()) {
			ev = log.Warn()
		}
		ev.Err(err).Str("event_id", event.ID).Str("session_id", event.SessionID).Msg("failed to process checkout paid event")
	}
	writeData(w, http.StatusOK, map[string]bool{"received": true})
}

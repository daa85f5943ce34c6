package services

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"ticketing-checkout/internal/models"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	PaymentStatusPaid   = "paid"
	SessionStatusActive = "active"

	// EventCheckoutPaid is the only webhook event type acted upon.
	EventCheckoutPaid = "checkout_session.payment.paid"

	// SignatureHeader carries t=<unix>,te=<test hex>,li=<live hex>.
	SignatureHeader = "Paymongo-Signature"
)

// ErrInvalidSignature is returned for a missing, garbled or non-matching
// webhook signature.
var ErrInvalidSignature = errors.New("invalid webhook signature")

// PayMongoConfig configures the PayMongo client
type PayMongoConfig struct {
	SecretKey string
	BaseURL   string
}

// PayMongoClient talks to the PayMongo checkout sessions API
type PayMongoClient struct {
	config PayMongoConfig
	client *http.Client
	log    zerolog.Logger
}

// NewPayMongoClient creates a new PayMongo client
func NewPayMongoClient(config PayMongoConfig, log zerolog.Logger) *PayMongoClient {
	if config.BaseURL == "" {
		config.BaseURL = "https://api.paymongo.com/v1"
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")
	return &PayMongoClient{
		config: config,
		client: &http.Client{
			Timeout:   30 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		log: log.With().Str("component", "paymongo").Logger(),
	}
}

type CheckoutLineItem struct {
	Name     string `json:"name"`
	Amount   int64  `json:"amount"` // per unit, minor units
	Currency string `json:"currency"`
	Quantity int    `json:"quantity"`
}

// CheckoutSessionRequest describes a hosted checkout to open
type CheckoutSessionRequest struct {
	ReferenceNumber    string             `json:"reference_number"`
	Description        string             `json:"description,omitempty"`
	LineItems          []CheckoutLineItem `json:"line_items"`
	PaymentMethodTypes []string           `json:"payment_method_types"`
	SuccessURL         string             `json:"success_url"`
	CancelURL          string             `json:"cancel_url"`
}

// CheckoutSession is the gateway's view of a hosted checkout
type CheckoutSession struct {
	ID              string
	CheckoutURL     string
	Status          string
	ReferenceNumber string
	Payments        []CheckoutPayment
}

// CheckoutPayment is a payment attempt attached to a checkout session
type CheckoutPayment struct {
	ID     string
	Amount int64
	Status string
	Method string
	PaidAt time.Time
}

func (s *CheckoutSession) IsActive() bool {
	return s.Status == SessionStatusActive
}

// PaidPayment returns the first payment with status paid, or nil.
func (s *CheckoutSession) PaidPayment() *CheckoutPayment {
	for i := range s.Payments {
		if s.Payments[i].Status == PaymentStatusPaid {
			return &s.Payments[i]
		}
	}
	return nil
}

func (p CheckoutPayment) Details() models.PaymentDetails {
	return models.PaymentDetails{
		PaymentID: p.ID,
		Amount:    p.Amount,
		Method:    p.Method,
		PaidAt:    p.PaidAt,
	}
}

// wire formats

type sessionEnvelope struct {
	Data sessionResource `json:"data"`
}

type sessionResource struct {
	ID         string            `json:"id"`
	Attributes sessionAttributes `json:"attributes"`
}

type sessionAttributes struct {
	CheckoutURL     string            `json:"checkout_url"`
	Status          string            `json:"status"`
	ReferenceNumber string            `json:"reference_number"`
	Payments        []paymentResource `json:"payments"`
}

type paymentResource struct {
	ID         string `json:"id"`
	Attributes struct {
		Amount int64  `json:"amount"`
		Status string `json:"status"`
		PaidAt int64  `json:"paid_at"`
		Source struct {
			Type string `json:"type"`
		} `json:"source"`
	} `json:"attributes"`
}

func (r sessionResource) toSession() *CheckoutSession {
	s := &CheckoutSession{
		ID:              r.ID,
		CheckoutURL:     r.Attributes.CheckoutURL,
		Status:          r.Attributes.Status,
		ReferenceNumber: r.Attributes.ReferenceNumber,
	}
	s.Payments = toPayments(r.Attributes.Payments)
	return s
}

func toPayments(in []paymentResource) []CheckoutPayment {
	out := make([]CheckoutPayment, 0, len(in))
	for _, p := range in {
		cp := CheckoutPayment{
			ID:     p.ID,
			Amount: p.Attributes.Amount,
			Status: p.Attributes.Status,
			Method: p.Attributes.Source.Type,
		}
		if p.Attributes.PaidAt > 0 {
			cp.PaidAt = time.Unix(p.Attributes.PaidAt, 0).UTC()
		}
		out = append(out, cp)
	}
	return out
}

type apiErrors struct {
	Errors []struct {
		Code   string `json:"code"`
		Detail string `json:"detail"`
	} `json:"errors"`
}

// APIError is a non-2xx answer from PayMongo
type APIError struct {
	StatusCode int
	Code       string
	Detail     string
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("paymongo: status %d: %s", e.StatusCode, e.Detail)
	}
	return fmt.Sprintf("paymongo: status %d: %s: %s", e.StatusCode, e.Code, e.Detail)
}

// CreateCheckoutSession opens a hosted checkout session.
func (c *PayMongoClient) CreateCheckoutSession(ctx context.Context, req CheckoutSessionRequest) (*CheckoutSession, error) {
	payload := map[string]any{
		"data": map[string]any{"attributes": req},
	}
	var env sessionEnvelope
	if err := c.do(ctx, http.MethodPost, "/checkout_sessions", payload, &env); err != nil {
		return nil, fmt.Errorf("failed to create checkout session: %w", err)
	}
	if env.Data.ID == "" || env.Data.Attributes.CheckoutURL == "" {
		return nil, errors.New("failed to create checkout session: empty session in response")
	}
	c.log.Debug().Str("session_id", env.Data.ID).Str("reference", req.ReferenceNumber).Msg("checkout session created")
	return env.Data.toSession(), nil
}

// RetrieveCheckoutSession loads a session with its payments.
func (c *PayMongoClient) RetrieveCheckoutSession(ctx context.Context, sessionID string) (*CheckoutSession, error) {
	if sessionID == "" {
		return nil, errors.New("session id is required")
	}
	var env sessionEnvelope
	if err := c.do(ctx, http.MethodGet, "/checkout_sessions/"+sessionID, nil, &env); err != nil {
		return nil, fmt.Errorf("failed to retrieve checkout session %s: %w", sessionID, err)
	}
	return env.Data.toSession(), nil
}

func (c *PayMongoClient) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.config.BaseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.SetBasicAuth(c.config.SecretKey, "")
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Detail: string(data)}
		var parsed apiErrors
		if json.Unmarshal(data, &parsed) == nil && len(parsed.Errors) > 0 {
			apiErr.Code = parsed.Errors[0].Code
			apiErr.Detail = parsed.Errors[0].Detail
		}
		return apiErr
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// VerifyWebhookSignature checks a Paymongo-Signature header against the raw
// body. The signed content is "<t>.<body>"; either the te or li value may match.
func VerifyWebhookSignature(body []byte, header, secret string) error {
	if secret == "" || header == "" {
		return ErrInvalidSignature
	}

	var timestamp string
	var candidates []string
	for _, part := range strings.Split(header, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch key {
		case "t":
			timestamp = value
		case "te", "li":
			if value != "" {
				candidates = append(candidates, value)
			}
		}
	}
	if timestamp == "" || len(candidates) == 0 {
		return ErrInvalidSignature
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(body)
	expected := []byte(hex.EncodeToString(mac.Sum(nil)))

	for _, c := range candidates {
		if hmac.Equal(expected, []byte(strings.ToLower(c))) {
			return nil
		}
	}
	return ErrInvalidSignature
}

// SignWebhookPayload builds a Paymongo-Signature header value for body. It is
// used by tests and local tooling that replay webhook events.
func SignWebhookPayload(body []byte, secret string, at time.Time, live bool) string {
	ts := fmt.Sprintf("%d", at.Unix())
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(ts + "."))
	mac.Write(body)
	sig := hex.EncodeToString(mac.Sum(nil))
	if live {
		return fmt.Sprintf("t=%s,te=,li=%s", ts, sig)
	}
	return fmt.Sprintf("t=%s,te=%s,li=", ts, sig)
}

// WebhookEvent is a verified PayMongo event reduced to what checkout needs
type WebhookEvent struct {
	ID        string
	Type      string
	SessionID string
	Payments  []CheckoutPayment
}

type webhookEnvelope struct {
	Data struct {
		ID         string `json:"id"`
		Attributes struct {
			Type string          `json:"type"`
			Data sessionResource `json:"data"`
		} `json:"attributes"`
	} `json:"data"`
}

// ParseWebhookEvent decodes a webhook body.
func ParseWebhookEvent(body []byte) (*WebhookEvent, error) {
	var env webhookEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("%w: malformed webhook payload: %v", models.ErrInvalidInput, err)
	}
	if env.Data.Attributes.Type == "" {
		return nil, fmt.Errorf("%w: webhook event type missing", models.ErrInvalidInput)
	}
	return &WebhookEvent{
		ID:        env.Data.ID,
		Type:      env.Data.Attributes.Type,
		SessionID: env.Data.Attributes.Data.ID,
		Payments:  toPayments(env.Data.Attributes.Data.Attributes.Payments),
	}, nil
}

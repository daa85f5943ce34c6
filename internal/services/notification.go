package services

import (
	"bytes"
	"context"
	"fmt"
	htmltemplate "html/template"
	"sync"
	texttemplate "text/template"
	"time"

	"ticketing-checkout/internal/models"

	"github.com/rs/zerolog"
)

// RoutingOrderConfirmed is the broker routing key of confirmation events.
const RoutingOrderConfirmed = "order.confirmed"

// EmailMessage is a rendered transactional email
type EmailMessage struct {
	To      string
	ToName  string
	Subject string
	HTML    string
	Text    string
}

// Mailer delivers transactional email
type Mailer interface {
	Send(ctx context.Context, msg EmailMessage) error
}

// EventPublisher publishes domain events to a message broker
type EventPublisher interface {
	Publish(ctx context.Context, routingKey string, payload any) error
}

// OrderConfirmedEvent is the broker payload for a confirmed order
type OrderConfirmedEvent struct {
	OrderID     int       `json:"order_id"`
	OrderNumber string    `json:"order_number"`
	TenantID    int       `json:"tenant_id"`
	EventID     int       `json:"event_id"`
	UserID      int       `json:"user_id"`
	TotalAmount int64     `json:"total_amount"`
	Currency    string    `json:"currency"`
	TicketCount int       `json:"ticket_count"`
	ConfirmedAt time.Time `json:"confirmed_at"`
}

// LogMailer writes emails to the log instead of sending them. It is used when
// no email provider is configured.
type LogMailer struct {
	log zerolog.Logger
}

func NewLogMailer(log zerolog.Logger) *LogMailer {
	return &LogMailer{log: log.With().Str("component", "mailer").Logger()}
}

func (m *LogMailer) Send(_ context.Context, msg EmailMessage) error {
	m.log.Info().Str("to", msg.To).Str("subject", msg.Subject).Msg("email not sent, no provider configured")
	return nil
}

// Notifier sends confirmation messages after an order commit. Work runs in
// the background and failures are only logged.
type Notifier struct {
	orders    OrderRepository
	events    EventRepository
	users     UserRepository
	mailer    Mailer
	publisher EventPublisher
	timeout   time.Duration
	wg        sync.WaitGroup
	log       zerolog.Logger
}

// NewNotifier creates a notifier. users and publisher may be nil.
func NewNotifier(orders OrderRepository, events EventRepository, users UserRepository, mailer Mailer, publisher EventPublisher, log zerolog.Logger) *Notifier {
	return &Notifier{
		orders:    orders,
		events:    events,
		users:     users,
		mailer:    mailer,
		publisher: publisher,
		timeout:   30 * time.Second,
		log:       log.With().Str("component", "notifier").Logger(),
	}
}

// OrderConfirmed schedules the confirmation email and broker event.
func (n *Notifier) OrderConfirmed(orderID int) {
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				n.log.Error().Interface("panic", r).Int("order_id", orderID).Msg("notification panicked")
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), n.timeout)
		defer cancel()
		if err := n.notify(ctx, orderID); err != nil {
			n.log.Warn().Err(err).Int("order_id", orderID).Msg("confirmation notification failed")
		}
	}()
}

// Wait blocks until in-flight notifications finish or ctx is done.
func (n *Notifier) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		n.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (n *Notifier) notify(ctx context.Context, orderID int) error {
	order, err := n.orders.GetByID(ctx, orderID)
	if err != nil {
		return fmt.Errorf("failed to load order: %w", err)
	}
	event, err := n.events.GetByID(ctx, order.EventID)
	if err != nil {
		return fmt.Errorf("failed to load event: %w", err)
	}

	var errs []error
	if n.publisher != nil {
		confirmedAt := order.UpdatedAt
		if order.CompletedAt != nil {
			confirmedAt = *order.CompletedAt
		}
		payload := OrderConfirmedEvent{
			OrderID:     order.ID,
			OrderNumber: order.OrderNumber,
			TenantID:    order.TenantID,
			EventID:     order.EventID,
			UserID:      order.UserID,
			TotalAmount: order.TotalAmount,
			Currency:    order.Currency,
			TicketCount: order.TicketCount(),
			ConfirmedAt: confirmedAt,
		}
		if err := n.publisher.Publish(ctx, RoutingOrderConfirmed, payload); err != nil {
			errs = append(errs, fmt.Errorf("failed to publish: %w", err))
		}
	}

	if order.ContactEmail != "" {
		tickets, err := n.orders.GetTickets(ctx, order.ID)
		if err != nil {
			return fmt.Errorf("failed to load tickets: %w", err)
		}
		msg, err := renderConfirmation(order, event, tickets)
		if err != nil {
			return err
		}
		if n.users != nil {
			if buyer, err := n.users.GetByID(ctx, order.UserID); err != nil {
				n.log.Warn().Err(err).Int("order_id", order.ID).Msg("buyer lookup failed, sending without a name")
			} else {
				msg.ToName = buyer.FullName()
			}
		}
		if err := n.mailer.Send(ctx, msg); err != nil {
			errs = append(errs, fmt.Errorf("failed to send email: %w", err))
		} else {
			n.log.Info().Int("order_id", order.ID).Msg("confirmation email sent")
		}
	}

	if len(errs) > 0 {
		return errs[0]
	}
	return nil
}

type confirmationView struct {
	OrderNumber string
	EventTitle  string
	Venue       string
	StartsAt    string
	TicketCount int
	Unassigned  int
	Total       string
}

var confirmationHTML = htmltemplate.Must(htmltemplate.New("html").Parse(`<h2>Your order is confirmed</h2>
<p>Order <strong>{{.OrderNumber}}</strong> for <strong>{{.EventTitle}}</strong>{{if .Venue}} at {{.Venue}}{{end}} on {{.StartsAt}}.</p>
<p>Tickets: {{.TicketCount}}<br>Total paid: {{.Total}}</p>
{{if .Unassigned}}<p>{{.Unassigned}} ticket(s) have no attendee name yet.</p>
{{end}}<p>Your tickets are available in your account.</p>`))

var confirmationText = texttemplate.Must(texttemplate.New("text").Parse(`Your order is confirmed

Order {{.OrderNumber}} for {{.EventTitle}}{{if .Venue}} at {{.Venue}}{{end}} on {{.StartsAt}}.
Tickets: {{.TicketCount}}
Total paid: {{.Total}}
{{if .Unassigned}}{{.Unassigned}} ticket(s) have no attendee name yet.
{{end}}
Your tickets are available in your account.
`))

func renderConfirmation(order *models.Order, event *models.Event, tickets []*models.Ticket) (EmailMessage, error) {
	unassigned := 0
	for _, t := range tickets {
		if !t.HasHolder() {
			unassigned++
		}
	}
	view := confirmationView{
		OrderNumber: order.OrderNumber,
		EventTitle:  event.Title,
		Venue:       event.Venue,
		StartsAt:    event.StartsAt.Format("Mon, Jan 2 2006 3:04 PM"),
		TicketCount: order.TicketCount(),
		Unassigned:  unassigned,
		Total:       FormatAmount(order.TotalAmount, order.Currency),
	}

	var html, text bytes.Buffer
	if err := confirmationHTML.Execute(&html, view); err != nil {
		return EmailMessage{}, fmt.Errorf("failed to render email: %w", err)
	}
	if err := confirmationText.Execute(&text, view); err != nil {
		return EmailMessage{}, fmt.Errorf("failed to render email: %w", err)
	}
	return EmailMessage{
		To:      order.ContactEmail,
		Subject: fmt.Sprintf("Order Confirmation - %s", order.OrderNumber),
		HTML:    html.String(),
		Text:    text.String(),
	}, nil
}

// FormatAmount renders minor units as "PHP 1,234.50".
func FormatAmount(amount int64, currency string) string {
	sign := ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}
	major := amount / 100
	minor := amount % 100

	digits := fmt.Sprintf("%d", major)
	var grouped []byte
	for i, d := range []byte(digits) {
		if i > 0 && (len(digits)-i)%3 == 0 {
			grouped = append(grouped, ',')
		}
		grouped = append(grouped, d)
	}
	return fmt.Sprintf("%s %s%s.%02d", currency, sign, grouped, minor)
}

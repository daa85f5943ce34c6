// Command reconcile-order re-checks one order against PayMongo and confirms
// it when a paid payment is found. Use it for orders left pending after an
// oversold confirmation or a missed webhook.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"ticketing-checkout/internal/config"
	"ticketing-checkout/internal/database"
	"ticketing-checkout/internal/logger"
	"ticketing-checkout/internal/repositories"
	"ticketing-checkout/internal/services"
)

func main() {
	var (
		orderID  = flag.Int("order", 0, "Order id to reconcile")
		attempts = flag.Int("attempts", 1, "Number of gateway checks")
		interval = flag.Duration("interval", 3*time.Second, "Delay between checks")
	)
	flag.Parse()
	if *orderID <= 0 {
		fmt.Println("Usage: go run ./cmd/reconcile-order -order <id> [-attempts 5 -interval 3s]")
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(cfg.Server.Env)
	ctx := context.Background()

	db, err := database.NewConnection(ctx, database.FromConfig(cfg.Database), log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	orders := repositories.NewOrderRepository(db.DB)
	events := repositories.NewEventRepository(db.DB)
	users := repositories.NewUserRepository(db.DB)

	var mailer services.Mailer = services.NewLogMailer(log)
	if cfg.Email.MailerSendAPIKey != "" {
		mailer = services.NewMailerSendMailer(cfg.Email.MailerSendAPIKey, cfg.Email.FromEmail, cfg.Email.FromName, log)
	}
	notifier := services.NewNotifier(orders, events, users, mailer, nil, log)

	gateway := services.NewPayMongoClient(services.PayMongoConfig{
		SecretKey: cfg.PayMongo.SecretKey,
		BaseURL:   cfg.PayMongo.BaseURL,
	}, log)
	checkout := services.NewCheckoutService(orders,
		repositories.NewCartRepository(db.DB),
		repositories.NewTicketTypeRepository(db.DB),
		repositories.NewPromotionRepository(db.DB),
		events, gateway, notifier,
		services.CheckoutConfig{BaseURL: cfg.Server.BaseURL}, log)

	result, err := checkout.WaitForConfirmation(ctx, *orderID, *interval, *attempts)
	switch {
	case errors.Is(err, services.ErrStillProcessing):
		fmt.Printf("Order %d: no paid payment yet\n", *orderID)
		os.Exit(2)
	case err != nil:
		log.Error().Err(err).Int("order_id", *orderID).Msg("reconcile failed")
		os.Exit(1)
	}

	fmt.Printf("Order %d (%s): %s", result.Order.ID, result.Order.OrderNumber, result.Status)
	if result.Message != "" {
		fmt.Printf(" - %s", result.Message)
	}
	fmt.Println()

	waitCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := notifier.Wait(waitCtx); err != nil {
		log.Warn().Err(err).Msg("confirmation email may not have been sent")
	}
}

package main

import (
	"context"
	"errors"
	"flag"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ticketing-checkout/internal/config"
	"ticketing-checkout/internal/database"
	"ticketing-checkout/internal/handlers"
	"ticketing-checkout/internal/logger"
	"ticketing-checkout/internal/middleware"
	"ticketing-checkout/internal/repositories"
	"ticketing-checkout/internal/server"
	"ticketing-checkout/internal/services"
	"ticketing-checkout/internal/telemetry"

	"github.com/rs/zerolog"
)

var version = "dev"

func main() {
	migrate := flag.Bool("migrate", false, "Run pending migrations before serving")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		bootLog := zerolog.New(os.Stderr)
		bootLog.Fatal().Err(err).Msg("failed to load configuration")
	}
	log := logger.New(cfg.Server.Env).With().Str("service", cfg.Telemetry.ServiceName).Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, cfg.Telemetry.ServiceName, version)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to set up tracing")
	}

	db, err := database.NewConnection(ctx, database.FromConfig(cfg.Database), log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()
	log.Info().Str("host", cfg.Database.Host).Str("db", cfg.Database.DBName).Msg("database connection established")

	if *migrate {
		if err := db.RunMigrations(ctx); err != nil {
			log.Fatal().Err(err).Msg("failed to run migrations")
		}
	}

	if cfg.Cron.Secret == "" {
		log.Warn().Msg("CRON_SECRET is not set, the cleanup endpoint will refuse every call")
	}
	if cfg.PayMongo.WebhookSecret == "" {
		log.Warn().Msg("PAYMONGO_WEBHOOK_SECRET is not set, webhooks will be refused")
	}

	// Repositories
	orders := repositories.NewOrderRepository(db.DB)
	carts := repositories.NewCartRepository(db.DB)
	ticketTypes := repositories.NewTicketTypeRepository(db.DB)
	promotions := repositories.NewPromotionRepository(db.DB)
	events := repositories.NewEventRepository(db.DB)
	tenants := repositories.NewTenantRepository(db.DB)
	users := repositories.NewUserRepository(db.DB)

	// Notifications
	var mailer services.Mailer = services.NewLogMailer(log)
	if cfg.Email.MailerSendAPIKey != "" {
		mailer = services.NewMailerSendMailer(cfg.Email.MailerSendAPIKey, cfg.Email.FromEmail, cfg.Email.FromName, log)
	} else {
		log.Warn().Msg("MAILERSEND_API_KEY is not set, confirmation emails are only logged")
	}

	var publisher services.EventPublisher
	if cfg.Broker.URL != "" {
		amqpPublisher, err := services.NewAMQPPublisher(cfg.Broker.URL, cfg.Broker.Exchange, log)
		if err != nil {
			log.Error().Err(err).Msg("failed to connect to broker, order events are disabled")
		} else {
			defer amqpPublisher.Close()
			publisher = amqpPublisher
		}
	}
	notifier := services.NewNotifier(orders, events, users, mailer, publisher, log)

	// Services
	gateway := services.NewPayMongoClient(services.PayMongoConfig{
		SecretKey: cfg.PayMongo.SecretKey,
		BaseURL:   cfg.PayMongo.BaseURL,
	}, log)
	checkout := services.NewCheckoutService(orders, carts, ticketTypes, promotions, events, gateway, notifier,
		services.CheckoutConfig{
			CartTTL:        cfg.Checkout.CartTTL,
			OrderHold:      cfg.Checkout.OrderHold,
			PaymentWindow:  cfg.Checkout.PaymentWindow,
			PollInterval:   cfg.Checkout.PollInterval,
			PollAttempts:   cfg.Checkout.PollAttempts,
			BaseURL:        cfg.Server.BaseURL,
			PaymentMethods: cfg.PayMongo.PaymentMethods,
		}, log)
	cart := services.NewCartService(carts, ticketTypes, events, cfg.Checkout.CartTTL, log)
	reaper := services.NewReaperService(orders, log)

	rateLimiter := middleware.NewRateLimiter(cfg.RateLimit.Requests, cfg.RateLimit.Window)
	defer rateLimiter.Stop()

	store := middleware.NewSessionStore(cfg.Session.Secret, cfg.Server.RootDomain, cfg.IsProduction())

	router := server.NewRouter(server.Handlers{
		Health:    handlers.NewHealthHandler(db.DB),
		Cart:      handlers.NewCartHandler(cart),
		Checkout:  handlers.NewCheckoutHandler(checkout),
		Organizer: handlers.NewOrganizerHandler(checkout),
		Webhook:   handlers.NewWebhookHandler(checkout, cfg.PayMongo.WebhookSecret),
		Cron:      handlers.NewCronHandler(reaper, cfg.Cron.Secret),
	}, server.Options{
		ServiceName:    cfg.Telemetry.ServiceName,
		Log:            log,
		Auth:           middleware.NewAuthMiddleware(users, store, cfg.Session.Name),
		Tenants:        middleware.NewTenantMiddleware(tenants, cfg.Server.RootDomain),
		RateLimiter:    rateLimiter,
		AllowedOrigins: cfg.Server.AllowedOrigins,
	})

	srv := &http.Server{
		Addr:              net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return log.WithContext(context.Background()) },
	}

	if cfg.Cron.ReaperInterval > 0 {
		log.Info().Dur("interval", cfg.Cron.ReaperInterval).Msg("in-process order reaper enabled")
		go reaper.Run(ctx, cfg.Cron.ReaperInterval)
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Str("env", cfg.Server.Env).Str("version", version).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			log.Error().Err(err).Msg("server failed")
		}
	case <-ctx.Done():
		log.Info().Msg("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http server shutdown")
	}
	if err := notifier.Wait(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("confirmation notifications still in flight at shutdown")
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("trace exporter shutdown")
	}
	log.Info().Msg("server stopped")
}

// Command cleanup-orders cancels expired pending orders once and exits. It is
// the scheduler-friendly twin of GET /api/cron/cleanup-orders.
package main

import (
	"context"
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
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(cfg.Server.Env)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	db, err := database.NewConnection(ctx, database.FromConfig(cfg.Database), log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	reaper := services.NewReaperService(repositories.NewOrderRepository(db.DB), log)
	cancelled, err := reaper.CleanupAllExpiredOrders(ctx)
	if err != nil {
		log.Error().Err(err).Int("cancelled", cancelled).Msg("cleanup failed")
		os.Exit(1)
	}
	fmt.Printf("Cancelled %d expired order(s)\n", cancelled)
}

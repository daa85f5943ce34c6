// Command seed-demo creates a demo organizer with one published event so the
// checkout flow can be exercised locally.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	"ticketing-checkout/internal/config"
	"ticketing-checkout/internal/database"
	"ticketing-checkout/internal/logger"
	"ticketing-checkout/internal/models"
)

func main() {
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

	if err := db.RunMigrations(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to run migrations")
	}

	var tenantID, userID, eventID int
	err = database.WithTx(ctx, db.DB, func(tx *sql.Tx) error {
		if err := tx.QueryRowContext(ctx, `
			INSERT INTO tenants (subdomain, name) VALUES ('demo', 'Demo Productions')
			ON CONFLICT (subdomain) DO UPDATE SET name = EXCLUDED.name
			RETURNING id`).Scan(&tenantID); err != nil {
			return fmt.Errorf("failed to seed tenant: %w", err)
		}

		if err := tx.QueryRowContext(ctx, `
			INSERT INTO users (email, first_name, last_name) VALUES ('organizer@demo.test', 'Demo', 'Organizer')
			ON CONFLICT (email) DO UPDATE SET first_name = EXCLUDED.first_name
			RETURNING id`).Scan(&userID); err != nil {
			return fmt.Errorf("failed to seed user: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO tenant_members (tenant_id, user_id, role) VALUES ($1, $2, $3)
			ON CONFLICT (tenant_id, user_id) DO NOTHING`, tenantID, userID, models.RoleOwner); err != nil {
			return fmt.Errorf("failed to seed membership: %w", err)
		}

		if err := tx.QueryRowContext(ctx, `
			INSERT INTO events (tenant_id, title, venue, starts_at, status)
			VALUES ($1, 'Summer Fest', 'Mall of Asia Arena', $2, $3)
			RETURNING id`, tenantID, time.Now().AddDate(0, 1, 0), models.EventPublished).Scan(&eventID); err != nil {
			return fmt.Errorf("failed to seed event: %w", err)
		}

		var generalID int
		if err := tx.QueryRowContext(ctx, `
			INSERT INTO ticket_types (event_id, name, kind, base_price, quantity_total)
			VALUES ($1, 'General Admission', $2, 150000, 500)
			RETURNING id`, eventID, models.KindGeneral).Scan(&generalID); err != nil {
			return fmt.Errorf("failed to seed ticket type: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO ticket_types (event_id, name, kind, base_price, quantity_total)
			VALUES ($1, 'VIP Table (6 pax)', $2, 1800000, 20)`, eventID, models.KindTable); err != nil {
			return fmt.Errorf("failed to seed table ticket type: %w", err)
		}

		earlyBirds := 100
		tier := models.PriceTier{TicketTypeID: generalID, Name: "Early Bird", Strategy: models.TierAllocation,
			Price: 120000, Priority: 10, AllocationTotal: &earlyBirds}
		if err := tier.Validate(); err != nil {
			return fmt.Errorf("invalid demo price tier: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO price_tiers (ticket_type_id, name, strategy, price, priority, allocation_total)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			tier.TicketTypeID, tier.Name, tier.Strategy, tier.Price, tier.Priority, *tier.AllocationTotal); err != nil {
			return fmt.Errorf("failed to seed price tier: %w", err)
		}

		var promoID int
		if err := tx.QueryRowContext(ctx, `
			INSERT INTO promotions (tenant_id, name, discount_type, discount_value, scope, requires_code, max_redemptions)
			VALUES ($1, 'Launch voucher', $2, 1000, $3, TRUE, 50)
			RETURNING id`, tenantID, models.DiscountPercent, models.ScopeOrder).Scan(&promoID); err != nil {
			return fmt.Errorf("failed to seed promotion: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO voucher_codes (promotion_id, tenant_id, code) VALUES ($1, $2, 'LAUNCH10')
			ON CONFLICT DO NOTHING`, promoID, tenantID); err != nil {
			return fmt.Errorf("failed to seed voucher: %w", err)
		}
		return nil
	})
	if err != nil {
		log.Fatal().Err(err).Msg("seeding failed")
	}

	fmt.Printf("Seeded tenant %d (demo), organizer user %d, event %d\n", tenantID, userID, eventID)
	fmt.Println("Voucher LAUNCH10 gives 10% off the order.")
}

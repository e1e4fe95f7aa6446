package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"payment-lifecycle/internal/config"
	"payment-lifecycle/internal/domain/model"
	pg "payment-lifecycle/internal/infra/db/postgres"
	"payment-lifecycle/internal/infra/logging"
	"payment-lifecycle/internal/usecase"
)

// seed writes a handful of payment records in the shapes the recovery actions
// look for, so admins can rehearse link/resolve/claim against a local database.
func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	email := flag.String("email", "jane.doe@example.com", "email whose token is embedded in the seeded references")
	flag.Parse()

	// ---- Config ----
	cfg, err := config.LoadConfig(*cfgPath, true)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logger := logging.New(cfg.Log, true)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Connect Postgres
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 4)
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	defer pool.Close()

	payRepo := pg.NewPaymentRepo(pool)
	auditLog := usecase.NewAuditLog(pg.NewAuditRepo(pool), logger)
	store := usecase.NewPaymentStore(payRepo, auditLog, pg.NewTxManager(pool), logger)
	catalog := usecase.MustDefaultTierCatalog()
	refs := usecase.NewULIDReferences()

	seed := []struct {
		Tier   string
		Method model.PaymentMethod
		To     model.PaymentStatus // "" keeps the record pending
		Label  string
	}{
		{"essential", model.PaymentMethodCard, "", "pending, awaiting callback"},
		{"essential", model.PaymentMethodEFT, model.PaymentStatusFailed, "failed, claimable by email"},
		{"premium", model.PaymentMethodCard, model.PaymentStatusPaid, "paid, resolvable as refunded"},
	}

	for _, s := range seed {
		tier, ok := catalog.GetTier(s.Tier)
		if !ok {
			log.Fatalf("unknown tier %q", s.Tier)
		}
		ref, err := refs.Next(usecase.EmailLocalPart(*email))
		if err != nil {
			log.Fatalf("reference for %s: %v", s.Label, err)
		}
		now := time.Now().UTC()
		expires := now.Add(30 * time.Minute)
		rec := &model.PaymentRecord{
			ID:                uuid.NewString(),
			MerchantReference: ref,
			TierID:            tier.ID,
			PaymentMethod:     s.Method,
			Amount:            tier.PriceOnceOff,
			ExpiresAt:         &expires,
			CreatedAt:         now,
			UpdatedAt:         now,
		}
		if err := store.Create(ctx, rec); err != nil {
			log.Fatalf("create %s: %v", s.Label, err)
		}
		if s.To != "" {
			if _, _, err := store.Transition(ctx, usecase.TransitionRequest{PaymentID: rec.ID, To: s.To, Source: "seed"}); err != nil {
				log.Fatalf("transition %s: %v", s.Label, err)
			}
		}
		fmt.Printf("seeded: %s (id=%s, ref=%s)\n", s.Label, rec.ID, rec.MerchantReference)
	}

	fmt.Println("Seeding complete. Records carry no owner; use claim_payment or link_payment to attach them.")
}

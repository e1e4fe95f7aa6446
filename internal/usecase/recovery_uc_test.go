//go:build !integration

package usecase_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"payment-lifecycle/internal/domain"
	"payment-lifecycle/internal/domain/model"
	"payment-lifecycle/internal/usecase"
)

const admin = "admin-1"

func newRecovery(d *storeDeps) *usecase.RecoveryService {
	return usecase.NewRecoveryService(d.payments, d.store, d.audit, NewMockAdminDirectory(admin), time.Hour, newTestLogger())
}

func TestRecoveryService_Authorization(t *testing.T) {
	ctx := context.Background()

	t.Run("should forbid a non-admin link and leave the record unchanged", func(t *testing.T) {
		// --- Arrange ---
		d := newStoreDeps()
		p := seedRecord(d.payments, model.PaymentStatusFailed, "", 2*time.Hour)
		svc := newRecovery(d)

		// --- Act ---
		_, err := svc.LinkPayment(ctx, "user-9", p.ID, "u2", "manual match", false)

		// --- Assert ---
		if !errors.Is(err, domain.ErrForbidden) {
			t.Fatalf("expected ErrForbidden, got %v", err)
		}
		cur, _ := d.store.Get(ctx, p.ID)
		if cur.UserID != nil {
			t.Error("record owner must not change")
		}
		if d.audits.CountOf(p.ID, model.AuditForbiddenAttempt) != 1 {
			t.Error("expected the forbidden attempt to be audited")
		}
	})

	t.Run("should not distinguish a missing record from a non-admin", func(t *testing.T) {
		d := newStoreDeps()
		svc := newRecovery(d)
		_, err := svc.ResolvePayment(ctx, "user-9", uuid.NewString(), "x")
		if !errors.Is(err, domain.ErrForbidden) {
			t.Fatalf("expected ErrForbidden, got %v", err)
		}
	})

	t.Run("should forbid every admin action to non-admins", func(t *testing.T) {
		d := newStoreDeps()
		svc := newRecovery(d)
		p := seedRecord(d.payments, model.PaymentStatusFailed, "", time.Hour)
		calls := map[string]func() error{
			"list_orphaned": func() error { _, err := svc.ListOrphaned(ctx, "user-9"); return err },
			"list_failed":   func() error { _, err := svc.ListFailed(ctx, "user-9"); return err },
			"resolve":       func() error { _, err := svc.ResolvePayment(ctx, "user-9", p.ID, ""); return err },
			"history":       func() error { _, err := svc.History(ctx, "user-9", p.ID); return err },
			"claim for another user": func() error {
				_, err := svc.ClaimPayment(ctx, "user-9", p.ID, "user-10")
				return err
			},
			"anonymous": func() error { _, err := svc.ListOrphaned(ctx, ""); return err },
		}
		for name, call := range calls {
			if err := call(); !errors.Is(err, domain.ErrForbidden) {
				t.Errorf("%s: expected ErrForbidden, got %v", name, err)
			}
		}
	})
}

func TestRecoveryService_ListOrphaned(t *testing.T) {
	ctx := context.Background()

	t.Run("should apply the staleness boundary", func(t *testing.T) {
		// --- Arrange ---
		d := newStoreDeps()
		old := seedRecord(d.payments, model.PaymentStatusPending, "", 61*time.Minute)
		fresh := seedRecord(d.payments, model.PaymentStatusPending, "", 30*time.Minute)
		oldPaid := seedRecord(d.payments, model.PaymentStatusPaid, "u1", 3*time.Hour)
		unownedFailed := seedRecord(d.payments, model.PaymentStatusFailed, "", 5*time.Minute)
		svc := newRecovery(d)

		// --- Act ---
		got, err := svc.ListOrphaned(ctx, admin)

		// --- Assert ---
		if err != nil {
			t.Fatalf("ListOrphaned: %v", err)
		}
		ids := map[string]bool{}
		for _, p := range got {
			ids[p.ID] = true
		}
		if !ids[old.ID] {
			t.Error("expected the 61 minute old pending record")
		}
		if ids[fresh.ID] {
			t.Error("did not expect the 30 minute old pending record")
		}
		if ids[oldPaid.ID] {
			t.Error("did not expect a paid record")
		}
		if !ids[unownedFailed.ID] {
			t.Error("expected the unowned failed record")
		}
	})

	t.Run("should list failed records for admins", func(t *testing.T) {
		d := newStoreDeps()
		f := seedRecord(d.payments, model.PaymentStatusFailed, "u1", time.Minute)
		seedRecord(d.payments, model.PaymentStatusPaid, "u1", time.Minute)
		got, err := newRecovery(d).ListFailed(ctx, admin)
		if err != nil || len(got) != 1 || got[0].ID != f.ID {
			t.Fatalf("expected only the failed record, got %d %v", len(got), err)
		}
	})
}

func TestRecoveryService_LinkPayment(t *testing.T) {
	ctx := context.Background()

	t.Run("should link an unowned record and audit it", func(t *testing.T) {
		d := newStoreDeps()
		p := seedRecord(d.payments, model.PaymentStatusFailed, "", time.Hour)

		rec, err := newRecovery(d).LinkPayment(ctx, admin, p.ID, "u2", "manual match", false)

		if err != nil || rec.Owner() != "u2" {
			t.Fatalf("expected link to u2, got %v", err)
		}
		entries, _ := d.audit.History(ctx, p.ID)
		if len(entries) != 1 || entries[0].EventType != model.AuditAdminLinkedPayment {
			t.Fatalf("expected one admin_linked_payment entry, got %d", len(entries))
		}
		if entries[0].ActorID == nil || *entries[0].ActorID != admin || entries[0].EventData["notes"] != "manual match" {
			t.Errorf("unexpected entry %+v", entries[0])
		}
	})

	t.Run("should refuse to reassign without override", func(t *testing.T) {
		d := newStoreDeps()
		p := seedRecord(d.payments, model.PaymentStatusPaid, "u1", time.Hour)
		svc := newRecovery(d)

		if _, err := svc.LinkPayment(ctx, admin, p.ID, "u2", "", false); !errors.Is(err, domain.ErrAlreadyClaimed) {
			t.Fatalf("expected ErrAlreadyClaimed, got %v", err)
		}
		if d.audits.CountOf(p.ID, model.AuditLinkRejected) != 1 {
			t.Error("expected link_rejected entry")
		}

		rec, err := svc.LinkPayment(ctx, admin, p.ID, "u2", "wrong account", true)
		if err != nil || rec.Owner() != "u2" {
			t.Fatalf("expected override to reassign, got %v", err)
		}
		entries, _ := d.audit.History(ctx, p.ID)
		last := entries[len(entries)-1]
		if last.EventData["override"] != true || last.EventData["previous_user_id"] != "u1" {
			t.Errorf("override must be recorded with the previous owner, got %v", last.EventData)
		}
	})

	t.Run("should be a noop when already linked to the same user", func(t *testing.T) {
		d := newStoreDeps()
		p := seedRecord(d.payments, model.PaymentStatusPaid, "u2", time.Hour)
		if _, err := newRecovery(d).LinkPayment(ctx, admin, p.ID, "u2", "", false); err != nil {
			t.Fatalf("expected noop success, got %v", err)
		}
		if len(d.audits.Events(p.ID)) != 0 {
			t.Error("noop must not audit")
		}
	})

	t.Run("should report missing fields and unknown records", func(t *testing.T) {
		d := newStoreDeps()
		svc := newRecovery(d)
		if _, err := svc.LinkPayment(ctx, admin, "", "u2", "", false); !errors.Is(err, domain.ErrMissingFields) {
			t.Errorf("expected ErrMissingFields, got %v", err)
		}
		if _, err := svc.LinkPayment(ctx, admin, uuid.NewString(), "u2", "", false); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestRecoveryService_ResolvePayment(t *testing.T) {
	ctx := context.Background()

	t.Run("should refund and be idempotent", func(t *testing.T) {
		// --- Arrange ---
		d := newStoreDeps()
		p := seedRecord(d.payments, model.PaymentStatusPaid, "u1", time.Hour)
		svc := newRecovery(d)

		// --- Act ---
		first, err1 := svc.ResolvePayment(ctx, admin, p.ID, "refund issued")
		second, err2 := svc.ResolvePayment(ctx, admin, p.ID, "refund issued")

		// --- Assert ---
		if err1 != nil || err2 != nil {
			t.Fatalf("unexpected errors: %v, %v", err1, err2)
		}
		if first.Status != model.PaymentStatusRefunded || second.Status != model.PaymentStatusRefunded {
			t.Error("expected refunded")
		}
		if n := d.audits.CountOf(p.ID, model.AuditAdminResolvedPayment); n != 1 {
			t.Errorf("expected one admin_resolved_payment entry, got %d", n)
		}
		if n := d.audits.CountOf(p.ID, model.AuditStatusTransition); n != 1 {
			t.Errorf("expected one status_transition entry, got %d", n)
		}
	})

	t.Run("should reject resolving a pending or expired record", func(t *testing.T) {
		for _, st := range []model.PaymentStatus{model.PaymentStatusPending, model.PaymentStatusExpired} {
			d := newStoreDeps()
			p := seedRecord(d.payments, st, "u1", time.Hour)
			if _, err := newRecovery(d).ResolvePayment(ctx, admin, p.ID, ""); !errors.Is(err, domain.ErrInvalidTransition) {
				t.Errorf("%s: expected ErrInvalidTransition, got %v", st, err)
			}
		}
	})
}

func TestRecoveryService_ClaimPayment(t *testing.T) {
	ctx := context.Background()

	t.Run("should let exactly one concurrent claimer win", func(t *testing.T) {
		// --- Arrange ---
		d := newStoreDeps()
		p := seedRecord(d.payments, model.PaymentStatusFailed, "", time.Hour)
		svc := newRecovery(d)

		var (
			wg      sync.WaitGroup
			mu      sync.Mutex
			winners []string
			claimed int
		)

		// --- Act ---
		for _, u := range []string{"userA", "userB"} {
			wg.Add(1)
			go func(u string) {
				defer wg.Done()
				_, err := svc.ClaimPayment(ctx, u, p.ID, u)
				mu.Lock()
				defer mu.Unlock()
				switch {
				case err == nil:
					winners = append(winners, u)
				case errors.Is(err, domain.ErrAlreadyClaimed):
					claimed++
				default:
					t.Errorf("unexpected error for %s: %v", u, err)
				}
			}(u)
		}
		wg.Wait()

		// --- Assert ---
		if len(winners) != 1 || claimed != 1 {
			t.Fatalf("expected one winner and one AlreadyClaimed, got winners=%v claimed=%d", winners, claimed)
		}
		cur, _ := d.store.Get(ctx, p.ID)
		if cur.Owner() != winners[0] {
			t.Errorf("final owner %s does not match winner %s", cur.Owner(), winners[0])
		}
		if d.audits.CountOf(p.ID, model.AuditUserClaimedPayment) != 1 || d.audits.CountOf(p.ID, model.AuditClaimRejected) != 1 {
			t.Errorf("unexpected audit trail %v", d.audits.Events(p.ID))
		}
	})

	t.Run("should resolve a lost CAS as AlreadyClaimed", func(t *testing.T) {
		d := newStoreDeps()
		p := seedRecord(d.payments, model.PaymentStatusFailed, "", time.Hour)
		once := sync.Once{}
		d.payments.BeforeCAS = func(id string) {
			once.Do(func() { d.payments.SetUser(id, "userB") })
		}
		if _, err := newRecovery(d).ClaimPayment(ctx, "userA", p.ID, "userA"); !errors.Is(err, domain.ErrAlreadyClaimed) {
			t.Fatalf("expected ErrAlreadyClaimed, got %v", err)
		}
	})

	t.Run("should let an admin claim on a user's behalf", func(t *testing.T) {
		d := newStoreDeps()
		p := seedRecord(d.payments, model.PaymentStatusFailed, "", time.Hour)
		rec, err := newRecovery(d).ClaimPayment(ctx, admin, p.ID, "userC")
		if err != nil || rec.Owner() != "userC" {
			t.Fatalf("expected admin claim for userC, got %v", err)
		}
	})
}

func TestRecoveryService_UserRecoveryCheck(t *testing.T) {
	ctx := context.Background()
	d := newStoreDeps()
	mine := seedRecord(d.payments, model.PaymentStatusFailed, "", time.Hour)
	paid := seedRecord(d.payments, model.PaymentStatusPaid, "", time.Hour)
	other := seedRecord(d.payments, model.PaymentStatusPending, "", time.Hour)
	owned := seedRecord(d.payments, model.PaymentStatusFailed, "user-1", time.Hour)
	foreign := seedRecord(d.payments, model.PaymentStatusPending, "user-2", time.Hour)
	anon := seedRecord(d.payments, model.PaymentStatusFailed, "", time.Hour)
	for p, ref := range map[*model.PaymentRecord]string{
		mine:    "PAY-JANEDOE-01AAA",
		paid:    "PAY-JANEDOE-01BBB",
		other:   "PAY-JANEDOES-01CCC",
		owned:   "PAY-JANEDOE-01DDD",
		foreign: "PAY-JANEDOE-01EEE",
		anon:    "PAY-ANON-01FFF",
	} {
		p.MerchantReference = ref
		d.payments.Seed(p)
	}
	svc := newRecovery(d)
	ids := func(recs []*model.PaymentRecord) map[string]bool {
		out := map[string]bool{}
		for _, p := range recs {
			out[p.ID] = true
		}
		return out
	}

	t.Run("should surface unowned and own candidates by email token", func(t *testing.T) {
		// --- Act ---
		got, err := svc.UserRecoveryCheck(ctx, "user-1", "jane.doe@example.com", "Jane.Doe@example.com")

		// --- Assert ---
		if err != nil {
			t.Fatalf("UserRecoveryCheck: %v", err)
		}
		found := ids(got)
		if len(got) != 2 || !found[mine.ID] || !found[owned.ID] {
			t.Fatalf("expected the failed unowned and own JANEDOE records, got %d", len(got))
		}
		if found[foreign.ID] {
			t.Error("a record owned by another user must never be returned")
		}
	})

	t.Run("should default to the actor email", func(t *testing.T) {
		got, err := svc.UserRecoveryCheck(ctx, "user-1", "jane.doe@example.com", "")
		if err != nil || len(got) != 2 {
			t.Fatalf("expected 2 candidates, got %d %v", len(got), err)
		}
	})

	t.Run("should forbid a non-admin searching another email", func(t *testing.T) {
		// --- Act ---
		got, err := svc.UserRecoveryCheck(ctx, "user-2", "mallory@example.com", "jane.doe@example.com")

		// --- Assert ---
		if !errors.Is(err, domain.ErrForbidden) {
			t.Fatalf("expected ErrForbidden, got %v", err)
		}
		if got != nil {
			t.Errorf("expected no records, got %d", len(got))
		}
	})

	t.Run("should let an admin search another email without exposing owned records", func(t *testing.T) {
		got, err := svc.UserRecoveryCheck(ctx, admin, "ops@example.com", "jane.doe@example.com")
		if err != nil {
			t.Fatalf("UserRecoveryCheck: %v", err)
		}
		found := ids(got)
		if len(got) != 1 || !found[mine.ID] {
			t.Fatalf("expected only the unowned candidate, got %d", len(got))
		}
	})

	t.Run("should search an anon local part like any other", func(t *testing.T) {
		got, err := svc.UserRecoveryCheck(ctx, "user-3", "anon@example.com", "")
		if err != nil {
			t.Fatalf("UserRecoveryCheck: %v", err)
		}
		if len(got) != 1 || got[0].ID != anon.ID {
			t.Fatalf("expected the ANON candidate, got %d", len(got))
		}
	})

	t.Run("should return nothing for an email without a usable token", func(t *testing.T) {
		got, err := svc.UserRecoveryCheck(ctx, "user-1", "...@example.com", "")
		if err != nil || len(got) != 0 {
			t.Fatalf("expected empty result, got %d %v", len(got), err)
		}
	})

	t.Run("should require an email and an actor", func(t *testing.T) {
		if _, err := svc.UserRecoveryCheck(ctx, "user-1", "", ""); !errors.Is(err, domain.ErrMissingFields) {
			t.Errorf("expected ErrMissingFields, got %v", err)
		}
		if _, err := svc.UserRecoveryCheck(ctx, "", "jane@example.com", ""); !errors.Is(err, domain.ErrForbidden) {
			t.Errorf("expected ErrForbidden, got %v", err)
		}
	})
}

func TestRecoveryService_History(t *testing.T) {
	ctx := context.Background()
	d := newStoreDeps()
	p := seedRecord(d.payments, model.PaymentStatusPaid, "u1", time.Hour)
	svc := newRecovery(d)
	if _, err := svc.ResolvePayment(ctx, admin, p.ID, "done"); err != nil {
		t.Fatalf("ResolvePayment: %v", err)
	}

	entries, err := svc.History(ctx, admin, p.ID)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(entries) != 2 || entries[0].EventType != model.AuditStatusTransition || entries[1].EventType != model.AuditAdminResolvedPayment {
		t.Fatalf("unexpected history %v", d.audits.Events(p.ID))
	}
	if _, err := svc.History(ctx, admin, uuid.NewString()); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

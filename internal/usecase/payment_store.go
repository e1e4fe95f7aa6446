// File: internal/usecase/payment_store.go
package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"payment-lifecycle/internal/domain"
	"payment-lifecycle/internal/domain/model"
	"payment-lifecycle/internal/domain/ports/adapter"
	"payment-lifecycle/internal/domain/ports/repository"
	"payment-lifecycle/internal/infra/logging"
	"payment-lifecycle/internal/infra/metrics"
)

// MutationResult tells an accepted change apart from an idempotent repeat.
type MutationResult string

const (
	MutationApplied MutationResult = "applied"
	MutationNoop    MutationResult = "noop"
)

// TransitionRequest asks the store to move a record to a new status.
type TransitionRequest struct {
	PaymentID string
	To        model.PaymentStatus
	ActorID   string // "" = system (provider callback, reconciler)
	Admin     bool   // actor holds the admin capability
	Source    string // provider_callback | status_poll | reconciler | admin_resolve
	// Event, when set, is appended in the same transaction as the status_transition entry.
	Event     model.AuditEventType
	EventData map[string]interface{}
}

// OwnerChange asks the store to attribute a record to a user.
type OwnerChange struct {
	PaymentID   string
	UserID      string
	ActorID     string
	Override    bool // admin reassignment of an already-owned record
	Event       model.AuditEventType
	RejectEvent model.AuditEventType
	EventData   map[string]interface{}
}

// errCASMiss signals that the conditional update lost a race; it never leaves the store.
var errCASMiss = errors.New("conditional update did not match")

// PaymentStore is the single writer for payment records. Every mutation is a
// conditional update scoped by the record's current status or owner, committed
// together with its audit entry.
type PaymentStore struct {
	payments repository.PaymentRepository
	audit    *AuditLog
	tm       repository.TransactionManager
	log      *zerolog.Logger
}

func NewPaymentStore(payments repository.PaymentRepository, audit *AuditLog, tm repository.TransactionManager, logger *zerolog.Logger) *PaymentStore {
	return &PaymentStore{payments: payments, audit: audit, tm: tm, log: logger}
}

// Create persists a new record at pending.
func (s *PaymentStore) Create(ctx context.Context, p *model.PaymentRecord) error {
	if p.ID == "" || p.MerchantReference == "" {
		return domain.ErrInvalidArgument
	}
	p.Status = model.PaymentStatusPending
	err := s.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		if err := s.payments.Create(ctx, tx, p); err != nil {
			return err
		}
		return s.audit.Append(ctx, tx, p.ID, model.AuditPaymentCreated, p.Owner(), map[string]interface{}{
			"merchant_reference": p.MerchantReference,
			"tier_id":            p.TierID,
			"payment_method":     string(p.PaymentMethod),
			"amount":             p.Amount,
		})
	})
	if err != nil {
		return err
	}
	metrics.IncPayment(string(model.PaymentStatusPending))
	return nil
}

func (s *PaymentStore) Get(ctx context.Context, id string) (*model.PaymentRecord, error) {
	return s.payments.FindByID(ctx, nil, id)
}

func (s *PaymentStore) GetByReference(ctx context.Context, reference string) (*model.PaymentRecord, error) {
	return s.payments.FindByReference(ctx, nil, reference)
}

// ApplyProviderStatus folds a provider callback or poll result into the state
// machine. pending/unknown carry no information and are no-ops. Replaying the
// same status is a no-op and writes no second audit entry.
func (s *PaymentStore) ApplyProviderStatus(ctx context.Context, reference string, status adapter.ProviderStatus, source string) (*model.PaymentRecord, MutationResult, error) {
	p, err := s.payments.FindByReference(ctx, nil, reference)
	if err != nil {
		return nil, "", err
	}
	var to model.PaymentStatus
	switch status {
	case adapter.ProviderStatusPaid:
		to = model.PaymentStatusPaid
	case adapter.ProviderStatusFailed:
		to = model.PaymentStatusFailed
	case adapter.ProviderStatusExpired:
		to = model.PaymentStatusExpired
	case adapter.ProviderStatusPending, adapter.ProviderStatusUnknown:
		return p, MutationNoop, nil
	default:
		return nil, "", fmt.Errorf("provider status %q: %w", status, domain.ErrInvalidArgument)
	}
	return s.Transition(ctx, TransitionRequest{
		PaymentID: p.ID,
		To:        to,
		Source:    source,
		EventData: map[string]interface{}{"provider_status": string(status)},
	})
}

// Transition moves a record along one edge of the state machine.
//
//   - already in req.To: MutationNoop, no audit entry
//   - edge not in the table, or admin-only edge without Admin: ErrInvalidTransition, rejected attempt audited
//   - record changed underneath: ErrConflict (or the two outcomes above re-evaluated on the fresh state)
func (s *PaymentStore) Transition(ctx context.Context, req TransitionRequest) (*model.PaymentRecord, MutationResult, error) {
	l := logging.With(ctx, s.log)
	p, err := s.payments.FindByID(ctx, nil, req.PaymentID)
	if err != nil {
		return nil, "", err
	}
	if !req.To.Valid() {
		return nil, "", fmt.Errorf("target status %q: %w", req.To, domain.ErrInvalidArgument)
	}
	from := p.Status
	if from == req.To {
		metrics.IncTransition(string(from), string(req.To), "noop")
		return p, MutationNoop, nil
	}
	if err := s.checkEdge(ctx, p, req); err != nil {
		return p, "", err
	}

	err = s.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		ok, err := s.payments.UpdateStatusIf(ctx, tx, p.ID, from, req.To)
		if err != nil {
			return err
		}
		if !ok {
			return errCASMiss
		}
		data := mergeData(req.EventData, map[string]interface{}{
			"from":   string(from),
			"to":     string(req.To),
			"source": req.Source,
		})
		if err := s.audit.Append(ctx, tx, p.ID, model.AuditStatusTransition, req.ActorID, data); err != nil {
			return err
		}
		if req.Event != "" {
			return s.audit.Append(ctx, tx, p.ID, req.Event, req.ActorID, mergeData(req.EventData, map[string]interface{}{
				"from": string(from),
				"to":   string(req.To),
			}))
		}
		return nil
	})
	if errors.Is(err, errCASMiss) {
		return s.afterTransitionMiss(ctx, req, from)
	}
	if err != nil {
		return nil, "", err
	}

	metrics.IncTransition(string(from), string(req.To), "applied")
	metrics.IncPayment(string(req.To))
	l.Info().
		Str("payment_id", p.ID).
		Str("from", string(from)).
		Str("to", string(req.To)).
		Str("source", req.Source).
		Msg("payment transitioned")

	p.Status = req.To
	p.UpdatedAt = time.Now().UTC()
	return p, MutationApplied, nil
}

// checkEdge rejects and audits transitions the table does not allow.
func (s *PaymentStore) checkEdge(ctx context.Context, p *model.PaymentRecord, req TransitionRequest) error {
	reason := ""
	switch {
	case !model.CanTransition(p.Status, req.To):
		reason = "not_in_transition_table"
	case model.AdminOnly(p.Status, req.To) && !req.Admin:
		reason = "admin_only"
	default:
		return nil
	}
	s.rejectTransition(ctx, p, req, reason)
	return fmt.Errorf("%s -> %s: %w", p.Status, req.To, domain.ErrInvalidTransition)
}

func (s *PaymentStore) afterTransitionMiss(ctx context.Context, req TransitionRequest, expected model.PaymentStatus) (*model.PaymentRecord, MutationResult, error) {
	cur, err := s.payments.FindByID(ctx, nil, req.PaymentID)
	if err != nil {
		return nil, "", err
	}
	if cur.Status == req.To {
		metrics.IncTransition(string(expected), string(req.To), "noop")
		return cur, MutationNoop, nil
	}
	if err := s.checkEdge(ctx, cur, req); err != nil {
		return cur, "", err
	}
	s.rejectTransitionWith(ctx, cur, req, "conflict", "conflict", map[string]interface{}{"expected_status": string(expected)})
	return cur, "", fmt.Errorf("payment %s moved from %s to %s: %w", cur.ID, expected, cur.Status, domain.ErrConflict)
}

func (s *PaymentStore) rejectTransition(ctx context.Context, p *model.PaymentRecord, req TransitionRequest, reason string) {
	s.rejectTransitionWith(ctx, p, req, "rejected", reason, nil)
}

func (s *PaymentStore) rejectTransitionWith(ctx context.Context, p *model.PaymentRecord, req TransitionRequest, result, reason string, extra map[string]interface{}) {
	metrics.IncTransition(string(p.Status), string(req.To), result)
	logging.With(ctx, s.log).Warn().
		Str("payment_id", p.ID).
		Str("from", string(p.Status)).
		Str("to", string(req.To)).
		Str("source", req.Source).
		Str("reason", reason).
		Msg("payment transition rejected")

	data := mergeData(req.EventData, extra)
	data["from"] = string(p.Status)
	data["to"] = string(req.To)
	data["source"] = req.Source
	data["reason"] = reason
	// a failed append is already logged and counted by AuditLog
	_ = s.audit.Append(ctx, nil, p.ID, model.AuditStatusTransitionRejected, req.ActorID, data)
}

// SetOwner attributes a record to a user. An unowned record can be claimed
// once; reassigning an owned record requires Override.
func (s *PaymentStore) SetOwner(ctx context.Context, ch OwnerChange) (*model.PaymentRecord, MutationResult, error) {
	if ch.UserID == "" {
		return nil, "", domain.ErrMissingFields
	}
	p, err := s.payments.FindByID(ctx, nil, ch.PaymentID)
	if err != nil {
		return nil, "", err
	}
	prev := p.Owner()
	if prev == ch.UserID {
		return p, MutationNoop, nil
	}
	if prev != "" && !ch.Override {
		s.rejectOwner(ctx, p, ch, "already_claimed")
		return p, "", domain.ErrAlreadyClaimed
	}

	err = s.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		ok, err := s.payments.SetOwnerIf(ctx, tx, p.ID, p.UserID, ch.UserID)
		if err != nil {
			return err
		}
		if !ok {
			return errCASMiss
		}
		data := mergeData(ch.EventData, map[string]interface{}{
			"user_id":          ch.UserID,
			"previous_user_id": nullable(prev),
		})
		if ch.Override {
			data["override"] = true
		}
		return s.audit.Append(ctx, tx, p.ID, ch.Event, ch.ActorID, data)
	})
	if errors.Is(err, errCASMiss) {
		cur, ferr := s.payments.FindByID(ctx, nil, ch.PaymentID)
		if ferr != nil {
			return nil, "", ferr
		}
		if cur.Owner() == ch.UserID {
			return cur, MutationNoop, nil
		}
		if ch.Override {
			s.rejectOwner(ctx, cur, ch, "conflict")
			return cur, "", domain.ErrConflict
		}
		s.rejectOwner(ctx, cur, ch, "already_claimed")
		return cur, "", domain.ErrAlreadyClaimed
	}
	if err != nil {
		return nil, "", err
	}

	logging.With(ctx, s.log).Info().
		Str("payment_id", p.ID).
		Str("event_type", string(ch.Event)).
		Bool("override", ch.Override).
		Msg("payment owner set")

	uid := ch.UserID
	p.UserID = &uid
	p.UpdatedAt = time.Now().UTC()
	return p, MutationApplied, nil
}

func (s *PaymentStore) rejectOwner(ctx context.Context, p *model.PaymentRecord, ch OwnerChange, reason string) {
	logging.With(ctx, s.log).Warn().
		Str("payment_id", p.ID).
		Str("event_type", string(ch.Event)).
		Str("reason", reason).
		Msg("payment owner change rejected")
	if ch.RejectEvent == "" {
		return
	}
	data := mergeData(ch.EventData, map[string]interface{}{
		"requested_user_id": ch.UserID,
		"current_user_id":   nullable(p.Owner()),
		"reason":            reason,
	})
	_ = s.audit.Append(ctx, nil, p.ID, ch.RejectEvent, ch.ActorID, data)
}

func mergeData(base, extra map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(base)+len(extra))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

//go:build !integration

package usecase_test

import (
	"context"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"payment-lifecycle/internal/domain"
	"payment-lifecycle/internal/domain/model"
	"payment-lifecycle/internal/domain/ports/adapter"
	"payment-lifecycle/internal/domain/ports/repository"
	"payment-lifecycle/internal/usecase"
)

// =============================
// Repositories
// =============================

// ---- In-memory PaymentRepository ----

type MockPaymentRepo struct {
	mu    sync.Mutex
	data  map[string]*model.PaymentRecord // by id
	byRef map[string]string               // reference -> id

	CreateFunc         func(ctx context.Context, tx repository.Tx, p *model.PaymentRecord) error
	UpdateStatusIfFunc func(ctx context.Context, tx repository.Tx, id string, from, to model.PaymentStatus) (bool, error)
	// BeforeCAS runs right before a conditional update is evaluated; tests use it
	// to simulate a concurrent writer.
	BeforeCAS func(id string)
}

var _ repository.PaymentRepository = (*MockPaymentRepo)(nil)

func NewMockPaymentRepo() *MockPaymentRepo {
	return &MockPaymentRepo{data: map[string]*model.PaymentRecord{}, byRef: map[string]string{}}
}

// Seed stores p as-is, bypassing Create.
func (r *MockPaymentRepo) Seed(p *model.PaymentRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.data[p.ID] = p.Clone()
	r.byRef[p.MerchantReference] = p.ID
}

// SetStatus overwrites a record's status out of band, as a concurrent writer would.
func (r *MockPaymentRepo) SetStatus(id string, status model.PaymentStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.data[id]; ok {
		p.Status = status
	}
}

// SetUser overwrites a record's owner out of band.
func (r *MockPaymentRepo) SetUser(id, userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.data[id]; ok {
		p.UserID = &userID
	}
}

func (r *MockPaymentRepo) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.data)
}

func (r *MockPaymentRepo) Create(ctx context.Context, tx repository.Tx, p *model.PaymentRecord) error {
	if r.CreateFunc != nil {
		return r.CreateFunc(ctx, tx, p)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byRef[p.MerchantReference]; ok {
		return domain.ErrAlreadyExists
	}
	if _, ok := r.data[p.ID]; ok {
		return domain.ErrAlreadyExists
	}
	r.data[p.ID] = p.Clone()
	r.byRef[p.MerchantReference] = p.ID
	return nil
}

func (r *MockPaymentRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.PaymentRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.data[id]; ok {
		return p.Clone(), nil
	}
	return nil, domain.ErrNotFound
}

func (r *MockPaymentRepo) FindByReference(ctx context.Context, tx repository.Tx, reference string) (*model.PaymentRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if id, ok := r.byRef[reference]; ok {
		return r.data[id].Clone(), nil
	}
	return nil, domain.ErrNotFound
}

func (r *MockPaymentRepo) UpdateStatusIf(ctx context.Context, tx repository.Tx, id string, from, to model.PaymentStatus) (bool, error) {
	if r.UpdateStatusIfFunc != nil {
		return r.UpdateStatusIfFunc(ctx, tx, id, from, to)
	}
	if r.BeforeCAS != nil {
		r.BeforeCAS(id)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.data[id]
	if !ok || p.Status != from {
		return false, nil
	}
	p.Status = to
	p.UpdatedAt = time.Now().UTC()
	return true, nil
}

func (r *MockPaymentRepo) SetOwnerIf(ctx context.Context, tx repository.Tx, id string, expected *string, userID string) (bool, error) {
	if r.BeforeCAS != nil {
		r.BeforeCAS(id)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.data[id]
	if !ok {
		return false, nil
	}
	switch {
	case expected == nil && p.UserID != nil:
		return false, nil
	case expected != nil && (p.UserID == nil || *p.UserID != *expected):
		return false, nil
	}
	uid := userID
	p.UserID = &uid
	p.UpdatedAt = time.Now().UTC()
	return true, nil
}

func (r *MockPaymentRepo) ListOrphaned(ctx context.Context, tx repository.Tx, q repository.OrphanQuery) ([]*model.PaymentRecord, error) {
	return r.filter(q.Limit, true, func(p *model.PaymentRecord) bool {
		if p.Status != model.PaymentStatusPending && p.Status != model.PaymentStatusFailed {
			return false
		}
		return p.UpdatedAt.Before(q.StaleBefore) || (p.UserID == nil && p.Status == model.PaymentStatusFailed)
	}), nil
}

func (r *MockPaymentRepo) ListByStatus(ctx context.Context, tx repository.Tx, status model.PaymentStatus, limit int) ([]*model.PaymentRecord, error) {
	return r.filter(limit, true, func(p *model.PaymentRecord) bool { return p.Status == status }), nil
}

func (r *MockPaymentRepo) ListPendingOlderThan(ctx context.Context, tx repository.Tx, olderThan time.Time, limit int) ([]*model.PaymentRecord, error) {
	return r.filter(limit, false, func(p *model.PaymentRecord) bool {
		return p.Status == model.PaymentStatusPending && p.UpdatedAt.Before(olderThan)
	}), nil
}

func (r *MockPaymentRepo) SearchByReferenceToken(ctx context.Context, tx repository.Tx, q repository.TokenSearch) ([]*model.PaymentRecord, error) {
	if q.Token == "" || q.VisibleTo == "" {
		return nil, domain.ErrInvalidArgument
	}
	return r.filter(q.Limit, true, func(p *model.PaymentRecord) bool {
		return (p.Status == model.PaymentStatusPending || p.Status == model.PaymentStatusFailed) &&
			strings.Contains(p.MerchantReference, q.Token) &&
			(p.UserID == nil || *p.UserID == q.VisibleTo)
	}), nil
}

func (r *MockPaymentRepo) filter(limit int, newestFirst bool, keep func(*model.PaymentRecord) bool) []*model.PaymentRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*model.PaymentRecord, 0)
	for _, p := range r.data {
		if keep(p) {
			out = append(out, p.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if newestFirst {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].UpdatedAt.Before(out[j].UpdatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// ---- In-memory AuditRepository ----

type MockAuditRepo struct {
	mu      sync.Mutex
	entries []*model.AuditEntry

	AppendFunc func(ctx context.Context, tx repository.Tx, e *model.AuditEntry) error
}

var _ repository.AuditRepository = (*MockAuditRepo)(nil)

func NewMockAuditRepo() *MockAuditRepo { return &MockAuditRepo{} }

func (r *MockAuditRepo) Append(ctx context.Context, tx repository.Tx, e *model.AuditEntry) error {
	if r.AppendFunc != nil {
		return r.AppendFunc(ctx, tx, e)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *e
	r.entries = append(r.entries, &cp)
	return nil
}

func (r *MockAuditRepo) ListByPayment(ctx context.Context, tx repository.Tx, paymentID string) ([]*model.AuditEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*model.AuditEntry, 0)
	for _, e := range r.entries {
		if e.PaymentID == paymentID {
			cp := *e
			out = append(out, &cp)
		}
	}
	return out, nil
}

// Events returns the event types recorded for paymentID, in order.
func (r *MockAuditRepo) Events(paymentID string) []model.AuditEventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.AuditEventType
	for _, e := range r.entries {
		if e.PaymentID == paymentID {
			out = append(out, e.EventType)
		}
	}
	return out
}

func (r *MockAuditRepo) CountOf(paymentID string, event model.AuditEventType) int {
	n := 0
	for _, ev := range r.Events(paymentID) {
		if ev == event {
			n++
		}
	}
	return n
}

// ---- TransactionManager ----

type MockTxManager struct {
	WithTxFunc func(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error
}

func NewMockTxManager() *MockTxManager {
	return &MockTxManager{}
}

var _ repository.TransactionManager = (*MockTxManager)(nil)

// WithTx runs fn immediately with NoTX unless WithTxFunc is set.
func (m *MockTxManager) WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	if m.WithTxFunc != nil {
		return m.WithTxFunc(ctx, txOpt, fn)
	}
	return fn(ctx, repository.NoTX)
}

// =============================
// Adapters
// =============================

// ---- Mock ProviderGateway ----

type MockGateway struct {
	mu          sync.Mutex
	CreateCalls int
	StatusCalls int

	CreateSessionFunc func(ctx context.Context, req adapter.ProviderSessionRequest) (adapter.ProviderSession, error)
	GetStatusFunc     func(ctx context.Context, reference string) (adapter.ProviderStatus, error)
}

var _ adapter.ProviderGateway = (*MockGateway)(nil)

func (m *MockGateway) Name() string { return "mock" }

func (m *MockGateway) CreateSession(ctx context.Context, req adapter.ProviderSessionRequest) (adapter.ProviderSession, error) {
	m.mu.Lock()
	m.CreateCalls++
	m.mu.Unlock()
	if m.CreateSessionFunc != nil {
		return m.CreateSessionFunc(ctx, req)
	}
	return adapter.ProviderSession{
		PaymentURL: "https://pay.test/" + req.MerchantReference,
		ExpiresAt:  time.Now().UTC().Add(30 * time.Minute),
	}, nil
}

func (m *MockGateway) GetStatus(ctx context.Context, reference string) (adapter.ProviderStatus, error) {
	m.mu.Lock()
	m.StatusCalls++
	m.mu.Unlock()
	if m.GetStatusFunc != nil {
		return m.GetStatusFunc(ctx, reference)
	}
	return adapter.ProviderStatusPending, nil
}

// ---- Mock AdminDirectory ----

type MockAdminDirectory struct {
	admins map[string]bool
}

var _ adapter.AdminDirectory = (*MockAdminDirectory)(nil)

func NewMockAdminDirectory(ids ...string) *MockAdminDirectory {
	m := &MockAdminDirectory{admins: map[string]bool{}}
	for _, id := range ids {
		m.admins[id] = true
	}
	return m
}

func (m *MockAdminDirectory) IsAdmin(_ context.Context, actorID string) (bool, error) {
	return m.admins[actorID], nil
}

// =============================
// Wiring helpers
// =============================

type storeDeps struct {
	payments *MockPaymentRepo
	audits   *MockAuditRepo
	tm       *MockTxManager
	audit    *usecase.AuditLog
	store    *usecase.PaymentStore
}

func newStoreDeps() *storeDeps {
	d := &storeDeps{
		payments: NewMockPaymentRepo(),
		audits:   NewMockAuditRepo(),
		tm:       NewMockTxManager(),
	}
	d.audit = usecase.NewAuditLog(d.audits, newTestLogger())
	d.store = usecase.NewPaymentStore(d.payments, d.audit, d.tm, newTestLogger())
	return d
}

func seedRecord(repo *MockPaymentRepo, status model.PaymentStatus, owner string, age time.Duration) *model.PaymentRecord {
	ts := time.Now().UTC().Add(-age)
	p := &model.PaymentRecord{
		ID:                uuid.NewString(),
		MerchantReference: "PAY-SEED-" + uuid.NewString()[:8],
		TierID:            "essential",
		PaymentMethod:     model.PaymentMethodCard,
		Amount:            14900,
		Status:            status,
		CreatedAt:         ts,
		UpdatedAt:         ts,
	}
	if owner != "" {
		p.UserID = &owner
	}
	repo.Seed(p)
	return p
}

// newTestLogger creates a silent zerolog.Logger for use in tests.
func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}

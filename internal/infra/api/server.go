package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"payment-lifecycle/internal/domain/model"
	"payment-lifecycle/internal/domain/ports/adapter"
	"payment-lifecycle/internal/infra/metrics"
	"payment-lifecycle/internal/usecase"
)

type TierLister interface {
	ListTiers() []model.Tier
}

type SessionCreator interface {
	CreateSession(ctx context.Context, req usecase.SessionRequest) (*model.PaymentSession, error)
}

type StatusReader interface {
	CheckStatus(ctx context.Context, reference string) (model.PaymentStatus, bool)
}

type CallbackApplier interface {
	ApplyProviderStatus(ctx context.Context, reference string, status adapter.ProviderStatus, source string) (*model.PaymentRecord, usecase.MutationResult, error)
}

type RecoveryActions interface {
	ListOrphaned(ctx context.Context, actorID string) ([]*model.PaymentRecord, error)
	ListFailed(ctx context.Context, actorID string) ([]*model.PaymentRecord, error)
	LinkPayment(ctx context.Context, actorID, paymentID, userID, notes string, override bool) (*model.PaymentRecord, error)
	ResolvePayment(ctx context.Context, actorID, paymentID, notes string) (*model.PaymentRecord, error)
	UserRecoveryCheck(ctx context.Context, actorID, actorEmail, userEmail string) ([]*model.PaymentRecord, error)
	ClaimPayment(ctx context.Context, actorID, paymentID, userID string) (*model.PaymentRecord, error)
	History(ctx context.Context, actorID, paymentID string) ([]*model.AuditEntry, error)
}

type Deps struct {
	Tiers    TierLister
	Sessions SessionCreator
	Status   StatusReader
	Callback CallbackApplier
	Recovery RecoveryActions
	Auth     *Authenticator
	// CallbackSecret enables X-Signature verification on provider callbacks when non-empty.
	CallbackSecret string
	RequestTimeout time.Duration
	Dev            bool
}

// Server exposes session creation, status polling, provider callbacks and
// the recovery action endpoint.
type Server struct {
	d   Deps
	log *zerolog.Logger
}

func NewServer(d Deps, logger *zerolog.Logger) *Server {
	return &Server{d: d, log: logger}
}

// Router builds the chi router with the middleware chain applied.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(TraceID(), RequestLog(s.log), Recover(s.log), Timeout(s.d.RequestTimeout))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/tiers", s.handleListTiers)
		r.Post("/payments/sessions", s.handleCreateSession)
		r.Get("/payments/{reference}/status", s.handleCheckStatus)
		r.Post("/payments/callback", s.handleCallback)
		r.Post("/recovery", s.handleRecovery)
	})
	return r
}

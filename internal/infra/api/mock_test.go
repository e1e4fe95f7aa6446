//go:build !integration

package api_test

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"

	"payment-lifecycle/internal/domain/model"
	"payment-lifecycle/internal/domain/ports/adapter"
	"payment-lifecycle/internal/infra/api"
	"payment-lifecycle/internal/usecase"
)

const testSecret = "test-jwt-secret"

func newLogger() *zerolog.Logger { l := zerolog.Nop(); return &l }

type MockSessions struct {
	CreateSessionFunc func(ctx context.Context, req usecase.SessionRequest) (*model.PaymentSession, error)
}

func (m *MockSessions) CreateSession(ctx context.Context, req usecase.SessionRequest) (*model.PaymentSession, error) {
	return m.CreateSessionFunc(ctx, req)
}

type MockStatus struct {
	CheckStatusFunc func(ctx context.Context, reference string) (model.PaymentStatus, bool)
}

func (m *MockStatus) CheckStatus(ctx context.Context, reference string) (model.PaymentStatus, bool) {
	return m.CheckStatusFunc(ctx, reference)
}

type MockCallback struct {
	ApplyFunc func(ctx context.Context, reference string, status adapter.ProviderStatus, source string) (*model.PaymentRecord, usecase.MutationResult, error)
}

func (m *MockCallback) ApplyProviderStatus(ctx context.Context, reference string, status adapter.ProviderStatus, source string) (*model.PaymentRecord, usecase.MutationResult, error) {
	return m.ApplyFunc(ctx, reference, status, source)
}

type MockRecovery struct {
	ListOrphanedFunc      func(ctx context.Context, actorID string) ([]*model.PaymentRecord, error)
	ListFailedFunc        func(ctx context.Context, actorID string) ([]*model.PaymentRecord, error)
	LinkPaymentFunc       func(ctx context.Context, actorID, paymentID, userID, notes string, override bool) (*model.PaymentRecord, error)
	ResolvePaymentFunc    func(ctx context.Context, actorID, paymentID, notes string) (*model.PaymentRecord, error)
	UserRecoveryCheckFunc func(ctx context.Context, actorID, actorEmail, userEmail string) ([]*model.PaymentRecord, error)
	ClaimPaymentFunc      func(ctx context.Context, actorID, paymentID, userID string) (*model.PaymentRecord, error)
	HistoryFunc           func(ctx context.Context, actorID, paymentID string) ([]*model.AuditEntry, error)
}

func (m *MockRecovery) ListOrphaned(ctx context.Context, actorID string) ([]*model.PaymentRecord, error) {
	return m.ListOrphanedFunc(ctx, actorID)
}
func (m *MockRecovery) ListFailed(ctx context.Context, actorID string) ([]*model.PaymentRecord, error) {
	return m.ListFailedFunc(ctx, actorID)
}
func (m *MockRecovery) LinkPayment(ctx context.Context, actorID, paymentID, userID, notes string, override bool) (*model.PaymentRecord, error) {
	return m.LinkPaymentFunc(ctx, actorID, paymentID, userID, notes, override)
}
func (m *MockRecovery) ResolvePayment(ctx context.Context, actorID, paymentID, notes string) (*model.PaymentRecord, error) {
	return m.ResolvePaymentFunc(ctx, actorID, paymentID, notes)
}
func (m *MockRecovery) UserRecoveryCheck(ctx context.Context, actorID, actorEmail, userEmail string) ([]*model.PaymentRecord, error) {
	return m.UserRecoveryCheckFunc(ctx, actorID, actorEmail, userEmail)
}
func (m *MockRecovery) ClaimPayment(ctx context.Context, actorID, paymentID, userID string) (*model.PaymentRecord, error) {
	return m.ClaimPaymentFunc(ctx, actorID, paymentID, userID)
}
func (m *MockRecovery) History(ctx context.Context, actorID, paymentID string) ([]*model.AuditEntry, error) {
	return m.HistoryFunc(ctx, actorID, paymentID)
}

func mintToken(t interface{ Fatalf(string, ...any) }, subject, email string) string {
	claims := api.ActorClaims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

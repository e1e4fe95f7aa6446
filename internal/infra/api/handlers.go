package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"payment-lifecycle/internal/domain"
	"payment-lifecycle/internal/domain/model"
	"payment-lifecycle/internal/infra/adapters/payment"
	"payment-lifecycle/internal/infra/logging"
	"payment-lifecycle/internal/usecase"
)

const maxBodyBytes = 1 << 16

type errorBody struct {
	Error string `json:"error"`
}

type sessionCreateRequest struct {
	TierID        string `json:"tier_id"`
	UserID        string `json:"user_id"`
	PaymentMethod string `json:"payment_method"`
	UserEmail     string `json:"user_email,omitempty"`
}

type statusResponse struct {
	Status *model.PaymentStatus `json:"status"`
}

type callbackRequest struct {
	MerchantReference string `json:"merchant_reference"`
	Status            string `json:"status"`
}

type recoveryRequest struct {
	Action    string `json:"action"`
	PaymentID string `json:"payment_id,omitempty"`
	UserID    string `json:"user_id,omitempty"`
	UserEmail string `json:"user_email,omitempty"`
	Notes     string `json:"notes,omitempty"`
	Override  bool   `json:"override,omitempty"`
}

// RecoveryResponse is the envelope for every recovery action.
type RecoveryResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

func (s *Server) handleListTiers(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"items": s.d.Tiers.ListTiers()})
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req sessionCreateRequest
	if err := decodeBody(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid_body"})
		return
	}
	sess, err := s.d.Sessions.CreateSession(r.Context(), usecase.SessionRequest{
		TierID:        strings.TrimSpace(req.TierID),
		UserID:        strings.TrimSpace(req.UserID),
		PaymentMethod: model.PaymentMethod(strings.TrimSpace(req.PaymentMethod)),
		UserEmail:     strings.TrimSpace(req.UserEmail),
	})
	if err != nil {
		writeJSON(w, httpStatus(err), errorBody{Error: domain.Kind(err)})
		return
	}
	writeJSON(w, http.StatusCreated, sess)
}

func (s *Server) handleCheckStatus(w http.ResponseWriter, r *http.Request) {
	ref := chi.URLParam(r, "reference")
	ctx := logging.WithReference(r.Context(), ref)
	st, ok := s.d.Status.CheckStatus(ctx, ref)
	if !ok {
		writeJSON(w, http.StatusOK, statusResponse{})
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{Status: &st})
}

func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid_body"})
		return
	}
	if s.d.CallbackSecret != "" && !validSignature(s.d.CallbackSecret, body, r.Header.Get("X-Signature")) {
		s.log.Warn().Msg("provider callback signature mismatch")
		writeJSON(w, http.StatusUnauthorized, errorBody{Error: "invalid_signature"})
		return
	}
	var req callbackRequest
	if err := json.Unmarshal(body, &req); err != nil || req.MerchantReference == "" {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid_body"})
		return
	}

	ctx := logging.WithReference(r.Context(), logging.Redact(req.MerchantReference, s.d.Dev))
	rec, res, err := s.d.Callback.ApplyProviderStatus(ctx, req.MerchantReference, payment.ParseProviderStatus(req.Status), "provider_callback")
	if err != nil {
		logging.With(ctx, s.log).Warn().Err(err).Str("provider_status", req.Status).Msg("provider callback not applied")
		writeJSON(w, httpStatus(err), errorBody{Error: domain.Kind(err)})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": rec.Status,
		"result": res,
	})
}

func (s *Server) handleRecovery(w http.ResponseWriter, r *http.Request) {
	actor, err := s.d.Auth.ParseFromRequest(r)
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, RecoveryResponse{Error: "unauthenticated"})
		return
	}
	var req recoveryRequest
	if err := decodeBody(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, RecoveryResponse{Error: "invalid_body"})
		return
	}

	ctx := logging.WithActorID(r.Context(), actor.ID)
	var data interface{}
	switch req.Action {
	case "list_orphaned":
		data, err = s.d.Recovery.ListOrphaned(ctx, actor.ID)
	case "list_failed":
		data, err = s.d.Recovery.ListFailed(ctx, actor.ID)
	case "link_payment":
		data, err = s.d.Recovery.LinkPayment(ctx, actor.ID, req.PaymentID, req.UserID, req.Notes, req.Override)
	case "resolve_payment":
		data, err = s.d.Recovery.ResolvePayment(ctx, actor.ID, req.PaymentID, req.Notes)
	case "user_recovery_check":
		data, err = s.d.Recovery.UserRecoveryCheck(ctx, actor.ID, actor.Email, strings.TrimSpace(req.UserEmail))
	case "claim_payment":
		userID := req.UserID
		if userID == "" {
			userID = actor.ID
		}
		data, err = s.d.Recovery.ClaimPayment(ctx, actor.ID, req.PaymentID, userID)
	case "payment_history":
		data, err = s.d.Recovery.History(ctx, actor.ID, req.PaymentID)
	default:
		writeJSON(w, http.StatusBadRequest, RecoveryResponse{Error: "unknown_action"})
		return
	}
	if err != nil {
		writeJSON(w, httpStatus(err), RecoveryResponse{Error: domain.Kind(err)})
		return
	}
	writeJSON(w, http.StatusOK, RecoveryResponse{Success: true, Data: data})
}

// httpStatus maps domain error kinds onto HTTP status codes.
func httpStatus(err error) int {
	switch {
	case domain.IsValidation(err), errors.Is(err, domain.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrAlreadyClaimed),
		errors.Is(err, domain.ErrConflict),
		errors.Is(err, domain.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, domain.ErrProviderUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func decodeBody(r *http.Request, v interface{}) error {
	if r.Body == nil {
		return io.EOF
	}
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

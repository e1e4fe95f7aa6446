package model

import "time"

type AuditEventType string

const (
	AuditPaymentCreated           AuditEventType = "payment_created"
	AuditStatusTransition         AuditEventType = "status_transition"
	AuditStatusTransitionRejected AuditEventType = "status_transition_rejected"
	AuditAdminLinkedPayment       AuditEventType = "admin_linked_payment"
	AuditAdminResolvedPayment     AuditEventType = "admin_resolved_payment"
	AuditUserClaimedPayment       AuditEventType = "user_claimed_payment"
	AuditClaimRejected            AuditEventType = "claim_rejected"
	AuditLinkRejected             AuditEventType = "link_rejected"
	AuditForbiddenAttempt         AuditEventType = "forbidden_attempt"
)

// AuditEntry is an append-only fact about a payment record. Entries are never
// updated or deleted.
type AuditEntry struct {
	ID         string                 `json:"id"`
	PaymentID  string                 `json:"payment_id"`
	EventType  AuditEventType         `json:"event_type"`
	ActorID    *string                `json:"actor_id"` // nil = system
	EventData  map[string]interface{} `json:"event_data"`
	OccurredAt time.Time              `json:"occurred_at"`
}

package model

import "time"

type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"  // session created; awaiting provider confirmation
	PaymentStatusPaid     PaymentStatus = "paid"     // provider confirmed success
	PaymentStatusFailed   PaymentStatus = "failed"   // provider confirmed failure or decline
	PaymentStatusExpired  PaymentStatus = "expired"  // session TTL elapsed without confirmation
	PaymentStatusRefunded PaymentStatus = "refunded" // closed out by an admin
)

func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentStatusPending, PaymentStatusPaid, PaymentStatusFailed, PaymentStatusExpired, PaymentStatusRefunded:
		return true
	}
	return false
}

// Terminal statuses have no outgoing edges.
func (s PaymentStatus) Terminal() bool {
	return s == PaymentStatusExpired || s == PaymentStatusRefunded
}

// transitions is the directed edge set of the payment state machine.
var transitions = map[PaymentStatus][]PaymentStatus{
	PaymentStatusPending: {PaymentStatusPaid, PaymentStatusFailed, PaymentStatusExpired},
	PaymentStatusPaid:    {PaymentStatusRefunded},
	PaymentStatusFailed:  {PaymentStatusRefunded},
}

// CanTransition reports whether from -> to is an edge of the state machine.
// A same-state move is not an edge; callers treat it as a no-op.
func CanTransition(from, to PaymentStatus) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// AdminOnly reports whether the edge may only be taken by an administrator.
func AdminOnly(from, to PaymentStatus) bool {
	return to == PaymentStatusRefunded && (from == PaymentStatusPaid || from == PaymentStatusFailed)
}

// PaymentSession is the caller-facing descriptor returned on creation. It is not
// persisted; the PaymentRecord mirrors it.
type PaymentSession struct {
	TierID            string        `json:"tier_id"`
	UserID            string        `json:"user_id"`
	PaymentMethod     PaymentMethod `json:"payment_method"`
	PaymentURL        string        `json:"payment_url"`
	MerchantReference string        `json:"merchant_reference"`
	ExpiresAt         time.Time     `json:"expires_at"`
	Status            PaymentStatus `json:"status"`
}

// PaymentRecord is the durable payment attempt.
type PaymentRecord struct {
	ID                string        `json:"id"`
	MerchantReference string        `json:"merchant_reference"`
	UserID            *string       `json:"user_id"` // nil = not yet attributable to a user
	TierID            string        `json:"tier_id"`
	PaymentMethod     PaymentMethod `json:"payment_method"`
	Amount            int64         `json:"amount"`
	Status            PaymentStatus `json:"status"`
	ExpiresAt         *time.Time    `json:"expires_at,omitempty"`
	CreatedAt         time.Time     `json:"created_at"`
	UpdatedAt         time.Time     `json:"updated_at"`
}

// Owner returns the owning user id or "" when unattributed.
func (p *PaymentRecord) Owner() string {
	if p.UserID == nil {
		return ""
	}
	return *p.UserID
}

// Clone returns a deep copy so callers can hand records out without aliasing.
func (p *PaymentRecord) Clone() *PaymentRecord {
	cp := *p
	if p.UserID != nil {
		u := *p.UserID
		cp.UserID = &u
	}
	if p.ExpiresAt != nil {
		e := *p.ExpiresAt
		cp.ExpiresAt = &e
	}
	return &cp
}

package domain

import "errors"

var (
	// Session creation path
	ErrMissingFields          = errors.New("missing required fields")
	ErrInvalidTier            = errors.New("invalid tier")
	ErrFreeTierNotPurchasable = errors.New("free tier cannot be purchased")
	ErrInvalidPaymentMethod   = errors.New("payment method not allowed for tier")
	ErrProviderUnavailable    = errors.New("payment provider unavailable")

	// Recovery / transition path
	ErrNotFound          = errors.New("entity not found")
	ErrForbidden         = errors.New("forbidden")
	ErrAlreadyClaimed    = errors.New("payment already claimed by another user")
	ErrInvalidTransition = errors.New("invalid payment status transition")
	ErrConflict          = errors.New("payment was modified concurrently")

	// Infrastructure
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrAlreadyExists      = errors.New("entity already exists")
	ErrOperationFailed    = errors.New("database operation failed")
	ErrReadDatabaseRow    = errors.New("failed to read database row")
	ErrInvalidExecContext = errors.New("invalid execution context")
)

// kinds maps each sentinel to the stable code used on the wire and in metric labels.
var kinds = []struct {
	err  error
	code string
}{
	{ErrMissingFields, "missing_fields"},
	{ErrInvalidTier, "invalid_tier"},
	{ErrFreeTierNotPurchasable, "free_tier_not_purchasable"},
	{ErrInvalidPaymentMethod, "invalid_payment_method"},
	{ErrProviderUnavailable, "provider_unavailable"},
	{ErrNotFound, "not_found"},
	{ErrForbidden, "forbidden"},
	{ErrAlreadyClaimed, "already_claimed"},
	{ErrInvalidTransition, "invalid_transition"},
	{ErrConflict, "conflict"},
	{ErrInvalidArgument, "invalid_argument"},
}

// Kind returns the error code for err, "" for nil and "internal" for anything
// outside the closed set.
func Kind(err error) string {
	if err == nil {
		return ""
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.code
		}
	}
	return "internal"
}

// IsValidation reports whether err is a deterministic input error that the
// caller must fix rather than retry.
func IsValidation(err error) bool {
	return errors.Is(err, ErrMissingFields) ||
		errors.Is(err, ErrInvalidTier) ||
		errors.Is(err, ErrFreeTierNotPurchasable) ||
		errors.Is(err, ErrInvalidPaymentMethod)
}

package model

// PaymentMethod is the closed set of ways a tier can be paid for.
type PaymentMethod string

const (
	PaymentMethodCard        PaymentMethod = "card"
	PaymentMethodAirtime     PaymentMethod = "airtime"
	PaymentMethodQR          PaymentMethod = "qr"
	PaymentMethodEFT         PaymentMethod = "eft"
	PaymentMethodStore       PaymentMethod = "store"
	PaymentMethodPaymentPlan PaymentMethod = "payment_plan"
)

// PaymentMethods lists every method in declaration order.
var PaymentMethods = []PaymentMethod{
	PaymentMethodCard,
	PaymentMethodAirtime,
	PaymentMethodQR,
	PaymentMethodEFT,
	PaymentMethodStore,
	PaymentMethodPaymentPlan,
}

func (m PaymentMethod) Valid() bool {
	for _, pm := range PaymentMethods {
		if pm == m {
			return true
		}
	}
	return false
}

// Tier is an immutable catalog entry.
type Tier struct {
	ID                    string          `json:"id"`
	DisplayName           string          `json:"display_name"`
	PriceOnceOff          int64           `json:"price_once_off"` // minor currency units (ZAR cents)
	AllowedPaymentMethods []PaymentMethod `json:"allowed_payment_methods"`
	Features              []string        `json:"features"`
}

// IsFree is derived from the price; a free tier has nothing to charge for.
func (t Tier) IsFree() bool { return t.PriceOnceOff == 0 }

func (t Tier) Allows(m PaymentMethod) bool {
	for _, pm := range t.AllowedPaymentMethods {
		if pm == m {
			return true
		}
	}
	return false
}

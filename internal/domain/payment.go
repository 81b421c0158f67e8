package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type PaymentStatus string

const (
	PaymentRequiresPayment PaymentStatus = "requires_payment"
	PaymentSucceeded       PaymentStatus = "succeeded"
	PaymentFailed          PaymentStatus = "failed"
	PaymentRefunded        PaymentStatus = "refunded"
)

type Payment struct {
	ID           string          `json:"id" db:"id"`
	BookingID    string          `json:"booking_id" db:"booking_id"`
	Provider     string          `json:"provider" db:"provider"`
	ProviderRef  string          `json:"provider_ref" db:"provider_ref"`
	ClientSecret string          `json:"client_secret,omitempty" db:"client_secret"`
	Amount       decimal.Decimal `json:"amount" db:"amount"`
	Currency     string          `json:"currency" db:"currency"`
	Status       PaymentStatus   `json:"status" db:"status"`
	Attempt      int             `json:"attempt" db:"attempt"`
	CreatedAt    time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at" db:"updated_at"`
}

// Intent is the gateway-side view of a payment.
type Intent struct {
	Ref          string
	ClientSecret string
	Status       string // requires_payment_method|processing|succeeded|canceled|failed
	Amount       decimal.Decimal
	Currency     string
}

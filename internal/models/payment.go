package models

import (
	"time"

	"github.com/google/uuid"
)

// PaymentType описывает назначение платежа в леджере сделки.
type PaymentType string

// Типы платежей (payment_type)
const (
	PaymentTypeProtectionFee PaymentType = "protection_fee"
	PaymentTypeSalePayment   PaymentType = "sale_payment"
	PaymentTypeSwapShipping  PaymentType = "swap_shipping"
)

// Valid проверяет, что значение входит в закрытый список типов.
func (t PaymentType) Valid() bool {
	switch t {
	case PaymentTypeProtectionFee, PaymentTypeSalePayment, PaymentTypeSwapShipping:
		return true
	}
	return false
}

// Payment — строка леджера платежей сделки. Ряд создаётся в статусе pending
// при создании Stripe-сессии и переводится в succeeded вебхуком; возвраты
// помечают ряд refunded, повторный возврат по тому же ряду не выполняется.
type Payment struct {
	ID                    uuid.UUID   `db:"id" json:"id"`
	OfferID               uuid.UUID   `db:"offer_id" json:"offer_id"`
	UserID                uuid.UUID   `db:"user_id" json:"user_id"`
	Type                  PaymentType `db:"type" json:"type"`
	Status                string      `db:"status" json:"status"`
	AmountCents           int64       `db:"amount_cents" json:"amount_cents"`
	Currency              string      `db:"currency" json:"currency"`
	StripeSessionID       *string     `db:"stripe_session_id" json:"stripe_session_id,omitempty"`
	StripePaymentIntentID *string     `db:"stripe_payment_intent_id" json:"stripe_payment_intent_id,omitempty"`
	StripeRefundID        *string     `db:"stripe_refund_id" json:"stripe_refund_id,omitempty"`
	CreatedAt             time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt             time.Time   `db:"updated_at" json:"updated_at"`
}

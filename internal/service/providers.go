package service

import (
	"context"

	"github.com/ignatzorin/giftcycle-backend/internal/payments/stripe"
	"github.com/ignatzorin/giftcycle-backend/internal/shipping/shippo"
)

// CheckoutProvider — платёжный провайдер (Stripe Checkout).
type CheckoutProvider interface {
	CreateCheckoutSession(ctx context.Context, p stripe.CheckoutParams) (*stripe.CheckoutSession, error)
	GetCheckoutSession(ctx context.Context, sessionID string) (*stripe.CheckoutSession, error)
	CreateRefund(ctx context.Context, paymentIntentID string) (*stripe.Refund, error)
}

// ShippingProvider — провайдер доставки (Shippo).
type ShippingProvider interface {
	CreateShipment(ctx context.Context, from, to shippo.Address, parcel shippo.Parcel) (*shippo.Shipment, error)
	PurchaseLabel(ctx context.Context, rateID string) (*shippo.Transaction, error)
}

// PaymentSettings — параметры платежей платформы.
type PaymentSettings struct {
	Currency           string
	FrontendURL        string
	ProtectionFeeCents int64
	PlatformFeeCents   int64
}

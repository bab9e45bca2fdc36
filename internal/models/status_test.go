package models

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestSwapStatus_Transitions(t *testing.T) {
	cases := []struct {
		from    SwapStatus
		to      SwapStatus
		allowed bool
	}{
		{SwapStatusNone, SwapStatusAwaitingPayment, true},
		{SwapStatusPending, SwapStatusAwaitingPayment, true},
		{SwapStatusAwaitingPayment, SwapStatusProtectedActive, true},
		{SwapStatusProtectedActive, SwapStatusShippingPartial, true},
		{SwapStatusShippingPartial, SwapStatusShippingCreated, true},
		{SwapStatusShippingCreated, SwapStatusCompleted, true},
		{SwapStatusProtectedActive, SwapStatusCompleted, true},

		// Стадии нельзя перескакивать или откатывать.
		{SwapStatusAwaitingPayment, SwapStatusShippingCreated, false},
		{SwapStatusShippingCreated, SwapStatusAwaitingPayment, false},
		{SwapStatusCompleted, SwapStatusFailed, false},
		{SwapStatusFailed, SwapStatusAwaitingPayment, false},
		{SwapStatusShippingPartial, SwapStatusCompleted, false},
	}

	for _, tc := range cases {
		assert.Equalf(t, tc.allowed, tc.from.CanTransition(tc.to),
			"переход %s -> %s", tc.from, tc.to)
	}
}

func TestSwapStatus_ForceHelpers(t *testing.T) {
	// Спор можно навесить на любую живую стадию обмена, но не на none,
	// не на конечные и не повторно.
	assert.True(t, SwapStatusAwaitingPayment.CanForceDispute())
	assert.True(t, SwapStatusShippingCreated.CanForceDispute())
	assert.False(t, SwapStatusNone.CanForceDispute())
	assert.False(t, SwapStatusCompleted.CanForceDispute())
	assert.False(t, SwapStatusUnderDispute.CanForceDispute())

	assert.True(t, SwapStatusUnderDispute.CanForceFail())
	assert.True(t, SwapStatusProtectedActive.CanForceFail())
	assert.False(t, SwapStatusFailed.CanForceFail())
	assert.False(t, SwapStatusNone.CanForceFail())
}

func TestSaleStatus_Transitions(t *testing.T) {
	cases := []struct {
		from    SaleStatus
		to      SaleStatus
		allowed bool
	}{
		{SaleStatusNone, SaleStatusAwaitingShipping, true},
		{SaleStatusAwaitingShipping, SaleStatusAwaitingPayment, true},
		{SaleStatusAwaitingPayment, SaleStatusBuyerPaid, true},
		{SaleStatusBuyerPaid, SaleStatusShipped, true},
		{SaleStatusShipped, SaleStatusCompleted, true},
		{SaleStatusUnderDispute, SaleStatusRefunded, true},

		{SaleStatusAwaitingShipping, SaleStatusBuyerPaid, false},
		{SaleStatusBuyerPaid, SaleStatusCompleted, false},
		{SaleStatusCompleted, SaleStatusRefunded, false},
		{SaleStatusRefunded, SaleStatusAwaitingPayment, false},
	}

	for _, tc := range cases {
		assert.Equalf(t, tc.allowed, tc.from.CanTransition(tc.to),
			"переход %s -> %s", tc.from, tc.to)
	}
}

func TestSaleStatus_ForceHelpers(t *testing.T) {
	assert.True(t, SaleStatusBuyerPaid.CanForceDispute())
	assert.True(t, SaleStatusShipped.CanForceDispute())
	assert.False(t, SaleStatusNone.CanForceDispute())
	assert.False(t, SaleStatusRefunded.CanForceDispute())
	assert.False(t, SaleStatusUnderDispute.CanForceDispute())

	assert.True(t, SaleStatusUnderDispute.CanForceRefund())
	assert.True(t, SaleStatusAwaitingPayment.CanForceRefund())
	assert.False(t, SaleStatusCompleted.CanForceRefund())
}

func TestOffer_Counterpart(t *testing.T) {
	offer := &Offer{
		SenderID: uuid.New(),
		OwnerID:  uuid.New(),
	}

	assert.Equal(t, offer.OwnerID, offer.Counterpart(offer.SenderID))
	assert.Equal(t, offer.SenderID, offer.Counterpart(offer.OwnerID))
	assert.True(t, offer.Participant(offer.SenderID))
	assert.False(t, offer.Participant(uuid.New()))
}

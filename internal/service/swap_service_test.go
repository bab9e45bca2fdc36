package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/giftcycle-backend/internal/models"
	"github.com/ignatzorin/giftcycle-backend/internal/pkg/apperror"
	"github.com/ignatzorin/giftcycle-backend/internal/repository"
	"github.com/ignatzorin/giftcycle-backend/internal/shipping/shippo"
)

func newSwapFixture(status models.SwapStatus) (*SwapService, *models.Offer, *stubOfferRepo, *stubPaymentRepo, *stubShipmentRepo, *stubAddressRepo, *fakeCheckout, *fakeShipping, *fakePusher) {
	offer := &models.Offer{
		ID:         uuid.New(),
		GiftID:     uuid.New(),
		SenderID:   uuid.New(),
		OwnerID:    uuid.New(),
		Type:       models.OfferTypeExchange,
		Status:     models.OfferStatusAccepted,
		SwapStatus: status,
	}
	offers := newStubOfferRepo(offer)
	payments := &stubPaymentRepo{offers: offers}
	shipments := &stubShipmentRepo{offers: offers}
	addresses := newStubAddressRepo()
	checkout := newFakeCheckout()
	shipping := &fakeShipping{}
	pusher := &fakePusher{}

	settings := PaymentSettings{
		Currency:           "usd",
		FrontendURL:        "https://giftcycle.test",
		ProtectionFeeCents: 149,
		PlatformFeeCents:   150,
	}

	svc := NewSwapService(offers, payments, shipments, addresses, checkout, shipping, settings, pusher)
	return svc, offer, offers, payments, shipments, addresses, checkout, shipping, pusher
}

func seedAddress(addresses *stubAddressRepo, offerID, userID uuid.UUID, weightKg float64) {
	addresses.Upsert(context.Background(), &models.SwapAddress{
		OfferID:        offerID,
		UserID:         userID,
		FullName:       "Тестовый Получатель",
		AddressLine1:   "ул. Ленина, 1",
		City:           "Москва",
		State:          "MOW",
		Zip:            "101000",
		Country:        "RU",
		ParcelWeightKg: weightKg,
	})
}

func TestSwapService_StartSwap(t *testing.T) {
	svc, offer, _, _, _, _, _, _, pusher := newSwapFixture(models.SwapStatusNone)
	ctx := context.Background()

	updated, err := svc.StartSwap(ctx, offer.ID, offer.SenderID)
	require.NoError(t, err)
	assert.Equal(t, models.SwapStatusAwaitingPayment, updated.SwapStatus)

	// Уведомление уходит второму участнику, не инициатору.
	assert.Equal(t, 1, pusher.sentTo(offer.OwnerID))
	assert.Equal(t, 0, pusher.sentTo(offer.SenderID))
}

func TestSwapService_StartSwap_Outsider(t *testing.T) {
	svc, offer, _, _, _, _, _, _, _ := newSwapFixture(models.SwapStatusNone)

	_, err := svc.StartSwap(context.Background(), offer.ID, uuid.New())
	assert.True(t, apperror.IsForbidden(err))
}

func TestSwapService_CreateFeeCheckout(t *testing.T) {
	svc, offer, _, payments, _, _, checkout, _, _ := newSwapFixture(models.SwapStatusAwaitingPayment)
	ctx := context.Background()

	payment, url, err := svc.CreateFeeCheckout(ctx, offer.ID, offer.SenderID)
	require.NoError(t, err)
	assert.NotEmpty(t, url)
	assert.Equal(t, int64(149), payment.AmountCents)
	assert.Equal(t, models.PaymentTypeProtectionFee, payment.Type)
	assert.Equal(t, models.PaymentStatusPending, payment.Status)

	require.Len(t, checkout.created, 1)
	assert.Equal(t, int64(149), checkout.created[0].AmountCents)
	assert.Equal(t, offer.ID.String(), checkout.created[0].Metadata["offer_id"])
	assert.Equal(t, offer.SenderID.String(), checkout.created[0].Metadata["user_id"])

	require.Len(t, payments.payments, 1)
}

func TestSwapService_CreateFeeCheckout_AlreadyPaid(t *testing.T) {
	svc, offer, _, payments, _, _, _, _, _ := newSwapFixture(models.SwapStatusAwaitingPayment)
	ctx := context.Background()

	sessionID := "cs_prev"
	payments.payments = append(payments.payments, &models.Payment{
		ID:              uuid.New(),
		OfferID:         offer.ID,
		UserID:          offer.SenderID,
		Type:            models.PaymentTypeProtectionFee,
		Status:          models.PaymentStatusSucceeded,
		StripeSessionID: &sessionID,
	})

	_, _, err := svc.CreateFeeCheckout(ctx, offer.ID, offer.SenderID)
	assert.True(t, apperror.IsCode(err, apperror.ErrCodeConflict))
}

func TestSwapService_ConfirmFeePayment_ActivatesProtection(t *testing.T) {
	svc, offer, _, _, _, _, checkout, _, pusher := newSwapFixture(models.SwapStatusAwaitingPayment)
	ctx := context.Background()

	senderPayment, _, err := svc.CreateFeeCheckout(ctx, offer.ID, offer.SenderID)
	require.NoError(t, err)
	ownerPayment, _, err := svc.CreateFeeCheckout(ctx, offer.ID, offer.OwnerID)
	require.NoError(t, err)

	// Первый взнос не активирует защиту и никого не уведомляет.
	checkout.markPaid(*senderPayment.StripeSessionID, "pi_sender")
	updated, err := svc.ConfirmFeePayment(ctx, *senderPayment.StripeSessionID)
	require.NoError(t, err)
	assert.Equal(t, models.SwapStatusAwaitingPayment, updated.SwapStatus)
	assert.Empty(t, pusher.notifications)

	// Второй взнос активирует защиту, сообщаем обоим.
	checkout.markPaid(*ownerPayment.StripeSessionID, "pi_owner")
	updated, err = svc.ConfirmFeePayment(ctx, *ownerPayment.StripeSessionID)
	require.NoError(t, err)
	assert.Equal(t, models.SwapStatusProtectedActive, updated.SwapStatus)
	assert.Equal(t, 1, pusher.sentTo(offer.SenderID))
	assert.Equal(t, 1, pusher.sentTo(offer.OwnerID))

	// Повтор вебхука идемпотентен: статус не меняется, дублей уведомлений нет.
	updated, err = svc.ConfirmFeePayment(ctx, *ownerPayment.StripeSessionID)
	require.NoError(t, err)
	assert.Equal(t, models.SwapStatusProtectedActive, updated.SwapStatus)
	assert.Equal(t, 1, pusher.sentTo(offer.SenderID))
	assert.Equal(t, 1, pusher.sentTo(offer.OwnerID))
}

func TestSwapService_ConfirmFeePayment_UnpaidSession(t *testing.T) {
	svc, offer, _, _, _, _, _, _, _ := newSwapFixture(models.SwapStatusAwaitingPayment)
	ctx := context.Background()

	payment, _, err := svc.CreateFeeCheckout(ctx, offer.ID, offer.SenderID)
	require.NoError(t, err)

	// Сессия создана, но не оплачена.
	_, err = svc.ConfirmFeePayment(ctx, *payment.StripeSessionID)
	assert.True(t, apperror.IsCode(err, apperror.ErrCodeConflict))
}

func TestSwapService_FetchRates_MissingAddress(t *testing.T) {
	svc, offer, _, _, _, addresses, _, _, _ := newSwapFixture(models.SwapStatusProtectedActive)
	ctx := context.Background()

	_, err := svc.FetchRates(ctx, offer.ID, offer.SenderID)
	assert.True(t, apperror.IsCode(err, apperror.ErrCodeMissingAddress))

	// Свой адрес есть, встречного нет.
	seedAddress(addresses, offer.ID, offer.SenderID, 1.5)
	_, err = svc.FetchRates(ctx, offer.ID, offer.SenderID)
	assert.True(t, apperror.IsCode(err, apperror.ErrCodeMissingAddress))
}

func TestSwapService_FetchRates_MissingWeight(t *testing.T) {
	svc, offer, _, _, _, addresses, _, _, _ := newSwapFixture(models.SwapStatusProtectedActive)
	ctx := context.Background()

	seedAddress(addresses, offer.ID, offer.SenderID, 0)
	seedAddress(addresses, offer.ID, offer.OwnerID, 2)

	_, err := svc.FetchRates(ctx, offer.ID, offer.SenderID)
	assert.True(t, apperror.IsCode(err, apperror.ErrCodeMissingWeight))
}

func TestSwapService_FetchRates(t *testing.T) {
	svc, offer, _, _, _, addresses, _, shipping, _ := newSwapFixture(models.SwapStatusProtectedActive)
	ctx := context.Background()

	seedAddress(addresses, offer.ID, offer.SenderID, 1.5)
	seedAddress(addresses, offer.ID, offer.OwnerID, 2)
	shipping.rates = []shippo.Rate{{ObjectID: "rate_1", Amount: "5.20", Provider: "USPS"}}

	rates, err := svc.FetchRates(ctx, offer.ID, offer.SenderID)
	require.NoError(t, err)
	require.Len(t, rates, 1)
	assert.Equal(t, "rate_1", rates[0].ObjectID)
}

// payShipping проводит участника через оплату доставки: сессия, оплата,
// подтверждение вебхуком.
func payShipping(t *testing.T, svc *SwapService, checkout *fakeCheckout, offerID, userID uuid.UUID, rateID string) (*models.Shipment, *models.Offer) {
	t.Helper()
	ctx := context.Background()

	payment, _, err := svc.CreateShippingCheckout(ctx, offerID, userID, ShippingCheckoutInput{RateID: rateID, CostCents: 520})
	require.NoError(t, err)
	checkout.markPaid(*payment.StripeSessionID, "pi_"+rateID)

	shipment, offer, err := svc.ConfirmShippingPayment(ctx, *payment.StripeSessionID)
	require.NoError(t, err)
	return shipment, offer
}

func TestSwapService_CreateShippingCheckout(t *testing.T) {
	svc, offer, _, payments, _, _, checkout, shipping, _ := newSwapFixture(models.SwapStatusProtectedActive)
	ctx := context.Background()

	payment, url, err := svc.CreateShippingCheckout(ctx, offer.ID, offer.SenderID, ShippingCheckoutInput{RateID: "rate_1", CostCents: 520})
	require.NoError(t, err)
	assert.NotEmpty(t, url)
	assert.Equal(t, models.PaymentTypeSwapShipping, payment.Type)
	assert.Equal(t, models.PaymentStatusPending, payment.Status)
	assert.Equal(t, int64(520), payment.AmountCents)

	// Ставка едет в метаданных сессии, лейбл до оплаты не покупается.
	require.Len(t, checkout.created, 1)
	assert.Equal(t, "rate_1", checkout.created[0].Metadata["rate_id"])
	assert.Empty(t, shipping.purchased)
	require.Len(t, payments.payments, 1)
}

func TestSwapService_ConfirmShippingPayment_StepsStatus(t *testing.T) {
	svc, offer, _, _, _, _, checkout, shipping, pusher := newSwapFixture(models.SwapStatusProtectedActive)

	shipment, updated := payShipping(t, svc, checkout, offer.ID, offer.SenderID, "rate_1")
	assert.Equal(t, models.SwapStatusShippingPartial, updated.SwapStatus)
	assert.Equal(t, offer.OwnerID, shipment.RecipientID)
	require.NotNil(t, shipment.TrackingNumber)
	assert.Equal(t, "TRACK123", *shipment.TrackingNumber)
	assert.Equal(t, []string{"rate_1"}, shipping.purchased)

	// Первая посылка: о ней узнаёт только получатель.
	assert.Equal(t, 1, pusher.sentTo(offer.OwnerID))
	assert.Equal(t, 0, pusher.sentTo(offer.SenderID))

	// Вторая закрывает стадию отправки, сообщаем обоим.
	_, updated = payShipping(t, svc, checkout, offer.ID, offer.OwnerID, "rate_2")
	assert.Equal(t, models.SwapStatusShippingCreated, updated.SwapStatus)
	assert.Equal(t, []string{"rate_1", "rate_2"}, shipping.purchased)
	assert.Equal(t, 1, pusher.sentTo(offer.SenderID))
	assert.Equal(t, 2, pusher.sentTo(offer.OwnerID))
}

func TestSwapService_ConfirmShippingPayment_OrderIndependent(t *testing.T) {
	// Какой бы участник ни оплатил доставку первым, итог одинаковый:
	// первая оплата даёт shipping_partial, вторая — shipping_created.
	svcA, offerA, _, _, _, _, checkoutA, _, _ := newSwapFixture(models.SwapStatusProtectedActive)
	_, first := payShipping(t, svcA, checkoutA, offerA.ID, offerA.SenderID, "rate_1")
	assert.Equal(t, models.SwapStatusShippingPartial, first.SwapStatus)
	_, final := payShipping(t, svcA, checkoutA, offerA.ID, offerA.OwnerID, "rate_2")
	assert.Equal(t, models.SwapStatusShippingCreated, final.SwapStatus)

	svcB, offerB, _, _, _, _, checkoutB, _, _ := newSwapFixture(models.SwapStatusProtectedActive)
	_, first = payShipping(t, svcB, checkoutB, offerB.ID, offerB.OwnerID, "rate_2")
	assert.Equal(t, models.SwapStatusShippingPartial, first.SwapStatus)
	_, final = payShipping(t, svcB, checkoutB, offerB.ID, offerB.SenderID, "rate_1")
	assert.Equal(t, models.SwapStatusShippingCreated, final.SwapStatus)
}

func TestSwapService_ConfirmShippingPayment_Replay(t *testing.T) {
	svc, offer, _, _, _, _, checkout, shipping, pusher := newSwapFixture(models.SwapStatusProtectedActive)
	ctx := context.Background()

	payment, _, err := svc.CreateShippingCheckout(ctx, offer.ID, offer.SenderID, ShippingCheckoutInput{RateID: "rate_1", CostCents: 520})
	require.NoError(t, err)
	checkout.markPaid(*payment.StripeSessionID, "pi_1")

	first, updated, err := svc.ConfirmShippingPayment(ctx, *payment.StripeSessionID)
	require.NoError(t, err)
	assert.Equal(t, models.SwapStatusShippingPartial, updated.SwapStatus)

	// Повтор вебхука возвращает то же отправление: лейбл не покупается
	// второй раз, статус и уведомления не дублируются.
	replayed, updated, err := svc.ConfirmShippingPayment(ctx, *payment.StripeSessionID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, replayed.ID)
	assert.Equal(t, first.TrackingNumber, replayed.TrackingNumber)
	assert.Equal(t, models.SwapStatusShippingPartial, updated.SwapStatus)
	assert.Equal(t, []string{"rate_1"}, shipping.purchased)
	assert.Equal(t, 1, pusher.sentTo(offer.OwnerID))
}

func TestSwapService_CreateShippingCheckout_ShipmentExists(t *testing.T) {
	svc, offer, _, _, _, _, checkout, _, _ := newSwapFixture(models.SwapStatusProtectedActive)
	ctx := context.Background()

	payShipping(t, svc, checkout, offer.ID, offer.SenderID, "rate_1")

	// Посылка уже оформлена: новая оплата доставки отклоняется.
	_, _, err := svc.CreateShippingCheckout(ctx, offer.ID, offer.SenderID, ShippingCheckoutInput{RateID: "rate_3", CostCents: 700})
	assert.True(t, apperror.IsCode(err, apperror.ErrCodeShipmentExists))
	require.Len(t, checkout.created, 1)
}

func TestSwapService_MarkFailed(t *testing.T) {
	svc, offer, _, _, _, _, _, _, pusher := newSwapFixture(models.SwapStatusShippingCreated)
	ctx := context.Background()

	updated, err := svc.MarkFailed(ctx, offer.ID, offer.SenderID)
	require.NoError(t, err)
	assert.Equal(t, models.SwapStatusFailed, updated.SwapStatus)

	// О провале узнаёт второй участник, не инициатор.
	assert.Equal(t, 1, pusher.sentTo(offer.OwnerID))
	assert.Equal(t, 0, pusher.sentTo(offer.SenderID))
}

func TestSwapService_MarkFailed_Outsider(t *testing.T) {
	svc, offer, _, _, _, _, _, _, _ := newSwapFixture(models.SwapStatusShippingCreated)

	_, err := svc.MarkFailed(context.Background(), offer.ID, uuid.New())
	assert.ErrorIs(t, err, repository.ErrNotParticipant)
}

func TestSwapService_ConfirmReceipt_CompletesAfterBoth(t *testing.T) {
	svc, offer, _, _, _, _, _, _, pusher := newSwapFixture(models.SwapStatusShippingCreated)
	ctx := context.Background()

	updated, err := svc.ConfirmReceipt(ctx, offer.ID, offer.SenderID)
	require.NoError(t, err)
	assert.Equal(t, models.SwapStatusShippingCreated, updated.SwapStatus)
	assert.Equal(t, 1, pusher.sentTo(offer.OwnerID))

	updated, err = svc.ConfirmReceipt(ctx, offer.ID, offer.OwnerID)
	require.NoError(t, err)
	assert.Equal(t, models.SwapStatusCompleted, updated.SwapStatus)
	// Завершение сообщается обоим.
	assert.Equal(t, 1, pusher.sentTo(offer.SenderID))
	assert.Equal(t, 2, pusher.sentTo(offer.OwnerID))
}

func TestSwapService_SaveAddress_InactiveSwap(t *testing.T) {
	svc, offer, _, _, _, _, _, _, _ := newSwapFixture(models.SwapStatusNone)

	_, err := svc.SaveAddress(context.Background(), offer.ID, offer.SenderID, AddressInput{
		FullName:       "Тест",
		AddressLine1:   "ул. Ленина, 1",
		City:           "Москва",
		State:          "MOW",
		Zip:            "101000",
		Country:        "RU",
		ParcelWeightKg: 1,
	})
	assert.True(t, apperror.IsCode(err, apperror.ErrCodeInvalidTransition))
}

package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/giftcycle-backend/internal/models"
	"github.com/ignatzorin/giftcycle-backend/internal/pkg/apperror"
	"github.com/ignatzorin/giftcycle-backend/internal/shipping/shippo"
)

func newSaleFixture(status models.SaleStatus) (*SaleService, *models.Offer, *models.Gift, *stubPaymentRepo, *stubShipmentRepo, *stubAddressRepo, *fakeCheckout, *fakeShipping, *fakePusher) {
	seller := uuid.New()
	buyer := uuid.New()

	gift := &models.Gift{
		ID:             uuid.New(),
		OwnerID:        seller,
		Title:          "Плюшевый медведь",
		Description:    "Большой, почти новый",
		PriceCents:     2000,
		ParcelWeightKg: 1.2,
		Status:         models.GiftStatusLocked,
	}
	offer := &models.Offer{
		ID:         uuid.New(),
		GiftID:     gift.ID,
		SenderID:   buyer,
		OwnerID:    seller,
		Type:       models.OfferTypeBuy,
		Status:     models.OfferStatusAccepted,
		SaleStatus: status,
	}

	offers := newStubOfferRepo(offer)
	gifts := newStubGiftRepo(gift)
	payments := &stubPaymentRepo{offers: offers}
	shipments := &stubShipmentRepo{offers: offers}
	offers.shipments = shipments
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

	svc := NewSaleService(offers, gifts, payments, shipments, addresses, checkout, shipping, settings, pusher)
	return svc, offer, gift, payments, shipments, addresses, checkout, shipping, pusher
}

func lockRate(offer *models.Offer, rateID string, costCents int64) {
	carrier := "USPS"
	service := "Priority"
	offer.ShippingRateID = &rateID
	offer.ShippingCostCents = &costCents
	offer.ShippingCarrier = &carrier
	offer.ShippingService = &service
}

func TestSaleService_FetchRates(t *testing.T) {
	svc, offer, _, _, _, addresses, _, shipping, _ := newSaleFixture(models.SaleStatusAwaitingShipping)
	ctx := context.Background()

	seedAddress(addresses, offer.ID, offer.OwnerID, 0)
	seedAddress(addresses, offer.ID, offer.SenderID, 0)
	shipping.rates = []shippo.Rate{{ObjectID: "rate_1", Amount: "5.20"}}

	rates, err := svc.FetchRates(ctx, offer.ID, offer.SenderID)
	require.NoError(t, err)
	require.Len(t, rates, 1)
	assert.Equal(t, "rate_1", rates[0].ObjectID)
}

func TestSaleService_FetchRates_NoSellerAddress(t *testing.T) {
	svc, offer, _, _, _, _, _, _, _ := newSaleFixture(models.SaleStatusAwaitingShipping)

	_, err := svc.FetchRates(context.Background(), offer.ID, offer.SenderID)
	assert.True(t, apperror.IsCode(err, apperror.ErrCodeMissingAddress))
}

func TestSaleService_FetchRates_NoGiftWeight(t *testing.T) {
	svc, offer, gift, _, _, addresses, _, _, _ := newSaleFixture(models.SaleStatusAwaitingShipping)
	ctx := context.Background()

	seedAddress(addresses, offer.ID, offer.OwnerID, 0)
	seedAddress(addresses, offer.ID, offer.SenderID, 0)
	gift.ParcelWeightKg = 0

	_, err := svc.FetchRates(ctx, offer.ID, offer.SenderID)
	assert.True(t, apperror.IsCode(err, apperror.ErrCodeMissingWeight))
}

func TestSaleService_SelectRate(t *testing.T) {
	svc, offer, _, _, _, _, _, _, pusher := newSaleFixture(models.SaleStatusAwaitingShipping)
	ctx := context.Background()

	updated, err := svc.SelectRate(ctx, offer.ID, offer.SenderID, SelectRateInput{
		RateID:    "rate_1",
		CostCents: 520,
		Carrier:   "USPS",
		Service:   "Priority",
	})
	require.NoError(t, err)
	assert.Equal(t, models.SaleStatusAwaitingPayment, updated.SaleStatus)
	require.NotNil(t, updated.ShippingCostCents)
	assert.Equal(t, int64(520), *updated.ShippingCostCents)

	assert.Equal(t, 1, pusher.sentTo(offer.OwnerID))
}

func TestSaleService_SelectRate_SellerForbidden(t *testing.T) {
	svc, offer, _, _, _, _, _, _, _ := newSaleFixture(models.SaleStatusAwaitingShipping)

	_, err := svc.SelectRate(context.Background(), offer.ID, offer.OwnerID, SelectRateInput{RateID: "rate_1"})
	assert.True(t, apperror.IsForbidden(err))
}

func TestSaleService_CreateCheckout_Total(t *testing.T) {
	svc, offer, _, _, _, _, checkout, _, _ := newSaleFixture(models.SaleStatusAwaitingPayment)
	ctx := context.Background()

	lockRate(offer, "rate_1", 520)

	payment, url, err := svc.CreateCheckout(ctx, offer.ID, offer.SenderID)
	require.NoError(t, err)
	assert.NotEmpty(t, url)

	// Цена подарка + доставка + комиссия платформы.
	assert.Equal(t, int64(2000+520+150), payment.AmountCents)

	// Чек состоит из трёх отдельных позиций.
	require.Len(t, checkout.created, 1)
	items := checkout.created[0].LineItems()
	require.Len(t, items, 3)
	assert.Contains(t, items[0].Name, "Плюшевый медведь")
	assert.Equal(t, int64(2000), items[0].AmountCents)
	assert.Equal(t, int64(520), items[1].AmountCents)
	assert.Equal(t, int64(150), items[2].AmountCents)
	assert.Equal(t, int64(2670), checkout.created[0].Total())
}

func TestSaleService_CreateCheckout_MissingRate(t *testing.T) {
	svc, offer, _, _, _, _, _, _, _ := newSaleFixture(models.SaleStatusAwaitingPayment)

	_, _, err := svc.CreateCheckout(context.Background(), offer.ID, offer.SenderID)
	assert.True(t, apperror.IsCode(err, apperror.ErrCodeMissingRate))
}

func TestSaleService_ConfirmPayment_Idempotent(t *testing.T) {
	svc, offer, _, _, _, _, checkout, _, pusher := newSaleFixture(models.SaleStatusAwaitingPayment)
	ctx := context.Background()

	lockRate(offer, "rate_1", 520)

	payment, _, err := svc.CreateCheckout(ctx, offer.ID, offer.SenderID)
	require.NoError(t, err)

	checkout.markPaid(*payment.StripeSessionID, "pi_sale")

	updated, err := svc.ConfirmPayment(ctx, *payment.StripeSessionID)
	require.NoError(t, err)
	assert.Equal(t, models.SaleStatusBuyerPaid, updated.SaleStatus)
	assert.Equal(t, 1, pusher.sentTo(offer.OwnerID))

	// Повтор вебхука не дублирует уведомление продавцу.
	updated, err = svc.ConfirmPayment(ctx, *payment.StripeSessionID)
	require.NoError(t, err)
	assert.Equal(t, models.SaleStatusBuyerPaid, updated.SaleStatus)
	assert.Equal(t, 1, pusher.sentTo(offer.OwnerID))
}

func TestSaleService_CreateLabel(t *testing.T) {
	svc, offer, _, _, _, _, _, shipping, pusher := newSaleFixture(models.SaleStatusBuyerPaid)
	ctx := context.Background()

	lockRate(offer, "rate_1", 520)

	shipment, updated, err := svc.CreateLabel(ctx, offer.ID, offer.OwnerID)
	require.NoError(t, err)
	assert.Equal(t, models.SaleStatusShipped, updated.SaleStatus)
	assert.Equal(t, models.ShipmentStatusShipped, shipment.Status)
	assert.Equal(t, offer.SenderID, shipment.RecipientID)
	require.NotNil(t, shipment.CostCents)
	assert.Equal(t, int64(520), *shipment.CostCents)
	assert.Equal(t, []string{"rate_1"}, shipping.purchased)

	assert.Equal(t, 1, pusher.sentTo(offer.SenderID))
}

func TestSaleService_CreateLabel_BuyerForbidden(t *testing.T) {
	svc, offer, _, _, _, _, _, _, _ := newSaleFixture(models.SaleStatusBuyerPaid)
	lockRate(offer, "rate_1", 520)

	_, _, err := svc.CreateLabel(context.Background(), offer.ID, offer.SenderID)
	assert.True(t, apperror.IsForbidden(err))
}

func TestSaleService_CreateLabel_Idempotent(t *testing.T) {
	svc, offer, _, _, shipments, _, _, shipping, _ := newSaleFixture(models.SaleStatusBuyerPaid)
	ctx := context.Background()

	lockRate(offer, "rate_1", 520)

	first, updated, err := svc.CreateLabel(ctx, offer.ID, offer.OwnerID)
	require.NoError(t, err)
	assert.Equal(t, models.SaleStatusShipped, updated.SaleStatus)

	// Повторный вызов возвращает тот же лейбл и трек без новой покупки
	// и без дубля в леджере.
	second, updated, err := svc.CreateLabel(ctx, offer.ID, offer.OwnerID)
	require.NoError(t, err)
	assert.Equal(t, models.SaleStatusShipped, updated.SaleStatus)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.TrackingNumber, second.TrackingNumber)
	assert.Equal(t, first.LabelURL, second.LabelURL)
	assert.Equal(t, []string{"rate_1"}, shipping.purchased)
	assert.Len(t, shipments.shipments, 1)
}

func TestSaleService_MarkShipped_ManualTracking(t *testing.T) {
	svc, offer, _, _, shipments, _, _, shipping, pusher := newSaleFixture(models.SaleStatusBuyerPaid)
	ctx := context.Background()

	tracking := "RU123456789"
	carrier := "Почта России"
	shipment, updated, err := svc.MarkShipped(ctx, offer.ID, offer.OwnerID, &tracking, &carrier)
	require.NoError(t, err)
	assert.Equal(t, models.SaleStatusShipped, updated.SaleStatus)
	assert.Equal(t, models.ShipmentStatusShipped, shipment.Status)
	require.NotNil(t, shipment.TrackingNumber)
	assert.Equal(t, tracking, *shipment.TrackingNumber)

	// Ручной трек: лейбл не покупается.
	assert.Empty(t, shipping.purchased)
	assert.Len(t, shipments.shipments, 1)
	assert.Equal(t, 1, pusher.sentTo(offer.SenderID))
}

func TestSaleService_MarkShipped_FallsBackToLabel(t *testing.T) {
	svc, offer, _, _, _, _, _, shipping, _ := newSaleFixture(models.SaleStatusBuyerPaid)
	ctx := context.Background()

	lockRate(offer, "rate_1", 520)

	// Трек не передан, лейбла нет — покупается по зафиксированной ставке.
	shipment, updated, err := svc.MarkShipped(ctx, offer.ID, offer.OwnerID, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, models.SaleStatusShipped, updated.SaleStatus)
	require.NotNil(t, shipment.TrackingNumber)
	assert.Equal(t, "TRACK123", *shipment.TrackingNumber)
	assert.Equal(t, []string{"rate_1"}, shipping.purchased)
}

func TestSaleService_MarkShipped_NoTrackingNoRate(t *testing.T) {
	svc, offer, _, _, _, _, _, _, _ := newSaleFixture(models.SaleStatusBuyerPaid)

	_, _, err := svc.MarkShipped(context.Background(), offer.ID, offer.OwnerID, nil, nil)
	assert.True(t, apperror.IsCode(err, apperror.ErrCodeMissingRate))
}

func TestSaleService_ConfirmDelivery(t *testing.T) {
	svc, offer, _, _, shipments, _, _, _, pusher := newSaleFixture(models.SaleStatusBuyerPaid)
	ctx := context.Background()

	lockRate(offer, "rate_1", 520)

	shipment, _, err := svc.CreateLabel(ctx, offer.ID, offer.OwnerID)
	require.NoError(t, err)
	assert.Equal(t, models.ShipmentStatusShipped, shipment.Status)

	updated, err := svc.ConfirmDelivery(ctx, offer.ID, offer.SenderID)
	require.NoError(t, err)
	assert.Equal(t, models.SaleStatusCompleted, updated.SaleStatus)

	// Отправление помечается доставленным вместе с завершением сделки.
	recorded, err := shipments.GetByOfferAndSender(ctx, offer.ID, offer.OwnerID)
	require.NoError(t, err)
	assert.Equal(t, models.ShipmentStatusDelivered, recorded.Status)

	// Продавец узнаёт о подтверждении; уведомления о лейбле уже учтены.
	assert.Equal(t, 2, pusher.sentTo(offer.OwnerID))
}

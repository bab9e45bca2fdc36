package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/ignatzorin/giftcycle-backend/internal/models"
	"github.com/ignatzorin/giftcycle-backend/internal/payments/stripe"
	"github.com/ignatzorin/giftcycle-backend/internal/pkg/apperror"
	"github.com/ignatzorin/giftcycle-backend/internal/repository"
	"github.com/ignatzorin/giftcycle-backend/internal/shipping/shippo"
	"github.com/ignatzorin/giftcycle-backend/internal/validation"
)

// SaleOfferRepository описывает операции над оффером, нужные продаже.
type SaleOfferRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Offer, error)
	SetSaleRate(ctx context.Context, offerID uuid.UUID, rateID string, costCents int64, carrier, service string) (*models.Offer, error)
	ConfirmSaleDelivery(ctx context.Context, offerID, buyerID uuid.UUID) (*models.Offer, error)
}

// SalePaymentRepository описывает леджер платежей продажи.
type SalePaymentRepository interface {
	CreatePending(ctx context.Context, p *models.Payment) error
	GetBySessionID(ctx context.Context, sessionID string) (*models.Payment, error)
	ConfirmSalePayment(ctx context.Context, paymentID uuid.UUID, paymentIntentID string) (*models.Offer, error)
}

// SaleShipmentRepository описывает леджер отправлений продажи.
type SaleShipmentRepository interface {
	GetByOfferAndSender(ctx context.Context, offerID, senderID uuid.UUID) (*models.Shipment, error)
	CreateSaleShipment(ctx context.Context, shipment *models.Shipment) (*models.Offer, error)
	MarkSaleShipped(ctx context.Context, offerID, sellerID uuid.UUID, trackingNumber, carrier *string) (*models.Shipment, *models.Offer, error)
}

// SaleService ведёт продажу подарка: выбор доставки, оплату покупателя,
// отправку продавцом и подтверждение получения. Итоговая цена складывается
// из цены подарка, зафиксированной стоимости доставки и комиссии платформы.
type SaleService struct {
	offers    SaleOfferRepository
	gifts     GiftRepositoryInterface
	payments  SalePaymentRepository
	shipments SaleShipmentRepository
	addresses SwapAddressRepository
	checkout  CheckoutProvider
	shipping  ShippingProvider
	settings  PaymentSettings
	pusher    NotificationPusher
}

// NewSaleService создаёт сервис продаж.
func NewSaleService(
	offers SaleOfferRepository,
	gifts GiftRepositoryInterface,
	payments SalePaymentRepository,
	shipments SaleShipmentRepository,
	addresses SwapAddressRepository,
	checkout CheckoutProvider,
	shipping ShippingProvider,
	settings PaymentSettings,
	pusher NotificationPusher,
) *SaleService {
	return &SaleService{
		offers:    offers,
		gifts:     gifts,
		payments:  payments,
		shipments: shipments,
		addresses: addresses,
		checkout:  checkout,
		shipping:  shipping,
		settings:  settings,
		pusher:    pusher,
	}
}

// FetchRates возвращает ставки доставки от продавца к покупателю.
// Вес посылки берётся из карточки подарка.
func (s *SaleService) FetchRates(ctx context.Context, offerID, userID uuid.UUID) ([]shippo.Rate, error) {
	offer, err := s.offers.GetByID(ctx, offerID)
	if err != nil {
		return nil, err
	}
	if !offer.Participant(userID) {
		return nil, apperror.ErrForbidden
	}
	if offer.Type != models.OfferTypeBuy {
		return nil, apperror.New(apperror.ErrCodeInvalidTransition, "сделка не является продажей")
	}
	switch offer.SaleStatus {
	case models.SaleStatusAwaitingShipping, models.SaleStatusAwaitingPayment:
	default:
		return nil, apperror.New(apperror.ErrCodeInvalidTransition, "продажа не в стадии выбора доставки")
	}

	sellerAddr, err := s.addresses.GetByOfferAndUser(ctx, offerID, offer.OwnerID)
	if err != nil {
		if errors.Is(err, repository.ErrAddressNotFound) {
			return nil, apperror.New(apperror.ErrCodeMissingAddress, "продавец ещё не указал адрес")
		}
		return nil, err
	}
	buyerAddr, err := s.addresses.GetByOfferAndUser(ctx, offerID, offer.SenderID)
	if err != nil {
		if errors.Is(err, repository.ErrAddressNotFound) {
			return nil, apperror.New(apperror.ErrCodeMissingAddress, "покупатель ещё не указал адрес")
		}
		return nil, err
	}
	if !sellerAddr.Complete() || !buyerAddr.Complete() {
		return nil, apperror.New(apperror.ErrCodeMissingAddress, "адрес заполнен не полностью")
	}

	gift, err := s.gifts.GetByID(ctx, offer.GiftID)
	if err != nil {
		return nil, err
	}
	if gift.ParcelWeightKg <= 0 {
		return nil, apperror.New(apperror.ErrCodeMissingWeight, "у подарка не указан вес посылки")
	}

	shipment, err := s.shipping.CreateShipment(ctx, toShippoAddress(sellerAddr), toShippoAddress(buyerAddr), shippo.DefaultParcel(gift.ParcelWeightKg))
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeExternal, "сервис доставки недоступен")
	}

	return shipment.Rates, nil
}

// SelectRateInput содержит выбранную покупателем ставку доставки.
type SelectRateInput struct {
	RateID    string
	CostCents int64
	Carrier   string
	Service   string
}

// SelectRate фиксирует выбранную ставку доставки. Переселект допустим,
// пока покупатель не оплатил.
func (s *SaleService) SelectRate(ctx context.Context, offerID, userID uuid.UUID, in SelectRateInput) (*models.Offer, error) {
	offer, err := s.offers.GetByID(ctx, offerID)
	if err != nil {
		return nil, err
	}
	if offer.SenderID != userID {
		return nil, apperror.ErrForbidden
	}
	if err := validation.ValidateNonEmpty("ставка доставки", in.RateID); err != nil {
		return nil, apperror.New(apperror.ErrCodeValidation, err.Error())
	}
	if in.CostCents < 0 {
		return nil, apperror.New(apperror.ErrCodeValidation, "стоимость доставки не может быть отрицательной")
	}

	offer, err = s.offers.SetSaleRate(ctx, offerID, in.RateID, in.CostCents, in.Carrier, in.Service)
	if err != nil {
		return nil, err
	}

	notify(s.pusher, offer.OwnerID, models.NotificationTypeSale, &offer.ID,
		"Покупатель выбрал способ доставки")

	return offer, nil
}

// CreateCheckout создаёт Stripe-сессию на полную стоимость заказа:
// цена подарка + доставка + комиссия платформы.
func (s *SaleService) CreateCheckout(ctx context.Context, offerID, userID uuid.UUID) (*models.Payment, string, error) {
	offer, err := s.offers.GetByID(ctx, offerID)
	if err != nil {
		return nil, "", err
	}
	if offer.SenderID != userID {
		return nil, "", apperror.ErrForbidden
	}
	if offer.SaleStatus != models.SaleStatusAwaitingPayment {
		return nil, "", apperror.New(apperror.ErrCodeInvalidTransition, "продажа не ожидает оплаты")
	}
	if offer.ShippingRateID == nil || offer.ShippingCostCents == nil {
		return nil, "", apperror.New(apperror.ErrCodeMissingRate, "сначала выберите способ доставки")
	}

	gift, err := s.gifts.GetByID(ctx, offer.GiftID)
	if err != nil {
		return nil, "", err
	}

	total := gift.PriceCents + *offer.ShippingCostCents + s.settings.PlatformFeeCents

	// Три отдельные позиции чека: подарок, доставка, комиссия.
	session, err := s.checkout.CreateCheckoutSession(ctx, stripe.CheckoutParams{
		Currency: s.settings.Currency,
		Items: []stripe.LineItem{
			{Name: fmt.Sprintf("Покупка «%s»", gift.Title), AmountCents: gift.PriceCents},
			{Name: "Доставка", AmountCents: *offer.ShippingCostCents},
			{Name: "Комиссия платформы", AmountCents: s.settings.PlatformFeeCents},
		},
		SuccessURL: fmt.Sprintf("%s/offers/%s?sale=success&session_id={CHECKOUT_SESSION_ID}", s.settings.FrontendURL, offerID),
		CancelURL:   fmt.Sprintf("%s/offers/%s?sale=cancel", s.settings.FrontendURL, offerID),
		Metadata: map[string]string{
			"offer_id":     offerID.String(),
			"user_id":      userID.String(),
			"payment_type": string(models.PaymentTypeSalePayment),
		},
	})
	if err != nil {
		return nil, "", apperror.Wrap(err, apperror.ErrCodeExternal, "платёжный сервис недоступен")
	}

	payment := &models.Payment{
		OfferID:         offerID,
		UserID:          userID,
		Type:            models.PaymentTypeSalePayment,
		AmountCents:     total,
		Currency:        s.settings.Currency,
		StripeSessionID: &session.ID,
	}
	if err := s.payments.CreatePending(ctx, payment); err != nil {
		return nil, "", err
	}

	return payment, session.URL, nil
}

// ConfirmPayment подтверждает оплату покупателя по Stripe-сессии.
// Повтор вебхука идемпотентен.
func (s *SaleService) ConfirmPayment(ctx context.Context, sessionID string) (*models.Offer, error) {
	payment, err := s.payments.GetBySessionID(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	session, err := s.checkout.GetCheckoutSession(ctx, sessionID)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeExternal, "платёжный сервис недоступен")
	}
	if !session.Paid() {
		return nil, apperror.New(apperror.ErrCodeConflict, "платёжная сессия не оплачена")
	}

	wasPending := payment.Status == models.PaymentStatusPending

	offer, err := s.payments.ConfirmSalePayment(ctx, payment.ID, session.PaymentIntent)
	if err != nil {
		return nil, err
	}

	if wasPending && offer.SaleStatus == models.SaleStatusBuyerPaid {
		notify(s.pusher, offer.OwnerID, models.NotificationTypeSale, &offer.ID,
			"Покупатель оплатил заказ: оформите отправку")
	}

	return offer, nil
}

// CreateLabel покупает лейбл по зафиксированной ставке и переводит
// продажу в shipped. Доступно только продавцу после оплаты; повторный
// вызов возвращает уже купленный лейбл без обращения к провайдеру.
func (s *SaleService) CreateLabel(ctx context.Context, offerID, userID uuid.UUID) (*models.Shipment, *models.Offer, error) {
	offer, err := s.offers.GetByID(ctx, offerID)
	if err != nil {
		return nil, nil, err
	}
	if offer.OwnerID != userID {
		return nil, nil, apperror.ErrForbidden
	}
	switch offer.SaleStatus {
	case models.SaleStatusBuyerPaid, models.SaleStatusShipped:
	default:
		return nil, nil, apperror.New(apperror.ErrCodeInvalidTransition, "продажа не в стадии отправки")
	}
	if offer.ShippingRateID == nil {
		return nil, nil, apperror.New(apperror.ErrCodeMissingRate, "ставка доставки не зафиксирована")
	}

	if existing, err := s.shipments.GetByOfferAndSender(ctx, offerID, userID); err == nil {
		return existing, offer, nil
	} else if !errors.Is(err, repository.ErrShipmentNotFound) {
		return nil, nil, err
	}

	label, err := s.shipping.PurchaseLabel(ctx, *offer.ShippingRateID)
	if err != nil {
		return nil, nil, apperror.Wrap(err, apperror.ErrCodeExternal, "не удалось купить лейбл доставки")
	}

	shipment := &models.Shipment{
		OfferID:        offerID,
		SenderID:       offer.OwnerID,
		RecipientID:    offer.SenderID,
		RateID:         *offer.ShippingRateID,
		Carrier:        offer.ShippingCarrier,
		Service:        offer.ShippingService,
		CostCents:      offer.ShippingCostCents,
		TrackingNumber: &label.TrackingNumber,
		TrackingURL:    &label.TrackingURLProvider,
		LabelURL:       &label.LabelURL,
	}

	offer, err = s.shipments.CreateSaleShipment(ctx, shipment)
	if err != nil {
		return nil, nil, err
	}

	notify(s.pusher, offer.OwnerID, models.NotificationTypeShipping, &offer.ID,
		"Лейбл доставки готов: можно отправлять посылку")
	notify(s.pusher, offer.SenderID, models.NotificationTypeShipping, &offer.ID,
		fmt.Sprintf("Продавец отправил заказ, трек-номер %s", label.TrackingNumber))

	return shipment, offer, nil
}

// MarkShipped отмечает заказ отправленным. Продавец либо передаёт
// трек-номер вручную, либо, если ставка зафиксирована и лейбла ещё нет,
// лейбл покупается тут же.
func (s *SaleService) MarkShipped(ctx context.Context, offerID, userID uuid.UUID, trackingNumber, carrier *string) (*models.Shipment, *models.Offer, error) {
	offer, err := s.offers.GetByID(ctx, offerID)
	if err != nil {
		return nil, nil, err
	}
	if offer.OwnerID != userID {
		return nil, nil, apperror.ErrForbidden
	}
	if offer.SaleStatus != models.SaleStatusBuyerPaid {
		return nil, nil, apperror.New(apperror.ErrCodeInvalidTransition, "продажа не в стадии отправки")
	}

	if trackingNumber == nil {
		if _, err := s.shipments.GetByOfferAndSender(ctx, offerID, userID); err != nil {
			if !errors.Is(err, repository.ErrShipmentNotFound) {
				return nil, nil, err
			}
			// Лейбла нет и трек не передан: покупаем лейбл по ставке.
			if offer.ShippingRateID == nil {
				return nil, nil, apperror.New(apperror.ErrCodeMissingRate, "укажите трек-номер или выберите ставку доставки")
			}
			return s.CreateLabel(ctx, offerID, userID)
		}
	}

	shipment, offer, err := s.shipments.MarkSaleShipped(ctx, offerID, userID, trackingNumber, carrier)
	if err != nil {
		return nil, nil, err
	}

	message := "Продавец отправил заказ"
	if shipment.TrackingNumber != nil {
		message = fmt.Sprintf("Продавец отправил заказ, трек-номер %s", *shipment.TrackingNumber)
	}
	notify(s.pusher, offer.SenderID, models.NotificationTypeShipping, &offer.ID, message)

	return shipment, offer, nil
}

// ConfirmDelivery завершает продажу после подтверждения покупателя.
func (s *SaleService) ConfirmDelivery(ctx context.Context, offerID, userID uuid.UUID) (*models.Offer, error) {
	offer, err := s.offers.ConfirmSaleDelivery(ctx, offerID, userID)
	if err != nil {
		return nil, err
	}

	notify(s.pusher, offer.OwnerID, models.NotificationTypeSale, &offer.ID,
		"Покупатель подтвердил получение: продажа завершена")

	return offer, nil
}

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

// SwapOfferRepository описывает операции над оффером, нужные обмену.
type SwapOfferRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Offer, error)
	StartSwap(ctx context.Context, offerID uuid.UUID) (*models.Offer, error)
	ConfirmSwapReceipt(ctx context.Context, offerID, userID uuid.UUID) (*models.Offer, error)
	MarkSwapFailed(ctx context.Context, offerID, userID uuid.UUID) (*models.Offer, error)
}

// SwapPaymentRepository описывает леджер платежей обмена.
type SwapPaymentRepository interface {
	CreatePending(ctx context.Context, p *models.Payment) error
	GetBySessionID(ctx context.Context, sessionID string) (*models.Payment, error)
	ListByOffer(ctx context.Context, offerID uuid.UUID) ([]models.Payment, error)
	ConfirmProtectionFee(ctx context.Context, paymentID uuid.UUID, paymentIntentID string) (*models.Offer, error)
	ConfirmSwapShipping(ctx context.Context, paymentID uuid.UUID, paymentIntentID string) (*models.Payment, error)
}

// SwapShipmentRepository описывает леджер отправлений обмена.
type SwapShipmentRepository interface {
	GetByOfferAndSender(ctx context.Context, offerID, senderID uuid.UUID) (*models.Shipment, error)
	ListByOffer(ctx context.Context, offerID uuid.UUID) ([]models.Shipment, error)
	CreateSwapShipment(ctx context.Context, shipment *models.Shipment) (*models.Offer, error)
}

// SwapAddressRepository описывает хранилище адресов участников.
type SwapAddressRepository interface {
	Upsert(ctx context.Context, a *models.SwapAddress) error
	GetByOfferAndUser(ctx context.Context, offerID, userID uuid.UUID) (*models.SwapAddress, error)
	ListByOffer(ctx context.Context, offerID uuid.UUID) ([]models.SwapAddress, error)
}

// SwapService ведёт защищённый обмен: защитные взносы, адреса, доставку
// и подтверждение получения. Внешние провайдеры вызываются до записи в БД,
// поэтому упавший Stripe или Shippo не оставляет полузаписанной сделки.
type SwapService struct {
	offers    SwapOfferRepository
	payments  SwapPaymentRepository
	shipments SwapShipmentRepository
	addresses SwapAddressRepository
	checkout  CheckoutProvider
	shipping  ShippingProvider
	settings  PaymentSettings
	pusher    NotificationPusher
}

// NewSwapService создаёт сервис обмена.
func NewSwapService(
	offers SwapOfferRepository,
	payments SwapPaymentRepository,
	shipments SwapShipmentRepository,
	addresses SwapAddressRepository,
	checkout CheckoutProvider,
	shipping ShippingProvider,
	settings PaymentSettings,
	pusher NotificationPusher,
) *SwapService {
	return &SwapService{
		offers:    offers,
		payments:  payments,
		shipments: shipments,
		addresses: addresses,
		checkout:  checkout,
		shipping:  shipping,
		settings:  settings,
		pusher:    pusher,
	}
}

// StartSwap переводит принятый обмен в ожидание оплаты защитных взносов.
func (s *SwapService) StartSwap(ctx context.Context, offerID, userID uuid.UUID) (*models.Offer, error) {
	offer, err := s.offers.GetByID(ctx, offerID)
	if err != nil {
		return nil, err
	}
	if !offer.Participant(userID) {
		return nil, apperror.ErrForbidden
	}

	offer, err = s.offers.StartSwap(ctx, offerID)
	if err != nil {
		return nil, err
	}

	notify(s.pusher, offer.Counterpart(userID), models.NotificationTypeSwap, &offer.ID,
		"Обмен запущен: оплатите защитный взнос")

	return offer, nil
}

// AddressInput содержит адрес участника обмена.
type AddressInput struct {
	FullName       string
	AddressLine1   string
	AddressLine2   *string
	City           string
	State          string
	Zip            string
	Country        string
	Phone          *string
	ParcelWeightKg float64
}

// SaveAddress сохраняет адрес и вес посылки участника. Повторная отправка
// формы перезаписывает предыдущий адрес.
func (s *SwapService) SaveAddress(ctx context.Context, offerID, userID uuid.UUID, in AddressInput) (*models.SwapAddress, error) {
	offer, err := s.offers.GetByID(ctx, offerID)
	if err != nil {
		return nil, err
	}
	if !offer.Participant(userID) {
		return nil, apperror.ErrForbidden
	}
	if offer.Type != models.OfferTypeExchange || offer.SwapStatus == models.SwapStatusNone || offer.SwapStatus.Terminal() {
		return nil, apperror.New(apperror.ErrCodeInvalidTransition, "сделка не в активной стадии обмена")
	}

	for field, value := range map[string]string{
		"имя получателя": in.FullName,
		"адрес":          in.AddressLine1,
		"город":          in.City,
		"регион":         in.State,
		"индекс":         in.Zip,
		"страна":         in.Country,
	} {
		if err := validation.ValidateNonEmpty(field, value); err != nil {
			return nil, apperror.New(apperror.ErrCodeValidation, err.Error())
		}
	}
	if err := validation.ValidateParcelWeight(in.ParcelWeightKg); err != nil {
		return nil, apperror.New(apperror.ErrCodeValidation, err.Error())
	}

	address := &models.SwapAddress{
		OfferID:        offerID,
		UserID:         userID,
		FullName:       in.FullName,
		AddressLine1:   in.AddressLine1,
		AddressLine2:   in.AddressLine2,
		City:           in.City,
		State:          in.State,
		Zip:            in.Zip,
		Country:        in.Country,
		Phone:          in.Phone,
		ParcelWeightKg: in.ParcelWeightKg,
	}
	if err := s.addresses.Upsert(ctx, address); err != nil {
		return nil, err
	}

	return address, nil
}

// CreateFeeCheckout создаёт Stripe-сессию на защитный взнос участника и
// pending-ряд леджера под неё.
func (s *SwapService) CreateFeeCheckout(ctx context.Context, offerID, userID uuid.UUID) (*models.Payment, string, error) {
	offer, err := s.offers.GetByID(ctx, offerID)
	if err != nil {
		return nil, "", err
	}
	if !offer.Participant(userID) {
		return nil, "", apperror.ErrForbidden
	}
	if offer.SwapStatus != models.SwapStatusAwaitingPayment {
		return nil, "", apperror.New(apperror.ErrCodeInvalidTransition, "обмен не ожидает оплаты защитного взноса")
	}

	payments, err := s.payments.ListByOffer(ctx, offerID)
	if err != nil {
		return nil, "", err
	}
	for i := range payments {
		p := &payments[i]
		if p.UserID == userID && p.Type == models.PaymentTypeProtectionFee && p.Status == models.PaymentStatusSucceeded {
			return nil, "", apperror.New(apperror.ErrCodeConflict, "защитный взнос уже оплачен")
		}
	}

	session, err := s.checkout.CreateCheckoutSession(ctx, stripe.CheckoutParams{
		AmountCents: s.settings.ProtectionFeeCents,
		Currency:    s.settings.Currency,
		ProductName: "Защитный взнос GiftCycle",
		SuccessURL:  fmt.Sprintf("%s/offers/%s?fee=success&session_id={CHECKOUT_SESSION_ID}", s.settings.FrontendURL, offerID),
		CancelURL:   fmt.Sprintf("%s/offers/%s?fee=cancel", s.settings.FrontendURL, offerID),
		Metadata: map[string]string{
			"offer_id":     offerID.String(),
			"user_id":      userID.String(),
			"payment_type": string(models.PaymentTypeProtectionFee),
		},
	})
	if err != nil {
		return nil, "", apperror.Wrap(err, apperror.ErrCodeExternal, "платёжный сервис недоступен")
	}

	payment := &models.Payment{
		OfferID:         offerID,
		UserID:          userID,
		Type:            models.PaymentTypeProtectionFee,
		AmountCents:     s.settings.ProtectionFeeCents,
		Currency:        s.settings.Currency,
		StripeSessionID: &session.ID,
	}
	if err := s.payments.CreatePending(ctx, payment); err != nil {
		return nil, "", err
	}

	return payment, session.URL, nil
}

// ConfirmFeePayment подтверждает оплату защитного взноса по Stripe-сессии.
// Вызывается из success-редиректа и вебхука; повтор идемпотентен.
func (s *SwapService) ConfirmFeePayment(ctx context.Context, sessionID string) (*models.Offer, error) {
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

	offer, err := s.payments.ConfirmProtectionFee(ctx, payment.ID, session.PaymentIntent)
	if err != nil {
		return nil, err
	}

	// Второй взнос активирует защиту — сообщаем обоим участникам.
	if wasPending && offer.SwapStatus == models.SwapStatusProtectedActive {
		notify(s.pusher, offer.SenderID, models.NotificationTypeSwap, &offer.ID,
			"Оба взноса оплачены: обмен защищён, можно отправлять посылки")
		notify(s.pusher, offer.OwnerID, models.NotificationTypeSwap, &offer.ID,
			"Оба взноса оплачены: обмен защищён, можно отправлять посылки")
	}

	return offer, nil
}

// FetchRates возвращает ставки доставки для посылки участника. Нужны
// адреса обоих участников и вес посылки отправителя.
func (s *SwapService) FetchRates(ctx context.Context, offerID, userID uuid.UUID) ([]shippo.Rate, error) {
	offer, err := s.offers.GetByID(ctx, offerID)
	if err != nil {
		return nil, err
	}
	if !offer.Participant(userID) {
		return nil, apperror.ErrForbidden
	}
	switch offer.SwapStatus {
	case models.SwapStatusProtectedActive, models.SwapStatusShippingPartial:
	default:
		return nil, apperror.New(apperror.ErrCodeInvalidTransition, "обмен не в стадии отправки")
	}

	from, to, weight, err := s.resolveRoute(ctx, offer, userID)
	if err != nil {
		return nil, err
	}

	shipment, err := s.shipping.CreateShipment(ctx, from, to, shippo.DefaultParcel(weight))
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeExternal, "сервис доставки недоступен")
	}

	return shipment.Rates, nil
}

// ShippingCheckoutInput содержит выбранную участником ставку доставки.
type ShippingCheckoutInput struct {
	RateID    string
	CostCents int64
}

// CreateShippingCheckout создаёт Stripe-сессию на доставку участника и
// pending-ряд леджера под неё. Лейбл покупается только после подтверждения
// оплаты; ставка едет в метаданных сессии. Один участник — одна посылка:
// существующее отправление отклоняет новую оплату.
func (s *SwapService) CreateShippingCheckout(ctx context.Context, offerID, userID uuid.UUID, in ShippingCheckoutInput) (*models.Payment, string, error) {
	offer, err := s.offers.GetByID(ctx, offerID)
	if err != nil {
		return nil, "", err
	}
	if !offer.Participant(userID) {
		return nil, "", apperror.ErrForbidden
	}
	switch offer.SwapStatus {
	case models.SwapStatusProtectedActive, models.SwapStatusShippingPartial:
	default:
		return nil, "", apperror.New(apperror.ErrCodeInvalidTransition, "обмен не в стадии отправки")
	}
	if err := validation.ValidateNonEmpty("ставка доставки", in.RateID); err != nil {
		return nil, "", apperror.New(apperror.ErrCodeValidation, err.Error())
	}
	if in.CostCents <= 0 {
		return nil, "", apperror.New(apperror.ErrCodeValidation, "стоимость доставки должна быть положительной")
	}

	if _, err := s.shipments.GetByOfferAndSender(ctx, offerID, userID); err == nil {
		return nil, "", apperror.New(apperror.ErrCodeShipmentExists, "посылка по этой сделке уже оформлена")
	} else if !errors.Is(err, repository.ErrShipmentNotFound) {
		return nil, "", err
	}

	session, err := s.checkout.CreateCheckoutSession(ctx, stripe.CheckoutParams{
		AmountCents: in.CostCents,
		Currency:    s.settings.Currency,
		ProductName: "Доставка посылки GiftCycle",
		SuccessURL:  fmt.Sprintf("%s/offers/%s?shipping=success&session_id={CHECKOUT_SESSION_ID}", s.settings.FrontendURL, offerID),
		CancelURL:   fmt.Sprintf("%s/offers/%s?shipping=cancel", s.settings.FrontendURL, offerID),
		Metadata: map[string]string{
			"offer_id":     offerID.String(),
			"user_id":      userID.String(),
			"rate_id":      in.RateID,
			"payment_type": string(models.PaymentTypeSwapShipping),
		},
	})
	if err != nil {
		return nil, "", apperror.Wrap(err, apperror.ErrCodeExternal, "платёжный сервис недоступен")
	}

	payment := &models.Payment{
		OfferID:         offerID,
		UserID:          userID,
		Type:            models.PaymentTypeSwapShipping,
		AmountCents:     in.CostCents,
		Currency:        s.settings.Currency,
		StripeSessionID: &session.ID,
	}
	if err := s.payments.CreatePending(ctx, payment); err != nil {
		return nil, "", err
	}

	return payment, session.URL, nil
}

// ConfirmShippingPayment подтверждает оплату доставки по Stripe-сессии,
// покупает лейбл и фиксирует отправление. Повтор вебхука возвращает уже
// записанное отправление без повторной покупки лейбла.
func (s *SwapService) ConfirmShippingPayment(ctx context.Context, sessionID string) (*models.Shipment, *models.Offer, error) {
	payment, err := s.payments.GetBySessionID(ctx, sessionID)
	if err != nil {
		return nil, nil, err
	}
	if payment.Type != models.PaymentTypeSwapShipping {
		return nil, nil, apperror.New(apperror.ErrCodeConflict, "сессия не относится к оплате доставки")
	}

	session, err := s.checkout.GetCheckoutSession(ctx, sessionID)
	if err != nil {
		return nil, nil, apperror.Wrap(err, apperror.ErrCodeExternal, "платёжный сервис недоступен")
	}
	if !session.Paid() {
		return nil, nil, apperror.New(apperror.ErrCodeConflict, "платёжная сессия не оплачена")
	}

	offer, err := s.offers.GetByID(ctx, payment.OfferID)
	if err != nil {
		return nil, nil, err
	}

	// Повтор вебхука: отправление уже записано, лейбл не покупаем.
	if existing, err := s.shipments.GetByOfferAndSender(ctx, payment.OfferID, payment.UserID); err == nil {
		return existing, offer, nil
	} else if !errors.Is(err, repository.ErrShipmentNotFound) {
		return nil, nil, err
	}

	payment, err = s.payments.ConfirmSwapShipping(ctx, payment.ID, session.PaymentIntent)
	if err != nil {
		return nil, nil, err
	}

	rateID := session.Metadata["rate_id"]
	if rateID == "" {
		return nil, nil, apperror.New(apperror.ErrCodeMissingRate, "в сессии не зафиксирована ставка доставки")
	}

	label, err := s.shipping.PurchaseLabel(ctx, rateID)
	if err != nil {
		return nil, nil, apperror.Wrap(err, apperror.ErrCodeExternal, "не удалось купить лейбл доставки")
	}

	shipment := &models.Shipment{
		OfferID:        payment.OfferID,
		SenderID:       payment.UserID,
		RecipientID:    offer.Counterpart(payment.UserID),
		RateID:         rateID,
		CostCents:      &payment.AmountCents,
		TrackingNumber: &label.TrackingNumber,
		TrackingURL:    &label.TrackingURLProvider,
		LabelURL:       &label.LabelURL,
	}

	offer, err = s.shipments.CreateSwapShipment(ctx, shipment)
	if err != nil {
		return nil, nil, err
	}

	// Первая посылка — сообщаем получателю, вторая закрывает стадию
	// отправки, сообщаем обоим.
	switch offer.SwapStatus {
	case models.SwapStatusShippingCreated:
		notify(s.pusher, offer.SenderID, models.NotificationTypeShipping, &offer.ID,
			"Обе посылки оформлены: ждите доставку")
		notify(s.pusher, offer.OwnerID, models.NotificationTypeShipping, &offer.ID,
			"Обе посылки оформлены: ждите доставку")
	default:
		notify(s.pusher, shipment.RecipientID, models.NotificationTypeShipping, &offer.ID,
			fmt.Sprintf("Участник обмена отправил посылку, трек-номер %s", label.TrackingNumber))
	}

	return shipment, offer, nil
}

// ConfirmReceipt отмечает получение посылки участником. Когда получение
// подтвердили оба, обмен завершается.
func (s *SwapService) ConfirmReceipt(ctx context.Context, offerID, userID uuid.UUID) (*models.Offer, error) {
	offer, err := s.offers.ConfirmSwapReceipt(ctx, offerID, userID)
	if err != nil {
		return nil, err
	}

	if offer.SwapStatus == models.SwapStatusCompleted {
		notify(s.pusher, offer.SenderID, models.NotificationTypeSwap, &offer.ID, "Обмен завершён")
		notify(s.pusher, offer.OwnerID, models.NotificationTypeSwap, &offer.ID, "Обмен завершён")
	} else {
		notify(s.pusher, offer.Counterpart(userID), models.NotificationTypeSwap, &offer.ID,
			"Второй участник подтвердил получение посылки")
	}

	return offer, nil
}

// MarkFailed помечает обмен проваленным по инициативе участника. Обычно
// сопровождается открытием спора на возврат взносов.
func (s *SwapService) MarkFailed(ctx context.Context, offerID, userID uuid.UUID) (*models.Offer, error) {
	offer, err := s.offers.MarkSwapFailed(ctx, offerID, userID)
	if err != nil {
		return nil, err
	}

	notify(s.pusher, offer.Counterpart(userID), models.NotificationTypeSwap, &offer.ID,
		"Второй участник отметил обмен несостоявшимся")

	return offer, nil
}

// ListShipments возвращает отправления сделки участнику.
func (s *SwapService) ListShipments(ctx context.Context, offerID, userID uuid.UUID) ([]models.Shipment, error) {
	offer, err := s.offers.GetByID(ctx, offerID)
	if err != nil {
		return nil, err
	}
	if !offer.Participant(userID) {
		return nil, apperror.ErrForbidden
	}

	return s.shipments.ListByOffer(ctx, offerID)
}

// ListPayments возвращает леджер платежей сделки участнику.
func (s *SwapService) ListPayments(ctx context.Context, offerID, userID uuid.UUID) ([]models.Payment, error) {
	offer, err := s.offers.GetByID(ctx, offerID)
	if err != nil {
		return nil, err
	}
	if !offer.Participant(userID) {
		return nil, apperror.ErrForbidden
	}

	return s.payments.ListByOffer(ctx, offerID)
}

// resolveRoute собирает маршрут посылки участника: откуда, куда и вес.
func (s *SwapService) resolveRoute(ctx context.Context, offer *models.Offer, senderID uuid.UUID) (shippo.Address, shippo.Address, float64, error) {
	var zero shippo.Address

	fromAddr, err := s.addresses.GetByOfferAndUser(ctx, offer.ID, senderID)
	if err != nil {
		if errors.Is(err, repository.ErrAddressNotFound) {
			return zero, zero, 0, apperror.New(apperror.ErrCodeMissingAddress, "сначала укажите свой адрес")
		}
		return zero, zero, 0, err
	}
	toAddr, err := s.addresses.GetByOfferAndUser(ctx, offer.ID, offer.Counterpart(senderID))
	if err != nil {
		if errors.Is(err, repository.ErrAddressNotFound) {
			return zero, zero, 0, apperror.New(apperror.ErrCodeMissingAddress, "второй участник ещё не указал адрес")
		}
		return zero, zero, 0, err
	}
	if !fromAddr.Complete() || !toAddr.Complete() {
		return zero, zero, 0, apperror.New(apperror.ErrCodeMissingAddress, "адрес заполнен не полностью")
	}
	if fromAddr.ParcelWeightKg <= 0 {
		return zero, zero, 0, apperror.New(apperror.ErrCodeMissingWeight, "не указан вес посылки")
	}

	return toShippoAddress(fromAddr), toShippoAddress(toAddr), fromAddr.ParcelWeightKg, nil
}

// toShippoAddress переводит адрес участника в формат Shippo.
func toShippoAddress(a *models.SwapAddress) shippo.Address {
	addr := shippo.Address{
		Name:    a.FullName,
		Street1: a.AddressLine1,
		City:    a.City,
		State:   a.State,
		Zip:     a.Zip,
		Country: a.Country,
	}
	if a.AddressLine2 != nil {
		addr.Street2 = *a.AddressLine2
	}
	if a.Phone != nil {
		addr.Phone = *a.Phone
	}
	return addr
}

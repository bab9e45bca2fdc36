package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/ignatzorin/giftcycle-backend/internal/models"
	"github.com/ignatzorin/giftcycle-backend/internal/payments/stripe"
	"github.com/ignatzorin/giftcycle-backend/internal/repository"
	"github.com/ignatzorin/giftcycle-backend/internal/shipping/shippo"
)

// Общие in-memory заглушки для тестов сервисов сделок.

// fakePusher собирает уведомления вместо отправки в hub.
type fakePusher struct {
	mu            sync.Mutex
	notifications []*models.Notification
}

func (f *fakePusher) NotifyUser(n *models.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notifications = append(f.notifications, n)
	return nil
}

func (f *fakePusher) sentTo(userID uuid.UUID) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, n := range f.notifications {
		if n.UserID == userID {
			count++
		}
	}
	return count
}

// fakeCheckout эмулирует Stripe: выдаёт сессии и запоминает возвраты.
type fakeCheckout struct {
	sessions map[string]*stripe.CheckoutSession
	created  []stripe.CheckoutParams
	refunds  []string
	err      error
}

func newFakeCheckout() *fakeCheckout {
	return &fakeCheckout{sessions: make(map[string]*stripe.CheckoutSession)}
}

func (f *fakeCheckout) CreateCheckoutSession(ctx context.Context, p stripe.CheckoutParams) (*stripe.CheckoutSession, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.created = append(f.created, p)
	id := fmt.Sprintf("cs_test_%d", len(f.created))
	session := &stripe.CheckoutSession{
		ID:            id,
		URL:           "https://checkout.stripe.test/" + id,
		PaymentStatus: "unpaid",
		AmountTotal:   p.Total(),
		Currency:      p.Currency,
		Metadata:      p.Metadata,
	}
	f.sessions[id] = session
	return session, nil
}

func (f *fakeCheckout) GetCheckoutSession(ctx context.Context, sessionID string) (*stripe.CheckoutSession, error) {
	if f.err != nil {
		return nil, f.err
	}
	session, ok := f.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("stripe: сессия %s не найдена", sessionID)
	}
	return session, nil
}

func (f *fakeCheckout) CreateRefund(ctx context.Context, paymentIntentID string) (*stripe.Refund, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.refunds = append(f.refunds, paymentIntentID)
	return &stripe.Refund{ID: "re_" + paymentIntentID, Status: "succeeded", PaymentIntent: paymentIntentID}, nil
}

// markPaid помечает сессию оплаченной, как это сделал бы Stripe.
func (f *fakeCheckout) markPaid(sessionID, paymentIntentID string) {
	if s, ok := f.sessions[sessionID]; ok {
		s.PaymentStatus = "paid"
		s.PaymentIntent = paymentIntentID
	}
}

// fakeShipping эмулирует Shippo.
type fakeShipping struct {
	rates     []shippo.Rate
	purchased []string
	err       error
}

func (f *fakeShipping) CreateShipment(ctx context.Context, from, to shippo.Address, parcel shippo.Parcel) (*shippo.Shipment, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &shippo.Shipment{ObjectID: "shp_test", Status: "SUCCESS", Rates: f.rates}, nil
}

func (f *fakeShipping) PurchaseLabel(ctx context.Context, rateID string) (*shippo.Transaction, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.purchased = append(f.purchased, rateID)
	return &shippo.Transaction{
		ObjectID:            "txn_test",
		Status:              "SUCCESS",
		TrackingNumber:      "TRACK123",
		TrackingURLProvider: "https://track.test/TRACK123",
		LabelURL:            "https://label.test/TRACK123.pdf",
	}, nil
}

// stubOfferRepo хранит офферы в памяти и воспроизводит переходы статусов,
// которые настоящий репозиторий выполняет в транзакции. Поле shipments
// связывает его с леджером отправлений там, где репозиторий обновляет
// отправления в той же транзакции.
type stubOfferRepo struct {
	offers    map[uuid.UUID]*models.Offer
	shipments *stubShipmentRepo
}

func newStubOfferRepo(offers ...*models.Offer) *stubOfferRepo {
	r := &stubOfferRepo{offers: make(map[uuid.UUID]*models.Offer)}
	for _, o := range offers {
		if o.ID == uuid.Nil {
			o.ID = uuid.New()
		}
		r.offers[o.ID] = o
	}
	return r
}

func (r *stubOfferRepo) Create(ctx context.Context, offer *models.Offer) error {
	offer.ID = uuid.New()
	offer.Status = models.OfferStatusPending
	r.offers[offer.ID] = offer
	return nil
}

func (r *stubOfferRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Offer, error) {
	offer, ok := r.offers[id]
	if !ok {
		return nil, repository.ErrOfferNotFound
	}
	return offer, nil
}

func (r *stubOfferRepo) ListSent(ctx context.Context, senderID uuid.UUID) ([]models.Offer, error) {
	var out []models.Offer
	for _, o := range r.offers {
		if o.SenderID == senderID {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (r *stubOfferRepo) ListReceived(ctx context.Context, ownerID uuid.UUID) ([]models.Offer, error) {
	var out []models.Offer
	for _, o := range r.offers {
		if o.OwnerID == ownerID {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (r *stubOfferRepo) Accept(ctx context.Context, offerID, ownerID uuid.UUID) (*repository.AcceptResult, error) {
	offer, ok := r.offers[offerID]
	if !ok {
		return nil, repository.ErrOfferNotFound
	}
	if offer.OwnerID != ownerID {
		return nil, repository.ErrNotParticipant
	}
	if offer.Status != models.OfferStatusPending {
		return nil, repository.ErrInvalidTransition
	}

	offer.Status = models.OfferStatusAccepted
	if offer.Type == models.OfferTypeExchange {
		offer.SwapStatus = models.SwapStatusPending
	} else {
		offer.SaleStatus = models.SaleStatusAwaitingShipping
	}

	result := &repository.AcceptResult{Offer: offer}
	for _, other := range r.offers {
		if other.ID != offer.ID && other.GiftID == offer.GiftID && other.Status == models.OfferStatusPending {
			other.Status = models.OfferStatusExpired
			result.ExpiredSenders = append(result.ExpiredSenders, other.SenderID)
		}
	}
	return result, nil
}

func (r *stubOfferRepo) Reject(ctx context.Context, offerID, ownerID uuid.UUID) (*models.Offer, error) {
	offer, ok := r.offers[offerID]
	if !ok {
		return nil, repository.ErrOfferNotFound
	}
	if offer.OwnerID != ownerID {
		return nil, repository.ErrNotParticipant
	}
	if offer.Status != models.OfferStatusPending {
		return nil, repository.ErrInvalidTransition
	}
	offer.Status = models.OfferStatusRejected
	return offer, nil
}

func (r *stubOfferRepo) Delete(ctx context.Context, offerID, senderID uuid.UUID) error {
	offer, ok := r.offers[offerID]
	if !ok || offer.SenderID != senderID {
		return repository.ErrOfferNotFound
	}
	if offer.Status != models.OfferStatusPending {
		return repository.ErrInvalidTransition
	}
	delete(r.offers, offerID)
	return nil
}

func (r *stubOfferRepo) StartSwap(ctx context.Context, offerID uuid.UUID) (*models.Offer, error) {
	offer, ok := r.offers[offerID]
	if !ok {
		return nil, repository.ErrOfferNotFound
	}
	if !offer.SwapStatus.CanTransition(models.SwapStatusAwaitingPayment) {
		return nil, repository.ErrInvalidTransition
	}
	offer.SwapStatus = models.SwapStatusAwaitingPayment
	return offer, nil
}

func (r *stubOfferRepo) ConfirmSwapReceipt(ctx context.Context, offerID, userID uuid.UUID) (*models.Offer, error) {
	offer, ok := r.offers[offerID]
	if !ok {
		return nil, repository.ErrOfferNotFound
	}
	if !offer.Participant(userID) {
		return nil, repository.ErrNotParticipant
	}
	if offer.SenderID == userID {
		offer.SwapSenderConfirmed = true
	} else {
		offer.SwapOwnerConfirmed = true
	}
	if offer.SwapSenderConfirmed && offer.SwapOwnerConfirmed {
		offer.SwapStatus = models.SwapStatusCompleted
	}
	return offer, nil
}

func (r *stubOfferRepo) MarkSwapFailed(ctx context.Context, offerID, userID uuid.UUID) (*models.Offer, error) {
	offer, ok := r.offers[offerID]
	if !ok {
		return nil, repository.ErrOfferNotFound
	}
	if !offer.Participant(userID) {
		return nil, repository.ErrNotParticipant
	}
	if !offer.SwapStatus.CanTransition(models.SwapStatusFailed) {
		return nil, repository.ErrInvalidTransition
	}
	offer.SwapStatus = models.SwapStatusFailed
	return offer, nil
}

func (r *stubOfferRepo) SetSaleRate(ctx context.Context, offerID uuid.UUID, rateID string, costCents int64, carrier, service string) (*models.Offer, error) {
	offer, ok := r.offers[offerID]
	if !ok {
		return nil, repository.ErrOfferNotFound
	}
	offer.ShippingRateID = &rateID
	offer.ShippingCostCents = &costCents
	offer.ShippingCarrier = &carrier
	offer.ShippingService = &service
	offer.SaleStatus = models.SaleStatusAwaitingPayment
	return offer, nil
}

func (r *stubOfferRepo) ConfirmSaleDelivery(ctx context.Context, offerID, buyerID uuid.UUID) (*models.Offer, error) {
	offer, ok := r.offers[offerID]
	if !ok {
		return nil, repository.ErrOfferNotFound
	}
	if offer.SenderID != buyerID {
		return nil, repository.ErrNotParticipant
	}
	if !offer.SaleStatus.CanTransition(models.SaleStatusCompleted) {
		return nil, repository.ErrInvalidTransition
	}
	if r.shipments != nil {
		for _, s := range r.shipments.shipments {
			if s.OfferID == offerID {
				s.Status = models.ShipmentStatusDelivered
			}
		}
	}
	offer.SaleStatus = models.SaleStatusCompleted
	return offer, nil
}

// stubPaymentRepo воспроизводит леджер платежей и его побочные эффекты
// на статус сделки.
type stubPaymentRepo struct {
	offers   *stubOfferRepo
	payments []*models.Payment
}

func (r *stubPaymentRepo) CreatePending(ctx context.Context, p *models.Payment) error {
	p.ID = uuid.New()
	p.Status = models.PaymentStatusPending
	r.payments = append(r.payments, p)
	return nil
}

func (r *stubPaymentRepo) GetBySessionID(ctx context.Context, sessionID string) (*models.Payment, error) {
	for _, p := range r.payments {
		if p.StripeSessionID != nil && *p.StripeSessionID == sessionID {
			return p, nil
		}
	}
	return nil, repository.ErrPaymentNotFound
}

func (r *stubPaymentRepo) ListByOffer(ctx context.Context, offerID uuid.UUID) ([]models.Payment, error) {
	var out []models.Payment
	for _, p := range r.payments {
		if p.OfferID == offerID {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (r *stubPaymentRepo) ConfirmProtectionFee(ctx context.Context, paymentID uuid.UUID, paymentIntentID string) (*models.Offer, error) {
	payment := r.byID(paymentID)
	if payment == nil {
		return nil, repository.ErrPaymentNotFound
	}
	offer, err := r.offers.GetByID(ctx, payment.OfferID)
	if err != nil {
		return nil, err
	}

	if payment.Status == models.PaymentStatusPending {
		payment.Status = models.PaymentStatusSucceeded
		payment.StripePaymentIntentID = &paymentIntentID
	}

	paid := 0
	for _, p := range r.payments {
		if p.OfferID == offer.ID && p.Type == models.PaymentTypeProtectionFee && p.Status == models.PaymentStatusSucceeded {
			paid++
		}
	}
	if paid >= 2 && offer.SwapStatus == models.SwapStatusAwaitingPayment {
		offer.SwapStatus = models.SwapStatusProtectedActive
	}
	return offer, nil
}

func (r *stubPaymentRepo) ConfirmSalePayment(ctx context.Context, paymentID uuid.UUID, paymentIntentID string) (*models.Offer, error) {
	payment := r.byID(paymentID)
	if payment == nil {
		return nil, repository.ErrPaymentNotFound
	}
	offer, err := r.offers.GetByID(ctx, payment.OfferID)
	if err != nil {
		return nil, err
	}

	if payment.Status == models.PaymentStatusPending {
		payment.Status = models.PaymentStatusSucceeded
		payment.StripePaymentIntentID = &paymentIntentID
		offer.SaleStatus = models.SaleStatusBuyerPaid
	}
	return offer, nil
}

func (r *stubPaymentRepo) ConfirmSwapShipping(ctx context.Context, paymentID uuid.UUID, paymentIntentID string) (*models.Payment, error) {
	payment := r.byID(paymentID)
	if payment == nil {
		return nil, repository.ErrPaymentNotFound
	}
	if payment.Status == models.PaymentStatusPending {
		payment.Status = models.PaymentStatusSucceeded
		payment.StripePaymentIntentID = &paymentIntentID
	}
	return payment, nil
}

func (r *stubPaymentRepo) byID(id uuid.UUID) *models.Payment {
	for _, p := range r.payments {
		if p.ID == id {
			return p
		}
	}
	return nil
}

// stubShipmentRepo воспроизводит леджер отправлений.
type stubShipmentRepo struct {
	offers    *stubOfferRepo
	shipments []*models.Shipment
}

func (r *stubShipmentRepo) GetByOfferAndSender(ctx context.Context, offerID, senderID uuid.UUID) (*models.Shipment, error) {
	for _, s := range r.shipments {
		if s.OfferID == offerID && s.SenderID == senderID {
			return s, nil
		}
	}
	return nil, repository.ErrShipmentNotFound
}

func (r *stubShipmentRepo) ListByOffer(ctx context.Context, offerID uuid.UUID) ([]models.Shipment, error) {
	var out []models.Shipment
	for _, s := range r.shipments {
		if s.OfferID == offerID {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (r *stubShipmentRepo) CreateSwapShipment(ctx context.Context, shipment *models.Shipment) (*models.Offer, error) {
	offer, err := r.offers.GetByID(ctx, shipment.OfferID)
	if err != nil {
		return nil, err
	}
	for _, s := range r.shipments {
		if s.OfferID == shipment.OfferID && s.SenderID == shipment.SenderID {
			return nil, repository.ErrShipmentExists
		}
	}
	switch offer.SwapStatus {
	case models.SwapStatusProtectedActive, models.SwapStatusShippingPartial:
	default:
		return nil, repository.ErrInvalidTransition
	}
	shipment.ID = uuid.New()
	shipment.Status = models.ShipmentStatusLabelCreated
	r.shipments = append(r.shipments, shipment)

	if offer.SwapStatus == models.SwapStatusProtectedActive {
		offer.SwapStatus = models.SwapStatusShippingPartial
	} else {
		offer.SwapStatus = models.SwapStatusShippingCreated
	}
	return offer, nil
}

func (r *stubShipmentRepo) CreateSaleShipment(ctx context.Context, shipment *models.Shipment) (*models.Offer, error) {
	offer, err := r.offers.GetByID(ctx, shipment.OfferID)
	if err != nil {
		return nil, err
	}
	for _, s := range r.shipments {
		if s.OfferID == shipment.OfferID && s.SenderID == shipment.SenderID {
			return nil, repository.ErrShipmentExists
		}
	}
	shipment.ID = uuid.New()
	shipment.Status = models.ShipmentStatusShipped
	r.shipments = append(r.shipments, shipment)
	offer.SaleStatus = models.SaleStatusShipped
	return offer, nil
}

func (r *stubShipmentRepo) MarkSaleShipped(ctx context.Context, offerID, sellerID uuid.UUID, trackingNumber, carrier *string) (*models.Shipment, *models.Offer, error) {
	offer, err := r.offers.GetByID(ctx, offerID)
	if err != nil {
		return nil, nil, err
	}
	if offer.OwnerID != sellerID {
		return nil, nil, repository.ErrNotParticipant
	}
	if offer.SaleStatus != models.SaleStatusBuyerPaid {
		return nil, nil, repository.ErrInvalidTransition
	}

	var shipment *models.Shipment
	for _, s := range r.shipments {
		if s.OfferID == offerID && s.SenderID == sellerID {
			shipment = s
			break
		}
	}
	if shipment == nil {
		shipment = &models.Shipment{
			ID:          uuid.New(),
			OfferID:     offerID,
			SenderID:    sellerID,
			RecipientID: offer.SenderID,
			CostCents:   offer.ShippingCostCents,
		}
		if offer.ShippingRateID != nil {
			shipment.RateID = *offer.ShippingRateID
		}
		r.shipments = append(r.shipments, shipment)
	}
	shipment.Status = models.ShipmentStatusShipped
	if trackingNumber != nil {
		shipment.TrackingNumber = trackingNumber
	}
	if carrier != nil {
		shipment.Carrier = carrier
	}

	offer.SaleStatus = models.SaleStatusShipped
	return shipment, offer, nil
}

// stubGiftRepo хранит подарки в памяти.
type stubGiftRepo struct {
	gifts map[uuid.UUID]*models.Gift
}

func newStubGiftRepo(gifts ...*models.Gift) *stubGiftRepo {
	r := &stubGiftRepo{gifts: make(map[uuid.UUID]*models.Gift)}
	for _, g := range gifts {
		if g.ID == uuid.Nil {
			g.ID = uuid.New()
		}
		if g.Status == "" {
			g.Status = models.GiftStatusFree
		}
		r.gifts[g.ID] = g
	}
	return r
}

func (r *stubGiftRepo) Create(ctx context.Context, gift *models.Gift) error {
	gift.ID = uuid.New()
	gift.Status = models.GiftStatusFree
	r.gifts[gift.ID] = gift
	return nil
}

func (r *stubGiftRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Gift, error) {
	gift, ok := r.gifts[id]
	if !ok {
		return nil, repository.ErrGiftNotFound
	}
	return gift, nil
}

func (r *stubGiftRepo) ListAvailable(ctx context.Context, excludeOwner uuid.UUID, limit, offset int) ([]models.Gift, error) {
	var out []models.Gift
	for _, g := range r.gifts {
		if g.OwnerID != excludeOwner && g.Status == models.GiftStatusFree {
			out = append(out, *g)
		}
	}
	return out, nil
}

func (r *stubGiftRepo) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.Gift, error) {
	var out []models.Gift
	for _, g := range r.gifts {
		if g.OwnerID == ownerID {
			out = append(out, *g)
		}
	}
	return out, nil
}

func (r *stubGiftRepo) Delete(ctx context.Context, giftID, ownerID uuid.UUID) error {
	gift, ok := r.gifts[giftID]
	if !ok || gift.OwnerID != ownerID {
		return repository.ErrGiftNotFound
	}
	if gift.Status != models.GiftStatusFree {
		return repository.ErrGiftUnavailable
	}
	delete(r.gifts, giftID)
	return nil
}

// stubMessageRepo хранит чат сделки в памяти.
type stubMessageRepo struct {
	messages []*models.OfferMessage
}

func (r *stubMessageRepo) Create(ctx context.Context, m *models.OfferMessage) error {
	m.ID = uuid.New()
	r.messages = append(r.messages, m)
	return nil
}

func (r *stubMessageRepo) ListByOffer(ctx context.Context, offerID uuid.UUID) ([]models.OfferMessage, error) {
	var out []models.OfferMessage
	for _, m := range r.messages {
		if m.OfferID == offerID {
			out = append(out, *m)
		}
	}
	return out, nil
}

func (r *stubMessageRepo) Delete(ctx context.Context, messageID, senderID uuid.UUID) error {
	for i, m := range r.messages {
		if m.ID == messageID {
			if m.SenderID != senderID {
				return repository.ErrNotParticipant
			}
			r.messages = append(r.messages[:i], r.messages[i+1:]...)
			return nil
		}
	}
	return repository.ErrMessageNotFound
}

// stubAddressRepo хранит адреса по паре (offer_id, user_id).
type stubAddressRepo struct {
	addresses map[string]*models.SwapAddress
}

func newStubAddressRepo() *stubAddressRepo {
	return &stubAddressRepo{addresses: make(map[string]*models.SwapAddress)}
}

func addressKey(offerID, userID uuid.UUID) string {
	return offerID.String() + "/" + userID.String()
}

func (r *stubAddressRepo) Upsert(ctx context.Context, a *models.SwapAddress) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	r.addresses[addressKey(a.OfferID, a.UserID)] = a
	return nil
}

func (r *stubAddressRepo) GetByOfferAndUser(ctx context.Context, offerID, userID uuid.UUID) (*models.SwapAddress, error) {
	a, ok := r.addresses[addressKey(offerID, userID)]
	if !ok {
		return nil, repository.ErrAddressNotFound
	}
	return a, nil
}

func (r *stubAddressRepo) ListByOffer(ctx context.Context, offerID uuid.UUID) ([]models.SwapAddress, error) {
	var out []models.SwapAddress
	for _, a := range r.addresses {
		if a.OfferID == offerID {
			out = append(out, *a)
		}
	}
	return out, nil
}

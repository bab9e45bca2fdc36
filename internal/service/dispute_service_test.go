package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/giftcycle-backend/internal/models"
	"github.com/ignatzorin/giftcycle-backend/internal/pkg/apperror"
	"github.com/ignatzorin/giftcycle-backend/internal/repository"
)

// stubDisputeRepo воспроизводит в памяти транзакционную семантику
// настоящего репозитория споров: один открытый спор на сделку,
// возвраты внутри резолюции, смену статуса сделки.
type stubDisputeRepo struct {
	offers   *stubOfferRepo
	payments *stubPaymentRepo
	disputes map[uuid.UUID]*models.Dispute
}

func newStubDisputeRepo(offers *stubOfferRepo, payments *stubPaymentRepo) *stubDisputeRepo {
	return &stubDisputeRepo{
		offers:   offers,
		payments: payments,
		disputes: make(map[uuid.UUID]*models.Dispute),
	}
}

func (r *stubDisputeRepo) Open(ctx context.Context, d *models.Dispute) (*models.Offer, error) {
	for _, existing := range r.disputes {
		if existing.DealType == d.DealType && existing.DealID == d.DealID && existing.Status == models.DisputeStatusOpen {
			return nil, repository.ErrDisputeAlreadyOpen
		}
	}

	offer, err := r.offers.GetByID(ctx, d.DealID)
	if err != nil {
		return nil, err
	}
	if !offer.Participant(d.OpenedBy) {
		return nil, repository.ErrNotParticipant
	}

	switch d.DealType {
	case models.DealTypeSale:
		if d.OpenedBy == offer.SenderID {
			d.OpenedByRole = models.DisputeRoleBuyer
		} else {
			d.OpenedByRole = models.DisputeRoleSeller
		}
		if offer.SaleStatus.CanForceDispute() {
			offer.SaleStatus = models.SaleStatusUnderDispute
		}
	default:
		if d.OpenedBy == offer.SenderID {
			d.OpenedByRole = models.DisputeRolePartyA
		} else {
			d.OpenedByRole = models.DisputeRolePartyB
		}
	}

	d.ID = uuid.New()
	d.Status = models.DisputeStatusOpen
	d.CreatedAt = time.Now()
	r.disputes[d.ID] = d

	return offer, nil
}

func (r *stubDisputeRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Dispute, error) {
	dispute, ok := r.disputes[id]
	if !ok {
		return nil, repository.ErrDisputeNotFound
	}
	return dispute, nil
}

func (r *stubDisputeRepo) GetLatestByDeal(ctx context.Context, dealType string, dealID uuid.UUID) (*models.Dispute, error) {
	var latest *models.Dispute
	for _, d := range r.disputes {
		if d.DealType == dealType && d.DealID == dealID {
			if latest == nil || d.CreatedAt.After(latest.CreatedAt) {
				latest = d
			}
		}
	}
	if latest == nil {
		return nil, repository.ErrDisputeNotFound
	}
	return latest, nil
}

func (r *stubDisputeRepo) List(ctx context.Context, status models.DisputeStatus) ([]models.Dispute, error) {
	var out []models.Dispute
	for _, d := range r.disputes {
		if status == "" || d.Status == status {
			out = append(out, *d)
		}
	}
	return out, nil
}

func (r *stubDisputeRepo) Resolve(ctx context.Context, disputeID, adminID uuid.UUID, action, note string, refund repository.RefundFunc) (*models.Dispute, *models.Offer, error) {
	dispute, ok := r.disputes[disputeID]
	if !ok {
		return nil, nil, repository.ErrDisputeNotFound
	}
	if dispute.Status != models.DisputeStatusOpen {
		return nil, nil, repository.ErrDisputeResolved
	}
	if dispute.DealType == models.DealTypeSwapUnequal {
		return nil, nil, repository.ErrUnsupportedResolution
	}

	offer, err := r.offers.GetByID(ctx, dispute.DealID)
	if err != nil {
		return nil, nil, err
	}

	var finalStatus models.DisputeStatus

	switch {
	case dispute.DealType == models.DealTypeSale && action == models.ResolutionRefundBuyer:
		if err := r.refundByType(ctx, offer.ID, models.PaymentTypeSalePayment, refund); err != nil {
			return nil, nil, err
		}
		if offer.SaleStatus.CanForceRefund() {
			offer.SaleStatus = models.SaleStatusRefunded
		}
		finalStatus = models.DisputeStatusResolvedRefunded

	case dispute.DealType == models.DealTypeSale && action == models.ResolutionReject:
		finalStatus = models.DisputeStatusResolvedRejected

	case dispute.DealType == models.DealTypeSwapEqual && action == models.ResolutionRefundBothSides:
		if err := r.refundByType(ctx, offer.ID, models.PaymentTypeProtectionFee, refund); err != nil {
			return nil, nil, err
		}
		if offer.SwapStatus.CanForceFail() {
			offer.SwapStatus = models.SwapStatusFailed
		}
		finalStatus = models.DisputeStatusResolvedRefunded

	case dispute.DealType == models.DealTypeSwapEqual && action == models.ResolutionReject:
		finalStatus = models.DisputeStatusResolvedRejected

	default:
		return nil, nil, repository.ErrUnsupportedResolution
	}

	dispute.Status = finalStatus
	dispute.ResolutionNote = &note
	dispute.ResolvedBy = &adminID

	return dispute, offer, nil
}

func (r *stubDisputeRepo) refundByType(ctx context.Context, offerID uuid.UUID, paymentType models.PaymentType, refund repository.RefundFunc) error {
	for _, p := range r.payments.payments {
		if p.OfferID != offerID || p.Type != paymentType || p.Status != models.PaymentStatusSucceeded {
			continue
		}
		if p.StripePaymentIntentID == nil {
			return repository.ErrMissingPaymentIntent
		}
		refundID, err := refund(ctx, p)
		if err != nil {
			return err
		}
		p.Status = models.PaymentStatusRefunded
		p.StripeRefundID = &refundID
	}
	return nil
}

func newDisputeFixture(dealType string) (*DisputeService, *models.Offer, *stubDisputeRepo, *stubPaymentRepo, *fakeCheckout, *fakePusher) {
	offerType := models.OfferTypeBuy
	if dealType != models.DealTypeSale {
		offerType = models.OfferTypeExchange
	}

	offer := &models.Offer{
		ID:       uuid.New(),
		GiftID:   uuid.New(),
		SenderID: uuid.New(),
		OwnerID:  uuid.New(),
		Type:     offerType,
		Status:   models.OfferStatusAccepted,
	}
	if dealType == models.DealTypeSale {
		offer.SaleStatus = models.SaleStatusBuyerPaid
	} else {
		offer.SwapStatus = models.SwapStatusProtectedActive
	}

	offers := newStubOfferRepo(offer)
	payments := &stubPaymentRepo{offers: offers}
	disputes := newStubDisputeRepo(offers, payments)
	checkout := newFakeCheckout()
	pusher := &fakePusher{}

	svc := NewDisputeService(disputes, offers, checkout, pusher)
	return svc, offer, disputes, payments, checkout, pusher
}

func seedSucceededPayment(payments *stubPaymentRepo, offerID, userID uuid.UUID, paymentType models.PaymentType, intentID string) {
	payments.payments = append(payments.payments, &models.Payment{
		ID:                    uuid.New(),
		OfferID:               offerID,
		UserID:                userID,
		Type:                  paymentType,
		Status:                models.PaymentStatusSucceeded,
		AmountCents:           149,
		Currency:              "usd",
		StripePaymentIntentID: &intentID,
	})
}

func TestDisputeService_OpenDispute_InvalidDealType(t *testing.T) {
	svc, offer, _, _, _, _ := newDisputeFixture(models.DealTypeSale)

	_, err := svc.OpenDispute(context.Background(), offer.SenderID, OpenDisputeInput{
		DealType:   "barter",
		DealID:     offer.ID,
		ReasonCode: "item_not_received",
	})
	assert.True(t, apperror.IsCode(err, apperror.ErrCodeValidation))
}

func TestDisputeService_OpenDispute(t *testing.T) {
	svc, offer, _, _, _, pusher := newDisputeFixture(models.DealTypeSale)
	ctx := context.Background()

	dispute, err := svc.OpenDispute(ctx, offer.SenderID, OpenDisputeInput{
		DealType:   models.DealTypeSale,
		DealID:     offer.ID,
		ReasonCode: "item_not_received",
	})
	require.NoError(t, err)
	assert.Equal(t, models.DisputeStatusOpen, dispute.Status)
	assert.Equal(t, models.DisputeRoleBuyer, dispute.OpenedByRole)
	assert.Equal(t, models.SaleStatusUnderDispute, offer.SaleStatus)

	// Уведомление получает только вторая сторона.
	assert.Equal(t, 1, pusher.sentTo(offer.OwnerID))
	assert.Equal(t, 0, pusher.sentTo(offer.SenderID))
}

func TestDisputeService_OpenDispute_AlreadyOpen(t *testing.T) {
	svc, offer, _, _, _, _ := newDisputeFixture(models.DealTypeSale)
	ctx := context.Background()

	in := OpenDisputeInput{
		DealType:   models.DealTypeSale,
		DealID:     offer.ID,
		ReasonCode: "item_not_received",
	}
	_, err := svc.OpenDispute(ctx, offer.SenderID, in)
	require.NoError(t, err)

	_, err = svc.OpenDispute(ctx, offer.OwnerID, in)
	assert.ErrorIs(t, err, repository.ErrDisputeAlreadyOpen)
}

func TestDisputeService_GetDispute_ParticipantOnly(t *testing.T) {
	svc, offer, _, _, _, _ := newDisputeFixture(models.DealTypeSale)
	ctx := context.Background()

	dispute, err := svc.OpenDispute(ctx, offer.SenderID, OpenDisputeInput{
		DealType:   models.DealTypeSale,
		DealID:     offer.ID,
		ReasonCode: "item_not_received",
	})
	require.NoError(t, err)

	_, err = svc.GetDispute(ctx, dispute.ID, offer.OwnerID, models.RoleUser)
	assert.NoError(t, err)

	_, err = svc.GetDispute(ctx, dispute.ID, uuid.New(), models.RoleUser)
	assert.True(t, apperror.IsForbidden(err))

	// Администратору участие в сделке не требуется.
	_, err = svc.GetDispute(ctx, dispute.ID, uuid.New(), models.RoleAdmin)
	assert.NoError(t, err)
}

func TestDisputeService_ResolveDispute_UnknownAction(t *testing.T) {
	svc, _, _, _, _, _ := newDisputeFixture(models.DealTypeSale)

	_, err := svc.ResolveDispute(context.Background(), uuid.New(), uuid.New(), "split_difference", "note")
	assert.True(t, apperror.IsCode(err, apperror.ErrCodeValidation))
}

func TestDisputeService_ResolveDispute_RefundBuyer(t *testing.T) {
	svc, offer, _, payments, checkout, pusher := newDisputeFixture(models.DealTypeSale)
	ctx := context.Background()

	seedSucceededPayment(payments, offer.ID, offer.SenderID, models.PaymentTypeSalePayment, "pi_sale")

	dispute, err := svc.OpenDispute(ctx, offer.SenderID, OpenDisputeInput{
		DealType:   models.DealTypeSale,
		DealID:     offer.ID,
		ReasonCode: "item_not_received",
	})
	require.NoError(t, err)

	adminID := uuid.New()
	resolved, err := svc.ResolveDispute(ctx, dispute.ID, adminID, models.ResolutionRefundBuyer, "товар не доставлен")
	require.NoError(t, err)

	assert.Equal(t, models.DisputeStatusResolvedRefunded, resolved.Status)
	assert.Equal(t, models.SaleStatusRefunded, offer.SaleStatus)
	assert.Equal(t, []string{"pi_sale"}, checkout.refunds)
	assert.Equal(t, models.PaymentStatusRefunded, payments.payments[0].Status)

	// О резолюции узнают обе стороны: одно уведомление об открытии
	// у продавца плюс по одному о резолюции у каждого.
	assert.Equal(t, 1, pusher.sentTo(offer.SenderID))
	assert.Equal(t, 2, pusher.sentTo(offer.OwnerID))
}

func TestDisputeService_ResolveDispute_RefundBothSides(t *testing.T) {
	svc, offer, _, payments, checkout, _ := newDisputeFixture(models.DealTypeSwapEqual)
	ctx := context.Background()

	seedSucceededPayment(payments, offer.ID, offer.SenderID, models.PaymentTypeProtectionFee, "pi_fee_a")
	seedSucceededPayment(payments, offer.ID, offer.OwnerID, models.PaymentTypeProtectionFee, "pi_fee_b")

	dispute, err := svc.OpenDispute(ctx, offer.OwnerID, OpenDisputeInput{
		DealType:   models.DealTypeSwapEqual,
		DealID:     offer.ID,
		ReasonCode: "item_damaged",
	})
	require.NoError(t, err)

	resolved, err := svc.ResolveDispute(ctx, dispute.ID, uuid.New(), models.ResolutionRefundBothSides, "обмен не состоялся")
	require.NoError(t, err)

	assert.Equal(t, models.DisputeStatusResolvedRefunded, resolved.Status)
	assert.Equal(t, models.SwapStatusFailed, offer.SwapStatus)
	assert.ElementsMatch(t, []string{"pi_fee_a", "pi_fee_b"}, checkout.refunds)
}

func TestDisputeService_ResolveDispute_Reject(t *testing.T) {
	svc, offer, _, _, checkout, pusher := newDisputeFixture(models.DealTypeSale)
	ctx := context.Background()

	dispute, err := svc.OpenDispute(ctx, offer.OwnerID, OpenDisputeInput{
		DealType:   models.DealTypeSale,
		DealID:     offer.ID,
		ReasonCode: "buyer_unreachable",
	})
	require.NoError(t, err)

	resolved, err := svc.ResolveDispute(ctx, dispute.ID, uuid.New(), models.ResolutionReject, "нарушений не найдено")
	require.NoError(t, err)

	assert.Equal(t, models.DisputeStatusResolvedRejected, resolved.Status)
	assert.Empty(t, checkout.refunds)

	last := pusher.notifications[len(pusher.notifications)-1]
	assert.Contains(t, last.Message, "отклонён")
}

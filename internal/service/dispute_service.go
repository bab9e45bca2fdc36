package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/ignatzorin/giftcycle-backend/internal/models"
	"github.com/ignatzorin/giftcycle-backend/internal/pkg/apperror"
	"github.com/ignatzorin/giftcycle-backend/internal/repository"
	"github.com/ignatzorin/giftcycle-backend/internal/validation"
)

// DisputeRepositoryInterface описывает зависимости DisputeService от слоя хранилища.
type DisputeRepositoryInterface interface {
	Open(ctx context.Context, d *models.Dispute) (*models.Offer, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Dispute, error)
	GetLatestByDeal(ctx context.Context, dealType string, dealID uuid.UUID) (*models.Dispute, error)
	List(ctx context.Context, status models.DisputeStatus) ([]models.Dispute, error)
	Resolve(ctx context.Context, disputeID, adminID uuid.UUID, action, note string, refund repository.RefundFunc) (*models.Dispute, *models.Offer, error)
}

// DisputeOfferRepository описывает чтение оффера для проверок доступа.
type DisputeOfferRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Offer, error)
}

// DisputeService ведёт споры по сделкам: открытие участником и резолюцию
// администратором. Возвраты Stripe выполняются внутри транзакции резолюции,
// упавший возврат откатывает резолюцию целиком.
type DisputeService struct {
	disputes DisputeRepositoryInterface
	offers   DisputeOfferRepository
	checkout CheckoutProvider
	pusher   NotificationPusher
}

// NewDisputeService создаёт сервис споров.
func NewDisputeService(disputes DisputeRepositoryInterface, offers DisputeOfferRepository, checkout CheckoutProvider, pusher NotificationPusher) *DisputeService {
	return &DisputeService{
		disputes: disputes,
		offers:   offers,
		checkout: checkout,
		pusher:   pusher,
	}
}

// OpenDisputeInput содержит данные нового спора.
type OpenDisputeInput struct {
	DealType    string
	DealID      uuid.UUID
	ReasonCode  string
	Description *string
}

// OpenDispute открывает спор по сделке от имени участника.
func (s *DisputeService) OpenDispute(ctx context.Context, userID uuid.UUID, in OpenDisputeInput) (*models.Dispute, error) {
	if _, ok := models.ValidDealTypes[in.DealType]; !ok {
		return nil, apperror.New(apperror.ErrCodeValidation, fmt.Sprintf("неизвестный тип сделки %q", in.DealType))
	}
	if err := validation.ValidateReasonCode(in.ReasonCode); err != nil {
		return nil, apperror.New(apperror.ErrCodeValidation, err.Error())
	}
	if err := validation.ValidateDisputeText("описание спора", in.Description); err != nil {
		return nil, apperror.New(apperror.ErrCodeValidation, err.Error())
	}

	dispute := &models.Dispute{
		DealType:    in.DealType,
		DealID:      in.DealID,
		OpenedBy:    userID,
		ReasonCode:  in.ReasonCode,
		Description: in.Description,
	}

	offer, err := s.disputes.Open(ctx, dispute)
	if err != nil {
		return nil, err
	}

	notify(s.pusher, offer.Counterpart(userID), models.NotificationTypeDispute, &offer.ID,
		"По вашей сделке открыт спор")

	return dispute, nil
}

// GetDispute возвращает спор администратору или участнику сделки.
func (s *DisputeService) GetDispute(ctx context.Context, disputeID, userID uuid.UUID, role string) (*models.Dispute, error) {
	dispute, err := s.disputes.GetByID(ctx, disputeID)
	if err != nil {
		return nil, err
	}

	if role != models.RoleAdmin {
		offer, err := s.offers.GetByID(ctx, dispute.DealID)
		if err != nil {
			return nil, err
		}
		if !offer.Participant(userID) {
			return nil, apperror.ErrForbidden
		}
	}

	return dispute, nil
}

// GetLatestByDeal возвращает последний спор по сделке участнику.
func (s *DisputeService) GetLatestByDeal(ctx context.Context, dealType string, dealID, userID uuid.UUID, role string) (*models.Dispute, error) {
	if _, ok := models.ValidDealTypes[dealType]; !ok {
		return nil, apperror.New(apperror.ErrCodeValidation, fmt.Sprintf("неизвестный тип сделки %q", dealType))
	}

	if role != models.RoleAdmin {
		offer, err := s.offers.GetByID(ctx, dealID)
		if err != nil {
			return nil, err
		}
		if !offer.Participant(userID) {
			return nil, apperror.ErrForbidden
		}
	}

	return s.disputes.GetLatestByDeal(ctx, dealType, dealID)
}

// ListDisputes возвращает споры администратору, опционально по статусу.
func (s *DisputeService) ListDisputes(ctx context.Context, status string) ([]models.Dispute, error) {
	st := models.DisputeStatus(status)
	if status != "" && !st.Valid() {
		return nil, apperror.New(apperror.ErrCodeValidation, fmt.Sprintf("неизвестный статус спора %q", status))
	}

	return s.disputes.List(ctx, st)
}

// ResolveDispute разрешает открытый спор решением администратора.
// refund_buyer возвращает последний платёж покупателя, refund_both_sides —
// защитные взносы обоих участников; reject закрывает спор без возвратов.
func (s *DisputeService) ResolveDispute(ctx context.Context, disputeID, adminID uuid.UUID, action, note string) (*models.Dispute, error) {
	if _, ok := models.ValidResolutions[action]; !ok {
		return nil, apperror.New(apperror.ErrCodeValidation, fmt.Sprintf("неизвестное действие резолюции %q", action))
	}
	if err := validation.ValidateDisputeText("комментарий резолюции", &note); err != nil {
		return nil, apperror.New(apperror.ErrCodeValidation, err.Error())
	}

	refund := func(ctx context.Context, payment *models.Payment) (string, error) {
		r, err := s.checkout.CreateRefund(ctx, *payment.StripePaymentIntentID)
		if err != nil {
			return "", apperror.Wrap(err, apperror.ErrCodeExternal, "платёжный сервис не смог выполнить возврат")
		}
		return r.ID, nil
	}

	dispute, offer, err := s.disputes.Resolve(ctx, disputeID, adminID, action, note, refund)
	if err != nil {
		return nil, err
	}

	message := "Спор по вашей сделке отклонён"
	if action != models.ResolutionReject {
		message = "Спор по вашей сделке разрешён с возвратом средств"
	}
	notify(s.pusher, offer.SenderID, models.NotificationTypeDispute, &offer.ID, message)
	notify(s.pusher, offer.OwnerID, models.NotificationTypeDispute, &offer.ID, message)

	return dispute, nil
}

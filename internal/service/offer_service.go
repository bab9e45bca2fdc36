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

// OfferRepositoryInterface описывает зависимости OfferService от слоя хранилища.
type OfferRepositoryInterface interface {
	Create(ctx context.Context, offer *models.Offer) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Offer, error)
	ListSent(ctx context.Context, senderID uuid.UUID) ([]models.Offer, error)
	ListReceived(ctx context.Context, ownerID uuid.UUID) ([]models.Offer, error)
	Accept(ctx context.Context, offerID, ownerID uuid.UUID) (*repository.AcceptResult, error)
	Reject(ctx context.Context, offerID, ownerID uuid.UUID) (*models.Offer, error)
	Delete(ctx context.Context, offerID, senderID uuid.UUID) error
}

// OfferMessageRepositoryInterface описывает хранилище чата оффера.
type OfferMessageRepositoryInterface interface {
	Create(ctx context.Context, m *models.OfferMessage) error
	ListByOffer(ctx context.Context, offerID uuid.UUID) ([]models.OfferMessage, error)
	Delete(ctx context.Context, messageID, senderID uuid.UUID) error
}

// OfferService содержит бизнес-логику офферов и чата сделки.
type OfferService struct {
	offers   OfferRepositoryInterface
	gifts    GiftRepositoryInterface
	messages OfferMessageRepositoryInterface
	pusher   NotificationPusher
}

// NewOfferService создаёт сервис офферов.
func NewOfferService(offers OfferRepositoryInterface, gifts GiftRepositoryInterface, messages OfferMessageRepositoryInterface, pusher NotificationPusher) *OfferService {
	return &OfferService{
		offers:   offers,
		gifts:    gifts,
		messages: messages,
		pusher:   pusher,
	}
}

// CreateOfferInput содержит данные нового оффера.
type CreateOfferInput struct {
	GiftID             uuid.UUID
	Type               string
	OfferedGiftID      *uuid.UUID
	OfferedTitle       *string
	OfferedDescription *string
	OfferedImageURL    *string
}

// CreateOffer создаёт оффер на чужой свободный подарок.
func (s *OfferService) CreateOffer(ctx context.Context, senderID uuid.UUID, in CreateOfferInput) (*models.Offer, error) {
	if _, ok := models.ValidOfferTypes[in.Type]; !ok {
		return nil, apperror.New(apperror.ErrCodeValidation, fmt.Sprintf("неизвестный тип оффера %q", in.Type))
	}

	gift, err := s.gifts.GetByID(ctx, in.GiftID)
	if err != nil {
		return nil, err
	}
	if gift.OwnerID == senderID {
		return nil, apperror.New(apperror.ErrCodeValidation, "нельзя делать оффер на собственный подарок")
	}
	if gift.Status != models.GiftStatusFree {
		return nil, apperror.New(apperror.ErrCodeConflict, "подарок уже занят другой сделкой")
	}

	offer := &models.Offer{
		GiftID:   in.GiftID,
		SenderID: senderID,
		OwnerID:  gift.OwnerID,
		Type:     in.Type,
	}

	if in.Type == models.OfferTypeExchange {
		switch {
		case in.OfferedGiftID != nil:
			offered, err := s.gifts.GetByID(ctx, *in.OfferedGiftID)
			if err != nil {
				return nil, err
			}
			if offered.OwnerID != senderID {
				return nil, apperror.New(apperror.ErrCodeForbidden, "встречный подарок принадлежит другому пользователю")
			}
			if offered.Status != models.GiftStatusFree {
				return nil, apperror.New(apperror.ErrCodeConflict, "встречный подарок уже занят другой сделкой")
			}
			offer.OfferedGiftID = in.OfferedGiftID
		case in.OfferedTitle != nil && *in.OfferedTitle != "":
			if err := validation.ValidateGiftTitle(*in.OfferedTitle); err != nil {
				return nil, apperror.New(apperror.ErrCodeValidation, err.Error())
			}
			offer.OfferedTitle = in.OfferedTitle
			offer.OfferedDescription = in.OfferedDescription
			offer.OfferedImageURL = in.OfferedImageURL
		default:
			return nil, apperror.New(apperror.ErrCodeValidation, "для обмена нужен встречный подарок или его описание")
		}
	}

	if err := s.offers.Create(ctx, offer); err != nil {
		return nil, err
	}

	notify(s.pusher, gift.OwnerID, models.NotificationTypeOffer, &offer.ID,
		fmt.Sprintf("Новый оффер на «%s»", gift.Title))

	return offer, nil
}

// GetOffer возвращает оффер участнику сделки вместе с подарками.
func (s *OfferService) GetOffer(ctx context.Context, offerID, userID uuid.UUID) (*models.Offer, error) {
	offer, err := s.offers.GetByID(ctx, offerID)
	if err != nil {
		return nil, err
	}
	if !offer.Participant(userID) {
		return nil, apperror.ErrForbidden
	}

	if gift, err := s.gifts.GetByID(ctx, offer.GiftID); err == nil {
		offer.Gift = gift
	}
	if offer.OfferedGiftID != nil {
		if gift, err := s.gifts.GetByID(ctx, *offer.OfferedGiftID); err == nil {
			offer.OfferedGift = gift
		}
	}

	return offer, nil
}

// ListSent возвращает офферы, отправленные пользователем.
func (s *OfferService) ListSent(ctx context.Context, senderID uuid.UUID) ([]models.Offer, error) {
	return s.offers.ListSent(ctx, senderID)
}

// ListReceived возвращает офферы на подарки пользователя.
func (s *OfferService) ListReceived(ctx context.Context, ownerID uuid.UUID) ([]models.Offer, error) {
	return s.offers.ListReceived(ctx, ownerID)
}

// AcceptOffer принимает оффер владельцем подарка. Конкурирующие pending
// офферы на тот же подарок гаснут, их отправители получают уведомление.
func (s *OfferService) AcceptOffer(ctx context.Context, offerID, ownerID uuid.UUID) (*models.Offer, error) {
	result, err := s.offers.Accept(ctx, offerID, ownerID)
	if err != nil {
		return nil, err
	}

	notify(s.pusher, result.Offer.SenderID, models.NotificationTypeOffer, &result.Offer.ID,
		"Ваш оффер принят")
	for _, senderID := range result.ExpiredSenders {
		notify(s.pusher, senderID, models.NotificationTypeOffer, &result.Offer.ID,
			"Подарок уже обещан другому участнику, ваш оффер истёк")
	}

	return result.Offer, nil
}

// RejectOffer отклоняет оффер владельцем подарка.
func (s *OfferService) RejectOffer(ctx context.Context, offerID, ownerID uuid.UUID) (*models.Offer, error) {
	offer, err := s.offers.Reject(ctx, offerID, ownerID)
	if err != nil {
		return nil, err
	}

	notify(s.pusher, offer.SenderID, models.NotificationTypeOffer, &offer.ID,
		"Ваш оффер отклонён")

	return offer, nil
}

// DeleteOffer удаляет pending оффер его отправителем.
func (s *OfferService) DeleteOffer(ctx context.Context, offerID, senderID uuid.UUID) error {
	return s.offers.Delete(ctx, offerID, senderID)
}

// SendMessage добавляет сообщение в чат сделки и уведомляет второго участника.
func (s *OfferService) SendMessage(ctx context.Context, offerID, senderID uuid.UUID, content string) (*models.OfferMessage, error) {
	if err := validation.ValidateMessageContent(content); err != nil {
		return nil, apperror.New(apperror.ErrCodeValidation, err.Error())
	}

	offer, err := s.offers.GetByID(ctx, offerID)
	if err != nil {
		return nil, err
	}
	if !offer.Participant(senderID) {
		return nil, apperror.ErrForbidden
	}

	msg := &models.OfferMessage{
		OfferID:  offerID,
		SenderID: senderID,
		Content:  content,
	}
	if err := s.messages.Create(ctx, msg); err != nil {
		return nil, err
	}

	notify(s.pusher, offer.Counterpart(senderID), models.NotificationTypeMessage, &offer.ID,
		"Новое сообщение по сделке")

	return msg, nil
}

// ListMessages возвращает чат сделки участнику.
func (s *OfferService) ListMessages(ctx context.Context, offerID, userID uuid.UUID) ([]models.OfferMessage, error) {
	offer, err := s.offers.GetByID(ctx, offerID)
	if err != nil {
		return nil, err
	}
	if !offer.Participant(userID) {
		return nil, apperror.ErrForbidden
	}

	return s.messages.ListByOffer(ctx, offerID)
}

// DeleteMessage удаляет сообщение его автором.
func (s *OfferService) DeleteMessage(ctx context.Context, messageID, senderID uuid.UUID) error {
	return s.messages.Delete(ctx, messageID, senderID)
}

package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/ignatzorin/giftcycle-backend/internal/models"
	"github.com/ignatzorin/giftcycle-backend/internal/validation"
)

// GiftRepositoryInterface описывает зависимости GiftService от слоя хранилища.
type GiftRepositoryInterface interface {
	Create(ctx context.Context, gift *models.Gift) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Gift, error)
	ListAvailable(ctx context.Context, excludeOwner uuid.UUID, limit, offset int) ([]models.Gift, error)
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.Gift, error)
	Delete(ctx context.Context, giftID, ownerID uuid.UUID) error
}

// GiftService содержит бизнес-логику каталога подарков.
type GiftService struct {
	repo GiftRepositoryInterface
}

// NewGiftService создаёт сервис подарков.
func NewGiftService(repo GiftRepositoryInterface) *GiftService {
	return &GiftService{repo: repo}
}

// CreateGiftInput содержит данные нового подарка.
type CreateGiftInput struct {
	Title          string
	Description    string
	Category       *string
	ImageURL       *string
	PriceCents     int64
	ParcelWeightKg float64
}

// CreateGift публикует новый подарок владельца.
func (s *GiftService) CreateGift(ctx context.Context, ownerID uuid.UUID, in CreateGiftInput) (*models.Gift, error) {
	if err := validation.ValidateGiftTitle(in.Title); err != nil {
		return nil, fmt.Errorf("gift service: %w", err)
	}
	if err := validation.ValidateGiftDescription(in.Description); err != nil {
		return nil, fmt.Errorf("gift service: %w", err)
	}
	if err := validation.ValidateCategory(in.Category); err != nil {
		return nil, fmt.Errorf("gift service: %w", err)
	}
	if err := validation.ValidatePriceCents(in.PriceCents); err != nil {
		return nil, fmt.Errorf("gift service: %w", err)
	}
	if err := validation.ValidateParcelWeight(in.ParcelWeightKg); err != nil {
		return nil, fmt.Errorf("gift service: %w", err)
	}

	gift := &models.Gift{
		OwnerID:        ownerID,
		Title:          in.Title,
		Description:    in.Description,
		Category:       in.Category,
		ImageURL:       in.ImageURL,
		PriceCents:     in.PriceCents,
		ParcelWeightKg: in.ParcelWeightKg,
	}

	if err := s.repo.Create(ctx, gift); err != nil {
		return nil, err
	}

	return gift, nil
}

// GetGift возвращает подарок по идентификатору.
func (s *GiftService) GetGift(ctx context.Context, id uuid.UUID) (*models.Gift, error) {
	return s.repo.GetByID(ctx, id)
}

// ListAvailable возвращает ленту свободных подарков, кроме подарков самого
// пользователя.
func (s *GiftService) ListAvailable(ctx context.Context, viewerID uuid.UUID, limit, offset int) ([]models.Gift, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	return s.repo.ListAvailable(ctx, viewerID, limit, offset)
}

// ListMine возвращает подарки пользователя.
func (s *GiftService) ListMine(ctx context.Context, ownerID uuid.UUID) ([]models.Gift, error) {
	return s.repo.ListByOwner(ctx, ownerID)
}

// DeleteGift удаляет свободный подарок владельца.
func (s *GiftService) DeleteGift(ctx context.Context, giftID, ownerID uuid.UUID) error {
	return s.repo.Delete(ctx, giftID, ownerID)
}

package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/giftcycle-backend/internal/models"
)

// ErrGiftNotFound возвращается, когда подарок не найден.
var ErrGiftNotFound = errors.New("gift not found")

// GiftRepository отвечает за работу с таблицей gifts.
type GiftRepository struct {
	db *sqlx.DB
}

// NewGiftRepository создаёт экземпляр репозитория.
func NewGiftRepository(db *sqlx.DB) *GiftRepository {
	return &GiftRepository{db: db}
}

// Create создаёт новый подарок.
func (r *GiftRepository) Create(ctx context.Context, gift *models.Gift) error {
	query := `
		INSERT INTO gifts (owner_id, title, description, category, image_url, price_cents, parcel_weight_kg, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 'free')
		RETURNING id, status, created_at, updated_at
	`

	if err := r.db.QueryRowxContext(
		ctx, query,
		gift.OwnerID, gift.Title, gift.Description, gift.Category,
		gift.ImageURL, gift.PriceCents, gift.ParcelWeightKg,
	).Scan(&gift.ID, &gift.Status, &gift.CreatedAt, &gift.UpdatedAt); err != nil {
		return fmt.Errorf("gift repository: create %w", err)
	}

	return nil
}

// GetByID возвращает подарок по идентификатору.
func (r *GiftRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Gift, error) {
	var gift models.Gift
	if err := r.db.GetContext(ctx, &gift, `SELECT * FROM gifts WHERE id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrGiftNotFound
		}
		return nil, fmt.Errorf("gift repository: get by id %w", err)
	}

	return &gift, nil
}

// ListAvailable возвращает свободные подарки, кроме принадлежащих excludeOwner.
func (r *GiftRepository) ListAvailable(ctx context.Context, excludeOwner uuid.UUID, limit, offset int) ([]models.Gift, error) {
	var gifts []models.Gift
	query := `
		SELECT * FROM gifts
		WHERE status = 'free' AND owner_id != $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	if err := r.db.SelectContext(ctx, &gifts, query, excludeOwner, limit, offset); err != nil {
		return nil, fmt.Errorf("gift repository: list available %w", err)
	}

	return gifts, nil
}

// ListByOwner возвращает подарки пользователя.
func (r *GiftRepository) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.Gift, error) {
	var gifts []models.Gift
	query := `SELECT * FROM gifts WHERE owner_id = $1 ORDER BY created_at DESC`
	if err := r.db.SelectContext(ctx, &gifts, query, ownerID); err != nil {
		return nil, fmt.Errorf("gift repository: list by owner %w", err)
	}

	return gifts, nil
}

// Delete удаляет свободный подарок владельца. Залоченный подарок
// участвует в принятой сделке и удалению не подлежит.
func (r *GiftRepository) Delete(ctx context.Context, giftID, ownerID uuid.UUID) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM gifts WHERE id = $1 AND owner_id = $2 AND status = 'free'`,
		giftID, ownerID,
	)
	if err != nil {
		return fmt.Errorf("gift repository: delete %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return ErrGiftNotFound
	}

	return nil
}

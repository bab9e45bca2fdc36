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

// ErrAddressNotFound возвращается, когда адрес участника не найден.
var ErrAddressNotFound = errors.New("swap address not found")

// AddressRepository отвечает за таблицу swap_addresses.
type AddressRepository struct {
	db *sqlx.DB
}

// NewAddressRepository создаёт экземпляр репозитория.
func NewAddressRepository(db *sqlx.DB) *AddressRepository {
	return &AddressRepository{db: db}
}

// Upsert сохраняет адрес участника сделки; повторная отправка формы
// перезаписывает предыдущий адрес.
func (r *AddressRepository) Upsert(ctx context.Context, a *models.SwapAddress) error {
	query := `
		INSERT INTO swap_addresses (
			offer_id, user_id, full_name, address_line1, address_line2,
			city, state, zip, country, phone, parcel_weight_kg
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (offer_id, user_id) DO UPDATE
		SET full_name = EXCLUDED.full_name,
			address_line1 = EXCLUDED.address_line1,
			address_line2 = EXCLUDED.address_line2,
			city = EXCLUDED.city,
			state = EXCLUDED.state,
			zip = EXCLUDED.zip,
			country = EXCLUDED.country,
			phone = EXCLUDED.phone,
			parcel_weight_kg = EXCLUDED.parcel_weight_kg,
			updated_at = NOW()
		RETURNING id, created_at, updated_at
	`
	if err := r.db.QueryRowxContext(
		ctx, query,
		a.OfferID, a.UserID, a.FullName, a.AddressLine1, a.AddressLine2,
		a.City, a.State, a.Zip, a.Country, a.Phone, a.ParcelWeightKg,
	).Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return fmt.Errorf("address repository: upsert %w", err)
	}

	return nil
}

// GetByOfferAndUser возвращает адрес участника по сделке.
func (r *AddressRepository) GetByOfferAndUser(ctx context.Context, offerID, userID uuid.UUID) (*models.SwapAddress, error) {
	var address models.SwapAddress
	query := `SELECT * FROM swap_addresses WHERE offer_id = $1 AND user_id = $2`
	if err := r.db.GetContext(ctx, &address, query, offerID, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAddressNotFound
		}
		return nil, fmt.Errorf("address repository: get by offer and user %w", err)
	}

	return &address, nil
}

// ListByOffer возвращает адреса участников сделки.
func (r *AddressRepository) ListByOffer(ctx context.Context, offerID uuid.UUID) ([]models.SwapAddress, error) {
	var addresses []models.SwapAddress
	query := `SELECT * FROM swap_addresses WHERE offer_id = $1 ORDER BY created_at ASC`
	if err := r.db.SelectContext(ctx, &addresses, query, offerID); err != nil {
		return nil, fmt.Errorf("address repository: list by offer %w", err)
	}

	return addresses, nil
}

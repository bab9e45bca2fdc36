package models

import (
	"time"

	"github.com/google/uuid"
)

// SwapAddress — адрес участника защищённого обмена. Upsert по паре
// (offer_id, user_id): повторная отправка формы перезаписывает адрес.
type SwapAddress struct {
	ID             uuid.UUID `db:"id" json:"id"`
	OfferID        uuid.UUID `db:"offer_id" json:"offer_id"`
	UserID         uuid.UUID `db:"user_id" json:"user_id"`
	FullName       string    `db:"full_name" json:"full_name"`
	AddressLine1   string    `db:"address_line1" json:"address_line1"`
	AddressLine2   *string   `db:"address_line2" json:"address_line2,omitempty"`
	City           string    `db:"city" json:"city"`
	State          string    `db:"state" json:"state"`
	Zip            string    `db:"zip" json:"zip"`
	Country        string    `db:"country" json:"country"`
	Phone          *string   `db:"phone" json:"phone,omitempty"`
	ParcelWeightKg float64   `db:"parcel_weight_kg" json:"parcel_weight_kg"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// Complete проверяет, что адреса достаточно для запроса ставок доставки.
func (a *SwapAddress) Complete() bool {
	return a.FullName != "" && a.AddressLine1 != "" && a.City != "" &&
		a.State != "" && a.Zip != "" && a.Country != ""
}

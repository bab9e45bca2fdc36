package models

import (
	"time"

	"github.com/google/uuid"
)

// Gift описывает подарок, выставленный пользователем.
type Gift struct {
	ID             uuid.UUID `db:"id" json:"id"`
	OwnerID        uuid.UUID `db:"owner_id" json:"owner_id"`
	Title          string    `db:"title" json:"title"`
	Description    string    `db:"description" json:"description"`
	Category       *string   `db:"category" json:"category,omitempty"`
	ImageURL       *string   `db:"image_url" json:"image_url,omitempty"`
	PriceCents     int64     `db:"price_cents" json:"price_cents"`
	ParcelWeightKg float64   `db:"parcel_weight_kg" json:"parcel_weight_kg"`
	Status         string    `db:"status" json:"status"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

package models

import (
	"time"

	"github.com/google/uuid"
)

// Shipment — строка леджера отправлений сделки. Для обмена на сделку
// приходится максимум два ряда, по одному на каждого отправителя;
// уникальность пары (offer_id, sender_id) гарантирует БД.
type Shipment struct {
	ID             uuid.UUID `db:"id" json:"id"`
	OfferID        uuid.UUID `db:"offer_id" json:"offer_id"`
	SenderID       uuid.UUID `db:"sender_id" json:"sender_id"`
	RecipientID    uuid.UUID `db:"recipient_id" json:"recipient_id"`
	RateID         string    `db:"rate_id" json:"rate_id"`
	Carrier        *string   `db:"carrier" json:"carrier,omitempty"`
	Service        *string   `db:"service" json:"service,omitempty"`
	CostCents      *int64    `db:"cost_cents" json:"cost_cents,omitempty"`
	TrackingNumber *string   `db:"tracking_number" json:"tracking_number,omitempty"`
	TrackingURL    *string   `db:"tracking_url" json:"tracking_url,omitempty"`
	LabelURL       *string   `db:"label_url" json:"label_url,omitempty"`
	Status         string    `db:"status" json:"status"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

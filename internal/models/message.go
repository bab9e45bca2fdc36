package models

import (
	"time"

	"github.com/google/uuid"
)

// OfferMessage — сообщение в чате оффера между участниками сделки.
type OfferMessage struct {
	ID        uuid.UUID `db:"id" json:"id"`
	OfferID   uuid.UUID `db:"offer_id" json:"offer_id"`
	SenderID  uuid.UUID `db:"sender_id" json:"sender_id"`
	Content   string    `db:"content" json:"content"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

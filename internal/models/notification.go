package models

import (
	"time"

	"github.com/google/uuid"
)

// Notification описывает уведомление пользователя.
type Notification struct {
	ID        uuid.UUID  `db:"id" json:"id"`
	UserID    uuid.UUID  `db:"user_id" json:"user_id"`
	Type      string     `db:"type" json:"type"`
	OfferID   *uuid.UUID `db:"offer_id" json:"offer_id,omitempty"`
	Message   string     `db:"message" json:"message"`
	Link      *string    `db:"link" json:"link,omitempty"`
	IsRead    bool       `db:"is_read" json:"is_read"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
}

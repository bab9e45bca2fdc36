package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/giftcycle-backend/internal/models"
)

// ErrMessageNotFound возвращается, когда сообщение не найдено.
var ErrMessageNotFound = errors.New("message not found")

// MessageRepository отвечает за чат оффера.
type MessageRepository struct {
	db *sqlx.DB
}

// NewMessageRepository создаёт экземпляр репозитория.
func NewMessageRepository(db *sqlx.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

// Create добавляет сообщение в чат оффера.
func (r *MessageRepository) Create(ctx context.Context, m *models.OfferMessage) error {
	query := `
		INSERT INTO offer_messages (offer_id, sender_id, content)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
	`
	if err := r.db.QueryRowxContext(ctx, query, m.OfferID, m.SenderID, m.Content).
		Scan(&m.ID, &m.CreatedAt); err != nil {
		return fmt.Errorf("message repository: create %w", err)
	}

	return nil
}

// ListByOffer возвращает сообщения чата оффера в хронологическом порядке.
func (r *MessageRepository) ListByOffer(ctx context.Context, offerID uuid.UUID) ([]models.OfferMessage, error) {
	var messages []models.OfferMessage
	query := `SELECT * FROM offer_messages WHERE offer_id = $1 ORDER BY created_at ASC`
	if err := r.db.SelectContext(ctx, &messages, query, offerID); err != nil {
		return nil, fmt.Errorf("message repository: list by offer %w", err)
	}

	return messages, nil
}

// Delete удаляет сообщение его автором.
func (r *MessageRepository) Delete(ctx context.Context, messageID, senderID uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM offer_messages WHERE id = $1 AND sender_id = $2`, messageID, senderID)
	if err != nil {
		return fmt.Errorf("message repository: delete %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return ErrMessageNotFound
	}

	return nil
}

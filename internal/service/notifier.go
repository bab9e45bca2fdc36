package service

import (
	"github.com/google/uuid"

	"github.com/ignatzorin/giftcycle-backend/internal/logger"
	"github.com/ignatzorin/giftcycle-backend/internal/models"
)

// NotificationPusher доставляет уведомление получателю: сохраняет его в БД
// и отправляет по WebSocket.
type NotificationPusher interface {
	NotifyUser(n *models.Notification) error
}

// notify отправляет уведомление и глотает ошибку доставки: сбой
// уведомления не должен ронять бизнес-операцию.
func notify(pusher NotificationPusher, userID uuid.UUID, notifType string, offerID *uuid.UUID, message string) {
	if pusher == nil {
		return
	}

	n := &models.Notification{
		UserID:  userID,
		Type:    notifType,
		OfferID: offerID,
		Message: message,
	}

	if err := pusher.NotifyUser(n); err != nil && logger.Log != nil {
		logger.Log.WithFields(map[string]interface{}{
			"user_id": userID,
			"type":    notifType,
			"error":   err.Error(),
		}).Warn("не удалось доставить уведомление")
	}
}

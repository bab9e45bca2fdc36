package ws

import (
	"context"

	"github.com/ignatzorin/giftcycle-backend/internal/models"
)

// NotificationServiceAdapter адаптирует NotificationService для использования в Hub.
type NotificationServiceAdapter struct {
	service interface {
		SaveNotification(ctx context.Context, n *models.Notification) error
	}
}

// NewNotificationServiceAdapter создаёт новый адаптер.
func NewNotificationServiceAdapter(service interface {
	SaveNotification(ctx context.Context, n *models.Notification) error
}) *NotificationServiceAdapter {
	return &NotificationServiceAdapter{service: service}
}

// SaveNotification реализует интерфейс NotificationSaver.
func (a *NotificationServiceAdapter) SaveNotification(ctx context.Context, n *models.Notification) error {
	return a.service.SaveNotification(ctx, n)
}

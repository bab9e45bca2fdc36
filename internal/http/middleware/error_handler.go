package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/giftcycle-backend/internal/logger"
	"github.com/ignatzorin/giftcycle-backend/internal/pkg/apperror"
	"github.com/ignatzorin/giftcycle-backend/internal/repository"
)

// ErrorHandler обрабатывает ошибки централизованно.
// Маскирует внутренние ошибки и возвращает понятные сообщения клиенту.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		// Проверяем, не был ли уже отправлен ответ
		if c.Writer.Written() {
			return
		}

		if len(c.Errors) == 0 {
			return
		}

		err := c.Errors.Last().Err

		// Логируем ошибку
		if logger.Log != nil {
			logger.Log.WithFields(logrus.Fields{
				"error":  err.Error(),
				"path":   c.Request.URL.Path,
				"method": c.Request.Method,
			}).Error("Request error")
		}

		// Типизированные ошибки приложения несут статус и сообщение сами.
		var appErr *apperror.AppError
		if errors.As(err, &appErr) {
			c.JSON(appErr.HTTPStatus, gin.H{"error": appErr.Message, "code": appErr.Code})
			return
		}

		if status, message, ok := mapRepositoryError(err); ok {
			c.JSON(status, gin.H{"error": message})
			return
		}

		statusCode := http.StatusInternalServerError
		message := "внутренняя ошибка сервера"

		if errStr := err.Error(); errStr != "" && !containsInternalKeywords(errStr) {
			// Если ошибка содержит понятное сообщение, используем его
			message = errStr
			if contains(errStr, "неверный") || contains(errStr, "невалид") || contains(errStr, "должен") || contains(errStr, "обязател") {
				statusCode = http.StatusBadRequest
			} else if contains(errStr, "нет прав") || contains(errStr, "не авторизован") {
				statusCode = http.StatusForbidden
			}
		}

		c.JSON(statusCode, gin.H{"error": message})
	}
}

// mapRepositoryError переводит сентинельные ошибки хранилища в HTTP-ответ.
func mapRepositoryError(err error) (int, string, bool) {
	switch {
	case errors.Is(err, repository.ErrUserNotFound):
		return http.StatusNotFound, "пользователь не найден", true
	case errors.Is(err, repository.ErrGiftNotFound):
		return http.StatusNotFound, "подарок не найден", true
	case errors.Is(err, repository.ErrOfferNotFound):
		return http.StatusNotFound, "оффер не найден", true
	case errors.Is(err, repository.ErrPaymentNotFound):
		return http.StatusNotFound, "платёж не найден", true
	case errors.Is(err, repository.ErrShipmentNotFound):
		return http.StatusNotFound, "отправление не найдено", true
	case errors.Is(err, repository.ErrAddressNotFound):
		return http.StatusNotFound, "адрес не найден", true
	case errors.Is(err, repository.ErrDisputeNotFound):
		return http.StatusNotFound, "спор не найден", true
	case errors.Is(err, repository.ErrMessageNotFound):
		return http.StatusNotFound, "сообщение не найдено", true
	case errors.Is(err, repository.ErrNotificationNotFound):
		return http.StatusNotFound, "уведомление не найдено", true
	case errors.Is(err, repository.ErrNotParticipant):
		return http.StatusForbidden, "вы не участвуете в этой сделке", true
	case errors.Is(err, repository.ErrDuplicateOffer):
		return http.StatusConflict, "вы уже сделали оффер на этот подарок", true
	case errors.Is(err, repository.ErrGiftUnavailable):
		return http.StatusConflict, "подарок уже занят другой сделкой", true
	case errors.Is(err, repository.ErrInvalidTransition):
		return http.StatusConflict, "операция недопустима в текущем статусе сделки", true
	case errors.Is(err, repository.ErrShipmentExists):
		return http.StatusConflict, "лейбл по этой сделке уже куплен", true
	case errors.Is(err, repository.ErrDisputeAlreadyOpen):
		return http.StatusConflict, "по этой сделке уже открыт спор", true
	case errors.Is(err, repository.ErrDisputeResolved):
		return http.StatusConflict, "спор уже разрешён", true
	case errors.Is(err, repository.ErrUnsupportedResolution):
		return http.StatusUnprocessableEntity, "такая резолюция для этого типа сделки не поддерживается", true
	case errors.Is(err, repository.ErrMissingPaymentIntent):
		return http.StatusUnprocessableEntity, "у платежа нет идентификатора для возврата", true
	}
	return 0, "", false
}

// containsInternalKeywords проверяет, содержит ли строка ключевые слова внутренних ошибок.
func containsInternalKeywords(s string) bool {
	keywords := []string{
		"sql:",
		"database",
		"connection",
		"timeout",
		"internal",
		"panic",
		"runtime",
	}

	for _, keyword := range keywords {
		if contains(s, keyword) {
			return true
		}
	}
	return false
}

// contains проверяет, содержит ли строка подстроку (case-insensitive).
func contains(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

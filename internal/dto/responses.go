package dto

import (
	"github.com/ignatzorin/giftcycle-backend/internal/models"
)

// ErrorResponse — стандартный формат ошибки API.
type ErrorResponse struct {
	Error string `json:"error"`
}

// SuccessResponse — стандартный формат успешного ответа с данными.
type SuccessResponse struct {
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// CheckoutResponse — платёж леджера и URL Stripe-сессии для редиректа.
type CheckoutResponse struct {
	Payment     *models.Payment `json:"payment"`
	CheckoutURL string          `json:"checkout_url"`
}

// ShipmentResponse — купленный лейбл и обновлённая сделка.
type ShipmentResponse struct {
	Shipment *models.Shipment `json:"shipment"`
	Offer    *models.Offer    `json:"offer"`
}

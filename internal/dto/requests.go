package dto

import "github.com/google/uuid"

// CreateGiftRequest — публикация нового подарка.
type CreateGiftRequest struct {
	Title          string  `json:"title" binding:"required"`
	Description    string  `json:"description" binding:"required"`
	Category       *string `json:"category"`
	ImageURL       *string `json:"image_url"`
	PriceCents     int64   `json:"price_cents" binding:"required"`
	ParcelWeightKg float64 `json:"parcel_weight_kg" binding:"required"`
}

// CreateOfferRequest — новый оффер на подарок.
type CreateOfferRequest struct {
	GiftID             uuid.UUID  `json:"gift_id" binding:"required"`
	Type               string     `json:"type" binding:"required"`
	OfferedGiftID      *uuid.UUID `json:"offered_gift_id"`
	OfferedTitle       *string    `json:"offered_title"`
	OfferedDescription *string    `json:"offered_description"`
	OfferedImageURL    *string    `json:"offered_image_url"`
}

// AddressRequest — адрес участника сделки и вес его посылки.
type AddressRequest struct {
	FullName       string  `json:"full_name" binding:"required"`
	AddressLine1   string  `json:"address_line1" binding:"required"`
	AddressLine2   *string `json:"address_line2"`
	City           string  `json:"city" binding:"required"`
	State          string  `json:"state" binding:"required"`
	Zip            string  `json:"zip" binding:"required"`
	Country        string  `json:"country" binding:"required"`
	Phone          *string `json:"phone"`
	ParcelWeightKg float64 `json:"parcel_weight_kg"`
}

// ShippingAddress — адрес в запросе расчёта доставки.
type ShippingAddress struct {
	Name    string  `json:"name" binding:"required"`
	Street1 string  `json:"street1" binding:"required"`
	Street2 *string `json:"street2"`
	City    string  `json:"city" binding:"required"`
	State   string  `json:"state" binding:"required"`
	Zip     string  `json:"zip" binding:"required"`
	Country string  `json:"country" binding:"required"`
	Phone   *string `json:"phone"`
}

// ShippingRatesRequest — расчёт ставок доставки между произвольными адресами.
type ShippingRatesRequest struct {
	From           ShippingAddress `json:"from" binding:"required"`
	To             ShippingAddress `json:"to" binding:"required"`
	ParcelWeightKg float64         `json:"parcel_weight_kg" binding:"required,gt=0"`
}

// PurchaseLabelRequest — покупка лейбла по выбранной ставке.
type PurchaseLabelRequest struct {
	RateID string `json:"rate_id" binding:"required"`
}

// ShippingCheckoutRequest — оплата доставки участником обмена.
type ShippingCheckoutRequest struct {
	RateID    string `json:"rate_id" binding:"required"`
	CostCents int64  `json:"cost_cents" binding:"required"`
}

// MarkShippedRequest — отметка заказа отправленным; трек-номер и
// перевозчик необязательны.
type MarkShippedRequest struct {
	TrackingNumber *string `json:"tracking_number"`
	Carrier        *string `json:"carrier"`
}

// SelectRateRequest — фиксация ставки доставки покупателем.
type SelectRateRequest struct {
	RateID    string `json:"rate_id" binding:"required"`
	CostCents int64  `json:"cost_cents"`
	Carrier   string `json:"carrier"`
	Service   string `json:"service"`
}

// OpenDisputeRequest — открытие спора участником сделки.
type OpenDisputeRequest struct {
	DealType    string  `json:"deal_type" binding:"required"`
	ReasonCode  string  `json:"reason_code" binding:"required"`
	Description *string `json:"description"`
}

// ResolveDisputeRequest — резолюция спора администратором.
type ResolveDisputeRequest struct {
	Action string `json:"action" binding:"required"`
	Note   string `json:"note"`
}

// SendMessageRequest — сообщение в чате сделки.
type SendMessageRequest struct {
	Content string `json:"content" binding:"required"`
}

package models

import (
	"time"

	"github.com/google/uuid"
)

// Offer описывает оффер на подарок — сделку между отправителем и владельцем.
// Один и тот же ряд несёт и жизненный цикл самого оффера (pending/accepted/...),
// и статусы защищённого обмена либо продажи после принятия.
type Offer struct {
	ID       uuid.UUID `db:"id" json:"id"`
	GiftID   uuid.UUID `db:"gift_id" json:"gift_id"`
	SenderID uuid.UUID `db:"sender_id" json:"sender_id"`
	OwnerID  uuid.UUID `db:"owner_id" json:"owner_id"`
	Type     string    `db:"type" json:"type"`
	Status   string    `db:"status" json:"status"`

	// Встречное предложение при обмене: либо ссылка на подарок отправителя,
	// либо произвольное описание.
	OfferedGiftID      *uuid.UUID `db:"offered_gift_id" json:"offered_gift_id,omitempty"`
	OfferedTitle       *string    `db:"offered_title" json:"offered_title,omitempty"`
	OfferedDescription *string    `db:"offered_description" json:"offered_description,omitempty"`
	OfferedImageURL    *string    `db:"offered_image_url" json:"offered_image_url,omitempty"`

	// Машина состояний защищённого обмена
	SwapStatus          SwapStatus `db:"swap_status" json:"swap_status"`
	SwapSenderConfirmed bool       `db:"swap_sender_confirmed" json:"swap_sender_confirmed"`
	SwapOwnerConfirmed  bool       `db:"swap_owner_confirmed" json:"swap_owner_confirmed"`

	// Машина состояний продажи и зафиксированная цена
	SaleStatus        SaleStatus `db:"sale_status" json:"sale_status"`
	ShippingRateID    *string    `db:"shipping_rate_id" json:"shipping_rate_id,omitempty"`
	ShippingCostCents *int64     `db:"shipping_cost_cents" json:"shipping_cost_cents,omitempty"`
	ShippingCarrier   *string    `db:"shipping_carrier" json:"shipping_carrier,omitempty"`
	ShippingService   *string    `db:"shipping_service" json:"shipping_service,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`

	// Заполняются join-ами в репозитории для выдачи, в таблице offers не хранятся.
	Gift        *Gift `json:"gift,omitempty"`
	OfferedGift *Gift `json:"offered_gift,omitempty"`
}

// Participant сообщает, участвует ли пользователь в сделке.
func (o *Offer) Participant(userID uuid.UUID) bool {
	return o.SenderID == userID || o.OwnerID == userID
}

// Counterpart возвращает второго участника сделки относительно userID.
func (o *Offer) Counterpart(userID uuid.UUID) uuid.UUID {
	if o.SenderID == userID {
		return o.OwnerID
	}
	return o.SenderID
}

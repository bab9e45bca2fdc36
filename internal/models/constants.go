package models

// Роли пользователей
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// GiftStatus константы статусов подарка
const (
	GiftStatusFree   = "free"
	GiftStatusLocked = "locked"
)

// OfferType константы типов офферов
const (
	OfferTypeExchange = "exchange"
	OfferTypeBuy      = "buy"
)

// OfferStatus константы статусов офферов
const (
	OfferStatusPending  = "pending"
	OfferStatusAccepted = "accepted"
	OfferStatusRejected = "rejected"
	OfferStatusExpired  = "expired"
)

// PaymentStatus константы статусов платежей
const (
	PaymentStatusPending   = "pending"
	PaymentStatusSucceeded = "succeeded"
	PaymentStatusRefunded  = "refunded"
)

// ShipmentStatus константы статусов отправлений
const (
	ShipmentStatusLabelCreated = "label_created"
	ShipmentStatusShipped      = "shipped"
	ShipmentStatusInTransit    = "in_transit"
	ShipmentStatusDelivered    = "delivered"
)

// Типы сделок для споров
const (
	DealTypeSale        = "sale"
	DealTypeSwapEqual   = "swap_equal"
	DealTypeSwapUnequal = "swap_unequal"
)

// Роли открывшего спор
const (
	DisputeRoleBuyer  = "buyer"
	DisputeRoleSeller = "seller"
	DisputeRolePartyA = "party_a"
	DisputeRolePartyB = "party_b"
)

// Действия резолюции спора
const (
	ResolutionRefundBuyer     = "refund_buyer"
	ResolutionRefundBothSides = "refund_both_sides"
	ResolutionReject          = "reject"
)

// Типы уведомлений
const (
	NotificationTypeOffer    = "offer"
	NotificationTypeMessage  = "message"
	NotificationTypeSwap     = "swap"
	NotificationTypeSale     = "sale"
	NotificationTypeDispute  = "dispute"
	NotificationTypeShipping = "shipping"
)

// ValidOfferTypes список валидных типов офферов
var ValidOfferTypes = map[string]struct{}{
	OfferTypeExchange: {},
	OfferTypeBuy:      {},
}

// ValidOfferStatuses список валидных статусов офферов
var ValidOfferStatuses = map[string]struct{}{
	OfferStatusPending:  {},
	OfferStatusAccepted: {},
	OfferStatusRejected: {},
	OfferStatusExpired:  {},
}

// ValidResolutions список валидных действий резолюции
var ValidResolutions = map[string]struct{}{
	ResolutionRefundBuyer:     {},
	ResolutionRefundBothSides: {},
	ResolutionReject:          {},
}

// ValidDealTypes список валидных типов сделок для споров
var ValidDealTypes = map[string]struct{}{
	DealTypeSale:        {},
	DealTypeSwapEqual:   {},
	DealTypeSwapUnequal: {},
}

package models

// SwapStatus описывает стадию защищённого обмена.
type SwapStatus string

// Статусы обмена (swap_status)
const (
	SwapStatusNone            SwapStatus = "none"
	SwapStatusPending         SwapStatus = "pending_swap"
	SwapStatusAwaitingPayment SwapStatus = "awaiting_payment"
	SwapStatusProtectedActive SwapStatus = "protected_active"
	SwapStatusShippingPartial SwapStatus = "shipping_partial"
	SwapStatusShippingCreated SwapStatus = "shipping_created"
	SwapStatusUnderDispute    SwapStatus = "under_dispute"
	SwapStatusCompleted       SwapStatus = "completed"
	SwapStatusFailed          SwapStatus = "failed_swap"
)

// swapTransitions — таблица допустимых переходов swap_status.
// Переход, которого нет в таблице, считается ошибкой конфликта,
// а не «пропущенной веткой if».
var swapTransitions = map[SwapStatus][]SwapStatus{
	SwapStatusNone:            {SwapStatusPending, SwapStatusAwaitingPayment},
	SwapStatusPending:         {SwapStatusAwaitingPayment},
	SwapStatusAwaitingPayment: {SwapStatusProtectedActive},
	SwapStatusProtectedActive: {SwapStatusShippingPartial, SwapStatusShippingCreated, SwapStatusCompleted, SwapStatusFailed},
	SwapStatusShippingPartial: {SwapStatusShippingCreated},
	SwapStatusShippingCreated: {SwapStatusCompleted, SwapStatusFailed},
	SwapStatusUnderDispute:    {SwapStatusFailed},
	SwapStatusCompleted:       {},
	SwapStatusFailed:          {},
}

// Valid проверяет, что значение входит в закрытый список статусов.
func (s SwapStatus) Valid() bool {
	_, ok := swapTransitions[s]
	return ok
}

// Terminal сообщает, является ли статус конечным.
func (s SwapStatus) Terminal() bool {
	return s == SwapStatusCompleted || s == SwapStatusFailed
}

// CanTransition проверяет допустимость перехода s -> next.
func (s SwapStatus) CanTransition(next SwapStatus) bool {
	for _, allowed := range swapTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// CanForceDispute сообщает, можно ли принудительно перевести обмен
// в under_dispute внешним решением (резолюция спора). Конечные статусы
// и none не переопределяются.
func (s SwapStatus) CanForceDispute() bool {
	return s != SwapStatusNone && !s.Terminal() && s != SwapStatusUnderDispute
}

// CanForceFail сообщает, можно ли принудительно провалить обмен
// решением по спору, минуя обычную таблицу переходов.
func (s SwapStatus) CanForceFail() bool {
	return s != SwapStatusNone && !s.Terminal()
}

// SaleStatus описывает стадию продажи.
type SaleStatus string

// Статусы продажи (sale_status)
const (
	SaleStatusNone                SaleStatus = "none"
	SaleStatusAwaitingShipping    SaleStatus = "awaiting_shipping_selection"
	SaleStatusAwaitingPayment     SaleStatus = "awaiting_buyer_payment"
	SaleStatusBuyerPaid           SaleStatus = "buyer_paid"
	SaleStatusShipped             SaleStatus = "shipped"
	SaleStatusCompleted           SaleStatus = "sale_completed"
	SaleStatusUnderDispute        SaleStatus = "under_dispute"
	SaleStatusRefunded            SaleStatus = "refunded"
)

var saleTransitions = map[SaleStatus][]SaleStatus{
	SaleStatusNone:             {SaleStatusAwaitingShipping},
	SaleStatusAwaitingShipping: {SaleStatusAwaitingPayment, SaleStatusNone},
	SaleStatusAwaitingPayment:  {SaleStatusBuyerPaid},
	SaleStatusBuyerPaid:        {SaleStatusShipped},
	SaleStatusShipped:          {SaleStatusCompleted},
	SaleStatusUnderDispute:     {SaleStatusRefunded},
	SaleStatusCompleted:        {},
	SaleStatusRefunded:         {},
}

// Valid проверяет, что значение входит в закрытый список статусов.
func (s SaleStatus) Valid() bool {
	_, ok := saleTransitions[s]
	return ok
}

// Terminal сообщает, является ли статус конечным.
func (s SaleStatus) Terminal() bool {
	return s == SaleStatusCompleted || s == SaleStatusRefunded
}

// CanTransition проверяет допустимость перехода s -> next.
func (s SaleStatus) CanTransition(next SaleStatus) bool {
	for _, allowed := range saleTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// CanForceDispute сообщает, можно ли принудительно перевести продажу
// в under_dispute при открытии спора.
func (s SaleStatus) CanForceDispute() bool {
	return s != SaleStatusNone && !s.Terminal() && s != SaleStatusUnderDispute
}

// CanForceRefund сообщает, можно ли принудительно перевести продажу
// в refunded решением по спору.
func (s SaleStatus) CanForceRefund() bool {
	return s != SaleStatusNone && !s.Terminal()
}

package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/giftcycle-backend/internal/dto"
	"github.com/ignatzorin/giftcycle-backend/internal/http/handlers/common"
	"github.com/ignatzorin/giftcycle-backend/internal/service"
)

// SaleHandler обслуживает продажу подарка: доставку, оплату и получение.
type SaleHandler struct {
	sales *service.SaleService
}

// NewSaleHandler создаёт хэндлер.
func NewSaleHandler(sales *service.SaleService) *SaleHandler {
	return &SaleHandler{sales: sales}
}

// FetchRates обрабатывает GET /offers/:id/sale/rates.
func (h *SaleHandler) FetchRates(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	offerID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	rates, err := h.sales.FetchRates(c.Request.Context(), offerID, userID)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"rates": rates})
}

// SelectRate обрабатывает POST /offers/:id/sale/select-rate.
func (h *SaleHandler) SelectRate(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	offerID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	var req dto.SelectRateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	offer, err := h.sales.SelectRate(c.Request.Context(), offerID, userID, service.SelectRateInput{
		RateID:    req.RateID,
		CostCents: req.CostCents,
		Carrier:   req.Carrier,
		Service:   req.Service,
	})
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, offer)
}

// CreateCheckout обрабатывает POST /offers/:id/sale/checkout.
func (h *SaleHandler) CreateCheckout(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	offerID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	payment, url, err := h.sales.CreateCheckout(c.Request.Context(), offerID, userID)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, dto.CheckoutResponse{
		Payment:     payment,
		CheckoutURL: url,
	})
}

// ConfirmPayment обрабатывает POST /payments/sale/confirm.
// Дергается success-редиректом фронта и вебхуком Stripe, повтор безопасен.
func (h *SaleHandler) ConfirmPayment(c *gin.Context) {
	var req struct {
		SessionID string `json:"session_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	offer, err := h.sales.ConfirmPayment(c.Request.Context(), req.SessionID)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, offer)
}

// CreateLabel обрабатывает POST /offers/:id/sale/label. Доступно продавцу
// после оплаты покупателя.
func (h *SaleHandler) CreateLabel(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	offerID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	shipment, offer, err := h.sales.CreateLabel(c.Request.Context(), offerID, userID)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, dto.ShipmentResponse{
		Shipment: shipment,
		Offer:    offer,
	})
}

// MarkShipped обрабатывает POST /offers/:id/sale/mark-shipped. Продавец
// передаёт трек-номер вручную либо полагается на покупку лейбла по ставке.
func (h *SaleHandler) MarkShipped(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	offerID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	var req dto.MarkShippedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	shipment, offer, err := h.sales.MarkShipped(c.Request.Context(), offerID, userID, req.TrackingNumber, req.Carrier)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, dto.ShipmentResponse{
		Shipment: shipment,
		Offer:    offer,
	})
}

// ConfirmDelivery обрабатывает POST /offers/:id/sale/confirm-delivery.
func (h *SaleHandler) ConfirmDelivery(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	offerID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	offer, err := h.sales.ConfirmDelivery(c.Request.Context(), offerID, userID)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, offer)
}

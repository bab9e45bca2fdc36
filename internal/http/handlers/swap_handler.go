package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/giftcycle-backend/internal/dto"
	"github.com/ignatzorin/giftcycle-backend/internal/http/handlers/common"
	"github.com/ignatzorin/giftcycle-backend/internal/service"
)

// SwapHandler обслуживает защищённый обмен: взносы, адреса, доставку
// и подтверждение получения.
type SwapHandler struct {
	swaps *service.SwapService
}

// NewSwapHandler создаёт хэндлер.
func NewSwapHandler(swaps *service.SwapService) *SwapHandler {
	return &SwapHandler{swaps: swaps}
}

// StartSwap обрабатывает POST /offers/:id/swap/start.
func (h *SwapHandler) StartSwap(c *gin.Context) {
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

	offer, err := h.swaps.StartSwap(c.Request.Context(), offerID, userID)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, offer)
}

// SaveAddress обрабатывает PUT /offers/:id/swap/address.
func (h *SwapHandler) SaveAddress(c *gin.Context) {
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

	var req dto.AddressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	address, err := h.swaps.SaveAddress(c.Request.Context(), offerID, userID, service.AddressInput{
		FullName:       req.FullName,
		AddressLine1:   req.AddressLine1,
		AddressLine2:   req.AddressLine2,
		City:           req.City,
		State:          req.State,
		Zip:            req.Zip,
		Country:        req.Country,
		Phone:          req.Phone,
		ParcelWeightKg: req.ParcelWeightKg,
	})
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, address)
}

// CreateFeeCheckout обрабатывает POST /offers/:id/swap/fee-checkout.
func (h *SwapHandler) CreateFeeCheckout(c *gin.Context) {
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

	payment, url, err := h.swaps.CreateFeeCheckout(c.Request.Context(), offerID, userID)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, dto.CheckoutResponse{
		Payment:     payment,
		CheckoutURL: url,
	})
}

// ConfirmFeePayment обрабатывает POST /payments/swap-fee/confirm.
// Дергается success-редиректом фронта и вебхуком Stripe, повтор безопасен.
func (h *SwapHandler) ConfirmFeePayment(c *gin.Context) {
	var req struct {
		SessionID string `json:"session_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	offer, err := h.swaps.ConfirmFeePayment(c.Request.Context(), req.SessionID)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, offer)
}

// FetchRates обрабатывает GET /offers/:id/swap/rates.
func (h *SwapHandler) FetchRates(c *gin.Context) {
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

	rates, err := h.swaps.FetchRates(c.Request.Context(), offerID, userID)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"rates": rates})
}

// CreateShippingCheckout обрабатывает POST /offers/:id/swap/shipping-checkout.
func (h *SwapHandler) CreateShippingCheckout(c *gin.Context) {
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

	var req dto.ShippingCheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	payment, url, err := h.swaps.CreateShippingCheckout(c.Request.Context(), offerID, userID, service.ShippingCheckoutInput{
		RateID:    req.RateID,
		CostCents: req.CostCents,
	})
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, dto.CheckoutResponse{
		Payment:     payment,
		CheckoutURL: url,
	})
}

// ConfirmShippingPayment обрабатывает POST /payments/swap-shipping/confirm.
// Дергается success-редиректом фронта и вебхуком Stripe, повтор безопасен.
func (h *SwapHandler) ConfirmShippingPayment(c *gin.Context) {
	var req struct {
		SessionID string `json:"session_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	shipment, offer, err := h.swaps.ConfirmShippingPayment(c.Request.Context(), req.SessionID)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, dto.ShipmentResponse{
		Shipment: shipment,
		Offer:    offer,
	})
}

// ConfirmReceipt обрабатывает POST /offers/:id/swap/confirm-receipt.
func (h *SwapHandler) ConfirmReceipt(c *gin.Context) {
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

	offer, err := h.swaps.ConfirmReceipt(c.Request.Context(), offerID, userID)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, offer)
}

// MarkFailed обрабатывает POST /offers/:id/swap/fail.
func (h *SwapHandler) MarkFailed(c *gin.Context) {
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

	offer, err := h.swaps.MarkFailed(c.Request.Context(), offerID, userID)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, offer)
}

// ListShipments обрабатывает GET /offers/:id/shipments.
func (h *SwapHandler) ListShipments(c *gin.Context) {
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

	shipments, err := h.swaps.ListShipments(c.Request.Context(), offerID, userID)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, shipments)
}

// ListPayments обрабатывает GET /offers/:id/payments.
func (h *SwapHandler) ListPayments(c *gin.Context) {
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

	payments, err := h.swaps.ListPayments(c.Request.Context(), offerID, userID)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, payments)
}

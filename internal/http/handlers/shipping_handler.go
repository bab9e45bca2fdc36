package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/giftcycle-backend/internal/dto"
	"github.com/ignatzorin/giftcycle-backend/internal/http/handlers/common"
	"github.com/ignatzorin/giftcycle-backend/internal/pkg/apperror"
	"github.com/ignatzorin/giftcycle-backend/internal/service"
	"github.com/ignatzorin/giftcycle-backend/internal/shipping/shippo"
)

// ShippingHandler — утилитарные эндпоинты доставки: расчёт ставок между
// произвольными адресами и покупка лейбла по ставке, без привязки к сделке.
type ShippingHandler struct {
	shipping service.ShippingProvider
}

// NewShippingHandler создаёт хэндлер.
func NewShippingHandler(shipping service.ShippingProvider) *ShippingHandler {
	return &ShippingHandler{shipping: shipping}
}

// Rates обрабатывает POST /shipping/rates.
func (h *ShippingHandler) Rates(c *gin.Context) {
	var req dto.ShippingRatesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	shipment, err := h.shipping.CreateShipment(
		c.Request.Context(),
		toShippoAddress(req.From),
		toShippoAddress(req.To),
		shippo.DefaultParcel(req.ParcelWeightKg),
	)
	if err != nil {
		c.Error(apperror.Wrap(err, apperror.ErrCodeExternal, "сервис доставки недоступен"))
		return
	}

	c.JSON(http.StatusOK, gin.H{"rates": shipment.Rates})
}

// CreateLabel обрабатывает POST /shipping/create-label.
func (h *ShippingHandler) CreateLabel(c *gin.Context) {
	var req dto.PurchaseLabelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	label, err := h.shipping.PurchaseLabel(c.Request.Context(), req.RateID)
	if err != nil {
		c.Error(apperror.Wrap(err, apperror.ErrCodeExternal, "не удалось купить лейбл доставки"))
		return
	}

	c.JSON(http.StatusCreated, label)
}

func toShippoAddress(a dto.ShippingAddress) shippo.Address {
	addr := shippo.Address{
		Name:    a.Name,
		Street1: a.Street1,
		City:    a.City,
		State:   a.State,
		Zip:     a.Zip,
		Country: a.Country,
	}
	if a.Street2 != nil {
		addr.Street2 = *a.Street2
	}
	if a.Phone != nil {
		addr.Phone = *a.Phone
	}
	return addr
}

package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/giftcycle-backend/internal/dto"
	"github.com/ignatzorin/giftcycle-backend/internal/http/handlers/common"
	"github.com/ignatzorin/giftcycle-backend/internal/service"
)

// GiftHandler обслуживает каталог подарков.
type GiftHandler struct {
	gifts *service.GiftService
}

// NewGiftHandler создаёт хэндлер.
func NewGiftHandler(gifts *service.GiftService) *GiftHandler {
	return &GiftHandler{gifts: gifts}
}

// CreateGift обрабатывает POST /gifts.
func (h *GiftHandler) CreateGift(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	var req dto.CreateGiftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	gift, err := h.gifts.CreateGift(c.Request.Context(), userID, service.CreateGiftInput{
		Title:          req.Title,
		Description:    req.Description,
		Category:       req.Category,
		ImageURL:       req.ImageURL,
		PriceCents:     req.PriceCents,
		ParcelWeightKg: req.ParcelWeightKg,
	})
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, gift)
}

// ListGifts обрабатывает GET /gifts — лента свободных подарков других
// пользователей.
func (h *GiftHandler) ListGifts(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	limit, offset := common.GetPagination(c)
	gifts, err := h.gifts.ListAvailable(c.Request.Context(), userID, limit, offset)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gifts)
}

// ListMyGifts обрабатывает GET /gifts/my.
func (h *GiftHandler) ListMyGifts(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	gifts, err := h.gifts.ListMine(c.Request.Context(), userID)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gifts)
}

// GetGift обрабатывает GET /gifts/:id.
func (h *GiftHandler) GetGift(c *gin.Context) {
	giftID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	gift, err := h.gifts.GetGift(c.Request.Context(), giftID)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gift)
}

// DeleteGift обрабатывает DELETE /gifts/:id. Удалить можно только свой
// свободный подарок.
func (h *GiftHandler) DeleteGift(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	giftID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	if err := h.gifts.DeleteGift(c.Request.Context(), giftID, userID); err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "подарок удалён"})
}

package router

import (
	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/giftcycle-backend/internal/config"
	"github.com/ignatzorin/giftcycle-backend/internal/http/handlers"
	"github.com/ignatzorin/giftcycle-backend/internal/http/middleware"
	"github.com/ignatzorin/giftcycle-backend/internal/service"
)

// SetupRouter собирает все маршруты API.
func SetupRouter(
	cfg *config.Config,
	authHandler *handlers.AuthHandler,
	giftHandler *handlers.GiftHandler,
	offerHandler *handlers.OfferHandler,
	swapHandler *handlers.SwapHandler,
	saleHandler *handlers.SaleHandler,
	disputeHandler *handlers.DisputeHandler,
	shippingHandler *handlers.ShippingHandler,
	notificationHandler *handlers.NotificationHandler,
	wsHandler *handlers.WSHandler,
	healthHandler *handlers.HealthHandler,
	tokenManager *service.TokenManager,
) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.Default()
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.CORSMiddleware(cfg.AllowedOrigins))

	r.GET("/health", healthHandler.Health)

	api := r.Group("/api")

	// Аутентификация. Логин и регистрация под жёстким rate limit.
	auth := api.Group("/auth")
	{
		authLimited := auth.Group("")
		authLimited.Use(middleware.RateLimitMiddleware(5, cfg.RateLimitPeriod))
		{
			authLimited.POST("/register", authHandler.Register)
			authLimited.POST("/login", authHandler.Login)
			authLimited.POST("/refresh", authHandler.Refresh)
		}

		authPrivate := auth.Group("")
		authPrivate.Use(middleware.AuthMiddleware(tokenManager))
		{
			authPrivate.POST("/logout", authHandler.Logout)
			authPrivate.GET("/me", authHandler.Me)
			authPrivate.PUT("/me", authHandler.UpdateProfile)
			authPrivate.PUT("/me/password", authHandler.ChangePassword)
		}
	}

	// WebSocket: токен передаётся query-параметром, middleware не нужен.
	api.GET("/ws", wsHandler.Handle)

	// Подтверждение платежей: дергается success-редиректом фронта и
	// вебхуком Stripe, поэтому живёт вне AuthMiddleware.
	payments := api.Group("/payments")
	payments.Use(middleware.RateLimitMiddleware(cfg.RateLimitLimit, cfg.RateLimitPeriod))
	{
		payments.POST("/swap-fee/confirm", swapHandler.ConfirmFeePayment)
		payments.POST("/swap-shipping/confirm", swapHandler.ConfirmShippingPayment)
		payments.POST("/sale/confirm", saleHandler.ConfirmPayment)
	}

	private := api.Group("")
	private.Use(middleware.AuthMiddleware(tokenManager))
	{
		gifts := private.Group("/gifts")
		{
			gifts.POST("", giftHandler.CreateGift)
			gifts.GET("", giftHandler.ListGifts)
			gifts.GET("/my", giftHandler.ListMyGifts)
			gifts.GET("/:id", middleware.UUIDValidator("id"), giftHandler.GetGift)
			gifts.DELETE("/:id", middleware.UUIDValidator("id"), giftHandler.DeleteGift)
		}

		offers := private.Group("/offers")
		{
			offers.POST("", offerHandler.CreateOffer)
			offers.GET("/sent", offerHandler.ListSent)
			offers.GET("/received", offerHandler.ListReceived)
			offers.DELETE("/messages/:id", middleware.UUIDValidator("id"), offerHandler.DeleteMessage)

			byID := offers.Group("/:id")
			byID.Use(middleware.UUIDValidator("id"))
			{
				byID.GET("", offerHandler.GetOffer)
				byID.DELETE("", offerHandler.DeleteOffer)
				byID.POST("/accept", offerHandler.AcceptOffer)
				byID.POST("/reject", offerHandler.RejectOffer)

				byID.POST("/messages", offerHandler.SendMessage)
				byID.GET("/messages", offerHandler.ListMessages)

				// Защищённый обмен.
				byID.POST("/swap/start", swapHandler.StartSwap)
				byID.PUT("/swap/address", swapHandler.SaveAddress)
				byID.POST("/swap/fee-checkout", swapHandler.CreateFeeCheckout)
				byID.GET("/swap/rates", swapHandler.FetchRates)
				byID.POST("/swap/shipping-checkout", swapHandler.CreateShippingCheckout)
				byID.POST("/swap/confirm-receipt", swapHandler.ConfirmReceipt)
				byID.POST("/swap/fail", swapHandler.MarkFailed)

				// Продажа.
				byID.GET("/sale/rates", saleHandler.FetchRates)
				byID.POST("/sale/select-rate", saleHandler.SelectRate)
				byID.POST("/sale/checkout", saleHandler.CreateCheckout)
				byID.POST("/sale/label", saleHandler.CreateLabel)
				byID.POST("/sale/mark-shipped", saleHandler.MarkShipped)
				byID.POST("/sale/confirm-delivery", saleHandler.ConfirmDelivery)

				// Леджеры сделки.
				byID.GET("/payments", swapHandler.ListPayments)
				byID.GET("/shipments", swapHandler.ListShipments)

				// Споры по сделке.
				byID.POST("/disputes", disputeHandler.OpenDispute)
				byID.GET("/disputes/latest", disputeHandler.GetLatestByDeal)
			}
		}

		disputes := private.Group("/disputes")
		{
			disputes.GET("/:id", middleware.UUIDValidator("id"), disputeHandler.GetDispute)
		}

		shipping := private.Group("/shipping")
		{
			shipping.POST("/rates", shippingHandler.Rates)
			shipping.POST("/create-label", shippingHandler.CreateLabel)
		}

		notifications := private.Group("/notifications")
		{
			notifications.GET("", notificationHandler.ListNotifications)
			notifications.GET("/unread/count", notificationHandler.CountUnread)
			notifications.PUT("/read-all", notificationHandler.MarkAllAsRead)
			notifications.PUT("/:id/read", middleware.UUIDValidator("id"), notificationHandler.MarkAsRead)
			notifications.DELETE("/:id", middleware.UUIDValidator("id"), notificationHandler.DeleteNotification)
		}

		admin := private.Group("/admin")
		admin.Use(middleware.RequireAdmin())
		{
			admin.GET("/disputes", disputeHandler.ListDisputes)
			admin.POST("/disputes/:id/resolve", middleware.UUIDValidator("id"), disputeHandler.ResolveDispute)
		}
	}

	return r
}

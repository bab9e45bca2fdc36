package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/giftcycle-backend/internal/config"
	"github.com/ignatzorin/giftcycle-backend/internal/db"
	httpHandlers "github.com/ignatzorin/giftcycle-backend/internal/http/handlers"
	httpRouter "github.com/ignatzorin/giftcycle-backend/internal/http/router"
	"github.com/ignatzorin/giftcycle-backend/internal/logger"
	"github.com/ignatzorin/giftcycle-backend/internal/payments/stripe"
	"github.com/ignatzorin/giftcycle-backend/internal/repository"
	"github.com/ignatzorin/giftcycle-backend/internal/service"
	"github.com/ignatzorin/giftcycle-backend/internal/shipping/shippo"
	"github.com/ignatzorin/giftcycle-backend/internal/ws"
)

func main() {
	// Готовим контекст для graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("main: ошибка загрузки конфигурации: %v", err)
	}

	// Инициализация логгера
	logLevel := "info"
	if cfg.Env == "development" {
		logLevel = "debug"
		logger.Init(logLevel)
		logger.SetTextFormatter()
	} else {
		logger.Init(logLevel)
	}

	// Подключение к базе и миграции.
	dbConn, err := db.NewPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("main: ошибка подключения к базе: %v", err)
	}
	defer safeClose(dbConn)

	if err := db.RunMigrations(ctx, dbConn, cfg.MigrationsPath); err != nil {
		log.Fatalf("main: ошибка миграций: %v", err)
	}

	// Вспомогательные сервисы и внешние провайдеры.
	tokenManager := service.NewTokenManager(cfg.JWTSecret, cfg.RefreshSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
	stripeClient := stripe.NewClient(cfg.StripeBaseURL, cfg.StripeSecretKey)
	shippoClient := shippo.NewClient(cfg.ShippoBaseURL, cfg.ShippoAPIToken)

	paymentSettings := service.PaymentSettings{
		Currency:           cfg.StripeCurrency,
		FrontendURL:        cfg.FrontendURL,
		ProtectionFeeCents: cfg.ProtectionFeeCents,
		PlatformFeeCents:   cfg.PlatformFeeCents,
	}

	// Репозитории.
	userRepo := repository.NewUserRepository(dbConn)
	giftRepo := repository.NewGiftRepository(dbConn)
	offerRepo := repository.NewOfferRepository(dbConn)
	paymentRepo := repository.NewPaymentRepository(dbConn)
	shipmentRepo := repository.NewShipmentRepository(dbConn)
	addressRepo := repository.NewAddressRepository(dbConn)
	disputeRepo := repository.NewDisputeRepository(dbConn)
	notificationRepo := repository.NewNotificationRepository(dbConn)
	messageRepo := repository.NewMessageRepository(dbConn)

	// Вебсокеты: hub сохраняет уведомления через сервис и рассылает их
	// живым соединениям.
	notificationService := service.NewNotificationService(notificationRepo)
	hub := ws.NewHub(ctx)
	hub.SetNotificationSaver(ws.NewNotificationServiceAdapter(notificationService))
	go hub.Run()

	// Сервисы.
	authService := service.NewAuthService(userRepo, tokenManager)
	giftService := service.NewGiftService(giftRepo)
	offerService := service.NewOfferService(offerRepo, giftRepo, messageRepo, hub)
	swapService := service.NewSwapService(offerRepo, paymentRepo, shipmentRepo, addressRepo, stripeClient, shippoClient, paymentSettings, hub)
	saleService := service.NewSaleService(offerRepo, giftRepo, paymentRepo, shipmentRepo, addressRepo, stripeClient, shippoClient, paymentSettings, hub)
	disputeService := service.NewDisputeService(disputeRepo, offerRepo, stripeClient, hub)

	// HTTP хэндлеры.
	authHandler := httpHandlers.NewAuthHandler(authService)
	giftHandler := httpHandlers.NewGiftHandler(giftService)
	offerHandler := httpHandlers.NewOfferHandler(offerService)
	swapHandler := httpHandlers.NewSwapHandler(swapService)
	saleHandler := httpHandlers.NewSaleHandler(saleService)
	disputeHandler := httpHandlers.NewDisputeHandler(disputeService)
	shippingHandler := httpHandlers.NewShippingHandler(shippoClient)
	notificationHandler := httpHandlers.NewNotificationHandler(notificationService)
	wsHandler := httpHandlers.NewWSHandler(hub, tokenManager)
	healthHandler := httpHandlers.NewHealthHandler(dbConn)

	// Роутер.
	engine := httpRouter.SetupRouter(
		cfg,
		authHandler,
		giftHandler,
		offerHandler,
		swapHandler,
		saleHandler,
		disputeHandler,
		shippingHandler,
		notificationHandler,
		wsHandler,
		healthHandler,
		tokenManager,
	)

	server := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: engine,
	}

	// Завершаем сервер при получении сигнала.
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("main: ошибка остановки http сервера: %v", err)
		}
	}()

	log.Printf("main: HTTP сервер запущен на порту %s", cfg.HTTPPort)

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("main: сервер завершился с ошибкой: %v", err)
	}
}

// safeClose закрывает соединение с базой.
func safeClose(db *sqlx.DB) {
	if err := db.Close(); err != nil {
		log.Printf("main: ошибка закрытия базы: %v", err)
	}
}

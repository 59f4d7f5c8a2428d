package main

import (
	"log"

	"shop/internal/config"
	"shop/internal/domain/model"
	"shop/internal/handler"
	"shop/internal/infra/assistant"
	"shop/internal/infra/db"
	"shop/internal/infra/payment"
	infraRepo "shop/internal/infra/repository"
	"shop/internal/server"
	"shop/internal/usecase"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	//.envは無くてもよい（本番は環境変数で渡す）
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	var logger *zap.Logger
	if cfg.GoEnv == "prod" {
		logger, err = zap.NewProduction()
	} else {
		logger, err = zap.NewDevelopment()
	}
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()

	//DB接続
	gormDB, err := db.Connect(cfg)
	if err != nil {
		logger.Fatal("db connect", zap.Error(err))
	}
	if err := gormDB.AutoMigrate(
		&model.User{},
		&model.Product{},
		&model.Cart{},
		&model.CartItem{},
		&model.Coupon{},
		&model.Order{},
		&model.OrderItem{},
		&model.Review{},
		&model.ChatMessage{},
		&model.AuditLog{},
		&model.InventoryAdjustment{},
	); err != nil {
		logger.Fatal("db migrate", zap.Error(err))
	}

	//Repository（GORM実装）生成
	userRepo := infraRepo.NewUserGormRepository(gormDB)
	productRepo := infraRepo.NewProductGormRepository(gormDB)
	cartRepo := infraRepo.NewCartGormRepository(gormDB)
	couponRepo := infraRepo.NewCouponGormRepository(gormDB)
	orderRepo := infraRepo.NewOrderGormRepository(gormDB)
	inventoryRepo := infraRepo.NewInventoryGormRepository(gormDB)
	reviewRepo := infraRepo.NewReviewGormRepository(gormDB)
	chatRepo := infraRepo.NewChatGormRepository(gormDB)
	auditRepo := infraRepo.NewAuditLogGormRepository(gormDB)
	txManager := infraRepo.NewTxManagerGorm(gormDB)

	//外部サービスクライアント
	paymentProvider := payment.NewStripeClient(cfg.StripeBaseURL, cfg.StripeSecretKey)
	assistantProvider := assistant.NewOpenAIClient(cfg.AssistantBaseURL, cfg.AssistantAPIKey, cfg.AssistantModel)

	//Usecase生成
	authUC := usecase.NewAuthUsecase(cfg, userRepo, logger)
	productUC := usecase.NewProductUsecase(productRepo, inventoryRepo, auditRepo)
	cartUC := usecase.NewCartUsecase(cartRepo, cartRepo, productRepo, couponRepo)
	orderUC := usecase.NewOrderUsecase(txManager, logger)
	adminOrderUC := usecase.NewAdminOrderUsecase(txManager, auditRepo)
	adminAuditUC := usecase.NewAdminAuditUsecase(auditRepo)
	paymentUC := usecase.NewPaymentUsecase(paymentProvider, cartRepo, cartRepo, couponRepo, orderUC, cfg.Currency, logger)
	reviewUC := usecase.NewReviewUsecase(txManager, reviewRepo, productRepo)
	chatUC := usecase.NewChatUsecase(assistantProvider, chatRepo, productRepo, orderRepo, cartUC, logger)

	//Handler生成
	handlers := server.Handlers{
		Auth:         handler.NewAuthHandler(authUC),
		Product:      handler.NewProductHandler(productUC, reviewUC),
		Cart:         handler.NewCartHandler(cartUC),
		Order:        handler.NewOrderHandler(orderUC),
		Payment:      handler.NewPaymentHandler(paymentUC),
		Review:       handler.NewReviewHandler(reviewUC),
		Chat:         handler.NewChatHandler(chatUC),
		AdminProduct: handler.NewAdminProductHandler(productUC),
		AdminOrder:   handler.NewAdminOrderHandler(adminOrderUC, adminAuditUC),
	}

	e := server.New(cfg, logger, handlers)

	logger.Info("server starting", zap.String("port", cfg.Port))
	if err := server.Start(e, cfg.Port); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

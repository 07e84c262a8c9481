package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"storefront/internal/config"
	"storefront/internal/handler"
	"storefront/internal/infra/cache"
	"storefront/internal/infra/db"
	"storefront/internal/infra/events"
	"storefront/internal/infra/payment"
	infraRepo "storefront/internal/infra/repository"
	"storefront/internal/repository"
	"storefront/internal/server"
	"storefront/internal/usecase"

	"go.uber.org/zap"
)

func newLogger(goEnv string) *zap.Logger {
	var (
		logger *zap.Logger
		err    error
	)
	if goEnv == "prod" {
		logger, err = zap.NewProduction()
	} else {
		logger, err = zap.NewDevelopment()
	}
	if err != nil {
		panic(err)
	}
	return logger
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := newLogger(cfg.GoEnv)
	zap.ReplaceGlobals(logger)

	//deferを全部走らせてから終了する
	err = run(cfg, logger)
	if err != nil {
		logger.Error("server stopped", zap.Error(err))
	}
	_ = logger.Sync()
	if err != nil {
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	//DB接続
	gormDB, err := db.Connect(cfg)
	if err != nil {
		return fmt.Errorf("connect db: %w", err)
	}
	if err := db.Migrate(gormDB); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	//Repository（GORM実装）生成
	userRepo := infraRepo.NewUserGormRepository(gormDB)
	tenantRepo := infraRepo.NewTenantGormRepository(gormDB)
	productRepo := infraRepo.NewProductGormRepository(gormDB)
	inventoryRepo := infraRepo.NewInventoryGormRepository(gormDB)
	cartRepo := infraRepo.NewCartGormRepository(gormDB)
	addressRepo := infraRepo.NewAddressGormRepository(gormDB)
	orderRepo := infraRepo.NewOrderGormRepository(gormDB)
	orderItemRepo := infraRepo.NewOrderItemGormRepository(gormDB)
	notifRepo := infraRepo.NewPaymentNotificationGormRepository(gormDB)
	auditRepo := infraRepo.NewAuditLogGormRepository(gormDB)
	txm := infraRepo.NewTxManagerGorm(gormDB)

	//商品キャッシュ（REDIS_ADDRがなければなし）
	var productCache repository.ProductCache = cache.Noop{}
	if cfg.RedisAddr != "" {
		rdb, err := cache.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword)
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		defer func() { _ = rdb.Close() }()
		productCache = cache.NewProductCache(rdb, cfg.ProductCacheTTL, logger)
	}

	//注文イベント（RABBITMQ_URLがなければログだけ）
	var publisher usecase.EventPublisher = events.NewLogPublisher(logger)
	if cfg.RabbitMQURL != "" {
		p, err := events.NewRabbitMQPublisher(cfg.RabbitMQURL, cfg.OrderEventsExchange, logger)
		if err != nil {
			return fmt.Errorf("connect rabbitmq: %w", err)
		}
		defer p.Close()
		publisher = p
	}

	//決済ゲートウェイ（キーが揃っていればMidtrans、なければmock）
	var (
		gateway   usecase.PaymentGateway
		completer usecase.MockPaymentCompleter
	)
	if cfg.PaymentMode() == "live" {
		gateway = payment.NewMidtransGateway(cfg.MidtransServerKey, cfg.MidtransClientKey, cfg.MidtransProduction, logger)
	} else {
		redirectBase := cfg.AppURL
		if redirectBase == "" {
			redirectBase = cfg.FEURL
		}
		mock := payment.NewMockGateway(cfg.MidtransServerKey, redirectBase)
		gateway = mock
		completer = mock
		logger.Warn("payment gateway running in mock mode")
	}

	//Usecase生成
	shippingUC := usecase.NewShippingUsecase(cfg.Couriers)
	authUC := usecase.NewAuthUsecase(cfg, userRepo, tenantRepo, logger)
	productUC := usecase.NewProductUsecase(productRepo, inventoryRepo, auditRepo, productCache)
	cartUC := usecase.NewCartUsecase(cartRepo, cartRepo, productRepo)
	addressUC := usecase.NewAddressUsecase(addressRepo)
	orderUC := usecase.NewOrderUsecase(txm, orderRepo, orderItemRepo, addressRepo, shippingUC, publisher, productCache, cfg.MinPayableAmount, logger)
	paymentUC := usecase.NewPaymentUsecase(txm, orderRepo, orderItemRepo, userRepo, notifRepo, gateway, completer, publisher, usecase.PaymentConfig{
		MinPayableAmount: cfg.MinPayableAmount,
		ExpiryMinutes:    cfg.PaymentExpiryMinutes,
		FinishBaseURL:    cfg.FEURL,
	}, logger)
	adminOrderUC := usecase.NewAdminOrderUsecase(txm, orderRepo, orderItemRepo, publisher, productCache, logger)
	adminUserUC := usecase.NewAdminUserUsecase(userRepo, auditRepo)
	tenantUC := usecase.NewTenantUsecase(tenantRepo, userRepo, auditRepo)
	auditUC := usecase.NewAuditLogUsecase(auditRepo)

	//Handler生成
	e := server.New(server.Deps{
		Config:  cfg,
		Logger:  logger,
		Users:   userRepo,
		Tenants: tenantRepo,
		Handlers: server.Handlers{
			Auth:         handler.NewAuthHandler(authUC),
			Product:      handler.NewProductHandler(productUC),
			Shipping:     handler.NewShippingHandler(shippingUC),
			Cart:         handler.NewCartHandler(cartUC),
			Address:      handler.NewAddressHandler(addressUC),
			Order:        handler.NewOrderHandler(orderUC),
			Payment:      handler.NewPaymentHandler(paymentUC),
			AdminProduct: handler.NewAdminProductHandler(productUC),
			AdminOrder:   handler.NewAdminOrderHandler(adminOrderUC, paymentUC),
			AdminUser:    handler.NewAdminUserHandler(adminUserUC),
			AuditLog:     handler.NewAuditLogHandler(auditUC),
			Tenant:       handler.NewTenantHandler(tenantUC),
		},
	})

	//Server起動
	addr := cfg.Port
	if addr == "" {
		addr = "8080"
	}
	if addr[0] != ':' {
		addr = ":" + addr
	}
	return server.Start(ctx, e, addr, logger)
}

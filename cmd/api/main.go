package main

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"storefront-checkout/internal/client"
	"storefront-checkout/internal/config"
	"storefront-checkout/internal/logging"
	"storefront-checkout/internal/pricing"
	"storefront-checkout/internal/repository"
	"storefront-checkout/internal/server"
	"storefront-checkout/internal/service"
	sig "storefront-checkout/internal/signal"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func geoTable() pricing.Table {
	return pricing.Table{
		"US": {Currency: "USD", Multiplier: decimal.NewFromInt(1)},
		"EU": {Currency: "EUR", Multiplier: decimal.NewFromFloat(0.92)},
		"GB": {Currency: "GBP", Multiplier: decimal.NewFromFloat(0.79)},
		"IN": {Currency: "INR", Multiplier: decimal.NewFromInt(75)},
	}
}

func couponLookup(code string) (*pricing.Coupon, bool) {
	// Advisory client-side table; eligibility is revalidated at capture.
	coupons := map[string]pricing.Coupon{
		"SAVE10":  {Code: "SAVE10", DiscountPercent: decimal.NewFromInt(10)},
		"WELCOME": {Code: "WELCOME", DiscountPercent: decimal.NewFromInt(5)},
	}
	c, ok := coupons[code]
	if !ok {
		return nil, false
	}
	return &c, true
}

func main() {
	// load .env into os.Environ
	if err := godotenv.Load(); err != nil {
		fmt.Println("No .env file found (ok in prod)")
	}

	cfg := &config.Config{}
	if err := env.Parse(cfg); err != nil {
		fmt.Printf("Failed to parse config: %v\n", err)
		os.Exit(1)
	}

	if err := logging.InitLogger(cfg.Log.Level, cfg.Log.Format); err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer logging.SyncLogger()
	logger := logging.GetLogger()

	db := client.InitSqliteClient(cfg.DatabaseURL)
	rdb, err := client.InitRedisClient(cfg.RedisAddr)
	if err != nil {
		logger.Fatal("connect redis", zap.Error(err))
	}
	defer rdb.Close()

	walletClient := client.NewWalletClient(&cfg.Wallet)
	hostedClient := client.NewHostedClient(&cfg.Hosted)
	expressClient := client.NewExpressClient(&cfg.Express)

	accountRepo := repository.NewAccountRepository(db)
	orderRepo := repository.NewOrderRepository(db)
	intentRepo := repository.NewIntentRepository(db)
	webhookEventRepo := repository.NewWebhookEventRepository(db)

	tokens := service.NewTokenIssuer(cfg.Session.JWTSecret, cfg.Session.TokenTTL)
	materializer := service.NewMaterializer(accountRepo, orderRepo, tokens)
	slot := sig.NewRedisSlot(rdb, cfg.Checkout.ApprovalTimeout)

	checkoutService := service.NewCheckoutService(
		cfg.BaseURL,
		cfg.Checkout.ApprovalTimeout,
		cfg.Checkout.StoragePollInterval,
		geoTable(),
		couponLookup,
		walletClient,
		hostedClient,
		expressClient,
		intentRepo,
		materializer,
		slot,
	)
	webhookService := service.NewWebhookService(walletClient, orderRepo, webhookEventRepo)
	keyResolver := service.NewClientKeyResolver(cfg.Hosted.PublishableKey, hostedClient)

	serverAddr := cfg.HTTP.Host + ":" + cfg.HTTP.Port

	srv := server.NewServer(checkoutService, webhookService, keyResolver, tokens, cfg.BaseURL)

	logger.Info("starting HTTP server", zap.String("addr", serverAddr))
	go func() {
		if err := srv.Start(serverAddr); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)

	<-sigChan
	logger.Info("signal received, starting graceful shutdown")

	if err := srv.Shutdown(); err != nil {
		logger.Fatal("HTTP server shutdown error", zap.Error(err))
	}
}

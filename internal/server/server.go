package server

import (
	"storefront-checkout/internal/handler"
	"storefront-checkout/internal/middleware"
	"storefront-checkout/internal/service"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Server struct {
	echo            *echo.Echo
	checkoutHandler *handler.CheckoutHandler
	webhookHandler  *handler.WebhookHandler
}

func NewServer(
	checkoutService *service.CheckoutService,
	webhookService *service.WebhookService,
	keyResolver *service.ClientKeyResolver,
	tokens *service.TokenIssuer,
	baseURL string,
) *Server {
	e := echo.New()

	e.Use(echomw.RequestLogger())
	e.Use(echomw.Recover())
	e.Use(echomw.CORS())
	e.Use(middleware.SessionMiddleware(tokens))

	checkoutHandler := handler.NewCheckoutHandler(checkoutService, keyResolver, baseURL)
	webhookHandler := handler.NewWebhookHandler(webhookService)

	s := &Server{
		echo:            e,
		checkoutHandler: checkoutHandler,
		webhookHandler:  webhookHandler,
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.echo.Group("/api")

	api.GET("/health", func(c echo.Context) error {
		return c.JSON(200, map[string]string{"status": "ok"})
	})

	// -------- checkout --------
	checkout := api.Group("/checkout")
	checkout.POST("/quote", s.checkoutHandler.Quote)
	checkout.GET("/client-key", s.checkoutHandler.ClientKey)
	checkout.GET("/attempts/:id", s.checkoutHandler.AttemptStatus)

	checkout.POST("/hosted/intent", s.checkoutHandler.StartHostedIntent)
	checkout.POST("/hosted/confirm", s.checkoutHandler.ConfirmHosted)
	checkout.POST("/hosted/express", s.checkoutHandler.ConfirmExpress)

	checkout.POST("/wallet/order", s.checkoutHandler.StartWalletOrder)
	checkout.POST("/wallet/signal", s.checkoutHandler.WalletSignal)
	checkout.POST("/wallet/closed", s.checkoutHandler.WalletClosed)

	// -------- wallet provider callbacks --------
	checkout.GET("/wallet/return", s.checkoutHandler.WalletReturn)
	checkout.GET("/wallet/cancel", s.checkoutHandler.WalletCancel)

	api.POST("/webhooks/wallet", s.webhookHandler.WalletWebhook)

	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
}

func (s *Server) Start(address string) error {
	return s.echo.Start(address)
}

func (s *Server) Shutdown() error {
	return s.echo.Close()
}

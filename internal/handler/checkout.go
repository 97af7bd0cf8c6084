package handler

import (
	"errors"
	"fmt"
	"net/http"

	"storefront-checkout/internal/dto"
	"storefront-checkout/internal/middleware"
	"storefront-checkout/internal/service"

	"github.com/labstack/echo/v4"
)

type CheckoutHandler struct {
	checkoutService *service.CheckoutService
	keyResolver     *service.ClientKeyResolver
	allowedOrigin   string
}

func NewCheckoutHandler(checkoutService *service.CheckoutService, keyResolver *service.ClientKeyResolver, allowedOrigin string) *CheckoutHandler {
	return &CheckoutHandler{
		checkoutService: checkoutService,
		keyResolver:     keyResolver,
		allowedOrigin:   allowedOrigin,
	}
}

func mapServiceError(err error) error {
	switch {
	case errors.Is(err, service.ErrAttemptNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrInvalidState):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, service.ErrBadCredentials):
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	case errors.Is(err, service.ErrAccountExists):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	default:
		return err
	}
}

func (h *CheckoutHandler) Quote(c echo.Context) error {
	var req dto.QuoteRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid req body")
	}

	resp, err := h.checkoutService.Quote(&req)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *CheckoutHandler) StartHostedIntent(c echo.Context) error {
	ctx := c.Request().Context()

	var req dto.StartCheckoutRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid req body")
	}

	resp, err := h.checkoutService.StartHosted(ctx, &req, middleware.AccountID(c))
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *CheckoutHandler) ConfirmHosted(c echo.Context) error {
	ctx := c.Request().Context()

	var req dto.ConfirmHostedRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid req body")
	}

	resp, err := h.checkoutService.ConfirmHosted(ctx, &req)
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *CheckoutHandler) ConfirmExpress(c echo.Context) error {
	ctx := c.Request().Context()

	var req dto.ExpressRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid req body")
	}

	resp, err := h.checkoutService.ConfirmExpress(ctx, &req)
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *CheckoutHandler) StartWalletOrder(c echo.Context) error {
	ctx := c.Request().Context()

	var req dto.StartCheckoutRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid req body")
	}

	resp, err := h.checkoutService.StartWallet(ctx, &req, middleware.AccountID(c))
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, resp)
}

// WalletSignal receives the relayed cross-window success message. Only
// same-origin pages may complete an attempt this way.
func (h *CheckoutHandler) WalletSignal(c echo.Context) error {
	origin := c.Request().Header.Get("Origin")
	if origin != "" && origin != h.allowedOrigin {
		return echo.NewHTTPError(http.StatusForbidden, "cross-origin signal rejected")
	}

	var sig dto.WalletSignal
	if err := c.Bind(&sig); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid req body")
	}

	if err := h.checkoutService.WalletSignal(&sig); err != nil {
		return mapServiceError(err)
	}
	return c.NoContent(http.StatusAccepted)
}

func (h *CheckoutHandler) WalletClosed(c echo.Context) error {
	ctx := c.Request().Context()

	var req dto.WalletClosedRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid req body")
	}

	if err := h.checkoutService.WalletClosed(ctx, req.AttemptID); err != nil {
		return mapServiceError(err)
	}
	return c.NoContent(http.StatusAccepted)
}

// WalletReturn is the provider's redirect target inside the popup. The
// provider appends the order token and payer id; the payload is stored
// in the shared slot and the page relays it to the opener window.
func (h *CheckoutHandler) WalletReturn(c echo.Context) error {
	ctx := c.Request().Context()

	orderID := c.QueryParam("token")
	payerID := c.QueryParam("PayerID")
	if orderID == "" {
		return c.String(http.StatusBadRequest, "missing order token")
	}

	if err := h.checkoutService.WalletReturn(ctx, orderID, payerID); err != nil {
		return err
	}

	html := fmt.Sprintf(`
	<!DOCTYPE html>
	<html>
	<head>
		<meta charset="utf-8">
		<title>Payment Approved</title>
		<style>
			body {
				font-family: Arial, sans-serif;
				text-align: center;
				margin-top: 80px;
			}
		</style>
	</head>
	<body>
		<h2>Payment approved</h2>
		<p>Finishing up. You can close this window.</p>

		<script>
			if (window.opener) {
				window.opener.postMessage(
					{ type: "wallet_success", orderId: %q, payerId: %q },
					%q
				);
			}
			setTimeout(function () { window.close(); }, 1500);
		</script>
	</body>
	</html>
	`, orderID, payerID, h.allowedOrigin)

	return c.HTML(http.StatusOK, html)
}

func (h *CheckoutHandler) WalletCancel(c echo.Context) error {
	html := `
	<!DOCTYPE html>
	<html>
	<head>
		<meta charset="utf-8">
		<title>Payment Cancelled</title>
		<style>
			body {
				font-family: Arial, sans-serif;
				text-align: center;
				margin-top: 80px;
			}
		</style>
	</head>
	<body>
		<h2>Payment cancelled</h2>
		<p>No charge was made. You can close this window and try again.</p>

		<script>
			setTimeout(function () { window.close(); }, 1500);
		</script>
	</body>
	</html>
	`

	return c.HTML(http.StatusOK, html)
}

func (h *CheckoutHandler) AttemptStatus(c echo.Context) error {
	resp, err := h.checkoutService.Status(c.Param("id"))
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *CheckoutHandler) ClientKey(c echo.Context) error {
	ctx := c.Request().Context()

	key, err := h.keyResolver.PublishableKey(ctx)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, &dto.ClientKeyResponse{PublishableKey: key})
}

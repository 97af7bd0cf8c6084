package middleware

import (
	"strings"

	"storefront-checkout/internal/service"

	"github.com/labstack/echo/v4"
)

// SessionMiddleware resolves an optional bearer token into an account id.
// Checkout works for guests too, so an absent or invalid token just
// leaves the request unauthenticated.
func SessionMiddleware(tokens *service.TokenIssuer) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get("Authorization")
			if raw, ok := strings.CutPrefix(header, "Bearer "); ok {
				if accountID, err := tokens.Parse(raw); err == nil {
					c.Set("account_id", accountID)
				}
			}
			return next(c)
		}
	}
}

// AccountID returns the session account id, if any.
func AccountID(c echo.Context) string {
	id, _ := c.Get("account_id").(string)
	return id
}

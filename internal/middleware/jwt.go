package middleware // declare the middleware package; contains reusable HTTP middleware functions

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/booking-iam/internal/utils"
)

// TokenVerifier validates a raw bearer token.
type TokenVerifier interface {
	Verify(token string) (*utils.AccessClaims, error)
}

// JWTAuth returns an Echo middleware that validates a Bearer access token and
// injects the token's subject and roles into the request context.  Handlers
// read them back with UserID and Roles.
func JWTAuth(v TokenVerifier) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth := c.Request().Header.Get(echo.HeaderAuthorization)
			if !strings.HasPrefix(auth, "Bearer ") {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized", "message": "missing bearer token"})
			}
			raw := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))

			claims, err := v.Verify(raw)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized", "message": "invalid token"})
			}
			c.Set(ctxUserID, claims.Subject)
			c.Set(ctxRoles, claims.Roles)
			return next(c)
		}
	}
}

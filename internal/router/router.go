// Package router defines how HTTP routes are registered for the API.
package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/booking-iam/internal/handler"
	"github.com/iliyamo/booking-iam/internal/middleware"
	"github.com/iliyamo/booking-iam/internal/model"
)

// RegisterRoutes registers routes that do not require authentication.
// db may be nil when no database backs the stores.
func RegisterRoutes(e *echo.Echo, db handler.Pinger) {
	e.GET("/healthz", handler.Health)
	e.GET("/readyz", handler.Ready(db))
}

// RegisterAuth registers the authentication routes.  Unauthenticated
// operations live under /v1/auth; login and refresh pass through limit.
// Logout and /v1/me need a valid access token.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, verifier middleware.TokenVerifier, limit echo.MiddlewareFunc) {
	jwt := middleware.JWTAuth(verifier)

	g := e.Group("/v1/auth")
	g.POST("/register", a.Register)
	g.POST("/login", a.Login, limit)
	g.POST("/refresh", a.Refresh, limit)
	g.POST("/logout", a.Logout, jwt)

	e.GET("/v1/me", a.Me, jwt)
}

// RegisterAdmin registers account administration behind the admin role.
func RegisterAdmin(e *echo.Echo, h *handler.AdminHandler, verifier middleware.TokenVerifier) {
	g := e.Group("/v1/admin/accounts")
	g.Use(middleware.JWTAuth(verifier))
	g.Use(middleware.RequireRole(model.RoleAdmin))

	g.GET("/:id", h.Get)
	g.POST("/:id/unlock", h.Unlock)
	g.POST("/:id/lock", h.Lock)
	g.POST("/:id/lock-indefinitely", h.LockIndefinitely)
	g.POST("/:id/suspend", h.Suspend)
	g.POST("/:id/reactivate", h.Reactivate)
	g.PUT("/:id/password", h.ChangePassword)
}

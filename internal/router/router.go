package router // router registers the API's HTTP routes

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/parking-facility-management/internal/handler"
)

// RegisterRoutes registers the routes that need no authentication.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
}

// RegisterAuth registers authentication endpoints. Token-issuing routes
// live under /v1/auth; /v1/me requires a valid access token and is wired
// by the gate route group.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler) {
	g := e.Group("/v1/auth")
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	g.POST("/refresh", a.Refresh)
	g.POST("/logout", a.Logout)
	g.POST("/forgot-password", a.ForgotPassword)
	g.POST("/reset-password", a.ResetPassword)
}

package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/parking-facility-management/internal/handler"
	"github.com/iliyamo/parking-facility-management/internal/middleware"
	"github.com/iliyamo/parking-facility-management/internal/repository"
)

// RegisterGate registers the day-to-day gate operations. Both roles may
// run them; cacheMW (optional) is applied to the read-only board and
// report routes only, so writes always see fresh state.
func RegisterGate(e *echo.Echo, a *handler.AuthHandler, v *handler.VehicleHandler,
	s *handler.SessionHandler, d *handler.DashboardHandler, jwtSecret string, cacheMW echo.MiddlewareFunc) {
	g := e.Group(
		"/v1",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(repository.RoleAdmin, repository.RoleEmployee),
	)

	g.GET("/me", a.Me)

	// ---- Vehicles and gate operations ----
	g.POST("/vehicles", v.Register)
	g.GET("/vehicles", v.List)
	g.GET("/vehicles/:id", v.Get)
	g.PUT("/vehicles/:id", v.Update)
	g.POST("/vehicles/:id/checkin", v.CheckIn)
	g.POST("/vehicles/:id/checkout", v.CheckOut)
	g.POST("/vehicles/:id/reassign", v.Reassign)

	// ---- Sessions ----
	g.GET("/sessions/:id", s.Get)
	g.PUT("/sessions/:id", s.Amend)
	g.POST("/sessions/:id/checkout", v.CheckOutSession)

	// ---- Board and reports (cached) ----
	read := g.Group("")
	if cacheMW != nil {
		read.Use(cacheMW)
	}
	read.GET("/board", d.Board)
	read.GET("/slots/available", d.Available)
	read.GET("/reports/occupancy", d.Occupancy)
	read.GET("/reports/collection", d.Collection)
	read.GET("/reports/history", d.History)
}

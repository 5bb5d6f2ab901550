package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/parking-facility-management/internal/handler"
	"github.com/iliyamo/parking-facility-management/internal/middleware"
	"github.com/iliyamo/parking-facility-management/internal/repository"
)

// RegisterAdmin registers ADMIN-scoped endpoints under /v1: facility
// layout, destructive operations, staff and shift management.
func RegisterAdmin(e *echo.Echo, l *handler.LevelHandler, v *handler.VehicleHandler,
	s *handler.SessionHandler, emp *handler.EmployeeHandler, sh *handler.ShiftHandler, jwtSecret string) {
	g := e.Group(
		"/v1",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(repository.RoleAdmin),
	)

	// ---- Levels and slots ----
	g.POST("/levels", l.Create)
	g.GET("/levels", l.List)
	g.GET("/levels/:id", l.Get)
	g.PUT("/levels/:id", l.Update)
	g.DELETE("/levels/:id", l.Delete)
	g.DELETE("/levels/:id/slots/:label", l.DeleteSlot)
	g.POST("/slots/:slot_id/reset", l.ResetSlot)

	// ---- Destructive records management ----
	g.DELETE("/vehicles/:id", v.Delete)
	g.DELETE("/sessions/:id", s.Purge)

	// ---- Staff ----
	g.GET("/employees", emp.List)
	g.PUT("/employees/:id", emp.Update)
	g.PATCH("/employees/:id/duty", emp.SetDuty)
	g.DELETE("/employees/:id", emp.Deactivate)

	// ---- Shifts ----
	g.POST("/shifts", sh.Create)
	g.GET("/shifts", sh.List)
	g.PUT("/shifts/:id", sh.Update)
	g.DELETE("/shifts/:id", sh.Delete)
}

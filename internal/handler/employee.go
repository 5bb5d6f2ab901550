package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/parking-facility-management/internal/repository"
)

// EmployeeHandler gives administrators control over gate staff accounts.
type EmployeeHandler struct {
	Users  *repository.UserRepo
	Tokens *repository.TokenRepo
}

func NewEmployeeHandler(users *repository.UserRepo, tokens *repository.TokenRepo) *EmployeeHandler {
	if users == nil || tokens == nil {
		panic("nil dependency passed to NewEmployeeHandler")
	}
	return &EmployeeHandler{Users: users, Tokens: tokens}
}

type employeeJSON struct {
	ID         uint64 `json:"id"`
	Email      string `json:"email"`
	FullName   string `json:"full_name"`
	Mobile     string `json:"mobile"`
	DutyStatus string `json:"duty_status"`
	ShiftName  string `json:"shift_name,omitempty"`
}

type employeeUpdateReq struct {
	FullName   string `json:"full_name"`
	Mobile     string `json:"mobile"`
	DutyStatus string `json:"duty_status"`
	ShiftName  string `json:"shift_name"`
}

// List returns all active employees.
func (h *EmployeeHandler) List(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	users, err := h.Users.ListEmployees(ctx)
	if err != nil {
		return respondError(c, err)
	}
	out := make([]employeeJSON, 0, len(users))
	for _, u := range users {
		out = append(out, employeeJSON{
			ID: u.ID, Email: u.Email, FullName: u.FullName,
			Mobile: u.MobileNo, DutyStatus: u.DutyStatus, ShiftName: u.ShiftName,
		})
	}
	return c.JSON(http.StatusOK, out)
}

// Update rewrites an employee's profile, duty status and shift.
func (h *EmployeeHandler) Update(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	var req employeeUpdateReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	duty := strings.ToUpper(strings.TrimSpace(req.DutyStatus))
	if duty == "" {
		duty = repository.DutyOff
	}
	if duty != repository.DutyOn && duty != repository.DutyOff {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "duty_status must be ON or OFF"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Users.UpdateProfile(ctx, id, strings.TrimSpace(req.FullName),
		strings.TrimSpace(req.Mobile), duty, strings.TrimSpace(req.ShiftName)); err != nil {
		return respondError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// SetDuty flips the duty flag on its own, the common shift-change action.
func (h *EmployeeHandler) SetDuty(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	var req struct {
		DutyStatus string `json:"duty_status"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	duty := strings.ToUpper(strings.TrimSpace(req.DutyStatus))
	if duty != repository.DutyOn && duty != repository.DutyOff {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "duty_status must be ON or OFF"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Users.SetDutyStatus(ctx, id, duty); err != nil {
		return respondError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Deactivate soft-deletes the account and revokes its sessions.
func (h *EmployeeHandler) Deactivate(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Users.Deactivate(ctx, id); err != nil {
		return respondError(c, err)
	}
	_ = h.Tokens.RevokeAllForUser(ctx, id)
	return c.NoContent(http.StatusNoContent)
}

package handler

import (
	"context"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/parking-facility-management/internal/repository"
)

// ShiftHandler manages the named working windows staff are assigned to.
type ShiftHandler struct {
	Shifts *repository.ShiftRepo
}

func NewShiftHandler(shifts *repository.ShiftRepo) *ShiftHandler {
	if shifts == nil {
		panic("nil dependency passed to NewShiftHandler")
	}
	return &ShiftHandler{Shifts: shifts}
}

type shiftReq struct {
	ShiftName string `json:"shift_name"`
	StartTime string `json:"start_time"` // HH:MM
	EndTime   string `json:"end_time"`   // HH:MM, may wrap past midnight
}

var clockRe = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d$`)

func (r *shiftReq) validate() error {
	r.ShiftName = strings.TrimSpace(r.ShiftName)
	r.StartTime = strings.TrimSpace(r.StartTime)
	r.EndTime = strings.TrimSpace(r.EndTime)
	if r.ShiftName == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "shift_name required")
	}
	if !clockRe.MatchString(r.StartTime) || !clockRe.MatchString(r.EndTime) {
		return echo.NewHTTPError(http.StatusBadRequest, "start_time/end_time must be HH:MM")
	}
	return nil
}

// Create adds a shift.
func (h *ShiftHandler) Create(c echo.Context) error {
	var req shiftReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if err := req.validate(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	s := &repository.Shift{ShiftName: req.ShiftName, StartTime: req.StartTime, EndTime: req.EndTime}
	if err := h.Shifts.Create(ctx, s); err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, s)
}

// List returns all shifts.
func (h *ShiftHandler) List(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	shifts, err := h.Shifts.List(ctx)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, shifts)
}

// Update rewrites a shift.
func (h *ShiftHandler) Update(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	var req shiftReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if err := req.validate(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	s := &repository.Shift{ID: id, ShiftName: req.ShiftName, StartTime: req.StartTime, EndTime: req.EndTime}
	if err := h.Shifts.Update(ctx, s); err != nil {
		return respondError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Delete removes a shift.
func (h *ShiftHandler) Delete(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Shifts.Delete(ctx, id); err != nil {
		return respondError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

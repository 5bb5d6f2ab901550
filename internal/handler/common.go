package handler // handler defines the HTTP layer of the API

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/parking-facility-management/internal/allocation"
	"github.com/iliyamo/parking-facility-management/internal/repository"
)

// getUserID extracts the authenticated staff ID stored by the JWT
// middleware. JWT numeric claims decode as float64, so several source
// types are accepted.
func getUserID(c echo.Context) (uint64, error) {
	switch t := c.Get("user_id").(type) {
	case uint64:
		return t, nil
	case int:
		return uint64(t), nil
	case int64:
		return uint64(t), nil
	case float64:
		return uint64(t), nil
	case string:
		if n, err := strconv.ParseUint(t, 10, 64); err == nil {
			return n, nil
		}
	}
	return 0, errors.New("invalid user_id in context")
}

// pathID parses a numeric path parameter.
func pathID(c echo.Context, name string) (uint64, error) {
	n, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || n == 0 {
		return 0, fmt.Errorf("invalid %s", name)
	}
	return n, nil
}

// respondError maps domain errors to HTTP responses: missing entities are
// 404, state conflicts 409, bad intervals 400, everything else 500.
func respondError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, repository.ErrLevelNotFound),
		errors.Is(err, repository.ErrSlotNotFound),
		errors.Is(err, repository.ErrVehicleNotFound),
		errors.Is(err, repository.ErrSessionNotFound),
		errors.Is(err, repository.ErrShiftNotFound),
		errors.Is(err, repository.ErrUserNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": err.Error()})
	case errors.Is(err, repository.ErrConflict),
		errors.Is(err, repository.ErrSlotOccupied),
		errors.Is(err, allocation.ErrNotParked):
		return c.JSON(http.StatusConflict, echo.Map{"error": err.Error()})
	case errors.Is(err, allocation.ErrExitBeforeEntry):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	default:
		c.Logger().Errorf("internal error: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
}

// Slot labels are a single column letter followed by the row number, e.g.
// "A3" is column A, row 3. A level grid is at most 26 columns wide.

const maxGridColumns = 26

// gridLabels produces the labels for a columns x rows grid in column-major
// order (A1..An, B1..Bn, ...).
func gridLabels(columns, rows int) []string {
	labels := make([]string, 0, columns*rows)
	for col := 0; col < columns; col++ {
		letter := string(rune('A' + col))
		for row := 1; row <= rows; row++ {
			labels = append(labels, letter+strconv.Itoa(row))
		}
	}
	return labels
}

// normalizeLabel upper-cases a slot label and strips whitespace.
func normalizeLabel(raw string) string {
	return strings.ToUpper(strings.TrimSpace(raw))
}

// validCategory reports whether s is one of the known vehicle categories.
func validCategory(s string) bool {
	switch s {
	case "Car", "Bike", "Truck":
		return true
	}
	return false
}

// normalizeCategory title-cases a category string ("car" -> "Car").
func normalizeCategory(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return ""
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

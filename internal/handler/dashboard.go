package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/parking-facility-management/internal/repository"
	"github.com/iliyamo/parking-facility-management/internal/utils"
)

// DashboardHandler serves the read-only board and report endpoints. These
// are the routes the router puts behind the Redis response cache.
type DashboardHandler struct {
	Reports *repository.ReportRepo
}

func NewDashboardHandler(reports *repository.ReportRepo) *DashboardHandler {
	if reports == nil {
		panic("nil dependency passed to NewDashboardHandler")
	}
	return &DashboardHandler{Reports: reports}
}

type boardSlotJSON struct {
	SlotID        uint64 `json:"slot_id"`
	LevelNo       uint32 `json:"level_no"`
	Label         string `json:"label"`
	Category      string `json:"vehicle_category,omitempty"`
	IsAvailable   bool   `json:"is_available"`
	VehicleNumber string `json:"vehicle_number,omitempty"`
	OwnerName     string `json:"owner_name,omitempty"`
	EntryTime     string `json:"entry_time,omitempty"`
}

// Board returns the live state of every slot in the facility, optionally
// restricted to one level via ?level=<level_no>.
func (h *DashboardHandler) Board(c echo.Context) error {
	var levelNo uint64
	if s := c.QueryParam("level"); s != "" {
		n, err := strconv.ParseUint(s, 10, 32)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid level"})
		}
		levelNo = n
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	states, err := h.Reports.SlotBoard(ctx)
	if err != nil {
		return respondError(c, err)
	}
	out := make([]boardSlotJSON, 0, len(states))
	for _, st := range states {
		if levelNo != 0 && uint64(st.LevelNo) != levelNo {
			continue
		}
		row := boardSlotJSON{
			SlotID:      st.SlotID,
			LevelNo:     st.LevelNo,
			Label:       st.SlotLabel,
			IsAvailable: st.IsAvailable,
		}
		if st.Category.Valid {
			row.Category = st.Category.String
		}
		if st.VehicleNumber.Valid {
			row.VehicleNumber = st.VehicleNumber.String
		}
		if st.OwnerName.Valid {
			row.OwnerName = st.OwnerName.String
		}
		if st.EntryTime.Valid {
			row.EntryTime = st.EntryTime.Time.UTC().Format(time.RFC3339)
		}
		out = append(out, row)
	}
	return c.JSON(http.StatusOK, out)
}

// Available lists free slots, optionally filtered by vehicle category:
// a slot qualifies when it has no affinity or its affinity matches.
func (h *DashboardHandler) Available(c echo.Context) error {
	category := normalizeCategory(c.QueryParam("category"))
	if category != "" && !validCategory(category) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "unknown category"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	states, err := h.Reports.SlotBoard(ctx)
	if err != nil {
		return respondError(c, err)
	}
	out := make([]boardSlotJSON, 0, len(states))
	for _, st := range states {
		if !st.IsAvailable {
			continue
		}
		if category != "" && st.Category.Valid && st.Category.String != category {
			continue
		}
		row := boardSlotJSON{SlotID: st.SlotID, LevelNo: st.LevelNo, Label: st.SlotLabel, IsAvailable: true}
		if st.Category.Valid {
			row.Category = st.Category.String
		}
		out = append(out, row)
	}
	return c.JSON(http.StatusOK, out)
}

// Occupancy returns per-level totals for the dashboard header.
func (h *DashboardHandler) Occupancy(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	rows, err := h.Reports.Occupancy(ctx)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, rows)
}

// reportRange resolves the from/to query parameters. Defaults to the
// current day; "from" without "to" runs until tomorrow midnight.
func reportRange(c echo.Context) (time.Time, time.Time, error) {
	now := time.Now().UTC()
	from := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	to := from.Add(24 * time.Hour)

	if s := c.QueryParam("from"); s != "" {
		t, err := utils.ParseDate(s)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		from = t
		to = now.Add(time.Minute)
	}
	if s := c.QueryParam("to"); s != "" {
		t, err := utils.ParseDate(s)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		to = t.Add(24 * time.Hour) // inclusive end day
	}
	return from, to, nil
}

// Collection reports completed-session counts and charge totals grouped by
// payment method over the requested range.
func (h *DashboardHandler) Collection(c echo.Context) error {
	from, to, err := reportRange(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	rows, err := h.Reports.Collection(ctx, from, to)
	if err != nil {
		return respondError(c, err)
	}

	var total uint64
	for _, r := range rows {
		total += r.Amount
	}
	return c.JSON(http.StatusOK, echo.Map{
		"from":      from.Format("2006-01-02"),
		"to":        to.Format("2006-01-02"),
		"by_method": rows,
		"total":     total,
	})
}

type historyJSON struct {
	SessionID       uint64 `json:"session_id"`
	VehicleNumber   string `json:"vehicle_number"`
	OwnerName       string `json:"owner_name"`
	Category        string `json:"category"`
	LevelNo         uint32 `json:"level_no"`
	SlotLabel       string `json:"slot_label"`
	EntryTime       string `json:"entry_time"`
	ExitTime        string `json:"exit_time,omitempty"`
	Status          string `json:"status"`
	DurationMinutes int64  `json:"duration_minutes,omitempty"`
	Charge          uint32 `json:"charge"`
}

// History lists sessions entering within the requested range, newest
// first, with the stay duration computed for completed rows.
func (h *DashboardHandler) History(c echo.Context) error {
	from, to, err := reportRange(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	rows, err := h.Reports.History(ctx, from, to)
	if err != nil {
		return respondError(c, err)
	}
	out := make([]historyJSON, 0, len(rows))
	for _, r := range rows {
		row := historyJSON{
			SessionID:     r.SessionID,
			VehicleNumber: r.VehicleNumber,
			OwnerName:     r.OwnerName,
			Category:      r.Category,
			LevelNo:       r.LevelNo,
			SlotLabel:     r.SlotLabel,
			EntryTime:     r.EntryTime.UTC().Format(time.RFC3339),
			Status:        r.Status,
			Charge:        r.Charge,
		}
		if r.ExitTime.Valid {
			row.ExitTime = r.ExitTime.Time.UTC().Format(time.RFC3339)
			row.DurationMinutes = int64(r.ExitTime.Time.Sub(r.EntryTime) / time.Minute)
		}
		out = append(out, row)
	}
	return c.JSON(http.StatusOK, out)
}

package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/parking-facility-management/internal/allocation"
	"github.com/iliyamo/parking-facility-management/internal/repository"
	"github.com/iliyamo/parking-facility-management/internal/utils"
)

// SessionHandler exposes the parking session ledger: reading single
// sessions, amending recorded intervals and purging rows.
type SessionHandler struct {
	Sessions *repository.SessionRepo
	Coord    *allocation.Coordinator
}

func NewSessionHandler(sessions *repository.SessionRepo, coord *allocation.Coordinator) *SessionHandler {
	if sessions == nil || coord == nil {
		panic("nil dependency passed to NewSessionHandler")
	}
	return &SessionHandler{Sessions: sessions, Coord: coord}
}

type sessionJSON struct {
	ID        uint64 `json:"id"`
	VehicleID uint64 `json:"vehicle_id"`
	SlotID    uint64 `json:"slot_id"`
	EntryTime string `json:"entry_time"`
	ExitTime  string `json:"exit_time,omitempty"`
	Status    string `json:"status"`
}

func sessionResp(s *repository.Session) sessionJSON {
	out := sessionJSON{
		ID:        s.ID,
		VehicleID: s.VehicleID,
		SlotID:    s.SlotID,
		EntryTime: s.EntryTime.UTC().Format(time.RFC3339),
		Status:    s.Status,
	}
	if s.ExitTime.Valid {
		out.ExitTime = s.ExitTime.Time.UTC().Format(time.RFC3339)
	}
	return out
}

type amendReq struct {
	EntryTime string `json:"entry_time"`
	ExitTime  string `json:"exit_time,omitempty"` // empty clears the exit and reopens
}

// Get returns one session by ID.
func (h *SessionHandler) Get(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	s, err := h.Sessions.GetByID(ctx, id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, sessionResp(s))
}

// Amend rewrites a session's interval. Omitting exit_time on a completed
// session reopens it, which re-claims the slot and conflicts if another
// vehicle holds it now.
func (h *SessionHandler) Amend(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	var req amendReq
	if err := c.Bind(&req); err != nil || req.EntryTime == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "entry_time required"})
	}

	entry, perr := utils.ParseTimestamp(req.EntryTime)
	if perr != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": perr.Error()})
	}
	var exit *time.Time
	if req.ExitTime != "" {
		t, perr := utils.ParseTimestamp(req.ExitTime)
		if perr != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": perr.Error()})
		}
		exit = &t
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	if err := h.Coord.AmendSession(ctx, id, entry, exit); err != nil {
		return respondError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Purge deletes a session row outright. An active session's slot is freed
// first; this is the administrative escape hatch, not the checkout path.
func (h *SessionHandler) Purge(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	if err := h.Coord.PurgeSession(ctx, id); err != nil {
		return respondError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

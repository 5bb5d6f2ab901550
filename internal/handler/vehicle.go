package handler

import (
	"context"
	"database/sql"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/parking-facility-management/internal/allocation"
	"github.com/iliyamo/parking-facility-management/internal/queue"
	"github.com/iliyamo/parking-facility-management/internal/repository"
	queue_publisher "github.com/iliyamo/parking-facility-management/internal/service"
	"github.com/iliyamo/parking-facility-management/internal/utils"
)

// VehicleHandler covers vehicle registration and the gate operations:
// check-in, check-out and slot reassignment. Everything that touches slot
// occupancy is delegated to the allocation coordinator.
type VehicleHandler struct {
	DB       *sql.DB
	Vehicles *repository.VehicleRepo
	Slots    *repository.SlotRepo
	Levels   *repository.LevelRepo
	Sessions *repository.SessionRepo
	Coord    *allocation.Coordinator
	Events   bool // publish session.completed events
}

func NewVehicleHandler(db *sql.DB, vehicles *repository.VehicleRepo, slots *repository.SlotRepo,
	levels *repository.LevelRepo, sessions *repository.SessionRepo, coord *allocation.Coordinator, events bool) *VehicleHandler {
	if db == nil || vehicles == nil || slots == nil || levels == nil || sessions == nil || coord == nil {
		panic("nil dependency passed to NewVehicleHandler")
	}
	return &VehicleHandler{DB: db, Vehicles: vehicles, Slots: slots, Levels: levels,
		Sessions: sessions, Coord: coord, Events: events}
}

type vehicleReq struct {
	Category      string `json:"category"`
	VehicleNumber string `json:"vehicle_number"`
	OwnerName     string `json:"owner_name"`
	Mobile        string `json:"mobile"`
	ParkingCharge uint32 `json:"parking_charge"`
	PaymentMethod string `json:"payment_method"`
	SlotID        uint64 `json:"slot_id,omitempty"`     // optional: check in immediately
	EntryTime     string `json:"entry_time,omitempty"`  // optional, defaults to now
}

type checkInReq struct {
	SlotID    uint64 `json:"slot_id"`
	EntryTime string `json:"entry_time,omitempty"`
	ExitTime  string `json:"exit_time,omitempty"` // back-fill a completed stay
}

type checkOutReq struct {
	ExitTime string `json:"exit_time,omitempty"`
}

type reassignReq struct {
	SlotID uint64 `json:"slot_id"`
}

type vehicleResp struct {
	ID            uint64 `json:"id"`
	Category      string `json:"category"`
	VehicleNumber string `json:"vehicle_number"`
	OwnerName     string `json:"owner_name"`
	Mobile        string `json:"mobile"`
	SlotID        uint64 `json:"slot_id,omitempty"`
	ParkingCharge uint32 `json:"parking_charge"`
	PaymentMethod string `json:"payment_method"`
}

func toVehicleResp(v *repository.Vehicle) vehicleResp {
	out := vehicleResp{
		ID:            v.ID,
		Category:      v.Category,
		VehicleNumber: v.VehicleNumber,
		OwnerName:     v.OwnerName,
		Mobile:        v.Mobile,
		ParkingCharge: v.ParkingCharge,
		PaymentMethod: v.PaymentMethod,
	}
	if v.SlotID.Valid {
		out.SlotID = uint64(v.SlotID.Int64)
	}
	return out
}

func (r *vehicleReq) validate() (string, string, error) {
	cat := normalizeCategory(r.Category)
	if !validCategory(cat) {
		return "", "", echo.NewHTTPError(http.StatusBadRequest, "category must be Car, Bike or Truck")
	}
	pay := normalizeCategory(r.PaymentMethod)
	if pay == "" {
		pay = "Offline"
	}
	if pay != "Online" && pay != "Offline" {
		return "", "", echo.NewHTTPError(http.StatusBadRequest, "payment_method must be Online or Offline")
	}
	if strings.TrimSpace(r.VehicleNumber) == "" || strings.TrimSpace(r.Mobile) == "" {
		return "", "", echo.NewHTTPError(http.StatusBadRequest, "vehicle_number and mobile required")
	}
	return cat, pay, nil
}

// Register creates a vehicle. When slot_id is given the vehicle is checked
// in on it in the same request, the way gate operators record an arrival.
func (h *VehicleHandler) Register(c echo.Context) error {
	var req vehicleReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	cat, pay, err := req.validate()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	v := &repository.Vehicle{
		Category:      cat,
		VehicleNumber: req.VehicleNumber,
		OwnerName:     strings.TrimSpace(req.OwnerName),
		Mobile:        req.Mobile,
		ParkingCharge: req.ParkingCharge,
		PaymentMethod: pay,
	}
	if err := h.Vehicles.Create(ctx, v); err != nil {
		return respondError(c, err)
	}

	if req.SlotID != 0 {
		entry := time.Now().UTC()
		if req.EntryTime != "" {
			var perr error
			entry, perr = utils.ParseTimestamp(req.EntryTime)
			if perr != nil {
				return c.JSON(http.StatusBadRequest, echo.Map{"error": perr.Error()})
			}
		}
		if err := h.checkCategory(ctx, req.SlotID, cat); err != nil {
			return respondError(c, err)
		}
		s, err := h.Coord.CheckIn(ctx, v.ID, req.SlotID, entry, nil)
		if err != nil {
			return respondError(c, err)
		}
		v.SlotID = sql.NullInt64{Int64: int64(req.SlotID), Valid: true}
		return c.JSON(http.StatusCreated, echo.Map{
			"vehicle": toVehicleResp(v),
			"session": sessionResp(s),
		})
	}
	return c.JSON(http.StatusCreated, echo.Map{"vehicle": toVehicleResp(v)})
}

// checkCategory rejects a claim when the slot declares an affinity that
// does not match the vehicle's category.
func (h *VehicleHandler) checkCategory(ctx context.Context, slotID uint64, category string) error {
	slot, err := h.Slots.GetByID(ctx, slotID)
	if err != nil {
		return err
	}
	if slot.VehicleCategory.Valid && slot.VehicleCategory.String != category {
		return repository.ErrConflict
	}
	return nil
}

// CheckIn opens a parking session for an existing vehicle on a slot.
func (h *VehicleHandler) CheckIn(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	var req checkInReq
	if err := c.Bind(&req); err != nil || req.SlotID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "slot_id required"})
	}

	entry := time.Now().UTC()
	if req.EntryTime != "" {
		var perr error
		entry, perr = utils.ParseTimestamp(req.EntryTime)
		if perr != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": perr.Error()})
		}
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

	v, err := h.Vehicles.GetByID(ctx, id)
	if err != nil {
		return respondError(c, err)
	}
	if exit == nil {
		if err := h.checkCategory(ctx, req.SlotID, v.Category); err != nil {
			return respondError(c, err)
		}
	}
	s, err := h.Coord.CheckIn(ctx, id, req.SlotID, entry, exit)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, sessionResp(s))
}

// CheckOut completes the vehicle's active session, frees the slot and
// publishes a session.completed event.
func (h *VehicleHandler) CheckOut(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	var req checkOutReq
	_ = c.Bind(&req)

	exit := time.Now().UTC()
	if req.ExitTime != "" {
		var perr error
		exit, perr = utils.ParseTimestamp(req.ExitTime)
		if perr != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": perr.Error()})
		}
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	s, minutes, err := h.Coord.CheckOut(ctx, id, exit)
	if err != nil {
		return respondError(c, err)
	}

	if h.Events {
		h.publishCompleted(ctx, s, minutes)
	}

	return c.JSON(http.StatusOK, echo.Map{
		"session":          sessionResp(s),
		"duration_minutes": minutes,
	})
}

// CheckOutSession completes a stay addressed by session ID instead of
// vehicle ID. The session must still be active; completed ones answer 409.
func (h *VehicleHandler) CheckOutSession(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	var req checkOutReq
	_ = c.Bind(&req)

	exit := time.Now().UTC()
	if req.ExitTime != "" {
		var perr error
		exit, perr = utils.ParseTimestamp(req.ExitTime)
		if perr != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": perr.Error()})
		}
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	s, err := h.Sessions.GetByID(ctx, id)
	if err != nil {
		return respondError(c, err)
	}
	if s.Status != repository.SessionActive {
		return respondError(c, allocation.ErrNotParked)
	}

	// A vehicle holds at most one active session, so closing by vehicle
	// closes exactly this one.
	closed, minutes, err := h.Coord.CheckOut(ctx, s.VehicleID, exit)
	if err != nil {
		return respondError(c, err)
	}

	if h.Events {
		h.publishCompleted(ctx, closed, minutes)
	}

	return c.JSON(http.StatusOK, echo.Map{
		"session":          sessionResp(closed),
		"duration_minutes": minutes,
	})
}

// publishCompleted assembles the event payload and hands it to the broker
// in the background; a broker outage never fails the checkout.
func (h *VehicleHandler) publishCompleted(ctx context.Context, s *repository.Session, minutes int64) {
	v, err := h.Vehicles.GetByID(ctx, s.VehicleID)
	if err != nil {
		return
	}
	slot, err := h.Slots.GetByID(ctx, s.SlotID)
	if err != nil {
		return
	}
	level, err := h.Levels.GetByID(ctx, slot.LevelID)
	if err != nil {
		return
	}
	ev := queue.SessionCompletedEvent{
		EventID:         uuid.NewString(),
		SessionID:       s.ID,
		VehicleID:       v.ID,
		VehicleNumber:   v.VehicleNumber,
		Category:        v.Category,
		LevelNo:         level.LevelNo,
		SlotLabel:       slot.SlotLabel,
		EntryTime:       s.EntryTime.UTC().Format(time.RFC3339),
		ExitTime:        s.ExitTime.Time.UTC().Format(time.RFC3339),
		DurationMinutes: minutes,
		ParkingCharge:   v.ParkingCharge,
		PaymentMethod:   v.PaymentMethod,
	}
	go func() {
		pctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = queue_publisher.PublishSessionCompleted(pctx, ev)
	}()
}

// Reassign moves a parked vehicle to another slot.
func (h *VehicleHandler) Reassign(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	var req reassignReq
	if err := c.Bind(&req); err != nil || req.SlotID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "slot_id required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	v, err := h.Vehicles.GetByID(ctx, id)
	if err != nil {
		return respondError(c, err)
	}
	if err := h.checkCategory(ctx, req.SlotID, v.Category); err != nil {
		return respondError(c, err)
	}
	if err := h.Coord.Reassign(ctx, id, req.SlotID); err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "vehicle reassigned"})
}

// List returns all registered vehicles.
func (h *VehicleHandler) List(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	vehicles, err := h.Vehicles.List(ctx)
	if err != nil {
		return respondError(c, err)
	}
	out := make([]vehicleResp, 0, len(vehicles))
	for i := range vehicles {
		out = append(out, toVehicleResp(&vehicles[i]))
	}
	return c.JSON(http.StatusOK, out)
}

// Get returns one vehicle by ID.
func (h *VehicleHandler) Get(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	v, err := h.Vehicles.GetByID(ctx, id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, toVehicleResp(v))
}

// Update rewrites a vehicle's descriptive fields. A changed slot_id moves
// the vehicle through the coordinator's reassignment path.
func (h *VehicleHandler) Update(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	var req vehicleReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	cat, pay, verr := req.validate()
	if verr != nil {
		return verr
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	v, err := h.Vehicles.GetByID(ctx, id)
	if err != nil {
		return respondError(c, err)
	}

	v.Category = cat
	v.VehicleNumber = req.VehicleNumber
	v.OwnerName = strings.TrimSpace(req.OwnerName)
	v.Mobile = req.Mobile
	v.ParkingCharge = req.ParkingCharge
	v.PaymentMethod = pay
	if err := h.Vehicles.Update(ctx, v); err != nil {
		return respondError(c, err)
	}

	if req.SlotID != 0 && (!v.SlotID.Valid || uint64(v.SlotID.Int64) != req.SlotID) {
		if err := h.checkCategory(ctx, req.SlotID, cat); err != nil {
			return respondError(c, err)
		}
		if err := h.Coord.Reassign(ctx, id, req.SlotID); err != nil {
			return respondError(c, err)
		}
	}
	return c.NoContent(http.StatusNoContent)
}

// Delete checks the vehicle out if it is parked and removes its record.
// Completed sessions stay behind for reporting.
func (h *VehicleHandler) Delete(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	if err := h.Coord.ReleaseVehicle(ctx, id, time.Now().UTC()); err != nil {
		return respondError(c, err)
	}

	tx, err := h.DB.BeginTx(ctx, nil)
	if err != nil {
		return respondError(c, err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := h.Vehicles.DeleteTx(ctx, tx, id); err != nil {
		return respondError(c, err)
	}
	if err := tx.Commit(); err != nil {
		return respondError(c, err)
	}
	committed = true
	return c.NoContent(http.StatusNoContent)
}

package handler

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/parking-facility-management/internal/allocation"
	"github.com/iliyamo/parking-facility-management/internal/repository"
)

// LevelHandler manages facility levels and their slot grids. Grid changes
// run in a single transaction so a level can never be observed with a
// half-written grid.
type LevelHandler struct {
	Levels *repository.LevelRepo
	Slots  *repository.SlotRepo
	Coord  *allocation.Coordinator
}

func NewLevelHandler(levels *repository.LevelRepo, slots *repository.SlotRepo, coord *allocation.Coordinator) *LevelHandler {
	if levels == nil || slots == nil || coord == nil {
		panic("nil dependency passed to NewLevelHandler")
	}
	return &LevelHandler{Levels: levels, Slots: slots, Coord: coord}
}

type levelReq struct {
	LevelNo  uint32 `json:"level_no"`
	Columns  int    `json:"columns"`
	Rows     int    `json:"rows"`
	Category string `json:"vehicle_category"` // optional affinity for all slots
}

type slotResp struct {
	ID          uint64 `json:"id"`
	Label       string `json:"label"`
	Category    string `json:"vehicle_category,omitempty"`
	IsAvailable bool   `json:"is_available"`
}

type levelResp struct {
	ID      uint64     `json:"id"`
	LevelNo uint32     `json:"level_no"`
	Slots   []slotResp `json:"slots,omitempty"`
}

func toSlotResp(s repository.Slot) slotResp {
	out := slotResp{ID: s.ID, Label: s.SlotLabel, IsAvailable: s.IsAvailable}
	if s.VehicleCategory.Valid {
		out.Category = s.VehicleCategory.String
	}
	return out
}

// Create makes a level together with its columns x rows slot grid.
func (h *LevelHandler) Create(c echo.Context) error {
	var req levelReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.LevelNo == 0 || req.Columns < 1 || req.Rows < 1 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "level_no, columns and rows required"})
	}
	if req.Columns > maxGridColumns {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "at most 26 columns per level"})
	}
	var category sql.NullString
	if req.Category != "" {
		cat := normalizeCategory(req.Category)
		if !validCategory(cat) {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "unknown vehicle_category"})
		}
		category = sql.NullString{String: cat, Valid: true}
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	level := &repository.Level{LevelNo: req.LevelNo}
	if err := h.Levels.Create(ctx, level); err != nil {
		return respondError(c, err)
	}

	tx, err := h.Levels.DB().BeginTx(ctx, nil)
	if err != nil {
		return respondError(c, err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	labels := gridLabels(req.Columns, req.Rows)
	slots := make([]repository.Slot, 0, len(labels))
	for _, lbl := range labels {
		slots = append(slots, repository.Slot{LevelID: level.ID, SlotLabel: lbl, VehicleCategory: category})
	}
	if err := h.Slots.CreateBulkTx(ctx, tx, slots); err != nil {
		return respondError(c, err)
	}
	if err := tx.Commit(); err != nil {
		return respondError(c, err)
	}
	committed = true

	return c.JSON(http.StatusCreated, levelResp{ID: level.ID, LevelNo: level.LevelNo})
}

// List returns all levels without their slots.
func (h *LevelHandler) List(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	levels, err := h.Levels.List(ctx)
	if err != nil {
		return respondError(c, err)
	}
	out := make([]levelResp, 0, len(levels))
	for _, l := range levels {
		out = append(out, levelResp{ID: l.ID, LevelNo: l.LevelNo})
	}
	return c.JSON(http.StatusOK, out)
}

// Get returns one level with its full slot grid.
func (h *LevelHandler) Get(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	level, err := h.Levels.GetByID(ctx, id)
	if err != nil {
		return respondError(c, err)
	}
	slots, err := h.Slots.ListByLevel(ctx, level.ID)
	if err != nil {
		return respondError(c, err)
	}
	resp := levelResp{ID: level.ID, LevelNo: level.LevelNo, Slots: make([]slotResp, 0, len(slots))}
	for _, s := range slots {
		resp.Slots = append(resp.Slots, toSlotResp(s))
	}
	return c.JSON(http.StatusOK, resp)
}

// Update renames a level and, when columns/rows are given, reshapes its
// grid. With no occupied slot the grid is regenerated wholesale. With
// occupied slots the reshape is additive only: new labels are inserted,
// free labels outside the new grid are dropped, and an occupied slot that
// would fall outside the new grid aborts the whole update.
func (h *LevelHandler) Update(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	var req levelReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.Columns > maxGridColumns {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "at most 26 columns per level"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	level, err := h.Levels.GetByID(ctx, id)
	if err != nil {
		return respondError(c, err)
	}
	if req.LevelNo != 0 && req.LevelNo != level.LevelNo {
		if err := h.Levels.UpdateLevelNo(ctx, id, req.LevelNo); err != nil {
			return respondError(c, err)
		}
	}

	if req.Columns > 0 && req.Rows > 0 {
		if err := h.reshapeGrid(ctx, id, req.Columns, req.Rows); err != nil {
			return respondError(c, err)
		}
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *LevelHandler) reshapeGrid(ctx context.Context, levelID uint64, columns, rows int) error {
	tx, err := h.Levels.DB().BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	target := gridLabels(columns, rows)
	targetSet := make(map[string]struct{}, len(target))
	for _, lbl := range target {
		targetSet[lbl] = struct{}{}
	}

	occupied, err := h.Slots.CountOccupiedByLevelTx(ctx, tx, levelID)
	if err != nil {
		return err
	}

	existing, err := h.Slots.LabelsByLevelTx(ctx, tx, levelID)
	if err != nil {
		return err
	}

	if occupied == 0 {
		if err := h.Slots.DeleteAvailableByLevelTx(ctx, tx, levelID); err != nil {
			return err
		}
		existing = map[string]struct{}{}
	} else {
		// Additive reshape: drop free labels that leave the grid. An occupied
		// slot outside the new grid surfaces as ErrSlotOccupied from the
		// per-label delete and aborts the transaction.
		for lbl := range existing {
			if _, keep := targetSet[lbl]; !keep {
				if err := h.Slots.DeleteByLabelTx(ctx, tx, levelID, lbl); err != nil {
					return err
				}
				delete(existing, lbl)
			}
		}
	}

	var add []repository.Slot
	for _, lbl := range target {
		if _, ok := existing[lbl]; !ok {
			add = append(add, repository.Slot{LevelID: levelID, SlotLabel: lbl})
		}
	}
	if err := h.Slots.CreateBulkTx(ctx, tx, add); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// Delete removes a level and its slots. A level with any occupied slot
// cannot be deleted.
func (h *LevelHandler) Delete(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	tx, err := h.Levels.DB().BeginTx(ctx, nil)
	if err != nil {
		return respondError(c, err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	occupied, err := h.Slots.CountOccupiedByLevelTx(ctx, tx, id)
	if err != nil {
		return respondError(c, err)
	}
	if occupied > 0 {
		return c.JSON(http.StatusConflict, echo.Map{"error": "level has occupied slots"})
	}
	if err := h.Levels.DeleteTx(ctx, tx, id); err != nil {
		return respondError(c, err)
	}
	if err := tx.Commit(); err != nil {
		return respondError(c, err)
	}
	committed = true
	return c.NoContent(http.StatusNoContent)
}

// DeleteSlot removes one free slot from a level by its label.
func (h *LevelHandler) DeleteSlot(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	label := normalizeLabel(c.Param("label"))
	if label == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "slot label required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	tx, err := h.Levels.DB().BeginTx(ctx, nil)
	if err != nil {
		return respondError(c, err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if err := h.Slots.DeleteByLabelTx(ctx, tx, id, label); err != nil {
		return respondError(c, err)
	}
	if err := tx.Commit(); err != nil {
		return respondError(c, err)
	}
	committed = true
	return c.NoContent(http.StatusNoContent)
}

// ResetSlot forcibly frees a slot, closing any session that holds it.
// Resetting an already-free slot succeeds without effect.
func (h *LevelHandler) ResetSlot(c echo.Context) error {
	slotID, err := pathID(c, "slot_id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Coord.ResetSlot(ctx, slotID, time.Now().UTC()); err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "slot reset"})
}

// Package allocation owns every state transition that touches slot
// occupancy. Each operation runs in a single database transaction so the
// slot flag, its booking reference, the vehicle's slot pointer and the
// session row always change together; the conditional claim inside the
// transaction is what prevents double-booking under concurrency.
package allocation

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/iliyamo/parking-facility-management/internal/repository"
)

// ErrExitBeforeEntry rejects intervals that end before they start.
var ErrExitBeforeEntry = errors.New("exit time precedes entry time")

// ErrNotParked is returned when an operation needs an active session and
// the vehicle has none.
var ErrNotParked = errors.New("vehicle has no active parking session")

// Coordinator orchestrates slot claims and releases across the slot,
// vehicle and session repositories.
type Coordinator struct {
	db       *sql.DB
	slots    *repository.SlotRepo
	vehicles *repository.VehicleRepo
	sessions *repository.SessionRepo
}

// New constructs a Coordinator over the shared database handle.
func New(db *sql.DB, slots *repository.SlotRepo, vehicles *repository.VehicleRepo, sessions *repository.SessionRepo) *Coordinator {
	return &Coordinator{db: db, slots: slots, vehicles: vehicles, sessions: sessions}
}

// CheckIn opens a parking session for a vehicle on a specific slot. With a
// nil exit the session is active and the slot is claimed atomically: of two
// concurrent check-ins on the same slot exactly one succeeds, the other
// gets repository.ErrSlotOccupied. A non-nil exit records a back-filled,
// already-completed stay; no slot is claimed for those.
func (c *Coordinator) CheckIn(ctx context.Context, vehicleID, slotID uint64, entry time.Time, exit *time.Time) (*repository.Session, error) {
	if exit != nil && exit.Before(entry) {
		return nil, ErrExitBeforeEntry
	}
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if _, err := c.vehicles.GetByIDTx(ctx, tx, vehicleID); err != nil {
		return nil, err
	}
	if _, err := c.slots.GetByIDTx(ctx, tx, slotID); err != nil {
		return nil, err
	}

	// A vehicle can park many times, but holds at most one active session.
	if _, err := c.sessions.ActiveByVehicleTx(ctx, tx, vehicleID); err == nil {
		return nil, fmt.Errorf("%w: vehicle already parked", repository.ErrConflict)
	} else if !errors.Is(err, repository.ErrSessionNotFound) {
		return nil, err
	}

	s, err := c.sessions.OpenTx(ctx, tx, vehicleID, slotID, entry, exit)
	if err != nil {
		return nil, err
	}
	if exit == nil {
		if err := c.slots.TryClaimTx(ctx, tx, slotID, s.ID); err != nil {
			return nil, err
		}
		if err := c.vehicles.SetSlotTx(ctx, tx, vehicleID, &slotID); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	committed = true
	return s, nil
}

// CheckOut completes the vehicle's active session at the given exit time,
// frees its slot and clears the vehicle's slot pointer. It returns the
// closed session and the stay duration in whole minutes. A vehicle without
// an active session yields ErrNotParked; the slot itself is untouched, so a
// repeated checkout can never free a slot another vehicle has since
// claimed.
func (c *Coordinator) CheckOut(ctx context.Context, vehicleID uint64, exit time.Time) (*repository.Session, int64, error) {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, 0, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	s, err := c.sessions.ActiveByVehicleTx(ctx, tx, vehicleID)
	if err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return nil, 0, ErrNotParked
		}
		return nil, 0, err
	}
	if exit.Before(s.EntryTime) {
		return nil, 0, ErrExitBeforeEntry
	}

	if err := c.sessions.CloseTx(ctx, tx, s.ID, exit); err != nil {
		return nil, 0, err
	}
	if err := c.slots.ReleaseTx(ctx, tx, s.SlotID); err != nil {
		return nil, 0, err
	}
	if err := c.vehicles.SetSlotTx(ctx, tx, vehicleID, nil); err != nil {
		return nil, 0, err
	}

	if err := tx.Commit(); err != nil {
		return nil, 0, err
	}
	committed = true

	s.ExitTime = sql.NullTime{Time: exit.UTC(), Valid: true}
	s.Status = repository.SessionCompleted
	minutes := int64(exit.Sub(s.EntryTime) / time.Minute)
	return s, minutes, nil
}

// ResetSlot forcibly frees a slot, closing whatever active session holds it
// and clearing the holder's slot pointer. Resetting a slot that is already
// free is a no-op success, so repeated resets converge on the same state.
func (c *Coordinator) ResetSlot(ctx context.Context, slotID uint64, now time.Time) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	slot, err := c.slots.GetByIDTx(ctx, tx, slotID)
	if err != nil {
		return err
	}
	if slot.IsAvailable {
		committed = true
		return tx.Commit()
	}

	if slot.CurrentBookingID.Valid {
		s, err := c.sessions.GetByIDTx(ctx, tx, uint64(slot.CurrentBookingID.Int64))
		switch {
		case err == nil:
			if err := c.sessions.CloseTx(ctx, tx, s.ID, now); err != nil &&
				!errors.Is(err, repository.ErrSessionNotFound) {
				return err
			}
			if err := c.vehicles.SetSlotTx(ctx, tx, s.VehicleID, nil); err != nil &&
				!errors.Is(err, repository.ErrVehicleNotFound) {
				return err
			}
		case errors.Is(err, repository.ErrSessionNotFound):
			// Dangling booking reference; releasing below is all that is left.
		default:
			return err
		}
	}
	if err := c.slots.ReleaseTx(ctx, tx, slotID); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// Reassign moves a vehicle's active session to another slot. The new slot
// is claimed first and the old one released only afterwards, so a failed
// claim rolls back with the vehicle still safely on its original slot.
// Reassigning to the slot already held is a no-op success.
func (c *Coordinator) Reassign(ctx context.Context, vehicleID, newSlotID uint64) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	s, err := c.sessions.ActiveByVehicleTx(ctx, tx, vehicleID)
	if err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return ErrNotParked
		}
		return err
	}
	if s.SlotID == newSlotID {
		committed = true
		return tx.Commit()
	}

	if err := c.slots.TryClaimTx(ctx, tx, newSlotID, s.ID); err != nil {
		return err
	}
	if err := c.slots.ReleaseTx(ctx, tx, s.SlotID); err != nil {
		return err
	}
	if err := c.sessions.SetSlotTx(ctx, tx, s.ID, newSlotID); err != nil {
		return err
	}
	if err := c.vehicles.SetSlotTx(ctx, tx, vehicleID, &newSlotID); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// AmendSession rewrites a session's interval after the fact. Setting an
// exit on an active session completes it and frees its slot; clearing the
// exit of a completed session reopens it, which requires re-claiming the
// slot and fails with repository.ErrSlotOccupied if another vehicle has
// taken it in the meantime.
func (c *Coordinator) AmendSession(ctx context.Context, sessionID uint64, entry time.Time, exit *time.Time) error {
	if exit != nil && exit.Before(entry) {
		return ErrExitBeforeEntry
	}
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	s, err := c.sessions.GetByIDTx(ctx, tx, sessionID)
	if err != nil {
		return err
	}

	var exitVal sql.NullTime
	status := repository.SessionActive
	if exit != nil {
		exitVal = sql.NullTime{Time: exit.UTC(), Valid: true}
		status = repository.SessionCompleted
	}

	switch {
	case s.Status == repository.SessionActive && status == repository.SessionCompleted:
		if err := c.slots.ReleaseTx(ctx, tx, s.SlotID); err != nil {
			return err
		}
		if err := c.vehicles.SetSlotTx(ctx, tx, s.VehicleID, nil); err != nil &&
			!errors.Is(err, repository.ErrVehicleNotFound) {
			return err
		}
	case s.Status == repository.SessionCompleted && status == repository.SessionActive:
		if _, err := c.sessions.ActiveByVehicleTx(ctx, tx, s.VehicleID); err == nil {
			return fmt.Errorf("%w: vehicle already parked", repository.ErrConflict)
		} else if !errors.Is(err, repository.ErrSessionNotFound) {
			return err
		}
		if err := c.slots.TryClaimTx(ctx, tx, s.SlotID, s.ID); err != nil {
			return err
		}
		slotID := s.SlotID
		if err := c.vehicles.SetSlotTx(ctx, tx, s.VehicleID, &slotID); err != nil {
			return err
		}
	}

	if err := c.sessions.UpdateTimesTx(ctx, tx, s.ID, entry, exitVal, status); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// PurgeSession deletes a session row outright. If the session is still
// active its slot is released and the vehicle's pointer cleared first, so
// the occupancy invariant survives the purge.
func (c *Coordinator) PurgeSession(ctx context.Context, sessionID uint64) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	s, err := c.sessions.GetByIDTx(ctx, tx, sessionID)
	if err != nil {
		return err
	}
	if s.Status == repository.SessionActive {
		if err := c.slots.ReleaseTx(ctx, tx, s.SlotID); err != nil {
			return err
		}
		if err := c.vehicles.SetSlotTx(ctx, tx, s.VehicleID, nil); err != nil &&
			!errors.Is(err, repository.ErrVehicleNotFound) {
			return err
		}
	}
	if err := c.sessions.DeleteTx(ctx, tx, s.ID); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// ReleaseVehicle closes out everything a vehicle holds before the vehicle
// row itself is deleted: its active session is completed at now and its
// slot freed. Vehicles without an active session pass through untouched.
func (c *Coordinator) ReleaseVehicle(ctx context.Context, vehicleID uint64, now time.Time) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	s, err := c.sessions.ActiveByVehicleTx(ctx, tx, vehicleID)
	switch {
	case err == nil:
		if err := c.sessions.CloseTx(ctx, tx, s.ID, now); err != nil {
			return err
		}
		if err := c.slots.ReleaseTx(ctx, tx, s.SlotID); err != nil {
			return err
		}
		if err := c.vehicles.SetSlotTx(ctx, tx, vehicleID, nil); err != nil {
			return err
		}
	case errors.Is(err, repository.ErrSessionNotFound):
	default:
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

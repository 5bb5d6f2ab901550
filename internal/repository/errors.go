// Package repository defines error values shared across the data access
// layer. Handlers and the allocation coordinator translate these into HTTP
// responses: not-found sentinels become 404, ErrConflict and the occupancy
// errors become 409.
package repository

import (
	"errors"
	"strings"
)

// ErrLevelNotFound is returned when a level lookup yields no rows.
var ErrLevelNotFound = errors.New("level not found")

// ErrSlotNotFound is returned when a slot lookup yields no rows.
var ErrSlotNotFound = errors.New("slot not found")

// ErrVehicleNotFound is returned when a vehicle lookup yields no rows.
var ErrVehicleNotFound = errors.New("vehicle not found")

// ErrSessionNotFound is returned when a parking session lookup yields no
// rows, or when a close targets a session that is no longer active.
var ErrSessionNotFound = errors.New("parking session not found")

// ErrShiftNotFound is returned when a shift lookup yields no rows.
var ErrShiftNotFound = errors.New("shift not found")

// ErrUserNotFound is returned when a staff account lookup yields no rows.
var ErrUserNotFound = errors.New("user not found")

// ErrConflict signals that an operation cannot proceed because of existing
// state: a duplicate unique field, a slot already referenced by another
// vehicle, or a vehicle that already has an active session.
var ErrConflict = errors.New("conflict")

// ErrSlotOccupied is returned when a conditional claim loses the race for a
// slot. Callers must pick another slot; the claim is never retried here.
var ErrSlotOccupied = errors.New("slot already occupied")

// duplicateKey reports whether err is a unique-constraint violation.
// MySQL reports error 1062; the SQLite harness used by the tests reports
// "UNIQUE constraint failed".
func duplicateKey(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "1062") || strings.Contains(msg, "unique constraint failed")
}

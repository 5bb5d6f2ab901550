package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// Session statuses. A session is completed exactly when its exit time is
// recorded; the pair is always written together.
const (
	SessionActive    = "active"
	SessionCompleted = "completed"
)

// Session represents one stay: a vehicle on a slot over a time interval.
// Rows are never deleted on checkout — history stays queryable; only an
// explicit administrative purge removes them.
type Session struct {
	ID        uint64
	VehicleID uint64
	SlotID    uint64
	EntryTime time.Time
	ExitTime  sql.NullTime
	Status    string // active | completed
	CreatedAt time.Time
	UpdatedAt time.Time
}

// SessionRepo provides data access to the parking_sessions table. Writes
// run inside transactions owned by the allocation coordinator so that a
// session change and its slot/vehicle updates commit as one unit.
type SessionRepo struct {
	db *sql.DB
}

// NewSessionRepo returns a SessionRepo bound to the provided database.
func NewSessionRepo(db *sql.DB) *SessionRepo { return &SessionRepo{db: db} }

const sessionColumns = `id, vehicle_id, slot_id, entry_time, exit_time, status, created_at, updated_at`

func scanSession(row interface{ Scan(...any) error }) (*Session, error) {
	var s Session
	err := row.Scan(&s.ID, &s.VehicleID, &s.SlotID, &s.EntryTime, &s.ExitTime,
		&s.Status, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	return &s, nil
}

// OpenTx inserts a new session within the provided transaction. When exit
// is nil the session is active; a pre-recorded exit produces a completed
// row (the operator can back-fill a finished stay). The caller must have
// verified that the vehicle has no other active session.
func (r *SessionRepo) OpenTx(ctx context.Context, tx *sql.Tx, vehicleID, slotID uint64, entry time.Time, exit *time.Time) (*Session, error) {
	status := SessionActive
	var exitVal sql.NullTime
	if exit != nil {
		status = SessionCompleted
		exitVal = sql.NullTime{Time: exit.UTC(), Valid: true}
	}
	const q = `INSERT INTO parking_sessions (vehicle_id, slot_id, entry_time, exit_time, status)
	           VALUES (?, ?, ?, ?, ?)`
	res, err := tx.ExecContext(ctx, q, vehicleID, slotID, entry.UTC(), exitVal, status)
	if err != nil {
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	const sel = `SELECT ` + sessionColumns + ` FROM parking_sessions WHERE id = ?`
	return scanSession(tx.QueryRowContext(ctx, sel, uint64(id)))
}

// GetByID retrieves a session by its primary key.
func (r *SessionRepo) GetByID(ctx context.Context, id uint64) (*Session, error) {
	const q = `SELECT ` + sessionColumns + ` FROM parking_sessions WHERE id = ?`
	return scanSession(r.db.QueryRowContext(ctx, q, id))
}

// GetByIDTx is GetByID inside an existing transaction.
func (r *SessionRepo) GetByIDTx(ctx context.Context, tx *sql.Tx, id uint64) (*Session, error) {
	const q = `SELECT ` + sessionColumns + ` FROM parking_sessions WHERE id = ?`
	return scanSession(tx.QueryRowContext(ctx, q, id))
}

// ActiveByVehicleTx returns the vehicle's active session, or
// ErrSessionNotFound when the vehicle is not parked. At most one row can
// match: check-in refuses to open a second active session.
func (r *SessionRepo) ActiveByVehicleTx(ctx context.Context, tx *sql.Tx, vehicleID uint64) (*Session, error) {
	const q = `SELECT ` + sessionColumns + ` FROM parking_sessions
	           WHERE vehicle_id = ? AND status = ? LIMIT 1`
	return scanSession(tx.QueryRowContext(ctx, q, vehicleID, SessionActive))
}

// ActiveBySlotTx returns the active session occupying a slot, if any.
func (r *SessionRepo) ActiveBySlotTx(ctx context.Context, tx *sql.Tx, slotID uint64) (*Session, error) {
	const q = `SELECT ` + sessionColumns + ` FROM parking_sessions
	           WHERE slot_id = ? AND status = ? LIMIT 1`
	return scanSession(tx.QueryRowContext(ctx, q, slotID, SessionActive))
}

// CloseTx records the exit time and completes the session. The status
// check is part of the WHERE clause, so closing an already-completed
// session matches zero rows and reports ErrSessionNotFound — a second
// checkout can then be answered as a no-op instead of double-freeing a
// slot another vehicle may have claimed since.
func (r *SessionRepo) CloseTx(ctx context.Context, tx *sql.Tx, id uint64, exit time.Time) error {
	const q = `UPDATE parking_sessions
	           SET exit_time = ?, status = ?, updated_at = CURRENT_TIMESTAMP
	           WHERE id = ? AND status = ?`
	res, err := tx.ExecContext(ctx, q, exit.UTC(), SessionCompleted, id, SessionActive)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// UpdateTimesTx rewrites a session's interval and status after an
// amendment. The status must be kept consistent with the exit value by the
// caller (completed iff exit is set).
func (r *SessionRepo) UpdateTimesTx(ctx context.Context, tx *sql.Tx, id uint64, entry time.Time, exit sql.NullTime, status string) error {
	const q = `UPDATE parking_sessions
	           SET entry_time = ?, exit_time = ?, status = ?, updated_at = CURRENT_TIMESTAMP
	           WHERE id = ?`
	if exit.Valid {
		exit.Time = exit.Time.UTC()
	}
	res, err := tx.ExecContext(ctx, q, entry.UTC(), exit, status, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// SetSlotTx moves a session to another slot during reassignment.
func (r *SessionRepo) SetSlotTx(ctx context.Context, tx *sql.Tx, id, slotID uint64) error {
	const q = `UPDATE parking_sessions SET slot_id = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`
	res, err := tx.ExecContext(ctx, q, slotID, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// DeleteTx removes a session row. Only the administrative purge path uses
// this; normal checkout completes the row instead.
func (r *SessionRepo) DeleteTx(ctx context.Context, tx *sql.Tx, id uint64) error {
	res, err := tx.ExecContext(ctx, `DELETE FROM parking_sessions WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// ListByEntryRange returns sessions whose entry time falls inside the
// half-open interval [from, to), newest first. Used by the history report.
func (r *SessionRepo) ListByEntryRange(ctx context.Context, from, to time.Time) ([]Session, error) {
	const q = `SELECT ` + sessionColumns + ` FROM parking_sessions
	           WHERE entry_time >= ? AND entry_time < ?
	           ORDER BY entry_time DESC, id DESC`
	rows, err := r.db.QueryContext(ctx, q, from.UTC(), to.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Session
	for rows.Next() {
		var s Session
		if err := rows.Scan(&s.ID, &s.VehicleID, &s.SlotID, &s.EntryTime, &s.ExitTime,
			&s.Status, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

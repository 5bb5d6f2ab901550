package repository // repository for parking slot persistence

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// Slot represents a single physical parking space inside a level. The pair
// (is_available, current_booking_id) is the registry's occupancy state:
// a slot is unavailable exactly when it carries a booking reference.
type Slot struct {
	ID               uint64         // primary key
	LevelID          uint64         // FK -> levels.id
	SlotLabel        string         // e.g. A3: column letter + row number
	VehicleCategory  sql.NullString // optional affinity: Car | Bike | Truck
	IsAvailable      bool           // availability flag
	CurrentBookingID sql.NullInt64  // active session reference, NULL when available
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// SlotRepo encapsulates database operations for slots.
type SlotRepo struct {
	db *sql.DB
}

// NewSlotRepo constructs a SlotRepo given a DB handle.
func NewSlotRepo(db *sql.DB) *SlotRepo {
	return &SlotRepo{db: db}
}

const slotColumns = `id, level_id, slot_label, vehicle_category, is_available, current_booking_id, created_at, updated_at`

func scanSlot(row interface{ Scan(...any) error }) (*Slot, error) {
	var s Slot
	err := row.Scan(&s.ID, &s.LevelID, &s.SlotLabel, &s.VehicleCategory,
		&s.IsAvailable, &s.CurrentBookingID, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSlotNotFound
		}
		return nil, err
	}
	return &s, nil
}

// GetByID retrieves a slot by its primary key.
func (r *SlotRepo) GetByID(ctx context.Context, id uint64) (*Slot, error) {
	const q = `SELECT ` + slotColumns + ` FROM slots WHERE id = ?`
	return scanSlot(r.db.QueryRowContext(ctx, q, id))
}

// GetByIDTx is GetByID inside an existing transaction.
func (r *SlotRepo) GetByIDTx(ctx context.Context, tx *sql.Tx, id uint64) (*Slot, error) {
	const q = `SELECT ` + slotColumns + ` FROM slots WHERE id = ?`
	return scanSlot(tx.QueryRowContext(ctx, q, id))
}

// CreateBulkTx inserts multiple slots for a level in a single statement
// within the provided transaction. Passing an empty slice has no effect.
func (r *SlotRepo) CreateBulkTx(ctx context.Context, tx *sql.Tx, slots []Slot) error {
	if len(slots) == 0 {
		return nil
	}
	query := `INSERT INTO slots (level_id, slot_label, vehicle_category) VALUES `
	args := make([]interface{}, 0, len(slots)*3)
	for i, s := range slots {
		if i > 0 {
			query += ","
		}
		query += "(?, ?, ?)"
		args = append(args, s.LevelID, s.SlotLabel, s.VehicleCategory)
	}
	_, err := tx.ExecContext(ctx, query, args...)
	return err
}

// ListByLevel retrieves all slots of a level ordered by label. Labels sort
// column-first (A1..A9 before B1) which matches the generation order for
// grids up to nine rows; handlers re-sort numerically for display.
func (r *SlotRepo) ListByLevel(ctx context.Context, levelID uint64) ([]Slot, error) {
	const q = `SELECT ` + slotColumns + ` FROM slots WHERE level_id = ? ORDER BY slot_label`
	rows, err := r.db.QueryContext(ctx, q, levelID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Slot
	for rows.Next() {
		var s Slot
		if err := rows.Scan(&s.ID, &s.LevelID, &s.SlotLabel, &s.VehicleCategory,
			&s.IsAvailable, &s.CurrentBookingID, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// LabelsByLevelTx returns the set of existing slot labels on a level within
// a transaction. Used when extending a level's grid to skip labels that are
// already present.
func (r *SlotRepo) LabelsByLevelTx(ctx context.Context, tx *sql.Tx, levelID uint64) (map[string]struct{}, error) {
	rows, err := tx.QueryContext(ctx, `SELECT slot_label FROM slots WHERE level_id = ?`, levelID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	labels := make(map[string]struct{})
	for rows.Next() {
		var lbl string
		if err := rows.Scan(&lbl); err != nil {
			return nil, err
		}
		labels[lbl] = struct{}{}
	}
	return labels, rows.Err()
}

// TryClaimTx atomically marks a slot occupied and links it to a session.
// The WHERE clause carries the availability check so that two concurrent
// claims on the same slot cannot both succeed: the losing writer matches
// zero rows and receives ErrSlotOccupied. A missing slot is reported as
// ErrSlotNotFound, distinguished by a follow-up existence probe.
func (r *SlotRepo) TryClaimTx(ctx context.Context, tx *sql.Tx, slotID, sessionID uint64) error {
	const q = `UPDATE slots
	           SET is_available = 0, current_booking_id = ?, updated_at = CURRENT_TIMESTAMP
	           WHERE id = ? AND is_available = 1`
	res, err := tx.ExecContext(ctx, q, sessionID, slotID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}
	// Zero rows: either the slot does not exist or it is already occupied.
	var exists int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM slots WHERE id = ?`, slotID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrSlotNotFound
	}
	if err != nil {
		return err
	}
	return ErrSlotOccupied
}

// ReleaseTx marks a slot available and clears its booking reference. The
// write is unconditional, which makes release idempotent: freeing an
// already-free slot matches the row and is a success. A missing slot is
// ErrSlotNotFound.
func (r *SlotRepo) ReleaseTx(ctx context.Context, tx *sql.Tx, slotID uint64) error {
	const q = `UPDATE slots
	           SET is_available = 1, current_booking_id = NULL, updated_at = CURRENT_TIMESTAMP
	           WHERE id = ?`
	res, err := tx.ExecContext(ctx, q, slotID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrSlotNotFound
	}
	return nil
}

// CountOccupiedByLevelTx returns how many slots on a level are currently
// occupied. Level deletion and grid regeneration refuse to proceed while
// this is non-zero.
func (r *SlotRepo) CountOccupiedByLevelTx(ctx context.Context, tx *sql.Tx, levelID uint64) (int, error) {
	var n int
	err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM slots WHERE level_id = ? AND is_available = 0`, levelID).Scan(&n)
	return n, err
}

// DeleteByLabelTx removes a single slot from a level by its label. An
// occupied slot cannot be deleted; release it first.
func (r *SlotRepo) DeleteByLabelTx(ctx context.Context, tx *sql.Tx, levelID uint64, label string) error {
	var s Slot
	err := tx.QueryRowContext(ctx,
		`SELECT id, is_available FROM slots WHERE level_id = ? AND slot_label = ?`,
		levelID, label).Scan(&s.ID, &s.IsAvailable)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrSlotNotFound
	}
	if err != nil {
		return err
	}
	if !s.IsAvailable {
		return ErrSlotOccupied
	}
	_, err = tx.ExecContext(ctx, `DELETE FROM slots WHERE id = ?`, s.ID)
	return err
}

// DeleteAvailableByLevelTx removes every free slot on a level. It is used
// when a level's grid is regenerated; occupied slots must have been counted
// beforehand by CountOccupiedByLevelTx.
func (r *SlotRepo) DeleteAvailableByLevelTx(ctx context.Context, tx *sql.Tx, levelID uint64) error {
	_, err := tx.ExecContext(ctx,
		`DELETE FROM slots WHERE level_id = ? AND is_available = 1`, levelID)
	return err
}

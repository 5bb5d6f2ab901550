package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Shift is a named working window staff can be assigned to. Start and end
// are wall-clock strings ("HH:MM"); the window may wrap past midnight.
type Shift struct {
	ID        uint64
	ShiftName string
	StartTime string
	EndTime   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type ShiftRepo struct{ db *sql.DB }

func NewShiftRepo(db *sql.DB) *ShiftRepo { return &ShiftRepo{db: db} }

const shiftColumns = `id, shift_name, start_time, end_time, created_at, updated_at`

func scanShift(row interface{ Scan(...any) error }) (*Shift, error) {
	var s Shift
	err := row.Scan(&s.ID, &s.ShiftName, &s.StartTime, &s.EndTime, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrShiftNotFound
		}
		return nil, err
	}
	return &s, nil
}

// Create inserts a shift. Shift names are unique; a duplicate is ErrConflict.
func (r *ShiftRepo) Create(ctx context.Context, s *Shift) error {
	const q = `INSERT INTO shifts (shift_name, start_time, end_time) VALUES (?, ?, ?)`
	res, err := r.db.ExecContext(ctx, q, s.ShiftName, s.StartTime, s.EndTime)
	if err != nil {
		if duplicateKey(err) {
			return fmt.Errorf("%w: shift %q already exists", ErrConflict, s.ShiftName)
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	s.ID = uint64(id)
	const sel = `SELECT ` + shiftColumns + ` FROM shifts WHERE id = ?`
	got, err := scanShift(r.db.QueryRowContext(ctx, sel, s.ID))
	if err != nil {
		return err
	}
	*s = *got
	return nil
}

// GetByID retrieves a shift by its primary key.
func (r *ShiftRepo) GetByID(ctx context.Context, id uint64) (*Shift, error) {
	const q = `SELECT ` + shiftColumns + ` FROM shifts WHERE id = ?`
	return scanShift(r.db.QueryRowContext(ctx, q, id))
}

// List returns all shifts ordered by name.
func (r *ShiftRepo) List(ctx context.Context) ([]Shift, error) {
	const q = `SELECT ` + shiftColumns + ` FROM shifts ORDER BY shift_name`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Shift
	for rows.Next() {
		var s Shift
		if err := rows.Scan(&s.ID, &s.ShiftName, &s.StartTime, &s.EndTime, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Update rewrites a shift's name and window.
func (r *ShiftRepo) Update(ctx context.Context, s *Shift) error {
	const q = `UPDATE shifts
	           SET shift_name = ?, start_time = ?, end_time = ?, updated_at = CURRENT_TIMESTAMP
	           WHERE id = ?`
	res, err := r.db.ExecContext(ctx, q, s.ShiftName, s.StartTime, s.EndTime, s.ID)
	if err != nil {
		if duplicateKey(err) {
			return fmt.Errorf("%w: shift %q already exists", ErrConflict, s.ShiftName)
		}
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrShiftNotFound
	}
	return nil
}

// Delete removes a shift. Staff assignments keep the name as plain text, so
// no referential cleanup is needed.
func (r *ShiftRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM shifts WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrShiftNotFound
	}
	return nil
}

package repository // repository holds data access logic for domain entities

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Level represents one floor or section of the facility. A level owns an
// ordered grid of slots; slots have no lifecycle outside their level.
type Level struct {
	ID        uint64    // primary key
	LevelNo   uint32    // facility-wide unique level number
	CreatedAt time.Time // creation timestamp
	UpdatedAt time.Time // last modification timestamp
}

// LevelRepo provides methods to create and retrieve levels. It embeds a
// database handle to perform queries and commands.
type LevelRepo struct {
	db *sql.DB
}

// NewLevelRepo constructs a LevelRepo with the given DB handle.
func NewLevelRepo(db *sql.DB) *LevelRepo {
	return &LevelRepo{db: db}
}

// DB exposes the underlying handle so callers can open transactions that
// span levels and slots.
func (r *LevelRepo) DB() *sql.DB { return r.db }

// Create inserts a new level. The level number must be unique across the
// facility; a duplicate is reported as ErrConflict. On success the ID is
// populated.
func (r *LevelRepo) Create(ctx context.Context, l *Level) error {
	const q = `INSERT INTO levels (level_no) VALUES (?)`
	res, err := r.db.ExecContext(ctx, q, l.LevelNo)
	if err != nil {
		if duplicateKey(err) {
			return fmt.Errorf("%w: level number %d already exists", ErrConflict, l.LevelNo)
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	l.ID = uint64(id)
	const sel = `SELECT id, level_no, created_at, updated_at FROM levels WHERE id = ?`
	return r.db.QueryRowContext(ctx, sel, l.ID).
		Scan(&l.ID, &l.LevelNo, &l.CreatedAt, &l.UpdatedAt)
}

// GetByID retrieves a level by its primary key. Returns ErrLevelNotFound
// when no row matches.
func (r *LevelRepo) GetByID(ctx context.Context, id uint64) (*Level, error) {
	const q = `SELECT id, level_no, created_at, updated_at FROM levels WHERE id = ?`
	var l Level
	err := r.db.QueryRowContext(ctx, q, id).
		Scan(&l.ID, &l.LevelNo, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrLevelNotFound
		}
		return nil, err
	}
	return &l, nil
}

// GetByLevelNo retrieves a level by its facility-wide number.
func (r *LevelRepo) GetByLevelNo(ctx context.Context, levelNo uint32) (*Level, error) {
	const q = `SELECT id, level_no, created_at, updated_at FROM levels WHERE level_no = ?`
	var l Level
	err := r.db.QueryRowContext(ctx, q, levelNo).
		Scan(&l.ID, &l.LevelNo, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrLevelNotFound
		}
		return nil, err
	}
	return &l, nil
}

// List returns all levels ordered by level number.
func (r *LevelRepo) List(ctx context.Context) ([]Level, error) {
	const q = `SELECT id, level_no, created_at, updated_at FROM levels ORDER BY level_no`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Level
	for rows.Next() {
		var l Level
		if err := rows.Scan(&l.ID, &l.LevelNo, &l.CreatedAt, &l.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateLevelNo renames a level. A duplicate target number is reported as
// ErrConflict; a missing level as ErrLevelNotFound.
func (r *LevelRepo) UpdateLevelNo(ctx context.Context, id uint64, levelNo uint32) error {
	const q = `UPDATE levels SET level_no = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`
	res, err := r.db.ExecContext(ctx, q, levelNo, id)
	if err != nil {
		if duplicateKey(err) {
			return fmt.Errorf("%w: level number %d already exists", ErrConflict, levelNo)
		}
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrLevelNotFound
	}
	return nil
}

// DeleteTx removes a level and, via the schema's cascade, its slots. The
// caller is responsible for verifying beforehand that no slot on the level
// is occupied; the coordinator does this inside the same transaction.
func (r *LevelRepo) DeleteTx(ctx context.Context, tx *sql.Tx, id uint64) error {
	res, err := tx.ExecContext(ctx, `DELETE FROM levels WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrLevelNotFound
	}
	// The test schema has no cascading foreign key, so remove slots
	// explicitly; on MySQL this is a no-op after the cascade.
	_, err = tx.ExecContext(ctx, `DELETE FROM slots WHERE level_id = ?`, id)
	return err
}

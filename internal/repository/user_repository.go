package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Staff roles and duty statuses.
const (
	RoleAdmin    = "ADMIN"
	RoleEmployee = "EMPLOYEE"

	DutyOn  = "ON"
	DutyOff = "OFF"
)

// User mirrors the users table: one staff account, either an administrator
// or a gate employee.
type User struct {
	ID           uint64
	Email        string
	PasswordHash string
	FullName     string
	MobileNo     string
	Role         string // ADMIN | EMPLOYEE
	DutyStatus   string // ON | OFF
	ShiftName    string
	IsActive     bool
	ResetCode    sql.NullString
	ResetExpires sql.NullTime
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type UserRepo struct{ db *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{db: db} }

const userColumns = `id, email, password_hash, full_name, mobile_no, role, duty_status, shift_name, is_active, reset_code, reset_expires, created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }) (*User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.FullName, &u.MobileNo,
		&u.Role, &u.DutyStatus, &u.ShiftName, &u.IsActive,
		&u.ResetCode, &u.ResetExpires, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &u, nil
}

// Create inserts a staff account and returns its ID. The password must
// already be hashed. A duplicate email is ErrConflict.
func (r *UserRepo) Create(ctx context.Context, email, passwordHash, fullName, mobile, role string) (uint64, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	const q = `INSERT INTO users (email, password_hash, full_name, mobile_no, role)
	           VALUES (?, ?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, q, email, passwordHash, fullName, mobile, role)
	if err != nil {
		if duplicateKey(err) {
			return 0, fmt.Errorf("%w: email already registered", ErrConflict)
		}
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// GetByEmail fetches an account by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	const q = `SELECT ` + userColumns + ` FROM users WHERE email = ? LIMIT 1`
	return scanUser(r.db.QueryRowContext(ctx, q, email))
}

// GetByID fetches an account by id.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (*User, error) {
	const q = `SELECT ` + userColumns + ` FROM users WHERE id = ? LIMIT 1`
	return scanUser(r.db.QueryRowContext(ctx, q, id))
}

// ListEmployees returns all active employee accounts ordered by name.
func (r *UserRepo) ListEmployees(ctx context.Context) ([]User, error) {
	const q = `SELECT ` + userColumns + ` FROM users
	           WHERE role = ? AND is_active = 1 ORDER BY full_name, id`
	rows, err := r.db.QueryContext(ctx, q, RoleEmployee)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []User
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.FullName, &u.MobileNo,
			&u.Role, &u.DutyStatus, &u.ShiftName, &u.IsActive,
			&u.ResetCode, &u.ResetExpires, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateProfile rewrites name, mobile, duty status and shift assignment.
func (r *UserRepo) UpdateProfile(ctx context.Context, id uint64, fullName, mobile, dutyStatus, shiftName string) error {
	const q = `UPDATE users
	           SET full_name = ?, mobile_no = ?, duty_status = ?, shift_name = ?, updated_at = CURRENT_TIMESTAMP
	           WHERE id = ?`
	res, err := r.db.ExecContext(ctx, q, fullName, mobile, dutyStatus, shiftName, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrUserNotFound
	}
	return nil
}

// SetDutyStatus flips an employee on or off duty.
func (r *UserRepo) SetDutyStatus(ctx context.Context, id uint64, status string) error {
	const q = `UPDATE users SET duty_status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`
	res, err := r.db.ExecContext(ctx, q, status, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrUserNotFound
	}
	return nil
}

// SetResetCode stores a one-time password reset code with its expiry.
func (r *UserRepo) SetResetCode(ctx context.Context, id uint64, code string, expires time.Time) error {
	const q = `UPDATE users SET reset_code = ?, reset_expires = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`
	res, err := r.db.ExecContext(ctx, q, code, expires.UTC(), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrUserNotFound
	}
	return nil
}

// UpdatePassword replaces the password hash and clears any pending reset
// code, so a consumed code cannot be replayed.
func (r *UserRepo) UpdatePassword(ctx context.Context, id uint64, passwordHash string) error {
	const q = `UPDATE users
	           SET password_hash = ?, reset_code = NULL, reset_expires = NULL, updated_at = CURRENT_TIMESTAMP
	           WHERE id = ?`
	res, err := r.db.ExecContext(ctx, q, passwordHash, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrUserNotFound
	}
	return nil
}

// Deactivate soft-deletes an account. Login and listing filter on is_active
// so the row and its audit trail stay behind.
func (r *UserRepo) Deactivate(ctx context.Context, id uint64) error {
	const q = `UPDATE users SET is_active = 0, updated_at = CURRENT_TIMESTAMP WHERE id = ?`
	res, err := r.db.ExecContext(ctx, q, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrUserNotFound
	}
	return nil
}

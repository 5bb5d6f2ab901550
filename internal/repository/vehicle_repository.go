package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Vehicle mirrors the vehicles table. SlotID is a weak reference to the
// slot the vehicle currently occupies; it is NULL while the vehicle is not
// parked. Vehicle number and mobile are unique across the facility.
type Vehicle struct {
	ID            uint64
	Category      string // Car | Bike | Truck
	VehicleNumber string
	OwnerName     string
	Mobile        string
	SlotID        sql.NullInt64
	ParkingCharge uint32
	PaymentMethod string // Online | Offline
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// VehicleRepo provides CRUD operations for vehicles. Uniqueness of the
// vehicle number and mobile is enforced by the database at write time, not
// by a prior existence check, so a race between two inserts cannot produce
// duplicates: the second write fails and is mapped to ErrConflict.
type VehicleRepo struct {
	db *sql.DB
}

// NewVehicleRepo constructs a VehicleRepo bound to the given database.
func NewVehicleRepo(db *sql.DB) *VehicleRepo { return &VehicleRepo{db: db} }

const vehicleColumns = `id, category, vehicle_number, owner_name, mobile, slot_id, parking_charge, payment_method, created_at, updated_at`

func scanVehicle(row interface{ Scan(...any) error }) (*Vehicle, error) {
	var v Vehicle
	err := row.Scan(&v.ID, &v.Category, &v.VehicleNumber, &v.OwnerName, &v.Mobile,
		&v.SlotID, &v.ParkingCharge, &v.PaymentMethod, &v.CreatedAt, &v.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrVehicleNotFound
		}
		return nil, err
	}
	return &v, nil
}

// Create inserts a vehicle and populates its ID. Duplicate vehicle number
// or mobile is reported as ErrConflict naming the offending field.
func (r *VehicleRepo) Create(ctx context.Context, v *Vehicle) error {
	v.VehicleNumber = strings.ToUpper(strings.TrimSpace(v.VehicleNumber))
	v.Mobile = strings.TrimSpace(v.Mobile)
	const q = `INSERT INTO vehicles (category, vehicle_number, owner_name, mobile, parking_charge, payment_method)
	           VALUES (?, ?, ?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, q,
		v.Category, v.VehicleNumber, v.OwnerName, v.Mobile, v.ParkingCharge, v.PaymentMethod)
	if err != nil {
		if duplicateKey(err) {
			return fmt.Errorf("%w: vehicle number or mobile already registered", ErrConflict)
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	v.ID = uint64(id)
	const sel = `SELECT ` + vehicleColumns + ` FROM vehicles WHERE id = ?`
	got, err := scanVehicle(r.db.QueryRowContext(ctx, sel, v.ID))
	if err != nil {
		return err
	}
	*v = *got
	return nil
}

// GetByID retrieves a vehicle by its primary key.
func (r *VehicleRepo) GetByID(ctx context.Context, id uint64) (*Vehicle, error) {
	const q = `SELECT ` + vehicleColumns + ` FROM vehicles WHERE id = ?`
	return scanVehicle(r.db.QueryRowContext(ctx, q, id))
}

// GetByIDTx is GetByID inside an existing transaction.
func (r *VehicleRepo) GetByIDTx(ctx context.Context, tx *sql.Tx, id uint64) (*Vehicle, error) {
	const q = `SELECT ` + vehicleColumns + ` FROM vehicles WHERE id = ?`
	return scanVehicle(tx.QueryRowContext(ctx, q, id))
}

// GetByNumber retrieves a vehicle by its (normalized) vehicle number.
func (r *VehicleRepo) GetByNumber(ctx context.Context, number string) (*Vehicle, error) {
	const q = `SELECT ` + vehicleColumns + ` FROM vehicles WHERE vehicle_number = ?`
	return scanVehicle(r.db.QueryRowContext(ctx, q, strings.ToUpper(strings.TrimSpace(number))))
}

// List returns all vehicles, newest first.
func (r *VehicleRepo) List(ctx context.Context) ([]Vehicle, error) {
	const q = `SELECT ` + vehicleColumns + ` FROM vehicles ORDER BY created_at DESC, id DESC`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Vehicle
	for rows.Next() {
		var v Vehicle
		if err := rows.Scan(&v.ID, &v.Category, &v.VehicleNumber, &v.OwnerName, &v.Mobile,
			&v.SlotID, &v.ParkingCharge, &v.PaymentMethod, &v.CreatedAt, &v.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Update rewrites a vehicle's descriptive fields. The unique columns are
// re-validated by the database against all other rows; a duplicate is
// ErrConflict. The slot reference is not touched here — it belongs to the
// allocation coordinator.
func (r *VehicleRepo) Update(ctx context.Context, v *Vehicle) error {
	v.VehicleNumber = strings.ToUpper(strings.TrimSpace(v.VehicleNumber))
	v.Mobile = strings.TrimSpace(v.Mobile)
	const q = `UPDATE vehicles
	           SET category = ?, vehicle_number = ?, owner_name = ?, mobile = ?,
	               parking_charge = ?, payment_method = ?, updated_at = CURRENT_TIMESTAMP
	           WHERE id = ?`
	res, err := r.db.ExecContext(ctx, q,
		v.Category, v.VehicleNumber, v.OwnerName, v.Mobile,
		v.ParkingCharge, v.PaymentMethod, v.ID)
	if err != nil {
		if duplicateKey(err) {
			return fmt.Errorf("%w: vehicle number or mobile already registered", ErrConflict)
		}
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrVehicleNotFound
	}
	return nil
}

// SetSlotTx updates the vehicle's slot reference within a transaction.
// Pass nil to clear the reference on checkout or release.
func (r *VehicleRepo) SetSlotTx(ctx context.Context, tx *sql.Tx, vehicleID uint64, slotID *uint64) error {
	var ref sql.NullInt64
	if slotID != nil {
		ref = sql.NullInt64{Int64: int64(*slotID), Valid: true}
	}
	const q = `UPDATE vehicles SET slot_id = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`
	res, err := tx.ExecContext(ctx, q, ref, vehicleID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrVehicleNotFound
	}
	return nil
}

// BySlotTx returns the vehicle referencing the given slot, if any. Used to
// verify the at-most-one-vehicle-per-slot invariant before reassignment.
func (r *VehicleRepo) BySlotTx(ctx context.Context, tx *sql.Tx, slotID uint64) (*Vehicle, error) {
	const q = `SELECT ` + vehicleColumns + ` FROM vehicles WHERE slot_id = ?`
	return scanVehicle(tx.QueryRowContext(ctx, q, slotID))
}

// DeleteTx removes a vehicle within a transaction. The coordinator releases
// the vehicle's slot and closes its active session in the same unit.
func (r *VehicleRepo) DeleteTx(ctx context.Context, tx *sql.Tx, id uint64) error {
	res, err := tx.ExecContext(ctx, `DELETE FROM vehicles WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrVehicleNotFound
	}
	return nil
}

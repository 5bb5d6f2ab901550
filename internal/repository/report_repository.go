package repository

import (
	"context"
	"database/sql"
	"time"
)

// SlotState is one row of the live occupancy board: a slot joined to its
// level and, when occupied, to the vehicle and active session holding it.
type SlotState struct {
	SlotID        uint64
	LevelNo       uint32
	SlotLabel     string
	Category      sql.NullString
	IsAvailable   bool
	VehicleNumber sql.NullString
	OwnerName     sql.NullString
	EntryTime     sql.NullTime
}

// CollectionRow aggregates completed stays by payment method over a range.
type CollectionRow struct {
	PaymentMethod string
	Sessions      int
	Amount        uint64
}

// OccupancyRow summarizes one level for the dashboard.
type OccupancyRow struct {
	LevelID   uint64
	LevelNo   uint32
	Total     int
	Occupied  int
	Available int
}

// HistoryRow is one session joined to its vehicle and slot for reporting.
type HistoryRow struct {
	SessionID     uint64
	VehicleNumber string
	OwnerName     string
	Category      string
	LevelNo       uint32
	SlotLabel     string
	EntryTime     time.Time
	ExitTime      sql.NullTime
	Status        string
	Charge        uint32
}

// ReportRepo serves the read-only dashboard and report queries. It never
// writes; all aggregation happens in SQL against committed state.
type ReportRepo struct{ db *sql.DB }

func NewReportRepo(db *sql.DB) *ReportRepo { return &ReportRepo{db: db} }

// SlotBoard returns the live state of every slot, ordered by level then
// label. Occupied slots carry their vehicle and entry time via the booking
// reference; the join is LEFT so free slots still appear.
func (r *ReportRepo) SlotBoard(ctx context.Context) ([]SlotState, error) {
	const q = `SELECT s.id, l.level_no, s.slot_label, s.vehicle_category, s.is_available,
	                  v.vehicle_number, v.owner_name, p.entry_time
	           FROM slots s
	           JOIN levels l ON l.id = s.level_id
	           LEFT JOIN parking_sessions p ON p.id = s.current_booking_id
	           LEFT JOIN vehicles v ON v.id = p.vehicle_id
	           ORDER BY l.level_no, s.slot_label`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SlotState
	for rows.Next() {
		var st SlotState
		if err := rows.Scan(&st.SlotID, &st.LevelNo, &st.SlotLabel, &st.Category,
			&st.IsAvailable, &st.VehicleNumber, &st.OwnerName, &st.EntryTime); err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

// Collection aggregates completed sessions whose exit falls in [from, to),
// grouped by the vehicle's payment method.
func (r *ReportRepo) Collection(ctx context.Context, from, to time.Time) ([]CollectionRow, error) {
	const q = `SELECT v.payment_method, COUNT(*), COALESCE(SUM(v.parking_charge), 0)
	           FROM parking_sessions p
	           JOIN vehicles v ON v.id = p.vehicle_id
	           WHERE p.status = ? AND p.exit_time >= ? AND p.exit_time < ?
	           GROUP BY v.payment_method
	           ORDER BY v.payment_method`
	rows, err := r.db.QueryContext(ctx, q, SessionCompleted, from.UTC(), to.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CollectionRow
	for rows.Next() {
		var c CollectionRow
		if err := rows.Scan(&c.PaymentMethod, &c.Sessions, &c.Amount); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Occupancy returns per-level slot counts. Levels without slots appear with
// zero totals.
func (r *ReportRepo) Occupancy(ctx context.Context) ([]OccupancyRow, error) {
	const q = `SELECT l.id, l.level_no, COUNT(s.id),
	                  COALESCE(SUM(CASE WHEN s.is_available = 0 THEN 1 ELSE 0 END), 0)
	           FROM levels l
	           LEFT JOIN slots s ON s.level_id = l.id
	           GROUP BY l.id, l.level_no
	           ORDER BY l.level_no`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []OccupancyRow
	for rows.Next() {
		var o OccupancyRow
		if err := rows.Scan(&o.LevelID, &o.LevelNo, &o.Total, &o.Occupied); err != nil {
			return nil, err
		}
		o.Available = o.Total - o.Occupied
		out = append(out, o)
	}
	return out, rows.Err()
}

// History returns sessions entering within [from, to) joined to their
// vehicle and slot, newest first. The slot join is on the session's slot_id
// so reassigned and historical sessions resolve to the slot they ended on.
func (r *ReportRepo) History(ctx context.Context, from, to time.Time) ([]HistoryRow, error) {
	const q = `SELECT p.id, v.vehicle_number, v.owner_name, v.category,
	                  l.level_no, s.slot_label, p.entry_time, p.exit_time, p.status,
	                  v.parking_charge
	           FROM parking_sessions p
	           JOIN vehicles v ON v.id = p.vehicle_id
	           JOIN slots s ON s.id = p.slot_id
	           JOIN levels l ON l.id = s.level_id
	           WHERE p.entry_time >= ? AND p.entry_time < ?
	           ORDER BY p.entry_time DESC, p.id DESC`
	rows, err := r.db.QueryContext(ctx, q, from.UTC(), to.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []HistoryRow
	for rows.Next() {
		var h HistoryRow
		if err := rows.Scan(&h.SessionID, &h.VehicleNumber, &h.OwnerName, &h.Category,
			&h.LevelNo, &h.SlotLabel, &h.EntryTime, &h.ExitTime, &h.Status, &h.Charge); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

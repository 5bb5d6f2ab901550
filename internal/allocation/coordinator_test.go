package allocation

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/iliyamo/parking-facility-management/internal/repository"
	"github.com/iliyamo/parking-facility-management/internal/testfixtures"
)

type fixture struct {
	db       *sql.DB
	coord    *Coordinator
	slots    *repository.SlotRepo
	vehicles *repository.VehicleRepo
	sessions *repository.SessionRepo
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testfixtures.NewDB(t)
	slots := repository.NewSlotRepo(db)
	vehicles := repository.NewVehicleRepo(db)
	sessions := repository.NewSessionRepo(db)
	return &fixture{
		db:       db,
		coord:    New(db, slots, vehicles, sessions),
		slots:    slots,
		vehicles: vehicles,
		sessions: sessions,
	}
}

// seedSlots creates a level with the given labels and returns the slot IDs
// in label order.
func (f *fixture) seedSlots(t *testing.T, labels ...string) []uint64 {
	t.Helper()
	ctx := context.Background()
	levels := repository.NewLevelRepo(f.db)
	level := &repository.Level{LevelNo: 1}
	if err := levels.Create(ctx, level); err != nil {
		t.Fatalf("create level: %v", err)
	}
	tx, err := f.db.Begin()
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	rows := make([]repository.Slot, 0, len(labels))
	for _, lbl := range labels {
		rows = append(rows, repository.Slot{LevelID: level.ID, SlotLabel: lbl})
	}
	if err := f.slots.CreateBulkTx(ctx, tx, rows); err != nil {
		t.Fatalf("create slots: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
	got, err := f.slots.ListByLevel(ctx, level.ID)
	if err != nil {
		t.Fatalf("list slots: %v", err)
	}
	ids := make([]uint64, len(got))
	for i, s := range got {
		ids[i] = s.ID
	}
	return ids
}

func (f *fixture) seedVehicle(t *testing.T, number, mobile string) uint64 {
	t.Helper()
	v := &repository.Vehicle{
		Category:      "Car",
		VehicleNumber: number,
		OwnerName:     "Test Owner",
		Mobile:        mobile,
		ParkingCharge: 50,
		PaymentMethod: "Offline",
	}
	if err := f.vehicles.Create(context.Background(), v); err != nil {
		t.Fatalf("create vehicle %s: %v", number, err)
	}
	return v.ID
}

// requireSlotState asserts availability and booking reference together:
// a slot must be unavailable exactly when it carries a reference.
func (f *fixture) requireSlotState(t *testing.T, slotID uint64, available bool, bookingID uint64) {
	t.Helper()
	s, err := f.slots.GetByID(context.Background(), slotID)
	if err != nil {
		t.Fatalf("get slot: %v", err)
	}
	if s.IsAvailable != available {
		t.Fatalf("slot %d available = %v, want %v", slotID, s.IsAvailable, available)
	}
	if available && s.CurrentBookingID.Valid {
		t.Fatalf("free slot %d carries booking reference %d", slotID, s.CurrentBookingID.Int64)
	}
	if !available && uint64(s.CurrentBookingID.Int64) != bookingID {
		t.Fatalf("slot %d booking = %+v, want %d", slotID, s.CurrentBookingID, bookingID)
	}
}

func TestCheckInCheckOutRoundTrip(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	slotIDs := f.seedSlots(t, "A1", "A2")
	vid := f.seedVehicle(t, "KA01AB1234", "9000000001")

	entry := time.Date(2026, 8, 25, 9, 0, 0, 0, time.UTC)
	s, err := f.coord.CheckIn(ctx, vid, slotIDs[0], entry, nil)
	if err != nil {
		t.Fatalf("check-in: %v", err)
	}
	f.requireSlotState(t, slotIDs[0], false, s.ID)

	v, _ := f.vehicles.GetByID(ctx, vid)
	if !v.SlotID.Valid || uint64(v.SlotID.Int64) != slotIDs[0] {
		t.Fatalf("vehicle slot reference = %+v, want %d", v.SlotID, slotIDs[0])
	}

	exit := entry.Add(2 * time.Hour)
	closed, minutes, err := f.coord.CheckOut(ctx, vid, exit)
	if err != nil {
		t.Fatalf("check-out: %v", err)
	}
	if minutes != 120 {
		t.Fatalf("duration = %d minutes, want 120", minutes)
	}
	if closed.Status != repository.SessionCompleted {
		t.Fatalf("session status = %s, want completed", closed.Status)
	}
	f.requireSlotState(t, slotIDs[0], true, 0)

	v, _ = f.vehicles.GetByID(ctx, vid)
	if v.SlotID.Valid {
		t.Fatalf("vehicle slot reference survived checkout: %+v", v.SlotID)
	}

	// The ledger keeps the completed row.
	got, err := f.sessions.GetByID(ctx, s.ID)
	if err != nil {
		t.Fatalf("session gone after checkout: %v", err)
	}
	if !got.ExitTime.Valid || !got.ExitTime.Time.Equal(exit) {
		t.Fatalf("exit not recorded: %+v", got.ExitTime)
	}
}

func TestConcurrentCheckInSingleWinner(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	slotIDs := f.seedSlots(t, "A1")

	const n = 8
	vids := make([]uint64, n)
	for i := 0; i < n; i++ {
		vids[i] = f.seedVehicle(t, fmt.Sprintf("KA01AB%04d", i), fmt.Sprintf("90000000%02d", i))
	}

	var wg sync.WaitGroup
	errs := make([]error, n)
	entry := time.Now().UTC()
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.coord.CheckIn(ctx, vids[i], slotIDs[0], entry, nil)
		}(i)
	}
	wg.Wait()

	winners := 0
	for i, err := range errs {
		switch {
		case err == nil:
			winners++
		case errors.Is(err, repository.ErrSlotOccupied):
		default:
			t.Fatalf("vehicle %d: unexpected error %v", i, err)
		}
	}
	if winners != 1 {
		t.Fatalf("winners = %d, want exactly 1", winners)
	}

	// The slot's reference must point at the winner's session.
	slot, _ := f.slots.GetByID(ctx, slotIDs[0])
	if slot.IsAvailable || !slot.CurrentBookingID.Valid {
		t.Fatalf("slot state inconsistent after race: %+v", slot)
	}
	s, err := f.sessions.GetByID(ctx, uint64(slot.CurrentBookingID.Int64))
	if err != nil {
		t.Fatalf("winning session missing: %v", err)
	}
	if s.Status != repository.SessionActive || s.SlotID != slotIDs[0] {
		t.Fatalf("winning session inconsistent: %+v", s)
	}
}

func TestCheckInSecondActiveSessionRefused(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	slotIDs := f.seedSlots(t, "A1", "A2")
	vid := f.seedVehicle(t, "KA02CD0001", "9000000100")

	if _, err := f.coord.CheckIn(ctx, vid, slotIDs[0], time.Now().UTC(), nil); err != nil {
		t.Fatalf("first check-in: %v", err)
	}
	_, err := f.coord.CheckIn(ctx, vid, slotIDs[1], time.Now().UTC(), nil)
	if !errors.Is(err, repository.ErrConflict) {
		t.Fatalf("second check-in: err = %v, want ErrConflict", err)
	}
	// The losing attempt must not have claimed the second slot.
	f.requireSlotState(t, slotIDs[1], true, 0)
}

func TestCheckOutWithoutActiveSession(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	slotIDs := f.seedSlots(t, "A1")
	vid := f.seedVehicle(t, "KA03EF0001", "9000000200")

	if _, _, err := f.coord.CheckOut(ctx, vid, time.Now().UTC()); !errors.Is(err, ErrNotParked) {
		t.Fatalf("checkout of unparked vehicle: err = %v, want ErrNotParked", err)
	}

	entry := time.Now().UTC().Add(-time.Hour)
	if _, err := f.coord.CheckIn(ctx, vid, slotIDs[0], entry, nil); err != nil {
		t.Fatalf("check-in: %v", err)
	}
	if _, _, err := f.coord.CheckOut(ctx, vid, time.Now().UTC()); err != nil {
		t.Fatalf("checkout: %v", err)
	}

	// A repeated checkout finds no active session and leaves the freed slot
	// alone even if someone else has claimed it since.
	other := f.seedVehicle(t, "KA03EF0002", "9000000201")
	s2, err := f.coord.CheckIn(ctx, other, slotIDs[0], time.Now().UTC(), nil)
	if err != nil {
		t.Fatalf("second vehicle check-in: %v", err)
	}
	if _, _, err := f.coord.CheckOut(ctx, vid, time.Now().UTC()); !errors.Is(err, ErrNotParked) {
		t.Fatalf("repeated checkout: err = %v, want ErrNotParked", err)
	}
	f.requireSlotState(t, slotIDs[0], false, s2.ID)
}

func TestExitBeforeEntryRejected(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	slotIDs := f.seedSlots(t, "A1")
	vid := f.seedVehicle(t, "KA04GH0001", "9000000300")

	entry := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)
	early := entry.Add(-time.Minute)

	if _, err := f.coord.CheckIn(ctx, vid, slotIDs[0], entry, &early); !errors.Is(err, ErrExitBeforeEntry) {
		t.Fatalf("back-filled inverted interval: err = %v, want ErrExitBeforeEntry", err)
	}

	if _, err := f.coord.CheckIn(ctx, vid, slotIDs[0], entry, nil); err != nil {
		t.Fatalf("check-in: %v", err)
	}
	if _, _, err := f.coord.CheckOut(ctx, vid, early); !errors.Is(err, ErrExitBeforeEntry) {
		t.Fatalf("checkout before entry: err = %v, want ErrExitBeforeEntry", err)
	}
	// The failed checkout must not have released the slot.
	slot, _ := f.slots.GetByID(ctx, slotIDs[0])
	if slot.IsAvailable {
		t.Fatal("failed checkout released the slot")
	}
}

func TestBackfilledSessionDoesNotClaim(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	slotIDs := f.seedSlots(t, "A1")
	vid := f.seedVehicle(t, "KA05IJ0001", "9000000400")

	entry := time.Date(2026, 8, 24, 9, 0, 0, 0, time.UTC)
	exit := entry.Add(30 * time.Minute)
	s, err := f.coord.CheckIn(ctx, vid, slotIDs[0], entry, &exit)
	if err != nil {
		t.Fatalf("back-filled check-in: %v", err)
	}
	if s.Status != repository.SessionCompleted {
		t.Fatalf("status = %s, want completed", s.Status)
	}
	f.requireSlotState(t, slotIDs[0], true, 0)
}

func TestResetSlot(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	slotIDs := f.seedSlots(t, "A1")
	vid := f.seedVehicle(t, "KA06KL0001", "9000000500")

	t.Run("free slot is a no-op", func(t *testing.T) {
		if err := f.coord.ResetSlot(ctx, slotIDs[0], time.Now().UTC()); err != nil {
			t.Fatalf("reset free slot: %v", err)
		}
	})

	t.Run("occupied slot is force-freed", func(t *testing.T) {
		s, err := f.coord.CheckIn(ctx, vid, slotIDs[0], time.Now().UTC().Add(-time.Hour), nil)
		if err != nil {
			t.Fatalf("check-in: %v", err)
		}
		now := time.Now().UTC()
		if err := f.coord.ResetSlot(ctx, slotIDs[0], now); err != nil {
			t.Fatalf("reset: %v", err)
		}
		f.requireSlotState(t, slotIDs[0], true, 0)

		got, err := f.sessions.GetByID(ctx, s.ID)
		if err != nil {
			t.Fatalf("session: %v", err)
		}
		if got.Status != repository.SessionCompleted || !got.ExitTime.Valid {
			t.Fatalf("session not closed by reset: %+v", got)
		}
		v, _ := f.vehicles.GetByID(ctx, vid)
		if v.SlotID.Valid {
			t.Fatalf("vehicle slot reference survived reset: %+v", v.SlotID)
		}
	})

	t.Run("reset converges", func(t *testing.T) {
		if err := f.coord.ResetSlot(ctx, slotIDs[0], time.Now().UTC()); err != nil {
			t.Fatalf("second reset: %v", err)
		}
	})

	t.Run("missing slot", func(t *testing.T) {
		if err := f.coord.ResetSlot(ctx, 9999, time.Now().UTC()); !errors.Is(err, repository.ErrSlotNotFound) {
			t.Fatalf("err = %v, want ErrSlotNotFound", err)
		}
	})
}

func TestReassign(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	slotIDs := f.seedSlots(t, "A1", "A2", "A3")
	vid := f.seedVehicle(t, "KA07MN0001", "9000000600")
	other := f.seedVehicle(t, "KA07MN0002", "9000000601")

	s, err := f.coord.CheckIn(ctx, vid, slotIDs[0], time.Now().UTC(), nil)
	if err != nil {
		t.Fatalf("check-in: %v", err)
	}
	so, err := f.coord.CheckIn(ctx, other, slotIDs[2], time.Now().UTC(), nil)
	if err != nil {
		t.Fatalf("other check-in: %v", err)
	}

	t.Run("moves to a free slot", func(t *testing.T) {
		if err := f.coord.Reassign(ctx, vid, slotIDs[1]); err != nil {
			t.Fatalf("reassign: %v", err)
		}
		f.requireSlotState(t, slotIDs[0], true, 0)
		f.requireSlotState(t, slotIDs[1], false, s.ID)

		got, _ := f.sessions.GetByID(ctx, s.ID)
		if got.SlotID != slotIDs[1] {
			t.Fatalf("session slot = %d, want %d", got.SlotID, slotIDs[1])
		}
		v, _ := f.vehicles.GetByID(ctx, vid)
		if uint64(v.SlotID.Int64) != slotIDs[1] {
			t.Fatalf("vehicle slot reference = %+v, want %d", v.SlotID, slotIDs[1])
		}
	})

	t.Run("occupied target conflicts and rolls back", func(t *testing.T) {
		err := f.coord.Reassign(ctx, vid, slotIDs[2])
		if !errors.Is(err, repository.ErrSlotOccupied) {
			t.Fatalf("err = %v, want ErrSlotOccupied", err)
		}
		// Vehicle stays safely on its current slot; the target keeps its holder.
		f.requireSlotState(t, slotIDs[1], false, s.ID)
		f.requireSlotState(t, slotIDs[2], false, so.ID)
	})

	t.Run("same slot is a no-op", func(t *testing.T) {
		if err := f.coord.Reassign(ctx, vid, slotIDs[1]); err != nil {
			t.Fatalf("reassign to held slot: %v", err)
		}
		f.requireSlotState(t, slotIDs[1], false, s.ID)
	})

	t.Run("unparked vehicle", func(t *testing.T) {
		free := f.seedVehicle(t, "KA07MN0003", "9000000602")
		if err := f.coord.Reassign(ctx, free, slotIDs[0]); !errors.Is(err, ErrNotParked) {
			t.Fatalf("err = %v, want ErrNotParked", err)
		}
	})
}

func TestAmendSession(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	slotIDs := f.seedSlots(t, "A1")
	vid := f.seedVehicle(t, "KA08OP0001", "9000000700")

	entry := time.Date(2026, 8, 25, 8, 0, 0, 0, time.UTC)
	s, err := f.coord.CheckIn(ctx, vid, slotIDs[0], entry, nil)
	if err != nil {
		t.Fatalf("check-in: %v", err)
	}

	t.Run("setting an exit completes and frees", func(t *testing.T) {
		exit := entry.Add(90 * time.Minute)
		if err := f.coord.AmendSession(ctx, s.ID, entry, &exit); err != nil {
			t.Fatalf("amend: %v", err)
		}
		f.requireSlotState(t, slotIDs[0], true, 0)
		got, _ := f.sessions.GetByID(ctx, s.ID)
		if got.Status != repository.SessionCompleted {
			t.Fatalf("status = %s, want completed", got.Status)
		}
	})

	t.Run("clearing the exit reopens and re-claims", func(t *testing.T) {
		if err := f.coord.AmendSession(ctx, s.ID, entry, nil); err != nil {
			t.Fatalf("amend: %v", err)
		}
		f.requireSlotState(t, slotIDs[0], false, s.ID)
		got, _ := f.sessions.GetByID(ctx, s.ID)
		if got.Status != repository.SessionActive || got.ExitTime.Valid {
			t.Fatalf("session not reopened: %+v", got)
		}
	})

	t.Run("reopen conflicts when the slot was taken", func(t *testing.T) {
		exit := entry.Add(2 * time.Hour)
		if err := f.coord.AmendSession(ctx, s.ID, entry, &exit); err != nil {
			t.Fatalf("complete again: %v", err)
		}
		other := f.seedVehicle(t, "KA08OP0002", "9000000701")
		if _, err := f.coord.CheckIn(ctx, other, slotIDs[0], time.Now().UTC(), nil); err != nil {
			t.Fatalf("other check-in: %v", err)
		}
		if err := f.coord.AmendSession(ctx, s.ID, entry, nil); !errors.Is(err, repository.ErrSlotOccupied) {
			t.Fatalf("err = %v, want ErrSlotOccupied", err)
		}
		// The amendment rolled back: session stays completed.
		got, _ := f.sessions.GetByID(ctx, s.ID)
		if got.Status != repository.SessionCompleted {
			t.Fatalf("failed reopen changed status: %+v", got)
		}
	})

	t.Run("inverted interval", func(t *testing.T) {
		early := entry.Add(-time.Minute)
		if err := f.coord.AmendSession(ctx, s.ID, entry, &early); !errors.Is(err, ErrExitBeforeEntry) {
			t.Fatalf("err = %v, want ErrExitBeforeEntry", err)
		}
	})
}

func TestPurgeSessionFreesActiveSlot(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	slotIDs := f.seedSlots(t, "A1")
	vid := f.seedVehicle(t, "KA09QR0001", "9000000800")

	s, err := f.coord.CheckIn(ctx, vid, slotIDs[0], time.Now().UTC(), nil)
	if err != nil {
		t.Fatalf("check-in: %v", err)
	}
	if err := f.coord.PurgeSession(ctx, s.ID); err != nil {
		t.Fatalf("purge: %v", err)
	}
	f.requireSlotState(t, slotIDs[0], true, 0)
	if _, err := f.sessions.GetByID(ctx, s.ID); !errors.Is(err, repository.ErrSessionNotFound) {
		t.Fatalf("purged session still readable: err = %v", err)
	}
	v, _ := f.vehicles.GetByID(ctx, vid)
	if v.SlotID.Valid {
		t.Fatalf("vehicle slot reference survived purge: %+v", v.SlotID)
	}
}

func TestReleaseVehicle(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	slotIDs := f.seedSlots(t, "A1")
	vid := f.seedVehicle(t, "KA10ST0001", "9000000900")

	// Unparked vehicles pass through untouched.
	if err := f.coord.ReleaseVehicle(ctx, vid, time.Now().UTC()); err != nil {
		t.Fatalf("release unparked: %v", err)
	}

	s, err := f.coord.CheckIn(ctx, vid, slotIDs[0], time.Now().UTC().Add(-time.Hour), nil)
	if err != nil {
		t.Fatalf("check-in: %v", err)
	}
	if err := f.coord.ReleaseVehicle(ctx, vid, time.Now().UTC()); err != nil {
		t.Fatalf("release: %v", err)
	}
	f.requireSlotState(t, slotIDs[0], true, 0)
	got, _ := f.sessions.GetByID(ctx, s.ID)
	if got.Status != repository.SessionCompleted {
		t.Fatalf("session not closed: %+v", got)
	}
}

package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/iliyamo/parking-facility-management/internal/testfixtures"
)

func newVehicle(number, mobile string) *Vehicle {
	return &Vehicle{
		Category:      "Car",
		VehicleNumber: number,
		OwnerName:     "Asha Rao",
		Mobile:        mobile,
		ParkingCharge: 50,
		PaymentMethod: "Offline",
	}
}

func TestVehicleCreateNormalizesAndConflicts(t *testing.T) {
	t.Parallel()
	db := testfixtures.NewDB(t)
	ctx := context.Background()
	repo := NewVehicleRepo(db)

	v := newVehicle(" ka01ab1234 ", "9000000001")
	if err := repo.Create(ctx, v); err != nil {
		t.Fatalf("create: %v", err)
	}
	if v.VehicleNumber != "KA01AB1234" {
		t.Fatalf("number not normalized: %q", v.VehicleNumber)
	}

	t.Run("duplicate number", func(t *testing.T) {
		dup := newVehicle("KA01AB1234", "9000000002")
		if err := repo.Create(ctx, dup); !errors.Is(err, ErrConflict) {
			t.Fatalf("err = %v, want ErrConflict", err)
		}
	})

	t.Run("duplicate mobile", func(t *testing.T) {
		dup := newVehicle("KA01AB9999", "9000000001")
		if err := repo.Create(ctx, dup); !errors.Is(err, ErrConflict) {
			t.Fatalf("err = %v, want ErrConflict", err)
		}
	})

	t.Run("lookup by normalized number", func(t *testing.T) {
		got, err := repo.GetByNumber(ctx, "ka01ab1234")
		if err != nil {
			t.Fatalf("get by number: %v", err)
		}
		if got.ID != v.ID {
			t.Fatalf("got.ID = %d, want %d", got.ID, v.ID)
		}
	})
}

func TestVehicleSlotReference(t *testing.T) {
	t.Parallel()
	db := testfixtures.NewDB(t)
	ctx := context.Background()
	repo := NewVehicleRepo(db)

	v := newVehicle("MH12XY0001", "9000000003")
	if err := repo.Create(ctx, v); err != nil {
		t.Fatalf("create: %v", err)
	}

	slotID := uint64(42)
	if err := inTx(t, db, func(tx *sql.Tx) error {
		return repo.SetSlotTx(ctx, tx, v.ID, &slotID)
	}); err != nil {
		t.Fatalf("set slot: %v", err)
	}

	err := inTx(t, db, func(tx *sql.Tx) error {
		got, err := repo.BySlotTx(ctx, tx, slotID)
		if err != nil {
			return err
		}
		if got.ID != v.ID {
			t.Fatalf("BySlot returned vehicle %d, want %d", got.ID, v.ID)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("by slot: %v", err)
	}

	if err := inTx(t, db, func(tx *sql.Tx) error {
		return repo.SetSlotTx(ctx, tx, v.ID, nil)
	}); err != nil {
		t.Fatalf("clear slot: %v", err)
	}
	got, err := repo.GetByID(ctx, v.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.SlotID.Valid {
		t.Fatalf("slot reference not cleared: %+v", got.SlotID)
	}
}

func TestVehicleUpdateKeepsSlot(t *testing.T) {
	t.Parallel()
	db := testfixtures.NewDB(t)
	ctx := context.Background()
	repo := NewVehicleRepo(db)

	v := newVehicle("DL05CD7777", "9000000004")
	if err := repo.Create(ctx, v); err != nil {
		t.Fatalf("create: %v", err)
	}
	slotID := uint64(7)
	if err := inTx(t, db, func(tx *sql.Tx) error {
		return repo.SetSlotTx(ctx, tx, v.ID, &slotID)
	}); err != nil {
		t.Fatalf("set slot: %v", err)
	}

	v.OwnerName = "Binod Kumar"
	v.ParkingCharge = 80
	if err := repo.Update(ctx, v); err != nil {
		t.Fatalf("update: %v", err)
	}

	got, err := repo.GetByID(ctx, v.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.OwnerName != "Binod Kumar" || got.ParkingCharge != 80 {
		t.Fatalf("update not applied: %+v", got)
	}
	if !got.SlotID.Valid || uint64(got.SlotID.Int64) != slotID {
		t.Fatalf("descriptive update touched slot reference: %+v", got.SlotID)
	}
}

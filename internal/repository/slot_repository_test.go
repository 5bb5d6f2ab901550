package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/iliyamo/parking-facility-management/internal/testfixtures"
)

func seedLevelWithSlots(t *testing.T, db *sql.DB, levelNo uint32, labels ...string) (*Level, []Slot) {
	t.Helper()
	ctx := context.Background()
	levels := NewLevelRepo(db)
	slots := NewSlotRepo(db)

	level := &Level{LevelNo: levelNo}
	if err := levels.Create(ctx, level); err != nil {
		t.Fatalf("create level: %v", err)
	}

	tx, err := db.Begin()
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	rows := make([]Slot, 0, len(labels))
	for _, lbl := range labels {
		rows = append(rows, Slot{LevelID: level.ID, SlotLabel: lbl})
	}
	if err := slots.CreateBulkTx(ctx, tx, rows); err != nil {
		t.Fatalf("create slots: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	got, err := slots.ListByLevel(ctx, level.ID)
	if err != nil {
		t.Fatalf("list slots: %v", err)
	}
	return level, got
}

func inTx(t *testing.T, db *sql.DB, fn func(tx *sql.Tx) error) error {
	t.Helper()
	tx, err := db.Begin()
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
	return nil
}

func TestTryClaim(t *testing.T) {
	t.Parallel()
	db := testfixtures.NewDB(t)
	ctx := context.Background()
	repo := NewSlotRepo(db)
	_, slots := seedLevelWithSlots(t, db, 1, "A1", "A2")

	t.Run("claims a free slot", func(t *testing.T) {
		err := inTx(t, db, func(tx *sql.Tx) error {
			return repo.TryClaimTx(ctx, tx, slots[0].ID, 77)
		})
		if err != nil {
			t.Fatalf("claim: %v", err)
		}
		got, err := repo.GetByID(ctx, slots[0].ID)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if got.IsAvailable {
			t.Fatal("slot still marked available after claim")
		}
		if !got.CurrentBookingID.Valid || got.CurrentBookingID.Int64 != 77 {
			t.Fatalf("booking reference = %+v, want 77", got.CurrentBookingID)
		}
	})

	t.Run("second claim loses", func(t *testing.T) {
		err := inTx(t, db, func(tx *sql.Tx) error {
			return repo.TryClaimTx(ctx, tx, slots[0].ID, 88)
		})
		if !errors.Is(err, ErrSlotOccupied) {
			t.Fatalf("err = %v, want ErrSlotOccupied", err)
		}
		got, _ := repo.GetByID(ctx, slots[0].ID)
		if got.CurrentBookingID.Int64 != 77 {
			t.Fatalf("losing claim overwrote booking reference: %+v", got.CurrentBookingID)
		}
	})

	t.Run("missing slot", func(t *testing.T) {
		err := inTx(t, db, func(tx *sql.Tx) error {
			return repo.TryClaimTx(ctx, tx, 9999, 1)
		})
		if !errors.Is(err, ErrSlotNotFound) {
			t.Fatalf("err = %v, want ErrSlotNotFound", err)
		}
	})
}

func TestRelease(t *testing.T) {
	t.Parallel()
	db := testfixtures.NewDB(t)
	ctx := context.Background()
	repo := NewSlotRepo(db)
	_, slots := seedLevelWithSlots(t, db, 1, "A1")

	if err := inTx(t, db, func(tx *sql.Tx) error {
		return repo.TryClaimTx(ctx, tx, slots[0].ID, 5)
	}); err != nil {
		t.Fatalf("claim: %v", err)
	}

	t.Run("frees an occupied slot", func(t *testing.T) {
		if err := inTx(t, db, func(tx *sql.Tx) error {
			return repo.ReleaseTx(ctx, tx, slots[0].ID)
		}); err != nil {
			t.Fatalf("release: %v", err)
		}
		got, _ := repo.GetByID(ctx, slots[0].ID)
		if !got.IsAvailable || got.CurrentBookingID.Valid {
			t.Fatalf("slot not fully released: %+v", got)
		}
	})

	t.Run("releasing again is a no-op success", func(t *testing.T) {
		if err := inTx(t, db, func(tx *sql.Tx) error {
			return repo.ReleaseTx(ctx, tx, slots[0].ID)
		}); err != nil {
			t.Fatalf("idempotent release: %v", err)
		}
	})

	t.Run("missing slot", func(t *testing.T) {
		err := inTx(t, db, func(tx *sql.Tx) error {
			return repo.ReleaseTx(ctx, tx, 9999)
		})
		if !errors.Is(err, ErrSlotNotFound) {
			t.Fatalf("err = %v, want ErrSlotNotFound", err)
		}
	})
}

func TestDeleteByLabel(t *testing.T) {
	t.Parallel()
	db := testfixtures.NewDB(t)
	ctx := context.Background()
	repo := NewSlotRepo(db)
	level, slots := seedLevelWithSlots(t, db, 2, "A1", "A2")

	if err := inTx(t, db, func(tx *sql.Tx) error {
		return repo.TryClaimTx(ctx, tx, slots[0].ID, 1)
	}); err != nil {
		t.Fatalf("claim: %v", err)
	}

	if err := inTx(t, db, func(tx *sql.Tx) error {
		return repo.DeleteByLabelTx(ctx, tx, level.ID, "A1")
	}); !errors.Is(err, ErrSlotOccupied) {
		t.Fatalf("deleting occupied slot: err = %v, want ErrSlotOccupied", err)
	}

	if err := inTx(t, db, func(tx *sql.Tx) error {
		return repo.DeleteByLabelTx(ctx, tx, level.ID, "A2")
	}); err != nil {
		t.Fatalf("deleting free slot: %v", err)
	}

	if _, err := repo.GetByID(ctx, slots[1].ID); !errors.Is(err, ErrSlotNotFound) {
		t.Fatalf("deleted slot still readable: err = %v", err)
	}
}

func TestCountOccupiedByLevel(t *testing.T) {
	t.Parallel()
	db := testfixtures.NewDB(t)
	ctx := context.Background()
	repo := NewSlotRepo(db)
	level, slots := seedLevelWithSlots(t, db, 3, "A1", "A2", "A3")

	if err := inTx(t, db, func(tx *sql.Tx) error {
		if err := repo.TryClaimTx(ctx, tx, slots[0].ID, 1); err != nil {
			return err
		}
		return repo.TryClaimTx(ctx, tx, slots[2].ID, 2)
	}); err != nil {
		t.Fatalf("claims: %v", err)
	}

	err := inTx(t, db, func(tx *sql.Tx) error {
		n, err := repo.CountOccupiedByLevelTx(ctx, tx, level.ID)
		if err != nil {
			return err
		}
		if n != 2 {
			t.Fatalf("occupied = %d, want 2", n)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("count: %v", err)
	}
}

package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/iliyamo/parking-facility-management/internal/testfixtures"
)

func TestUserCreateAndReset(t *testing.T) {
	t.Parallel()
	db := testfixtures.NewDB(t)
	ctx := context.Background()
	repo := NewUserRepo(db)

	id, err := repo.Create(ctx, " Gate@Example.COM ", "hash1", "Gita Iyer", "9111111111", RoleEmployee)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := repo.Create(ctx, "gate@example.com", "hash2", "", "", RoleEmployee); !errors.Is(err, ErrConflict) {
		t.Fatalf("duplicate email: err = %v, want ErrConflict", err)
	}

	u, err := repo.GetByEmail(ctx, "GATE@example.com")
	if err != nil {
		t.Fatalf("get by email: %v", err)
	}
	if u.ID != id || u.Email != "gate@example.com" {
		t.Fatalf("email not normalized on insert: %+v", u)
	}

	expires := time.Now().UTC().Add(10 * time.Minute).Truncate(time.Second)
	if err := repo.SetResetCode(ctx, id, "482913", expires); err != nil {
		t.Fatalf("set reset code: %v", err)
	}
	u, _ = repo.GetByID(ctx, id)
	if !u.ResetCode.Valid || u.ResetCode.String != "482913" {
		t.Fatalf("reset code not stored: %+v", u.ResetCode)
	}

	if err := repo.UpdatePassword(ctx, id, "hash3"); err != nil {
		t.Fatalf("update password: %v", err)
	}
	u, _ = repo.GetByID(ctx, id)
	if u.PasswordHash != "hash3" || u.ResetCode.Valid || u.ResetExpires.Valid {
		t.Fatalf("password update did not consume reset code: %+v", u)
	}
}

func TestUserListEmployeesSkipsInactive(t *testing.T) {
	t.Parallel()
	db := testfixtures.NewDB(t)
	ctx := context.Background()
	repo := NewUserRepo(db)

	if _, err := repo.Create(ctx, "boss@example.com", "h", "Admin", "", RoleAdmin); err != nil {
		t.Fatalf("create admin: %v", err)
	}
	empID, err := repo.Create(ctx, "emp@example.com", "h", "Employee", "", RoleEmployee)
	if err != nil {
		t.Fatalf("create employee: %v", err)
	}
	goneID, err := repo.Create(ctx, "gone@example.com", "h", "Former", "", RoleEmployee)
	if err != nil {
		t.Fatalf("create former: %v", err)
	}
	if err := repo.Deactivate(ctx, goneID); err != nil {
		t.Fatalf("deactivate: %v", err)
	}

	users, err := repo.ListEmployees(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(users) != 1 || users[0].ID != empID {
		t.Fatalf("list = %+v, want only the active employee", users)
	}
}

func TestTokenRepoLifecycle(t *testing.T) {
	t.Parallel()
	db := testfixtures.NewDB(t)
	ctx := context.Background()
	repo := NewTokenRepo(db)

	exp := time.Now().UTC().Add(time.Hour)
	if err := repo.StoreRefresh(ctx, 7, "hash-a", exp); err != nil {
		t.Fatalf("store: %v", err)
	}

	uid, err := repo.ValidateRefresh(ctx, "hash-a")
	if err != nil || uid != 7 {
		t.Fatalf("validate = (%d, %v), want (7, nil)", uid, err)
	}

	if err := repo.RevokeByHash(ctx, "hash-a"); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if _, err := repo.ValidateRefresh(ctx, "hash-a"); err == nil {
		t.Fatal("revoked token still validates")
	}

	// Expired tokens are rejected in Go, not SQL.
	if err := repo.StoreRefresh(ctx, 7, "hash-b", time.Now().UTC().Add(-time.Minute)); err != nil {
		t.Fatalf("store expired: %v", err)
	}
	if _, err := repo.ValidateRefresh(ctx, "hash-b"); err == nil {
		t.Fatal("expired token still validates")
	}
}

func TestShiftRepoCRUD(t *testing.T) {
	t.Parallel()
	db := testfixtures.NewDB(t)
	ctx := context.Background()
	repo := NewShiftRepo(db)

	s := &Shift{ShiftName: "Morning", StartTime: "06:00", EndTime: "14:00"}
	if err := repo.Create(ctx, s); err != nil {
		t.Fatalf("create: %v", err)
	}
	dup := &Shift{ShiftName: "Morning", StartTime: "07:00", EndTime: "15:00"}
	if err := repo.Create(ctx, dup); !errors.Is(err, ErrConflict) {
		t.Fatalf("duplicate name: err = %v, want ErrConflict", err)
	}

	s.EndTime = "15:00"
	if err := repo.Update(ctx, s); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, err := repo.GetByID(ctx, s.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.EndTime != "15:00" {
		t.Fatalf("update not applied: %+v", got)
	}

	if err := repo.Delete(ctx, s.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := repo.GetByID(ctx, s.ID); !errors.Is(err, ErrShiftNotFound) {
		t.Fatalf("deleted shift still readable: err = %v", err)
	}
}

package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/househealth/househealth-api/internal/adapters/contracttest"
	"github.com/househealth/househealth-api/internal/domain"
	familyrepoport "github.com/househealth/househealth-api/internal/ports/out/familyrepo"
	healthlogrepoport "github.com/househealth/househealth-api/internal/ports/out/healthlogrepo"
	idempotencyport "github.com/househealth/househealth-api/internal/ports/out/idempotency"
	reminderrepoport "github.com/househealth/househealth-api/internal/ports/out/reminderrepo"
	userrepoport "github.com/househealth/househealth-api/internal/ports/out/userrepo"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := Open(context.Background(), filepath.Join(t.TempDir(), "test.db"), nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func userSeeder(db *sql.DB) contracttest.UserSeeder {
	return func(t *testing.T, ids ...domain.UserID) {
		t.Helper()
		repo := NewUserRepo(db)
		for _, id := range ids {
			err := repo.Create(context.Background(), domain.User{
				ID:          id,
				Email:       string(id) + "@seed.test",
				DisplayName: "seed",
				SystemRole:  domain.SystemRoleUser,
				CreatedAt:   time.Unix(1, 0).UTC(),
			})
			if err != nil {
				t.Fatalf("seed user %s: %v", id, err)
			}
		}
	}
}

func TestContract_SQLiteUserRepo(t *testing.T) {
	contracttest.RunUserRepo(t, func(t *testing.T) (userrepoport.Repository, func()) {
		t.Helper()
		return NewUserRepo(openTestDB(t)), nil
	})
}

func TestContract_SQLiteFamilyRepo(t *testing.T) {
	db := openTestDB(t)
	contracttest.RunFamilyRepo(t, func(t *testing.T) (familyrepoport.Repository, func()) {
		t.Helper()
		return NewFamilyRepo(db), nil
	}, userSeeder(db))
}

func TestContract_SQLiteHealthLogRepo(t *testing.T) {
	db := openTestDB(t)
	contracttest.RunHealthLogRepo(t, func(t *testing.T) (healthlogrepoport.Repository, func()) {
		t.Helper()
		return NewHealthLogRepo(db), nil
	}, userSeeder(db))
}

func TestContract_SQLiteReminderRepo(t *testing.T) {
	db := openTestDB(t)
	contracttest.RunReminderRepo(t, func(t *testing.T) (reminderrepoport.Repository, func()) {
		t.Helper()
		return NewReminderRepo(db), nil
	}, userSeeder(db))
}

func TestContract_SQLiteIdempotencyStore(t *testing.T) {
	contracttest.RunIdempotencyStore(t, func(t *testing.T) (idempotencyport.Store, func()) {
		t.Helper()
		return NewIdempotencyStore(openTestDB(t), 24*time.Hour), nil
	})
}

func TestOpen_IsIdempotentAcrossRestarts(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "restart.db")
	db, err := Open(context.Background(), path, nil)
	if err != nil {
		t.Fatalf("first Open: %v", err)
	}
	if err := NewUserRepo(db).Create(context.Background(), domain.User{
		ID: "u1", Email: "a@example.com", DisplayName: "A", SystemRole: domain.SystemRoleUser, CreatedAt: time.Unix(1, 0),
	}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	_ = db.Close()

	db, err = Open(context.Background(), path, nil)
	if err != nil {
		t.Fatalf("second Open: %v", err)
	}
	defer db.Close()
	if _, err := NewUserRepo(db).GetByEmail(context.Background(), "A@EXAMPLE.COM"); err != nil {
		t.Fatalf("GetByEmail after reopen: %v", err)
	}
}

func TestFamilyRepo_MembershipCascadeOnUserDelete(t *testing.T) {
	db := openTestDB(t)
	userSeeder(db)(t, "u1")
	repo := NewFamilyRepo(db)
	ctx := context.Background()
	now := time.Unix(10, 0).UTC()

	err := repo.InTx(ctx, func(ctx context.Context, tx familyrepoport.Tx) error {
		if err := tx.CreateFamily(ctx, domain.Family{ID: "f1", Name: "Home", Version: 1, CreatedAt: now, UpdatedAt: now}); err != nil {
			return err
		}
		return tx.CreateMembership(ctx, domain.Membership{ID: "m1", UserID: "u1", FamilyID: "f1", Role: domain.MembershipRoleBoth, Owner: true, JoinedAt: now})
	})
	if err != nil {
		t.Fatalf("InTx: %v", err)
	}
	if _, err := db.ExecContext(ctx, `DELETE FROM users WHERE id = 'u1'`); err != nil {
		t.Fatalf("delete user: %v", err)
	}
	err = repo.InTx(ctx, func(ctx context.Context, tx familyrepoport.Tx) error {
		_, err := tx.GetMembership(ctx, "m1")
		return err
	})
	if !errors.Is(err, familyrepoport.ErrNotFound) {
		t.Fatalf("GetMembership after user delete err=%v, want ErrNotFound", err)
	}
}

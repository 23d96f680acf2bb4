package familyrepo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/househealth/househealth-api/internal/domain"
	"github.com/househealth/househealth-api/internal/ports/out/familyrepo"
)

func TestRepo_InTx_RollsBackOnError(t *testing.T) {
	t.Parallel()

	r := NewRepo()
	ctx := context.Background()
	boom := errors.New("boom")

	err := r.InTx(ctx, func(ctx context.Context, tx familyrepo.Tx) error {
		if err := tx.CreateFamily(ctx, domain.Family{ID: "f1", Name: "Winston", CreatedAt: time.Unix(10, 0).UTC()}); err != nil {
			return err
		}
		if err := tx.CreateMembership(ctx, domain.Membership{ID: "m1", UserID: "u1", FamilyID: "f1", Role: domain.MembershipRoleBoth, Owner: true}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("InTx() err=%v, want %v", err, boom)
	}

	_ = r.InTx(ctx, func(ctx context.Context, tx familyrepo.Tx) error {
		if _, err := tx.GetFamily(ctx, "f1"); !errors.Is(err, familyrepo.ErrNotFound) {
			t.Fatalf("GetFamily() err=%v, want %v", err, familyrepo.ErrNotFound)
		}
		if ok, _ := tx.MembershipExists(ctx, "u1", "f1"); ok {
			t.Fatalf("MembershipExists()=true after rollback")
		}
		return nil
	})
}

func TestRepo_InTx_CanceledContext(t *testing.T) {
	t.Parallel()

	r := NewRepo()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := r.InTx(ctx, func(context.Context, familyrepo.Tx) error {
		called = true
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("InTx() err=%v, want %v", err, context.Canceled)
	}
	if called {
		t.Fatalf("fn called with canceled context")
	}
}

func TestRepo_InTx_CopiesStateOnlyOnWrite(t *testing.T) {
	t.Parallel()

	r := NewRepo()
	ctx := context.Background()
	err := r.InTx(ctx, func(ctx context.Context, tx familyrepo.Tx) error {
		return tx.CreateFamily(ctx, domain.Family{ID: "f1", Name: "Winston", Version: 1, CreatedAt: time.Unix(10, 0).UTC()})
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	committed := r.st

	err = r.InTx(ctx, func(ctx context.Context, tx familyrepo.Tx) error {
		if _, err := tx.LockFamily(ctx, "f1"); err != nil {
			return err
		}
		_, err := tx.ListMemberships(ctx, "f1")
		return err
	})
	if err != nil {
		t.Fatalf("read-only InTx: %v", err)
	}
	if r.st != committed {
		t.Fatalf("read-only transaction replaced the committed state")
	}

	err = r.InTx(ctx, func(ctx context.Context, tx familyrepo.Tx) error {
		// Duplicate family: rejected before anything is written.
		return tx.CreateFamily(ctx, domain.Family{ID: "f1", Name: "Again"})
	})
	if !errors.Is(err, familyrepo.ErrConflict) {
		t.Fatalf("duplicate CreateFamily err=%v", err)
	}
	if r.st != committed {
		t.Fatalf("failed transaction replaced the committed state")
	}

	err = r.InTx(ctx, func(ctx context.Context, tx familyrepo.Tx) error {
		f, err := tx.LockFamily(ctx, "f1")
		if err != nil {
			return err
		}
		f.Name = "Renamed"
		if _, err := tx.UpdateFamily(ctx, f); err != nil {
			return err
		}
		got, err := tx.GetFamily(ctx, "f1")
		if err != nil {
			return err
		}
		if got.Name != "Renamed" || got.Version != 2 {
			t.Errorf("in-tx read after write = %+v", got)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("write InTx: %v", err)
	}
	if r.st == committed {
		t.Fatalf("write transaction did not commit a new state")
	}
	if committed.families["f1"].Name != "Winston" {
		t.Fatalf("previous committed state was mutated: %+v", committed.families["f1"])
	}
}

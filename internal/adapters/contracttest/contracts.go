package contracttest

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/househealth/househealth-api/internal/domain"
	familyrepoport "github.com/househealth/househealth-api/internal/ports/out/familyrepo"
	healthlogrepoport "github.com/househealth/househealth-api/internal/ports/out/healthlogrepo"
	idempotencyport "github.com/househealth/househealth-api/internal/ports/out/idempotency"
	reminderrepoport "github.com/househealth/househealth-api/internal/ports/out/reminderrepo"
	userrepoport "github.com/househealth/househealth-api/internal/ports/out/userrepo"
)

type CleanupFunc = func()

type UserRepoFactory func(t *testing.T) (userrepoport.Repository, CleanupFunc)
type FamilyRepoFactory func(t *testing.T) (familyrepoport.Repository, CleanupFunc)
type HealthLogRepoFactory func(t *testing.T) (healthlogrepoport.Repository, CleanupFunc)
type ReminderRepoFactory func(t *testing.T) (reminderrepoport.Repository, CleanupFunc)
type IdemStoreFactory func(t *testing.T) (idempotencyport.Store, CleanupFunc)

// UserSeeder creates users referenced by foreign keys in SQL backends.
// Backends without referential integrity may pass nil.
type UserSeeder func(t *testing.T, ids ...domain.UserID)

func RunIdempotencyStore(t *testing.T, newStore IdemStoreFactory) {
	t.Helper()
	ctx := context.Background()

	store, cleanup := newStore(t)
	if cleanup != nil {
		t.Cleanup(cleanup)
	}

	fp := idempotencyport.Fingerprint{
		Key:      "k-1",
		Subject:  domain.SubjectID(uuid.NewString()),
		Method:   "POST",
		Route:    "/families",
		BodyHash: "",
	}
	if _, ok, err := store.Get(ctx, fp); err != nil || ok {
		t.Fatalf("Get before Put: ok=%v err=%v", ok, err)
	}

	rec := idempotencyport.Record{
		StatusCode:  201,
		ContentType: "application/json",
		Body:        []byte(`{"id":"a"}`),
		CreatedAt:   time.Now().UTC().Truncate(time.Second),
	}
	if err := store.Put(ctx, fp, rec); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, ok, err := store.Get(ctx, fp)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !ok {
		t.Fatalf("expected ok=true")
	}
	if string(got.Body) != `{"id":"a"}` || got.ContentType != "application/json" || got.StatusCode != 201 {
		t.Fatalf("unexpected record: %+v", got)
	}

	// A different body hash is a different request.
	other := fp
	other.BodyHash = "different"
	if _, ok, err := store.Get(ctx, other); err != nil || ok {
		t.Fatalf("Get other fingerprint: ok=%v err=%v", ok, err)
	}

	// Overwrite semantics.
	rec2 := rec
	rec2.Body = []byte(`{"id":"b"}`)
	if err := store.Put(ctx, fp, rec2); err != nil {
		t.Fatalf("Put overwrite: %v", err)
	}
	got, ok, err = store.Get(ctx, fp)
	if err != nil || !ok || string(got.Body) != `{"id":"b"}` {
		t.Fatalf("expected overwritten record, got ok=%v err=%v body=%q", ok, err, string(got.Body))
	}
}

func RunUserRepo(t *testing.T, newRepo UserRepoFactory) {
	t.Helper()
	ctx := context.Background()

	repo, cleanup := newRepo(t)
	if cleanup != nil {
		t.Cleanup(cleanup)
	}

	now := time.Unix(1000, 0).UTC()
	aID := domain.UserID(uuid.NewString())
	email := "alice." + uuid.NewString()[:8] + "@example.com"
	a := domain.User{
		ID:           aID,
		Email:        email,
		DisplayName:  "Alice Johnson",
		PasswordHash: "hash",
		SystemRole:   domain.SystemRoleUser,
		CreatedAt:    now,
	}
	if err := repo.Create(ctx, a); err != nil {
		t.Fatalf("Create a: %v", err)
	}
	got, err := repo.GetByID(ctx, aID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Email != email || got.DisplayName != "Alice Johnson" || got.SystemRole != domain.SystemRoleUser || !got.CreatedAt.Equal(now) {
		t.Fatalf("GetByID unexpected: %+v", got)
	}

	// Email lookup and uniqueness are case-insensitive.
	if _, err := repo.GetByEmail(ctx, "  "+strings.ToUpper(email)+" "); err != nil {
		t.Fatalf("GetByEmail case-insensitive: %v", err)
	}
	err = repo.Create(ctx, domain.User{
		ID:          domain.UserID(uuid.NewString()),
		Email:       strings.ToUpper(email),
		DisplayName: "Alice 2",
		SystemRole:  domain.SystemRoleUser,
		CreatedAt:   now,
	})
	if !errors.Is(err, userrepoport.ErrEmailTaken) {
		t.Fatalf("Create duplicate email err=%v, want %v", err, userrepoport.ErrEmailTaken)
	}

	if err := repo.Create(ctx, a); err == nil {
		t.Fatalf("expected duplicate id error")
	}

	// Update role.
	a.SystemRole = domain.SystemRoleAdmin
	if err := repo.Update(ctx, a); err != nil {
		t.Fatalf("Update: %v", err)
	}
	got, err = repo.GetByID(ctx, aID)
	if err != nil || got.SystemRole != domain.SystemRoleAdmin {
		t.Fatalf("after Update got=%+v err=%v", got, err)
	}

	if _, err := repo.GetByID(ctx, domain.UserID(uuid.NewString())); !errors.Is(err, userrepoport.ErrNotFound) {
		t.Fatalf("GetByID missing err=%v, want %v", err, userrepoport.ErrNotFound)
	}
	if _, err := repo.GetByEmail(ctx, "nobody-"+uuid.NewString()+"@example.com"); !errors.Is(err, userrepoport.ErrNotFound) {
		t.Fatalf("GetByEmail missing err=%v, want %v", err, userrepoport.ErrNotFound)
	}
	if err := repo.Update(ctx, domain.User{ID: domain.UserID(uuid.NewString()), Email: "x-" + uuid.NewString() + "@example.com"}); !errors.Is(err, userrepoport.ErrNotFound) {
		t.Fatalf("Update missing err=%v, want %v", err, userrepoport.ErrNotFound)
	}
}

func RunFamilyRepo(t *testing.T, newRepo FamilyRepoFactory, seedUsers UserSeeder) {
	t.Helper()
	ctx := context.Background()

	repo, cleanup := newRepo(t)
	if cleanup != nil {
		t.Cleanup(cleanup)
	}

	u1 := domain.UserID(uuid.NewString())
	u2 := domain.UserID(uuid.NewString())
	u3 := domain.UserID(uuid.NewString())
	if seedUsers != nil {
		seedUsers(t, u1, u2, u3)
	}

	now := time.Unix(2000, 0).UTC()
	fID := domain.FamilyID(uuid.NewString())
	m1 := domain.Membership{
		ID:                   domain.MembershipID(uuid.NewString()),
		UserID:               u1,
		FamilyID:             fID,
		Role:                 domain.MembershipRoleBoth,
		Owner:                true,
		NotificationsEnabled: true,
		JoinedAt:             now,
	}
	m2 := domain.Membership{
		ID:                   domain.MembershipID(uuid.NewString()),
		UserID:               u2,
		FamilyID:             fID,
		Role:                 domain.MembershipRoleObserver,
		NotificationsEnabled: true,
		JoinedAt:             now.Add(time.Minute),
	}

	inTx := func(name string, fn func(ctx context.Context, tx familyrepoport.Tx) error) {
		t.Helper()
		if err := repo.InTx(ctx, fn); err != nil {
			t.Fatalf("%s: %v", name, err)
		}
	}

	inTx("create", func(ctx context.Context, tx familyrepoport.Tx) error {
		if err := tx.CreateFamily(ctx, domain.Family{
			ID:              fID,
			Name:            "Winston",
			CreatedByUserID: &u1,
			Version:         1,
			CreatedAt:       now,
			UpdatedAt:       now,
		}); err != nil {
			return err
		}
		if err := tx.CreateMembership(ctx, m1); err != nil {
			return err
		}
		return tx.CreateMembership(ctx, m2)
	})

	inTx("read", func(ctx context.Context, tx familyrepoport.Tx) error {
		f, err := tx.LockFamily(ctx, fID)
		if err != nil {
			return err
		}
		if f.Name != "Winston" || f.Version != 1 || f.CreatedByUserID == nil || *f.CreatedByUserID != u1 || !f.CreatedAt.Equal(now) {
			t.Fatalf("LockFamily unexpected: %+v", f)
		}
		got, err := tx.GetMembershipByUserAndFamily(ctx, u1, fID)
		if err != nil {
			return err
		}
		if got.ID != m1.ID || !got.Owner || got.Role != domain.MembershipRoleBoth || !got.NotificationsEnabled || !got.JoinedAt.Equal(now) {
			t.Fatalf("GetMembershipByUserAndFamily unexpected: %+v", got)
		}
		if _, err := tx.GetMembership(ctx, m2.ID); err != nil {
			return err
		}
		if ok, err := tx.MembershipExists(ctx, u2, fID); err != nil || !ok {
			t.Fatalf("MembershipExists(u2) ok=%v err=%v", ok, err)
		}
		if ok, err := tx.MembershipExists(ctx, u3, fID); err != nil || ok {
			t.Fatalf("MembershipExists(u3) ok=%v err=%v", ok, err)
		}
		if n, err := tx.CountMemberships(ctx, fID); err != nil || n != 2 {
			t.Fatalf("CountMemberships=%d err=%v, want 2", n, err)
		}
		if n, err := tx.CountOwners(ctx, fID); err != nil || n != 1 {
			t.Fatalf("CountOwners=%d err=%v, want 1", n, err)
		}
		ms, err := tx.ListMemberships(ctx, fID)
		if err != nil {
			return err
		}
		if len(ms) != 2 || ms[0].ID != m1.ID || ms[1].ID != m2.ID {
			t.Fatalf("ListMemberships order unexpected: %+v", ms)
		}
		fs, err := tx.ListFamiliesForUser(ctx, u2)
		if err != nil {
			return err
		}
		if len(fs) != 1 || fs[0].ID != fID {
			t.Fatalf("ListFamiliesForUser(u2)=%+v", fs)
		}
		return nil
	})

	// Uniqueness of (user, family).
	err := repo.InTx(ctx, func(ctx context.Context, tx familyrepoport.Tx) error {
		dup := m2
		dup.ID = domain.MembershipID(uuid.NewString())
		return tx.CreateMembership(ctx, dup)
	})
	if !errors.Is(err, familyrepoport.ErrAlreadyMember) {
		t.Fatalf("CreateMembership duplicate err=%v, want %v", err, familyrepoport.ErrAlreadyMember)
	}

	// Version compare-and-set.
	inTx("update family", func(ctx context.Context, tx familyrepoport.Tx) error {
		f, err := tx.LockFamily(ctx, fID)
		if err != nil {
			return err
		}
		f.Name = "Winston Household"
		f.UpdatedAt = now.Add(time.Hour)
		next, err := tx.UpdateFamily(ctx, f)
		if err != nil {
			return err
		}
		if next.Version != 2 || next.Name != "Winston Household" {
			t.Fatalf("UpdateFamily unexpected: %+v", next)
		}
		stale := f
		if _, err := tx.UpdateFamily(ctx, stale); !errors.Is(err, familyrepoport.ErrConflict) {
			t.Fatalf("UpdateFamily stale err=%v, want %v", err, familyrepoport.ErrConflict)
		}
		return nil
	})

	// Membership update keeps identity fields.
	inTx("update membership", func(ctx context.Context, tx familyrepoport.Tx) error {
		m := m2
		m.Owner = true
		m.Role = domain.MembershipRoleTracker
		m.NotificationsEnabled = false
		if err := tx.UpdateMembership(ctx, m); err != nil {
			return err
		}
		got, err := tx.GetMembership(ctx, m2.ID)
		if err != nil {
			return err
		}
		if !got.Owner || got.Role != domain.MembershipRoleTracker || got.NotificationsEnabled {
			t.Fatalf("UpdateMembership unexpected: %+v", got)
		}
		if n, err := tx.CountOwners(ctx, fID); err != nil || n != 2 {
			t.Fatalf("CountOwners=%d err=%v, want 2", n, err)
		}
		return nil
	})

	// Rollback leaves state untouched.
	boom := errors.New("boom")
	err = repo.InTx(ctx, func(ctx context.Context, tx familyrepoport.Tx) error {
		if err := tx.DeleteMembership(ctx, m2.ID); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("InTx rollback err=%v, want %v", err, boom)
	}
	inTx("after rollback", func(ctx context.Context, tx familyrepoport.Tx) error {
		if n, err := tx.CountMemberships(ctx, fID); err != nil || n != 2 {
			t.Fatalf("CountMemberships after rollback=%d err=%v, want 2", n, err)
		}
		return nil
	})

	inTx("delete membership", func(ctx context.Context, tx familyrepoport.Tx) error {
		if err := tx.DeleteMembership(ctx, m2.ID); err != nil {
			return err
		}
		if _, err := tx.GetMembership(ctx, m2.ID); !errors.Is(err, familyrepoport.ErrNotFound) {
			t.Fatalf("GetMembership deleted err=%v, want %v", err, familyrepoport.ErrNotFound)
		}
		if err := tx.DeleteMembership(ctx, m2.ID); !errors.Is(err, familyrepoport.ErrNotFound) {
			t.Fatalf("DeleteMembership twice err=%v, want %v", err, familyrepoport.ErrNotFound)
		}
		return nil
	})

	// Family delete cascades.
	inTx("delete family", func(ctx context.Context, tx familyrepoport.Tx) error {
		if err := tx.DeleteFamily(ctx, fID); err != nil {
			return err
		}
		if _, err := tx.GetFamily(ctx, fID); !errors.Is(err, familyrepoport.ErrNotFound) {
			t.Fatalf("GetFamily deleted err=%v, want %v", err, familyrepoport.ErrNotFound)
		}
		if _, err := tx.GetMembership(ctx, m1.ID); !errors.Is(err, familyrepoport.ErrNotFound) {
			t.Fatalf("GetMembership after cascade err=%v, want %v", err, familyrepoport.ErrNotFound)
		}
		if n, err := tx.CountMemberships(ctx, fID); err != nil || n != 0 {
			t.Fatalf("CountMemberships after cascade=%d err=%v", n, err)
		}
		if _, err := tx.LockFamily(ctx, fID); !errors.Is(err, familyrepoport.ErrNotFound) {
			t.Fatalf("LockFamily deleted err=%v, want %v", err, familyrepoport.ErrNotFound)
		}
		return nil
	})
}

func RunHealthLogRepo(t *testing.T, newRepo HealthLogRepoFactory, seedUsers UserSeeder) {
	t.Helper()
	ctx := context.Background()

	repo, cleanup := newRepo(t)
	if cleanup != nil {
		t.Cleanup(cleanup)
	}

	u1 := domain.UserID(uuid.NewString())
	u2 := domain.UserID(uuid.NewString())
	if seedUsers != nil {
		seedUsers(t, u1, u2)
	}

	base := time.Unix(5000, 0).UTC()
	sys, dia := 120, 80
	sugarType := domain.SugarTypeFasting
	sugar := 5.4
	notes := "after walk"

	bp := domain.HealthLog{
		ID:         domain.HealthLogID(uuid.NewString()),
		UserID:     u1,
		MetricType: domain.MetricTypeBloodPressure,
		Systolic:   &sys,
		Diastolic:  &dia,
		Notes:      &notes,
		RecordedAt: base,
		CreatedAt:  base,
	}
	sg := domain.HealthLog{
		ID:         domain.HealthLogID(uuid.NewString()),
		UserID:     u1,
		MetricType: domain.MetricTypeSugar,
		SugarType:  &sugarType,
		SugarValue: &sugar,
		RecordedAt: base.Add(time.Hour),
		CreatedAt:  base.Add(time.Hour),
	}
	other := domain.HealthLog{
		ID:         domain.HealthLogID(uuid.NewString()),
		UserID:     u2,
		MetricType: domain.MetricTypeBloodPressure,
		Systolic:   &sys,
		Diastolic:  &dia,
		RecordedAt: base.Add(2 * time.Hour),
		CreatedAt:  base.Add(2 * time.Hour),
	}
	for _, l := range []domain.HealthLog{bp, sg, other} {
		if err := repo.Create(ctx, l); err != nil {
			t.Fatalf("Create %s: %v", l.ID, err)
		}
	}

	got, err := repo.GetByID(ctx, bp.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Systolic == nil || *got.Systolic != 120 || got.Diastolic == nil || *got.Diastolic != 80 || got.Notes == nil || *got.Notes != notes || got.SugarType != nil {
		t.Fatalf("GetByID bp unexpected: %+v", got)
	}
	got, err = repo.GetByID(ctx, sg.ID)
	if err != nil {
		t.Fatalf("GetByID sugar: %v", err)
	}
	if got.SugarType == nil || *got.SugarType != domain.SugarTypeFasting || got.SugarValue == nil || *got.SugarValue != sugar || got.Systolic != nil {
		t.Fatalf("GetByID sugar unexpected: %+v", got)
	}

	list, err := repo.ListByUser(ctx, u1, nil, 0)
	if err != nil {
		t.Fatalf("ListByUser: %v", err)
	}
	if len(list) != 2 || list[0].ID != sg.ID || list[1].ID != bp.ID {
		t.Fatalf("ListByUser order unexpected: %+v", list)
	}

	metric := domain.MetricTypeBloodPressure
	list, err = repo.ListByUser(ctx, u1, &metric, 0)
	if err != nil || len(list) != 1 || list[0].ID != bp.ID {
		t.Fatalf("ListByUser(BP)=%+v err=%v", list, err)
	}

	list, err = repo.ListByUser(ctx, u1, nil, 1)
	if err != nil || len(list) != 1 || list[0].ID != sg.ID {
		t.Fatalf("ListByUser(limit 1)=%+v err=%v", list, err)
	}

	if _, err := repo.GetByID(ctx, domain.HealthLogID(uuid.NewString())); !errors.Is(err, healthlogrepoport.ErrNotFound) {
		t.Fatalf("GetByID missing err=%v, want %v", err, healthlogrepoport.ErrNotFound)
	}
}

func RunReminderRepo(t *testing.T, newRepo ReminderRepoFactory, seedUsers UserSeeder) {
	t.Helper()
	ctx := context.Background()

	repo, cleanup := newRepo(t)
	if cleanup != nil {
		t.Cleanup(cleanup)
	}

	u1 := domain.UserID(uuid.NewString())
	if seedUsers != nil {
		seedUsers(t, u1)
	}

	now := time.Unix(7000, 0).UTC()
	interval := 2
	first := domain.ReminderSettings{
		ID:                   domain.ReminderID(uuid.NewString()),
		UserID:               u1,
		MetricType:           domain.MetricTypeSugar,
		FrequencyType:        domain.FrequencyDaily,
		FrequencyInterval:    &interval,
		NotificationsEnabled: true,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	stored, err := repo.Upsert(ctx, first)
	if err != nil {
		t.Fatalf("Upsert insert: %v", err)
	}
	if stored.ID != first.ID || stored.FrequencyInterval == nil || *stored.FrequencyInterval != 2 {
		t.Fatalf("Upsert insert unexpected: %+v", stored)
	}

	// Replace keeps ID and CreatedAt.
	second := domain.ReminderSettings{
		ID:                   domain.ReminderID(uuid.NewString()),
		UserID:               u1,
		MetricType:           domain.MetricTypeSugar,
		FrequencyType:        domain.FrequencyWeekly,
		NotificationsEnabled: false,
		CreatedAt:            now.Add(time.Hour),
		UpdatedAt:            now.Add(time.Hour),
	}
	stored, err = repo.Upsert(ctx, second)
	if err != nil {
		t.Fatalf("Upsert replace: %v", err)
	}
	if stored.ID != first.ID || !stored.CreatedAt.Equal(now) || stored.FrequencyType != domain.FrequencyWeekly || stored.FrequencyInterval != nil || stored.NotificationsEnabled {
		t.Fatalf("Upsert replace unexpected: %+v", stored)
	}

	bp := domain.ReminderSettings{
		ID:                   domain.ReminderID(uuid.NewString()),
		UserID:               u1,
		MetricType:           domain.MetricTypeBloodPressure,
		FrequencyType:        domain.FrequencyMonthly,
		NotificationsEnabled: true,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	if _, err := repo.Upsert(ctx, bp); err != nil {
		t.Fatalf("Upsert bp: %v", err)
	}

	list, err := repo.ListByUser(ctx, u1)
	if err != nil {
		t.Fatalf("ListByUser: %v", err)
	}
	if len(list) != 2 || list[0].MetricType != domain.MetricTypeBloodPressure || list[1].MetricType != domain.MetricTypeSugar {
		t.Fatalf("ListByUser unexpected: %+v", list)
	}

	got, err := repo.GetByUserAndMetric(ctx, u1, domain.MetricTypeSugar)
	if err != nil || got.ID != first.ID {
		t.Fatalf("GetByUserAndMetric got=%+v err=%v", got, err)
	}

	triggered := now.Add(24 * time.Hour)
	got.LastTriggeredAt = &triggered
	got.UpdatedAt = triggered
	if err := repo.Update(ctx, got); err != nil {
		t.Fatalf("Update: %v", err)
	}
	got, err = repo.GetByID(ctx, first.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.LastTriggeredAt == nil || !got.LastTriggeredAt.Equal(triggered) {
		t.Fatalf("LastTriggeredAt=%v, want %v", got.LastTriggeredAt, triggered)
	}

	if _, err := repo.GetByID(ctx, domain.ReminderID(uuid.NewString())); !errors.Is(err, reminderrepoport.ErrNotFound) {
		t.Fatalf("GetByID missing err=%v, want %v", err, reminderrepoport.ErrNotFound)
	}
	if err := repo.Update(ctx, domain.ReminderSettings{ID: domain.ReminderID(uuid.NewString())}); !errors.Is(err, reminderrepoport.ErrNotFound) {
		t.Fatalf("Update missing err=%v, want %v", err, reminderrepoport.ErrNotFound)
	}
}

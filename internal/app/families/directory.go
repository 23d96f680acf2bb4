package families

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"github.com/househealth/househealth-api/internal/domain"
	clockport "github.com/househealth/househealth-api/internal/ports/out/clock"
	"github.com/househealth/househealth-api/internal/ports/out/familyrepo"
	"github.com/househealth/househealth-api/internal/ports/out/userrepo"
)

// Directory owns creation, renaming and deletion of Family aggregates.
type Directory struct {
	repo  familyrepo.Repository
	users UserDirectory
	clk   clockport.Clock

	newFamilyID     func() domain.FamilyID
	newMembershipID func() domain.MembershipID

	Logger  *slog.Logger
	Metrics Metrics
}

func NewDirectory(repo familyrepo.Repository, users UserDirectory, clk clockport.Clock) *Directory {
	return &Directory{
		repo:  repo,
		users: users,
		clk:   clk,
		newFamilyID: func() domain.FamilyID {
			return domain.FamilyID(uuid.NewString())
		},
		newMembershipID: func() domain.MembershipID {
			return domain.MembershipID(uuid.NewString())
		},
	}
}

// SetNewIDsForTest overrides ID generation for deterministic tests.
// It should not be used in production code.
func (d *Directory) SetNewIDsForTest(family func() domain.FamilyID, membership func() domain.MembershipID) {
	if family != nil {
		d.newFamilyID = family
	}
	if membership != nil {
		d.newMembershipID = membership
	}
}

// CreateFamily persists a new family and its founding owner membership atomically.
func (d *Directory) CreateFamily(ctx context.Context, name string, creatorUserID domain.UserID) (domain.FamilyDetails, error) {
	name = domain.NormalizeFamilyName(name)
	if name == "" {
		return domain.FamilyDetails{}, invalidArgument("invalid name", map[string]any{"name": "must be non-empty"})
	}
	creator, err := d.users.GetUserByID(ctx, creatorUserID)
	if err != nil {
		return domain.FamilyDetails{}, err
	}

	now := d.clk.Now()
	creatorID := creator.ID
	f := domain.Family{
		ID:              d.newFamilyID(),
		Name:            name,
		CreatedByUserID: &creatorID,
		Version:         1,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	m := domain.Membership{
		ID:                   d.newMembershipID(),
		UserID:               creator.ID,
		FamilyID:             f.ID,
		Role:                 domain.MembershipRoleBoth,
		Owner:                true,
		NotificationsEnabled: true,
		JoinedAt:             now,
	}

	err = runTx(ctx, d.repo, d.Metrics, "create_family", func(ctx context.Context, tx familyrepo.Tx) error {
		if err := tx.CreateFamily(ctx, f); err != nil {
			return err
		}
		return tx.CreateMembership(ctx, m)
	})
	if err != nil {
		return domain.FamilyDetails{}, err
	}

	loggerOrDefault(d.Logger).InfoContext(ctx, "family created", "family_id", f.ID, "user_id", creator.ID)
	return domain.FamilyDetails{
		Family:  f,
		Members: []domain.MemberView{{Membership: m, User: toUserSummary(creator)}},
	}, nil
}

func (d *Directory) GetFamilyByID(ctx context.Context, id domain.FamilyID) (domain.Family, error) {
	var out domain.Family
	err := d.repo.InTx(ctx, func(ctx context.Context, tx familyrepo.Tx) error {
		f, err := d.getFamily(ctx, tx, id)
		out = f
		return err
	})
	return out, err
}

// GetFamilyDetails returns the family and its members. Callers who are not members
// get FamilyNotFound, the same as for a family that does not exist.
func (d *Directory) GetFamilyDetails(ctx context.Context, familyID domain.FamilyID, actingUserID domain.UserID) (domain.FamilyDetails, error) {
	var (
		f  domain.Family
		ms []domain.Membership
	)
	err := d.repo.InTx(ctx, func(ctx context.Context, tx familyrepo.Tx) error {
		var err error
		f, err = d.getFamily(ctx, tx, familyID)
		if err != nil {
			return err
		}
		ok, err := tx.MembershipExists(ctx, actingUserID, familyID)
		if err != nil {
			return err
		}
		if !ok {
			return familyNotFound()
		}
		ms, err = tx.ListMemberships(ctx, familyID)
		return err
	})
	if err != nil {
		return domain.FamilyDetails{}, err
	}
	views, err := memberViews(ctx, d.users, ms)
	if err != nil {
		return domain.FamilyDetails{}, err
	}
	return domain.FamilyDetails{Family: f, Members: views}, nil
}

func (d *Directory) ListFamiliesForUser(ctx context.Context, userID domain.UserID) ([]domain.Family, error) {
	var out []domain.Family
	err := d.repo.InTx(ctx, func(ctx context.Context, tx familyrepo.Tx) error {
		fs, err := tx.ListFamiliesForUser(ctx, userID)
		out = fs
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// RenameFamily changes the family name. Only owners may rename.
// When expectedVersion is non-nil the rename fails with ErrConflict unless it matches
// the stored version.
func (d *Directory) RenameFamily(ctx context.Context, familyID domain.FamilyID, newName string, actingUserID domain.UserID, expectedVersion *int64) (domain.Family, error) {
	var out domain.Family
	err := runTx(ctx, d.repo, d.Metrics, "rename_family", func(ctx context.Context, tx familyrepo.Tx) error {
		f, err := tx.LockFamily(ctx, familyID)
		if err != nil {
			if errors.Is(err, familyrepo.ErrNotFound) {
				return familyNotFound()
			}
			return err
		}
		acting, err := tx.GetMembershipByUserAndFamily(ctx, actingUserID, familyID)
		if err != nil {
			if errors.Is(err, familyrepo.ErrNotFound) {
				return unauthorized("only family owners can rename the family")
			}
			return err
		}
		if !acting.Owner {
			return unauthorized("only family owners can rename the family")
		}
		name := domain.NormalizeFamilyName(newName)
		if name == "" {
			return invalidArgument("invalid name", map[string]any{"name": "must be non-empty"})
		}
		if expectedVersion != nil {
			f.Version = *expectedVersion
		}
		f.Name = name
		out, err = bumpVersion(ctx, tx, f, d.clk.Now())
		return err
	})
	if err != nil {
		return domain.Family{}, err
	}
	loggerOrDefault(d.Logger).InfoContext(ctx, "family renamed", "family_id", familyID, "acting_user_id", actingUserID, "version", out.Version)
	return out, nil
}

// PermanentlyDeleteFamily removes a family and all of its memberships regardless of
// ownership. It is restricted to system administrators.
func (d *Directory) PermanentlyDeleteFamily(ctx context.Context, familyID domain.FamilyID, actingUserID domain.UserID) error {
	acting, err := d.users.GetUserByID(ctx, actingUserID)
	if err != nil && !errors.Is(err, userrepo.ErrNotFound) {
		return err
	}
	if err != nil || !acting.IsAdmin() {
		d.observe("delete_family", "unauthorized_action")
		loggerOrDefault(d.Logger).DebugContext(ctx, "family delete refused", "family_id", familyID, "acting_user_id", actingUserID)
		return unauthorized("only administrators can permanently delete a family")
	}
	err = runTx(ctx, d.repo, d.Metrics, "delete_family", func(ctx context.Context, tx familyrepo.Tx) error {
		if _, err := tx.LockFamily(ctx, familyID); err != nil {
			if errors.Is(err, familyrepo.ErrNotFound) {
				return familyNotFound()
			}
			return err
		}
		return tx.DeleteFamily(ctx, familyID)
	})
	if err != nil {
		return err
	}
	loggerOrDefault(d.Logger).InfoContext(ctx, "family permanently deleted", "family_id", familyID, "acting_user_id", actingUserID)
	return nil
}

func (d *Directory) getFamily(ctx context.Context, tx familyrepo.Tx, id domain.FamilyID) (domain.Family, error) {
	f, err := tx.GetFamily(ctx, id)
	if err != nil {
		if errors.Is(err, familyrepo.ErrNotFound) {
			return domain.Family{}, familyNotFound()
		}
		return domain.Family{}, err
	}
	return f, nil
}

// deleteIfEmpty removes the family once its last membership is gone.
// It reports whether the family was deleted.
func (d *Directory) deleteIfEmpty(ctx context.Context, tx familyrepo.Tx, familyID domain.FamilyID) (bool, error) {
	n, err := tx.CountMemberships(ctx, familyID)
	if err != nil {
		return false, err
	}
	if n > 0 {
		return false, nil
	}
	if err := tx.DeleteFamily(ctx, familyID); err != nil {
		return false, err
	}
	return true, nil
}

func (d *Directory) observe(op, outcome string) {
	metricsOrNoop(d.Metrics).ObserveMembershipOperation(op, outcome)
}

func memberViews(ctx context.Context, users UserDirectory, ms []domain.Membership) ([]domain.MemberView, error) {
	out := make([]domain.MemberView, 0, len(ms))
	for _, m := range ms {
		u, err := users.GetUserByID(ctx, m.UserID)
		if err != nil {
			return nil, err
		}
		out = append(out, domain.MemberView{Membership: m, User: toUserSummary(u)})
	}
	return out, nil
}

func toUserSummary(u domain.User) domain.UserSummary {
	return domain.UserSummary{ID: u.ID, DisplayName: u.DisplayName, Email: u.Email}
}

package families

import (
	"context"
	"errors"
	"log/slog"

	"github.com/househealth/househealth-api/internal/domain"
	clockport "github.com/househealth/househealth-api/internal/ports/out/clock"
	"github.com/househealth/househealth-api/internal/ports/out/familyrepo"
)

// Engine owns every mutation of the membership set of an existing family.
//
// Each operation runs in one transaction that starts by locking the family row, and
// re-reads owner and member counts inside that transaction before mutating.
type Engine struct {
	repo  familyrepo.Repository
	dir   *Directory
	users UserDirectory
	clk   clockport.Clock

	Logger  *slog.Logger
	Metrics Metrics
}

func NewEngine(repo familyrepo.Repository, dir *Directory, users UserDirectory, clk clockport.Clock) *Engine {
	return &Engine{repo: repo, dir: dir, users: users, clk: clk}
}

func (e *Engine) GetMembershipByID(ctx context.Context, id domain.MembershipID) (domain.Membership, error) {
	var out domain.Membership
	err := e.repo.InTx(ctx, func(ctx context.Context, tx familyrepo.Tx) error {
		m, err := tx.GetMembership(ctx, id)
		if err != nil {
			if errors.Is(err, familyrepo.ErrNotFound) {
				return membershipNotFound("membership not found")
			}
			return err
		}
		out = m
		return nil
	})
	return out, err
}

// GetVisibleMembership returns the membership only when the caller belongs to the same family.
func (e *Engine) GetVisibleMembership(ctx context.Context, id domain.MembershipID, actingUserID domain.UserID) (domain.Membership, error) {
	m, err := e.GetMembershipByID(ctx, id)
	if err != nil {
		return domain.Membership{}, err
	}
	if m.UserID == actingUserID {
		return m, nil
	}
	err = e.repo.InTx(ctx, func(ctx context.Context, tx familyrepo.Tx) error {
		ok, err := tx.MembershipExists(ctx, actingUserID, m.FamilyID)
		if err != nil {
			return err
		}
		if !ok {
			return membershipNotFound("membership not found")
		}
		return nil
	})
	if err != nil {
		return domain.Membership{}, err
	}
	return m, nil
}

// ListMembers returns the membership set with public user fields. Members only.
func (e *Engine) ListMembers(ctx context.Context, familyID domain.FamilyID, actingUserID domain.UserID) ([]domain.MemberView, error) {
	var ms []domain.Membership
	err := e.repo.InTx(ctx, func(ctx context.Context, tx familyrepo.Tx) error {
		if _, err := e.dir.getFamily(ctx, tx, familyID); err != nil {
			return err
		}
		if _, err := actingMembership(ctx, tx, familyID, actingUserID); err != nil {
			return err
		}
		var err error
		ms, err = tx.ListMemberships(ctx, familyID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return memberViews(ctx, e.users, ms)
}

// LeaveFamily deletes the caller's own membership. A sole owner cannot leave; once the
// last membership is gone the family is deleted.
func (e *Engine) LeaveFamily(ctx context.Context, familyID domain.FamilyID, actingUserID domain.UserID) error {
	var familyDeleted bool
	err := runTx(ctx, e.repo, e.Metrics, "leave_family", func(ctx context.Context, tx familyrepo.Tx) error {
		f, err := lockFamilyForMember(ctx, tx, familyID)
		if err != nil {
			return err
		}
		acting, err := actingMembership(ctx, tx, familyID, actingUserID)
		if err != nil {
			return err
		}
		if acting.Owner {
			owners, err := tx.CountOwners(ctx, familyID)
			if err != nil {
				return err
			}
			if owners <= 1 {
				return unauthorized("last owner must transfer ownership first")
			}
		}
		if err := tx.DeleteMembership(ctx, acting.ID); err != nil {
			return err
		}
		familyDeleted, err = e.afterMembershipRemoved(ctx, tx, f)
		return err
	})
	if err != nil {
		e.refused(ctx, "leave_family", familyID, actingUserID, err)
		return err
	}
	loggerOrDefault(e.Logger).InfoContext(ctx, "member left family", "family_id", familyID, "user_id", actingUserID, "family_deleted", familyDeleted)
	return nil
}

// AddMember adds targetUserID as a non-owner OBSERVER. Only owners may add members.
func (e *Engine) AddMember(ctx context.Context, familyID domain.FamilyID, targetUserID, actingUserID domain.UserID) (domain.Membership, error) {
	// The user directory may share the store's only connection, so it is read before the
	// transaction opens. A lookup failure is reported after the membership checks.
	target, targetErr := e.users.GetUserByID(ctx, targetUserID)

	var out domain.Membership
	err := runTx(ctx, e.repo, e.Metrics, "add_member", func(ctx context.Context, tx familyrepo.Tx) error {
		// A missing family has no members, so the acting check fails first.
		f, err := lockFamilyForMember(ctx, tx, familyID)
		if err != nil {
			return err
		}
		if _, err := actingOwner(ctx, tx, familyID, actingUserID, "only family owners can add members"); err != nil {
			return err
		}
		exists, err := tx.MembershipExists(ctx, targetUserID, familyID)
		if err != nil {
			return err
		}
		if exists {
			return alreadyMember()
		}
		if targetErr != nil {
			return targetErr
		}

		m := domain.Membership{
			ID:                   e.dir.newMembershipID(),
			UserID:               target.ID,
			FamilyID:             familyID,
			Role:                 domain.MembershipRoleObserver,
			Owner:                false,
			NotificationsEnabled: true,
			JoinedAt:             e.clk.Now(),
		}
		if err := tx.CreateMembership(ctx, m); err != nil {
			if errors.Is(err, familyrepo.ErrAlreadyMember) {
				return alreadyMember()
			}
			return err
		}
		if _, err := bumpVersion(ctx, tx, f, e.clk.Now()); err != nil {
			return err
		}
		out = m
		return nil
	})
	if err != nil {
		e.refused(ctx, "add_member", familyID, actingUserID, err)
		return domain.Membership{}, err
	}
	loggerOrDefault(e.Logger).InfoContext(ctx, "member added", "family_id", familyID, "user_id", targetUserID, "acting_user_id", actingUserID)
	return out, nil
}

// RemoveMember deletes targetUserID's membership. The acting user must be an owner.
// Owners can only be removed by themselves, and a sole owner cannot remove themself
// while other members remain.
func (e *Engine) RemoveMember(ctx context.Context, familyID domain.FamilyID, targetUserID, actingUserID domain.UserID) error {
	var familyDeleted bool
	err := runTx(ctx, e.repo, e.Metrics, "remove_member", func(ctx context.Context, tx familyrepo.Tx) error {
		f, err := tx.LockFamily(ctx, familyID)
		if err != nil {
			if errors.Is(err, familyrepo.ErrNotFound) {
				return familyNotFound()
			}
			return err
		}
		if _, err := actingOwner(ctx, tx, familyID, actingUserID, "only family owners can remove members"); err != nil {
			return err
		}
		target, err := tx.GetMembershipByUserAndFamily(ctx, targetUserID, familyID)
		if err != nil {
			if errors.Is(err, familyrepo.ErrNotFound) {
				return membershipNotFound("target user is not a member of this family")
			}
			return err
		}

		if target.Owner {
			if actingUserID != targetUserID {
				return illegalOperation("an owner cannot be removed by another member")
			}
			owners, err := tx.CountOwners(ctx, familyID)
			if err != nil {
				return err
			}
			total, err := tx.CountMemberships(ctx, familyID)
			if err != nil {
				return err
			}
			if owners == 1 && total > 1 {
				return illegalOperation("sole owner must transfer ownership before leaving")
			}
		}

		if err := tx.DeleteMembership(ctx, target.ID); err != nil {
			return err
		}
		familyDeleted, err = e.afterMembershipRemoved(ctx, tx, f)
		return err
	})
	if err != nil {
		e.refused(ctx, "remove_member", familyID, actingUserID, err)
		return err
	}
	loggerOrDefault(e.Logger).InfoContext(ctx, "member removed", "family_id", familyID, "user_id", targetUserID, "acting_user_id", actingUserID, "family_deleted", familyDeleted)
	return nil
}

// AddOwner promotes an existing member to owner. It never reduces the owner count.
func (e *Engine) AddOwner(ctx context.Context, familyID domain.FamilyID, targetUserID, actingUserID domain.UserID) (domain.Membership, error) {
	var out domain.Membership
	err := runTx(ctx, e.repo, e.Metrics, "add_owner", func(ctx context.Context, tx familyrepo.Tx) error {
		f, err := lockFamilyForMember(ctx, tx, familyID)
		if err != nil {
			return err
		}
		if _, err := actingOwner(ctx, tx, familyID, actingUserID, "only family owners can add owners"); err != nil {
			return err
		}
		target, err := targetMembership(ctx, tx, familyID, targetUserID)
		if err != nil {
			return err
		}
		if target.Owner {
			return illegalOperation("target user is already an owner")
		}
		target.Owner = true
		if err := tx.UpdateMembership(ctx, target); err != nil {
			return err
		}
		if _, err := bumpVersion(ctx, tx, f, e.clk.Now()); err != nil {
			return err
		}
		out = target
		return nil
	})
	if err != nil {
		e.refused(ctx, "add_owner", familyID, actingUserID, err)
		return domain.Membership{}, err
	}
	loggerOrDefault(e.Logger).InfoContext(ctx, "owner added", "family_id", familyID, "user_id", targetUserID, "acting_user_id", actingUserID)
	return out, nil
}

// TransferOwnership hands sole ownership from the acting owner to another member.
// It is only defined when the family has exactly one owner. Both flag flips commit together.
func (e *Engine) TransferOwnership(ctx context.Context, familyID domain.FamilyID, newOwnerUserID, actingUserID domain.UserID) (domain.Membership, error) {
	var out domain.Membership
	err := runTx(ctx, e.repo, e.Metrics, "transfer_ownership", func(ctx context.Context, tx familyrepo.Tx) error {
		f, err := lockFamilyForMember(ctx, tx, familyID)
		if err != nil {
			return err
		}
		acting, err := actingOwner(ctx, tx, familyID, actingUserID, "only family owners can transfer ownership")
		if err != nil {
			return err
		}
		owners, err := tx.CountOwners(ctx, familyID)
		if err != nil {
			return err
		}
		if owners != 1 {
			return illegalOperation("ownership transfer requires exactly one owner")
		}
		target, err := targetMembership(ctx, tx, familyID, newOwnerUserID)
		if err != nil {
			return err
		}
		if target.Owner {
			return illegalOperation("target user is already an owner")
		}

		target.Owner = true
		if err := tx.UpdateMembership(ctx, target); err != nil {
			return err
		}
		acting.Owner = false
		if err := tx.UpdateMembership(ctx, acting); err != nil {
			return err
		}
		if _, err := bumpVersion(ctx, tx, f, e.clk.Now()); err != nil {
			return err
		}
		out = target
		return nil
	})
	if err != nil {
		e.refused(ctx, "transfer_ownership", familyID, actingUserID, err)
		return domain.Membership{}, err
	}
	loggerOrDefault(e.Logger).InfoContext(ctx, "ownership transferred", "family_id", familyID, "user_id", newOwnerUserID, "acting_user_id", actingUserID)
	return out, nil
}

// UpdateMembershipSettings changes role and notification preferences. Members manage
// their own settings; owners may also change other members' roles. Notification
// preferences are self-service only. The owner flag is never touched.
func (e *Engine) UpdateMembershipSettings(ctx context.Context, familyID domain.FamilyID, targetUserID, actingUserID domain.UserID, in MembershipSettingsInput) (domain.Membership, error) {
	var out domain.Membership
	err := runTx(ctx, e.repo, e.Metrics, "update_membership", func(ctx context.Context, tx familyrepo.Tx) error {
		f, err := lockFamilyForMember(ctx, tx, familyID)
		if err != nil {
			return err
		}
		acting, err := actingMembership(ctx, tx, familyID, actingUserID)
		if err != nil {
			return err
		}
		if in.Role != nil && !in.Role.Valid() {
			return invalidArgument("invalid role", map[string]any{"role": "must be one of OBSERVER, TRACKER, BOTH"})
		}

		target := acting
		if targetUserID != actingUserID {
			if in.NotificationsEnabled != nil {
				return unauthorized("notification preferences can only be changed by the member")
			}
			if !acting.Owner {
				return unauthorized("only family owners can change another member's role")
			}
			target, err = targetMembership(ctx, tx, familyID, targetUserID)
			if err != nil {
				return err
			}
		}

		changed := false
		if in.Role != nil && *in.Role != target.Role {
			target.Role = *in.Role
			changed = true
		}
		if in.NotificationsEnabled != nil && *in.NotificationsEnabled != target.NotificationsEnabled {
			target.NotificationsEnabled = *in.NotificationsEnabled
			changed = true
		}
		if changed {
			if err := tx.UpdateMembership(ctx, target); err != nil {
				return err
			}
			if _, err := bumpVersion(ctx, tx, f, e.clk.Now()); err != nil {
				return err
			}
		}
		out = target
		return nil
	})
	if err != nil {
		e.refused(ctx, "update_membership", familyID, actingUserID, err)
		return domain.Membership{}, err
	}
	return out, nil
}

// afterMembershipRemoved deletes the family when its membership set became empty,
// and otherwise records the change on the family version.
func (e *Engine) afterMembershipRemoved(ctx context.Context, tx familyrepo.Tx, f domain.Family) (bool, error) {
	deleted, err := e.dir.deleteIfEmpty(ctx, tx, f.ID)
	if err != nil || deleted {
		return deleted, err
	}
	_, err = bumpVersion(ctx, tx, f, e.clk.Now())
	return false, err
}

func (e *Engine) refused(ctx context.Context, op string, familyID domain.FamilyID, actingUserID domain.UserID, err error) {
	loggerOrDefault(e.Logger).DebugContext(ctx, "membership operation refused", "operation", op, "family_id", familyID, "acting_user_id", actingUserID, "outcome", outcome(err))
}

// lockFamilyForMember locks the family for an operation whose first check is the
// caller's membership: a missing family reports MembershipNotFound.
func lockFamilyForMember(ctx context.Context, tx familyrepo.Tx, familyID domain.FamilyID) (domain.Family, error) {
	f, err := tx.LockFamily(ctx, familyID)
	if err != nil {
		if errors.Is(err, familyrepo.ErrNotFound) {
			return domain.Family{}, membershipNotFound("acting user is not a member of this family")
		}
		return domain.Family{}, err
	}
	return f, nil
}

func actingMembership(ctx context.Context, tx familyrepo.Tx, familyID domain.FamilyID, userID domain.UserID) (domain.Membership, error) {
	m, err := tx.GetMembershipByUserAndFamily(ctx, userID, familyID)
	if err != nil {
		if errors.Is(err, familyrepo.ErrNotFound) {
			return domain.Membership{}, membershipNotFound("acting user is not a member of this family")
		}
		return domain.Membership{}, err
	}
	return m, nil
}

func actingOwner(ctx context.Context, tx familyrepo.Tx, familyID domain.FamilyID, userID domain.UserID, refusal string) (domain.Membership, error) {
	m, err := actingMembership(ctx, tx, familyID, userID)
	if err != nil {
		return domain.Membership{}, err
	}
	if !m.Owner {
		return domain.Membership{}, unauthorized(refusal)
	}
	return m, nil
}

func targetMembership(ctx context.Context, tx familyrepo.Tx, familyID domain.FamilyID, userID domain.UserID) (domain.Membership, error) {
	m, err := tx.GetMembershipByUserAndFamily(ctx, userID, familyID)
	if err != nil {
		if errors.Is(err, familyrepo.ErrNotFound) {
			return domain.Membership{}, membershipNotFound("target user is not a member of this family")
		}
		return domain.Membership{}, err
	}
	return m, nil
}

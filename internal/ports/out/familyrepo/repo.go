package familyrepo

import (
	"context"

	"github.com/househealth/househealth-api/internal/domain"
)

// Repository opens transactions over families and their memberships.
//
// InTx runs fn inside a single transaction. The transaction commits when fn returns nil
// and rolls back otherwise; no partial effect of a failed fn is ever visible.
type Repository interface {
	InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// Tx is the unit of work over one or more families.
//
// LockFamily must be the first statement of any read-check-write sequence on a family:
// it blocks concurrent writers to the same family until the transaction ends.
//
// Ordering expectations:
// - ListMemberships returns memberships ordered by JoinedAt ascending, then ID.
// - ListFamiliesForUser returns families ordered by Name ascending, then ID.
type Tx interface {
	LockFamily(ctx context.Context, id domain.FamilyID) (domain.Family, error)
	GetFamily(ctx context.Context, id domain.FamilyID) (domain.Family, error)
	CreateFamily(ctx context.Context, f domain.Family) error
	// UpdateFamily writes f if the stored version still equals f.Version and stores
	// f.Version+1. It returns the stored family, or ErrConflict on a version mismatch.
	UpdateFamily(ctx context.Context, f domain.Family) (domain.Family, error)
	// DeleteFamily removes the family and all of its memberships.
	DeleteFamily(ctx context.Context, id domain.FamilyID) error
	ListFamiliesForUser(ctx context.Context, userID domain.UserID) ([]domain.Family, error)

	GetMembership(ctx context.Context, id domain.MembershipID) (domain.Membership, error)
	GetMembershipByUserAndFamily(ctx context.Context, userID domain.UserID, familyID domain.FamilyID) (domain.Membership, error)
	MembershipExists(ctx context.Context, userID domain.UserID, familyID domain.FamilyID) (bool, error)
	ListMemberships(ctx context.Context, familyID domain.FamilyID) ([]domain.Membership, error)
	CountMemberships(ctx context.Context, familyID domain.FamilyID) (int, error)
	CountOwners(ctx context.Context, familyID domain.FamilyID) (int, error)

	// CreateMembership returns ErrAlreadyMember if the (user, family) pair already has a membership.
	CreateMembership(ctx context.Context, m domain.Membership) error
	UpdateMembership(ctx context.Context, m domain.Membership) error
	DeleteMembership(ctx context.Context, id domain.MembershipID) error
}

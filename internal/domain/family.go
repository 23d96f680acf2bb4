package domain

import "time"

type MembershipRole string

const (
	MembershipRoleObserver MembershipRole = "OBSERVER"
	MembershipRoleTracker  MembershipRole = "TRACKER"
	MembershipRoleBoth     MembershipRole = "BOTH"
)

func (r MembershipRole) Valid() bool {
	switch r {
	case MembershipRoleObserver, MembershipRoleTracker, MembershipRoleBoth:
		return true
	default:
		return false
	}
}

// Family is a household aggregate. Version increases by one on every committed
// change to the family or its membership set.
type Family struct {
	ID              FamilyID
	Name            string
	CreatedByUserID *UserID
	Version         int64

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Membership links exactly one user to exactly one family.
type Membership struct {
	ID       MembershipID
	UserID   UserID
	FamilyID FamilyID

	Role                 MembershipRole
	Owner                bool
	NotificationsEnabled bool

	JoinedAt time.Time
}

// FamilyDetails is a family together with its current membership set.
type FamilyDetails struct {
	Family  Family
	Members []MemberView
}

// MemberView is a membership joined with the member's public user fields.
type MemberView struct {
	Membership Membership
	User       UserSummary
}

package domain

import "time"

type SystemRole string

const (
	SystemRoleUser  SystemRole = "USER"
	SystemRoleAdmin SystemRole = "ADMIN"
)

// User is an identity record. Users are referenced by memberships, never owned by them.
type User struct {
	ID           UserID
	Email        string
	DisplayName  string
	PasswordHash string
	SystemRole   SystemRole
	CreatedAt    time.Time
}

func (u User) IsAdmin() bool {
	return u.SystemRole == SystemRoleAdmin
}

// UserSummary is the public projection of a user, safe to return to other family members.
type UserSummary struct {
	ID          UserID
	DisplayName string
	Email       string
}

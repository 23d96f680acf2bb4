package userrepo

import (
	"context"

	"github.com/househealth/househealth-api/internal/domain"
)

// Repository provides access to persisted users.
//
// Email lookups are case-insensitive; implementations store the address as given
// and compare on its normalized form.
type Repository interface {
	Create(ctx context.Context, u domain.User) error
	Update(ctx context.Context, u domain.User) error

	GetByID(ctx context.Context, id domain.UserID) (domain.User, error)
	GetByEmail(ctx context.Context, email string) (domain.User, error)
}

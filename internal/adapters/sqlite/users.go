package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"github.com/househealth/househealth-api/internal/domain"
	"github.com/househealth/househealth-api/internal/ports/out/userrepo"
)

var _ userrepo.Repository = (*UserRepo)(nil)

// UserRepo is a SQLite implementation of userrepo.Repository.
type UserRepo struct {
	db *sql.DB
}

func NewUserRepo(db *sql.DB) *UserRepo {
	return &UserRepo{db: db}
}

const userColumns = `id, email, display_name, password_hash, system_role, created_at`

func (r *UserRepo) Create(ctx context.Context, u domain.User) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES (?, ?, ?, ?, ?, ?)
	`, string(u.ID), u.Email, u.DisplayName, u.PasswordHash, string(u.SystemRole), toMicros(u.CreatedAt))
	if err != nil {
		return mapUserConstraint(err)
	}
	return nil
}

func (r *UserRepo) Update(ctx context.Context, u domain.User) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE users
		SET email = ?, display_name = ?, password_hash = ?, system_role = ?
		WHERE id = ?
	`, u.Email, u.DisplayName, u.PasswordHash, string(u.SystemRole), string(u.ID))
	if err != nil {
		return mapUserConstraint(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return userrepo.ErrNotFound
	}
	return nil
}

func (r *UserRepo) GetByID(ctx context.Context, id domain.UserID) (domain.User, error) {
	return scanUser(r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, string(id)))
}

func (r *UserRepo) GetByEmail(ctx context.Context, email string) (domain.User, error) {
	return scanUser(r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE lower(email) = ?`, domain.NormalizeEmail(email)))
}

func scanUser(row *sql.Row) (domain.User, error) {
	var (
		u         domain.User
		id, role  string
		createdAt int64
	)
	if err := row.Scan(&id, &u.Email, &u.DisplayName, &u.PasswordHash, &role, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.User{}, userrepo.ErrNotFound
		}
		return domain.User{}, err
	}
	u.ID = domain.UserID(id)
	u.SystemRole = domain.SystemRole(role)
	u.CreatedAt = fromMicros(createdAt)
	return u, nil
}

func mapUserConstraint(err error) error {
	switch {
	case isPrimaryKeyViolation(err):
		return userrepo.ErrAlreadyExists
	case isUniqueViolation(err):
		return userrepo.ErrEmailTaken
	}
	return err
}

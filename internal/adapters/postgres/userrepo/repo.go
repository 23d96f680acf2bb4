package userrepo

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	postgres "github.com/househealth/househealth-api/internal/adapters/postgres"
	"github.com/househealth/househealth-api/internal/domain"
	"github.com/househealth/househealth-api/internal/ports/out/userrepo"
)

// Repo is a Postgres implementation of userrepo.Repository.
type Repo struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

const userColumns = `id, email, display_name, password_hash, system_role, created_at`

func (r *Repo) Create(ctx context.Context, u domain.User) error {
	if r.pool == nil {
		return errors.New("nil postgres pool")
	}
	id, err := uuid.Parse(string(u.ID))
	if err != nil {
		return fmt.Errorf("invalid user id: %w", err)
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO users (id, email, display_name, password_hash, system_role, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`,
		id,
		u.Email,
		u.DisplayName,
		u.PasswordHash,
		string(u.SystemRole),
		u.CreatedAt.UTC(),
	)
	if err != nil {
		return mapUniqueViolation(err)
	}
	return nil
}

func (r *Repo) Update(ctx context.Context, u domain.User) error {
	if r.pool == nil {
		return errors.New("nil postgres pool")
	}
	id, err := uuid.Parse(string(u.ID))
	if err != nil {
		return userrepo.ErrNotFound
	}
	tag, err := r.pool.Exec(ctx, `
		UPDATE users
		SET email = $2, display_name = $3, password_hash = $4, system_role = $5
		WHERE id = $1
	`,
		id,
		u.Email,
		u.DisplayName,
		u.PasswordHash,
		string(u.SystemRole),
	)
	if err != nil {
		return mapUniqueViolation(err)
	}
	if tag.RowsAffected() == 0 {
		return userrepo.ErrNotFound
	}
	return nil
}

func (r *Repo) GetByID(ctx context.Context, id domain.UserID) (domain.User, error) {
	if r.pool == nil {
		return domain.User{}, errors.New("nil postgres pool")
	}
	uid, err := uuid.Parse(string(id))
	if err != nil {
		return domain.User{}, userrepo.ErrNotFound
	}
	return scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, uid))
}

func (r *Repo) GetByEmail(ctx context.Context, email string) (domain.User, error) {
	if r.pool == nil {
		return domain.User{}, errors.New("nil postgres pool")
	}
	return scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE lower(email) = $1`, domain.NormalizeEmail(email)))
}

func scanUser(row pgx.Row) (domain.User, error) {
	var (
		id   uuid.UUID
		u    domain.User
		role string
	)
	if err := row.Scan(&id, &u.Email, &u.DisplayName, &u.PasswordHash, &role, &u.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, userrepo.ErrNotFound
		}
		return domain.User{}, err
	}
	u.ID = domain.UserID(id.String())
	u.SystemRole = domain.SystemRole(role)
	u.CreatedAt = u.CreatedAt.UTC()
	return u, nil
}

func mapUniqueViolation(err error) error {
	if pe, ok := postgres.AsPgError(err); ok && pe.Code == postgres.UniqueViolationCode {
		switch pe.ConstraintName {
		case "users_email_lower_unique":
			return userrepo.ErrEmailTaken
		case "users_pkey":
			return userrepo.ErrAlreadyExists
		}
	}
	return err
}

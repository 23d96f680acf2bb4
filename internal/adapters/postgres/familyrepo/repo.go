package familyrepo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	postgres "github.com/househealth/househealth-api/internal/adapters/postgres"
	"github.com/househealth/househealth-api/internal/domain"
	"github.com/househealth/househealth-api/internal/ports/out/familyrepo"
)

// Repo is a Postgres implementation of familyrepo.Repository.
//
// Transactions run at READ COMMITTED; LockFamily takes a row lock (SELECT ... FOR UPDATE)
// so check-then-act sequences on one family are serialized.
type Repo struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

func (r *Repo) InTx(ctx context.Context, fn func(ctx context.Context, tx familyrepo.Tx) error) error {
	if r.pool == nil {
		return errors.New("nil postgres pool")
	}
	err := pgx.BeginTxFunc(ctx, r.pool, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(ptx pgx.Tx) error {
		return fn(ctx, &tx{q: ptx})
	})
	if err != nil && postgres.IsRetryable(err) {
		return fmt.Errorf("%w: %v", familyrepo.ErrConflict, err)
	}
	return err
}

type tx struct {
	q pgx.Tx
}

const familyColumns = `id, name, created_by_user_id, version, created_at, updated_at`

func (t *tx) LockFamily(ctx context.Context, id domain.FamilyID) (domain.Family, error) {
	fid, err := uuid.Parse(string(id))
	if err != nil {
		return domain.Family{}, familyrepo.ErrNotFound
	}
	return scanFamily(t.q.QueryRow(ctx, `SELECT `+familyColumns+` FROM families WHERE id = $1 FOR UPDATE`, fid))
}

func (t *tx) GetFamily(ctx context.Context, id domain.FamilyID) (domain.Family, error) {
	fid, err := uuid.Parse(string(id))
	if err != nil {
		return domain.Family{}, familyrepo.ErrNotFound
	}
	return scanFamily(t.q.QueryRow(ctx, `SELECT `+familyColumns+` FROM families WHERE id = $1`, fid))
}

func (t *tx) CreateFamily(ctx context.Context, f domain.Family) error {
	fid, err := uuid.Parse(string(f.ID))
	if err != nil {
		return fmt.Errorf("invalid family id: %w", err)
	}
	creator, err := optionalUserUUID(f.CreatedByUserID)
	if err != nil {
		return err
	}
	_, err = t.q.Exec(ctx, `
		INSERT INTO families (id, name, created_by_user_id, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, fid, f.Name, creator, f.Version, f.CreatedAt.UTC(), f.UpdatedAt.UTC())
	if err != nil {
		if pe, ok := postgres.AsPgError(err); ok && pe.Code == postgres.UniqueViolationCode {
			return familyrepo.ErrConflict
		}
		return err
	}
	return nil
}

func (t *tx) UpdateFamily(ctx context.Context, f domain.Family) (domain.Family, error) {
	fid, err := uuid.Parse(string(f.ID))
	if err != nil {
		return domain.Family{}, familyrepo.ErrNotFound
	}
	out, err := scanFamily(t.q.QueryRow(ctx, `
		UPDATE families
		SET name = $3, version = version + 1, updated_at = $4
		WHERE id = $1 AND version = $2
		RETURNING `+familyColumns,
		fid, f.Version, f.Name, f.UpdatedAt.UTC(),
	))
	if errors.Is(err, familyrepo.ErrNotFound) {
		// Distinguish a missing row from a stale version.
		var exists bool
		if qerr := t.q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM families WHERE id = $1)`, fid).Scan(&exists); qerr != nil {
			return domain.Family{}, qerr
		}
		if exists {
			return domain.Family{}, familyrepo.ErrConflict
		}
	}
	return out, err
}

func (t *tx) DeleteFamily(ctx context.Context, id domain.FamilyID) error {
	fid, err := uuid.Parse(string(id))
	if err != nil {
		return familyrepo.ErrNotFound
	}
	tag, err := t.q.Exec(ctx, `DELETE FROM families WHERE id = $1`, fid)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return familyrepo.ErrNotFound
	}
	return nil
}

func (t *tx) ListFamiliesForUser(ctx context.Context, userID domain.UserID) ([]domain.Family, error) {
	uid, err := uuid.Parse(string(userID))
	if err != nil {
		return []domain.Family{}, nil
	}
	rows, err := t.q.Query(ctx, `
		SELECT f.id, f.name, f.created_by_user_id, f.version, f.created_at, f.updated_at
		FROM families f
		JOIN family_memberships m ON m.family_id = f.id
		WHERE m.user_id = $1
		ORDER BY f.name ASC, f.id ASC
	`, uid)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.Family, 0)
	for rows.Next() {
		f, err := scanFamily(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

const membershipColumns = `id, user_id, family_id, role, is_owner, notifications_enabled, joined_at`

func (t *tx) GetMembership(ctx context.Context, id domain.MembershipID) (domain.Membership, error) {
	mid, err := uuid.Parse(string(id))
	if err != nil {
		return domain.Membership{}, familyrepo.ErrNotFound
	}
	return scanMembership(t.q.QueryRow(ctx, `SELECT `+membershipColumns+` FROM family_memberships WHERE id = $1`, mid))
}

func (t *tx) GetMembershipByUserAndFamily(ctx context.Context, userID domain.UserID, familyID domain.FamilyID) (domain.Membership, error) {
	uid, fid, ok := parsePair(userID, familyID)
	if !ok {
		return domain.Membership{}, familyrepo.ErrNotFound
	}
	return scanMembership(t.q.QueryRow(ctx, `
		SELECT `+membershipColumns+`
		FROM family_memberships
		WHERE user_id = $1 AND family_id = $2
	`, uid, fid))
}

func (t *tx) MembershipExists(ctx context.Context, userID domain.UserID, familyID domain.FamilyID) (bool, error) {
	uid, fid, ok := parsePair(userID, familyID)
	if !ok {
		return false, nil
	}
	var exists bool
	err := t.q.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM family_memberships WHERE user_id = $1 AND family_id = $2)
	`, uid, fid).Scan(&exists)
	return exists, err
}

func (t *tx) ListMemberships(ctx context.Context, familyID domain.FamilyID) ([]domain.Membership, error) {
	fid, err := uuid.Parse(string(familyID))
	if err != nil {
		return []domain.Membership{}, nil
	}
	rows, err := t.q.Query(ctx, `
		SELECT `+membershipColumns+`
		FROM family_memberships
		WHERE family_id = $1
		ORDER BY joined_at ASC, id ASC
	`, fid)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.Membership, 0)
	for rows.Next() {
		m, err := scanMembership(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (t *tx) CountMemberships(ctx context.Context, familyID domain.FamilyID) (int, error) {
	return t.count(ctx, `SELECT count(*) FROM family_memberships WHERE family_id = $1`, familyID)
}

func (t *tx) CountOwners(ctx context.Context, familyID domain.FamilyID) (int, error) {
	return t.count(ctx, `SELECT count(*) FROM family_memberships WHERE family_id = $1 AND is_owner`, familyID)
}

func (t *tx) count(ctx context.Context, sql string, familyID domain.FamilyID) (int, error) {
	fid, err := uuid.Parse(string(familyID))
	if err != nil {
		return 0, nil
	}
	var n int64
	if err := t.q.QueryRow(ctx, sql, fid).Scan(&n); err != nil {
		return 0, err
	}
	return int(n), nil
}

func (t *tx) CreateMembership(ctx context.Context, m domain.Membership) error {
	mid, err := uuid.Parse(string(m.ID))
	if err != nil {
		return fmt.Errorf("invalid membership id: %w", err)
	}
	uid, fid, ok := parsePair(m.UserID, m.FamilyID)
	if !ok {
		return fmt.Errorf("invalid membership reference user=%q family=%q", m.UserID, m.FamilyID)
	}
	_, err = t.q.Exec(ctx, `
		INSERT INTO family_memberships (id, user_id, family_id, role, is_owner, notifications_enabled, joined_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, mid, uid, fid, string(m.Role), m.Owner, m.NotificationsEnabled, m.JoinedAt.UTC())
	if err != nil {
		if pe, ok := postgres.AsPgError(err); ok {
			switch {
			case pe.Code == postgres.UniqueViolationCode && pe.ConstraintName == "family_memberships_user_family_unique":
				return familyrepo.ErrAlreadyMember
			case pe.Code == postgres.ForeignKeyViolationCode:
				return familyrepo.ErrNotFound
			}
		}
		return err
	}
	return nil
}

func (t *tx) UpdateMembership(ctx context.Context, m domain.Membership) error {
	mid, err := uuid.Parse(string(m.ID))
	if err != nil {
		return familyrepo.ErrNotFound
	}
	tag, err := t.q.Exec(ctx, `
		UPDATE family_memberships
		SET role = $2, is_owner = $3, notifications_enabled = $4
		WHERE id = $1
	`, mid, string(m.Role), m.Owner, m.NotificationsEnabled)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return familyrepo.ErrNotFound
	}
	return nil
}

func (t *tx) DeleteMembership(ctx context.Context, id domain.MembershipID) error {
	mid, err := uuid.Parse(string(id))
	if err != nil {
		return familyrepo.ErrNotFound
	}
	tag, err := t.q.Exec(ctx, `DELETE FROM family_memberships WHERE id = $1`, mid)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return familyrepo.ErrNotFound
	}
	return nil
}

func scanFamily(row pgx.Row) (domain.Family, error) {
	var (
		id        uuid.UUID
		creator   *uuid.UUID
		name      string
		version   int64
		createdAt time.Time
		updatedAt time.Time
	)
	if err := row.Scan(&id, &name, &creator, &version, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Family{}, familyrepo.ErrNotFound
		}
		return domain.Family{}, err
	}
	f := domain.Family{
		ID:        domain.FamilyID(id.String()),
		Name:      name,
		Version:   version,
		CreatedAt: createdAt.UTC(),
		UpdatedAt: updatedAt.UTC(),
	}
	if creator != nil {
		uid := domain.UserID(creator.String())
		f.CreatedByUserID = &uid
	}
	return f, nil
}

func scanMembership(row pgx.Row) (domain.Membership, error) {
	var (
		id, userID, familyID uuid.UUID
		role                 string
		m                    domain.Membership
	)
	if err := row.Scan(&id, &userID, &familyID, &role, &m.Owner, &m.NotificationsEnabled, &m.JoinedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Membership{}, familyrepo.ErrNotFound
		}
		return domain.Membership{}, err
	}
	m.ID = domain.MembershipID(id.String())
	m.UserID = domain.UserID(userID.String())
	m.FamilyID = domain.FamilyID(familyID.String())
	m.Role = domain.MembershipRole(role)
	m.JoinedAt = m.JoinedAt.UTC()
	return m, nil
}

func parsePair(userID domain.UserID, familyID domain.FamilyID) (uuid.UUID, uuid.UUID, bool) {
	uid, err := uuid.Parse(string(userID))
	if err != nil {
		return uuid.UUID{}, uuid.UUID{}, false
	}
	fid, err := uuid.Parse(string(familyID))
	if err != nil {
		return uuid.UUID{}, uuid.UUID{}, false
	}
	return uid, fid, true
}

func optionalUserUUID(id *domain.UserID) (*uuid.UUID, error) {
	if id == nil {
		return nil, nil
	}
	u, err := uuid.Parse(string(*id))
	if err != nil {
		return nil, fmt.Errorf("invalid user id: %w", err)
	}
	return &u, nil
}

package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/househealth/househealth-api/internal/domain"
	"github.com/househealth/househealth-api/internal/ports/out/familyrepo"
)

var _ familyrepo.Repository = (*FamilyRepo)(nil)

// FamilyRepo is a SQLite implementation of familyrepo.Repository.
// LockFamily is a plain read: the write lock taken by BEGIN IMMEDIATE already covers the database.
type FamilyRepo struct {
	db *sql.DB
}

func NewFamilyRepo(db *sql.DB) *FamilyRepo {
	return &FamilyRepo{db: db}
}

type scanner interface {
	Scan(dest ...any) error
}

func (r *FamilyRepo) InTx(ctx context.Context, fn func(ctx context.Context, tx familyrepo.Tx) error) (err error) {
	stx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return mapBusy(fmt.Errorf("begin: %w", err))
	}
	defer func() {
		if err != nil {
			_ = stx.Rollback()
		}
	}()

	if err = fn(ctx, &familyTx{q: stx}); err != nil {
		return mapBusy(err)
	}
	if err = stx.Commit(); err != nil {
		return mapBusy(fmt.Errorf("commit: %w", err))
	}
	return nil
}

func mapBusy(err error) error {
	if isBusy(err) {
		return fmt.Errorf("%w: %v", familyrepo.ErrConflict, err)
	}
	return err
}

type familyTx struct {
	q *sql.Tx
}

const familyColumns = `id, name, created_by_user_id, version, created_at, updated_at`

func (t *familyTx) LockFamily(ctx context.Context, id domain.FamilyID) (domain.Family, error) {
	return t.GetFamily(ctx, id)
}

func (t *familyTx) GetFamily(ctx context.Context, id domain.FamilyID) (domain.Family, error) {
	return scanFamily(t.q.QueryRowContext(ctx, `SELECT `+familyColumns+` FROM families WHERE id = ?`, string(id)))
}

func (t *familyTx) CreateFamily(ctx context.Context, f domain.Family) error {
	var creator any
	if f.CreatedByUserID != nil {
		creator = string(*f.CreatedByUserID)
	}
	_, err := t.q.ExecContext(ctx, `
		INSERT INTO families (`+familyColumns+`)
		VALUES (?, ?, ?, ?, ?, ?)
	`, string(f.ID), f.Name, creator, f.Version, toMicros(f.CreatedAt), toMicros(f.UpdatedAt))
	if err != nil {
		if isPrimaryKeyViolation(err) {
			return familyrepo.ErrConflict
		}
		return err
	}
	return nil
}

func (t *familyTx) UpdateFamily(ctx context.Context, f domain.Family) (domain.Family, error) {
	res, err := t.q.ExecContext(ctx, `
		UPDATE families
		SET name = ?, version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?
	`, f.Name, toMicros(f.UpdatedAt), string(f.ID), f.Version)
	if err != nil {
		return domain.Family{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, gerr := t.GetFamily(ctx, f.ID); gerr != nil {
			return domain.Family{}, gerr
		}
		return domain.Family{}, familyrepo.ErrConflict
	}
	return t.GetFamily(ctx, f.ID)
}

func (t *familyTx) DeleteFamily(ctx context.Context, id domain.FamilyID) error {
	res, err := t.q.ExecContext(ctx, `DELETE FROM families WHERE id = ?`, string(id))
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return familyrepo.ErrNotFound
	}
	return nil
}

func (t *familyTx) ListFamiliesForUser(ctx context.Context, userID domain.UserID) ([]domain.Family, error) {
	rows, err := t.q.QueryContext(ctx, `
		SELECT f.id, f.name, f.created_by_user_id, f.version, f.created_at, f.updated_at
		FROM families f
		JOIN family_memberships m ON m.family_id = f.id
		WHERE m.user_id = ?
		ORDER BY f.name ASC, f.id ASC
	`, string(userID))
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

func (t *familyTx) GetMembership(ctx context.Context, id domain.MembershipID) (domain.Membership, error) {
	return scanMembership(t.q.QueryRowContext(ctx, `SELECT `+membershipColumns+` FROM family_memberships WHERE id = ?`, string(id)))
}

func (t *familyTx) GetMembershipByUserAndFamily(ctx context.Context, userID domain.UserID, familyID domain.FamilyID) (domain.Membership, error) {
	return scanMembership(t.q.QueryRowContext(ctx, `
		SELECT `+membershipColumns+`
		FROM family_memberships
		WHERE user_id = ? AND family_id = ?
	`, string(userID), string(familyID)))
}

func (t *familyTx) MembershipExists(ctx context.Context, userID domain.UserID, familyID domain.FamilyID) (bool, error) {
	var exists bool
	err := t.q.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM family_memberships WHERE user_id = ? AND family_id = ?)
	`, string(userID), string(familyID)).Scan(&exists)
	return exists, err
}

func (t *familyTx) ListMemberships(ctx context.Context, familyID domain.FamilyID) ([]domain.Membership, error) {
	rows, err := t.q.QueryContext(ctx, `
		SELECT `+membershipColumns+`
		FROM family_memberships
		WHERE family_id = ?
		ORDER BY joined_at ASC, id ASC
	`, string(familyID))
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

func (t *familyTx) CountMemberships(ctx context.Context, familyID domain.FamilyID) (int, error) {
	var n int
	err := t.q.QueryRowContext(ctx, `SELECT count(*) FROM family_memberships WHERE family_id = ?`, string(familyID)).Scan(&n)
	return n, err
}

func (t *familyTx) CountOwners(ctx context.Context, familyID domain.FamilyID) (int, error) {
	var n int
	err := t.q.QueryRowContext(ctx, `SELECT count(*) FROM family_memberships WHERE family_id = ? AND is_owner = 1`, string(familyID)).Scan(&n)
	return n, err
}

func (t *familyTx) CreateMembership(ctx context.Context, m domain.Membership) error {
	_, err := t.q.ExecContext(ctx, `
		INSERT INTO family_memberships (`+membershipColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, string(m.ID), string(m.UserID), string(m.FamilyID), string(m.Role), m.Owner, m.NotificationsEnabled, toMicros(m.JoinedAt))
	if err != nil {
		switch {
		case isUniqueViolation(err):
			return familyrepo.ErrAlreadyMember
		case isForeignKeyViolation(err):
			return familyrepo.ErrNotFound
		}
		return err
	}
	return nil
}

func (t *familyTx) UpdateMembership(ctx context.Context, m domain.Membership) error {
	res, err := t.q.ExecContext(ctx, `
		UPDATE family_memberships
		SET role = ?, is_owner = ?, notifications_enabled = ?
		WHERE id = ?
	`, string(m.Role), m.Owner, m.NotificationsEnabled, string(m.ID))
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return familyrepo.ErrNotFound
	}
	return nil
}

func (t *familyTx) DeleteMembership(ctx context.Context, id domain.MembershipID) error {
	res, err := t.q.ExecContext(ctx, `DELETE FROM family_memberships WHERE id = ?`, string(id))
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return familyrepo.ErrNotFound
	}
	return nil
}

func scanFamily(row scanner) (domain.Family, error) {
	var (
		f                    domain.Family
		id                   string
		creator              sql.NullString
		createdAt, updatedAt int64
	)
	if err := row.Scan(&id, &f.Name, &creator, &f.Version, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Family{}, familyrepo.ErrNotFound
		}
		return domain.Family{}, err
	}
	f.ID = domain.FamilyID(id)
	if creator.Valid {
		uid := domain.UserID(creator.String)
		f.CreatedByUserID = &uid
	}
	f.CreatedAt = fromMicros(createdAt)
	f.UpdatedAt = fromMicros(updatedAt)
	return f, nil
}

func scanMembership(row scanner) (domain.Membership, error) {
	var (
		m                        domain.Membership
		id, userID, familyID, rl string
		joinedAt                 int64
	)
	if err := row.Scan(&id, &userID, &familyID, &rl, &m.Owner, &m.NotificationsEnabled, &joinedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Membership{}, familyrepo.ErrNotFound
		}
		return domain.Membership{}, err
	}
	m.ID = domain.MembershipID(id)
	m.UserID = domain.UserID(userID)
	m.FamilyID = domain.FamilyID(familyID)
	m.Role = domain.MembershipRole(rl)
	m.JoinedAt = fromMicros(joinedAt)
	return m, nil
}

package familyrepo

import (
	"context"
	"sort"
	"sync"

	"github.com/househealth/househealth-api/internal/domain"
	"github.com/househealth/househealth-api/internal/ports/out/familyrepo"
)

// Repo is an in-memory implementation of familyrepo.Repository.
// It is safe for concurrent use.
//
// Transactions are serialized by a store-wide lock. Reads see the committed state directly;
// the first write copies it, and the copy replaces the committed state only when the
// transaction succeeds.
type Repo struct {
	mu sync.Mutex
	st *state
}

type state struct {
	families    map[domain.FamilyID]domain.Family
	memberships map[domain.MembershipID]domain.Membership

	// byFamily indexes membership IDs per family.
	byFamily map[domain.FamilyID]map[domain.MembershipID]struct{}
	// byUserFamily enforces one membership per (user, family).
	byUserFamily map[userFamily]domain.MembershipID
}

type userFamily struct {
	user   domain.UserID
	family domain.FamilyID
}

func NewRepo() *Repo {
	return &Repo{st: newState()}
}

func newState() *state {
	return &state{
		families:     make(map[domain.FamilyID]domain.Family),
		memberships:  make(map[domain.MembershipID]domain.Membership),
		byFamily:     make(map[domain.FamilyID]map[domain.MembershipID]struct{}),
		byUserFamily: make(map[userFamily]domain.MembershipID),
	}
}

func (s *state) clone() *state {
	out := newState()
	for k, v := range s.families {
		out.families[k] = cloneFamily(v)
	}
	for k, v := range s.memberships {
		out.memberships[k] = v
	}
	for fid, ids := range s.byFamily {
		cp := make(map[domain.MembershipID]struct{}, len(ids))
		for id := range ids {
			cp[id] = struct{}{}
		}
		out.byFamily[fid] = cp
	}
	for k, v := range s.byUserFamily {
		out.byUserFamily[k] = v
	}
	return out
}

func (r *Repo) InTx(ctx context.Context, fn func(ctx context.Context, tx familyrepo.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	t := &tx{base: r.st}
	if err := fn(ctx, t); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if t.work != nil {
		r.st = t.work
	}
	return nil
}

type tx struct {
	base *state
	work *state
}

func (t *tx) read() *state {
	if t.work != nil {
		return t.work
	}
	return t.base
}

// write returns the transaction's private state, copying the committed state on first use.
func (t *tx) write() *state {
	if t.work == nil {
		t.work = t.base.clone()
	}
	return t.work
}

func (t *tx) LockFamily(ctx context.Context, id domain.FamilyID) (domain.Family, error) {
	// The store-wide lock held by InTx already excludes other writers.
	return t.GetFamily(ctx, id)
}

func (t *tx) GetFamily(ctx context.Context, id domain.FamilyID) (domain.Family, error) {
	_ = ctx
	f, ok := t.read().families[id]
	if !ok {
		return domain.Family{}, familyrepo.ErrNotFound
	}
	return cloneFamily(f), nil
}

func (t *tx) CreateFamily(ctx context.Context, f domain.Family) error {
	_ = ctx
	if _, ok := t.read().families[f.ID]; ok {
		return familyrepo.ErrConflict
	}
	st := t.write()
	st.families[f.ID] = cloneFamily(f)
	st.byFamily[f.ID] = make(map[domain.MembershipID]struct{})
	return nil
}

func (t *tx) UpdateFamily(ctx context.Context, f domain.Family) (domain.Family, error) {
	_ = ctx
	existing, ok := t.read().families[f.ID]
	if !ok {
		return domain.Family{}, familyrepo.ErrNotFound
	}
	if existing.Version != f.Version {
		return domain.Family{}, familyrepo.ErrConflict
	}
	next := cloneFamily(f)
	next.Version = existing.Version + 1
	next.CreatedAt = existing.CreatedAt
	t.write().families[f.ID] = next
	return cloneFamily(next), nil
}

func (t *tx) DeleteFamily(ctx context.Context, id domain.FamilyID) error {
	_ = ctx
	if _, ok := t.read().families[id]; !ok {
		return familyrepo.ErrNotFound
	}
	st := t.write()
	for mid := range st.byFamily[id] {
		m := st.memberships[mid]
		delete(st.byUserFamily, userFamily{user: m.UserID, family: id})
		delete(st.memberships, mid)
	}
	delete(st.byFamily, id)
	delete(st.families, id)
	return nil
}

func (t *tx) ListFamiliesForUser(ctx context.Context, userID domain.UserID) ([]domain.Family, error) {
	_ = ctx
	st := t.read()
	out := make([]domain.Family, 0)
	for key := range st.byUserFamily {
		if key.user != userID {
			continue
		}
		if f, ok := st.families[key.family]; ok {
			out = append(out, cloneFamily(f))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (t *tx) GetMembership(ctx context.Context, id domain.MembershipID) (domain.Membership, error) {
	_ = ctx
	m, ok := t.read().memberships[id]
	if !ok {
		return domain.Membership{}, familyrepo.ErrNotFound
	}
	return m, nil
}

func (t *tx) GetMembershipByUserAndFamily(ctx context.Context, userID domain.UserID, familyID domain.FamilyID) (domain.Membership, error) {
	_ = ctx
	st := t.read()
	id, ok := st.byUserFamily[userFamily{user: userID, family: familyID}]
	if !ok {
		return domain.Membership{}, familyrepo.ErrNotFound
	}
	return st.memberships[id], nil
}

func (t *tx) MembershipExists(ctx context.Context, userID domain.UserID, familyID domain.FamilyID) (bool, error) {
	_ = ctx
	_, ok := t.read().byUserFamily[userFamily{user: userID, family: familyID}]
	return ok, nil
}

func (t *tx) ListMemberships(ctx context.Context, familyID domain.FamilyID) ([]domain.Membership, error) {
	_ = ctx
	st := t.read()
	ids := st.byFamily[familyID]
	out := make([]domain.Membership, 0, len(ids))
	for id := range ids {
		out = append(out, st.memberships[id])
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].JoinedAt.Equal(out[j].JoinedAt) {
			return out[i].JoinedAt.Before(out[j].JoinedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (t *tx) CountMemberships(ctx context.Context, familyID domain.FamilyID) (int, error) {
	_ = ctx
	return len(t.read().byFamily[familyID]), nil
}

func (t *tx) CountOwners(ctx context.Context, familyID domain.FamilyID) (int, error) {
	_ = ctx
	st := t.read()
	n := 0
	for id := range st.byFamily[familyID] {
		if st.memberships[id].Owner {
			n++
		}
	}
	return n, nil
}

func (t *tx) CreateMembership(ctx context.Context, m domain.Membership) error {
	_ = ctx
	cur := t.read()
	if _, ok := cur.byFamily[m.FamilyID]; !ok {
		return familyrepo.ErrNotFound
	}
	key := userFamily{user: m.UserID, family: m.FamilyID}
	if _, ok := cur.byUserFamily[key]; ok {
		return familyrepo.ErrAlreadyMember
	}
	if _, ok := cur.memberships[m.ID]; ok {
		return familyrepo.ErrConflict
	}
	st := t.write()
	st.memberships[m.ID] = m
	st.byUserFamily[key] = m.ID
	st.byFamily[m.FamilyID][m.ID] = struct{}{}
	return nil
}

func (t *tx) UpdateMembership(ctx context.Context, m domain.Membership) error {
	_ = ctx
	existing, ok := t.read().memberships[m.ID]
	if !ok {
		return familyrepo.ErrNotFound
	}
	// Identity fields are immutable.
	m.UserID = existing.UserID
	m.FamilyID = existing.FamilyID
	m.JoinedAt = existing.JoinedAt
	t.write().memberships[m.ID] = m
	return nil
}

func (t *tx) DeleteMembership(ctx context.Context, id domain.MembershipID) error {
	_ = ctx
	m, ok := t.read().memberships[id]
	if !ok {
		return familyrepo.ErrNotFound
	}
	st := t.write()
	delete(st.byUserFamily, userFamily{user: m.UserID, family: m.FamilyID})
	delete(st.byFamily[m.FamilyID], id)
	delete(st.memberships, id)
	return nil
}

func cloneFamily(f domain.Family) domain.Family {
	if f.CreatedByUserID != nil {
		v := *f.CreatedByUserID
		f.CreatedByUserID = &v
	}
	return f
}

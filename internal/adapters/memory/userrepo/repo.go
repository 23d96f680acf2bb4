package userrepo

import (
	"context"
	"sync"

	"github.com/househealth/househealth-api/internal/domain"
	"github.com/househealth/househealth-api/internal/ports/out/userrepo"
)

// Repo is an in-memory implementation of userrepo.Repository.
// It is safe for concurrent use.
type Repo struct {
	mu sync.RWMutex

	byID      map[domain.UserID]domain.User
	idByEmail map[string]domain.UserID
}

func NewRepo() *Repo {
	return &Repo{
		byID:      make(map[domain.UserID]domain.User),
		idByEmail: make(map[string]domain.UserID),
	}
}

func (r *Repo) Create(ctx context.Context, u domain.User) error {
	_ = ctx
	if u.ID == "" {
		return userrepo.ErrAlreadyExists
	}
	key := domain.NormalizeEmail(u.Email)

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[u.ID]; ok {
		return userrepo.ErrAlreadyExists
	}
	if _, ok := r.idByEmail[key]; ok {
		return userrepo.ErrEmailTaken
	}
	r.byID[u.ID] = u
	r.idByEmail[key] = u.ID
	return nil
}

func (r *Repo) Update(ctx context.Context, u domain.User) error {
	_ = ctx
	key := domain.NormalizeEmail(u.Email)

	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.byID[u.ID]
	if !ok {
		return userrepo.ErrNotFound
	}
	if owner, ok := r.idByEmail[key]; ok && owner != u.ID {
		return userrepo.ErrEmailTaken
	}
	delete(r.idByEmail, domain.NormalizeEmail(existing.Email))
	r.byID[u.ID] = u
	r.idByEmail[key] = u.ID
	return nil
}

func (r *Repo) GetByID(ctx context.Context, id domain.UserID) (domain.User, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.byID[id]
	if !ok {
		return domain.User{}, userrepo.ErrNotFound
	}
	return u, nil
}

func (r *Repo) GetByEmail(ctx context.Context, email string) (domain.User, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.idByEmail[domain.NormalizeEmail(email)]
	if !ok {
		return domain.User{}, userrepo.ErrNotFound
	}
	return r.byID[id], nil
}

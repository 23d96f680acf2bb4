package reminderrepo

import (
	"context"
	"sort"
	"sync"

	"github.com/househealth/househealth-api/internal/domain"
	"github.com/househealth/househealth-api/internal/ports/out/reminderrepo"
)

// Repo is an in-memory implementation of reminderrepo.Repository.
// It is safe for concurrent use.
type Repo struct {
	mu sync.RWMutex

	byID  map[domain.ReminderID]domain.ReminderSettings
	byKey map[reminderKey]domain.ReminderID
}

type reminderKey struct {
	user   domain.UserID
	metric domain.MetricType
}

func NewRepo() *Repo {
	return &Repo{
		byID:  make(map[domain.ReminderID]domain.ReminderSettings),
		byKey: make(map[reminderKey]domain.ReminderID),
	}
}

func (r *Repo) Upsert(ctx context.Context, s domain.ReminderSettings) (domain.ReminderSettings, error) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()

	key := reminderKey{user: s.UserID, metric: s.MetricType}
	if id, ok := r.byKey[key]; ok {
		existing := r.byID[id]
		s.ID = existing.ID
		s.CreatedAt = existing.CreatedAt
		if s.LastTriggeredAt == nil {
			s.LastTriggeredAt = existing.LastTriggeredAt
		}
	}
	s = cloneSettings(s)
	r.byID[s.ID] = s
	r.byKey[key] = s.ID
	return cloneSettings(s), nil
}

func (r *Repo) GetByID(ctx context.Context, id domain.ReminderID) (domain.ReminderSettings, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.byID[id]
	if !ok {
		return domain.ReminderSettings{}, reminderrepo.ErrNotFound
	}
	return cloneSettings(s), nil
}

func (r *Repo) GetByUserAndMetric(ctx context.Context, userID domain.UserID, metric domain.MetricType) (domain.ReminderSettings, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byKey[reminderKey{user: userID, metric: metric}]
	if !ok {
		return domain.ReminderSettings{}, reminderrepo.ErrNotFound
	}
	return cloneSettings(r.byID[id]), nil
}

func (r *Repo) ListByUser(ctx context.Context, userID domain.UserID) ([]domain.ReminderSettings, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.ReminderSettings, 0)
	for _, s := range r.byID {
		if s.UserID == userID {
			out = append(out, cloneSettings(s))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MetricType < out[j].MetricType })
	return out, nil
}

func (r *Repo) Update(ctx context.Context, s domain.ReminderSettings) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.byID[s.ID]
	if !ok {
		return reminderrepo.ErrNotFound
	}
	s.UserID = existing.UserID
	s.MetricType = existing.MetricType
	s.CreatedAt = existing.CreatedAt
	r.byID[s.ID] = cloneSettings(s)
	return nil
}

func cloneSettings(s domain.ReminderSettings) domain.ReminderSettings {
	if s.FrequencyInterval != nil {
		v := *s.FrequencyInterval
		s.FrequencyInterval = &v
	}
	if s.LastTriggeredAt != nil {
		v := *s.LastTriggeredAt
		s.LastTriggeredAt = &v
	}
	return s
}

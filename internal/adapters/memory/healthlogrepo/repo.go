package healthlogrepo

import (
	"context"
	"sort"
	"sync"

	"github.com/househealth/househealth-api/internal/domain"
	"github.com/househealth/househealth-api/internal/ports/out/healthlogrepo"
)

// Repo is an in-memory implementation of healthlogrepo.Repository.
// It is safe for concurrent use.
type Repo struct {
	mu   sync.RWMutex
	byID map[domain.HealthLogID]domain.HealthLog
}

func NewRepo() *Repo {
	return &Repo{byID: make(map[domain.HealthLogID]domain.HealthLog)}
}

func (r *Repo) Create(ctx context.Context, l domain.HealthLog) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[l.ID] = cloneLog(l)
	return nil
}

func (r *Repo) GetByID(ctx context.Context, id domain.HealthLogID) (domain.HealthLog, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	l, ok := r.byID[id]
	if !ok {
		return domain.HealthLog{}, healthlogrepo.ErrNotFound
	}
	return cloneLog(l), nil
}

func (r *Repo) ListByUser(ctx context.Context, userID domain.UserID, metric *domain.MetricType, limit int) ([]domain.HealthLog, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.HealthLog, 0)
	for _, l := range r.byID {
		if l.UserID != userID {
			continue
		}
		if metric != nil && l.MetricType != *metric {
			continue
		}
		out = append(out, cloneLog(l))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].RecordedAt.Equal(out[j].RecordedAt) {
			return out[i].RecordedAt.After(out[j].RecordedAt)
		}
		return out[i].ID > out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func cloneLog(l domain.HealthLog) domain.HealthLog {
	l.Systolic = cloneIntPtr(l.Systolic)
	l.Diastolic = cloneIntPtr(l.Diastolic)
	if l.SugarType != nil {
		v := *l.SugarType
		l.SugarType = &v
	}
	if l.SugarValue != nil {
		v := *l.SugarValue
		l.SugarValue = &v
	}
	if l.Notes != nil {
		v := *l.Notes
		l.Notes = &v
	}
	return l
}

func cloneIntPtr(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

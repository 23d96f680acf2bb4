package healthlogrepo

import (
	"context"
	"errors"

	"github.com/househealth/househealth-api/internal/domain"
)

var (
	// ErrNotFound indicates the requested health log does not exist.
	ErrNotFound = errors.New("health log not found")
)

// Repository persists health log entries.
//
// ListByUser returns entries ordered by RecordedAt descending, then ID descending.
// A nil metric lists every metric type; limit <= 0 means no limit.
type Repository interface {
	Create(ctx context.Context, l domain.HealthLog) error
	GetByID(ctx context.Context, id domain.HealthLogID) (domain.HealthLog, error)
	ListByUser(ctx context.Context, userID domain.UserID, metric *domain.MetricType, limit int) ([]domain.HealthLog, error)
}

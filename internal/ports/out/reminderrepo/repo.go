package reminderrepo

import (
	"context"
	"errors"

	"github.com/househealth/househealth-api/internal/domain"
)

var (
	// ErrNotFound indicates the requested reminder settings do not exist.
	ErrNotFound = errors.New("reminder settings not found")
)

// Repository persists reminder settings, unique per (user, metric type).
//
// ListByUser returns settings ordered by MetricType ascending.
type Repository interface {
	// Upsert inserts s, or replaces the existing settings for (s.UserID, s.MetricType).
	// On replace the stored ID and CreatedAt are kept; the stored record is returned.
	Upsert(ctx context.Context, s domain.ReminderSettings) (domain.ReminderSettings, error)
	GetByID(ctx context.Context, id domain.ReminderID) (domain.ReminderSettings, error)
	GetByUserAndMetric(ctx context.Context, userID domain.UserID, metric domain.MetricType) (domain.ReminderSettings, error)
	ListByUser(ctx context.Context, userID domain.UserID) ([]domain.ReminderSettings, error)
	Update(ctx context.Context, s domain.ReminderSettings) error
}

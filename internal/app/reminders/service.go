package reminders

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/househealth/househealth-api/internal/domain"
	clockport "github.com/househealth/househealth-api/internal/ports/out/clock"
	"github.com/househealth/househealth-api/internal/ports/out/reminderrepo"
)

// UpsertInput replaces the reminder settings for one metric type.
type UpsertInput struct {
	FrequencyType        domain.FrequencyType
	FrequencyInterval    *int
	NotificationsEnabled bool
}

// Service stores reminder preferences. Deciding when a reminder is due is left to callers.
type Service struct {
	repo reminderrepo.Repository
	clk  clockport.Clock

	newReminderID func() domain.ReminderID
}

func NewService(repo reminderrepo.Repository, clk clockport.Clock) *Service {
	return &Service{
		repo: repo,
		clk:  clk,
		newReminderID: func() domain.ReminderID {
			return domain.ReminderID(uuid.NewString())
		},
	}
}

func (s *Service) Upsert(ctx context.Context, caller domain.UserID, metric domain.MetricType, in UpsertInput) (domain.ReminderSettings, error) {
	if !metric.Valid() {
		return domain.ReminderSettings{}, validation("invalid metricType", map[string]any{"metricType": "must be one of BP, SUGAR"})
	}
	if !in.FrequencyType.Valid() {
		return domain.ReminderSettings{}, validation("invalid frequencyType", map[string]any{"frequencyType": "must be one of DAILY, WEEKLY, MONTHLY"})
	}
	var interval *int
	if in.FrequencyInterval != nil {
		if *in.FrequencyInterval <= 0 {
			return domain.ReminderSettings{}, validation("invalid frequencyInterval", map[string]any{"frequencyInterval": "must be positive"})
		}
		v := *in.FrequencyInterval
		interval = &v
	}

	now := s.clk.Now()
	return s.repo.Upsert(ctx, domain.ReminderSettings{
		ID:                   s.newReminderID(),
		UserID:               caller,
		MetricType:           metric,
		FrequencyType:        in.FrequencyType,
		FrequencyInterval:    interval,
		NotificationsEnabled: in.NotificationsEnabled,
		CreatedAt:            now,
		UpdatedAt:            now,
	})
}

func (s *Service) Get(ctx context.Context, caller domain.UserID, metric domain.MetricType) (domain.ReminderSettings, error) {
	if !metric.Valid() {
		return domain.ReminderSettings{}, validation("invalid metricType", map[string]any{"metricType": "must be one of BP, SUGAR"})
	}
	r, err := s.repo.GetByUserAndMetric(ctx, caller, metric)
	if err != nil {
		if errors.Is(err, reminderrepo.ErrNotFound) {
			return domain.ReminderSettings{}, notFound()
		}
		return domain.ReminderSettings{}, err
	}
	return r, nil
}

func (s *Service) ListMine(ctx context.Context, caller domain.UserID) ([]domain.ReminderSettings, error) {
	return s.repo.ListByUser(ctx, caller)
}

// MarkTriggered records that a reminder fired now. Reminders of other users are reported as missing.
func (s *Service) MarkTriggered(ctx context.Context, caller domain.UserID, id domain.ReminderID) (domain.ReminderSettings, error) {
	r, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, reminderrepo.ErrNotFound) {
			return domain.ReminderSettings{}, notFound()
		}
		return domain.ReminderSettings{}, err
	}
	if r.UserID != caller {
		return domain.ReminderSettings{}, notFound()
	}
	now := s.clk.Now()
	r.LastTriggeredAt = &now
	r.UpdatedAt = now
	if err := s.repo.Update(ctx, r); err != nil {
		return domain.ReminderSettings{}, err
	}
	return r, nil
}

func validation(msg string, details map[string]any) *Error {
	return &Error{Status: 422, Code: "VALIDATION_ERROR", Message: msg, Details: details}
}

func notFound() *Error {
	return &Error{Status: 404, Code: "REMINDER_NOT_FOUND", Message: "reminder settings not found"}
}

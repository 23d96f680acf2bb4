package healthlogs

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/househealth/househealth-api/internal/domain"
	clockport "github.com/househealth/househealth-api/internal/ports/out/clock"
	"github.com/househealth/househealth-api/internal/ports/out/healthlogrepo"
)

const (
	defaultListLimit = 100
	maxListLimit     = 500
	maxNotesLength   = 1000
)

type RecordInput struct {
	MetricType domain.MetricType

	Systolic   *int
	Diastolic  *int
	SugarType  *domain.SugarType
	SugarValue *float64

	Notes *string
	// RecordedAt defaults to now; it may not be in the future.
	RecordedAt *time.Time
}

type Service struct {
	repo healthlogrepo.Repository
	clk  clockport.Clock

	newLogID func() domain.HealthLogID
}

func NewService(repo healthlogrepo.Repository, clk clockport.Clock) *Service {
	return &Service{
		repo: repo,
		clk:  clk,
		newLogID: func() domain.HealthLogID {
			return domain.HealthLogID(uuid.NewString())
		},
	}
}

func (s *Service) Record(ctx context.Context, caller domain.UserID, in RecordInput) (domain.HealthLog, error) {
	now := s.clk.Now()
	l := domain.HealthLog{
		ID:         s.newLogID(),
		UserID:     caller,
		MetricType: in.MetricType,
		RecordedAt: now,
		CreatedAt:  now,
	}

	switch in.MetricType {
	case domain.MetricTypeBloodPressure:
		if in.SugarType != nil || in.SugarValue != nil {
			return domain.HealthLog{}, validation("invalid reading", map[string]any{"sugarType": "not allowed for BP", "sugarValue": "not allowed for BP"})
		}
		if in.Systolic == nil || in.Diastolic == nil {
			return domain.HealthLog{}, validation("invalid reading", map[string]any{"systolic": "required", "diastolic": "required"})
		}
		if *in.Systolic <= 0 || *in.Diastolic <= 0 {
			return domain.HealthLog{}, validation("invalid reading", map[string]any{"systolic": "must be positive", "diastolic": "must be positive"})
		}
		if *in.Systolic <= *in.Diastolic {
			return domain.HealthLog{}, validation("invalid reading", map[string]any{"systolic": "must be greater than diastolic"})
		}
		sys, dia := *in.Systolic, *in.Diastolic
		l.Systolic, l.Diastolic = &sys, &dia
	case domain.MetricTypeSugar:
		if in.Systolic != nil || in.Diastolic != nil {
			return domain.HealthLog{}, validation("invalid reading", map[string]any{"systolic": "not allowed for SUGAR", "diastolic": "not allowed for SUGAR"})
		}
		if in.SugarType == nil || !in.SugarType.Valid() {
			return domain.HealthLog{}, validation("invalid reading", map[string]any{"sugarType": "must be one of FASTING, POST_MEAL, RANDOM"})
		}
		if in.SugarValue == nil || *in.SugarValue <= 0 || math.IsNaN(*in.SugarValue) || math.IsInf(*in.SugarValue, 0) {
			return domain.HealthLog{}, validation("invalid reading", map[string]any{"sugarValue": "must be a positive number"})
		}
		st, sv := *in.SugarType, *in.SugarValue
		l.SugarType, l.SugarValue = &st, &sv
	default:
		return domain.HealthLog{}, validation("invalid metricType", map[string]any{"metricType": "must be one of BP, SUGAR"})
	}

	if in.Notes != nil {
		notes := strings.TrimSpace(*in.Notes)
		if len([]rune(notes)) > maxNotesLength {
			return domain.HealthLog{}, validation("invalid notes", map[string]any{"notes": "must be at most 1000 characters"})
		}
		if notes != "" {
			l.Notes = &notes
		}
	}
	if in.RecordedAt != nil {
		at := in.RecordedAt.UTC()
		if at.After(now) {
			return domain.HealthLog{}, validation("invalid recordedAt", map[string]any{"recordedAt": "must not be in the future"})
		}
		l.RecordedAt = at
	}

	if err := s.repo.Create(ctx, l); err != nil {
		return domain.HealthLog{}, err
	}
	return l, nil
}

// Get returns a log owned by the caller. Logs of other users are reported as missing.
func (s *Service) Get(ctx context.Context, caller domain.UserID, id domain.HealthLogID) (domain.HealthLog, error) {
	l, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, healthlogrepo.ErrNotFound) {
			return domain.HealthLog{}, notFound()
		}
		return domain.HealthLog{}, err
	}
	if l.UserID != caller {
		return domain.HealthLog{}, notFound()
	}
	return l, nil
}

// ListMine returns the caller's logs newest first.
func (s *Service) ListMine(ctx context.Context, caller domain.UserID, metric *domain.MetricType, limit int) ([]domain.HealthLog, error) {
	if metric != nil && !metric.Valid() {
		return nil, validation("invalid metricType", map[string]any{"metricType": "must be one of BP, SUGAR"})
	}
	switch {
	case limit <= 0:
		limit = defaultListLimit
	case limit > maxListLimit:
		limit = maxListLimit
	}
	return s.repo.ListByUser(ctx, caller, metric, limit)
}

func validation(msg string, details map[string]any) *Error {
	return &Error{Status: 422, Code: "VALIDATION_ERROR", Message: msg, Details: details}
}

func notFound() *Error {
	return &Error{Status: 404, Code: "HEALTH_LOG_NOT_FOUND", Message: "health log not found"}
}

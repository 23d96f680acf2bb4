package families

import (
	"context"
	"log/slog"

	"github.com/househealth/househealth-api/internal/domain"
)

// UserDirectory resolves users referenced by memberships.
// A missing user is reported with an error wrapping userrepo.ErrNotFound.
type UserDirectory interface {
	GetUserByID(ctx context.Context, id domain.UserID) (domain.User, error)
}

// Metrics receives one observation per completed operation.
type Metrics interface {
	ObserveMembershipOperation(operation, outcome string)
}

type noopMetrics struct{}

func (noopMetrics) ObserveMembershipOperation(string, string) {}

// MembershipSettingsInput is a partial update of a membership. Nil fields are left unchanged.
type MembershipSettingsInput struct {
	Role                 *domain.MembershipRole
	NotificationsEnabled *bool
}

func loggerOrDefault(l *slog.Logger) *slog.Logger {
	if l == nil {
		return slog.Default()
	}
	return l
}

func metricsOrNoop(m Metrics) Metrics {
	if m == nil {
		return noopMetrics{}
	}
	return m
}

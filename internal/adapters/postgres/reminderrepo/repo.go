package reminderrepo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/househealth/househealth-api/internal/domain"
	"github.com/househealth/househealth-api/internal/ports/out/reminderrepo"
)

// Repo is a Postgres implementation of reminderrepo.Repository.
type Repo struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

const settingsColumns = `id, user_id, metric_type, frequency_type, frequency_interval, notifications_enabled, last_triggered_at, created_at, updated_at`

func (r *Repo) Upsert(ctx context.Context, s domain.ReminderSettings) (domain.ReminderSettings, error) {
	if r.pool == nil {
		return domain.ReminderSettings{}, errors.New("nil postgres pool")
	}
	id, err := uuid.Parse(string(s.ID))
	if err != nil {
		return domain.ReminderSettings{}, fmt.Errorf("invalid reminder id: %w", err)
	}
	uid, err := uuid.Parse(string(s.UserID))
	if err != nil {
		return domain.ReminderSettings{}, fmt.Errorf("invalid user id: %w", err)
	}
	return scanSettings(r.pool.QueryRow(ctx, `
		INSERT INTO reminder_settings (`+settingsColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT ON CONSTRAINT reminder_settings_user_metric_unique
		DO UPDATE SET
			frequency_type = EXCLUDED.frequency_type,
			frequency_interval = EXCLUDED.frequency_interval,
			notifications_enabled = EXCLUDED.notifications_enabled,
			last_triggered_at = COALESCE(EXCLUDED.last_triggered_at, reminder_settings.last_triggered_at),
			updated_at = EXCLUDED.updated_at
		RETURNING `+settingsColumns,
		id, uid, string(s.MetricType), string(s.FrequencyType), s.FrequencyInterval, s.NotificationsEnabled,
		utcPtr(s.LastTriggeredAt), s.CreatedAt.UTC(), s.UpdatedAt.UTC(),
	))
}

func (r *Repo) GetByID(ctx context.Context, id domain.ReminderID) (domain.ReminderSettings, error) {
	if r.pool == nil {
		return domain.ReminderSettings{}, errors.New("nil postgres pool")
	}
	rid, err := uuid.Parse(string(id))
	if err != nil {
		return domain.ReminderSettings{}, reminderrepo.ErrNotFound
	}
	return scanSettings(r.pool.QueryRow(ctx, `SELECT `+settingsColumns+` FROM reminder_settings WHERE id = $1`, rid))
}

func (r *Repo) GetByUserAndMetric(ctx context.Context, userID domain.UserID, metric domain.MetricType) (domain.ReminderSettings, error) {
	if r.pool == nil {
		return domain.ReminderSettings{}, errors.New("nil postgres pool")
	}
	uid, err := uuid.Parse(string(userID))
	if err != nil {
		return domain.ReminderSettings{}, reminderrepo.ErrNotFound
	}
	return scanSettings(r.pool.QueryRow(ctx, `
		SELECT `+settingsColumns+`
		FROM reminder_settings
		WHERE user_id = $1 AND metric_type = $2
	`, uid, string(metric)))
}

func (r *Repo) ListByUser(ctx context.Context, userID domain.UserID) ([]domain.ReminderSettings, error) {
	if r.pool == nil {
		return nil, errors.New("nil postgres pool")
	}
	uid, err := uuid.Parse(string(userID))
	if err != nil {
		return []domain.ReminderSettings{}, nil
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+settingsColumns+`
		FROM reminder_settings
		WHERE user_id = $1
		ORDER BY metric_type ASC
	`, uid)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.ReminderSettings, 0)
	for rows.Next() {
		s, err := scanSettings(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *Repo) Update(ctx context.Context, s domain.ReminderSettings) error {
	if r.pool == nil {
		return errors.New("nil postgres pool")
	}
	id, err := uuid.Parse(string(s.ID))
	if err != nil {
		return reminderrepo.ErrNotFound
	}
	tag, err := r.pool.Exec(ctx, `
		UPDATE reminder_settings
		SET frequency_type = $2,
		    frequency_interval = $3,
		    notifications_enabled = $4,
		    last_triggered_at = $5,
		    updated_at = $6
		WHERE id = $1
	`, id, string(s.FrequencyType), s.FrequencyInterval, s.NotificationsEnabled, utcPtr(s.LastTriggeredAt), s.UpdatedAt.UTC())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return reminderrepo.ErrNotFound
	}
	return nil
}

func scanSettings(row pgx.Row) (domain.ReminderSettings, error) {
	var (
		id, userID   uuid.UUID
		metric, freq string
		s            domain.ReminderSettings
	)
	if err := row.Scan(&id, &userID, &metric, &freq, &s.FrequencyInterval, &s.NotificationsEnabled, &s.LastTriggeredAt, &s.CreatedAt, &s.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ReminderSettings{}, reminderrepo.ErrNotFound
		}
		return domain.ReminderSettings{}, err
	}
	s.ID = domain.ReminderID(id.String())
	s.UserID = domain.UserID(userID.String())
	s.MetricType = domain.MetricType(metric)
	s.FrequencyType = domain.FrequencyType(freq)
	s.LastTriggeredAt = utcPtr(s.LastTriggeredAt)
	s.CreatedAt = s.CreatedAt.UTC()
	s.UpdatedAt = s.UpdatedAt.UTC()
	return s, nil
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC()
	return &v
}

package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"github.com/househealth/househealth-api/internal/domain"
	"github.com/househealth/househealth-api/internal/ports/out/reminderrepo"
)

var _ reminderrepo.Repository = (*ReminderRepo)(nil)

// ReminderRepo is a SQLite implementation of reminderrepo.Repository.
type ReminderRepo struct {
	db *sql.DB
}

func NewReminderRepo(db *sql.DB) *ReminderRepo {
	return &ReminderRepo{db: db}
}

const settingsColumns = `id, user_id, metric_type, frequency_type, frequency_interval, notifications_enabled, last_triggered_at, created_at, updated_at`

func (r *ReminderRepo) Upsert(ctx context.Context, s domain.ReminderSettings) (domain.ReminderSettings, error) {
	return scanSettings(r.db.QueryRowContext(ctx, `
		INSERT INTO reminder_settings (`+settingsColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, metric_type)
		DO UPDATE SET
			frequency_type = excluded.frequency_type,
			frequency_interval = excluded.frequency_interval,
			notifications_enabled = excluded.notifications_enabled,
			last_triggered_at = COALESCE(excluded.last_triggered_at, reminder_settings.last_triggered_at),
			updated_at = excluded.updated_at
		RETURNING `+settingsColumns,
		string(s.ID), string(s.UserID), string(s.MetricType), string(s.FrequencyType), nullInt(s.FrequencyInterval),
		s.NotificationsEnabled, toMicrosPtr(s.LastTriggeredAt), toMicros(s.CreatedAt), toMicros(s.UpdatedAt),
	))
}

func (r *ReminderRepo) GetByID(ctx context.Context, id domain.ReminderID) (domain.ReminderSettings, error) {
	return scanSettings(r.db.QueryRowContext(ctx, `SELECT `+settingsColumns+` FROM reminder_settings WHERE id = ?`, string(id)))
}

func (r *ReminderRepo) GetByUserAndMetric(ctx context.Context, userID domain.UserID, metric domain.MetricType) (domain.ReminderSettings, error) {
	return scanSettings(r.db.QueryRowContext(ctx, `
		SELECT `+settingsColumns+`
		FROM reminder_settings
		WHERE user_id = ? AND metric_type = ?
	`, string(userID), string(metric)))
}

func (r *ReminderRepo) ListByUser(ctx context.Context, userID domain.UserID) ([]domain.ReminderSettings, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+settingsColumns+`
		FROM reminder_settings
		WHERE user_id = ?
		ORDER BY metric_type ASC
	`, string(userID))
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

func (r *ReminderRepo) Update(ctx context.Context, s domain.ReminderSettings) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE reminder_settings
		SET frequency_type = ?, frequency_interval = ?, notifications_enabled = ?, last_triggered_at = ?, updated_at = ?
		WHERE id = ?
	`, string(s.FrequencyType), nullInt(s.FrequencyInterval), s.NotificationsEnabled, toMicrosPtr(s.LastTriggeredAt), toMicros(s.UpdatedAt), string(s.ID))
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return reminderrepo.ErrNotFound
	}
	return nil
}

func scanSettings(row scanner) (domain.ReminderSettings, error) {
	var (
		s                        domain.ReminderSettings
		id, userID, metric, freq string
		interval, lastTriggered  sql.NullInt64
		createdAt, updatedAt     int64
	)
	if err := row.Scan(&id, &userID, &metric, &freq, &interval, &s.NotificationsEnabled, &lastTriggered, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ReminderSettings{}, reminderrepo.ErrNotFound
		}
		return domain.ReminderSettings{}, err
	}
	s.ID = domain.ReminderID(id)
	s.UserID = domain.UserID(userID)
	s.MetricType = domain.MetricType(metric)
	s.FrequencyType = domain.FrequencyType(freq)
	s.FrequencyInterval = intPtr(interval)
	s.LastTriggeredAt = fromMicrosPtr(lastTriggered)
	s.CreatedAt = fromMicros(createdAt)
	s.UpdatedAt = fromMicros(updatedAt)
	return s, nil
}

package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"github.com/househealth/househealth-api/internal/domain"
	"github.com/househealth/househealth-api/internal/ports/out/healthlogrepo"
)

var _ healthlogrepo.Repository = (*HealthLogRepo)(nil)

// HealthLogRepo is a SQLite implementation of healthlogrepo.Repository.
type HealthLogRepo struct {
	db *sql.DB
}

func NewHealthLogRepo(db *sql.DB) *HealthLogRepo {
	return &HealthLogRepo{db: db}
}

const logColumns = `id, user_id, metric_type, systolic, diastolic, sugar_type, sugar_value, notes, recorded_at, created_at`

func (r *HealthLogRepo) Create(ctx context.Context, l domain.HealthLog) error {
	var sugarType, sugarValue, notes any
	if l.SugarType != nil {
		sugarType = string(*l.SugarType)
	}
	if l.SugarValue != nil {
		sugarValue = *l.SugarValue
	}
	if l.Notes != nil {
		notes = *l.Notes
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO health_logs (`+logColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, string(l.ID), string(l.UserID), string(l.MetricType), nullInt(l.Systolic), nullInt(l.Diastolic),
		sugarType, sugarValue, notes, toMicros(l.RecordedAt), toMicros(l.CreatedAt))
	return err
}

func (r *HealthLogRepo) GetByID(ctx context.Context, id domain.HealthLogID) (domain.HealthLog, error) {
	return scanLog(r.db.QueryRowContext(ctx, `SELECT `+logColumns+` FROM health_logs WHERE id = ?`, string(id)))
}

func (r *HealthLogRepo) ListByUser(ctx context.Context, userID domain.UserID, metric *domain.MetricType, limit int) ([]domain.HealthLog, error) {
	var metricArg any
	if metric != nil {
		metricArg = string(*metric)
	}
	// SQLite treats a negative LIMIT as unbounded.
	limitArg := -1
	if limit > 0 {
		limitArg = limit
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+logColumns+`
		FROM health_logs
		WHERE user_id = ?1
		  AND (?2 IS NULL OR metric_type = ?2)
		ORDER BY recorded_at DESC, id DESC
		LIMIT ?3
	`, string(userID), metricArg, limitArg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.HealthLog, 0)
	for rows.Next() {
		l, err := scanLog(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func scanLog(row scanner) (domain.HealthLog, error) {
	var (
		l                     domain.HealthLog
		id, userID, metric    string
		systolic, diastolic   sql.NullInt64
		sugarType, notes      sql.NullString
		sugarValue            sql.NullFloat64
		recordedAt, createdAt int64
	)
	if err := row.Scan(&id, &userID, &metric, &systolic, &diastolic, &sugarType, &sugarValue, &notes, &recordedAt, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.HealthLog{}, healthlogrepo.ErrNotFound
		}
		return domain.HealthLog{}, err
	}
	l.ID = domain.HealthLogID(id)
	l.UserID = domain.UserID(userID)
	l.MetricType = domain.MetricType(metric)
	l.Systolic = intPtr(systolic)
	l.Diastolic = intPtr(diastolic)
	if sugarType.Valid {
		st := domain.SugarType(sugarType.String)
		l.SugarType = &st
	}
	if sugarValue.Valid {
		v := sugarValue.Float64
		l.SugarValue = &v
	}
	if notes.Valid {
		n := notes.String
		l.Notes = &n
	}
	l.RecordedAt = fromMicros(recordedAt)
	l.CreatedAt = fromMicros(createdAt)
	return l, nil
}

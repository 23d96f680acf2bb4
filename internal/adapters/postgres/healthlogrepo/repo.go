package healthlogrepo

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/househealth/househealth-api/internal/domain"
	"github.com/househealth/househealth-api/internal/ports/out/healthlogrepo"
)

// Repo is a Postgres implementation of healthlogrepo.Repository.
type Repo struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

const logColumns = `id, user_id, metric_type, systolic, diastolic, sugar_type, sugar_value, notes, recorded_at, created_at`

func (r *Repo) Create(ctx context.Context, l domain.HealthLog) error {
	if r.pool == nil {
		return errors.New("nil postgres pool")
	}
	id, err := uuid.Parse(string(l.ID))
	if err != nil {
		return fmt.Errorf("invalid health log id: %w", err)
	}
	uid, err := uuid.Parse(string(l.UserID))
	if err != nil {
		return fmt.Errorf("invalid user id: %w", err)
	}
	var sugarType *string
	if l.SugarType != nil {
		s := string(*l.SugarType)
		sugarType = &s
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO health_logs (`+logColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, id, uid, string(l.MetricType), l.Systolic, l.Diastolic, sugarType, l.SugarValue, l.Notes, l.RecordedAt.UTC(), l.CreatedAt.UTC())
	return err
}

func (r *Repo) GetByID(ctx context.Context, id domain.HealthLogID) (domain.HealthLog, error) {
	if r.pool == nil {
		return domain.HealthLog{}, errors.New("nil postgres pool")
	}
	lid, err := uuid.Parse(string(id))
	if err != nil {
		return domain.HealthLog{}, healthlogrepo.ErrNotFound
	}
	return scanLog(r.pool.QueryRow(ctx, `SELECT `+logColumns+` FROM health_logs WHERE id = $1`, lid))
}

func (r *Repo) ListByUser(ctx context.Context, userID domain.UserID, metric *domain.MetricType, limit int) ([]domain.HealthLog, error) {
	if r.pool == nil {
		return nil, errors.New("nil postgres pool")
	}
	uid, err := uuid.Parse(string(userID))
	if err != nil {
		return []domain.HealthLog{}, nil
	}
	var metricArg *string
	if metric != nil {
		m := string(*metric)
		metricArg = &m
	}
	var limitArg *int
	if limit > 0 {
		limitArg = &limit
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+logColumns+`
		FROM health_logs
		WHERE user_id = $1
		  AND ($2::text IS NULL OR metric_type = $2)
		ORDER BY recorded_at DESC, id DESC
		LIMIT $3
	`, uid, metricArg, limitArg)
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

func scanLog(row pgx.Row) (domain.HealthLog, error) {
	var (
		id, userID uuid.UUID
		metric     string
		sugarType  *string
		l          domain.HealthLog
	)
	if err := row.Scan(&id, &userID, &metric, &l.Systolic, &l.Diastolic, &sugarType, &l.SugarValue, &l.Notes, &l.RecordedAt, &l.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.HealthLog{}, healthlogrepo.ErrNotFound
		}
		return domain.HealthLog{}, err
	}
	l.ID = domain.HealthLogID(id.String())
	l.UserID = domain.UserID(userID.String())
	l.MetricType = domain.MetricType(metric)
	if sugarType != nil {
		st := domain.SugarType(*sugarType)
		l.SugarType = &st
	}
	l.RecordedAt = l.RecordedAt.UTC()
	l.CreatedAt = l.CreatedAt.UTC()
	return l, nil
}

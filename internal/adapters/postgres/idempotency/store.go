package idempotency

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/househealth/househealth-api/internal/ports/out/idempotency"
)

var (
	_ idempotency.Store  = (*Store)(nil)
	_ idempotency.Pruner = (*Store)(nil)
)

// DefaultRetention bounds how long a stored response is replayed.
const DefaultRetention = 24 * time.Hour

// Store is a Postgres implementation of idempotency.Store.
type Store struct {
	pool      *pgxpool.Pool
	retention time.Duration
}

func NewStore(pool *pgxpool.Pool) *Store {
	return NewStoreWithRetention(pool, DefaultRetention)
}

func NewStoreWithRetention(pool *pgxpool.Pool, retention time.Duration) *Store {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &Store{pool: pool, retention: retention}
}

func (s *Store) Get(ctx context.Context, fp idempotency.Fingerprint) (idempotency.Record, bool, error) {
	if s.pool == nil {
		return idempotency.Record{}, false, errors.New("nil postgres pool")
	}
	row := s.pool.QueryRow(ctx, `
		SELECT status_code, content_type, body, created_at
		FROM idempotency_keys
		WHERE idempotency_key = $1
		  AND subject = $2
		  AND method = $3
		  AND route = $4
		  AND body_hash = $5
		  AND created_at > $6
	`,
		string(fp.Key),
		string(fp.Subject),
		fp.Method,
		fp.Route,
		fp.BodyHash,
		time.Now().UTC().Add(-s.retention),
	)
	var rec idempotency.Record
	if err := row.Scan(&rec.StatusCode, &rec.ContentType, &rec.Body, &rec.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return idempotency.Record{}, false, nil
		}
		return idempotency.Record{}, false, err
	}
	rec.CreatedAt = rec.CreatedAt.UTC()
	return rec, true, nil
}

func (s *Store) Put(ctx context.Context, fp idempotency.Fingerprint, rec idempotency.Record) error {
	if s.pool == nil {
		return errors.New("nil postgres pool")
	}
	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	body := rec.Body
	if body == nil {
		body = []byte{}
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO idempotency_keys (
			idempotency_key,
			subject,
			method,
			route,
			body_hash,
			status_code,
			content_type,
			body,
			created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		ON CONFLICT (idempotency_key, subject, method, route, body_hash)
		DO UPDATE SET
			status_code = EXCLUDED.status_code,
			content_type = EXCLUDED.content_type,
			body = EXCLUDED.body,
			created_at = EXCLUDED.created_at
	`,
		string(fp.Key),
		string(fp.Subject),
		fp.Method,
		fp.Route,
		fp.BodyHash,
		rec.StatusCode,
		rec.ContentType,
		body,
		createdAt.UTC(),
	)
	return err
}

// Prune deletes records older than the retention window and reports how many were removed.
func (s *Store) Prune(ctx context.Context) (int64, error) {
	if s.pool == nil {
		return 0, errors.New("nil postgres pool")
	}
	tag, err := s.pool.Exec(ctx, `DELETE FROM idempotency_keys WHERE created_at <= $1`, time.Now().UTC().Add(-s.retention))
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

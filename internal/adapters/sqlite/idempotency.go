package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/househealth/househealth-api/internal/ports/out/idempotency"
)

var _ idempotency.Store = (*IdempotencyStore)(nil)

// IdempotencyStore is a SQLite implementation of idempotency.Store.
type IdempotencyStore struct {
	db        *sql.DB
	retention time.Duration
	now       func() time.Time
}

func NewIdempotencyStore(db *sql.DB, retention time.Duration) *IdempotencyStore {
	return &IdempotencyStore{db: db, retention: retention, now: time.Now}
}

func (s *IdempotencyStore) Get(ctx context.Context, fp idempotency.Fingerprint) (idempotency.Record, bool, error) {
	var (
		rec       idempotency.Record
		createdAt int64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT status_code, content_type, body, created_at
		FROM idempotency_keys
		WHERE idempotency_key = ? AND subject = ? AND method = ? AND route = ? AND body_hash = ? AND created_at > ?
	`, string(fp.Key), string(fp.Subject), fp.Method, fp.Route, fp.BodyHash, toMicros(s.now().Add(-s.retention))).
		Scan(&rec.StatusCode, &rec.ContentType, &rec.Body, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return idempotency.Record{}, false, nil
		}
		return idempotency.Record{}, false, err
	}
	rec.CreatedAt = fromMicros(createdAt)
	return rec, true, nil
}

func (s *IdempotencyStore) Put(ctx context.Context, fp idempotency.Fingerprint, rec idempotency.Record) error {
	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = s.now()
	}
	body := rec.Body
	if body == nil {
		body = []byte{}
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO idempotency_keys (idempotency_key, subject, method, route, body_hash, status_code, content_type, body, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (idempotency_key, subject, method, route, body_hash)
		DO UPDATE SET
			status_code = excluded.status_code,
			content_type = excluded.content_type,
			body = excluded.body,
			created_at = excluded.created_at
	`, string(fp.Key), string(fp.Subject), fp.Method, fp.Route, fp.BodyHash, rec.StatusCode, rec.ContentType, body, toMicros(createdAt))
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `DELETE FROM idempotency_keys WHERE created_at <= ?`, toMicros(s.now().Add(-s.retention)))
	return err
}

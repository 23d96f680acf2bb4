package idempotency

import (
	"context"
	"time"

	"github.com/househealth/househealth-api/internal/domain"
)

// Key is the Idempotency-Key header value.
type Key string

// Fingerprint scopes a stored response. Two lookups are made per request: one without
// BodyHash that pins the key to a payload, and one with it that holds the response.
type Fingerprint struct {
	Key      Key
	Subject  domain.SubjectID
	Method   string
	Route    string // route template, e.g. "/families/{familyId}/members"
	BodyHash string
}

// Record is a stored response. Records older than the store's retention are not returned.
type Record struct {
	StatusCode  int
	ContentType string
	Body        []byte
	CreatedAt   time.Time
}

type Store interface {
	Get(ctx context.Context, fp Fingerprint) (Record, bool, error)
	Put(ctx context.Context, fp Fingerprint, rec Record) error
}

// Pruner is implemented by stores that need expired records removed out of band.
type Pruner interface {
	Prune(ctx context.Context) (int64, error)
}

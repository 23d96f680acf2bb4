package idempotency

import (
	"context"
	"testing"
	"time"

	"github.com/househealth/househealth-api/internal/adapters/memory/clock"
	"github.com/househealth/househealth-api/internal/domain"
	"github.com/househealth/househealth-api/internal/ports/out/idempotency"
)

func TestStore_ExpiredRecordsAreNotReplayed(t *testing.T) {
	t.Parallel()

	start := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	clk := clock.NewManualClock(start)
	s := NewStoreWithRetention(time.Hour, clk.Now)

	fp := idempotency.Fingerprint{
		Key:      "k1",
		Subject:  domain.SubjectID("u-1"),
		Method:   "POST",
		Route:    "/families/{familyId}/members",
		BodyHash: "abc123",
	}
	rec := idempotency.Record{
		StatusCode:  201,
		ContentType: "application/json",
		Body:        []byte(`{"ok":true}`),
		CreatedAt:   start,
	}
	if err := s.Put(context.Background(), fp, rec); err != nil {
		t.Fatalf("Put() err=%v", err)
	}

	clk.Advance(30 * time.Minute)
	if _, ok, err := s.Get(context.Background(), fp); err != nil || !ok {
		t.Fatalf("Get() within window ok=%v err=%v, want ok=true", ok, err)
	}

	clk.Advance(time.Hour)
	if _, ok, err := s.Get(context.Background(), fp); err != nil || ok {
		t.Fatalf("Get() after window ok=%v err=%v, want ok=false", ok, err)
	}
}

func TestStore_BodyIsCopied(t *testing.T) {
	t.Parallel()

	s := NewStore()
	fp := idempotency.Fingerprint{Key: "k2", Subject: "u-2", Method: "POST", Route: "/families"}
	body := []byte(`{"id":"f1"}`)
	if err := s.Put(context.Background(), fp, idempotency.Record{StatusCode: 201, Body: body, CreatedAt: time.Now().UTC()}); err != nil {
		t.Fatalf("Put() err=%v", err)
	}
	body[0] = 'X'

	got, ok, err := s.Get(context.Background(), fp)
	if err != nil || !ok {
		t.Fatalf("Get() ok=%v err=%v", ok, err)
	}
	if string(got.Body) != `{"id":"f1"}` {
		t.Fatalf("Get().Body=%q, want original body", string(got.Body))
	}
}

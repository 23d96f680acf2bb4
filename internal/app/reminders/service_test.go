package reminders

import (
	"context"
	"errors"
	"testing"
	"time"

	memclock "github.com/househealth/househealth-api/internal/adapters/memory/clock"
	memreminderrepo "github.com/househealth/househealth-api/internal/adapters/memory/reminderrepo"
	"github.com/househealth/househealth-api/internal/domain"
)

func TestService_UpsertReplacesPerMetric(t *testing.T) {
	t.Parallel()

	clk := memclock.NewManualClock(time.Unix(1000, 0).UTC())
	svc := NewService(memreminderrepo.NewRepo(), clk)
	ctx := context.Background()

	two := 2
	first, err := svc.Upsert(ctx, "u1", domain.MetricTypeSugar, UpsertInput{FrequencyType: domain.FrequencyDaily, FrequencyInterval: &two, NotificationsEnabled: true})
	if err != nil {
		t.Fatalf("Upsert() err=%v", err)
	}

	clk.Advance(time.Hour)
	second, err := svc.Upsert(ctx, "u1", domain.MetricTypeSugar, UpsertInput{FrequencyType: domain.FrequencyWeekly})
	if err != nil {
		t.Fatalf("Upsert(replace) err=%v", err)
	}
	if second.ID != first.ID || second.FrequencyType != domain.FrequencyWeekly || second.FrequencyInterval != nil || second.NotificationsEnabled {
		t.Fatalf("second=%+v first=%+v", second, first)
	}
	if !second.CreatedAt.Equal(first.CreatedAt) || !second.UpdatedAt.After(first.UpdatedAt) {
		t.Fatalf("timestamps created=%v updated=%v", second.CreatedAt, second.UpdatedAt)
	}

	list, err := svc.ListMine(ctx, "u1")
	if err != nil || len(list) != 1 {
		t.Fatalf("ListMine() len=%d err=%v, want 1", len(list), err)
	}
}

func TestService_UpsertValidation(t *testing.T) {
	t.Parallel()

	svc := NewService(memreminderrepo.NewRepo(), memclock.NewManualClock(time.Unix(1000, 0).UTC()))
	zero := 0
	cases := []struct {
		name   string
		metric domain.MetricType
		in     UpsertInput
	}{
		{name: "metric", metric: "WEIGHT", in: UpsertInput{FrequencyType: domain.FrequencyDaily}},
		{name: "frequency", metric: domain.MetricTypeBloodPressure, in: UpsertInput{FrequencyType: "HOURLY"}},
		{name: "interval", metric: domain.MetricTypeBloodPressure, in: UpsertInput{FrequencyType: domain.FrequencyDaily, FrequencyInterval: &zero}},
	}
	for _, tc := range cases {
		_, err := svc.Upsert(context.Background(), "u1", tc.metric, tc.in)
		ae := (*Error)(nil)
		if !errors.As(err, &ae) || ae.Status != 422 {
			t.Fatalf("%s: err=%v, want 422", tc.name, err)
		}
	}
}

func TestService_MarkTriggered(t *testing.T) {
	t.Parallel()

	clk := memclock.NewManualClock(time.Unix(1000, 0).UTC())
	svc := NewService(memreminderrepo.NewRepo(), clk)
	ctx := context.Background()

	r, err := svc.Upsert(ctx, "u1", domain.MetricTypeBloodPressure, UpsertInput{FrequencyType: domain.FrequencyMonthly, NotificationsEnabled: true})
	if err != nil {
		t.Fatalf("Upsert() err=%v", err)
	}

	_, err = svc.MarkTriggered(ctx, "u2", r.ID)
	ae := (*Error)(nil)
	if !errors.As(err, &ae) || ae.Status != 404 {
		t.Fatalf("MarkTriggered(other user) err=%v, want 404", err)
	}

	at := clk.Advance(24 * time.Hour)
	got, err := svc.MarkTriggered(ctx, "u1", r.ID)
	if err != nil {
		t.Fatalf("MarkTriggered() err=%v", err)
	}
	if got.LastTriggeredAt == nil || !got.LastTriggeredAt.Equal(at) {
		t.Fatalf("LastTriggeredAt=%v, want %v", got.LastTriggeredAt, at)
	}

	stored, err := svc.Get(ctx, "u1", domain.MetricTypeBloodPressure)
	if err != nil || stored.LastTriggeredAt == nil {
		t.Fatalf("Get() got=%+v err=%v", stored, err)
	}
}

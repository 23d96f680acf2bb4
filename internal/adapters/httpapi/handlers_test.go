package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	memclock "github.com/househealth/househealth-api/internal/adapters/memory/clock"
	memfamilyrepo "github.com/househealth/househealth-api/internal/adapters/memory/familyrepo"
	memhealthlogrepo "github.com/househealth/househealth-api/internal/adapters/memory/healthlogrepo"
	memidempotency "github.com/househealth/househealth-api/internal/adapters/memory/idempotency"
	memreminderrepo "github.com/househealth/househealth-api/internal/adapters/memory/reminderrepo"
	memuserrepo "github.com/househealth/househealth-api/internal/adapters/memory/userrepo"
	"github.com/househealth/househealth-api/internal/app/families"
	"github.com/househealth/househealth-api/internal/app/healthlogs"
	"github.com/househealth/househealth-api/internal/app/reminders"
	"github.com/househealth/househealth-api/internal/app/users"
)

type apiHarness struct {
	t       *testing.T
	handler http.Handler
	users   *users.Service
}

func newAPIHarness(t *testing.T) *apiHarness {
	t.Helper()
	clk := memclock.NewManualClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	userSvc := users.NewService(memuserrepo.NewRepo(), clk)
	userSvc.BcryptCost = bcrypt.MinCost

	famRepo := memfamilyrepo.NewRepo()
	dir := families.NewDirectory(famRepo, userSvc, clk)
	eng := families.NewEngine(famRepo, dir, userSvc, clk)

	srv := NewServer(Services{
		Users:      userSvc,
		Directory:  dir,
		Engine:     eng,
		HealthLogs: healthlogs.NewService(memhealthlogrepo.NewRepo(), clk),
		Reminders:  reminders.NewService(memreminderrepo.NewRepo(), clk),
	}, memidempotency.NewStore())

	return &apiHarness{
		t:       t,
		handler: NewRouter(srv, RouterOptions{AuthMiddleware: NewDevAuthMiddleware("")}),
		users:   userSvc,
	}
}

func (h *apiHarness) do(method, path, subject string, body any, headers map[string]string) *httptest.ResponseRecorder {
	h.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			if err := json.NewEncoder(&buf).Encode(b); err != nil {
				h.t.Fatalf("encode body: %v", err)
			}
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if subject != "" {
		req.Header.Set("X-Debug-Subject", subject)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	return rec
}

func (h *apiHarness) register(name, email string) string {
	h.t.Helper()
	rec := h.do(http.MethodPost, "/users", "", map[string]any{
		"displayName": name,
		"email":       email,
		"password":    "correct-horse",
	}, nil)
	requireStatus(h.t, rec, http.StatusCreated)
	var u User
	decodeBody(h.t, rec, &u)
	return u.ID
}

func (h *apiHarness) createFamily(subject, name string) FamilyDetails {
	h.t.Helper()
	rec := h.do(http.MethodPost, "/families", subject, map[string]any{"name": name}, nil)
	requireStatus(h.t, rec, http.StatusCreated)
	var d FamilyDetails
	decodeBody(h.t, rec, &d)
	return d
}

func requireStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("status=%d want=%d body=%s", rec.Code, want, rec.Body.String())
	}
}

func requireErrorCode(t *testing.T, rec *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	requireStatus(t, rec, status)
	var er ErrorResponse
	decodeBody(t, rec, &er)
	if er.Error.Code != code {
		t.Fatalf("code=%q want=%q body=%s", er.Error.Code, code, rec.Body.String())
	}
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), dst); err != nil {
		t.Fatalf("decode %s: %v", rec.Body.String(), err)
	}
}

func TestHealthz_IsPublic(t *testing.T) {
	t.Parallel()
	h := newAPIHarness(t)

	rec := h.do(http.MethodGet, "/healthz", "", nil, nil)
	requireStatus(t, rec, http.StatusOK)
}

func TestUsers_RegisterAndMe(t *testing.T) {
	t.Parallel()
	h := newAPIHarness(t)

	id := h.register("Ada", "ada@example.com")

	rec := h.do(http.MethodGet, "/users/me", "", nil, nil)
	requireErrorCode(t, rec, http.StatusUnauthorized, "UNAUTHORIZED")

	rec = h.do(http.MethodGet, "/users/me", id, nil, nil)
	requireStatus(t, rec, http.StatusOK)
	var me User
	decodeBody(t, rec, &me)
	if me.ID != id || me.Email != "ada@example.com" || me.SystemRole != "USER" {
		t.Fatalf("me=%+v", me)
	}

	rec = h.do(http.MethodPatch, "/users/me", id, map[string]any{"displayName": "Ada L."}, nil)
	requireStatus(t, rec, http.StatusOK)
	decodeBody(t, rec, &me)
	if me.DisplayName != "Ada L." {
		t.Fatalf("displayName=%q", me.DisplayName)
	}

	rec = h.do(http.MethodPost, "/users", "", map[string]any{
		"displayName": "Other",
		"email":       "ADA@example.com",
		"password":    "correct-horse",
	}, nil)
	requireErrorCode(t, rec, http.StatusConflict, "EMAIL_ALREADY_IN_USE")
}

func TestUsers_RegisterValidation(t *testing.T) {
	t.Parallel()
	h := newAPIHarness(t)

	rec := h.do(http.MethodPost, "/users", "", map[string]any{
		"displayName": "Ada",
		"email":       "not-an-email",
		"password":    "correct-horse",
	}, nil)
	requireErrorCode(t, rec, http.StatusUnprocessableEntity, "VALIDATION_ERROR")

	rec = h.do(http.MethodPost, "/users", "", `{"displayName":"Ada"`, nil)
	requireErrorCode(t, rec, http.StatusBadRequest, "BAD_REQUEST")

	rec = h.do(http.MethodPost, "/users", "", map[string]any{"displayName": "Ada", "email": "a@example.com"}, nil)
	requireErrorCode(t, rec, http.StatusUnprocessableEntity, "VALIDATION_ERROR")

	rec = h.do(http.MethodPost, "/users", "", map[string]any{
		"displayName": "Ada",
		"email":       "a@example.com",
		"password":    "correct-horse",
		"extra":       true,
	}, nil)
	requireErrorCode(t, rec, http.StatusBadRequest, "BAD_REQUEST")
}

func TestFamilies_CreateGetRename(t *testing.T) {
	t.Parallel()
	h := newAPIHarness(t)
	owner := h.register("Owner", "owner@example.com")
	outsider := h.register("Outsider", "outsider@example.com")

	rec := h.do(http.MethodPost, "/families", owner, map[string]any{"name": "  The Smiths "}, nil)
	requireStatus(t, rec, http.StatusCreated)
	if got := rec.Header().Get("ETag"); got != `"1"` {
		t.Fatalf("etag=%q", got)
	}
	var d FamilyDetails
	decodeBody(t, rec, &d)
	if d.Family.Name != "The Smiths" || len(d.Members) != 1 || !d.Members[0].IsOwner {
		t.Fatalf("details=%+v", d)
	}
	famPath := "/families/" + d.Family.ID

	rec = h.do(http.MethodGet, famPath, outsider, nil, nil)
	requireErrorCode(t, rec, http.StatusNotFound, "FAMILY_NOT_FOUND")

	rec = h.do(http.MethodPatch, famPath, owner, map[string]any{"name": "Smith Household"}, map[string]string{"If-Match": `"1"`})
	requireStatus(t, rec, http.StatusOK)
	if got := rec.Header().Get("ETag"); got != `"2"` {
		t.Fatalf("etag after rename=%q", got)
	}

	rec = h.do(http.MethodPatch, famPath, owner, map[string]any{"name": "Stale"}, map[string]string{"If-Match": `"1"`})
	requireErrorCode(t, rec, http.StatusConflict, "CONFLICT")
	if got := rec.Header().Get("Retry-After"); got != "0" {
		t.Fatalf("Retry-After=%q", got)
	}

	rec = h.do(http.MethodPatch, famPath, owner, map[string]any{"name": "Bad"}, map[string]string{"If-Match": "nope"})
	requireErrorCode(t, rec, http.StatusBadRequest, "BAD_REQUEST")

	rec = h.do(http.MethodGet, "/families", owner, nil, nil)
	requireStatus(t, rec, http.StatusOK)
	var list FamiliesResponse
	decodeBody(t, rec, &list)
	if len(list.Families) != 1 || list.Families[0].Name != "Smith Household" {
		t.Fatalf("families=%+v", list.Families)
	}
}

func TestFamilies_AddMemberIdempotency(t *testing.T) {
	t.Parallel()
	h := newAPIHarness(t)
	owner := h.register("Owner", "owner@example.com")
	kid := h.register("Kid", "kid@example.com")
	other := h.register("Other", "other@example.com")
	d := h.createFamily(owner, "Home")
	membersPath := "/families/" + d.Family.ID + "/members"
	key := map[string]string{"Idempotency-Key": "add-kid-1"}

	first := h.do(http.MethodPost, membersPath, owner, map[string]any{"userId": kid}, key)
	requireStatus(t, first, http.StatusCreated)
	var m Membership
	decodeBody(t, first, &m)
	if m.UserID != kid || m.IsOwner || m.Role != "OBSERVER" {
		t.Fatalf("membership=%+v", m)
	}

	replay := h.do(http.MethodPost, membersPath, owner, map[string]any{"userId": kid}, key)
	requireStatus(t, replay, http.StatusCreated)
	if replay.Header().Get("Idempotent-Replayed") != "true" {
		t.Fatalf("expected replay header")
	}
	if !bytes.Equal(first.Body.Bytes(), replay.Body.Bytes()) {
		t.Fatalf("replayed body differs: %s vs %s", first.Body.String(), replay.Body.String())
	}

	rec := h.do(http.MethodPost, membersPath, owner, map[string]any{"userId": other}, key)
	requireErrorCode(t, rec, http.StatusConflict, "IDEMPOTENCY_KEY_REUSE")

	rec = h.do(http.MethodPost, membersPath, owner, map[string]any{"userId": kid}, nil)
	requireErrorCode(t, rec, http.StatusConflict, "ALREADY_MEMBER")

	rec = h.do(http.MethodPost, membersPath, kid, map[string]any{"userId": other}, nil)
	requireErrorCode(t, rec, http.StatusForbidden, "UNAUTHORIZED_ACTION")

	rec = h.do(http.MethodPost, membersPath, owner, map[string]any{"userId": "not-a-uuid"}, nil)
	if rec.Code != http.StatusBadRequest && rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}

	rec = h.do(http.MethodGet, membersPath, kid, nil, nil)
	requireStatus(t, rec, http.StatusOK)
	var members MembersResponse
	decodeBody(t, rec, &members)
	if len(members.Members) != 2 {
		t.Fatalf("members=%+v", members.Members)
	}

	rec = h.do(http.MethodGet, "/memberships/"+m.ID, kid, nil, nil)
	requireStatus(t, rec, http.StatusOK)
	rec = h.do(http.MethodGet, "/memberships/"+m.ID, other, nil, nil)
	requireErrorCode(t, rec, http.StatusNotFound, "MEMBERSHIP_NOT_FOUND")
}

func TestFamilies_CreateReplayCarriesETag(t *testing.T) {
	t.Parallel()
	h := newAPIHarness(t)
	owner := h.register("Owner", "owner@example.com")
	key := map[string]string{"Idempotency-Key": "create-home-1"}

	first := h.do(http.MethodPost, "/families", owner, map[string]any{"name": "Home"}, key)
	requireStatus(t, first, http.StatusCreated)
	if got := first.Header().Get("ETag"); got != `"1"` {
		t.Fatalf("first ETag=%q", got)
	}

	replay := h.do(http.MethodPost, "/families", owner, map[string]any{"name": "Home"}, key)
	requireStatus(t, replay, http.StatusCreated)
	if replay.Header().Get("Idempotent-Replayed") != "true" {
		t.Fatalf("expected replay header")
	}
	if got := replay.Header().Get("ETag"); got != `"1"` {
		t.Fatalf("replayed ETag=%q", got)
	}
	if !bytes.Equal(first.Body.Bytes(), replay.Body.Bytes()) {
		t.Fatalf("replayed body differs: %s vs %s", first.Body.String(), replay.Body.String())
	}
}

func TestFamilies_OwnershipLifecycle(t *testing.T) {
	t.Parallel()
	h := newAPIHarness(t)
	owner := h.register("Owner", "owner@example.com")
	kid := h.register("Kid", "kid@example.com")
	d := h.createFamily(owner, "Home")
	famPath := "/families/" + d.Family.ID

	requireStatus(t, h.do(http.MethodPost, famPath+"/members", owner, map[string]any{"userId": kid}, nil), http.StatusCreated)

	rec := h.do(http.MethodPost, famPath+"/leave", owner, nil, nil)
	requireErrorCode(t, rec, http.StatusForbidden, "UNAUTHORIZED_ACTION")

	rec = h.do(http.MethodPatch, famPath+"/members/"+kid, owner, map[string]any{"role": "TRACKER"}, nil)
	requireStatus(t, rec, http.StatusOK)
	var m Membership
	decodeBody(t, rec, &m)
	if m.Role != "TRACKER" || !m.NotificationsEnabled {
		t.Fatalf("membership=%+v", m)
	}

	rec = h.do(http.MethodPatch, famPath+"/members/"+kid, owner, map[string]any{"notificationsEnabled": false}, nil)
	requireErrorCode(t, rec, http.StatusForbidden, "UNAUTHORIZED_ACTION")

	rec = h.do(http.MethodPatch, famPath+"/members/"+kid, kid, map[string]any{"notificationsEnabled": false}, nil)
	requireStatus(t, rec, http.StatusOK)
	decodeBody(t, rec, &m)
	if m.NotificationsEnabled {
		t.Fatalf("notifications still enabled: %+v", m)
	}

	rec = h.do(http.MethodPatch, famPath+"/members/"+kid, owner, `{"role":null}`, nil)
	requireErrorCode(t, rec, http.StatusUnprocessableEntity, "VALIDATION_ERROR")

	rec = h.do(http.MethodPost, famPath+"/ownership-transfer", owner, map[string]any{"userId": kid}, nil)
	requireStatus(t, rec, http.StatusOK)
	decodeBody(t, rec, &m)
	if !m.IsOwner || m.UserID != kid {
		t.Fatalf("new owner membership=%+v", m)
	}

	rec = h.do(http.MethodPost, famPath+"/leave", owner, nil, nil)
	requireStatus(t, rec, http.StatusNoContent)

	rec = h.do(http.MethodGet, famPath+"/members", kid, nil, nil)
	requireStatus(t, rec, http.StatusOK)
	var members MembersResponse
	decodeBody(t, rec, &members)
	if len(members.Members) != 1 || !members.Members[0].IsOwner {
		t.Fatalf("members=%+v", members.Members)
	}

	rec = h.do(http.MethodDelete, famPath, owner, nil, nil)
	requireErrorCode(t, rec, http.StatusForbidden, "UNAUTHORIZED_ACTION")
	rec = h.do(http.MethodDelete, famPath, kid, nil, nil)
	requireErrorCode(t, rec, http.StatusForbidden, "UNAUTHORIZED_ACTION")

	admin := h.register("Admin", "admin@example.com")
	if err := h.users.BootstrapAdmins(context.Background(), []string{"admin@example.com"}); err != nil {
		t.Fatalf("BootstrapAdmins: %v", err)
	}
	rec = h.do(http.MethodDelete, famPath, admin, nil, nil)
	requireStatus(t, rec, http.StatusNoContent)
	rec = h.do(http.MethodGet, famPath, kid, nil, nil)
	requireErrorCode(t, rec, http.StatusNotFound, "FAMILY_NOT_FOUND")
}

func TestHealthLogsAndReminders(t *testing.T) {
	t.Parallel()
	h := newAPIHarness(t)
	u := h.register("Ada", "ada@example.com")
	other := h.register("Bob", "bob@example.com")

	rec := h.do(http.MethodPost, "/health-logs", u, map[string]any{"metricType": "BP", "systolic": 120, "diastolic": 80}, nil)
	requireStatus(t, rec, http.StatusCreated)
	var l HealthLog
	decodeBody(t, rec, &l)

	rec = h.do(http.MethodPost, "/health-logs", u, map[string]any{"metricType": "SUGAR", "sugarType": "FASTING", "sugarValue": 5.4}, nil)
	requireStatus(t, rec, http.StatusCreated)

	rec = h.do(http.MethodPost, "/health-logs", u, map[string]any{"metricType": "BP", "systolic": 80, "diastolic": 120}, nil)
	requireErrorCode(t, rec, http.StatusUnprocessableEntity, "VALIDATION_ERROR")

	rec = h.do(http.MethodGet, "/health-logs?metricType=BP", u, nil, nil)
	requireStatus(t, rec, http.StatusOK)
	var logs HealthLogsResponse
	decodeBody(t, rec, &logs)
	if len(logs.HealthLogs) != 1 || logs.HealthLogs[0].ID != l.ID {
		t.Fatalf("logs=%+v", logs.HealthLogs)
	}

	rec = h.do(http.MethodGet, "/health-logs?limit=0", u, nil, nil)
	requireErrorCode(t, rec, http.StatusUnprocessableEntity, "VALIDATION_ERROR")

	rec = h.do(http.MethodGet, "/health-logs/"+l.ID, other, nil, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("foreign log status=%d body=%s", rec.Code, rec.Body.String())
	}

	rec = h.do(http.MethodPut, "/reminders/BP", u, map[string]any{"frequencyType": "DAILY"}, nil)
	requireStatus(t, rec, http.StatusOK)
	var rm Reminder
	decodeBody(t, rec, &rm)
	if !rm.NotificationsEnabled || rm.FrequencyType != "DAILY" {
		t.Fatalf("reminder=%+v", rm)
	}

	rec = h.do(http.MethodPut, "/reminders/BP", u, map[string]any{"frequencyType": "WEEKLY", "frequencyInterval": 2}, nil)
	requireStatus(t, rec, http.StatusOK)
	var updated Reminder
	decodeBody(t, rec, &updated)
	if updated.ID != rm.ID || updated.FrequencyType != "WEEKLY" {
		t.Fatalf("upsert did not update in place: %+v", updated)
	}

	rec = h.do(http.MethodPost, "/reminders/"+rm.ID+"/trigger", u, nil, nil)
	requireStatus(t, rec, http.StatusOK)
	decodeBody(t, rec, &updated)
	if updated.LastTriggeredAt == nil {
		t.Fatalf("lastTriggeredAt not set")
	}

	rec = h.do(http.MethodGet, "/reminders", u, nil, nil)
	requireStatus(t, rec, http.StatusOK)
	var list RemindersResponse
	decodeBody(t, rec, &list)
	if len(list.Reminders) != 1 {
		t.Fatalf("reminders=%+v", list.Reminders)
	}

	rec = h.do(http.MethodPut, "/reminders/BP", u, map[string]any{"frequencyType": "HOURLY"}, nil)
	requireErrorCode(t, rec, http.StatusUnprocessableEntity, "VALIDATION_ERROR")
}

func TestRouter_UnknownRoute(t *testing.T) {
	t.Parallel()
	h := newAPIHarness(t)

	rec := h.do(http.MethodGet, "/nope", "", nil, nil)
	requireErrorCode(t, rec, http.StatusNotFound, "NOT_FOUND")
}

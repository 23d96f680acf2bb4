package httpapi

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/househealth/househealth-api/internal/app/healthlogs"
	"github.com/househealth/househealth-api/internal/app/reminders"
	"github.com/househealth/househealth-api/internal/domain"
)

func (s *Server) RecordHealthLog(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	var body RecordHealthLogRequest
	if !s.decode(w, r, &body) {
		return
	}
	in := healthlogs.RecordInput{
		MetricType: domain.MetricType(body.MetricType),
		Systolic:   body.Systolic,
		Diastolic:  body.Diastolic,
		SugarValue: body.SugarValue,
		Notes:      body.Notes,
		RecordedAt: body.RecordedAt,
	}
	if body.SugarType != nil {
		st := domain.SugarType(*body.SugarType)
		in.SugarType = &st
	}
	l, err := s.HealthLogs.Record(r.Context(), caller, in)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, healthLogFromDomain(l))
}

func (s *Server) ListHealthLogs(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	var metric *domain.MetricType
	if v := q.Get("metricType"); v != "" {
		m := domain.MetricType(v)
		if !m.Valid() {
			writeError(w, r, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "invalid metricType", map[string]any{"metricType": "must be BP or SUGAR"})
			return
		}
		metric = &m
	}
	limit := 0
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, r, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "invalid limit", map[string]any{"limit": "must be a positive integer"})
			return
		}
		limit = n
	}
	logs, err := s.HealthLogs.ListMine(r.Context(), caller, metric, limit)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	out := make([]HealthLog, 0, len(logs))
	for _, l := range logs {
		out = append(out, healthLogFromDomain(l))
	}
	writeJSON(w, http.StatusOK, HealthLogsResponse{HealthLogs: out})
}

func (s *Server) GetHealthLog(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	l, err := s.HealthLogs.Get(r.Context(), caller, domain.HealthLogID(chi.URLParam(r, "logId")))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, healthLogFromDomain(l))
}

func (s *Server) ListReminders(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	list, err := s.Reminders.ListMine(r.Context(), caller)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	out := make([]Reminder, 0, len(list))
	for _, rs := range list {
		out = append(out, reminderFromDomain(rs))
	}
	writeJSON(w, http.StatusOK, RemindersResponse{Reminders: out})
}

func (s *Server) GetReminder(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	rs, err := s.Reminders.Get(r.Context(), caller, domain.MetricType(chi.URLParam(r, "metricType")))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reminderFromDomain(rs))
}

func (s *Server) UpsertReminder(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	var body UpsertReminderRequest
	if !s.decode(w, r, &body) {
		return
	}
	enabled := true
	if body.NotificationsEnabled != nil {
		enabled = *body.NotificationsEnabled
	}
	rs, err := s.Reminders.Upsert(r.Context(), caller, domain.MetricType(chi.URLParam(r, "metricType")), reminders.UpsertInput{
		FrequencyType:        domain.FrequencyType(body.FrequencyType),
		FrequencyInterval:    body.FrequencyInterval,
		NotificationsEnabled: enabled,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reminderFromDomain(rs))
}

func (s *Server) TriggerReminder(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	rs, err := s.Reminders.MarkTriggered(r.Context(), caller, domain.ReminderID(chi.URLParam(r, "reminderId")))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reminderFromDomain(rs))
}

package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/oapi-codegen/nullable"

	"github.com/househealth/househealth-api/internal/app/families"
	"github.com/househealth/househealth-api/internal/app/healthlogs"
	"github.com/househealth/househealth-api/internal/app/reminders"
	"github.com/househealth/househealth-api/internal/app/users"
)

type ErrorBody struct {
	Code      string                            `json:"code"`
	Message   string                            `json:"message"`
	Details   nullable.Nullable[map[string]any] `json:"details,omitempty"`
	RequestId nullable.Nullable[string]         `json:"requestId,omitempty"`
}

type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

func writeError(w http.ResponseWriter, r *http.Request, status int, code string, message string, details map[string]any) {
	var er ErrorResponse
	er.Error.Code = code
	er.Error.Message = message
	if details != nil {
		er.Error.Details = nullable.NewNullableWithValue(details)
	}
	if rid := middleware.GetReqID(r.Context()); rid != "" {
		er.Error.RequestId = nullable.NewNullableWithValue(rid)
	}
	writeJSON(w, status, er)
}

// writeAppError maps an application error to its response. Unknown errors are logged and become 500.
func writeAppError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	if fe := (*families.Error)(nil); errors.As(err, &fe) {
		if fe.Retryable() {
			w.Header().Set("Retry-After", "0")
		}
		writeError(w, r, fe.Status, fe.Code, fe.Message, fe.Details)
		return
	}
	if ue := (*users.Error)(nil); errors.As(err, &ue) {
		writeError(w, r, ue.Status, ue.Code, ue.Message, ue.Details)
		return
	}
	if he := (*healthlogs.Error)(nil); errors.As(err, &he) {
		writeError(w, r, he.Status, he.Code, he.Message, he.Details)
		return
	}
	if re := (*reminders.Error)(nil); errors.As(err, &re) {
		writeError(w, r, re.Status, re.Code, re.Message, re.Details)
		return
	}
	logger.ErrorContext(r.Context(), "request failed", "method", r.Method, "path", r.URL.Path, "err", err)
	writeError(w, r, http.StatusInternalServerError, "INTERNAL", "internal error", nil)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

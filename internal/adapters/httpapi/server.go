package httpapi

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	openapi_types "github.com/oapi-codegen/runtime/types"

	"github.com/househealth/househealth-api/internal/app/families"
	"github.com/househealth/househealth-api/internal/app/healthlogs"
	"github.com/househealth/househealth-api/internal/app/reminders"
	"github.com/househealth/househealth-api/internal/app/users"
	"github.com/househealth/househealth-api/internal/domain"
	"github.com/househealth/househealth-api/internal/ports/out/idempotency"
)

const maxBodyBytes = 1 << 20

// Server implements the HTTP handlers over the application services.
type Server struct {
	Users      *users.Service
	Directory  *families.Directory
	Engine     *families.Engine
	HealthLogs *healthlogs.Service
	Reminders  *reminders.Service
	Idem       idempotency.Store

	Logger *slog.Logger

	validate *validator.Validate
}

type Services struct {
	Users      *users.Service
	Directory  *families.Directory
	Engine     *families.Engine
	HealthLogs *healthlogs.Service
	Reminders  *reminders.Service
}

func NewServer(svc Services, idem idempotency.Store) *Server {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report validation failures under their JSON names.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &Server{
		Users:      svc.Users,
		Directory:  svc.Directory,
		Engine:     svc.Engine,
		HealthLogs: svc.HealthLogs,
		Reminders:  svc.Reminders,
		Idem:       idem,
		validate:   v,
	}
}

func (s *Server) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.Default()
	}
	return s.Logger
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	writeAppError(w, r, s.logger(), err)
}

// caller returns the authenticated user or writes 401.
func (s *Server) caller(w http.ResponseWriter, r *http.Request) (domain.UserID, bool) {
	id, ok := callerID(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "missing subject", nil)
	}
	return id, ok
}

// decode reads a JSON body into dst and runs struct validation. It writes the error
// response and returns false on failure.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		switch {
		case errors.Is(err, io.EOF):
			writeError(w, r, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "missing request body", nil)
		case errors.Is(err, openapi_types.ErrValidationEmail):
			writeError(w, r, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "invalid email", map[string]any{"email": err.Error()})
		default:
			writeError(w, r, http.StatusBadRequest, "BAD_REQUEST", "malformed JSON body", map[string]any{"error": err.Error()})
		}
		return false
	}
	if err := s.validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			details := make(map[string]any, len(verrs))
			for _, fe := range verrs {
				details[fe.Field()] = "failed " + fe.Tag()
			}
			writeError(w, r, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "invalid request body", details)
			return false
		}
		s.fail(w, r, err)
		return false
	}
	return true
}

// idempotent runs fn at most once per (Idempotency-Key, subject, method, route, body hash)
// and replays the stored response for retries.
// Reusing a key with a different payload is rejected with 409.
// Without an Idempotency-Key header fn simply runs.
// headers, when set, derives response headers from the encoded body on first run and on replay.
func (s *Server) idempotent(w http.ResponseWriter, r *http.Request, route string, body any, headers func(http.Header, []byte), fn func() (int, any, error)) {
	key := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	sub, _ := SubjectFromContext(r.Context())
	if key == "" || s.Idem == nil {
		status, payload, err := fn()
		if err != nil {
			s.fail(w, r, err)
			return
		}
		if headers != nil {
			if b, err := json.Marshal(payload); err == nil {
				headers(w.Header(), b)
			}
		}
		writeJSON(w, status, payload)
		return
	}

	ctx := r.Context()
	bodyHash, err := hashBody(body)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	metaFP := idempotency.Fingerprint{
		Key:     idempotency.Key(key),
		Subject: domain.SubjectID(sub),
		Method:  r.Method,
		Route:   route,
	}
	if meta, ok, err := s.Idem.Get(ctx, metaFP); err != nil {
		s.fail(w, r, err)
		return
	} else if ok {
		if string(meta.Body) != bodyHash {
			writeError(w, r, http.StatusConflict, "IDEMPOTENCY_KEY_REUSE", "idempotency key reuse with different payload", nil)
			return
		}
	} else {
		_ = s.Idem.Put(ctx, metaFP, idempotency.Record{
			StatusCode:  0,
			ContentType: "text/plain",
			Body:        []byte(bodyHash),
			CreatedAt:   time.Now().UTC(),
		})
	}

	respFP := metaFP
	respFP.BodyHash = bodyHash
	if rec, ok, err := s.Idem.Get(ctx, respFP); err != nil {
		s.fail(w, r, err)
		return
	} else if ok && rec.StatusCode >= 200 && rec.StatusCode < 300 {
		if headers != nil {
			headers(w.Header(), rec.Body)
		}
		w.Header().Set("Content-Type", rec.ContentType)
		w.Header().Set("Idempotent-Replayed", "true")
		w.WriteHeader(rec.StatusCode)
		_, _ = w.Write(rec.Body)
		return
	}

	status, payload, err := fn()
	if err != nil {
		s.fail(w, r, err)
		return
	}
	b, err := json.Marshal(payload)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	_ = s.Idem.Put(ctx, respFP, idempotency.Record{
		StatusCode:  status,
		ContentType: "application/json",
		Body:        b,
		CreatedAt:   time.Now().UTC(),
	})
	if headers != nil {
		headers(w.Header(), b)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(b)
}

func hashBody(v any) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:]), nil
}
